package textdetect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/googleapis/gax-go/v2"

	"github.com/Lllllllleong/docenrich/internal/models"
)

// executionsAPI is the part of the Workflows Executions client the job
// service calls.
type executionsAPI interface {
	CreateExecution(ctx context.Context, req *executionspb.CreateExecutionRequest, opts ...gax.CallOption) (*executionspb.Execution, error)
	GetExecution(ctx context.Context, req *executionspb.GetExecutionRequest, opts ...gax.CallOption) (*executionspb.Execution, error)
}

// WorkflowJobService runs text detection as a Cloud Workflows execution of
// workflows/text-detection.yaml, which calls the text-detector function and
// returns its response body as the execution result. The job id is the
// execution resource name.
type WorkflowJobService struct {
	client executionsAPI
	parent string
}

// NewWorkflowJobService creates a job service starting executions of the
// workflow named by parent (projects/*/locations/*/workflows/*).
func NewWorkflowJobService(client executionsAPI, parent string) *WorkflowJobService {
	return &WorkflowJobService{client: client, parent: parent}
}

func (s *WorkflowJobService) Submit(ctx context.Context, objectRef string) (string, error) {
	argument, err := json.Marshal(models.TextDetectionRequest{ObjectRef: objectRef})
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow argument: %w", err)
	}
	exec, err := s.client.CreateExecution(ctx, &executionspb.CreateExecutionRequest{
		Parent: s.parent,
		Execution: &executionspb.Execution{
			Argument: string(argument),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create workflow execution: %w", err)
	}
	slog.Debug("Workflow execution created.", "jobId", exec.GetName(), "objectRef", objectRef)
	return exec.GetName(), nil
}

func (s *WorkflowJobService) Poll(ctx context.Context, jobID string) (models.JobStatus, error) {
	exec, err := s.client.GetExecution(ctx, &executionspb.GetExecutionRequest{Name: jobID})
	if err != nil {
		return models.JobStatus{}, fmt.Errorf("failed to get workflow execution %s: %w", jobID, err)
	}

	switch exec.GetState() {
	case executionspb.Execution_SUCCEEDED:
		return models.JobStatus{State: models.JobSucceeded, RawResult: unwrapResult(exec.GetResult())}, nil
	case executionspb.Execution_FAILED, executionspb.Execution_CANCELLED:
		reason := exec.GetError().GetPayload()
		if reason == "" {
			reason = fmt.Sprintf("workflow execution ended in state %s", exec.GetState())
		}
		return models.JobStatus{State: models.JobFailed, Reason: reason}, nil
	default:
		return models.JobStatus{State: models.JobInProgress}, nil
	}
}

// unwrapResult returns the RawResult inside a text-detector response. A
// workflow that already unwrapped the response returns the RawResult itself,
// which is passed through.
func unwrapResult(result string) string {
	var resp struct {
		Status string          `json:"status"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal([]byte(result), &resp); err != nil || len(resp.Result) == 0 || string(resp.Result) == "null" {
		return result
	}
	return string(resp.Result)
}
