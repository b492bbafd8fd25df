package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/docenrich/internal/models"
	"github.com/Lllllllleong/docenrich/internal/storage"
	"github.com/Lllllllleong/docenrich/internal/textdetect"
)

// TextDetectionSubmitter starts the asynchronous text-detection job.
type TextDetectionSubmitter struct {
	jobs textdetect.JobService
}

func NewTextDetectionSubmitter(jobs textdetect.JobService) *TextDetectionSubmitter {
	return &TextDetectionSubmitter{jobs: jobs}
}

func (s *TextDetectionSubmitter) Execute(ctx context.Context, in models.StageInput) (models.Payload, error) {
	sourceRef := in.Payload.String(models.KeySourceRef)
	jobID, err := s.jobs.Submit(ctx, sourceRef)
	if err != nil {
		return nil, models.Fail(models.ReasonSubmissionError, err)
	}
	if jobID == "" {
		return nil, models.Failf(models.ReasonSubmissionError, "job service returned an empty job id for %s", sourceRef)
	}
	slog.Info("Text detection job submitted.", "documentId", in.DocumentID, "executionId", in.ExecutionID, "jobId", jobID)
	return models.Payload{models.KeyJobID: jobID}, nil
}

// TextDetectionPoller asks the job service once for the state of the job.
// Scheduling and attempt bookkeeping belong to the orchestrator. A finished
// result is written to the asset bucket so the execution record only carries
// its reference; results of large documents outgrow a Firestore document.
type TextDetectionPoller struct {
	jobs        textdetect.JobService
	store       storage.ObjectStore
	assetBucket string
}

// NewTextDetectionPoller creates a poller. With a nil store the raw result
// travels inline in the payload.
func NewTextDetectionPoller(jobs textdetect.JobService, store storage.ObjectStore, assetBucket string) *TextDetectionPoller {
	return &TextDetectionPoller{jobs: jobs, store: store, assetBucket: assetBucket}
}

func (p *TextDetectionPoller) Poll(ctx context.Context, in models.StageInput) (models.JobStatus, error) {
	jobID := in.Payload.String(models.KeyJobID)
	if jobID == "" {
		return models.JobStatus{}, models.Fail(models.ReasonSubmissionError, fmt.Errorf("%w: %s", ErrMissingField, models.KeyJobID))
	}
	status, err := p.jobs.Poll(ctx, jobID)
	if err != nil {
		return models.JobStatus{}, fmt.Errorf("failed to poll job %s: %w", jobID, err)
	}
	if status.State != models.JobSucceeded || p.store == nil {
		return status, nil
	}

	ref := p.store.Ref(p.assetBucket, "text-detection/"+in.DocumentID+".json")
	written, err := p.store.Put(ctx, ref, []byte(status.RawResult), "application/json")
	if err != nil {
		return models.JobStatus{}, models.Fail(models.ReasonStorageWriteError, fmt.Errorf("failed to store raw result of job %s: %w", jobID, err))
	}
	return models.JobStatus{State: models.JobSucceeded, ResultRef: written}, nil
}
