package models

import "time"

// State is the position of an execution in the processing state machine.
type State string

const (
	StateInit                State = "Init"
	StateMetadataExtraction  State = "MetadataExtraction"
	StateThumbnailGeneration State = "ThumbnailGeneration"
	StateTextDetectionSubmit State = "TextDetectionSubmit"
	StateTextDetectionPoll   State = "TextDetectionPoll"
	StateResultParsing       State = "ResultParsing"
	StatePersistence         State = "Persistence"
	StateCompleted           State = "Completed"
	StateFailed              State = "Failed"
)

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Status is the coarse outcome of an execution.
type Status string

const (
	StatusRunning   Status = "Running"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
)

// Execution is one run of the pipeline for a single uploaded object.
type Execution struct {
	ID            string        `firestore:"id" json:"id"`
	DocumentID    string        `firestore:"documentId" json:"documentId"`
	ObjectRef     string        `firestore:"objectRef" json:"objectRef"`
	Stage         State         `firestore:"stage" json:"stage"`
	Payload       Payload       `firestore:"payload" json:"payload"`
	Attempt       int           `firestore:"attempt" json:"attempt"`
	Status        Status        `firestore:"status" json:"status"`
	FailureReason FailureReason `firestore:"failureReason,omitempty" json:"failureReason,omitempty"`
	FailedStage   State         `firestore:"failedStage,omitempty" json:"failedStage,omitempty"`
	ErrorDetails  string        `firestore:"errorDetails,omitempty" json:"errorDetails,omitempty"`
	CreatedAt     time.Time     `firestore:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time     `firestore:"updatedAt" json:"updatedAt"`

	// LeaseExpiresAt is when a running execution must have written again.
	// Past it, the execution is considered abandoned.
	LeaseExpiresAt time.Time `firestore:"leaseExpiresAt,omitempty" json:"leaseExpiresAt,omitempty"`
}

// unleasedStaleAfter bounds records written without a lease.
const unleasedStaleAfter = time.Hour

// Abandoned reports whether a running execution has stopped renewing its
// lease, which happens when its process died or its terminal write was lost.
func (e *Execution) Abandoned(now time.Time) bool {
	if e.Status != StatusRunning {
		return false
	}
	deadline := e.LeaseExpiresAt
	if deadline.IsZero() {
		deadline = e.UpdatedAt.Add(unleasedStaleAfter)
	}
	return now.After(deadline)
}

// Abandon records an abandoned execution as failed at the stage it was in.
func (e *Execution) Abandon(now time.Time) {
	e.FailedStage = e.Stage
	e.Stage = StateFailed
	e.Status = StatusFailed
	e.FailureReason = ReasonLeaseExpired
	e.ErrorDetails = "execution stopped writing progress; lease expired at " + e.LeaseExpiresAt.Format(time.RFC3339)
	e.UpdatedAt = now
}

// Clone returns a deep enough copy for handing an execution across a store
// boundary: the payload map is copied, its values are shared.
func (e *Execution) Clone() *Execution {
	if e == nil {
		return nil
	}
	c := *e
	c.Payload = e.Payload.Clone()
	return &c
}

// UploadEvent starts a new execution.
type UploadEvent struct {
	ObjectRef  string `json:"objectRef"`
	DocumentID string `json:"documentId,omitempty"`
}

// StageInput is what a stage executor sees of an execution. Payload is a
// copy; executors report additions through their return value.
type StageInput struct {
	ExecutionID string
	DocumentID  string
	Attempt     int
	Payload     Payload
}

// Input snapshots the execution for the next stage invocation.
func (e *Execution) Input() StageInput {
	return StageInput{
		ExecutionID: e.ID,
		DocumentID:  e.DocumentID,
		Attempt:     e.Attempt,
		Payload:     e.Payload.Clone(),
	}
}
