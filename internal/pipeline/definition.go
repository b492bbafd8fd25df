package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Lllllllleong/docenrich/internal/models"
)

// Executor runs one stage. It returns the fields to add to the payload; a
// returned error ends the execution.
type Executor interface {
	Execute(ctx context.Context, in models.StageInput) (models.Payload, error)
}

// Poller queries an asynchronous job once.
type Poller interface {
	Poll(ctx context.Context, in models.StageInput) (models.JobStatus, error)
}

// Step binds a state to the unit that runs in it. Exactly one of Executor
// and Poller is set. Unclassified errors, timeouts included, fail with
// FailureReason.
type Step struct {
	State         models.State
	Executor      Executor
	Poller        Poller
	Retry         RetryPolicy
	Timeout       time.Duration
	FailureReason models.FailureReason
}

// Definition is the ordered list of steps an orchestrator drives.
type Definition struct {
	Steps []Step
}

// Stages are the units of the standard pipeline.
type Stages struct {
	Metadata  Executor
	Thumbnail Executor
	Submit    Executor
	Poll      Poller
	Parse     Executor
	Persist   Executor
}

// Timeouts bound a single invocation of each stage. Zero means unbounded.
// Poll bounds each poll call, not the whole loop.
type Timeouts struct {
	Metadata  time.Duration
	Thumbnail time.Duration
	Submit    time.Duration
	Poll      time.Duration
	Parse     time.Duration
	Persist   time.Duration
}

// Standard wires the stages in their fixed order with the poll step as the
// only retrying step.
func Standard(s Stages, retry RetryPolicy, t Timeouts) Definition {
	return Definition{Steps: []Step{
		{State: models.StateMetadataExtraction, Executor: s.Metadata, Timeout: t.Metadata, FailureReason: models.ReasonUnreadableSource},
		{State: models.StateThumbnailGeneration, Executor: s.Thumbnail, Timeout: t.Thumbnail, FailureReason: models.ReasonUnsupportedFormat},
		{State: models.StateTextDetectionSubmit, Executor: s.Submit, Timeout: t.Submit, FailureReason: models.ReasonSubmissionError},
		{State: models.StateTextDetectionPoll, Poller: s.Poll, Retry: retry, Timeout: t.Poll, FailureReason: models.ReasonExhaustedRetries},
		{State: models.StateResultParsing, Executor: s.Parse, Timeout: t.Parse, FailureReason: models.ReasonMalformedResult},
		{State: models.StatePersistence, Executor: s.Persist, Timeout: t.Persist, FailureReason: models.ReasonPersistenceError},
	}}
}

// Validate checks the definition can be driven.
func (d Definition) Validate() error {
	if len(d.Steps) == 0 {
		return fmt.Errorf("pipeline definition has no steps")
	}
	seen := make(map[models.State]bool, len(d.Steps))
	polls := 0
	for i, step := range d.Steps {
		switch {
		case step.State == "" || step.State == models.StateInit || step.State.Terminal():
			return fmt.Errorf("step %d: state %q cannot be a step", i, step.State)
		case seen[step.State]:
			return fmt.Errorf("step %d: state %s appears twice", i, step.State)
		case (step.Executor == nil) == (step.Poller == nil):
			return fmt.Errorf("step %s: exactly one of executor and poller must be set", step.State)
		case step.FailureReason == "":
			return fmt.Errorf("step %s: failure reason must be set", step.State)
		}
		if step.Poller != nil {
			polls++
			if step.Retry.MaxAttempts < 1 {
				return fmt.Errorf("step %s: retry policy needs at least one attempt", step.State)
			}
		}
		seen[step.State] = true
	}
	if polls > 1 {
		return fmt.Errorf("pipeline definition has %d poll steps, at most one is allowed", polls)
	}
	return nil
}
