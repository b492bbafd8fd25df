// Package pipeline drives an execution through the enrichment stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Lllllllleong/docenrich/internal/metrics"
	"github.com/Lllllllleong/docenrich/internal/models"
	"github.com/Lllllllleong/docenrich/internal/store"
)

// ErrInvalidEvent indicates an upload event without an object reference.
var ErrInvalidEvent = errors.New("upload event has no object reference")

// Notifier receives every execution once it reaches a terminal state.
type Notifier interface {
	Notify(ctx context.Context, exec *models.Execution) error
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// TimerSleeper parks on a timer.
func TimerSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DocumentIDFor derives a stable document id from the object reference, so
// redeliveries of the same upload address the same document.
func DocumentIDFor(objectRef string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(objectRef)).String()
}

// Orchestrator owns executions and moves them through the steps of its
// definition.
type Orchestrator struct {
	def           Definition
	executions    store.ExecutionStore
	notifier      Notifier
	sleep         Sleeper
	now           func() time.Time
	newID         func() string
	leaseGrace    time.Duration
	terminalRetry RetryPolicy
}

// DefaultLeaseGrace is how long past its next expected write a running
// execution is still considered alive.
const DefaultLeaseGrace = 5 * time.Minute

// DefaultTerminalWriteRetry bounds the attempts to record a terminal state.
func DefaultTerminalWriteRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseInterval: 500 * time.Millisecond, BackoffMultiplier: 2}
}

type Option func(*Orchestrator)

func WithNotifier(n Notifier) Option { return func(o *Orchestrator) { o.notifier = n } }

func WithSleeper(s Sleeper) Option { return func(o *Orchestrator) { o.sleep = s } }

func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

func WithIDGenerator(newID func() string) Option { return func(o *Orchestrator) { o.newID = newID } }

// WithLeaseGrace sets the slack added to every lease renewal.
func WithLeaseGrace(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.leaseGrace = d
		}
	}
}

// WithTerminalWriteRetry sets the retry policy for recording Completed or Failed.
func WithTerminalWriteRetry(p RetryPolicy) Option { return func(o *Orchestrator) { o.terminalRetry = p } }

func New(def Definition, executions store.ExecutionStore, opts ...Option) (*Orchestrator, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline definition: %w", err)
	}
	o := &Orchestrator{
		def:           def,
		executions:    executions,
		sleep:         TimerSleeper,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
		leaseGrace:    DefaultLeaseGrace,
		terminalRetry: DefaultTerminalWriteRetry(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Start creates an execution for the upload and drives it to Completed or
// Failed. Once the execution exists, cancelling ctx no longer stops it. The
// returned error is non-nil only when no execution could be created.
func (o *Orchestrator) Start(ctx context.Context, ev models.UploadEvent) (*models.Execution, error) {
	if ev.ObjectRef == "" {
		return nil, ErrInvalidEvent
	}
	documentID := ev.DocumentID
	if documentID == "" {
		documentID = DocumentIDFor(ev.ObjectRef)
	}

	now := o.now()
	exec := &models.Execution{
		ID:         o.newID(),
		DocumentID: documentID,
		ObjectRef:  ev.ObjectRef,
		Stage:      models.StateInit,
		Payload:    models.Payload{models.KeySourceRef: ev.ObjectRef},
		Status:     models.StatusRunning,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	o.renewLease(exec, now, 0)
	if err := o.executions.Create(ctx, exec); err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}
	metrics.IncreaseExecutionsStarted()

	o.run(context.WithoutCancel(ctx), exec)
	return exec.Clone(), nil
}

func (o *Orchestrator) run(ctx context.Context, exec *models.Execution) {
	logCtx := slog.With("documentId", exec.DocumentID, "executionId", exec.ID)
	logCtx.Info("Execution started.", "objectRef", exec.ObjectRef)

	for _, step := range o.def.Steps {
		// Saving on entry records the previous step's output before this one runs.
		if err := o.enter(ctx, exec, step); err != nil {
			o.fail(ctx, logCtx, exec, step.State, models.ReasonStateWriteError, err)
			return
		}

		started := time.Now()
		var err error
		if step.Poller != nil {
			err = o.pollLoop(ctx, logCtx, exec, step)
		} else {
			err = o.runStep(ctx, exec, step)
		}
		metrics.ObserveStageDuration(string(step.State), time.Since(started))

		if err != nil {
			o.fail(ctx, logCtx, exec, step.State, models.ReasonOf(err, step.FailureReason), err)
			return
		}
		logCtx.Info("Stage complete.", "stage", step.State)
	}

	lastState := exec.Stage
	exec.Stage = models.StateCompleted
	exec.Status = models.StatusCompleted
	exec.UpdatedAt = o.now()
	if err := o.saveTerminal(ctx, logCtx, exec); err != nil {
		exec.Stage = lastState
		exec.Status = models.StatusRunning
		o.fail(ctx, logCtx, exec, lastState, models.ReasonStateWriteError, fmt.Errorf("failed to record completion: %w", err))
		return
	}
	logCtx.Info("Execution completed.")
	o.finish(ctx, logCtx, exec)
}

// enter records the move into step. The lease covers one call of the step.
func (o *Orchestrator) enter(ctx context.Context, exec *models.Execution, step Step) error {
	exec.Stage = step.State
	exec.UpdatedAt = o.now()
	o.renewLease(exec, exec.UpdatedAt, step.Timeout)
	if step.State == models.StateTextDetectionPoll {
		exec.Attempt = 0
	}
	if err := o.executions.Save(ctx, exec); err != nil {
		return fmt.Errorf("failed to record entry into %s: %w", step.State, err)
	}
	return nil
}

// renewLease extends the lease by the time until the next expected write
// plus the grace period.
func (o *Orchestrator) renewLease(exec *models.Execution, now time.Time, until ...time.Duration) {
	lease := now.Add(o.leaseGrace)
	for _, d := range until {
		lease = lease.Add(d)
	}
	exec.LeaseExpiresAt = lease
}

// saveTerminal records a Completed or Failed execution, retrying with
// backoff since a lost terminal write leaves the execution looking alive
// until its lease runs out.
func (o *Orchestrator) saveTerminal(ctx context.Context, logCtx *slog.Logger, exec *models.Execution) error {
	policy := o.terminalRetry
	var err error
	for attempt := 1; ; attempt++ {
		if err = o.executions.Save(ctx, exec); err == nil {
			return nil
		}
		if attempt >= policy.MaxAttempts {
			return err
		}
		logCtx.Warn("Failed to record terminal state, retrying.", "status", exec.Status, "attempt", attempt, "error", err)
		if serr := o.sleep(ctx, policy.Delay(attempt)); serr != nil {
			return errors.Join(err, serr)
		}
	}
}

func (o *Orchestrator) runStep(ctx context.Context, exec *models.Execution, step Step) error {
	stepCtx, cancel := withTimeout(ctx, step.Timeout)
	defer cancel()

	out, err := step.Executor.Execute(stepCtx, exec.Input())
	if err != nil {
		return err
	}
	if err := exec.Payload.Merge(out); err != nil {
		return models.Fail(models.ReasonPayloadConflict, err)
	}
	return nil
}

// pollLoop polls until the job leaves the in-progress state or the attempts
// run out. A poll that errors without a failure reason counts as in progress.
func (o *Orchestrator) pollLoop(ctx context.Context, logCtx *slog.Logger, exec *models.Execution, step Step) error {
	policy := step.Retry
	defer func() { metrics.ObservePollsPerExecution(exec.Attempt) }()

	for {
		exec.Attempt++
		status, err := o.pollOnce(ctx, exec, step)
		if err != nil {
			var stageErr *models.StageError
			if errors.As(err, &stageErr) {
				return err
			}
			logCtx.Warn("Poll failed, treating the job as in progress.", "attempt", exec.Attempt, "error", err)
			status = models.JobStatus{State: models.JobInProgress}
		}
		metrics.IncreasePollAttempts(string(status.State))

		switch status.State {
		case models.JobSucceeded:
			if err := exec.Payload.Merge(status.Fields()); err != nil {
				return models.Fail(models.ReasonPayloadConflict, err)
			}
			logCtx.Info("Text detection job succeeded.", "attempt", exec.Attempt)
			return nil
		case models.JobFailed:
			return models.Failf(models.ReasonUpstreamJobFailed, "text-detection job failed: %s", status.Reason)
		}

		if exec.Attempt >= policy.MaxAttempts {
			return models.Failf(models.ReasonExhaustedRetries, "job still in progress after %d attempts", exec.Attempt)
		}

		delay := policy.Delay(exec.Attempt)
		exec.UpdatedAt = o.now()
		o.renewLease(exec, exec.UpdatedAt, delay, step.Timeout)
		if err := o.executions.Save(ctx, exec); err != nil {
			return models.Fail(models.ReasonStateWriteError, fmt.Errorf("failed to record poll attempt %d: %w", exec.Attempt, err))
		}

		logCtx.Debug("Job in progress, backing off.", "attempt", exec.Attempt, "delay", delay.String())
		if err := o.sleep(ctx, delay); err != nil {
			return fmt.Errorf("backoff interrupted after attempt %d: %w", exec.Attempt, err)
		}
	}
}

func (o *Orchestrator) pollOnce(ctx context.Context, exec *models.Execution, step Step) (models.JobStatus, error) {
	pollCtx, cancel := withTimeout(ctx, step.Timeout)
	defer cancel()
	return step.Poller.Poll(pollCtx, exec.Input())
}

func (o *Orchestrator) fail(ctx context.Context, logCtx *slog.Logger, exec *models.Execution, state models.State, reason models.FailureReason, cause error) {
	logCtx.Error("Execution failed.", "stage", state, "reason", reason, "error", cause)

	exec.Stage = models.StateFailed
	exec.Status = models.StatusFailed
	exec.FailedStage = state
	exec.FailureReason = reason
	exec.ErrorDetails = cause.Error()
	exec.UpdatedAt = o.now()
	if err := o.saveTerminal(ctx, logCtx, exec); err != nil {
		logCtx.Error("CRITICAL: Failed to record FAILED status after a processing error.", "updateError", err,
			"leaseExpiresAt", exec.LeaseExpiresAt)
	}
	o.finish(ctx, logCtx, exec)
}

func (o *Orchestrator) finish(ctx context.Context, logCtx *slog.Logger, exec *models.Execution) {
	metrics.IncreaseExecutionsFinished(string(exec.Status), string(exec.FailureReason))
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, exec.Clone()); err != nil {
		logCtx.Error("Failed to deliver execution outcome.", "status", exec.Status, "error", err)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
