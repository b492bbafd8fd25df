package textdetect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/Lllllllleong/docenrich/internal/models"
)

// JobRecord is the stored state of a job run by a Runner.
type JobRecord struct {
	ID        string          `firestore:"id" json:"id"`
	ObjectRef string          `firestore:"objectRef" json:"objectRef"`
	State     models.JobState `firestore:"state" json:"state"`
	RawResult string          `firestore:"rawResult,omitempty" json:"rawResult,omitempty"`
	Reason    string          `firestore:"reason,omitempty" json:"reason,omitempty"`
	CreatedAt time.Time       `firestore:"createdAt" json:"createdAt"`
	UpdatedAt time.Time       `firestore:"updatedAt" json:"updatedAt"`
}

// JobRecordStore keeps job records so that polls can be answered by any
// instance sharing the store.
type JobRecordStore interface {
	Put(ctx context.Context, rec JobRecord) error
	// Get fails with an error wrapping ErrJobNotFound for unknown ids.
	Get(ctx context.Context, id string) (*JobRecord, error)
}

// Runner is an in-process JobService. Every submitted job runs the engine in
// its own goroutine; at most maxConcurrent engines run at once.
type Runner struct {
	engine  Engine
	records JobRecordStore
	sem     *semaphore.Weighted
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time
}

// NewRunner creates a runner. Jobs outlive the Submit call and stop only
// when the runner is closed.
func NewRunner(engine Engine, records JobRecordStore, maxConcurrent int) *Runner {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		engine:  engine,
		records: records,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		ctx:     ctx,
		cancel:  cancel,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *Runner) Submit(ctx context.Context, objectRef string) (string, error) {
	now := r.now()
	rec := JobRecord{
		ID:        uuid.NewString(),
		ObjectRef: objectRef,
		State:     models.JobInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.records.Put(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to record job: %w", err)
	}

	r.wg.Add(1)
	go r.run(rec)
	return rec.ID, nil
}

func (r *Runner) run(rec JobRecord) {
	defer r.wg.Done()
	logCtx := slog.With("jobId", rec.ID, "objectRef", rec.ObjectRef)

	if err := r.sem.Acquire(r.ctx, 1); err != nil {
		r.finish(logCtx, rec, nil, fmt.Errorf("runner stopped before the job started: %w", err))
		return
	}
	defer r.sem.Release(1)

	logCtx.Info("Text detection started.")
	result, err := r.engine.Detect(r.ctx, rec.ObjectRef)
	r.finish(logCtx, rec, result, err)
}

func (r *Runner) finish(logCtx *slog.Logger, rec JobRecord, result *models.RawResult, detectErr error) {
	rec.UpdatedAt = r.now()
	if detectErr != nil {
		logCtx.Error("Text detection failed.", "error", detectErr)
		rec.State = models.JobFailed
		rec.Reason = detectErr.Error()
	} else {
		raw, err := json.Marshal(result)
		if err != nil {
			rec.State = models.JobFailed
			rec.Reason = fmt.Sprintf("failed to marshal result: %v", err)
		} else {
			rec.State = models.JobSucceeded
			rec.RawResult = string(raw)
			logCtx.Info("Text detection complete.", "pages", len(result.Pages))
		}
	}

	// The job context may already be cancelled; the final record must still land.
	if err := r.records.Put(context.WithoutCancel(r.ctx), rec); err != nil {
		logCtx.Error("CRITICAL: Failed to record final job state.", "state", rec.State, "error", err)
	}
}

func (r *Runner) Poll(ctx context.Context, jobID string) (models.JobStatus, error) {
	rec, err := r.records.Get(ctx, jobID)
	if err != nil {
		return models.JobStatus{}, err
	}
	return models.JobStatus{State: rec.State, RawResult: rec.RawResult, Reason: rec.Reason}, nil
}

// Wait blocks until every submitted job has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close cancels running jobs and waits for them to record their outcome.
func (r *Runner) Close() error {
	r.cancel()
	r.wg.Wait()
	return nil
}

// MemoryJobRecords is a process-local JobRecordStore.
type MemoryJobRecords struct {
	mu      sync.RWMutex
	records map[string]JobRecord
}

func NewMemoryJobRecords() *MemoryJobRecords {
	return &MemoryJobRecords{records: make(map[string]JobRecord)}
}

func (m *MemoryJobRecords) Put(_ context.Context, rec JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	return nil
}

func (m *MemoryJobRecords) Get(_ context.Context, id string) (*JobRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return &rec, nil
}
