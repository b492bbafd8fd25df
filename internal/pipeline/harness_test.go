package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/docenrich/internal/models"
	"github.com/Lllllllleong/docenrich/internal/store"
)

// callLog records the order in which stages ran.
type callLog struct {
	mu     sync.Mutex
	states []models.State
}

func (l *callLog) add(s models.State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *callLog) all() []models.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.State(nil), l.states...)
}

type fakeExecutor struct {
	state models.State
	log   *callLog
	out   models.Payload
	err   error
	fn    func(ctx context.Context, in models.StageInput) (models.Payload, error)
	seen  []models.Payload
}

func (f *fakeExecutor) Execute(ctx context.Context, in models.StageInput) (models.Payload, error) {
	if f.log != nil {
		f.log.add(f.state)
	}
	f.seen = append(f.seen, in.Payload.Clone())
	if f.fn != nil {
		return f.fn(ctx, in)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.out.Clone(), nil
}

type fakePoller struct {
	log   *callLog
	calls int
	// fn answers the n-th poll, counting from 1.
	fn       func(n int) (models.JobStatus, error)
	attempts []int
}

func (f *fakePoller) Poll(_ context.Context, in models.StageInput) (models.JobStatus, error) {
	if f.log != nil {
		f.log.add(models.StateTextDetectionPoll)
	}
	f.calls++
	f.attempts = append(f.attempts, in.Attempt)
	if f.fn == nil {
		return models.JobStatus{State: models.JobSucceeded, RawResult: `{"pages":[]}`}, nil
	}
	return f.fn(f.calls)
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	outcomes []*models.Execution
}

func (n *recordingNotifier) Notify(_ context.Context, exec *models.Execution) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcomes = append(n.outcomes, exec)
	return nil
}

type harness struct {
	log       *callLog
	metadata  *fakeExecutor
	thumbnail *fakeExecutor
	submit    *fakeExecutor
	poll      *fakePoller
	parse     *fakeExecutor
	persist   *fakeExecutor
	execs     *store.MemoryExecutions
	sleeper   *sleepRecorder
	notifier  *recordingNotifier
	policy    RetryPolicy
	timeouts  Timeouts
}

func newHarness(t *testing.T, policy RetryPolicy) *harness {
	t.Helper()
	log := &callLog{}
	return &harness{
		log: log,
		metadata: &fakeExecutor{state: models.StateMetadataExtraction, log: log, out: models.Payload{
			models.KeyContentType: "application/pdf",
			models.KeyPageCount:   2,
		}},
		thumbnail: &fakeExecutor{state: models.StateThumbnailGeneration, log: log, out: models.Payload{
			models.KeyThumbnailRef: "mem://assets/thumbnails/doc-1.png",
		}},
		submit:   &fakeExecutor{state: models.StateTextDetectionSubmit, log: log, out: models.Payload{models.KeyJobID: "job-1"}},
		poll:     &fakePoller{log: log},
		parse:    &fakeExecutor{state: models.StateResultParsing, log: log, out: models.Payload{models.KeyText: "hello"}},
		persist:  &fakeExecutor{state: models.StatePersistence, log: log, out: models.Payload{models.KeyPersisted: true}},
		execs:    store.NewMemoryExecutions(),
		sleeper:  &sleepRecorder{},
		notifier: &recordingNotifier{},
		policy:   policy,
	}
}

func (h *harness) stages() Stages {
	return Stages{
		Metadata:  h.metadata,
		Thumbnail: h.thumbnail,
		Submit:    h.submit,
		Poll:      h.poll,
		Parse:     h.parse,
		Persist:   h.persist,
	}
}

func (h *harness) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	o, err := New(Standard(h.stages(), h.policy, h.timeouts), h.execs,
		WithSleeper(h.sleeper.sleep),
		WithNotifier(h.notifier),
	)
	require.NoError(t, err)
	return o
}

func (h *harness) start(t *testing.T) *models.Execution {
	t.Helper()
	exec, err := h.orchestrator(t).Start(context.Background(), models.UploadEvent{
		ObjectRef:  "mem://uploads/report.pdf",
		DocumentID: "doc-1",
	})
	require.NoError(t, err)
	return exec
}

// inProgressFor answers InProgress for the first n polls, then Succeeded.
func inProgressFor(n int) func(int) (models.JobStatus, error) {
	return func(call int) (models.JobStatus, error) {
		if call <= n {
			return models.JobStatus{State: models.JobInProgress}, nil
		}
		return models.JobStatus{State: models.JobSucceeded, RawResult: `{"pages":[]}`}, nil
	}
}
