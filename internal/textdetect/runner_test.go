package textdetect

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/docenrich/internal/models"
)

type engineFunc func(ctx context.Context, objectRef string) (*models.RawResult, error)

func (f engineFunc) Detect(ctx context.Context, objectRef string) (*models.RawResult, error) {
	return f(ctx, objectRef)
}

func confidence(v float64) *float64 { return &v }

func TestRunnerSucceeded(t *testing.T) {
	engine := engineFunc(func(_ context.Context, objectRef string) (*models.RawResult, error) {
		return &models.RawResult{Pages: []models.RawPage{{
			Page:   1,
			Blocks: []models.RawBlock{{Type: models.BlockLine, Text: objectRef, Confidence: confidence(90)}},
		}}}, nil
	})
	r := NewRunner(engine, NewMemoryJobRecords(), 2)
	defer r.Close()

	jobID, err := r.Submit(context.Background(), "mem://uploads/a.png")
	require.NoError(t, err)
	r.Wait()

	status, err := r.Poll(context.Background(), jobID)
	require.NoError(t, err)
	require.Equal(t, models.JobSucceeded, status.State)

	var result models.RawResult
	require.NoError(t, json.Unmarshal([]byte(status.RawResult), &result))
	require.Len(t, result.Pages, 1)
	assert.Equal(t, "mem://uploads/a.png", result.Pages[0].Blocks[0].Text)
}

func TestRunnerFailed(t *testing.T) {
	engine := engineFunc(func(context.Context, string) (*models.RawResult, error) {
		return nil, errors.New("unreadable image")
	})
	r := NewRunner(engine, NewMemoryJobRecords(), 1)
	defer r.Close()

	jobID, err := r.Submit(context.Background(), "mem://uploads/a.png")
	require.NoError(t, err)
	r.Wait()

	status, err := r.Poll(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, status.State)
	assert.Equal(t, "unreadable image", status.Reason)
}

func TestRunnerInProgressUntilEngineReturns(t *testing.T) {
	release := make(chan struct{})
	engine := engineFunc(func(context.Context, string) (*models.RawResult, error) {
		<-release
		return &models.RawResult{}, nil
	})
	r := NewRunner(engine, NewMemoryJobRecords(), 1)
	defer r.Close()

	jobID, err := r.Submit(context.Background(), "mem://uploads/a.png")
	require.NoError(t, err)

	status, err := r.Poll(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobInProgress, status.State)

	close(release)
	r.Wait()
	status, err = r.Poll(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobSucceeded, status.State)
}

func TestRunnerJobOutlivesSubmitContext(t *testing.T) {
	engine := engineFunc(func(ctx context.Context, _ string) (*models.RawResult, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &models.RawResult{}, nil
	})
	r := NewRunner(engine, NewMemoryJobRecords(), 1)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	jobID, err := r.Submit(ctx, "mem://uploads/a.png")
	require.NoError(t, err)
	cancel()
	r.Wait()

	status, err := r.Poll(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobSucceeded, status.State)
}

func TestRunnerLimitsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	release := make(chan struct{})
	engine := engineFunc(func(context.Context, string) (*models.RawResult, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return &models.RawResult{}, nil
	})
	r := NewRunner(engine, NewMemoryJobRecords(), 2)
	defer r.Close()

	for i := 0; i < 5; i++ {
		_, err := r.Submit(context.Background(), "mem://uploads/a.png")
		require.NoError(t, err)
	}
	close(release)
	r.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunnerPollUnknownJob(t *testing.T) {
	r := NewRunner(engineFunc(nil), NewMemoryJobRecords(), 1)
	defer r.Close()

	_, err := r.Poll(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}
