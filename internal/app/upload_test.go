package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/docenrich/internal/config"
	"github.com/Lllllllleong/docenrich/internal/models"
	"github.com/Lllllllleong/docenrich/internal/pipeline"
	"github.com/Lllllllleong/docenrich/internal/store"
)

type countingExecutor struct {
	calls int
	err   error
}

func (c *countingExecutor) Execute(context.Context, models.StageInput) (models.Payload, error) {
	c.calls++
	return models.Payload{}, c.err
}

type succeededPoller struct{}

func (succeededPoller) Poll(context.Context, models.StageInput) (models.JobStatus, error) {
	return models.JobStatus{State: models.JobSucceeded, RawResult: "{}"}, nil
}

func testApp(t *testing.T, metadata *countingExecutor) (*App, *store.MemoryExecutions) {
	t.Helper()
	noop := &countingExecutor{}
	execs := store.NewMemoryExecutions()
	orch, err := pipeline.New(pipeline.Standard(pipeline.Stages{
		Metadata:  metadata,
		Thumbnail: noop,
		Submit:    noop,
		Poll:      succeededPoller{},
		Parse:     noop,
		Persist:   noop,
	}, pipeline.DefaultRetryPolicy(), pipeline.Timeouts{}), execs)
	require.NoError(t, err)
	return &App{Config: &config.Config{UploadBucket: "uploads", AssetBucket: "assets"}, Orchestrator: orch, Executions: execs}, execs
}

func TestProcessUpload(t *testing.T) {
	metadata := &countingExecutor{}
	a, _ := testApp(t, metadata)

	err := a.ProcessUpload(context.Background(), models.GCSEvent{Bucket: "uploads", Name: "a.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 1, metadata.calls)
}

func TestProcessUploadFailedExecutionIsNotAnError(t *testing.T) {
	metadata := &countingExecutor{err: errors.New("unreadable")}
	a, _ := testApp(t, metadata)

	assert.NoError(t, a.ProcessUpload(context.Background(), models.GCSEvent{Bucket: "uploads", Name: "a.pdf"}))
}

func TestProcessUploadIgnoresOtherBuckets(t *testing.T) {
	metadata := &countingExecutor{}
	a, _ := testApp(t, metadata)

	require.NoError(t, a.ProcessUpload(context.Background(), models.GCSEvent{Bucket: "assets", Name: "thumbnails/x.png"}))
	assert.Zero(t, metadata.calls)
}

func TestProcessUploadIgnoresAssetsWithoutUploadFilter(t *testing.T) {
	metadata := &countingExecutor{}
	a, _ := testApp(t, metadata)
	a.Config.UploadBucket = ""

	require.NoError(t, a.ProcessUpload(context.Background(), models.GCSEvent{Bucket: "assets", Name: "thumbnails/x.png"}))
	assert.Zero(t, metadata.calls)

	require.NoError(t, a.ProcessUpload(context.Background(), models.GCSEvent{Bucket: "anything", Name: "a.pdf"}))
	assert.Equal(t, 1, metadata.calls)
}

func TestProcessUploadAsksForRedeliveryWhileDocumentBusy(t *testing.T) {
	metadata := &countingExecutor{}
	a, execs := testApp(t, metadata)
	event := models.GCSEvent{Bucket: "uploads", Name: "a.pdf", Metadata: map[string]string{"documentId": "doc-9"}}
	require.NoError(t, execs.Create(context.Background(), &models.Execution{
		ID: "running", DocumentID: "doc-9", Status: models.StatusRunning, LeaseExpiresAt: time.Now().Add(time.Hour),
	}))

	err := a.ProcessUpload(context.Background(), event)
	require.ErrorIs(t, err, store.ErrExecutionInProgress)
	assert.Zero(t, metadata.calls)
}

func TestProcessUploadReplacesAbandonedExecution(t *testing.T) {
	metadata := &countingExecutor{}
	a, execs := testApp(t, metadata)
	event := models.GCSEvent{Bucket: "uploads", Name: "a.pdf", Metadata: map[string]string{"documentId": "doc-9"}}
	require.NoError(t, execs.Create(context.Background(), &models.Execution{
		ID: "stuck", DocumentID: "doc-9", Status: models.StatusRunning, LeaseExpiresAt: time.Now().Add(-time.Minute),
	}))

	require.NoError(t, a.ProcessUpload(context.Background(), event))
	assert.Equal(t, 1, metadata.calls)

	stuck, err := execs.Get(context.Background(), "stuck")
	require.NoError(t, err)
	assert.Equal(t, models.ReasonLeaseExpired, stuck.FailureReason)
}

func TestProcessUploadRejectsIncompleteEvent(t *testing.T) {
	a, _ := testApp(t, &countingExecutor{})
	assert.Error(t, a.ProcessUpload(context.Background(), models.GCSEvent{Bucket: "uploads"}))
}
