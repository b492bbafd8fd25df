package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadMerge(t *testing.T) {
	p := Payload{KeyContentType: "application/pdf", KeyPageCount: 2}

	require.NoError(t, p.Merge(Payload{KeyThumbnailRef: "gs://assets/t.png"}))
	assert.Equal(t, "gs://assets/t.png", p[KeyThumbnailRef])

	// identical rewrite is accepted
	require.NoError(t, p.Merge(Payload{KeyPageCount: 2}))
	assert.Len(t, p, 3)
}

func TestPayloadMergeConflictLeavesPayloadUntouched(t *testing.T) {
	p := Payload{KeyContentType: "application/pdf"}

	err := p.Merge(Payload{KeyContentType: "image/png", KeyText: "hello"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPayloadConflict))
	assert.Contains(t, err.Error(), KeyContentType)

	assert.Equal(t, Payload{KeyContentType: "application/pdf"}, p)
}

func TestPayloadCloneIsIndependent(t *testing.T) {
	p := Payload{KeyText: "a"}
	c := p.Clone()
	c[KeyText] = "b"
	c[KeyOwner] = "someone"

	assert.Equal(t, "a", p.String(KeyText))
	_, ok := p[KeyOwner]
	assert.False(t, ok)

	var nilPayload Payload
	assert.NotNil(t, nilPayload.Clone())
}

func TestPayloadAccessors(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := Payload{
		KeyName:           "report",
		KeyPageCount:      int64(7),
		KeyMeanConfidence: 91.5,
		KeyTags:           []any{"a", 3, "b"},
		KeyConfidences:    []any{90.0, "x", 93.0},
		KeyUploadedAt:     at,
	}

	assert.Equal(t, "report", p.String(KeyName))
	assert.Empty(t, p.String(KeyPageCount))

	n, ok := p.Int(KeyPageCount)
	assert.True(t, ok)
	assert.Equal(t, 7, n)
	_, ok = p.Int(KeyName)
	assert.False(t, ok)

	assert.InDelta(t, 91.5, p.Float(KeyMeanConfidence), 1e-9)
	assert.Zero(t, p.Float(KeyName))

	assert.Equal(t, []string{"a", "b"}, p.Strings(KeyTags))
	assert.Equal(t, []float64{90, 93}, p.Floats(KeyConfidences))
	assert.Nil(t, p.Strings(KeyOwner))

	assert.Equal(t, at, p.Time(KeyUploadedAt))
	assert.True(t, p.Time(KeyName).IsZero())
}

func TestReasonOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureReason
	}{
		{"classified", Fail(ReasonUnsupportedFormat, errors.New("bmp")), ReasonUnsupportedFormat},
		{"wrapped", errors.Join(errors.New("ctx"), Failf(ReasonMalformedResult, "page %d", 0)), ReasonMalformedResult},
		{"unclassified", errors.New("boom"), ReasonPersistenceError},
		{"empty reason", &StageError{Err: errors.New("x")}, ReasonPersistenceError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReasonOf(tt.err, ReasonPersistenceError))
		})
	}
}

func TestStageErrorMessage(t *testing.T) {
	inner := errors.New("no such object")
	err := Fail(ReasonUnreadableSource, inner)
	assert.Equal(t, "UnreadableSource: no such object", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "StorageWriteError", (&StageError{Reason: ReasonStorageWriteError}).Error())
}

func TestGCSEventUploadEvent(t *testing.T) {
	e := GCSEvent{Bucket: "uploads", Name: "/reports/q1.pdf", Metadata: map[string]string{"documentId": "doc-9"}}
	assert.Equal(t, UploadEvent{ObjectRef: "gs://uploads/reports/q1.pdf", DocumentID: "doc-9"}, e.UploadEvent())

	bare := GCSEvent{Bucket: "uploads", Name: "a.png"}
	assert.Equal(t, UploadEvent{ObjectRef: "gs://uploads/a.png"}, bare.UploadEvent())

	for _, name := range []string{"q#1.pdf", "a?b.pdf", "100%.pdf", "a%20b.pdf"} {
		e := GCSEvent{Bucket: "uploads", Name: name}
		assert.Equal(t, "gs://uploads/"+name, e.ObjectRef(), "object names are not escaped")
	}
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateTextDetectionPoll.Terminal())
	assert.False(t, StateInit.Terminal())
}

func TestExecutionAbandoned(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		exec Execution
		want bool
	}{
		{"lease ahead", Execution{Status: StatusRunning, LeaseExpiresAt: now.Add(time.Second)}, false},
		{"lease passed", Execution{Status: StatusRunning, LeaseExpiresAt: now.Add(-time.Second)}, true},
		{"finished", Execution{Status: StatusFailed, LeaseExpiresAt: now.Add(-time.Hour)}, false},
		{"no lease, recent write", Execution{Status: StatusRunning, UpdatedAt: now.Add(-time.Minute)}, false},
		{"no lease, old write", Execution{Status: StatusRunning, UpdatedAt: now.Add(-2 * time.Hour)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.exec.Abandoned(now))
		})
	}
}

func TestExecutionAbandon(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	e := Execution{Stage: StateThumbnailGeneration, Status: StatusRunning, LeaseExpiresAt: now.Add(-time.Minute)}

	e.Abandon(now)

	assert.Equal(t, StateFailed, e.Stage)
	assert.Equal(t, StatusFailed, e.Status)
	assert.Equal(t, StateThumbnailGeneration, e.FailedStage)
	assert.Equal(t, ReasonLeaseExpired, e.FailureReason)
	assert.Equal(t, now, e.UpdatedAt)
	assert.Contains(t, e.ErrorDetails, "lease expired")
}
