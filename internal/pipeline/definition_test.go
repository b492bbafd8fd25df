package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/docenrich/internal/models"
)

func TestStandardDefinitionOrder(t *testing.T) {
	h := newHarness(t, DefaultRetryPolicy())
	def := Standard(h.stages(), DefaultRetryPolicy(), Timeouts{})
	require.NoError(t, def.Validate())

	var states []models.State
	for _, step := range def.Steps {
		states = append(states, step.State)
	}
	assert.Equal(t, []models.State{
		models.StateMetadataExtraction,
		models.StateThumbnailGeneration,
		models.StateTextDetectionSubmit,
		models.StateTextDetectionPoll,
		models.StateResultParsing,
		models.StatePersistence,
	}, states)
	assert.NotNil(t, def.Steps[3].Poller)
	assert.Nil(t, def.Steps[3].Executor)
}

func TestDefinitionValidate(t *testing.T) {
	exec := &fakeExecutor{}
	poll := &fakePoller{}
	policy := DefaultRetryPolicy()

	tests := []struct {
		name  string
		steps []Step
	}{
		{name: "empty", steps: nil},
		{name: "terminal state", steps: []Step{{State: models.StateCompleted, Executor: exec, FailureReason: models.ReasonPersistenceError}}},
		{name: "duplicate state", steps: []Step{
			{State: models.StateResultParsing, Executor: exec, FailureReason: models.ReasonMalformedResult},
			{State: models.StateResultParsing, Executor: exec, FailureReason: models.ReasonMalformedResult},
		}},
		{name: "both executor and poller", steps: []Step{{State: models.StateTextDetectionPoll, Executor: exec, Poller: poll, Retry: policy, FailureReason: models.ReasonExhaustedRetries}}},
		{name: "neither executor nor poller", steps: []Step{{State: models.StateResultParsing, FailureReason: models.ReasonMalformedResult}}},
		{name: "missing reason", steps: []Step{{State: models.StateResultParsing, Executor: exec}}},
		{name: "poll without attempts", steps: []Step{{State: models.StateTextDetectionPoll, Poller: poll, FailureReason: models.ReasonExhaustedRetries}}},
		{name: "two poll steps", steps: []Step{
			{State: models.StateTextDetectionPoll, Poller: poll, Retry: policy, FailureReason: models.ReasonExhaustedRetries},
			{State: models.StateResultParsing, Poller: poll, Retry: policy, FailureReason: models.ReasonExhaustedRetries},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, Definition{Steps: tc.steps}.Validate())
		})
	}
}
