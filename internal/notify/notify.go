// Package notify publishes execution outcomes as CloudEvents.
package notify

import (
	"context"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/Lllllllleong/docenrich/internal/models"
)

const (
	CompletedEventType = "docenrich.execution.completed"
	FailedEventType    = "docenrich.execution.failed"
	defaultTopic       = "docenrich.executions"
)

// Writer delivers a single event.
type Writer interface {
	Write(ctx context.Context, topic string, e cloudevents.Event) error
	Close(ctx context.Context) error
}

// Outcome is the data of an outcome event.
type Outcome struct {
	ExecutionID   string               `json:"executionId"`
	DocumentID    string               `json:"documentId"`
	ObjectRef     string               `json:"objectRef"`
	Status        models.Status        `json:"status"`
	FailureReason models.FailureReason `json:"failureReason,omitempty"`
	FailedStage   models.State         `json:"failedStage,omitempty"`
	ErrorDetails  string               `json:"errorDetails,omitempty"`
	ThumbnailRef  string               `json:"thumbnailRef,omitempty"`
	PollAttempts  int                  `json:"pollAttempts"`
	FinishedAt    time.Time            `json:"finishedAt"`
}

// EventNotifier turns terminal executions into CloudEvents.
type EventNotifier struct {
	writer Writer
	source string
	topic  string
}

func NewEventNotifier(w Writer, source string) *EventNotifier {
	return &EventNotifier{writer: w, source: source, topic: defaultTopic}
}

func (n *EventNotifier) Notify(ctx context.Context, exec *models.Execution) error {
	e, err := n.event(exec)
	if err != nil {
		return err
	}
	if err := n.writer.Write(ctx, n.topic, e); err != nil {
		return fmt.Errorf("failed to write %s event for execution %s: %w", e.Type(), exec.ID, err)
	}
	return nil
}

func (n *EventNotifier) event(exec *models.Execution) (cloudevents.Event, error) {
	eventType := CompletedEventType
	if exec.Status == models.StatusFailed {
		eventType = FailedEventType
	}

	e := cloudevents.NewEvent()
	e.SetID(uuid.NewString())
	e.SetSource(n.source)
	e.SetType(eventType)
	e.SetSubject(exec.DocumentID)
	e.SetTime(exec.UpdatedAt)
	err := e.SetData(cloudevents.ApplicationJSON, Outcome{
		ExecutionID:   exec.ID,
		DocumentID:    exec.DocumentID,
		ObjectRef:     exec.ObjectRef,
		Status:        exec.Status,
		FailureReason: exec.FailureReason,
		FailedStage:   exec.FailedStage,
		ErrorDetails:  exec.ErrorDetails,
		ThumbnailRef:  exec.Payload.String(models.KeyThumbnailRef),
		PollAttempts:  exec.Attempt,
		FinishedAt:    exec.UpdatedAt,
	})
	if err != nil {
		return e, fmt.Errorf("failed to encode outcome event: %w", err)
	}
	return e, nil
}

// Close releases the underlying writer.
func (n *EventNotifier) Close(ctx context.Context) error {
	return n.writer.Close(ctx)
}
