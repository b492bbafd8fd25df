package notify

import (
	"context"
	"fmt"
	"log/slog"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// HTTPWriter posts events to a sink in binary content mode.
type HTTPWriter struct {
	client cloudevents.Client
	target string
}

func NewHTTPWriter(target string) (*HTTPWriter, error) {
	client, err := cloudevents.NewClientHTTP(cloudevents.WithTarget(target))
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudevents client: %w", err)
	}
	return &HTTPWriter{client: client, target: target}, nil
}

func (w *HTTPWriter) Write(ctx context.Context, _ string, e cloudevents.Event) error {
	result := w.client.Send(ctx, e)
	if cloudevents.IsUndelivered(result) {
		return fmt.Errorf("event not delivered to %s: %w", w.target, result)
	}
	if !cloudevents.IsACK(result) {
		return fmt.Errorf("event rejected by %s: %w", w.target, result)
	}
	return nil
}

func (w *HTTPWriter) Close(_ context.Context) error {
	return nil
}

// LogWriter logs events instead of delivering them. Used when no sink is
// configured.
type LogWriter struct{}

func (LogWriter) Write(_ context.Context, topic string, e cloudevents.Event) error {
	slog.Info("Execution outcome.", "topic", topic, "type", e.Type(), "subject", e.Subject(), "data", string(e.Data()))
	return nil
}

func (LogWriter) Close(_ context.Context) error {
	return nil
}
