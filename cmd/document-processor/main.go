package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/docenrich/internal/app"
	"github.com/Lllllllleong/docenrich/internal/config"
	"github.com/Lllllllleong/docenrich/internal/models"
)

var (
	pipelineApp *app.App
	once        sync.Once
	initErr     error
	logLevel    = new(slog.LevelVar)
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// Register the CloudEvent function for "object finalized" notifications.
	functions.CloudEvent("ProcessUpload", processUpload)
}

// main is required by the Go Functions Framework.
func main() {}

func processUpload(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		var cfg *config.Config
		cfg, initErr = config.Load()
		if initErr != nil {
			return
		}
		logLevel.Set(cfg.SlogLevel())
		pipelineApp, initErr = app.New(context.Background(), cfg)
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent models.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	return pipelineApp.ProcessUpload(ctx, gcsEvent)
}
