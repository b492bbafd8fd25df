// Package app builds the pipeline and its backends from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"

	"github.com/Lllllllleong/docenrich/internal/config"
	"github.com/Lllllllleong/docenrich/internal/gcp"
	"github.com/Lllllllleong/docenrich/internal/notify"
	"github.com/Lllllllleong/docenrich/internal/pipeline"
	"github.com/Lllllllleong/docenrich/internal/render"
	"github.com/Lllllllleong/docenrich/internal/services"
	"github.com/Lllllllleong/docenrich/internal/storage"
	"github.com/Lllllllleong/docenrich/internal/store"
	"github.com/Lllllllleong/docenrich/internal/textdetect"
)

// App holds the orchestrator and every handle it was built from.
type App struct {
	Config       *config.Config
	Orchestrator *pipeline.Orchestrator
	Objects      storage.ObjectStore
	Documents    store.DocumentStore
	Executions   store.ExecutionStore
	Jobs         textdetect.JobService

	closers []func() error
}

// New connects to the configured backends and wires the standard pipeline.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	slog.Info("Pipeline initialized.",
		"objectStore", cfg.ObjectStoreBackend,
		"textDetection", cfg.TextDetectionBackend,
		"maxPollAttempts", cfg.PollMaxAttempts)
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	objects, err := a.objectStore(ctx)
	if err != nil {
		return err
	}
	a.Objects = objects

	fsClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID, cfg.FirestoreDatabase)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, fsClient.Close)
	a.Documents = store.NewFirestoreDocuments(fsClient, cfg.DocumentsCollection)
	a.Executions = store.NewFirestoreExecutions(fsClient, cfg.ExecutionsCollection)

	rasterizer := render.NewFitz()
	jobs, err := a.jobService(ctx, fsClient, rasterizer)
	if err != nil {
		return err
	}
	a.Jobs = jobs

	notifier, err := a.notifier()
	if err != nil {
		return err
	}

	def := pipeline.Standard(pipeline.Stages{
		Metadata:  services.NewMetadataExtractor(objects),
		Thumbnail: services.NewThumbnailGenerator(objects, rasterizer, cfg.AssetBucket, cfg.ThumbnailWidth),
		Submit:    services.NewTextDetectionSubmitter(jobs),
		Poll:      services.NewTextDetectionPoller(jobs, objects, cfg.AssetBucket),
		Parse:     services.NewResultParser(objects),
		Persist:   services.NewDocumentPersister(a.Documents),
	}, RetryPolicy(cfg), Timeouts(cfg))

	orch, err := pipeline.New(def, a.Executions, pipeline.WithNotifier(notifier), pipeline.WithLeaseGrace(cfg.ExecutionLeaseGrace))
	if err != nil {
		return err
	}
	a.Orchestrator = orch
	return nil
}

func (a *App) objectStore(ctx context.Context) (storage.ObjectStore, error) {
	cfg := a.Config
	switch cfg.ObjectStoreBackend {
	case config.ObjectStoreMinIO:
		return storage.NewMinIO(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOUseSSL)
	default:
		client, err := gcp.NewStorageClient(ctx)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return storage.NewGCS(client), nil
	}
}

func (a *App) jobService(ctx context.Context, fsClient *firestore.Client, rasterizer render.Rasterizer) (textdetect.JobService, error) {
	cfg := a.Config
	if cfg.TextDetectionBackend == config.TextDetectionWorkflow {
		client, err := gcp.NewExecutionsClient(ctx)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return textdetect.NewWorkflowJobService(client, gcp.WorkflowParent(cfg.ProjectID, cfg.WorkflowLocation, cfg.WorkflowID)), nil
	}

	engine, err := a.engine(ctx, cfg.TextDetectionBackend, rasterizer)
	if err != nil {
		return nil, err
	}
	runner := textdetect.NewRunner(engine, textdetect.NewFirestoreJobRecords(fsClient, cfg.JobsCollection), cfg.MaxConcurrentJobs)
	a.closers = append(a.closers, runner.Close)
	return runner, nil
}

func (a *App) engine(ctx context.Context, name string, rasterizer render.Rasterizer) (textdetect.Engine, error) {
	cfg := a.Config
	switch name {
	case config.TextDetectionVertex:
		vertexClient, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion, cfg.VertexModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		a.closers = append(a.closers, vertexClient.Close)
		return textdetect.NewVertexEngine(vertexClient), nil
	case config.TextDetectionTesseract:
		if a.Objects == nil {
			objects, err := a.objectStore(ctx)
			if err != nil {
				return nil, err
			}
			a.Objects = objects
		}
		return textdetect.NewTesseractEngine(a.Objects, rasterizer, cfg.TesseractLanguages), nil
	default:
		return nil, fmt.Errorf("unknown text-detection engine %q", name)
	}
}

func (a *App) notifier() (*notify.EventNotifier, error) {
	if a.Config.NotifySinkURL == "" {
		return notify.NewEventNotifier(notify.LogWriter{}, a.Config.EventSource), nil
	}
	writer, err := notify.NewHTTPWriter(a.Config.NotifySinkURL)
	if err != nil {
		return nil, err
	}
	return notify.NewEventNotifier(writer, a.Config.EventSource), nil
}

// NewEngine builds only the synchronous engine named by TEXT_DETECTOR_ENGINE,
// for the text-detector function. The returned func releases its clients.
func NewEngine(ctx context.Context, cfg *config.Config) (textdetect.Engine, func() error, error) {
	a := &App{Config: cfg}
	engine, err := a.engine(ctx, cfg.DetectorEngine, render.NewFitz())
	if err != nil {
		_ = a.Close()
		return nil, nil, err
	}
	return engine, a.Close, nil
}

// RetryPolicy maps the POLL_* settings.
func RetryPolicy(cfg *config.Config) pipeline.RetryPolicy {
	return pipeline.RetryPolicy{
		MaxAttempts:       cfg.PollMaxAttempts,
		BaseInterval:      cfg.PollBaseInterval,
		BackoffMultiplier: cfg.PollBackoffMultiplier,
	}
}

// Timeouts maps the *_TIMEOUT settings.
func Timeouts(cfg *config.Config) pipeline.Timeouts {
	return pipeline.Timeouts{
		Metadata:  cfg.MetadataTimeout,
		Thumbnail: cfg.ThumbnailTimeout,
		Submit:    cfg.SubmitTimeout,
		Poll:      cfg.PollTimeout,
		Parse:     cfg.ParseTimeout,
		Persist:   cfg.PersistTimeout,
	}
}

// Close releases clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
