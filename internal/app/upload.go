package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/docenrich/internal/models"
	"github.com/Lllllllleong/docenrich/internal/store"
)

// ProcessUpload runs the pipeline for a storage notification. A failed
// execution is an outcome, not an invocation error: it has been recorded and
// notified, and redelivering the event would start a fresh execution. Only a
// failure to create the execution is returned, including a document held by
// a live execution, so the trigger redelivers once that execution finishes
// or its lease expires.
func (a *App) ProcessUpload(ctx context.Context, e models.GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if e.Bucket == "" || e.Name == "" {
		logCtx.Error("Event is missing bucket or object name.")
		return fmt.Errorf("invalid storage event: bucket and name are required")
	}
	if a.Config != nil {
		if e.Bucket == a.Config.AssetBucket {
			logCtx.Info("Ignoring derived asset.", "assetBucket", a.Config.AssetBucket)
			return nil
		}
		if a.Config.UploadBucket != "" && e.Bucket != a.Config.UploadBucket {
			logCtx.Info("Ignoring object outside the upload bucket.", "uploadBucket", a.Config.UploadBucket)
			return nil
		}
	}

	exec, err := a.Orchestrator.Start(ctx, e.UploadEvent())
	if err != nil {
		if errors.Is(err, store.ErrExecutionInProgress) {
			logCtx.Warn("Execution already running for this document. Asking for redelivery.", "error", err)
			return fmt.Errorf("document busy: %w", err)
		}
		logCtx.Error("Failed to start execution", "error", err)
		return err
	}

	logCtx.Info("Execution finished.",
		"executionId", exec.ID,
		"documentId", exec.DocumentID,
		"status", exec.Status,
		"failureReason", exec.FailureReason)
	return nil
}
