// Package store holds the keyed record stores for enriched documents and
// pipeline executions.
package store

import (
	"context"
	"errors"

	"github.com/Lllllllleong/docenrich/internal/models"
)

var (
	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrExecutionInProgress indicates another execution is already running
	// for the same document.
	ErrExecutionInProgress = errors.New("execution already running for document")
)

// DocumentStore persists enriched documents keyed by document id. Upsert
// replaces the whole record in a single write.
type DocumentStore interface {
	Upsert(ctx context.Context, documentID string, doc models.Document) error
	Get(ctx context.Context, documentID string) (*models.Document, error)
}

// ExecutionStore records execution state between stages.
type ExecutionStore interface {
	// Create records a new running execution. It fails with
	// ErrExecutionInProgress when another execution for the same document is
	// still running.
	Create(ctx context.Context, exec *models.Execution) error
	// Save overwrites the stored state of an existing execution.
	Save(ctx context.Context, exec *models.Execution) error
	Get(ctx context.Context, id string) (*models.Execution, error)
	// ListByDocument returns every execution recorded for a document,
	// oldest first.
	ListByDocument(ctx context.Context, documentID string) ([]*models.Execution, error)
}
