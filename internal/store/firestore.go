package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/docenrich/internal/models"
)

// FirestoreDocuments stores documents in a Firestore collection, one
// Firestore document per document id.
type FirestoreDocuments struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreDocuments(client *firestore.Client, collection string) *FirestoreDocuments {
	return &FirestoreDocuments{client: client, collection: collection}
}

// Upsert replaces the record with Set, which Firestore applies atomically.
func (s *FirestoreDocuments) Upsert(ctx context.Context, documentID string, doc models.Document) error {
	if _, err := s.client.Collection(s.collection).Doc(documentID).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", documentID, err)
	}
	return nil
}

func (s *FirestoreDocuments) Get(ctx context.Context, documentID string) (*models.Document, error) {
	snap, err := s.client.Collection(s.collection).Doc(documentID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: document %s", ErrNotFound, documentID)
		}
		return nil, fmt.Errorf("failed to get document %s: %w", documentID, err)
	}
	var doc models.Document
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", documentID, err)
	}
	return &doc, nil
}

// FirestoreExecutions stores execution records keyed by execution id.
type FirestoreExecutions struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

func NewFirestoreExecutions(client *firestore.Client, collection string) *FirestoreExecutions {
	return &FirestoreExecutions{client: client, collection: collection, now: func() time.Time { return time.Now().UTC() }}
}

// Create checks for a running execution of the same document and inserts
// the new one in a single transaction. A running execution whose lease has
// expired is marked failed in the same transaction and does not block.
func (s *FirestoreExecutions) Create(ctx context.Context, exec *models.Execution) error {
	coll := s.client.Collection(s.collection)
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		query := coll.Where("documentId", "==", exec.DocumentID).
			Where("status", "==", string(models.StatusRunning))
		docs, err := tx.Documents(query).GetAll()
		if err != nil {
			return fmt.Errorf("failed to query for running executions: %w", err)
		}

		now := s.now()
		var abandoned []*models.Execution
		for _, doc := range docs {
			var running models.Execution
			if err := doc.DataTo(&running); err != nil {
				return fmt.Errorf("failed to decode execution %s: %w", doc.Ref.ID, err)
			}
			if !running.Abandoned(now) {
				return fmt.Errorf("%w: document %s, execution %s", ErrExecutionInProgress, exec.DocumentID, doc.Ref.ID)
			}
			running.Abandon(now)
			abandoned = append(abandoned, &running)
		}

		// Firestore transactions take every read before the first write.
		for _, running := range abandoned {
			if err := tx.Set(coll.Doc(running.ID), running); err != nil {
				return fmt.Errorf("failed to mark execution %s abandoned: %w", running.ID, err)
			}
		}
		if err := tx.Create(coll.Doc(exec.ID), exec); err != nil {
			return fmt.Errorf("failed to create execution %s: %w", exec.ID, err)
		}
		return nil
	})
}

func (s *FirestoreExecutions) Save(ctx context.Context, exec *models.Execution) error {
	if _, err := s.client.Collection(s.collection).Doc(exec.ID).Set(ctx, exec); err != nil {
		return fmt.Errorf("failed to save execution %s: %w", exec.ID, err)
	}
	return nil
}

func (s *FirestoreExecutions) Get(ctx context.Context, id string) (*models.Execution, error) {
	snap, err := s.client.Collection(s.collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: execution %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get execution %s: %w", id, err)
	}
	var exec models.Execution
	if err := snap.DataTo(&exec); err != nil {
		return nil, fmt.Errorf("failed to decode execution %s: %w", id, err)
	}
	return &exec, nil
}

// ListByDocument queries by documentId ordered by createdAt, which needs a
// composite index on the executions collection.
func (s *FirestoreExecutions) ListByDocument(ctx context.Context, documentID string) ([]*models.Execution, error) {
	iter := s.client.Collection(s.collection).
		Where("documentId", "==", documentID).
		OrderBy("createdAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var out []*models.Execution
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list executions for document %s: %w", documentID, err)
		}
		var exec models.Execution
		if err := snap.DataTo(&exec); err != nil {
			return nil, fmt.Errorf("failed to decode execution %s: %w", snap.Ref.ID, err)
		}
		out = append(out, &exec)
	}
	return out, nil
}
