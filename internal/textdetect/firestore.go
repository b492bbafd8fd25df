package textdetect

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreJobRecords keeps job records in a Firestore collection.
type FirestoreJobRecords struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreJobRecords(client *firestore.Client, collection string) *FirestoreJobRecords {
	return &FirestoreJobRecords{client: client, collection: collection}
}

func (s *FirestoreJobRecords) Put(ctx context.Context, rec JobRecord) error {
	if _, err := s.client.Collection(s.collection).Doc(rec.ID).Set(ctx, rec); err != nil {
		return fmt.Errorf("failed to write job record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *FirestoreJobRecords) Get(ctx context.Context, id string) (*JobRecord, error) {
	snap, err := s.client.Collection(s.collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("failed to read job record %s: %w", id, err)
	}
	var rec JobRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode job record %s: %w", id, err)
	}
	return &rec, nil
}
