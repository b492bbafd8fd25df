package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/docenrich/internal/models"
	"github.com/Lllllllleong/docenrich/internal/store"
)

// DocumentPersister writes the enriched document in one upsert keyed by
// document id.
type DocumentPersister struct {
	documents store.DocumentStore
}

func NewDocumentPersister(documents store.DocumentStore) *DocumentPersister {
	return &DocumentPersister{documents: documents}
}

func (p *DocumentPersister) Execute(ctx context.Context, in models.StageInput) (models.Payload, error) {
	doc := DocumentFromPayload(in.DocumentID, in.ExecutionID, in.Payload)
	if err := p.documents.Upsert(ctx, in.DocumentID, doc); err != nil {
		return nil, models.Fail(models.ReasonPersistenceError, fmt.Errorf("failed to persist document: %w", err))
	}
	slog.Info("Document persisted.", "documentId", in.DocumentID, "executionId", in.ExecutionID)
	return models.Payload{models.KeyPersisted: true}, nil
}

// DocumentFromPayload maps the accumulated payload onto a Document.
func DocumentFromPayload(documentID, executionID string, p models.Payload) models.Document {
	pageCount, _ := p.Int(models.KeyPageCount)
	return models.Document{
		ID:             documentID,
		Name:           p.String(models.KeyName),
		SourceRef:      p.String(models.KeySourceRef),
		ThumbnailRef:   p.String(models.KeyThumbnailRef),
		Text:           p.String(models.KeyText),
		Confidences:    p.Floats(models.KeyConfidences),
		MeanConfidence: p.Float(models.KeyMeanConfidence),
		FileDetails: models.FileDetails{
			Encoding:    p.String(models.KeyEncoding),
			ContentType: p.String(models.KeyContentType),
			FileName:    p.String(models.KeyFileName),
		},
		PageCount:   pageCount,
		FileHash:    p.String(models.KeyFileHash),
		Owner:       p.String(models.KeyOwner),
		Tags:        p.Strings(models.KeyTags),
		UploadedAt:  p.Time(models.KeyUploadedAt),
		ExecutionID: executionID,
	}
}
