package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Lllllllleong/docenrich/internal/models"
	"github.com/Lllllllleong/docenrich/internal/storage"
)

// Custom object metadata keys set by the uploader.
const (
	metaFileName = "filename"
	metaEncoding = "encoding"
	metaOwner    = "owner"
	metaName     = "name"
	metaTags     = "tags"
)

// MetadataExtractor reads the source object and records its structural
// metadata.
type MetadataExtractor struct {
	store storage.ObjectStore
}

func NewMetadataExtractor(store storage.ObjectStore) *MetadataExtractor {
	return &MetadataExtractor{store: store}
}

func (m *MetadataExtractor) Execute(ctx context.Context, in models.StageInput) (models.Payload, error) {
	sourceRef := in.Payload.String(models.KeySourceRef)
	logCtx := slog.With("documentId", in.DocumentID, "executionId", in.ExecutionID, "sourceRef", sourceRef)

	obj, err := m.store.Get(ctx, sourceRef)
	if err != nil {
		return nil, models.Fail(models.ReasonUnreadableSource, fmt.Errorf("failed to read source: %w", err))
	}
	if len(obj.Data) == 0 {
		return nil, models.Fail(models.ReasonUnreadableSource, fmt.Errorf("%w: %s", ErrEmptySource, sourceRef))
	}

	contentType := obj.DetectedContentType()
	out := models.Payload{
		models.KeyContentType: contentType,
		models.KeySizeBytes:   int64(len(obj.Data)),
		models.KeyFileHash:    calculateHash(obj.Data),
		models.KeyFileName:    fileName(sourceRef, obj.Metadata),
	}
	if enc := encodingOf(obj); enc != "" {
		out[models.KeyEncoding] = enc
	}
	if !obj.Created.IsZero() {
		out[models.KeyUploadedAt] = obj.Created.UTC()
	}
	if owner := obj.Metadata[metaOwner]; owner != "" {
		out[models.KeyOwner] = owner
	}
	if name := obj.Metadata[metaName]; name != "" {
		out[models.KeyName] = name
	}
	if tags := splitTags(obj.Metadata[metaTags]); len(tags) > 0 {
		out[models.KeyTags] = tags
	}

	switch {
	case contentType == "application/pdf":
		pageCount, err := countPDFPages(obj.Data)
		if err != nil {
			// Page count is optional; a PDF pdfcpu cannot parse may still render.
			logCtx.Warn("Failed to get page count.", "error", err)
		} else {
			out[models.KeyPageCount] = pageCount
		}
	case strings.HasPrefix(contentType, "image/"):
		out[models.KeyPageCount] = 1
	}

	logCtx.Info("Metadata extracted.", "contentType", contentType, "sizeBytes", len(obj.Data))
	return out, nil
}

func encodingOf(obj *storage.Object) string {
	if obj.ContentEncoding != "" {
		return obj.ContentEncoding
	}
	if enc := obj.Metadata[metaEncoding]; enc != "" {
		return enc
	}
	if _, params, err := mime.ParseMediaType(obj.ContentType); err == nil {
		return params["charset"]
	}
	return ""
}

func fileName(sourceRef string, metadata map[string]string) string {
	if name := metadata[metaFileName]; name != "" {
		return name
	}
	return path.Base(sourceRef)
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func countPDFPages(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(data), conf)
}

func calculateHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
