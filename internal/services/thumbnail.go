package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/docenrich/internal/models"
	"github.com/Lllllllleong/docenrich/internal/render"
	"github.com/Lllllllleong/docenrich/internal/storage"
)

// ThumbnailGenerator renders a PNG preview of the first page and writes it
// to the asset bucket.
type ThumbnailGenerator struct {
	store       storage.ObjectStore
	rasterizer  render.Rasterizer
	assetBucket string
	width       int
}

func NewThumbnailGenerator(store storage.ObjectStore, rasterizer render.Rasterizer, assetBucket string, width int) *ThumbnailGenerator {
	return &ThumbnailGenerator{store: store, rasterizer: rasterizer, assetBucket: assetBucket, width: width}
}

func (g *ThumbnailGenerator) Execute(ctx context.Context, in models.StageInput) (models.Payload, error) {
	sourceRef := in.Payload.String(models.KeySourceRef)
	logCtx := slog.With("documentId", in.DocumentID, "executionId", in.ExecutionID, "sourceRef", sourceRef)

	obj, err := g.store.Get(ctx, sourceRef)
	if err != nil {
		return nil, models.Fail(models.ReasonUnreadableSource, fmt.Errorf("failed to read source: %w", err))
	}

	// The type recorded by metadata extraction wins over the stored attribute.
	contentType := in.Payload.String(models.KeyContentType)
	if contentType == "" {
		contentType = obj.DetectedContentType()
	}

	firstPage, err := g.firstPage(contentType, obj.Data)
	if err != nil {
		return nil, models.Fail(models.ReasonUnsupportedFormat, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, render.Fit(firstPage, g.width)); err != nil {
		return nil, models.Fail(models.ReasonUnsupportedFormat, fmt.Errorf("failed to encode thumbnail: %w", err))
	}

	key := fmt.Sprintf("thumbnails/%s.png", in.DocumentID)
	thumbnailRef, err := g.store.Put(ctx, g.store.Ref(g.assetBucket, key), buf.Bytes(), "image/png")
	if err != nil {
		return nil, models.Fail(models.ReasonStorageWriteError, fmt.Errorf("failed to write thumbnail: %w", err))
	}

	logCtx.Info("Thumbnail written.", "thumbnailRef", thumbnailRef, "bytes", buf.Len())
	return models.Payload{models.KeyThumbnailRef: thumbnailRef}, nil
}

func (g *ThumbnailGenerator) firstPage(contentType string, data []byte) (image.Image, error) {
	switch {
	case contentType == "application/pdf":
		img, err := g.rasterizer.FirstPage(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		return img, nil
	case contentType == "image/png", contentType == "image/jpeg", contentType == "image/gif":
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decode %s: %v", ErrUnsupportedFormat, contentType, err)
		}
		return img, nil
	default:
		if strings.TrimSpace(contentType) == "" {
			contentType = "unknown"
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, contentType)
	}
}
