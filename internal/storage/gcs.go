package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCS is an ObjectStore backed by Cloud Storage. References use gs://.
type GCS struct {
	client       *storage.Client
	writeTimeout time.Duration
}

// NewGCS wraps an existing storage client.
func NewGCS(client *storage.Client) *GCS {
	return &GCS{client: client, writeTimeout: 50 * time.Second}
}

func (g *GCS) Ref(bucket, key string) string {
	return Ref{Scheme: "gs", Bucket: bucket, Key: key}.String()
}

// Get reads the object attributes and streams its content into memory.
func (g *GCS) Get(ctx context.Context, ref string) (*Object, error) {
	r, err := parseRefWithScheme(ref, "gs")
	if err != nil {
		return nil, err
	}
	handle := g.client.Bucket(r.Bucket).Object(r.Key)

	attrs, err := handle.Attrs(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("failed to read GCS object attributes for %s: %w", ref, err)
	}

	// Pin the generation so content and attributes describe the same object.
	reader, err := handle.Generation(attrs.Generation).NewReader(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("failed to get GCS object reader for %s: %w", ref, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to copy GCS object %s: %w", ref, err)
	}

	return &Object{
		Data:            data,
		ContentType:     attrs.ContentType,
		ContentEncoding: attrs.ContentEncoding,
		Metadata:        attrs.Metadata,
		Created:         attrs.Created,
	}, nil
}

// Put uploads data, replacing any existing object at ref.
func (g *GCS) Put(ctx context.Context, ref string, data []byte, contentType string) (string, error) {
	r, err := parseRefWithScheme(ref, "gs")
	if err != nil {
		return "", err
	}

	writeCtx, cancel := context.WithTimeout(ctx, g.writeTimeout)
	defer cancel()

	writer := g.client.Bucket(r.Bucket).Object(r.Key).NewWriter(writeCtx)
	writer.ContentType = contentType

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		slog.Error("Failed to write GCS object.", "gcsObject", ref, "error", err)
		return "", fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		slog.Error("Failed to close GCS writer.", "gcsObject", ref, "error", err)
		return "", fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return r.String(), nil
}

// isNotFound also covers a 404 from the JSON API, which is what a read of a
// pinned generation returns when the object was replaced in between.
func isNotFound(err error) bool {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return true
	}
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
