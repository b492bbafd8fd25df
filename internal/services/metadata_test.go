package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/docenrich/internal/models"
	"github.com/Lllllllleong/docenrich/internal/storage"
)

func TestMetadataExtractorPDF(t *testing.T) {
	store := storage.NewMemory()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ref := store.Ref("uploads", "reports/q1.pdf")
	data := twoPagePDF()
	store.Seed(ref, storage.Object{
		Data:    data,
		Created: created,
		Metadata: map[string]string{
			"owner":    "user-7",
			"name":     "Q1 report",
			"tags":     "finance, quarterly,,",
			"filename": "Q1 Report.pdf",
		},
	})

	out, err := NewMetadataExtractor(store).Execute(context.Background(), input(models.Payload{models.KeySourceRef: ref}))
	require.NoError(t, err)

	pages, ok := out.Int(models.KeyPageCount)
	require.True(t, ok)
	assert.Equal(t, 2, pages)
	assert.Equal(t, "application/pdf", out.String(models.KeyContentType))
	assert.Equal(t, "Q1 Report.pdf", out.String(models.KeyFileName))
	assert.Equal(t, "user-7", out.String(models.KeyOwner))
	assert.Equal(t, "Q1 report", out.String(models.KeyName))
	assert.Equal(t, []string{"finance", "quarterly"}, out.Strings(models.KeyTags))
	assert.Equal(t, created, out.Time(models.KeyUploadedAt))
	assert.Equal(t, int64(len(data)), out[models.KeySizeBytes])
	assert.Len(t, out.String(models.KeyFileHash), 64)
}

func TestMetadataExtractorImage(t *testing.T) {
	store := storage.NewMemory()
	ref := store.Ref("uploads", "scans/page.png")
	store.Seed(ref, storage.Object{Data: pngImage(10, 10), ContentType: "image/png; charset=binary"})

	out, err := NewMetadataExtractor(store).Execute(context.Background(), input(models.Payload{models.KeySourceRef: ref}))
	require.NoError(t, err)

	assert.Equal(t, "image/png", out.String(models.KeyContentType))
	assert.Equal(t, "binary", out.String(models.KeyEncoding))
	assert.Equal(t, "page.png", out.String(models.KeyFileName))
	pages, ok := out.Int(models.KeyPageCount)
	require.True(t, ok)
	assert.Equal(t, 1, pages)
	assert.NotContains(t, out, models.KeyOwner)
}

func TestMetadataExtractorUnparseablePDFOmitsPageCount(t *testing.T) {
	store := storage.NewMemory()
	ref := store.Ref("uploads", "broken.pdf")
	store.Seed(ref, storage.Object{Data: []byte("%PDF-1.4\nnot really a pdf"), ContentType: "application/pdf"})

	out, err := NewMetadataExtractor(store).Execute(context.Background(), input(models.Payload{models.KeySourceRef: ref}))
	require.NoError(t, err)
	assert.NotContains(t, out, models.KeyPageCount)
}

func TestMetadataExtractorUnreadableSource(t *testing.T) {
	store := storage.NewMemory()
	empty := store.Ref("uploads", "empty.pdf")
	store.Seed(empty, storage.Object{})

	tests := []struct {
		name string
		ref  string
	}{
		{name: "missing object", ref: store.Ref("uploads", "missing.pdf")},
		{name: "empty object", ref: empty},
		{name: "invalid reference", ref: "not-a-ref"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewMetadataExtractor(store).Execute(context.Background(), input(models.Payload{models.KeySourceRef: tc.ref}))
			require.Error(t, err)
			assert.Equal(t, models.ReasonUnreadableSource, models.ReasonOf(err, ""))
		})
	}
}
