package textdetect

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/Lllllllleong/docenrich/internal/models"
	"github.com/Lllllllleong/docenrich/internal/render"
	"github.com/Lllllllleong/docenrich/internal/storage"
)

const tesseractDPI = 300

// TesseractEngine runs OCR locally. PDF pages are rendered first; images are
// handed to Tesseract as they are.
type TesseractEngine struct {
	store      storage.ObjectStore
	rasterizer render.Rasterizer
	languages  []string
}

func NewTesseractEngine(store storage.ObjectStore, rasterizer render.Rasterizer, languages string) *TesseractEngine {
	var langs []string
	for _, l := range strings.Split(languages, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return &TesseractEngine{store: store, rasterizer: rasterizer, languages: langs}
}

func (e *TesseractEngine) Detect(ctx context.Context, objectRef string) (*models.RawResult, error) {
	obj, err := e.store.Get(ctx, objectRef)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", objectRef, err)
	}

	pages, err := e.pageImages(obj)
	if err != nil {
		return nil, err
	}

	// A gosseract client is not safe for concurrent use; each job gets its own.
	client := gosseract.NewClient()
	defer client.Close()
	if len(e.languages) > 0 {
		if err := client.SetLanguage(e.languages...); err != nil {
			return nil, fmt.Errorf("failed to set tesseract languages: %w", err)
		}
	}

	result := &models.RawResult{Pages: make([]models.RawPage, 0, len(pages))}
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := client.SetImageFromBytes(page); err != nil {
			return nil, fmt.Errorf("page %d: failed to load image: %w", i+1, err)
		}
		boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
		if err != nil {
			return nil, fmt.Errorf("page %d: ocr failed: %w", i+1, err)
		}

		rawPage := models.RawPage{Page: i + 1, Blocks: make([]models.RawBlock, 0, len(boxes))}
		for _, box := range boxes {
			text := strings.TrimSpace(box.Word)
			if text == "" {
				continue
			}
			confidence := box.Confidence
			rawPage.Blocks = append(rawPage.Blocks, models.RawBlock{
				Type:       models.BlockLine,
				Text:       text,
				Confidence: &confidence,
			})
		}
		result.Pages = append(result.Pages, rawPage)
	}
	slog.Debug("Tesseract detection complete.", "objectRef", objectRef, "pages", len(result.Pages))
	return result, nil
}

// pageImages returns one encoded image per page.
func (e *TesseractEngine) pageImages(obj *storage.Object) ([][]byte, error) {
	if obj.DetectedContentType() != "application/pdf" {
		return [][]byte{obj.Data}, nil
	}

	images, err := e.rasterizer.Pages(obj.Data, tesseractDPI)
	if err != nil {
		return nil, fmt.Errorf("failed to render PDF pages: %w", err)
	}
	encoded := make([][]byte, 0, len(images))
	for i, img := range images {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("page %d: failed to encode image: %w", i+1, err)
		}
		encoded = append(encoded, buf.Bytes())
	}
	return encoded, nil
}
