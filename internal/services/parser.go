package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Lllllllleong/docenrich/internal/models"
	"github.com/Lllllllleong/docenrich/internal/storage"
)

// Separators used when consolidating text.
const (
	lineSeparator = "\n"
	pageSeparator = "\n\n"
)

// ResultParser consolidates the raw per-page, per-block detection result
// into a single text with per-block confidences.
type ResultParser struct {
	store storage.ObjectStore
}

// NewResultParser creates a parser reading stored raw results from store.
func NewResultParser(store storage.ObjectStore) *ResultParser { return &ResultParser{store: store} }

func (p *ResultParser) Execute(ctx context.Context, in models.StageInput) (models.Payload, error) {
	raw, err := p.rawResult(ctx, in.Payload)
	if err != nil {
		return nil, err
	}

	var result models.RawResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, models.Fail(models.ReasonMalformedResult, fmt.Errorf("failed to decode raw result: %w", err))
	}
	if err := validateResult(result); err != nil {
		return nil, models.Fail(models.ReasonMalformedResult, err)
	}

	text, confidences := consolidate(result)
	out := models.Payload{
		models.KeyText:       text,
		models.KeyBlockCount: len(confidences.blocks),
	}
	if len(confidences.values) > 0 {
		out[models.KeyConfidences] = confidences.values
		out[models.KeyMeanConfidence] = mean(confidences.values)
	}

	slog.Info("Text consolidated.", "documentId", in.DocumentID, "executionId", in.ExecutionID,
		"pages", len(result.Pages), "blocks", len(confidences.blocks), "chars", len(text))
	return out, nil
}

// rawResult returns the stored result when the payload references one and
// the inline result otherwise.
func (p *ResultParser) rawResult(ctx context.Context, payload models.Payload) (string, error) {
	if ref := payload.String(models.KeyRawResultRef); ref != "" {
		if p.store == nil {
			return "", fmt.Errorf("no object store to read raw result %s", ref)
		}
		obj, err := p.store.Get(ctx, ref)
		if err != nil {
			return "", models.Fail(models.ReasonMalformedResult, fmt.Errorf("failed to read raw result: %w", err))
		}
		return string(obj.Data), nil
	}
	raw := payload.String(models.KeyRawResult)
	if raw == "" {
		return "", models.Fail(models.ReasonMalformedResult, fmt.Errorf("%w: %s or %s", ErrMissingField, models.KeyRawResultRef, models.KeyRawResult))
	}
	return raw, nil
}

func validateResult(result models.RawResult) error {
	if result.Pages == nil {
		return fmt.Errorf("raw result has no pages field")
	}
	seen := make(map[int]bool, len(result.Pages))
	for i, page := range result.Pages {
		if page.Page < 1 {
			return fmt.Errorf("page entry %d has invalid page number %d", i, page.Page)
		}
		if seen[page.Page] {
			return fmt.Errorf("page %d appears more than once", page.Page)
		}
		seen[page.Page] = true
		for j, block := range page.Blocks {
			if block.Type == "" {
				return fmt.Errorf("page %d block %d has no type", page.Page, j)
			}
			if c := block.Confidence; c != nil && (*c < 0 || *c > 100) {
				return fmt.Errorf("page %d block %d has confidence %v outside 0..100", page.Page, j, *c)
			}
		}
	}
	return nil
}

type blockScores struct {
	blocks []models.RawBlock
	values []float64
}

// consolidate orders pages by number and joins their lines. Pages without
// LINE blocks fall back to their WORD blocks.
func consolidate(result models.RawResult) (string, blockScores) {
	pages := make([]models.RawPage, len(result.Pages))
	copy(pages, result.Pages)
	sort.Slice(pages, func(i, j int) bool { return pages[i].Page < pages[j].Page })

	var scores blockScores
	pageTexts := make([]string, 0, len(pages))
	for _, page := range pages {
		blocks := blocksOfType(page.Blocks, models.BlockLine)
		sep := lineSeparator
		if len(blocks) == 0 {
			blocks = blocksOfType(page.Blocks, models.BlockWord)
			sep = " "
		}

		parts := make([]string, 0, len(blocks))
		for _, b := range blocks {
			parts = append(parts, b.Text)
			scores.blocks = append(scores.blocks, b)
			if b.Confidence != nil {
				scores.values = append(scores.values, *b.Confidence)
			}
		}
		if text := strings.Join(parts, sep); text != "" {
			pageTexts = append(pageTexts, text)
		}
	}
	return strings.Join(pageTexts, pageSeparator), scores
}

func blocksOfType(blocks []models.RawBlock, blockType string) []models.RawBlock {
	var out []models.RawBlock
	for _, b := range blocks {
		if strings.EqualFold(b.Type, blockType) && strings.TrimSpace(b.Text) != "" {
			out = append(out, b)
		}
	}
	return out
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
