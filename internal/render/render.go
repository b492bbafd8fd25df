// Package render rasterizes document pages.
package render

import (
	"errors"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// ErrNoPages indicates a document without any page to render.
var ErrNoPages = errors.New("document has no pages")

// Rasterizer renders PDF pages to images.
type Rasterizer interface {
	// FirstPage renders page one.
	FirstPage(data []byte) (image.Image, error)
	// Pages renders every page in order.
	Pages(data []byte, dpi float64) ([]image.Image, error)
}

// Fitz renders with MuPDF through go-fitz.
type Fitz struct{}

func NewFitz() *Fitz { return &Fitz{} }

func (Fitz) FirstPage(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, ErrNoPages
	}
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("failed to render page 1: %w", err)
	}
	return img, nil
}

func (Fitz) Pages(data []byte, dpi float64) ([]image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, ErrNoPages
	}
	images := make([]image.Image, 0, pageCount)
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		img, err := doc.ImageDPI(pageNum, dpi)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", pageNum+1, err)
		}
		images = append(images, img)
	}
	return images, nil
}
