package render

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFit(t *testing.T) {
	tests := []struct {
		name       string
		w, h       int
		maxWidth   int
		wantW      int
		wantH      int
		wantSameIn bool
	}{
		{name: "scales down keeping ratio", w: 800, h: 1000, maxWidth: 200, wantW: 200, wantH: 250},
		{name: "small image untouched", w: 100, h: 50, maxWidth: 200, wantW: 100, wantH: 50, wantSameIn: true},
		{name: "zero width disables scaling", w: 800, h: 600, maxWidth: 0, wantW: 800, wantH: 600, wantSameIn: true},
		{name: "very wide image keeps one row", w: 10000, h: 2, maxWidth: 100, wantW: 100, wantH: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := image.NewRGBA(image.Rect(0, 0, tc.w, tc.h))
			got := Fit(src, tc.maxWidth)
			assert.Equal(t, tc.wantW, got.Bounds().Dx())
			assert.Equal(t, tc.wantH, got.Bounds().Dy())
			if tc.wantSameIn {
				assert.Same(t, src, got)
			}
		})
	}
}
