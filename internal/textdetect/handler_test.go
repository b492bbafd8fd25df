package textdetect

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/docenrich/internal/models"
)

func TestHandler(t *testing.T) {
	engine := engineFunc(func(_ context.Context, objectRef string) (*models.RawResult, error) {
		return &models.RawResult{Pages: []models.RawPage{{Page: 1, Blocks: []models.RawBlock{{Type: models.BlockLine, Text: objectRef}}}}}, nil
	})
	rec := httptest.NewRecorder()
	NewHandler(engine).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"objectRef":"gs://uploads/a.pdf"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.TextDetectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "gs://uploads/a.pdf", resp.Result.Pages[0].Blocks[0].Text)
}

func TestHandlerErrors(t *testing.T) {
	failing := engineFunc(func(context.Context, string) (*models.RawResult, error) {
		return nil, errors.New("ocr failed")
	})
	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{name: "wrong method", method: http.MethodGet, want: http.StatusMethodNotAllowed},
		{name: "bad json", method: http.MethodPost, body: "{", want: http.StatusBadRequest},
		{name: "missing ref", method: http.MethodPost, body: `{}`, want: http.StatusBadRequest},
		{name: "engine failure", method: http.MethodPost, body: `{"objectRef":"gs://uploads/a.pdf"}`, want: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHandler(failing).ServeHTTP(rec, httptest.NewRequest(tc.method, "/", strings.NewReader(tc.body)))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
