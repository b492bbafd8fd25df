package textdetect

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Lllllllleong/docenrich/internal/models"
)

// Handler serves synchronous detection requests from the text-detection
// workflow. The response result becomes the workflow execution result.
type Handler struct {
	engine Engine
}

func NewHandler(engine Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.TextDetectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}
	if req.ObjectRef == "" {
		http.Error(w, "Bad Request: objectRef is required", http.StatusBadRequest)
		return
	}
	logCtx := slog.With("objectRef", req.ObjectRef, "executionId", req.ExecutionID)
	logCtx.Info("Starting text detection.")

	result, err := h.engine.Detect(r.Context(), req.ObjectRef)
	if err != nil {
		// The workflow treats a 5xx as a failed step.
		logCtx.Error("Text detection failed", "error", err)
		http.Error(w, "Internal Server Error: text detection failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(models.TextDetectionResponse{Status: "success", Result: *result}); err != nil {
		logCtx.Error("Failed to write response", "error", err)
		return
	}
	logCtx.Info("Text detection complete.", "pages", len(result.Pages))
}
