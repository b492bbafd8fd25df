package textdetect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/docenrich/internal/gcp"
	"github.com/Lllllllleong/docenrich/internal/models"
)

// contentGenerator is satisfied by *genai.GenerativeModel.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// VertexEngine transcribes documents with a Gemini model. The model reads
// the object straight from Cloud Storage, so only gs:// references work.
type VertexEngine struct {
	model contentGenerator
}

func NewVertexEngine(client *gcp.VertexClient) *VertexEngine {
	return &VertexEngine{model: client.TextDetectionModel}
}

// Sanity check for LLM refusal.
var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
}

func (e *VertexEngine) Detect(ctx context.Context, objectRef string) (*models.RawResult, error) {
	if !strings.HasPrefix(objectRef, "gs://") {
		return nil, fmt.Errorf("vertex text detection needs a gs:// reference, got %q", objectRef)
	}
	logCtx := slog.With("objectRef", objectRef)

	filePart := genai.FileData{
		MIMEType: mimeTypeOf(objectRef),
		FileURI:  objectRef,
	}
	resp, err := e.model.GenerateContent(ctx, filePart, genai.Text(gcp.TextDetectionUserPrompt))
	if err != nil {
		logCtx.Error("Call to Vertex AI for text detection failed", "error", err)
		return nil, fmt.Errorf("failed to generate content from gemini: %w", err)
	}

	jsonString := extractJSONContent(resp)
	if jsonString == "" {
		return nil, fmt.Errorf("gemini returned an empty response instead of JSON")
	}
	lower := strings.ToLower(jsonString)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			logCtx.Error("Gemini response indicates refusal.", "response", jsonString)
			return nil, fmt.Errorf("gemini response indicates refusal")
		}
	}

	var result models.RawResult
	if err := json.Unmarshal([]byte(jsonString), &result); err != nil {
		logCtx.Error("Failed to unmarshal JSON response from Gemini", "error", err, "responseBody", jsonString)
		return nil, fmt.Errorf("failed to parse JSON from model: %w", err)
	}
	return &result, nil
}

// extractJSONContent returns the text of the first candidate with any
// markdown fence removed.
func extractJSONContent(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	cleanJSON := strings.TrimSpace(sb.String())
	cleanJSON = strings.TrimPrefix(cleanJSON, "```json")
	cleanJSON = strings.TrimPrefix(cleanJSON, "```")
	cleanJSON = strings.TrimSuffix(cleanJSON, "```")
	return strings.TrimSpace(cleanJSON)
}

func mimeTypeOf(objectRef string) string {
	if t := mime.TypeByExtension(strings.ToLower(path.Ext(objectRef))); t != "" {
		if base, _, err := mime.ParseMediaType(t); err == nil {
			return base
		}
		return t
	}
	return "application/pdf"
}
