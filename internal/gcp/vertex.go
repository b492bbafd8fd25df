package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// --- Text Detection Model Prompts ---
const TextDetectionSystemPrompt = "You are an optical character recognition engine. Your task is to transcribe every piece of text visible in a document, page by page, and report it as structured JSON. Accuracy and completeness are of utmost importance."
const TextDetectionUserPrompt = `You will be provided with a document.

Follow these instructions to transcribe it:

1.  Process the pages in order. Page numbers start at 1.
2.  For every page, emit one block per visual line of text, top to bottom, left to right.
3.  Each block is a JSON object with exactly these keys:
    - "type": always the string "LINE".
    - "text": the exact text of the line. Do not correct spelling, do not translate.
    - "confidence": a number between 0 and 100 expressing how certain you are of the transcription.
4.  Images: transcribe text that appears inside images. Do not describe images.
5.  Pages without any text still appear, with an empty "blocks" array.
6.  The final output MUST be a single JSON object of the form below. Do not include any text before or after it.

Example output format:
{
  "pages": [
    {
      "page": 1,
      "blocks": [
        {"type": "LINE", "text": "Quarterly Report", "confidence": 99.1},
        {"type": "LINE", "text": "Prepared by the finance team", "confidence": 97.4}
      ]
    }
  ]
}`

// VertexClient holds the pre-configured generative model for text detection.
type VertexClient struct {
	TextDetectionModel *genai.GenerativeModel
	baseClient         *genai.Client
}

// NewVertexClient creates a new client holding the text-detection model.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := baseClient.GenerativeModel(modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(TextDetectionSystemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		// Force JSON output. The result parser rejects anything else.
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &VertexClient{
		TextDetectionModel: model,
		baseClient:         baseClient,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
