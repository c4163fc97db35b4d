package pipeline

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvloznov/cheque-tally/internal/domain"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// GeminiClient creates a genai client configured from the environment
// (GOOGLE_API_KEY, or GOOGLE_GENAI_USE_VERTEXAI with project and location).
func GeminiClient(ctx context.Context) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("GeminiClient: create genai client: %w", err)
	}
	return client, nil
}

// GeminiStructurer implements Structurer with a Gemini text model.
type GeminiStructurer struct {
	client *genai.Client
	model  string
}

// NewGeminiStructurer creates a structurer for model, or DefaultModelName when empty.
func NewGeminiStructurer(client *genai.Client, model string) *GeminiStructurer {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiStructurer{client: client, model: model}
}

// Structure implements Structurer.
func (g *GeminiStructurer) Structure(ctx context.Context, rawText string, kind domain.DocumentKind) (string, error) {
	prompt, err := buildStructuringPrompt(rawText, kind)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("Structure: generate content: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("Structure: empty response from model")
	}
	return text, nil
}

// GeminiTextExtractor implements TextExtractor by sending the PDF inline.
type GeminiTextExtractor struct {
	client *genai.Client
	model  string
}

// NewGeminiTextExtractor creates an extractor for model, or DefaultModelName when empty.
func NewGeminiTextExtractor(client *genai.Client, model string) *GeminiTextExtractor {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiTextExtractor{client: client, model: model}
}

// ExtractText implements TextExtractor.
func (g *GeminiTextExtractor) ExtractText(ctx context.Context, pdfBytes []byte) (string, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: extractionPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: "application/pdf",
						Data:     pdfBytes,
					},
				},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		return "", domain.WrapError(domain.KindUpstreamExtractionFailure, "text extraction failed", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return NoTextFound, nil
	}
	return text, nil
}
