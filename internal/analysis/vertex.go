package analysis

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"floroexpress/internal/domain"
)

// Generator sends one prompt to a text-generation service and returns the
// raw reply.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// VertexGenerator calls a Gemini model on Vertex AI with JSON output.
type VertexGenerator struct {
	model      *genai.GenerativeModel
	baseClient *genai.Client
}

// NewVertexGenerator creates a generator for the configured project.
func NewVertexGenerator(ctx context.Context, settings domain.AnalysisSettings) (*VertexGenerator, error) {
	if !settings.Online() {
		return nil, fmt.Errorf("NewVertexGenerator: project and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, settings.Project, settings.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := baseClient.GenerativeModel(settings.Model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.7),
		MaxOutputTokens:  genai.Ptr[int32](1000),
	}

	return &VertexGenerator{model: model, baseClient: baseClient}, nil
}

// Generate returns the concatenated text parts of the first candidate.
func (g *VertexGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("generate content: empty response")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			out.WriteString(string(txt))
		}
	}
	return out.String(), nil
}

// Close releases the underlying client.
func (g *VertexGenerator) Close() error {
	if g.baseClient != nil {
		return g.baseClient.Close()
	}
	return nil
}
