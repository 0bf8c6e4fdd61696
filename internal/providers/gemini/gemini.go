package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/lehigh-university-libraries/datagen/internal/providers"
	"google.golang.org/api/option"
)

// DefaultModel is used when the request names no model
const DefaultModel = "gemini-1.5-flash"

// Gemini is a provider for Google Gemini
type Gemini struct {
	opts []option.ClientOption
}

// New returns a new Gemini provider. Extra client options are appended to
// the API key option on every call.
func New(opts ...option.ClientOption) *Gemini {
	return &Gemini{opts: opts}
}

// imageFormat maps a MIME type to the short format genai.ImageData expects.
func imageFormat(mimeType string) string {
	f := strings.TrimPrefix(strings.ToLower(mimeType), "image/")
	if f == "" || f == mimeType {
		return "jpeg"
	}
	return f
}

// Describe sends the image and instruction and returns the model description
func (g *Gemini) Describe(ctx context.Context, config providers.Config) (string, error) {
	if config.APIKey == "" {
		return "", fmt.Errorf("gemini API key not set")
	}

	opts := append([]option.ClientOption{option.WithAPIKey(config.APIKey)}, g.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	modelName := config.Model
	if modelName == "" {
		modelName = DefaultModel
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(float32(config.Temperature))
	if config.Instruction != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(config.Instruction)}}
	}

	resp, err := model.GenerateContent(ctx,
		genai.ImageData(imageFormat(config.MIMEType), config.Image),
		genai.Text(config.UserPrompt()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty content returned from Gemini")
	}

	if txt, ok := candidate.Content.Parts[0].(genai.Text); ok {
		return providers.CleanOutput(string(txt)), nil
	}

	return "", fmt.Errorf("unexpected response format from Gemini")
}
