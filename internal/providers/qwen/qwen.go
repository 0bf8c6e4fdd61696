package qwen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/datagen/internal/providers"
)

// DefaultModel is used when the request names no model
const DefaultModel = "qwen3-vl-plus"

// Qwen calls the DashScope multimodal generation API
type Qwen struct {
	httpClient *http.Client
}

// New returns a new Qwen provider. A nil client uses http.DefaultClient.
func New(httpClient *http.Client) *Qwen {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Qwen{httpClient: httpClient}
}

type generationRequest struct {
	Model      string           `json:"model"`
	Input      generationInput  `json:"input"`
	Parameters generationParams `json:"parameters"`
}

type generationInput struct {
	Messages []generationMessage `json:"messages"`
}

type generationMessage struct {
	Role    string              `json:"role"`
	Content []generationContent `json:"content"`
}

type generationContent struct {
	Image string `json:"image,omitempty"`
	Text  string `json:"text,omitempty"`
}

type generationParams struct {
	Temperature float64 `json:"temperature"`
}

type generationResponse struct {
	Output struct {
		Choices []struct {
			Message struct {
				Content []struct {
					Text string `json:"text"`
				} `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// Describe sends the image and instruction and returns the model description
func (q *Qwen) Describe(ctx context.Context, config providers.Config) (string, error) {
	model := strings.TrimSpace(config.Model)
	if model == "" {
		model = DefaultModel
	}
	payload := generationRequest{
		Model: model,
		Input: generationInput{
			Messages: []generationMessage{
				{Role: "system", Content: []generationContent{{Text: config.Instruction}}},
				{Role: "user", Content: []generationContent{
					{Image: config.DataURL()},
					{Text: config.UserPrompt()},
				}},
			},
		},
		Parameters: generationParams{Temperature: config.Temperature},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("qwen: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("qwen: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+config.APIKey)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("qwen: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("qwen: read response: %w", err)
	}

	var parsed generationResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode >= 300 {
		if decodeErr == nil && parsed.Message != "" {
			return "", fmt.Errorf("qwen: http %d: %s (%s)", resp.StatusCode, parsed.Message, parsed.Code)
		}
		return "", fmt.Errorf("qwen: http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if decodeErr != nil {
		return "", fmt.Errorf("qwen: decode response: %w", decodeErr)
	}
	if parsed.Code != "" {
		return "", fmt.Errorf("qwen: api error %s: %s", parsed.Code, parsed.Message)
	}
	if len(parsed.Output.Choices) == 0 || len(parsed.Output.Choices[0].Message.Content) == 0 {
		return "", errors.New("qwen: empty response")
	}
	return providers.CleanOutput(parsed.Output.Choices[0].Message.Content[0].Text), nil
}
