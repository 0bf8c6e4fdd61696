package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/lehigh-university-libraries/datagen/internal/providers"
)

// DefaultModel is used when the request names no model
const DefaultModel = "llava"

// Ollama is a provider for a local Ollama server
type Ollama struct {
	httpClient *http.Client
}

// New returns a new Ollama provider. A nil client uses http.DefaultClient.
func New(httpClient *http.Client) *Ollama {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Ollama{httpClient: httpClient}
}

// generateURL appends /api/generate when the endpoint is a bare host.
func generateURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to parse endpoint: %w", err)
	}
	if strings.Trim(u.Path, "/") == "" {
		u.Path = "/api/generate"
	}
	return u.String(), nil
}

// Describe sends the image and instruction and returns the model description
func (o *Ollama) Describe(ctx context.Context, config providers.Config) (string, error) {
	endpoint, err := generateURL(config.Endpoint)
	if err != nil {
		return "", err
	}
	model := config.Model
	if model == "" {
		model = DefaultModel
	}

	requestBody, err := json.Marshal(map[string]interface{}{
		"model":  model,
		"system": config.Instruction,
		"prompt": config.UserPrompt(),
		"images": []string{base64.StdEncoding.EncodeToString(config.Image)},
		"stream": false,
		"options": map[string]interface{}{
			"temperature": config.Temperature,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	return providers.CleanOutput(response.Response), nil
}
