package providers

import (
	"context"
	"encoding/base64"
	"strings"
)

// DefaultPrompt is the user turn sent alongside every image
const DefaultPrompt = "Describe the content of this image"

// Config represents one vision request
type Config struct {
	Endpoint    string
	APIKey      string
	Model       string
	Instruction string
	Prompt      string
	Temperature float64
	Image       []byte
	MIMEType    string
}

// UserPrompt returns the configured prompt or DefaultPrompt.
func (c Config) UserPrompt() string {
	if p := strings.TrimSpace(c.Prompt); p != "" {
		return p
	}
	return DefaultPrompt
}

// ImageMIME returns the configured MIME type, defaulting to image/jpeg.
func (c Config) ImageMIME() string {
	if c.MIMEType == "" {
		return "image/jpeg"
	}
	return c.MIMEType
}

// DataURL encodes the image as a base64 data URL.
func (c Config) DataURL() string {
	return "data:" + c.ImageMIME() + ";base64," + base64.StdEncoding.EncodeToString(c.Image)
}

// Provider defines the interface for a vision model
type Provider interface {
	Describe(ctx context.Context, config Config) (string, error)
}

// Kind identifies a model wire format
type Kind int

const (
	KindOpenAI Kind = iota
	KindQwen
	KindOllama
	KindGemini
	KindDemo
)

func (k Kind) String() string {
	switch k {
	case KindOpenAI:
		return "openai"
	case KindQwen:
		return "qwen"
	case KindOllama:
		return "ollama"
	case KindGemini:
		return "gemini"
	case KindDemo:
		return "demo"
	}
	return "unknown"
}

// Detect picks the wire format from the endpoint URL. Anything unrecognized
// is treated as OpenAI-compatible.
func Detect(endpoint string) Kind {
	e := strings.ToLower(endpoint)
	switch {
	case strings.Contains(e, "dashscope"), strings.Contains(e, "qwen"):
		return KindQwen
	case strings.Contains(e, "generativelanguage"), strings.Contains(e, "gemini"):
		return KindGemini
	case strings.Contains(e, ":11434"), strings.Contains(e, "ollama"):
		return KindOllama
	}
	return KindOpenAI
}

// CleanOutput trims the model output and strips a surrounding markdown fence.
func CleanOutput(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
