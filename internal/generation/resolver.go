package generation

import (
	"net/http"

	"github.com/lehigh-university-libraries/datagen/internal/providers"
	"github.com/lehigh-university-libraries/datagen/internal/providers/demo"
	"github.com/lehigh-university-libraries/datagen/internal/providers/gemini"
	"github.com/lehigh-university-libraries/datagen/internal/providers/ollama"
	"github.com/lehigh-university-libraries/datagen/internal/providers/openai"
	"github.com/lehigh-university-libraries/datagen/internal/providers/qwen"
)

// NewResolver returns a Resolve function backed by the built-in providers.
// Providers are created once and shared across requests.
func NewResolver(httpClient *http.Client) func(providers.Kind) providers.Provider {
	registry := map[providers.Kind]providers.Provider{
		providers.KindOpenAI: openai.New(httpClient),
		providers.KindQwen:   qwen.New(httpClient),
		providers.KindOllama: ollama.New(httpClient),
		providers.KindGemini: gemini.New(),
		providers.KindDemo:   demo.New(nil),
	}
	return func(k providers.Kind) providers.Provider {
		return registry[k]
	}
}
