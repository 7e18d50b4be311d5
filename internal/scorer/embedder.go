package scorer

import (
	"context"
	"fmt"

	geminiEmbed "github.com/cloudwego/eino-ext/components/embedding/gemini"
	ollamaEmbed "github.com/cloudwego/eino-ext/components/embedding/ollama"
	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
	"google.golang.org/genai"

	"github.com/shayne-snap/quanteval/internal/config"
)

// DefaultOllamaURL is used when no base URL is configured for the ollama provider.
const DefaultOllamaURL = "http://localhost:11434"

// NewEmbedder creates an embedder for one model on the configured provider.
func NewEmbedder(ctx context.Context, cfg config.Scorer, model string) (embedding.Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = DefaultOllamaURL
		}
		return ollamaEmbed.NewEmbedder(ctx, &ollamaEmbed.EmbeddingConfig{
			BaseURL: baseURL,
			Model:   model,
		})
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required")
		}
		return openaiEmbed.NewEmbedder(ctx, &openaiEmbed.EmbeddingConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   model,
		})
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini API key is required")
		}
		cli, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:      cfg.APIKey,
			Backend:     genai.BackendGeminiAPI,
			HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
		})
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		return geminiEmbed.NewEmbedder(ctx, &geminiEmbed.EmbeddingConfig{
			Client: cli,
			Model:  model,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (supported: ollama, openai, gemini)", cfg.Provider)
	}
}

// FromConfig builds a Scorer with one embedder per configured language.
func FromConfig(ctx context.Context, cfg config.Scorer) (*Scorer, error) {
	embedders := make(map[string]embedding.Embedder, len(cfg.Models))
	for lang, model := range cfg.Models {
		emb, err := NewEmbedder(ctx, cfg, model)
		if err != nil {
			return nil, fmt.Errorf("scorer %s: %w", lang, err)
		}
		embedders[lang] = emb
	}
	return New(embedders), nil
}
