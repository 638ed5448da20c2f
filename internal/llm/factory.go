package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/reqmap/internal/model"
)

// NewEmbedder creates the embedding backend named by config.Provider
func NewEmbedder(ctx context.Context, config Config) (Embedder, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)
	case "ollama":
		return NewOllamaProvider(config)
	case "gemini", "google":
		return NewGeminiProvider(ctx, config)
	case "":
		return nil, fmt.Errorf("%w: embedding strategy needs a provider (supported: openai, ollama, gemini)", model.ErrInvalidConfig)
	default:
		return nil, fmt.Errorf("%w: provider %q cannot embed (supported: openai, ollama, gemini)", model.ErrInvalidConfig, config.Provider)
	}
}

// NewJudge creates the rating backend named by config.Provider
func NewJudge(ctx context.Context, config Config) (Judge, error) {
	switch strings.ToLower(config.Provider) {
	case "anthropic", "claude":
		return NewAnthropicProvider(config)
	case "openai":
		return NewOpenAIProvider(config)
	case "ollama":
		return NewOllamaProvider(config)
	case "gemini", "google":
		return NewGeminiProvider(ctx, config)
	case "":
		return nil, fmt.Errorf("%w: judge strategy needs a provider (supported: anthropic, openai, ollama, gemini)", model.ErrInvalidConfig)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q (supported: anthropic, openai, ollama, gemini)", model.ErrInvalidConfig, config.Provider)
	}
}

// ConfigFromModel converts the run configuration into a provider config.
// A missing API key is taken from the provider's usual environment variable.
func ConfigFromModel(sim model.SimilarityConfig, httpCfg model.HTTPConfig) Config {
	cfg := DefaultConfig()
	cfg.Provider = sim.Provider
	cfg.Model = sim.Model
	cfg.APIKey = sim.APIKey
	cfg.BaseURL = sim.BaseURL
	cfg.Dimensions = sim.Dimensions
	if sim.Timeout > 0 {
		cfg.Timeout = sim.Timeout
	}
	cfg.HTTPProxy = httpCfg.HTTPProxy
	cfg.HTTPSProxy = httpCfg.HTTPSProxy
	cfg.NoProxy = httpCfg.NoProxy

	if cfg.APIKey == "" {
		cfg.APIKey = APIKeyFromEnv(cfg.Provider)
	}
	return cfg
}

// APIKeyFromEnv returns the conventional API key variable for a provider
func APIKeyFromEnv(provider string) string {
	var names []string
	switch strings.ToLower(provider) {
	case "openai":
		names = []string{"OPENAI_API_KEY"}
	case "anthropic", "claude":
		names = []string{"ANTHROPIC_API_KEY"}
	case "gemini", "google":
		names = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	}
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}
