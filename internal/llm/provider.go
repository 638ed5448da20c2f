package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Embedder turns texts into vectors. Implementations return one vector per
// input text, in input order.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Judge rates how closely a requirement belongs under a heading, in [0,1]
type Judge interface {
	Name() string
	Relatedness(ctx context.Context, requirement, heading string) (float64, error)
}

// Config holds provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", "gemini"
	Provider string

	// Model name (provider-specific). Empty selects the provider default.
	Model string

	// APIKey for OpenAI, Anthropic and Gemini
	APIKey string

	// BaseURL for custom endpoints (Ollama, OpenAI-compatible gateways)
	BaseURL string

	// Timeout for a single API request
	Timeout time.Duration

	// Dimensions requests shorter embeddings where the provider supports it
	Dimensions int

	// MaxTokens bounds judge responses
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		MaxTokens: 16,
	}
}

func (c Config) timeout(fallback time.Duration) time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return fallback
}

const judgeSystemPrompt = "You classify engineering requirements into chapters of a specification document. " +
	"Answer with a single number between 0 and 1 and nothing else."

// BuildJudgePrompt asks for a relatedness rating between a requirement and a heading path
func BuildJudgePrompt(requirement, heading string) string {
	return fmt.Sprintf(`Rate how well the requirement belongs under the document heading.

Heading path:
%s

Requirement:
%s

Reply with one number from 0 (unrelated) to 1 (exactly the right chapter).`, heading, requirement)
}

var ratingPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParseRating extracts the first number of a judge reply. Values on a
// 0..10 or 0..100 scale are rescaled to [0,1].
func ParseRating(reply string) (float64, error) {
	m := ratingPattern.FindString(strings.TrimSpace(reply))
	if m == "" {
		return 0, fmt.Errorf("no rating in reply %q", truncate(reply, 80))
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, fmt.Errorf("parse rating %q: %w", m, err)
	}
	switch {
	case v <= 1:
		return v, nil
	case v <= 10:
		return v / 10, nil
	case v <= 100:
		return v / 100, nil
	default:
		return 0, fmt.Errorf("rating %g out of range", v)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
