package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/reqmap/internal/model"
)

func TestParseRating(t *testing.T) {
	cases := []struct {
		reply   string
		want    float64
		wantErr bool
	}{
		{"0.42", 0.42, false},
		{"1", 1, false},
		{"Rating: 0.3 (weak)", 0.3, false},
		{"8", 0.8, false},
		{"75", 0.75, false},
		{"250", 0, true},
		{"no idea", 0, true},
		{"", 0, true},
	}

	for _, tc := range cases {
		got, err := ParseRating(tc.reply)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseRating(%q): expected error, got %v", tc.reply, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRating(%q): unexpected error %v", tc.reply, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseRating(%q) = %v, want %v", tc.reply, got, tc.want)
		}
	}
}

func TestBuildJudgePrompt(t *testing.T) {
	p := BuildJudgePrompt("ABS support", "Summary > Intended Use")
	if !strings.Contains(p, "ABS support") || !strings.Contains(p, "Summary > Intended Use") {
		t.Errorf("prompt is missing inputs: %s", p)
	}
}

func TestNewEmbedder_Providers(t *testing.T) {
	ctx := context.Background()

	e, err := NewEmbedder(ctx, Config{Provider: "OpenAI", APIKey: "k"})
	if err != nil || e.Name() != "openai" {
		t.Errorf("expected openai embedder, got %v, %v", e, err)
	}

	e, err = NewEmbedder(ctx, Config{Provider: "ollama", Model: "nomic-embed-text"})
	if err != nil || e.Name() != "ollama" {
		t.Errorf("expected ollama embedder, got %v, %v", e, err)
	}

	if _, err := NewEmbedder(ctx, Config{Provider: "anthropic", APIKey: "k"}); !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("anthropic cannot embed, got %v", err)
	}
	if _, err := NewEmbedder(ctx, Config{}); !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("missing provider should be a config error, got %v", err)
	}
}

func TestNewJudge_Providers(t *testing.T) {
	ctx := context.Background()

	j, err := NewJudge(ctx, Config{Provider: "claude", APIKey: "k"})
	if err != nil || j.Name() != "anthropic" {
		t.Errorf("expected anthropic judge, got %v, %v", j, err)
	}

	if _, err := NewJudge(ctx, Config{Provider: "watson"}); !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("unknown provider should be a config error, got %v", err)
	}
}

func TestConfigFromModel(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "from-env")

	sim := model.SimilarityConfig{Provider: "anthropic", Model: "m", Timeout: 3 * time.Second}
	httpCfg := model.HTTPConfig{HTTPProxy: "http://proxy:3128", NoProxy: "localhost"}

	cfg := ConfigFromModel(sim, httpCfg)
	if cfg.APIKey != "from-env" {
		t.Errorf("expected API key from environment, got %q", cfg.APIKey)
	}
	if cfg.Timeout != 3*time.Second || cfg.HTTPProxy != "http://proxy:3128" || cfg.NoProxy != "localhost" {
		t.Errorf("unexpected config: %+v", cfg)
	}

	sim.APIKey = "explicit"
	if got := ConfigFromModel(sim, httpCfg).APIKey; got != "explicit" {
		t.Errorf("explicit key should win, got %q", got)
	}
}
