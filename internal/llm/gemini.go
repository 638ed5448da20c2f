package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	defaultGeminiEmbedModel = "text-embedding-004"
	defaultGeminiChatModel  = "gemini-1.5-flash"
	// geminiBatchLimit is the API cap on contents per batch embed call
	geminiBatchLimit = 100
)

// GeminiProvider embeds and judges with the Google Gemini API
type GeminiProvider struct {
	client *genai.Client
	config Config
}

// NewGeminiProvider creates a Gemini client
func NewGeminiProvider(ctx context.Context, config Config) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	opts := []option.ClientOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(config.BaseURL))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiProvider{client: client, config: config}, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Close releases the underlying client
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

// Embed uses batch embedding, split to the API's batch limit
func (p *GeminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	name := p.config.Model
	if name == "" {
		name = defaultGeminiEmbedModel
	}
	em := p.client.EmbeddingModel(name)

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiBatchLimit {
		end := min(start+geminiBatchLimit, len(texts))

		batch := em.NewBatch()
		for _, text := range texts[start:end] {
			batch.AddContent(genai.Text(text))
		}

		res, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("gemini embed: %w", err)
		}
		if len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(res.Embeddings), end-start)
		}
		for _, e := range res.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}

// Relatedness asks a Gemini chat model for a rating
func (p *GeminiProvider) Relatedness(ctx context.Context, requirement, heading string) (float64, error) {
	name := p.config.Model
	if name == "" {
		name = defaultGeminiChatModel
	}

	gm := p.client.GenerativeModel(name)
	gm.SystemInstruction = genai.NewUserContent(genai.Text(judgeSystemPrompt))
	gm.SetTemperature(0)

	resp, err := gm.GenerateContent(ctx, genai.Text(BuildJudgePrompt(requirement, heading)))
	if err != nil {
		return 0, fmt.Errorf("gemini generate: %w", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
		break
	}
	return ParseRating(sb.String())
}
