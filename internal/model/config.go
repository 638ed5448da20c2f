package model

import (
	"fmt"
	"runtime"
	"time"
)

// Config holds every tunable of a mapping run
type Config struct {
	Weights          Weights           `yaml:"weights" mapstructure:"weights"`
	Threshold        float64           `yaml:"minimum_confidence_threshold" mapstructure:"minimum_confidence_threshold"`
	MaxDegradedRatio float64           `yaml:"max_degraded_ratio" mapstructure:"max_degraded_ratio"`
	Similarity       SimilarityConfig  `yaml:"similarity" mapstructure:"similarity"`
	Concurrency      ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Cache            CacheConfig       `yaml:"cache" mapstructure:"cache"`
	HTTP             HTTPConfig        `yaml:"http" mapstructure:"http"`
	Output           OutputConfig      `yaml:"output" mapstructure:"output"`
}

// Weights are the coefficients of the combined score
// score = semantic*S_sem + category*S_cat + keyword*S_kw
type Weights struct {
	Semantic float64 `yaml:"semantic" mapstructure:"semantic"`
	Category float64 `yaml:"category" mapstructure:"category"`
	Keyword  float64 `yaml:"keyword" mapstructure:"keyword"`
}

// Sum returns the highest score reachable with these weights
func (w Weights) Sum() float64 {
	return w.Semantic + w.Category + w.Keyword
}

// SimilarityConfig selects and tunes the semantic similarity backend
type SimilarityConfig struct {
	// Strategy is one of lexical, embedding, judge
	Strategy string `yaml:"strategy" mapstructure:"strategy"`
	// Provider backs remote strategies: openai, ollama, gemini, anthropic
	Provider          string        `yaml:"provider,omitempty" mapstructure:"provider"`
	Model             string        `yaml:"model,omitempty" mapstructure:"model"`
	BaseURL           string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	APIKey            string        `yaml:"-" mapstructure:"api_key"`
	Dimensions        int           `yaml:"dimensions,omitempty" mapstructure:"dimensions"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
}

// ConcurrencyConfig bounds parallel requirement scoring
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// CacheConfig controls similarity and embedding caches
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// HTTPConfig is used when inputs are fetched from URLs
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy    string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
	// DocumentID is the Polarion module exported work items belong to
	DocumentID string `yaml:"document_id" mapstructure:"document_id"`
}

// DefaultConfig returns the documented defaults
func DefaultConfig() *Config {
	return &Config{
		Weights: Weights{
			Semantic: 0.40,
			Category: 0.35,
			Keyword:  0.25,
		},
		Threshold:        0.25,
		MaxDegradedRatio: 0.5,
		Similarity: SimilarityConfig{
			Strategy:          "lexical",
			Timeout:           15 * time.Second,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Concurrency: ConcurrencyConfig{
			Workers: runtime.NumCPU(),
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".reqmap-cache",
			MemoryTTL: time.Hour,
			DiskTTL:   30 * 24 * time.Hour,
		},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "reqmap/0.1 (+https://github.com/ppiankov/reqmap)",
			MaxBodyBytes: 20_000_000,
		},
		Output: OutputConfig{
			DocumentID: "Python/_default/Functional Concept - Template",
		},
	}
}

// Validate rejects configurations that cannot produce meaningful scores
func (c *Config) Validate() error {
	w := c.Weights
	if w.Semantic < 0 || w.Category < 0 || w.Keyword < 0 {
		return fmt.Errorf("%w: weights must be non-negative (semantic=%.2f category=%.2f keyword=%.2f)",
			ErrInvalidConfig, w.Semantic, w.Category, w.Keyword)
	}
	if w.Sum() == 0 {
		return fmt.Errorf("%w: at least one weight must be positive", ErrInvalidConfig)
	}
	if c.Threshold < 0 || c.Threshold > w.Sum() {
		return fmt.Errorf("%w: minimum_confidence_threshold %.3f outside [0, %.3f]", ErrInvalidConfig, c.Threshold, w.Sum())
	}
	if c.MaxDegradedRatio < 0 || c.MaxDegradedRatio > 1 {
		return fmt.Errorf("%w: max_degraded_ratio %.3f outside [0, 1]", ErrInvalidConfig, c.MaxDegradedRatio)
	}
	switch c.Similarity.Strategy {
	case "", "lexical", "embedding", "judge":
	default:
		return fmt.Errorf("%w: unknown similarity strategy %q (supported: lexical, embedding, judge)", ErrInvalidConfig, c.Similarity.Strategy)
	}
	return nil
}
