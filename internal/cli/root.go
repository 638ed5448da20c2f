package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/reqmap/internal/llm"
	"github.com/ppiankov/reqmap/internal/model"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "v0.1.0"

var (
	cfgFile string
	envFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "reqmap",
	Short: "reqmap - place requirements into a document outline",
	Long: `reqmap places every requirement of a requirement set into exactly one
heading of a target document outline, or reports it as unassignable.

Each requirement is scored against every heading by combining semantic
similarity, category rules and keyword rules. Decisions are deterministic
and every one of them is logged with the signals that produced it.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "reqmap %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	pf := rootCmd.PersistentFlags()
	defaults := model.DefaultConfig()
	pf.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.reqmap/config.yaml)")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file with API keys (ignored when missing)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	pf.Float64("threshold", defaults.Threshold, "minimum score for an assignment")
	pf.String("strategy", defaults.Similarity.Strategy, "similarity strategy (lexical, embedding, judge)")
	pf.String("provider", "", "similarity provider (openai, ollama, gemini, anthropic)")
	pf.String("model", "", "provider model name")
	pf.String("base-url", "", "provider base URL")
	pf.Int("workers", defaults.Concurrency.Workers, "concurrent requirement scoring workers")
	pf.Bool("no-cache", false, "disable similarity and embedding caches")
	pf.String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	pf.String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")

	// Bind flags to viper
	for key, flag := range map[string]string{
		"output.verbose":               "verbose",
		"minimum_confidence_threshold": "threshold",
		"similarity.strategy":          "strategy",
		"similarity.provider":          "provider",
		"similarity.model":             "model",
		"similarity.base_url":          "base-url",
		"concurrency.workers":          "workers",
		"http.http_proxy":              "http-proxy",
		"http.https_proxy":             "https-proxy",
	} {
		_ = viper.BindPFlag(key, pf.Lookup(flag))
	}

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// envKeys are the configuration keys that can be set as REQMAP_* variables,
// e.g. REQMAP_SIMILARITY_STRATEGY=embedding
var envKeys = []string{
	"weights.semantic", "weights.category", "weights.keyword",
	"minimum_confidence_threshold", "max_degraded_ratio",
	"similarity.strategy", "similarity.provider", "similarity.model", "similarity.base_url",
	"similarity.api_key", "similarity.dimensions", "similarity.timeout",
	"similarity.requests_per_second", "similarity.burst",
	"concurrency.workers",
	"cache.enabled", "cache.dir", "cache.memory_ttl", "cache.disk_ttl",
	"http.timeout", "http.user_agent", "http.max_body_bytes",
	"http.http_proxy", "http.https_proxy", "http.no_proxy",
	"output.verbose", "output.document_id",
}

// initConfig reads in the dotenv file, the config file and ENV variables
func initConfig() {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Warning: cannot load %s: %v\n", envFile, err)
		}
	}

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(filepath.Join(home, ".reqmap"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match REQMAP_*
	viper.SetEnvPrefix("REQMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig layers flags, environment and config file over the defaults
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	if noCache, _ := rootCmd.PersistentFlags().GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}
	if cfg.Similarity.APIKey == "" {
		cfg.Similarity.APIKey = llm.APIKeyFromEnv(cfg.Similarity.Provider)
	}
	if cfg.Similarity.BaseURL == "" && strings.EqualFold(cfg.Similarity.Provider, "ollama") {
		cfg.Similarity.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger returns the engine logger: warnings by default, debug detail
// with --verbose
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
