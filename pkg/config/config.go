// Package config loads draftsmith configuration from config.yaml with
// environment variable overrides. Secrets (API keys) must only come from
// environment variables.
package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for draftsmith.
type Config struct {
	// Env names the runtime environment, used only for logging.
	Env string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	// Version is set at load time from the build, not from config.
	Version string `yaml:"-"`

	// Oracle (LLM) configuration
	Oracle OracleConfig `yaml:"oracle"`

	// Symbols configuration
	Symbols SymbolsConfig `yaml:"symbols"`

	// Generate configuration (defaults for the CLI surface)
	Generate GenerateConfig `yaml:"generate"`
}

// OracleConfig selects and configures the text-completion oracle.
type OracleConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "anthropic".
	Provider string `yaml:"provider" env:"ORACLE_PROVIDER" env-default:"openai"`

	// Endpoint is the base URL for OpenAI-compatible providers.
	Endpoint string `yaml:"endpoint" env:"ORACLE_ENDPOINT" env-default:"https://api.openai.com/v1"`

	// Model is the completion model identifier.
	Model string `yaml:"model" env:"ORACLE_MODEL" env-default:"gpt-4o"`

	// APIKey authenticates against the provider. Secret, env only.
	APIKey string `yaml:"-" env:"ORACLE_API_KEY"`

	// EmbeddingModel is used for symbol similarity search.
	EmbeddingModel string `yaml:"embedding_model" env:"ORACLE_EMBEDDING_MODEL" env-default:"text-embedding-3-small"`

	// MaxTokens bounds completion length for schematic generation.
	MaxTokens int `yaml:"max_tokens" env:"ORACLE_MAX_TOKENS" env-default:"7000"`

	// TimeoutSeconds bounds a single oracle call. 0 means no timeout.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"ORACLE_TIMEOUT_SECONDS" env-default:"120"`
}

// SymbolsConfig locates the local KiCad symbol libraries and the embedding
// index used for similarity search.
type SymbolsConfig struct {
	// Dir overrides the standard KiCad symbol library locations.
	Dir string `yaml:"dir" env:"KICAD_SYMBOLS_DIR" env-default:""`

	// IndexPath is the SQLite file caching symbol embeddings.
	IndexPath string `yaml:"index_path" env:"SYMBOLS_INDEX_PATH" env-default:".draftsmith/symbols.db"`
}

// GenerateConfig carries defaults for the generate command.
type GenerateConfig struct {
	OutDir        string `yaml:"out_dir" env:"DRAFTSMITH_OUT_DIR" env-default:"output"`
	MaxIterations int    `yaml:"max_iterations" env:"DRAFTSMITH_MAX_ITERATIONS" env-default:"3"`
	// CandidatesPerPart caps the allowed-identifier list per part.
	CandidatesPerPart int `yaml:"candidates_per_part" env:"DRAFTSMITH_CANDIDATES_PER_PART" env-default:"10"`
}

// Load reads configuration from config.yaml (when present) with environment
// variable overrides; without a config file, environment variables alone are
// used. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("read environment config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Oracle.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown oracle provider %q", c.Oracle.Provider)
	}
	if c.Generate.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be >= 1, got %d", c.Generate.MaxIterations)
	}
	return nil
}
