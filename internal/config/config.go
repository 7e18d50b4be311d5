// Package config loads the quanteval configuration: embedded defaults, then an
// optional YAML file, then QUANTEVAL_* environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/shayne-snap/quanteval/data"
)

// Config is the full quanteval configuration.
type Config struct {
	Eval    Eval    `yaml:"eval"`
	Server  Server  `yaml:"server"`
	Dataset Dataset `yaml:"dataset"`
	Scorer  Scorer  `yaml:"scorer"`
	Memory  Memory  `yaml:"memory"`
	Output  Output  `yaml:"output"`
	Log     Log     `yaml:"log"`
}

// Eval holds the fixed run parameters.
type Eval struct {
	Samples      int    `yaml:"samples" env:"QUANTEVAL_SAMPLES" validate:"gt=0"`
	PromptLength int    `yaml:"prompt_length" env:"QUANTEVAL_PROMPT_LENGTH" validate:"gt=0"`
	GenLength    int    `yaml:"gen_length" env:"QUANTEVAL_GEN_LENGTH" validate:"gt=0"`
	Language     string `yaml:"language" env:"QUANTEVAL_LANGUAGE" validate:"required"`
}

// Server points at the llama.cpp server hosting the quantized checkpoint.
type Server struct {
	URL           string        `yaml:"url" env:"QUANTEVAL_SERVER_URL" validate:"required,url"`
	Timeout       time.Duration `yaml:"timeout" env:"QUANTEVAL_SERVER_TIMEOUT" validate:"gte=0"`
	SpecialTokens []string      `yaml:"special_tokens"`
}

// Dataset selects the evaluation corpus. Path wins over the HuggingFace file.
type Dataset struct {
	Path       string `yaml:"path" env:"QUANTEVAL_DATASET"`
	Format     string `yaml:"format" env:"QUANTEVAL_DATASET_FORMAT"`
	HFRepo     string `yaml:"hf_repo" env:"QUANTEVAL_HF_REPO"`
	HFRevision string `yaml:"hf_revision" env:"QUANTEVAL_HF_REVISION"`
	HFFile     string `yaml:"hf_file" env:"QUANTEVAL_HF_FILE"`
	HFToken    string `yaml:"-" env:"HF_TOKEN"`
	HFEndpoint string `yaml:"hf_endpoint" env:"HF_ENDPOINT" validate:"omitempty,url"`
	CacheDir   string `yaml:"cache_dir" env:"QUANTEVAL_CACHE_DIR"`
}

// Scorer configures the embedding backend; Models maps a language hint to a model.
type Scorer struct {
	Provider string            `yaml:"provider" env:"QUANTEVAL_EMBED_PROVIDER" validate:"oneof=ollama openai gemini"`
	BaseURL  string            `yaml:"base_url" env:"QUANTEVAL_EMBED_URL"`
	APIKey   string            `yaml:"-" env:"QUANTEVAL_EMBED_API_KEY"`
	Models   map[string]string `yaml:"models"`
}

// Memory configures accelerator memory tracking.
type Memory struct {
	Enabled        bool          `yaml:"enabled" env:"QUANTEVAL_MEMORY"`
	Device         int           `yaml:"device" env:"QUANTEVAL_DEVICE" validate:"gte=0"`
	SampleInterval time.Duration `yaml:"sample_interval" env:"QUANTEVAL_MEMORY_INTERVAL" validate:"gte=0"`
}

// Output controls what is written besides the fixed-format report.
type Output struct {
	JSON        bool   `yaml:"json"`
	SamplesFile string `yaml:"samples_file"`
	Table       bool   `yaml:"table"`
}

// Log configures slog.
type Log struct {
	Level string `yaml:"level" env:"QUANTEVAL_LOG_LEVEL"`
	// Format applies to stderr; the log file is always JSON.
	Format string `yaml:"format" env:"QUANTEVAL_LOG_FORMAT" validate:"omitempty,oneof=text json"`
	File   string `yaml:"file" env:"QUANTEVAL_LOG_FILE"`
}

// DefaultFiles are searched, in order, when no config path is given.
var DefaultFiles = []string{"quanteval.yaml", ".quanteval.yaml"}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg := &Config{}
	if err := yaml.Unmarshal(data.DefaultConfigYAML, cfg); err != nil {
		panic(fmt.Sprintf("embedded default config: %v", err))
	}
	return cfg
}

// Load reads configuration from path, or from the first DefaultFiles entry
// found when path is empty. No file found means defaults. Environment
// overrides are applied last.
func Load(ctx context.Context, path string) (*Config, error) {
	cfg := Default()

	var raw []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		raw = b
	} else {
		for _, name := range DefaultFiles {
			b, err := os.ReadFile(name)
			if err == nil {
				raw, path = b, name
				break
			}
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}
	if raw != nil {
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := ApplyEnv(ctx, cfg, envconfig.OsLookuper()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from environment variables found through l.
func ApplyEnv(ctx context.Context, cfg *Config, l envconfig.Lookuper) error {
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:           cfg,
		Lookuper:         l,
		DefaultOverwrite: true,
	}); err != nil {
		return fmt.Errorf("config env: %w", err)
	}
	if cfg.Scorer.APIKey == "" {
		for _, name := range providerKeyEnv[cfg.Scorer.Provider] {
			if v, ok := l.Lookup(name); ok && v != "" {
				cfg.Scorer.APIKey = v
				break
			}
		}
	}
	return nil
}

// providerKeyEnv lists the conventional API key variables per provider,
// consulted when QUANTEVAL_EMBED_API_KEY is unset.
var providerKeyEnv = map[string][]string{
	"openai": {"OPENAI_API_KEY"},
	"gemini": {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// validate caches struct info; field names in errors are the YAML keys.
var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			field := strings.TrimPrefix(fe.Namespace(), "Config.")
			if fe.Param() != "" {
				return fmt.Errorf("invalid config: %s must satisfy %s=%s, got %v", field, fe.Tag(), fe.Param(), fe.Value())
			}
			return fmt.Errorf("invalid config: %s must satisfy %s, got %v", field, fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, ok := c.Scorer.Models[c.Eval.Language]; !ok {
		return fmt.Errorf("no scorer model configured for language %q", c.Eval.Language)
	}
	return nil
}
