package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gopkg.in/yaml.v3"

	"queryrouter/models"
	"queryrouter/services"
)

// Config is the process configuration. Precedence, lowest first: built-in
// defaults, the YAML file, environment variables.
type Config struct {
	Port        string               `yaml:"port"`
	Environment string               `yaml:"environment"`
	LogLevel    string               `yaml:"log_level"`
	PrettyLogs  bool                 `yaml:"pretty_logs"`
	CORSOrigins []string             `yaml:"cors_origins"`
	LexiconFile string               `yaml:"lexicon_file"`
	Model       ModelSettings        `yaml:"model"`
	Retrieval   RetrievalSettings    `yaml:"retrieval"`
	Discord     models.DiscordConfig `yaml:"discord"`
}

// ModelSettings points at an Ollama-compatible endpoint. An empty base URL or
// model disables every model-assisted feature.
type ModelSettings struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model"`

	// AllowOverride lets API callers supply their own model endpoint.
	AllowOverride bool `yaml:"allow_override"`
}

// RetrievalSettings tunes fetching and request budgets.
type RetrievalSettings struct {
	UserAgent       string        `yaml:"user_agent"`
	AcceptLanguage  string        `yaml:"accept_language"`
	MaxResults      int           `yaml:"max_results"`
	PageTimeout     time.Duration `yaml:"page_timeout"`
	SearchTimeout   time.Duration `yaml:"search_timeout"`
	ClassifyTimeout time.Duration `yaml:"classify_timeout"`
	AnswerTimeout   time.Duration `yaml:"answer_timeout"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:        "8080",
		Environment: "dev",
		LogLevel:    "info",
		CORSOrigins: []string{"*"},
		Retrieval: RetrievalSettings{
			UserAgent:       services.DefaultUserAgent,
			AcceptLanguage:  services.DefaultAcceptLanguage,
			MaxResults:      services.DefaultMaxResults,
			PageTimeout:     services.DefaultPageTimeout,
			SearchTimeout:   services.DefaultSearchTimeout,
			ClassifyTimeout: services.DefaultClassifyTimeout,
			AnswerTimeout:   services.DefaultAnswerTimeout,
		},
		Discord: models.DiscordConfig{CommandPrefix: services.DefaultCommandPrefix},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file at
// path and the environment, then validates it. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config file %s not found", path)
	}
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LexiconFile = getEnv("LEXICON_FILE", c.LexiconFile)
	if origins := getEnv("CORS_ORIGINS", ""); origins != "" {
		c.CORSOrigins = splitList(origins)
	}

	c.Model.BaseURL = getEnv("OLLAMA_BASE_URL", c.Model.BaseURL)
	c.Model.Model = getEnv("OLLAMA_MODEL", c.Model.Model)
	c.Model.EmbeddingModel = getEnv("OLLAMA_EMBEDDING_MODEL", c.Model.EmbeddingModel)

	c.Retrieval.UserAgent = getEnv("USER_AGENT", c.Retrieval.UserAgent)
	c.Retrieval.AcceptLanguage = getEnv("ACCEPT_LANGUAGE", c.Retrieval.AcceptLanguage)

	c.Discord.Token = getEnv("DISCORD_BOT_TOKEN", c.Discord.Token)
	c.Discord.CommandPrefix = getEnv("DISCORD_COMMAND_PREFIX", c.Discord.CommandPrefix)

	var err error
	if c.PrettyLogs, err = getEnvBool("LOG_PRETTY", c.PrettyLogs); err != nil {
		return err
	}
	if c.Model.AllowOverride, err = getEnvBool("ALLOW_MODEL_OVERRIDE", c.Model.AllowOverride); err != nil {
		return err
	}
	if c.Retrieval.MaxResults, err = getEnvInt("MAX_RESULTS", c.Retrieval.MaxResults); err != nil {
		return err
	}
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"PAGE_TIMEOUT", &c.Retrieval.PageTimeout},
		{"SEARCH_TIMEOUT", &c.Retrieval.SearchTimeout},
		{"CLASSIFY_TIMEOUT", &c.Retrieval.ClassifyTimeout},
		{"ANSWER_TIMEOUT", &c.Retrieval.AnswerTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = getEnvDuration(d.key, *d.dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks ranges and formats.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, is.Port),
		validation.Field(&c.Environment, validation.In("dev", "test", "prod")),
		validation.Field(&c.LogLevel, validation.In("trace", "debug", "info", "warn", "error", "disabled")),
		validation.Field(&c.Model),
		validation.Field(&c.Retrieval),
	)
}

// Validate checks the model endpoint.
func (m ModelSettings) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.BaseURL, is.URL),
		validation.Field(&m.Model, validation.When(m.BaseURL != "", validation.Required)),
	)
}

// Validate checks retrieval budgets.
func (r RetrievalSettings) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.MaxResults, validation.Min(1), validation.Max(services.MaxSearchResults)),
		validation.Field(&r.PageTimeout, validation.Required, validation.Min(100*time.Millisecond)),
		validation.Field(&r.SearchTimeout, validation.Required, validation.Min(100*time.Millisecond)),
		validation.Field(&r.ClassifyTimeout, validation.Required, validation.Min(100*time.Millisecond)),
		validation.Field(&r.AnswerTimeout, validation.Required),
	)
}

// ModelConfig returns the generation endpoint, or nil when none is configured.
func (c *Config) ModelConfig() *models.ModelConfig {
	cfg := &models.ModelConfig{BaseURL: c.Model.BaseURL, Model: c.Model.Model}
	if !cfg.Usable() {
		return nil
	}
	return cfg
}

// IsProduction reports whether the process runs in the prod environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "prod"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
