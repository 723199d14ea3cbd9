// Package config loads maestro configuration: built-in defaults, an
// optional maestro.yaml, then environment variable overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fully resolved configuration.
type Config struct {
	HTTPPort    string `yaml:"http_port"`
	LogLevel    string `yaml:"log_level"`
	DataDir     string `yaml:"data_dir"`
	DatabaseURL string `yaml:"database_url"`

	JWTSigningKey string `yaml:"jwt_signing_key"`

	LLM    LLMConfig    `yaml:"llm"`
	SMTP   SMTPConfig   `yaml:"smtp"`
	Runner RunnerConfig `yaml:"runner"`
}

// LLMConfig configures the LLM provider. An empty APIKey activates the
// deterministic stub agents.
type LLMConfig struct {
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// StubMode reports whether the deterministic stub agents are active.
func (c LLMConfig) StubMode() bool { return c.APIKey == "" }

// SMTPConfig configures email delivery for registration verification.
// An empty Host activates the log-only sender.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// RunnerConfig controls background execution.
type RunnerConfig struct {
	// MaxConcurrentSessions bounds parallel background runs across sessions.
	MaxConcurrentSessions int `yaml:"max_concurrent_sessions"`

	// RedoBudget is the number of reviewer rejections before force-accept.
	RedoBudget int `yaml:"redo_budget"`

	// ReviewerBatchSize is the number of reviewer turns after which the
	// reviewer's accumulated conversation memory is reset (novel mode).
	ReviewerBatchSize int `yaml:"reviewer_batch_size"`

	// GracefulShutdownTimeout is the max wait for active runs on shutdown.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		HTTPPort: "8080",
		LogLevel: "info",
		DataDir:  "./data",
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			CallTimeout: 120 * time.Second,
		},
		SMTP: SMTPConfig{Port: 587},
		Runner: RunnerConfig{
			MaxConcurrentSessions:   5,
			RedoBudget:              2,
			ReviewerBatchSize:       5,
			GracefulShutdownTimeout: 2 * time.Minute,
		},
	}
}

// Load resolves configuration from configDir. A missing maestro.yaml is not
// an error; environment variables always win.
func Load(configDir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(configDir, "maestro.yaml")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		slog.Info("Loaded configuration file", "path", path)
	case os.IsNotExist(err):
		slog.Info("No maestro.yaml found, using defaults", "path", path)
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides config fields from environment variables. Each variable
// is independent; unset values keep their current (file or default) value.
func applyEnv(cfg *Config) {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr(&cfg.HTTPPort, "HTTP_PORT")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
	setStr(&cfg.DataDir, "DATA_DIR")
	setStr(&cfg.DatabaseURL, "DATABASE_URL")
	setStr(&cfg.JWTSigningKey, "JWT_SIGNING_KEY")
	setStr(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	setStr(&cfg.LLM.Model, "OPENAI_MODEL")
	setStr(&cfg.SMTP.Host, "SMTP_HOST")
	setStr(&cfg.SMTP.From, "SMTP_FROM")
	setStr(&cfg.SMTP.Username, "SMTP_USERNAME")
	setStr(&cfg.SMTP.Password, "SMTP_PASSWORD")
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.SMTP.Port = p
		}
	}
	if v := os.Getenv("AGENT_CALL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LLM.CallTimeout = d
		}
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Runner.MaxConcurrentSessions <= 0 {
		return fmt.Errorf("runner.max_concurrent_sessions must be positive")
	}
	if c.Runner.RedoBudget < 0 {
		return fmt.Errorf("runner.redo_budget must not be negative")
	}
	if c.Runner.ReviewerBatchSize <= 0 {
		return fmt.Errorf("runner.reviewer_batch_size must be positive")
	}
	if c.LLM.CallTimeout <= 0 {
		return fmt.Errorf("llm.call_timeout must be positive")
	}
	return nil
}

// SlogLevel maps the configured log level to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
