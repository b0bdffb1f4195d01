// Package config provides configuration management for chartlab.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"chartlab/internal/analysis"
	"chartlab/internal/analysis/indicators"
	apperrors "chartlab/internal/errors"
	"chartlab/internal/logging"
)

// EnvPrefix prefixes environment overrides, e.g. CHARTLAB_STORE_PATH.
const EnvPrefix = "CHARTLAB"

// Config holds all application configuration.
type Config struct {
	Analysis   analysis.AnalyzerConfig `mapstructure:"analysis"`
	Indicators indicators.Params       `mapstructure:"indicators"`
	Store      StoreConfig             `mapstructure:"store"`
	Server     ServerConfig            `mapstructure:"server"`
	Watch      WatchConfig             `mapstructure:"watch"`
	Logging    logging.LogConfig       `mapstructure:"logging"`

	path string
}

// StoreConfig holds SQLite store configuration.
type StoreConfig struct {
	Path        string        `mapstructure:"path"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
	MaxRetries  uint64        `mapstructure:"max_retries"`
}

// ServerConfig holds HTTP API configuration.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	RateLimit    float64       `mapstructure:"rate_limit"` // requests per second per client
	RateBurst    int           `mapstructure:"rate_burst"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxCandles   int           `mapstructure:"max_candles"`
}

// WatchConfig holds scheduled re-analysis configuration.
type WatchConfig struct {
	Schedule         string        `mapstructure:"schedule"` // standard cron expression or descriptor
	Symbols          []string      `mapstructure:"symbols"`  // empty means every stored symbol
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/chartlab"
	}
	return filepath.Join(home, ".config", "chartlab")
}

// Default returns the built-in configuration.
func Default() *Config {
	dir := DefaultConfigDir()
	return &Config{
		Analysis:   analysis.DefaultAnalyzerConfig(),
		Indicators: indicators.DefaultParams(),
		Store: StoreConfig{
			Path:        filepath.Join(dir, "chartlab.db"),
			BusyTimeout: 5 * time.Second,
			MaxRetries:  5,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			RateLimit:    5,
			RateBurst:    10,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			MaxCandles:   20000,
		},
		Watch: WatchConfig{
			Schedule:         "@every 1h",
			Timeout:          2 * time.Minute,
			FailureThreshold: 3,
			Cooldown:         6 * time.Hour,
		},
		Logging: logging.DefaultLogConfig(),
	}
}

// Load loads config.toml from configDir, writing a template on first run.
// If configDir is empty, uses the default config directory. Values missing
// from the file keep their defaults; CHARTLAB_* variables override both.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()
	cfg.path = filepath.Join(configDir, "config.toml")

	v := newViper(configDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config.toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func newViper(configDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys registered here can be overridden from the environment even when
	// the file does not mention them.
	d := Default()
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.busy_timeout", d.Store.BusyTimeout)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("watch.schedule", d.Watch.Schedule)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("analysis.workers", d.Analysis.Workers)
	return v
}

// Path returns the config file the configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// AnalyzerConfig returns the analysis settings with the indicator periods applied.
func (c *Config) AnalyzerConfig() analysis.AnalyzerConfig {
	cfg := c.Analysis
	cfg.Params = c.Indicators
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Indicators.Validate(); err != nil {
		return invalid("indicators: " + err.Error())
	}
	// NewAnalyzer checks the detector parameters; Detectors checks the
	// enabled names after case folding and de-duplication.
	an, err := analysis.NewAnalyzer(c.AnalyzerConfig(), zerolog.Nop())
	if err != nil {
		return analysisInvalid(err)
	}
	if _, err := an.Detectors(); err != nil {
		return analysisInvalid(err)
	}

	if c.Store.Path == "" {
		return invalid("store.path is required")
	}
	if c.Server.Addr == "" {
		return invalid("server.addr is required")
	}
	if c.Server.RateLimit <= 0 || c.Server.RateBurst <= 0 {
		return invalid("server.rate_limit and server.rate_burst must be positive")
	}
	if _, err := cron.ParseStandard(c.Watch.Schedule); err != nil {
		return invalid(fmt.Sprintf("watch.schedule %q: %v", c.Watch.Schedule, err))
	}
	if c.Watch.Timeout <= 0 || c.Watch.FailureThreshold <= 0 {
		return invalid("watch.timeout and watch.failure_threshold must be positive")
	}
	return nil
}

func analysisInvalid(err error) error {
	if apperrors.Is(err, apperrors.ErrConfigInvalid) {
		return fmt.Errorf("analysis.%w", err)
	}
	return invalid("analysis: " + err.Error())
}

func invalid(msg string) error {
	return fmt.Errorf("%s: %w", msg, apperrors.ErrConfigInvalid)
}
