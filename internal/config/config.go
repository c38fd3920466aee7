// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jonathan/npidb-scraper/internal/types"
)

// EnvPrefix prefixes every environment override, e.g. NPIDB_CAP=100.
const EnvPrefix = "NPIDB"

// Config holds everything a collection run or the server needs.
// Values come from, in increasing priority: defaults, npidb.yaml, NPIDB_* env vars, CLI flags.
type Config struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	Cap            int           `mapstructure:"cap" validate:"gt=0"`
	Mode           string        `mapstructure:"mode" validate:"oneof=basic enriched"`
	Delay          time.Duration `mapstructure:"delay" validate:"gte=0"`
	DetailDelay    time.Duration `mapstructure:"detail_delay" validate:"gte=0"`
	Workers        int           `mapstructure:"workers" validate:"gte=1,lte=16"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
	UserAgent      string        `mapstructure:"user_agent"`
	StaticTaxonomy bool          `mapstructure:"static_taxonomy"`
	DatabaseURL    string        `mapstructure:"database_url"`
	Port           int           `mapstructure:"port" validate:"gt=0,lte=65535"`
	LogLevel       string        `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	LogFormat      string        `mapstructure:"log_format" validate:"omitempty,oneof=json console"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig limits how often one client may start a collection through the server.
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit" validate:"gte=0"`
	Window  time.Duration `mapstructure:"window" validate:"gte=0"`
	Burst   int           `mapstructure:"burst" validate:"gte=0"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		BaseURL:   types.DefaultBaseURL,
		Cap:       types.DefaultRecordCap,
		Mode:      types.ModeBasic.String(),
		Delay:     time.Second,
		Workers:   1,
		Timeout:   30 * time.Second,
		Port:      8080,
		LogLevel:  "info",
		LogFormat: "console",
		RateLimit: RateLimitConfig{
			Enabled: true,
			Limit:   10,
			Window:  time.Hour,
			Burst:   2,
		},
	}
}

// flagKeys maps CLI flag names onto config keys.
var flagKeys = map[string]string{
	"base-url":     "base_url",
	"cap":          "cap",
	"mode":         "mode",
	"delay":        "delay",
	"detail-delay": "detail_delay",
	"workers":      "workers",
	"timeout":      "timeout",
	"user-agent":   "user_agent",
	"static":       "static_taxonomy",
	"database-url": "database_url",
	"port":         "port",
	"log-level":    "log_level",
	"log-format":   "log_format",
}

// Load reads configuration. An empty path looks for an optional npidb.yaml in the
// working directory; an explicit path must exist. Flags present in the set override
// file and environment values only when the user actually set them.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("npidb")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if mode, err := types.ParseMode(cfg.Mode); err == nil {
		cfg.Mode = mode.String()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("cap", d.Cap)
	v.SetDefault("mode", d.Mode)
	v.SetDefault("delay", d.Delay)
	v.SetDefault("detail_delay", d.DetailDelay)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("static_taxonomy", d.StaticTaxonomy)
	v.SetDefault("database_url", d.DatabaseURL)
	v.SetDefault("port", d.Port)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("rate_limit.enabled", d.RateLimit.Enabled)
	v.SetDefault("rate_limit.limit", d.RateLimit.Limit)
	v.SetDefault("rate_limit.window", d.RateLimit.Window)
	v.SetDefault("rate_limit.burst", d.RateLimit.Burst)
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// RunMode returns the parsed collection mode.
func (c *Config) RunMode() types.Mode {
	mode, err := types.ParseMode(c.Mode)
	if err != nil {
		return types.ModeBasic
	}
	return mode
}
