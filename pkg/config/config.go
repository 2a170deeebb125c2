// Package config loads labrun settings from defaults, an optional config
// file, LABRUN_* environment variables and command-line flags, in that order
// of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	APIURL       string        `mapstructure:"api_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
	Simulate     bool          `mapstructure:"simulate"`
	Log          LogConfig     `mapstructure:"log"`
	Serve        ServeConfig   `mapstructure:"serve"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ServeConfig holds settings for the development service.
type ServeConfig struct {
	Addr    string        `mapstructure:"addr"`
	Catalog string        `mapstructure:"catalog"`
	Latency time.Duration `mapstructure:"latency"`
}

// Defaults shared by config and command-line flags.
const (
	DefaultAPIURL       = "http://localhost:8000"
	DefaultTimeout      = 5 * time.Minute
	DefaultTickInterval = 500 * time.Millisecond
	DefaultLogLevel     = "warn"
	DefaultServeAddr    = "127.0.0.1:8000"
	DefaultServeCatalog = "protocols.yaml"
	DefaultServeLatency = 1500 * time.Millisecond
)

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"api-url":       "api_url",
	"timeout":       "timeout",
	"tick-interval": "tick_interval",
	"simulate":      "simulate",
	"log-level":     "log.level",
	"addr":          "serve.addr",
	"catalog":       "serve.catalog",
	"latency":       "serve.latency",
}

// Path returns the config file location: $LABRUN_CONFIG, else
// ~/.config/labrun/config.yaml.
func Path() string {
	if p := os.Getenv("LABRUN_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, ".config", "labrun", "config.yaml")
}

// Load reads configuration. Env var overrides use prefix LABRUN_. Flags
// present in flags (may be nil) override everything when set.
func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()

	v.SetDefault("api_url", DefaultAPIURL)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("tick_interval", DefaultTickInterval)
	v.SetDefault("simulate", true)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("serve.addr", DefaultServeAddr)
	v.SetDefault("serve.catalog", DefaultServeCatalog)
	v.SetDefault("serve.latency", DefaultServeLatency)

	v.SetConfigType("yaml")
	v.SetConfigFile(Path())

	v.SetEnvPrefix("LABRUN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil && os.Getenv("LABRUN_CONFIG") != "" {
		// An explicitly named file must exist and parse.
		return Config{}, fmt.Errorf("read config %s: %w", Path(), err)
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
