// Package config loads the stickyboard configuration file and watches it for
// changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HendryAvila/stickyboard/internal/contextgraph"
	"github.com/HendryAvila/stickyboard/internal/provider"
	"github.com/HendryAvila/stickyboard/internal/relay"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvListen          = "STICKYBOARD_LISTEN"
	EnvDataDir         = "STICKYBOARD_DATA_DIR"
	EnvLogLevel        = "STICKYBOARD_LOG_LEVEL"
	EnvDefaultProvider = "STICKYBOARD_DEFAULT_PROVIDER"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full process configuration.
type Config struct {
	Listen  string `yaml:"listen"`
	DataDir string `yaml:"data_dir"`

	Log     LogConfig     `yaml:"log"`
	Context ContextConfig `yaml:"context"`
	Relay   RelayConfig   `yaml:"relay"`

	// DefaultProvider is used when a request names no provider.
	DefaultProvider string `yaml:"default_provider"`
	// ReasoningPrefixes overrides the built-in reasoning model allow-list.
	ReasoningPrefixes []string `yaml:"reasoning_prefixes"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// ContextConfig controls ancestor context assembly.
type ContextConfig struct {
	DefaultDepth int `yaml:"default_depth"`
}

// RelayConfig holds the completion relay tunables.
type RelayConfig struct {
	Temperature     float64       `yaml:"temperature"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	Buffer          int           `yaml:"buffer"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	rs := relay.DefaultSettings()
	return &Config{
		Listen:  "127.0.0.1:8080",
		DataDir: filepath.Join(home, ".stickyboard"),
		Log:     LogConfig{Level: "info"},
		Context: ContextConfig{DefaultDepth: 3},
		Relay: RelayConfig{
			Temperature:     rs.Temperature,
			MaxOutputTokens: rs.MaxOutputTokens,
			IdleTimeout:     rs.IdleTimeout,
			Buffer:          rs.Buffer,
		},
	}
}

// DefaultPath returns ~/.stickyboard/config.yaml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".stickyboard", "config.yaml")
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.DataDir = expandHome(cfg.DataDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvDefaultProvider); v != "" {
		c.DefaultProvider = v
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Listen == "":
		return fmt.Errorf("%w: listen address is empty", ErrInvalid)
	case c.DataDir == "":
		return fmt.Errorf("%w: data_dir is empty", ErrInvalid)
	case c.Context.DefaultDepth < contextgraph.MinDepth || c.Context.DefaultDepth > contextgraph.MaxDepth:
		return fmt.Errorf("%w: context.default_depth must be between %d and %d", ErrInvalid, contextgraph.MinDepth, contextgraph.MaxDepth)
	case c.Relay.Temperature < 0 || c.Relay.Temperature > 2:
		return fmt.Errorf("%w: relay.temperature must be between 0 and 2", ErrInvalid)
	case c.Relay.MaxOutputTokens <= 0:
		return fmt.Errorf("%w: relay.max_output_tokens must be positive", ErrInvalid)
	case c.Relay.IdleTimeout < 0:
		return fmt.Errorf("%w: relay.idle_timeout must not be negative", ErrInvalid)
	case c.Relay.Buffer <= 0:
		return fmt.Errorf("%w: relay.buffer must be positive", ErrInvalid)
	}
	return nil
}

// RelaySettings converts the relay section for the relay package.
func (c *Config) RelaySettings() relay.Settings {
	return relay.Settings{
		Temperature:     c.Relay.Temperature,
		MaxOutputTokens: c.Relay.MaxOutputTokens,
		IdleTimeout:     c.Relay.IdleTimeout,
		Buffer:          c.Relay.Buffer,
	}
}

// ProviderSettings converts the provider fields for the provider package.
func (c *Config) ProviderSettings() provider.Settings {
	return provider.Settings{
		DefaultProvider:   c.DefaultProvider,
		ReasoningPrefixes: c.ReasoningPrefixes,
	}
}

// Save writes cfg as YAML, creating the parent directory.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: creating directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encoding: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
