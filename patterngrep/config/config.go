package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	Version = "0.1.0"

	DefaultProxyPort      = 8181
	DefaultMCPPort        = 9191
	DefaultMaxBodyBytes   = 10 * 1024 * 1024
	DefaultMatchEngine    = "regexp2"
	DefaultMatchTimeoutMS = 2000

	dirName  = ".patterngrep"
	fileName = "config.json"
)

// Config holds the patterngrep settings stored in ~/.patterngrep/config.json
type Config struct {
	Version        string         `json:"version"`
	ProxyPort      int            `json:"proxy_port"`
	MCPPort        int            `json:"mcp_port"`
	MaxBodyBytes   int            `json:"max_body_bytes"`
	MatchEngine    string         `json:"match_engine"`
	MatchTimeoutMS int            `json:"match_timeout_ms"`
	DecodeBodies   *bool          `json:"decode_bodies,omitempty"`
	Timeouts       TimeoutsConfig `json:"timeouts"`
}

// TimeoutsConfig bounds upstream proxy I/O, in seconds.
type TimeoutsConfig struct {
	DialSeconds  int `json:"dial_seconds"`
	ReadSeconds  int `json:"read_seconds"`
	WriteSeconds int `json:"write_seconds"`
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	cfg := &Config{Version: Version}
	cfg.applyDefaults()
	return cfg
}

// Dir returns ~/.patterngrep, or a relative .patterngrep when the home
// directory cannot be resolved.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return dirName
	}
	return filepath.Join(home, dirName)
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), fileName)
}

// Load reads and parses config from the given path.
// If the file doesn't exist, returns os.ErrNotExist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, cfg.Validate()
}

// LoadOrCreatePath loads the config at path, writing defaults first when the
// file does not exist.
func LoadOrCreatePath(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg = DefaultConfig()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	} else if err := cfg.Save(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to the given path atomically.
func (c *Config) Save(path string) error {
	if c == nil {
		return errors.New("config is nil")
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// Validate rejects values the service cannot start with.
func (c *Config) Validate() error {
	switch c.MatchEngine {
	case "regexp2", "re2":
	default:
		return fmt.Errorf("invalid match_engine %q: must be regexp2 or re2", c.MatchEngine)
	}
	if c.ProxyPort < 0 || c.ProxyPort > 65535 {
		return fmt.Errorf("invalid proxy_port %d", c.ProxyPort)
	} else if c.MCPPort < 0 || c.MCPPort > 65535 {
		return fmt.Errorf("invalid mcp_port %d", c.MCPPort)
	}
	return nil
}

// ShouldDecodeBodies reports whether response bodies are decompressed and
// transcoded before matching. Defaults to true.
func (c *Config) ShouldDecodeBodies() bool {
	return c.DecodeBodies == nil || *c.DecodeBodies
}

// MatchTimeout converts match_timeout_ms. A negative value disables the limit.
func (c *Config) MatchTimeout() time.Duration {
	if c.MatchTimeoutMS < 0 {
		return -1
	}
	return time.Duration(c.MatchTimeoutMS) * time.Millisecond
}

func (t TimeoutsConfig) Dial() time.Duration  { return time.Duration(t.DialSeconds) * time.Second }
func (t TimeoutsConfig) Read() time.Duration  { return time.Duration(t.ReadSeconds) * time.Second }
func (t TimeoutsConfig) Write() time.Duration { return time.Duration(t.WriteSeconds) * time.Second }

// applyDefaults fills in zero values with defaults
func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = Version
	}
	if c.ProxyPort == 0 {
		c.ProxyPort = DefaultProxyPort
	}
	if c.MCPPort == 0 {
		c.MCPPort = DefaultMCPPort
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.MatchEngine == "" {
		c.MatchEngine = DefaultMatchEngine
	}
	if c.MatchTimeoutMS == 0 {
		c.MatchTimeoutMS = DefaultMatchTimeoutMS
	}
	if c.Timeouts.DialSeconds == 0 {
		c.Timeouts.DialSeconds = 10
	}
	if c.Timeouts.ReadSeconds == 0 {
		c.Timeouts.ReadSeconds = 60
	}
	if c.Timeouts.WriteSeconds == 0 {
		c.Timeouts.WriteSeconds = 30
	}
}
