// Package config provides file configuration parsing for the averager binary.
//
// This package enables running the averager as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
// Files ending in .toml are decoded as TOML; everything else is YAML.
//
// Example configuration:
//
//	title: Random Average
//	port: 8080
//	poll_interval: 1s
//	cooldown: 2s
//	log_level: info
//
//	source:
//	  url: ${CSRNG_URL:-https://csrng.net/csrng/csrng.php}
//	  min: 0
//	  max: 100
//	  timeout: 5s
//	  rate_limit_code: "5"
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/averager"
)

// minPollInterval is the minimum allowed polling interval.
const minPollInterval = 100 * time.Millisecond

// minTimeout is the minimum allowed request timeout.
const minTimeout = 100 * time.Millisecond

const (
	defaultPort         = 8080
	defaultPollInterval = time.Second
	defaultCooldown     = 2 * time.Second
	defaultTimeout      = 5 * time.Second
	defaultMin          = 0
	defaultMax          = 100
	defaultLogLevel     = "info"
)

// Config is the root configuration structure.
//
// It maps directly to the configuration file structure.
// Use [Load], [Parse] or [ParseTOML] to create a Config.
type Config struct {
	// Title is the dashboard title. Defaults to "Averager" if not set.
	Title string `yaml:"title" toml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port" toml:"port"`

	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level" toml:"log_level"`

	// AutoStart begins polling as soon as the server is up. Defaults to true.
	AutoStart *bool `yaml:"autostart" toml:"autostart"`

	// PollInterval is the delay between the end of one fetch and the next.
	// Accepts duration strings like "1s", "500ms". Defaults to 1s.
	PollInterval Duration `yaml:"poll_interval" toml:"poll_interval"`

	// Cooldown is how long polling pauses after a rate-limit response.
	// Defaults to 2s.
	Cooldown Duration `yaml:"cooldown" toml:"cooldown"`

	// Source describes the random number source.
	Source SourceConfig `yaml:"source" toml:"source"`
}

// SourceConfig describes the remote random number source.
type SourceConfig struct {
	// URL is the source endpoint without query parameters.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url" toml:"url"`

	// Min and Max bound the requested number. Default to 0 and 100.
	Min *float64 `yaml:"min" toml:"min"`
	Max *float64 `yaml:"max" toml:"max"`

	// Timeout is the per-request timeout. Defaults to 5s.
	Timeout Duration `yaml:"timeout" toml:"timeout"`

	// RateLimitCode is the error code the source uses to signal throttling.
	// Defaults to "5".
	RateLimitCode string `yaml:"rate_limit_code" toml:"rate_limit_code"`
}

// Duration wraps time.Duration for YAML and TOML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler, used by the TOML decoder.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Enabled reports whether polling starts automatically.
func (c *Config) Enabled() bool {
	return c.AutoStart == nil || *c.AutoStart
}

// SlogLevel maps LogLevel to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a configuration file.
//
// Files with a .toml extension are decoded as TOML, anything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return ParseTOML(data)
	}
	return Parse(data)
}

// Parse parses YAML configuration data, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return finish(&cfg)
}

// ParseTOML parses TOML configuration data, applies defaults and validates.
func ParseTOML(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.applyDefaults()
	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.PollInterval == 0 {
		c.PollInterval = Duration(defaultPollInterval)
	}
	if c.Cooldown == 0 {
		c.Cooldown = Duration(defaultCooldown)
	}
	if c.Source.URL == "" {
		c.Source.URL = averager.DefaultSourceURL
	}
	if c.Source.Min == nil {
		v := float64(defaultMin)
		c.Source.Min = &v
	}
	if c.Source.Max == nil {
		v := float64(defaultMax)
		c.Source.Max = &v
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = Duration(defaultTimeout)
	}
	if c.Source.RateLimitCode == "" {
		c.Source.RateLimitCode = averager.DefaultRateLimitCode
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}

	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.Cooldown.Duration() <= 0 {
		return fmt.Errorf("cooldown must be positive, got %s", c.Cooldown.Duration())
	}

	expanded, err := expandEnvVars(c.Source.URL)
	if err != nil {
		return fmt.Errorf("source: url: %w", err)
	}
	c.Source.URL = expanded

	if err := ValidateSourceURL(c.Source.URL); err != nil {
		return fmt.Errorf("source: %w", err)
	}

	if *c.Source.Min >= *c.Source.Max {
		return fmt.Errorf("source: min must be less than max, got min=%v max=%v", *c.Source.Min, *c.Source.Max)
	}

	if c.Source.Timeout.Duration() < minTimeout {
		return fmt.Errorf("source: timeout must be at least %s, got %s", minTimeout, c.Source.Timeout.Duration())
	}

	return nil
}

// ValidateSourceURL checks that raw is an absolute http or https URL with a host.
func ValidateSourceURL(raw string) error {
	parsedURL, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return fmt.Errorf("url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("url must have a host")
	}
	return nil
}
