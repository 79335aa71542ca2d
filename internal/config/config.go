// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for
// strand.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.strand/config.toml
//   - Built-in defaults
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete strand configuration.
type Config struct {
	// General settings
	Version      string `toml:"version"`
	DefaultModel string `toml:"default_model"`

	// Server connection configuration
	Server ServerConfig `toml:"server"`

	// Streaming behaviour configuration
	Stream StreamConfig `toml:"stream"`

	// Inference pass-through configuration
	Inference InferenceConfig `toml:"inference"`

	// Local history archive configuration
	History HistoryConfig `toml:"history"`

	// UI configuration
	UI UIConfig `toml:"ui"`
}

// ServerConfig contains Sequence API connection settings.
type ServerConfig struct {
	// URL is the base URL of the Sequence API server
	URL string `toml:"url"`
	// TimeoutSecs is the request timeout for non-streaming calls, in
	// seconds. Streaming calls are unbounded and stopped by cancellation.
	TimeoutSecs int `toml:"timeout_secs"`
	// ReadBufferBytes is the size of each network read while streaming
	ReadBufferBytes int `toml:"read_buffer_bytes"`
}

// StreamConfig tunes how streamed responses are surfaced.
type StreamConfig struct {
	// FlushIntervalMS bounds how often buffered content/status updates
	// become visible. Valid range is 10-1000; values outside are clamped.
	FlushIntervalMS int `toml:"flush_interval_ms"`
	// GateCapacity caps how many continuations may be submitted to the
	// backend concurrently. The backend generates single-threaded, so the
	// default is 1.
	GateCapacity int `toml:"gate_capacity"`
}

// InferenceConfig holds values passed through to the server opaquely.
type InferenceConfig struct {
	// AutonamingModel is the model used for sequence autonaming
	AutonamingModel string `toml:"autonaming_model"`
	// AutonamingPolicy selects when the server autonames: "never",
	// "first_response", "always"
	AutonamingPolicy string `toml:"autonaming_policy"`
	// RetrievalPolicy controls retrieval-augmented context injection
	RetrievalPolicy string `toml:"retrieval_policy"`
	// Options are raw inference options (temperature, num_ctx, ...)
	Options map[string]any `toml:"options"`
}

// HistoryConfig contains the local exchange archive settings.
type HistoryConfig struct {
	// Enabled controls whether completed exchanges are archived locally
	Enabled bool `toml:"enabled"`
	// Path is the SQLite database path (empty = ~/.strand/history.db)
	Path string `toml:"path"`
	// RetentionDays is how long archived exchanges are kept before Prune
	// removes them (0 = keep forever)
	RetentionDays int `toml:"retention_days"`
}

// UIConfig contains terminal presentation settings.
type UIConfig struct {
	// Color enables styled output
	Color bool `toml:"color"`
	// ShowStatus displays transient server status lines while streaming
	ShowStatus bool `toml:"show_status"`
	// TitleWidth is the display width sequence titles are truncated to
	TitleWidth int `toml:"title_width"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version:      "1.0.0",
		DefaultModel: "",

		Server: ServerConfig{
			URL:             "http://127.0.0.1:8080",
			TimeoutSecs:     30,
			ReadBufferBytes: 4096,
		},

		Stream: StreamConfig{
			FlushIntervalMS: 80,
			GateCapacity:    1,
		},

		Inference: InferenceConfig{
			AutonamingPolicy: "first_response",
			RetrievalPolicy:  "none",
		},

		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 0, // keep forever
		},

		UI: UIConfig{
			Color:      true,
			ShowStatus: true,
			TitleWidth: 48,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the strand configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".strand"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// HistoryPath resolves the archive database path, falling back to the
// default location inside the config directory.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load loads configuration from the config file, falling back to defaults
// when no file exists. Environment overrides are applied last, then the
// result is normalized and validated.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path with full
// validation. A missing file is not an error; defaults apply.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath saves the configuration to a TOML file, creating the parent
// directory if necessary.
func SaveToPath(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	fmt.Fprintln(file, "# strand configuration file")
	fmt.Fprintln(file, "# Generated by strand - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Server.URL != "" {
		if u, err := url.Parse(c.Server.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "server.url",
				Message: fmt.Sprintf("invalid URL '%s'", c.Server.URL),
			})
		}
	}

	if c.Server.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.timeout_secs",
			Message: "must be non-negative",
		})
	}

	validAutonaming := map[string]bool{"never": true, "first_response": true, "always": true}
	if c.Inference.AutonamingPolicy != "" && !validAutonaming[strings.ToLower(c.Inference.AutonamingPolicy)] {
		errs = append(errs, ValidationError{
			Field:   "inference.autonaming_policy",
			Message: fmt.Sprintf("invalid policy '%s', must be one of: never, first_response, always", c.Inference.AutonamingPolicy),
		})
	}

	if c.History.RetentionDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "history.retention_days",
			Message: "must be non-negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults normalizes missing or out-of-range values. Range violations
// on tuning knobs are clamped rather than rejected.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Server.URL == "" {
		c.Server.URL = defaults.Server.URL
	}
	if c.Server.TimeoutSecs == 0 {
		c.Server.TimeoutSecs = defaults.Server.TimeoutSecs
	}
	if c.Server.ReadBufferBytes <= 0 {
		c.Server.ReadBufferBytes = defaults.Server.ReadBufferBytes
	}

	// A flush cadence outside 10-1000ms defeats its purpose; clamp.
	if c.Stream.FlushIntervalMS == 0 {
		c.Stream.FlushIntervalMS = defaults.Stream.FlushIntervalMS
	}
	if c.Stream.FlushIntervalMS < 10 {
		c.Stream.FlushIntervalMS = 10
	}
	if c.Stream.FlushIntervalMS > 1000 {
		c.Stream.FlushIntervalMS = 1000
	}

	if c.Stream.GateCapacity < 1 {
		c.Stream.GateCapacity = defaults.Stream.GateCapacity
	}

	if c.Inference.AutonamingPolicy == "" {
		c.Inference.AutonamingPolicy = defaults.Inference.AutonamingPolicy
	}
	if c.Inference.RetrievalPolicy == "" {
		c.Inference.RetrievalPolicy = defaults.Inference.RetrievalPolicy
	}

	if c.UI.TitleWidth <= 0 {
		c.UI.TitleWidth = defaults.UI.TitleWidth
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - STRAND_SERVER_URL: overrides server.url
//   - STRAND_MODEL: overrides default_model
//   - STRAND_TIMEOUT_SECS: overrides server.timeout_secs
//   - STRAND_FLUSH_MS: overrides stream.flush_interval_ms
//   - STRAND_GATE_CAPACITY: overrides stream.gate_capacity
//   - STRAND_HISTORY_PATH: overrides history.path
//   - STRAND_NO_HISTORY: set to "1" or "true" to disable the archive
//   - STRAND_NO_COLOR / NO_COLOR: disable styled output
func (c *Config) ApplyEnvOverrides() {
	if serverURL := os.Getenv("STRAND_SERVER_URL"); serverURL != "" {
		c.Server.URL = serverURL
	}

	if model := os.Getenv("STRAND_MODEL"); model != "" {
		c.DefaultModel = model
	}

	if secs := os.Getenv("STRAND_TIMEOUT_SECS"); secs != "" {
		if n, err := strconv.Atoi(secs); err == nil {
			c.Server.TimeoutSecs = n
		}
	}

	if ms := os.Getenv("STRAND_FLUSH_MS"); ms != "" {
		if n, err := strconv.Atoi(ms); err == nil {
			c.Stream.FlushIntervalMS = n
		}
	}

	if capStr := os.Getenv("STRAND_GATE_CAPACITY"); capStr != "" {
		if n, err := strconv.Atoi(capStr); err == nil {
			c.Stream.GateCapacity = n
		}
	}

	if path := os.Getenv("STRAND_HISTORY_PATH"); path != "" {
		c.History.Path = path
	}

	if off := os.Getenv("STRAND_NO_HISTORY"); off != "" {
		c.History.Enabled = !(off == "1" || strings.ToLower(off) == "true")
	}

	if os.Getenv("STRAND_NO_COLOR") != "" || os.Getenv("NO_COLOR") != "" {
		c.UI.Color = false
	}
}

// =============================================================================
// GLOBAL INSTANCE (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance. Loads configuration
// on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
