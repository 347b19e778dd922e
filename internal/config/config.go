// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for pagetutor.
//
// Configuration file locations (in order of precedence):
//   - ~/.pagetutor/config.toml
//   - ~/.pagetutor/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/pagetutor/internal/util"
)

// Provider names.
const (
	ProviderOllama = "ollama"
	ProviderClaude = "claude"
)

// ConfigVersion is written into new config files.
const ConfigVersion = "1"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the main configuration structure.
type Config struct {
	Version string `toml:"version" json:"version"`

	LLM     LLMConfig     `toml:"llm" json:"llm"`
	Tutor   TutorConfig   `toml:"tutor" json:"tutor"`
	Server  ServerConfig  `toml:"server" json:"server"`
	Library LibraryConfig `toml:"library" json:"library"`
	Viewer  ViewerConfig  `toml:"viewer" json:"viewer"`
}

// LLMConfig selects the model that answers questions.
type LLMConfig struct {
	// Provider is "ollama" or "claude"
	Provider string `toml:"provider" json:"provider"`

	// Model name; empty selects the provider default
	Model string `toml:"model" json:"model"`

	// BaseURL of the provider API; empty selects the provider default
	BaseURL string `toml:"base_url" json:"base_url"`

	// APIKey is required for claude
	APIKey string `toml:"api_key" json:"api_key,omitempty"`

	// Timeout in seconds for one exchange
	Timeout int `toml:"timeout" json:"timeout"`
}

// TutorConfig controls exchange pacing and history.
type TutorConfig struct {
	// RequestsPerMinute paces outbound LLM requests (0 = unlimited)
	RequestsPerMinute int `toml:"requests_per_minute" json:"requests_per_minute"`

	// History is the number of transcript messages kept per document
	History int `toml:"history" json:"history"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Addr string `toml:"addr" json:"addr"`

	// APIKey enables bearer authentication when set
	APIKey string `toml:"api_key" json:"api_key,omitempty"`

	CORSOrigins []string `toml:"cors_origins" json:"cors_origins"`

	// RateLimit is requests per minute per client IP (0 = unlimited)
	RateLimit int `toml:"rate_limit" json:"rate_limit"`

	// SessionTTL in minutes
	SessionTTL int `toml:"session_ttl" json:"session_ttl"`
}

// LibraryConfig locates persisted documents and transcripts.
type LibraryConfig struct {
	DBPath         string `toml:"db_path" json:"db_path"`
	ImportDir      string `toml:"import_dir" json:"import_dir"`
	TranscriptsDir string `toml:"transcripts_dir" json:"transcripts_dir"`
}

// ViewerConfig holds rendering defaults.
type ViewerConfig struct {
	// DefaultScale is used when a page mounts without a measured scale
	DefaultScale float64 `toml:"default_scale" json:"default_scale"`

	// Color is used for highlights that name none
	Color string `toml:"color" json:"color"`
}

// TimeoutDuration returns the exchange timeout.
func (l LLMConfig) TimeoutDuration() time.Duration {
	return time.Duration(l.Timeout) * time.Second
}

// SessionTTLDuration returns the server session lifetime.
func (s ServerConfig) SessionTTLDuration() time.Duration {
	return time.Duration(s.SessionTTL) * time.Minute
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Version: ConfigVersion,
		LLM: LLMConfig{
			Provider: ProviderOllama,
			Timeout:  120,
		},
		Tutor: TutorConfig{
			RequestsPerMinute: 20,
			History:           500,
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:8787",
			CORSOrigins: []string{"*"},
			RateLimit:   120,
			SessionTTL:  60,
		},
		Viewer: ViewerConfig{
			DefaultScale: 1.0,
			Color:        "yellow",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the pagetutor configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv("PAGETUTOR_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".pagetutor"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ensureSecurePermissions narrows config files to 0600, they may hold API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFrom(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFrom loads configuration from a specific file with full validation.
// Files ending in .json are read as JSON, everything else as TOML.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if err := ensureSecurePermissions(path); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if strings.HasSuffix(path, ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read JSON config from %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode JSON config from %s: %w", path, err)
		}
	} else {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills empty values. Paths default to the config directory.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = d.LLM.Provider
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = d.LLM.Timeout
	}
	if c.Tutor.History == 0 {
		c.Tutor.History = d.Tutor.History
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.SessionTTL == 0 {
		c.Server.SessionTTL = d.Server.SessionTTL
	}
	if c.Viewer.DefaultScale == 0 {
		c.Viewer.DefaultScale = d.Viewer.DefaultScale
	}
	if c.Viewer.Color == "" {
		c.Viewer.Color = d.Viewer.Color
	}

	dir, err := ConfigDir()
	if err != nil {
		return
	}
	if c.Library.DBPath == "" {
		c.Library.DBPath = filepath.Join(dir, "library.db")
	}
	if c.Library.TranscriptsDir == "" {
		c.Library.TranscriptsDir = filepath.Join(dir, "transcripts")
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to path with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# pagetutor configuration file\n")
	b.WriteString("# Generated by pagetutor - edit with care\n\n")
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
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

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration. The returned error is a
// ValidationErrors when any field is invalid.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch strings.ToLower(c.LLM.Provider) {
	case ProviderOllama:
	case ProviderClaude:
		if c.LLM.APIKey == "" {
			add("llm.api_key", "required for provider %q", ProviderClaude)
		}
	default:
		add("llm.provider", "invalid provider '%s', must be one of: ollama, claude", c.LLM.Provider)
	}
	if c.LLM.BaseURL != "" {
		if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			add("llm.base_url", "invalid URL '%s'", c.LLM.BaseURL)
		}
	}
	if c.LLM.Timeout < 0 {
		add("llm.timeout", "must not be negative")
	}

	if c.Tutor.RequestsPerMinute < 0 {
		add("tutor.requests_per_minute", "must not be negative")
	}
	if c.Tutor.History < 0 {
		add("tutor.history", "must not be negative")
	}

	if c.Server.Addr != "" && !strings.Contains(c.Server.Addr, ":") {
		add("server.addr", "must be host:port, got '%s'", c.Server.Addr)
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "must not be negative")
	}
	if c.Server.SessionTTL < 0 {
		add("server.session_ttl", "must not be negative")
	}

	if c.Viewer.DefaultScale < 0 {
		add("viewer.default_scale", "must be positive")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - PAGETUTOR_PROVIDER: overrides llm.provider
//   - PAGETUTOR_MODEL: overrides llm.model
//   - PAGETUTOR_BASE_URL: overrides llm.base_url
//   - PAGETUTOR_API_KEY, ANTHROPIC_API_KEY: override llm.api_key
//   - PAGETUTOR_ADDR: overrides server.addr
//   - PAGETUTOR_SERVER_KEY: overrides server.api_key
//   - PAGETUTOR_DB: overrides library.db_path
//   - PAGETUTOR_IMPORT_DIR: overrides library.import_dir
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PAGETUTOR_PROVIDER"); v != "" {
		c.LLM.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("PAGETUTOR_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("PAGETUTOR_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("PAGETUTOR_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("PAGETUTOR_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("PAGETUTOR_SERVER_KEY"); v != "" {
		c.Server.APIKey = v
	}
	if v := os.Getenv("PAGETUTOR_DB"); v != "" {
		c.Library.DBPath = v
	}
	if v := os.Getenv("PAGETUTOR_IMPORT_DIR"); v != "" {
		c.Library.ImportDir = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value by its TOML key path (e.g., "llm.base_url").
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value by its TOML key path. String values are converted
// to the field's type.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if tag, _, _ := strings.Cut(t.Field(i).Tag.Get("toml"), ","); tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from a value with type conversion.
func setFieldValue(field reflect.Value, value any) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var parts []string
				for _, p := range strings.Split(strVal, ",") {
					if p = strings.TrimSpace(p); p != "" {
						parts = append(parts, p)
					}
				}
				field.Set(reflect.ValueOf(parts))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Server.CORSOrigins != nil {
		clone.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	}
	return &clone
}

// String returns the config as JSON with API keys redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.LLM.APIKey != "" {
		safe.LLM.APIKey = "[REDACTED]"
	}
	if safe.Server.APIKey != "" {
		safe.Server.APIKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
			cfg.SetDefaults()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
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
