// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/luminous-tui/internal/luminous"
	"github.com/jeranaias/luminous-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete luminous configuration.
type Config struct {
	Server   ServerConfig   `toml:"server" json:"server"`
	Model    ModelConfig    `toml:"model" json:"model"`
	Sampling SamplingConfig `toml:"sampling" json:"sampling"`
	Research ResearchConfig `toml:"research" json:"research"`
	UI       UIConfig       `toml:"ui" json:"ui"`
	Storage  StorageConfig  `toml:"storage" json:"storage"`
	Logging  LoggingConfig  `toml:"logging" json:"logging"`
	Serve    ServeConfig    `toml:"serve" json:"serve"`
}

// ServerConfig locates the chat backend.
type ServerConfig struct {
	// URL is the base URL of the backend, e.g. http://127.0.0.1:8000.
	// Empty means not configured.
	URL string `toml:"url" json:"url"`
	// TimeoutSecs bounds non-streaming API calls.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// ModelConfig selects the model and what is sent with every request.
type ModelConfig struct {
	// Default is the model id selected on startup.
	Default      string `toml:"default" json:"default"`
	SystemPrompt string `toml:"system_prompt" json:"system_prompt"`
	// History is the number of transcript messages sent with a request.
	History int `toml:"history" json:"history"`
	// VisionModels marks model ids as vision capable in addition to what
	// the server advertises.
	VisionModels []string `toml:"vision_models" json:"vision_models"`
}

// SamplingConfig holds the generation parameters of regular chats.
type SamplingConfig struct {
	Temperature      float64 `toml:"temperature" json:"temperature"`
	TopP             float64 `toml:"top_p" json:"top_p"`
	MaxTokens        int     `toml:"max_tokens" json:"max_tokens"`
	TopK             int     `toml:"top_k" json:"top_k"`
	MinP             float64 `toml:"min_p" json:"min_p"`
	PresencePenalty  float64 `toml:"presence_penalty" json:"presence_penalty"`
	FrequencyPenalty float64 `toml:"frequency_penalty" json:"frequency_penalty"`
	// Reasoning is none, low, medium or high.
	Reasoning string `toml:"reasoning" json:"reasoning"`
}

// ResearchConfig holds the initial mode toggles of a new chat.
type ResearchConfig struct {
	DeepResearch bool   `toml:"deep_research" json:"deep_research"`
	MemoryMode   bool   `toml:"memory_mode" json:"memory_mode"`
	SearchDepth  string `toml:"search_depth" json:"search_depth"`
	VisionModel  string `toml:"vision_model" json:"vision_model"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Theme is dark, light, auto or plain.
	Theme        string `toml:"theme" json:"theme"`
	Markdown     bool   `toml:"markdown" json:"markdown"`
	ShowThoughts bool   `toml:"show_thoughts" json:"show_thoughts"`
	ShowUsage    bool   `toml:"show_usage" json:"show_usage"`
	// AutoReload applies config file edits while the TUI runs.
	AutoReload bool `toml:"auto_reload" json:"auto_reload"`
}

// StorageConfig selects where chats are kept.
type StorageConfig struct {
	// Mode is "server" (the backend stores chats) or "local" (a sqlite
	// file on this machine).
	Mode string `toml:"mode" json:"mode"`
	Path string `toml:"path" json:"path"`
}

// LoggingConfig controls the log file.
type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
	Dir   string `toml:"dir" json:"dir"`
}

// ServeConfig configures the local replay server.
type ServeConfig struct {
	Addr   string `toml:"addr" json:"addr"`
	Script string `toml:"script" json:"script"`
	// Database persists served chats; empty keeps them in memory.
	Database string `toml:"database" json:"database"`
}

// Storage modes.
const (
	StorageServer = "server"
	StorageLocal  = "local"
)

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with the default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:         "http://127.0.0.1:8000",
			TimeoutSecs: 30,
		},
		Model: ModelConfig{
			History: 20,
		},
		Sampling: SamplingConfig{
			Temperature: 0.7,
			TopP:        0.95,
			MaxTokens:   4096,
			TopK:        40,
			MinP:        0.05,
			Reasoning:   "medium",
		},
		Research: ResearchConfig{
			SearchDepth: "regular",
		},
		UI: UIConfig{
			Theme:        "dark",
			Markdown:     true,
			ShowThoughts: true,
			ShowUsage:    true,
			AutoReload:   true,
		},
		Storage: StorageConfig{
			Mode: StorageServer,
			Path: "~/.luminous/chats.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Serve: ServeConfig{
			Addr: "127.0.0.1:8000",
		},
	}
}

// WireSampling returns the sampling settings for a request. Reasoning keeps
// the configured level; the request builder maps it.
func (c *Config) WireSampling() luminous.Sampling {
	s := c.Sampling
	return luminous.Sampling{
		Temperature:      s.Temperature,
		TopP:             s.TopP,
		MaxTokens:        s.MaxTokens,
		TopK:             s.TopK,
		MinP:             s.MinP,
		PresencePenalty:  s.PresencePenalty,
		FrequencyPenalty: s.FrequencyPenalty,
		Reasoning:        s.Reasoning,
	}
}

// IsVisionModel reports whether id is listed in model.vision_models.
func (c *Config) IsVisionModel(id string) bool {
	for _, m := range c.Model.VisionModels {
		if strings.EqualFold(m, id) {
			return true
		}
	}
	return false
}

// Configured reports whether a backend URL is set.
func (c *Config) Configured() bool {
	return strings.TrimSpace(c.Server.URL) != ""
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the luminous configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".luminous"), nil
}

// ConfigPath returns the path of the config file. LUMINOUS_CONFIG
// overrides the default ~/.luminous/config.toml.
func ConfigPath() (string, error) {
	if p := os.Getenv("LUMINOUS_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions tightens a config file to 0600.
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

// Load reads the config file, falling back to defaults when it does not
// exist. .env files and environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFromPath(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		if err := cfg.finish(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return cfg, err
}

// LoadFromPath loads configuration from path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, err
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTOML decodes path over cfg. Keys missing from the file keep the
// values already in cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func (c *Config) finish() error {
	LoadDotEnv()
	c.ApplyEnvOverrides()
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadDotEnv loads .env from the working directory and from the config
// directory. Variables already set in the environment win; missing files
// are ignored.
func LoadDotEnv() {
	var files []string
	if _, err := os.Stat(".env"); err == nil {
		files = append(files, ".env")
	}
	if dir, err := ConfigDir(); err == nil {
		p := filepath.Join(dir, ".env")
		if _, err := os.Stat(p); err == nil {
			files = append(files, p)
		}
	}
	if len(files) == 0 {
		return
	}
	if err := godotenv.Load(files...); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env: %v\n", err)
	}
}

// SetDefaults fills zero values that would make the config unusable.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Server.TimeoutSecs <= 0 {
		c.Server.TimeoutSecs = d.Server.TimeoutSecs
	}
	if c.Model.History <= 0 {
		c.Model.History = d.Model.History
	}
	if c.Sampling.Reasoning == "" {
		c.Sampling.Reasoning = d.Sampling.Reasoning
	}
	if c.Sampling.MaxTokens == 0 {
		c.Sampling.MaxTokens = d.Sampling.MaxTokens
	}
	if c.Research.SearchDepth == "" {
		c.Research.SearchDepth = d.Research.SearchDepth
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.Storage.Mode == "" {
		c.Storage.Mode = d.Storage.Mode
	}
	if c.Storage.Path == "" {
		c.Storage.Path = d.Storage.Path
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = d.Serve.Addr
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default config path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML atomically writes cfg to path with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# luminous configuration file\n")
	buf.WriteString("# Edit with care; the TUI reloads this file while running.\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
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

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return true
		}
	}
	return false
}

// Validate checks every setting and returns all problems at once.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Server
	if raw := strings.TrimSpace(c.Server.URL); raw != "" {
		u, err := url.Parse(raw)
		switch {
		case err != nil:
			add("server.url", "invalid URL: %v", err)
		case u.Scheme != "http" && u.Scheme != "https":
			add("server.url", "scheme must be http or https, got %q", u.Scheme)
		case u.Host == "":
			add("server.url", "missing host")
		}
	}
	if c.Server.TimeoutSecs < 0 || c.Server.TimeoutSecs > 3600 {
		add("server.timeout_secs", "must be between 0 and 3600")
	}

	// Model
	if c.Model.History < 1 || c.Model.History > 1000 {
		add("model.history", "must be between 1 and 1000")
	}

	// Sampling
	s := c.Sampling
	if s.Temperature < 0 || s.Temperature > 2 {
		add("sampling.temperature", "must be between 0 and 2")
	}
	if s.TopP < 0 || s.TopP > 1 {
		add("sampling.top_p", "must be between 0 and 1")
	}
	if s.MinP < 0 || s.MinP > 1 {
		add("sampling.min_p", "must be between 0 and 1")
	}
	if s.MaxTokens < 1 {
		add("sampling.max_tokens", "must be positive")
	}
	if s.TopK < 0 {
		add("sampling.top_k", "must not be negative")
	}
	if s.PresencePenalty < -2 || s.PresencePenalty > 2 {
		add("sampling.presence_penalty", "must be between -2 and 2")
	}
	if s.FrequencyPenalty < -2 || s.FrequencyPenalty > 2 {
		add("sampling.frequency_penalty", "must be between -2 and 2")
	}
	if !oneOf(s.Reasoning, "none", "low", "medium", "high") {
		add("sampling.reasoning", "invalid level %q, must be one of: none, low, medium, high", s.Reasoning)
	}

	// Research
	if !oneOf(c.Research.SearchDepth, "regular", "deep") {
		add("research.search_depth", "invalid depth %q, must be regular or deep", c.Research.SearchDepth)
	}

	// UI
	if !oneOf(c.UI.Theme, "dark", "light", "auto", "plain") {
		add("ui.theme", "invalid theme %q, must be one of: dark, light, auto, plain", c.UI.Theme)
	}

	// Storage
	if !oneOf(c.Storage.Mode, StorageServer, StorageLocal) {
		add("storage.mode", "invalid mode %q, must be server or local", c.Storage.Mode)
	}

	// Logging
	if !oneOf(c.Logging.Level, "debug", "info", "warn", "error") {
		add("logging.level", "invalid level %q, must be one of: debug, info, warn, error", c.Logging.Level)
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
//   - LUMINOUS_SERVER_URL: overrides server.url
//   - LUMINOUS_MODEL: overrides model.default
//   - LUMINOUS_SYSTEM_PROMPT: overrides model.system_prompt
//   - LUMINOUS_STORAGE: overrides storage.mode
//   - LUMINOUS_DB_PATH: overrides storage.path
//   - LUMINOUS_THEME: overrides ui.theme
//   - LUMINOUS_LOG_LEVEL: overrides logging.level
//   - LUMINOUS_DEEP_RESEARCH: "1" or "true" enables research mode
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("LUMINOUS_SERVER_URL"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("LUMINOUS_MODEL"); v != "" {
		c.Model.Default = v
	}
	if v := os.Getenv("LUMINOUS_SYSTEM_PROMPT"); v != "" {
		c.Model.SystemPrompt = v
	}
	if v := os.Getenv("LUMINOUS_STORAGE"); v != "" {
		c.Storage.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("LUMINOUS_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("LUMINOUS_THEME"); v != "" {
		c.UI.Theme = strings.ToLower(v)
	}
	if v := os.Getenv("LUMINOUS_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LUMINOUS_DEEP_RESEARCH"); v != "" {
		c.Research.DeepResearch = parseBool(v)
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// field resolves a dotted key to a struct field.
func (c *Config) field(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		name := normalizeFieldName(part)
		f := v.FieldByNameFunc(func(n string) bool { return strings.EqualFold(n, name) })
		if !f.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return f, nil
		}
		if f.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = f
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// Get retrieves a configuration value using dot notation (e.g., "sampling.top_p").
func (c *Config) Get(key string) (any, error) {
	f, err := c.field(key)
	if err != nil {
		return nil, err
	}
	return f.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field type; lists are comma separated.
func (c *Config) Set(key string, value any) error {
	f, err := c.field(key)
	if err != nil {
		return err
	}
	if f.Kind() == reflect.Struct {
		return fmt.Errorf("cannot set section: %s", key)
	}
	if !f.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(f, value)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	var result strings.Builder
	for _, part := range parts {
		result.WriteString(strings.ToUpper(part[:1]))
		result.WriteString(strings.ToLower(part[1:]))
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from a value with type conversion.
func setFieldValue(field reflect.Value, value any) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strings.TrimSpace(strVal), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strings.TrimSpace(strVal), 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(strVal))
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, item := range strings.Split(strVal, ",") {
					if item = strings.TrimSpace(item); item != "" {
						items = append(items, item)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Keys returns every configuration key in dot notation, in file order.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		prefix := tomlName(section)
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, prefix+"."+tomlName(section.Type.Field(j)))
		}
	}
	return keys
}

func tomlName(f reflect.StructField) string {
	if tag, _, _ := strings.Cut(f.Tag.Get("toml"), ","); tag != "" {
		return tag
	}
	return strings.ToLower(f.Name)
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Model.VisionModels != nil {
		clone.Model.VisionModels = append([]string(nil), c.Model.VisionModels...)
	}
	return &clone
}

// String returns the config as indented JSON with the system prompt
// shortened.
func (c *Config) String() string {
	safe := c.Clone()
	safe.Model.SystemPrompt = util.TruncateRunes(safe.Model.SystemPrompt, 60)
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

// Global returns the global configuration instance, loading it on first
// access. Load errors fall back to defaults.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
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

// ReloadGlobal reloads the global configuration from disk.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state between tests.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
