package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dshills/marginalia/internal/validate"
)

const appName = "marginalia"

// Config represents the marginalia configuration.
type Config struct {
	Provider         string        `json:"provider" validate:"required"`
	Model            string        `json:"model,omitempty"`
	BaseURL          string        `json:"baseUrl,omitempty" validate:"omitempty,url"`
	Personas         []string      `json:"personas,omitempty"`
	PersonasFile     string        `json:"personasFile,omitempty"`
	Format           string        `json:"format" validate:"oneof=text json markdown"`
	MaxComments      int           `json:"maxComments" validate:"min=0,max=200"`
	MaxDocumentBytes int           `json:"maxDocumentBytes" validate:"min=1"`
	Temperature      float64       `json:"temperature" validate:"min=0,max=2"`
	ContextWindow    int           `json:"contextWindow" validate:"min=0"`
	TimeoutSeconds   int           `json:"timeoutSeconds" validate:"min=1"`
	Stream           bool          `json:"stream"`
	Concurrency      int           `json:"concurrency" validate:"min=1,max=32"`
	Server           ServerConfig  `json:"server"`
	Log              LogConfig     `json:"log"`
	Cache            CacheConfig   `json:"cache"`
	Privacy          PrivacyConfig `json:"privacy"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr        string   `json:"addr" validate:"required"`
	CORSOrigins []string `json:"corsOrigins,omitempty"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `json:"level" validate:"oneof=trace debug info warn error off"`
	Format string `json:"format" validate:"oneof=console json"`
}

// CacheConfig controls caching of raw model responses.
type CacheConfig struct {
	Enabled    bool   `json:"enabled"`
	Dir        string `json:"dir,omitempty"`
	TTLSeconds int    `json:"ttlSeconds" validate:"min=0"`
}

// PrivacyConfig controls redaction.
type PrivacyConfig struct {
	RedactSecrets bool `json:"redactSecrets"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Provider:         "ollama",
		Format:           "text",
		MaxComments:      10,
		MaxDocumentBytes: 1 << 20,
		Temperature:      0.2,
		ContextWindow:    8192,
		TimeoutSeconds:   300,
		Concurrency:      4,
		Server: ServerConfig{
			Addr:        "127.0.0.1:8787",
			CORSOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: 86400,
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
		},
	}
}

// Timeout returns the per-request provider timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheTTL returns the cache entry lifetime.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		_, msg := validate.FieldAndMessage(err)
		return fmt.Errorf("invalid config: %s", msg)
	}
	return nil
}

// ConfigDir returns the platform-appropriate config directory.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName), nil
		}
		return filepath.Join(home, "AppData", "Roaming", appName), nil
	default:
		return filepath.Join(home, ".config", appName), nil
	}
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadFile overlays the config file onto cfg. A missing file is not an
// error. Keys absent from the file keep their current values.
func LoadFile(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Save writes the config to the config file.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// DotEnvFiles are loaded, when present, before environment variables are read.
var DotEnvFiles = []string{".env.local", ".env"}

// LoadDotEnv loads the given .env files into the process environment.
// Variables that are already set win; missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load builds the effective config by merging
// defaults <- file <- .env <- env <- overrides.
// The overrides map comes from CLI flags and is keyed like SetField.
func Load(overrides map[string]string) (Config, error) {
	cfg := Default()

	if err := LoadFile(&cfg); err != nil {
		return Config{}, err
	}
	if err := LoadDotEnv(DotEnvFiles...); err != nil {
		return Config{}, err
	}
	if err := mergeEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EnvVar returns the environment variable that sets key,
// e.g. "server.addr" -> MARGINALIA_SERVER_ADDR.
func EnvVar(key string) string {
	var b strings.Builder
	b.WriteString("MARGINALIA_")
	for i, r := range key {
		switch {
		case r == '.':
			b.WriteByte('_')
		case r >= 'A' && r <= 'Z':
			if i > 0 && key[i-1] != '.' {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteString(strings.ToUpper(string(r)))
		}
	}
	return b.String()
}

func mergeEnv(cfg *Config) error {
	for _, key := range Keys() {
		name := EnvVar(key)
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			continue
		}
		if err := SetField(cfg, key, v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func mergeOverrides(cfg *Config, overrides map[string]string) error {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := overrides[k]; v != "" {
			if err := SetField(cfg, k, v); err != nil {
				return err
			}
		}
	}
	return nil
}

type setter func(cfg *Config, value string) error

var setters = map[string]setter{
	"provider":              func(c *Config, v string) error { c.Provider = v; return nil },
	"model":                 func(c *Config, v string) error { c.Model = v; return nil },
	"baseUrl":               func(c *Config, v string) error { c.BaseURL = v; return nil },
	"personas":              func(c *Config, v string) error { c.Personas = splitList(v); return nil },
	"personasFile":          func(c *Config, v string) error { c.PersonasFile = v; return nil },
	"format":                func(c *Config, v string) error { c.Format = v; return nil },
	"maxComments":           intSetter("maxComments", func(c *Config, n int) { c.MaxComments = n }),
	"maxDocumentBytes":      intSetter("maxDocumentBytes", func(c *Config, n int) { c.MaxDocumentBytes = n }),
	"temperature":           floatSetter("temperature", func(c *Config, f float64) { c.Temperature = f }),
	"contextWindow":         intSetter("contextWindow", func(c *Config, n int) { c.ContextWindow = n }),
	"timeoutSeconds":        intSetter("timeoutSeconds", func(c *Config, n int) { c.TimeoutSeconds = n }),
	"stream":                boolSetter("stream", func(c *Config, b bool) { c.Stream = b }),
	"concurrency":           intSetter("concurrency", func(c *Config, n int) { c.Concurrency = n }),
	"server.addr":           func(c *Config, v string) error { c.Server.Addr = v; return nil },
	"server.corsOrigins":    func(c *Config, v string) error { c.Server.CORSOrigins = splitList(v); return nil },
	"log.level":             func(c *Config, v string) error { c.Log.Level = strings.ToLower(v); return nil },
	"log.format":            func(c *Config, v string) error { c.Log.Format = strings.ToLower(v); return nil },
	"cache.enabled":         boolSetter("cache.enabled", func(c *Config, b bool) { c.Cache.Enabled = b }),
	"cache.dir":             func(c *Config, v string) error { c.Cache.Dir = v; return nil },
	"cache.ttlSeconds":      intSetter("cache.ttlSeconds", func(c *Config, n int) { c.Cache.TTLSeconds = n }),
	"privacy.redactSecrets": boolSetter("privacy.redactSecrets", func(c *Config, b bool) { c.Privacy.RedactSecrets = b }),
}

// Keys returns every settable config key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetField sets a single config field by key name. Returns error if key is
// unknown or the value does not parse.
func SetField(cfg *Config, key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}
	return set(cfg, strings.TrimSpace(value))
}

func intSetter(key string, apply func(*Config, int)) setter {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		apply(c, n)
		return nil
	}
}

func floatSetter(key string, apply func(*Config, float64)) setter {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s must be a number: %w", key, err)
		}
		apply(c, f)
		return nil
	}
}

func boolSetter(key string, apply func(*Config, bool)) setter {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s must be true or false: %w", key, err)
		}
		apply(c, b)
		return nil
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
