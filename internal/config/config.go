// Package config provides configuration types and defaults for rolodex.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/rolodex/internal/log"
)

// LocalConfigPath is the project-local config file checked before the user config.
const LocalConfigPath = ".rolodex/config.yaml"

// Config holds all configuration options for rolodex.
type Config struct {
	DBPath  string          `mapstructure:"db_path"`
	Debug   bool            `mapstructure:"debug"`
	LogPath string          `mapstructure:"log_path"`
	Server  ServerConfig    `mapstructure:"server"`
	Cache   CacheConfig     `mapstructure:"cache"`
	Watch   WatchConfig     `mapstructure:"watch"`
	Tracing TracingConfig   `mapstructure:"tracing"`
	Flags   map[string]bool `mapstructure:"flags"`
}

// ServerConfig holds HTTP API settings for `rolodex serve`.
type ServerConfig struct {
	Addr        string        `mapstructure:"addr"`         // host:port, port 0 picks a free port
	ReadTimeout time.Duration `mapstructure:"read_timeout"` // applies to request headers and bodies
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	// IdempotencyTTL is how long a POST /contacts result is replayed for a
	// repeated Idempotency-Key.
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

// WatchConfig controls reloading the registry when the database changes on disk.
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// TracingConfig holds distributed tracing configuration for the API server.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/rolodex/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// DefaultConfigPath returns ~/.config/rolodex/config.yaml, or empty string if home dir unavailable.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "rolodex", "config.yaml")
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/rolodex/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "rolodex", "traces", "traces.jsonl")
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server.read_timeout must not be negative, got %v", c.Server.ReadTimeout)
	}
	if c.Cache.IdempotencyTTL < 0 {
		return fmt.Errorf("cache.idempotency_ttl must not be negative, got %v", c.Cache.IdempotencyTTL)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %v", c.Watch.Debounce)
	}
	return ValidateTracing(c.Tracing)
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tracing.Enabled {
		if tracing.Exporter == "file" && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		DBPath:  filepath.Join(".rolodex", "rolodex.db"),
		LogPath: "debug.log",
		Server: ServerConfig{
			Addr:        "127.0.0.1:7878",
			ReadTimeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			IdempotencyTTL: 10 * time.Minute,
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 100 * time.Millisecond,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     DefaultTracesFilePath(),
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Flags: map[string]bool{
			"idempotency":      true,
			"reload-on-change": true,
		},
	}
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Rolodex Configuration

# SQLite database holding the contacts (default: .rolodex/rolodex.db)
db_path: .rolodex/rolodex.db

# Debug logging (also enabled by --debug or ROLODEX_DEBUG)
debug: false
# log_path: debug.log

# HTTP API settings for 'rolodex serve'
server:
  addr: 127.0.0.1:7878
  read_timeout: 10s

# Cache settings
cache:
  idempotency_ttl: 10m   # How long a POST /contacts result is replayed for the same Idempotency-Key

# Reload the registry when another process changes the database
watch:
  enabled: true
  debounce: 100ms

# Distributed tracing for the HTTP API
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/rolodex/traces/traces.jsonl  # Output file for file exporter
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)

# Feature flags (toggle with 'rolodex flags set <name> <true|false>')
flags:
  idempotency: true        # Honor Idempotency-Key on POST /contacts
  reload-on-change: true   # Reload when the database file changes
  # memory-only: false     # Keep contacts in memory only, skip SQLite
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
