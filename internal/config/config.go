// Package config provides application settings and defaults for dndj.
//
// Settings cover the runtime around the ambiance file: where to listen, how to
// log, where to keep the link cache, fade timing and external tools. The
// ambiance file itself (music and sound libraries) is handled by the library
// and loader packages.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all settings for dndj.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Fade    FadeConfig    `mapstructure:"fade"`
	Stream  StreamConfig  `mapstructure:"stream"`
	Audio   AudioConfig   `mapstructure:"audio"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// ServerConfig configures the HTTP and websocket listener.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// AllowedOrigins lists extra origins (host patterns) allowed to open the websocket.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // empty disables file logging
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// CacheConfig configures the remote link validity cache.
type CacheConfig struct {
	Path     string `mapstructure:"path"`
	MaxLinks int    `mapstructure:"max_links"`
}

// FadeConfig holds music volume ramp timing.
type FadeConfig struct {
	Steps        int           `mapstructure:"steps"`
	FadeIn       time.Duration `mapstructure:"fade_in"`
	FadeOut      time.Duration `mapstructure:"fade_out"`
	VolumeChange time.Duration `mapstructure:"volume_change"`
}

// StreamConfig configures remote link resolution.
type StreamConfig struct {
	Format  string        `mapstructure:"format"`
	Timeout time.Duration `mapstructure:"timeout"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// AudioConfig configures the playback backends.
type AudioConfig struct {
	MPVPath    string `mapstructure:"mpv_path"`
	SampleRate int    `mapstructure:"sample_rate"`
}

// TracingConfig selects the span exporter.
type TracingConfig struct {
	// Exporter is one of "none", "stdout", "otlp".
	Exporter string `mapstructure:"exporter"`
	Endpoint string `mapstructure:"endpoint"`
}

// Tracing exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// DefaultDir returns ~/.config/dndj, falling back to .dndj.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dndj"
	}
	return filepath.Join(home, ".config", "dndj")
}

// DefaultPath returns the settings file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Cache: CacheConfig{
			Path:     filepath.Join(DefaultDir(), "cache.db"),
			MaxLinks: 100,
		},
		Fade: FadeConfig{
			Steps:        20,
			FadeIn:       2 * time.Second,
			FadeOut:      2 * time.Second,
			VolumeChange: 1 * time.Second,
		},
		Stream: StreamConfig{
			Format:  "bestaudio",
			Timeout: 30 * time.Second,
			TTL:     time.Hour,
		},
		Audio: AudioConfig{
			MPVPath:    "mpv",
			SampleRate: 44100,
		},
		Tracing: TracingConfig{
			Exporter: ExporterNone,
		},
	}
}

// Validate checks settings for errors.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d out of range", c.Server.Port))
	}
	if c.Fade.Steps <= 0 {
		errs = append(errs, fmt.Errorf("fade.steps: must be positive, got %d", c.Fade.Steps))
	}
	if c.Fade.FadeIn < 0 || c.Fade.FadeOut < 0 || c.Fade.VolumeChange < 0 {
		errs = append(errs, errors.New("fade: durations must not be negative"))
	}
	if c.Cache.MaxLinks <= 0 {
		errs = append(errs, fmt.Errorf("cache.max_links: must be positive, got %d", c.Cache.MaxLinks))
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate: must be positive, got %d", c.Audio.SampleRate))
	}
	switch c.Tracing.Exporter {
	case "", ExporterNone, ExporterStdout:
	case ExporterOTLP:
		if c.Tracing.Endpoint == "" {
			errs = append(errs, errors.New("tracing.endpoint: required for otlp exporter"))
		}
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter: unknown exporter %q", c.Tracing.Exporter))
	}
	return errors.Join(errs...)
}

// SetDefaults registers every setting with v, which lets environment
// variables override keys that no settings file mentions.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("cache.max_links", d.Cache.MaxLinks)
	v.SetDefault("fade.steps", d.Fade.Steps)
	v.SetDefault("fade.fade_in", d.Fade.FadeIn)
	v.SetDefault("fade.fade_out", d.Fade.FadeOut)
	v.SetDefault("fade.volume_change", d.Fade.VolumeChange)
	v.SetDefault("stream.format", d.Stream.Format)
	v.SetDefault("stream.timeout", d.Stream.Timeout)
	v.SetDefault("stream.ttl", d.Stream.TTL)
	v.SetDefault("audio.mpv_path", d.Audio.MPVPath)
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
}

// Load unmarshals v over Defaults and validates the result.
func Load(v *viper.Viper) (Config, error) {
	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding settings: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

// DefaultConfigTemplate returns the default settings as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# dndj settings

# Where the web interface and websocket listen
server:
  host: 127.0.0.1
  port: 8080
  # allowed_origins: ["192.168.1.*"]

# Logging (level: debug, info, warn, error)
log:
  level: info
  # file: ~/.config/dndj/dndj.log
  max_size_mb: 10
  max_backups: 3
  max_age_days: 28

# Remote links that passed validation are remembered here
cache:
  # path: ~/.config/dndj/cache.db
  max_links: 100

# Music volume ramps
fade:
  steps: 20
  fade_in: 2s
  fade_out: 2s
  volume_change: 1s

# Remote link resolution (yt-dlp)
stream:
  format: bestaudio
  timeout: 30s
  ttl: 1h

audio:
  mpv_path: mpv
  sample_rate: 44100

# Tracing (exporter: none, stdout, otlp)
tracing:
  exporter: none
  # endpoint: localhost:4317
`
}

// WriteDefaultConfig creates a settings file at the given path with default values and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
