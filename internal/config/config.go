// file: internal/config/config.go
// version: 2.0.0
// guid: 3f6c0104-8105-4f11-a2f9-38339acc266e

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// MUSIC_CATALOG_EXTRACT_DOWNLOAD_TIMEOUT=10s.
const EnvPrefix = "MUSIC_CATALOG"

// DefaultPlaceholderImageURL is returned as image_url by metadata extraction.
const DefaultPlaceholderImageURL = "https://via.placeholder.com/150"

// Config holds application configuration
type Config struct {
	DatabaseType string `yaml:"database_type"` // "sqlite" (default) or "pebble"
	DatabasePath string `yaml:"database_path"`
	LogFile      string `yaml:"log_file,omitempty"`

	Server    ServerConfig    `yaml:"server"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Extract   ExtractConfig   `yaml:"extract"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host          string        `yaml:"host"`
	Port          string        `yaml:"port"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	JSONBodyLimit int64         `yaml:"json_body_limit"`
}

// RateLimitConfig throttles the extraction endpoint per client IP.
type RateLimitConfig struct {
	ExtractPerMinute int `yaml:"extract_per_minute"`
	Burst            int `yaml:"burst"`
}

// ExtractConfig tunes the remote metadata extraction pipeline.
type ExtractConfig struct {
	DownloadTimeout     time.Duration `yaml:"download_timeout"`
	MaxDownloadBytes    int64         `yaml:"max_download_bytes"`
	RetryMax            int           `yaml:"retry_max"`
	TempDir             string        `yaml:"temp_dir,omitempty"`
	CacheTTL            time.Duration `yaml:"cache_ttl"`
	PlaceholderImageURL string        `yaml:"placeholder_image_url"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database_type", "sqlite")
	v.SetDefault("database_path", "music.db")
	v.SetDefault("log_file", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.json_body_limit", int64(1<<20))

	v.SetDefault("rate_limit.extract_per_minute", 30)
	v.SetDefault("rate_limit.burst", 10)

	v.SetDefault("extract.download_timeout", 30*time.Second)
	v.SetDefault("extract.max_download_bytes", int64(100<<20))
	v.SetDefault("extract.retry_max", 2)
	v.SetDefault("extract.temp_dir", "")
	v.SetDefault("extract.cache_ttl", time.Duration(0))
	v.SetDefault("extract.placeholder_image_url", DefaultPlaceholderImageURL)
}

// BindEnv enables MUSIC_CATALOG_* environment overrides on v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load builds a validated Config from v. Defaults are applied first so a bare
// viper instance yields a usable configuration.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		DatabaseType: normalizeDatabaseType(v.GetString("database_type")),
		DatabasePath: v.GetString("database_path"),
		LogFile:      v.GetString("log_file"),
		Server: ServerConfig{
			Host:          v.GetString("server.host"),
			Port:          v.GetString("server.port"),
			ReadTimeout:   v.GetDuration("server.read_timeout"),
			WriteTimeout:  v.GetDuration("server.write_timeout"),
			IdleTimeout:   v.GetDuration("server.idle_timeout"),
			JSONBodyLimit: v.GetInt64("server.json_body_limit"),
		},
		RateLimit: RateLimitConfig{
			ExtractPerMinute: v.GetInt("rate_limit.extract_per_minute"),
			Burst:            v.GetInt("rate_limit.burst"),
		},
		Extract: ExtractConfig{
			DownloadTimeout:     v.GetDuration("extract.download_timeout"),
			MaxDownloadBytes:    v.GetInt64("extract.max_download_bytes"),
			RetryMax:            v.GetInt("extract.retry_max"),
			TempDir:             v.GetString("extract.temp_dir"),
			CacheTTL:            v.GetDuration("extract.cache_ttl"),
			PlaceholderImageURL: v.GetString("extract.placeholder_image_url"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the services cannot start with.
func (c *Config) Validate() error {
	switch c.DatabaseType {
	case "sqlite", "pebble":
	default:
		return fmt.Errorf("unsupported database type: %s (supported: sqlite, pebble)", c.DatabaseType)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server port must not be empty")
	}
	if c.Extract.DownloadTimeout <= 0 {
		return fmt.Errorf("extract.download_timeout must be positive, got %s", c.Extract.DownloadTimeout)
	}
	if c.Extract.MaxDownloadBytes <= 0 {
		return fmt.Errorf("extract.max_download_bytes must be positive, got %d", c.Extract.MaxDownloadBytes)
	}
	if c.Extract.RetryMax < 0 {
		return fmt.Errorf("extract.retry_max must not be negative, got %d", c.Extract.RetryMax)
	}
	if c.Extract.PlaceholderImageURL == "" {
		c.Extract.PlaceholderImageURL = DefaultPlaceholderImageURL
	}
	return nil
}

func normalizeDatabaseType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	switch t {
	case "sqlite3", "":
		return "sqlite"
	}
	return t
}
