// Package config loads and validates ingest service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Resolve   ResolveConfig   `mapstructure:"resolve"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Transcode TranscodeConfig `mapstructure:"transcode"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// HTTPConfig configures the bounded fetcher's HTTP client.
type HTTPConfig struct {
	ConnectTimeoutSeconds int    `mapstructure:"connect_timeout_seconds"`
	ReadTimeoutSeconds    int    `mapstructure:"read_timeout_seconds"`
	UserAgent             string `mapstructure:"user_agent"`
	MaxBytes              int64  `mapstructure:"max_bytes"`
}

// ResolveConfig bounds the resolution walk.
type ResolveConfig struct {
	MaxRedirects   int `mapstructure:"max_redirects"`
	MaxHTMLFollows int `mapstructure:"max_html_follows"`
	MinImageBytes  int `mapstructure:"min_image_bytes"`
}

// StorageConfig selects and parameterizes the object store backend.
type StorageConfig struct {
	Provider      string `mapstructure:"provider"` // gcs | local | memory
	GCSBucket     string `mapstructure:"gcs_bucket"`
	LocalBaseDir  string `mapstructure:"local_base_dir"`
	Prefix        string `mapstructure:"prefix"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// TranscodeConfig governs the image compression chain.
type TranscodeConfig struct {
	MaxLongEdge   int     `mapstructure:"max_long_edge"`
	WebPQuality   float32 `mapstructure:"webp_quality"`
	JPEGQuality   int     `mapstructure:"jpeg_quality"`
	WebPThreshold float64 `mapstructure:"webp_threshold"`
	JPEGThreshold float64 `mapstructure:"jpeg_threshold"`
	PNGThreshold  float64 `mapstructure:"png_threshold"`
}

// PubSubConfig holds metadata for ingest completion events.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PHOTOINGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.connect_timeout_seconds", 5)
	v.SetDefault("http.read_timeout_seconds", 10)
	v.SetDefault("http.user_agent", "Mozilla/5.0 Nemo/1.0")
	v.SetDefault("http.max_bytes", 50*1024*1024)
	v.SetDefault("resolve.max_redirects", 5)
	v.SetDefault("resolve.max_html_follows", 2)
	v.SetDefault("resolve.min_image_bytes", 5*1024)
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local_base_dir", "data/assets")
	v.SetDefault("storage.prefix", "albums")
	v.SetDefault("storage.public_base_url", "http://localhost:8080")
	v.SetDefault("transcode.max_long_edge", 2048)
	v.SetDefault("transcode.webp_quality", 80)
	v.SetDefault("transcode.jpeg_quality", 85)
	v.SetDefault("transcode.webp_threshold", 0.95)
	v.SetDefault("transcode.jpeg_threshold", 0.98)
	v.SetDefault("transcode.png_threshold", 0.98)
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.HTTP.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("http.connect_timeout_seconds must be > 0")
	}
	if c.HTTP.ReadTimeoutSeconds <= 0 {
		return fmt.Errorf("http.read_timeout_seconds must be > 0")
	}
	if c.HTTP.MaxBytes <= 0 {
		return fmt.Errorf("http.max_bytes must be > 0")
	}
	if c.Resolve.MaxRedirects <= 0 {
		return fmt.Errorf("resolve.max_redirects must be > 0")
	}
	if c.Resolve.MaxHTMLFollows < 0 {
		return fmt.Errorf("resolve.max_html_follows must be >= 0")
	}
	if c.Transcode.MaxLongEdge <= 0 {
		return fmt.Errorf("transcode.max_long_edge must be > 0")
	}
	switch c.Storage.Provider {
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when provider is gcs")
		}
	case "local":
		if c.Storage.LocalBaseDir == "" {
			return fmt.Errorf("storage.local_base_dir must be set when provider is local")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	return nil
}

// ConnectTimeout returns the fetcher connect timeout as a duration.
func (c HTTPConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// ReadTimeout returns the fetcher read timeout as a duration.
func (c HTTPConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}
