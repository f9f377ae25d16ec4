package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	// Hostname is the public hostname where this service is reachable.
	Hostname string `yaml:"hostname"`

	// Port is the HTTP server port.
	Port int `yaml:"port"`

	// PublicURL is the externally visible base URL, used to build blob URLs.
	// Defaults to http://{Hostname}:{Port}.
	PublicURL string `yaml:"public_url"`

	// DatabaseDriver is "postgres" or "sqlite".
	DatabaseDriver string `yaml:"database_driver"`

	// DatabaseURL is the connection string for DatabaseDriver.
	DatabaseURL string `yaml:"database_url"`

	// BlobDir is where uploaded videos are stored.
	BlobDir string `yaml:"blob_dir"`

	// JWTSecret signs and verifies bearer tokens.
	JWTSecret string `yaml:"jwt_secret"`

	// AllowedOrigins are the browser origins allowed by CORS and websockets.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// RedisURL enables cross-instance event relay when set.
	RedisURL string `yaml:"redis_url"`

	// GeminiAPIKey enables the AI assistant when set.
	GeminiAPIKey string `yaml:"gemini_api_key"`
	GeminiModel  string `yaml:"gemini_model"`

	// PageSize is the default feed page size.
	PageSize int `yaml:"page_size"`

	// MaxUploadMB caps uploaded video size.
	MaxUploadMB int `yaml:"max_upload_mb"`

	// MutationsPerSecond and MutationBurst rate-limit likes, shares, deletes
	// and submissions per user.
	MutationsPerSecond float64 `yaml:"mutations_per_second"`
	MutationBurst      int     `yaml:"mutation_burst"`

	// SweepInterval and SweepGrace control the orphaned media sweep.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	SweepGrace    time.Duration `yaml:"sweep_grace"`
}

// BlobBaseURL is the URL prefix blobs are served under.
func (c *Config) BlobBaseURL() string {
	return strings.TrimSuffix(c.PublicURL, "/") + "/blobs"
}

// MaxUploadBytes returns MaxUploadMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Hostname:           "localhost",
		Port:               3000,
		DatabaseDriver:     "sqlite",
		DatabaseURL:        "file:video_feed.db",
		BlobDir:            "data/blobs",
		AllowedOrigins:     []string{"*"},
		GeminiModel:        "gemini-2.5-flash",
		PageSize:           10,
		MaxUploadMB:        200,
		MutationsPerSecond: 5,
		MutationBurst:      10,
		SweepInterval:      time.Hour,
		SweepGrace:         24 * time.Hour,
	}
}

// Load reads configuration from a .env file (if present), an optional YAML
// file named by FEED_CONFIG_FILE, and environment variables, in increasing
// order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("FEED_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.PublicURL == "" {
		cfg.PublicURL = fmt.Sprintf("http://%s:%d", cfg.Hostname, cfg.Port)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if p := os.Getenv("PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		c.Port = port
	}
	setString(&c.Hostname, "FEED_HOSTNAME")
	setString(&c.PublicURL, "FEED_PUBLIC_URL")
	setString(&c.DatabaseDriver, "DATABASE_DRIVER")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.BlobDir, "FEED_BLOB_DIR")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.GeminiModel, "GEMINI_MODEL")

	if v := os.Getenv("FEED_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("FEED_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid FEED_PAGE_SIZE: %w", err)
		}
		c.PageSize = n
	}
	if v := os.Getenv("FEED_MAX_UPLOAD_MB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid FEED_MAX_UPLOAD_MB: %w", err)
		}
		c.MaxUploadMB = n
	}
	if v := os.Getenv("FEED_MUTATIONS_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid FEED_MUTATIONS_PER_SECOND: %w", err)
		}
		c.MutationsPerSecond = f
	}
	if v := os.Getenv("FEED_MUTATION_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid FEED_MUTATION_BURST: %w", err)
		}
		c.MutationBurst = n
	}
	if err := setDuration(&c.SweepInterval, "FEED_SWEEP_INTERVAL"); err != nil {
		return err
	}
	return setDuration(&c.SweepGrace, "FEED_SWEEP_GRACE")
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite" {
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", c.DatabaseDriver)
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("page size must be between 1 and 100, got %d", c.PageSize)
	}
	if c.MaxUploadMB < 1 {
		return fmt.Errorf("max upload size must be positive, got %d", c.MaxUploadMB)
	}
	if c.MutationsPerSecond <= 0 || c.MutationBurst < 1 {
		return fmt.Errorf("mutation rate must be positive, got %g/s burst %d", c.MutationsPerSecond, c.MutationBurst)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", c.SweepInterval)
	}
	if c.SweepGrace < 0 {
		return fmt.Errorf("sweep grace must not be negative, got %s", c.SweepGrace)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
