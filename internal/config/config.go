// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"` // must exceed the polling budget
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret"`
	CookieDomain string        `yaml:"cookie_domain"`
	SecureCookie bool          `yaml:"secure_cookie"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
}

type PollingConfig struct {
	MaxAttempts int           `yaml:"max_attempts"` // default 120
	Interval    time.Duration `yaml:"interval"`     // default 2s -> 4 minute budget
}

// Budget is the nominal wall-clock ceiling of one poll loop.
func (p PollingConfig) Budget() time.Duration {
	return time.Duration(p.MaxAttempts) * p.Interval
}

type ProvidersConfig struct {
	Runway struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
	} `yaml:"runway"`
	Replicate struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
		Version string `yaml:"version"` // background-removal model version
	} `yaml:"replicate"`
	Gemini struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
	} `yaml:"gemini"`
	OpenAI struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`
	ConcurrentLimit int `yaml:"concurrent_limit"` // max in-flight provider calls
}

type ImageHostConfig struct {
	UploadURL string `yaml:"upload_url"`
	APIKey    string `yaml:"api_key"`
}

// CostsConfig fixes how many credits each job type reserves at submission.
// Deterministic background removal is free: only the generative fallback
// is metered.
type CostsConfig struct {
	Video              int64 `yaml:"video"`
	ImageEdit          int64 `yaml:"image_edit"`
	BackgroundRemoveAI int64 `yaml:"background_remove_ai"`
}

type RateLimitConfig struct {
	PerUser int           `yaml:"per_user"`
	Window  time.Duration `yaml:"window"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Polling   PollingConfig   `yaml:"polling"`
	Providers ProvidersConfig `yaml:"providers"`
	ImageHost ImageHostConfig `yaml:"image_host"`
	Costs     CostsConfig     `yaml:"costs"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.Auth.SessionTTL <= 0 {
		cfg.Auth.SessionTTL = 24 * time.Hour
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Polling.MaxAttempts <= 0 {
		cfg.Polling.MaxAttempts = 120
	}
	if cfg.Polling.Interval <= 0 {
		cfg.Polling.Interval = 2 * time.Second
	}
	// The handler blocks for the whole poll loop, so the write timeout has
	// to outlive the budget with headroom for the submit call.
	if cfg.Server.WriteTimeout <= cfg.Polling.Budget() {
		cfg.Server.WriteTimeout = cfg.Polling.Budget() + time.Minute
	}
	if cfg.Providers.ConcurrentLimit <= 0 {
		cfg.Providers.ConcurrentLimit = 16
	}
	if cfg.Providers.Runway.BaseURL == "" {
		cfg.Providers.Runway.BaseURL = "https://api.dev.runwayml.com/v1"
	}
	if cfg.Providers.Runway.Model == "" {
		cfg.Providers.Runway.Model = "gen4_turbo"
	}
	if cfg.Providers.Replicate.BaseURL == "" {
		cfg.Providers.Replicate.BaseURL = "https://api.replicate.com/v1"
	}
	if cfg.Providers.Gemini.Model == "" {
		cfg.Providers.Gemini.Model = "gemini-2.5-flash-image-preview"
	}
	if cfg.Providers.OpenAI.Model == "" {
		cfg.Providers.OpenAI.Model = "gpt-image-1"
	}
	if cfg.Costs.Video <= 0 {
		cfg.Costs.Video = 10
	}
	if cfg.Costs.ImageEdit <= 0 {
		cfg.Costs.ImageEdit = 2
	}
	if cfg.Costs.BackgroundRemoveAI <= 0 {
		cfg.Costs.BackgroundRemoveAI = 2
	}
	if cfg.RateLimit.PerUser <= 0 {
		cfg.RateLimit.PerUser = 10
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
}

func (cfg *Config) validate() error {
	if cfg.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	return nil
}
