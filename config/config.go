package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Flow       FlowConfig       `yaml:"flow"`
	Database   DatabaseConfig   `yaml:"database"`
	Journal    JournalConfig    `yaml:"journal"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds the console API configuration.
type ServerConfig struct {
	Port             int     `yaml:"port"`
	RateLimitPerSec  float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst   int     `yaml:"rate_limit_burst"`
	NoticeTTLSeconds int     `yaml:"notice_ttl_seconds"`
}

// UpstreamConfig describes the external supervisor API.
type UpstreamConfig struct {
	BaseURL        string            `yaml:"base_url"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Timeout        time.Duration     `yaml:"-"`
	HTTPProxy      string            `yaml:"http_proxy"`
	Headers        map[string]string `yaml:"headers"`
}

// FlowConfig tunes the login flow state machine.
type FlowConfig struct {
	OTPCountdownSeconds int   `yaml:"otp_countdown_seconds"`
	ChallengeTTLSeconds int   `yaml:"challenge_ttl_seconds"`
	FallbackReaders     *bool `yaml:"fallback_readers"`
	RejectExpiredOTP    *bool `yaml:"reject_expired_otp"`
}

// DatabaseConfig holds the journal database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// JournalConfig controls the transition journal and its pruning job.
type JournalConfig struct {
	Enabled       *bool  `yaml:"enabled"`
	RetentionDays int    `yaml:"retention_days"`
	PruneCron     string `yaml:"prune_cron"`
}

// WorkerPoolConfig holds the configuration for the upstream call worker pool.
type WorkerPoolConfig struct {
	Size  int `yaml:"size"`
	Queue int `yaml:"queue"`
}

// LogConfig selects log level and output format.
type LogConfig struct {
	Level       string `yaml:"level"`
	Environment string `yaml:"environment"`
}

// Load reads the configuration from the given path. A missing file is not an
// error; defaults and environment overrides still apply.
func Load(path string) (*Config, error) {
	// .env is optional and never overrides variables already set.
	_ = godotenv.Load()

	var cfg Config
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, err
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("UPSTREAM_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Log.Environment = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.NoticeTTLSeconds <= 0 {
		cfg.Server.NoticeTTLSeconds = 5
	}

	cfg.Upstream.BaseURL = strings.TrimRight(cfg.Upstream.BaseURL, "/")
	if cfg.Upstream.TimeoutSeconds <= 0 {
		cfg.Upstream.TimeoutSeconds = 15
	}
	cfg.Upstream.Timeout = time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second

	if cfg.Flow.OTPCountdownSeconds <= 0 {
		cfg.Flow.OTPCountdownSeconds = 300
	}
	if cfg.Flow.ChallengeTTLSeconds <= 0 {
		cfg.Flow.ChallengeTTLSeconds = 300
	}
	if cfg.Flow.FallbackReaders == nil {
		cfg.Flow.FallbackReaders = boolPtr(true)
	}
	if cfg.Flow.RejectExpiredOTP == nil {
		cfg.Flow.RejectExpiredOTP = boolPtr(true)
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:supervisor.db"
	}
	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 4
	}
	if cfg.Database.MaxIdleConns <= 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetimeMinutes <= 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 30
	}

	if cfg.Journal.Enabled == nil {
		cfg.Journal.Enabled = boolPtr(true)
	}
	if cfg.Journal.RetentionDays <= 0 {
		cfg.Journal.RetentionDays = 30
	}
	if cfg.Journal.PruneCron == "" {
		cfg.Journal.PruneCron = "0 3 * * *"
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 4
	}
	if cfg.WorkerPool.Queue <= 0 {
		cfg.WorkerPool.Queue = 16
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Environment == "" {
		cfg.Log.Environment = "development"
	}
}

func boolPtr(b bool) *bool { return &b }
