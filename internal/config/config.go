package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Redis          RedisConfig          `yaml:"redis"`
	Cron           CronConfig           `yaml:"cron"`
	Logging        LoggingConfig        `yaml:"logging"`
	Verification   VerificationConfig   `yaml:"verification"`
	AutoVerify     AutoVerifyConfig     `yaml:"auto_verify"`
	Reverification ReverificationConfig `yaml:"reverification"`
	Notifications  NotificationsConfig  `yaml:"notifications"`
	Archive        ArchiveConfig        `yaml:"archive"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds Postgres settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig holds the section cache settings. The cache is optional.
type RedisConfig struct {
	URL             string `yaml:"url"`
	Enabled         bool   `yaml:"enabled"`
	CacheTTLMinutes int    `yaml:"cache_ttl_minutes"`
}

// CacheTTL returns the section cache TTL as a duration
func (c RedisConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// CronConfig holds the shared secret expected on cron trigger requests and
// how long a triggered sweep may run.
type CronConfig struct {
	Secret              string `yaml:"secret"`
	SweepTimeoutMinutes int    `yaml:"sweep_timeout_minutes"`
}

// SweepTimeout bounds one cron sweep, independent of the triggering request.
func (c CronConfig) SweepTimeout() time.Duration {
	return time.Duration(c.SweepTimeoutMinutes) * time.Minute
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on (default true).
func (c LoggingConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// VerificationConfig holds limits for ownership verification lookups.
type VerificationConfig struct {
	TimeoutMS    int      `yaml:"timeout_ms"`
	MaxBytes     int64    `yaml:"max_bytes"`
	MetaMaxBytes int64    `yaml:"meta_max_bytes"`
	UserAgent    string   `yaml:"user_agent"`
	DoHProviders []string `yaml:"doh_providers"`
}

// Timeout returns the per-request verification timeout
func (c VerificationConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// AutoVerifyConfig controls the auto-verify worker loop.
type AutoVerifyConfig struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	ClaimLimit          int `yaml:"claim_limit"`
	StaleClaimMinutes   int `yaml:"stale_claim_minutes"`
}

// PollInterval returns the worker poll interval as a duration
func (c AutoVerifyConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// StaleClaim returns how long a claimed run may stay claimed before recovery.
func (c AutoVerifyConfig) StaleClaim() time.Duration {
	return time.Duration(c.StaleClaimMinutes) * time.Minute
}

// ReverificationConfig controls the daily sweeps.
type ReverificationConfig struct {
	BatchSize       int     `yaml:"batch_size"`
	GracePeriodDays int     `yaml:"grace_period_days"`
	UnitsPerSecond  float64 `yaml:"units_per_second"`
}

// GracePeriod returns the verification grace period as a duration
func (c ReverificationConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodDays) * 24 * time.Hour
}

// NotificationsConfig holds notification delivery settings.
type NotificationsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	FromEmail string `yaml:"from_email"`
	AWSRegion string `yaml:"aws_region"`
	// Static SES credentials. Empty means the default AWS credential chain.
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// ArchiveConfig holds the replaced-snapshot archive settings. An empty
// bucket disables archiving.
type ArchiveConfig struct {
	S3Bucket  string `yaml:"s3_bucket"`
	AWSRegion string `yaml:"aws_region"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Redis.CacheTTLMinutes == 0 {
		cfg.Redis.CacheTTLMinutes = 60
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Verification.TimeoutMS == 0 {
		cfg.Verification.TimeoutMS = 5000
	}
	if cfg.Verification.MaxBytes == 0 {
		cfg.Verification.MaxBytes = 1024
	}
	if cfg.Verification.MetaMaxBytes == 0 {
		cfg.Verification.MetaMaxBytes = 128 * 1024
	}
	if cfg.Verification.UserAgent == "" {
		cfg.Verification.UserAgent = "domainwatch-verifier/1.0"
	}
	if len(cfg.Verification.DoHProviders) == 0 {
		cfg.Verification.DoHProviders = []string{
			"https://cloudflare-dns.com/dns-query",
			"https://dns.google/resolve",
		}
	}
	if cfg.AutoVerify.PollIntervalSeconds == 0 {
		cfg.AutoVerify.PollIntervalSeconds = 15
	}
	if cfg.AutoVerify.ClaimLimit == 0 {
		cfg.AutoVerify.ClaimLimit = 20
	}
	if cfg.Cron.SweepTimeoutMinutes == 0 {
		cfg.Cron.SweepTimeoutMinutes = 30
	}
	if cfg.AutoVerify.StaleClaimMinutes == 0 {
		cfg.AutoVerify.StaleClaimMinutes = 10
	}
	if cfg.Reverification.BatchSize == 0 {
		cfg.Reverification.BatchSize = 25
	}
	if cfg.Reverification.GracePeriodDays == 0 {
		cfg.Reverification.GracePeriodDays = 7
	}
	if cfg.Reverification.UnitsPerSecond == 0 {
		cfg.Reverification.UnitsPerSecond = 10
	}
	if cfg.Notifications.FromEmail == "" {
		cfg.Notifications.FromEmail = "alerts@domainwatch.local"
	}
	if cfg.Notifications.AWSRegion == "" {
		cfg.Notifications.AWSRegion = "us-east-1"
	}
	if cfg.Archive.AWSRegion == "" {
		cfg.Archive.AWSRegion = cfg.Notifications.AWSRegion
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets can
// live in .env locally and in real env vars when deployed.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("CRON_SECRET"); v != "" {
		cfg.Cron.Secret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VERIFICATION_GRACE_PERIOD_DAYS"); v != "" {
		if days, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && days > 0 {
			cfg.Reverification.GracePeriodDays = days
		}
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Notifications.AWSRegion = v
		cfg.Archive.AWSRegion = v
	}
	if v := os.Getenv("NOTIFY_FROM_EMAIL"); v != "" {
		cfg.Notifications.FromEmail = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Notifications.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Notifications.SecretKey = v
	}
	if v := os.Getenv("SNAPSHOT_ARCHIVE_BUCKET"); v != "" {
		cfg.Archive.S3Bucket = v
	}

	return cfg, nil
}
