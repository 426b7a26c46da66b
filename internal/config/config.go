package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	Redis     RedisConfig     `yaml:"redis"`
	Log       LogConfig       `yaml:"log"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Email     EmailConfig     `yaml:"email"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Admin     AdminConfig     `yaml:"admin"`
}

type ServerConfig struct {
	Host string `yaml:"host" env:"SERVER_HOST"`
	Port string `yaml:"port" env:"SERVER_PORT"`
	Mode string `yaml:"mode" env:"SERVER_MODE"` // debug, release, test
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DB_DRIVER"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn" env:"DB_DSN"`
}

type JWTConfig struct {
	Secret            string `yaml:"secret" env:"JWT_SECRET"`
	ExpireHour        int    `yaml:"expire_hour" env:"JWT_EXPIRE_HOUR"`
	RefreshExpireHour int    `yaml:"refresh_expire_hour" env:"JWT_REFRESH_EXPIRE_HOUR"`
}

// RedisConfig for the optional async webhook delivery queue
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED"`
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"` // debug, info, warn, error
}

type WebhookConfig struct {
	Timeout         time.Duration `yaml:"timeout" env:"WEBHOOK_TIMEOUT"`
	MaxRetry        int           `yaml:"max_retry" env:"WEBHOOK_MAX_RETRY"`
	SignatureHeader string        `yaml:"signature_header" env:"WEBHOOK_SIGNATURE_HEADER"`
}

type EmailConfig struct {
	Enabled  bool   `yaml:"enabled" env:"EMAIL_ENABLED"`
	Host     string `yaml:"host" env:"EMAIL_HOST"`
	Port     int    `yaml:"port" env:"EMAIL_PORT"`
	Username string `yaml:"username" env:"EMAIL_USERNAME"`
	Password string `yaml:"password" env:"EMAIL_PASSWORD"`
	From     string `yaml:"from" env:"EMAIL_FROM"`
	UseTLS   bool   `yaml:"use_tls" env:"EMAIL_USE_TLS"`
}

type SchedulerConfig struct {
	Enabled          bool   `yaml:"enabled" env:"SCHEDULER_ENABLED"`
	CloseVotesSpec   string `yaml:"close_votes_spec" env:"SCHEDULER_CLOSE_VOTES_SPEC"`
	LogCleanupSpec   string `yaml:"log_cleanup_spec" env:"SCHEDULER_LOG_CLEANUP_SPEC"`
	RetryWebhookSpec string `yaml:"retry_webhook_spec" env:"SCHEDULER_RETRY_WEBHOOK_SPEC"`
	LogRetentionDays int    `yaml:"log_retention_days" env:"SCHEDULER_LOG_RETENTION_DAYS"`
}

// AdminConfig describes the system administrator created on first boot.
type AdminConfig struct {
	Username string `yaml:"username" env:"ADMIN_USERNAME"`
	Password string `yaml:"password" env:"ADMIN_PASSWORD"`
	Email    string `yaml:"email" env:"ADMIN_EMAIL"`
}

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "governance.db",
		},
		JWT: JWTConfig{
			Secret:            "governance-secret-key-change-in-production",
			ExpireHour:        24,
			RefreshExpireHour: 720,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Log: LogConfig{
			Level: "info",
		},
		Webhook: WebhookConfig{
			Timeout:         10 * time.Second,
			MaxRetry:        5,
			SignatureHeader: "X-Webhook-Signature",
		},
		Email: EmailConfig{
			Port: 587,
		},
		Scheduler: SchedulerConfig{
			Enabled:          true,
			CloseVotesSpec:   "@every 1m",
			LogCleanupSpec:   "@daily",
			RetryWebhookSpec: "@every 5m",
			LogRetentionDays: 30,
		},
		Admin: AdminConfig{
			Username: "admin",
			Password: "admin123",
		},
	}
}

func (c *Config) overrideFromEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
	return nil
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.LastIndex(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
