package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	OTP       OTPConfig
	Feed      FeedConfig
	Scheduler SchedulerConfig
	Login     LoginConfig
	Log       LogConfig
}

type ServerConfig struct {
	Address string
}

type AuthConfig struct {
	BaseURL string
	Timeout time.Duration
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type OTPConfig struct {
	KeyPrefix string
	Timeout   time.Duration
	Poll      time.Duration
}

type FeedConfig struct {
	CSVPath string
}

type SchedulerConfig struct {
	Interval time.Duration
	Debounce time.Duration
}

type LoginConfig struct {
	Limit           int
	CooldownMinutes int
}

type LogConfig struct {
	Dir       string
	Retention time.Duration
	Level     string
}

func LoadAll() (*Config, error) {
	var errs []error

	str := func(key string) string {
		v, err := requireEnv(key)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	num := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Auth: AuthConfig{
			BaseURL: str("AUTH_BASE_URL"),
			Timeout: time.Duration(num("AUTH_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Database: DatabaseConfig{
			PostgresURL: str("POSTGRES_URL"),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       num("REDIS_DB", 4),
		},
		OTP: OTPConfig{
			KeyPrefix: getEnv("OTP_KEY_PREFIX", "otp:_"),
			Timeout:   time.Duration(num("OTP_TIMEOUT_MS", 60000)) * time.Millisecond,
			Poll:      time.Duration(num("OTP_POLL_MS", 2000)) * time.Millisecond,
		},
		Feed: FeedConfig{
			CSVPath: getEnv("CSV_PATH", "users.csv"),
		},
		Scheduler: SchedulerConfig{
			Interval: time.Duration(num("SCHED_INTERVAL_SECONDS", 60)) * time.Second,
			Debounce: time.Duration(num("SCHED_DEBOUNCE_MS", 1200)) * time.Millisecond,
		},
		Login: LoginConfig{
			Limit:           num("LOGIN_LIMIT", 50),
			CooldownMinutes: num("LOGIN_COOLDOWN_MIN", 10),
		},
		Log: LogConfig{
			Dir:       getEnv("LOG_DIR", "logs"),
			Retention: time.Duration(num("LOG_RETENTION_DAYS", 7)) * 24 * time.Hour,
			Level:     getEnv("LOG_LEVEL", "info"),
		},
	}

	if abs, err := filepath.Abs(cfg.Feed.CSVPath); err == nil {
		cfg.Feed.CSVPath = abs
	} else {
		errs = append(errs, fmt.Errorf("CSV_PATH: %w", err))
	}

	errs = append(errs, validate(cfg)...)
	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) []error {
	var errs []error
	if cfg.Auth.Timeout <= 0 {
		errs = append(errs, errors.New("AUTH_TIMEOUT_SECONDS must be > 0"))
	}
	if cfg.OTP.Timeout <= 0 {
		errs = append(errs, errors.New("OTP_TIMEOUT_MS must be > 0"))
	}
	if cfg.OTP.Poll <= 0 {
		errs = append(errs, errors.New("OTP_POLL_MS must be > 0"))
	}
	if cfg.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("SCHED_INTERVAL_SECONDS must be > 0"))
	}
	if cfg.Scheduler.Debounce <= 0 {
		errs = append(errs, errors.New("SCHED_DEBOUNCE_MS must be > 0"))
	}
	if cfg.Login.Limit <= 0 {
		errs = append(errs, errors.New("LOGIN_LIMIT must be > 0"))
	}
	if cfg.Login.CooldownMinutes < 0 {
		errs = append(errs, errors.New("LOGIN_COOLDOWN_MIN must be >= 0"))
	}
	if cfg.Log.Retention <= 0 {
		errs = append(errs, errors.New("LOG_RETENTION_DAYS must be > 0"))
	}
	return errs
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
