package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	API     APIConfig
	Session SessionConfig
	Redis   RedisConfig
	Search  SearchConfig
	Sync    SyncConfig
	Logger  LoggerConfig
	Metrics MetricsConfig
}

type APIConfig struct {
	BaseURL               string
	RequestTimeoutSeconds int
}

type SessionConfig struct {
	TerminalID  string
	File        string
	DatabaseURL string
}

type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	TTLSeconds int
}

// minSearchChars is the shortest query that may reach the backend.
const minSearchChars = 2

type SearchConfig struct {
	DebounceMS int
	MinChars   int
}

type SyncConfig struct {
	ErrorDisplaySeconds int
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MetricsConfig struct {
	Enabled bool
	Addr    string
}

func Load() Config {
	return Config{
		API: APIConfig{
			BaseURL:               strings.TrimSpace(getEnv("EZSHOP_API_BASE_URL", "http://127.0.0.1:8000/api/v1")),
			RequestTimeoutSeconds: getEnvInt("EZSHOP_REQUEST_TIMEOUT_SECONDS", 10),
		},
		Session: SessionConfig{
			TerminalID:  getEnv("EZSHOP_TERMINAL_ID", "terminal-1"),
			File:        getEnv("EZSHOP_SESSION_FILE", defaultSessionFile()),
			DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		},
		Redis: RedisConfig{
			Addr:       strings.TrimSpace(os.Getenv("REDIS_ADDR")),
			Password:   os.Getenv("REDIS_PASSWORD"),
			DB:         getEnvNonNegative("REDIS_DB", 0),
			TTLSeconds: getEnvInt("EZSHOP_PRODUCT_CACHE_TTL_SECONDS", 300),
		},
		Search: SearchConfig{
			DebounceMS: getEnvInt("EZSHOP_SEARCH_DEBOUNCE_MS", 500),
			MinChars:   max(getEnvInt("EZSHOP_SEARCH_MIN_CHARS", minSearchChars), minSearchChars),
		},
		Sync: SyncConfig{
			ErrorDisplaySeconds: getEnvInt("EZSHOP_ERROR_DISPLAY_SECONDS", 3),
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "console"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("PROMETHEUS_ENABLED", false),
			Addr:    getEnv("METRICS_ADDR", "127.0.0.1:9464"),
		},
	}
}

func (c Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("EZSHOP_API_BASE_URL must be an absolute http(s) url, got %q", c.API.BaseURL))
	}
	if strings.TrimSpace(c.Session.TerminalID) == "" {
		errs = append(errs, errors.New("EZSHOP_TERMINAL_ID must not be empty"))
	}
	if c.Session.DatabaseURL == "" && strings.TrimSpace(c.Session.File) == "" {
		errs = append(errs, errors.New("EZSHOP_SESSION_FILE must be set when DATABASE_URL is not"))
	}
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Addr) == "" {
		errs = append(errs, errors.New("METRICS_ADDR must be set when PROMETHEUS_ENABLED is true"))
	}
	return errors.Join(errs...)
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.RequestTimeoutSeconds) * time.Second
}

func (c Config) SearchDelay() time.Duration {
	return time.Duration(c.Search.DebounceMS) * time.Millisecond
}

func (c Config) ErrorWindow() time.Duration {
	return time.Duration(c.Sync.ErrorDisplaySeconds) * time.Second
}

func (c Config) ProductCacheTTL() time.Duration {
	return time.Duration(c.Redis.TTLSeconds) * time.Second
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".ezshop", "session.json")
	}
	return filepath.Join(home, ".ezshop", "session.json")
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

// getEnvInt falls back on unparsable or non-positive values.
func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func getEnvNonNegative(key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return b
}
