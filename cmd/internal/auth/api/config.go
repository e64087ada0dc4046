package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls API behavior and request limits.
type Config struct {
	MaxBodyBytes int64

	HistoryDefaultLimit int
	HistoryMaxLimit     int
}

// LoadConfigFromEnv loads API config from environment variables with safe
// defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		MaxBodyBytes:        envInt64("RIPPLE_API_MAX_BODY_BYTES", 1<<20), // 1 MiB
		HistoryDefaultLimit: envInt("RIPPLE_API_HISTORY_LIMIT", 50),
		HistoryMaxLimit:     envInt("RIPPLE_API_HISTORY_MAX_LIMIT", 200),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.HistoryDefaultLimit <= 0 {
		cfg.HistoryDefaultLimit = 50
	}
	if cfg.HistoryMaxLimit < cfg.HistoryDefaultLimit {
		cfg.HistoryMaxLimit = cfg.HistoryDefaultLimit
	}

	return cfg
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
