package config

import (
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Port               string
	DatabaseURL        string // empty disables the event store
	DBMaxConns         int
	LogDir             string
	LogRetention       time.Duration
	CleanupInterval    time.Duration
	SeedSource         string
	SeedKnownHosts     string
	SeedTimeout        time.Duration
	Hostname           string
	SessionIdleTimeout time.Duration
	ReaperInterval     time.Duration
	MaxSessions        int
	TokenCost          int
	RateLimitRPS       float64
	RateLimitBurst     int
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		DBMaxConns:         getEnvInt("DB_MAX_CONNS", 10),
		LogDir:             getEnv("LOG_DIR", "./storage/logs"),
		LogRetention:       getEnvDuration("LOG_RETENTION_HOURS", time.Hour, 7*24*time.Hour),
		CleanupInterval:    getEnvDuration("CLEANUP_INTERVAL_HOURS", time.Hour, 1*time.Hour),
		SeedSource:         getEnv("SEED_SOURCE", ""),
		SeedKnownHosts:     getEnv("SEED_KNOWN_HOSTS", ""),
		SeedTimeout:        getEnvDuration("SEED_TIMEOUT_SECONDS", time.Second, 10*time.Second),
		Hostname:           getEnv("SHELL_HOSTNAME", "vshell"),
		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT_MINUTES", time.Minute, 30*time.Minute),
		ReaperInterval:     getEnvDuration("REAPER_INTERVAL_MINUTES", time.Minute, 1*time.Minute),
		MaxSessions:        getEnvInt("MAX_SESSIONS", 100),
		TokenCost:          getEnvInt("TOKEN_COST", bcrypt.DefaultCost),
		RateLimitRPS:       getEnvFloat64("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 20),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat64(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration reads a number of units, fractions allowed.
func getEnvDuration(key string, unit, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseFloat(val, 64); err == nil && n > 0 {
			return time.Duration(n * float64(unit))
		}
	}
	return fallback
}
