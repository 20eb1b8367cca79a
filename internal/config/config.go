package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the client.
type Config struct {
	BackendURL string
	UserID     string

	DBPath string
	LogDir string

	// Response poll tuning.
	PollAttempts int
	PollInterval time.Duration

	HTTPTimeout time.Duration
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Load reads an optional .env file and all env vars and builds the config.
func Load() *Config {
	// A missing .env file is fine; env vars still apply.
	_ = godotenv.Load()

	return &Config{
		BackendURL:   getEnv("PROMPTDESK_BACKEND_URL", "http://localhost:8080"),
		UserID:       getEnv("PROMPTDESK_USER_ID", ""),
		DBPath:       getEnv("PROMPTDESK_DB_PATH", "promptdesk.db"),
		LogDir:       getEnv("PROMPTDESK_LOG_DIR", "logs"),
		PollAttempts: getIntEnv("PROMPTDESK_POLL_ATTEMPTS", 30),
		PollInterval: time.Duration(getIntEnv("PROMPTDESK_POLL_INTERVAL_MS", 2000)) * time.Millisecond,
		HTTPTimeout:  time.Duration(getIntEnv("PROMPTDESK_HTTP_TIMEOUT_MS", 60000)) * time.Millisecond,
	}
}
