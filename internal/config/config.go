// Package config centralises configuration parsing for the LiftLog
// core. Values come from the environment, optionally seeded from a
// .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration for the sync core.
type Config struct {
	DataDir           string        // Directory holding the embedded database.
	RemoteBaseURL     string        // Base URL of the hosted record service; empty disables write-through.
	RemoteAPIKey      string        // API key for the hosted record service.
	UserID            string        // Authenticated user id; normally injected by the host's auth layer.
	ReplayConcurrency int           // In-flight remote calls per replay batch.
	QueueMaxSize      int           // Sync queue capacity; 0 means unbounded.
	SchedulerInterval time.Duration // Background drain interval.
	MetricsAddress    string        // Listen address for /metrics; empty disables the listener.
	LogLevel          string        // logrus level name.
}

// Load reads the environment into Config, applying defaults suitable
// for local development. A missing .env file is not an error.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		DataDir:           getEnv("LIFTLOG_DATA_DIR", defaultDataDir()),
		RemoteBaseURL:     getEnv("LIFTLOG_REMOTE_URL", ""),
		RemoteAPIKey:      getEnv("LIFTLOG_REMOTE_API_KEY", ""),
		UserID:            getEnv("LIFTLOG_USER_ID", ""),
		ReplayConcurrency: getIntEnv("LIFTLOG_REPLAY_CONCURRENCY", 3),
		QueueMaxSize:      getIntEnv("LIFTLOG_QUEUE_MAX_SIZE", 1000),
		SchedulerInterval: getDurationEnv("LIFTLOG_SYNC_INTERVAL", time.Minute),
		MetricsAddress:    getEnv("LIFTLOG_METRICS_ADDRESS", ""),
		LogLevel:          getEnv("LIFTLOG_LOG_LEVEL", "info"),
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".liftlog"
	}
	return home + "/.liftlog"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
