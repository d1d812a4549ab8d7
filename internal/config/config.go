package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Local store
	DBPath        string
	CacheMaxBytes int // 0 = no quota bound

	// Remote service
	RemoteURL string // empty = cache-only mode, no sync attempted

	// Location agent
	GeoURL     string // empty = no geolocation capture
	GeoTimeout time.Duration
	GeoStale   time.Duration

	// Evidence
	PhotoMaxDim int // longest edge in pixels before base64 embedding
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		DBPath:        getEnvOrDefault("FIELDTASK_DB_PATH", defaultDBPath()),
		CacheMaxBytes: getEnvAsIntOrDefault("FIELDTASK_CACHE_MAX_BYTES", 0),
		RemoteURL:     getEnvOrDefault("FIELDTASK_REMOTE_URL", ""),
		GeoURL:        getEnvOrDefault("FIELDTASK_GEO_URL", ""),
		GeoTimeout:    time.Duration(getEnvAsIntOrDefault("FIELDTASK_GEO_TIMEOUT_MS", 5000)) * time.Millisecond,
		GeoStale:      time.Duration(getEnvAsIntOrDefault("FIELDTASK_GEO_STALE_MS", 30000)) * time.Millisecond,
		PhotoMaxDim:   getEnvAsIntOrDefault("FIELDTASK_PHOTO_MAX_DIM", 1280),
	}
}

func defaultDBPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "fieldtask.db"
	}
	return filepath.Join(homeDir, ".fieldtask", "fieldtask.db")
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
