package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      int
	Password  string
	JWTSecret string        // Signs the auth cookie; defaults to Password
	AuthTTL   time.Duration // Lifetime of the auth cookie

	APIURL         string        // Bookkeeping backend base URL (detector + invoices)
	RequestTimeout time.Duration // Timeout for a single backend request

	CameraDevice string // Device index ("0") or stream URL
	FrameWidth   int
	FrameHeight  int
	JPEGQuality  int
	PollInterval time.Duration // Tick period of the capture loop

	DatabasePath          string
	SnapshotDirectory     string
	SnapshotBufferLimit   int
	SnapshotFlushInterval int // Seconds between snapshot flushes
	LogDirectory          string
}

// Load reads configuration from the environment, after merging an optional .env file.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Could not load .env file: %v", err)
	}

	return &Config{
		Port:                  getEnvAsInt("PORT", 8080),
		Password:              getEnv("PASSWORD", "kantar"),
		JWTSecret:             getEnv("JWT_SECRET", ""),
		AuthTTL:               time.Duration(getEnvAsInt("AUTH_TTL_HOURS", 720)) * time.Hour,
		APIURL:                getEnv("API_URL", "http://localhost:5000"),
		RequestTimeout:        time.Duration(getEnvAsInt("REQUEST_TIMEOUT", 10)) * time.Second,
		CameraDevice:          getEnv("CAMERA_DEVICE", "0"),
		FrameWidth:            getEnvAsInt("FRAME_WIDTH", 1280),
		FrameHeight:           getEnvAsInt("FRAME_HEIGHT", 720),
		JPEGQuality:           getEnvAsInt("JPEG_QUALITY", 90),
		PollInterval:          time.Duration(getEnvAsInt("POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		DatabasePath:          getEnv("DB_PATH", filepath.Join(".", "data", "capture.db")),
		SnapshotDirectory:     getEnv("SNAPSHOT_DIR", filepath.Join(".", "snapshots")),
		SnapshotBufferLimit:   getEnvAsInt("SNAPSHOT_BUFFER_LIMIT", 10),
		SnapshotFlushInterval: getEnvAsInt("SNAPSHOT_FLUSH_INTERVAL", 30),
		LogDirectory:          getEnv("LOG_DIR", filepath.Join(".", "logs")),
	}
}

// AuthSecret returns the key used to sign auth cookies.
func (c *Config) AuthSecret() []byte {
	if c.JWTSecret != "" {
		return []byte(c.JWTSecret)
	}
	return []byte(c.Password)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt falls back to the default for unparsable or non-positive values.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}
