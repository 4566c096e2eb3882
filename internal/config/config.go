package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	BackendBaseURL   string
	BackendTimeoutMs int

	DBPath    string
	SpoolDir  string
	OutputDir string

	MaxUploadMB int

	WatchDir         string
	WatchIntervalSec int
	WatchAutoExport  bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		BackendBaseURL:   getEnv("BACKEND_BASE_URL", "http://localhost:8000"),
		BackendTimeoutMs: getEnvInt("BACKEND_TIMEOUT_MS", 30000),

		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		SpoolDir:  getEnv("SPOOL_DIR", filepath.Join(cwd, "data", "spool")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		MaxUploadMB: getEnvInt("MAX_UPLOAD_MB", 10),

		WatchDir:         getEnv("WATCH_DIR", filepath.Join(cwd, "data", "incoming")),
		WatchIntervalSec: getEnvInt("WATCH_INTERVAL_SEC", 30),
		WatchAutoExport:  getEnvBool("WATCH_AUTO_EXPORT", true),
	}

	return cfg, nil
}

// MaxUploadBytes is the file intake size cap.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
