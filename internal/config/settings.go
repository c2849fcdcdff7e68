package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Default file names inside the data directory.
const (
	ConfigFileName = "configs.json"
	StateFileName  = "rotation_state.json"
)

// Settings holds process-level configuration read from environment
// variables. Everything about rotation itself lives in the document
// (configs.json); settings only locate the files and tune the daemon.
type Settings struct {
	DataDir     string // Directory holding configs.json and rotation_state.json
	LogLevel    string
	TickSeconds int    // Engine tick period in daemon mode
	StatusAddr  string // Listen address for the status endpoint; empty disables it
}

// TickPeriodDuration returns the tick period as a time.Duration.
func (s *Settings) TickPeriodDuration() time.Duration {
	return time.Duration(s.TickSeconds) * time.Second
}

// ConfigPath returns the location of the configuration document.
func (s *Settings) ConfigPath() string {
	return filepath.Join(s.DataDir, ConfigFileName)
}

// StatePath returns the location of the rotation-state document.
func (s *Settings) StatePath() string {
	return filepath.Join(s.DataDir, StateFileName)
}

// LoadSettings reads process settings from environment variables,
// loading a .env file first if one exists.
func LoadSettings() (*Settings, error) {
	_ = godotenv.Load()

	dataDir := getEnv("CFU_DATA_DIR", "/opt/Cloudflare-Utils")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Settings{
		DataDir:     absDataDir,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		TickSeconds: getEnvAsInt("CFU_TICK_SECONDS", 60),
		StatusAddr:  getEnv("CFU_STATUS_ADDR", ""),
	}
	if s.TickSeconds < 1 {
		return nil, fmt.Errorf("CFU_TICK_SECONDS must be positive, got %d", s.TickSeconds)
	}
	return s, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
