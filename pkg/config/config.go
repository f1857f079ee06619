package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds the console configuration
type Config struct {
	Port            string   // Serial port path; empty means auto-detect
	BaudRate        int      // Serial baud rate (Marauder default 115200)
	PortGlobs       []string // Globs tried during port auto-detection
	SessionsDir     string   // Directory session JSONL files are written to
	Verbose         bool     // Enable verbose output
	EnableDashboard bool     // Enable web dashboard
	DashboardPort   string   // Port for web dashboard
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		BaudRate:      115200,
		SessionsDir:   filepath.Join(home, ".marauder-link", "sessions"),
		DashboardPort: "8080",
	}
}

// LoadConfigFromFile loads configuration from a JSON file
func LoadConfigFromFile(filePath string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return cfg, err
	}

	err = json.Unmarshal(data, &cfg)
	return cfg, err
}
