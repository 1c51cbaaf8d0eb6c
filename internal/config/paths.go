package config

import (
	"os"
	"path/filepath"
)

// TasktrackPath returns the root directory for tasktrack data.
// It uses $TASKTRACK_PATH if set, otherwise defaults to ~/.tasktrack.
func TasktrackPath() string {
	if v := os.Getenv("TASKTRACK_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".tasktrack")
	}
	return filepath.Join(home, ".tasktrack")
}

// ConfigPath returns the path to the tasktrack config file.
func ConfigPath() string {
	return filepath.Join(TasktrackPath(), "config.jsonc")
}

// DotenvPath returns the path to the tasktrack .env file.
func DotenvPath() string {
	return filepath.Join(TasktrackPath(), ".env")
}
