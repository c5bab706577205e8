package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// Defaults shared by every command, overridable from the environment or a
// .env file in the working directory.
const (
	defaultConfigPath = "configs/flappy.ini"
	defaultDBPath     = "flappy.db"
)

// loadEnv loads .env if present. Variables already set win.
func loadEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn(".env file could not be loaded", "err", err)
	}
}

// getEnvWithDefault retrieves the value of an environment variable or returns a default value if not set.
func getEnvWithDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
