// Package config loads environment-backed defaults for settings a user
// would otherwise have to repeat on every CLI invocation (a replay
// proxy, a live-reporting bind address), following the teacher's
// getenv-with-fallback, .env-file style.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Env holds the settings this engine is willing to read from the
// environment (or a ".env" file) instead of requiring a flag every run.
type Env struct {
	// ReplayProxy, if set, is the default replay target URL.
	ReplayProxy string
	// LiveReportAddr is the default bind address for the live-reporting
	// WebSocket server ("" disables it).
	LiveReportAddr string
	// OutputDir is the default directory FileReporter writes into.
	OutputDir string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Load reads a ".env" file if present in the working directory - a
// missing file is not an error, most runs have none - and returns the
// resulting Env.
func Load() (*Env, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return &Env{
		ReplayProxy:    os.Getenv("PARAMHUNT_REPLAY_PROXY"),
		LiveReportAddr: os.Getenv("PARAMHUNT_LIVE_ADDR"),
		OutputDir:      getEnvOrDefault("PARAMHUNT_OUTPUT_DIR", "./findings"),
	}, nil
}
