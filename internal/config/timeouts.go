package config

import (
	"os"
	"strconv"
	"time"
)

// ApplyEnv overrides timeouts, retries and paths from environment variables.
// Unset or unparsable variables leave the current value in place.
//
// Environment Variables:
//   - EDGEFLEET_REGISTRY_PATH
//   - EDGEFLEET_FILES_DIR
//   - EDGEFLEET_SSH_DIAL_TIMEOUT (default: 30s)
//   - EDGEFLEET_SSH_CONNECT_ATTEMPTS (default: 3)
//   - EDGEFLEET_SSH_CONNECT_DELAY (default: 10s)
//   - EDGEFLEET_SSH_COMMAND_ATTEMPTS (default: 2)
//   - EDGEFLEET_SSH_COMMAND_DELAY (default: 5s)
//   - EDGEFLEET_MASTER_SETTLE_DELAY (default: 30s)
//   - EDGEFLEET_WORKERS_CONCURRENCY (default: 1)
//   - EDGEFLEET_LOG_LEVEL (default: info)
//   - EDGEFLEET_LISTEN (default: :8080)
func ApplyEnv(cfg *Config) {
	cfg.Registry.Path = parseString("EDGEFLEET_REGISTRY_PATH", cfg.Registry.Path)
	cfg.Files.Dir = parseString("EDGEFLEET_FILES_DIR", cfg.Files.Dir)

	cfg.SSH.DialTimeout = parseDuration("EDGEFLEET_SSH_DIAL_TIMEOUT", cfg.SSH.DialTimeout)
	cfg.SSH.ConnectAttempts = parseInt("EDGEFLEET_SSH_CONNECT_ATTEMPTS", cfg.SSH.ConnectAttempts)
	cfg.SSH.ConnectDelay = parseDuration("EDGEFLEET_SSH_CONNECT_DELAY", cfg.SSH.ConnectDelay)
	cfg.SSH.CommandAttempts = parseInt("EDGEFLEET_SSH_COMMAND_ATTEMPTS", cfg.SSH.CommandAttempts)
	cfg.SSH.CommandDelay = parseDuration("EDGEFLEET_SSH_COMMAND_DELAY", cfg.SSH.CommandDelay)

	cfg.Master.SettleDelay = parseDuration("EDGEFLEET_MASTER_SETTLE_DELAY", cfg.Master.SettleDelay)
	cfg.Workers.Concurrency = parseInt("EDGEFLEET_WORKERS_CONCURRENCY", cfg.Workers.Concurrency)

	cfg.Logging.Level = parseString("EDGEFLEET_LOG_LEVEL", cfg.Logging.Level)
	cfg.Server.Listen = parseString("EDGEFLEET_LISTEN", cfg.Server.Listen)
}

func parseString(envVar, defaultVal string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultVal
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
