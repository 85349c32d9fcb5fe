/*
 * MIT License
 *
 * Copyright (c) 2026 The netspeed Authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package config loads the service configuration from the environment.
// Every knob is an environment variable; an optional .env file in the
// working directory is applied first, and real environment variables win.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration.
type Config struct {
	// Data roots.
	CurrentDir string // NETSPEED_CURRENT_DIR: directory of the current export
	HistoryDir string // NETSPEED_HISTORY_DIR: directory of rotated exports
	DataDir    string // CSV_FILES_DIR: base data directory, archive lives under it

	// External services.
	RedisURL       string   // REDIS_URL: task queue broker
	EngineURLs     []string // OPENSEARCH_URL: engine endpoints, first reachable wins
	EnginePassword string   // OPENSEARCH_PASSWORD

	// Engine readiness gate.
	EngineStartupTimeout time.Duration // OPENSEARCH_STARTUP_TIMEOUT_SECONDS
	EngineStartupPoll    time.Duration // OPENSEARCH_STARTUP_POLL_SECONDS
	EngineWait           bool          // OPENSEARCH_WAIT_FOR_AVAILABILITY

	// Query limits.
	SearchTimeout    time.Duration // SEARCH_TIMEOUT_SECONDS
	SearchMaxResults int           // SEARCH_MAX_RESULTS, hard cap MaxResultWindow

	// Retention and persistence.
	ArchiveRetentionYears int    // ARCHIVE_RETENTION_YEARS
	StateDir              string // NETSPEED_STATE_DIR: root of the progress-state directory

	// HTTP and background work.
	Port         int           // BACKEND_PORT
	ScanInterval time.Duration // NETSPEED_SCAN_INTERVAL_SECONDS: periodic rescan

	// Logging
	LogLevel string // LOG_LEVEL: debug, info, warn, error
	LogFile  string // LOG_FILE: log file path (empty = stdout)
}

// Default configuration values.
const (
	DefaultDataDir        = "data"
	DefaultStateDir       = "var"
	DefaultEngineURL      = "http://localhost:9200"
	DefaultRedisURL       = "redis://localhost:6379/0"
	DefaultStartupTimeout = 45 * time.Second
	DefaultStartupPoll    = 3 * time.Second
	DefaultSearchTimeout  = 20 * time.Second
	DefaultMaxResults     = 5000
	DefaultRetentionYears = 4
	DefaultPort           = 8000
	DefaultScanInterval   = 5 * time.Minute
	DefaultLogLevel       = "info"

	// MaxResultWindow is the engine-side ceiling on a single result page.
	// SEARCH_MAX_RESULTS is clamped to it.
	MaxResultWindow = 20000

	// MaxArchiveResults caps archive queries regardless of SEARCH_MAX_RESULTS.
	MaxArchiveResults = 10000
)

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return fromEnv(os.Getenv)
}

// LoadFromMap builds a Config from an explicit variable map. Tests use this
// to avoid mutating the process environment.
func LoadFromMap(env map[string]string) (*Config, error) {
	return fromEnv(func(key string) string { return env[key] })
}

func fromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DataDir:               envString(getenv, "CSV_FILES_DIR", DefaultDataDir),
		RedisURL:              envString(getenv, "REDIS_URL", DefaultRedisURL),
		EnginePassword:        getenv("OPENSEARCH_PASSWORD"),
		StateDir:              envString(getenv, "NETSPEED_STATE_DIR", DefaultStateDir),
		EngineWait:            true,
		EngineStartupTimeout:  DefaultStartupTimeout,
		EngineStartupPoll:     DefaultStartupPoll,
		SearchTimeout:         DefaultSearchTimeout,
		SearchMaxResults:      DefaultMaxResults,
		ArchiveRetentionYears: DefaultRetentionYears,
		Port:                  DefaultPort,
		ScanInterval:          DefaultScanInterval,
		LogLevel:              envString(getenv, "LOG_LEVEL", DefaultLogLevel),
		LogFile:               getenv("LOG_FILE"),
	}

	cfg.CurrentDir = envString(getenv, "NETSPEED_CURRENT_DIR", cfg.DataDir)
	cfg.HistoryDir = envString(getenv, "NETSPEED_HISTORY_DIR", filepath.Join(cfg.DataDir, "history"))
	cfg.EngineURLs = parseCommaSeparated(envString(getenv, "OPENSEARCH_URL", DefaultEngineURL))

	var err error
	if cfg.EngineStartupTimeout, err = envSeconds(getenv, "OPENSEARCH_STARTUP_TIMEOUT_SECONDS", cfg.EngineStartupTimeout); err != nil {
		return nil, err
	}
	if cfg.EngineStartupPoll, err = envSeconds(getenv, "OPENSEARCH_STARTUP_POLL_SECONDS", cfg.EngineStartupPoll); err != nil {
		return nil, err
	}
	if cfg.EngineWait, err = envBool(getenv, "OPENSEARCH_WAIT_FOR_AVAILABILITY", cfg.EngineWait); err != nil {
		return nil, err
	}
	if cfg.SearchTimeout, err = envSeconds(getenv, "SEARCH_TIMEOUT_SECONDS", cfg.SearchTimeout); err != nil {
		return nil, err
	}
	if cfg.SearchMaxResults, err = envInt(getenv, "SEARCH_MAX_RESULTS", cfg.SearchMaxResults); err != nil {
		return nil, err
	}
	if cfg.ArchiveRetentionYears, err = envInt(getenv, "ARCHIVE_RETENTION_YEARS", cfg.ArchiveRetentionYears); err != nil {
		return nil, err
	}
	if cfg.Port, err = envInt(getenv, "BACKEND_PORT", cfg.Port); err != nil {
		return nil, err
	}
	if cfg.ScanInterval, err = envSeconds(getenv, "NETSPEED_SCAN_INTERVAL_SECONDS", cfg.ScanInterval); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data directory cannot be empty")
	}

	if len(c.EngineURLs) == 0 {
		return errors.New("at least one engine URL is required")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.SearchTimeout < 1*time.Second {
		return errors.New("search timeout must be at least 1 second")
	}

	if c.SearchMaxResults < 1 || c.SearchMaxResults > MaxResultWindow {
		return fmt.Errorf("search max results must be between 1 and %d", MaxResultWindow)
	}

	if c.ArchiveRetentionYears < 1 {
		return errors.New("archive retention must be at least 1 year")
	}

	if c.EngineStartupPoll < 1*time.Second {
		return errors.New("engine startup poll must be at least 1 second")
	}

	if c.ScanInterval < 10*time.Second {
		return errors.New("scan interval must be at least 10 seconds")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// EngineURL returns the primary engine endpoint.
func (c *Config) EngineURL() string {
	if len(c.EngineURLs) == 0 {
		return ""
	}
	return c.EngineURLs[0]
}

// ArchiveDir is the on-disk archive of superseded current exports.
func (c *Config) ArchiveDir() string {
	return filepath.Join(c.DataDir, "archive")
}

// Roots returns the deduplicated discovery roots in probe order.
func (c *Config) Roots() []string {
	seen := make(map[string]bool, 3)
	var roots []string
	for _, dir := range []string{c.CurrentDir, c.HistoryDir, c.DataDir} {
		if dir == "" || seen[dir] {
			continue
		}
		seen[dir] = true
		roots = append(roots, dir)
	}
	return roots
}

// String returns a human-readable representation of the configuration.
// The engine password is intentionally omitted.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Data=%s, Current=%s, History=%s, Engine=%v, Redis=%s, Port=%d}",
		c.DataDir, c.CurrentDir, c.HistoryDir, c.EngineURLs, c.RedisURL, c.Port)
}

func envString(getenv func(string) string, key, fallback string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(getenv func(string) string, key string, fallback int) (int, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envSeconds(getenv func(string) string, key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return time.Duration(n * float64(time.Second)), nil
}

func envBool(getenv func(string) string, key string, fallback bool) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(getenv(key)))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%s: invalid boolean %q", key, v)
}

// parseCommaSeparated parses a comma-separated string into a slice of
// trimmed, non-empty strings.
func parseCommaSeparated(s string) []string {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
