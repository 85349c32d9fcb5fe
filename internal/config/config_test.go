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

package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestParseCommaSeparated(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "Single value",
			input:    "http://localhost:9200",
			expected: []string{"http://localhost:9200"},
		},
		{
			name:     "Multiple values",
			input:    "http://es1:9200,http://es2:9200",
			expected: []string{"http://es1:9200", "http://es2:9200"},
		},
		{
			name:     "Whitespace handling",
			input:    " http://es1:9200 , http://es2:9200 ",
			expected: []string{"http://es1:9200", "http://es2:9200"},
		},
		{
			name:     "Empty parts",
			input:    "http://es1:9200,,http://es2:9200",
			expected: []string{"http://es1:9200", "http://es2:9200"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCommaSeparated(tt.input)
			if len(got) != len(tt.expected) {
				t.Errorf("parseCommaSeparated() length = %v, want %v", len(got), len(tt.expected))
				return
			}
			for i, v := range got {
				if v != tt.expected[i] {
					t.Errorf("parseCommaSeparated()[%d] = %v, want %v", i, v, tt.expected[i])
				}
			}
		})
	}
}

func validConfig() Config {
	return Config{
		CurrentDir:            "data",
		HistoryDir:            "data/history",
		DataDir:               "data",
		RedisURL:              DefaultRedisURL,
		EngineURLs:            []string{DefaultEngineURL},
		EngineStartupTimeout:  DefaultStartupTimeout,
		EngineStartupPoll:     DefaultStartupPoll,
		SearchTimeout:         DefaultSearchTimeout,
		SearchMaxResults:      DefaultMaxResults,
		ArchiveRetentionYears: DefaultRetentionYears,
		StateDir:              DefaultStateDir,
		Port:                  DefaultPort,
		ScanInterval:          DefaultScanInterval,
		LogLevel:              DefaultLogLevel,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "Valid Config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "Empty Data Dir",
			mutate:  func(c *Config) { c.DataDir = "" },
			wantErr: true,
		},
		{
			name:    "No Engine URLs",
			mutate:  func(c *Config) { c.EngineURLs = nil },
			wantErr: true,
		},
		{
			name:    "Invalid Port (Zero)",
			mutate:  func(c *Config) { c.Port = 0 },
			wantErr: true,
		},
		{
			name:    "Invalid Port (Too large)",
			mutate:  func(c *Config) { c.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "Search Timeout Too Small",
			mutate:  func(c *Config) { c.SearchTimeout = 500 * time.Millisecond },
			wantErr: true,
		},
		{
			name:    "Max Results Above Window",
			mutate:  func(c *Config) { c.SearchMaxResults = MaxResultWindow + 1 },
			wantErr: true,
		},
		{
			name:    "Max Results At Window",
			mutate:  func(c *Config) { c.SearchMaxResults = MaxResultWindow },
			wantErr: false,
		},
		{
			name:    "Zero Retention",
			mutate:  func(c *Config) { c.ArchiveRetentionYears = 0 },
			wantErr: true,
		},
		{
			name:    "Scan Interval Too Small",
			mutate:  func(c *Config) { c.ScanInterval = 5 * time.Second },
			wantErr: true,
		},
		{
			name:    "Invalid Log Level",
			mutate:  func(c *Config) { c.LogLevel = "invalid" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromMap(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		check       func(t *testing.T, cfg *Config)
		expectError bool
	}{
		{
			name: "Defaults",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.DataDir != DefaultDataDir {
					t.Errorf("DataDir = %v, want %v", cfg.DataDir, DefaultDataDir)
				}
				if cfg.CurrentDir != DefaultDataDir {
					t.Errorf("CurrentDir = %v, want %v", cfg.CurrentDir, DefaultDataDir)
				}
				if want := filepath.Join(DefaultDataDir, "history"); cfg.HistoryDir != want {
					t.Errorf("HistoryDir = %v, want %v", cfg.HistoryDir, want)
				}
				if cfg.Port != DefaultPort {
					t.Errorf("Port = %v, want %v", cfg.Port, DefaultPort)
				}
				if cfg.SearchTimeout != DefaultSearchTimeout {
					t.Errorf("SearchTimeout = %v, want %v", cfg.SearchTimeout, DefaultSearchTimeout)
				}
				if !cfg.EngineWait {
					t.Error("EngineWait = false, want true by default")
				}
			},
		},
		{
			name: "Custom Values",
			env: map[string]string{
				"CSV_FILES_DIR":        "/srv/netspeed",
				"NETSPEED_CURRENT_DIR": "/srv/netspeed/live",
				"OPENSEARCH_URL":       "http://es1:9200, http://es2:9200",
				"SEARCH_MAX_RESULTS":   "100",
				"BACKEND_PORT":         "9000",
				"LOG_LEVEL":            "debug",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.DataDir != "/srv/netspeed" {
					t.Errorf("DataDir = %v", cfg.DataDir)
				}
				if cfg.CurrentDir != "/srv/netspeed/live" {
					t.Errorf("CurrentDir = %v", cfg.CurrentDir)
				}
				if want := filepath.Join("/srv/netspeed", "history"); cfg.HistoryDir != want {
					t.Errorf("HistoryDir = %v, want %v", cfg.HistoryDir, want)
				}
				if len(cfg.EngineURLs) != 2 || cfg.EngineURLs[1] != "http://es2:9200" {
					t.Errorf("EngineURLs = %v", cfg.EngineURLs)
				}
				if cfg.EngineURL() != "http://es1:9200" {
					t.Errorf("EngineURL() = %v", cfg.EngineURL())
				}
				if cfg.SearchMaxResults != 100 {
					t.Errorf("SearchMaxResults = %v, want 100", cfg.SearchMaxResults)
				}
				if cfg.Port != 9000 {
					t.Errorf("Port = %v, want 9000", cfg.Port)
				}
			},
		},
		{
			name: "Fractional Seconds",
			env: map[string]string{
				"OPENSEARCH_STARTUP_POLL_SECONDS": "1.5",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.EngineStartupPoll != 1500*time.Millisecond {
					t.Errorf("EngineStartupPoll = %v, want 1.5s", cfg.EngineStartupPoll)
				}
			},
		},
		{
			name: "Wait Disabled",
			env: map[string]string{
				"OPENSEARCH_WAIT_FOR_AVAILABILITY": "false",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.EngineWait {
					t.Error("EngineWait = true, want false")
				}
			},
		},
		{
			name:        "Invalid Integer",
			env:         map[string]string{"BACKEND_PORT": "not-a-number"},
			expectError: true,
		},
		{
			name:        "Invalid Boolean",
			env:         map[string]string{"OPENSEARCH_WAIT_FOR_AVAILABILITY": "maybe"},
			expectError: true,
		},
		{
			name:        "Validation Failure",
			env:         map[string]string{"BACKEND_PORT": "0"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromMap(tt.env)
			if tt.expectError {
				if err == nil {
					t.Error("LoadFromMap() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("LoadFromMap() unexpected error: %v", err)
				return
			}
			tt.check(t, cfg)
		})
	}
}

func TestConfig_Roots(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected []string
	}{
		{
			name: "All distinct",
			config: Config{
				CurrentDir: "/a",
				HistoryDir: "/b",
				DataDir:    "/c",
			},
			expected: []string{"/a", "/b", "/c"},
		},
		{
			name: "Current equals data",
			config: Config{
				CurrentDir: "/data",
				HistoryDir: "/data/history",
				DataDir:    "/data",
			},
			expected: []string{"/data", "/data/history"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.config.Roots()
			if len(got) != len(tt.expected) {
				t.Fatalf("Roots() = %v, want %v", got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("Roots()[%d] = %v, want %v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}
