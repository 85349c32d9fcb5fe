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

// Package citymap resolves 3-letter city codes to display names. The table
// lives in city_codes.csv next to the exports and is re-read whenever its
// modification time or size changes; a missing file simply means every code
// resolves to itself.
package citymap

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
)

// FileName is the lookup table's name inside the data root.
const FileName = "city_codes.csv"

type cityRow struct {
	Code string `csv:"code"`
	Name string `csv:"name"`
}

// Map is a lazily loaded, mtime-refreshed city-code table. Safe for
// concurrent use.
type Map struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	names map[string]string
	mtime time.Time
	size  int64
}

// New creates a map over <dataDir>/city_codes.csv. The file is not touched
// until the first lookup.
func New(logger *slog.Logger, dataDir string) *Map {
	if logger == nil {
		logger = slog.Default()
	}
	return &Map{
		path:   filepath.Join(dataDir, FileName),
		logger: logger.With("component", "citymap"),
	}
}

// Lookup returns the display name for a 3-letter city code. Unknown codes
// come back unchanged so callers never need a fallback of their own.
func (m *Map) Lookup(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	m.refresh()

	m.mu.RLock()
	defer m.mu.RUnlock()
	if name, ok := m.names[code]; ok {
		return name
	}
	return code
}

// All returns a copy of the loaded table.
func (m *Map) All() map[string]string {
	m.refresh()

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.names))
	for k, v := range m.names {
		out[k] = v
	}
	return out
}

// refresh reloads the table when the file changed since the last read.
// Every lookup stats the file so edits become visible without a restart.
func (m *Map) refresh() {
	st, err := os.Stat(m.path)
	if err != nil {
		m.mu.Lock()
		if m.names == nil {
			m.names = make(map[string]string)
		}
		m.mu.Unlock()
		return
	}

	m.mu.RLock()
	fresh := m.names != nil && st.ModTime().Equal(m.mtime) && st.Size() == m.size
	m.mu.RUnlock()
	if fresh {
		return
	}

	f, err := os.Open(m.path)
	if err != nil {
		m.logger.Warn("failed to open city map", "path", m.path, "error", err)
		return
	}
	defer f.Close()

	var rows []cityRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		m.logger.Warn("failed to parse city map", "path", m.path, "error", err)
		return
	}

	names := make(map[string]string, len(rows))
	for _, row := range rows {
		code := strings.ToUpper(strings.TrimSpace(row.Code))
		name := strings.TrimSpace(row.Name)
		if len(code) == 3 && name != "" {
			names[code] = name
		}
	}

	m.mu.Lock()
	m.names = names
	m.mtime = st.ModTime()
	m.size = st.Size()
	m.mu.Unlock()
	m.logger.Info("city map loaded", "path", m.path, "entries", len(names))
}
