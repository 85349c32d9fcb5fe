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

// Package state persists ingestion progress across restarts.
//
// The whole state is one JSON document written atomically via a temp file
// and rename, so a crash mid-write always leaves either the previous or the
// new snapshot on disk. The file path embeds a hash of the broker and
// engine URLs: two environments sharing a host never collide, and a state
// file written against different endpoints is recognizably foreign.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Active task statuses.
const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

// StaleAfter is how long a running task may go without a state update
// before a status read reclassifies it as interrupted.
const StaleAfter = 10 * time.Minute

// FileState is the per-file ingest signature.
type FileState struct {
	Size      int64  `json:"size"`
	MTime     int64  `json:"mtime"`
	LineCount int    `json:"line_count"`
	DocCount  int    `json:"doc_count"`
	IndexedAt string `json:"indexed_at"`
}

// Totals accumulates across all ingested files.
type Totals struct {
	Files     int `json:"files"`
	Documents int `json:"documents"`
}

// Active records a task currently holding the write side. Concurrent
// triggers abort when they observe a foreign task id in status running.
type Active struct {
	TaskID           string `json:"task_id"`
	Status           string `json:"status"`
	StartedAt        string `json:"started_at"`
	UpdatedAt        string `json:"updated_at"`
	CurrentFile      string `json:"current_file,omitempty"`
	Index            string `json:"index,omitempty"`
	TotalFiles       int    `json:"total_files"`
	DocumentsIndexed int    `json:"documents_indexed"`
	BrokerURL        string `json:"broker_url"`
	EngineURL        string `json:"engine_url"`
	Error            string `json:"error,omitempty"`
}

// Document is the persisted progress state.
type Document struct {
	Files       map[string]FileState `json:"files"`
	Totals      Totals               `json:"totals"`
	LastRun     string               `json:"last_run,omitempty"`
	LastSuccess string               `json:"last_success,omitempty"`
	Active      *Active              `json:"active,omitempty"`
}

func newDocument() *Document {
	return &Document{Files: make(map[string]FileState)}
}

// Path derives the state file location for one (broker, engine) pair:
// <stateDir>/index_state/.index_state.<hash>.json.
func Path(stateDir, brokerURL, engineURL string) string {
	sum := xxhash.Sum64String(brokerURL + "|" + engineURL)
	name := fmt.Sprintf(".index_state.%016x.json", sum)
	return filepath.Join(stateDir, "index_state", name)
}

// Store owns the progress document. All mutation goes through Update so
// load-modify-save cycles cannot interleave within a process; the
// orchestrator is the only writer across processes.
type Store struct {
	path      string
	brokerURL string
	engineURL string
	logger    *slog.Logger

	mu  sync.Mutex
	now func() time.Time // test seam
}

// NewStore creates a store for the given environment.
func NewStore(logger *slog.Logger, stateDir, brokerURL, engineURL string) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:      Path(stateDir, brokerURL, engineURL),
		brokerURL: brokerURL,
		engineURL: engineURL,
		logger:    logger.With("component", "state"),
		now:       time.Now,
	}
}

// FilePath returns where the document lives on disk.
func (s *Store) FilePath() string { return s.path }

// Load reads the document. A missing file is an empty document, not an
// error; a corrupt file is reported.
func (s *Store) Load() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return newDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	doc := newDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if doc.Files == nil {
		doc.Files = make(map[string]FileState)
	}
	return doc, nil
}

// Save writes the document atomically: temp file in the same directory,
// fsync, rename.
func (s *Store) Save(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(doc)
}

func (s *Store) save(doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync temp state file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Update applies fn to the current document and persists the result under
// the store lock.
func (s *Store) Update(fn func(*Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		// Progress state is best-effort: a corrupt document is replaced,
		// never allowed to wedge an ingest.
		s.logger.Warn("resetting unreadable state document", "path", s.path, "error", err)
		doc = newDocument()
	}
	fn(doc)
	return s.save(doc)
}

// StartActive claims the write side for taskID. It fails when a different
// task is still running, after normalizing stale claims.
func (s *Store) StartActive(taskID string, totalFiles int, taskLive func(string) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		s.logger.Warn("resetting unreadable state document", "path", s.path, "error", err)
		doc = newDocument()
	}
	s.normalize(doc, taskLive)

	if a := doc.Active; a != nil && a.Status == StatusRunning && a.TaskID != taskID {
		return fmt.Errorf("task %s is already running", a.TaskID)
	}

	now := s.timestamp()
	doc.Active = &Active{
		TaskID:     taskID,
		Status:     StatusRunning,
		StartedAt:  now,
		UpdatedAt:  now,
		TotalFiles: totalFiles,
		BrokerURL:  s.brokerURL,
		EngineURL:  s.engineURL,
	}
	doc.LastRun = now
	return s.save(doc)
}

// Normalized loads the document and reclassifies a stale running task as
// interrupted. taskLive may be nil when queue liveness cannot be checked.
func (s *Store) Normalized(taskLive func(string) bool) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	if s.normalize(doc, taskLive) {
		if err := s.save(doc); err != nil {
			s.logger.Warn("failed to persist normalized state", "error", err)
		}
	}
	return doc, nil
}

// normalize applies the stale-active rules: a running task is reclassified
// interrupted when its last update is older than StaleAfter, when the queue
// no longer knows its task id, or when it was recorded against different
// broker or engine endpoints.
func (s *Store) normalize(doc *Document, taskLive func(string) bool) bool {
	a := doc.Active
	if a == nil || a.Status != StatusRunning {
		return false
	}

	reason := ""
	switch {
	case a.BrokerURL != s.brokerURL || a.EngineURL != s.engineURL:
		reason = "environment mismatch"
	case s.ageOf(a) > StaleAfter:
		reason = "stale"
	case taskLive != nil && !taskLive(a.TaskID):
		reason = "task not live"
	}
	if reason == "" {
		return false
	}

	a.Status = StatusInterrupted
	a.Error = fmt.Sprintf("reclassified: %s", reason)
	a.UpdatedAt = s.timestamp()
	s.logger.Warn("reclassified stale active task",
		"task_id", a.TaskID, "reason", reason)
	return true
}

func (s *Store) ageOf(a *Active) time.Duration {
	stamp := a.UpdatedAt
	if stamp == "" {
		stamp = a.StartedAt
	}
	t, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return StaleAfter + time.Second
	}
	return s.now().Sub(t)
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}
