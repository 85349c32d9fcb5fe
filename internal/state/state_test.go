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

package state

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBroker = "redis://localhost:6379/0"
	testEngine = "http://localhost:9200"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(testLogger(), t.TempDir(), testBroker, testEngine)
}

func TestPathDerivation(t *testing.T) {
	p1 := Path("var", testBroker, testEngine)
	p2 := Path("var", testBroker, testEngine)
	p3 := Path("var", testBroker, "http://other:9200")

	assert.Equal(t, p1, p2)
	assert.NotEqual(t, p1, p3, "different engines must not share a state file")

	assert.Equal(t, "index_state", filepath.Base(filepath.Dir(p1)))
	base := filepath.Base(p1)
	assert.True(t, strings.HasPrefix(base, ".index_state."), base)
	assert.True(t, strings.HasSuffix(base, ".json"), base)
}

func TestLoadMissingFileIsEmptyDocument(t *testing.T) {
	s := newTestStore(t)

	doc, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.NotNil(t, doc.Files)
	assert.Empty(t, doc.Files)
	assert.Nil(t, doc.Active)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	doc := newDocument()
	doc.Files["netspeed.csv"] = FileState{
		Size:      1024,
		MTime:     1700000000,
		LineCount: 480,
		DocCount:  478,
		IndexedAt: "2026-08-25T06:10:00Z",
	}
	doc.Totals = Totals{Files: 1, Documents: 478}
	doc.LastRun = "2026-08-25T06:10:00Z"
	doc.LastSuccess = "2026-08-25T06:10:00Z"

	require.NoError(t, s.Save(doc))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	// The temp file must not survive a successful save.
	_, err = os.Stat(s.FilePath() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLoadCorruptFileFails(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, os.MkdirAll(filepath.Dir(s.FilePath()), 0o755))
	require.NoError(t, os.WriteFile(s.FilePath(), []byte("{not json"), 0o644))

	_, err := s.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestUpdateReplacesCorruptDocument(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, os.MkdirAll(filepath.Dir(s.FilePath()), 0o755))
	require.NoError(t, os.WriteFile(s.FilePath(), []byte("{not json"), 0o644))

	err := s.Update(func(doc *Document) {
		doc.Files["netspeed.csv.1"] = FileState{Size: 7}
	})
	require.NoError(t, err)

	doc, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(7), doc.Files["netspeed.csv.1"].Size)
	assert.Len(t, doc.Files, 1)
}

func TestUpdateAccumulates(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Update(func(doc *Document) {
		doc.Files["a.csv"] = FileState{LineCount: 1}
	}))
	require.NoError(t, s.Update(func(doc *Document) {
		doc.Files["b.csv"] = FileState{LineCount: 2}
		doc.Totals.Files = 2
	}))

	doc, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, doc.Files, 2)
	assert.Equal(t, 2, doc.Totals.Files)
}

func TestStartActiveClaims(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.StartActive("task-a", 7, nil))

	doc, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, doc.Active)
	assert.Equal(t, "task-a", doc.Active.TaskID)
	assert.Equal(t, StatusRunning, doc.Active.Status)
	assert.Equal(t, 7, doc.Active.TotalFiles)
	assert.Equal(t, testBroker, doc.Active.BrokerURL)
	assert.Equal(t, testEngine, doc.Active.EngineURL)
	assert.NotEmpty(t, doc.Active.StartedAt)
	assert.Equal(t, doc.Active.StartedAt, doc.LastRun)
}

func TestStartActiveConflict(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.StartActive("task-a", 3, nil))

	// A live foreign task blocks the claim.
	err := s.StartActive("task-b", 3, func(string) bool { return true })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task-a")

	// Without a liveness probe the record is trusted as-is.
	err = s.StartActive("task-b", 3, nil)
	require.Error(t, err)
}

func TestStartActiveReclaimsDeadTask(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.StartActive("task-a", 3, nil))

	// The broker no longer knows task-a, so task-b may take over.
	require.NoError(t, s.StartActive("task-b", 5, func(string) bool { return false }))

	doc, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, doc.Active)
	assert.Equal(t, "task-b", doc.Active.TaskID)
	assert.Equal(t, StatusRunning, doc.Active.Status)
	assert.Equal(t, 5, doc.Active.TotalFiles)
}

func TestStartActiveSameTaskRestarts(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.StartActive("task-a", 3, nil))
	require.NoError(t, s.StartActive("task-a", 4, nil))

	doc, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "task-a", doc.Active.TaskID)
	assert.Equal(t, 4, doc.Active.TotalFiles)
}

func TestNormalizedReclassifiesStaleTask(t *testing.T) {
	s := newTestStore(t)

	started := time.Date(2026, 8, 25, 6, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return started }
	require.NoError(t, s.StartActive("task-a", 3, nil))

	// Just inside the window the task is still considered running.
	s.now = func() time.Time { return started.Add(StaleAfter - time.Minute) }
	doc, err := s.Normalized(nil)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, doc.Active.Status)

	s.now = func() time.Time { return started.Add(StaleAfter + time.Minute) }
	doc, err = s.Normalized(nil)
	require.NoError(t, err)
	require.NotNil(t, doc.Active)
	assert.Equal(t, StatusInterrupted, doc.Active.Status)
	assert.Contains(t, doc.Active.Error, "stale")

	// The reclassification is persisted, not just reported.
	doc, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, StatusInterrupted, doc.Active.Status)
}

func TestNormalizedReclassifiesDeadTask(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.StartActive("task-a", 3, nil))

	doc, err := s.Normalized(func(string) bool { return false })
	require.NoError(t, err)
	require.NotNil(t, doc.Active)
	assert.Equal(t, StatusInterrupted, doc.Active.Status)
	assert.Contains(t, doc.Active.Error, "task not live")
}

func TestNormalizedDetectsForeignEnvironment(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.StartActive("task-a", 3, nil))

	// Same document read against different endpoints, as after a state
	// directory was copied between environments.
	other := NewStore(testLogger(), t.TempDir(), "redis://elsewhere:6379/0", "http://elsewhere:9200")
	other.path = s.path

	doc, err := other.Normalized(nil)
	require.NoError(t, err)
	require.NotNil(t, doc.Active)
	assert.Equal(t, StatusInterrupted, doc.Active.Status)
	assert.Contains(t, doc.Active.Error, "environment mismatch")
}

func TestNormalizedLeavesFinishedTasksAlone(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Update(func(doc *Document) {
		doc.Active = &Active{
			TaskID:    "task-a",
			Status:    StatusCompleted,
			UpdatedAt: "2020-01-01T00:00:00Z",
			BrokerURL: "redis://elsewhere:6379/0",
			EngineURL: "http://elsewhere:9200",
		}
	}))

	doc, err := s.Normalized(func(string) bool { return false })
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, doc.Active.Status)
	assert.Empty(t, doc.Active.Error)
}

func TestNormalizedTreatsBadTimestampAsStale(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Update(func(doc *Document) {
		doc.Active = &Active{
			TaskID:    "task-a",
			Status:    StatusRunning,
			UpdatedAt: "not-a-timestamp",
			BrokerURL: testBroker,
			EngineURL: testEngine,
		}
	}))

	doc, err := s.Normalized(nil)
	require.NoError(t, err)
	assert.Equal(t, StatusInterrupted, doc.Active.Status)
}
