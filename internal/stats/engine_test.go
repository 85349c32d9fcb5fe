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

package stats

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoneinv/netspeed/internal/config"
	"github.com/phoneinv/netspeed/internal/search"
	"github.com/phoneinv/netspeed/pkg/netspeed"
)

type queryCall struct {
	indices []string
	body    map[string]any
}

type deleteCall struct {
	index string
	body  map[string]any
}

// fakeBackend is an in-memory document store satisfying Backend.
type fakeBackend struct {
	mu      sync.Mutex
	indices map[string]bool
	docs    map[string]map[string]map[string]any
	queries []queryCall
	results []*search.QueryResult
	deletes []deleteCall
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		indices: make(map[string]bool),
		docs:    make(map[string]map[string]map[string]any),
	}
}

func (f *fakeBackend) EnsureIndex(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indices[name] = true
	if f.docs[name] == nil {
		f.docs[name] = make(map[string]map[string]any)
	}
	return nil
}

func (f *fakeBackend) IndexExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.indices[name], nil
}

func (f *fakeBackend) PutDoc(_ context.Context, index, id string, doc any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docs[index] == nil {
		f.docs[index] = make(map[string]map[string]any)
	}
	f.docs[index][id] = toDocMap(doc)
	return nil
}

func (f *fakeBackend) GetDoc(_ context.Context, index, id string) (map[string]any, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[index][id]
	return doc, ok, nil
}

func (f *fakeBackend) Bulk(_ context.Context, index string, docs []search.BulkDoc) (*search.BulkReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docs[index] == nil {
		f.docs[index] = make(map[string]map[string]any)
	}
	for _, d := range docs {
		f.docs[index][d.ID] = toDocMap(d.Source)
	}
	return &search.BulkReport{Indexed: len(docs)}, nil
}

func (f *fakeBackend) Query(_ context.Context, indices []string, body any) (*search.QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, queryCall{indices: indices, body: toDocMap(body)})
	if len(f.results) > 0 {
		res := f.results[0]
		f.results = f.results[1:]
		return res, nil
	}
	return &search.QueryResult{}, nil
}

func (f *fakeBackend) DeleteByQuery(_ context.Context, index string, body any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, deleteCall{index: index, body: toDocMap(body)})
	return nil
}

func toDocMap(doc any) map[string]any {
	switch m := doc.(type) {
	case map[string]any:
		return m
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out
	}
	return nil
}

func testEngine(t *testing.T) (*Engine, *fakeBackend) {
	t.Helper()
	fake := newFakeBackend()
	cfg := &config.Config{
		SearchTimeout:         5 * time.Second,
		ArchiveRetentionYears: 4,
	}
	e := NewEngine(nil, cfg, fake)
	e.now = func() time.Time {
		return time.Date(2025, 8, 14, 12, 0, 0, 0, time.UTC)
	}
	return e, fake
}

func kemSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	rows := []netspeed.Record{
		statRow("SER1AB234X", "AABBCC000001", "100000001", "CP-8861", "NUE01ASW0001", "810",
			netspeed.FieldKEM, "KEM"),
		statRow("SER2AB234X", "AABBCC000002", "100000002", "CP-7841", "ABX01ZSL4750P", "803"),
	}
	return Compute("netspeed.csv", "2025-08-14", rows)
}

func TestWriteMinimal(t *testing.T) {
	e, fake := testEngine(t)
	snap := kemSnapshot(t)

	require.NoError(t, e.WriteMinimal(context.Background(), snap))

	global := fake.docs[netspeed.StatsIndex]["netspeed.csv:2025-08-14"]
	require.NotNil(t, global)
	assert.Equal(t, 2, global["totalPhones"])
	assert.Equal(t, false, global["detailed"])

	// Only the location with KEM phones gets a document.
	assert.Contains(t, fake.docs[netspeed.StatsLocationIndex], "netspeed.csv:2025-08-14:NUE01")
	assert.NotContains(t, fake.docs[netspeed.StatsLocationIndex], "netspeed.csv:2025-08-14:ABX01")

	locDoc := fake.docs[netspeed.StatsLocationIndex]["netspeed.csv:2025-08-14:NUE01"]
	assert.Equal(t, 1, locDoc["phonesWithKEM"])
	assert.NotContains(t, locDoc, "vlanUsage")
}

func TestWriteDetailed(t *testing.T) {
	e, fake := testEngine(t)
	snap := kemSnapshot(t)

	require.NoError(t, e.WriteDetailed(context.Background(), snap))

	global := fake.docs[netspeed.StatsIndex]["netspeed.csv:2025-08-14"]
	require.NotNil(t, global)
	assert.Equal(t, true, global["detailed"])

	require.Contains(t, fake.docs[netspeed.StatsLocationIndex], "netspeed.csv:2025-08-14:ABX01")
	locDoc := fake.docs[netspeed.StatsLocationIndex]["netspeed.csv:2025-08-14:NUE01"]
	assert.Contains(t, locDoc, "vlanUsage")
	assert.Contains(t, locDoc, "switches")
}

func TestMinimalWriteNeverErasesDetailedData(t *testing.T) {
	e, fake := testEngine(t)
	snap := kemSnapshot(t)

	require.NoError(t, e.WriteDetailed(context.Background(), snap))
	require.NoError(t, e.WriteMinimal(context.Background(), snap))

	global := fake.docs[netspeed.StatsIndex]["netspeed.csv:2025-08-14"]
	assert.Equal(t, true, global["detailed"], "detailed flag must survive a later minimal write")

	locDoc := fake.docs[netspeed.StatsLocationIndex]["netspeed.csv:2025-08-14:NUE01"]
	assert.Contains(t, locDoc, "vlanUsage", "detailed fields must survive a later minimal write")
	assert.Contains(t, locDoc, "kemPhones")
}

func TestAppendArchive(t *testing.T) {
	e, fake := testEngine(t)
	rows := []netspeed.Record{
		{netspeed.FieldRowNumber: "1", netspeed.FieldMACAddress: "AABBCC000001"},
		{netspeed.FieldRowNumber: "2", netspeed.FieldMACAddress: "AABBCC000002"},
	}

	n, err := e.AppendArchive(context.Background(), "netspeed.csv", "2025-08-14", rows)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	archived := fake.docs[netspeed.ArchiveIndex]
	require.Contains(t, archived, "netspeed.csv:2025-08-14:1")
	assert.Equal(t, "netspeed.csv", archived["netspeed.csv:2025-08-14:1"]["snapshot_file"])
	assert.Equal(t, "2025-08-14", archived["netspeed.csv:2025-08-14:1"]["snapshot_date"])

	// Re-running the same append overwrites by id instead of duplicating.
	_, err = e.AppendArchive(context.Background(), "netspeed.csv", "2025-08-14", rows)
	require.NoError(t, err)
	assert.Len(t, fake.docs[netspeed.ArchiveIndex], 2)
}

func TestPruneArchive(t *testing.T) {
	e, fake := testEngine(t)

	// Missing index: nothing to do, no delete issued.
	require.NoError(t, e.PruneArchive(context.Background()))
	assert.Empty(t, fake.deletes)

	require.NoError(t, fake.EnsureIndex(context.Background(), netspeed.ArchiveIndex))
	require.NoError(t, e.PruneArchive(context.Background()))

	require.Len(t, fake.deletes, 1)
	assert.Equal(t, netspeed.ArchiveIndex, fake.deletes[0].index)
	rng := fake.deletes[0].body["query"].(map[string]any)["range"].(map[string]any)
	assert.Equal(t, map[string]any{"lt": "2021-01-01"}, rng["snapshot_date"])
}

func TestRetentionCutoff(t *testing.T) {
	now := time.Date(2025, 8, 14, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2021-01-01", retentionCutoff(now, 4))
	assert.Equal(t, "2024-01-01", retentionCutoff(now, 1))
}

func TestArchiveRowsMissingIndex(t *testing.T) {
	e, fake := testEngine(t)

	result, err := e.ArchiveRows(context.Background(), "2025-08-14", "", 100)
	require.NoError(t, err)
	assert.Empty(t, result.Rows)
	assert.NotEmpty(t, result.Headers)
	assert.Empty(t, fake.queries, "missing index must not be queried")
}

func TestArchiveRowsStripsAnnotations(t *testing.T) {
	e, fake := testEngine(t)
	require.NoError(t, fake.EnsureIndex(context.Background(), netspeed.ArchiveIndex))
	fake.results = []*search.QueryResult{{
		Total: 1,
		Hits: []search.Hit{{
			Index: netspeed.ArchiveIndex,
			ID:    "netspeed.csv:2025-08-14:1",
			Source: map[string]any{
				netspeed.FieldRowNumber:  "1",
				netspeed.FieldMACAddress: "AABBCC000001",
				"snapshot_file":          "netspeed.csv",
				"snapshot_date":          "2025-08-14",
			},
		}},
	}}

	result, err := e.ArchiveRows(context.Background(), "2025-08-14", "netspeed.csv", 100)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.NotContains(t, result.Rows[0], "snapshot_file")
	assert.NotContains(t, result.Rows[0], "snapshot_date")
	assert.Equal(t, "AABBCC000001", result.Rows[0].Get(netspeed.FieldMACAddress))

	require.Len(t, fake.queries, 1)
	assert.Equal(t, []string{netspeed.ArchiveIndex}, fake.queries[0].indices)
}

func TestCurrentSnapshotUsesCache(t *testing.T) {
	e, fake := testEngine(t)
	fake.results = []*search.QueryResult{{
		Total: 1,
		Hits: []search.Hit{{
			Index:  netspeed.StatsIndex,
			ID:     "netspeed.csv:2025-08-14",
			Source: map[string]any{"file": "netspeed.csv", "date": "2025-08-14", "totalPhones": 2},
		}},
	}}

	doc, found, err := e.CurrentSnapshot(context.Background(), "netspeed.csv")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, doc["totalPhones"])

	_, found, err = e.CurrentSnapshot(context.Background(), "netspeed.csv")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, fake.queries, 1, "second read must come from the cache")
}

func TestCurrentSnapshotMissing(t *testing.T) {
	e, _ := testEngine(t)

	_, found, err := e.CurrentSnapshot(context.Background(), "netspeed.csv")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGlobalTimelineThroughBackend(t *testing.T) {
	e, fake := testEngine(t)
	fake.results = []*search.QueryResult{{
		Total: 2,
		Hits: []search.Hit{
			{Source: map[string]any{"file": "netspeed.csv", "date": "2025-08-14", "totalPhones": float64(100)}},
			{Source: map[string]any{"file": "netspeed.csv", "date": "2025-08-16", "totalPhones": float64(105)}},
		},
	}}

	entries, err := e.GlobalTimeline(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 100, entries[1].TotalPhones)

	require.Len(t, fake.queries, 1)
	assert.Equal(t, []string{netspeed.StatsIndex}, fake.queries[0].indices)

	// Invalidation forces the next call back to the backend.
	e.InvalidateCache()
	_, err = e.GlobalTimeline(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, fake.queries, 2)
}

func TestLocationTimelineValidation(t *testing.T) {
	e, _ := testEngine(t)

	_, err := e.LocationTimeline(context.Background(), "AB", 0)
	assert.ErrorIs(t, err, ErrInvalidLocation)
	_, err = e.LocationTimeline(context.Background(), "ABCDEF", 0)
	assert.ErrorIs(t, err, ErrInvalidLocation)
}

func TestLocationTimelineQueryShape(t *testing.T) {
	e, fake := testEngine(t)

	_, err := e.LocationTimeline(context.Background(), "abx01", 0)
	require.NoError(t, err)
	require.Len(t, fake.queries, 1)
	filters := fake.queries[0].body["query"].(map[string]any)["bool"].(map[string]any)["filter"].([]any)
	assert.Equal(t, map[string]any{"term": map[string]any{"location": "ABX01"}}, filters[0])

	_, err = e.LocationTimeline(context.Background(), "abx", 0)
	require.NoError(t, err)
	require.Len(t, fake.queries, 2)
	filters = fake.queries[1].body["query"].(map[string]any)["bool"].(map[string]any)["filter"].([]any)
	assert.Equal(t, map[string]any{"prefix": map[string]any{"location": "ABX"}}, filters[0])
}
