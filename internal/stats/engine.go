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
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/phoneinv/netspeed/internal/config"
	"github.com/phoneinv/netspeed/internal/metrics"
	"github.com/phoneinv/netspeed/internal/search"
	"github.com/phoneinv/netspeed/pkg/netspeed"
)

// Backend is the slice of the search driver the stats engine needs. It exists
// so engine tests can run against an in-memory document store.
type Backend interface {
	EnsureIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	PutDoc(ctx context.Context, index, id string, doc any) error
	GetDoc(ctx context.Context, index, id string) (map[string]any, bool, error)
	Bulk(ctx context.Context, index string, docs []search.BulkDoc) (*search.BulkReport, error)
	Query(ctx context.Context, indices []string, body any) (*search.QueryResult, error)
	DeleteByQuery(ctx context.Context, index string, body any) error
}

// Engine persists snapshots and answers statistics queries.
type Engine struct {
	es     Backend
	cfg    *config.Config
	logger *slog.Logger
	cache  *ttlCache
	now    func() time.Time
}

// NewEngine wires a stats engine onto a search backend.
func NewEngine(logger *slog.Logger, cfg *config.Config, es Backend) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		es:     es,
		cfg:    cfg,
		logger: logger.With("component", "stats"),
		cache:  newTTLCache(cacheTTL),
		now:    time.Now,
	}
}

// InvalidateCache drops all cached query results. The ingest pipeline calls
// this after every snapshot write so readers never see a full TTL of stale
// numbers.
func (e *Engine) InvalidateCache() {
	e.cache.clear()
}

// WriteMinimal persists the global snapshot document plus per-location
// documents for locations that have KEM phones. It is the cheap path used as
// an early write and as a safety net; existing documents are merged so a
// minimal write never erases details a detailed run already stored.
func (e *Engine) WriteMinimal(ctx context.Context, snap *Snapshot) error {
	if err := e.writeGlobal(ctx, snap, false); err != nil {
		return err
	}

	kemLocations := make([]*LocationDetail, 0)
	for _, detail := range snap.Details {
		if len(detail.KEMPhones) > 0 {
			kemLocations = append(kemLocations, detail)
		}
	}
	sort.Slice(kemLocations, func(i, j int) bool {
		return kemLocations[i].Location < kemLocations[j].Location
	})

	if len(kemLocations) > 0 {
		if err := e.es.EnsureIndex(ctx, netspeed.StatsLocationIndex); err != nil {
			return fmt.Errorf("failed to ensure location stats index: %w", err)
		}
		for _, detail := range kemLocations {
			id := snapshotDocID(snap.File, snap.Date) + ":" + detail.Location
			doc := minimalLocationDoc(snap, detail)
			if existing, found, err := e.es.GetDoc(ctx, netspeed.StatsLocationIndex, id); err == nil && found {
				doc = mergeSnapshotDoc(existing, doc)
			}
			if err := e.es.PutDoc(ctx, netspeed.StatsLocationIndex, id, doc); err != nil {
				return fmt.Errorf("failed to write location snapshot %s: %w", id, err)
			}
		}
	}

	metrics.SnapshotWrites.WithLabelValues("minimal").Inc()
	e.logger.Info("minimal snapshot written",
		"file", snap.File, "date", snap.Date,
		"phones", snap.TotalPhones, "kem_locations", len(kemLocations))
	return nil
}

// WriteDetailed persists the global snapshot document and the full
// per-location documents.
func (e *Engine) WriteDetailed(ctx context.Context, snap *Snapshot) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.writeGlobal(gctx, snap, true)
	})
	g.Go(func() error {
		if len(snap.Details) == 0 {
			return nil
		}
		if err := e.es.EnsureIndex(gctx, netspeed.StatsLocationIndex); err != nil {
			return fmt.Errorf("failed to ensure location stats index: %w", err)
		}
		docs := make([]search.BulkDoc, 0, len(snap.Details))
		for _, location := range sortedDetailKeys(snap.Details) {
			detail := snap.Details[location]
			docs = append(docs, search.BulkDoc{
				ID:     snapshotDocID(snap.File, snap.Date) + ":" + detail.Location,
				Source: locationDoc(snap, detail),
			})
		}
		report, err := e.es.Bulk(gctx, netspeed.StatsLocationIndex, docs)
		if err != nil {
			return fmt.Errorf("failed to write location snapshots: %w", err)
		}
		if report.Failed > 0 {
			e.logger.Warn("some location snapshots failed to index",
				"file", snap.File, "date", snap.Date, "failed", report.Failed)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	metrics.SnapshotWrites.WithLabelValues("detailed").Inc()
	e.logger.Info("detailed snapshot written",
		"file", snap.File, "date", snap.Date,
		"phones", snap.TotalPhones, "locations", len(snap.Details))
	return nil
}

// writeGlobal stores the (file, date) snapshot document, merging over any
// same-day document so fields the new run did not regenerate survive.
func (e *Engine) writeGlobal(ctx context.Context, snap *Snapshot, detailed bool) error {
	if err := e.es.EnsureIndex(ctx, netspeed.StatsIndex); err != nil {
		return fmt.Errorf("failed to ensure stats index: %w", err)
	}
	id := snapshotDocID(snap.File, snap.Date)
	doc := globalDoc(snap, detailed)
	if existing, found, err := e.es.GetDoc(ctx, netspeed.StatsIndex, id); err != nil {
		e.logger.Warn("failed to read existing snapshot", "id", id, "error", err)
	} else if found {
		doc = mergeSnapshotDoc(existing, doc)
	}
	if err := e.es.PutDoc(ctx, netspeed.StatsIndex, id, doc); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", id, err)
	}
	return nil
}

// CurrentSnapshot returns the most recent global snapshot document for a
// file. The second return is false when no snapshot exists yet.
func (e *Engine) CurrentSnapshot(ctx context.Context, file string) (map[string]any, bool, error) {
	key := "current|" + file
	if cached, ok := e.cache.get(key); ok {
		return cached.(map[string]any), true, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.SearchTimeout)
	defer cancel()

	res, err := e.es.Query(ctx, []string{netspeed.StatsIndex}, map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"file": file}},
				},
			},
		},
		"sort": []any{map[string]any{"date": map[string]any{"order": "desc"}}},
		"size": 1,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read snapshot for %s: %w", file, err)
	}
	if len(res.Hits) == 0 {
		return nil, false, nil
	}
	doc := res.Hits[0].Source
	e.cache.put(key, doc)
	return doc, true, nil
}

// LocationDetails returns the per-location documents of one snapshot, sorted
// by location code.
func (e *Engine) LocationDetails(ctx context.Context, file, date string) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.SearchTimeout)
	defer cancel()

	res, err := e.es.Query(ctx, []string{netspeed.StatsLocationIndex}, map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"file": file}},
					map[string]any{"term": map[string]any{"date": date}},
				},
			},
		},
		"sort": []any{map[string]any{"location": map[string]any{"order": "asc"}}},
		"size": snapshotFetchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read location snapshots for %s: %w", file, err)
	}
	out := make([]map[string]any, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, hit.Source)
	}
	return out, nil
}

func snapshotDocID(file, date string) string {
	return file + ":" + date
}

func globalDoc(snap *Snapshot, detailed bool) map[string]any {
	return map[string]any{
		"file":                snap.File,
		"date":                snap.Date,
		"totalPhones":         snap.TotalPhones,
		"totalSwitches":       snap.TotalSwitches,
		"phonesWithKEM":       snap.PhonesWithKEM,
		"totalKEMs":           snap.TotalKEMs,
		"locations":           snap.Locations,
		"cityCodes":           snap.CityCodes,
		"phonesByModel":       snap.PhonesByModel,
		"phonesByModelJustiz": snap.PhonesByModelJustiz,
		"phonesByModelJVA":    snap.PhonesByModelJVA,
		"totalPhonesJustiz":   snap.TotalPhonesJustiz,
		"totalPhonesJVA":      snap.TotalPhonesJVA,
		"totalSwitchesJustiz": snap.TotalSwitchesJustiz,
		"totalSwitchesJVA":    snap.TotalSwitchesJVA,
		"detailed":            detailed,
	}
}

func locationDoc(snap *Snapshot, detail *LocationDetail) map[string]any {
	return map[string]any{
		"file":                snap.File,
		"date":                snap.Date,
		"location":            detail.Location,
		"city":                detail.City,
		"totalPhones":         detail.TotalPhones,
		"totalSwitches":       detail.TotalSwitches,
		"phonesWithKEM":       detail.PhonesWithKEM,
		"phonesByModel":       detail.PhonesByModel,
		"phonesByModelJustiz": detail.PhonesByModelJustiz,
		"phonesByModelJVA":    detail.PhonesByModelJVA,
		"vlanUsage":           detail.VLANUsage,
		"switches":            detail.Switches,
		"kemPhones":           detail.KEMPhones,
	}
}

func minimalLocationDoc(snap *Snapshot, detail *LocationDetail) map[string]any {
	return map[string]any{
		"file":          snap.File,
		"date":          snap.Date,
		"location":      detail.Location,
		"city":          detail.City,
		"phonesWithKEM": detail.PhonesWithKEM,
		"kemPhones":     detail.KEMPhones,
	}
}

// mergeSnapshotDoc layers a freshly computed document over a stored one.
// Fields the new document carries win; fields only the stored document has
// survive. The detailed flag stays true once any detailed run stored it,
// because the per-location documents it promises are still there.
func mergeSnapshotDoc(existing, doc map[string]any) map[string]any {
	for k, v := range existing {
		if _, ok := doc[k]; !ok {
			doc[k] = v
		}
	}
	if was, _ := existing["detailed"].(bool); was {
		doc["detailed"] = true
	}
	return doc
}

func sortedDetailKeys(details map[string]*LocationDetail) []string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
