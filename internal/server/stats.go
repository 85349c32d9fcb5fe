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

package server

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/phoneinv/netspeed/internal/search"
	"github.com/phoneinv/netspeed/internal/stats"
	"github.com/phoneinv/netspeed/pkg/netspeed"
)

// handleStatsCurrent answers with the most recent snapshot of one file. A
// missing snapshot is not an error: the client is told to reindex. When the
// snapshot is detailed, the per-location documents ride along.
func (s *Server) handleStatsCurrent(w http.ResponseWriter, r *http.Request) {
	filename := strings.TrimSpace(r.URL.Query().Get("filename"))
	if filename == "" {
		filename = s.currentFileName()
	}

	ctx := r.Context()
	doc, found, err := s.svc.Stats.CurrentSnapshot(ctx, filename)
	if err != nil {
		s.writeSnapshotReadError(w, err, map[string]any{"success": true, "needsReindex": true})
		return
	}
	if !found {
		s.writeJSON(w, map[string]any{"success": true, "needsReindex": true})
		return
	}

	out := map[string]any{"success": true}
	for k, v := range doc {
		out[k] = v
	}
	if detailed, _ := doc["detailed"].(bool); detailed {
		date, _ := doc["date"].(string)
		details, err := s.svc.Stats.LocationDetails(ctx, filename, date)
		if err != nil {
			s.logger.Warn("failed to read location details", "file", filename, "error", err)
		} else {
			out["details"] = details
		}
	}
	s.writeJSON(w, out)
}

// handleTimeline answers the global carry-forward series. limit=0 returns
// the whole window.
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		s.writeError(w, fmt.Sprintf("invalid limit: %q", r.URL.Query().Get("limit")), http.StatusBadRequest)
		return
	}

	entries, err := s.svc.Stats.GlobalTimeline(r.Context(), limit)
	if err != nil {
		s.writeSnapshotReadError(w, err, emptyTimeline())
		return
	}
	s.writeJSON(w, timelineResponse(entries))
}

// handleTimelineByLocation answers one location's (or one city prefix's)
// series.
func (s *Server) handleTimelineByLocation(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		s.writeError(w, fmt.Sprintf("invalid limit: %q", r.URL.Query().Get("limit")), http.StatusBadRequest)
		return
	}

	q := r.URL.Query().Get("q")
	entries, err := s.svc.Stats.LocationTimeline(r.Context(), q, limit)
	if err != nil {
		if errors.Is(err, stats.ErrInvalidLocation) {
			s.writeServiceError(w, err)
			return
		}
		s.writeSnapshotReadError(w, err, emptyTimeline())
		return
	}

	resp := timelineResponse(entries)
	resp["q"] = strings.ToUpper(strings.TrimSpace(q))
	s.writeJSON(w, resp)
}

// handleTopLocations ranks cities or locations by phone count and returns
// their aligned daily series. City keys are annotated with display names
// from the city map.
func (s *Server) handleTopLocations(w http.ResponseWriter, r *http.Request) {
	opts, err := topOptions(r)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.svc.Stats.TopLocations(r.Context(), opts)
	if err != nil {
		s.writeSnapshotReadError(w, err, map[string]any{
			"success": true, "dates": []string{}, "keys": []string{},
		})
		return
	}

	labels := make(map[string]string, len(res.Keys))
	for _, key := range res.Keys {
		labels[key] = s.svc.Cities.Lookup(cityOf(key))
	}

	out := map[string]any{
		"success": true,
		"dates":   res.Dates,
		"keys":    res.Keys,
		"labels":  labels,
	}
	if res.Series != nil {
		out["series"] = res.Series
	}
	if res.Values != nil {
		out["values"] = res.Values
	}
	s.writeJSON(w, out)
}

// topOptions parses and validates the top-N parameters.
func topOptions(r *http.Request) (stats.TopOptions, error) {
	count, err := queryInt(r, "count", 0)
	if err != nil || count < 0 {
		return stats.TopOptions{}, fmt.Errorf("invalid count: %q", r.URL.Query().Get("count"))
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		return stats.TopOptions{}, fmt.Errorf("invalid limit: %q", r.URL.Query().Get("limit"))
	}

	q := r.URL.Query()

	mode := q.Get("mode")
	switch mode {
	case "", "per_key", "aggregate":
	default:
		return stats.TopOptions{}, fmt.Errorf("invalid mode: %q", mode)
	}

	group := q.Get("group")
	switch group {
	case "", "city", "location":
	default:
		return stats.TopOptions{}, fmt.Errorf("invalid group: %q", group)
	}

	fromMMDD := q.Get("from_mmdd")
	if fromMMDD != "" {
		if _, err := time.Parse("01-02", fromMMDD); err != nil {
			return stats.TopOptions{}, fmt.Errorf("invalid from_mmdd: %q", fromMMDD)
		}
	}

	var extras []string
	for _, raw := range q["extra"] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
				extras = append(extras, part)
			}
		}
	}

	return stats.TopOptions{
		Count:    count,
		Extras:   extras,
		Limit:    limit,
		Mode:     mode,
		Group:    group,
		FromMMDD: fromMMDD,
	}, nil
}

// handleStatsRebuild enqueues a stats-only rebuild. Concurrent requests
// collapse onto one queued task; a dead broker is a real error here because
// nothing else would run the rebuild.
func (s *Server) handleStatsRebuild(w http.ResponseWriter, r *http.Request) {
	directory := strings.TrimSpace(r.FormValue("directory"))

	id, err := s.svc.Broker.EnqueueStatsRebuild(r.Context(), directory)
	if err != nil {
		s.writeError(w, fmt.Sprintf("failed to enqueue stats rebuild: %v", err), http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, map[string]any{"success": true, "task_id": id})
}

// handleStatsArchive returns the archived rows of one snapshot date.
func (s *Server) handleStatsArchive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := q.Get("date")
	if _, err := time.Parse(netspeed.DateFormat, date); err != nil {
		s.writeError(w, fmt.Sprintf("invalid date: %q", date), http.StatusBadRequest)
		return
	}
	size, err := queryInt(r, "size", 0)
	if err != nil || size < 0 {
		s.writeError(w, fmt.Sprintf("invalid size: %q", q.Get("size")), http.StatusBadRequest)
		return
	}

	res, err := s.svc.Stats.ArchiveRows(r.Context(), date, q.Get("file"), size)
	if err != nil {
		s.writeSnapshotReadError(w, err, map[string]any{
			"success": true, "date": date, "headers": []string{}, "data": [][]string{}, "total": 0,
		})
		return
	}

	s.writeJSON(w, map[string]any{
		"success": true,
		"date":    res.Date,
		"file":    res.File,
		"headers": res.Headers,
		"data":    tabulate(res.Headers, res.Rows),
		"total":   res.Total,
	})
}

// handleStatsCities lists the city codes of the latest snapshot with their
// display names.
func (s *Server) handleStatsCities(w http.ResponseWriter, r *http.Request) {
	codes, err := s.svc.Stats.Cities(r.Context())
	if err != nil {
		s.writeSnapshotReadError(w, err, map[string]any{"success": true, "cities": []any{}})
		return
	}

	type city struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	cities := make([]city, 0, len(codes))
	for _, code := range codes {
		cities = append(cities, city{Code: code, Name: s.svc.Cities.Lookup(code)})
	}
	sort.Slice(cities, func(i, j int) bool { return cities[i].Code < cities[j].Code })
	s.writeJSON(w, map[string]any{"success": true, "cities": cities})
}

// writeSnapshotReadError applies the snapshot-read policy: unavailable and
// timeout keep their status codes, anything else degrades to the given
// empty-but-successful body so a hiccup never breaks a dashboard.
func (s *Server) writeSnapshotReadError(w http.ResponseWriter, err error, empty map[string]any) {
	if errors.Is(err, search.ErrUnavailable) || errors.Is(err, search.ErrTimeout) {
		s.writeServiceError(w, err)
		return
	}
	s.logger.Error("snapshot read failed", "error", err)
	s.writeJSON(w, empty)
}

// currentFileName resolves the name of the current export, falling back to
// the canonical name when discovery fails or nothing is on disk.
func (s *Server) currentFileName() string {
	layout, err := s.svc.Files.Resolve()
	if err == nil && layout.Current != nil {
		return layout.Current.Name
	}
	return netspeed.CurrentLegacyName
}

func timelineResponse(entries []stats.TimelineEntry) map[string]any {
	if entries == nil {
		entries = []stats.TimelineEntry{}
	}
	return map[string]any{"success": true, "timeline": entries}
}

func emptyTimeline() map[string]any {
	return map[string]any{"success": true, "timeline": []stats.TimelineEntry{}}
}

// cityOf reduces a ranking key to its city prefix. Location keys carry the
// city in their first three characters; city keys pass through.
func cityOf(key string) string {
	if len(key) >= 3 {
		return key[:3]
	}
	return key
}
