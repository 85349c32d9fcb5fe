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
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/phoneinv/netspeed/internal/config"
	"github.com/phoneinv/netspeed/internal/search"
	"github.com/phoneinv/netspeed/pkg/netspeed"
)

// searchResponse is the stable wire shape of a search answer.
type searchResponse struct {
	Success bool       `json:"success"`
	Headers []string   `json:"headers"`
	Data    [][]string `json:"data"`
	TookMS  int64      `json:"took_ms"`
	Total   int64      `json:"total"`
	Error   string     `json:"error,omitempty"`
}

// searchOptions parses the shared search parameters. A blank query is
// rejected here so no engine round trip ever starts.
func searchOptions(r *http.Request) (search.Options, error) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("query"))
	if query == "" {
		return search.Options{}, search.ErrEmptyQuery
	}

	includeHistorical, err := queryBool(r, "include_historical")
	if err != nil {
		return search.Options{}, err
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		return search.Options{}, err
	}
	if limit < 0 {
		return search.Options{}, fmt.Errorf("invalid limit: %d", limit)
	}

	return search.Options{
		Query:             query,
		Field:             strings.TrimSpace(q.Get("field")),
		IncludeHistorical: includeHistorical,
		Limit:             limit,
	}, nil
}

// runSearch resolves the current layout and executes the query. Layout
// resolution failures degrade to a nil layout; the planner then falls back
// to index creation order.
func (s *Server) runSearch(ctx context.Context, opts search.Options) (*search.Result, error) {
	layout, err := s.svc.Files.Resolve()
	if err != nil {
		s.logger.Warn("failed to resolve data roots for search", "error", err)
		layout = nil
	}
	return s.svc.Search.Search(ctx, layout, opts)
}

// handleSearch answers /api/search/. Unavailable and timed-out engines keep
// their status codes; any other engine failure answers 200 with an empty,
// explicitly unsuccessful result so clients never see partial rows.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	opts, err := searchOptions(r)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.runSearch(r.Context(), opts)
	if err != nil {
		if errors.Is(err, search.ErrUnavailable) || errors.Is(err, search.ErrTimeout) {
			s.writeServiceError(w, err)
			return
		}
		s.logger.Error("search failed", "query", opts.Query, "error", err)
		s.writeJSON(w, searchResponse{
			Success: false,
			Headers: []string{},
			Data:    [][]string{},
			Error:   "search failed",
		})
		return
	}

	s.writeJSON(w, searchResponse{
		Success: true,
		Headers: res.Headers,
		Data:    tabulate(res.Headers, res.Rows),
		TookMS:  res.Took.Milliseconds(),
		Total:   res.Total,
	})
}

// handleIndexRebuild drops the per-file index family and triggers indexing.
// include_historical selects between a full rebuild and a current-only
// reindex after the cleanup.
func (s *Server) handleIndexRebuild(w http.ResponseWriter, r *http.Request) {
	includeHistorical := false
	if raw := r.FormValue("include_historical"); raw != "" {
		v, err := parseBoolParam("include_historical", raw)
		if err != nil {
			s.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		includeHistorical = v
	}

	id, err := s.svc.Ingest.TriggerCleanRebuild(r.Context(), includeHistorical, "api")
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{
		"task_id":            id,
		"include_historical": includeHistorical,
	})
}

// handleSearchExport streams a search result as an XLSX workbook. The limit
// is forced to the hard window so the download matches what the UI could
// page through at most.
func (s *Server) handleSearchExport(w http.ResponseWriter, r *http.Request) {
	opts, err := searchOptions(r)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if opts.Limit <= 0 || opts.Limit > config.MaxResultWindow {
		opts.Limit = config.MaxResultWindow
	}

	res, err := s.runSearch(r.Context(), opts)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	wb, err := buildWorkbook(res.Headers, res.Rows)
	if err != nil {
		s.writeServiceError(w, fmt.Errorf("failed to build workbook: %w", err))
		return
	}
	defer wb.Close()

	name := fmt.Sprintf("netspeed_search_%s.xlsx", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := wb.Write(w); err != nil {
		s.logger.Error("failed to stream workbook", "error", err)
	}
}

// buildWorkbook lays a result set out on a single sheet, headers first.
func buildWorkbook(headers []string, rows []netspeed.Record) (*excelize.File, error) {
	wb := excelize.NewFile()
	const sheet = "Results"
	idx, err := wb.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	wb.SetActiveSheet(idx)
	if err := wb.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	setRow := func(rowNum int, values []string) error {
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
			if err != nil {
				return err
			}
			if err := wb.SetCellStr(sheet, cell, v); err != nil {
				return err
			}
		}
		return nil
	}

	if err := setRow(1, headers); err != nil {
		return nil, err
	}
	for i, rec := range rows {
		row := make([]string, len(headers))
		for col, h := range headers {
			row[col] = rec.Get(h)
		}
		if err := setRow(i+2, row); err != nil {
			return nil, err
		}
	}
	return wb, nil
}

// tabulate projects records onto the header order, mirroring previews.
func tabulate(headers []string, rows []netspeed.Record) [][]string {
	data := make([][]string, 0, len(rows))
	for _, rec := range rows {
		row := make([]string, len(headers))
		for i, h := range headers {
			row[i] = rec.Get(h)
		}
		data = append(data, row)
	}
	return data
}

// parseBoolParam is strconv.ParseBool with a parameter-named error.
func parseBoolParam(name, raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "1", "t", "true", "yes", "on":
		return true, nil
	case "0", "f", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s: %q", name, raw)
	}
}
