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

package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/phoneinv/netspeed/internal/config"
	"github.com/phoneinv/netspeed/internal/files"
	"github.com/phoneinv/netspeed/internal/metrics"
	"github.com/phoneinv/netspeed/pkg/netspeed"
)

// ErrEmptyQuery rejects blank searches before any engine round trip.
var ErrEmptyQuery = errors.New("empty query")

// Options are the caller-facing search parameters.
type Options struct {
	Query             string
	Field             string
	IncludeHistorical bool
	// Limit caps the result rows; 0 applies the configured default. Values
	// above the hard window are clamped.
	Limit int
}

// Result is a finished search: stable headers, ordered rows and the engine
// round-trip time.
type Result struct {
	Intent  Intent
	Headers []string
	Rows    []netspeed.Record
	Took    time.Duration
	Total   int64
}

// Search plans, executes and post-processes one query. layout supplies the
// preferred-file order; it may be nil when no files are on disk yet. Any
// engine failure surfaces as an error so the API layer can map it; no
// partial results are returned.
func (d *Driver) Search(ctx context.Context, layout *files.Layout, opts Options) (*Result, error) {
	if strings.TrimSpace(opts.Query) == "" {
		return nil, ErrEmptyQuery
	}

	started := time.Now()
	intent := DetectIntent(opts.Query, opts.Field)
	p := buildPlan(intent, opts.Query, opts.Field)
	limit := d.resolveLimit(opts.Limit)

	ctx, cancel := context.WithTimeout(ctx, d.cfg.SearchTimeout)
	defer cancel()

	sel, err := d.SelectSearchIndices(ctx, opts.IncludeHistorical || p.forceAllIndices, layout)
	if err != nil {
		return nil, err
	}
	archiveOnly := sel.Archive && len(sel.Indices) == 1
	if archiveOnly && limit > config.MaxArchiveResults {
		limit = config.MaxArchiveResults
	}

	var preferred []string
	if layout != nil {
		preferred = layout.PreferredOrder()
	}

	var rows []resultRow
	var took int64
	var total int64
	if p.perFileSeeds && opts.IncludeHistorical && len(sel.PerFile) > 0 {
		rows, took, total, err = d.searchSeeds(ctx, p, sel, preferred)
	} else {
		body := p.buildBody(preferred, limit)
		var qr *QueryResult
		qr, err = d.Query(ctx, sel.Indices, body)
		if qr != nil {
			rows, took, total = hitsToRows(qr.Hits), qr.Took, qr.Total
		}
	}
	if err != nil {
		return nil, err
	}

	records := postProcess(p, opts.IncludeHistorical, rows, limit)
	headers := netspeed.DisplayHeaders(netspeed.CollectExtraHeaders(records))

	elapsed := time.Since(started)
	metrics.SearchDuration.WithLabelValues(intent.String()).Observe(elapsed.Seconds())
	d.logger.Debug("search finished",
		"intent", intent.String(), "query", opts.Query,
		"indices", len(sel.Indices), "rows", len(records), "took", elapsed)

	return &Result{
		Intent:  intent,
		Headers: headers,
		Rows:    records,
		Took:    time.Duration(took) * time.Millisecond,
		Total:   total,
	}, nil
}

// searchSeeds runs one small query per per-file index so every file on disk
// yields its best row, then orders the merged set by file preference. Exact
// phone and serial lookups in historical mode use this to guarantee one row
// per file regardless of how many rows any single file matched.
func (d *Driver) searchSeeds(ctx context.Context, p *plan, sel *IndexSelection, preferred []string) ([]resultRow, int64, int64, error) {
	var rows []resultRow
	var took int64
	var total int64
	body := p.buildBody(preferred, 3)
	for _, index := range sel.PerFile {
		qr, err := d.Query(ctx, []string{index}, body)
		if err != nil {
			return nil, 0, 0, err
		}
		took += qr.Took
		total += qr.Total
		rows = append(rows, hitsToRows(qr.Hits)...)
	}
	sortByPreferred(rows, preferred)
	return rows, took, total, nil
}

// resolveLimit applies the configured default and the hard window cap.
func (d *Driver) resolveLimit(requested int) int {
	limit := requested
	if limit <= 0 {
		limit = d.cfg.SearchMaxResults
	}
	if limit > config.MaxResultWindow {
		limit = config.MaxResultWindow
	}
	return limit
}
