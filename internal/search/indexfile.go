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
	"fmt"
	"path/filepath"

	"github.com/phoneinv/netspeed/internal/metrics"
	"github.com/phoneinv/netspeed/internal/normalize"
	"github.com/phoneinv/netspeed/pkg/netspeed"
)

// IndexReport is the outcome of indexing one file. Rows carries the deduped
// row set so callers can feed statistics and the archive without re-parsing.
type IndexReport struct {
	File      string
	Index     string
	Date      string
	LineCount int
	TotalRows int
	Indexed   int
	Failed    int
	Rows      []netspeed.Record
}

// IndexFile normalizes one CSV file and bulk-loads it into its per-file
// index. The index is created on demand; row order is preserved and row
// ordinals double as document ids so a re-run overwrites instead of
// duplicating.
func (d *Driver) IndexFile(ctx context.Context, path string) (*IndexReport, error) {
	name := filepath.Base(path)
	parsed, err := d.norm.File(path)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize %s: %w", name, err)
	}
	metrics.ParseFailures.Add(float64(parsed.Stats.FailedRows))

	rows := normalize.Dedupe(parsed.Rows)
	report := &IndexReport{
		File:      name,
		Index:     netspeed.IndexNameForFile(name),
		LineCount: parsed.Stats.TotalRows,
		TotalRows: len(rows),
		Rows:      rows,
	}
	if len(rows) > 0 {
		report.Date = rows[0].Get(netspeed.FieldCreationDate)
	}

	if err := d.EnsureIndex(ctx, report.Index); err != nil {
		return report, err
	}

	docs := make([]BulkDoc, 0, len(rows))
	for _, rec := range rows {
		docs = append(docs, BulkDoc{ID: rec.Get(netspeed.FieldRowNumber), Source: rec})
	}
	bulk, err := d.Bulk(ctx, report.Index, docs)
	if err != nil {
		return report, fmt.Errorf("failed to bulk-index %s: %w", name, err)
	}
	report.Indexed = bulk.Indexed
	report.Failed = bulk.Failed

	d.logger.Info("indexed file",
		"file", name, "index", report.Index,
		"rows", report.TotalRows, "indexed", report.Indexed, "failed", report.Failed)
	return report, nil
}
