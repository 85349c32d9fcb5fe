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
	"time"

	"github.com/phoneinv/netspeed/internal/config"
	"github.com/phoneinv/netspeed/internal/metrics"
	"github.com/phoneinv/netspeed/internal/search"
	"github.com/phoneinv/netspeed/pkg/netspeed"
)

// snapshotFileField and snapshotDateField annotate archived rows with their
// provenance; they are stripped again on the way out.
const (
	snapshotFileField = "snapshot_file"
	snapshotDateField = "snapshot_date"
)

// AppendArchive copies a file's normalized rows into the archive index.
// Document ids are file:date:row#, so re-running an ingest overwrites the
// same documents instead of duplicating them.
func (e *Engine) AppendArchive(ctx context.Context, file, date string, rows []netspeed.Record) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := e.es.EnsureIndex(ctx, netspeed.ArchiveIndex); err != nil {
		return 0, fmt.Errorf("failed to ensure archive index: %w", err)
	}

	docs := make([]search.BulkDoc, 0, len(rows))
	for _, rec := range rows {
		src := make(map[string]string, len(rec)+2)
		for k, v := range rec {
			src[k] = v
		}
		src[snapshotFileField] = file
		src[snapshotDateField] = date
		docs = append(docs, search.BulkDoc{
			ID:     fmt.Sprintf("%s:%s:%s", file, date, rec.Get(netspeed.FieldRowNumber)),
			Source: src,
		})
	}

	report, err := e.es.Bulk(ctx, netspeed.ArchiveIndex, docs)
	if err != nil {
		return 0, fmt.Errorf("failed to archive rows for %s: %w", file, err)
	}
	if report.Failed > 0 {
		e.logger.Warn("some archive rows failed to index",
			"file", file, "date", date, "failed", report.Failed)
	}
	metrics.SnapshotWrites.WithLabelValues("archive").Inc()
	e.logger.Info("archive rows written", "file", file, "date", date, "rows", report.Indexed)
	return report.Indexed, nil
}

// PruneArchive deletes archive rows older than the retention floor. Missing
// archive index is a no-op.
func (e *Engine) PruneArchive(ctx context.Context) error {
	exists, err := e.es.IndexExists(ctx, netspeed.ArchiveIndex)
	if err != nil {
		return fmt.Errorf("failed to check archive index: %w", err)
	}
	if !exists {
		return nil
	}

	cutoff := retentionCutoff(e.now(), e.cfg.ArchiveRetentionYears)
	err = e.es.DeleteByQuery(ctx, netspeed.ArchiveIndex, map[string]any{
		"query": map[string]any{
			"range": map[string]any{
				snapshotDateField: map[string]any{"lt": cutoff},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to prune archive: %w", err)
	}
	e.logger.Info("archive pruned", "cutoff", cutoff)
	return nil
}

// retentionCutoff keeps the current year plus the configured number of whole
// calendar years before it.
func retentionCutoff(now time.Time, years int) string {
	return time.Date(now.Year()-years, 1, 1, 0, 0, 0, 0, time.UTC).Format(netspeed.DateFormat)
}

// ArchiveResult is one page of archived rows for a snapshot date.
type ArchiveResult struct {
	Date    string
	File    string
	Headers []string
	Rows    []netspeed.Record
	Total   int64
}

// ArchiveRows returns the archived rows of one snapshot date, optionally
// restricted to one source file, sorted by document id. A missing archive
// index yields an empty result, not an error.
func (e *Engine) ArchiveRows(ctx context.Context, date, file string, size int) (*ArchiveResult, error) {
	if size <= 0 || size > config.MaxArchiveResults {
		size = config.MaxArchiveResults
	}

	result := &ArchiveResult{Date: date, File: file, Headers: netspeed.DisplayHeaders(nil)}

	exists, err := e.es.IndexExists(ctx, netspeed.ArchiveIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to check archive index: %w", err)
	}
	if !exists {
		return result, nil
	}

	filters := []any{
		map[string]any{"term": map[string]any{snapshotDateField: date}},
	}
	if file != "" {
		filters = append(filters, map[string]any{"term": map[string]any{snapshotFileField: file}})
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.SearchTimeout)
	defer cancel()

	res, err := e.es.Query(ctx, []string{netspeed.ArchiveIndex}, map[string]any{
		"query": map[string]any{"bool": map[string]any{"filter": filters}},
		"sort":  []any{map[string]any{"_id": map[string]any{"order": "asc"}}},
		"size":  size,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query archive: %w", err)
	}

	rows := make([]netspeed.Record, 0, len(res.Hits))
	for _, hit := range res.Hits {
		rec := make(netspeed.Record, len(hit.Source))
		for k, v := range hit.Source {
			if k == snapshotFileField || k == snapshotDateField {
				continue
			}
			if s, ok := v.(string); ok {
				rec[k] = s
			} else {
				rec[k] = fmt.Sprint(v)
			}
		}
		rows = append(rows, rec)
	}

	result.Rows = rows
	result.Total = res.Total
	result.Headers = netspeed.DisplayHeaders(netspeed.CollectExtraHeaders(rows))
	return result, nil
}
