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

package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/phoneinv/netspeed/internal/files"
	"github.com/phoneinv/netspeed/internal/metrics"
	"github.com/phoneinv/netspeed/internal/search"
	"github.com/phoneinv/netspeed/internal/state"
	"github.com/phoneinv/netspeed/internal/stats"
	"github.com/phoneinv/netspeed/pkg/netspeed"
)

var (
	// ErrBusy reports that another ingest task holds the write side.
	ErrBusy = errors.New("an ingest task is already running")

	// ErrNoCurrent reports that no current export was discovered.
	ErrNoCurrent = errors.New("no current export discovered")
)

// RebuildAll ingests every discovered file: history oldest first, then the
// current export, then backups. History going first guarantees that when
// the current index appears, every historical index already exists. The
// run claims the write side under taskID and aborts with ErrBusy while a
// different task is still running.
//
// RebuildAll deletes nothing on its own; callers that want a clean slate
// drop the netspeed_* family first.
func (c *Controller) RebuildAll(ctx context.Context, taskID, trigger string) error {
	layout, err := c.resolver.Resolve()
	if err != nil {
		return fmt.Errorf("failed to enumerate data roots: %w", err)
	}
	order := layout.RebuildOrder()

	if err := c.store.StartActive(taskID, len(order), c.queue.TaskLive); err != nil {
		metrics.Rebuilds.WithLabelValues("aborted").Inc()
		c.logger.Warn("rebuild aborted", "task_id", taskID, "error", err)
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	c.logger.Info("rebuild started",
		"task_id", taskID, "trigger", trigger, "files", len(order))

	// Pruned once per run so the appends below land in a retention-clean
	// archive.
	if err := c.stats.PruneArchive(ctx); err != nil {
		c.logger.Warn("failed to prune archive index", "error", err)
	}

	var currentReport *search.IndexReport
	indexed := 0
	for _, f := range order {
		if err := ctx.Err(); err != nil {
			return c.failRun(taskID, err)
		}

		index := netspeed.IndexNameForFile(f.Name)
		c.touchActive(taskID, func(a *state.Active) {
			a.CurrentFile = f.Name
			a.Index = index
		})

		report, err := c.es.IndexFile(ctx, f.Path)
		if err != nil {
			return c.failRun(taskID, fmt.Errorf("failed to index %s: %w", f.Name, err))
		}
		indexed += report.Indexed
		c.recordFile(taskID, f, report, indexed)

		snap := stats.Compute(report.File, report.Date, report.Rows)
		if err := c.stats.WriteMinimal(ctx, snap); err != nil {
			c.logger.Warn("failed to write minimal snapshot", "file", f.Name, "error", err)
		}
		if _, err := c.stats.AppendArchive(ctx, report.File, report.Date, report.Rows); err != nil {
			c.logger.Warn("failed to append archive rows", "file", f.Name, "error", err)
		}

		if layout.Current != nil && f.Name == layout.Current.Name {
			currentReport = report
		}
	}

	if currentReport != nil {
		snap := stats.Compute(currentReport.File, c.today(), currentReport.Rows)
		if err := c.stats.WriteDetailed(ctx, snap); err != nil {
			c.logger.Warn("failed to write detailed snapshot", "error", err)
		}
		if err := c.stats.WriteMinimal(ctx, snap); err != nil {
			c.logger.Warn("failed to write safety-net snapshot", "error", err)
		}
	}

	c.stats.InvalidateCache()
	if err := c.finishRun(taskID); err != nil {
		return err
	}
	metrics.Rebuilds.WithLabelValues("completed").Inc()
	c.logger.Info("rebuild completed",
		"task_id", taskID, "files", len(order), "documents", indexed)
	return nil
}

// ReindexCurrent re-ingests only the current export. Its index is dropped
// first so rows removed from the file disappear from search results.
func (c *Controller) ReindexCurrent(ctx context.Context, taskID string) error {
	layout, err := c.resolver.Resolve()
	if err != nil {
		return fmt.Errorf("failed to enumerate data roots: %w", err)
	}
	if layout.Current == nil {
		return ErrNoCurrent
	}
	f := *layout.Current

	if err := c.store.StartActive(taskID, 1, c.queue.TaskLive); err != nil {
		metrics.Rebuilds.WithLabelValues("aborted").Inc()
		c.logger.Warn("reindex aborted", "task_id", taskID, "error", err)
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	c.logger.Info("current-file reindex started", "task_id", taskID, "file", f.Name)

	index := netspeed.IndexNameForFile(f.Name)
	c.touchActive(taskID, func(a *state.Active) {
		a.CurrentFile = f.Name
		a.Index = index
	})
	if err := c.es.DeleteIndex(ctx, index); err != nil {
		c.logger.Warn("failed to drop current index", "index", index, "error", err)
	}

	report, err := c.es.IndexFile(ctx, f.Path)
	if err != nil {
		return c.failRun(taskID, fmt.Errorf("failed to index %s: %w", f.Name, err))
	}
	c.recordFile(taskID, f, report, report.Indexed)

	snap := stats.Compute(report.File, c.today(), report.Rows)
	if err := c.stats.WriteDetailed(ctx, snap); err != nil {
		c.logger.Warn("failed to write detailed snapshot", "error", err)
	}
	if err := c.stats.WriteMinimal(ctx, snap); err != nil {
		c.logger.Warn("failed to write safety-net snapshot", "error", err)
	}
	c.stats.InvalidateCache()

	if err := c.finishRun(taskID); err != nil {
		return err
	}
	metrics.Rebuilds.WithLabelValues("completed").Inc()
	c.logger.Info("current-file reindex completed",
		"task_id", taskID, "documents", report.Indexed)
	return nil
}

// TriggerRebuild enqueues a full rebuild and returns its task id. When the
// queue is unreachable the rebuild runs inline on a background goroutine;
// the returned id stays valid either way.
func (c *Controller) TriggerRebuild(ctx context.Context, trigger string) string {
	taskID := uuid.NewString()
	if err := c.queue.EnqueueRebuild(ctx, taskID, trigger); err != nil {
		c.logger.Warn("queue unreachable, rebuilding inline",
			"task_id", taskID, "error", err)
		runCtx, cancel := c.background(ctx)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer cancel()
			if err := c.RebuildAll(runCtx, taskID, trigger); err != nil {
				c.logger.Error("inline rebuild failed", "task_id", taskID, "error", err)
			}
		}()
		return taskID
	}
	c.logger.Info("rebuild enqueued", "task_id", taskID, "trigger", trigger)
	return taskID
}

// TriggerCleanRebuild drops the whole per-file index family first, then
// triggers indexing. includeHistorical selects between a full rebuild and a
// current-file reindex; with the latter, queries over deleted rotations fall
// back to the archive until the next full rebuild.
func (c *Controller) TriggerCleanRebuild(ctx context.Context, includeHistorical bool, trigger string) (string, error) {
	deleted, err := c.es.CleanupNetspeedIndices(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to clean up per-file indices: %w", err)
	}
	c.logger.Info("per-file indices dropped before rebuild",
		"deleted", deleted, "include_historical", includeHistorical, "trigger", trigger)
	if includeHistorical {
		return c.TriggerRebuild(ctx, trigger), nil
	}
	return c.TriggerReindexCurrent(ctx), nil
}

// TriggerReindexCurrent is TriggerRebuild's current-file-only counterpart.
func (c *Controller) TriggerReindexCurrent(ctx context.Context) string {
	taskID := uuid.NewString()
	if err := c.queue.EnqueueReindexCurrent(ctx, taskID); err != nil {
		c.logger.Warn("queue unreachable, reindexing inline",
			"task_id", taskID, "error", err)
		runCtx, cancel := c.background(ctx)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer cancel()
			if err := c.ReindexCurrent(runCtx, taskID); err != nil {
				c.logger.Error("inline reindex failed", "task_id", taskID, "error", err)
			}
		}()
	} else {
		c.logger.Info("current-file reindex enqueued", "task_id", taskID)
	}
	return taskID
}

// Status returns the normalized progress document: stale running tasks are
// reclassified before the caller sees them.
func (c *Controller) Status() (*state.Document, error) {
	return c.store.Normalized(c.queue.TaskLive)
}

// recordFile persists the per-file signature and rolls the running totals
// into the active record.
func (c *Controller) recordFile(taskID string, f files.File, report *search.IndexReport, indexed int) {
	ts := c.timestamp()
	if err := c.store.Update(func(doc *state.Document) {
		doc.Files[f.Name] = state.FileState{
			Size:      f.Size,
			MTime:     f.ModTime.Unix(),
			LineCount: report.LineCount,
			DocCount:  report.Indexed,
			IndexedAt: ts,
		}
		if a := doc.Active; a != nil && a.TaskID == taskID {
			a.DocumentsIndexed = indexed
			a.UpdatedAt = ts
		}
	}); err != nil {
		c.logger.Warn("failed to persist file state", "file", f.Name, "error", err)
	}
}

// touchActive updates the active record when this task still owns it.
func (c *Controller) touchActive(taskID string, fn func(*state.Active)) {
	if err := c.store.Update(func(doc *state.Document) {
		if a := doc.Active; a != nil && a.TaskID == taskID {
			fn(a)
			a.UpdatedAt = c.timestamp()
		}
	}); err != nil {
		c.logger.Warn("failed to persist active state", "error", err)
	}
}

// failRun records the terminal failure and surfaces err unchanged.
func (c *Controller) failRun(taskID string, err error) error {
	c.touchActive(taskID, func(a *state.Active) {
		a.Status = state.StatusFailed
		a.Error = err.Error()
	})
	metrics.Rebuilds.WithLabelValues("failed").Inc()
	c.logger.Error("rebuild failed", "task_id", taskID, "error", err)
	return err
}

// finishRun rolls up totals and marks the run completed.
func (c *Controller) finishRun(taskID string) error {
	return c.store.Update(func(doc *state.Document) {
		totals := state.Totals{Files: len(doc.Files)}
		for _, fs := range doc.Files {
			totals.Documents += fs.DocCount
		}
		doc.Totals = totals
		ts := c.timestamp()
		doc.LastSuccess = ts
		if a := doc.Active; a != nil && a.TaskID == taskID {
			a.Status = state.StatusCompleted
			a.UpdatedAt = ts
		}
	})
}
