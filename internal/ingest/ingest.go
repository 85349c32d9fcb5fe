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

// Package ingest owns the write side of the service: it watches the data
// roots, serializes full rebuilds, persists ingest progress, archives
// superseded exports and keeps statistics snapshots current. One Controller
// runs per process; everything that mutates an index or the progress state
// goes through it.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/phoneinv/netspeed/internal/config"
	"github.com/phoneinv/netspeed/internal/files"
	"github.com/phoneinv/netspeed/internal/normalize"
	"github.com/phoneinv/netspeed/internal/queue"
	"github.com/phoneinv/netspeed/internal/search"
	"github.com/phoneinv/netspeed/internal/state"
	"github.com/phoneinv/netspeed/internal/stats"
	"github.com/phoneinv/netspeed/pkg/netspeed"
)

const (
	// changeCooldown coalesces filesystem events: one handled change per
	// window, everything else is debounced.
	changeCooldown = 30 * time.Second

	// safetyNetDelay is how long the deferred snapshot repair waits after
	// a handled change before re-running the detailed snapshot.
	safetyNetDelay = 10 * time.Second
)

// Indexer is the search-engine write surface the orchestrator drives.
type Indexer interface {
	IndexFile(ctx context.Context, path string) (*search.IndexReport, error)
	DeleteIndex(ctx context.Context, name string) error
	CleanupNetspeedIndices(ctx context.Context) (int, error)
}

// Snapshotter persists statistics snapshots and the long-term row archive.
type Snapshotter interface {
	WriteMinimal(ctx context.Context, snap *stats.Snapshot) error
	WriteDetailed(ctx context.Context, snap *stats.Snapshot) error
	AppendArchive(ctx context.Context, file, date string, rows []netspeed.Record) (int, error)
	PruneArchive(ctx context.Context) error
	InvalidateCache()
}

// Enqueuer hands work to the task queue. Enqueues are best-effort from the
// orchestrator's point of view; steps that must not be lost run inline.
type Enqueuer interface {
	EnqueueRebuild(ctx context.Context, taskID, trigger string) error
	EnqueueReindexCurrent(ctx context.Context, taskID string) error
	EnqueueMinimalSnapshot(ctx context.Context, file string) error
	EnqueueDetailedSnapshot(ctx context.Context, file string) error
	EnqueueBackup(ctx context.Context, path string) error
	TaskLive(id string) bool
}

var (
	_ Indexer     = (*search.Driver)(nil)
	_ Snapshotter = (*stats.Engine)(nil)
	_ Enqueuer    = (*queue.Client)(nil)
)

// Controller is the ingest orchestrator. It implements queue.Handler, so
// the same code paths serve queued tasks, watcher events and inline
// fallbacks when the broker is unreachable.
type Controller struct {
	cfg      *config.Config
	resolver *files.Resolver
	archiver *files.Archiver
	store    *state.Store
	norm     *normalize.Normalizer
	es       Indexer
	stats    Snapshotter
	queue    Enqueuer
	logger   *slog.Logger

	cooldown     time.Duration
	safetyDelay  time.Duration
	scanInterval time.Duration

	mu         sync.Mutex
	lastChange time.Time

	wg   sync.WaitGroup
	done chan struct{}
	now  func() time.Time // test seam
}

var _ queue.Handler = (*Controller)(nil)

// NewController wires the orchestrator. All collaborators are required.
func NewController(logger *slog.Logger, cfg *config.Config, resolver *files.Resolver, norm *normalize.Normalizer, store *state.Store, es Indexer, snaps Snapshotter, q Enqueuer) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:          cfg,
		resolver:     resolver,
		archiver:     files.NewArchiver(logger, cfg.ArchiveDir()),
		store:        store,
		norm:         norm,
		es:           es,
		stats:        snaps,
		queue:        q,
		logger:       logger.With("component", "ingest"),
		cooldown:     changeCooldown,
		safetyDelay:  safetyNetDelay,
		scanInterval: cfg.ScanInterval,
		done:         make(chan struct{}),
		now:          time.Now,
	}
}

// Close stops the background helpers spawned by handled changes and waits
// for them. An in-flight inline rebuild observes cancellation between files;
// its active record is reclassified on the next status read.
func (c *Controller) Close() {
	close(c.done)
	c.wg.Wait()
}

// HandleChange reacts to one observed change of the netspeed file family.
// The current export is archived and its snapshots refreshed before the
// index family is dropped and a rebuild is triggered. The rebuild goes to
// the queue when possible; snapshot freshness is guaranteed inline so a
// dead broker cannot lose it.
func (c *Controller) HandleChange(ctx context.Context, path, trigger string) {
	if !c.admitChange() {
		c.logger.Debug("change debounced", "path", path)
		return
	}
	c.logger.Info("handling file change", "path", path, "trigger", trigger)

	layout, err := c.resolver.Resolve()
	if err != nil {
		c.logger.Error("failed to enumerate data roots", "error", err)
		return
	}

	if layout.Current != nil {
		if _, err := c.archiver.Archive(layout.Current.Path); err != nil {
			c.logger.Warn("failed to archive current export", "error", err)
		}
	}

	if err := c.queue.EnqueueMinimalSnapshot(ctx, ""); err != nil {
		c.logger.Warn("failed to enqueue minimal snapshot", "error", err)
	}

	if layout.Current != nil {
		if snap, err := c.currentSnapshot(layout); err != nil {
			c.logger.Warn("failed to compute detailed snapshot", "error", err)
		} else if err := c.stats.WriteDetailed(ctx, snap); err != nil {
			c.logger.Warn("failed to write detailed snapshot", "error", err)
		}
		if err := c.queue.EnqueueBackup(ctx, layout.Current.Path); err != nil {
			c.logger.Warn("failed to enqueue backup copy", "error", err)
		}
	}

	c.stats.InvalidateCache()

	if n, err := c.es.CleanupNetspeedIndices(ctx); err != nil {
		c.logger.Warn("failed to delete netspeed indices", "error", err)
	} else {
		c.logger.Info("deleted netspeed indices", "count", n)
	}

	c.TriggerRebuild(ctx, trigger)
	c.scheduleSafetyNet(ctx)
}

// admitChange applies the cooldown window.
func (c *Controller) admitChange() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if now.Sub(c.lastChange) < c.cooldown {
		return false
	}
	c.lastChange = now
	return true
}

// scheduleSafetyNet re-runs the detailed snapshot after a grace period.
// Rotations tend to land as several rapid events inside one cooldown
// window; the deferred pass repairs whatever the inline writer missed.
func (c *Controller) scheduleSafetyNet(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		t := time.NewTimer(c.safetyDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-t.C:
		}
		if err := c.SnapshotDetailed(ctx, ""); err != nil {
			c.logger.Warn("safety-net snapshot failed", "error", err)
		}
		c.stats.InvalidateCache()
	}()
}

// SnapshotMinimal computes and persists the minimal snapshot for one file.
// The empty name means the current export.
func (c *Controller) SnapshotMinimal(ctx context.Context, file string) error {
	snap, err := c.computeSnapshot(file, false)
	if err != nil {
		return err
	}
	return c.stats.WriteMinimal(ctx, snap)
}

// SnapshotDetailed is SnapshotMinimal's detailed counterpart. The current
// export is keyed on today's date; named files keep their creation date.
func (c *Controller) SnapshotDetailed(ctx context.Context, file string) error {
	snap, err := c.computeSnapshot(file, true)
	if err != nil {
		return err
	}
	return c.stats.WriteDetailed(ctx, snap)
}

// BackupFile copies path to a sibling carrying the _bak marker, which makes
// the copy discoverable as a backup on the next enumeration.
func (c *Controller) BackupFile(ctx context.Context, path string) error {
	stamp := c.now().UTC().Format("20060102-150405")
	dst := filepath.Join(filepath.Dir(path), fmt.Sprintf("%s_bak_%s", filepath.Base(path), stamp))
	if err := copyFile(path, dst); err != nil {
		return fmt.Errorf("failed to back up %s: %w", path, err)
	}
	c.logger.Info("backup copy written", "src", path, "dst", dst)
	return nil
}

// RebuildStats recomputes statistics snapshots for every discovered file
// without touching the per-file indices. A non-empty directory overrides
// the configured roots.
func (c *Controller) RebuildStats(ctx context.Context, directory string) error {
	resolver := c.resolver
	if directory != "" {
		resolver = files.NewResolver(c.logger, []string{directory})
	}
	layout, err := resolver.Resolve()
	if err != nil {
		return fmt.Errorf("failed to enumerate data roots: %w", err)
	}

	order := layout.RebuildOrder()
	c.logger.Info("rebuilding statistics snapshots", "files", len(order))
	for _, f := range order {
		res, err := c.norm.File(f.Path)
		if err != nil {
			c.logger.Warn("skipping unreadable file", "file", f.Name, "error", err)
			continue
		}
		snap := stats.Compute(f.Name, netspeed.CreationDate(f.Name, f.ModTime), res.Rows)
		if err := c.stats.WriteMinimal(ctx, snap); err != nil {
			c.logger.Warn("failed to write minimal snapshot", "file", f.Name, "error", err)
		}
	}

	if layout.Current != nil {
		if snap, err := c.currentSnapshot(layout); err != nil {
			c.logger.Warn("failed to compute detailed snapshot", "error", err)
		} else if err := c.stats.WriteDetailed(ctx, snap); err != nil {
			c.logger.Warn("failed to write detailed snapshot", "error", err)
		}
	}

	c.stats.InvalidateCache()
	return nil
}

// computeSnapshot parses one discovered file into a snapshot. detailed
// selects today's date for the current export so the daily rollup always
// lands on the day the change was observed.
func (c *Controller) computeSnapshot(file string, detailed bool) (*stats.Snapshot, error) {
	layout, err := c.resolver.Resolve()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate data roots: %w", err)
	}

	var f *files.File
	isCurrent := false
	if file == "" {
		if layout.Current == nil {
			return nil, ErrNoCurrent
		}
		f = layout.Current
		isCurrent = true
	} else {
		got, ok := layout.Lookup(file)
		if !ok {
			return nil, fmt.Errorf("file %s not found in data roots", file)
		}
		f = got
		isCurrent = layout.Current != nil && layout.Current.Name == file
	}

	res, err := c.norm.File(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.Name, err)
	}

	date := netspeed.CreationDate(f.Name, f.ModTime)
	if detailed && isCurrent {
		date = c.today()
	}
	return stats.Compute(f.Name, date, res.Rows), nil
}

// currentSnapshot parses the current export and computes its detailed
// snapshot under today's date.
func (c *Controller) currentSnapshot(layout *files.Layout) (*stats.Snapshot, error) {
	if layout.Current == nil {
		return nil, ErrNoCurrent
	}
	res, err := c.norm.File(layout.Current.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", layout.Current.Name, err)
	}
	return stats.Compute(layout.Current.Name, c.today(), res.Rows), nil
}

func (c *Controller) today() string { return c.now().Format(netspeed.DateFormat) }

func (c *Controller) timestamp() string { return c.now().UTC().Format(time.RFC3339) }

// background derives a context for work that must outlive its trigger (an
// HTTP request, one watcher event) but still stop when the controller
// closes.
func (c *Controller) background(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
