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
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/phoneinv/netspeed/internal/files"
	"github.com/phoneinv/netspeed/internal/metrics"
	"github.com/phoneinv/netspeed/pkg/netspeed"
)

// Watcher surfaces netspeed file events from the data roots and hands them
// to the controller. Events on names outside the netspeed family are
// dropped before they reach any work.
type Watcher struct {
	fsw    *fsnotify.Watcher
	ctrl   *Controller
	logger *slog.Logger
	dirs   []string
}

// NewWatcher registers every existing candidate directory beneath the given
// roots. Directories created after startup are covered by the periodic
// scan, not by the watcher.
func NewWatcher(logger *slog.Logger, roots []string, ctrl *Controller) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}

	w := &Watcher{fsw: fsw, ctrl: ctrl, logger: logger.With("component", "watcher")}
	seen := make(map[string]bool)
	for _, root := range roots {
		for _, dir := range files.CandidateDirs(root) {
			canonical, err := filepath.EvalSymlinks(dir)
			if err != nil || seen[canonical] {
				continue
			}
			seen[canonical] = true
			if err := fsw.Add(canonical); err != nil {
				w.logger.Debug("skipping unwatchable directory", "dir", canonical, "error", err)
				continue
			}
			w.dirs = append(w.dirs, canonical)
		}
	}
	if len(w.dirs) == 0 {
		w.logger.Warn("no watchable data directories", "roots", roots)
	}
	return w, nil
}

// Run pumps events until the context is cancelled or the watcher is
// closed. The handler executes on this goroutine; the cooldown inside the
// controller keeps a burst of events from stacking rebuilds.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watching for file changes", "dirs", w.dirs)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !relevantEvent(ev) {
				continue
			}
			metrics.WatcherEvents.Inc()
			w.logger.Info("file event", "op", ev.Op.String(), "path", ev.Name)
			w.ctrl.HandleChange(ctx, ev.Name, "watcher")
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// Close stops the underlying watcher; a running Run drains and returns.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// relevantEvent accepts create, write and rename events on names inside the
// netspeed family. Chmod and remove never trigger work.
func relevantEvent(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return false
	}
	return netspeed.IsNetspeedName(filepath.Base(ev.Name))
}
