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
	"time"
)

// RunScan periodically compares the discovered files against the saved
// ingest signatures and handles the first mismatch. It is the safety net
// behind the watcher: NFS mounts and files appearing in directories created
// after startup produce no inotify events.
func (c *Controller) RunScan(ctx context.Context) error {
	ticker := time.NewTicker(c.scanInterval)
	defer ticker.Stop()
	c.logger.Info("periodic scan started", "interval", c.scanInterval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case <-ticker.C:
			c.ScanOnce(ctx)
		}
	}
}

// ScanOnce runs one signature comparison and handles a detected change.
// It reports whether anything was handled.
func (c *Controller) ScanOnce(ctx context.Context) bool {
	path, ok := c.detectChange()
	if !ok {
		return false
	}
	c.logger.Info("scan detected change", "path", path)
	c.HandleChange(ctx, path, "scan")
	return true
}

// detectChange reports the first discovered file whose size or mtime
// differs from its saved ingest signature. Unseen files always count as
// changed.
func (c *Controller) detectChange() (string, bool) {
	layout, err := c.resolver.Resolve()
	if err != nil {
		c.logger.Warn("scan failed to enumerate data roots", "error", err)
		return "", false
	}
	doc, err := c.store.Load()
	if err != nil {
		c.logger.Warn("scan failed to load ingest state", "error", err)
		return "", false
	}

	for _, f := range layout.RebuildOrder() {
		saved, ok := doc.Files[f.Name]
		if !ok || saved.Size != f.Size || saved.MTime != f.ModTime.Unix() {
			return f.Path, true
		}
	}
	return "", false
}
