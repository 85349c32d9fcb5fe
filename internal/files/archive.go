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

package files

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Archiver keeps a verbatim, timestamped copy of every current export that
// passes through an ingest.
type Archiver struct {
	dir    string
	logger *slog.Logger

	now func() time.Time // test seam
}

// NewArchiver creates an archiver writing into dir, usually
// Config.ArchiveDir().
func NewArchiver(logger *slog.Logger, dir string) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		dir:    dir,
		logger: logger.With("component", "archive"),
		now:    time.Now,
	}
}

// Archive copies src to <dir>/netspeed_<UTC-stamp>.csv and returns the
// destination path. The copy is byte-identical to the source.
func (a *Archiver) Archive(src string) (string, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open source file: %w", err)
	}
	defer func() {
		if err := in.Close(); err != nil {
			a.logger.Error("failed to close source file", "path", src, "error", err)
		}
	}()

	dst := filepath.Join(a.dir, fmt.Sprintf("netspeed_%s.csv", archiveStamp(a.now().UTC())))
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create archive file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("failed to copy to archive: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to sync archive file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive file: %w", err)
	}

	a.logger.Info("archived current export", "src", src, "dst", dst)
	return dst, nil
}

// archiveStamp renders t as YYYY-MM-DDTHHMMSSffffffZ: date, compact time,
// microseconds, no separators inside the time portion.
func archiveStamp(t time.Time) string {
	return fmt.Sprintf("%s%06dZ", t.Format("2006-01-02T150405"), t.Nanosecond()/1000)
}
