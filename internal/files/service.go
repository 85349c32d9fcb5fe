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
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/phoneinv/netspeed/internal/normalize"
	"github.com/phoneinv/netspeed/pkg/netspeed"
)

// ErrNotFound marks a request for a file the resolver cannot see.
var ErrNotFound = errors.New("file not found")

// Entry is one row of the file listing.
type Entry struct {
	Name      string `json:"name"`
	IsCurrent bool   `json:"is_current"`
	Date      string `json:"date"`
	MTime     int64  `json:"mtime"`
	DateTime  string `json:"datetime"`
	Time      string `json:"time"`
	LineCount int    `json:"line_count"`
}

// Info describes the current export, falling back to the newest rotation
// when no current file exists.
type Info struct {
	Success       bool   `json:"success"`
	Date          string `json:"date"`
	LineCount     int    `json:"line_count"`
	LastModified  string `json:"last_modified"`
	UsingFallback bool   `json:"using_fallback"`
	FallbackFile  string `json:"fallback_file,omitempty"`
}

// Preview is a bounded slice of one file's normalized rows.
type Preview struct {
	Success       bool       `json:"success"`
	Headers       []string   `json:"headers"`
	Data          [][]string `json:"data"`
	CreationDate  string     `json:"creation_date"`
	FileName      string     `json:"file_name"`
	UsingFallback bool       `json:"using_fallback"`
}

// Column describes one canonical column for UI configuration.
type Column struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
}

type lineCacheEntry struct {
	size  int64
	mtime time.Time
	count int
}

// Service answers the file-facing API: listings, current-file info,
// previews, column metadata, and download path resolution.
type Service struct {
	resolver *Resolver
	norm     *normalize.Normalizer
	logger   *slog.Logger

	mu    sync.RWMutex
	lines map[string]lineCacheEntry
}

// NewService creates the file service.
func NewService(logger *slog.Logger, resolver *Resolver, norm *normalize.Normalizer) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver: resolver,
		norm:     norm,
		logger:   logger.With("component", "files"),
		lines:    make(map[string]lineCacheEntry),
	}
}

// Resolve re-enumerates the discovery roots.
func (s *Service) Resolve() (*Layout, error) {
	return s.resolver.Resolve()
}

// List enumerates every known netspeed file, current first, then rotations
// newest to oldest, then backups.
func (s *Service) List() ([]Entry, error) {
	layout, err := s.resolver.Resolve()
	if err != nil {
		return nil, err
	}

	ordered := make([]File, 0, len(layout.Historical)+len(layout.Backups)+1)
	if layout.Current != nil {
		ordered = append(ordered, *layout.Current)
	}
	ordered = append(ordered, layout.Historical...)
	ordered = append(ordered, layout.Backups...)

	entries := make([]Entry, 0, len(ordered))
	for _, f := range ordered {
		entries = append(entries, Entry{
			Name:      f.Name,
			IsCurrent: layout.Current != nil && f.Name == layout.Current.Name,
			Date:      netspeed.CreationDate(f.Name, f.ModTime),
			MTime:     f.ModTime.Unix(),
			DateTime:  f.ModTime.Format("2006-01-02 15:04:05"),
			Time:      f.ModTime.Format("15:04:05"),
			LineCount: s.lineCount(f),
		})
	}
	return entries, nil
}

// CurrentInfo reports on the current export. When no current file exists
// the newest rotation serves as fallback.
func (s *Service) CurrentInfo() (*Info, error) {
	file, usingFallback, err := s.currentOrFallback()
	if err != nil {
		return nil, err
	}

	info := &Info{
		Success:       true,
		Date:          netspeed.CreationDate(file.Name, file.ModTime),
		LineCount:     s.lineCount(*file),
		LastModified:  file.ModTime.Format("2006-01-02 15:04:05"),
		UsingFallback: usingFallback,
	}
	if usingFallback {
		info.FallbackFile = file.Name
	}
	return info, nil
}

// PreviewFile normalizes up to limit rows of the named file. An empty name
// selects the current export (with rotation fallback). A 3-character loc
// filters rows by city code, a 5-character loc by full location code.
func (s *Service) PreviewFile(limit int, filename, loc string) (*Preview, error) {
	var file *File
	usingFallback := false

	if filename == "" {
		f, fb, err := s.currentOrFallback()
		if err != nil {
			return nil, err
		}
		file, usingFallback = f, fb
	} else {
		layout, err := s.resolver.Resolve()
		if err != nil {
			return nil, err
		}
		f, ok := layout.Lookup(filename)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		file = f
	}

	res, err := s.norm.File(file.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize %s: %w", file.Name, err)
	}

	rows := res.Rows
	if loc != "" {
		rows = filterByLocation(rows, loc)
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	headers := netspeed.DisplayHeaders(netspeed.CollectExtraHeaders(rows))
	data := make([][]string, 0, len(rows))
	for _, rec := range rows {
		row := make([]string, len(headers))
		for i, h := range headers {
			row[i] = rec.Get(h)
		}
		data = append(data, row)
	}

	return &Preview{
		Success:       true,
		Headers:       headers,
		Data:          data,
		CreationDate:  netspeed.CreationDate(file.Name, file.ModTime),
		FileName:      file.Name,
		UsingFallback: usingFallback,
	}, nil
}

// Columns lists the canonical columns in order.
func (s *Service) Columns() []Column {
	headers := netspeed.CanonicalHeaders()
	cols := make([]Column, 0, len(headers))
	for _, h := range headers {
		cols = append(cols, Column{
			ID:      columnID(h),
			Label:   h,
			Enabled: true,
		})
	}
	return cols
}

// ResolveDownload validates a download request and returns the on-disk
// path. Only names beginning with netspeed.csv are served and path
// traversal is rejected outright.
func (s *Service) ResolveDownload(filename string) (string, error) {
	if strings.ContainsAny(filename, "/\\") || strings.Contains(filename, "..") {
		return "", fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	if !strings.HasPrefix(filename, "netspeed.csv") {
		return "", fmt.Errorf("%w: %s", ErrNotFound, filename)
	}

	layout, err := s.resolver.Resolve()
	if err != nil {
		return "", err
	}
	f, ok := layout.Lookup(filename)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	return f.Path, nil
}

func (s *Service) currentOrFallback() (*File, bool, error) {
	layout, err := s.resolver.Resolve()
	if err != nil {
		return nil, false, err
	}
	if layout.Current != nil {
		return layout.Current, false, nil
	}
	if len(layout.Historical) > 0 {
		return &layout.Historical[0], true, nil
	}
	return nil, false, ErrNotFound
}

// lineCount counts newline-terminated lines, cached by (size, mtime).
func (s *Service) lineCount(f File) int {
	s.mu.RLock()
	if e, ok := s.lines[f.Path]; ok && e.size == f.Size && e.mtime.Equal(f.ModTime) {
		s.mu.RUnlock()
		return e.count
	}
	s.mu.RUnlock()

	count, err := countLines(f.Path)
	if err != nil {
		s.logger.Warn("failed to count lines", "file", f.Name, "error", err)
		return 0
	}

	s.mu.Lock()
	s.lines[f.Path] = lineCacheEntry{size: f.Size, mtime: f.ModTime, count: count}
	s.mu.Unlock()
	return count
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	endsWithNewline := true
	buf := make([]byte, 64*1024)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			count += bytes.Count(buf[:n], []byte{'\n'})
			endsWithNewline = buf[n-1] == '\n'
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	if !endsWithNewline {
		count++
	}
	return count, nil
}

func filterByLocation(rows []netspeed.Record, loc string) []netspeed.Record {
	loc = strings.ToUpper(strings.TrimSpace(loc))
	out := make([]netspeed.Record, 0, len(rows))
	for _, rec := range rows {
		code, ok := netspeed.ExtractLocation(rec.Get(netspeed.FieldSwitchHostname))
		if !ok {
			continue
		}
		switch len(loc) {
		case 3:
			if strings.HasPrefix(code, loc) {
				out = append(out, rec)
			}
		default:
			if code == loc {
				out = append(out, rec)
			}
		}
	}
	return out
}

// columnID turns a display label into a stable machine key:
// "IP Address" becomes "ip_address".
func columnID(label string) string {
	id := strings.ToLower(label)
	id = strings.ReplaceAll(id, " ", "_")
	return id
}
