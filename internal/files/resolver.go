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

// Package files discovers netspeed exports on disk, serves file metadata
// and previews, and maintains the timestamped on-disk archive of current
// exports.
package files

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/phoneinv/netspeed/pkg/netspeed"
)

// File is one discovered netspeed export.
type File struct {
	netspeed.FileInfo
	Path    string
	Size    int64
	ModTime time.Time
}

// Layout is the classified view of the discovery roots.
type Layout struct {
	Current    *File  // nil when no current export exists
	Historical []File // rotations, newest first
	Backups    []File // ordered by name
}

// PreferredOrder is the stable file-name order used for search sort
// tie-breaking: current first, then rotations newest to oldest.
func (l *Layout) PreferredOrder() []string {
	names := make([]string, 0, len(l.Historical)+1)
	if l.Current != nil {
		names = append(names, l.Current.Name)
	}
	for _, f := range l.Historical {
		names = append(names, f.Name)
	}
	return names
}

// RebuildOrder is the ingestion order of a full rebuild: historical oldest
// first, then the current file, then backups. Indexing history before the
// current file guarantees that when the current index appears, every
// historical index already exists.
func (l *Layout) RebuildOrder() []File {
	out := make([]File, 0, len(l.Historical)+len(l.Backups)+1)
	for i := len(l.Historical) - 1; i >= 0; i-- {
		out = append(out, l.Historical[i])
	}
	if l.Current != nil {
		out = append(out, *l.Current)
	}
	out = append(out, l.Backups...)
	return out
}

// Lookup finds a discovered file by name.
func (l *Layout) Lookup(name string) (*File, bool) {
	if l.Current != nil && l.Current.Name == name {
		return l.Current, true
	}
	for i := range l.Historical {
		if l.Historical[i].Name == name {
			return &l.Historical[i], true
		}
	}
	for i := range l.Backups {
		if l.Backups[i].Name == name {
			return &l.Backups[i], true
		}
	}
	return nil, false
}

// CandidateDirs lists the directories probed beneath one discovery root.
// The watcher registers the same set so events and enumeration agree.
func CandidateDirs(root string) []string {
	return []string{root, filepath.Join(root, "netspeed"), filepath.Join(root, "history", "netspeed")}
}

// Resolver enumerates netspeed files across the configured roots.
type Resolver struct {
	roots  []string
	logger *slog.Logger
}

// NewResolver creates a resolver over the given roots, usually
// Config.Roots().
func NewResolver(logger *slog.Logger, roots []string) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		roots:  roots,
		logger: logger.With("component", "files"),
	}
}

// Resolve probes each root's candidate subtrees, collects every file in
// the netspeed name family, and classifies the result. Missing directories
// are empty, not errors. Directories and files reached twice through
// symlinks are visited once; when the same file name appears under several
// roots, the first probe wins.
func (r *Resolver) Resolve() (*Layout, error) {
	seenDirs := make(map[string]bool)
	seenNames := make(map[string]bool)
	var found []File

	for _, root := range r.roots {
		for _, dir := range CandidateDirs(root) {
			canonical, err := filepath.EvalSymlinks(dir)
			if err != nil {
				continue // missing or unreachable: treated as empty
			}
			if seenDirs[canonical] {
				continue
			}
			seenDirs[canonical] = true

			entries, err := os.ReadDir(canonical)
			if err != nil {
				r.logger.Debug("skipping unreadable directory", "dir", canonical, "error", err)
				continue
			}
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				name := entry.Name()
				info, ok := netspeed.ParseFileName(name)
				if !ok || seenNames[name] {
					continue
				}
				stat, err := entry.Info()
				if err != nil {
					r.logger.Debug("skipping unstattable file", "file", name, "error", err)
					continue
				}
				seenNames[name] = true
				found = append(found, File{
					FileInfo: info,
					Path:     filepath.Join(canonical, name),
					Size:     stat.Size(),
					ModTime:  stat.ModTime(),
				})
			}
		}
	}

	return buildLayout(found), nil
}

func buildLayout(found []File) *Layout {
	layout := &Layout{}

	infos := make([]netspeed.FileInfo, len(found))
	byName := make(map[string]*File, len(found))
	for i := range found {
		infos[i] = found[i].FileInfo
		byName[found[i].Name] = &found[i]
	}

	if current, ok := netspeed.SelectCurrent(infos); ok {
		layout.Current = byName[current.Name]
	}

	var historical []netspeed.FileInfo
	for _, info := range infos {
		switch {
		case layout.Current != nil && info.Name == layout.Current.Name:
		case info.Kind == netspeed.KindRotation:
			historical = append(historical, info)
		case info.Kind == netspeed.KindCurrent:
			// A current-shaped file that lost the selection is stale;
			// treat it as history so its rows stay reachable.
			historical = append(historical, info)
		case info.Kind == netspeed.KindBackup:
			layout.Backups = append(layout.Backups, *byName[info.Name])
		}
	}

	netspeed.SortHistorical(historical)
	for _, info := range historical {
		layout.Historical = append(layout.Historical, *byName[info.Name])
	}
	sort.Slice(layout.Backups, func(i, j int) bool {
		return layout.Backups[i].Name < layout.Backups[j].Name
	})

	return layout
}
