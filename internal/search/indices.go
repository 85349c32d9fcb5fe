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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/phoneinv/netspeed/internal/files"
	"github.com/phoneinv/netspeed/pkg/netspeed"
)

// IndexInfo pairs an index name with its engine-side creation time.
type IndexInfo struct {
	Name    string
	Created time.Time
}

// IndexExists reports whether the named index exists.
func (d *Driver) IndexExists(ctx context.Context, name string) (bool, error) {
	res, err := opensearchapi.IndicesExistsRequest{Index: []string{name}}.Do(ctx, d.client)
	if err != nil {
		return false, d.classify(err)
	}
	defer drain(res)
	switch res.StatusCode {
	case 200:
		return true, nil
	case 404:
		return false, nil
	default:
		return false, fmt.Errorf("failed to check index %s: %s", name, res.Status())
	}
}

// EnsureIndex creates the named index with its canonical mapping when it
// does not exist yet. Losing a create race to a concurrent worker is fine.
func (d *Driver) EnsureIndex(ctx context.Context, name string) error {
	exists, err := d.IndexExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	payload, err := json.Marshal(mappingFor(name))
	if err != nil {
		return fmt.Errorf("failed to encode mapping for %s: %w", name, err)
	}
	res, err := opensearchapi.IndicesCreateRequest{Index: name, Body: bytes.NewReader(payload)}.Do(ctx, d.client)
	if err != nil {
		return d.classify(err)
	}
	defer drain(res)
	if res.StatusCode == 400 {
		// resource_already_exists_exception from a concurrent creator
		d.logger.Debug("index already created concurrently", "index", name)
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("failed to create index %s: %s: %s", name, res.Status(), firstErrorLine(res.Body))
	}
	d.logger.Info("created index", "index", name)
	return nil
}

// DeleteIndex removes the named index. Absent indices are not an error.
func (d *Driver) DeleteIndex(ctx context.Context, name string) error {
	req := opensearchapi.IndicesDeleteRequest{
		Index:             []string{name},
		IgnoreUnavailable: boolPtr(true),
	}
	res, err := req.Do(ctx, d.client)
	if err != nil {
		return d.classify(err)
	}
	defer drain(res)
	if res.StatusCode == 404 {
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("failed to delete index %s: %s", name, res.Status())
	}
	d.logger.Info("deleted index", "index", name)
	return nil
}

// ListNetspeedIndices enumerates the per-file family with creation times,
// newest first. Statistics and archive indices never match the pattern.
func (d *Driver) ListNetspeedIndices(ctx context.Context) ([]IndexInfo, error) {
	req := opensearchapi.CatIndicesRequest{
		Index:  []string{netspeed.IndexPattern},
		Format: "json",
		H:      []string{"index", "creation.date"},
	}
	res, err := req.Do(ctx, d.client)
	if err != nil {
		return nil, d.classify(err)
	}
	defer drain(res)
	if res.StatusCode == 404 {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("failed to list indices: %s", res.Status())
	}

	var rows []map[string]string
	if err := json.NewDecoder(res.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode index listing: %w", err)
	}
	infos := make([]IndexInfo, 0, len(rows))
	for _, row := range rows {
		info := IndexInfo{Name: row["index"]}
		if ms, err := strconv.ParseInt(row["creation.date"], 10, 64); err == nil {
			info.Created = time.UnixMilli(ms).UTC()
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Created.After(infos[j].Created) })
	return infos, nil
}

// CleanupNetspeedIndices deletes every index of the per-file family. Called
// before a full rebuild; stats and archive indices survive by construction.
func (d *Driver) CleanupNetspeedIndices(ctx context.Context) (int, error) {
	infos, err := d.ListNetspeedIndices(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, info := range infos {
		if err := d.DeleteIndex(ctx, info.Name); err != nil {
			return deleted, err
		}
		deleted++
	}
	d.logger.Info("cleaned up per-file indices", "deleted", deleted)
	return deleted, nil
}

// IndexSelection is the resolved search target for one query.
type IndexSelection struct {
	// Indices is what the engine request addresses.
	Indices []string
	// PerFile lists the concrete per-file indices, newest first, for
	// planners that issue one seed query per file.
	PerFile []string
	// Archive is true when the archive index is part of Indices.
	Archive bool
}

// SelectSearchIndices resolves which indices a query should address.
//
// Historical searches take every per-file index, the family wildcard as a
// safety net and the archive when present. Current-only searches resolve the
// single best index: the one matching the current file, else the newest by
// file-name timestamp, else the newest by creation time, else the archive.
func (d *Driver) SelectSearchIndices(ctx context.Context, includeHistorical bool, layout *files.Layout) (*IndexSelection, error) {
	infos, err := d.ListNetspeedIndices(ctx)
	if err != nil {
		return nil, err
	}
	perFile := make([]string, 0, len(infos))
	for _, info := range infos {
		perFile = append(perFile, info.Name)
	}

	if includeHistorical {
		sel := &IndexSelection{PerFile: perFile}
		sel.Indices = append(sel.Indices, perFile...)
		sel.Indices = append(sel.Indices, netspeed.IndexPattern)
		if ok, err := d.IndexExists(ctx, netspeed.ArchiveIndex); err == nil && ok {
			sel.Indices = append(sel.Indices, netspeed.ArchiveIndex)
			sel.Archive = true
		}
		return sel, nil
	}

	sel := &IndexSelection{PerFile: perFile}
	if name, ok := currentIndex(infos, layout); ok {
		sel.Indices = []string{name}
		return sel, nil
	}
	if ok, err := d.IndexExists(ctx, netspeed.ArchiveIndex); err == nil && ok {
		sel.Indices = []string{netspeed.ArchiveIndex}
		sel.Archive = true
		return sel, nil
	}
	// Nothing exists yet; the wildcard with ignore_unavailable yields an
	// empty result instead of an error.
	sel.Indices = []string{netspeed.IndexPattern}
	return sel, nil
}

// currentIndex picks the best single index for a current-only search.
func currentIndex(infos []IndexInfo, layout *files.Layout) (string, bool) {
	if len(infos) == 0 {
		return "", false
	}

	if layout != nil && layout.Current != nil {
		want := netspeed.IndexNameForFile(layout.Current.Name)
		for _, info := range infos {
			if info.Name == want {
				return info.Name, true
			}
		}
	}

	// Newest by the timestamp embedded in the file-derived name.
	best := ""
	bestStamp := ""
	for _, info := range infos {
		if stamp, ok := netspeed.IndexTimestamp(info.Name); ok && stamp > bestStamp {
			best, bestStamp = info.Name, stamp
		}
	}
	if best != "" {
		return best, true
	}

	// Newest by engine creation time; the listing is already sorted.
	return infos[0].Name, true
}
