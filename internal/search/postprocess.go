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
	"fmt"
	"sort"
	"strings"

	"github.com/phoneinv/netspeed/pkg/netspeed"
)

// resultRow pairs a normalized record with where it came from.
type resultRow struct {
	rec         netspeed.Record
	fromArchive bool
}

// hitsToRows converts engine hits into records, dropping the snapshot
// annotations archive documents carry.
func hitsToRows(hits []Hit) []resultRow {
	rows := make([]resultRow, 0, len(hits))
	for _, h := range hits {
		rec := make(netspeed.Record, len(h.Source))
		for k, v := range h.Source {
			if k == "snapshot_file" || k == "snapshot_date" {
				continue
			}
			switch val := v.(type) {
			case string:
				rec[k] = val
			case nil:
				rec[k] = ""
			default:
				rec[k] = fmt.Sprint(val)
			}
		}
		rows = append(rows, resultRow{rec: rec, fromArchive: h.Index == netspeed.ArchiveIndex})
	}
	return rows
}

// postProcess applies the fixed pipeline every plan shares: identity dedupe,
// canonical file filtering, per-intent collapsing and the final cap. The
// incoming order is the engine's three-key sort and is preserved.
func postProcess(p *plan, includeHistorical bool, rows []resultRow, limit int) []netspeed.Record {
	if !p.skipMACDedupe {
		rows = dedupeByMACAndFile(rows)
	}
	rows = filterCanonicalFiles(rows, includeHistorical)
	if p.onePerFile {
		rows = onePerFile(rows)
	}
	if p.dedupeBySwitch {
		rows = dedupeBySwitch(rows, includeHistorical)
	}

	out := make([]netspeed.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.rec)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// dedupeByMACAndFile drops later duplicates of the same (MAC, file) pair.
// Rows without a MAC have no identity to collapse on and are all kept.
func dedupeByMACAndFile(rows []resultRow) []resultRow {
	seen := make(map[string]bool, len(rows))
	out := rows[:0]
	for _, r := range rows {
		mac := r.rec.Get(netspeed.FieldMACAddress)
		if mac == "" {
			out = append(out, r)
			continue
		}
		key := strings.ToUpper(mac) + "|" + r.rec.Get(netspeed.FieldFileName)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// filterCanonicalFiles keeps rows whose File Name belongs to the canonical
// taxonomy: current files always, rotations only in historical mode, archive
// rows whenever the archive index was part of the query. Backups and foreign
// names never surface.
func filterCanonicalFiles(rows []resultRow, includeHistorical bool) []resultRow {
	out := rows[:0]
	for _, r := range rows {
		info, ok := netspeed.ParseFileName(r.rec.Get(netspeed.FieldFileName))
		if !ok {
			continue
		}
		switch {
		case r.fromArchive:
			out = append(out, r)
		case info.Kind == netspeed.KindCurrent:
			out = append(out, r)
		case info.Kind == netspeed.KindRotation && includeHistorical:
			out = append(out, r)
		}
	}
	return out
}

// onePerFile keeps the first (best-sorted) row per File Name.
func onePerFile(rows []resultRow) []resultRow {
	seen := make(map[string]bool, len(rows))
	out := rows[:0]
	for _, r := range rows {
		name := r.rec.Get(netspeed.FieldFileName)
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, r)
	}
	return out
}

// dedupeBySwitch collapses rows per switch hostname, or per (hostname, file)
// when historical results are requested.
func dedupeBySwitch(rows []resultRow, includeHistorical bool) []resultRow {
	seen := make(map[string]bool, len(rows))
	out := rows[:0]
	for _, r := range rows {
		key := strings.ToLower(r.rec.Get(netspeed.FieldSwitchHostname))
		if includeHistorical {
			key += "|" + r.rec.Get(netspeed.FieldFileName)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// sortByPreferred orders rows by the preferred-file list; rows from files
// outside the list keep their relative order at the end. Used after merging
// per-file seed queries, which arrive grouped by index rather than sorted.
func sortByPreferred(rows []resultRow, preferred []string) {
	rank := make(map[string]int, len(preferred))
	for i, name := range preferred {
		rank[name] = i
	}
	sort.SliceStable(rows, func(i, j int) bool {
		ri, iok := rank[rows[i].rec.Get(netspeed.FieldFileName)]
		rj, jok := rank[rows[j].rec.Get(netspeed.FieldFileName)]
		switch {
		case iok && jok:
			return ri < rj
		case iok:
			return true
		default:
			return false
		}
	})
}

// Tabulate flattens records to row arrays aligned with headers.
func Tabulate(headers []string, rows []netspeed.Record) [][]string {
	data := make([][]string, 0, len(rows))
	for _, rec := range rows {
		cells := make([]string, len(headers))
		for i, h := range headers {
			cells[i] = rec.Get(h)
		}
		data = append(data, cells)
	}
	return data
}
