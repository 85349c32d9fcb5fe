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

package netspeed

import (
	"regexp"
	"strings"
)

var reIndexStamp = regexp.MustCompile(`(\d{8}-\d{6})`)

// Per-file indices share the netspeed_ prefix so wildcard cleanup can drop
// them all without touching statistics or archive data. The stats and archive
// indices therefore live OUTSIDE that family on purpose.
const (
	// IndexPattern matches every per-file netspeed index and nothing else.
	IndexPattern = "netspeed_*"
	// StatsIndex holds one global statistics snapshot per (file, date).
	StatsIndex = "stats_netspeed"
	// StatsLocationIndex holds one per-location snapshot per (file, date, loc).
	StatsLocationIndex = "stats_netspeed_loc"
	// ArchiveIndex holds immutable per-day row snapshots.
	ArchiveIndex = "archive_netspeed"
)

// IndexNameForFile derives the engine index name for a netspeed file name:
// lowercased, every character outside [a-z0-9_-] replaced by an underscore.
//
//	netspeed.csv             -> netspeed_csv
//	netspeed.csv.2           -> netspeed_csv_2
//	netspeed_20250814-021500.csv -> netspeed_20250814-021500_csv
func IndexNameForFile(name string) string {
	lower := strings.ToLower(name)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// IndexTimestamp extracts the YYYYMMDD-HHMMSS stamp embedded in an index
// name, if any. Index names are derived from file names, so the stamp shape
// survives the underscore rewrite.
func IndexTimestamp(index string) (string, bool) {
	m := reIndexStamp.FindStringSubmatch(index)
	if m == nil {
		return "", false
	}
	return m[1], true
}
