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
	"sort"
	"strconv"
	"strings"
	"time"
)

// FileKind classifies a netspeed file name.
type FileKind int

const (
	// KindUnknown marks names outside the netspeed taxonomy.
	KindUnknown FileKind = iota
	// KindCurrent is netspeed.csv or netspeed_YYYYMMDD-HHMMSS.csv.
	KindCurrent
	// KindRotation carries a numeric .N rotation suffix.
	KindRotation
	// KindBackup is any name containing the _bak marker.
	KindBackup
)

// CurrentLegacyName is the un-timestamped current export.
const CurrentLegacyName = "netspeed.csv"

// timestampLayout matches the YYYYMMDD-HHMMSS portion of timestamped names.
const timestampLayout = "20060102-150405"

var (
	reCurrentLegacy      = regexp.MustCompile(`^netspeed\.csv$`)
	reCurrentTimestamped = regexp.MustCompile(`^netspeed_(\d{8}-\d{6})\.csv$`)
	reRotationLegacy     = regexp.MustCompile(`^netspeed\.csv\.(\d+)$`)
	reRotationStamped    = regexp.MustCompile(`^netspeed_(\d{8}-\d{6})\.csv\.(\d+)$`)
)

// FileInfo is the parsed identity of one netspeed file name.
type FileInfo struct {
	Name      string
	Kind      FileKind
	Timestamp time.Time // zero unless the name is timestamped
	Rotation  int       // -1 unless the name carries a .N suffix
}

// HasTimestamp reports whether the name carried a YYYYMMDD-HHMMSS stamp.
func (f FileInfo) HasTimestamp() bool { return !f.Timestamp.IsZero() }

// ParseFileName classifies name against the netspeed taxonomy. The second
// return value is false when the name does not belong to the family at all.
// Backup detection wins over everything else: a rotated backup is a backup.
func ParseFileName(name string) (FileInfo, bool) {
	info := FileInfo{Name: name, Rotation: -1}

	if !strings.HasPrefix(name, "netspeed") {
		return info, false
	}
	if strings.Contains(name, "_bak") {
		info.Kind = KindBackup
		return info, true
	}

	if reCurrentLegacy.MatchString(name) {
		info.Kind = KindCurrent
		return info, true
	}
	if m := reCurrentTimestamped.FindStringSubmatch(name); m != nil {
		ts, err := time.Parse(timestampLayout, m[1])
		if err != nil {
			return info, false
		}
		info.Kind = KindCurrent
		info.Timestamp = ts
		return info, true
	}
	if m := reRotationLegacy.FindStringSubmatch(name); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return info, false
		}
		info.Kind = KindRotation
		info.Rotation = n
		return info, true
	}
	if m := reRotationStamped.FindStringSubmatch(name); m != nil {
		ts, err := time.Parse(timestampLayout, m[1])
		if err != nil {
			return info, false
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return info, false
		}
		info.Kind = KindRotation
		info.Timestamp = ts
		info.Rotation = n
		return info, true
	}

	return info, false
}

// IsNetspeedName reports whether name belongs to the netspeed family,
// backups included.
func IsNetspeedName(name string) bool {
	_, ok := ParseFileName(name)
	return ok
}

// SelectCurrent picks the current file: the timestamped current with the
// largest stamp when any exists, otherwise the legacy netspeed.csv. Rotation
// and backup entries never qualify.
func SelectCurrent(infos []FileInfo) (FileInfo, bool) {
	var legacy *FileInfo
	var best *FileInfo
	for i := range infos {
		f := &infos[i]
		if f.Kind != KindCurrent {
			continue
		}
		if !f.HasTimestamp() {
			legacy = f
			continue
		}
		if best == nil || f.Timestamp.After(best.Timestamp) {
			best = f
		}
	}
	if best != nil {
		return *best, true
	}
	if legacy != nil {
		return *legacy, true
	}
	return FileInfo{}, false
}

// SortHistorical orders rotation files for presentation and search
// preference: timestamped rotations newest-first (ties broken by ascending
// rotation index), then legacy rotations by ascending index. Legacy rotation
// indices ascend with age, so ascending order is also newest-first.
func SortHistorical(infos []FileInfo) {
	sort.SliceStable(infos, func(i, j int) bool {
		a, b := infos[i], infos[j]
		switch {
		case a.HasTimestamp() && b.HasTimestamp():
			if !a.Timestamp.Equal(b.Timestamp) {
				return a.Timestamp.After(b.Timestamp)
			}
			return a.Rotation < b.Rotation
		case a.HasTimestamp():
			return true
		case b.HasTimestamp():
			return false
		default:
			return a.Rotation < b.Rotation
		}
	})
}

// PreferredOrder builds the stable file-preference list used for search sort
// tie-breaking: the current file first, then rotations newest-to-oldest.
func PreferredOrder(current *FileInfo, historical []FileInfo) []string {
	names := make([]string, 0, len(historical)+1)
	if current != nil {
		names = append(names, current.Name)
	}
	sorted := make([]FileInfo, len(historical))
	copy(sorted, historical)
	SortHistorical(sorted)
	for _, f := range sorted {
		names = append(names, f.Name)
	}
	return names
}

// CreationDate resolves the YYYY-MM-DD stamp a file's rows carry: the
// file-name timestamp when the name has one, otherwise the modification
// time. Backups and legacy names fall in the second bucket.
func CreationDate(name string, mtime time.Time) string {
	if info, ok := ParseFileName(name); ok && info.HasTimestamp() {
		return info.Timestamp.Format(DateFormat)
	}
	return mtime.Format(DateFormat)
}
