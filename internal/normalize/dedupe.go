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

package normalize

import (
	"fmt"
	"strings"

	"github.com/phoneinv/netspeed/pkg/netspeed"
)

// DedupeKey is the identity of a phone across duplicate export rows:
// serial, MAC, and the digits of the line number. Rows where all three are
// empty carry no identity and are never merged.
func DedupeKey(rec netspeed.Record) (string, bool) {
	serial := strings.TrimSpace(rec.Get(netspeed.FieldSerialNumber))
	mac := strings.TrimSpace(rec.Get(netspeed.FieldMACAddress))
	line := netspeed.LineDigits(rec.Get(netspeed.FieldLineNumber))
	if serial == "" && mac == "" && line == "" {
		return "", false
	}
	return fmt.Sprintf("%s|%s|%s", serial, mac, line), true
}

// Dedupe collapses duplicate phone rows, preserving first-occurrence order.
// Within a group the row with the most KEM modules wins; ties fall to the
// row with more populated fields, then to the earlier row. The operation is
// idempotent, and the same collapse runs ahead of bulk indexing and inside
// the statistics pipeline so both see identical phone counts.
func Dedupe(rows []netspeed.Record) []netspeed.Record {
	if len(rows) < 2 {
		return rows
	}

	type slot struct {
		rec  netspeed.Record
		kems int
		full int
	}

	order := make([]string, 0, len(rows))
	best := make(map[string]*slot, len(rows))
	anon := 0

	for _, rec := range rows {
		key, ok := DedupeKey(rec)
		if !ok {
			// No identity: keep as-is under a synthetic unique key.
			anon++
			key = fmt.Sprintf("\x00anon|%d", anon)
		}
		kems := netspeed.KEMCount(rec)
		cur, seen := best[key]
		if !seen {
			order = append(order, key)
			best[key] = &slot{rec: rec, kems: kems, full: rec.Completeness()}
			continue
		}
		full := rec.Completeness()
		if kems > cur.kems || (kems == cur.kems && full > cur.full) {
			cur.rec, cur.kems, cur.full = rec, kems, full
		}
	}

	if len(order) == len(rows) {
		return rows
	}
	out := make([]netspeed.Record, 0, len(order))
	for _, key := range order {
		out = append(out, best[key].rec)
	}
	return out
}
