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

// The three location patterns, in match order. A location code is always the
// first five significant characters of the switch hostname:
//
//	ABX01...  two-letter city padded with X
//	MUCX50... three-letter city with a separator X that is dropped
//	NUE01...  plain three-letter city
var (
	reLocPaddedCity = regexp.MustCompile(`^([A-Z]{2}X[0-9]{2})`)
	reLocSeparator  = regexp.MustCompile(`^([A-Z]{3})X([0-9]{2})`)
	reLocPlain      = regexp.MustCompile(`^([A-Z]{3}[0-9]{2})`)
)

// ExtractLocation derives the 5-character location code from a switch
// hostname. Matching is case-insensitive; the returned code is upper case.
func ExtractLocation(hostname string) (string, bool) {
	host := strings.ToUpper(strings.TrimSpace(hostname))
	if host == "" {
		return "", false
	}
	if m := reLocPaddedCity.FindStringSubmatch(host); m != nil {
		return m[1], true
	}
	if m := reLocSeparator.FindStringSubmatch(host); m != nil {
		return m[1] + m[2], true
	}
	if m := reLocPlain.FindStringSubmatch(host); m != nil {
		return m[1], true
	}
	return "", false
}

// CityCode returns the 3-character city portion of a location code.
func CityCode(location string) string {
	if len(location) < 3 {
		return location
	}
	return location[:3]
}

// JVAClass is the penal/judicial split derived from a location code.
type JVAClass string

const (
	// ClassJustiz is the default classification.
	ClassJustiz JVAClass = "Justiz"
	// ClassJVA marks penal-institution switches (location suffix 50 or 51).
	ClassJVA JVAClass = "JVA"
)

// IsJVALocation reports whether a 5-character location code denotes a JVA
// site: the final two digits are 50 or 51.
func IsJVALocation(location string) bool {
	if len(location) != 5 {
		return false
	}
	suffix := location[3:]
	return suffix == "50" || suffix == "51"
}

// ClassifyHostname derives the JVA classification for a switch hostname.
// Hostnames without a resolvable location default to Justiz.
func ClassifyHostname(hostname string) JVAClass {
	loc, ok := ExtractLocation(hostname)
	if ok && IsJVALocation(loc) {
		return ClassJVA
	}
	return ClassJustiz
}

// KEMCount counts the key expansion modules attached to a phone row: one per
// non-empty KEM field, falling back to "KEM" tokens embedded in the line
// number when both fields are empty.
func KEMCount(rec Record) int {
	n := 0
	if strings.TrimSpace(rec.Get(FieldKEM)) != "" {
		n++
	}
	if strings.TrimSpace(rec.Get(FieldKEM2)) != "" {
		n++
	}
	if n > 0 {
		return n
	}
	return strings.Count(strings.ToUpper(rec.Get(FieldLineNumber)), "KEM")
}

// LineDigits strips a line number down to its digits. The leading + of an
// E.164 number and any embedded KEM display tokens are discarded.
func LineDigits(line string) string {
	var b strings.Builder
	for _, r := range line {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
