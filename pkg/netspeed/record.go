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

// Package netspeed defines the canonical record model of the netspeed CSV
// exports and the derived domain keys (file-name taxonomy, location codes,
// city codes, JVA classification, KEM counts) shared by the normalizer, the
// search driver and the statistics engine.
package netspeed

import "sort"

// Canonical field names of the 16-column netspeed schema.
const (
	FieldIPAddress      = "IP Address"
	FieldLineNumber     = "Line Number"
	FieldSerialNumber   = "Serial Number"
	FieldModelName      = "Model Name"
	FieldKEM            = "KEM"
	FieldKEM2           = "KEM 2"
	FieldMACAddress     = "MAC Address"
	FieldMACAddress2    = "MAC Address 2"
	FieldSubnetMask     = "Subnet Mask"
	FieldVoiceVLAN      = "Voice VLAN"
	FieldSpeed1         = "Speed 1"
	FieldSpeed2         = "Speed 2"
	FieldSwitchHostname = "Switch Hostname"
	FieldSwitchPort     = "Switch Port"
	FieldSwitchPortMode = "Switch Port Mode"
	FieldPCPortMode     = "PC Port Mode"
)

// Metadata fields added by the normalizer to every row.
const (
	FieldRowNumber    = "#"
	FieldFileName     = "File Name"
	FieldCreationDate = "Creation Date"
)

// Optional extension fields carried by some source variants. They flow
// through the pipeline untouched but are guaranteed a column in display
// output even when absent.
const (
	FieldKEM1Serial = "KEM 1 Serial Number"
	FieldKEM2Serial = "KEM 2 Serial Number"
)

// DateFormat is the canonical YYYY-MM-DD layout of Creation Date values.
const DateFormat = "2006-01-02"

// Record is one normalized row. Missing cells are empty strings, never
// absent keys for canonical fields; extension fields may or may not be
// present.
type Record map[string]string

// canonicalHeaders is the fixed §3 column order of the 16-field schema.
var canonicalHeaders = []string{
	FieldIPAddress,
	FieldLineNumber,
	FieldSerialNumber,
	FieldModelName,
	FieldKEM,
	FieldKEM2,
	FieldMACAddress,
	FieldMACAddress2,
	FieldSubnetMask,
	FieldVoiceVLAN,
	FieldSpeed1,
	FieldSpeed2,
	FieldSwitchHostname,
	FieldSwitchPort,
	FieldSwitchPortMode,
	FieldPCPortMode,
}

// displayDataHeaders is the fixed presentation order of data columns used by
// search results and previews. KEM serial columns are always present.
var displayDataHeaders = []string{
	FieldLineNumber,
	FieldIPAddress,
	FieldSerialNumber,
	FieldModelName,
	FieldKEM,
	FieldKEM2,
	FieldKEM1Serial,
	FieldKEM2Serial,
	FieldMACAddress,
	FieldMACAddress2,
	FieldSubnetMask,
	FieldVoiceVLAN,
	FieldSpeed1,
	FieldSpeed2,
	FieldSwitchHostname,
	FieldSwitchPort,
	FieldSwitchPortMode,
	FieldPCPortMode,
}

// CanonicalHeaders returns the 16 canonical column names in schema order.
func CanonicalHeaders() []string {
	out := make([]string, len(canonicalHeaders))
	copy(out, canonicalHeaders)
	return out
}

// MetadataHeaders returns the normalizer-added columns in display order.
func MetadataHeaders() []string {
	return []string{FieldRowNumber, FieldFileName, FieldCreationDate}
}

// DisplayHeaders builds the stable header order for result rows: metadata
// first, then the fixed data order, then any extra columns alphabetically.
// Columns already covered by the fixed order are not repeated.
func DisplayHeaders(extras []string) []string {
	headers := MetadataHeaders()
	known := make(map[string]bool, len(headers)+len(displayDataHeaders))
	for _, h := range headers {
		known[h] = true
	}
	for _, h := range displayDataHeaders {
		headers = append(headers, h)
		known[h] = true
	}

	unseen := make([]string, 0, len(extras))
	for _, h := range extras {
		if h == "" || known[h] {
			continue
		}
		known[h] = true
		unseen = append(unseen, h)
	}
	sort.Strings(unseen)

	return append(headers, unseen...)
}

// Get returns the value of a field, or "" when the field is absent.
func (r Record) Get(field string) string {
	return r[field]
}

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Completeness counts non-empty cells. Used as the dedup tie-breaker.
func (r Record) Completeness() int {
	n := 0
	for _, v := range r {
		if v != "" {
			n++
		}
	}
	return n
}

// ExtraHeaders returns the record's non-canonical, non-metadata columns.
func (r Record) ExtraHeaders() []string {
	known := make(map[string]bool, len(canonicalHeaders)+3)
	for _, h := range canonicalHeaders {
		known[h] = true
	}
	for _, h := range MetadataHeaders() {
		known[h] = true
	}
	var extras []string
	for k := range r {
		if !known[k] {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	return extras
}

// CollectExtraHeaders returns the union of non-canonical columns across
// rows, sorted.
func CollectExtraHeaders(rows []Record) []string {
	seen := make(map[string]bool)
	var extras []string
	for _, rec := range rows {
		for _, h := range rec.ExtraHeaders() {
			if !seen[h] {
				seen[h] = true
				extras = append(extras, h)
			}
		}
	}
	sort.Strings(extras)
	return extras
}
