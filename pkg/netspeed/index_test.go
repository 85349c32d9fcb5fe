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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndexNameForFile(t *testing.T) {
	tests := []struct {
		file  string
		index string
	}{
		{"netspeed.csv", "netspeed_csv"},
		{"netspeed.csv.2", "netspeed_csv_2"},
		{"netspeed.csv.17", "netspeed_csv_17"},
		{"netspeed_20250814-021500.csv", "netspeed_20250814-021500_csv"},
		{"netspeed_20250814-021500.csv.3", "netspeed_20250814-021500_csv_3"},
		{"Netspeed.CSV", "netspeed_csv"},
		{"netspeed bak.csv", "netspeed_bak_csv"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.index, IndexNameForFile(tt.file), tt.file)
	}
}

func TestIndexNamesStayInsideFamily(t *testing.T) {
	// Wildcard cleanup on the per-file family must never be able to match
	// the statistics or archive indices.
	for _, name := range []string{"netspeed.csv", "netspeed.csv.9", "netspeed_20250101-000000.csv"} {
		assert.True(t, strings.HasPrefix(IndexNameForFile(name), "netspeed_"), name)
	}
	for _, reserved := range []string{StatsIndex, StatsLocationIndex, ArchiveIndex} {
		assert.False(t, strings.HasPrefix(reserved, "netspeed_"), reserved)
	}
}

func TestIndexTimestamp(t *testing.T) {
	stamp, ok := IndexTimestamp("netspeed_20250814-021500_csv")
	assert.True(t, ok)
	assert.Equal(t, "20250814-021500", stamp)

	_, ok = IndexTimestamp("netspeed_csv_2")
	assert.False(t, ok)
}
