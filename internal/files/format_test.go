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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatEntriesTable(t *testing.T) {
	entries := []Entry{
		{
			Name:      "netspeed.csv",
			IsCurrent: true,
			Date:      "2026-08-25",
			DateTime:  "2026-08-25 06:10:00",
			LineCount: 4812,
		},
		{
			Name:      "netspeed_2022-11-03_with_a_very_long_backup_suffix.csv",
			Date:      "2022-11-03",
			DateTime:  "2022-11-03 06:10:00",
			LineCount: 0,
		},
	}

	out := FormatEntriesTable(entries)

	assert.Contains(t, out, "FILE NAME")
	assert.Contains(t, out, strings.Repeat("=", 80))
	assert.Contains(t, out, " * netspeed.csv")
	assert.Contains(t, out, "4812")
	assert.Contains(t, out, "...")
	assert.Contains(t, out, "N/A")
	assert.NotContains(t, out, "with_a_very_long_backup_suffix")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"Short", 10, "Short"},
		{"ExactLength", 11, "ExactLength"},
		{"TooLongString", 10, "TooLong..."},
		{"abcdef", 2, "ab"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, truncate(tt.input, tt.maxLen))
	}
}
