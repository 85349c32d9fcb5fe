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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoneinv/netspeed/pkg/netspeed"
)

const sampleCSV = `10.180.4.21;+4960213981023;FCH2140D0KU;CP-8851;KEM;;64A0E71F9B2D;SEP64A0E71F9B2D;255.255.255.0;803;1000;1000;ABX01ZSL4750P.juwin.bayern.de;GigabitEthernet1/0/24;auto;auto
10.29.1.77;4960213981055;;CP-7841;;;AABBCC001122;SEPAABBCC001122;255.255.254.0;210;100;100;NUE01SW002.juwin.bayern.de;FastEthernet0/1/2;auto;auto;
`

func TestParseSemicolon(t *testing.T) {
	n := New(nil, Options{})
	res, err := n.Parse(strings.NewReader(sampleCSV), "netspeed.csv", "2025-08-14")
	require.NoError(t, err)

	assert.Equal(t, netspeed.CanonicalHeaders(), res.Headers)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, 2, res.Stats.TotalRows)
	assert.Zero(t, res.Stats.EmptyRows)
	assert.Zero(t, res.Stats.FailedRows)

	first := res.Rows[0]
	assert.Equal(t, "1", first[netspeed.FieldRowNumber])
	assert.Equal(t, "netspeed.csv", first[netspeed.FieldFileName])
	assert.Equal(t, "2025-08-14", first[netspeed.FieldCreationDate])
	assert.Equal(t, "+4960213981023", first[netspeed.FieldLineNumber])
	assert.Equal(t, "KEM", first[netspeed.FieldKEM])

	// The trailing delimiter of the second line must not shift anything.
	second := res.Rows[1]
	assert.Equal(t, "2", second[netspeed.FieldRowNumber])
	assert.Equal(t, "auto", second[netspeed.FieldPCPortMode])
	assert.Equal(t, "FastEthernet0/1/2", second[netspeed.FieldSwitchPort])
}

func TestParseCommaDelimiter(t *testing.T) {
	data := "10.180.4.21,+4960213981023,CP-8851,64A0E71F9B2D\n"
	n := New(nil, Options{})
	res, err := n.Parse(strings.NewReader(data), "netspeed.csv", "2025-08-14")
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	rec := res.Rows[0]
	assert.Equal(t, "10.180.4.21", rec[netspeed.FieldIPAddress])
	assert.Equal(t, "CP-8851", rec[netspeed.FieldModelName])
	assert.Equal(t, "64A0E71F9B2D", rec[netspeed.FieldMACAddress])
}

func TestParseHeaderRowSkipped(t *testing.T) {
	data := strings.Join(netspeed.CanonicalHeaders(), ";") + "\n" + sampleCSV
	n := New(nil, Options{})
	res, err := n.Parse(strings.NewReader(data), "netspeed.csv", "2025-08-14")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Stats.TotalRows)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "1", res.Rows[0][netspeed.FieldRowNumber])
}

func TestParseCountsEmptyAndFailedRows(t *testing.T) {
	data := sampleCSV + ";;;;;\n!!!;???\n"
	n := New(nil, Options{})
	res, err := n.Parse(strings.NewReader(data), "netspeed.csv", "2025-08-14")
	require.NoError(t, err)

	assert.Equal(t, 4, res.Stats.TotalRows)
	assert.Equal(t, 1, res.Stats.EmptyRows)
	assert.Equal(t, 1, res.Stats.FailedRows)
	assert.Len(t, res.Rows, 2)
}

func TestParseMergeKEMDisplay(t *testing.T) {
	data := "10.180.4.21;+4960213981023;KEM;KEM2;64A0E71F9B2D\n"
	n := New(nil, Options{MergeKEMDisplay: true})
	res, err := n.Parse(strings.NewReader(data), "netspeed.csv", "2025-08-14")
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	rec := res.Rows[0]
	assert.Equal(t, "+4960213981023 KEM KEM", rec[netspeed.FieldLineNumber])
	// The underlying fields stay populated for indexing.
	assert.Equal(t, "KEM", rec[netspeed.FieldKEM])
	assert.Equal(t, "KEM2", rec[netspeed.FieldKEM2])
	assert.Equal(t, 2, netspeed.KEMCount(rec))
}

func TestTrimTrailingEmpty(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, trimTrailingEmpty([]string{"a", "b", ""}))
	assert.Equal(t, []string{"a", "b"}, trimTrailingEmpty([]string{"a", "b"}))
	// Only the single cell a trailing delimiter produces is dropped.
	assert.Equal(t, []string{"a", ""}, trimTrailingEmpty([]string{"a", "", ""}))
	assert.Equal(t, []string{""}, trimTrailingEmpty([]string{""}))
}

func TestFileStampsCreationDate(t *testing.T) {
	dir := t.TempDir()
	n := New(nil, Options{})

	stamped := filepath.Join(dir, "netspeed_20250814-060000.csv")
	require.NoError(t, os.WriteFile(stamped, []byte(sampleCSV), 0o644))
	res, err := n.File(stamped)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "2025-08-14", res.Rows[0][netspeed.FieldCreationDate])
	assert.Equal(t, "netspeed_20250814-060000.csv", res.Rows[0][netspeed.FieldFileName])

	legacy := filepath.Join(dir, "netspeed.csv")
	require.NoError(t, os.WriteFile(legacy, []byte(sampleCSV), 0o644))
	res, err = n.File(legacy)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, time.Now().Format(netspeed.DateFormat),
		res.Rows[0][netspeed.FieldCreationDate])
}

func TestFileMissing(t *testing.T) {
	n := New(nil, Options{})
	_, err := n.File(filepath.Join(t.TempDir(), "netspeed.csv"))
	assert.Error(t, err)
}
