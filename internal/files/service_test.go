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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoneinv/netspeed/internal/normalize"
	"github.com/phoneinv/netspeed/pkg/netspeed"
)

func newTestService(t *testing.T, roots ...string) *Service {
	t.Helper()
	return NewService(nil, NewResolver(nil, roots), normalize.New(nil, normalize.Options{}))
}

func TestServiceList(t *testing.T) {
	root := writeTree(t)
	svc := newTestService(t, root)

	entries, err := svc.List()
	require.NoError(t, err)
	require.Len(t, entries, 5)

	assert.Equal(t, "netspeed.csv", entries[0].Name)
	assert.True(t, entries[0].IsCurrent)
	assert.Equal(t, 2, entries[0].LineCount)
	assert.NotEmpty(t, entries[0].Date)
	assert.NotZero(t, entries[0].MTime)
	assert.NotEmpty(t, entries[0].DateTime)

	assert.Equal(t, "netspeed.csv.0", entries[1].Name)
	assert.False(t, entries[1].IsCurrent)
	assert.Equal(t, "netspeed.csv_bak", entries[4].Name)
}

func TestServiceCurrentInfo(t *testing.T) {
	root := writeTree(t)
	svc := newTestService(t, root)

	info, err := svc.CurrentInfo()
	require.NoError(t, err)
	assert.True(t, info.Success)
	assert.Equal(t, 2, info.LineCount)
	assert.False(t, info.UsingFallback)
	assert.Empty(t, info.FallbackFile)
}

func TestServiceCurrentInfoFallback(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "history", "netspeed"), 0o755))
	rotation := filepath.Join(root, "history", "netspeed", "netspeed.csv.0")
	require.NoError(t, os.WriteFile(rotation, []byte(testCSV), 0o644))

	svc := newTestService(t, root)
	info, err := svc.CurrentInfo()
	require.NoError(t, err)
	assert.True(t, info.UsingFallback)
	assert.Equal(t, "netspeed.csv.0", info.FallbackFile)

	// Nothing at all discoverable is an error for the handler to map.
	empty := newTestService(t, t.TempDir())
	_, err = empty.CurrentInfo()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServicePreview(t *testing.T) {
	root := writeTree(t)
	svc := newTestService(t, root)

	preview, err := svc.PreviewFile(0, "", "")
	require.NoError(t, err)
	assert.True(t, preview.Success)
	assert.Equal(t, "netspeed.csv", preview.FileName)
	require.Len(t, preview.Data, 2)
	require.NotEmpty(t, preview.Headers)
	assert.Equal(t, netspeed.FieldRowNumber, preview.Headers[0])
	assert.Equal(t, netspeed.FieldFileName, preview.Headers[1])

	// Rows align with headers.
	byName := make(map[string]string, len(preview.Headers))
	for i, h := range preview.Headers {
		byName[h] = preview.Data[0][i]
	}
	assert.Equal(t, "+4960213981023", byName[netspeed.FieldLineNumber])

	limited, err := svc.PreviewFile(1, "", "")
	require.NoError(t, err)
	assert.Len(t, limited.Data, 1)
}

func TestServicePreviewLocationFilter(t *testing.T) {
	root := writeTree(t)
	svc := newTestService(t, root)

	abx, err := svc.PreviewFile(0, "", "ABX01")
	require.NoError(t, err)
	assert.Len(t, abx.Data, 1)

	nue, err := svc.PreviewFile(0, "", "NUE")
	require.NoError(t, err)
	assert.Len(t, nue.Data, 1)

	none, err := svc.PreviewFile(0, "", "MUC")
	require.NoError(t, err)
	assert.Empty(t, none.Data)
}

func TestServicePreviewNamedFile(t *testing.T) {
	root := writeTree(t)
	svc := newTestService(t, root)

	preview, err := svc.PreviewFile(0, "netspeed.csv.1", "")
	require.NoError(t, err)
	assert.Equal(t, "netspeed.csv.1", preview.FileName)

	_, err = svc.PreviewFile(0, "netspeed.csv.9", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceColumns(t *testing.T) {
	svc := newTestService(t, t.TempDir())
	cols := svc.Columns()
	require.Len(t, cols, len(netspeed.CanonicalHeaders()))
	assert.Equal(t, "ip_address", cols[0].ID)
	assert.Equal(t, "IP Address", cols[0].Label)
	assert.True(t, cols[0].Enabled)
}

func TestServiceResolveDownload(t *testing.T) {
	root := writeTree(t)
	svc := newTestService(t, root)

	path, err := svc.ResolveDownload("netspeed.csv.1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "history", "netspeed", "netspeed.csv.1"), path)

	for _, bad := range []string{
		"../netspeed.csv",
		"netspeed.csv/../secret",
		"other.csv",
		"netspeed_20250814-060000.csv",
		"netspeed.csv.9",
	} {
		_, err := svc.ResolveDownload(bad)
		assert.Error(t, err, "expected rejection for %q", bad)
	}
}

func TestCountLines(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "a.csv")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644))
	n, err := countLines(path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// A missing final newline still counts the last line.
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo"), 0o644))
	n, err = countLines(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, os.WriteFile(path, nil, 0o644))
	n, err = countLines(path)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
