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

package citymap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCityFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLookupKnownCode(t *testing.T) {
	dir := t.TempDir()
	writeCityFile(t, dir, "code,name\nMUC,München\nNUE,Nürnberg\n")

	m := New(nil, dir)
	assert.Equal(t, "München", m.Lookup("MUC"))
	assert.Equal(t, "Nürnberg", m.Lookup("NUE"))
}

func TestLookupNormalizesInput(t *testing.T) {
	dir := t.TempDir()
	writeCityFile(t, dir, "code,name\nmuc,München\n")

	m := New(nil, dir)
	assert.Equal(t, "München", m.Lookup("muc"))
	assert.Equal(t, "München", m.Lookup("  MUC  "))
}

func TestLookupUnknownCodeFallsBack(t *testing.T) {
	dir := t.TempDir()
	writeCityFile(t, dir, "code,name\nMUC,München\n")

	m := New(nil, dir)
	assert.Equal(t, "ABX", m.Lookup("ABX"))
}

func TestLookupWithoutFile(t *testing.T) {
	m := New(nil, t.TempDir())
	assert.Equal(t, "MUC", m.Lookup("MUC"))
	assert.Empty(t, m.All())
}

func TestReloadOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeCityFile(t, dir, "code,name\nMUC,München\n")

	m := New(nil, dir)
	require.Equal(t, "München", m.Lookup("MUC"))

	writeCityFile(t, dir, "code,name\nMUC,Munich\nAUG,Augsburg\n")
	// mtime granularity can swallow back-to-back writes; force a distinct stamp.
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Equal(t, "Munich", m.Lookup("MUC"))
	assert.Equal(t, "Augsburg", m.Lookup("AUG"))
}

func TestSkipsMalformedRows(t *testing.T) {
	dir := t.TempDir()
	writeCityFile(t, dir, "code,name\nMUC,München\nTOOLONG,Nowhere\nXX,Short\nNUE,\n")

	m := New(nil, dir)
	all := m.All()
	assert.Equal(t, map[string]string{"MUC": "München"}, all)
}

func TestAllReturnsCopy(t *testing.T) {
	dir := t.TempDir()
	writeCityFile(t, dir, "code,name\nMUC,München\n")

	m := New(nil, dir)
	all := m.All()
	all["MUC"] = "mutated"
	assert.Equal(t, "München", m.Lookup("MUC"))
}
