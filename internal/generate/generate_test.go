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

package generate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoneinv/netspeed/internal/normalize"
	"github.com/phoneinv/netspeed/pkg/netspeed"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func run(t *testing.T, opts Options) (*Result, string) {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	res, err := New(testLogger(), opts).Run(context.Background())
	require.NoError(t, err)
	return res, opts.Dir
}

func firstLine(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	nl := bytes.IndexByte(data, '\n')
	require.Positive(t, nl, "file %s has no rows", path)
	return string(data[:nl])
}

func TestRunWritesFileSet(t *testing.T) {
	base := time.Now().Truncate(time.Second)
	res, dir := run(t, Options{Phones: 40, Rotations: 6, Seed: 7, BaseTime: base})

	want := []string{
		"netspeed.csv",
		"netspeed.csv.1", "netspeed.csv.2", "netspeed.csv.3",
		"netspeed.csv.4", "netspeed.csv.5", "netspeed.csv.6",
	}
	assert.Equal(t, want, res.Files)
	assert.GreaterOrEqual(t, res.Rows, 40)

	// Each rotation carries the column layout of its era.
	columns := map[string]int{
		"netspeed.csv":   16,
		"netspeed.csv.1": 16,
		"netspeed.csv.2": 15,
		"netspeed.csv.3": 14,
		"netspeed.csv.4": 14,
		"netspeed.csv.5": 11,
		"netspeed.csv.6": 11,
	}
	for name, cols := range columns {
		line := firstLine(t, filepath.Join(dir, name))
		assert.Len(t, strings.Split(line, ";"), cols, "columns of %s", name)
	}

	info, err := os.Stat(filepath.Join(dir, "netspeed.csv.3"))
	require.NoError(t, err)
	assert.WithinDuration(t, base.Add(-3*24*time.Hour), info.ModTime(), 2*time.Second)
}

func TestRunDeterministic(t *testing.T) {
	opts := Options{Phones: 60, Rotations: 3, Seed: 42, BaseTime: time.Now()}

	res1, dir1 := run(t, opts)
	_, dir2 := run(t, opts)
	for _, name := range res1.Files {
		a, err := os.ReadFile(filepath.Join(dir1, name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(dir2, name))
		require.NoError(t, err)
		assert.Equal(t, a, b, "file %s differs between equal seeds", name)
	}

	opts.Seed = 43
	_, dir3 := run(t, opts)
	a, err := os.ReadFile(filepath.Join(dir1, "netspeed.csv"))
	require.NoError(t, err)
	c, err := os.ReadFile(filepath.Join(dir3, "netspeed.csv"))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestGeneratedRowsSurviveNormalization(t *testing.T) {
	res, dir := run(t, Options{Phones: 400, Rotations: -1, Seed: 1})
	require.Equal(t, []string{"netspeed.csv"}, res.Files)

	n := normalize.New(testLogger(), normalize.Options{})
	parsed, err := n.File(filepath.Join(dir, "netspeed.csv"))
	require.NoError(t, err)

	assert.Zero(t, parsed.Stats.FailedRows)
	assert.Zero(t, parsed.Stats.EmptyRows)
	assert.Equal(t, res.Rows, len(parsed.Rows))
	assert.GreaterOrEqual(t, len(parsed.Rows), 400)

	// Duplicate rows collapse back to the fleet size.
	assert.Len(t, normalize.Dedupe(parsed.Rows), 400)

	kems, jva, justiz, padded := 0, 0, 0, 0
	for _, rec := range parsed.Rows {
		require.Regexp(t, `^10\.\d+\.\d+\.\d+$`, rec[netspeed.FieldIPAddress])
		require.Regexp(t, `^\+49\d{8,}$`, rec[netspeed.FieldLineNumber])
		require.Regexp(t, `^[A-Z][A-Z0-9]{10}$`, rec[netspeed.FieldSerialNumber])
		require.Regexp(t, `^(CP|DP)-\d{4}$`, rec[netspeed.FieldModelName])
		require.Regexp(t, `^[0-9A-F]{12}$`, rec[netspeed.FieldMACAddress])
		require.Equal(t, "SEP"+rec[netspeed.FieldMACAddress], rec[netspeed.FieldMACAddress2])
		require.Equal(t, "255.255.255.0", rec[netspeed.FieldSubnetMask])
		require.Regexp(t, `^\d{3}$`, rec[netspeed.FieldVoiceVLAN])
		require.Contains(t, []string{"1000", "100", "auto", ""}, rec[netspeed.FieldSpeed1])
		require.Regexp(t, `^GigabitEthernet1/0/\d+$`, rec[netspeed.FieldSwitchPort])

		host := rec[netspeed.FieldSwitchHostname]
		require.True(t, strings.HasSuffix(host, ".juwin.bayern.de"), "hostname %q", host)
		loc, ok := netspeed.ExtractLocation(host)
		require.True(t, ok, "no location in %q", host)
		require.Len(t, loc, 5)

		if rec[netspeed.FieldKEM] != "" {
			kems++
		}
		switch netspeed.ClassifyHostname(host) {
		case netspeed.ClassJVA:
			jva++
		default:
			justiz++
		}
		if strings.HasPrefix(host, "ABX") || strings.HasPrefix(host, "HOX") {
			padded++
		}
	}
	assert.Positive(t, kems, "no KEM phones generated")
	assert.Positive(t, jva, "no JVA switches generated")
	assert.Positive(t, justiz, "no Justiz switches generated")
	assert.Positive(t, padded, "no padded city codes generated")
}

func TestRotationsShrinkAndAge(t *testing.T) {
	base := time.Now().Truncate(time.Second)
	_, dir := run(t, Options{Phones: 40, Rotations: 6, Seed: 9, BaseTime: base})

	n := normalize.New(testLogger(), normalize.Options{})
	wantRows := []int{38, 35, 32, 29, 26, 23}
	for i := 1; i <= 6; i++ {
		name := fmt.Sprintf("netspeed.csv.%d", i)
		parsed, err := n.File(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Len(t, parsed.Rows, wantRows[i-1], "rows of %s", name)

		wantDate := base.AddDate(0, 0, -i).Format(netspeed.DateFormat)
		assert.Equal(t, wantDate, parsed.Rows[0][netspeed.FieldCreationDate], "date of %s", name)
	}

	// The oldest layout predates the KEM and second MAC columns.
	parsed, err := n.File(filepath.Join(dir, "netspeed.csv.6"))
	require.NoError(t, err)
	for _, rec := range parsed.Rows {
		assert.Empty(t, rec[netspeed.FieldMACAddress2])
		assert.Empty(t, rec[netspeed.FieldKEM])
	}
}

func TestOlderRotationsRelease(t *testing.T) {
	fleet := []phone{{ip: "10.16.0.10"}, {ip: "10.16.0.11"}, {ip: "10.16.0.12"}, {ip: "10.16.0.13"}}
	older := olderFleet(fleet, 1, 1, 5)
	assert.Len(t, older, 3)
	// The source fleet is never mutated.
	assert.Equal(t, "10.16.0.10", fleet[0].ip)
}

func TestVariantFor(t *testing.T) {
	assert.Equal(t, 16, variantFor(1))
	assert.Equal(t, 15, variantFor(2))
	assert.Equal(t, 14, variantFor(3))
	assert.Equal(t, 14, variantFor(4))
	assert.Equal(t, 11, variantFor(5))
	assert.Equal(t, 11, variantFor(9))
}

func TestRunRequiresDir(t *testing.T) {
	_, err := New(testLogger(), Options{Phones: 5}).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output directory")
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	_, err := New(testLogger(), Options{Dir: dir, Phones: 5}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
