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

package search

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoneinv/netspeed/internal/config"
	"github.com/phoneinv/netspeed/internal/files"
	"github.com/phoneinv/netspeed/pkg/netspeed"
)

func mustParse(t *testing.T, name string) netspeed.FileInfo {
	t.Helper()
	info, ok := netspeed.ParseFileName(name)
	require.True(t, ok, name)
	return info
}

func testConfig() *config.Config {
	return &config.Config{
		EngineURLs:            []string{"http://localhost:9200"},
		EngineWait:            false,
		EngineStartupTimeout:  time.Second,
		EngineStartupPoll:     time.Second,
		SearchTimeout:         20 * time.Second,
		SearchMaxResults:      5000,
		ArchiveRetentionYears: 4,
	}
}

func TestNewDriver(t *testing.T) {
	d, err := New(nil, testConfig(), nil)
	require.NoError(t, err)
	require.NotNil(t, d)
}

func TestClassifyErrors(t *testing.T) {
	d := &Driver{cfg: testConfig()}

	err := d.classify(context.DeadlineExceeded)
	assert.True(t, errors.Is(err, ErrTimeout))

	err = d.classify(&net.OpError{Op: "dial", Err: errors.New("connection refused")})
	assert.True(t, errors.Is(err, ErrUnavailable))

	plain := errors.New("mapping parse error")
	assert.Equal(t, plain, d.classify(plain))

	assert.NoError(t, d.classify(nil))
}

func TestCurrentIndexSelection(t *testing.T) {
	layoutFor := func(name string) *files.Layout {
		if name == "" {
			return &files.Layout{}
		}
		return &files.Layout{Current: &files.File{FileInfo: mustParse(t, name)}}
	}

	t.Run("matches current file", func(t *testing.T) {
		infos := []IndexInfo{
			{Name: "netspeed_csv_2"},
			{Name: "netspeed_csv"},
		}
		name, ok := currentIndex(infos, layoutFor("netspeed.csv"))
		require.True(t, ok)
		assert.Equal(t, "netspeed_csv", name)
	})

	t.Run("falls back to newest name timestamp", func(t *testing.T) {
		infos := []IndexInfo{
			{Name: "netspeed_20250810-070000_csv"},
			{Name: "netspeed_20250816-120000_csv"},
			{Name: "netspeed_csv_3"},
		}
		name, ok := currentIndex(infos, layoutFor(""))
		require.True(t, ok)
		assert.Equal(t, "netspeed_20250816-120000_csv", name)
	})

	t.Run("falls back to newest creation time", func(t *testing.T) {
		now := time.Now()
		infos := []IndexInfo{
			{Name: "netspeed_csv_9", Created: now},
			{Name: "netspeed_csv_1", Created: now.Add(-time.Hour)},
		}
		name, ok := currentIndex(infos, layoutFor(""))
		require.True(t, ok)
		assert.Equal(t, "netspeed_csv_9", name)
	})

	t.Run("empty family", func(t *testing.T) {
		_, ok := currentIndex(nil, layoutFor("netspeed.csv"))
		assert.False(t, ok)
	})
}
