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

package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoneinv/netspeed/internal/config"
)

func TestRebuildTaskCarriesIdentity(t *testing.T) {
	task, err := NewRebuildTask("task-123", "watcher")
	require.NoError(t, err)
	assert.Equal(t, TypeIndexRebuild, task.Type())

	var p RebuildPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, "task-123", p.TaskID)
	assert.Equal(t, "watcher", p.Trigger)
}

func TestSnapshotTaskEmptyFileMeansCurrent(t *testing.T) {
	task, err := NewMinimalSnapshotTask("")
	require.NoError(t, err)
	assert.Equal(t, TypeStatsMinimal, task.Type())
	assert.JSONEq(t, `{}`, string(task.Payload()))
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := New(nil, &config.Config{RedisURL: "not a url"})
	assert.Error(t, err)
}

func TestTaskLiveEmptyID(t *testing.T) {
	c, err := New(nil, &config.Config{RedisURL: "redis://localhost:6379/0"})
	require.NoError(t, err)
	defer c.Close()

	// Short-circuits before touching the broker.
	assert.False(t, c.TaskLive(""))
}
