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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/phoneinv/netspeed/internal/config"
)

// statsRebuildTaskID deduplicates concurrent stats rebuild requests: a second
// enqueue while one is pending collapses onto the queued task.
const statsRebuildTaskID = "stats-rebuild"

// Client enqueues tasks and inspects their state. Enqueue errors are returned
// to the caller so the orchestrator can decide between queueing and running
// inline.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	redis     *redis.Client
	logger    *slog.Logger
}

// New connects a queue client to the broker named by REDIS_URL. The broker
// is not contacted here; the first enqueue or ping does that.
func New(logger *slog.Logger, cfg *config.Config) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	ropt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		redis:     redis.NewClient(ropt),
		logger:    logger.With("component", "queue"),
	}, nil
}

// Ping checks broker reachability for health reports.
func (c *Client) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close releases all broker connections.
func (c *Client) Close() error {
	err := c.client.Close()
	if cerr := c.inspector.Close(); err == nil {
		err = cerr
	}
	if cerr := c.redis.Close(); err == nil {
		err = cerr
	}
	return err
}

// EnqueueRebuild queues a full index rebuild under the given task id.
func (c *Client) EnqueueRebuild(ctx context.Context, taskID, trigger string) error {
	task, err := NewRebuildTask(taskID, trigger)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task,
		asynq.TaskID(taskID),
		asynq.MaxRetry(1),
		asynq.Timeout(30*time.Minute),
		asynq.Retention(24*time.Hour))
}

// EnqueueReindexCurrent queues a reindex of the current file.
func (c *Client) EnqueueReindexCurrent(ctx context.Context, taskID string) error {
	task, err := NewReindexCurrentTask(taskID)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task,
		asynq.TaskID(taskID),
		asynq.MaxRetry(1),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(24*time.Hour))
}

// EnqueueMinimalSnapshot queues a minimal stats snapshot for a file.
func (c *Client) EnqueueMinimalSnapshot(ctx context.Context, file string) error {
	task, err := NewMinimalSnapshotTask(file)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, asynq.MaxRetry(3), asynq.Timeout(5*time.Minute))
}

// EnqueueDetailedSnapshot queues a detailed stats snapshot for a file.
func (c *Client) EnqueueDetailedSnapshot(ctx context.Context, file string) error {
	task, err := NewDetailedSnapshotTask(file)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, asynq.MaxRetry(3), asynq.Timeout(5*time.Minute))
}

// EnqueueBackup queues a backup copy of a file.
func (c *Client) EnqueueBackup(ctx context.Context, path string) error {
	task, err := NewBackupTask(path)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, asynq.MaxRetry(3), asynq.Timeout(2*time.Minute))
}

// EnqueueStatsRebuild queues a stats rebuild, collapsing onto an already
// queued one. The returned id names the pending task either way.
func (c *Client) EnqueueStatsRebuild(ctx context.Context, directory string) (string, error) {
	task, err := NewStatsRebuildTask(directory)
	if err != nil {
		return "", err
	}
	err = c.enqueue(ctx, task,
		asynq.TaskID(statsRebuildTaskID),
		asynq.MaxRetry(1),
		asynq.Timeout(30*time.Minute))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		c.logger.Info("stats rebuild already queued", "task_id", statsRebuildTaskID)
		return statsRebuildTaskID, nil
	}
	if err != nil {
		return "", err
	}
	return statsRebuildTaskID, nil
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	opts = append(opts, asynq.Queue(QueueName))
	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", task.Type(), err)
	}
	c.logger.Debug("task enqueued", "type", task.Type(), "task_id", info.ID)
	return nil
}

// TaskLive reports whether a task id is still pending or running. Unknown
// ids and broker errors read as not live; callers treat that as stale.
func (c *Client) TaskLive(id string) bool {
	if id == "" {
		return false
	}
	info, err := c.inspector.GetTaskInfo(QueueName, id)
	if err != nil {
		return false
	}
	switch info.State {
	case asynq.TaskStateActive, asynq.TaskStatePending, asynq.TaskStateScheduled, asynq.TaskStateRetry:
		return true
	default:
		return false
	}
}
