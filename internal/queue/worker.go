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
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/phoneinv/netspeed/internal/config"
)

// Handler is the work the queue delegates back to the orchestrator. The
// ingest controller implements it.
type Handler interface {
	RebuildAll(ctx context.Context, taskID, trigger string) error
	ReindexCurrent(ctx context.Context, taskID string) error
	SnapshotMinimal(ctx context.Context, file string) error
	SnapshotDetailed(ctx context.Context, file string) error
	BackupFile(ctx context.Context, path string) error
	RebuildStats(ctx context.Context, directory string) error
}

// Worker consumes netspeed tasks. Concurrency is pinned to one so index
// writes never interleave.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// NewWorker builds a worker bound to the broker named by REDIS_URL.
func NewWorker(logger *slog.Logger, cfg *config.Config, h Handler) (*Worker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "worker")

	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{QueueName: 1},
		Logger:      slogAdapter{logger},
		LogLevel:    asynq.InfoLevel,
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeIndexRebuild, func(ctx context.Context, t *asynq.Task) error {
		var p RebuildPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("failed to decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		return h.RebuildAll(ctx, p.TaskID, p.Trigger)
	})
	mux.HandleFunc(TypeIndexCurrent, func(ctx context.Context, t *asynq.Task) error {
		var p ReindexCurrentPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("failed to decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		return h.ReindexCurrent(ctx, p.TaskID)
	})
	mux.HandleFunc(TypeStatsMinimal, func(ctx context.Context, t *asynq.Task) error {
		var p SnapshotPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("failed to decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		return h.SnapshotMinimal(ctx, p.File)
	})
	mux.HandleFunc(TypeStatsDetailed, func(ctx context.Context, t *asynq.Task) error {
		var p SnapshotPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("failed to decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		return h.SnapshotDetailed(ctx, p.File)
	})
	mux.HandleFunc(TypeFilesBackup, func(ctx context.Context, t *asynq.Task) error {
		var p BackupPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("failed to decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		return h.BackupFile(ctx, p.Path)
	})
	mux.HandleFunc(TypeStatsRebuild, func(ctx context.Context, t *asynq.Task) error {
		var p StatsRebuildPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("failed to decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		return h.RebuildStats(ctx, p.Directory)
	})

	return &Worker{server: server, mux: mux, logger: logger}, nil
}

// Start launches the worker loop in the background.
func (w *Worker) Start() error {
	w.logger.Info("queue worker starting", "queue", QueueName)
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start queue worker: %w", err)
	}
	return nil
}

// Shutdown drains in-flight tasks and stops the worker.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
	w.logger.Info("queue worker stopped")
}

// slogAdapter bridges asynq's logger interface onto slog.
type slogAdapter struct {
	l *slog.Logger
}

func (a slogAdapter) Debug(args ...interface{}) { a.l.Debug(fmt.Sprint(args...)) }
func (a slogAdapter) Info(args ...interface{})  { a.l.Info(fmt.Sprint(args...)) }
func (a slogAdapter) Warn(args ...interface{})  { a.l.Warn(fmt.Sprint(args...)) }
func (a slogAdapter) Error(args ...interface{}) { a.l.Error(fmt.Sprint(args...)) }
func (a slogAdapter) Fatal(args ...interface{}) { a.l.Error(fmt.Sprint(args...)) }
