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

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/phoneinv/netspeed/internal/files"
	"github.com/phoneinv/netspeed/internal/ingest"
	"github.com/phoneinv/netspeed/internal/normalize"
	"github.com/phoneinv/netspeed/internal/queue"
	"github.com/phoneinv/netspeed/internal/search"
	"github.com/phoneinv/netspeed/internal/state"
	"github.com/phoneinv/netspeed/internal/stats"
	"github.com/spf13/cobra"
)

var (
	reindexCurrentOnly bool
	reindexClean       bool
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search indices from the CSV exports",
	Long: `Reindex runs a full rebuild in the foreground: every export file is
normalized and indexed, and the statistics archive is brought up to date.
It shares the progress state with a running service, so it refuses to start
while another rebuild is active.

With --current-only, only the current export is reindexed. With --clean,
stale per-file indices are dropped first.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)

	reindexCmd.Flags().BoolVar(&reindexCurrentOnly, "current-only", false,
		"Only reindex the current export file")
	reindexCmd.Flags().BoolVar(&reindexClean, "clean", false,
		"Drop stale per-file indices before rebuilding")
}

func runReindex(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := InitLogger(cfg.LogLevel, cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	norm := normalize.New(logger, normalize.Options{})
	searchNorm := normalize.New(logger, normalize.Options{MergeKEMDisplay: true})

	driver, err := search.New(logger, cfg, searchNorm)
	if err != nil {
		return fmt.Errorf("search driver: %w", err)
	}
	if cfg.EngineWait {
		if err := driver.WaitReady(ctx); err != nil {
			return fmt.Errorf("wait for search engine: %w", err)
		}
	}

	resolver := files.NewResolver(logger, cfg.Roots())
	statsEngine := stats.NewEngine(logger, cfg, driver)
	store := state.NewStore(logger, cfg.StateDir, cfg.RedisURL, cfg.EngineURL())

	// The broker is only consulted to judge whether a recorded rebuild is
	// still alive; a one-shot run never enqueues.
	qc, err := queue.New(logger, cfg)
	if err != nil {
		return fmt.Errorf("queue client: %w", err)
	}
	defer func() {
		if err := qc.Close(); err != nil {
			logger.Warn("closing queue client", "error", err)
		}
	}()

	ctrl := ingest.NewController(logger, cfg, resolver, norm, store, driver, statsEngine, qc)
	defer ctrl.Close()

	if reindexClean {
		deleted, err := driver.CleanupNetspeedIndices(ctx)
		if err != nil {
			return fmt.Errorf("clean up per-file indices: %w", err)
		}
		logger.Info("dropped stale indices", "count", deleted)
	}

	taskID := uuid.NewString()
	if reindexCurrentOnly {
		if err := ctrl.ReindexCurrent(ctx, taskID); err != nil {
			return fmt.Errorf("reindex current export: %w", err)
		}
		logger.Info("current export reindexed", "task_id", taskID)
		return nil
	}
	if err := ctrl.RebuildAll(ctx, taskID, "cli"); err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}
	logger.Info("rebuild complete", "task_id", taskID)
	return nil
}
