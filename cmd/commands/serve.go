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
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/phoneinv/netspeed/internal/citymap"
	"github.com/phoneinv/netspeed/internal/files"
	"github.com/phoneinv/netspeed/internal/ingest"
	"github.com/phoneinv/netspeed/internal/normalize"
	"github.com/phoneinv/netspeed/internal/queue"
	"github.com/phoneinv/netspeed/internal/search"
	"github.com/phoneinv/netspeed/internal/server"
	"github.com/phoneinv/netspeed/internal/state"
	"github.com/phoneinv/netspeed/internal/stats"
	"github.com/phoneinv/netspeed/pkg/version"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the netspeed HTTP service",
	Long: `Serve starts the full netspeed service: the REST API, the directory
watcher and periodic rescan that pick up rotated exports, the task worker
that runs index rebuilds, and the snapshot engine that maintains the
statistics archive.

Configuration comes from the environment (a .env file in the working
directory is honored). The service keeps running until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "0.0.0.0",
		"Address to listen on")
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"Port to listen on (overrides BACKEND_PORT)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}
	logger := InitLogger(cfg.LogLevel, cfg.LogFile)

	logger.Info("starting netspeed",
		"version", version.Version,
		"config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The search driver gets its own normalizer with the legacy display
	// merge: indexed documents carry KEM tokens in the line number the way
	// the old exports printed them. Previews and snapshots keep the raw
	// columns.
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
	fileSvc := files.NewService(logger, resolver, norm)
	statsEngine := stats.NewEngine(logger, cfg, driver)
	store := state.NewStore(logger, cfg.StateDir, cfg.RedisURL, cfg.EngineURL())

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

	worker, err := queue.NewWorker(logger, cfg, ctrl)
	if err != nil {
		return fmt.Errorf("queue worker: %w", err)
	}
	if err := worker.Start(); err != nil {
		return fmt.Errorf("start queue worker: %w", err)
	}

	watcher, err := ingest.NewWatcher(logger, cfg.Roots(), ctrl)
	if err != nil {
		worker.Shutdown()
		return fmt.Errorf("directory watcher: %w", err)
	}

	srv := server.NewServer(logger, cfg, server.Services{
		Files:  fileSvc,
		Search: driver,
		Stats:  statsEngine,
		Ingest: ctrl,
		Broker: qc,
		Cities: citymap.New(logger, cfg.DataDir),
	})

	httpServer := &http.Server{
		Addr:    net.JoinHostPort(serveHost, strconv.Itoa(cfg.Port)),
		Handler: srv,
		// Searches may legitimately run up to the configured timeout, so
		// the write deadline sits above it.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.SearchTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watcher.Run(gctx)
	})

	g.Go(func() error {
		// Catch up on anything that rotated while the service was down,
		// then fall into the periodic rescan.
		ctrl.ScanOnce(gctx)
		return ctrl.RunScan(gctx)
	})

	g.Go(func() error {
		logger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		worker.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", "error", err)
		}
		return watcher.Close()
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}
