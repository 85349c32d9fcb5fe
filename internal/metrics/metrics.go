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

// Package metrics defines the Prometheus instruments shared across the
// service. Instruments are registered at import time via promauto; handlers
// expose them through promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentsIndexed counts rows successfully written to per-file indices.
	DocumentsIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netspeed_documents_indexed_total",
		Help: "Rows successfully bulk-indexed into per-file indices.",
	})

	// BulkFailures counts rows rejected by the engine during bulk indexing.
	BulkFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netspeed_bulk_failures_total",
		Help: "Rows rejected by the engine during bulk indexing.",
	})

	// ParseFailures counts CSV rows dropped by the normalizer.
	ParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netspeed_parse_failures_total",
		Help: "CSV rows dropped because no field could be recognized.",
	})

	// SearchDuration observes planner round trips by detected intent.
	SearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netspeed_search_duration_seconds",
		Help:    "Search round-trip latency by detected query intent.",
		Buckets: prometheus.DefBuckets,
	}, []string{"intent"})

	// Rebuilds counts full rebuild runs by terminal status.
	Rebuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netspeed_rebuilds_total",
		Help: "Full index rebuild runs by terminal status.",
	}, []string{"status"})

	// WatcherEvents counts filesystem events that matched the name taxonomy.
	WatcherEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netspeed_watcher_events_total",
		Help: "Filesystem events accepted by the netspeed name filter.",
	})

	// SnapshotWrites counts statistics snapshot persists by kind.
	SnapshotWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netspeed_snapshot_writes_total",
		Help: "Statistics snapshot writes by kind (minimal, detailed, archive).",
	}, []string{"kind"})

	// CacheEvents counts stats cache operations by outcome.
	CacheEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netspeed_stats_cache_events_total",
		Help: "Statistics cache operations by outcome (hit, miss, clear).",
	}, []string{"outcome"})

	// HTTPDuration observes request handling latency by method and route
	// template. Templates, not raw paths, keep the cardinality bounded.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netspeed_http_request_duration_seconds",
		Help:    "HTTP request handling latency by method and route template.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)
