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

// Package search talks to the engine: index lifecycle, bulk ingestion and
// the intent-driven query planner. One Driver per process; it is safe for
// concurrent use.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/phoneinv/netspeed/internal/config"
	"github.com/phoneinv/netspeed/internal/normalize"
)

var (
	// ErrUnavailable means the engine did not answer and waiting is either
	// disabled or exhausted. Maps to HTTP 503 at the API boundary.
	ErrUnavailable = errors.New("search engine unavailable")

	// ErrTimeout means a query exceeded the configured search timeout.
	// Maps to HTTP 504 at the API boundary.
	ErrTimeout = errors.New("search timed out")
)

// Driver wraps the engine client. All index names flow through here.
type Driver struct {
	client *opensearch.Client
	cfg    *config.Config
	norm   *normalize.Normalizer
	logger *slog.Logger
}

// New builds a Driver from the configured endpoints. It does not touch the
// network; call WaitReady before the first operation.
func New(logger *slog.Logger, cfg *config.Config, norm *normalize.Normalizer) (*Driver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	oc := opensearch.Config{
		Addresses: cfg.EngineURLs,
	}
	if cfg.EnginePassword != "" {
		oc.Username = "admin"
		oc.Password = cfg.EnginePassword
	}
	client, err := opensearch.NewClient(oc)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine client: %w", err)
	}
	return &Driver{
		client: client,
		cfg:    cfg,
		norm:   norm,
		logger: logger.With("component", "search"),
	}, nil
}

// Ping reports whether the engine answers at all.
func (d *Driver) Ping(ctx context.Context) error {
	res, err := opensearchapi.PingRequest{}.Do(ctx, d.client)
	if err != nil {
		return d.classify(err)
	}
	defer drain(res)
	if res.IsError() {
		return fmt.Errorf("%w: ping returned %s", ErrUnavailable, res.Status())
	}
	return nil
}

// WaitReady blocks until the engine answers a ping, honoring the configured
// grace period and poll interval. With waiting disabled it pings exactly once.
func (d *Driver) WaitReady(ctx context.Context) error {
	if !d.cfg.EngineWait {
		if err := d.Ping(ctx); err != nil {
			return fmt.Errorf("%w: engine down and waiting disabled", ErrUnavailable)
		}
		return nil
	}

	deadline := time.Now().Add(d.cfg.EngineStartupTimeout)
	for {
		err := d.Ping(ctx)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: no answer within %s", ErrUnavailable, d.cfg.EngineStartupTimeout)
		}
		d.logger.Info("waiting for engine", "poll", d.cfg.EngineStartupPoll, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.cfg.EngineStartupPoll):
		}
	}
}

// Hit is one search result document.
type Hit struct {
	Index  string
	ID     string
	Source map[string]any
}

// QueryResult is the decoded body of one search round trip.
type QueryResult struct {
	Took  int64
	Total int64
	Hits  []Hit
}

// Query runs a raw search body against the given indices. Missing indices
// are tolerated so wildcard and fallback selections never fail spuriously.
func (d *Driver) Query(ctx context.Context, indices []string, body any) (*QueryResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	req := opensearchapi.SearchRequest{
		Index:             indices,
		Body:              bytes.NewReader(payload),
		IgnoreUnavailable: boolPtr(true),
		AllowNoIndices:    boolPtr(true),
	}
	res, err := req.Do(ctx, d.client)
	if err != nil {
		return nil, d.classify(err)
	}
	defer drain(res)
	if res.IsError() {
		return nil, fmt.Errorf("search failed: %s: %s", res.Status(), firstErrorLine(res.Body))
	}

	var envelope struct {
		Took int64 `json:"took"`
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Index  string         `json:"_index"`
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	out := &QueryResult{Took: envelope.Took, Total: envelope.Hits.Total.Value}
	out.Hits = make([]Hit, 0, len(envelope.Hits.Hits))
	for _, h := range envelope.Hits.Hits {
		out.Hits = append(out.Hits, Hit{Index: h.Index, ID: h.ID, Source: h.Source})
	}
	return out, nil
}

// PutDoc writes one document by id, refreshing so readers see it immediately.
// Snapshot writers rely on the deterministic ids for overwrite semantics.
func (d *Driver) PutDoc(ctx context.Context, index, id string, doc any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	req := opensearchapi.IndexRequest{
		Index:      index,
		DocumentID: id,
		Body:       bytes.NewReader(payload),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, d.client)
	if err != nil {
		return d.classify(err)
	}
	defer drain(res)
	if res.IsError() {
		return fmt.Errorf("failed to index document %s/%s: %s", index, id, res.Status())
	}
	return nil
}

// GetDoc fetches one document by id. The second return value is false when
// the document or its index does not exist.
func (d *Driver) GetDoc(ctx context.Context, index, id string) (map[string]any, bool, error) {
	req := opensearchapi.GetRequest{Index: index, DocumentID: id}
	res, err := req.Do(ctx, d.client)
	if err != nil {
		return nil, false, d.classify(err)
	}
	defer drain(res)
	if res.StatusCode == 404 {
		return nil, false, nil
	}
	if res.IsError() {
		return nil, false, fmt.Errorf("failed to get document %s/%s: %s", index, id, res.Status())
	}
	var envelope struct {
		Found  bool           `json:"found"`
		Source map[string]any `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, false, fmt.Errorf("failed to decode get response: %w", err)
	}
	if !envelope.Found {
		return nil, false, nil
	}
	return envelope.Source, true, nil
}

// DeleteByQuery removes every document matching body from index. A missing
// index is not an error.
func (d *Driver) DeleteByQuery(ctx context.Context, index string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode delete query: %w", err)
	}
	req := opensearchapi.DeleteByQueryRequest{
		Index:     []string{index},
		Body:      bytes.NewReader(payload),
		Conflicts: "proceed",
	}
	res, err := req.Do(ctx, d.client)
	if err != nil {
		return d.classify(err)
	}
	defer drain(res)
	if res.StatusCode == 404 {
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("delete by query on %s failed: %s", index, res.Status())
	}
	return nil
}

// Refresh makes recent writes visible to search.
func (d *Driver) Refresh(ctx context.Context, indices ...string) error {
	req := opensearchapi.IndicesRefreshRequest{
		Index:             indices,
		IgnoreUnavailable: boolPtr(true),
		AllowNoIndices:    boolPtr(true),
	}
	res, err := req.Do(ctx, d.client)
	if err != nil {
		return d.classify(err)
	}
	defer drain(res)
	if res.IsError() {
		return fmt.Errorf("refresh failed: %s", res.Status())
	}
	return nil
}

// classify folds transport-level failures into the two sentinel errors the
// API layer maps to status codes.
func (d *Driver) classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if strings.Contains(err.Error(), "connection refused") || strings.Contains(err.Error(), "no such host") {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

// drain consumes and closes a response body so the transport can reuse the
// connection.
func drain(res *opensearchapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
}

// firstErrorLine pulls a short reason out of an engine error body.
func firstErrorLine(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 2048))
	if err != nil || len(raw) == 0 {
		return "no detail"
	}
	var envelope struct {
		Error struct {
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Reason != "" {
		return envelope.Error.Reason
	}
	line := strings.SplitN(string(raw), "\n", 2)[0]
	if len(line) > 200 {
		line = line[:200]
	}
	return line
}

func boolPtr(b bool) *bool { return &b }
