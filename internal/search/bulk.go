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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/phoneinv/netspeed/internal/metrics"
)

// Bulk request bounds. Chunks are synchronous so the engine provides the
// only backpressure that matters.
const (
	bulkMaxDocs    = 1000
	bulkMaxBytes   = 10 << 20
	bulkReqTimeout = 60 * time.Second
)

// BulkDoc is one document headed for an index. An empty ID lets the engine
// assign one; deterministic ids make re-runs idempotent.
type BulkDoc struct {
	ID     string
	Source any
}

// BulkReport summarizes one bulk load.
type BulkReport struct {
	Indexed int
	Failed  int
}

// Bulk writes docs into index in bounded chunks with refresh disabled, then
// refreshes once so the rows become visible together. Item-level rejections
// are counted, not fatal.
func (d *Driver) Bulk(ctx context.Context, index string, docs []BulkDoc) (*BulkReport, error) {
	report := &BulkReport{}
	if len(docs) == 0 {
		return report, nil
	}

	var buf bytes.Buffer
	count := 0
	flush := func() error {
		if count == 0 {
			return nil
		}
		indexed, failed, err := d.bulkChunk(ctx, index, buf.Bytes())
		report.Indexed += indexed
		report.Failed += failed
		buf.Reset()
		count = 0
		return err
	}

	for _, doc := range docs {
		action := map[string]any{"index": map[string]any{"_index": index}}
		if doc.ID != "" {
			action["index"].(map[string]any)["_id"] = doc.ID
		}
		actionLine, err := json.Marshal(action)
		if err != nil {
			return report, fmt.Errorf("failed to encode bulk action: %w", err)
		}
		sourceLine, err := json.Marshal(doc.Source)
		if err != nil {
			return report, fmt.Errorf("failed to encode bulk document: %w", err)
		}

		if count >= bulkMaxDocs || buf.Len()+len(actionLine)+len(sourceLine)+2 > bulkMaxBytes {
			if err := flush(); err != nil {
				return report, err
			}
		}
		buf.Write(actionLine)
		buf.WriteByte('\n')
		buf.Write(sourceLine)
		buf.WriteByte('\n')
		count++
	}
	if err := flush(); err != nil {
		return report, err
	}

	if err := d.Refresh(ctx, index); err != nil {
		d.logger.Warn("refresh after bulk failed", "index", index, "error", err)
	}

	metrics.DocumentsIndexed.Add(float64(report.Indexed))
	metrics.BulkFailures.Add(float64(report.Failed))
	return report, nil
}

// bulkChunk sends one NDJSON payload and counts item results.
func (d *Driver) bulkChunk(ctx context.Context, index string, payload []byte) (indexed, failed int, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, bulkReqTimeout)
	defer cancel()

	req := opensearchapi.BulkRequest{
		Body:    bytes.NewReader(payload),
		Refresh: "false",
	}
	res, err := req.Do(reqCtx, d.client)
	if err != nil {
		return 0, 0, d.classify(err)
	}
	defer drain(res)
	if res.IsError() {
		return 0, 0, fmt.Errorf("bulk request failed: %s: %s", res.Status(), firstErrorLine(res.Body))
	}

	var envelope struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return 0, 0, fmt.Errorf("failed to decode bulk response: %w", err)
	}

	for _, item := range envelope.Items {
		for _, op := range item {
			if op.Status >= 300 {
				failed++
				if op.Error != nil {
					d.logger.Warn("bulk item rejected",
						"index", index, "type", op.Error.Type, "reason", op.Error.Reason)
				}
			} else {
				indexed++
			}
		}
	}
	return indexed, failed, nil
}
