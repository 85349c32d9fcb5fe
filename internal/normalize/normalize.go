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

// Package normalize turns raw netspeed CSV exports into canonical records.
//
// The export format has shipped in four column layouts over the years
// (11, 14, 15 and 16 columns), so the normalizer never trusts positions.
// Each cell is classified against a priority-ordered pattern set; cells no
// pattern claims are placed into the remaining canonical fields in order,
// with obviously impossible placements rejected.
package normalize

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/phoneinv/netspeed/pkg/netspeed"
)

const (
	// delimiterSampleSize is how much of the file head is inspected to
	// decide between ';' and ','.
	delimiterSampleSize = 8 * 1024

	// MaxFileSize guards against loading a runaway export into memory (500MB).
	MaxFileSize = 500 * 1024 * 1024
)

// Options tune the normalizer.
type Options struct {
	// Domains are the hostname suffixes that identify switch FQDN cells.
	// Empty means DefaultDomains.
	Domains []string

	// MergeKEMDisplay appends one " KEM" token to Line Number per attached
	// module. The KEM fields themselves stay populated for indexing.
	MergeKEMDisplay bool
}

// Stats counts what happened to the raw rows of one file.
type Stats struct {
	TotalRows  int `json:"total_rows"`  // data rows seen, header row excluded
	EmptyRows  int `json:"empty_rows"`  // rows with no non-empty cell
	FailedRows int `json:"failed_rows"` // rows where no pattern recognized any cell
}

// Result is the outcome of normalizing one file.
type Result struct {
	Headers []string           // canonical 16-field header order
	Rows    []netspeed.Record  // normalized rows, original file order, not deduplicated
	Stats   Stats
}

// Normalizer converts netspeed CSV exports into canonical records.
type Normalizer struct {
	opts       Options
	classifier *classifier
	logger     *slog.Logger
}

// New creates a normalizer.
func New(logger *slog.Logger, opts Options) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		opts:       opts,
		classifier: newClassifier(opts.Domains),
		logger:     logger.With("component", "normalize"),
	}
}

// File normalizes one export file. The creation date is taken from the
// file-name timestamp when present, else from the file modification time.
// Row-level problems never fail the file; they are counted in Stats.
func (n *Normalizer) File(path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("file too large (max %d MB)", MaxFileSize/(1024*1024))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			n.logger.Error("failed to close file", "path", path, "error", err)
		}
	}()

	name := filepath.Base(path)
	date := netspeed.CreationDate(name, info.ModTime())
	return n.Parse(f, name, date)
}

// Parse normalizes a CSV stream. Callers own name and date metadata; File
// is the usual entry point.
func (n *Normalizer) Parse(r io.Reader, name, date string) (*Result, error) {
	br := bufio.NewReaderSize(r, delimiterSampleSize)
	delim := detectDelimiter(br)

	reader := csv.NewReader(br)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	res := &Result{Headers: netspeed.CanonicalHeaders()}
	ordinal := 0
	first := true

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed line loses that line, not the file.
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				res.Stats.FailedRows++
				continue
			}
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}

		cells := trimTrailingEmpty(record)
		if first {
			first = false
			if looksLikeHeader(cells) {
				continue
			}
		}

		res.Stats.TotalRows++
		if allEmpty(cells) {
			res.Stats.EmptyRows++
			continue
		}

		rec, matched := n.classifier.classify(cells)
		if matched == 0 {
			res.Stats.FailedRows++
			continue
		}

		ordinal++
		rec[netspeed.FieldRowNumber] = strconv.Itoa(ordinal)
		rec[netspeed.FieldFileName] = name
		rec[netspeed.FieldCreationDate] = date
		if n.opts.MergeKEMDisplay {
			mergeKEMDisplay(rec)
		}
		res.Rows = append(res.Rows, rec)
	}

	if res.Stats.FailedRows > 0 {
		n.logger.Warn("rows dropped during normalization",
			"file", name, "failed", res.Stats.FailedRows, "total", res.Stats.TotalRows)
	}
	return res, nil
}

// detectDelimiter peeks at the head of the stream: a semicolon anywhere in
// the first 8 KiB selects ';', otherwise ','.
func detectDelimiter(br *bufio.Reader) rune {
	sample, _ := br.Peek(delimiterSampleSize)
	if bytes.ContainsRune(sample, ';') {
		return ';'
	}
	return ','
}

// trimTrailingEmpty drops the single empty cell a trailing delimiter
// produces. Empty canonical fields come back as "" regardless, so this
// never loses data.
func trimTrailingEmpty(record []string) []string {
	cells := make([]string, len(record))
	copy(cells, record)
	if len(cells) > 1 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	return cells
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// looksLikeHeader reports whether the first row repeats the canonical
// column names. Some export variants carry one, most do not.
func looksLikeHeader(cells []string) bool {
	names := make(map[string]bool, 20)
	for _, h := range netspeed.CanonicalHeaders() {
		names[h] = true
	}
	for _, h := range netspeed.MetadataHeaders() {
		names[h] = true
	}
	hits := 0
	for _, c := range cells {
		if names[strings.TrimSpace(c)] {
			hits++
		}
	}
	return hits >= 3
}

// mergeKEMDisplay appends a " KEM" token per module to Line Number. The
// KEM count fallback scans Line Number only when both KEM fields are
// empty, so the merge never double counts.
func mergeKEMDisplay(rec netspeed.Record) {
	line := rec[netspeed.FieldLineNumber]
	if line == "" {
		return
	}
	kems := 0
	if rec[netspeed.FieldKEM] != "" {
		kems++
	}
	if rec[netspeed.FieldKEM2] != "" {
		kems++
	}
	if kems > 0 {
		rec[netspeed.FieldLineNumber] = line + strings.Repeat(" KEM", kems)
	}
}
