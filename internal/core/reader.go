package core

// reader.go decodes a raw buffer into a DecodedTable.
//
// Decoding cascades until the header row reads as plausible text:
//  1. The hinted encoding, or the detector's pick
//  2. Every candidate encoding, scored concurrently and reduced in order
//  3. Lossy UTF-8 with replacement characters
//
// Only binary content or unparsable CSV at the last step is fatal.

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

var errNoHeader = errors.New("no header row")

// TableReader decodes and parses CSV buffers of unknown encoding.
type TableReader struct {
	catalog    *Catalog
	heuristics *Heuristics
	detector   *EncodingDetector
	normalizer *HeaderNormalizer
	logger     *slog.Logger
}

// NewTableReader creates a reader. A nil logger uses slog.Default().
func NewTableReader(c *Catalog, h *Heuristics, logger *slog.Logger) *TableReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &TableReader{
		catalog:    c,
		heuristics: h,
		detector:   NewEncodingDetector(c, h, logger),
		normalizer: NewHeaderNormalizer(c),
		logger:     logger,
	}
}

// cascadeResult is one scored decode attempt.
type cascadeResult struct {
	table *DecodedTable
	score int
	err   error
}

// Read decodes data into a table. hint, when non-empty and recognized,
// is tried before detection.
func (r *TableReader) Read(ctx context.Context, data []byte, hint string) (*DecodedTable, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	first := ""
	if hint != "" {
		if canon, _, err := resolveEncoding(hint); err == nil {
			first = canon
		} else {
			r.logger.Debug("ignoring unknown encoding hint", "hint", hint)
		}
	}
	if first == "" {
		first = r.detector.Detect(data)
	}

	initial, err := r.attempt(first, data)
	if err == nil && len(r.catalog.garbledColumns(initial.Columns)) == 0 {
		return requireRows(initial)
	}
	if err != nil {
		r.logger.Debug("initial decode failed", "encoding", first, "error", err)
	}

	// The initial attempt competes too and keeps precedence on ties.
	names := []string{first}
	for _, name := range candidateOrder {
		if name != first {
			names = append(names, name)
		}
	}
	results := make([]cascadeResult, len(names))
	results[0] = cascadeResult{table: initial, err: err}
	if err == nil {
		results[0].score = r.scoreTable(initial)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 1; i < len(names); i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := r.attempt(names[i], data)
			results[i] = cascadeResult{table: t, err: err}
			if err == nil {
				results[i].score = r.scoreTable(t)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var best *cascadeResult
	for i := range results {
		res := &results[i]
		if res.err != nil {
			continue
		}
		if best == nil || res.score > best.score {
			best = res
		}
	}
	if best != nil && best.score > 0 {
		r.logger.Debug("cascade picked encoding", "encoding", best.table.Encoding, "score", best.score)
		return requireRows(best.table)
	}

	r.logger.Debug("all encodings failed, decoding lossy utf-8")
	return r.lossy(data)
}

// attempt strictly decodes data with one encoding and parses it.
func (r *TableReader) attempt(name string, data []byte) (*DecodedTable, error) {
	text, err := decodeStrict(name, data)
	if err != nil {
		return nil, err
	}
	records, err := parseCSV(text)
	if err != nil {
		return nil, fmt.Errorf("parse csv as %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, errNoHeader
	}
	return r.buildTable(name, records), nil
}

// lossy is the last resort: replace undecodable bytes and keep going.
func (r *TableReader) lossy(data []byte) (*DecodedTable, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, fmt.Errorf("%w: binary content", ErrDecodeExhausted)
	}
	text := sanitizeUTF8(bytes.TrimPrefix(data, bomUTF8))
	records, err := parseCSV(string(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeExhausted, err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}
	t := r.buildTable(EncUTF8, records)
	t.Lossy = true
	return requireRows(t)
}

// scoreTable rates a decoded table for the cascade.
func (r *TableReader) scoreTable(t *DecodedTable) int {
	h := r.heuristics
	score := 0
	for _, raw := range t.RawColumns {
		if r.catalog.IsPlausibleText(raw) {
			score += h.PlausibleColumnWeight
		}
		if r.catalog.IsKnownHeader(raw) {
			score += h.CanonicalColumnWeight
		}
	}

	n := min(h.CascadeSampleRows, len(t.Rows))
	rowsOK := n > 0
	for _, row := range t.Rows[:n] {
		for _, cell := range row {
			if !r.catalog.IsPlausibleText(cell) {
				rowsOK = false
				break
			}
		}
		if !rowsOK {
			break
		}
	}
	if rowsOK {
		score += h.PlausibleRowsBonus
	}
	return score
}

// buildTable normalizes the header and aligns every data row to it.
// Blank lines are dropped, short rows are padded and long rows truncated.
func (r *TableReader) buildTable(encoding string, records [][]string) *DecodedTable {
	raw := make([]string, len(records[0]))
	for i, h := range records[0] {
		raw[i] = CleanCell(h)
	}
	columns := r.normalizer.NormalizeAll(raw)

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		if isBlankRecord(rec) {
			continue
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			if i < len(rec) {
				row[col] = strings.TrimSpace(rec[i])
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return NewDecodedTable(encoding, raw, columns, rows)
}

func requireRows(t *DecodedTable) (*DecodedTable, error) {
	if len(t.Rows) == 0 {
		return nil, fmt.Errorf("%w: header only", ErrEmptyFile)
	}
	return t, nil
}

func isBlankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseCSV(text string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
