package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/runimport/internal/logging"
)

// Engine runs the import pipeline. It holds only immutable configuration,
// so one Engine can serve any number of concurrent calls.
type Engine struct {
	catalog    *Catalog
	heuristics Heuristics
	logger     *slog.Logger // nil: derive from the call context
	newID      func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithCatalog replaces the default lookup tables.
func WithCatalog(c *Catalog) Option {
	return func(e *Engine) { e.catalog = c }
}

// WithHeuristics replaces the default weights and thresholds.
func WithHeuristics(h Heuristics) Option {
	return func(e *Engine) { e.heuristics = h }
}

// WithLogger fixes the logger instead of taking it from each call's context.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithIDGenerator replaces uuid.NewString for record IDs.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// NewEngine creates an engine with the default catalog and heuristics.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		catalog:    DefaultCatalog(),
		heuristics: DefaultHeuristics(),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Heuristics returns the engine's weights and thresholds.
func (e *Engine) Heuristics() Heuristics { return e.heuristics }

// EncodingDetector returns a detector using the engine's catalog and
// heuristics, logging to ctx's logger.
func (e *Engine) EncodingDetector(ctx context.Context) *EncodingDetector {
	h := e.heuristics
	return NewEncodingDetector(e.catalog, &h, e.loggerFor(ctx))
}

func (e *Engine) loggerFor(ctx context.Context) *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return logging.FromContext(ctx)
}

// analysis is the shared front half of Preview and Import.
type analysis struct {
	table      *DecodedTable
	format     TableFormat
	validation ValidationSummary
	garbled    []string
	warnings   []Warning
}

func (e *Engine) analyze(ctx context.Context, data []byte, hint string, logger *slog.Logger) (*analysis, error) {
	reader := NewTableReader(e.catalog, &e.heuristics, logger)
	table, err := reader.Read(ctx, data, hint)
	if err != nil {
		return nil, err
	}

	a := &analysis{
		table:   table,
		format:  ClassifyFormat(table),
		garbled: e.catalog.garbledColumns(table.Columns),
	}

	if table.Lossy {
		a.warnings = append(a.warnings, Warning{
			Type:     WarnLossyDecode,
			Message:  "Some characters could not be decoded and were replaced",
			Severity: SeverityWarning,
			Context:  map[string]any{"encoding": table.Encoding},
		})
	}
	// Headers the normalizer repaired are not reported.
	if len(a.garbled) > 0 {
		a.warnings = append(a.warnings, Warning{
			Type:     WarnGarbledColumns,
			Message:  fmt.Sprintf("%d column names look garbled", len(a.garbled)),
			Severity: SeverityWarning,
			Context:  map[string]any{"columns": a.garbled},
		})
	}

	if a.format == FormatUnknown {
		return a, ErrUnsupportedFormat
	}

	a.validation = ValidateRows(table, a.format)
	if a.validation.Invalid > 0 {
		a.warnings = append(a.warnings, Warning{
			Type:     WarnInvalidRows,
			Message:  fmt.Sprintf("%d of %d rows are incomplete", a.validation.Invalid, a.validation.Total),
			Severity: SeverityWarning,
			Context:  map[string]any{"count": a.validation.Invalid, "total": a.validation.Total},
		})
	}
	return a, nil
}

// Preview decodes and analyzes data without producing records.
//
// On a fatal error the returned result has OK=false and a user-facing
// message, and the error is returned alongside it.
func (e *Engine) Preview(ctx context.Context, data []byte, opts PreviewOptions) (*PreviewResult, error) {
	start := time.Now()
	logger := e.loggerFor(ctx)

	res := &PreviewResult{
		Columns:        []string{},
		SampleRows:     []Row{},
		LapAnalysis:    []LapRecord{},
		Warnings:       []Warning{},
		GarbledColumns: nil,
	}
	defer func() { res.ProcessingTimeMs = time.Since(start).Milliseconds() }()

	a, err := e.analyze(ctx, data, opts.Encoding, logger)
	if a != nil {
		res.Format = a.format
		res.Encoding = a.table.Encoding
		res.TotalRows = len(a.table.Rows)
		res.Columns = a.table.Columns
		res.GarbledColumns = a.garbled
		res.Warnings = append(res.Warnings, a.warnings...)
		res.SampleRows = sampleRows(a.table.Rows, opts.MaxRows)
	}
	if err != nil {
		res.Message = FormatUserError(err)
		logger.Info("preview rejected", "error", err)
		return res, err
	}

	res.ValidRows = a.validation.Valid
	res.InvalidRows = a.validation.Invalid

	if a.format == FormatDeviceExport {
		laps := AnalyzeLaps(a.table, e.catalog, &e.heuristics)
		res.LapAnalysis = sanitizeLaps(laps.Laps)
		res.DashCount = laps.DashCount
		res.EstimatedWorkoutType = laps.EstimatedType
	}

	res.OK = true
	res.Message = fmt.Sprintf("Read %d rows as %s (%s)", res.TotalRows, res.Format, res.Encoding)
	logger.Debug("preview complete",
		"format", res.Format,
		"encoding", res.Encoding,
		"rows", res.TotalRows,
		"invalid", res.InvalidRows,
	)
	return res, nil
}

// Import decodes data and extracts workout records. filename is recorded
// on each record and may be empty.
//
// OK is true when at least one record was produced. Rows that failed are
// listed in FailedRows with a partial_failure warning.
func (e *Engine) Import(ctx context.Context, data []byte, filename string) (*ImportResult, error) {
	start := time.Now()
	logger := e.loggerFor(ctx).With("file", filename)

	res := &ImportResult{
		Records:  []WorkoutImportRecord{},
		Warnings: []Warning{},
	}
	defer func() { res.ProcessingTimeMs = time.Since(start).Milliseconds() }()

	a, err := e.analyze(ctx, data, "", logger)
	if a != nil {
		res.Format = a.format
		res.Encoding = a.table.Encoding
		res.TotalRows = len(a.table.Rows)
		res.Columns = a.table.Columns
		res.Warnings = append(res.Warnings, a.warnings...)
	}
	if err != nil {
		res.Message = FormatUserError(err)
		logger.Info("import rejected", "error", err)
		return res, err
	}

	res.ValidRows = a.validation.Valid
	res.InvalidRows = a.validation.Invalid

	x := &extractor{
		table:   a.table,
		catalog: e.catalog,
		heur:    &e.heuristics,
		newID:   e.newID,
		source:  filename,
	}

	var records []WorkoutImportRecord
	var failed []FailedRow
	switch a.format {
	case FormatDeviceExport:
		laps := AnalyzeLaps(a.table, e.catalog, &e.heuristics)
		records, failed = x.extractDeviceRecords(laps)
	case FormatGeneric:
		records, failed = x.extractGenericRecords(a.validation)
	}

	if len(records) > 0 {
		res.Records = records
	}
	res.FailedRows = failed
	if len(failed) > 0 {
		res.Warnings = append(res.Warnings, Warning{
			Type:     WarnPartialFailure,
			Message:  fmt.Sprintf("%d rows could not be imported", len(failed)),
			Severity: SeverityWarning,
			Context:  map[string]any{"failed": len(failed)},
		})
	}

	if len(res.Records) == 0 {
		err := ErrNoWorkouts
		res.Message = FormatUserError(err)
		logger.Info("import produced no records", "failed", len(failed))
		return res, err
	}

	res.OK = true
	res.Message = fmt.Sprintf("Imported %d workouts", len(res.Records))
	logger.Info("import complete",
		"format", res.Format,
		"encoding", res.Encoding,
		"records", len(res.Records),
		"failed", len(failed),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// IsFatal reports whether err is one of the conditions that stop a call.
func IsFatal(err error) bool {
	return errors.Is(err, ErrEmptyFile) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrDecodeExhausted)
}

func sampleRows(rows []Row, maxRows int) []Row {
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	out := make([]Row, len(rows))
	copy(out, rows)
	return out
}

func sanitizeLaps(laps []LapRecord) []LapRecord {
	for i := range laps {
		laps[i].LapTimeSeconds = finitePtr(laps[i].LapTimeSeconds)
		laps[i].DistanceKm = finitePtr(laps[i].DistanceKm)
		laps[i].PaceSecondsPerKm = finitePtr(laps[i].PaceSecondsPerKm)
		laps[i].HeartRate = finitePtr(laps[i].HeartRate)
	}
	return laps
}
