package core

import (
	"encoding/json"
	"strings"
)

// TableFormat identifies the schema family of a decoded table.
type TableFormat string

const (
	FormatDeviceExport TableFormat = "device_export"
	FormatGeneric      TableFormat = "generic"
	FormatUnknown      TableFormat = "unknown"
)

// LapClass is the per-row label produced by the lap analyzer.
type LapClass string

const (
	LapSummary LapClass = "summary"
	LapFast    LapClass = "fast"
	LapRest    LapClass = "rest"
	LapUnknown LapClass = "unknown"
)

// Severity of a warning.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Warning types emitted by the engine.
const (
	WarnGarbledColumns = "garbled_columns"
	WarnInvalidRows    = "invalid_rows"
	WarnPartialFailure = "partial_failure"
	WarnLossyDecode    = "lossy_decode"
)

// Row maps a normalized column name to its raw decoded cell.
type Row map[string]string

// DecodedTable is a parsed CSV with normalized column names.
// Every row carries every column; short source rows are padded with "".
type DecodedTable struct {
	Encoding   string
	RawColumns []string // header cells as decoded, before normalization
	Columns    []string // normalized, same order as RawColumns
	Rows       []Row
	Lossy      bool // decoded with replacement characters as a last resort

	index map[string]string // lower-cased column -> column
}

// NewDecodedTable builds a table and its case-insensitive column index.
func NewDecodedTable(encoding string, raw, columns []string, rows []Row) *DecodedTable {
	t := &DecodedTable{
		Encoding:   encoding,
		RawColumns: raw,
		Columns:    columns,
		Rows:       rows,
		index:      make(map[string]string, len(columns)),
	}
	for _, c := range columns {
		lc := strings.ToLower(c)
		if _, ok := t.index[lc]; !ok {
			t.index[lc] = c
		}
	}
	return t
}

// Column returns the table's column matching key, ignoring case.
func (t *DecodedTable) Column(key string) (string, bool) {
	c, ok := t.index[strings.ToLower(key)]
	return c, ok
}

// HasColumns reports whether every key is present, ignoring case.
func (t *DecodedTable) HasColumns(keys ...string) bool {
	for _, k := range keys {
		if _, ok := t.Column(k); !ok {
			return false
		}
	}
	return true
}

// Value returns the cell for key in row r, or "" when the column is absent.
func (t *DecodedTable) Value(r Row, key string) string {
	c, ok := t.Column(key)
	if !ok {
		return ""
	}
	return r[c]
}

// EncodingCandidate is one scored trial decode. Scores are only comparable
// within a single detection run.
type EncodingCandidate struct {
	Name   string
	Score  int
	Sample string
}

// LapRecord is the analyzed view of one source row.
type LapRecord struct {
	LapLabel         string   `json:"lap_label"`
	LapTimeSeconds   *float64 `json:"lap_time_seconds"`
	DistanceKm       *float64 `json:"distance_km"`
	PaceSecondsPerKm *float64 `json:"pace_seconds_per_km"`
	HeartRate        *float64 `json:"heart_rate"`
	Classification   LapClass `json:"classification"`
}

// WorkoutImportRecord is one workout extracted from a file.
// Records are never mutated after creation; re-importing produces new ones.
type WorkoutImportRecord struct {
	ID                  string         `json:"id"`
	SourceFile          string         `json:"source_file,omitempty"`
	Format              TableFormat    `json:"format"`
	DistanceMeters      *float64       `json:"distance_meters"`
	DurationSeconds     *float64       `json:"duration_seconds"`
	DurationSecondsList []float64      `json:"duration_seconds_list"`
	AvgHeartRate        *float64       `json:"avg_heart_rate"`
	AvgPaceSeconds      *float64       `json:"avg_pace_seconds"`
	EstimatedType       string         `json:"estimated_type,omitempty"`
	EstimatedIntensity  string         `json:"estimated_intensity,omitempty"`
	Extensions          map[string]any `json:"extensions,omitempty"`
}

// FailedRow records a row whose extraction failed.
type FailedRow struct {
	Row   int    `json:"row"` // 0-based data row index
	Error string `json:"error"`
}

// Warning is a non-fatal condition surfaced to the caller.
// Context entries are flattened into the JSON object.
type Warning struct {
	Type     string
	Message  string
	Severity Severity
	Context  map[string]any
}

// MarshalJSON flattens Context next to the fixed fields.
func (w Warning) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(w.Context)+3)
	for k, v := range w.Context {
		out[k] = Sanitize(v)
	}
	out["type"] = w.Type
	out["message"] = w.Message
	out["severity"] = w.Severity
	return json.Marshal(out)
}

// PreviewOptions controls a preview call.
type PreviewOptions struct {
	Encoding string // optional hint, e.g. "shift_jis"
	MaxRows  int    // sample row cap; 0 means all rows
}

// PreviewResult is the read-only analysis of a file.
type PreviewResult struct {
	OK                   bool        `json:"ok"`
	Message              string      `json:"message"`
	Format               TableFormat `json:"format"`
	Encoding             string      `json:"encoding"`
	TotalRows            int         `json:"total_rows"`
	ValidRows            int         `json:"valid_rows"`
	InvalidRows          int         `json:"invalid_rows"`
	Columns              []string    `json:"columns"`
	SampleRows           []Row       `json:"sample_rows"`
	LapAnalysis          []LapRecord `json:"lap_analysis"`
	DashCount            int         `json:"dash_count"`
	EstimatedWorkoutType string      `json:"estimated_workout_type"`
	GarbledColumns       []string    `json:"garbled_columns"`
	Warnings             []Warning   `json:"warnings"`
	ProcessingTimeMs     int64       `json:"processing_time_ms"`
}

// ImportResult is the outcome of an import call.
type ImportResult struct {
	OK               bool                  `json:"ok"`
	Message          string                `json:"message"`
	Format           TableFormat           `json:"format"`
	Encoding         string                `json:"encoding"`
	TotalRows        int                   `json:"total_rows"`
	ValidRows        int                   `json:"valid_rows"`
	InvalidRows      int                   `json:"invalid_rows"`
	Columns          []string              `json:"columns,omitempty"`
	Records          []WorkoutImportRecord `json:"records"`
	FailedRows       []FailedRow           `json:"failed_rows,omitempty"`
	Warnings         []Warning             `json:"warnings"`
	ProcessingTimeMs int64                 `json:"processing_time_ms"`
}
