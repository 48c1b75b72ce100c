package core

// extract.go turns validated tables into WorkoutImportRecords.
//
// Device exports produce one record per file: from the summary row when
// there is one, otherwise from the laps (aggregated, or the first lap when
// Heuristics.AggregateLaps is off). Generic sheets produce one record per
// row. Rows that cannot be extracted are reported as FailedRows and the
// rest of the file still imports.

import (
	"fmt"
	"math"
	"strings"
)

// canonicalDeviceKeys are lifted into top-level record fields and never
// repeated in the extension map.
var canonicalDeviceKeys = map[string]bool{
	ColLapNumber: true,
	ColLapTime:   true,
	ColDistance:  true,
	ColAvgPace:   true,
	ColAvgHR:     true,
}

// How each device column combines across laps when there is no summary row.
// Columns not listed are averaged.
var (
	summedKeys = map[string]bool{
		ColDistance: true, ColLapTime: true, ColMovingTime: true,
		ColTotalAscent: true, ColTotalDescent: true, ColCalories: true,
	}
	maxedKeys = map[string]bool{
		ColMaxHR: true, ColMaxPower: true, ColMaxPowerWkg: true,
		ColMaxCadence: true, ColCumulativeTime: true,
	}
	minnedKeys = map[string]bool{
		ColBestPace: true,
	}
)

// extractor carries the shared inputs of one extraction.
type extractor struct {
	table   *DecodedTable
	catalog *Catalog
	heur    *Heuristics
	newID   func() string
	source  string
}

func (x *extractor) newRecord(format TableFormat) WorkoutImportRecord {
	return WorkoutImportRecord{
		ID:                  x.newID(),
		SourceFile:          x.source,
		Format:              format,
		DurationSecondsList: []float64{},
		Extensions:          map[string]any{},
	}
}

// parseField parses one device cell according to its kind.
func parseField(f DeviceField, cell string) (float64, bool) {
	switch f.Kind {
	case KindDuration, KindPace:
		return ParseDuration(cell)
	case KindNumeric:
		return parseNumber(cell)
	default:
		return 0, false
	}
}

// extractDeviceRecords builds the single workout record of a device export.
func (x *extractor) extractDeviceRecords(laps LapAnalysis) ([]WorkoutImportRecord, []FailedRow) {
	t := x.table
	summaryIdx, hasSummary := findSummaryRow(t, x.catalog)

	var (
		rec    WorkoutImportRecord
		failed []FailedRow
	)
	switch {
	case hasSummary:
		rec = x.recordFromRow(t.Rows[summaryIdx])
	case x.heur.AggregateLaps:
		var ok bool
		rec, failed, ok = x.aggregateLaps()
		if !ok {
			return nil, failed
		}
	default:
		rec = x.recordFromRow(t.Rows[0])
	}

	skip := make(map[int]bool, len(failed)+1)
	for _, f := range failed {
		skip[f.Row] = true
	}
	if hasSummary {
		skip[summaryIdx] = true
	}
	for i, row := range t.Rows {
		if skip[i] {
			continue
		}
		if d, ok := ParseDuration(t.Value(row, ColLapTime)); ok {
			rec.DurationSecondsList = append(rec.DurationSecondsList, d)
		}
	}

	rec.EstimatedType = laps.EstimatedType
	rec.EstimatedIntensity = estimateIntensity(laps.EstimatedType)
	return []WorkoutImportRecord{finalizeRecord(rec)}, failed
}

// recordFromRow maps one device row onto a record.
func (x *extractor) recordFromRow(row Row) WorkoutImportRecord {
	t := x.table
	rec := x.newRecord(FormatDeviceExport)

	if km, ok := parseNumber(t.Value(row, ColDistance)); ok {
		rec.DistanceMeters = floatPtr(km * 1000)
	}
	if d, ok := ParseDuration(t.Value(row, ColLapTime)); ok {
		rec.DurationSeconds = floatPtr(d)
	}
	if p, ok := ParsePace(t.Value(row, ColAvgPace)); ok {
		rec.AvgPaceSeconds = floatPtr(p)
	}
	if hr, ok := parseNumber(t.Value(row, ColAvgHR)); ok {
		rec.AvgHeartRate = floatPtr(hr)
	}

	for _, f := range x.catalog.DeviceFields() {
		if canonicalDeviceKeys[f.Key] {
			continue
		}
		col, ok := t.Column(f.Key)
		if !ok {
			continue
		}
		switch f.Kind {
		case KindDuration, KindPace:
			if v, ok := ParseDuration(row[col]); ok {
				rec.Extensions[f.Key] = v
			}
		case KindNumeric:
			if v := CoerceNumeric(row[col]); v != nil {
				rec.Extensions[f.Key] = v
			}
		}
	}
	return rec
}

// aggregateLaps combines all lap rows into one record. Laps whose distance
// does not parse are reported and left out. ok is false when no lap is left.
func (x *extractor) aggregateLaps() (rec WorkoutImportRecord, failed []FailedRow, ok bool) {
	t := x.table
	rec = x.newRecord(FormatDeviceExport)

	type acc struct {
		sum, max, min float64
		n             int
	}
	accs := make(map[string]*acc)
	var hrSum float64
	var hrN, used int

	for i, row := range t.Rows {
		if _, err := lapDistance(t, row); err != nil {
			failed = append(failed, FailedRow{Row: i, Error: err.Error()})
			continue
		}
		used++

		for _, f := range x.catalog.DeviceFields() {
			if f.Kind == KindLabel || f.Key == ColAvgPace {
				continue
			}
			v, ok := parseField(f, t.Value(row, f.Key))
			if !ok {
				continue
			}
			a := accs[f.Key]
			if a == nil {
				a = &acc{max: math.Inf(-1), min: math.Inf(1)}
				accs[f.Key] = a
			}
			a.sum += v
			a.max = math.Max(a.max, v)
			a.min = math.Min(a.min, v)
			a.n++
		}
		if hr, ok := parseNumber(t.Value(row, ColAvgHR)); ok {
			hrSum += hr
			hrN++
		}
	}
	if used == 0 {
		return rec, failed, false
	}

	for key, a := range accs {
		var v float64
		switch {
		case summedKeys[key]:
			v = a.sum
		case maxedKeys[key]:
			v = a.max
		case minnedKeys[key]:
			v = a.min
		default:
			v = a.sum / float64(a.n)
		}
		switch key {
		case ColDistance:
			rec.DistanceMeters = floatPtr(v * 1000)
		case ColLapTime:
			rec.DurationSeconds = floatPtr(v)
		case ColAvgHR:
			// handled below
		default:
			rec.Extensions[key] = v
		}
	}

	if hrN > 0 {
		rec.AvgHeartRate = floatPtr(hrSum / float64(hrN))
	}
	if rec.DistanceMeters != nil && rec.DurationSeconds != nil && *rec.DistanceMeters > 0 {
		rec.AvgPaceSeconds = floatPtr(*rec.DurationSeconds / (*rec.DistanceMeters / 1000))
	}
	return rec, failed, true
}

// lapDistance parses a lap's distance in kilometers.
func lapDistance(t *DecodedTable, row Row) (float64, error) {
	raw := CleanCell(t.Value(row, ColDistance))
	km, ok := parseNumber(raw)
	if !ok {
		return 0, fmt.Errorf("distance: invalid number %q", raw)
	}
	return km, nil
}

// genericRequiredKeys are lifted into top-level record fields.
var genericRequiredKeys = map[string]bool{
	ColDate: true, ColType: true, ColDistance: true, ColTime: true,
}

// extractGenericRecords builds one record per valid generic row.
func (x *extractor) extractGenericRecords(validation ValidationSummary) ([]WorkoutImportRecord, []FailedRow) {
	t := x.table
	var (
		records []WorkoutImportRecord
		failed  []FailedRow
	)

	for i, row := range t.Rows {
		if res := validation.Results[i]; !res.Valid {
			failed = append(failed, FailedRow{Row: i, Error: res.Errors[0].Error()})
			continue
		}
		rec, err := x.genericRecord(row)
		if err != nil {
			failed = append(failed, FailedRow{Row: i, Error: err.Error()})
			continue
		}
		records = append(records, finalizeRecord(rec))
	}
	return records, failed
}

func (x *extractor) genericRecord(row Row) (WorkoutImportRecord, error) {
	t := x.table
	rec := x.newRecord(FormatGeneric)

	date, ok := parseDate(t.Value(row, ColDate))
	if !ok {
		return rec, fmt.Errorf("date: invalid date %q", CleanCell(t.Value(row, ColDate)))
	}
	km, ok := parseNumber(t.Value(row, ColDistance))
	if !ok {
		return rec, fmt.Errorf("distance: invalid number %q", CleanCell(t.Value(row, ColDistance)))
	}
	dur, ok := ParseDuration(t.Value(row, ColTime))
	if !ok {
		return rec, fmt.Errorf("time: invalid duration %q", CleanCell(t.Value(row, ColTime)))
	}

	workoutType := CleanCell(t.Value(row, ColType))
	rec.DistanceMeters = floatPtr(km * 1000)
	rec.DurationSeconds = floatPtr(dur)
	rec.DurationSecondsList = []float64{dur}
	if km > 0 {
		rec.AvgPaceSeconds = floatPtr(dur / km)
	}
	rec.EstimatedType = workoutType
	rec.EstimatedIntensity = genericIntensity(workoutType)
	rec.Extensions["date"] = date.Format("2006-01-02")
	rec.Extensions["workout_type"] = workoutType

	for _, col := range t.Columns {
		if genericRequiredKeys[strings.ToLower(col)] {
			continue
		}
		cell := CleanCell(row[col])
		if isMissing(cell) {
			continue
		}
		if strings.EqualFold(col, ColAvgHR) {
			if hr, ok := parseNumber(cell); ok {
				rec.AvgHeartRate = floatPtr(hr)
			}
			continue
		}
		if v := CoerceNumeric(cell); v != nil {
			rec.Extensions[col] = v
		} else {
			rec.Extensions[col] = cell
		}
	}
	return rec, nil
}

// genericIntensity only derives an intensity for the workout types the
// lap analyzer also produces.
func genericIntensity(workoutType string) string {
	switch strings.ToLower(workoutType) {
	case WorkoutInterval, WorkoutRepetition, WorkoutTempo, WorkoutJog:
		return estimateIntensity(strings.ToLower(workoutType))
	}
	return ""
}

// finalizeRecord strips non-finite values before a record leaves the engine.
func finalizeRecord(rec WorkoutImportRecord) WorkoutImportRecord {
	rec.DistanceMeters = finitePtr(rec.DistanceMeters)
	rec.DurationSeconds = finitePtr(rec.DurationSeconds)
	rec.AvgHeartRate = finitePtr(rec.AvgHeartRate)
	rec.AvgPaceSeconds = finitePtr(rec.AvgPaceSeconds)
	rec.DurationSecondsList = sanitizeFloats(rec.DurationSecondsList)
	rec.Extensions = sanitizeExtensions(rec.Extensions)
	return rec
}
