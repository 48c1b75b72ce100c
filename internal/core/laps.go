package core

// Workout types estimated from lap structure.
const (
	WorkoutInterval   = "interval"
	WorkoutRepetition = "repetition"
	WorkoutTempo      = "tempo"
	WorkoutJog        = "jog"
)

// Intensity levels derived from the workout type.
const (
	IntensityHigh     = "high"
	IntensityModerate = "moderate"
	IntensityLow      = "low"
)

// LapAnalysis is the per-lap view of a device export.
type LapAnalysis struct {
	Laps          []LapRecord
	DashCount     int      // laps faster than the session average
	EstimatedType string   // interval, repetition, tempo or jog
	SummaryPace   *float64 // nil when there is no summary row or pace
}

// AnalyzeLaps labels each row as summary, fast, rest or unknown and
// estimates the workout type from the spread of lap paces.
//
// A lap is fast when its pace is quicker than the summary row's pace.
// Without a summary pace no lap can be labeled fast or rest.
func AnalyzeLaps(t *DecodedTable, c *Catalog, h *Heuristics) LapAnalysis {
	out := LapAnalysis{Laps: make([]LapRecord, 0, len(t.Rows))}

	summaryIdx, hasSummary := findSummaryRow(t, c)
	if hasSummary {
		if p, ok := ParsePace(t.Value(t.Rows[summaryIdx], ColAvgPace)); ok {
			out.SummaryPace = floatPtr(p)
		}
	}

	var (
		numbered int
		paces    []float64
	)
	for i, row := range t.Rows {
		label := CleanCell(t.Value(row, ColLapNumber))
		rec := LapRecord{LapLabel: label, Classification: LapUnknown}

		if v, ok := ParseDuration(t.Value(row, ColLapTime)); ok {
			rec.LapTimeSeconds = floatPtr(v)
		}
		if v, ok := parseNumber(t.Value(row, ColDistance)); ok {
			rec.DistanceKm = floatPtr(v)
		}
		pace, paceOK := ParsePace(t.Value(row, ColAvgPace))
		if paceOK {
			rec.PaceSecondsPerKm = floatPtr(pace)
		}
		if v, ok := parseNumber(t.Value(row, ColAvgHR)); ok {
			rec.HeartRate = floatPtr(v)
		}

		switch {
		case hasSummary && i == summaryIdx:
			rec.Classification = LapSummary
		case paceOK && out.SummaryPace != nil:
			if pace < *out.SummaryPace {
				rec.Classification = LapFast
				out.DashCount++
			} else {
				rec.Classification = LapRest
			}
		}

		if _, numeric := parseNumber(label); numeric {
			numbered++
			if paceOK {
				paces = append(paces, pace)
			}
		}
		out.Laps = append(out.Laps, rec)
	}

	out.EstimatedType = estimateWorkoutType(numbered, paces, h)
	return out
}

// estimateWorkoutType classifies a session from the number of numbered
// laps n and their parsed paces. Variance is the population variance.
func estimateWorkoutType(n int, paces []float64, h *Heuristics) string {
	if len(paces) == 0 {
		return WorkoutJog
	}

	var sum float64
	for _, p := range paces {
		sum += p
	}
	mean := sum / float64(len(paces))

	var sq float64
	for _, p := range paces {
		sq += (p - mean) * (p - mean)
	}
	variance := sq / float64(len(paces))

	switch {
	case n >= h.IntervalMinLaps && variance > h.IntervalMinVariance:
		return WorkoutInterval
	case n >= h.RepetitionMinLaps && variance > h.RepetitionMinVariance:
		return WorkoutRepetition
	case mean < h.TempoMaxPace:
		return WorkoutTempo
	default:
		return WorkoutJog
	}
}

// estimateIntensity maps a workout type to an intensity level.
func estimateIntensity(workoutType string) string {
	switch workoutType {
	case WorkoutInterval, WorkoutRepetition:
		return IntensityHigh
	case WorkoutTempo:
		return IntensityModerate
	default:
		return IntensityLow
	}
}

// findSummaryRow returns the index of the first row whose lap cell is a
// summary marker.
func findSummaryRow(t *DecodedTable, c *Catalog) (int, bool) {
	for i, row := range t.Rows {
		if c.IsSummaryMarker(t.Value(row, ColLapNumber)) {
			return i, true
		}
	}
	return -1, false
}
