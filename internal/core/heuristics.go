package core

// Heuristics holds every tunable weight and threshold used by the engine.
// The defaults were tuned empirically against real device exports; change
// them only together with the tests that pin their behavior.
type Heuristics struct {
	// Encoding detection (trial-decode scoring)
	SampleChars           int     // characters of decoded text scored per candidate (2000)
	NonASCIIWeight        int     // per rune above U+007F (+2)
	KnownHeaderBonus      int     // per occurrence of a known-good header name (+50)
	GarbledPenalty        int     // per occurrence of a garbled fragment (10, subtracted)
	LatinDominancePenalty int     // when mostly sub-256 text still has non-ASCII runes (100, subtracted)
	LatinDominanceRatio   float64 // share of sub-256 runes that triggers the penalty (0.7)
	StatisticalMinConf    float64 // minimum chardet confidence, 0..1 (0.7)

	// Table cascade scoring
	PlausibleColumnWeight int // per column that reads as plausible text (+10)
	CanonicalColumnWeight int // per column equal to a known-good header (+100)
	PlausibleRowsBonus    int // when sampled data rows are plausible (+50)
	CascadeSampleRows     int // data rows checked for the rows bonus (5)

	// Workout-type estimation
	IntervalMinLaps       int     // 8
	IntervalMinVariance   float64 // 100 (s/km)^2
	RepetitionMinLaps     int     // 4
	RepetitionMinVariance float64 // 50 (s/km)^2
	TempoMaxPace          float64 // 300 s/km

	// AggregateLaps controls device files without a summary row. When true
	// the record sums distance and duration across all laps. When false it
	// takes the first lap's values, matching older importer behavior.
	AggregateLaps bool
}

// DefaultHeuristics returns the tuned defaults.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		SampleChars:           2000,
		NonASCIIWeight:        2,
		KnownHeaderBonus:      50,
		GarbledPenalty:        10,
		LatinDominancePenalty: 100,
		LatinDominanceRatio:   latinDominanceRatio,
		StatisticalMinConf:    0.7,

		PlausibleColumnWeight: 10,
		CanonicalColumnWeight: 100,
		PlausibleRowsBonus:    50,
		CascadeSampleRows:     5,

		IntervalMinLaps:       8,
		IntervalMinVariance:   100,
		RepetitionMinLaps:     4,
		RepetitionMinVariance: 50,
		TempoMaxPace:          300,

		AggregateLaps: true,
	}
}
