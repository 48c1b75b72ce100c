package core

// catalog.go holds the static lookup tables used across the engine.
//
// A Catalog is built once and never modified afterwards, so a single
// instance can be shared by every component and every concurrent call.

import (
	"strings"
	"sync"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// Canonical column keys.
const (
	ColLapNumber             = "lap_number"
	ColLapTime               = "lap_time"
	ColCumulativeTime        = "cumulative_time"
	ColDistance              = "distance" // kilometers
	ColAvgPace               = "avg_pace"
	ColAvgGAP                = "avg_gap"
	ColAvgHR                 = "avg_hr"
	ColMaxHR                 = "max_hr"
	ColTotalAscent           = "total_ascent"
	ColTotalDescent          = "total_descent"
	ColAvgPower              = "avg_power"
	ColAvgPowerWkg           = "avg_power_wkg"
	ColMaxPower              = "max_power"
	ColMaxPowerWkg           = "max_power_wkg"
	ColAvgCadence            = "avg_cadence"
	ColAvgGroundContactTime  = "avg_ground_contact_time"
	ColAvgGCTBalance         = "avg_gct_balance"
	ColAvgStrideLength       = "avg_stride_length"
	ColAvgVerticalOscill     = "avg_vertical_oscillation"
	ColAvgVerticalRatio      = "avg_vertical_ratio"
	ColCalories              = "calories"
	ColAvgTemperature        = "avg_temperature"
	ColBestPace              = "best_pace"
	ColMaxCadence            = "max_cadence"
	ColMovingTime            = "moving_time"
	ColAvgMovingPace         = "avg_moving_pace"
	ColAvgStepSpeedLoss      = "avg_step_speed_loss"
	ColAvgStepSpeedLossPct   = "avg_step_speed_loss_pct"
	ColDate                  = "date"
	ColType                  = "type"
	ColTime                  = "time"
)

// DeviceField describes one column of the device lap export.
type DeviceField struct {
	Key      string   // canonical key
	Japanese string   // header as written by Japanese-locale firmware
	English  []string // headers written by English-locale firmware
	Kind     FieldKind
}

// FieldKind tells the extractor how to parse a column.
type FieldKind int

const (
	KindNumeric  FieldKind = iota
	KindDuration           // h:m:s or m:s
	KindPace               // m:s per km
	KindLabel              // kept as text
)

// deviceFields lists the 28 recognized device-export columns in export order.
var deviceFields = []DeviceField{
	{ColLapNumber, "ラップ", []string{"Laps", "Lap"}, KindLabel},
	{ColLapTime, "タイム", nil, KindDuration},
	{ColCumulativeTime, "累積時間", []string{"Cumulative Time"}, KindDuration},
	{ColDistance, "距離", nil, KindNumeric},
	{ColAvgPace, "平均ペース", []string{"Avg Pace"}, KindPace},
	{ColAvgGAP, "平均GAP", []string{"Avg GAP"}, KindPace},
	{ColAvgHR, "平均心拍数", []string{"Avg HR"}, KindNumeric},
	{ColMaxHR, "最大心拍数", []string{"Max HR"}, KindNumeric},
	{ColTotalAscent, "総上昇量", []string{"Total Ascent"}, KindNumeric},
	{ColTotalDescent, "総下降量", []string{"Total Descent"}, KindNumeric},
	{ColAvgPower, "平均パワー", []string{"Avg Power"}, KindNumeric},
	{ColAvgPowerWkg, "平均W/kg", []string{"Avg W/kg"}, KindNumeric},
	{ColMaxPower, "最大パワー", []string{"Max Power"}, KindNumeric},
	{ColMaxPowerWkg, "最大W/kg", []string{"Max W/kg"}, KindNumeric},
	{ColAvgCadence, "平均ピッチ", []string{"Avg Run Cadence"}, KindNumeric},
	{ColAvgGroundContactTime, "平均接地時間", []string{"Avg Ground Contact Time"}, KindNumeric},
	{ColAvgGCTBalance, "平均GCTバランス", []string{"Avg GCT Balance"}, KindNumeric},
	{ColAvgStrideLength, "平均歩幅", []string{"Avg Stride Length"}, KindNumeric},
	{ColAvgVerticalOscill, "平均上下動", []string{"Avg Vertical Oscillation"}, KindNumeric},
	{ColAvgVerticalRatio, "平均上下動比", []string{"Avg Vertical Ratio"}, KindNumeric},
	{ColCalories, "カロリー", []string{"Calories"}, KindNumeric},
	{ColAvgTemperature, "平均気温", []string{"Avg Temperature"}, KindNumeric},
	{ColBestPace, "ベストペース", []string{"Best Pace"}, KindPace},
	{ColMaxCadence, "最高ピッチ", []string{"Max Run Cadence"}, KindNumeric},
	{ColMovingTime, "移動時間", []string{"Moving Time"}, KindDuration},
	{ColAvgMovingPace, "平均移動ペース", []string{"Avg Moving Pace"}, KindPace},
	{ColAvgStepSpeedLoss, "平均ステップ速度ロス", []string{"Avg Step Speed Loss"}, KindNumeric},
	{ColAvgStepSpeedLossPct, "平均ステップ速度ロス率", []string{"Avg Step Speed Loss %"}, KindNumeric},
}

// genericAliases maps localized generic-sheet headers to canonical keys.
var genericAliases = map[string]string{
	"日付": ColDate,
	"種目": ColType,
	"種類": ColType,
	"時間": ColTime,
}

// keywordRule maps a unit or suffix substring to a canonical key.
type keywordRule struct {
	Keyword string
	Key     string
}

// keywordRules is evaluated in order; the first keyword found wins.
var keywordRules = []keywordRule{
	{"W/kg", ColAvgPowerWkg},
	{"GCT", ColAvgGCTBalance},
	{"GAP", ColAvgGAP},
	{"km", ColDistance},
	{"bpm", ColAvgHR},
	{"spm", ColAvgCadence},
	{"kcal", ColCalories},
	{"ms", ColAvgGroundContactTime},
	{"°C", ColAvgTemperature},
	{"℃", ColAvgTemperature},
	{"%", ColAvgStepSpeedLossPct},
}

// garbledFragments are hallmark substrings of Japanese text decoded with
// the wrong codec: UTF-8 read as Shift_JIS (縺 繧 繝 譁), UTF-8 read as
// Windows-1252 (ãƒ ã‚ ã€ â€ Ã), Shift_JIS read as Windows-1252 (ƒ ‚),
// and undecodable bytes (U+FFFD).
var garbledFragments = []string{
	"\ufffd",
	"縺", "繧", "繝", "譁", "蜷", "驕",
	"ãƒ", "ã‚", "ã€", "â€", "Ã",
	"ƒ", "‚",
}

// summaryMarkers identify the whole-session row in the lap column.
var summaryMarkers = []string{"概要", "合計", "Summary", "Total"}

// Catalog is the immutable set of lookup tables shared by all components.
type Catalog struct {
	headerAliases  map[string]string // exact header (correct or garbled) -> key
	knownHeaders   []string          // correctly decoded localized header names
	knownHeaderSet map[string]bool
	keywords       []keywordRule
	fragments      []string
	summaryMarkers []string
	deviceFields   []DeviceField
	fieldByKey     map[string]DeviceField
}

var defaultCatalog = sync.OnceValue(buildCatalog)

// DefaultCatalog returns the shared catalog, built on first use.
func DefaultCatalog() *Catalog {
	return defaultCatalog()
}

func buildCatalog() *Catalog {
	c := &Catalog{
		headerAliases:  make(map[string]string),
		knownHeaderSet: make(map[string]bool),
		keywords:       keywordRules,
		fragments:      garbledFragments,
		summaryMarkers: summaryMarkers,
		deviceFields:   deviceFields,
		fieldByKey:     make(map[string]DeviceField, len(deviceFields)),
	}

	addKnown := func(name, key string) {
		c.headerAliases[name] = key
		if !c.knownHeaderSet[name] {
			c.knownHeaderSet[name] = true
			c.knownHeaders = append(c.knownHeaders, name)
		}
		for _, g := range garbledRenderings(name) {
			g = CleanCell(g)
			if g == "" {
				continue
			}
			// Never let a rendering shadow a real header.
			if _, exists := c.headerAliases[g]; !exists {
				c.headerAliases[g] = key
			}
		}
	}

	for _, f := range deviceFields {
		c.fieldByKey[f.Key] = f
		addKnown(f.Japanese, f.Key)
	}
	for name, key := range genericAliases {
		addKnown(name, key)
	}
	for _, f := range deviceFields {
		for _, en := range f.English {
			if _, exists := c.headerAliases[en]; !exists {
				c.headerAliases[en] = f.Key
			}
		}
	}

	return c
}

// garbledRenderings returns the strings a header turns into under the
// mis-decodings seen in real exports.
func garbledRenderings(name string) []string {
	var out []string
	utf8Bytes := []byte(name)

	if s, ok := misdecode(utf8Bytes, japanese.ShiftJIS); ok {
		out = append(out, s)
	}
	if s, ok := misdecode(utf8Bytes, charmap.Windows1252); ok {
		out = append(out, s)
	}
	if sjis, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), utf8Bytes); err == nil {
		if s, ok := misdecode(sjis, charmap.Windows1252); ok {
			out = append(out, s)
		}
		if s, ok := misdecode(sjis, charmap.ISO8859_1); ok {
			out = append(out, s)
		}
	}
	return out
}

func misdecode(b []byte, enc encoding.Encoding) (string, bool) {
	out, _, err := transform.Bytes(enc.NewDecoder(), b)
	if err != nil || len(out) == 0 {
		return "", false
	}
	return string(out), true
}

// LookupHeader returns the canonical key for an exact header match.
func (c *Catalog) LookupHeader(name string) (string, bool) {
	key, ok := c.headerAliases[name]
	return key, ok
}

// KnownHeaders returns the correctly decoded localized header names.
// The returned slice must not be modified.
func (c *Catalog) KnownHeaders() []string { return c.knownHeaders }

// IsKnownHeader reports whether name is a correctly decoded localized header.
func (c *Catalog) IsKnownHeader(name string) bool { return c.knownHeaderSet[name] }

// GarbledFragments returns the mojibake markers. Must not be modified.
func (c *Catalog) GarbledFragments() []string { return c.fragments }

// DeviceFields returns the device-export columns in export order.
func (c *Catalog) DeviceFields() []DeviceField { return c.deviceFields }

// DeviceField returns the field definition for a canonical key.
func (c *Catalog) DeviceField(key string) (DeviceField, bool) {
	f, ok := c.fieldByKey[key]
	return f, ok
}

// IsSummaryMarker reports whether a lap cell marks the session summary row.
func (c *Catalog) IsSummaryMarker(cell string) bool {
	cell = CleanCell(cell)
	for _, m := range c.summaryMarkers {
		if strings.EqualFold(cell, m) {
			return true
		}
	}
	return false
}
