package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	n := NewHeaderNormalizer(DefaultCatalog())

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "japanese exact", input: "平均ペース", want: ColAvgPace},
		{name: "japanese with spaces", input: "  ラップ ", want: ColLapNumber},
		{name: "japanese with BOM", input: "\ufeffラップ", want: ColLapNumber},
		{name: "english exact", input: "Avg HR", want: ColAvgHR},
		{name: "shift_jis read as windows-1252", input: "ƒ‰ƒbƒv", want: ColLapNumber},
		{name: "shift_jis read as windows-1252 lap time", input: "ƒ^ƒCƒ€", want: ColLapTime},
		{name: "generic japanese", input: "日付", want: ColDate},
		{name: "keyword km", input: "距離(km)", want: ColDistance},
		{name: "keyword bpm", input: "心拍 (bpm)", want: ColAvgHR},
		{name: "keyword order W/kg before km", input: "出力W/kg km", want: ColAvgPowerWkg},
		{name: "keyword celsius", input: "気温℃", want: ColAvgTemperature},
		{name: "ascii keyword km", input: "Distance (km)", want: ColDistance},
		{name: "ascii keyword bpm", input: "Heart Rate (bpm)", want: ColAvgHR},
		{name: "ascii keyword spm", input: "Cadence (spm)", want: ColAvgCadence},
		{name: "ascii keyword first match wins", input: "Pace (min/km)", want: ColDistance},
		{name: "ascii keyword inside a word is ignored", input: "Comments", want: "Comments"},
		{name: "ascii without keyword passes through", input: "Notes", want: "Notes"},
		{name: "unknown japanese passes through", input: "メモ", want: "メモ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.input))
		})
	}
}

func TestNormalize_AllDeviceFields(t *testing.T) {
	c := DefaultCatalog()
	n := NewHeaderNormalizer(c)

	// A rendering shared by two headers can only map to one of them.
	owners := make(map[string]int)
	for _, name := range c.KnownHeaders() {
		for _, g := range garbledRenderings(name) {
			owners[CleanCell(g)]++
		}
	}

	for _, f := range c.DeviceFields() {
		assert.Equal(t, f.Key, n.Normalize(f.Japanese), f.Japanese)
		for _, g := range garbledRenderings(f.Japanese) {
			if owners[CleanCell(g)] > 1 || c.IsKnownHeader(CleanCell(g)) {
				continue
			}
			assert.Equal(t, f.Key, n.Normalize(g), "garbled %q of %s", g, f.Japanese)
		}
	}
}

func TestNormalizeAll(t *testing.T) {
	n := NewHeaderNormalizer(DefaultCatalog())

	t.Run("duplicates get suffixes", func(t *testing.T) {
		got := n.NormalizeAll([]string{"平均心拍数", "Avg HR", "notes"})
		assert.Equal(t, []string{ColAvgHR, ColAvgHR + "_2", "notes"}, got)
	})

	t.Run("english lap export time column", func(t *testing.T) {
		got := n.NormalizeAll([]string{"Laps", "Time", "Distance", "Avg Pace", "Avg HR"})
		assert.Equal(t, []string{ColLapNumber, ColLapTime, "Distance", ColAvgPace, ColAvgHR}, got)
	})

	t.Run("generic time column untouched", func(t *testing.T) {
		got := n.NormalizeAll([]string{"Date", "Type", "Distance", "Time"})
		assert.Equal(t, []string{"Date", "Type", "Distance", "Time"}, got)
	})
}
