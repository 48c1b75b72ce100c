package core

import (
	"math"
	"testing"
	"time"
)

// ----------------------------------------------------------------------------
// ParseDuration / ParsePace Tests
// ----------------------------------------------------------------------------

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   float64
		wantOK bool
	}{
		{name: "minutes and seconds", input: "5:30", want: 330, wantOK: true},
		{name: "hours minutes seconds", input: "1:23:45", want: 5025, wantOK: true},
		{name: "plain seconds", input: "90", want: 90, wantOK: true},
		{name: "fractional seconds", input: "4:05.5", want: 245.5, wantOK: true},
		{name: "surrounding whitespace", input: "  2:00 ", want: 120, wantOK: true},
		{name: "excel formula prefix", input: `="3:00"`, want: 180, wantOK: true},
		{name: "empty", input: "", wantOK: false},
		{name: "device placeholder", input: "--", wantOK: false},
		{name: "too many parts", input: "1:2:3:4", wantOK: false},
		{name: "empty part", input: "5:", wantOK: false},
		{name: "text", input: "fast", wantOK: false},
		{name: "negative part", input: "5:-3", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDuration(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseDuration(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ParseDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParsePace(t *testing.T) {
	got, ok := ParsePace("4:00")
	if !ok || got != 240 {
		t.Errorf("ParsePace(\"4:00\") = %v, %v; want 240, true", got, ok)
	}
	if _, ok := ParsePace(""); ok {
		t.Error("ParsePace(\"\") should be absent")
	}
}

// ----------------------------------------------------------------------------
// CoerceNumeric Tests
// ----------------------------------------------------------------------------

func TestCoerceNumeric(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  any
	}{
		{name: "integer string", input: "152", want: int64(152)},
		{name: "thousands separator", input: "1,234", want: int64(1234)},
		{name: "decimal string", input: "4.25", want: 4.25},
		{name: "padded", input: " 7 ", want: int64(7)},
		{name: "integral float string", input: "3.0", want: int64(3)},
		{name: "int passes through", input: 12, want: int64(12)},
		{name: "float passes through", input: 1.5, want: 1.5},
		{name: "NaN", input: math.NaN(), want: nil},
		{name: "infinity", input: math.Inf(1), want: nil},
		{name: "NaN string", input: "NaN", want: nil},
		{name: "placeholder", input: "--", want: nil},
		{name: "empty", input: "", want: nil},
		{name: "garbage", input: "abc", want: nil},
		{name: "nil", input: nil, want: nil},
		{name: "unsupported type", input: []int{1}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoerceNumeric(tt.input)
			if got != tt.want {
				t.Errorf("CoerceNumeric(%v) = %#v, want %#v", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// CleanCell Tests
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  hello  ", "hello"},
		{`="00123"`, "00123"},
		{"=SUM", "SUM"},
		{`"quoted"`, "quoted"},
		{"\ufeffラップ", "ラップ"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := CleanCell(tt.input); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// ----------------------------------------------------------------------------
// parseDate Tests
// ----------------------------------------------------------------------------

func TestParseDate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   time.Time
		wantOK bool
	}{
		{name: "ISO", input: "2024-03-01", want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), wantOK: true},
		{name: "slashes", input: "2024/03/01", want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), wantOK: true},
		{name: "japanese", input: "2024年3月1日", want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), wantOK: true},
		{name: "US", input: "03/04/2024", want: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), wantOK: true},
		{name: "with time", input: "2024-03-01 06:30:00", want: time.Date(2024, 3, 1, 6, 30, 0, 0, time.UTC), wantOK: true},
		{name: "empty", input: "", wantOK: false},
		{name: "garbage", input: "yesterday", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseDate(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("parseDate(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("parseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
