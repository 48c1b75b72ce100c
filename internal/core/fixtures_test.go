package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// lap is one device export row keyed by canonical column.
type lap map[string]string

func newLap(label, lapTime, distance, pace, hr string) lap {
	return lap{
		ColLapNumber: label,
		ColLapTime:   lapTime,
		ColDistance:  distance,
		ColAvgPace:   pace,
		ColAvgHR:     hr,
	}
}

// with returns a copy of l with extra cells set.
func (l lap) with(kv ...string) lap {
	out := make(lap, len(l)+len(kv)/2)
	for k, v := range l {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

// deviceCSV renders a Japanese-locale device export with all 28 columns.
// Cells not set on a lap are written as "--".
func deviceCSV(laps ...lap) string {
	fields := DefaultCatalog().DeviceFields()
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.Japanese)
	}
	b.WriteString("\r\n")
	for _, l := range laps {
		for i, f := range fields {
			if i > 0 {
				b.WriteByte(',')
			}
			v, ok := l[f.Key]
			if !ok {
				v = "--"
			}
			b.WriteString(v)
		}
		b.WriteString("\r\n")
	}
	return b.String()
}

// intervalSession is two laps around a summary pace of 5:00.
func intervalSession() string {
	return deviceCSV(
		newLap("1", "4:10", "1.00", "4:10", "165"),
		newLap("2", "5:20", "1.00", "5:20", "150"),
		newLap("概要", "9:30", "2.00", "5:00", "158").with(ColCalories, "140", ColMaxHR, "172"),
	)
}

func encodeText(t *testing.T, enc encoding.Encoding, s string) []byte {
	t.Helper()
	b, _, err := transform.Bytes(enc.NewEncoder(), []byte(s))
	require.NoError(t, err)
	return b
}

func testEngine(opts ...Option) *Engine {
	n := 0
	base := []Option{WithIDGenerator(func() string {
		n++
		return "id-" + strings.Repeat("x", n)
	})}
	return NewEngine(append(base, opts...)...)
}
