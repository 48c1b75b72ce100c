package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
)

func newTestReader() *TableReader {
	h := DefaultHeuristics()
	return NewTableReader(DefaultCatalog(), &h, nil)
}

func TestRead_ShiftJISDeviceExport(t *testing.T) {
	r := newTestReader()
	data := encodeText(t, japanese.ShiftJIS, intervalSession())

	table, err := r.Read(context.Background(), data, "")
	require.NoError(t, err)

	assert.Equal(t, EncShiftJIS, table.Encoding)
	assert.False(t, table.Lossy)
	assert.Len(t, table.Columns, 28)
	assert.Equal(t, ColLapNumber, table.Columns[0])
	assert.Equal(t, "ラップ", table.RawColumns[0])
	require.Len(t, table.Rows, 3)
	assert.Equal(t, "概要", table.Value(table.Rows[2], ColLapNumber))
	assert.Equal(t, "4:10", table.Value(table.Rows[0], ColAvgPace))
}

func TestRead_HintIsHonored(t *testing.T) {
	r := newTestReader()
	data := encodeText(t, japanese.EUCJP, intervalSession())

	table, err := r.Read(context.Background(), data, "EUC-JP")
	require.NoError(t, err)
	assert.Equal(t, EncEUCJP, table.Encoding)
	assert.Equal(t, ColAvgPace, table.Columns[4])
}

func TestRead_UnknownHintFallsBackToDetection(t *testing.T) {
	r := newTestReader()
	data := encodeText(t, japanese.ShiftJIS, intervalSession())

	table, err := r.Read(context.Background(), data, "klingon")
	require.NoError(t, err)
	assert.Equal(t, EncShiftJIS, table.Encoding)
}

func TestRead_WrongHintCascades(t *testing.T) {
	r := newTestReader()
	data := encodeText(t, japanese.ShiftJIS, intervalSession())

	// Shift_JIS bytes fail strict UTF-8, so the cascade must recover.
	table, err := r.Read(context.Background(), data, "utf-8")
	require.NoError(t, err)
	assert.Equal(t, EncShiftJIS, table.Encoding)
	assert.Equal(t, ColLapNumber, table.Columns[0])
}

func TestRead_RowsAlignedToHeader(t *testing.T) {
	r := newTestReader()
	data := []byte("date,type,distance,time\n2024-01-01,jog\n2024-01-02,jog,5,30:00,extra\n\n")

	table, err := r.Read(context.Background(), data, "")
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)

	for _, row := range table.Rows {
		assert.Len(t, row, 4)
	}
	assert.Equal(t, "", table.Rows[0]["time"])
	assert.Equal(t, "30:00", table.Rows[1]["time"])
}

func TestRead_FatalErrors(t *testing.T) {
	r := newTestReader()
	ctx := context.Background()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty buffer", data: nil, want: ErrEmptyFile},
		{name: "whitespace only", data: []byte("\n\n"), want: ErrEmptyFile},
		{name: "header only", data: encodeText(t, japanese.ShiftJIS, "ラップ,タイム\r\n"), want: ErrEmptyFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Read(ctx, tt.data, "")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLossy_ReplacesInvalidBytes(t *testing.T) {
	r := newTestReader()

	table, err := r.lossy([]byte("a,b\n\x80x,1\n"))
	require.NoError(t, err)
	assert.True(t, table.Lossy)
	assert.Equal(t, EncUTF8, table.Encoding)
	assert.Equal(t, "\ufffdx", table.Rows[0]["a"])
}

func TestLossy_RejectsBinary(t *testing.T) {
	r := newTestReader()

	_, err := r.lossy([]byte{'a', ',', 'b', '\n', 0x00, 0x80, 0x81})
	assert.ErrorIs(t, err, ErrDecodeExhausted)
}

func TestScoreTable(t *testing.T) {
	r := newTestReader()
	h := DefaultHeuristics()

	good := r.buildTable(EncShiftJIS, [][]string{{"ラップ", "タイム"}, {"1", "5:00"}})
	bad := r.buildTable(EncUTF8, [][]string{{"ƒ‰ƒbƒv", "ƒ^ƒCƒ€"}, {"1", "5:00"}})

	wantGood := 2*h.PlausibleColumnWeight + 2*h.CanonicalColumnWeight + h.PlausibleRowsBonus
	assert.Equal(t, wantGood, r.scoreTable(good))
	assert.Equal(t, h.PlausibleRowsBonus, r.scoreTable(bad))
}
