package templates

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/runimport/internal/core"
)

func TestErrorAlert_EscapesText(t *testing.T) {
	var buf bytes.Buffer
	err := ErrorAlert(`<script>x</script>`, "Try again", "FILE005").Render(context.Background(), &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "Code: FILE005")
	assert.Contains(t, out, "Try again")
}

func TestPreviewSummary(t *testing.T) {
	res := &core.PreviewResult{
		Message:    "Read 1 rows as device_export (shift_jis)",
		Format:     core.FormatDeviceExport,
		Encoding:   "shift_jis",
		TotalRows:  1,
		ValidRows:  1,
		Columns:    []string{"lap_number", "lap_time"},
		SampleRows: []core.Row{{"lap_number": "1", "lap_time": "5:00"}},
		Warnings: []core.Warning{{
			Type: core.WarnGarbledColumns, Message: "2 column names look garbled", Severity: core.SeverityWarning,
		}},
		EstimatedWorkoutType: core.WorkoutJog,
	}

	var buf bytes.Buffer
	require.NoError(t, PreviewSummary(res).Render(context.Background(), &buf))
	out := buf.String()

	assert.Contains(t, out, "<th>lap_time</th>")
	assert.Contains(t, out, "<td>5:00</td>")
	assert.Contains(t, out, "shift_jis")
	assert.Contains(t, out, `class="warning-warning"`)
	assert.Contains(t, out, "jog, 0 fast laps")
}

func TestImportSummary(t *testing.T) {
	res := &core.ImportResult{
		Message:    "Imported 2 workouts",
		FailedRows: []core.FailedRow{{Row: 1, Error: "distance: distance must be positive"}},
	}

	var buf bytes.Buffer
	require.NoError(t, ImportSummary(res, 2).Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), "2 saved")
	assert.Contains(t, buf.String(), "Row 2: distance: distance must be positive")

	buf.Reset()
	require.NoError(t, ImportSummary(res, -1).Render(context.Background(), &buf))
	assert.NotContains(t, buf.String(), "saved")
}
