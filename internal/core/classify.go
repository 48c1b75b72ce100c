package core

// Column sets that identify each schema family.
var (
	deviceRequired  = []string{ColLapNumber, ColLapTime, ColAvgPace, ColAvgHR}
	genericRequired = []string{ColDate, ColType, ColDistance, ColTime}
)

// ClassifyFormat decides the schema family from the normalized columns.
// Device exports take precedence when a table satisfies both.
func ClassifyFormat(t *DecodedTable) TableFormat {
	switch {
	case t.HasColumns(deviceRequired...):
		return FormatDeviceExport
	case t.HasColumns(genericRequired...):
		return FormatGeneric
	default:
		return FormatUnknown
	}
}
