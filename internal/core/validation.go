package core

// validation.go provides structural row validation.
//
// Validation only checks that the cells an importer needs are present and
// that distances are positive. It never judges whether a workout is
// athletically plausible, and it never aborts: invalid rows are counted.

import (
	"fmt"
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Field/column name
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationResult contains the result of validating a row.
type ValidationResult struct {
	Valid  bool              // True if all validations passed
	Errors []ValidationError // List of validation errors (empty if Valid)
}

// ValidationSummary counts valid and invalid rows of a table.
type ValidationSummary struct {
	Total   int
	Valid   int
	Invalid int
	Results []ValidationResult // one per row, same order as the table
}

// RowValidator validates rows of one table against its format's rules.
type RowValidator struct {
	table    *DecodedTable
	required []string
}

// NewRowValidator creates a validator for t classified as format.
func NewRowValidator(t *DecodedTable, format TableFormat) *RowValidator {
	v := &RowValidator{table: t}
	switch format {
	case FormatDeviceExport:
		v.required = []string{ColLapNumber, ColLapTime}
	case FormatGeneric:
		v.required = []string{ColDate, ColType, ColTime}
	}
	return v
}

// ValidateRow returns every problem with a row.
func (v *RowValidator) ValidateRow(row Row) ValidationResult {
	result := ValidationResult{Valid: true}
	if v.required == nil {
		return result
	}

	for _, key := range v.required {
		if CleanCell(v.table.Value(row, key)) == "" {
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   key,
				Message: "required field is empty",
			})
		}
	}

	raw := CleanCell(v.table.Value(row, ColDistance))
	switch d, ok := parseNumber(raw); {
	case raw == "":
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Field:   ColDistance,
			Message: "required field is empty",
		})
	case !ok:
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Field:   ColDistance,
			Value:   raw,
			Message: "invalid number",
		})
	case d <= 0:
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Field:   ColDistance,
			Value:   raw,
			Message: "distance must be positive",
		})
	}

	return result
}

// ValidateRows validates every row of t. Unknown formats have no rules, so
// all their rows count as valid.
func ValidateRows(t *DecodedTable, format TableFormat) ValidationSummary {
	v := NewRowValidator(t, format)
	s := ValidationSummary{
		Total:   len(t.Rows),
		Results: make([]ValidationResult, len(t.Rows)),
	}
	for i, row := range t.Rows {
		res := v.ValidateRow(row)
		s.Results[i] = res
		if res.Valid {
			s.Valid++
		}
	}
	s.Invalid = s.Total - s.Valid
	return s
}
