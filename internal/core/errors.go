package core

import "errors"

// Fatal conditions. Everything else degrades into warnings.
var (
	// ErrEmptyFile is returned for an empty buffer or a table with no data rows.
	ErrEmptyFile = errors.New("empty file")

	// ErrUnsupportedFormat is returned when the columns match no known schema.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrDecodeExhausted is returned when no decoding strategy produced a table.
	ErrDecodeExhausted = errors.New("encoding error: no decoding strategy succeeded")

	// ErrTooManyImports is returned when the import limiter is saturated.
	ErrTooManyImports = errors.New("too many imports in progress")
)

// ErrNoWorkouts is returned by Import when every row failed extraction.
var ErrNoWorkouts = errors.New("no workouts extracted")
