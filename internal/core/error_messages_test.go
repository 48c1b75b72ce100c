package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{errors.New("ERROR: duplicate key value violates unique constraint"), "DB001"},
		{errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), "DB004"},
		{errors.New("read: connection reset by peer"), "DB005"},
		{errors.New("i/o timeout"), "DB006"},
		{errors.New("ERROR: deadlock detected"), "DB007"},
		{fmt.Errorf("save: %w", errors.New("storage disabled: no database configured")), "DB008"},
		{errors.New("file too large: 12MB exceeds limit"), "FILE001"},
		{errors.New("http: request body too large"), "FILE001"},
		{errors.New("parse csv: bare quote in field"), "FILE002"},
		{ErrDecodeExhausted, "FILE003"},
		{errors.New("no file provided"), "FILE004"},
		{fmt.Errorf("read upload: %w", ErrEmptyFile), "FILE005"},
		{ErrUnsupportedFormat, "FMT001"},
		{ErrNoWorkouts, "FMT002"},
		{ErrTooManyImports, "UPL002"},
		{context.Canceled, "UPL004"},
		{context.DeadlineExceeded, "UPL005"},
		{errors.New(`invalid parameter: max_rows="x"`), "REQ001"},
		{errors.New("rate limit exceeded"), "RATE001"},
		{errors.New("DUPLICATE KEY value violates"), "DB001"},
		{errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got := MapError(tt.err)
			assert.Equal(t, tt.code, got.Code)
			assert.NotEmpty(t, got.Message)
			assert.NotEmpty(t, got.Action)
		})
	}

	assert.Equal(t, UserMessage{}, MapError(nil))
}

func TestMapError_Messages(t *testing.T) {
	assert.Equal(t, "This workout was already imported", MapError(errors.New("duplicate key")).Message)
	assert.Equal(t, "The file has no data rows", MapError(ErrEmptyFile).Message)
	assert.Equal(t, "No workouts could be read from the file", MapError(ErrNoWorkouts).Message)
	assert.Equal(t, "An unexpected error occurred", MapError(errors.New("boom")).Message)
}

func TestErrorCodes_Unique(t *testing.T) {
	seen := map[string]bool{}
	for _, ec := range errorCodes {
		require.False(t, seen[ec.msg.Code], "duplicate code %s", ec.msg.Code)
		seen[ec.msg.Code] = true
		for _, p := range ec.patterns {
			assert.Equal(t, strings.ToLower(p), p, "pattern %q must be lower case", p)
		}
	}
}

func TestFormatUserError(t *testing.T) {
	assert.Equal(t,
		"File format was not recognized (Code: FMT001). Upload a device lap export or a sheet with date, type, distance and time columns",
		FormatUserError(ErrUnsupportedFormat))
	assert.Empty(t, FormatUserError(nil))
}

func TestIsUserFacing(t *testing.T) {
	assert.False(t, IsUserFacing(nil))
	assert.True(t, IsUserFacing(ErrEmptyFile))
	assert.False(t, IsUserFacing(errors.New("random internal error xyz")))
}

func TestNewUserError(t *testing.T) {
	assert.Nil(t, NewUserError(nil))

	userErr := NewUserError(fmt.Errorf("import: %w", ErrNoWorkouts))
	require.NotNil(t, userErr)
	assert.Equal(t, "No workouts could be read from the file", userErr.Error())
	assert.ErrorIs(t, userErr, ErrNoWorkouts)
	assert.Equal(t, "FMT002", userErr.User.Code)
}
