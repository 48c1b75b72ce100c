package core

// error_messages.go turns technical errors into messages an athlete can act
// on. Each message carries a code to quote when reporting a problem:
//
//	DB00x    persistence of imported records
//	FILE00x  the uploaded bytes (size, CSV shape, decoding, emptiness)
//	FMT00x   recognized format and extracted workouts
//	UPL00x   import slots, cancellation and timeouts
//	REQ001   unusable request parameters
//	RATE001  per-client rate limits
//	ERR000   anything else; the technical error is in the logs
//
// Patterns are lower-case substrings of the error text; the first match wins.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // what happened, in user terms
	Action  string // what to do about it
	Code    string // quoted to support
}

// errorCode maps any of several case-insensitive substrings to one message.
type errorCode struct {
	patterns []string
	msg      UserMessage
}

func code(c, message, action string, patterns ...string) errorCode {
	return errorCode{patterns: patterns, msg: UserMessage{Message: message, Action: action, Code: c}}
}

// errorCodes is scanned in order; the first code with a matching pattern wins.
var errorCodes = []errorCode{
	code("DB001", "This workout was already imported",
		"Re-import creates new records; remove the duplicate first", "duplicate key"),
	code("DB004", "Unable to connect to database",
		"Imports still work; saving will resume once the database is back", "connection refused"),
	code("DB005", "The database connection dropped mid-save",
		"Import the file again", "connection reset"),
	code("DB006", "Saving the workouts took too long",
		"Try a smaller file or try again later", "timeout"),
	code("DB007", "Another import was saving at the same time",
		"Import the file again", "deadlock"),
	code("DB008", "Imported workouts cannot be saved on this server",
		"Ask an administrator to configure DATABASE_URL", "storage disabled"),

	code("FILE001", "File exceeds the maximum upload size",
		"Export a shorter activity or split the file", "file too large", "request body too large"),
	code("FILE002", "File is not a valid CSV",
		"Ensure the file is comma-separated text", "parse csv", "invalid csv"),
	code("FILE003", "File text could not be decoded",
		"Re-export the file from your device software, or save it as UTF-8", "encoding error"),
	code("FILE004", "No file was selected",
		"Choose a workout CSV to upload", "no file provided"),
	code("FILE005", "The file has no data rows",
		"Upload an export that contains at least one lap or workout", "empty file"),

	code("FMT001", "File format was not recognized",
		"Upload a device lap export or a sheet with date, type, distance and time columns", "unsupported format"),
	code("FMT002", "No workouts could be read from the file",
		"Check the failed rows for details", "no workouts extracted"),

	code("UPL002", "System is busy processing other imports",
		"Wait a moment and upload again", "too many imports"),
	code("UPL004", "Request was cancelled",
		"Upload the file again", "context canceled"),
	code("UPL005", "Request timed out",
		"Try a smaller file or check your connection", "context deadline exceeded"),

	code("REQ001", "A request parameter is not valid",
		"Check the form fields and try again", "invalid parameter"),
	code("RATE001", "Too many requests",
		"Wait a minute before uploading again", "rate limit"),
}

// defaultMessage is returned when no pattern matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Try again, or quote the code when reporting the problem",
	Code:    "ERR000",
}

// MapError converts a technical error to the first matching user message,
// or the ERR000 fallback.
//
// Example:
//
//	msg := MapError(fmt.Errorf("read upload: %w", ErrEmptyFile))
//	// msg.Code == "FILE005"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	text := strings.ToLower(err.Error())
	for _, ec := range errorCodes {
		for _, p := range ec.patterns {
			if strings.Contains(text, p) {
				return ec.msg
			}
		}
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than
// the generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps a technical error to a UserError. Returns nil for nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
