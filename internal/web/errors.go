package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err, statusCode)
//  3. Error is mapped via core.MapError to get user-friendly message
//  4. Technical error + context is logged with request ID for correlation
//  5. User message is rendered as JSON, or as an HTML fragment for HTMX

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/JonMunkholm/runimport/internal/core"
	"github.com/JonMunkholm/runimport/internal/logging"
	"github.com/JonMunkholm/runimport/internal/web/templates"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`

	// Set when the engine read the file before rejecting it.
	Format   core.TableFormat `json:"format,omitempty"`
	Encoding string           `json:"encoding,omitempty"`
	Columns  []string         `json:"columns,omitempty"`
}

// tableDiagnosis is what the engine had decoded when it gave up.
type tableDiagnosis struct {
	Format   core.TableFormat
	Encoding string
	Columns  []string
}

func previewDiagnosis(res *core.PreviewResult) tableDiagnosis {
	if res == nil {
		return tableDiagnosis{}
	}
	return tableDiagnosis{Format: res.Format, Encoding: res.Encoding, Columns: res.Columns}
}

func importDiagnosis(res *core.ImportResult) tableDiagnosis {
	if res == nil {
		return tableDiagnosis{}
	}
	return tableDiagnosis{Format: res.Format, Encoding: res.Encoding, Columns: res.Columns}
}

var (
	errNoFile       = errors.New("no file provided")
	errFileTooLarge = errors.New("file too large")
)

// respondError logs the technical error and writes the mapped user message.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	respondEngineError(w, r, err, statusCode, tableDiagnosis{})
}

// respondEngineError is respondError plus the engine's view of the file, so
// a rejected upload still shows which columns were found.
func respondEngineError(w http.ResponseWriter, r *http.Request, err error, statusCode int, d tableDiagnosis) {
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(statusCode)
		if err := templates.ErrorAlert(userMsg.Message, userMsg.Action, userMsg.Code).Render(r.Context(), w); err != nil {
			logger.Error("render error alert", "error", err)
		}
		return
	}

	writeJSON(w, statusCode, ErrorResponse{
		Error:    userMsg.Message,
		Message:  userMsg.Message,
		Action:   userMsg.Action,
		Code:     userMsg.Code,
		Format:   d.Format,
		Encoding: d.Encoding,
		Columns:  d.Columns,
	})
}

// statusFor picks the HTTP status for an import pipeline error.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes), errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errNoFile):
		return http.StatusBadRequest
	case core.IsFatal(err), errors.Is(err, core.ErrNoWorkouts):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// clientIP strips the port from r.RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
