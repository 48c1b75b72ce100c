package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/runimport/internal/core"
	"github.com/JonMunkholm/runimport/internal/logging"
	"github.com/JonMunkholm/runimport/internal/web/templates"
)

var errInvalidParameter = errors.New("invalid parameter")

// ImportResponse is the JSON body of a successful import.
type ImportResponse struct {
	*core.ImportResult
	Persisted bool  `json:"persisted"`
	Stored    int64 `json:"stored"`
}

// StatusResponse reports server load for monitoring.
type StatusResponse struct {
	Imports core.ImportLimiterStatus `json:"imports"`
	Storage bool                     `json:"storage"`
}

// handlePreview decodes an uploaded file and reports what an import would
// see, without extracting records.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if err := s.limiter.Acquire(r.Context()); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	defer s.limiter.Release()

	data, _, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	opts := core.PreviewOptions{
		Encoding: r.FormValue("encoding"),
		MaxRows:  s.cfg.Import.PreviewRows,
	}
	if v := r.FormValue("max_rows"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, r, fmt.Errorf("%w: max_rows=%q", errInvalidParameter, v), http.StatusBadRequest)
			return
		}
		opts.MaxRows = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Upload.Timeout)
	defer cancel()

	res, err := s.engine.Preview(ctx, data, opts)
	if err != nil {
		respondEngineError(w, r, err, statusFor(err), previewDiagnosis(res))
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.PreviewSummary(res).Render(ctx, w); err != nil {
			logging.FromContext(ctx).Error("render preview", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleImport extracts workout records from an uploaded file and saves
// them when a store is configured.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if err := s.limiter.Acquire(r.Context()); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	defer s.limiter.Release()

	data, filename, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Upload.Timeout)
	defer cancel()

	res, err := s.engine.Import(ctx, data, filename)
	if err != nil {
		respondEngineError(w, r, err, statusFor(err), importDiagnosis(res))
		return
	}

	stored := int64(-1)
	if s.store != nil {
		n, err := s.store.SaveWorkouts(ctx, res)
		if err != nil {
			respondError(w, r, fmt.Errorf("save workouts: %w", err), statusFor(err))
			return
		}
		stored = n
		logging.FromContext(ctx).Info("workouts saved", "file", filename, "stored", n)
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.ImportSummary(res, stored).Render(ctx, w); err != nil {
			logging.FromContext(ctx).Error("render import", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{
		ImportResult: res,
		Persisted:    s.store != nil,
		Stored:       max(stored, 0),
	})
}

// handleHealth reports liveness and, when configured, database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok", "storage": "disabled"}
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			logging.FromContext(ctx).Warn("health check: database unreachable", "error", err)
			resp["status"] = "degraded"
			resp["storage"] = "unreachable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp["storage"] = "enabled"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Imports: s.limiter.Status(),
		Storage: s.store != nil,
	})
}

// readUpload reads the multipart "file" field into memory, enforcing the
// configured size limit.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	// Leave room for the multipart envelope around the file.
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+64<<10)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, "", fmt.Errorf("%w: limit is %d bytes", errFileTooLarge, maxSize)
		}
		return nil, "", fmt.Errorf("%w: %v", errNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", errNoFile
	}
	defer file.Close()

	if header.Size > maxSize {
		return nil, "", fmt.Errorf("%w: %d bytes exceeds limit of %d", errFileTooLarge, header.Size, maxSize)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	return data, header.Filename, nil
}
