package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/runimport/internal/config"
	"github.com/JonMunkholm/runimport/internal/core"
)

const genericCSV = "Date,Type,Distance,Time\n" +
	"2024-03-01,tempo,10.5,45:30\n" +
	"2024-03-02,jog,0,30:00\n"

type fakeStore struct {
	saved   []*core.ImportResult
	saveErr error
	pingErr error
}

func (f *fakeStore) SaveWorkouts(_ context.Context, res *core.ImportResult) (int64, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.saved = append(f.saved, res)
	return int64(len(res.Records)), nil
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 10 * time.Second, ShutdownTimeout: time.Second},
		Upload: config.UploadConfig{
			MaxFileSize:   1 << 20,
			MaxConcurrent: 2,
			MaxWaitTime:   50 * time.Millisecond,
			Timeout:       10 * time.Second,
		},
		Import: config.ImportConfig{PreviewRows: 20},
	}
}

func newTestServer(store WorkoutStore, mutate ...func(*config.Config)) *Server {
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}
	engine := core.NewEngine(core.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return NewServer(engine, store, cfg)
}

func uploadRequest(t *testing.T, path string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if content != nil {
		fw, err := mw.CreateFormFile("file", "log.csv")
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	t.Run("storage disabled", func(t *testing.T) {
		rec := serve(newTestServer(nil), httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]any{"status": "ok", "storage": "disabled"}, decode(t, rec))
	})

	t.Run("database unreachable", func(t *testing.T) {
		s := newTestServer(&fakeStore{pingErr: errors.New("dial tcp: connection refused")})
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "unreachable", decode(t, rec)["storage"])
	})
}

func TestPreview(t *testing.T) {
	s := newTestServer(nil)
	rec := serve(s, uploadRequest(t, "/api/preview", []byte(genericCSV), map[string]string{"max_rows": "1"}))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	body := decode(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "generic", body["format"])
	assert.Equal(t, 2.0, body["total_rows"])
	assert.Len(t, body["sample_rows"], 1)
}

func TestPreview_HTMX(t *testing.T) {
	req := uploadRequest(t, "/api/preview", []byte(genericCSV), nil)
	req.Header.Set("HX-Request", "true")

	rec := serve(newTestServer(nil), req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<th>Date</th>")
}

func TestImport_PersistsRecords(t *testing.T) {
	store := &fakeStore{}
	rec := serve(newTestServer(store), uploadRequest(t, "/api/import", []byte(genericCSV), nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["persisted"])
	assert.Equal(t, 1.0, body["stored"])
	assert.Len(t, body["records"], 1)
	assert.Len(t, body["failed_rows"], 1)

	require.Len(t, store.saved, 1)
	assert.Equal(t, "log.csv", store.saved[0].Records[0].SourceFile)
}

func TestImport_WithoutStore(t *testing.T) {
	rec := serve(newTestServer(nil), uploadRequest(t, "/api/import", []byte(genericCSV), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["persisted"])
	assert.Equal(t, 0.0, body["stored"])
}

func TestImport_StoreFailure(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("ERROR: deadlock detected")}
	rec := serve(newTestServer(store), uploadRequest(t, "/api/import", []byte(genericCSV), nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "DB007", decode(t, rec)["code"])
}

func TestUploadErrors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		content  []byte
		fields   map[string]string
		mutate   func(*config.Config)
		wantCode int
		wantErr  string
	}{
		{
			name:     "unsupported format",
			path:     "/api/import",
			content:  []byte("foo,bar\n1,2\n"),
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "FMT001",
		},
		{
			name:     "empty file",
			path:     "/api/preview",
			content:  []byte{},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "FILE005",
		},
		{
			name:     "no workouts",
			path:     "/api/import",
			content:  []byte("Date,Type,Distance,Time\n2024-03-02,jog,0,30:00\n"),
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "FMT002",
		},
		{
			name:     "missing file field",
			path:     "/api/import",
			fields:   map[string]string{"encoding": "utf-8"},
			wantCode: http.StatusBadRequest,
			wantErr:  "FILE004",
		},
		{
			name:     "file too large",
			path:     "/api/import",
			content:  bytes.Repeat([]byte("a"), 100),
			mutate:   func(c *config.Config) { c.Upload.MaxFileSize = 10 },
			wantCode: http.StatusRequestEntityTooLarge,
			wantErr:  "FILE001",
		},
		{
			name:     "bad max_rows",
			path:     "/api/preview",
			content:  []byte(genericCSV),
			fields:   map[string]string{"max_rows": "-3"},
			wantCode: http.StatusBadRequest,
			wantErr:  "REQ001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mutate []func(*config.Config)
			if tt.mutate != nil {
				mutate = append(mutate, tt.mutate)
			}
			s := newTestServer(nil, mutate...)

			rec := serve(s, uploadRequest(t, tt.path, tt.content, tt.fields))
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			body := decode(t, rec)
			assert.Equal(t, tt.wantErr, body["code"])
			assert.NotEmpty(t, body["action"])
		})
	}
}

func TestUploadErrors_ReportDetectedColumns(t *testing.T) {
	for _, path := range []string{"/api/preview", "/api/import"} {
		t.Run(path, func(t *testing.T) {
			rec := serve(newTestServer(nil), uploadRequest(t, path, []byte("foo,bar\n1,2\n"), nil))
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

			body := decode(t, rec)
			assert.Equal(t, "FMT001", body["code"])
			assert.Equal(t, "unknown", body["format"])
			assert.Equal(t, []any{"foo", "bar"}, body["columns"])
			assert.NotEmpty(t, body["encoding"])
		})
	}

	t.Run("nothing decoded", func(t *testing.T) {
		rec := serve(newTestServer(nil), uploadRequest(t, "/api/import", []byte{}, nil))
		body := decode(t, rec)
		assert.Equal(t, "FILE005", body["code"])
		assert.NotContains(t, body, "columns")
	})
}

func TestUploadErrors_HTMX(t *testing.T) {
	req := uploadRequest(t, "/api/import", []byte("foo,bar\n1,2\n"), nil)
	req.Header.Set("HX-Request", "true")

	rec := serve(newTestServer(nil), req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `role="alert"`)
	assert.Contains(t, rec.Body.String(), "Code: FMT001")
}

func TestImport_BusyLimiter(t *testing.T) {
	s := newTestServer(nil, func(c *config.Config) { c.Upload.MaxConcurrent = 1 })
	require.True(t, s.limiter.TryAcquire())
	defer s.limiter.Release()

	rec := serve(s, uploadRequest(t, "/api/import", []byte(genericCSV), nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "UPL002", decode(t, rec)["code"])

	status := serve(s, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, map[string]any{"active": 1.0, "available": 0.0, "max_concurrent": 1.0},
		decode(t, status)["imports"])
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(nil, func(c *config.Config) {
		c.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, UploadLimit: 1}
	})
	defer s.Shutdown(context.Background())

	first := serve(s, uploadRequest(t, "/api/preview", []byte(genericCSV), nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := serve(s, uploadRequest(t, "/api/preview", []byte(genericCSV), nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "RATE001", decode(t, second)["code"])
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}

func TestRateLimiter_Window(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := &rateLimiter{limit: 2, window: time.Minute, now: func() time.Time { return now }, clients: map[string]*windowCount{}}

	allowed := func(ip string) bool {
		ok, _ := rl.allow(ip)
		return ok
	}

	assert.True(t, allowed("a"))
	now = now.Add(20 * time.Second)
	assert.True(t, allowed("a"))

	ok, retry := rl.allow("a")
	assert.False(t, ok)
	assert.Equal(t, 40*time.Second, retry)
	assert.True(t, allowed("b"), "clients are limited independently")

	now = now.Add(41 * time.Second)
	assert.True(t, allowed("a"), "a new window resets the count")

	now = now.Add(3 * time.Minute)
	rl.evict()
	assert.Empty(t, rl.clients)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrEmptyFile, http.StatusUnprocessableEntity},
		{core.ErrDecodeExhausted, http.StatusUnprocessableEntity},
		{core.ErrTooManyImports, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errNoFile, http.StatusBadRequest},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
