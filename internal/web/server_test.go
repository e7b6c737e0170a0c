package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/graphupload/internal/config"
	"github.com/JonMunkholm/graphupload/internal/core"
	"github.com/JonMunkholm/graphupload/internal/ingest"
	"github.com/JonMunkholm/graphupload/internal/proxy"
)

// backendStub records what the fetch endpoint received and answers with a
// canned status and body.
type backendStub struct {
	status int
	body   string

	mu  sync.Mutex
	got []map[string]any
}

func (b *backendStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	_ = json.NewDecoder(r.Body).Decode(&req)
	b.mu.Lock()
	b.got = append(b.got, req)
	b.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.status)
	io.WriteString(w, b.body)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(func(string) (string, bool) { return "", false })
	require.NoError(t, err)
	cfg.Rate.Enabled = false
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, backend http.Handler) *Server {
	t.Helper()
	if backend == nil {
		backend = &backendStub{status: http.StatusOK, body: `{}`}
	}
	upstream := httptest.NewServer(backend)
	t.Cleanup(upstream.Close)

	svc := core.NewService(
		proxy.NewClient(upstream.URL, 2*time.Second),
		core.NewMemoryHistoryStore(50),
		core.NewIngestLimiter(4, time.Second),
		core.Options{
			Ingest:      ingest.DefaultOptions(),
			MaxFileSize: cfg.Upload.MaxFileSize,
			Timeout:     5 * time.Second,
		},
	)
	srv := NewServer(svc, cfg)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, view, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if view != "" {
		require.NoError(t, mw.WriteField("view", view))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/ingest/file", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestIngestFile(t *testing.T) {
	srv := newTestServer(t, testConfig(t), nil)

	rec := serve(srv, uploadRequest(t, "v1", "intake.csv", "date,fiber\n2024-01-01,12\n2024-01-02,9\n"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode(t, rec)
	assert.Equal(t, "Loaded 2 rows from local file.", got["status"])
	result := got["result"].(map[string]any)
	assert.Equal(t, "date", result["xKey"])
	assert.Equal(t, []any{"fiber"}, result["numericKeys"])

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/api/views/v1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, got["id"], decode(t, rec)["id"])
}

func TestIngestFile_Errors(t *testing.T) {
	tests := []struct {
		name       string
		maxSize    int64
		filename   string
		content    string
		wantStatus int
		wantCode   string
	}{
		{"no file", 0, "", "", http.StatusBadRequest, "FILE004"},
		{"empty dataset", 0, "empty.csv", "\n\n", http.StatusBadRequest, "FILE005"},
		{"malformed json", 0, "bad.json", `[{"a":1},`, http.StatusBadRequest, "FILE006"},
		{"unsupported", 0, "blob", "\x00\x01\x02\x03\x00\x00", http.StatusUnsupportedMediaType, "FILE002"},
		{"too large", 16, "big.csv", strings.Repeat("a,b\n", 20), http.StatusRequestEntityTooLarge, "FILE001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			if tt.maxSize > 0 {
				cfg.Upload.MaxFileSize = tt.maxSize
			}
			srv := newTestServer(t, cfg, nil)

			rec := serve(srv, uploadRequest(t, "v1", tt.filename, tt.content))
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			body := decode(t, rec)
			assert.Equal(t, tt.wantCode, body["code"])
			assert.Equal(t, body["message"], body["error"])
			assert.NotEmpty(t, body["action"])
		})
	}
}

func TestIngestFile_OverflowingNumber(t *testing.T) {
	srv := newTestServer(t, testConfig(t), nil)

	rec := serve(srv, uploadRequest(t, "big", "d.json", `[{"day":"Mon","v":1e999},{"day":"Tue","v":4}]`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decode(t, rec)["result"].(map[string]any)
	rows := result["rows"].([]any)
	assert.Equal(t, "1e999", rows[0].(map[string]any)["v"])
	assert.Equal(t, []any{"v"}, result["numericKeys"])

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/api/views/big", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["result"])
}

func TestIngestFile_InvalidView(t *testing.T) {
	srv := newTestServer(t, testConfig(t), nil)
	rec := serve(srv, uploadRequest(t, "../etc", "a.csv", "a,b\n1,2\n"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProxyFetch(t *testing.T) {
	tests := []struct {
		name       string
		upStatus   int
		upBody     string
		reqBody    string
		wantStatus int
		wantError  string
	}{
		{
			name:       "upstream error is verbatim",
			upStatus:   http.StatusGatewayTimeout,
			upBody:     `{"error":"timeout"}`,
			reqBody:    `{"url":"https://example.com/data.csv"}`,
			wantStatus: http.StatusGatewayTimeout,
			wantError:  "timeout",
		},
		{
			name:       "upstream detail",
			upStatus:   http.StatusBadGateway,
			upBody:     `{"detail":"Failed to fetch remote asset: 404"}`,
			reqBody:    `{"url":"https://example.com/missing.csv"}`,
			wantStatus: http.StatusBadGateway,
			wantError:  "Failed to fetch remote asset: 404",
		},
		{
			name:       "missing url",
			reqBody:    `{"signed_ttl_seconds":60}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Missing required 'url' field",
		},
		{
			name:       "malformed body",
			reqBody:    `{"url":`,
			wantStatus: http.StatusInternalServerError,
			wantError:  "Unable to process fetch request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &backendStub{status: tt.upStatus, body: tt.upBody}
			srv := newTestServer(t, testConfig(t), backend)

			rec := serve(srv, jsonRequest(http.MethodPost, "/api/ingest/fetch", tt.reqBody))
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, map[string]any{"error": tt.wantError}, decode(t, rec))
		})
	}
}

func TestProxyFetch_Success(t *testing.T) {
	backend := &backendStub{status: http.StatusOK, body: `{"source":"https://example.com/d.json","data":[{"day":"Mon","steps":100}]}`}
	srv := newTestServer(t, testConfig(t), backend)

	rec := serve(srv, jsonRequest(http.MethodPost, "/api/ingest/fetch", `{"url":"https://example.com/d.json","signed_ttl_seconds":120}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, []any{map[string]any{"day": "Mon", "steps": float64(100)}}, body["data"])
	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.got, 1)
	assert.Equal(t, "https://example.com/d.json", backend.got[0]["url"])
	assert.EqualValues(t, 120, backend.got[0]["signed_ttl_seconds"])
}

func TestProxyFetch_RelaysBodyVerbatim(t *testing.T) {
	body := `{"data":[{"id":9007199254740993,"day":"Mon"}],"rows_total":1,"source":"https://example.com/d.json"}`
	srv := newTestServer(t, testConfig(t), &backendStub{status: http.StatusOK, body: body})

	rec := serve(srv, jsonRequest(http.MethodPost, "/api/ingest/fetch", `{"url":"https://example.com/d.json"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, body, rec.Body.String())
}

func TestIngestURL(t *testing.T) {
	backend := &backendStub{status: http.StatusOK, body: `{"data":[{"day":"Mon","steps":100},{"day":"Tue","steps":200}]}`}
	srv := newTestServer(t, testConfig(t), backend)

	rec := serve(srv, jsonRequest(http.MethodPost, "/api/ingest/url", `{"view":"remote","url":"https://example.com/steps.json"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode(t, rec)
	assert.Equal(t, "Fetched 2 rows from proxy.", got["status"])
	result := got["result"].(map[string]any)
	assert.Equal(t, "day", result["xKey"])
	assert.Equal(t, []any{"steps"}, result["numericKeys"])
}

func TestIngestURL_ProxyFailure(t *testing.T) {
	backend := &backendStub{status: http.StatusGatewayTimeout, body: `{"error":"timeout"}`}
	srv := newTestServer(t, testConfig(t), backend)

	rec := serve(srv, jsonRequest(http.MethodPost, "/api/ingest/url", `{"view":"remote","url":"https://example.com/slow"}`))
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "timeout", body["error"])
	assert.Equal(t, "NET001", body["code"])

	// The failure cleared the view.
	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/api/views/remote", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode(t, rec)
	assert.Nil(t, view["result"])
	assert.Equal(t, "URL fetch failed.", view["status"])
}

func TestIngestURL_FormMissingURL(t *testing.T) {
	srv := newTestServer(t, testConfig(t), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ingest/url", strings.NewReader("view=form"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := serve(srv, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "NET002", decode(t, rec)["code"])
}

func TestIngestSample_HTMX(t *testing.T) {
	srv := newTestServer(t, testConfig(t), nil)

	req := jsonRequest(http.MethodPost, "/api/ingest/sample", `{"view":"panel"}`)
	req.Header.Set("HX-Request", "true")
	rec := serve(srv, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	html := rec.Body.String()
	assert.Contains(t, html, "Loaded 10 rows from sample dataset.")
	assert.Contains(t, html, `<table class="preview">`)
	assert.Contains(t, html, `<table class="summary">`)
}

func TestErrorPartial_HTMX(t *testing.T) {
	srv := newTestServer(t, testConfig(t), nil)

	req := uploadRequest(t, "v1", "", "")
	req.Header.Set("HX-Request", "true")
	rec := serve(srv, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `role="alert"`)
	assert.Contains(t, rec.Body.String(), "FILE004")
}

func TestDashboard(t *testing.T) {
	srv := newTestServer(t, testConfig(t), nil)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	html := rec.Body.String()
	assert.Contains(t, html, "Loaded 10 rows from sample dataset.")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	// Forms work with HTMX loaded and as plain posts without it.
	assert.Contains(t, html, `<script src="https://unpkg.com/htmx.org@`)
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "https://unpkg.com")
	assert.Contains(t, html, `method="post" action="/api/ingest/file" enctype="multipart/form-data"`)
	assert.Contains(t, html, `method="post" action="/api/ingest/url"`)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, viewCookie, cookies[0].Name)

	// The cookie selects the same view on the next request.
	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/api/views/"+cookies[0].Value, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIngestFile_BrowserFormRedirects(t *testing.T) {
	srv := newTestServer(t, testConfig(t), nil)

	req := uploadRequest(t, "", "intake.csv", "date,fiber\n2024-01-01,12\n")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.AddCookie(&http.Cookie{Name: viewCookie, Value: "browser"})
	rec := serve(srv, req)

	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/", rec.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: viewCookie, Value: "browser"})
	rec = serve(srv, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Loaded 1 rows from local file.")
}

func TestGetView(t *testing.T) {
	srv := newTestServer(t, testConfig(t), nil)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/views/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/api/views/has.dot", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory(t *testing.T) {
	srv := newTestServer(t, testConfig(t), nil)

	for _, view := range []string{"a", "b", "c"} {
		rec := serve(srv, jsonRequest(http.MethodPost, "/api/ingest/sample", `{"view":"`+view+`"}`))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/history?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []core.HistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].View)
	assert.Equal(t, 10, entries[0].Rows)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, testConfig(t), nil)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "ingestions")
}

func TestIngestRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rate.Enabled = true
	cfg.Rate.IngestLimit = 1
	srv := newTestServer(t, cfg, nil)

	rec := serve(srv, jsonRequest(http.MethodPost, "/api/ingest/sample", `{"view":"r"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(srv, jsonRequest(http.MethodPost, "/api/ingest/sample", `{"view":"r"}`))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Other API routes have their own budget.
	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	srv := newTestServer(t, cfg, nil)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = serve(srv, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Pages stay public.
	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_WindowReset(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.stop()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("1.2.3.4"))
	assert.True(t, rl.allow("1.2.3.4"))
	assert.False(t, rl.allow("1.2.3.4"))
	assert.True(t, rl.allow("5.6.7.8"), "other IPs have their own budget")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.allow("1.2.3.4"))
}
