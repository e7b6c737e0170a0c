package core

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/graphupload/internal/ingest"
	"github.com/JonMunkholm/graphupload/internal/logging"
	"github.com/JonMunkholm/graphupload/internal/proxy"
)

// fakeFetcher answers Fetch with a canned response. When gate is set, Fetch
// signals started and blocks until gate is closed.
type fakeFetcher struct {
	resp    *proxy.FetchResponse
	err     error
	started chan struct{}
	gate    chan struct{}

	mu   sync.Mutex
	reqs []proxy.FetchRequest
}

func (f *fakeFetcher) Fetch(ctx context.Context, req proxy.FetchRequest) (*proxy.FetchResponse, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	if f.gate != nil {
		close(f.started)
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.resp, f.err
}

func records(t *testing.T, js string) []ingest.Record {
	t.Helper()
	res, err := ingest.ParseJSON(js, ingest.DefaultOptions())
	if err != nil {
		t.Fatalf("ParseJSON(%s): %v", js, err)
	}
	return res.Rows
}

func newTestService(f Fetcher) (*Service, *MemoryHistoryStore) {
	hist := NewMemoryHistoryStore(10)
	svc := NewService(f, hist, NewIngestLimiter(4, time.Second), Options{
		Ingest:      ingest.DefaultOptions(),
		MaxFileSize: 1 << 10,
		Timeout:     5 * time.Second,
		SignedTTL:   300,
	})
	return svc, hist
}

func TestIngestFile(t *testing.T) {
	svc, hist := newTestService(nil)
	ctx := ContextWithClientIP(context.Background(), "203.0.113.7")

	ing, err := svc.IngestFile(ctx, "v1", "steps.csv", strings.NewReader("day,steps\nMon,100\nTue,200"))
	if err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}
	if ing.Status != "Loaded 2 rows from local file." {
		t.Errorf("Status = %q", ing.Status)
	}
	if ing.ChartState() != ingest.StateReady {
		t.Errorf("ChartState() = %v, want ready", ing.ChartState())
	}
	if len(ing.Summary) != 1 || ing.Summary[0].Key != "steps" || ing.Summary[0].Mean != 150 {
		t.Errorf("Summary = %+v", ing.Summary)
	}
	if svc.Current("v1") != ing {
		t.Error("Current() is not the published ingestion")
	}
	if svc.Current("v2") != nil {
		t.Error("Current() for unknown view should be nil")
	}

	entries, _ := hist.List(ctx, 0)
	if len(entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(entries))
	}
	if e := entries[0]; e.Rows != 2 || e.XKey != "day" || e.ClientIP != "203.0.113.7" || e.Format != "csv" {
		t.Errorf("history entry = %+v", e)
	}
}

func TestIngestFile_FailureClearsView(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		body     string
		wantCode string
	}{
		{"empty dataset", "empty.csv", "", "FILE005"},
		{"header only", "header.csv", "a,b", "FILE005"},
		{"malformed json", "bad.json", "[1,2]", "FILE006"},
		{"unsupported binary", "photo", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR", "FILE002"},
		{"too large", "big.csv", "a\n" + strings.Repeat("1\n", 1<<10), "FILE001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(nil)
			ctx := context.Background()

			if _, err := svc.IngestSample(ctx, "v"); err != nil {
				t.Fatalf("IngestSample() error = %v", err)
			}

			ing, err := svc.IngestFile(ctx, "v", tt.file, strings.NewReader(tt.body))
			if err == nil {
				t.Fatal("IngestFile() expected error")
			}
			if ing.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q (err %v)", ing.Code, tt.wantCode, err)
			}
			if ing.Status != StatusUploadFailed {
				t.Errorf("Status = %q, want %q", ing.Status, StatusUploadFailed)
			}
			cur := svc.Current("v")
			if cur != ing || cur.Result != nil {
				t.Errorf("view not cleared after failure: %+v", cur)
			}
		})
	}
}

func TestIngestFile_NoReader(t *testing.T) {
	svc, _ := newTestService(nil)
	ing, err := svc.IngestFile(context.Background(), "v", "", nil)
	if !errors.Is(err, ErrNoFile) {
		t.Fatalf("err = %v, want ErrNoFile", err)
	}
	if ing.Code != "FILE004" {
		t.Errorf("Code = %q, want FILE004", ing.Code)
	}
}

func TestIngestSample(t *testing.T) {
	svc, _ := newTestService(nil)
	ing, err := svc.EnsureView(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("EnsureView() error = %v", err)
	}
	if ing.Rows() != 10 {
		t.Errorf("rows = %d, want 10", ing.Rows())
	}
	if x, _ := ing.Result.XAxis(); x != "Date" {
		t.Errorf("xKey = %q, want Date", x)
	}
	if got := len(ing.Result.Series()); got != 5 {
		t.Errorf("series = %d, want 5", got)
	}

	again, _ := svc.EnsureView(context.Background(), "fresh")
	if again != ing {
		t.Error("EnsureView() reloaded a view that already had data")
	}
}

func TestIngestURL_Rows(t *testing.T) {
	f := &fakeFetcher{resp: &proxy.FetchResponse{
		Data: records(t, `[{"day":"Mon","kcal":2000},{"day":"Tue","kcal":"2100"}]`),
	}}
	svc, _ := newTestService(f)

	ing, err := svc.IngestURL(context.Background(), "v", "  https://example.com/data.csv ")
	if err != nil {
		t.Fatalf("IngestURL() error = %v", err)
	}
	if ing.Status != "Fetched 2 rows from proxy." {
		t.Errorf("Status = %q", ing.Status)
	}
	if ing.Result.Format != ingest.FormatProxy {
		t.Errorf("Format = %v, want proxy", ing.Result.Format)
	}
	if x, _ := ing.Result.XAxis(); x != "day" {
		t.Errorf("xKey = %q, want day", x)
	}
	if len(f.reqs) != 1 || f.reqs[0].URL != "https://example.com/data.csv" {
		t.Fatalf("requests = %+v", f.reqs)
	}
	if ttl := f.reqs[0].SignedTTLSeconds; ttl == nil || *ttl != 300 {
		t.Errorf("SignedTTLSeconds = %v, want 300", ttl)
	}
}

func TestIngestURL_SignedAsset(t *testing.T) {
	f := &fakeFetcher{resp: &proxy.FetchResponse{
		SignedURL:   "https://storage.example.com/a?sig=1",
		ContentType: "application/pdf",
	}}
	svc, _ := newTestService(f)

	ing, err := svc.IngestURL(context.Background(), "v", "https://example.com/report.pdf")
	if err != nil {
		t.Fatalf("IngestURL() error = %v", err)
	}
	if ing.Status != StatusSignedAsset {
		t.Errorf("Status = %q", ing.Status)
	}
	if ing.Asset == nil || ing.Asset.SignedURL != "https://storage.example.com/a?sig=1" {
		t.Errorf("Asset = %+v", ing.Asset)
	}
	if ing.Result != nil {
		t.Error("signed asset should not carry a chart")
	}
}

func TestIngestURL_NoData(t *testing.T) {
	svc, _ := newTestService(&fakeFetcher{resp: &proxy.FetchResponse{}})

	ing, err := svc.IngestURL(context.Background(), "v", "https://example.com/empty")
	if err != nil {
		t.Fatalf("IngestURL() error = %v", err)
	}
	if ing.Status != StatusNoProxyData {
		t.Errorf("Status = %q", ing.Status)
	}
}

func TestIngestURL_ProxyErrorVerbatim(t *testing.T) {
	f := &fakeFetcher{err: &proxy.Error{Status: http.StatusGatewayTimeout, Message: "timeout"}}
	svc, _ := newTestService(f)

	ing, err := svc.IngestURL(context.Background(), "v", "https://slow.example.com")
	if err == nil {
		t.Fatal("IngestURL() expected error")
	}
	if ing.Error != "timeout" {
		t.Errorf("Error = %q, want verbatim %q", ing.Error, "timeout")
	}
	if ing.Code != "NET001" {
		t.Errorf("Code = %q, want NET001", ing.Code)
	}
	if ing.Status != StatusFetchFailed {
		t.Errorf("Status = %q", ing.Status)
	}
	if got := HTTPStatus(err); got != http.StatusGatewayTimeout {
		t.Errorf("HTTPStatus() = %d, want 504", got)
	}
}

func TestIngestURL_MissingURL(t *testing.T) {
	f := &fakeFetcher{}
	svc, _ := newTestService(f)

	ing, err := svc.IngestURL(context.Background(), "v", "   ")
	if !errors.Is(err, proxy.ErrMissingURL) {
		t.Fatalf("err = %v, want ErrMissingURL", err)
	}
	if ing.Error != "Missing required 'url' field" {
		t.Errorf("Error = %q", ing.Error)
	}
	if len(f.reqs) != 0 {
		t.Error("fetcher called without a URL")
	}
}

func TestLastRequestWins(t *testing.T) {
	f := &fakeFetcher{
		resp:    &proxy.FetchResponse{Data: records(t, `[{"day":"Mon","kcal":1}]`)},
		started: make(chan struct{}),
		gate:    make(chan struct{}),
	}
	svc, hist := newTestService(f)
	ctx := context.Background()

	type result struct {
		ing *Ingestion
		err error
	}
	slow := make(chan result, 1)
	go func() {
		ing, err := svc.IngestURL(ctx, "v", "https://example.com/slow.json")
		slow <- result{ing, err}
	}()
	<-f.started

	fast, err := svc.IngestFile(ctx, "v", "fast.csv", strings.NewReader("day,steps\nMon,5"))
	if err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}

	close(f.gate)
	got := <-slow
	if !errors.Is(got.err, ErrStaleIngestion) {
		t.Fatalf("slow ingestion err = %v, want ErrStaleIngestion", got.err)
	}
	if svc.Current("v") != fast {
		t.Error("stale ingestion replaced the newer one")
	}

	entries, _ := hist.List(ctx, 0)
	if len(entries) != 1 || entries[0].ID != fast.ID {
		t.Errorf("history = %+v, want only the published ingestion", entries)
	}
}

func TestViewsAreIndependent(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	a, _ := svc.IngestFile(ctx, "a", "a.csv", strings.NewReader("x,y\n1,2"))
	_, _ = svc.IngestFile(ctx, "b", "b.csv", strings.NewReader(""))

	if svc.Current("a") != a {
		t.Error("failure in view b affected view a")
	}
}

func TestIngest_BusyLimiter(t *testing.T) {
	limiter := NewIngestLimiter(1, 10*time.Millisecond)
	svc := NewService(nil, nil, limiter, Options{})
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	ing, err := svc.IngestSample(context.Background(), "v")
	if !errors.Is(err, ErrTooManyIngestions) {
		t.Fatalf("err = %v, want ErrTooManyIngestions", err)
	}
	if ing.Code != "UPL002" {
		t.Errorf("Code = %q, want UPL002", ing.Code)
	}
}

func TestHistory_Limit(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()
	for _, v := range []string{"a", "b", "c"} {
		_, _ = svc.IngestSample(ctx, v)
	}

	entries, err := svc.History(ctx, 2)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 2 || entries[0].View != "c" || entries[1].View != "b" {
		t.Errorf("History(2) = %+v, want c then b", entries)
	}
}

func TestParse_DoesNotPublish(t *testing.T) {
	svc, hist := newTestService(nil)
	res, err := svc.Parse("x.json", []byte(`[{"a":"x","b":1}]`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(res.Rows) != 1 {
		t.Errorf("rows = %d", len(res.Rows))
	}
	if entries, _ := hist.List(context.Background(), 0); len(entries) != 0 {
		t.Error("Parse() recorded history")
	}
}

func TestProxy_PassesThrough(t *testing.T) {
	f := &fakeFetcher{resp: &proxy.FetchResponse{SignedURL: "https://cdn.example.com/a.png"}}
	svc, hist := newTestService(f)

	ttl := 60
	resp, err := svc.Proxy(context.Background(), proxy.FetchRequest{URL: "https://example.com/a.png", SignedTTLSeconds: &ttl})
	if err != nil {
		t.Fatalf("Proxy() error = %v", err)
	}
	if resp.SignedURL != "https://cdn.example.com/a.png" {
		t.Errorf("SignedURL = %q", resp.SignedURL)
	}
	if len(f.reqs) != 1 || *f.reqs[0].SignedTTLSeconds != 60 {
		t.Errorf("requests = %+v", f.reqs)
	}
	if entries, _ := hist.List(context.Background(), 0); len(entries) != 0 {
		t.Error("Proxy() recorded history")
	}

	if _, err := svc.Proxy(context.Background(), proxy.FetchRequest{URL: " "}); !errors.Is(err, proxy.ErrMissingURL) {
		t.Errorf("blank url err = %v, want ErrMissingURL", err)
	}
}

func TestIngest_CompletionLog(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(logging.New(&buf, "info", "json"))
	defer slog.SetDefault(prev)

	svc, _ := newTestService(nil)
	ing, err := svc.IngestFile(context.Background(), "logged", "a.csv", strings.NewReader("day,steps\nMon,3\n"))
	if err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		`"msg":"ingestion completed"`,
		`"source":"file"`,
		`"format":"csv"`,
		`"rows":1`,
		`"view":"logged"`,
		`"ingestion_id":"` + ing.ID + `"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}
