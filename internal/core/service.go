package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/graphupload/internal/ingest"
	"github.com/JonMunkholm/graphupload/internal/logging"
	"github.com/JonMunkholm/graphupload/internal/proxy"
)

// Fetcher retrieves remote datasets through the backend proxy.
type Fetcher interface {
	Fetch(ctx context.Context, req proxy.FetchRequest) (*proxy.FetchResponse, error)
}

// Options configure a Service. Zero values select defaults.
type Options struct {
	Ingest      ingest.Options
	MaxFileSize int64         // Largest accepted upload in bytes (default: 20MB)
	Timeout     time.Duration // Bound on one ingestion (default: 1m)
	SignedTTL   int           // Requested signed URL lifetime in seconds; 0 omits it
}

const defaultMaxFileSize = 20 << 20

// Service turns uploads, remote fetches and the sample dataset into chart
// views. Each view shows the result of its most recent ingestion only.
type Service struct {
	fetcher Fetcher
	history HistoryStore
	limiter *IngestLimiter
	opts    Options
	now     func() time.Time

	mu    sync.Mutex
	views map[string]*viewState
}

// viewState tracks one view. generation increases with every ingestion
// that starts; only the holder of the latest generation may publish.
type viewState struct {
	generation uint64
	current    *Ingestion
}

// NewService creates a Service. A nil history keeps entries in memory and a
// nil limiter uses the default slot count.
func NewService(fetcher Fetcher, history HistoryStore, limiter *IngestLimiter, opts Options) *Service {
	if history == nil {
		history = NewMemoryHistoryStore(0)
	}
	if limiter == nil {
		limiter = NewIngestLimiter(0, 0)
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = defaultMaxFileSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	return &Service{
		fetcher: fetcher,
		history: history,
		limiter: limiter,
		opts:    opts,
		now:     time.Now,
		views:   make(map[string]*viewState),
	}
}

// outcome is what an ingestion step produced before it is published.
type outcome struct {
	result *ingest.Result
	asset  *Asset
	status string
}

// IngestFile parses an uploaded file into view. The name selects the parser
// by extension; see ingest.Normalize.
func (s *Service) IngestFile(ctx context.Context, view, name string, r io.Reader) (*Ingestion, error) {
	return s.run(ctx, view, SourceFile, name, StatusUploadFailed, func(ctx context.Context) (outcome, error) {
		if r == nil {
			return outcome{}, ErrNoFile
		}
		data, err := ingest.ReadLimited(r, s.opts.MaxFileSize)
		if err != nil {
			return outcome{}, err
		}
		return s.parse(name, data, "local file")
	})
}

// IngestSample loads the built-in dataset into view.
func (s *Service) IngestSample(ctx context.Context, view string) (*Ingestion, error) {
	return s.run(ctx, view, SourceSample, SampleName, StatusUploadFailed, func(context.Context) (outcome, error) {
		return s.parse(SampleName, SampleCSV(), "sample dataset")
	})
}

func (s *Service) parse(name string, data []byte, origin string) (outcome, error) {
	res, err := ingest.Normalize(name, data, s.opts.Ingest)
	if err != nil {
		return outcome{}, err
	}
	if len(res.Rows) == 0 {
		return outcome{}, ErrEmptyDataset
	}
	return outcome{
		result: res,
		status: fmt.Sprintf("Loaded %d rows from %s.", len(res.Rows), origin),
	}, nil
}

// IngestURL asks the backend proxy to fetch rawURL and loads the rows it
// returns into view. A response with only a signed asset URL publishes the
// asset without a chart.
func (s *Service) IngestURL(ctx context.Context, view, rawURL string) (*Ingestion, error) {
	rawURL = strings.TrimSpace(rawURL)
	return s.run(ctx, view, SourceURL, rawURL, StatusFetchFailed, func(ctx context.Context) (outcome, error) {
		if rawURL == "" {
			return outcome{}, proxy.ErrMissingURL
		}
		if s.fetcher == nil {
			return outcome{}, &proxy.Error{Status: http.StatusServiceUnavailable, Message: "Remote fetch is not configured."}
		}

		req := proxy.FetchRequest{URL: rawURL}
		if s.opts.SignedTTL > 0 {
			ttl := s.opts.SignedTTL
			req.SignedTTLSeconds = &ttl
		}
		resp, err := s.fetcher.Fetch(ctx, req)
		if err != nil {
			return outcome{}, err
		}

		switch {
		case resp.HasRows():
			res := ingest.FromRecords(resp.Data, ingest.FormatProxy, s.opts.Ingest)
			return outcome{
				result: res,
				status: fmt.Sprintf("Fetched %d rows from proxy.", len(res.Rows)),
			}, nil
		case resp.SignedURL != "":
			return outcome{
				asset: &Asset{
					SignedURL:   resp.SignedURL,
					ContentType: resp.ContentType,
					Source:      resp.Source,
				},
				status: StatusSignedAsset,
			}, nil
		default:
			return outcome{status: StatusNoProxyData}, nil
		}
	})
}

// Proxy forwards req to the backend unchanged and returns its answer
// without classifying rows or touching any view.
func (s *Service) Proxy(ctx context.Context, req proxy.FetchRequest) (*proxy.FetchResponse, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, proxy.ErrMissingURL
	}
	if s.fetcher == nil {
		return nil, &proxy.Error{Status: http.StatusServiceUnavailable, Message: "Remote fetch is not configured."}
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	var resp *proxy.FetchResponse
	err := s.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = s.fetcher.Fetch(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// run executes one ingestion for view under the limiter and publishes the
// outcome if no newer ingestion for the same view has started meanwhile.
// The returned Ingestion is never nil; on failure it carries the mapped
// error message and the view is cleared.
func (s *Service) run(ctx context.Context, view string, source Source, name, failStatus string,
	step func(context.Context) (outcome, error)) (*Ingestion, error) {

	ticket := s.begin(view)
	ing := &Ingestion{
		ID:        uuid.New().String(),
		View:      view,
		Source:    source,
		Name:      name,
		StartedAt: s.now(),
	}
	ctx = logging.WithIngestion(ctx, view, ing.ID)
	log := logging.WithFields(ctx, "source", source)
	log.Debug("ingestion started", "name", name)

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	var out outcome
	err := s.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = step(ctx)
		return err
	})

	ing.FinishedAt = s.now()
	if err != nil {
		msg := MapError(err)
		ing.Status = failStatus
		ing.Error = msg.Message
		ing.Code = msg.Code
	} else {
		ing.Status = out.status
		ing.Asset = out.asset
		if out.result != nil {
			ing.Result = out.result
			ing.Summary = ingest.Summarize(out.result)
		}
	}

	if !s.publish(view, ticket, ing) {
		log.Info("discarded stale ingestion", "error", err)
		return ing, ErrStaleIngestion
	}

	if err != nil {
		log.Warn("ingestion failed", "code", ing.Code, "error", err)
	} else {
		done := log
		if ing.Result != nil {
			done = log.With("format", ing.Result.Format)
		}
		done.Info("ingestion completed",
			"rows", ing.Rows(),
			"state", ing.ChartState(),
			"duration_ms", ing.FinishedAt.Sub(ing.StartedAt).Milliseconds(),
		)
	}

	// History must outlive request cancellation.
	hctx, hcancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer hcancel()
	if herr := s.history.Record(hctx, historyEntry(ing, ClientIPFromContext(ctx))); herr != nil {
		log.Warn("failed to record ingestion history", "error", herr)
	}

	return ing, err
}

// begin takes the next generation ticket for view.
func (s *Service) begin(view string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs, ok := s.views[view]
	if !ok {
		vs = &viewState{}
		s.views[view] = vs
	}
	vs.generation++
	return vs.generation
}

// publish installs ing as the view's current state if ticket is still the
// latest generation.
func (s *Service) publish(view string, ticket uint64, ing *Ingestion) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	vs := s.views[view]
	if vs == nil || vs.generation != ticket {
		return false
	}
	vs.current = ing
	return true
}

// Current returns the latest published ingestion for view, or nil if the
// view has none.
func (s *Service) Current(view string) *Ingestion {
	s.mu.Lock()
	defer s.mu.Unlock()

	if vs := s.views[view]; vs != nil {
		return vs.current
	}
	return nil
}

// EnsureView loads the sample dataset into view if it has never been used.
func (s *Service) EnsureView(ctx context.Context, view string) (*Ingestion, error) {
	if ing := s.Current(view); ing != nil {
		return ing, nil
	}
	ing, err := s.IngestSample(ctx, view)
	if errors.Is(err, ErrStaleIngestion) {
		// Another ingestion for the view won; show that one.
		if cur := s.Current(view); cur != nil {
			return cur, nil
		}
	}
	return ing, err
}

// History lists recent ingestions across all views, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	entries, err := s.history.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

// LimiterStatus returns ingestion slot usage.
func (s *Service) LimiterStatus() IngestLimiterStatus {
	return s.limiter.Status()
}

// WaitForIngestions blocks until in-flight ingestions finish or ctx ends.
func (s *Service) WaitForIngestions(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// Parse normalizes data without touching any view or history.
func (s *Service) Parse(name string, data []byte) (*ingest.Result, error) {
	return ingest.Normalize(name, data, s.opts.Ingest)
}
