// Package proxy talks to the nutrition backend's remote-fetch endpoint.
//
// The backend fetches a user-supplied URL server-side so the browser never
// sees credentials or hits cross-origin restrictions. It answers with either
// pre-shaped rows or a signed URL for assets that are not tabular.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/graphupload/internal/ingest"
	"github.com/tidwall/gjson"
)

// ErrMissingURL is returned when a fetch request carries no URL.
var ErrMissingURL = errors.New("missing required 'url' field")

// DefaultTimeout bounds a single backend round trip.
const DefaultTimeout = 20 * time.Second

// maxResponseSize caps how much of a backend response is read.
const maxResponseSize = 50 << 20

// fallbackMessage is used when a failed response names no reason.
const fallbackMessage = "Proxy fetch failed"

// FetchRequest is the body accepted by the fetch endpoint.
type FetchRequest struct {
	URL              string `json:"url"`
	SignedTTLSeconds *int   `json:"signed_ttl_seconds,omitempty"`
}

// FetchResponse is the backend's answer. Data holds pre-shaped rows in the
// backend's key order; SignedURL without Data marks an out-of-band asset.
type FetchResponse struct {
	Data        []ingest.Record `json:"data,omitempty"`
	SignedURL   string          `json:"signed_url,omitempty"`
	ContentType string          `json:"content_type,omitempty"`
	Source      string          `json:"source,omitempty"`
	Error       string          `json:"error,omitempty"`

	// Raw is the backend body exactly as received.
	Raw json.RawMessage `json:"-"`
}

// HasRows reports whether the response carries row data.
func (r *FetchResponse) HasRows() bool { return len(r.Data) > 0 }

// Error is a failed fetch. Message is the backend's own explanation when it
// gave one and is safe to show to users.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("proxy fetch: %s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Client calls the backend fetch endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the backend address the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// Fetch asks the backend to retrieve req.URL.
func (c *Client) Fetch(ctx context.Context, req FetchRequest) (*FetchResponse, error) {
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return nil, ErrMissingURL
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode fetch request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ingest/fetch", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &Error{Status: http.StatusBadGateway, Message: "Unable to fetch remote data.", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &Error{Status: http.StatusBadGateway, Message: "Unable to fetch remote data.", Err: err}
	}

	return decodeResponse(resp.StatusCode, raw)
}

// decodeResponse turns a backend status and body into a response or an Error.
func decodeResponse(status int, raw []byte) (*FetchResponse, error) {
	ok := status >= 200 && status < 300

	if !gjson.ValidBytes(raw) {
		if ok {
			return nil, &Error{Status: http.StatusBadGateway, Message: "Unable to process fetch request"}
		}
		return nil, &Error{Status: status, Message: fallbackMessage}
	}

	if msg := errorMessage(gjson.ParseBytes(raw)); msg != "" || !ok {
		if msg == "" {
			msg = fallbackMessage
		}
		if ok {
			status = http.StatusBadGateway
		}
		return nil, &Error{Status: status, Message: msg}
	}

	var out FetchResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &Error{Status: http.StatusBadGateway, Message: "Unable to process fetch request", Err: err}
	}
	out.Raw = raw
	return &out, nil
}

// errorMessage extracts the reason from a backend body. FastAPI reports
// validation failures as a list under detail.
func errorMessage(body gjson.Result) string {
	detail := body.Get("detail")
	switch {
	case detail.Type == gjson.String && detail.Str != "":
		return detail.Str
	case detail.IsArray():
		if msg := detail.Get("0.msg").String(); msg != "" {
			return msg
		}
	}
	if e := body.Get("error"); e.Type == gjson.String && e.Str != "" {
		return e.Str
	}
	return ""
}
