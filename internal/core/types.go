package core

import (
	"errors"
	"time"

	"github.com/JonMunkholm/graphupload/internal/ingest"
)

var (
	// ErrNoFile is returned when an upload carries no file part.
	ErrNoFile = errors.New("no file provided")

	// ErrEmptyDataset is returned when a dataset parses but has no rows.
	ErrEmptyDataset = errors.New("empty dataset")

	// ErrStaleIngestion is returned when a newer ingestion for the same view
	// started before this one finished. Its result was discarded.
	ErrStaleIngestion = errors.New("ingestion superseded by a newer request")
)

// Source identifies where a dataset came from.
type Source string

const (
	SourceFile   Source = "file"
	SourceURL    Source = "url"
	SourceSample Source = "sample"
)

// Status messages shown next to the chart.
const (
	StatusIdle         = "Drop a CSV/JSON file to get started."
	StatusUploadFailed = "Upload failed."
	StatusFetchFailed  = "URL fetch failed."
	StatusSignedAsset  = "Received signed asset URL."
	StatusNoProxyData  = "No data returned from proxy."
)

// Asset is an out-of-band file the backend stored instead of returning rows.
type Asset struct {
	SignedURL   string `json:"signed_url"`
	ContentType string `json:"content_type,omitempty"`
	Source      string `json:"source,omitempty"`
}

// Ingestion is the outcome of one ingestion event. A failed ingestion has
// Error set and no Result; publishing it clears the view.
type Ingestion struct {
	ID         string                 `json:"id"`
	View       string                 `json:"view"`
	Source     Source                 `json:"source"`
	Name       string                 `json:"name"`
	Result     *ingest.Result         `json:"result,omitempty"`
	Summary    []ingest.SeriesSummary `json:"summary,omitempty"`
	Asset      *Asset                 `json:"asset,omitempty"`
	Status     string                 `json:"status"`
	Error      string                 `json:"error,omitempty"`
	Code       string                 `json:"code,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
}

// Failed reports whether the ingestion ended in an error.
func (i *Ingestion) Failed() bool { return i.Error != "" }

// Rows returns the number of rows ingested.
func (i *Ingestion) Rows() int {
	if i.Result == nil {
		return 0
	}
	return len(i.Result.Rows)
}

// ChartState reports whether the view can draw a chart.
func (i *Ingestion) ChartState() ingest.State {
	if i.Result == nil {
		return ingest.StateEmptyDataset
	}
	return i.Result.State()
}

// HistoryEntry is the persisted summary of a completed ingestion.
type HistoryEntry struct {
	ID          string    `json:"id"`
	View        string    `json:"view"`
	Source      Source    `json:"source"`
	Name        string    `json:"name"`
	Format      string    `json:"format,omitempty"`
	Rows        int       `json:"rows"`
	NumericKeys []string  `json:"numeric_keys"`
	XKey        string    `json:"x_key,omitempty"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	ClientIP    string    `json:"client_ip,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// historyEntry summarizes ing for the history store.
func historyEntry(ing *Ingestion, clientIP string) HistoryEntry {
	e := HistoryEntry{
		ID:          ing.ID,
		View:        ing.View,
		Source:      ing.Source,
		Name:        ing.Name,
		NumericKeys: []string{},
		Status:      ing.Status,
		Error:       ing.Error,
		ClientIP:    clientIP,
		CreatedAt:   ing.FinishedAt,
	}
	if r := ing.Result; r != nil {
		e.Format = string(r.Format)
		e.Rows = len(r.Rows)
		e.NumericKeys = append(e.NumericKeys, r.NumericKeys...)
		e.XKey, _ = r.XAxis()
	}
	return e
}
