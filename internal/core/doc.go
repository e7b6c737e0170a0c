// Package core provides the ingestion service behind the chart preview.
//
// It sits between the transports (web handlers, the command line tool) and
// the normalizer in package ingest. The service owns per-view state, bounds
// concurrent work and records history; it knows nothing about HTTP.
//
// # Views
//
// A view is one chart panel, usually one browser session. Every ingestion
// event (file upload, remote fetch, sample load) targets one view and fully
// replaces what the view shows. When two ingestions for the same view
// overlap, the one started last wins: the earlier one finishes, is logged
// and returns [ErrStaleIngestion] without touching the view.
//
// A failed ingestion still publishes. It clears the view and carries the
// user-facing message from [MapError], so a chart never shows rows from a
// previous dataset next to an error about the current one.
//
// # Remote Fetch
//
// [Service.IngestURL] delegates retrieval to the backend via a [Fetcher]
// (normally *proxy.Client). Rows the backend returns go through the same
// classification as local JSON. A response carrying only a signed URL is
// published as an [Asset] with no chart.
//
// # Concurrency
//
// [IngestLimiter] caps parallel ingestions across all views. Shutdown calls
// [Service.WaitForIngestions] so in-flight work can finish.
//
// # History
//
// Every published ingestion is written to a [HistoryStore]: PostgreSQL when a
// database is configured, memory otherwise. [Service.StartRetentionScheduler]
// removes old entries.
package core
