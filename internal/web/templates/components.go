// Package templates holds the HTML components of the chart preview UI.
package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/graphupload/internal/core"
	"github.com/JonMunkholm/graphupload/internal/ingest"
)

const (
	// previewRows caps the rows rendered in the preview table.
	previewRows = 25

	// HTMXScript is the script the dashboard loads for partial swaps. The
	// forms also post normally when it is unavailable.
	HTMXScript = "https://unpkg.com/htmx.org@1.9.12/dist/htmx.min.js"
)

// ErrorAlert renders a dismissible error box for HTMX swaps.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := printer{w: w}
		p.raw(`<div class="alert alert-error" role="alert">`)
		p.raw(`<p class="alert-message">`)
		p.text(message)
		p.raw(`</p>`)
		if action != "" {
			p.raw(`<p class="alert-action">`)
			p.text(action)
			p.raw(`</p>`)
		}
		if code != "" {
			p.raw(`<span class="alert-code">`)
			p.text(code)
			p.raw(`</span>`)
		}
		p.raw(`</div>`)
		return p.err
	})
}

// Dashboard renders the full page for view.
func Dashboard(view string, ing *core.Ingestion) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := printer{w: w}
		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		p.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.raw(`<title>Nutrition chart preview</title>`)
		p.raw(`<script src="`)
		p.text(HTMXScript)
		p.raw(`" defer></script></head><body>`)
		p.raw(`<main id="view" data-view="`)
		p.text(view)
		p.raw(`">`)
		p.raw(`<form method="post" action="/api/ingest/file" enctype="multipart/form-data" hx-post="/api/ingest/file" hx-encoding="multipart/form-data" hx-target="#view-panel">`)
		p.raw(`<input type="hidden" name="view" value="`)
		p.text(view)
		p.raw(`"><input type="file" name="file" accept=".csv,.json,.xlsx"><button type="submit">Upload</button></form>`)
		p.raw(`<form method="post" action="/api/ingest/url" hx-post="/api/ingest/url" hx-target="#view-panel">`)
		p.raw(`<input type="hidden" name="view" value="`)
		p.text(view)
		p.raw(`"><input type="url" name="url" placeholder="https://"><button type="submit">Fetch</button></form>`)
		p.raw(`<div id="view-panel">`)
		if p.err == nil {
			p.err = ViewPanel(ing).Render(ctx, w)
		}
		p.raw(`</div></main></body></html>`)
		return p.err
	})
}

// ViewPanel renders the status line and whatever the ingestion produced:
// an error, a signed asset, a chart placeholder or an explanation of why no
// chart can be drawn.
func ViewPanel(ing *core.Ingestion) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := printer{w: w}
		if ing == nil {
			p.raw(`<p class="status">`)
			p.text(core.StatusIdle)
			p.raw(`</p>`)
			return p.err
		}

		p.raw(`<p class="status">`)
		p.text(ing.Status)
		p.raw(`</p>`)

		switch {
		case ing.Failed():
			if p.err == nil {
				p.err = ErrorAlert(ing.Error, "", ing.Code).Render(ctx, w)
			}
		case ing.Asset != nil:
			p.raw(`<p class="asset"><a href="`)
			p.text(string(templ.URL(ing.Asset.SignedURL)))
			p.raw(`" rel="noopener">`)
			if ing.Asset.ContentType != "" {
				p.text(ing.Asset.ContentType)
			} else {
				p.text("Download asset")
			}
			p.raw(`</a></p>`)
		case ing.Result != nil:
			if state := ing.ChartState(); state != ingest.StateReady {
				p.raw(`<p class="chart-empty" data-state="`)
				p.text(string(state))
				p.raw(`">`)
				p.text(state.Message())
				p.raw(`</p>`)
			} else {
				x, _ := ing.Result.XAxis()
				p.raw(`<div class="chart" data-x-key="`)
				p.text(x)
				p.raw(`" data-series="`)
				for i, k := range ing.Result.Series() {
					if i > 0 {
						p.raw(",")
					}
					p.text(k)
				}
				p.raw(`"></div>`)
			}
			if p.err == nil {
				p.err = SeriesSummary(ing.Summary).Render(ctx, w)
			}
			if p.err == nil {
				p.err = PreviewTable(ing.Result).Render(ctx, w)
			}
		}
		return p.err
	})
}

// PreviewTable renders the first rows of r.
func PreviewTable(r *ingest.Result) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := printer{w: w}
		if r == nil || len(r.Rows) == 0 {
			return nil
		}
		p.raw(`<table class="preview"><thead><tr>`)
		for _, col := range r.Columns {
			p.raw(`<th>`)
			p.text(col)
			p.raw(`</th>`)
		}
		p.raw(`</tr></thead><tbody>`)
		for i, row := range r.Rows {
			if i == previewRows {
				break
			}
			p.raw(`<tr>`)
			for _, col := range r.Columns {
				v, _ := row.Get(col)
				p.raw(`<td>`)
				if !v.IsNull() {
					p.text(v.String())
				}
				p.raw(`</td>`)
			}
			p.raw(`</tr>`)
		}
		p.raw(`</tbody></table>`)
		if len(r.Rows) > previewRows {
			p.raw(`<p class="preview-more">`)
			p.text(fmt.Sprintf("Showing %d of %d rows.", previewRows, len(r.Rows)))
			p.raw(`</p>`)
		}
		return p.err
	})
}

// SeriesSummary renders per-series statistics.
func SeriesSummary(summary []ingest.SeriesSummary) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(summary) == 0 {
			return nil
		}
		p := printer{w: w}
		p.raw(`<table class="summary"><thead><tr><th>Series</th><th>Count</th><th>Min</th><th>Max</th><th>Mean</th><th>Median</th></tr></thead><tbody>`)
		for _, s := range summary {
			p.raw(`<tr><td>`)
			p.text(s.Key)
			p.raw(`</td><td>`)
			p.text(strconv.Itoa(s.Count))
			for _, f := range []float64{s.Min, s.Max, s.Mean, s.Median} {
				p.raw(`</td><td>`)
				p.text(strconv.FormatFloat(f, 'f', -1, 64))
			}
			p.raw(`</td></tr>`)
		}
		p.raw(`</tbody></table>`)
		return p.err
	})
}

// printer writes markup and stops at the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *printer) text(s string) {
	p.raw(templ.EscapeString(s))
}
