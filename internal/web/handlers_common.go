// Package web provides HTTP handlers for the chart preview.
// This file contains shared utilities and helper functions used across handlers.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/JonMunkholm/graphupload/internal/core"
	"github.com/JonMunkholm/graphupload/internal/web/templates"
)

const (
	// viewCookie remembers the browser's view between page loads.
	viewCookie = "view_id"

	// defaultView is used by API clients that name no view.
	defaultView = "default"

	// maxJSONBody bounds JSON request bodies.
	maxJSONBody = 64 << 10

	// Defaults for the history listing.
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

var (
	errInvalidView = errors.New("invalid view id")
	viewIDPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// ingestRequest is the JSON or form body accepted by the URL and sample
// ingestion endpoints.
type ingestRequest struct {
	View string `json:"view"`
	URL  string `json:"url"`
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// resolveView picks the target view: the explicit value if given, then the
// view cookie, then defaultView.
func resolveView(r *http.Request, explicit string) (string, error) {
	view := strings.TrimSpace(explicit)
	if view == "" {
		if c, err := r.Cookie(viewCookie); err == nil {
			view = c.Value
		}
	}
	if view == "" {
		return defaultView, nil
	}
	if !viewIDPattern.MatchString(view) {
		return "", fmt.Errorf("%w: %q", errInvalidView, view)
	}
	return view, nil
}

// isFormPost reports whether r is a browser form submission made without
// HTMX.
func isFormPost(r *http.Request) bool {
	if isHTMX(r) || !strings.Contains(r.Header.Get("Accept"), "text/html") {
		return false
	}
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "multipart/form-data") ||
		strings.HasPrefix(ct, "application/x-www-form-urlencoded")
}

// decodeIngestRequest reads an ingestRequest from a JSON or form body.
func decodeIngestRequest(w http.ResponseWriter, r *http.Request) (ingestRequest, error) {
	var req ingestRequest
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			return req, fmt.Errorf("decode request: %w", err)
		}
		return req, nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := r.ParseForm(); err != nil {
		return req, fmt.Errorf("parse form: %w", err)
	}
	req.View = r.FormValue("view")
	req.URL = r.FormValue("url")
	return req, nil
}

// respondIngestion writes the outcome of an ingestion. HTMX requests get the
// rendered view panel, plain browser form posts are redirected back to the
// dashboard, and everyone else gets the ingestion as JSON.
func (s *Server) respondIngestion(w http.ResponseWriter, r *http.Request, ing *core.Ingestion, err error) {
	// A finished ingestion, failed or not, is already on the view the
	// dashboard renders.
	if isFormPost(r) && ing != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.ViewPanel(ing).Render(r.Context(), w); err != nil {
			s.respondErrorStatus(w, r, err, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, ing)
}
