package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/graphupload/internal/core"
	"github.com/JonMunkholm/graphupload/internal/logging"
	"github.com/JonMunkholm/graphupload/internal/web/templates"
)

// handleDashboard renders the main page. A browser without a view cookie
// gets a fresh view preloaded with the sample dataset.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	view, err := resolveView(r, "")
	if err != nil || view == defaultView {
		view = uuid.New().String()
		http.SetCookie(w, &http.Cookie{
			Name:     viewCookie,
			Value:    view,
			Path:     "/",
			MaxAge:   int((30 * 24 * time.Hour).Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	ctx := WithRequestMetadata(r.Context(), r)
	ing, err := s.service.EnsureView(ctx, view)
	if err != nil {
		// The failed ingestion is still rendered; it carries the message.
		logging.FromContext(ctx).Warn("load initial view", "view", view, "error", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Dashboard(view, ing).Render(ctx, w); err != nil {
		s.respondErrorStatus(w, r, err, http.StatusInternalServerError)
	}
}

// healthResponse reports liveness and ingestion slot usage.
type healthResponse struct {
	Status     string                   `json:"status"`
	Ingestions core.IngestLimiterStatus `json:"ingestions"`
}

// handleHealth reports that the server is up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, healthResponse{Status: "ok", Ingestions: s.service.LimiterStatus()})
}

// handleGetView returns the current state of a view.
func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	view, err := resolveView(r, chi.URLParam(r, "viewID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ing := s.service.Current(view)
	if ing == nil {
		writeError(w, http.StatusNotFound, "view not found")
		return
	}
	s.respondIngestion(w, r, ing, nil)
}

// handleHistory lists recent ingestions, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", defaultHistoryLimit)
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.respondErrorStatus(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, entries)
}

