package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/graphupload/internal/core"
	"github.com/JonMunkholm/graphupload/internal/logging"
	"github.com/JonMunkholm/graphupload/internal/proxy"
)

// Messages returned by the fetch passthrough. Browser code matches on them.
const (
	msgMissingURL     = "Missing required 'url' field"
	msgFetchMalformed = "Unable to process fetch request"
)

// handleProxyFetch forwards {url, signed_ttl_seconds} to the backend and
// relays its answer. Failures keep the backend's status and its own error
// text under "error".
func (s *Server) handleProxyFetch(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req proxy.FetchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		log.Warn("fetch proxy: malformed body", "error", err)
		writeError(w, http.StatusInternalServerError, msgFetchMalformed)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, msgMissingURL)
		return
	}

	resp, err := s.service.Proxy(r.Context(), req)
	if err != nil {
		var pe *proxy.Error
		if errors.As(err, &pe) {
			log.Warn("fetch proxy failed", "status", pe.Status, "error", err)
			writeError(w, pe.Status, pe.Message)
			return
		}
		log.Warn("fetch proxy failed", "error", err)
		writeError(w, core.HTTPStatus(err), core.MapError(err).Message)
		return
	}

	// The backend body is relayed byte for byte when the fetcher kept it.
	if len(resp.Raw) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(resp.Raw); err != nil {
			log.Warn("fetch proxy: write response", "error", err)
		}
		return
	}
	writeJSON(w, resp)
}
