package web

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/graphupload/internal/core"
	"github.com/JonMunkholm/graphupload/internal/ingest"
)

// multipartOverhead leaves room for form fields and part headers on top of
// the file size limit.
const multipartOverhead = 1 << 20

// handleIngestFile parses an uploaded file into a view.
func (s *Server) handleIngestFile(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, ingest.ErrTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	view, err := resolveView(r, r.FormValue("view"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			s.respondError(w, r, core.ErrNoFile)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid file part")
		return
	}
	defer file.Close()

	ctx := WithRequestMetadata(r.Context(), r)
	ing, err := s.service.IngestFile(ctx, view, header.Filename, file)
	s.respondIngestion(w, r, ing, err)
}

// handleIngestURL fetches a remote dataset through the backend into a view.
func (s *Server) handleIngestURL(w http.ResponseWriter, r *http.Request) {
	req, err := decodeIngestRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := resolveView(r, req.View)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	ing, err := s.service.IngestURL(ctx, view, req.URL)
	s.respondIngestion(w, r, ing, err)
}

// handleIngestSample reloads the built-in dataset into a view.
func (s *Server) handleIngestSample(w http.ResponseWriter, r *http.Request) {
	req, err := decodeIngestRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := resolveView(r, req.View)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	ing, err := s.service.IngestSample(ctx, view)
	s.respondIngestion(w, r, ing, err)
}
