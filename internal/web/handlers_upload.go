package web

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/shoestore/internal/core"
	"github.com/go-chi/chi/v5"
)

// handleImportAll runs the import pipeline over the configured directory.
// Per-file failures are part of the report; only a refused run is an error.
func (s *Server) handleImportAll(w http.ResponseWriter, r *http.Request) {
	ctx := WithRequestMetadata(r.Context(), r)
	report, err := s.service.ImportAll(ctx, s.cfg.Import.Dir)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	status := http.StatusOK
	if report.Failed() {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, report)
}

// handleImportFile imports one uploaded spreadsheet for the entity named in
// the route. The file is sent as the "file" field of a multipart form.
func (s *Server) handleImportFile(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	if !s.knownEntity(entity) {
		s.respondError(w, r, core.ErrUnknownEntity)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, core.ErrFileTooLarge)
			return
		}
		s.respondError(w, r, &core.ValidationError{Field: "file", Reason: core.ReasonRequired})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, &core.ValidationError{Field: "file", Reason: core.ReasonRequired})
		return
	}
	defer file.Close()

	ctx := WithRequestMetadata(r.Context(), r)
	result, err := s.service.ImportFile(ctx, entity, header.Filename, file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Err != nil {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

// handleImportHistory returns recent import runs, optionally for one entity.
func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.ImportHistory(r.Context(), r.URL.Query().Get("entity"), parseIntParam(r, "limit", core.DefaultHistoryLimit))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.ImportRunEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) knownEntity(key string) bool {
	for _, e := range s.service.ListEntities() {
		if e.Key == key {
			return true
		}
	}
	return false
}
