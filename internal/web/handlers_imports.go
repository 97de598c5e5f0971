package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/routeimport/internal/core"
	"github.com/JonMunkholm/routeimport/internal/logging"
)

// handleImport runs one CSV import synchronously.
//
// SUCCESS answers 200 and a rejected file 422, both with the ImportResult.
// A system failure answers 500, also with the result.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, errFileTooLarge)
			return
		}
		respondError(w, r, fmt.Errorf("invalid multipart form: %v: %w", err, errBadRequest))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, fmt.Errorf("no file provided: %w", errBadRequest))
		return
	}
	defer file.Close()

	if header.Size > maxSize {
		respondError(w, r, errFileTooLarge)
		return
	}
	content, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		respondError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}
	if int64(len(content)) > maxSize {
		respondError(w, r, errFileTooLarge)
		return
	}

	result, err := s.service.ImportBatch(r.Context(), r.FormValue("username"), header.Filename, content)
	if err != nil {
		if result.OperationID == 0 {
			respondError(w, r, err)
			return
		}
		status := statusFor(err)
		logger := logging.FromContext(r.Context())
		if status >= http.StatusInternalServerError {
			logger.Error("import system failure", "operation_id", result.OperationID, "error", err)
		} else {
			logger.Warn("import rolled back", "operation_id", result.OperationID, "status", status, "error", err)
		}
		writeJSON(w, status, result)
		return
	}

	status := http.StatusOK
	if result.Status != core.StatusSuccess {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

// handleListImports pages the ledger of one user, newest first.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		username = core.UsernameFromContext(r.Context())
	}
	if username == "" {
		username = core.DefaultUsername
	}

	page, err := s.service.ListOperations(r.Context(), username,
		parseIntParam(r, "page", 1),
		parseIntParam(r, "size", 20),
	)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleImportStatus returns the current state of the import limiter.
func (s *Server) handleImportStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ImportStatus())
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	op, err := s.service.GetOperation(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

// handleDownloadImportFile streams the archived input of an import.
func (s *Server) handleDownloadImportFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	f, err := s.service.DownloadImportFile(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(f.Data); err != nil {
		logging.FromContext(r.Context()).Warn("write import file", "operation_id", id, "error", err)
	}
}
