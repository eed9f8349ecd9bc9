package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/smart-docs/internal/document"
	"github.com/benvon/smart-docs/internal/logger"
	"github.com/benvon/smart-docs/internal/metrics"
	"github.com/benvon/smart-docs/internal/models"
	"github.com/benvon/smart-docs/internal/store"
	"github.com/benvon/smart-docs/internal/validation"
)

// FileHandler serves the stored documents
type FileHandler struct {
	store      *store.FileStore
	normalizer *document.Normalizer
	logger     *zap.Logger
}

// NewFileHandler creates a new file handler
func NewFileHandler(fs *store.FileStore, normalizer *document.Normalizer, log *zap.Logger) *FileHandler {
	if normalizer == nil {
		normalizer = document.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FileHandler{store: fs, normalizer: normalizer, logger: log}
}

// RegisterRoutes registers file and document routes
func (h *FileHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/files", h.ListFiles).Methods(http.MethodGet)
	r.HandleFunc("/files/{name}", h.GetFile).Methods(http.MethodGet)
	r.HandleFunc("/files/{name}", h.PutFile).Methods(http.MethodPut)
	r.HandleFunc("/documents/validate", h.ValidateDocument).Methods(http.MethodPost)
}

// ListFilesResponse lists the stored document names
type ListFilesResponse struct {
	Files []string `json:"files"`
}

// ValidateResponse is a normalized document together with what was repaired
type ValidateResponse struct {
	Document *models.Document  `json:"document"`
	Repairs  []document.Repair `json:"repairs"`
}

// ListFiles lists stored documents
func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("list_files_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to list files")
		return
	}
	respondJSON(w, http.StatusOK, ListFilesResponse{Files: files})
}

// GetFile returns one stored document
func (h *FileHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	name, ok := h.filename(w, r)
	if !ok {
		return
	}

	content, err := h.store.Read(r.Context(), name)
	if err != nil {
		h.respondStoreError(w, name, err)
		return
	}
	respondJSON(w, http.StatusOK, content)
}

// PutFile normalizes the body and stores it under the given name
func (h *FileHandler) PutFile(w http.ResponseWriter, r *http.Request) {
	name, ok := h.filename(w, r)
	if !ok {
		return
	}

	var candidate any
	if err := decodeJSON(r, &candidate); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	doc, _, ok := h.normalize(w, candidate)
	if !ok {
		return
	}

	if err := h.store.Write(r.Context(), name, doc); err != nil {
		h.respondStoreError(w, name, err)
		return
	}

	h.logger.Info("file_saved",
		logger.File(name),
		zap.String("kind", string(doc.Kind)))
	respondJSON(w, http.StatusOK, doc)
}

// ValidateDocument normalizes a candidate without storing it
func (h *FileHandler) ValidateDocument(w http.ResponseWriter, r *http.Request) {
	var candidate any
	if err := decodeJSON(r, &candidate); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	doc, report, ok := h.normalize(w, candidate)
	if !ok {
		return
	}

	repairs := report.Repairs
	if repairs == nil {
		repairs = []document.Repair{}
	}
	respondJSON(w, http.StatusOK, ValidateResponse{Document: doc, Repairs: repairs})
}

func (h *FileHandler) normalize(w http.ResponseWriter, candidate any) (*models.Document, *document.Report, bool) {
	doc, report, err := h.normalizer.ValidateReport(candidate)
	if err != nil {
		metrics.ObserveRejected()
		respondJSONError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
		return nil, nil, false
	}
	metrics.ObserveDocument(string(doc.Kind), report.Counts())
	return doc, report, true
}

func (h *FileHandler) filename(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := mux.Vars(r)["name"]
	if err := validation.ValidateFilename(name); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return "", false
	}
	return name, true
}

func (h *FileHandler) respondStoreError(w http.ResponseWriter, name string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "File not found")
	case errors.Is(err, store.ErrInvalidFilename):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid filename")
	case errors.Is(err, store.ErrLocked):
		respondJSONError(w, http.StatusConflict, "Conflict", "File is being written, try again")
	default:
		h.logger.Error("file_store_failed",
			logger.File(name),
			zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to access file")
	}
}
