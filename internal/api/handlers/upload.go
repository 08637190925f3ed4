package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/invoice-intake/internal/api/middleware"
	"github.com/dvloznov/invoice-intake/internal/archive"
	"github.com/dvloznov/invoice-intake/internal/config"
	"github.com/dvloznov/invoice-intake/internal/extraction"
	"github.com/dvloznov/invoice-intake/internal/session"
)

// Extractor turns a document into both record shapes.
type Extractor interface {
	Run(ctx context.Context, doc extraction.Document) (*extraction.Outcome, error)
}

// UploadHandler handles document uploads.
type UploadHandler struct {
	store     session.Store
	extractor Extractor
	archiver  archive.Archiver
	mode      string
	maxBytes  int64
	log       zerolog.Logger
}

// NewUploadHandler creates an upload handler. mode is the response shape
// used when the request does not pick one.
func NewUploadHandler(store session.Store, extractor Extractor, archiver archive.Archiver, mode string, maxBytes int64, log zerolog.Logger) *UploadHandler {
	if archiver == nil {
		archiver = archive.Nop{}
	}
	return &UploadHandler{
		store:     store,
		extractor: extractor,
		archiver:  archiver,
		mode:      mode,
		maxBytes:  maxBytes,
		log:       log,
	}
}

type uploadFailure struct {
	Success  bool     `json:"success"`
	Invoices []string `json:"invoices"`
	Error    string   `json:"error"`
	Message  string   `json:"message"`
}

// Upload handles POST /api/upload
// Multipart fields: file, sessionId, optional mode (raw|business).
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var maxBytes *http.MaxBytesError
		if !errors.As(err, &maxBytes) {
			err = newBadRequest("expected multipart/form-data: %v", err)
		}
		writeErr(w, logFor(h.log, r, ""), err, "Invalid upload")
		return
	}

	id := strings.TrimSpace(r.FormValue("sessionId"))
	log := logFor(h.log, r, id)
	if id == "" {
		writeErr(w, log, newBadRequest("sessionId is required"), "Invalid upload")
		return
	}

	mode := h.mode
	if m := strings.ToLower(strings.TrimSpace(r.FormValue("mode"))); m != "" {
		if m != config.ModeRaw && m != config.ModeBusiness {
			writeErr(w, log, newBadRequest("mode must be %q or %q", config.ModeRaw, config.ModeBusiness), "Invalid upload")
			return
		}
		mode = m
	}

	doc, err := readDocument(r)
	if err != nil {
		writeErr(w, log, err, "Invalid upload")
		return
	}

	if _, err := h.store.Create(ctx, id); err != nil {
		writeErr(w, log, err, "Failed to create session")
		return
	}
	if _, err := h.store.Update(ctx, id, func(s *session.Session) error {
		s.Status = session.StatusSubmitted
		s.DocumentName = doc.Filename
		return nil
	}); err != nil {
		writeErr(w, log, err, "Failed to update session")
		return
	}

	log.Info().
		Str("filename", doc.Filename).
		Str("content_type", doc.ContentType).
		Int("bytes", len(doc.Data)).
		Str("mode", mode).
		Msg("Document received")

	documentURI, err := h.archiver.Store(ctx, archive.Document{
		SessionID:   id,
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		Data:        doc.Data,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to archive document")
	}

	outcome, err := h.extractor.Run(ctx, doc)
	if err == nil {
		err = requireRecords(outcome, mode)
	}
	if err != nil {
		status, code := classify(err)
		log.Error().Err(err).Str("code", code).Msg("Extraction failed")
		middleware.WriteJSON(w, status, uploadFailure{
			Success:  false,
			Invoices: []string{},
			Error:    code,
			Message:  err.Error(),
		})
		return
	}

	newStatus := session.StatusExtracted
	if mode == config.ModeRaw {
		newStatus = session.StatusRawExtracted
	}
	if _, err := h.store.Update(ctx, id, func(s *session.Session) error {
		s.Invoices = outcome.Business
		s.RawInvoices = outcome.Raw
		s.Status = newStatus
		if documentURI != "" {
			s.DocumentURI = documentURI
		}
		return nil
	}); err != nil {
		writeErr(w, log, err, "Failed to store extraction result")
		return
	}

	var invoices any = nonNilRecords(outcome.Business)
	count := len(outcome.Business)
	if mode == config.ModeRaw {
		invoices = nonNilRaw(outcome.Raw)
		count = len(outcome.Raw)
	}

	log.Info().
		Int("groups", outcome.Groups).
		Int("count", count).
		Str("status", string(newStatus)).
		Msg("Extraction completed")

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"sessionId": id,
		"count":     count,
		"invoices":  invoices,
	})
}

// Document handles GET /api/invoice/{sessionId}/document
// It streams the archived original of the session's upload.
func (h *UploadHandler) Document(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	log := logFor(h.log, r, id)

	s, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeErr(w, log, err, "Failed to get session")
		return
	}
	if s.DocumentURI == "" {
		writeErr(w, log, errNoDocument, "Document requested")
		return
	}

	data, err := h.archiver.Fetch(r.Context(), s.DocumentURI)
	if err != nil {
		writeErr(w, log, fmt.Errorf("%w: %w", errArchive, err), "Failed to fetch document")
		return
	}

	name := archive.FilenameFromURI(s.DocumentURI)
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Warn().Err(err).Msg("Failed to write document")
	}
}

func readDocument(r *http.Request) (extraction.Document, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return extraction.Document{}, newBadRequest("file is required")
		}
		return extraction.Document{}, newBadRequest("file: %v", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return extraction.Document{}, err
	}
	if len(data) == 0 {
		return extraction.Document{}, newBadRequest("file is empty")
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return extraction.Document{
		Filename:    filepath.Base(header.Filename),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// requireRecords fails an extraction that produced nothing in the shape the
// client asked for.
func requireRecords(outcome *extraction.Outcome, mode string) error {
	n := len(outcome.Business)
	if mode == config.ModeRaw {
		n = len(outcome.Raw)
	}
	if n > 0 {
		return nil
	}
	return &extraction.Error{
		Kind: extraction.KindEmptyResult,
		Op:   "UploadHandler.Upload",
		Err:  fmt.Errorf("%d prediction groups, none matched a %s field", outcome.Groups, mode),
	}
}
