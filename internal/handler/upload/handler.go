// Package upload exposes the file ingestion endpoints.
package upload

import (
	_ "embed"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"chatdrop/internal/service/ingest"
	"chatdrop/pkg/utils"
)

//go:embed upload.html
var formPage []byte

// Handler streams request bodies and multipart fields into the sink.
type Handler struct {
	sink     *ingest.Sink
	maxBytes int64
	log      zerolog.Logger
}

// New creates the upload handler. maxBytes caps every request body at the
// transport boundary; the sink itself imposes no limit.
func New(sink *ingest.Sink, maxBytes int64, log zerolog.Logger) *Handler {
	return &Handler{sink: sink, maxBytes: maxBytes, log: log}
}

// RegisterRoutes registers the upload routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/upload", h.handleForm)
	r.Post("/upload", h.handleMultipart)
	r.Post("/file/{name}", h.handleRawBody)
	r.Put("/file/{name}", h.handleRawBody)
}

func (h *Handler) handleForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(formPage)
}

// handleRawBody streams the entire request body into one file named by the
// {name} path parameter.
func (h *Handler) handleRawBody(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	body := http.MaxBytesReader(w, r.Body, h.maxBytes)

	res, err := h.sink.Store(r.Context(), name, body)
	if err != nil {
		h.respondStoreError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, res)
}

// handleMultipart streams every form field that carries a file name into
// the sink, one field at a time, then redirects back to the form.
func (h *Handler) handleMultipart(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "expected multipart/form-data", http.StatusBadRequest)
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		name := part.FileName()
		if name == "" {
			continue
		}

		h.log.Info().Str("name", name).Msg("accepting form file")
		if _, err := h.sink.Store(r.Context(), name, part); err != nil {
			h.respondStoreError(w, err)
			return
		}
	}

	http.Redirect(w, r, "/upload", http.StatusSeeOther)
}

// respondStoreError maps sink failures onto HTTP statuses: an invalid
// destination name or an oversized body is the client's fault, anything
// else is ours.
func (h *Handler) respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, ingest.ErrInvalidPath) {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	h.log.Error().Err(err).Msg("upload failed")
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
