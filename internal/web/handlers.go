package web

import (
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/sisilabsai/thesignal/internal/config"
	"github.com/sisilabsai/thesignal/internal/errors"
	"github.com/sisilabsai/thesignal/internal/logging"
	"github.com/sisilabsai/thesignal/internal/ops"
	"github.com/sisilabsai/thesignal/internal/record"
	"github.com/sisilabsai/thesignal/internal/store"
)

// Handlers contains HTTP route handlers for the signature API.
type Handlers struct {
	store    store.Backend
	ingester *ops.Ingester
	cfg      *config.Config
	log      logging.Logger
}

// HandleIngest handles POST /signatures: verify and store a signed excerpt.
func (h *Handlers) HandleIngest(w http.ResponseWriter, r *http.Request) {
	limit := h.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = config.DefaultConfig().MaxBodyBytes
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			h.renderError(w, r, errors.NewPayloadTooLarge(limit))
			return
		}
		h.renderError(w, r, errors.NewInvalidRequest("failed to read request body"))
		return
	}

	sub, err := record.ParseSubmission(data)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	out, err := h.ingester.Ingest(r.Context(), sub)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, out.Response())
}

// HandleList handles GET /signatures: search records, newest first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	result, err := ops.List(r.Context(), h.store, ops.ListInput{
		Query:  r.URL.Query().Get("query"),
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleDetail handles GET /signatures/{id}: a full record.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Fetch(r.Context(), h.store, ops.FetchInput{ID: r.PathValue("id")})
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleAuthor handles GET /authors/{fingerprint}: every record by one key.
func (h *Handlers) HandleAuthor(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Author(r.Context(), h.store, r.PathValue("fingerprint"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleTrusted handles GET /trusted: the sorted trusted domain list.
func (h *Handlers) HandleTrusted(w http.ResponseWriter, r *http.Request) {
	result, err := ops.TrustedDomains(r.Context(), h.store)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
