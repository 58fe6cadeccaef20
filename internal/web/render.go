package web

import (
	"encoding/json"
	"net/http"

	"github.com/sisilabsai/thesignal/internal/errors"
)

// renderError writes err as {"error": {code, message, status, details}}.
// Details of internal and persistence errors are never exposed.
func (h *Handlers) renderError(w http.ResponseWriter, r *http.Request, err error) {
	sErr := errors.As(err)

	if sErr.Status >= http.StatusInternalServerError {
		args := []any{"path", r.URL.Path, "code", sErr.Code, "error", err}
		if cause := sErr.Unwrap(); cause != nil {
			args = append(args, "cause", cause)
		}
		h.log.Error(r.Context(), "request failed", args...)
	}

	body := map[string]any{
		"code":    string(sErr.Code),
		"message": sErr.Message,
		"status":  sErr.Status,
	}
	if len(sErr.Details) > 0 && !sErr.Private() {
		body["details"] = sErr.Details
	}

	renderJSON(w, sErr.Status, map[string]any{"error": body})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
