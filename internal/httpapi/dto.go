package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/nfxvault/tlscertd/internal/certificate"
	certerrors "github.com/nfxvault/tlscertd/internal/errors"
	"github.com/nfxvault/tlscertd/internal/observability"
)

// envelope is the uniform response shape every operation returns.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type pageResponse struct {
	Items []certificate.Certificate `json:"items"`
	Total int                       `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeOK(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message})
}

// writeError translates an orchestrator/repository error into an HTTP
// response using CertError.HTTPStatus().
// Errors that are not a *CertError are treated as internal.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var message string

	if cerr, ok := err.(*certerrors.CertError); ok {
		status = cerr.Code.HTTPStatus()
		message = cerr.Error()
	} else {
		status = http.StatusInternalServerError
		message = "internal error"
		h.logger.Error(r.Context(), err, "unhandled httpapi error")
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), err, "httpapi request failed", observability.Int("status", status))
	}
	writeJSON(w, status, envelope{Success: false, Message: message})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
