// Package challenge implements the filesystem-backed ACME HTTP-01
// challenge endpoint.
package challenge

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nfxvault/tlscertd/internal/observability"
)

// Handler serves ACME HTTP-01 challenge responses from the certbot
// webroot by reading the response file directly from disk: the ACME
// driver is a certbot subprocess writing webroot files, so there is no
// in-process issuer to hand the handler a token map.
type Handler struct {
	challengeDir string
	logger       observability.Logger
}

// New constructs a Handler rooted at challengeDir, the HTTP-01 webroot.
func New(challengeDir string, logger observability.Logger) *Handler {
	return &Handler{challengeDir: challengeDir, logger: logger}
}

// Mount registers the challenge route on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/.well-known/acme-challenge/{token}", h.ServeHTTP)
}

// ServeHTTP serves the token file for a GET request: it first
// tries {acme_challenge_dir}/.well-known/acme-challenge/{token}, falling
// back to {acme_challenge_dir}/{token}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" || strings.ContainsRune(token, filepath.Separator) || strings.Contains(token, "..") {
		http.Error(w, "invalid challenge token", http.StatusNotFound)
		return
	}

	primary := filepath.Join(h.challengeDir, ".well-known", "acme-challenge", token)
	fallback := filepath.Join(h.challengeDir, token)

	body, err := os.ReadFile(primary)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			h.logger.Warn(r.Context(), "challenge read failed", observability.Error(err), observability.String("path", primary))
		}
		body, err = os.ReadFile(fallback)
	}
	if err != nil {
		http.Error(w, "challenge not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
