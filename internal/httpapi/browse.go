package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nfxvault/tlscertd/internal/certificate"
	certerrors "github.com/nfxvault/tlscertd/internal/errors"
)

func storeFromPath(r *http.Request) (certificate.Store, error) {
	store := certificate.Store(chi.URLParam(r, "store"))
	if !store.Valid() {
		return "", certerrors.NewValidationError("store", nil)
	}
	return store, nil
}

// handleListDirectory implements ListDirectory(store, path?): lists
// one folder under a pool-backed store's root, the API-surfaced analogue
// of the worker role's own pool-folder walk (internal/orchestrator's
// import/auto-renew scans).
func (h *Handler) handleListDirectory(w http.ResponseWriter, r *http.Request) {
	store, err := storeFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	entries, err := h.orch.ListDirectory(store, r.URL.Query().Get("path"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, entries)
}

// handleDownloadFile implements DownloadFile(store, path): streams
// a pool file back as an attachment.
func (h *Handler) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	store, err := storeFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		h.writeError(w, r, certerrors.NewValidationError("path", nil))
		return
	}

	file, err := h.orch.ReadFile(store, path)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, file.Name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Content)
}

type fileContentResponse struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// handleFileContent implements GetFileContent(store, path): the
// same pool file as DownloadFile, returned inline as JSON text rather than
// an attachment, for viewing a cert/key file without downloading it.
func (h *Handler) handleFileContent(w http.ResponseWriter, r *http.Request) {
	store, err := storeFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		h.writeError(w, r, certerrors.NewValidationError("path", nil))
		return
	}

	file, err := h.orch.ReadFile(store, path)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, fileContentResponse{Filename: file.Name, Content: string(file.Content)})
}

type exportStoreResponse struct {
	Exported int `json:"exported"`
	Skipped  int `json:"skipped"`
}

// handleExportStore implements ExportStore(store): bulk
// pool export across every exportable row in the store, distinct from the
// single-certificate Export that already exists per-id.
func (h *Handler) handleExportStore(w http.ResponseWriter, r *http.Request) {
	store, err := storeFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	exported, skipped, err := h.orch.ExportStore(r.Context(), store)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, exportStoreResponse{Exported: exported, Skipped: skipped})
}
