package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nfxvault/tlscertd/internal/certificate"
	certerrors "github.com/nfxvault/tlscertd/internal/errors"
	"github.com/nfxvault/tlscertd/internal/events"
)

const defaultHTTPTrigger = "manual"

// handleRefresh implements Refresh(store, trigger): emits only, no
// synchronous work. The pool scan happens in the worker role's
// operation.refresh handler.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	store := certificate.Store(chi.URLParam(r, "store"))
	if !store.Valid() {
		h.writeError(w, r, certerrors.NewValidationError("store", nil))
		return
	}

	payload := events.RefreshPayload{Store: string(store), Trigger: defaultHTTPTrigger}
	if err := h.bus.Publish(r.Context(), events.EventOperationRefresh, payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, "refresh requested")
}

type invalidateCacheRequest struct {
	Stores []string `json:"stores"`
}

// handleInvalidateCache implements InvalidateCache(stores[], trigger)
// : emits only.
func (h *Handler) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req invalidateCacheRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, certerrors.NewValidationError("body", err))
		return
	}
	if len(req.Stores) == 0 {
		h.writeError(w, r, certerrors.NewValidationError("stores", nil))
		return
	}
	for _, s := range req.Stores {
		if !certificate.Store(s).Valid() {
			h.writeError(w, r, certerrors.NewValidationError("stores", nil))
			return
		}
	}

	payload := events.CacheInvalidatePayload{Stores: req.Stores, Trigger: defaultHTTPTrigger}
	if err := h.bus.Publish(r.Context(), events.EventCacheInvalidate, payload); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, "cache invalidation requested")
}
