package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nfxvault/tlscertd/internal/certificate"
	certerrors "github.com/nfxvault/tlscertd/internal/errors"
	"github.com/nfxvault/tlscertd/internal/orchestrator"
)

type createRequest struct {
	Store       string  `json:"store"`
	Domain      string  `json:"domain"`
	Certificate string  `json:"certificate"`
	PrivateKey  string  `json:"private_key"`
	FolderName  *string `json:"folder_name,omitempty"`
	Email       *string `json:"email,omitempty"`
}

// handleCreate implements Create(store, domain, cert, key, folder_name?,
// email?) -> manual_add row.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, certerrors.NewValidationError("body", err))
		return
	}

	created, err := h.orch.Create(r.Context(), orchestrator.CreateManualAddInput{
		Store:       certificate.Store(req.Store),
		Domain:      req.Domain,
		Certificate: req.Certificate,
		PrivateKey:  req.PrivateKey,
		FolderName:  req.FolderName,
		Email:       req.Email,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, created)
}

type applyRequest struct {
	Domain       string   `json:"domain"`
	Email        string   `json:"email"`
	FolderName   string   `json:"folder_name"`
	SANs         []string `json:"sans,omitempty"`
	ForceRenewal bool     `json:"force_renewal,omitempty"`
}

// handleApply implements Apply(domain, email, folder_name, sans?,
// force_renewal?).
func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, certerrors.NewValidationError("body", err))
		return
	}

	row, err := h.orch.Apply(r.Context(), orchestrator.ApplyInput{
		Domain:       req.Domain,
		Email:        req.Email,
		FolderName:   req.FolderName,
		SANs:         req.SANs,
		ForceRenewal: req.ForceRenewal,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusAccepted, row)
}

type updateManualAddRequest struct {
	Store       *string `json:"store,omitempty"`
	Domain      *string `json:"domain,omitempty"`
	FolderName  *string `json:"folder_name,omitempty"`
	Email       *string `json:"email,omitempty"`
	Certificate *string `json:"certificate,omitempty"`
	PrivateKey  *string `json:"private_key,omitempty"`
}

// handleUpdateManualAdd implements UpdateManualAdd(id, ...partial).
func (h *Handler) handleUpdateManualAdd(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateManualAddRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, certerrors.NewValidationError("body", err))
		return
	}

	in := orchestrator.UpdateManualAddInput{
		ID:          id,
		Domain:      req.Domain,
		FolderName:  req.FolderName,
		Email:       req.Email,
		Certificate: req.Certificate,
		PrivateKey:  req.PrivateKey,
	}
	if req.Store != nil {
		store := certificate.Store(*req.Store)
		in.Store = &store
	}

	updated, err := h.orch.UpdateManualAdd(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, updated)
}

type updateManualApplyRequest struct {
	FolderName *string `json:"folder_name,omitempty"`
	Store      *string `json:"store,omitempty"`
}

// handleUpdateManualApply implements UpdateManualApply(domain, folder_name,
// store?).
func (h *Handler) handleUpdateManualApply(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateManualApplyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, certerrors.NewValidationError("body", err))
		return
	}

	in := orchestrator.UpdateManualApplyInput{ID: id, FolderName: req.FolderName}
	if req.Store != nil {
		store := certificate.Store(*req.Store)
		in.Store = &store
	}

	updated, err := h.orch.UpdateManualApply(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, updated)
}

// handleDelete implements Delete(id).
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.orch.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, "certificate deleted")
}

type reapplyRequest struct {
	Domain       string   `json:"domain,omitempty"`
	Email        string   `json:"email"`
	FolderName   string   `json:"folder_name,omitempty"`
	SANs         []string `json:"sans,omitempty"`
	ForceRenewal bool     `json:"force_renewal,omitempty"`
}

// handleReapplyAuto implements ReapplyAuto(id, email, sans?,
// force_renewal?).
func (h *Handler) handleReapplyAuto(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req reapplyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, certerrors.NewValidationError("body", err))
		return
	}
	err := h.orch.ReapplyAuto(r.Context(), orchestrator.ReapplyAutoInput{
		ID: id, Email: req.Email, SANs: req.SANs, ForceRenewal: req.ForceRenewal,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, "reapply started")
}

// handleReapplyManualApply implements ReapplyManualApply(id, domain,
// email, folder_name, sans?, force_renewal?).
func (h *Handler) handleReapplyManualApply(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req reapplyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, certerrors.NewValidationError("body", err))
		return
	}
	err := h.orch.ReapplyManualApply(r.Context(), orchestrator.ReapplyManualApplyInput{
		ID: id, Domain: req.Domain, Email: req.Email, FolderName: req.FolderName,
		SANs: req.SANs, ForceRenewal: req.ForceRenewal,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, "reapply started")
}

// handleReapplyManualAdd implements ReapplyManualAdd(id, email, sans?,
// force_renewal?).
func (h *Handler) handleReapplyManualAdd(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req reapplyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, certerrors.NewValidationError("body", err))
		return
	}
	err := h.orch.ReapplyManualAdd(r.Context(), orchestrator.ReapplyManualAddInput{
		ID: id, Email: req.Email, SANs: req.SANs, ForceRenewal: req.ForceRenewal,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, "reapply started")
}
