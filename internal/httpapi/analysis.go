package httpapi

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/nfxvault/tlscertd/internal/certificate"
	certerrors "github.com/nfxvault/tlscertd/internal/errors"
)

type analyzeRequest struct {
	Certificate string `json:"certificate"`
	PrivateKey  string `json:"private_key,omitempty"`
}

type analyzeKeyInfo struct {
	HasPrivateKey bool  `json:"has_private_key"`
	KeyValid      *bool `json:"key_valid,omitempty"`
}

type analyzeResponse struct {
	Domain        string         `json:"domain"`
	AllDomains    []string       `json:"all_domains"`
	Issuer        string         `json:"issuer"`
	NotBefore     time.Time      `json:"not_before"`
	NotAfter      time.Time      `json:"not_after"`
	IsValid       bool           `json:"is_valid"`
	DaysRemaining int            `json:"days_remaining"`
	PrivateKey    analyzeKeyInfo `json:"private_key"`
}

// handleAnalyze implements Analyze(certificate, private_key?):
// parses a pasted-in PEM and returns its fields without persisting
// anything -- unlike Create, no row is written and no store is involved.
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, certerrors.NewValidationError("body", err))
		return
	}
	if req.Certificate == "" {
		h.writeError(w, r, certerrors.NewValidationError("certificate", nil))
		return
	}

	result, domain, err := certificate.ParseCertificatePEM(req.Certificate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	keyInfo := analyzeKeyInfo{HasPrivateKey: req.PrivateKey != ""}
	if req.PrivateKey != "" {
		_, err := tls.X509KeyPair([]byte(req.Certificate), []byte(req.PrivateKey))
		valid := err == nil
		keyInfo.KeyValid = &valid
	}

	writeData(w, http.StatusOK, analyzeResponse{
		Domain:        domain,
		AllDomains:    result.SANs,
		Issuer:        result.Issuer,
		NotBefore:     result.NotBefore,
		NotAfter:      result.NotAfter,
		IsValid:       result.IsValid,
		DaysRemaining: result.DaysRemaining,
		PrivateKey:    keyInfo,
	})
}
