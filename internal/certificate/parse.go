package certificate

import (
	"crypto/x509"
	"encoding/pem"
	"time"

	certerrors "github.com/nfxvault/tlscertd/internal/errors"
)

// ParseCertificatePEM decodes a full-chain PEM and extracts the fields the
// store and cache project. The leaf certificate's CN is
// always placed first in the returned SAN list (invariant P4), followed by
// its SANs, deduplicated.
//
// An absent CN is treated as a skip condition by callers,
// not an error here; ParseCertificatePEM still returns successfully with an
// empty CommonName so the caller can decide.
func ParseCertificatePEM(certPEM string) (ParseResult, string, error) {
	block, _ := pem.Decode([]byte(certPEM))
	if block == nil {
		return ParseResult{}, "", certerrors.WrapError(certerrors.ErrCodeParse, "decode PEM block", nil)
	}

	leaf, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return ParseResult{}, "", certerrors.WrapError(certerrors.ErrCodeParse, "parse x509 certificate", err)
	}

	domains := []string{}
	if leaf.Subject.CommonName != "" {
		domains = append(domains, leaf.Subject.CommonName)
	}
	domains = append(domains, leaf.DNSNames...)
	domains = dedupePreserveOrder(domains)

	now := time.Now().UTC()
	days := int(leaf.NotAfter.Sub(now).Hours() / 24)
	valid := days >= 0 && now.After(leaf.NotBefore)

	result := ParseResult{
		SANs:          domains,
		Issuer:        leaf.Issuer.CommonName,
		NotBefore:     leaf.NotBefore,
		NotAfter:      leaf.NotAfter,
		IsValid:       valid,
		DaysRemaining: days,
		Status:        StatusSuccess,
	}
	return result, leaf.Subject.CommonName, nil
}
