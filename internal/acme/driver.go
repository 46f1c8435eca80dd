// Package acme implements the ACME driver (C3): a subprocess wrapper around
// an external ACME client (certbot) operating in "certonly --webroot" mode.
package acme

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	certerrors "github.com/nfxvault/tlscertd/internal/errors"
	"github.com/nfxvault/tlscertd/internal/observability"
)

// IssueRequest describes a single certificate issuance attempt.
type IssueRequest struct {
	Domain       string
	Email        string
	SANs         []string
	FolderName   string
	ForceRenewal bool
}

// IssueResult is the tagged-union outcome of an issuance attempt.
type IssueResult struct {
	Success     bool
	Status      string // "success" | "fail"
	Certificate string
	PrivateKey  string
	Error       string
	Warning     string
	RateLimited bool
	RetryAfter  string
}

// Driver obtains certificates from an ACME CA via an external client.
type Driver interface {
	Issue(ctx context.Context, req IssueRequest) (IssueResult, error)
}

// reusableWindow is the minimum remaining validity a pre-existing
// certificate must have for the driver to skip the subprocess.
const reusableWindow = 24 * time.Hour

// rateLimitPattern matches certbot's rate-limit message, e.g.
// "too many certificates already issued ... retry after 2026-08-07 00:00:00 UTC".
// Kept as a single regex rather than structured parsing of certbot's output,
// mirroring how the original client treated ACME stderr as opaque text.
var rateLimitPattern = regexp.MustCompile(`(?i)too many certificates.*?retry after ([0-9]{4}-[0-9]{2}-[0-9]{2} [0-9]{2}:[0-9]{2}:[0-9]{2})`)

type certbotDriver struct {
	challengeDir  string
	certsDir      string
	certbotBinary string
	maxWaitTime   time.Duration
	staging       bool
	logger        observability.Logger
	metrics       observability.MetricsCollector
}

// Option configures a certbotDriver.
type Option func(*certbotDriver)

// WithStaging directs the driver at Let's Encrypt's staging CA.
func WithStaging(staging bool) Option {
	return func(d *certbotDriver) { d.staging = staging }
}

// NewCertbotDriver constructs a Driver that shells out to certbotBinary.
func NewCertbotDriver(challengeDir, certsDir, certbotBinary string, maxWaitTime time.Duration, logger observability.Logger, metrics observability.MetricsCollector, opts ...Option) (Driver, error) {
	if challengeDir == "" {
		return nil, errors.New("challenge_dir is required")
	}
	if certsDir == "" {
		return nil, errors.New("certs_dir is required")
	}
	if maxWaitTime <= 0 {
		return nil, fmt.Errorf("max_wait_time must be positive, got %s", maxWaitTime)
	}

	d := &certbotDriver{
		challengeDir:  challengeDir,
		certsDir:      certsDir,
		certbotBinary: certbotBinary,
		maxWaitTime:   maxWaitTime,
		logger:        logger,
		metrics:       metrics,
	}
	for _, opt := range opts {
		opt(d)
	}

	challengePath := filepath.Join(challengeDir, ".well-known", "acme-challenge")
	if err := os.MkdirAll(challengePath, 0o755); err != nil {
		return nil, fmt.Errorf("create acme challenge directory: %w", err)
	}
	for _, dir := range d.certbotDirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create certbot state directory %s: %w", dir, err)
		}
	}
	return d, nil
}

func (d *certbotDriver) certbotDirs() []string {
	base := filepath.Join(d.certsDir, ".certbot")
	return []string{
		filepath.Join(base, "config"),
		filepath.Join(base, "work"),
		filepath.Join(base, "logs"),
	}
}

func (d *certbotDriver) liveDir(folderName string) string {
	return filepath.Join(d.certsDir, ".certbot", "config", "live", folderName)
}

func (d *certbotDriver) Issue(ctx context.Context, req IssueRequest) (IssueResult, error) {
	start := time.Now()
	if req.Domain == "" {
		return IssueResult{}, certerrors.NewValidationError("domain is required", nil)
	}
	folderName := req.FolderName
	if folderName == "" {
		folderName = strings.ReplaceAll(req.Domain, ".", "_")
	}

	if !req.ForceRenewal {
		if result, ok := d.tryReuse(folderName); ok {
			d.logger.Info(ctx, "reused existing certificate, skipping acme client",
				observability.Domain(req.Domain), observability.FolderName(folderName))
			d.metrics.RecordACMEIssuance("reused", time.Since(start))
			return result, nil
		}
	}

	result := d.invoke(ctx, req, folderName)
	outcome := "fail"
	if result.Success {
		outcome = "success"
	} else if result.RateLimited {
		outcome = "rate_limited"
	}
	d.metrics.RecordACMEIssuance(outcome, time.Since(start))
	return result, nil
}

// tryReuse loads fullchain.pem/privkey.pem from the live directory and
// reuses them only if the leaf certificate is still valid for at least
// reusableWindow. A missing pair, an
// unparseable leaf, or a cert expiring within the window all fall through
// to a real subprocess invocation.
func (d *certbotDriver) tryReuse(folderName string) (IssueResult, bool) {
	dir := d.liveDir(folderName)
	certPath := filepath.Join(dir, "fullchain.pem")
	keyPath := filepath.Join(dir, "privkey.pem")

	certBytes, err := os.ReadFile(certPath)
	if err != nil {
		return IssueResult{}, false
	}
	keyBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return IssueResult{}, false
	}

	if !hasRemainingValidity(certBytes, reusableWindow) {
		return IssueResult{}, false
	}

	return IssueResult{
		Success:     true,
		Status:      "success",
		Certificate: string(certBytes),
		PrivateKey:  string(keyBytes),
		Warning:     "reused existing certificate",
	}, true
}

// hasRemainingValidity reports whether the leaf certificate in certPEM is
// still valid for at least minRemaining. Any parse failure is treated as
// "not reusable" so the driver falls back to a fresh subprocess issuance
// rather than serving stale or malformed PEM data.
func hasRemainingValidity(certPEM []byte, minRemaining time.Duration) bool {
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return false
	}
	leaf, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return false
	}
	return time.Until(leaf.NotAfter) >= minRemaining
}

func (d *certbotDriver) invoke(ctx context.Context, req IssueRequest, folderName string) IssueResult {
	timeoutCtx, cancel := context.WithTimeout(ctx, d.maxWaitTime)
	defer cancel()

	configDir := filepath.Join(d.certsDir, ".certbot", "config")
	workDir := filepath.Join(d.certsDir, ".certbot", "work")
	logsDir := filepath.Join(d.certsDir, ".certbot", "logs")

	args := []string{
		"certonly", "--webroot",
		"--webroot-path", d.challengeDir,
		"--email", req.Email,
		"--agree-tos",
		"--non-interactive",
		"--cert-name", folderName,
		"--config-dir", configDir,
		"--work-dir", workDir,
		"--logs-dir", logsDir,
	}
	if d.staging {
		args = append(args, "--staging")
	}
	if req.ForceRenewal {
		args = append(args, "--force-renewal")
	}
	for _, domain := range append([]string{req.Domain}, req.SANs...) {
		args = append(args, "-d", domain)
	}

	cmd := exec.CommandContext(timeoutCtx, d.certbotBinary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if timeoutCtx.Err() == context.DeadlineExceeded {
		return IssueResult{
			Status: "fail",
			Error:  fmt.Sprintf("timeout after %s", d.maxWaitTime),
		}
	}

	combined := stdout.String() + "\n" + stderr.String()

	if runErr != nil {
		if matches := rateLimitPattern.FindStringSubmatch(combined); matches != nil {
			retryAfter := matches[1]
			if !req.ForceRenewal {
				if result, ok := d.tryReuse(folderName); ok {
					result.Warning = fmt.Sprintf("rate limited, reused existing certificate; retry after %s", retryAfter)
					return result
				}
			}
			return IssueResult{
				Status:      "fail",
				RateLimited: true,
				RetryAfter:  retryAfter,
				Error:       strings.TrimSpace(combined),
			}
		}
		return IssueResult{
			Status: "fail",
			Error:  strings.TrimSpace(stderr.String()),
		}
	}

	dir := d.liveDir(folderName)
	certBytes, certErr := os.ReadFile(filepath.Join(dir, "fullchain.pem"))
	keyBytes, keyErr := os.ReadFile(filepath.Join(dir, "privkey.pem"))
	if certErr != nil || keyErr != nil {
		return IssueResult{
			Status: "fail",
			Error:  fmt.Sprintf("certificate files not found in %s", dir),
		}
	}

	return IssueResult{
		Success:     true,
		Status:      "success",
		Certificate: string(certBytes),
		PrivateKey:  string(keyBytes),
	}
}
