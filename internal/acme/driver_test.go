package acme

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nfxvault/tlscertd/internal/observability"
)

// generateTestCertPEM builds a self-signed leaf certificate valid in
// [notBefore, notAfter), mirroring internal/certificate/parse_test.go's
// helper of the same name.
func generateTestCertPEM(t *testing.T, cn string, notBefore, notAfter time.Time) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		Issuer:       pkix.Name{CommonName: "Test CA"},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	block := &pem.Block{Type: "CERTIFICATE", Bytes: der}
	return string(pem.EncodeToMemory(block))
}

type noopLogger struct{}

func (noopLogger) Debug(ctx context.Context, msg string, fields ...observability.Field) {}
func (noopLogger) Info(ctx context.Context, msg string, fields ...observability.Field)  {}
func (noopLogger) Warn(ctx context.Context, msg string, fields ...observability.Field)  {}
func (noopLogger) Error(ctx context.Context, err error, msg string, fields ...observability.Field) {
}
func (l noopLogger) WithFields(fields ...observability.Field) observability.Logger { return l }
func (l noopLogger) WithContext(ctx context.Context) observability.Logger          { return l }

type noopMetrics struct{}

func (noopMetrics) RecordCertificateWrite(store, status string)              {}
func (noopMetrics) RecordACMEIssuance(result string, duration time.Duration) {}
func (noopMetrics) RecordCacheHit(projection string)                         {}
func (noopMetrics) RecordCacheMiss(projection string)                        {}
func (noopMetrics) RecordEventPublished(eventType, outcome string)           {}
func (noopMetrics) RecordEventConsumed(eventType, outcome string)            {}
func (noopMetrics) RecordPoolImport(store, result string)                    {}
func (noopMetrics) RecordDaysRemainingRecompute(updated int)                 {}
func (noopMetrics) RecordRateLimitHit(key string)                            {}

// writeFakeCertbot writes a shell script standing in for the certbot binary.
// behavior selects one of: "success", "rate_limit", "fail", "sleep".
func writeFakeCertbot(t *testing.T, dir, behavior string) string {
	t.Helper()
	path := filepath.Join(dir, "fake-certbot.sh")

	var script string
	switch behavior {
	case "success":
		script = `#!/bin/sh
for i in "$@"; do
  if [ "$prev" = "--config-dir" ]; then configdir="$i"; fi
  if [ "$prev" = "--cert-name" ]; then certname="$i"; fi
  prev="$i"
done
mkdir -p "$configdir/live/$certname"
echo "fake-fullchain" > "$configdir/live/$certname/fullchain.pem"
echo "fake-privkey" > "$configdir/live/$certname/privkey.pem"
exit 0
`
	case "rate_limit":
		script = `#!/bin/sh
echo "too many certificates already issued for this domain, retry after 2026-08-07 00:00:00 UTC" 1>&2
exit 1
`
	case "fail":
		script = `#!/bin/sh
echo "invalid domain name" 1>&2
exit 1
`
	case "sleep":
		script = `#!/bin/sh
sleep 5
exit 0
`
	default:
		t.Fatalf("unknown behavior %q", behavior)
	}

	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func newTestDriver(t *testing.T, binary string, maxWait time.Duration) (*certbotDriver, string) {
	t.Helper()
	base := t.TempDir()
	challengeDir := filepath.Join(base, "challenges")
	certsDir := filepath.Join(base, "certs")

	d, err := NewCertbotDriver(challengeDir, certsDir, binary, maxWait, noopLogger{}, noopMetrics{})
	require.NoError(t, err)
	drv, ok := d.(*certbotDriver)
	require.True(t, ok)
	return drv, certsDir
}

func TestCertbotDriver_Issue_Success(t *testing.T) {
	scriptDir := t.TempDir()
	binary := writeFakeCertbot(t, scriptDir, "success")
	driver, _ := newTestDriver(t, binary, 5*time.Second)

	result, err := driver.Issue(context.Background(), IssueRequest{
		Domain:     "example.com",
		Email:      "ops@example.com",
		FolderName: "example_com",
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "success", result.Status)
	require.Equal(t, "fake-fullchain\n", result.Certificate)
}

func TestCertbotDriver_Issue_ReusesExistingCertificate(t *testing.T) {
	scriptDir := t.TempDir()
	binary := writeFakeCertbot(t, scriptDir, "fail") // would fail if invoked
	driver, certsDir := newTestDriver(t, binary, 5*time.Second)

	now := time.Now().UTC()
	certPEM := generateTestCertPEM(t, "example.com", now.Add(-time.Hour), now.Add(90*24*time.Hour))

	liveDir := filepath.Join(certsDir, ".certbot", "config", "live", "example_com")
	require.NoError(t, os.MkdirAll(liveDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(liveDir, "fullchain.pem"), []byte(certPEM), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(liveDir, "privkey.pem"), []byte("existing-key"), 0o644))

	result, err := driver.Issue(context.Background(), IssueRequest{
		Domain:     "example.com",
		Email:      "ops@example.com",
		FolderName: "example_com",
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, certPEM, result.Certificate)
}

// TestCertbotDriver_Issue_DoesNotReuseExpiringCertificate covers the
// pre-check boundary: a pre-existing cert valid for less than the
// 24h reusableWindow must not short-circuit the subprocess.
func TestCertbotDriver_Issue_DoesNotReuseExpiringCertificate(t *testing.T) {
	scriptDir := t.TempDir()
	binary := writeFakeCertbot(t, scriptDir, "success")
	driver, certsDir := newTestDriver(t, binary, 5*time.Second)

	now := time.Now().UTC()
	certPEM := generateTestCertPEM(t, "example.com", now.Add(-90*24*time.Hour), now.Add(time.Hour))

	liveDir := filepath.Join(certsDir, ".certbot", "config", "live", "example_com")
	require.NoError(t, os.MkdirAll(liveDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(liveDir, "fullchain.pem"), []byte(certPEM), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(liveDir, "privkey.pem"), []byte("existing-key"), 0o644))

	result, err := driver.Issue(context.Background(), IssueRequest{
		Domain:     "example.com",
		Email:      "ops@example.com",
		FolderName: "example_com",
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "fake-fullchain\n", result.Certificate)
}

func TestCertbotDriver_Issue_RateLimitedWithoutExistingCert_ReturnsFail(t *testing.T) {
	scriptDir := t.TempDir()
	binary := writeFakeCertbot(t, scriptDir, "rate_limit")
	driver, _ := newTestDriver(t, binary, 5*time.Second)

	result, err := driver.Issue(context.Background(), IssueRequest{
		Domain:     "example.com",
		Email:      "ops@example.com",
		FolderName: "example_com",
	})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.True(t, result.RateLimited)
	require.Equal(t, "2026-08-07 00:00:00", result.RetryAfter)
}

func TestCertbotDriver_Issue_RateLimitedWithExistingCert_DegradesToSuccess(t *testing.T) {
	scriptDir := t.TempDir()
	binary := writeFakeCertbot(t, scriptDir, "rate_limit")
	driver, certsDir := newTestDriver(t, binary, 5*time.Second)

	now := time.Now().UTC()
	certPEM := generateTestCertPEM(t, "example.com", now.Add(-time.Hour), now.Add(90*24*time.Hour))

	liveDir := filepath.Join(certsDir, ".certbot", "config", "live", "example_com")
	require.NoError(t, os.MkdirAll(liveDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(liveDir, "fullchain.pem"), []byte(certPEM), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(liveDir, "privkey.pem"), []byte("existing-key"), 0o644))

	result, err := driver.Issue(context.Background(), IssueRequest{
		Domain:     "example.com",
		Email:      "ops@example.com",
		FolderName: "example_com",
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	// The valid existing cert satisfies the pre-check, so the rate-limited
	// client is never run and the existing PEMs come back as reused.
	require.Equal(t, "reused existing certificate", result.Warning)
}

func TestCertbotDriver_Issue_OtherFailure_ReturnsRawStderr(t *testing.T) {
	scriptDir := t.TempDir()
	binary := writeFakeCertbot(t, scriptDir, "fail")
	driver, _ := newTestDriver(t, binary, 5*time.Second)

	result, err := driver.Issue(context.Background(), IssueRequest{
		Domain:     "bad..domain",
		Email:      "ops@example.com",
		FolderName: "bad_domain",
	})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Contains(t, result.Error, "invalid domain name")
}

func TestCertbotDriver_Issue_Timeout(t *testing.T) {
	scriptDir := t.TempDir()
	binary := writeFakeCertbot(t, scriptDir, "sleep")
	driver, _ := newTestDriver(t, binary, 200*time.Millisecond)

	result, err := driver.Issue(context.Background(), IssueRequest{
		Domain:     "example.com",
		Email:      "ops@example.com",
		FolderName: "example_com",
	})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Contains(t, result.Error, "timeout after")
}

func TestNewCertbotDriver_RequiresPaths(t *testing.T) {
	_, err := NewCertbotDriver("", "certs", "certbot", time.Second, noopLogger{}, noopMetrics{})
	require.Error(t, err)

	_, err = NewCertbotDriver("challenges", "", "certbot", time.Second, noopLogger{}, noopMetrics{})
	require.Error(t, err)

	_, err = NewCertbotDriver("challenges", "certs", "certbot", 0, noopLogger{}, noopMetrics{})
	require.Error(t, err)
}
