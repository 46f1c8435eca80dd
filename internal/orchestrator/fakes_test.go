package orchestrator

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nfxvault/tlscertd/internal/acme"
	"github.com/nfxvault/tlscertd/internal/certificate"
	certerrors "github.com/nfxvault/tlscertd/internal/errors"
	"github.com/nfxvault/tlscertd/internal/events"
	"github.com/nfxvault/tlscertd/internal/observability"
)

// stubLogger/stubMetrics follow internal/events/bus_test.go's pattern: a
// silent Logger and a Metrics that just counts, so orchestrator tests don't
// need to stub out every call with testify expectations.
type stubLogger struct{}

func (stubLogger) Debug(ctx context.Context, msg string, fields ...observability.Field) {}
func (stubLogger) Info(ctx context.Context, msg string, fields ...observability.Field)  {}
func (stubLogger) Warn(ctx context.Context, msg string, fields ...observability.Field)  {}
func (stubLogger) Error(ctx context.Context, err error, msg string, fields ...observability.Field) {
}
func (l stubLogger) WithFields(fields ...observability.Field) observability.Logger { return l }
func (l stubLogger) WithContext(ctx context.Context) observability.Logger          { return l }

type stubMetrics struct {
	mu      sync.Mutex
	writes  map[string]int
	imports map[string]int
}

func newStubMetrics() *stubMetrics {
	return &stubMetrics{writes: map[string]int{}, imports: map[string]int{}}
}

func (m *stubMetrics) RecordCertificateWrite(store, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes[store+":"+status]++
}
func (m *stubMetrics) RecordACMEIssuance(result string, duration time.Duration) {}
func (m *stubMetrics) RecordCacheHit(projection string)                         {}
func (m *stubMetrics) RecordCacheMiss(projection string)                        {}
func (m *stubMetrics) RecordEventPublished(eventType, outcome string)           {}
func (m *stubMetrics) RecordEventConsumed(eventType, outcome string)            {}
func (m *stubMetrics) RecordPoolImport(store, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imports[store+":"+result]++
}
func (m *stubMetrics) RecordDaysRemainingRecompute(updated int) {}
func (m *stubMetrics) RecordRateLimitHit(key string)            {}

func (m *stubMetrics) writeCount(store, status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[store+":"+status]
}

// fakeRepo is an in-memory stand-in for internal/certificate.Repository,
// sufficient to exercise the orchestrator's decision logic without a MySQL
// instance. Keyed matching follows the same rules the real repository
// documents: CreateOrUpdate by folder_name when set, else by
// (domain, source); CreateManualAdd conflicts on (store, domain, manual_add).
type fakeRepo struct {
	mu     sync.Mutex
	rows   map[string]certificate.Certificate
	nextID int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[string]certificate.Certificate{}}
}

func (r *fakeRepo) allocID() string {
	r.nextID++
	return "cert-" + strconv.Itoa(r.nextID)
}

func (r *fakeRepo) seed(cert certificate.Certificate) *certificate.Certificate {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cert.ID == "" {
		cert.ID = r.allocID()
	}
	r.rows[cert.ID] = cert
	cp := cert
	return &cp
}

func (r *fakeRepo) get(id string) (certificate.Certificate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	return c, ok
}

func (r *fakeRepo) List(ctx context.Context, params certificate.ListParams) (certificate.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []certificate.Certificate
	for _, c := range r.rows {
		if c.Store == params.Store {
			items = append(items, c)
		}
	}
	sortByID(items)
	return certificate.Page{Items: items, Total: len(items)}, nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*certificate.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := c
	return &cp, nil
}

func (r *fakeRepo) GetByDomain(ctx context.Context, store certificate.Store, domain string, source certificate.Source) (*certificate.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.Store == store && c.Domain == domain && c.Source == source {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) GetByFolderName(ctx context.Context, folderName string) (*certificate.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.FolderName != nil && *c.FolderName == folderName {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) CreateOrUpdate(ctx context.Context, cert certificate.Certificate) (*certificate.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.rows {
		matched := false
		if cert.FolderName != nil && existing.FolderName != nil && *existing.FolderName == *cert.FolderName {
			matched = true
		} else if cert.FolderName == nil && existing.Domain == cert.Domain && existing.Source == cert.Source {
			matched = true
		}
		if !matched {
			continue
		}
		cert.ID = id
		cert.Source = existing.Source
		cert.CreatedAt = existing.CreatedAt
		r.rows[id] = cert
		cp := cert
		return &cp, nil
	}
	cert.ID = r.allocID()
	r.rows[cert.ID] = cert
	cp := cert
	return &cp, nil
}

func (r *fakeRepo) CreateManualAdd(ctx context.Context, cert certificate.Certificate) (*certificate.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cert.Source = certificate.SourceManualAdd
	cert.Status = certificate.StatusProcess
	for _, existing := range r.rows {
		if existing.Store == cert.Store && existing.Domain == cert.Domain && existing.Source == certificate.SourceManualAdd {
			return nil, certerrors.NewConflictError("certificate already exists", nil)
		}
	}
	cert.ID = r.allocID()
	r.rows[cert.ID] = cert
	cp := cert
	return &cp, nil
}

func (r *fakeRepo) UpdateByID(ctx context.Context, id string, patch certificate.CertificatePatch) (*certificate.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return nil, certerrors.NewNotFoundError("certificate", id)
	}
	if patch.FolderName != nil {
		c.FolderName = patch.FolderName
	}
	if patch.Store != nil {
		c.Store = *patch.Store
	}
	if patch.Domain != nil {
		c.Domain = *patch.Domain
	}
	if patch.Email != nil {
		c.Email = patch.Email
	}
	if patch.Certificate != nil {
		c.Certificate = patch.Certificate
	}
	if patch.PrivateKey != nil {
		c.PrivateKey = patch.PrivateKey
	}
	if patch.SANs != nil {
		c.SetSANs(*patch.SANs)
	}
	if patch.Issuer != nil {
		c.Issuer = patch.Issuer
	}
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if patch.LastErrorMessage != nil {
		c.LastErrorMessage = patch.LastErrorMessage
	}
	r.rows[id] = c
	cp := c
	return &cp, nil
}

func (r *fakeRepo) UpdateParseResult(ctx context.Context, id string, result certificate.ParseResult) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return false, nil
	}
	c.SetSANs(result.SANs)
	issuer := result.Issuer
	notBefore := result.NotBefore
	notAfter := result.NotAfter
	isValid := result.IsValid
	daysRemaining := result.DaysRemaining
	c.Issuer = &issuer
	c.NotBefore = &notBefore
	c.NotAfter = &notAfter
	c.IsValid = &isValid
	c.DaysRemaining = &daysRemaining
	c.Status = result.Status
	if result.ErrorMessage != "" {
		msg := result.ErrorMessage
		c.LastErrorMessage = &msg
	}
	r.rows[id] = c
	return true, nil
}

func (r *fakeRepo) UpdateAllDaysRemaining(ctx context.Context) (int, int, []certificate.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows []certificate.Certificate
	for _, c := range r.rows {
		rows = append(rows, c)
	}
	sortByID(rows)
	return len(rows), len(rows), rows, nil
}

func (r *fakeRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return false, nil
	}
	delete(r.rows, id)
	return true, nil
}

func (r *fakeRepo) Search(ctx context.Context, params certificate.SearchParams) (certificate.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []certificate.Certificate
	for _, c := range r.rows {
		if params.Store != nil && c.Store != *params.Store {
			continue
		}
		if params.Source != nil && c.Source != *params.Source {
			continue
		}
		if params.Keyword != "" && !strings.Contains(c.Domain, params.Keyword) {
			continue
		}
		items = append(items, c)
	}
	sortByID(items)
	return certificate.Page{Items: items, Total: len(items)}, nil
}

// SetStatus is the status-gate primitive: the whole
// check-and-set runs under one lock so two concurrent callers can never
// both observe a matching cond.
func (r *fakeRepo) SetStatus(ctx context.Context, id string, next certificate.Status, cond *certificate.Status) (certificate.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return "", certerrors.NewNotFoundError("certificate", id)
	}
	previous := c.Status
	if cond != nil && previous != *cond {
		return previous, certerrors.ErrAlreadyProcessing
	}
	c.Status = next
	r.rows[id] = c
	return previous, nil
}

func sortByID(items []certificate.Certificate) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
}

// fakeCache is the orchestrator-local Cache: invalidation only.
type fakeCache struct {
	mu          sync.Mutex
	invalidated []certificate.Store
}

func newFakeCache() *fakeCache { return &fakeCache{} }

func (c *fakeCache) InvalidateStore(ctx context.Context, store certificate.Store) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, store)
	return nil
}

func (c *fakeCache) invalidatedStores() []certificate.Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]certificate.Store, len(c.invalidated))
	copy(out, c.invalidated)
	return out
}

type publishedEvent struct {
	Type    events.EventType
	Payload interface{}
}

// fakeBus is the orchestrator-local Bus: publish only, recording every
// call for assertion. failOn lets a test simulate a broken event bus for
// a specific event type without the publish call returning early.
type fakeBus struct {
	mu        sync.Mutex
	published []publishedEvent
	failOn    map[events.EventType]error
}

func newFakeBus() *fakeBus {
	return &fakeBus{failOn: map[events.EventType]error{}}
}

func (b *fakeBus) Publish(ctx context.Context, eventType events.EventType, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.failOn[eventType]; ok {
		return err
	}
	b.published = append(b.published, publishedEvent{Type: eventType, Payload: payload})
	return nil
}

func (b *fakeBus) eventsOf(eventType events.EventType) []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []publishedEvent
	for _, e := range b.published {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeDriver is the orchestrator-local Driver. resultFn, when set,
// computes the result per-call (e.g. to simulate rate-limiting on the
// first attempt and success on a retry); otherwise it always succeeds
// with a freshly generated, parseable certificate for the requested
// domain/SANs.
type fakeDriver struct {
	mu       sync.Mutex
	calls    []acme.IssueRequest
	resultFn func(acme.IssueRequest) (acme.IssueResult, error)
}

func newFakeDriver() *fakeDriver { return &fakeDriver{} }

func (d *fakeDriver) Issue(ctx context.Context, req acme.IssueRequest) (acme.IssueResult, error) {
	d.mu.Lock()
	d.calls = append(d.calls, req)
	d.mu.Unlock()

	if d.resultFn != nil {
		return d.resultFn(req)
	}
	sans := req.SANs
	if len(sans) == 0 {
		sans = []string{req.Domain}
	}
	certPEM, keyPEM := generateTestCertPEM(req.Domain, sans, time.Now().Add(-time.Hour), time.Now().Add(90*24*time.Hour))
	return acme.IssueResult{Success: true, Status: "success", Certificate: certPEM, PrivateKey: keyPEM}, nil
}

func (d *fakeDriver) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

// generateTestCertPEM mirrors internal/certificate/parse_test.go's helper:
// a minimal self-signed leaf sufficient for ParseCertificatePEM.
func generateTestCertPEM(cn string, sans []string, notBefore, notAfter time.Time) (certPEM, keyPEM string) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic(err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		Issuer:       pkix.Name{CommonName: "Test CA"},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		DNSNames:     sans,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		panic(err)
	}
	certOut := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	keyBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		panic(err)
	}
	keyOut := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes})
	return string(certOut), string(keyOut)
}

// testHarness bundles an Orchestrator with its fakes for direct
// inspection, and a certsDir rooted in the test's t.TempDir().
type testHarness struct {
	t        *testing.T
	certsDir string
	repo     *fakeRepo
	cache    *fakeCache
	bus      *fakeBus
	driver   *fakeDriver
	metrics  *stubMetrics
	orch     *Orchestrator
}

func newTestHarness(t *testing.T, renewThreshold int) *testHarness {
	t.Helper()
	h := &testHarness{
		t:        t,
		certsDir: t.TempDir(),
		repo:     newFakeRepo(),
		cache:    newFakeCache(),
		bus:      newFakeBus(),
		driver:   newFakeDriver(),
		metrics:  newStubMetrics(),
	}
	h.orch = New(h.repo, h.cache, h.bus, h.driver, h.certsDir, renewThreshold, stubLogger{}, h.metrics)
	return h
}

// waitIdle waits for all of the orchestrator's background tasks
// (apply/reapply/auto-renew) to finish, via the same Shutdown the
// production roles use on graceful stop.
func (h *testHarness) waitIdle() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(h.t, h.orch.Shutdown(ctx))
}
