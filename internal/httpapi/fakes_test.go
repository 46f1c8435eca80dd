package httpapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nfxvault/tlscertd/internal/certcache"
	"github.com/nfxvault/tlscertd/internal/certificate"
	"github.com/nfxvault/tlscertd/internal/events"
	"github.com/nfxvault/tlscertd/internal/observability"
	"github.com/nfxvault/tlscertd/internal/orchestrator"
)

// stubLogger and stubMetrics follow the no-op/counting stub style used in
// internal/events/bus_test.go rather than internal/testing's testify-mock
// based MockLogger/MockMetricsCollector, which require per-call
// expectations that don't fit a handler whose logging is incidental to the
// behavior under test.
type stubLogger struct{}

func (stubLogger) Debug(ctx context.Context, msg string, fields ...observability.Field) {}
func (stubLogger) Info(ctx context.Context, msg string, fields ...observability.Field)  {}
func (stubLogger) Warn(ctx context.Context, msg string, fields ...observability.Field)  {}
func (stubLogger) Error(ctx context.Context, err error, msg string, fields ...observability.Field) {
}
func (l stubLogger) WithFields(fields ...observability.Field) observability.Logger { return l }
func (l stubLogger) WithContext(ctx context.Context) observability.Logger          { return l }

type stubMetrics struct{}

func (stubMetrics) RecordCertificateWrite(store, status string)              {}
func (stubMetrics) RecordACMEIssuance(result string, duration time.Duration) {}
func (stubMetrics) RecordCacheHit(projection string)                         {}
func (stubMetrics) RecordCacheMiss(projection string)                        {}
func (stubMetrics) RecordEventPublished(eventType, outcome string)           {}
func (stubMetrics) RecordEventConsumed(eventType, outcome string)            {}
func (stubMetrics) RecordPoolImport(store, result string)                    {}
func (stubMetrics) RecordDaysRemainingRecompute(updated int)                 {}
func (stubMetrics) RecordRateLimitHit(key string)                            {}

// fakeRepo is a minimal in-memory stand-in for this package's Repository.
type fakeRepo struct {
	mu    sync.Mutex
	rows  map[string]certificate.Certificate
	order []string

	listErr   error
	getErr    error
	searchErr error

	lastSearch certificate.SearchParams
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[string]certificate.Certificate)}
}

func (r *fakeRepo) seed(c certificate.Certificate) certificate.Certificate {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, c.ID)
	r.rows[c.ID] = c
	return c
}

func (r *fakeRepo) List(ctx context.Context, params certificate.ListParams) (certificate.Page, error) {
	if r.listErr != nil {
		return certificate.Page{}, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []certificate.Certificate
	for _, id := range r.order {
		row := r.rows[id]
		if row.Store == params.Store {
			items = append(items, row)
		}
	}
	return certificate.Page{Items: items, Total: len(items)}, nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*certificate.Certificate, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (r *fakeRepo) Search(ctx context.Context, params certificate.SearchParams) (certificate.Page, error) {
	r.mu.Lock()
	r.lastSearch = params
	r.mu.Unlock()
	if r.searchErr != nil {
		return certificate.Page{}, r.searchErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []certificate.Certificate
	for _, id := range r.order {
		row := r.rows[id]
		if params.Store != nil && row.Store != *params.Store {
			continue
		}
		if params.Source != nil && row.Source != *params.Source {
			continue
		}
		items = append(items, row)
	}
	return certificate.Page{Items: items, Total: len(items)}, nil
}

// fakeCache is an in-memory Cache that records list/detail puts so tests
// can assert read-through population without a real Redis.
type fakeCache struct {
	mu      sync.Mutex
	lists   map[string]certcache.ListEntry
	details map[string]certcache.DetailEntry
	setErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{lists: make(map[string]certcache.ListEntry), details: make(map[string]certcache.DetailEntry)}
}

func listKey(store certificate.Store, offset, limit int) string {
	return fmt.Sprintf("%s:%d:%d", store, offset, limit)
}

func (c *fakeCache) GetList(ctx context.Context, store certificate.Store, offset, limit int) (*certcache.ListEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.lists[listKey(store, offset, limit)]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (c *fakeCache) SetList(ctx context.Context, store certificate.Store, offset, limit int, entry certcache.ListEntry) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists[listKey(store, offset, limit)] = entry
	return nil
}

func (c *fakeCache) GetDetail(ctx context.Context, store certificate.Store, domain string) (*certcache.DetailEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.details[string(store)+":"+domain]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (c *fakeCache) SetDetail(ctx context.Context, store certificate.Store, domain string, entry certcache.DetailEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.details[string(store)+":"+domain] = entry
	return nil
}

// publishedEvent records one fakeBus.Publish call.
type publishedEvent struct {
	Type    events.EventType
	Payload interface{}
}

type fakeBus struct {
	mu        sync.Mutex
	published []publishedEvent
	failErr   error
}

func newFakeBus() *fakeBus { return &fakeBus{} }

func (b *fakeBus) Publish(ctx context.Context, eventType events.EventType, payload interface{}) error {
	if b.failErr != nil {
		return b.failErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, publishedEvent{Type: eventType, Payload: payload})
	return nil
}

func (b *fakeBus) events() []publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]publishedEvent, len(b.published))
	copy(out, b.published)
	return out
}

// fakeOrchestrator is a hand-built stand-in for this package's local
// Orchestrator interface: it records the input it received for each
// operation and returns whatever result/error the test configured,
// mirroring internal/orchestrator's own fakeDriver/fakeBus test style
// rather than reaching for a testify mock.
type fakeOrchestrator struct {
	mu sync.Mutex

	createIn  orchestrator.CreateManualAddInput
	createOut *certificate.Certificate
	createErr error

	applyIn  orchestrator.ApplyInput
	applyOut *certificate.Certificate
	applyErr error

	updateManualAddIn  orchestrator.UpdateManualAddInput
	updateManualAddOut *certificate.Certificate
	updateManualAddErr error

	updateManualApplyIn  orchestrator.UpdateManualApplyInput
	updateManualApplyOut *certificate.Certificate
	updateManualApplyErr error

	deleteIn  string
	deleteErr error

	reapplyAutoIn  orchestrator.ReapplyAutoInput
	reapplyAutoErr error

	reapplyManualApplyIn  orchestrator.ReapplyManualApplyInput
	reapplyManualApplyErr error

	reapplyManualAddIn  orchestrator.ReapplyManualAddInput
	reapplyManualAddErr error

	exportStoreIn       certificate.Store
	exportStoreExported int
	exportStoreSkipped  int
	exportStoreErr      error

	listDirectoryIn struct {
		store   certificate.Store
		subpath string
	}
	listDirectoryOut []orchestrator.DirEntry
	listDirectoryErr error

	readFileIn struct {
		store certificate.Store
		path  string
	}
	readFileOut orchestrator.PoolFile
	readFileErr error
}

func newFakeOrchestrator() *fakeOrchestrator { return &fakeOrchestrator{} }

func (f *fakeOrchestrator) Create(ctx context.Context, in orchestrator.CreateManualAddInput) (*certificate.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createIn = in
	return f.createOut, f.createErr
}

func (f *fakeOrchestrator) UpdateManualAdd(ctx context.Context, in orchestrator.UpdateManualAddInput) (*certificate.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateManualAddIn = in
	return f.updateManualAddOut, f.updateManualAddErr
}

func (f *fakeOrchestrator) UpdateManualApply(ctx context.Context, in orchestrator.UpdateManualApplyInput) (*certificate.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateManualApplyIn = in
	return f.updateManualApplyOut, f.updateManualApplyErr
}

func (f *fakeOrchestrator) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteIn = id
	return f.deleteErr
}

func (f *fakeOrchestrator) Apply(ctx context.Context, in orchestrator.ApplyInput) (*certificate.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyIn = in
	return f.applyOut, f.applyErr
}

func (f *fakeOrchestrator) ReapplyAuto(ctx context.Context, in orchestrator.ReapplyAutoInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reapplyAutoIn = in
	return f.reapplyAutoErr
}

func (f *fakeOrchestrator) ReapplyManualApply(ctx context.Context, in orchestrator.ReapplyManualApplyInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reapplyManualApplyIn = in
	return f.reapplyManualApplyErr
}

func (f *fakeOrchestrator) ReapplyManualAdd(ctx context.Context, in orchestrator.ReapplyManualAddInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reapplyManualAddIn = in
	return f.reapplyManualAddErr
}

func (f *fakeOrchestrator) ExportStore(ctx context.Context, store certificate.Store) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exportStoreIn = store
	return f.exportStoreExported, f.exportStoreSkipped, f.exportStoreErr
}

func (f *fakeOrchestrator) ListDirectory(store certificate.Store, subpath string) ([]orchestrator.DirEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listDirectoryIn.store = store
	f.listDirectoryIn.subpath = subpath
	return f.listDirectoryOut, f.listDirectoryErr
}

func (f *fakeOrchestrator) ReadFile(store certificate.Store, path string) (orchestrator.PoolFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readFileIn.store = store
	f.readFileIn.path = path
	return f.readFileOut, f.readFileErr
}

// testHandler bundles a Handler with its fakes for convenient assertions.
type testHandler struct {
	orch  *fakeOrchestrator
	repo  *fakeRepo
	cache *fakeCache
	bus   *fakeBus
	h     *Handler
}

func newTestHandler() *testHandler {
	th := &testHandler{
		orch:  newFakeOrchestrator(),
		repo:  newFakeRepo(),
		cache: newFakeCache(),
		bus:   newFakeBus(),
	}
	th.h = New(th.orch, th.repo, th.cache, th.bus, stubLogger{}, stubMetrics{})
	return th
}
