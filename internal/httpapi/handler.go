package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nfxvault/tlscertd/internal/certcache"
	"github.com/nfxvault/tlscertd/internal/certificate"
	certerrors "github.com/nfxvault/tlscertd/internal/errors"
	"github.com/nfxvault/tlscertd/internal/observability"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Handler wires the certificate lifecycle HTTP contract onto a
// chi.Router rather than a bare net/http mux because certificate ids and domains appear as path segments and chi
// gives named params without hand-rolled parsing.
type Handler struct {
	orch    Orchestrator
	repo    Repository
	cache   Cache
	bus     Bus
	logger  observability.Logger
	metrics observability.MetricsCollector
}

// New constructs a Handler.
func New(orch Orchestrator, repo Repository, cache Cache, bus Bus, logger observability.Logger, metrics observability.MetricsCollector) *Handler {
	return &Handler{orch: orch, repo: repo, cache: cache, bus: bus, logger: logger, metrics: metrics}
}

// Routes builds the full router as a plain http.Handler for the API
// role's server.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.handleHealthz)

	r.Route("/api/v1/certificates", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/search", h.handleSearch)
		r.Post("/apply", h.handleApply)
		r.Get("/{id}", h.handleGetByID)
		r.Delete("/{id}", h.handleDelete)
		r.Patch("/{id}/manual-add", h.handleUpdateManualAdd)
		r.Patch("/{id}/manual-apply", h.handleUpdateManualApply)
		r.Post("/{id}/reapply/auto", h.handleReapplyAuto)
		r.Post("/{id}/reapply/manual-apply", h.handleReapplyManualApply)
		r.Post("/{id}/reapply/manual-add", h.handleReapplyManualAdd)
	})

	r.Route("/api/v1/stores/{store}", func(r chi.Router) {
		r.Post("/refresh", h.handleRefresh)
		r.Post("/export", h.handleExportStore)
		r.Get("/files", h.handleListDirectory)
		r.Get("/files/download", h.handleDownloadFile)
		r.Get("/files/content", h.handleFileContent)
	})
	r.Post("/api/v1/cache/invalidate", h.handleInvalidateCache)
	r.Post("/api/v1/analyze", h.handleAnalyze)

	return r
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pageParams(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return offset, limit
}

// handleList implements List(store, offset, limit) -> {items, total}
// , read-through the cache.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := certificate.Store(r.URL.Query().Get("store"))
	if !store.Valid() {
		h.writeError(w, r, certerrors.NewValidationError("store", nil))
		return
	}
	offset, limit := pageParams(r)

	if entry, err := h.cache.GetList(ctx, store, offset, limit); err == nil && entry != nil {
		writeData(w, http.StatusOK, pageResponse{Items: entry.Items, Total: entry.Total})
		return
	}

	page, err := h.repo.List(ctx, certificate.ListParams{Store: store, Offset: offset, Limit: limit})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = h.cache.SetList(ctx, store, offset, limit, certcache.ListEntry{Items: page.Items, Total: page.Total})
	writeData(w, http.StatusOK, pageResponse{Items: page.Items, Total: page.Total})
}

// handleGetByID implements GetByID(id) -> detail | 404.
func (h *Handler) handleGetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	row, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if row == nil {
		h.writeError(w, r, certerrors.NewNotFoundError("certificate", id))
		return
	}
	writeData(w, http.StatusOK, row)
}

// handleSearch implements Search(keyword, store?, source?, offset, limit)
// . Search always goes straight to the repository: it is a
// free-text query, not a cacheable fixed projection.
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	keyword := q.Get("keyword")
	if keyword == "" {
		h.writeError(w, r, certerrors.NewValidationError("keyword", nil))
		return
	}
	offset, limit := pageParams(r)

	params := certificate.SearchParams{Keyword: keyword, Offset: offset, Limit: limit}
	if s := q.Get("store"); s != "" {
		store := certificate.Store(s)
		params.Store = &store
	}
	if s := q.Get("source"); s != "" {
		source := certificate.Source(s)
		params.Source = &source
	}

	page, err := h.repo.Search(r.Context(), params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, pageResponse{Items: page.Items, Total: page.Total})
}
