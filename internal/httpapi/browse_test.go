package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nfxvault/tlscertd/internal/certificate"
	certerrors "github.com/nfxvault/tlscertd/internal/errors"
	"github.com/nfxvault/tlscertd/internal/orchestrator"
)

func TestListDirectory_ReturnsEntriesFromOrchestrator(t *testing.T) {
	th := newTestHandler()
	size := int64(512)
	th.orch.listDirectoryOut = []orchestrator.DirEntry{
		{Name: "example.com", Type: "folder", Path: "example.com", ModifiedAt: time.Now()},
		{Name: "cert.crt", Type: "file", Path: "example.com/cert.crt", Size: &size, ModifiedAt: time.Now()},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stores/websites/files?path=example.com", nil)
	rec := httptest.NewRecorder()
	th.h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)
	require.Equal(t, certificate.StoreWebsites, th.orch.listDirectoryIn.store)
	require.Equal(t, "example.com", th.orch.listDirectoryIn.subpath)
}

func TestListDirectory_InvalidStore_ReturnsValidationError(t *testing.T) {
	th := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stores/NotAStore/files", nil)
	rec := httptest.NewRecorder()
	th.h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDirectory_OrchestratorError_IsTranslated(t *testing.T) {
	th := newTestHandler()
	th.orch.listDirectoryErr = certerrors.NewNotFoundError("folder", "missing")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stores/websites/files?path=missing", nil)
	rec := httptest.NewRecorder()
	th.h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadFile_SetsAttachmentHeadersAndWritesBody(t *testing.T) {
	th := newTestHandler()
	th.orch.readFileOut = orchestrator.PoolFile{Name: "cert.crt", Content: []byte("pem-bytes")}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stores/websites/files/download?path=example.com/cert.crt", nil)
	rec := httptest.NewRecorder()
	th.h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	require.Equal(t, `attachment; filename="cert.crt"`, rec.Header().Get("Content-Disposition"))
	require.Equal(t, "pem-bytes", rec.Body.String())
	require.Equal(t, "example.com/cert.crt", th.orch.readFileIn.path)
}

func TestDownloadFile_MissingPath_ReturnsValidationError(t *testing.T) {
	th := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stores/websites/files/download", nil)
	rec := httptest.NewRecorder()
	th.h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadFile_OrchestratorNotFound_IsTranslated(t *testing.T) {
	th := newTestHandler()
	th.orch.readFileErr = certerrors.NewNotFoundError("file", "missing")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stores/websites/files/download?path=missing", nil)
	rec := httptest.NewRecorder()
	th.h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFileContent_ReturnsFilenameAndContentAsJSON(t *testing.T) {
	th := newTestHandler()
	th.orch.readFileOut = orchestrator.PoolFile{Name: "cert.crt", Content: []byte("pem-bytes")}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stores/websites/files/content?path=example.com/cert.crt", nil)
	rec := httptest.NewRecorder()
	th.h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)
}

func TestExportStoreHandler_ReturnsCounts(t *testing.T) {
	th := newTestHandler()
	th.orch.exportStoreExported = 3
	th.orch.exportStoreSkipped = 1

	req := httptest.NewRequest(http.MethodPost, "/api/v1/stores/websites/export", nil)
	rec := httptest.NewRecorder()
	th.h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, certificate.StoreWebsites, th.orch.exportStoreIn)
}

func TestExportStoreHandler_InvalidStore_ReturnsValidationError(t *testing.T) {
	th := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stores/NotAStore/export", nil)
	rec := httptest.NewRecorder()
	th.h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportStoreHandler_OrchestratorError_IsTranslated(t *testing.T) {
	th := newTestHandler()
	th.orch.exportStoreErr = certerrors.NewValidationError("store", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/stores/database/export", nil)
	rec := httptest.NewRecorder()
	th.h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
