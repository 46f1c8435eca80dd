package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nfxvault/tlscertd/internal/certificate"
)

func TestExport_WritesPoolFilesAndMirrorsAutoRowForTheTargetStore(t *testing.T) {
	h := newTestHarness(t, 30)
	now := time.Now()
	certPEM, keyPEM := generateTestCertPEM("issued.example.com", []string{"issued.example.com"}, now.Add(-time.Hour), now.Add(90*24*time.Hour))
	folder := "issued_example_com"
	origin := h.repo.seed(certificate.Certificate{
		Store:       certificate.StoreWebsites,
		Domain:      "issued.example.com",
		FolderName:  &folder,
		Source:      certificate.SourceManualApply,
		Status:      certificate.StatusSuccess,
		Certificate: &certPEM,
		PrivateKey:  &keyPEM,
	})

	require.NoError(t, h.orch.Export(context.Background(), origin.ID))

	certBytes, err := os.ReadFile(filepath.Join(h.certsDir, "Websites", folder, "cert.crt"))
	require.NoError(t, err)
	require.Equal(t, certPEM, string(certBytes))
	keyBytes, err := os.ReadFile(filepath.Join(h.certsDir, "Websites", folder, "key.key"))
	require.NoError(t, err)
	require.Equal(t, keyPEM, string(keyBytes))

	unchanged, err := h.repo.GetByID(context.Background(), origin.ID)
	require.NoError(t, err)
	require.Equal(t, certificate.SourceManualApply, unchanged.Source, "Export must not mutate the origin row")

	page, err := h.repo.List(context.Background(), certificate.ListParams{Store: certificate.StoreWebsites})
	require.NoError(t, err)
	require.Len(t, page.Items, 1, "the mirror upserts by folder_name, it does not create a second row")
	mirror := page.Items[0]
	require.Equal(t, certificate.SourceAuto, mirror.Source)
	require.Equal(t, certificate.StatusSuccess, mirror.Status)

	require.Contains(t, h.cache.invalidatedStores(), certificate.StoreWebsites)
}

func TestExport_DatabaseStoreOriginMirrorsIntoWebsites(t *testing.T) {
	h := newTestHarness(t, 30)
	now := time.Now()
	certPEM, keyPEM := generateTestCertPEM("db-origin.example.com", nil, now.Add(-time.Hour), now.Add(90*24*time.Hour))
	folder := "db_origin"
	origin := h.repo.seed(certificate.Certificate{
		Store:       certificate.StoreDatabase,
		Domain:      "db-origin.example.com",
		FolderName:  &folder,
		Source:      certificate.SourceManualApply,
		Status:      certificate.StatusSuccess,
		Certificate: &certPEM,
		PrivateKey:  &keyPEM,
	})

	require.NoError(t, h.orch.Export(context.Background(), origin.ID))

	_, err := os.Stat(filepath.Join(h.certsDir, "Websites", folder, "cert.crt"))
	require.NoError(t, err)
}

func TestExport_RejectsRowMissingCertificateOrKeyOrFolderName(t *testing.T) {
	h := newTestHarness(t, 30)

	noCert := h.repo.seed(certificate.Certificate{Store: certificate.StoreWebsites, Domain: "a.example.com"})
	require.Error(t, h.orch.Export(context.Background(), noCert.ID))

	cert := "c"
	noFolder := h.repo.seed(certificate.Certificate{Store: certificate.StoreWebsites, Domain: "b.example.com", Certificate: &cert})
	require.Error(t, h.orch.Export(context.Background(), noFolder.ID))
}

func TestExport_MissingRow_ReturnsNotFound(t *testing.T) {
	h := newTestHarness(t, 30)
	require.Error(t, h.orch.Export(context.Background(), "missing"))
}

func TestExportStore_WritesEveryExportableRowAndSkipsIncompleteOnes(t *testing.T) {
	h := newTestHarness(t, 30)
	now := time.Now()

	certA, keyA := generateTestCertPEM("a.example.com", nil, now.Add(-time.Hour), now.Add(90*24*time.Hour))
	folderA := "a_example_com"
	h.repo.seed(certificate.Certificate{
		Store: certificate.StoreWebsites, Domain: "a.example.com", FolderName: &folderA,
		Source: certificate.SourceManualApply, Status: certificate.StatusSuccess,
		Certificate: &certA, PrivateKey: &keyA,
	})

	certB, keyB := generateTestCertPEM("b.example.com", nil, now.Add(-time.Hour), now.Add(90*24*time.Hour))
	folderB := "b_example_com"
	h.repo.seed(certificate.Certificate{
		Store: certificate.StoreWebsites, Domain: "b.example.com", FolderName: &folderB,
		Source: certificate.SourceManualApply, Status: certificate.StatusSuccess,
		Certificate: &certB, PrivateKey: &keyB,
	})

	// No certificate yet -- e.g. a manual_add row still pending upload.
	h.repo.seed(certificate.Certificate{Store: certificate.StoreWebsites, Domain: "pending.example.com"})

	exported, skipped, err := h.orch.ExportStore(context.Background(), certificate.StoreWebsites)
	require.NoError(t, err)
	require.Equal(t, 2, exported)
	require.Equal(t, 1, skipped)

	certBytes, err := os.ReadFile(filepath.Join(h.certsDir, "Websites", folderA, "cert.crt"))
	require.NoError(t, err)
	require.Equal(t, certA, string(certBytes))
	certBytes, err = os.ReadFile(filepath.Join(h.certsDir, "Websites", folderB, "cert.crt"))
	require.NoError(t, err)
	require.Equal(t, certB, string(certBytes))

	require.Contains(t, h.cache.invalidatedStores(), certificate.StoreWebsites)
}

func TestExportStore_RejectsNonPoolBackedStore(t *testing.T) {
	h := newTestHarness(t, 30)
	_, _, err := h.orch.ExportStore(context.Background(), certificate.StoreDatabase)
	require.Error(t, err)
}

func TestExportStore_EmptyStore_ExportsNothing(t *testing.T) {
	h := newTestHarness(t, 30)
	exported, skipped, err := h.orch.ExportStore(context.Background(), certificate.StoreAPIs)
	require.NoError(t, err)
	require.Equal(t, 0, exported)
	require.Equal(t, 0, skipped)
}
