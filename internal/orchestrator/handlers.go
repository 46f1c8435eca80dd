package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfxvault/tlscertd/internal/certificate"
	"github.com/nfxvault/tlscertd/internal/events"
	"github.com/nfxvault/tlscertd/internal/observability"
)

// Handlers returns the worker role's event dispatch table: every event
// type in the catalogue mapped to the orchestrator method that
// realizes it. internal/events.Bus.Subscribe takes this map verbatim.
func (o *Orchestrator) Handlers() map[events.EventType]events.Handler {
	return map[events.EventType]events.Handler{
		events.EventOperationRefresh:   o.handleOperationRefresh,
		events.EventCacheInvalidate:    o.handleCacheInvalidate,
		events.EventCertificateParse:   o.handleCertificateParse,
		events.EventFolderDelete:       o.handleFolderDelete,
		events.EventFileOrFolderDelete: o.handleFileOrFolderDelete,
		events.EventCertificateExport:  o.handleCertificateExport,
	}
}

func (o *Orchestrator) handleOperationRefresh(ctx context.Context, payload []byte) error {
	var p events.RefreshPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode operation.refresh payload: %w", err)
	}
	return o.Refresh(ctx, certificate.Store(p.Store), events.TriggerEvent)
}

// handleCacheInvalidate drops the cache keys for every listed store when a
// cache.invalidate event is consumed. Writers also drop their own
// process's keys directly before emitting the event.
func (o *Orchestrator) handleCacheInvalidate(ctx context.Context, payload []byte) error {
	var p events.CacheInvalidatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode cache.invalidate payload: %w", err)
	}
	var firstErr error
	for _, s := range p.Stores {
		if err := o.cache.InvalidateStore(ctx, certificate.Store(s)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// handleCertificateParse re-parses a row's PEM and updates its parsed
// fields + status, idempotently -- re-running this handler for the same id
// just re-derives the same result.
func (o *Orchestrator) handleCertificateParse(ctx context.Context, payload []byte) error {
	var p events.CertificateParsePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode certificate.parse payload: %w", err)
	}

	row, err := o.repo.GetByID(ctx, p.CertificateID)
	if err != nil {
		return err
	}
	if row == nil {
		o.logger.Warn(ctx, "certificate.parse for missing certificate", observability.CertificateID(p.CertificateID))
		return nil
	}
	if row.Certificate == nil || *row.Certificate == "" {
		o.logger.Warn(ctx, "certificate.parse for row without a certificate", observability.CertificateID(p.CertificateID))
		return nil
	}

	result, _, err := certificate.ParseCertificatePEM(*row.Certificate)
	if err != nil {
		result = certificate.ParseResult{Status: certificate.StatusFail, ErrorMessage: err.Error()}
	} else {
		result.Status = certificate.StatusSuccess
	}

	if _, err := o.repo.UpdateParseResult(ctx, p.CertificateID, result); err != nil {
		return err
	}
	return nil
}

// handleFolderDelete removes a pool folder. Missing folders are not an
// error -- the delete already achieved its end state.
func (o *Orchestrator) handleFolderDelete(ctx context.Context, payload []byte) error {
	var p events.FolderDeletePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode folder.delete payload: %w", err)
	}

	dir := filepath.Join(o.poolDir(certificate.Store(p.Store)), p.FolderName)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove pool folder %s: %w", dir, err)
	}
	return nil
}

// handleFileOrFolderDelete removes an arbitrary path under a store's pool
// root, guarding against traversal outside that root.
func (o *Orchestrator) handleFileOrFolderDelete(ctx context.Context, payload []byte) error {
	var p events.FileOrFolderDeletePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode file_or_folder.delete payload: %w", err)
	}

	root := o.poolDir(certificate.Store(p.Store))
	target := filepath.Join(root, p.Path)

	relPath, err := filepath.Rel(root, target)
	if err != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("file_or_folder.delete path %q escapes store root", p.Path)
	}

	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("remove %s: %w", target, err)
	}
	return nil
}

func (o *Orchestrator) handleCertificateExport(ctx context.Context, payload []byte) error {
	var p events.CertificateExportPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode certificate.export payload: %w", err)
	}
	return o.Export(ctx, p.CertificateID)
}
