package orchestrator

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nfxvault/tlscertd/internal/certificate"
	certerrors "github.com/nfxvault/tlscertd/internal/errors"
)

// DirEntry describes one file or subdirectory returned by ListDirectory.
// Size is nil for directories.
type DirEntry struct {
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Path       string    `json:"path"`
	Size       *int64    `json:"size,omitempty"`
	ModifiedAt time.Time `json:"modified_at"`
}

// PoolFile is the result of reading a single file out of a store's pool
// folder: ReadFile returns its full contents plus the name to present to a
// client (download filename / content endpoint).
type PoolFile struct {
	Name    string
	Content []byte
}

// resolvePoolPath joins root and subpath, rejecting any result that
// escapes root -- the same traversal guard internal/orchestrator/handlers.go
// applies to file_or_folder.delete.
func resolvePoolPath(root, subpath string) (string, error) {
	target := filepath.Join(root, subpath)
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", certerrors.NewValidationError("path", nil)
	}
	return target, nil
}

// ListDirectory lists one folder under a pool-backed store's root:
// subpath "" lists the store root itself. Hidden entries (dotfiles) are
// omitted, matching the pool's own convention of never stashing
// certificate material behind a leading dot.
func (o *Orchestrator) ListDirectory(store certificate.Store, subpath string) ([]DirEntry, error) {
	if !store.PoolBacked() {
		return nil, certerrors.NewValidationError("store", nil)
	}

	root := o.poolDir(store)
	target, err := resolvePoolPath(root, subpath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(target)
	if os.IsNotExist(err) {
		return nil, certerrors.NewNotFoundError("directory", subpath)
	}
	if err != nil {
		return nil, certerrors.WrapError(certerrors.ErrCodeTransport, "stat pool directory", err)
	}
	if !info.IsDir() {
		return nil, certerrors.NewValidationError("path", nil)
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, certerrors.WrapError(certerrors.ErrCodeTransport, "read pool directory", err)
	}

	out := make([]DirEntry, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		entryInfo, err := entry.Info()
		if err != nil {
			continue
		}

		relPath, err := filepath.Rel(root, filepath.Join(target, entry.Name()))
		if err != nil {
			continue
		}

		de := DirEntry{
			Name:       entry.Name(),
			Path:       filepath.ToSlash(relPath),
			ModifiedAt: entryInfo.ModTime(),
		}
		if entry.IsDir() {
			de.Type = "directory"
		} else {
			de.Type = "file"
			size := entryInfo.Size()
			de.Size = &size
		}
		out = append(out, de)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ReadFile returns one file's contents out of a pool-backed store,
// backing both the download and the text-content endpoints; the caller
// decides how to present the bytes (attachment vs. inline text).
func (o *Orchestrator) ReadFile(store certificate.Store, path string) (PoolFile, error) {
	if !store.PoolBacked() {
		return PoolFile{}, certerrors.NewValidationError("store", nil)
	}
	if path == "" {
		return PoolFile{}, certerrors.NewValidationError("path", nil)
	}

	root := o.poolDir(store)
	target, err := resolvePoolPath(root, path)
	if err != nil {
		return PoolFile{}, err
	}

	info, err := os.Stat(target)
	if os.IsNotExist(err) {
		return PoolFile{}, certerrors.NewNotFoundError("file", path)
	}
	if err != nil {
		return PoolFile{}, certerrors.WrapError(certerrors.ErrCodeTransport, "stat pool file", err)
	}
	if info.IsDir() {
		return PoolFile{}, certerrors.NewValidationError("path", nil)
	}

	content, err := os.ReadFile(target)
	if err != nil {
		return PoolFile{}, certerrors.WrapError(certerrors.ErrCodeTransport, "read pool file", err)
	}
	return PoolFile{Name: filepath.Base(target), Content: content}, nil
}
