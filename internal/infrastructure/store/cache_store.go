// Package store implements the Cache Store: the on-disk plugin directory
// layout, atomic writes, and validation stamps. Grounded in the teacher's
// internal/infrastructure/capabilities/file_store.go Load/Save idiom,
// generalized from one YAML grant file to the per-component layout
// SPEC_FULL.md §4.1/§6 describes. This store manages four of those files
// (module, precompiled marker, metadata sidecar, policy sidecar); the
// secrets sidecar is owned by the secrets store.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/loomhost/loom/internal/domain/component"
)

// FileStore is the filesystem-backed Cache Store implementation.
type FileStore struct {
	pluginDir  string
	contentHash bool
}

// New constructs a FileStore rooted at pluginDir, creating it if absent.
// contentHash enables the opt-in SHA-256 validation stamp (LOOM_CONTENT_HASH=1).
func New(pluginDir string, contentHash bool) (*FileStore, error) {
	if err := os.MkdirAll(pluginDir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create plugin dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(pluginDir, "downloads"), 0o755); err != nil {
		return nil, fmt.Errorf("store: create downloads dir: %w", err)
	}
	return &FileStore{pluginDir: pluginDir, contentHash: contentHash}, nil
}

func (s *FileStore) PluginDir() string { return s.pluginDir }

func (s *FileStore) modulePath(id component.ID) string     { return filepath.Join(s.pluginDir, string(id)+".wasm") }
func (s *FileStore) markerPath(id component.ID) string     { return filepath.Join(s.pluginDir, string(id)+".cwasm") }
func (s *FileStore) metadataPath(id component.ID) string   { return filepath.Join(s.pluginDir, string(id)+".metadata.json") }
func (s *FileStore) policyPath(id component.ID) string      { return filepath.Join(s.pluginDir, string(id)+".policy.yaml") }

func (s *FileStore) ReadModule(id component.ID) ([]byte, error) {
	return os.ReadFile(s.modulePath(id))
}

// WriteModule writes atomically via write-to-temp + rename.
func (s *FileStore) WriteModule(id component.ID, data []byte) error {
	return s.atomicWrite(s.modulePath(id), data)
}

func (s *FileStore) HasPrecompiledMarker(id component.ID) bool {
	_, err := os.Stat(s.markerPath(id))
	return err == nil
}

// WritePrecompiledMarker records that id has been warmed into the engine's
// own content-addressed compilation cache (see DESIGN.md's translation
// note: wazero has no serialize-to-opaque-bytes API, so this file is a
// marker, not the literal artifact).
func (s *FileStore) WritePrecompiledMarker(id component.ID) error {
	return s.atomicWrite(s.markerPath(id), []byte("warm"))
}

func (s *FileStore) ReadMetadata(id component.ID) (*component.Metadata, error) {
	data, err := os.ReadFile(s.metadataPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var meta component.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("store: parse metadata for %s: %w", id, err)
	}
	return &meta, nil
}

func (s *FileStore) WriteMetadata(id component.ID, meta *component.Metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("store: marshal metadata for %s: %w", id, err)
	}
	return s.atomicWrite(s.metadataPath(id), data)
}

func (s *FileStore) ReadPolicy(id component.ID) ([]byte, bool, error) {
	data, err := os.ReadFile(s.policyPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// RemoveAll deletes every id-related file. Non-existence is not an error;
// any other I/O failure aborts before further deletions.
func (s *FileStore) RemoveAll(id component.ID) error {
	paths := []string{s.modulePath(id), s.policyPath(id), s.metadataPath(id), s.markerPath(id)}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("store: remove %s: %w", p, err)
		}
	}
	return nil
}

func (s *FileStore) ValidationStampOf(id component.ID) (component.ValidationStamp, error) {
	info, err := os.Stat(s.modulePath(id))
	if err != nil {
		return component.ValidationStamp{}, err
	}
	stamp := component.ValidationStamp{
		FileSize:     info.Size(),
		MtimeSeconds: info.ModTime().Unix(),
	}
	if s.contentHash {
		hash, err := hashFile(s.modulePath(id))
		if err != nil {
			return component.ValidationStamp{}, err
		}
		stamp.ContentHash = hash
	}
	return stamp, nil
}

func (s *FileStore) ListModuleIDs() ([]component.ID, error) {
	entries, err := os.ReadDir(s.pluginDir)
	if err != nil {
		return nil, err
	}
	var ids []component.ID
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".wasm") {
			ids = append(ids, component.ID(strings.TrimSuffix(e.Name(), ".wasm")))
		}
	}
	return ids, nil
}

func (s *FileStore) atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("store: rename into place: %w", err)
	}
	return nil
}
