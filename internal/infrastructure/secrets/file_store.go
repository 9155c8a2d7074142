// Package secrets implements the per-component secrets sidecar
// (`<id>.secrets.yaml`) ports.SecretsStore consumes. Grounded on the
// teacher's internal/infrastructure/capabilities/file_store.go Load/Save
// shape, generalized from one global grant file to one file per component
// id (SPEC_FULL.md §11.6).
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/loomhost/loom/internal/domain/component"
)

// FileStore persists each component's secrets as its own
// `<id>.secrets.yaml` file under dir, permissions 0600.
type FileStore struct {
	dir string
}

// NewFileStore constructs a FileStore rooted at dir (normally the plugin
// directory the Cache Store also uses).
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(id component.ID) string {
	return filepath.Join(s.dir, string(id)+".secrets.yaml")
}

type secretsFile struct {
	Secrets map[string]string `yaml:"secrets"`
}

func (s *FileStore) load(id component.ID) (map[string]string, error) {
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read secrets for %s: %w", id, err)
	}
	var f secretsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse secrets for %s: %w", id, err)
	}
	if f.Secrets == nil {
		f.Secrets = map[string]string{}
	}
	return f.Secrets, nil
}

func (s *FileStore) save(id component.ID, secrets map[string]string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil { //nolint:gosec // G301: standard perms for the plugin directory
		return fmt.Errorf("create secrets dir: %w", err)
	}
	data, err := yaml.MarshalWithOptions(secretsFile{Secrets: secrets}, yaml.IndentSequence(true))
	if err != nil {
		return fmt.Errorf("marshal secrets for %s: %w", id, err)
	}
	return os.WriteFile(s.path(id), data, 0o600)
}

// List returns the configured secret keys for id, sorted, never their values.
func (s *FileStore) List(id component.ID) ([]string, error) {
	secrets, err := s.load(id)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(secrets))
	for k := range secrets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Load returns the full key/value map for id, empty (not an error) if no
// sidecar file exists yet.
func (s *FileStore) Load(id component.ID) (map[string]string, error) {
	return s.load(id)
}

// Set merges values into id's stored secrets and persists the result.
func (s *FileStore) Set(id component.ID, values map[string]string) error {
	secrets, err := s.load(id)
	if err != nil {
		return err
	}
	for k, v := range values {
		secrets[k] = v
	}
	return s.save(id, secrets)
}

// Delete removes keys from id's stored secrets; missing keys are a no-op.
func (s *FileStore) Delete(id component.ID, keys []string) error {
	secrets, err := s.load(id)
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(secrets, k)
	}
	return s.save(id, secrets)
}
