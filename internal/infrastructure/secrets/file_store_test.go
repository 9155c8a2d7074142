package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhost/loom/internal/domain/component"
)

func TestFileStore_LoadAndSave(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewFileStore(dir)

	secrets, err := store.Load("widget")
	require.NoError(t, err)
	assert.Empty(t, secrets)

	require.NoError(t, store.Set("widget", map[string]string{"api_key": "abc123", "region": "us-east-1"}))

	loaded, err := store.Load("widget")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"api_key": "abc123", "region": "us-east-1"}, loaded)

	info, err := os.Stat(filepath.Join(dir, "widget.secrets.yaml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_List(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewFileStore(dir)

	require.NoError(t, store.Set("widget", map[string]string{"b": "2", "a": "1"}))

	keys, err := store.List("widget")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestFileStore_Delete(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewFileStore(dir)

	require.NoError(t, store.Set("widget", map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, store.Delete("widget", []string{"a", "missing"}))

	loaded, err := store.Load("widget")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b": "2"}, loaded)
}

func TestFileStore_Load_InvalidYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := NewFileStore(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "widget.secrets.yaml"), []byte("secrets: ---\n-"), 0o600))

	_, err := store.Load("widget")
	require.Error(t, err)
}

func TestFileStore_Set_DirectoryCreation(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested")
	store := NewFileStore(dir)

	require.NoError(t, store.Set(component.ID("widget"), map[string]string{"a": "1"}))

	_, err := os.Stat(dir)
	assert.False(t, os.IsNotExist(err))
}
