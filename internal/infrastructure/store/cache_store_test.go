package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhost/loom/internal/domain/component"
)

func TestFileStore_WriteReadModuleRoundTrip(t *testing.T) {
	s, err := New(t.TempDir(), false)
	require.NoError(t, err)

	require.NoError(t, s.WriteModule("fetch", []byte("wasm-bytes")))
	data, err := s.ReadModule("fetch")
	require.NoError(t, err)
	assert.Equal(t, []byte("wasm-bytes"), data)
}

func TestFileStore_MetadataRoundTrip(t *testing.T) {
	s, err := New(t.TempDir(), false)
	require.NoError(t, err)

	meta := &component.Metadata{ComponentID: "fetch", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.WriteMetadata("fetch", meta))

	got, err := s.ReadMetadata("fetch")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, component.ID("fetch"), got.ComponentID)
}

func TestFileStore_ReadMetadataMissingReturnsNilNoError(t *testing.T) {
	s, err := New(t.TempDir(), false)
	require.NoError(t, err)

	got, err := s.ReadMetadata("nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStore_RemoveAllIsNotAnErrorWhenAbsent(t *testing.T) {
	s, err := New(t.TempDir(), false)
	require.NoError(t, err)

	assert.NoError(t, s.RemoveAll("never-loaded"))
}

func TestFileStore_RemoveAllDeletesEveryFile(t *testing.T) {
	s, err := New(t.TempDir(), false)
	require.NoError(t, err)

	require.NoError(t, s.WriteModule("fetch", []byte("x")))
	require.NoError(t, s.WriteMetadata("fetch", &component.Metadata{ComponentID: "fetch"}))
	require.NoError(t, s.WritePrecompiledMarker("fetch"))

	require.NoError(t, s.RemoveAll("fetch"))

	_, err = s.ReadModule("fetch")
	assert.Error(t, err)
	assert.False(t, s.HasPrecompiledMarker("fetch"))
	meta, err := s.ReadMetadata("fetch")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestFileStore_ValidationStampStableAcrossReads(t *testing.T) {
	s, err := New(t.TempDir(), false)
	require.NoError(t, err)

	require.NoError(t, s.WriteModule("fetch", []byte("contents")))
	first, err := s.ValidationStampOf("fetch")
	require.NoError(t, err)
	second, err := s.ValidationStampOf("fetch")
	require.NoError(t, err)
	assert.True(t, first.Matches(second))
}

func TestFileStore_ListModuleIDs(t *testing.T) {
	s, err := New(t.TempDir(), false)
	require.NoError(t, err)

	require.NoError(t, s.WriteModule("a", []byte("1")))
	require.NoError(t, s.WriteModule("b", []byte("2")))

	ids, err := s.ListModuleIDs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []component.ID{"a", "b"}, ids)
}
