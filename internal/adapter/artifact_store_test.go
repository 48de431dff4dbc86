package adapter

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "veil.dev/pkg/veil/internal/model"
)

func TestArtifactStoreTrees(t *testing.T) {
	store := NewLocalArtifactStore()
	dir := t.TempDir()

	path := filepath.Join(dir, "out", "program.ast.json")
	payload := []byte(`{"kind": "module"}`)

	require.NoError(t, store.WriteTree(path, payload))

	data, err := store.ReadTree(path)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	_, err = store.ReadTree(filepath.Join(dir, "absent.ast.json"))
	assert.ErrorContains(t, err, "read tree")
}

func TestArtifactStoreSource(t *testing.T) {
	store := NewLocalArtifactStore()
	path := filepath.Join(t.TempDir(), "nested", "program.py")

	require.NoError(t, store.WriteSource(path, "print(1)\n"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "print(1)\n", string(data))
}

func TestArtifactStoreMeta(t *testing.T) {
	store := NewLocalArtifactStore()
	path := filepath.Join(t.TempDir(), "program.obfumeta.json")

	meta := &m.ObfuMeta{
		Version:    m.MetaVersionV2,
		CreatedUTC: "2026-08-29T00:00:00Z",
		RenameMap:  m.RenameMap{"greet": "_o0"},
		Stats:      map[string]int{"renamed": 1},
	}

	require.NoError(t, store.SaveMeta(path, meta))

	loaded, err := store.LoadMeta(path)
	require.NoError(t, err)
	assert.Equal(t, meta, loaded)

	t.Run("missing file", func(t *testing.T) {
		_, err := store.LoadMeta(filepath.Join(t.TempDir(), "absent.json"))
		assert.ErrorContains(t, err, "read meta")
	})

	t.Run("corrupt file", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))

		_, err := store.LoadMeta(bad)
		assert.ErrorContains(t, err, "decode meta")
	})
}

func TestArtifactStoreRenameMap(t *testing.T) {
	store := NewLocalArtifactStore()
	path := filepath.Join(t.TempDir(), "program.map.json")

	require.NoError(t, store.SaveRenameMap(path, m.RenameMap{"a": "_o0", "b.c": "_o1"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"_o0"`)
	assert.Contains(t, string(data), `"b.c"`)
}

func TestArtifactStoreHashFile(t *testing.T) {
	store := NewLocalArtifactStore()
	dir := t.TempDir()

	t.Run("missing file hashes to empty", func(t *testing.T) {
		hash, err := store.HashFile(filepath.Join(dir, "absent"))
		require.NoError(t, err)
		assert.Empty(t, hash)
	})

	t.Run("existing file", func(t *testing.T) {
		path := filepath.Join(dir, "present")
		require.NoError(t, os.WriteFile(path, []byte("content"), 0o600))

		hash, err := store.HashFile(path)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("%x", sha256.Sum256([]byte("content"))), hash)
	})
}
