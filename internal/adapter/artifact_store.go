package adapter

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	m "veil.dev/pkg/veil/internal/model"
)

// ArtifactStore abstracts the on-disk artifacts surrounding a run: the tree
// files, the metadata sidecar and the rendered source text. It hides direct
// `os` access so the workflow logic can be tested without touching the disk.
type ArtifactStore interface {
	// ReadTree loads a serialized tree file and returns its raw bytes.
	ReadTree(path string) ([]byte, error)

	// WriteTree writes a serialized tree to path, creating parent directories.
	WriteTree(path string, data []byte) error

	// WriteSource writes rendered source text to path.
	WriteSource(path string, text string) error

	// SaveMeta serializes a metadata record to path as indented JSON.
	SaveMeta(path string, meta *m.ObfuMeta) error

	// LoadMeta reads a metadata record back from path.
	LoadMeta(path string) (*m.ObfuMeta, error)

	// SaveRenameMap writes a rename map sidecar as indented JSON.
	SaveRenameMap(path string, renames m.RenameMap) error

	// HashFile returns the SHA-256 fingerprint of the file at path, or an
	// empty string when the file does not exist.
	HashFile(path string) (string, error)
}

// LocalArtifactStore is the filesystem-backed ArtifactStore.
type LocalArtifactStore struct{}

// NewLocalArtifactStore constructs a LocalArtifactStore ready to be wired
// into the workflow.
func NewLocalArtifactStore() *LocalArtifactStore {
	return &LocalArtifactStore{}
}

// ReadTree loads the raw bytes of a serialized tree file.
func (s *LocalArtifactStore) ReadTree(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tree %s: %w", path, err)
	}

	return data, nil
}

// WriteTree writes serialized tree bytes, creating parent directories.
func (s *LocalArtifactStore) WriteTree(path string, data []byte) error {
	if err := ensureParent(path); err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write tree %s: %w", path, err)
	}

	return nil
}

// WriteSource writes rendered source text.
func (s *LocalArtifactStore) WriteSource(path string, text string) error {
	if err := ensureParent(path); err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		return fmt.Errorf("write source %s: %w", path, err)
	}

	return nil
}

// SaveMeta serializes meta to path as indented JSON.
func (s *LocalArtifactStore) SaveMeta(path string, meta *m.ObfuMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}

	if err := ensureParent(path); err != nil {
		return err
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write meta %s: %w", path, err)
	}

	return nil
}

// LoadMeta reads a metadata record back from path.
func (s *LocalArtifactStore) LoadMeta(path string) (*m.ObfuMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read meta %s: %w", path, err)
	}

	var meta m.ObfuMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode meta %s: %w", path, err)
	}

	return &meta, nil
}

// SaveRenameMap writes the rename map sidecar as indented JSON.
func (s *LocalArtifactStore) SaveRenameMap(path string, renames m.RenameMap) error {
	data, err := json.MarshalIndent(renames, "", "  ")
	if err != nil {
		return fmt.Errorf("encode rename map: %w", err)
	}

	if err := ensureParent(path); err != nil {
		return err
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write rename map %s: %w", path, err)
	}

	return nil
}

// HashFile fingerprints the file at path. A missing file yields "" with no
// error so callers can treat absent outputs as writable.
func (s *LocalArtifactStore) HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}

		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	return fmt.Sprintf("%x", sha256.Sum256(data)), nil
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	return nil
}
