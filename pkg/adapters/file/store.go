// Package file persists document snapshots as YAML files in a directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/aretw0/scenesync/pkg/ports"
	"gopkg.in/yaml.v3"
)

const ext = ".yaml"

// Store implements ports.SnapshotStore using the local filesystem.
type Store struct {
	BasePath string
}

var _ ports.SnapshotStore = (*Store)(nil)

// New creates a Store rooted at basePath.
// If basePath is empty, it defaults to ".scenesync/documents".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".scenesync", "documents")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(documentID string) (string, error) {
	if documentID == "" || documentID == "." || documentID == ".." ||
		strings.ContainsAny(documentID, `/\`) {
		return "", fmt.Errorf("%w: document id %q is not a valid file name", domain.ErrInvalidAction, documentID)
	}
	return filepath.Join(s.BasePath, documentID+ext), nil
}

// Save writes the snapshot atomically: temp file, fsync, rename.
func (s *Store) Save(ctx context.Context, snapshot *domain.DocumentSnapshot) error {
	destPath, err := s.path(snapshot.ID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure document directory: %w", err)
	}

	data, err := yaml.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// Same directory so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, snapshot.ID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Windows refuses to rename over an existing file.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing document file: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Load reads a snapshot.
func (s *Store) Load(ctx context.Context, documentID string) (*domain.DocumentSnapshot, error) {
	filePath, err := s.path(documentID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, documentID)
		}
		return nil, fmt.Errorf("failed to read document file: %w", err)
	}

	var snapshot domain.DocumentSnapshot
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document %s: %w", documentID, err)
	}
	return &snapshot, nil
}

// Delete removes the document file. Missing files are not an error.
func (s *Store) Delete(ctx context.Context, documentID string) error {
	filePath, err := s.path(documentID)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete document file: %w", err)
	}
	return nil
}

// List returns the stored document ids in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	ids := []string{}
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ext {
			ids = append(ids, strings.TrimSuffix(entry.Name(), ext))
		}
	}
	sort.Strings(ids)
	return ids, nil
}
