// Package loam reads seed scene documents from a Loam repository.
// The source is read-only; documents are copied into the authority's store
// the first time they are loaded.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/aretw0/scenesync/pkg/ports"
)

// Source implements ports.SnapshotSource over a Loam repository.
type Source struct {
	Repo *loam.TypedRepository[SceneMetadata]
}

var _ ports.SnapshotSource = (*Source)(nil)

// New wraps a typed repository.
func New(repo *loam.TypedRepository[SceneMetadata]) *Source {
	return &Source{Repo: repo}
}

// Open initializes a read-only repository at path.
func Open(path string) (*Source, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve seed path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("open seed repository %s: %w", absPath, err)
	}
	return New(loam.NewTypedRepository[SceneMetadata](repo)), nil
}

// Load finds the seed whose id (frontmatter id, or file name without extension)
// is documentID.
func (s *Source) Load(ctx context.Context, documentID string) (*domain.DocumentSnapshot, error) {
	doc, err := s.Repo.Get(ctx, documentID)
	if err == nil {
		return toSnapshot(documentID, doc.Data)
	}

	docs, err := s.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}
	for _, doc := range docs {
		if documentIDOf(doc.ID, doc.Data) == documentID {
			return toSnapshot(documentID, doc.Data)
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, documentID)
}

// List returns the ids of every seed document. Two files declaring the same id
// are reported as an error.
func (s *Source) List(ctx context.Context) ([]string, error) {
	docs, err := s.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		id := documentIDOf(doc.ID, doc.Data)
		if existing, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: document %q is defined in both %q and %q", id, existing, doc.ID)
		}
		seen[id] = doc.ID
		ids = append(ids, id)
	}
	return ids, nil
}

func documentIDOf(path string, meta SceneMetadata) string {
	if meta.ID != "" {
		return meta.ID
	}
	return trimExtension(path)
}

func trimExtension(id string) string {
	return filepath.ToSlash(strings.TrimSuffix(id, filepath.Ext(id)))
}

func toSnapshot(documentID string, meta SceneMetadata) (*domain.DocumentSnapshot, error) {
	root, err := toNode(meta.Root)
	if err != nil {
		return nil, fmt.Errorf("seed %s: %w", documentID, err)
	}
	snapshot := &domain.DocumentSnapshot{ID: documentID, Version: meta.Version, Root: root}
	if err := snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("seed %s: %w", documentID, err)
	}
	return snapshot, nil
}

func toNode(meta NodeMetadata) (domain.NodeSnapshot, error) {
	node := domain.NodeSnapshot{ID: meta.ID}
	if len(meta.Fields) > 0 {
		node.Fields = make(map[string]domain.FieldSnapshot, len(meta.Fields))
		for key, f := range meta.Fields {
			fs, err := toField(f)
			if err != nil {
				return domain.NodeSnapshot{}, fmt.Errorf("node %q field %q: %w", meta.ID, key, err)
			}
			node.Fields[key] = fs
		}
	}
	for _, c := range meta.Children {
		child, err := toNode(c)
		if err != nil {
			return domain.NodeSnapshot{}, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// toField normalizes a frontmatter value into its canonical wire form.
func toField(meta FieldMetadata) (domain.FieldSnapshot, error) {
	t, err := domain.ParseFieldType(meta.Type)
	if err != nil {
		return domain.FieldSnapshot{}, err
	}
	value, err := domain.ParseAny(t, meta.Value)
	if err != nil {
		return domain.FieldSnapshot{}, err
	}
	return domain.NewFieldSnapshot(domain.Field{Type: t, Value: value})
}
