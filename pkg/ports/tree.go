package ports

import "github.com/aretw0/scenesync/pkg/domain"

// Node is an opaque handle to a tree element.
type Node interface {
	ID() string
	// Parent returns nil for the root.
	Parent() Node
	Children() []Node
}

// Tree is the scene tree collaborator the engine mutates.
// Implementations are not required to be safe for concurrent use; callers serialize access.
type Tree interface {
	Root() Node

	// FindByID searches the tree for a node.
	FindByID(id string) (Node, bool)

	// AddChild constructs a node from spec and attaches it as the last child of parent.
	AddChild(parent Node, spec domain.NodeSpec) (Node, error)

	// RemoveAndDestroy detaches node and destroys its subtree. The root cannot be removed.
	RemoveAndDestroy(node Node) error

	// GetField reads a field. The boolean is false when the field was never set.
	GetField(node Node, key string) (domain.Field, bool)

	// SetField writes a field, declaring its type on first write.
	SetField(node Node, key string, field domain.Field) error

	// UnsetField removes a field.
	UnsetField(node Node, key string) error
}

// TreeFactory builds a tree from a document snapshot.
type TreeFactory func(snapshot *domain.DocumentSnapshot) (Tree, error)
