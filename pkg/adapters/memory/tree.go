// Package memory provides in-memory implementations of the scene tree and the snapshot store.
package memory

import (
	"errors"
	"fmt"

	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/aretw0/scenesync/pkg/ports"
)

var errForeignNode = errors.New("node does not belong to this tree")

type node struct {
	id        string
	parent    *node
	children  []*node
	fields    map[string]domain.Field
	destroyed bool
}

func (n *node) ID() string { return n.id }

func (n *node) Parent() ports.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *node) Children() []ports.Node {
	out := make([]ports.Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

// Tree is an in-memory scene tree with an id index.
// Not safe for concurrent use.
type Tree struct {
	root  *node
	index map[string]*node
}

var _ ports.Tree = (*Tree)(nil)

// NewTree creates a tree holding only a root node.
func NewTree(rootID string) *Tree {
	root := &node{id: rootID, fields: make(map[string]domain.Field)}
	return &Tree{
		root:  root,
		index: map[string]*node{rootID: root},
	}
}

// FromSnapshot builds a tree from a document snapshot. It satisfies ports.TreeFactory.
func FromSnapshot(snapshot *domain.DocumentSnapshot) (ports.Tree, error) {
	return Build(snapshot)
}

// Build is FromSnapshot returning the concrete type.
func Build(snapshot *domain.DocumentSnapshot) (*Tree, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("%w: nil snapshot", domain.ErrInvalidAction)
	}
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	t := NewTree(snapshot.Root.ID)
	if err := t.fill(t.root, snapshot.Root); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) fill(n *node, s domain.NodeSnapshot) error {
	for key, fs := range s.Fields {
		f, err := fs.Field()
		if err != nil {
			return fmt.Errorf("node %q field %q: %w", s.ID, key, err)
		}
		n.fields[key] = f
	}
	for _, cs := range s.Children {
		child := t.attach(n, cs.ID)
		if err := t.fill(child, cs); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) attach(parent *node, id string) *node {
	child := &node{id: id, parent: parent, fields: make(map[string]domain.Field)}
	parent.children = append(parent.children, child)
	t.index[id] = child
	return child
}

// Root returns the root node.
func (t *Tree) Root() ports.Node { return t.root }

// FindByID looks a node up in the index.
func (t *Tree) FindByID(id string) (ports.Node, bool) {
	n, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return n, true
}

// Len returns the number of live nodes, root included.
func (t *Tree) Len() int { return len(t.index) }

// AddChild constructs a node from spec and attaches it as the last child of parent.
func (t *Tree) AddChild(parent ports.Node, spec domain.NodeSpec) (ports.Node, error) {
	p, err := t.own(parent)
	if err != nil {
		return nil, err
	}
	if spec.ID == "" {
		return nil, fmt.Errorf("%w: node spec without id", domain.ErrInvalidAction)
	}
	if _, exists := t.index[spec.ID]; exists {
		return nil, fmt.Errorf("%w: node %q already exists", domain.ErrInvalidAction, spec.ID)
	}
	fields := make(map[string]domain.Field, len(spec.Fields))
	for key, f := range spec.Fields {
		v, err := domain.Coerce(f.Type, f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		fields[key] = domain.Field{Type: f.Type, Value: v}
	}
	child := t.attach(p, spec.ID)
	child.fields = fields
	return child, nil
}

// RemoveAndDestroy detaches node from its parent and destroys the subtree.
func (t *Tree) RemoveAndDestroy(target ports.Node) error {
	n, err := t.own(target)
	if err != nil {
		return err
	}
	if n == t.root {
		return fmt.Errorf("%w: the root cannot be removed", domain.ErrInvalidAction)
	}
	siblings := n.parent.children
	for i, c := range siblings {
		if c == n {
			n.parent.children = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
	t.destroy(n)
	return nil
}

func (t *Tree) destroy(n *node) {
	for _, c := range n.children {
		t.destroy(c)
	}
	delete(t.index, n.id)
	n.destroyed = true
	n.children = nil
	n.parent = nil
}

// GetField reads a field.
func (t *Tree) GetField(target ports.Node, key string) (domain.Field, bool) {
	n, err := t.own(target)
	if err != nil {
		return domain.Field{}, false
	}
	f, ok := n.fields[key]
	return f, ok
}

// SetField writes a field. Once a field exists its declared type is fixed.
func (t *Tree) SetField(target ports.Node, key string, field domain.Field) error {
	n, err := t.own(target)
	if err != nil {
		return err
	}
	if existing, ok := n.fields[key]; ok && existing.Type != field.Type {
		return fmt.Errorf("%w: %q is %s, not %s", domain.ErrTypeMismatch, key, existing.Type, field.Type)
	}
	v, err := domain.Coerce(field.Type, field.Value)
	if err != nil {
		return err
	}
	n.fields[key] = domain.Field{Type: field.Type, Value: v}
	return nil
}

// UnsetField removes a field.
func (t *Tree) UnsetField(target ports.Node, key string) error {
	n, err := t.own(target)
	if err != nil {
		return err
	}
	delete(n.fields, key)
	return nil
}

// Snapshot serializes the tree.
func (t *Tree) Snapshot(documentID string, version int64) (*domain.DocumentSnapshot, error) {
	root, err := snapshotNode(t.root)
	if err != nil {
		return nil, err
	}
	return &domain.DocumentSnapshot{ID: documentID, Version: version, Root: root}, nil
}

func snapshotNode(n *node) (domain.NodeSnapshot, error) {
	out := domain.NodeSnapshot{ID: n.id}
	if len(n.fields) > 0 {
		out.Fields = make(map[string]domain.FieldSnapshot, len(n.fields))
		for key, f := range n.fields {
			fs, err := domain.NewFieldSnapshot(f)
			if err != nil {
				return domain.NodeSnapshot{}, fmt.Errorf("node %q field %q: %w", n.id, key, err)
			}
			out.Fields[key] = fs
		}
	}
	for _, c := range n.children {
		cs, err := snapshotNode(c)
		if err != nil {
			return domain.NodeSnapshot{}, err
		}
		out.Children = append(out.Children, cs)
	}
	return out, nil
}

func (t *Tree) own(target ports.Node) (*node, error) {
	n, ok := target.(*node)
	if !ok || n == nil {
		return nil, errForeignNode
	}
	if n.destroyed || t.index[n.id] != n {
		return nil, fmt.Errorf("%w: node %q was destroyed", domain.ErrTargetNotFound, n.id)
	}
	return n, nil
}
