package txn

import (
	"fmt"

	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/aretw0/scenesync/pkg/ports"
)

// UndoRecord captures enough of one update to reverse it.
// Stubs are created before any mutation so the replay order is fixed up front.
type UndoRecord struct {
	Node    ports.Node
	Key     string
	Type    domain.FieldType
	Prev    any
	HadPrev bool
	Next    any
	Applied bool
}

// ActionStrategy applies and reverts single actions. Strategy is the default.
type ActionStrategy interface {
	Apply(tree ports.Tree, action domain.Action, undo *UndoRecord) error
	Revert(tree ports.Tree, undo *UndoRecord) error
}

var _ ActionStrategy = Strategy{}

// Strategy applies single actions to a tree. It holds no state.
type Strategy struct{}

// Apply executes action against tree. For updates, a non-nil undo record
// receives the previous and next values. Failures leave the tree untouched.
func (s Strategy) Apply(tree ports.Tree, action domain.Action, undo *UndoRecord) error {
	switch a := action.(type) {
	case domain.CreateAction:
		return s.create(tree, a)
	case domain.DeleteAction:
		return s.delete(tree, a)
	case domain.UpdateAction:
		return s.update(tree, a, undo)
	}
	return fmt.Errorf("%w: unsupported action %T", domain.ErrInvalidAction, action)
}

func (s Strategy) create(tree ports.Tree, a domain.CreateAction) error {
	var parent ports.Node
	if root := tree.Root(); a.ParentID == root.ID() {
		parent = root
	} else if p, ok := tree.FindByID(a.ParentID); ok {
		parent = p
	} else {
		return fmt.Errorf("%w: %q", domain.ErrParentNotFound, a.ParentID)
	}
	if _, exists := tree.FindByID(a.Spec.ID); exists {
		return fmt.Errorf("%w: node %q already exists", domain.ErrInvalidAction, a.Spec.ID)
	}
	_, err := tree.AddChild(parent, a.Spec)
	return err
}

func (s Strategy) delete(tree ports.Tree, a domain.DeleteAction) error {
	if a.TargetID == tree.Root().ID() {
		return fmt.Errorf("%w: the root cannot be deleted", domain.ErrInvalidAction)
	}
	n, ok := tree.FindByID(a.TargetID)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrTargetNotFound, a.TargetID)
	}
	return tree.RemoveAndDestroy(n)
}

func (s Strategy) update(tree ports.Tree, a domain.UpdateAction, undo *UndoRecord) error {
	n, ok := tree.FindByID(a.TargetID)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrTargetNotFound, a.TargetID)
	}
	next, err := domain.Coerce(a.Type, a.Value)
	if err != nil {
		return fmt.Errorf("%q.%s: %w", a.TargetID, a.Key, err)
	}
	prev, hadPrev := tree.GetField(n, a.Key)
	if hadPrev && prev.Type != a.Type {
		return fmt.Errorf("%w: %q.%s is %s, not %s", domain.ErrTypeMismatch, a.TargetID, a.Key, prev.Type, a.Type)
	}
	if err := tree.SetField(n, a.Key, domain.Field{Type: a.Type, Value: next}); err != nil {
		return err
	}
	if undo != nil {
		undo.Node = n
		undo.Key = a.Key
		undo.Type = a.Type
		undo.Prev = prev.Value
		undo.HadPrev = hadPrev
		undo.Next = next
		undo.Applied = true
	}
	return nil
}

// Revert restores the field recorded in undo. Unapplied stubs are ignored.
func (s Strategy) Revert(tree ports.Tree, undo *UndoRecord) error {
	if undo == nil || !undo.Applied {
		return nil
	}
	var err error
	if undo.HadPrev {
		err = tree.SetField(undo.Node, undo.Key, domain.Field{Type: undo.Type, Value: undo.Prev})
	} else {
		err = tree.UnsetField(undo.Node, undo.Key)
	}
	if err != nil {
		return fmt.Errorf("revert %q.%s: %w", undo.Node.ID(), undo.Key, err)
	}
	undo.Applied = false
	return nil
}
