package tests

import (
	"testing"

	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/aretw0/scenesync/pkg/ports"
)

// RunTreeContract is a reusable test suite that verifies if an adapter complies with ports.Tree.
// newTree must return a fresh tree whose root has no children and no fields.
func RunTreeContract(t *testing.T, newTree func() ports.Tree) {
	t.Helper()

	t.Run("Root_Findable", func(t *testing.T) {
		tree := newTree()
		root := tree.Root()
		if root == nil {
			t.Fatal("root is nil")
		}
		if root.Parent() != nil {
			t.Error("root must not have a parent")
		}
		found, ok := tree.FindByID(root.ID())
		if !ok || found.ID() != root.ID() {
			t.Errorf("FindByID(root) = %v, %v", found, ok)
		}
	})

	t.Run("AddChild_AppendsLast", func(t *testing.T) {
		tree := newTree()
		root := tree.Root()
		for _, id := range []string{"a", "b", "c"} {
			if _, err := tree.AddChild(root, domain.NodeSpec{ID: id}); err != nil {
				t.Fatalf("AddChild(%s): %v", id, err)
			}
		}
		children := root.Children()
		if len(children) != 3 {
			t.Fatalf("expected 3 children, got %d", len(children))
		}
		for i, id := range []string{"a", "b", "c"} {
			if children[i].ID() != id {
				t.Errorf("child %d = %s, want %s", i, children[i].ID(), id)
			}
			if children[i].Parent().ID() != root.ID() {
				t.Errorf("child %s has wrong parent", id)
			}
		}
	})

	t.Run("AddChild_InitialFields", func(t *testing.T) {
		tree := newTree()
		node, err := tree.AddChild(tree.Root(), domain.NodeSpec{
			ID:     "lamp",
			Fields: map[string]domain.Field{"on": {Type: domain.FieldBool, Value: true}},
		})
		if err != nil {
			t.Fatal(err)
		}
		f, ok := tree.GetField(node, "on")
		if !ok || f.Type != domain.FieldBool || f.Value != true {
			t.Errorf("GetField(on) = %+v, %v", f, ok)
		}
	})

	t.Run("RemoveAndDestroy_Subtree", func(t *testing.T) {
		tree := newTree()
		parent, err := tree.AddChild(tree.Root(), domain.NodeSpec{ID: "group"})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := tree.AddChild(parent, domain.NodeSpec{ID: "leaf"}); err != nil {
			t.Fatal(err)
		}
		if err := tree.RemoveAndDestroy(parent); err != nil {
			t.Fatalf("RemoveAndDestroy: %v", err)
		}
		if _, ok := tree.FindByID("group"); ok {
			t.Error("group still findable")
		}
		if _, ok := tree.FindByID("leaf"); ok {
			t.Error("leaf still findable after parent removal")
		}
		if len(tree.Root().Children()) != 0 {
			t.Error("root still has children")
		}
	})

	t.Run("RemoveAndDestroy_RootRejected", func(t *testing.T) {
		tree := newTree()
		if err := tree.RemoveAndDestroy(tree.Root()); err == nil {
			t.Error("expected error removing root")
		}
	})

	t.Run("Fields_SetGetUnset", func(t *testing.T) {
		tree := newTree()
		root := tree.Root()
		if _, ok := tree.GetField(root, "count"); ok {
			t.Fatal("field should be absent")
		}
		if err := tree.SetField(root, "count", domain.Field{Type: domain.FieldInt, Value: int64(4)}); err != nil {
			t.Fatal(err)
		}
		f, ok := tree.GetField(root, "count")
		if !ok || f.Value != int64(4) {
			t.Errorf("GetField(count) = %+v, %v", f, ok)
		}
		if err := tree.UnsetField(root, "count"); err != nil {
			t.Fatal(err)
		}
		if _, ok := tree.GetField(root, "count"); ok {
			t.Error("field should be absent after unset")
		}
	})
}
