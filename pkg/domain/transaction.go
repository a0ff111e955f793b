package domain

import (
	"fmt"
)

// Transaction is an ordered batch of actions applied atomically to one document.
// It is immutable once built.
type Transaction struct {
	id         string
	documentID string
	actions    []Action
}

// NewTransaction validates the actions and returns a transaction owning a copy of them.
func NewTransaction(id, documentID string, actions ...Action) (*Transaction, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty transaction id", ErrInvalidAction)
	}
	if documentID == "" {
		return nil, fmt.Errorf("%w: empty document id", ErrInvalidAction)
	}
	for i, a := range actions {
		if err := Validate(a); err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
	}
	owned := make([]Action, len(actions))
	copy(owned, actions)
	return &Transaction{id: id, documentID: documentID, actions: owned}, nil
}

// ID returns the opaque transaction id.
func (t *Transaction) ID() string { return t.id }

// DocumentID returns the document the transaction targets.
func (t *Transaction) DocumentID() string { return t.documentID }

// Len returns the number of actions.
func (t *Transaction) Len() int { return len(t.actions) }

// Action returns the i-th action.
func (t *Transaction) Action(i int) Action { return t.actions[i] }

// Actions returns a copy of the actions in order.
func (t *Transaction) Actions() []Action {
	out := make([]Action, len(t.actions))
	copy(out, t.actions)
	return out
}

// Precommittable reports whether every action is an update.
// Structural edits are not cheaply undoable, so any create or delete defers the whole batch.
func (t *Transaction) Precommittable() bool {
	for _, a := range t.actions {
		if a.Kind() != KindUpdate {
			return false
		}
	}
	return true
}

// Builder accumulates actions for a transaction.
// The first invalid action is remembered and reported by Build.
type Builder struct {
	id         string
	documentID string
	actions    []Action
	err        error
}

// NewBuilder starts a transaction with the given id for documentID.
func NewBuilder(id, documentID string) *Builder {
	return &Builder{id: id, documentID: documentID}
}

// Create appends a create action.
func (b *Builder) Create(parentID string, spec NodeSpec) *Builder {
	return b.add(CreateAction{ParentID: parentID, Spec: spec})
}

// Delete appends a delete action.
func (b *Builder) Delete(targetID string) *Builder {
	return b.add(DeleteAction{TargetID: targetID})
}

// Update appends an update action, inferring the field type from value.
func (b *Builder) Update(targetID, key string, value any) *Builder {
	if b.err != nil {
		return b
	}
	value = Normalize(value)
	t, err := TypeOf(value)
	if err != nil {
		b.err = fmt.Errorf("action %d: %w", len(b.actions), err)
		return b
	}
	return b.add(UpdateAction{TargetID: targetID, Key: key, Type: t, Value: value})
}

// UpdateTyped appends an update action with an explicit field type.
// A string value is treated as the wire form and coerced when applied.
func (b *Builder) UpdateTyped(targetID, key string, t FieldType, value any) *Builder {
	return b.add(UpdateAction{TargetID: targetID, Key: key, Type: t, Value: Normalize(value)})
}

// Append appends already constructed actions.
func (b *Builder) Append(actions ...Action) *Builder {
	for _, a := range actions {
		b.add(a)
	}
	return b
}

func (b *Builder) add(a Action) *Builder {
	if b.err != nil {
		return b
	}
	if err := Validate(a); err != nil {
		b.err = fmt.Errorf("action %d: %w", len(b.actions), err)
		return b
	}
	b.actions = append(b.actions, a)
	return b
}

// Build returns the transaction, or the first error recorded while building.
func (b *Builder) Build() (*Transaction, error) {
	if b.err != nil {
		return nil, b.err
	}
	return NewTransaction(b.id, b.documentID, b.actions...)
}
