package domain

import "fmt"

// ActionKind enumerates the kinds of edits.
type ActionKind int

const (
	KindCreate ActionKind = iota + 1
	KindDelete
	KindUpdate
)

func (k ActionKind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindDelete:
		return "delete"
	case KindUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Action is one typed edit against a scene tree.
// The set of implementations is closed: CreateAction, DeleteAction and UpdateAction.
type Action interface {
	Kind() ActionKind
	// Target returns the id of the node the action creates, deletes or updates.
	Target() string
	action()
}

// NodeSpec describes a node to be created.
type NodeSpec struct {
	ID     string
	Fields map[string]Field
}

// CreateAction attaches a new node as the last child of ParentID.
type CreateAction struct {
	ParentID string
	Spec     NodeSpec
}

// DeleteAction removes a node and its subtree.
type DeleteAction struct {
	TargetID string
}

// UpdateAction writes a typed field on a node.
// Value is either a canonical value of Type or its wire string form.
type UpdateAction struct {
	TargetID string
	Key      string
	Type     FieldType
	Value    any
}

func (CreateAction) Kind() ActionKind { return KindCreate }
func (DeleteAction) Kind() ActionKind { return KindDelete }
func (UpdateAction) Kind() ActionKind { return KindUpdate }

func (a CreateAction) Target() string { return a.Spec.ID }
func (a DeleteAction) Target() string { return a.TargetID }
func (a UpdateAction) Target() string { return a.TargetID }

func (CreateAction) action() {}
func (DeleteAction) action() {}
func (UpdateAction) action() {}

// Validate checks the structural invariants of an action.
// It does not consult any tree.
func Validate(a Action) error {
	switch act := a.(type) {
	case CreateAction:
		if act.ParentID == "" {
			return fmt.Errorf("%w: create without parent id", ErrInvalidAction)
		}
		if act.Spec.ID == "" {
			return fmt.Errorf("%w: create without node id", ErrInvalidAction)
		}
		for key, f := range act.Spec.Fields {
			if _, err := Coerce(f.Type, f.Value); err != nil {
				return fmt.Errorf("field %q: %w", key, err)
			}
		}
	case DeleteAction:
		if act.TargetID == "" {
			return fmt.Errorf("%w: delete without target id", ErrInvalidAction)
		}
	case UpdateAction:
		if act.TargetID == "" || act.Key == "" {
			return fmt.Errorf("%w: update without target id or key", ErrInvalidAction)
		}
		if !act.Type.Valid() {
			return fmt.Errorf("%w: update %q has no field type", ErrTypeMismatch, act.Key)
		}
		if _, isString := act.Value.(string); isString {
			// Raw wire values are coerced when applied.
			return nil
		}
		if actual, err := TypeOf(act.Value); err != nil {
			return err
		} else if actual != act.Type {
			return fmt.Errorf("%w: %q declared %s, got %s", ErrTypeMismatch, act.Key, act.Type, actual)
		}
	case nil:
		return fmt.Errorf("%w: nil action", ErrInvalidAction)
	default:
		return fmt.Errorf("%w: unsupported action %T", ErrInvalidAction, a)
	}
	return nil
}
