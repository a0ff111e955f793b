package domain

import "fmt"

// DocumentSnapshot is the serializable form of a scene document.
type DocumentSnapshot struct {
	ID      string       `json:"id" yaml:"id"`
	Version int64        `json:"version" yaml:"version"`
	Root    NodeSnapshot `json:"root" yaml:"root"`
}

// NodeSnapshot is the serializable form of a node and its subtree.
type NodeSnapshot struct {
	ID       string                   `json:"id" yaml:"id"`
	Fields   map[string]FieldSnapshot `json:"fields,omitempty" yaml:"fields,omitempty"`
	Children []NodeSnapshot           `json:"children,omitempty" yaml:"children,omitempty"`
}

// FieldSnapshot stores a field value in its wire form.
type FieldSnapshot struct {
	Type  FieldType `json:"type" yaml:"type"`
	Value string    `json:"value" yaml:"value"`
}

// NewFieldSnapshot encodes a field into its wire form.
func NewFieldSnapshot(f Field) (FieldSnapshot, error) {
	s, err := FormatValue(f.Type, f.Value)
	if err != nil {
		return FieldSnapshot{}, err
	}
	return FieldSnapshot{Type: f.Type, Value: s}, nil
}

// Field decodes the snapshot into a typed field.
func (fs FieldSnapshot) Field() (Field, error) {
	v, err := ParseValue(fs.Type, fs.Value)
	if err != nil {
		return Field{}, err
	}
	return Field{Type: fs.Type, Value: v}, nil
}

// Clone returns a deep copy of the snapshot.
func (d *DocumentSnapshot) Clone() *DocumentSnapshot {
	if d == nil {
		return nil
	}
	return &DocumentSnapshot{ID: d.ID, Version: d.Version, Root: d.Root.Clone()}
}

// Clone returns a deep copy of the node snapshot.
func (n NodeSnapshot) Clone() NodeSnapshot {
	out := NodeSnapshot{ID: n.ID}
	if n.Fields != nil {
		out.Fields = make(map[string]FieldSnapshot, len(n.Fields))
		for k, v := range n.Fields {
			out.Fields[k] = v
		}
	}
	if n.Children != nil {
		out.Children = make([]NodeSnapshot, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// Validate checks that ids are present and unique and that every field parses.
func (d *DocumentSnapshot) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: snapshot without document id", ErrInvalidAction)
	}
	seen := make(map[string]bool)
	var walk func(n NodeSnapshot) error
	walk = func(n NodeSnapshot) error {
		if n.ID == "" {
			return fmt.Errorf("%w: node without id", ErrInvalidAction)
		}
		if seen[n.ID] {
			return fmt.Errorf("%w: duplicate node id %q", ErrInvalidAction, n.ID)
		}
		seen[n.ID] = true
		for key, f := range n.Fields {
			if _, err := f.Field(); err != nil {
				return fmt.Errorf("node %q field %q: %w", n.ID, key, err)
			}
		}
		for _, c := range n.Children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(d.Root)
}
