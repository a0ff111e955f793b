package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/scenesync/pkg/domain"
	"gopkg.in/yaml.v3"
)

// TxnFile is the YAML form of a transaction accepted by `scenesync apply`:
//
//	document: lobby
//	actions:
//	  - create: {parent: root, id: lamp, fields: {label: {type: string, value: desk lamp}}}
//	  - update: {id: door, key: open, type: bool, value: true}
//	  - delete: {id: chair}
type TxnFile struct {
	Document string        `yaml:"document"`
	Actions  []ActionEntry `yaml:"actions"`
}

// ActionEntry holds exactly one of Create, Update or Delete.
type ActionEntry struct {
	Create *CreateEntry `yaml:"create,omitempty"`
	Update *UpdateEntry `yaml:"update,omitempty"`
	Delete *DeleteEntry `yaml:"delete,omitempty"`
}

type CreateEntry struct {
	Parent string                `yaml:"parent"`
	ID     string                `yaml:"id"`
	Fields map[string]FieldEntry `yaml:"fields,omitempty"`
}

type UpdateEntry struct {
	ID    string `yaml:"id"`
	Key   string `yaml:"key"`
	Type  string `yaml:"type"`
	Value any    `yaml:"value"`
}

type DeleteEntry struct {
	ID string `yaml:"id"`
}

// FieldEntry is a typed value; Value may be native YAML or the wire string.
type FieldEntry struct {
	Type  string `yaml:"type"`
	Value any    `yaml:"value"`
}

// ReadTxnFile parses a transaction file. "-" reads stdin.
func ReadTxnFile(path string) (*TxnFile, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read transaction file: %w", err)
	}
	return ParseTxnFile(data)
}

// ParseTxnFile decodes a transaction file, rejecting unknown keys.
func ParseTxnFile(data []byte) (*TxnFile, error) {
	var f TxnFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty transaction file", domain.ErrInvalidAction)
		}
		return nil, fmt.Errorf("failed to parse transaction file: %w", err)
	}
	if f.Document == "" {
		return nil, fmt.Errorf("%w: transaction file has no document", domain.ErrInvalidAction)
	}
	return &f, nil
}

// Build appends the file's actions to b, in order.
func (f *TxnFile) Build(b *domain.Builder) (*domain.Transaction, error) {
	for i, entry := range f.Actions {
		action, err := entry.action()
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		b.Append(action)
	}
	return b.Build()
}

func (e ActionEntry) action() (domain.Action, error) {
	set := 0
	for _, present := range []bool{e.Create != nil, e.Update != nil, e.Delete != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: want exactly one of create, update or delete", domain.ErrInvalidAction)
	}

	switch {
	case e.Create != nil:
		spec := domain.NodeSpec{ID: e.Create.ID}
		if len(e.Create.Fields) > 0 {
			spec.Fields = make(map[string]domain.Field, len(e.Create.Fields))
		}
		for key, fe := range e.Create.Fields {
			field, err := fe.field()
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
			spec.Fields[key] = field
		}
		return domain.CreateAction{ParentID: e.Create.Parent, Spec: spec}, nil
	case e.Update != nil:
		field, err := FieldEntry{Type: e.Update.Type, Value: e.Update.Value}.field()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", e.Update.Key, err)
		}
		return domain.UpdateAction{TargetID: e.Update.ID, Key: e.Update.Key, Type: field.Type, Value: field.Value}, nil
	default:
		return domain.DeleteAction{TargetID: e.Delete.ID}, nil
	}
}

func (fe FieldEntry) field() (domain.Field, error) {
	t, err := domain.ParseFieldType(fe.Type)
	if err != nil {
		return domain.Field{}, err
	}
	v, err := domain.ParseAny(t, fe.Value)
	if err != nil {
		return domain.Field{}, err
	}
	return domain.Field{Type: t, Value: v}, nil
}
