package wire

import (
	"fmt"

	"github.com/aretw0/scenesync/pkg/domain"
)

// Encode translates actions into their wire form.
func Encode(actions []domain.Action) ([]ActionDTO, error) {
	out := make([]ActionDTO, 0, len(actions))
	for i, a := range actions {
		dto, err := EncodeAction(a)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		out = append(out, dto)
	}
	return out, nil
}

// EncodeAction translates one action.
func EncodeAction(a domain.Action) (ActionDTO, error) {
	switch act := a.(type) {
	case domain.CreateAction:
		dto := ActionDTO{Type: TypeCreate, ElementID: act.Spec.ID, ParentID: act.ParentID}
		if len(act.Spec.Fields) > 0 {
			dto.Fields = make(map[string]FieldDTO, len(act.Spec.Fields))
			for key, f := range act.Spec.Fields {
				s, err := domain.FormatValue(f.Type, f.Value)
				if err != nil {
					return ActionDTO{}, fmt.Errorf("field %q: %w", key, err)
				}
				dto.Fields[key] = FieldDTO{SchemaType: f.Type.String(), Value: s}
			}
		}
		return dto, nil
	case domain.DeleteAction:
		return ActionDTO{Type: TypeDelete, ElementID: act.TargetID}, nil
	case domain.UpdateAction:
		v, err := domain.Coerce(act.Type, act.Value)
		if err != nil {
			return ActionDTO{}, err
		}
		s, err := domain.FormatValue(act.Type, v)
		if err != nil {
			return ActionDTO{}, err
		}
		return ActionDTO{
			Type:       TypeUpdate,
			ElementID:  act.TargetID,
			SchemaType: act.Type.String(),
			Key:        act.Key,
			Value:      s,
		}, nil
	}
	return ActionDTO{}, fmt.Errorf("%w: unsupported action %T", domain.ErrInvalidAction, a)
}

// Decode translates wire actions back into domain actions.
// Update values stay in their string form; they are coerced when applied.
func Decode(dtos []ActionDTO) ([]domain.Action, error) {
	out := make([]domain.Action, 0, len(dtos))
	for i, dto := range dtos {
		a, err := DecodeAction(dto)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// DecodeAction translates one wire action.
func DecodeAction(dto ActionDTO) (domain.Action, error) {
	switch dto.Type {
	case TypeCreate:
		spec := domain.NodeSpec{ID: dto.ElementID}
		if len(dto.Fields) > 0 {
			spec.Fields = make(map[string]domain.Field, len(dto.Fields))
			for key, f := range dto.Fields {
				t, err := domain.ParseFieldType(f.SchemaType)
				if err != nil {
					return nil, fmt.Errorf("field %q: %w", key, err)
				}
				v, err := domain.ParseValue(t, f.Value)
				if err != nil {
					return nil, fmt.Errorf("field %q: %w", key, err)
				}
				spec.Fields[key] = domain.Field{Type: t, Value: v}
			}
		}
		return domain.CreateAction{ParentID: dto.ParentID, Spec: spec}, nil
	case TypeDelete:
		return domain.DeleteAction{TargetID: dto.ElementID}, nil
	case TypeUpdate:
		t, err := domain.ParseFieldType(dto.SchemaType)
		if err != nil {
			return nil, err
		}
		return domain.UpdateAction{TargetID: dto.ElementID, Key: dto.Key, Type: t, Value: dto.Value}, nil
	}
	return nil, fmt.Errorf("%w: unknown action type %q", domain.ErrInvalidAction, dto.Type)
}

// NewBatch encodes a transaction into a batch.
func NewBatch(txn *domain.Transaction) (Batch, error) {
	actions, err := Encode(txn.Actions())
	if err != nil {
		return Batch{}, err
	}
	return Batch{TransactionID: txn.ID(), DocumentID: txn.DocumentID(), Actions: actions}, nil
}
