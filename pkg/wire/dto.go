// Package wire defines the request shapes exchanged with the authority and the
// translation between domain actions and those shapes.
package wire

// Wire action types.
const (
	TypeCreate = "create"
	TypeDelete = "delete"
	TypeUpdate = "update"
)

// ActionDTO is the wire form of a single action.
//
//	create{elementId, parentId, fields?}
//	delete{elementId}
//	update{elementId, schemaType, key, value}
type ActionDTO struct {
	Type       string              `json:"type" yaml:"type"`
	ElementID  string              `json:"elementId" yaml:"elementId"`
	ParentID   string              `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	SchemaType string              `json:"schemaType,omitempty" yaml:"schemaType,omitempty"`
	Key        string              `json:"key,omitempty" yaml:"key,omitempty"`
	Value      string              `json:"value,omitempty" yaml:"value,omitempty"`
	Fields     map[string]FieldDTO `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// FieldDTO is an initial field value carried by a create action.
type FieldDTO struct {
	SchemaType string `json:"schemaType" yaml:"schemaType"`
	Value      string `json:"value" yaml:"value"`
}

// Batch is the unit submitted to the authority.
type Batch struct {
	TransactionID string      `json:"transactionId"`
	DocumentID    string      `json:"documentId"`
	Actions       []ActionDTO `json:"actions"`
}

// Response is the authority's answer to a batch.
// Success false means the authority declined the batch at the application level.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Version int64  `json:"version,omitempty"`
}
