package domain

import "errors"

// Strategy errors are reported synchronously while applying a single action.
var (
	// ErrParentNotFound is returned when a create action references a missing parent.
	ErrParentNotFound = errors.New("parent not found")

	// ErrTargetNotFound is returned when a delete or update action references a missing node.
	ErrTargetNotFound = errors.New("target not found")

	// ErrTypeMismatch is returned when a value does not match the declared field type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrParseError is returned when a wire value cannot be coerced into its field type.
	ErrParseError = errors.New("parse error")

	// ErrInvalidAction is returned for malformed actions (missing ids, deleting the root, duplicate ids).
	ErrInvalidAction = errors.New("invalid action")
)

// Manager and authority errors are reported asynchronously, after the transport answers.
var (
	// ErrUntrackedDocument is returned when a transaction targets a document that is not tracked.
	ErrUntrackedDocument = errors.New("untracked document")

	// ErrTransportError is returned when the transport fails to deliver a batch.
	ErrTransportError = errors.New("transport error")

	// ErrApplicationDeclined is returned when the authority rejects a batch.
	ErrApplicationDeclined = errors.New("application declined")
)

// Store errors.
var (
	// ErrDuplicateTransaction is returned when a transaction id is already pending.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrTransactionNotFound is returned when commit or rollback targets an unknown id.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrDocumentNotFound is returned when a document ID cannot be found in a snapshot store.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrReadOnly is returned by snapshot sources that do not accept writes.
	ErrReadOnly = errors.New("read-only source")
)
