package coordinator

import (
	"errors"
	"fmt"
)

var (
	// ErrTransient is returned when write-conflict retries are exhausted.
	// The operation had no effect and may be retried by the caller.
	ErrTransient = errors.New("coordinator: storage contention, operation not applied")

	// ErrInvalidQuantity rejects cart lines with a non-positive quantity.
	ErrInvalidQuantity = errors.New("coordinator: cart quantity must be positive")
)

// NotFoundError reports a referenced entity that does not exist. It always
// aborts the enclosing transaction.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// InsufficientInventoryError reports a purchase quantity exceeding current
// stock. The whole order aborts; no partial fulfillment.
type InsufficientInventoryError struct {
	BookID    string
	Requested int
	Available int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("book %s: requested %d, inventory %d", e.BookID, e.Requested, e.Available)
}

// InvalidReferenceError reports a forward reference pointing at a document
// that no longer exists, discovered during a cascade or unlink. It is a
// data-integrity fault and is surfaced, not repaired.
type InvalidReferenceError struct {
	Entity    string
	ID        string
	RefEntity string
	RefID     string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("%s %s references missing %s %s", e.Entity, e.ID, e.RefEntity, e.RefID)
}

// MalformedIDError reports a caller-supplied id that is not a valid document
// id. It is rejected before any transaction opens.
type MalformedIDError struct {
	ID string
}

func (e *MalformedIDError) Error() string {
	return fmt.Sprintf("malformed document id %q", e.ID)
}
