// Package docstore is a thin schemaless document store client. Documents are
// JSON blobs grouped into named collections, each carrying a version counter
// used for optimistic concurrency: a transaction that replaces or deletes a
// document another transaction has committed in the meantime fails whole with
// ErrWriteConflict and can be retried by the caller.
package docstore

import "context"

// Collection names used by the application.
const (
	Authors       = "authors"
	Books         = "books"
	Users         = "users"
	Orders        = "orders"
	FilterOptions = "filter_options"
	BannerImages  = "banner_images"
	BookComments  = "book_comments"
)

// Doc is a stored document: its id, the version the store holds for it, and
// the raw JSON body.
type Doc struct {
	ID      string
	Version int64
	Data    []byte
}

// Tx exposes per-collection document operations. Inside WithTransaction all
// operations share one atomic unit; the Tx returned by View autocommits each
// operation but still tracks read versions, so a read-modify-write through a
// single View detects concurrent writers.
type Tx interface {
	// Get returns the document with the given id or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Doc, error)

	// Find returns all documents whose top-level field equals value.
	// Value may be a string, bool, or number.
	Find(ctx context.Context, collection, field string, value any) ([]Doc, error)

	// List returns every document in the collection.
	List(ctx context.Context, collection string) ([]Doc, error)

	// Insert stores a new document and returns its assigned id.
	Insert(ctx context.Context, collection string, data []byte) (string, error)

	// Replace overwrites the document body. The document must exist; if it
	// changed since this Tx read it, the operation fails with
	// ErrWriteConflict.
	Replace(ctx context.Context, collection, id string, data []byte) error

	// Delete removes the document, with the same conflict semantics as
	// Replace. Deleting an absent document returns ErrNotFound.
	Delete(ctx context.Context, collection, id string) error
}

// Store is the document store client consumed by repositories and the
// consistency coordinator.
type Store interface {
	// WithTransaction runs fn inside one atomic unit. If fn returns an
	// error or panics, none of its writes survive. Reads performed through
	// the Tx observe the transaction's own uncommitted writes.
	WithTransaction(ctx context.Context, fn func(tx Tx) error) error

	// View returns a Tx whose operations commit individually.
	View() Tx
}
