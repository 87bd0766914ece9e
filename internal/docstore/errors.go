package docstore

import "errors"

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("docstore: document not found")

	// ErrWriteConflict indicates a concurrent transaction committed a
	// change to a document this transaction read or wrote. The whole
	// transaction is rolled back and may be retried.
	ErrWriteConflict = errors.New("docstore: write conflict")
)
