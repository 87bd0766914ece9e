// Package repo provides thin typed accessors over the document store, one
// group per collection. Repositories never perform multi-document writes;
// those belong to the consistency coordinator.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bookuniverse/internal/docstore"
)

func decode[T any](doc docstore.Doc) (T, error) {
	var v T
	if err := json.Unmarshal(doc.Data, &v); err != nil {
		return v, fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	return v, nil
}

func encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// getByIDs fetches multiple documents one by one, skipping ids that no
// longer resolve. Back-reference lists may be stale; callers that must not
// tolerate holes use Get directly.
func getByIDs(ctx context.Context, tx docstore.Tx, collection string, ids []string) ([]docstore.Doc, error) {
	docs := make([]docstore.Doc, 0, len(ids))
	for _, id := range ids {
		doc, err := tx.Get(ctx, collection, id)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				continue
			}
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
