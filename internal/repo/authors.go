package repo

import (
	"context"

	"bookuniverse/internal/docstore"
	"bookuniverse/pkg/domain"
)

// GetAuthor returns one author or docstore.ErrNotFound.
func GetAuthor(ctx context.Context, tx docstore.Tx, id string) (domain.Author, error) {
	doc, err := tx.Get(ctx, docstore.Authors, id)
	if err != nil {
		return domain.Author{}, err
	}
	author, err := decode[domain.Author](doc)
	if err != nil {
		return domain.Author{}, err
	}
	author.ID = doc.ID
	return author, nil
}

// ListAuthors returns every author, ordered by id.
func ListAuthors(ctx context.Context, tx docstore.Tx) ([]domain.Author, error) {
	docs, err := tx.List(ctx, docstore.Authors)
	if err != nil {
		return nil, err
	}
	return decodeAuthors(docs)
}

// GetAuthorsByIDs returns the authors that still exist among ids.
func GetAuthorsByIDs(ctx context.Context, tx docstore.Tx, ids []string) ([]domain.Author, error) {
	docs, err := getByIDs(ctx, tx, docstore.Authors, ids)
	if err != nil {
		return nil, err
	}
	return decodeAuthors(docs)
}

// AuthorNames returns an id -> name index over all authors.
func AuthorNames(ctx context.Context, tx docstore.Tx) (map[string]string, error) {
	authors, err := ListAuthors(ctx, tx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(authors))
	for _, a := range authors {
		names[a.ID] = a.Name
	}
	return names, nil
}

// InsertAuthor stores a new author and returns its id.
func InsertAuthor(ctx context.Context, tx docstore.Tx, author domain.Author) (string, error) {
	author.ID = ""
	data, err := encode(author)
	if err != nil {
		return "", err
	}
	return tx.Insert(ctx, docstore.Authors, data)
}

// ReplaceAuthor overwrites an existing author document.
func ReplaceAuthor(ctx context.Context, tx docstore.Tx, author domain.Author) error {
	id := author.ID
	author.ID = ""
	data, err := encode(author)
	if err != nil {
		return err
	}
	return tx.Replace(ctx, docstore.Authors, id, data)
}

// DeleteAuthor removes an author document. Cascading to books is the
// coordinator's job; this only touches the authors collection.
func DeleteAuthor(ctx context.Context, tx docstore.Tx, id string) error {
	return tx.Delete(ctx, docstore.Authors, id)
}

func decodeAuthors(docs []docstore.Doc) ([]domain.Author, error) {
	authors := make([]domain.Author, 0, len(docs))
	for _, doc := range docs {
		a, err := decode[domain.Author](doc)
		if err != nil {
			return nil, err
		}
		a.ID = doc.ID
		authors = append(authors, a)
	}
	return authors, nil
}
