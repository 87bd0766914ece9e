package repo

import (
	"context"

	"bookuniverse/internal/docstore"
	"bookuniverse/pkg/domain"
)

// GetBook returns one book or docstore.ErrNotFound.
func GetBook(ctx context.Context, tx docstore.Tx, id string) (domain.Book, error) {
	doc, err := tx.Get(ctx, docstore.Books, id)
	if err != nil {
		return domain.Book{}, err
	}
	book, err := decode[domain.Book](doc)
	if err != nil {
		return domain.Book{}, err
	}
	book.ID = doc.ID
	return book, nil
}

// ListBooks returns every book, ordered by id.
func ListBooks(ctx context.Context, tx docstore.Tx) ([]domain.Book, error) {
	docs, err := tx.List(ctx, docstore.Books)
	if err != nil {
		return nil, err
	}
	return decodeBooks(docs)
}

// GetBooksByIDs returns the books that still exist among ids.
func GetBooksByIDs(ctx context.Context, tx docstore.Tx, ids []string) ([]domain.Book, error) {
	docs, err := getByIDs(ctx, tx, docstore.Books, ids)
	if err != nil {
		return nil, err
	}
	return decodeBooks(docs)
}

// FindBooksByAuthor returns books whose forward reference points at authorID.
func FindBooksByAuthor(ctx context.Context, tx docstore.Tx, authorID string) ([]domain.Book, error) {
	docs, err := tx.Find(ctx, docstore.Books, "authorId", authorID)
	if err != nil {
		return nil, err
	}
	return decodeBooks(docs)
}

// InsertBook stores a new book and returns its id.
func InsertBook(ctx context.Context, tx docstore.Tx, book domain.Book) (string, error) {
	book.ID = ""
	data, err := encode(book)
	if err != nil {
		return "", err
	}
	return tx.Insert(ctx, docstore.Books, data)
}

// ReplaceBook overwrites an existing book document.
func ReplaceBook(ctx context.Context, tx docstore.Tx, book domain.Book) error {
	id := book.ID
	book.ID = ""
	data, err := encode(book)
	if err != nil {
		return err
	}
	return tx.Replace(ctx, docstore.Books, id, data)
}

// DeleteBook removes a book document. Unlinking from the author is the
// coordinator's job.
func DeleteBook(ctx context.Context, tx docstore.Tx, id string) error {
	return tx.Delete(ctx, docstore.Books, id)
}

func decodeBooks(docs []docstore.Doc) ([]domain.Book, error) {
	books := make([]domain.Book, 0, len(docs))
	for _, doc := range docs {
		b, err := decode[domain.Book](doc)
		if err != nil {
			return nil, err
		}
		b.ID = doc.ID
		books = append(books, b)
	}
	return books, nil
}
