package repo

import (
	"context"

	"bookuniverse/internal/docstore"
	"bookuniverse/pkg/domain"
)

// FindCommentsByBook returns the comments attached to one book.
func FindCommentsByBook(ctx context.Context, tx docstore.Tx, bookID string) ([]domain.BookComment, error) {
	docs, err := tx.Find(ctx, docstore.BookComments, "bookId", bookID)
	if err != nil {
		return nil, err
	}
	comments := make([]domain.BookComment, 0, len(docs))
	for _, doc := range docs {
		c, err := decode[domain.BookComment](doc)
		if err != nil {
			return nil, err
		}
		c.ID = doc.ID
		comments = append(comments, c)
	}
	return comments, nil
}

// InsertBookComment stores a new comment and returns its id.
func InsertBookComment(ctx context.Context, tx docstore.Tx, comment domain.BookComment) (string, error) {
	comment.ID = ""
	data, err := encode(comment)
	if err != nil {
		return "", err
	}
	return tx.Insert(ctx, docstore.BookComments, data)
}

// DeleteBookComment removes a comment.
func DeleteBookComment(ctx context.Context, tx docstore.Tx, id string) error {
	return tx.Delete(ctx, docstore.BookComments, id)
}
