package repo

import (
	"context"

	"bookuniverse/internal/docstore"
	"bookuniverse/pkg/domain"
)

// GetUser returns one user or docstore.ErrNotFound.
func GetUser(ctx context.Context, tx docstore.Tx, id string) (domain.User, error) {
	doc, err := tx.Get(ctx, docstore.Users, id)
	if err != nil {
		return domain.User{}, err
	}
	user, err := decode[domain.User](doc)
	if err != nil {
		return domain.User{}, err
	}
	user.ID = doc.ID
	return user, nil
}

// ListUsers returns every user, ordered by id.
func ListUsers(ctx context.Context, tx docstore.Tx) ([]domain.User, error) {
	docs, err := tx.List(ctx, docstore.Users)
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(docs))
	for _, doc := range docs {
		u, err := decode[domain.User](doc)
		if err != nil {
			return nil, err
		}
		u.ID = doc.ID
		users = append(users, u)
	}
	return users, nil
}

// InsertUser stores a new user and returns its id.
func InsertUser(ctx context.Context, tx docstore.Tx, user domain.User) (string, error) {
	user.ID = ""
	data, err := encode(user)
	if err != nil {
		return "", err
	}
	return tx.Insert(ctx, docstore.Users, data)
}

// ReplaceUser overwrites an existing user document.
func ReplaceUser(ctx context.Context, tx docstore.Tx, user domain.User) error {
	id := user.ID
	user.ID = ""
	data, err := encode(user)
	if err != nil {
		return err
	}
	return tx.Replace(ctx, docstore.Users, id, data)
}

// DeleteUser removes a user document.
func DeleteUser(ctx context.Context, tx docstore.Tx, id string) error {
	return tx.Delete(ctx, docstore.Users, id)
}
