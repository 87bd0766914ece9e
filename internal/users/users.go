// Package users manages profiles, carts and favorites. Cart and favorite
// edits touch only the user document, but still run as read-modify-write
// transactions so concurrent edits to the same user cannot lose updates.
package users

import (
	"context"
	"errors"
	"log/slog"

	"bookuniverse/internal/coordinator"
	"bookuniverse/internal/docstore"
	"bookuniverse/internal/repo"
	"bookuniverse/pkg/domain"
)

// ErrInvalidQuantity rejects non-positive cart quantities.
var ErrInvalidQuantity = errors.New("users: quantity must be positive")

// Service exposes user operations.
type Service struct {
	store docstore.Store
	log   *slog.Logger
}

// NewService builds a user service.
func NewService(store docstore.Store, log *slog.Logger) *Service {
	return &Service{store: store, log: log}
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return &coordinator.NotFoundError{Entity: entity, ID: id}
	}
	return err
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id string) (domain.User, error) {
	user, err := repo.GetUser(ctx, s.store.View(), id)
	if err != nil {
		return domain.User{}, notFound(err, "user", id)
	}
	return user, nil
}

// List returns every user.
func (s *Service) List(ctx context.Context) ([]domain.User, error) {
	return repo.ListUsers(ctx, s.store.View())
}

// Create stores a new user with an empty cart and no back-references.
func (s *Service) Create(ctx context.Context, user domain.User) (string, error) {
	user.OrdersIDs = nil
	user.CartItems = nil
	user.FavoriteBooksIDs = nil
	var id string
	err := s.store.WithTransaction(ctx, func(tx docstore.Tx) error {
		var err error
		id, err = repo.InsertUser(ctx, tx, user)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateProfile rewrites the profile fields, preserving the stored cart,
// orders and favorites.
func (s *Service) UpdateProfile(ctx context.Context, user domain.User) error {
	return s.store.WithTransaction(ctx, func(tx docstore.Tx) error {
		current, err := repo.GetUser(ctx, tx, user.ID)
		if err != nil {
			return notFound(err, "user", user.ID)
		}
		user.OrdersIDs = current.OrdersIDs
		user.CartItems = current.CartItems
		user.FavoriteBooksIDs = current.FavoriteBooksIDs
		return repo.ReplaceUser(ctx, tx, user)
	})
}

// mutate runs a read-modify-write on one user document.
func (s *Service) mutate(ctx context.Context, userID string, fn func(user *domain.User) error) error {
	return s.store.WithTransaction(ctx, func(tx docstore.Tx) error {
		user, err := repo.GetUser(ctx, tx, userID)
		if err != nil {
			return notFound(err, "user", userID)
		}
		if err := fn(&user); err != nil {
			return err
		}
		return repo.ReplaceUser(ctx, tx, user)
	})
}

// AddToCart adds quantity of a book to the cart, merging with an existing
// line for the same book. The book must exist.
func (s *Service) AddToCart(ctx context.Context, userID, bookID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	return s.store.WithTransaction(ctx, func(tx docstore.Tx) error {
		if _, err := repo.GetBook(ctx, tx, bookID); err != nil {
			return notFound(err, "book", bookID)
		}
		user, err := repo.GetUser(ctx, tx, userID)
		if err != nil {
			return notFound(err, "user", userID)
		}
		merged := false
		for i := range user.CartItems {
			if user.CartItems[i].BookID == bookID {
				user.CartItems[i].Quantity += quantity
				merged = true
				break
			}
		}
		if !merged {
			user.CartItems = append(user.CartItems, domain.CartItem{BookID: bookID, Quantity: quantity})
		}
		return repo.ReplaceUser(ctx, tx, user)
	})
}

// SetCartQuantity sets a cart line's quantity, removing the line at zero.
func (s *Service) SetCartQuantity(ctx context.Context, userID, bookID string, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	return s.mutate(ctx, userID, func(user *domain.User) error {
		items := user.CartItems[:0]
		found := false
		for _, item := range user.CartItems {
			if item.BookID == bookID {
				found = true
				if quantity > 0 {
					item.Quantity = quantity
					items = append(items, item)
				}
				continue
			}
			items = append(items, item)
		}
		if !found && quantity > 0 {
			items = append(items, domain.CartItem{BookID: bookID, Quantity: quantity})
		}
		user.CartItems = items
		return nil
	})
}

// RemoveFromCart drops a book's line from the cart. Removing an absent line
// is a no-op.
func (s *Service) RemoveFromCart(ctx context.Context, userID, bookID string) error {
	return s.SetCartQuantity(ctx, userID, bookID, 0)
}

// ClearCart empties the cart.
func (s *Service) ClearCart(ctx context.Context, userID string) error {
	return s.mutate(ctx, userID, func(user *domain.User) error {
		user.CartItems = nil
		return nil
	})
}

// Cart returns the user's cart lines.
func (s *Service) Cart(ctx context.Context, userID string) ([]domain.CartItem, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.CartItems, nil
}

// CartTotal prices the cart against the current catalog, in minor units.
func (s *Service) CartTotal(ctx context.Context, userID string) (int64, error) {
	view := s.store.View()
	user, err := repo.GetUser(ctx, view, userID)
	if err != nil {
		return 0, notFound(err, "user", userID)
	}
	var total int64
	for _, item := range user.CartItems {
		book, err := repo.GetBook(ctx, view, item.BookID)
		if err != nil {
			return 0, notFound(err, "book", item.BookID)
		}
		total += book.Price * int64(item.Quantity)
	}
	return total, nil
}

// AddFavorite marks a book as a favorite. Adding twice is a no-op.
func (s *Service) AddFavorite(ctx context.Context, userID, bookID string) error {
	return s.store.WithTransaction(ctx, func(tx docstore.Tx) error {
		if _, err := repo.GetBook(ctx, tx, bookID); err != nil {
			return notFound(err, "book", bookID)
		}
		user, err := repo.GetUser(ctx, tx, userID)
		if err != nil {
			return notFound(err, "user", userID)
		}
		for _, id := range user.FavoriteBooksIDs {
			if id == bookID {
				return nil
			}
		}
		user.FavoriteBooksIDs = append(user.FavoriteBooksIDs, bookID)
		return repo.ReplaceUser(ctx, tx, user)
	})
}

// RemoveFavorite unmarks a favorite. Removing an absent favorite is a no-op.
func (s *Service) RemoveFavorite(ctx context.Context, userID, bookID string) error {
	return s.mutate(ctx, userID, func(user *domain.User) error {
		kept := user.FavoriteBooksIDs[:0]
		for _, id := range user.FavoriteBooksIDs {
			if id != bookID {
				kept = append(kept, id)
			}
		}
		user.FavoriteBooksIDs = kept
		return nil
	})
}

// FavoriteBooks resolves the user's favorites to books, skipping ids that no
// longer exist.
func (s *Service) FavoriteBooks(ctx context.Context, userID string) ([]domain.Book, error) {
	view := s.store.View()
	user, err := repo.GetUser(ctx, view, userID)
	if err != nil {
		return nil, notFound(err, "user", userID)
	}
	return repo.GetBooksByIDs(ctx, view, user.FavoriteBooksIDs)
}

// Delete removes a user document. Orders the user placed are kept; they own
// their contact snapshot.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.store.WithTransaction(ctx, func(tx docstore.Tx) error {
		return repo.DeleteUser(ctx, tx, id)
	})
	return notFound(err, "user", id)
}
