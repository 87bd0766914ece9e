// Package coordinator owns every write that touches more than one document.
// Each operation runs inside a single store transaction so that the
// cross-collection links (author<->book, user->order, order->inventory) never
// become observable in a half-applied state. Write conflicts roll the whole
// transaction back and the operation is retried from scratch.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"time"

	"github.com/google/uuid"

	"bookuniverse/internal/docstore"
	"bookuniverse/internal/repo"
	"bookuniverse/pkg/domain"
)

const (
	defaultMaxAttempts = 5
	defaultBackoff     = 10 * time.Millisecond
)

// Coordinator serializes multi-document writes through optimistic
// transactions on the underlying document store.
type Coordinator struct {
	store       docstore.Store
	log         *slog.Logger
	maxAttempts int
	backoff     time.Duration
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithRetry overrides the write-conflict retry bounds. Tests under heavy
// deliberate contention raise maxAttempts and shrink the backoff.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(c *Coordinator) {
		c.maxAttempts = maxAttempts
		c.backoff = backoff
	}
}

// New returns a Coordinator over store.
func New(store docstore.Store, log *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       store,
		log:         log,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run executes fn in a store transaction, retrying on write conflicts with
// doubling jittered backoff. Any other error aborts immediately; the store
// has already rolled the transaction back.
func (c *Coordinator) run(ctx context.Context, op string, fn func(tx docstore.Tx) error) error {
	delay := c.backoff
	for attempt := 1; ; attempt++ {
		err := c.store.WithTransaction(ctx, fn)
		if err == nil || !errors.Is(err, docstore.ErrWriteConflict) {
			return err
		}
		if attempt >= c.maxAttempts {
			c.log.Warn("giving up after repeated write conflicts", "op", op, "attempts", attempt)
			return fmt.Errorf("%w: %s after %d attempts", ErrTransient, op, attempt)
		}
		c.log.Debug("write conflict, retrying", "op", op, "attempt", attempt)
		jittered := delay
		if delay > 0 {
			jittered += time.Duration(rand.Int63n(int64(delay)))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jittered):
		}
		delay *= 2
	}
}

// checkID rejects ids that are not well-formed document ids before any
// transaction opens.
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &MalformedIDError{ID: id}
	}
	return nil
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return err
}

// LinkBookToAuthor creates book and appends its id to the author's BooksIDs
// in one transaction. If the author does not exist the insert is rolled back
// and a NotFoundError is returned. Returns the new book's id.
func (c *Coordinator) LinkBookToAuthor(ctx context.Context, book domain.Book, authorID string) (string, error) {
	if err := checkID(authorID); err != nil {
		return "", err
	}
	var bookID string
	err := c.run(ctx, "link_book", func(tx docstore.Tx) error {
		book.AuthorID = authorID
		id, err := repo.InsertBook(ctx, tx, book)
		if err != nil {
			return err
		}
		author, err := repo.GetAuthor(ctx, tx, authorID)
		if err != nil {
			return notFound(err, "author", authorID)
		}
		author.BooksIDs = append(author.BooksIDs, id)
		if err := repo.ReplaceAuthor(ctx, tx, author); err != nil {
			return err
		}
		bookID = id
		return nil
	})
	if err != nil {
		return "", err
	}
	c.log.Info("book linked to author", "book", bookID, "author", authorID)
	return bookID, nil
}

// ReassignBookAuthor updates book's fields and moves it to newAuthorID: the
// book id is appended to the new author's BooksIDs and removed from the old
// author's. A missing old author, or an old author that never listed the
// book, is tolerated; a missing new author aborts. When the author is
// unchanged only the book document is rewritten.
func (c *Coordinator) ReassignBookAuthor(ctx context.Context, book domain.Book, newAuthorID string) error {
	if err := checkID(book.ID); err != nil {
		return err
	}
	if err := checkID(newAuthorID); err != nil {
		return err
	}
	return c.run(ctx, "reassign_book", func(tx docstore.Tx) error {
		current, err := repo.GetBook(ctx, tx, book.ID)
		if err != nil {
			return notFound(err, "book", book.ID)
		}
		if current.AuthorID != newAuthorID {
			newAuthor, err := repo.GetAuthor(ctx, tx, newAuthorID)
			if err != nil {
				return notFound(err, "author", newAuthorID)
			}
			if !slices.Contains(newAuthor.BooksIDs, book.ID) {
				newAuthor.BooksIDs = append(newAuthor.BooksIDs, book.ID)
				if err := repo.ReplaceAuthor(ctx, tx, newAuthor); err != nil {
					return err
				}
			}
			oldAuthor, err := repo.GetAuthor(ctx, tx, current.AuthorID)
			switch {
			case errors.Is(err, docstore.ErrNotFound):
				c.log.Warn("old author missing during reassign", "book", book.ID, "author", current.AuthorID)
			case err != nil:
				return err
			case slices.Contains(oldAuthor.BooksIDs, book.ID):
				oldAuthor.BooksIDs = slices.DeleteFunc(oldAuthor.BooksIDs, func(id string) bool {
					return id == book.ID
				})
				if err := repo.ReplaceAuthor(ctx, tx, oldAuthor); err != nil {
					return err
				}
			}
		}
		updated := book
		updated.AuthorID = newAuthorID
		return repo.ReplaceBook(ctx, tx, updated)
	})
}

// DeleteAuthorCascade removes an author and every book listed in its
// BooksIDs in one transaction. Book ids that no longer resolve are skipped;
// a stale back-reference must not block the cascade.
func (c *Coordinator) DeleteAuthorCascade(ctx context.Context, authorID string) error {
	if err := checkID(authorID); err != nil {
		return err
	}
	return c.run(ctx, "delete_author", func(tx docstore.Tx) error {
		author, err := repo.GetAuthor(ctx, tx, authorID)
		if err != nil {
			return notFound(err, "author", authorID)
		}
		for _, bookID := range author.BooksIDs {
			if err := repo.DeleteBook(ctx, tx, bookID); err != nil && !errors.Is(err, docstore.ErrNotFound) {
				return err
			}
		}
		return repo.DeleteAuthor(ctx, tx, authorID)
	})
}

// DeleteBookAndUnlink removes a book and drops its id from the owning
// author's BooksIDs. A book whose AuthorID points at a missing author is a
// data fault and surfaces as InvalidReferenceError; nothing is deleted.
func (c *Coordinator) DeleteBookAndUnlink(ctx context.Context, bookID string) error {
	if err := checkID(bookID); err != nil {
		return err
	}
	return c.run(ctx, "delete_book", func(tx docstore.Tx) error {
		book, err := repo.GetBook(ctx, tx, bookID)
		if err != nil {
			return notFound(err, "book", bookID)
		}
		author, err := repo.GetAuthor(ctx, tx, book.AuthorID)
		if errors.Is(err, docstore.ErrNotFound) {
			return &InvalidReferenceError{Entity: "book", ID: bookID, RefEntity: "author", RefID: book.AuthorID}
		}
		if err != nil {
			return err
		}
		if slices.Contains(author.BooksIDs, bookID) {
			author.BooksIDs = slices.DeleteFunc(author.BooksIDs, func(id string) bool {
				return id == bookID
			})
			if err := repo.ReplaceAuthor(ctx, tx, author); err != nil {
				return err
			}
		}
		return repo.DeleteBook(ctx, tx, bookID)
	})
}

// PlaceOrder turns the user's cart into an order in one transaction: the
// order document is created with an immutable snapshot of cart, the order id
// is appended to the user's OrdersIDs, the cart is cleared, and inventory is
// debited per book. Inventory is debited in ascending book-id order so
// concurrent orders over overlapping books contend deterministically.
// Returns the new order's id.
func (c *Coordinator) PlaceOrder(ctx context.Context, userID string, cart []domain.CartItem, draft domain.Order) (string, error) {
	if err := checkID(userID); err != nil {
		return "", err
	}
	quantities := make(map[string]int, len(cart))
	for _, item := range cart {
		if err := checkID(item.BookID); err != nil {
			return "", err
		}
		if item.Quantity < 1 {
			return "", fmt.Errorf("%w: book %s quantity %d", ErrInvalidQuantity, item.BookID, item.Quantity)
		}
		quantities[item.BookID] += item.Quantity
	}
	bookIDs := make([]string, 0, len(quantities))
	for id := range quantities {
		bookIDs = append(bookIDs, id)
	}
	slices.Sort(bookIDs)

	var orderID string
	err := c.run(ctx, "place_order", func(tx docstore.Tx) error {
		user, err := repo.GetUser(ctx, tx, userID)
		if err != nil {
			return notFound(err, "user", userID)
		}

		order := draft
		order.Items = slices.Clone(cart)
		order.Sent = false
		order.UserBoughtID = userID
		if order.DateCreated.IsZero() {
			order.DateCreated = time.Now().UTC()
		}
		id, err := repo.InsertOrder(ctx, tx, order)
		if err != nil {
			return err
		}

		user.OrdersIDs = append(user.OrdersIDs, id)
		user.CartItems = []domain.CartItem{}
		if err := repo.ReplaceUser(ctx, tx, user); err != nil {
			return err
		}

		for _, bookID := range bookIDs {
			book, err := repo.GetBook(ctx, tx, bookID)
			if err != nil {
				return notFound(err, "book", bookID)
			}
			qty := quantities[bookID]
			if book.Inventory < qty {
				return &InsufficientInventoryError{BookID: bookID, Requested: qty, Available: book.Inventory}
			}
			book.Inventory -= qty
			if err := repo.ReplaceBook(ctx, tx, book); err != nil {
				return err
			}
		}
		orderID = id
		return nil
	})
	if err != nil {
		return "", err
	}
	c.log.Info("order placed", "order", orderID, "user", userID, "books", len(bookIDs))
	return orderID, nil
}

// MarkOrderSent flips an order's Sent flag. Already-sent orders are a no-op,
// so dispatch confirmations may be retried safely.
func (c *Coordinator) MarkOrderSent(ctx context.Context, orderID string) error {
	if err := checkID(orderID); err != nil {
		return err
	}
	return c.run(ctx, "mark_order_sent", func(tx docstore.Tx) error {
		order, err := repo.GetOrder(ctx, tx, orderID)
		if err != nil {
			return notFound(err, "order", orderID)
		}
		if order.Sent {
			return nil
		}
		order.Sent = true
		return repo.ReplaceOrder(ctx, tx, order)
	})
}
