package coordinator_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"bookuniverse/internal/coordinator"
	"bookuniverse/internal/docstore"
	"bookuniverse/internal/repo"
	"bookuniverse/pkg/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCoordinator(t *testing.T, opts ...coordinator.Option) (*coordinator.Coordinator, *docstore.MemoryStore) {
	t.Helper()
	store := docstore.NewMemoryStore()
	return coordinator.New(store, testLogger(), opts...), store
}

func seedAuthor(t *testing.T, store docstore.Store, author domain.Author) string {
	t.Helper()
	id, err := repo.InsertAuthor(context.Background(), store.View(), author)
	if err != nil {
		t.Fatalf("seed author: %v", err)
	}
	return id
}

func seedBook(t *testing.T, store docstore.Store, book domain.Book) string {
	t.Helper()
	id, err := repo.InsertBook(context.Background(), store.View(), book)
	if err != nil {
		t.Fatalf("seed book: %v", err)
	}
	return id
}

func seedUser(t *testing.T, store docstore.Store, user domain.User) string {
	t.Helper()
	id, err := repo.InsertUser(context.Background(), store.View(), user)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

func getAuthor(t *testing.T, store docstore.Store, id string) domain.Author {
	t.Helper()
	author, err := repo.GetAuthor(context.Background(), store.View(), id)
	if err != nil {
		t.Fatalf("get author %s: %v", id, err)
	}
	return author
}

func getBook(t *testing.T, store docstore.Store, id string) domain.Book {
	t.Helper()
	book, err := repo.GetBook(context.Background(), store.View(), id)
	if err != nil {
		t.Fatalf("get book %s: %v", id, err)
	}
	return book
}

func getUser(t *testing.T, store docstore.Store, id string) domain.User {
	t.Helper()
	user, err := repo.GetUser(context.Background(), store.View(), id)
	if err != nil {
		t.Fatalf("get user %s: %v", id, err)
	}
	return user
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestLinkBookToAuthor(t *testing.T) {
	c, store := newTestCoordinator(t)
	ctx := context.Background()

	authorID := seedAuthor(t, store, domain.Author{Name: "Ursula K. Le Guin"})

	bookID, err := c.LinkBookToAuthor(ctx, domain.Book{
		Title:      "The Dispossessed",
		AuthorName: "Ursula K. Le Guin",
		Price:      1499,
		Inventory:  10,
	}, authorID)
	if err != nil {
		t.Fatalf("LinkBookToAuthor: %v", err)
	}

	book := getBook(t, store, bookID)
	if book.AuthorID != authorID {
		t.Errorf("book.AuthorID = %q, want %q", book.AuthorID, authorID)
	}
	author := getAuthor(t, store, authorID)
	if !contains(author.BooksIDs, bookID) {
		t.Errorf("author.BooksIDs = %v, missing %s", author.BooksIDs, bookID)
	}
}

func TestLinkBookToAuthorMissingAuthor(t *testing.T) {
	c, store := newTestCoordinator(t)
	ctx := context.Background()

	_, err := c.LinkBookToAuthor(ctx, domain.Book{Title: "Orphan"}, uuid.NewString())
	var nf *coordinator.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
	if nf.Entity != "author" {
		t.Errorf("NotFoundError.Entity = %q, want author", nf.Entity)
	}

	// The book insert must have rolled back with the failed transaction.
	books, err := repo.ListBooks(ctx, store.View())
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if len(books) != 0 {
		t.Errorf("books after failed link = %d, want 0", len(books))
	}
}

func TestLinkBookToAuthorMalformedID(t *testing.T) {
	c, _ := newTestCoordinator(t)

	_, err := c.LinkBookToAuthor(context.Background(), domain.Book{Title: "X"}, "not-an-id")
	var mal *coordinator.MalformedIDError
	if !errors.As(err, &mal) {
		t.Fatalf("err = %v, want MalformedIDError", err)
	}
}

func TestReassignBookAuthor(t *testing.T) {
	c, store := newTestCoordinator(t)
	ctx := context.Background()

	oldID := seedAuthor(t, store, domain.Author{Name: "Old"})
	newID := seedAuthor(t, store, domain.Author{Name: "New"})
	bookID, err := c.LinkBookToAuthor(ctx, domain.Book{Title: "Moving", Price: 900}, oldID)
	if err != nil {
		t.Fatalf("LinkBookToAuthor: %v", err)
	}

	updated := getBook(t, store, bookID)
	updated.Title = "Moving, 2nd ed."
	if err := c.ReassignBookAuthor(ctx, updated, newID); err != nil {
		t.Fatalf("ReassignBookAuthor: %v", err)
	}

	book := getBook(t, store, bookID)
	if book.AuthorID != newID {
		t.Errorf("book.AuthorID = %q, want %q", book.AuthorID, newID)
	}
	if book.Title != "Moving, 2nd ed." {
		t.Errorf("book.Title = %q, field update lost", book.Title)
	}
	if a := getAuthor(t, store, oldID); contains(a.BooksIDs, bookID) {
		t.Errorf("old author still lists %s", bookID)
	}
	if a := getAuthor(t, store, newID); !contains(a.BooksIDs, bookID) {
		t.Errorf("new author does not list %s", bookID)
	}
}

func TestReassignBookAuthorSameAuthor(t *testing.T) {
	c, store := newTestCoordinator(t)
	ctx := context.Background()

	authorID := seedAuthor(t, store, domain.Author{Name: "Same"})
	bookID, err := c.LinkBookToAuthor(ctx, domain.Book{Title: "Staying"}, authorID)
	if err != nil {
		t.Fatalf("LinkBookToAuthor: %v", err)
	}

	updated := getBook(t, store, bookID)
	updated.PublishedYear = 2001
	if err := c.ReassignBookAuthor(ctx, updated, authorID); err != nil {
		t.Fatalf("ReassignBookAuthor: %v", err)
	}

	if b := getBook(t, store, bookID); b.PublishedYear != 2001 {
		t.Errorf("PublishedYear = %d, want 2001", b.PublishedYear)
	}
	author := getAuthor(t, store, authorID)
	n := 0
	for _, id := range author.BooksIDs {
		if id == bookID {
			n++
		}
	}
	if n != 1 {
		t.Errorf("book listed %d times on author, want 1", n)
	}
}

func TestReassignBookAuthorMissingNewAuthor(t *testing.T) {
	c, store := newTestCoordinator(t)
	ctx := context.Background()

	oldID := seedAuthor(t, store, domain.Author{Name: "Old"})
	bookID, err := c.LinkBookToAuthor(ctx, domain.Book{Title: "Stuck"}, oldID)
	if err != nil {
		t.Fatalf("LinkBookToAuthor: %v", err)
	}

	book := getBook(t, store, bookID)
	err = c.ReassignBookAuthor(ctx, book, uuid.NewString())
	var nf *coordinator.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}

	// Nothing moved.
	if b := getBook(t, store, bookID); b.AuthorID != oldID {
		t.Errorf("book.AuthorID = %q, want %q", b.AuthorID, oldID)
	}
	if a := getAuthor(t, store, oldID); !contains(a.BooksIDs, bookID) {
		t.Errorf("old author lost %s", bookID)
	}
}

func TestReassignBookAuthorOldAuthorGone(t *testing.T) {
	c, store := newTestCoordinator(t)
	ctx := context.Background()

	oldID := seedAuthor(t, store, domain.Author{Name: "Vanishing"})
	newID := seedAuthor(t, store, domain.Author{Name: "New"})
	bookID, err := c.LinkBookToAuthor(ctx, domain.Book{Title: "Orphaned"}, oldID)
	if err != nil {
		t.Fatalf("LinkBookToAuthor: %v", err)
	}
	if err := repo.DeleteAuthor(ctx, store.View(), oldID); err != nil {
		t.Fatalf("delete old author: %v", err)
	}

	book := getBook(t, store, bookID)
	if err := c.ReassignBookAuthor(ctx, book, newID); err != nil {
		t.Fatalf("ReassignBookAuthor with missing old author: %v", err)
	}
	if a := getAuthor(t, store, newID); !contains(a.BooksIDs, bookID) {
		t.Errorf("new author does not list %s", bookID)
	}
}

func TestDeleteAuthorCascade(t *testing.T) {
	c, store := newTestCoordinator(t)
	ctx := context.Background()

	authorID := seedAuthor(t, store, domain.Author{Name: "Doomed"})
	otherID := seedAuthor(t, store, domain.Author{Name: "Bystander"})
	b1, err := c.LinkBookToAuthor(ctx, domain.Book{Title: "One"}, authorID)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	b2, err := c.LinkBookToAuthor(ctx, domain.Book{Title: "Two"}, authorID)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	keep, err := c.LinkBookToAuthor(ctx, domain.Book{Title: "Kept"}, otherID)
	if err != nil {
		t.Fatalf("link: %v", err)
	}

	// A stale back-reference must not block the cascade.
	author := getAuthor(t, store, authorID)
	author.BooksIDs = append(author.BooksIDs, uuid.NewString())
	if err := repo.ReplaceAuthor(ctx, store.View(), author); err != nil {
		t.Fatalf("add stale ref: %v", err)
	}

	if err := c.DeleteAuthorCascade(ctx, authorID); err != nil {
		t.Fatalf("DeleteAuthorCascade: %v", err)
	}

	view := store.View()
	if _, err := repo.GetAuthor(ctx, view, authorID); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("author still present, err = %v", err)
	}
	for _, id := range []string{b1, b2} {
		if _, err := repo.GetBook(ctx, view, id); !errors.Is(err, docstore.ErrNotFound) {
			t.Errorf("book %s still present, err = %v", id, err)
		}
	}
	if _, err := repo.GetBook(ctx, view, keep); err != nil {
		t.Errorf("bystander's book deleted: %v", err)
	}
}

func TestDeleteAuthorCascadeMissingAuthor(t *testing.T) {
	c, _ := newTestCoordinator(t)

	err := c.DeleteAuthorCascade(context.Background(), uuid.NewString())
	var nf *coordinator.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestDeleteBookAndUnlink(t *testing.T) {
	c, store := newTestCoordinator(t)
	ctx := context.Background()

	authorID := seedAuthor(t, store, domain.Author{Name: "Author"})
	bookID, err := c.LinkBookToAuthor(ctx, domain.Book{Title: "Going"}, authorID)
	if err != nil {
		t.Fatalf("link: %v", err)
	}

	if err := c.DeleteBookAndUnlink(ctx, bookID); err != nil {
		t.Fatalf("DeleteBookAndUnlink: %v", err)
	}

	if _, err := repo.GetBook(ctx, store.View(), bookID); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("book still present, err = %v", err)
	}
	if a := getAuthor(t, store, authorID); contains(a.BooksIDs, bookID) {
		t.Errorf("author still lists %s", bookID)
	}
}

func TestDeleteBookAndUnlinkDanglingAuthor(t *testing.T) {
	c, store := newTestCoordinator(t)
	ctx := context.Background()

	bookID := seedBook(t, store, domain.Book{Title: "Dangling", AuthorID: uuid.NewString()})

	err := c.DeleteBookAndUnlink(ctx, bookID)
	var ref *coordinator.InvalidReferenceError
	if !errors.As(err, &ref) {
		t.Fatalf("err = %v, want InvalidReferenceError", err)
	}
	if ref.ID != bookID {
		t.Errorf("InvalidReferenceError.ID = %q, want %q", ref.ID, bookID)
	}

	// The fault is surfaced, not repaired: the book stays.
	if _, err := repo.GetBook(ctx, store.View(), bookID); err != nil {
		t.Errorf("book deleted despite dangling reference: %v", err)
	}
}

func TestPlaceOrder(t *testing.T) {
	c, store := newTestCoordinator(t)
	ctx := context.Background()

	authorID := seedAuthor(t, store, domain.Author{Name: "Author"})
	b1, err := c.LinkBookToAuthor(ctx, domain.Book{Title: "One", Price: 1000, Inventory: 5}, authorID)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	b2, err := c.LinkBookToAuthor(ctx, domain.Book{Title: "Two", Price: 2500, Inventory: 2}, authorID)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	userID := seedUser(t, store, domain.User{
		Email: "reader@example.com",
		CartItems: []domain.CartItem{
			{BookID: b1, Quantity: 2},
			{BookID: b2, Quantity: 1},
		},
	})

	cart := getUser(t, store, userID).CartItems
	// Duplicate lines for one book aggregate into a single debit.
	cart = append(cart, domain.CartItem{BookID: b1, Quantity: 1})

	orderID, err := c.PlaceOrder(ctx, userID, cart, domain.Order{
		FirstName: "Ada",
		LastName:  "Reader",
		Email:     "reader@example.com",
		Price:     5500,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	order, err := repo.GetOrder(ctx, store.View(), orderID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.Sent {
		t.Error("new order marked sent")
	}
	if order.UserBoughtID != userID {
		t.Errorf("order.UserBoughtID = %q, want %q", order.UserBoughtID, userID)
	}
	if order.DateCreated.IsZero() {
		t.Error("order.DateCreated not set")
	}
	if len(order.Items) != 3 {
		t.Errorf("order.Items = %d lines, want the 3-line snapshot", len(order.Items))
	}

	user := getUser(t, store, userID)
	if len(user.CartItems) != 0 {
		t.Errorf("cart not cleared: %v", user.CartItems)
	}
	if !contains(user.OrdersIDs, orderID) {
		t.Errorf("user.OrdersIDs = %v, missing %s", user.OrdersIDs, orderID)
	}

	if inv := getBook(t, store, b1).Inventory; inv != 2 {
		t.Errorf("book one inventory = %d, want 2", inv)
	}
	if inv := getBook(t, store, b2).Inventory; inv != 1 {
		t.Errorf("book two inventory = %d, want 1", inv)
	}
}

func TestPlaceOrderInsufficientInventory(t *testing.T) {
	c, store := newTestCoordinator(t)
	ctx := context.Background()

	authorID := seedAuthor(t, store, domain.Author{Name: "Author"})
	plenty, err := c.LinkBookToAuthor(ctx, domain.Book{Title: "Plenty", Inventory: 100}, authorID)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	scarce, err := c.LinkBookToAuthor(ctx, domain.Book{Title: "Scarce", Inventory: 1}, authorID)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	cart := []domain.CartItem{
		{BookID: plenty, Quantity: 3},
		{BookID: scarce, Quantity: 2},
	}
	userID := seedUser(t, store, domain.User{Email: "x@example.com", CartItems: cart})

	_, err = c.PlaceOrder(ctx, userID, cart, domain.Order{})
	var short *coordinator.InsufficientInventoryError
	if !errors.As(err, &short) {
		t.Fatalf("err = %v, want InsufficientInventoryError", err)
	}
	if short.BookID != scarce || short.Requested != 2 || short.Available != 1 {
		t.Errorf("InsufficientInventoryError = %+v", short)
	}

	// Whole transaction rolled back: no order, cart intact, no debits.
	orders, err := repo.ListOrders(ctx, store.View())
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("orders after failed placement = %d, want 0", len(orders))
	}
	user := getUser(t, store, userID)
	if len(user.CartItems) != 2 || len(user.OrdersIDs) != 0 {
		t.Errorf("user mutated by failed placement: %+v", user)
	}
	if inv := getBook(t, store, plenty).Inventory; inv != 100 {
		t.Errorf("inventory debited despite rollback: %d", inv)
	}
}

func TestPlaceOrderMissingUser(t *testing.T) {
	c, store := newTestCoordinator(t)
	ctx := context.Background()

	authorID := seedAuthor(t, store, domain.Author{Name: "Author"})
	bookID, err := c.LinkBookToAuthor(ctx, domain.Book{Title: "B", Inventory: 1}, authorID)
	if err != nil {
		t.Fatalf("link: %v", err)
	}

	_, err = c.PlaceOrder(ctx, uuid.NewString(), []domain.CartItem{{BookID: bookID, Quantity: 1}}, domain.Order{})
	var nf *coordinator.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
	if nf.Entity != "user" {
		t.Errorf("NotFoundError.Entity = %q, want user", nf.Entity)
	}
}

func TestPlaceOrderInvalidQuantity(t *testing.T) {
	c, store := newTestCoordinator(t)
	userID := seedUser(t, store, domain.User{Email: "x@example.com"})

	_, err := c.PlaceOrder(context.Background(), userID,
		[]domain.CartItem{{BookID: uuid.NewString(), Quantity: 0}}, domain.Order{})
	if !errors.Is(err, coordinator.ErrInvalidQuantity) {
		t.Fatalf("err = %v, want ErrInvalidQuantity", err)
	}
}

func TestMarkOrderSentIdempotent(t *testing.T) {
	c, store := newTestCoordinator(t)
	ctx := context.Background()

	authorID := seedAuthor(t, store, domain.Author{Name: "Author"})
	bookID, err := c.LinkBookToAuthor(ctx, domain.Book{Title: "B", Inventory: 3}, authorID)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	userID := seedUser(t, store, domain.User{Email: "x@example.com"})
	orderID, err := c.PlaceOrder(ctx, userID, []domain.CartItem{{BookID: bookID, Quantity: 1}}, domain.Order{})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := c.MarkOrderSent(ctx, orderID); err != nil {
			t.Fatalf("MarkOrderSent call %d: %v", i+1, err)
		}
	}
	order, err := repo.GetOrder(ctx, store.View(), orderID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if !order.Sent {
		t.Error("order not marked sent")
	}
}

func TestMarkOrderSentMissing(t *testing.T) {
	c, _ := newTestCoordinator(t)

	err := c.MarkOrderSent(context.Background(), uuid.NewString())
	var nf *coordinator.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

// TestPlaceOrderConcurrent drives more orders at a book than it has stock.
// Exactly Inventory of them must succeed; the rest must fail with
// InsufficientInventoryError, never by silently overselling.
func TestPlaceOrderConcurrent(t *testing.T) {
	const stock = 5
	const buyers = 8

	c, store := newTestCoordinator(t, coordinator.WithRetry(100, time.Millisecond))
	ctx := context.Background()

	authorID := seedAuthor(t, store, domain.Author{Name: "Author"})
	bookID, err := c.LinkBookToAuthor(ctx, domain.Book{Title: "Hot", Inventory: stock}, authorID)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	userIDs := make([]string, buyers)
	for i := range userIDs {
		userIDs[i] = seedUser(t, store, domain.User{Email: "buyer@example.com"})
	}

	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.PlaceOrder(ctx, userIDs[i],
				[]domain.CartItem{{BookID: bookID, Quantity: 1}}, domain.Order{})
		}(i)
	}
	wg.Wait()

	succeeded, short := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		default:
			var e *coordinator.InsufficientInventoryError
			if !errors.As(err, &e) {
				t.Errorf("unexpected error: %v", err)
				continue
			}
			short++
		}
	}
	if succeeded != stock || short != buyers-stock {
		t.Errorf("succeeded = %d, short = %d; want %d and %d", succeeded, short, stock, buyers-stock)
	}
	if inv := getBook(t, store, bookID).Inventory; inv != 0 {
		t.Errorf("final inventory = %d, want 0", inv)
	}
	orders, err := repo.ListOrders(ctx, store.View())
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(orders) != stock {
		t.Errorf("orders = %d, want %d", len(orders), stock)
	}
}

// conflictStore always fails commits so retry exhaustion can be observed.
type conflictStore struct {
	docstore.Store
	attempts int
}

func (s *conflictStore) WithTransaction(ctx context.Context, fn func(tx docstore.Tx) error) error {
	s.attempts++
	if err := s.Store.WithTransaction(ctx, fn); err != nil {
		return err
	}
	return docstore.ErrWriteConflict
}

func TestRetryExhaustion(t *testing.T) {
	mem := docstore.NewMemoryStore()
	store := &conflictStore{Store: mem}
	c := coordinator.New(store, testLogger(), coordinator.WithRetry(3, time.Millisecond))

	orderID, err := repo.InsertOrder(context.Background(), mem.View(), domain.Order{Email: "x@example.com"})
	if err != nil {
		t.Fatalf("seed order: %v", err)
	}

	err = c.MarkOrderSent(context.Background(), orderID)
	if !errors.Is(err, coordinator.ErrTransient) {
		t.Fatalf("err = %v, want ErrTransient", err)
	}
	if store.attempts != 3 {
		t.Errorf("attempts = %d, want 3", store.attempts)
	}
}
