package users_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"bookuniverse/internal/coordinator"
	"bookuniverse/internal/docstore"
	"bookuniverse/internal/repo"
	"bookuniverse/internal/users"
	"bookuniverse/pkg/domain"
)

func newService(t *testing.T) (*users.Service, *docstore.MemoryStore) {
	t.Helper()
	store := docstore.NewMemoryStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return users.NewService(store, log), store
}

func seedBook(t *testing.T, store docstore.Store, book domain.Book) string {
	t.Helper()
	id, err := repo.InsertBook(context.Background(), store.View(), book)
	if err != nil {
		t.Fatalf("seed book: %v", err)
	}
	return id
}

func TestCreateStripsBackReferences(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, domain.User{
		Email:     "x@example.com",
		OrdersIDs: []string{"sneaky"},
		CartItems: []domain.CartItem{{BookID: "b", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	user, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(user.OrdersIDs) != 0 || len(user.CartItems) != 0 {
		t.Errorf("new user carries back-references: %+v", user)
	}
}

func TestUpdateProfilePreservesCartAndOrders(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	bookID := seedBook(t, store, domain.Book{Title: "B", Inventory: 5})
	id, err := svc.Create(ctx, domain.User{Email: "x@example.com", FirstName: "Ada"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.AddToCart(ctx, id, bookID, 2); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}

	if err := svc.UpdateProfile(ctx, domain.User{ID: id, Email: "x@example.com", FirstName: "Grace"}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	user, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if user.FirstName != "Grace" {
		t.Errorf("FirstName = %q, want Grace", user.FirstName)
	}
	if len(user.CartItems) != 1 || user.CartItems[0].Quantity != 2 {
		t.Errorf("cart lost on profile update: %v", user.CartItems)
	}
}

func TestAddToCartMergesLines(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	bookID := seedBook(t, store, domain.Book{Title: "B"})
	userID, err := svc.Create(ctx, domain.User{Email: "x@example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.AddToCart(ctx, userID, bookID, 1); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}
	if err := svc.AddToCart(ctx, userID, bookID, 2); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}

	cart, err := svc.Cart(ctx, userID)
	if err != nil {
		t.Fatalf("Cart: %v", err)
	}
	if len(cart) != 1 || cart[0].Quantity != 3 {
		t.Errorf("cart = %v, want one line with quantity 3", cart)
	}
}

func TestAddToCartMissingBook(t *testing.T) {
	svc, _ := newService(t)
	userID, err := svc.Create(context.Background(), domain.User{Email: "x@example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	err = svc.AddToCart(context.Background(), userID, uuid.NewString(), 1)
	var nf *coordinator.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
	if nf.Entity != "book" {
		t.Errorf("NotFoundError.Entity = %q, want book", nf.Entity)
	}
}

func TestAddToCartRejectsBadQuantity(t *testing.T) {
	svc, _ := newService(t)
	if err := svc.AddToCart(context.Background(), uuid.NewString(), uuid.NewString(), 0); !errors.Is(err, users.ErrInvalidQuantity) {
		t.Fatalf("err = %v, want ErrInvalidQuantity", err)
	}
}

func TestSetCartQuantity(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	bookID := seedBook(t, store, domain.Book{Title: "B"})
	userID, err := svc.Create(ctx, domain.User{Email: "x@example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.AddToCart(ctx, userID, bookID, 5); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}

	if err := svc.SetCartQuantity(ctx, userID, bookID, 2); err != nil {
		t.Fatalf("SetCartQuantity: %v", err)
	}
	cart, err := svc.Cart(ctx, userID)
	if err != nil {
		t.Fatalf("Cart: %v", err)
	}
	if len(cart) != 1 || cart[0].Quantity != 2 {
		t.Errorf("cart = %v, want quantity 2", cart)
	}

	// Zero removes the line.
	if err := svc.SetCartQuantity(ctx, userID, bookID, 0); err != nil {
		t.Fatalf("SetCartQuantity: %v", err)
	}
	cart, err = svc.Cart(ctx, userID)
	if err != nil {
		t.Fatalf("Cart: %v", err)
	}
	if len(cart) != 0 {
		t.Errorf("cart = %v, want empty", cart)
	}
}

func TestRemoveFromCartAbsentLineIsNoop(t *testing.T) {
	svc, _ := newService(t)
	userID, err := svc.Create(context.Background(), domain.User{Email: "x@example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.RemoveFromCart(context.Background(), userID, uuid.NewString()); err != nil {
		t.Fatalf("RemoveFromCart: %v", err)
	}
}

func TestCartTotal(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	b1 := seedBook(t, store, domain.Book{Title: "One", Price: 1500})
	b2 := seedBook(t, store, domain.Book{Title: "Two", Price: 700})
	userID, err := svc.Create(ctx, domain.User{Email: "x@example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.AddToCart(ctx, userID, b1, 2); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}
	if err := svc.AddToCart(ctx, userID, b2, 1); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}

	total, err := svc.CartTotal(ctx, userID)
	if err != nil {
		t.Fatalf("CartTotal: %v", err)
	}
	if total != 2*1500+700 {
		t.Errorf("total = %d, want %d", total, 2*1500+700)
	}
}

func TestFavorites(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	bookID := seedBook(t, store, domain.Book{Title: "Fav"})
	userID, err := svc.Create(ctx, domain.User{Email: "x@example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Adding twice must not duplicate.
	if err := svc.AddFavorite(ctx, userID, bookID); err != nil {
		t.Fatalf("AddFavorite: %v", err)
	}
	if err := svc.AddFavorite(ctx, userID, bookID); err != nil {
		t.Fatalf("AddFavorite again: %v", err)
	}
	books, err := svc.FavoriteBooks(ctx, userID)
	if err != nil {
		t.Fatalf("FavoriteBooks: %v", err)
	}
	if len(books) != 1 || books[0].Title != "Fav" {
		t.Errorf("favorites = %v, want one book", books)
	}

	if err := svc.RemoveFavorite(ctx, userID, bookID); err != nil {
		t.Fatalf("RemoveFavorite: %v", err)
	}
	books, err = svc.FavoriteBooks(ctx, userID)
	if err != nil {
		t.Fatalf("FavoriteBooks: %v", err)
	}
	if len(books) != 0 {
		t.Errorf("favorites = %v, want empty", books)
	}
}

func TestFavoriteBooksSkipsDeleted(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	bookID := seedBook(t, store, domain.Book{Title: "Gone"})
	userID, err := svc.Create(ctx, domain.User{Email: "x@example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.AddFavorite(ctx, userID, bookID); err != nil {
		t.Fatalf("AddFavorite: %v", err)
	}
	if err := repo.DeleteBook(ctx, store.View(), bookID); err != nil {
		t.Fatalf("delete book: %v", err)
	}

	books, err := svc.FavoriteBooks(ctx, userID)
	if err != nil {
		t.Fatalf("FavoriteBooks: %v", err)
	}
	if len(books) != 0 {
		t.Errorf("favorites = %v, want stale id skipped", books)
	}
}
