// Package orders turns carts into orders and tracks dispatch. All writes go
// through the coordinator; this service adds pricing, listings and event
// publication on top.
package orders

import (
	"context"
	"errors"
	"log/slog"

	"bookuniverse/internal/coordinator"
	"bookuniverse/internal/docstore"
	"bookuniverse/internal/events"
	"bookuniverse/internal/repo"
	"bookuniverse/pkg/domain"
)

// ErrEmptyCart rejects checkout of a cart with no lines.
var ErrEmptyCart = errors.New("orders: cart is empty")

// Contact is the shipping information collected at checkout.
type Contact struct {
	FirstName  string
	LastName   string
	Email      string
	Address    string
	City       string
	PostalCode string
	Country    string
}

// Service exposes order operations.
type Service struct {
	store  docstore.Store
	coord  *coordinator.Coordinator
	events events.Publisher
	log    *slog.Logger
}

// NewService builds an order service.
func NewService(store docstore.Store, coord *coordinator.Coordinator, pub events.Publisher, log *slog.Logger) *Service {
	return &Service{store: store, coord: coord, events: pub, log: log}
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return &coordinator.NotFoundError{Entity: entity, ID: id}
	}
	return err
}

// Checkout places an order from the user's current cart. The order total is
// priced from the catalog at checkout time. Returns the new order's id.
func (s *Service) Checkout(ctx context.Context, userID string, contact Contact) (string, error) {
	view := s.store.View()
	user, err := repo.GetUser(ctx, view, userID)
	if err != nil {
		return "", notFound(err, "user", userID)
	}
	if len(user.CartItems) == 0 {
		return "", ErrEmptyCart
	}
	total, err := s.priceCart(ctx, view, user.CartItems)
	if err != nil {
		return "", err
	}

	draft := domain.Order{
		FirstName:  contact.FirstName,
		LastName:   contact.LastName,
		Email:      contact.Email,
		Address:    contact.Address,
		City:       contact.City,
		PostalCode: contact.PostalCode,
		Country:    contact.Country,
		Price:      total,
	}
	orderID, err := s.coord.PlaceOrder(ctx, userID, user.CartItems, draft)
	if err != nil {
		return "", err
	}
	s.publish(ctx, events.Event{Key: events.KeyOrderPlaced, OrderID: orderID, UserID: userID, Price: total})
	return orderID, nil
}

// priceCart sums price * quantity over the cart's books.
func (s *Service) priceCart(ctx context.Context, view docstore.Tx, cart []domain.CartItem) (int64, error) {
	var total int64
	for _, item := range cart {
		book, err := repo.GetBook(ctx, view, item.BookID)
		if err != nil {
			return 0, notFound(err, "book", item.BookID)
		}
		total += book.Price * int64(item.Quantity)
	}
	return total, nil
}

// MarkSent marks an order dispatched. Safe to call more than once.
func (s *Service) MarkSent(ctx context.Context, orderID string) error {
	if err := s.coord.MarkOrderSent(ctx, orderID); err != nil {
		return err
	}
	s.publish(ctx, events.Event{Key: events.KeyOrderSent, OrderID: orderID})
	return nil
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, id string) (domain.Order, error) {
	order, err := repo.GetOrder(ctx, s.store.View(), id)
	if err != nil {
		return domain.Order{}, notFound(err, "order", id)
	}
	return order, nil
}

// ListByUser returns a user's orders via its back-references. Orders whose
// id no longer resolves are skipped.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	view := s.store.View()
	user, err := repo.GetUser(ctx, view, userID)
	if err != nil {
		return nil, notFound(err, "user", userID)
	}
	return repo.GetOrdersByIDs(ctx, view, user.OrdersIDs)
}

// ListBySent returns orders filtered on the dispatch flag, for the admin
// fulfillment view.
func (s *Service) ListBySent(ctx context.Context, sent bool) ([]domain.Order, error) {
	return repo.FindOrdersBySent(ctx, s.store.View(), sent)
}

// ListAll returns every order.
func (s *Service) ListAll(ctx context.Context) ([]domain.Order, error) {
	return repo.ListOrders(ctx, s.store.View())
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn("event publish failed", "key", event.Key, "error", err)
	}
}
