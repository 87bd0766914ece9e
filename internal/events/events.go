// Package events publishes domain events after the coordinator has
// committed. Publishing is best effort: a failed publish is logged and never
// undoes a committed write.
package events

import (
	"context"
	"time"
)

// Routing keys for the topic exchange.
const (
	KeyOrderPlaced   = "order.placed"
	KeyOrderSent     = "order.sent"
	KeyBookCreated   = "book.created"
	KeyBookDeleted   = "book.deleted"
	KeyAuthorDeleted = "author.deleted"
)

// Event is the envelope put on the wire.
type Event struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurredAt"`
	OrderID    string    `json:"orderId,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	BookID     string    `json:"bookId,omitempty"`
	AuthorID   string    `json:"authorId,omitempty"`
	Price      int64     `json:"price,omitempty"`
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error { return nil }
func (NopPublisher) Close() error                                   { return nil }
