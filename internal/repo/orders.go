package repo

import (
	"context"

	"bookuniverse/internal/docstore"
	"bookuniverse/pkg/domain"
)

// GetOrder returns one order or docstore.ErrNotFound.
func GetOrder(ctx context.Context, tx docstore.Tx, id string) (domain.Order, error) {
	doc, err := tx.Get(ctx, docstore.Orders, id)
	if err != nil {
		return domain.Order{}, err
	}
	order, err := decode[domain.Order](doc)
	if err != nil {
		return domain.Order{}, err
	}
	order.ID = doc.ID
	return order, nil
}

// ListOrders returns every order, ordered by id.
func ListOrders(ctx context.Context, tx docstore.Tx) ([]domain.Order, error) {
	docs, err := tx.List(ctx, docstore.Orders)
	if err != nil {
		return nil, err
	}
	return decodeOrders(docs)
}

// GetOrdersByIDs returns the orders that still exist among ids.
func GetOrdersByIDs(ctx context.Context, tx docstore.Tx, ids []string) ([]domain.Order, error) {
	docs, err := getByIDs(ctx, tx, docstore.Orders, ids)
	if err != nil {
		return nil, err
	}
	return decodeOrders(docs)
}

// FindOrdersBySent returns orders filtered by their Sent flag.
func FindOrdersBySent(ctx context.Context, tx docstore.Tx, sent bool) ([]domain.Order, error) {
	docs, err := tx.Find(ctx, docstore.Orders, "sent", sent)
	if err != nil {
		return nil, err
	}
	return decodeOrders(docs)
}

// InsertOrder stores a new order and returns its id. Orders are only
// inserted by the coordinator's PlaceOrder.
func InsertOrder(ctx context.Context, tx docstore.Tx, order domain.Order) (string, error) {
	order.ID = ""
	data, err := encode(order)
	if err != nil {
		return "", err
	}
	return tx.Insert(ctx, docstore.Orders, data)
}

// ReplaceOrder overwrites an existing order document. The Items snapshot is
// immutable by contract; callers only change Sent.
func ReplaceOrder(ctx context.Context, tx docstore.Tx, order domain.Order) error {
	id := order.ID
	order.ID = ""
	data, err := encode(order)
	if err != nil {
		return err
	}
	return tx.Replace(ctx, docstore.Orders, id, data)
}

// DeleteOrder removes an order document.
func DeleteOrder(ctx context.Context, tx docstore.Tx, id string) error {
	return tx.Delete(ctx, docstore.Orders, id)
}

func decodeOrders(docs []docstore.Doc) ([]domain.Order, error) {
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		o, err := decode[domain.Order](doc)
		if err != nil {
			return nil, err
		}
		o.ID = doc.ID
		orders = append(orders, o)
	}
	return orders, nil
}
