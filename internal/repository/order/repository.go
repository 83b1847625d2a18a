package order

import (
	"context"

	"digitalstore/internal/domain"
)

// Repository persists orders and their items.
type Repository interface {
	// Create inserts a new order with its items. A second active cart for
	// the same customer fails with domain.ErrDuplicateCart.
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	LoadMultiple(ctx context.Context, ids []string) ([]*domain.Order, error)
	// ActiveCartIDs returns ids of cart-flagged orders owned by the
	// customer, newest first.
	ActiveCartIDs(ctx context.Context, customerID string) ([]string, error)
	// Save persists the order and its current item set; items removed from
	// the order are deleted.
	Save(ctx context.Context, o *domain.Order) error
	// Delete removes the order; its items cascade.
	Delete(ctx context.Context, id string) error

	GetItem(ctx context.Context, itemID string) (*domain.OrderItem, error)
	SaveItem(ctx context.Context, item *domain.OrderItem) error
	DeleteItem(ctx context.Context, itemID string) error
}
