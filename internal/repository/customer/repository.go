package customer

import (
	"context"

	"digitalstore/internal/domain"
)

// Repository persists and fetches customers.
type Repository interface {
	Create(ctx context.Context, c domain.Customer) (*domain.Customer, error)
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
	// SetRemoteCustomerID records the customer's payment-gateway record id.
	SetRemoteCustomerID(ctx context.Context, id, remoteID string) error
}
