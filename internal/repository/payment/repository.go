package payment

import (
	"context"

	"digitalstore/internal/domain"
)

// Repository persists payments and payment methods.
type Repository interface {
	CreatePayment(ctx context.Context, p *domain.Payment) error
	GetPayment(ctx context.Context, id string) (*domain.Payment, error)
	SavePayment(ctx context.Context, p *domain.Payment) error
	ListPaymentsByOrder(ctx context.Context, orderID string) ([]*domain.Payment, error)

	CreateMethod(ctx context.Context, m *domain.PaymentMethod) error
	GetMethod(ctx context.Context, id string) (*domain.PaymentMethod, error)
	SaveMethod(ctx context.Context, m *domain.PaymentMethod) error
	DeleteMethod(ctx context.Context, id string) error
}
