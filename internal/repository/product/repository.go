package product

import (
	"context"

	"digitalstore/internal/domain"
)

// Repository fetches product variations, the store's purchasable units.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.ProductVariation, error)
	GetBySKU(ctx context.Context, sku string) (*domain.ProductVariation, error)
	List(ctx context.Context) ([]domain.ProductVariation, error)
	Upsert(ctx context.Context, v domain.ProductVariation) (*domain.ProductVariation, error)
}
