package product

import (
	"context"
	"errors"
	"io"
	"log"

	"digitalstore/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

// NewPostgres returns a Repository backed by Postgres.
func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

const variationColumns = `id::text, sku, title, price_amount::text, price_currency, created_at`

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.ProductVariation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+variationColumns+` FROM product_variations WHERE id = $1`, id)
	return r.scanVariation(row, id)
}

func (r *postgresRepo) GetBySKU(ctx context.Context, sku string) (*domain.ProductVariation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+variationColumns+` FROM product_variations WHERE sku = $1`, sku)
	return r.scanVariation(row, sku)
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.ProductVariation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+variationColumns+` FROM product_variations ORDER BY created_at DESC`)
	if err != nil {
		r.logger.Printf("product repo: list error=%v", err)
		return nil, err
	}
	defer rows.Close()

	var result []domain.ProductVariation
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}
	return result, rows.Err()
}

func (r *postgresRepo) Upsert(ctx context.Context, v domain.ProductVariation) (*domain.ProductVariation, error) {
	const q = `
INSERT INTO product_variations (id, sku, title, price_amount, price_currency)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5)
ON CONFLICT (sku) DO UPDATE SET
    title = EXCLUDED.title,
    price_amount = EXCLUDED.price_amount,
    price_currency = EXCLUDED.price_currency
RETURNING ` + variationColumns
	row := r.pool.QueryRow(ctx, q, v.ID, v.SKU, v.Title, v.Price.Amount(), v.Price.CurrencyCode())
	saved, err := scan(row)
	if err != nil {
		r.logger.Printf("product repo: upsert sku=%s error=%v", v.SKU, err)
		return nil, err
	}
	return saved, nil
}

func (r *postgresRepo) scanVariation(row pgx.Row, key string) (*domain.ProductVariation, error) {
	v, err := scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("product repo: get %s error=%v", key, err)
		return nil, err
	}
	return v, nil
}

func scan(row pgx.Row) (*domain.ProductVariation, error) {
	var v domain.ProductVariation
	var amount, currency string
	if err := row.Scan(&v.ID, &v.SKU, &v.Title, &amount, &currency, &v.CreatedAt); err != nil {
		return nil, err
	}
	price, err := domain.NewPrice(amount, currency)
	if err != nil {
		return nil, err
	}
	v.Price = price
	return &v, nil
}
