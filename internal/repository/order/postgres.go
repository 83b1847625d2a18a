package order

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"

	"digitalstore/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

const orderColumns = `
id::text, customer_id::text, COALESCE(email, ''), COALESCE(ip_address, ''),
total_amount::text, total_currency, total_paid_amount::text, total_paid_currency,
state, cart, locked, COALESCE(checkout_step, ''), billing_details, placed_at, completed_at, created_at
`

const itemColumns = `
id::text, order_id::text, COALESCE(purchased_entity_id::text, ''), title, quantity,
unit_amount::text, unit_currency, unit_price_overridden, total_amount::text, total_currency, created_at
`

func (r *postgresRepo) Create(ctx context.Context, o *domain.Order) error {
	o.RecalculateTotalPrice()
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	billing, err := marshalBilling(o.BillingDetails)
	if err != nil {
		return err
	}
	totalAmount, totalCurrency := priceColumns(o.TotalPrice)
	paidAmount, paidCurrency := priceColumns(o.TotalPaid)
	_, err = tx.Exec(ctx, `
INSERT INTO orders (id, customer_id, email, ip_address, total_amount, total_currency,
                    total_paid_amount, total_paid_currency, state, cart, locked,
                    checkout_step, billing_details, placed_at, completed_at, created_at)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13, $14, $15, $16)
`, o.ID, o.CustomerID, o.Email, o.IPAddress, totalAmount, totalCurrency,
		paidAmount, paidCurrency, string(o.State), o.Cart, o.Locked,
		o.CheckoutStep, billing, o.PlacedAt, o.CompletedAt, o.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Printf("order repo: create id=%s duplicate active cart", o.ID)
			return domain.ErrDuplicateCart
		}
		r.logger.Printf("order repo: create id=%s error=%v", o.ID, err)
		return err
	}
	for _, item := range o.Items {
		if err := upsertItem(ctx, tx, item); err != nil {
			r.logger.Printf("order repo: create id=%s item=%s error=%v", o.ID, item.ID, err)
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("order repo: get id=%s error=%v", id, err)
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) LoadMultiple(ctx context.Context, ids []string) ([]*domain.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ANY($1) ORDER BY created_at DESC`, ids)
	if err != nil {
		r.logger.Printf("order repo: load multiple error=%v", err)
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, o := range orders {
		if err := r.loadItems(ctx, o); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *postgresRepo) ActiveCartIDs(ctx context.Context, customerID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id::text
FROM orders
WHERE cart AND customer_id = $1
ORDER BY created_at DESC
`, customerID)
	if err != nil {
		r.logger.Printf("order repo: active cart ids customer=%s error=%v", customerID, err)
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postgresRepo) Save(ctx context.Context, o *domain.Order) error {
	// Totals are recomputed immediately before persistence so a stale
	// aggregate can never be written.
	o.RecalculateTotalPrice()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	billing, err := marshalBilling(o.BillingDetails)
	if err != nil {
		return err
	}
	totalAmount, totalCurrency := priceColumns(o.TotalPrice)
	paidAmount, paidCurrency := priceColumns(o.TotalPaid)
	cmd, err := tx.Exec(ctx, `
UPDATE orders
SET customer_id = $2, email = NULLIF($3, ''), ip_address = NULLIF($4, ''),
    total_amount = $5, total_currency = $6, total_paid_amount = $7, total_paid_currency = $8,
    state = $9, cart = $10, locked = $11, checkout_step = NULLIF($12, ''),
    billing_details = $13, placed_at = $14, completed_at = $15
WHERE id = $1
`, o.ID, o.CustomerID, o.Email, o.IPAddress, totalAmount, totalCurrency,
		paidAmount, paidCurrency, string(o.State), o.Cart, o.Locked,
		o.CheckoutStep, billing, o.PlacedAt, o.CompletedAt)
	if err != nil {
		r.logger.Printf("order repo: save id=%s error=%v", o.ID, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	keep := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		if err := upsertItem(ctx, tx, item); err != nil {
			r.logger.Printf("order repo: save id=%s item=%s error=%v", o.ID, item.ID, err)
			return err
		}
		keep = append(keep, item.ID)
	}
	if _, err := tx.Exec(ctx, `
DELETE FROM order_items WHERE order_id = $1 AND NOT (id = ANY($2))
`, o.ID, keep); err != nil {
		r.logger.Printf("order repo: save id=%s prune items error=%v", o.ID, err)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	// Back-fill item parent references left empty by earlier saves. This is
	// non-critical post-processing: failures are logged, never propagated.
	if _, err := r.pool.Exec(ctx, `
UPDATE order_items SET order_id = $1 WHERE id = ANY($2) AND order_id IS NULL
`, o.ID, keep); err != nil {
		r.logger.Printf("order repo: save id=%s backfill item order ids error=%v", o.ID, err)
	}
	return nil
}

func (r *postgresRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		r.logger.Printf("order repo: delete id=%s error=%v", id, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) GetItem(ctx context.Context, itemID string) (*domain.OrderItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM order_items WHERE id = $1`, itemID)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("order repo: get item id=%s error=%v", itemID, err)
		return nil, err
	}
	return item, nil
}

func (r *postgresRepo) SaveItem(ctx context.Context, item *domain.OrderItem) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := upsertItem(ctx, tx, item); err != nil {
		r.logger.Printf("order repo: save item id=%s error=%v", item.ID, err)
		return err
	}
	return tx.Commit(ctx)
}

func (r *postgresRepo) DeleteItem(ctx context.Context, itemID string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM order_items WHERE id = $1`, itemID)
	if err != nil {
		r.logger.Printf("order repo: delete item id=%s error=%v", itemID, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) loadItems(ctx context.Context, o *domain.Order) error {
	rows, err := r.pool.Query(ctx, `
SELECT `+itemColumns+`
FROM order_items
WHERE order_id = $1
ORDER BY created_at ASC
`, o.ID)
	if err != nil {
		r.logger.Printf("order repo: load items order=%s error=%v", o.ID, err)
		return err
	}
	defer rows.Close()

	var items []*domain.OrderItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	o.Items = items
	return nil
}

func upsertItem(ctx context.Context, tx pgx.Tx, item *domain.OrderItem) error {
	unitAmount, unitCurrency := priceColumns(item.UnitPrice)
	totalAmount, totalCurrency := priceColumns(item.TotalPrice)
	var orderID *string
	if item.OrderID != "" {
		orderID = &item.OrderID
	}
	var purchasedID *string
	if item.PurchasedEntityID != "" {
		purchasedID = &item.PurchasedEntityID
	}
	_, err := tx.Exec(ctx, `
INSERT INTO order_items (id, order_id, purchased_entity_id, title, quantity,
                         unit_amount, unit_currency, unit_price_overridden,
                         total_amount, total_currency, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
    order_id = EXCLUDED.order_id,
    quantity = EXCLUDED.quantity,
    unit_amount = EXCLUDED.unit_amount,
    unit_currency = EXCLUDED.unit_currency,
    unit_price_overridden = EXCLUDED.unit_price_overridden,
    total_amount = EXCLUDED.total_amount,
    total_currency = EXCLUDED.total_currency
`, item.ID, orderID, purchasedID, item.Title, item.Quantity,
		unitAmount, unitCurrency, item.UnitPriceOverridden,
		totalAmount, totalCurrency, item.CreatedAt)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var state string
	var totalAmount, totalCurrency, paidAmount, paidCurrency *string
	var billing []byte
	if err := row.Scan(
		&o.ID, &o.CustomerID, &o.Email, &o.IPAddress,
		&totalAmount, &totalCurrency, &paidAmount, &paidCurrency,
		&state, &o.Cart, &o.Locked, &o.CheckoutStep, &billing,
		&o.PlacedAt, &o.CompletedAt, &o.CreatedAt,
	); err != nil {
		return nil, err
	}
	o.State = domain.OrderState(state)
	var err error
	if o.TotalPrice, err = scanPrice(totalAmount, totalCurrency); err != nil {
		return nil, err
	}
	if o.TotalPaid, err = scanPrice(paidAmount, paidCurrency); err != nil {
		return nil, err
	}
	if len(billing) > 0 {
		var addr domain.Address
		if err := json.Unmarshal(billing, &addr); err != nil {
			return nil, err
		}
		o.BillingDetails = &addr
	}
	return &o, nil
}

func scanItem(row rowScanner) (*domain.OrderItem, error) {
	var item domain.OrderItem
	var orderID *string
	var unitAmount, unitCurrency, totalAmount, totalCurrency *string
	if err := row.Scan(
		&item.ID, &orderID, &item.PurchasedEntityID, &item.Title, &item.Quantity,
		&unitAmount, &unitCurrency, &item.UnitPriceOverridden,
		&totalAmount, &totalCurrency, &item.CreatedAt,
	); err != nil {
		return nil, err
	}
	if orderID != nil {
		item.OrderID = *orderID
	}
	var err error
	if item.UnitPrice, err = scanPrice(unitAmount, unitCurrency); err != nil {
		return nil, err
	}
	if item.TotalPrice, err = scanPrice(totalAmount, totalCurrency); err != nil {
		return nil, err
	}
	return &item, nil
}

func scanPrice(amount, currency *string) (domain.Price, error) {
	if amount == nil || currency == nil {
		return domain.Price{}, nil
	}
	return domain.NewPrice(*amount, *currency)
}

func priceColumns(p domain.Price) (*string, *string) {
	if p.IsEmpty() {
		return nil, nil
	}
	amount := p.Amount()
	currency := p.CurrencyCode()
	return &amount, &currency
}

func marshalBilling(addr *domain.Address) ([]byte, error) {
	if addr == nil {
		return nil, nil
	}
	return json.Marshal(addr)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
