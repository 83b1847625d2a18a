package payment

import (
	"context"
	"encoding/json"
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

const paymentColumns = `
id::text, gateway_id, gateway_mode, COALESCE(payment_method_id::text, ''), order_id::text,
COALESCE(remote_id, ''), COALESCE(remote_state, ''), amount::text, amount_currency,
refunded_amount::text, refunded_currency, state, authorized_at, expires_at, completed_at, created_at
`

func (r *postgresRepo) CreatePayment(ctx context.Context, p *domain.Payment) error {
	amount, amountCurrency := priceColumns(p.Amount)
	refunded, refundedCurrency := priceColumns(p.RefundedAmount)
	_, err := r.pool.Exec(ctx, `
INSERT INTO payments (id, gateway_id, gateway_mode, payment_method_id, order_id, remote_id,
                      remote_state, amount, amount_currency, refunded_amount, refunded_currency,
                      state, authorized_at, expires_at, completed_at, created_at)
VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11, $12, $13, $14, $15, $16)
`, p.ID, p.GatewayID, string(p.GatewayMode), p.PaymentMethodID, p.OrderID, p.RemoteID,
		p.RemoteState, amount, amountCurrency, refunded, refundedCurrency,
		string(p.State), p.AuthorizedAt, p.ExpiresAt, p.CompletedAt, p.CreatedAt)
	if err != nil {
		r.logger.Printf("payment repo: create id=%s error=%v", p.ID, err)
	}
	return err
}

func (r *postgresRepo) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("payment repo: get id=%s error=%v", id, err)
		return nil, err
	}
	return p, nil
}

func (r *postgresRepo) SavePayment(ctx context.Context, p *domain.Payment) error {
	amount, amountCurrency := priceColumns(p.Amount)
	refunded, refundedCurrency := priceColumns(p.RefundedAmount)
	cmd, err := r.pool.Exec(ctx, `
UPDATE payments
SET payment_method_id = NULLIF($2, '')::uuid, remote_id = NULLIF($3, ''), remote_state = NULLIF($4, ''),
    amount = $5, amount_currency = $6, refunded_amount = $7, refunded_currency = $8,
    state = $9, authorized_at = $10, expires_at = $11, completed_at = $12
WHERE id = $1
`, p.ID, p.PaymentMethodID, p.RemoteID, p.RemoteState,
		amount, amountCurrency, refunded, refundedCurrency,
		string(p.State), p.AuthorizedAt, p.ExpiresAt, p.CompletedAt)
	if err != nil {
		r.logger.Printf("payment repo: save id=%s error=%v", p.ID, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) ListPaymentsByOrder(ctx context.Context, orderID string) ([]*domain.Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 ORDER BY created_at ASC`, orderID)
	if err != nil {
		r.logger.Printf("payment repo: list order=%s error=%v", orderID, err)
		return nil, err
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

const methodColumns = `
id::text, owner_id::text, gateway_id, gateway_mode, COALESCE(remote_id, ''), billing_profile,
COALESCE(card_brand, ''), COALESCE(card_last4, ''), COALESCE(card_exp_month, 0), COALESCE(card_exp_year, 0),
expires_at, reusable, is_default, created_at
`

func (r *postgresRepo) CreateMethod(ctx context.Context, m *domain.PaymentMethod) error {
	billing, err := marshalBilling(m.BillingProfile)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
INSERT INTO payment_methods (id, owner_id, gateway_id, gateway_mode, remote_id, billing_profile,
                             card_brand, card_last4, card_exp_month, card_exp_year,
                             expires_at, reusable, is_default, created_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, 0), NULLIF($10, 0), $11, $12, $13, $14)
`, m.ID, m.OwnerID, m.GatewayID, string(m.GatewayMode), m.RemoteID, billing,
		m.CardBrand, m.CardLast4, m.CardExpMonth, m.CardExpYear,
		m.ExpiresAt, m.Reusable, m.Default, m.CreatedAt)
	if err != nil {
		r.logger.Printf("payment repo: create method id=%s error=%v", m.ID, err)
	}
	return err
}

func (r *postgresRepo) GetMethod(ctx context.Context, id string) (*domain.PaymentMethod, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+methodColumns+` FROM payment_methods WHERE id = $1`, id)
	m, err := scanMethod(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("payment repo: get method id=%s error=%v", id, err)
		return nil, err
	}
	return m, nil
}

func (r *postgresRepo) SaveMethod(ctx context.Context, m *domain.PaymentMethod) error {
	billing, err := marshalBilling(m.BillingProfile)
	if err != nil {
		return err
	}
	cmd, err := r.pool.Exec(ctx, `
UPDATE payment_methods
SET remote_id = NULLIF($2, ''), billing_profile = $3, card_brand = NULLIF($4, ''),
    card_last4 = NULLIF($5, ''), card_exp_month = NULLIF($6, 0), card_exp_year = NULLIF($7, 0),
    expires_at = $8, reusable = $9, is_default = $10
WHERE id = $1
`, m.ID, m.RemoteID, billing, m.CardBrand, m.CardLast4, m.CardExpMonth, m.CardExpYear,
		m.ExpiresAt, m.Reusable, m.Default)
	if err != nil {
		r.logger.Printf("payment repo: save method id=%s error=%v", m.ID, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) DeleteMethod(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM payment_methods WHERE id = $1`, id)
	if err != nil {
		r.logger.Printf("payment repo: delete method id=%s error=%v", id, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var p domain.Payment
	var mode, state string
	var amount, amountCurrency, refunded, refundedCurrency *string
	if err := row.Scan(
		&p.ID, &p.GatewayID, &mode, &p.PaymentMethodID, &p.OrderID,
		&p.RemoteID, &p.RemoteState, &amount, &amountCurrency,
		&refunded, &refundedCurrency, &state,
		&p.AuthorizedAt, &p.ExpiresAt, &p.CompletedAt, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	p.GatewayMode = domain.GatewayMode(mode)
	p.State = domain.PaymentState(state)
	var err error
	if p.Amount, err = scanPrice(amount, amountCurrency); err != nil {
		return nil, err
	}
	if p.RefundedAmount, err = scanPrice(refunded, refundedCurrency); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanMethod(row rowScanner) (*domain.PaymentMethod, error) {
	var m domain.PaymentMethod
	var mode string
	var billing []byte
	if err := row.Scan(
		&m.ID, &m.OwnerID, &m.GatewayID, &mode, &m.RemoteID, &billing,
		&m.CardBrand, &m.CardLast4, &m.CardExpMonth, &m.CardExpYear,
		&m.ExpiresAt, &m.Reusable, &m.Default, &m.CreatedAt,
	); err != nil {
		return nil, err
	}
	m.GatewayMode = domain.GatewayMode(mode)
	if len(billing) > 0 {
		var addr domain.Address
		if err := json.Unmarshal(billing, &addr); err != nil {
			return nil, err
		}
		m.BillingProfile = &addr
	}
	return &m, nil
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
