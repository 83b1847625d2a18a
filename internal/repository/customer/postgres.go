package customer

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

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

const columns = `id::text, email, COALESCE(remote_customer_id, ''), created_at`

func (r *postgresRepo) Create(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	const q = `
INSERT INTO customers (id, email, remote_customer_id)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, NULLIF($3, ''))
RETURNING ` + columns
	row := r.pool.QueryRow(ctx, q, c.ID, strings.ToLower(c.Email), c.RemoteCustomerID)
	saved, err := scan(row)
	if err != nil {
		r.logger.Printf("customer repo: create email=%s error=%v", c.Email, err)
		return nil, err
	}
	return saved, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM customers WHERE id = $1`, id)
	c, err := scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("customer repo: get id=%s error=%v", id, err)
		return nil, err
	}
	return c, nil
}

func (r *postgresRepo) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM customers WHERE lower(email) = lower($1) LIMIT 1`, email)
	c, err := scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("customer repo: get email=%s error=%v", email, err)
		return nil, err
	}
	return c, nil
}

func (r *postgresRepo) SetRemoteCustomerID(ctx context.Context, id, remoteID string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE customers SET remote_customer_id = $2 WHERE id = $1`, id, remoteID)
	if err != nil {
		r.logger.Printf("customer repo: set remote id=%s error=%v", id, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scan(row pgx.Row) (*domain.Customer, error) {
	var c domain.Customer
	if err := row.Scan(&c.ID, &c.Email, &c.RemoteCustomerID, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
