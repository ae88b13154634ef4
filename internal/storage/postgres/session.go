package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prodishi/dishi-shop/internal/domain/order"
)

const (
	getContactSQL = `SELECT email, phone, first_name, last_name, address, postal_code, city
	FROM sessions WHERE id = $1`

	saveContactSQL = `INSERT INTO sessions (id, email, phone, first_name, last_name, address, postal_code, city)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		email = EXCLUDED.email,
		phone = EXCLUDED.phone,
		first_name = EXCLUDED.first_name,
		last_name = EXCLUDED.last_name,
		address = EXCLUDED.address,
		postal_code = EXCLUDED.postal_code,
		city = EXCLUDED.city,
		updated_at = now()`

	getTokenSQL = `SELECT token FROM sessions WHERE id = $1`

	saveTokenSQL = `INSERT INTO sessions (id, token) VALUES ($1, $2)
	ON CONFLICT (id) DO UPDATE SET token = EXCLUDED.token, updated_at = now()`

	clearTokenSQL = `UPDATE sessions SET token = '', updated_at = now() WHERE id = $1`
)

var _ order.SessionStore = (*SessionRepository)(nil)

// SessionRepository implements order.SessionStore backed by PostgreSQL.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository returns a SessionRepository that uses the given pool.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Contact(ctx context.Context, id string) (order.Contact, error) {
	var c order.Contact
	err := r.pool.QueryRow(ctx, getContactSQL, id).Scan(
		&c.Email, &c.Phone, &c.FirstName, &c.LastName, &c.Address, &c.PostalCode, &c.City,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return order.Contact{}, nil
	}
	if err != nil {
		return order.Contact{}, errors.Wrapf(err, "get contact %q", id)
	}
	return c, nil
}

func (r *SessionRepository) SaveContact(ctx context.Context, id string, c order.Contact) error {
	_, err := r.pool.Exec(ctx, saveContactSQL,
		id, c.Email, c.Phone, c.FirstName, c.LastName, c.Address, c.PostalCode, c.City,
	)
	if err != nil {
		return errors.Wrapf(err, "save contact %q", id)
	}
	return nil
}

func (r *SessionRepository) Token(ctx context.Context, id string) (string, error) {
	var token string
	err := r.pool.QueryRow(ctx, getTokenSQL, id).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "get token %q", id)
	}
	return token, nil
}

func (r *SessionRepository) SaveToken(ctx context.Context, id, token string) error {
	if _, err := r.pool.Exec(ctx, saveTokenSQL, id, token); err != nil {
		return errors.Wrapf(err, "save token %q", id)
	}
	return nil
}

func (r *SessionRepository) ClearToken(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, clearTokenSQL, id); err != nil {
		return errors.Wrapf(err, "clear token %q", id)
	}
	return nil
}
