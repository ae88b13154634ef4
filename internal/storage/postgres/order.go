package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/prodishi/dishi-shop/internal/domain/order"
)

const (
	recordOrderSQL = `INSERT INTO orders (token, session_id, email, coupon_code, subtotal, discount, shipping, total, payload, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (token) DO NOTHING`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE token = $1)`

	orderTokensSQL = `SELECT token FROM orders`

	streamOrdersSQL = `SELECT token, session_id, payload, created_at
	FROM orders WHERE created_at >= $1 ORDER BY created_at, token`

	revenueSQL = `SELECT count(*), COALESCE(sum(total), 0) FROM orders WHERE created_at >= $1`
)

var _ order.Journal = (*OrderRepository)(nil)

// OrderRepository implements order.Journal backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Record persists a completed order. The payload is stored as JSONB next to
// the amounts used for reporting.
func (r *OrderRepository) Record(ctx context.Context, rec *order.Record) error {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	rec.Payload.Encode(e)

	p := &rec.Payload
	tag, err := r.pool.Exec(ctx, recordOrderSQL,
		rec.Token,
		rec.Session,
		p.Email,
		p.Coupon,
		decimal.NewFromInt(p.Subtotal),
		decimal.NewFromInt(p.Discount),
		decimal.NewFromInt(p.Shipping),
		decimal.NewFromInt(p.Total),
		e.Bytes(),
		rec.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "record order %q", rec.Token)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(order.ErrDuplicateSubmission, "token %s", rec.Token)
	}
	return nil
}

func (r *OrderRepository) Exists(ctx context.Context, token string) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, token).Scan(&ok); err != nil {
		return false, errors.Wrapf(err, "check order %q", token)
	}
	return ok, nil
}

// Tokens returns every recorded token.
func (r *OrderRepository) Tokens(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, orderTokensSQL)
	if err != nil {
		return nil, errors.Wrap(err, "query tokens")
	}
	tokens, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "collect tokens")
	}
	return tokens, nil
}

// Stream calls fn for every order created at or after since, oldest first.
// Iteration stops at the first error.
func (r *OrderRepository) Stream(ctx context.Context, since time.Time, fn func(*order.Record) error) error {
	rows, err := r.pool.Query(ctx, streamOrdersSQL, since)
	if err != nil {
		return errors.Wrap(err, "query orders")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec     order.Record
			payload []byte
		)
		if err := rows.Scan(&rec.Token, &rec.Session, &payload, &rec.CreatedAt); err != nil {
			return errors.Wrap(err, "scan order")
		}
		if err := rec.Payload.Decode(jx.DecodeBytes(payload)); err != nil {
			return errors.Wrapf(err, "decode order %q", rec.Token)
		}
		if err := fn(&rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Revenue returns the number of orders and their summed totals since the
// given time.
func (r *OrderRepository) Revenue(ctx context.Context, since time.Time) (int64, decimal.Decimal, error) {
	var (
		count int64
		sum   decimal.Decimal
	)
	if err := r.pool.QueryRow(ctx, revenueSQL, since).Scan(&count, &sum); err != nil {
		return 0, decimal.Zero, errors.Wrap(err, "query revenue")
	}
	return count, sum, nil
}
