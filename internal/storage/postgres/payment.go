package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swiftcart/commerce-api/internal/domain/order"
	"github.com/swiftcart/commerce-api/internal/domain/payment"
)

var _ payment.Store = (*PaymentStore)(nil)

// PaymentStore implements payment.Store backed by PostgreSQL.
type PaymentStore struct {
	pool *pgxpool.Pool
}

// NewPaymentStore returns a PaymentStore that uses the given pool.
func NewPaymentStore(pool *pgxpool.Pool) *PaymentStore {
	return &PaymentStore{pool: pool}
}

const paymentColumns = `id, user_id, order_id, reference, amount, provider, status,
	authorization_url, provider_response, created_at, updated_at`

const getPaymentByReferenceSQL = `SELECT ` + paymentColumns + `
	FROM payments
	WHERE reference = $1`

const supersedeInitiatedSQL = `UPDATE payments
	SET status = $2, updated_at = now()
	WHERE order_id = $1 AND status = $3`

const insertPaymentSQL = `INSERT INTO payments (id, user_id, order_id, reference, amount, provider, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const setAuthorizationURLSQL = `UPDATE payments
	SET authorization_url = $2, updated_at = now()
	WHERE id = $1`

// markPaymentFailedSQL leaves terminal successes untouched: a stale verify
// that raced a concurrent success confirmation must not flip it back.
const markPaymentFailedSQL = `UPDATE payments
	SET status = $2, provider_response = $3, updated_at = now()
	WHERE id = $1 AND status <> $4`

const paymentForUpdateSQL = `SELECT user_id, order_id, status
	FROM payments
	WHERE id = $1
	FOR UPDATE`

const confirmPaymentSQL = `UPDATE payments
	SET status = $2, provider_response = $3, updated_at = now()
	WHERE id = $1`

const completeOrderSQL = `UPDATE orders
	SET status = $2, payment_status = $3, updated_at = now()
	WHERE id = $1`

// GetByReference returns the payment matching the reference, or
// payment.ErrNotFound.
func (s *PaymentStore) GetByReference(ctx context.Context, reference string) (*payment.Payment, error) {
	var p payment.Payment
	err := s.pool.QueryRow(ctx, getPaymentByReferenceSQL, reference).Scan(
		&p.ID, &p.UserID, &p.OrderID, &p.Reference, &p.Amount, &p.Provider, &p.Status,
		&p.AuthorizationURL, &p.ProviderResponse, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get payment %q", reference)
	}
	return &p, nil
}

// CreateSuperseding marks any prior initiated payments for the order as
// failed and inserts the new attempt, all in one transaction.
func (s *PaymentStore) CreateSuperseding(ctx context.Context, p *payment.Payment) error {
	return withTx(ctx, s.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, supersedeInitiatedSQL, p.OrderID, payment.StatusFailed, payment.StatusInitiated)
		if err != nil {
			return errors.Wrap(err, "supersede prior payments")
		}

		_, err = tx.Exec(ctx, insertPaymentSQL,
			p.ID, p.UserID, p.OrderID, p.Reference, p.Amount, p.Provider, p.Status, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return errors.Wrapf(err, "insert payment %q", p.Reference)
		}
		return nil
	})
}

// SetAuthorizationURL persists the provider's authorization URL.
func (s *PaymentStore) SetAuthorizationURL(ctx context.Context, id, url string) error {
	if _, err := s.pool.Exec(ctx, setAuthorizationURLSQL, id, url); err != nil {
		return errors.Wrapf(err, "set authorization url for payment %q", id)
	}
	return nil
}

// MarkFailed records a provider-reported decline on the payment. The order is
// left untouched, and a payment that already reached success stays successful.
func (s *PaymentStore) MarkFailed(ctx context.Context, id string, providerResponse []byte) error {
	if _, err := s.pool.Exec(ctx, markPaymentFailedSQL, id, payment.StatusFailed, providerResponse, payment.StatusSuccess); err != nil {
		return errors.Wrapf(err, "mark payment %q failed", id)
	}
	return nil
}

// ConfirmSuccess applies a verified successful payment atomically. The
// payment row is locked first; if it already reached success the transaction
// is a no-op, which makes concurrent duplicate callback deliveries converge
// on the same end state.
func (s *PaymentStore) ConfirmSuccess(ctx context.Context, id string, providerResponse []byte) error {
	return withTx(ctx, s.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		var (
			userID  string
			orderID string
			status  payment.Status
		)
		err := tx.QueryRow(ctx, paymentForUpdateSQL, id).Scan(&userID, &orderID, &status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return payment.ErrNotFound
			}
			return errors.Wrapf(err, "lock payment %q", id)
		}
		if status == payment.StatusSuccess {
			return nil
		}

		if _, err := tx.Exec(ctx, confirmPaymentSQL, id, payment.StatusSuccess, providerResponse); err != nil {
			return errors.Wrapf(err, "confirm payment %q", id)
		}

		if _, err := tx.Exec(ctx, completeOrderSQL, orderID, order.StatusProcessing, order.PaymentCompleted); err != nil {
			return errors.Wrapf(err, "complete order %q", orderID)
		}

		// Clear whatever active cart the user has accumulated since checkout.
		var cartID string
		err = tx.QueryRow(ctx, activeCartForUpdateSQL, userID).Scan(&cartID)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil
		case err != nil:
			return errors.Wrap(err, "lock active cart")
		}

		if _, err := tx.Exec(ctx, clearCartItemsSQL, cartID); err != nil {
			return errors.Wrap(err, "clear cart items")
		}
		if _, err := tx.Exec(ctx, deactivateCartSQL, cartID); err != nil {
			return errors.Wrapf(err, "deactivate cart %q", cartID)
		}
		return nil
	})
}
