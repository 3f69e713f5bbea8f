package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/swiftcart/commerce-api/internal/domain/order"
)

// Status is the state of a single payment attempt. Success and failed are
// terminal; a payment that reached success is never mutated again.
type Status string

const (
	StatusInitiated Status = "initiated"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
)

// Sentinel errors for payment operations.
var (
	ErrNotFound         = errors.New("payment not found")
	ErrMissingReference = errors.New("payment reference not provided")
	ErrOrderExpired     = errors.New("order price lock has expired")
)

// InvalidOrderStateError indicates the order is not in a payable state.
type InvalidOrderStateError struct {
	Status order.Status
}

func (e *InvalidOrderStateError) Error() string {
	return fmt.Sprintf("order cannot be paid for in status %s", e.Status)
}

// Payment represents one attempt to pay for an order. Many payments may exist
// per order across retries, but at most one ever reaches success; initiating
// a new attempt supersedes prior initiated ones.
type Payment struct {
	ID      string
	UserID  string
	OrderID string

	// Reference is the client-generated, globally unique id the provider
	// echoes back in callbacks.
	Reference string

	// Amount is snapshotted from the order total at initiation time.
	Amount decimal.Decimal

	Provider         string
	Status           Status
	AuthorizationURL string

	// ProviderResponse is the opaque verification payload from the provider,
	// kept for audit.
	ProviderResponse []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

// referencePrefix plus twelve hex characters form a reference like
// PAY-9f2c41d07ab3.
const (
	referencePrefix = "PAY-"
	referenceLen    = 12
)

// NewReference generates a fresh globally unique payment reference.
func NewReference() string {
	buf := make([]byte, referenceLen/2)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	return referencePrefix + hex.EncodeToString(buf)
}

// Store defines persistence operations for payments. The multi-row mutations
// (CreateSuperseding, ConfirmSuccess) are each one atomic transaction.
type Store interface {
	GetByReference(ctx context.Context, reference string) (*Payment, error)

	// CreateSuperseding inserts p and, in the same transaction, marks any
	// prior initiated payments for the same order as failed, so only one
	// authorization URL per order is ever honorable.
	CreateSuperseding(ctx context.Context, p *Payment) error

	// SetAuthorizationURL persists the provider's authorization URL.
	SetAuthorizationURL(ctx context.Context, id, url string) error

	// MarkFailed records a provider-reported decline. The order is left
	// untouched so a fresh initiation remains possible. A payment that
	// already reached success is left as is: a stale decline observed by a
	// slow verifier must not undo a concurrently confirmed success.
	MarkFailed(ctx context.Context, id string, providerResponse []byte) error

	// ConfirmSuccess applies a verified successful payment in one atomic
	// transaction: payment status to success, order to processing/completed,
	// and the user's active cart cleared and deactivated. It locks the
	// payment row and is a no-op if the payment already succeeded, so
	// concurrent duplicate deliveries converge on the same end state.
	ConfirmSuccess(ctx context.Context, id string, providerResponse []byte) error
}

// OrderStore is the subset of order persistence the payment flows need.
type OrderStore interface {
	GetForUser(ctx context.Context, id, userID string) (*order.Order, []order.Item, error)
	SetStatus(ctx context.Context, id string, status order.Status) error
}
