package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/swiftcart/commerce-api/internal/domain/order"
	"github.com/swiftcart/commerce-api/internal/money"
)

// Config holds the payment service's policy knobs.
type Config struct {
	// Provider is the gateway name recorded on each payment.
	Provider string
	// CallbackURL is where the provider redirects and posts results.
	CallbackURL string
}

// Service implements payment initiation and reconciliation against an
// external gateway.
type Service struct {
	payments Store
	orders   OrderStore
	gateway  Gateway
	cfg      Config
	now      func() time.Time
}

// NewService creates a payment Service.
func NewService(payments Store, orders OrderStore, gateway Gateway, cfg Config) *Service {
	return &Service{
		payments: payments,
		orders:   orders,
		gateway:  gateway,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Initiation is the result of a successful payment initiation.
type Initiation struct {
	AuthorizationURL string
	Reference        string
}

// Initiate starts a new payment attempt for one of the caller's orders.
//
// The payment row is persisted before the provider call and no database
// transaction is held across the network round trip; on a gateway failure the
// payment stays initiated, ready to be verified or superseded by a retry.
func (s *Service) Initiate(ctx context.Context, userID, orderID, email string) (*Initiation, error) {
	o, _, err := s.orders.GetForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	// Expiry is a checked-on-read condition: a lapsed lock transitions the
	// order before the attempt is rejected. Only pending orders expire;
	// cancelled and paid orders keep their status.
	if o.Status == order.StatusPending && !o.PriceLockActive(s.now()) {
		if err := s.orders.SetStatus(ctx, o.ID, order.StatusExpired); err != nil {
			return nil, errors.Wrap(err, "expire order")
		}
		return nil, ErrOrderExpired
	}

	if o.Status != order.StatusPending {
		return nil, &InvalidOrderStateError{Status: o.Status}
	}

	now := s.now()
	p := &Payment{
		ID:        uuid.New().String(),
		UserID:    userID,
		OrderID:   o.ID,
		Reference: NewReference(),
		Amount:    o.TotalAmount,
		Provider:  s.cfg.Provider,
		Status:    StatusInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.payments.CreateSuperseding(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create payment")
	}

	auth, err := s.gateway.Initialize(ctx, InitializeRequest{
		Email:       email,
		AmountMinor: money.MinorUnits(p.Amount),
		Reference:   p.Reference,
		CallbackURL: s.cfg.CallbackURL,
	})
	if err != nil {
		// The payment stays initiated: a later verify can still resolve it,
		// and the next initiation supersedes it.
		return nil, err
	}

	if err := s.payments.SetAuthorizationURL(ctx, p.ID, auth.AuthorizationURL); err != nil {
		return nil, errors.Wrap(err, "save authorization url")
	}

	return &Initiation{
		AuthorizationURL: auth.AuthorizationURL,
		Reference:        p.Reference,
	}, nil
}

// CallbackResult reports the reconciled outcome for a payment reference.
type CallbackResult struct {
	OrderID string
	Status  Status
}

// HandleCallback reconciles a provider callback (or a manual verify) against
// the internal payment and order records. It is idempotent: the provider may
// deliver the same event any number of times, concurrently, and the end state
// is identical after the first successful application.
//
// A gateway failure is returned as a *GatewayError so the caller can signal
// the provider to redeliver; the payment is never marked failed on a
// communication error alone.
func (s *Service) HandleCallback(ctx context.Context, reference string) (*CallbackResult, error) {
	if reference == "" {
		return nil, ErrMissingReference
	}

	p, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	// Fast idempotency guard. The authoritative one is the row lock inside
	// ConfirmSuccess; this avoids a provider round trip on obvious replays.
	if p.Status == StatusSuccess {
		return &CallbackResult{OrderID: p.OrderID, Status: StatusSuccess}, nil
	}

	res, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, err
	}

	if !res.Success {
		if err := s.payments.MarkFailed(ctx, p.ID, res.Raw); err != nil {
			return nil, errors.Wrap(err, "mark payment failed")
		}
		return &CallbackResult{OrderID: p.OrderID, Status: StatusFailed}, nil
	}

	if err := s.payments.ConfirmSuccess(ctx, p.ID, res.Raw); err != nil {
		return nil, errors.Wrap(err, "confirm payment")
	}

	return &CallbackResult{OrderID: p.OrderID, Status: StatusSuccess}, nil
}
