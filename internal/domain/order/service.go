package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/swiftcart/commerce-api/internal/money"
)

// maxNumberAttempts bounds order-number regeneration on collision. With 36^10
// numbers a second collision in a row already means something is broken.
const maxNumberAttempts = 5

// Policy holds the pricing and locking constants applied at checkout.
type Policy struct {
	// TaxRate is applied to the subtotal only, not to the shipping fee.
	TaxRate decimal.Decimal
	// ShippingFee is a flat fee per order; zero is valid.
	ShippingFee decimal.Decimal
	// LockDuration is how long the order's totals stay payable.
	LockDuration time.Duration
}

// Service is the checkout engine: it converts a mutable cart into an
// immutable, price-locked order inside one atomic transaction, and handles
// cancellation with stock restoration.
type Service struct {
	store  Store
	policy Policy
	now    func() time.Time
}

// NewService creates an order Service with the given store and policy.
func NewService(store Store, policy Policy) *Service {
	return &Service{
		store:  store,
		policy: policy,
		now:    time.Now,
	}
}

// CreateOrder validates the user's active cart, snapshots product prices and
// names, computes quantized totals, reserves stock, persists the order with a
// fresh order number and price lock, and deactivates the cart. The whole
// operation runs in a single transaction with row locks on the affected
// product rows, so concurrent checkouts for the same products serialize and
// stock never goes negative.
func (s *Service) CreateOrder(ctx context.Context, userID string, shipping ShippingInfo) (*Order, []Item, error) {
	var (
		created      *Order
		createdItems []Item
	)

	err := s.store.InTx(ctx, func(tx Tx) error {
		cartID, lines, err := tx.ActiveCart(ctx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		ids := make([]string, len(lines))
		for i, l := range lines {
			ids[i] = l.ProductID
		}

		snaps, err := tx.ProductsForUpdate(ctx, ids)
		if err != nil {
			return errors.Wrap(err, "lock products")
		}

		// Snapshot prices and names; no product read after this point may
		// influence this order.
		orderID := uuid.New().String()
		items := make([]Item, 0, len(lines))
		subtotal := decimal.Zero
		for _, l := range lines {
			snap, ok := snaps[l.ProductID]
			if !ok || !snap.IsPublished {
				return &ProductUnavailableError{ProductID: l.ProductID}
			}

			lineTotal := money.Quantize(snap.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
			items = append(items, Item{
				ID:          uuid.New().String(),
				OrderID:     orderID,
				ProductID:   l.ProductID,
				ProductName: snap.Name,
				UnitPrice:   snap.Price,
				Quantity:    l.Quantity,
				LineTotal:   lineTotal,
			})
			subtotal = subtotal.Add(lineTotal)
		}

		subtotal = money.Quantize(subtotal)
		tax := money.Quantize(subtotal.Mul(s.policy.TaxRate))
		fee := money.Quantize(s.policy.ShippingFee)
		total := money.Quantize(subtotal.Add(tax).Add(fee))

		// All-or-nothing: any failed reservation rolls back the ones before it.
		for _, l := range lines {
			if err := tx.ReserveStock(ctx, l.ProductID, l.Quantity); err != nil {
				return err
			}
		}

		now := s.now()
		o := &Order{
			ID:               orderID,
			UserID:           userID,
			Status:           StatusPending,
			PaymentStatus:    PaymentPending,
			Shipping:         shipping,
			Subtotal:         subtotal,
			Tax:              tax,
			ShippingFee:      fee,
			TotalAmount:      total,
			PriceLockedUntil: now.Add(s.policy.LockDuration),
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		for attempt := 1; ; attempt++ {
			o.OrderNumber = NewNumber()
			err := tx.Insert(ctx, o, items)
			if err == nil {
				break
			}
			if errors.Is(err, ErrOrderNumberTaken) && attempt < maxNumberAttempts {
				continue
			}
			return errors.Wrap(err, "insert order")
		}

		if err := tx.DeactivateCart(ctx, cartID); err != nil {
			return errors.Wrap(err, "deactivate cart")
		}

		created = o
		createdItems = items
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return created, createdItems, nil
}

// Cancel transitions an order to cancelled and returns every item's quantity
// to stock. Orders that are shipped, delivered, or already cancelled cannot
// be cancelled; expired orders can, since cancellation is the only path that
// releases their reservations.
func (s *Service) Cancel(ctx context.Context, userID, orderID string) (*Order, error) {
	var cancelled *Order

	err := s.store.InTx(ctx, func(tx Tx) error {
		o, items, err := tx.GetForUpdate(ctx, orderID, userID)
		if err != nil {
			return err
		}

		switch o.Status {
		case StatusShipped, StatusDelivered, StatusCancelled:
			return &InvalidTransitionError{From: o.Status}
		}

		for _, it := range items {
			if err := tx.ReleaseStock(ctx, it.ProductID, it.Quantity); err != nil {
				return errors.Wrapf(err, "release stock for product %s", it.ProductID)
			}
		}

		if err := tx.SetStatus(ctx, o.ID, StatusCancelled); err != nil {
			return errors.Wrap(err, "set status")
		}

		o.Status = StatusCancelled
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return cancelled, nil
}

// Get returns one of the user's orders with its items.
func (s *Service) Get(ctx context.Context, userID, orderID string) (*Order, []Item, error) {
	return s.store.GetForUser(ctx, orderID, userID)
}

// List returns all of the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Order, error) {
	return s.store.ListForUser(ctx, userID)
}
