package order

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusExpired    Status = "expired"
)

// PaymentStatus tracks whether the order has been paid for.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)

// Sentinel errors for order operations.
var (
	ErrNotFound         = errors.New("order not found")
	ErrCartNotFound     = errors.New("no active cart for user")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrOrderNumberTaken = errors.New("order number already taken")
)

// ProductUnavailableError indicates a cart line references a product that no
// longer exists or is no longer published.
type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is not available", e.ProductID)
}

// InsufficientStockError indicates a stock reservation would drive the
// available quantity negative.
type InsufficientStockError struct {
	ProductID string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.ProductID)
}

// InvalidTransitionError indicates the order's current status does not permit
// the requested transition.
type InvalidTransitionError struct {
	From Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order cannot be cancelled in status %s", e.From)
}

// ShippingInfo is the delivery snapshot captured on the order.
type ShippingInfo struct {
	Address    string
	City       string
	State      string
	Country    string
	PostalCode string
	Phone      string
}

// Order is an immutable snapshot of a cart at checkout time. Totals are
// computed once during creation and never recomputed; the only later status
// mutations are the explicit cancellation, expiry, and payment paths.
type Order struct {
	ID            string
	UserID        string
	OrderNumber   string
	Status        Status
	PaymentStatus PaymentStatus
	Shipping      ShippingInfo

	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	ShippingFee decimal.Decimal
	TotalAmount decimal.Decimal

	PriceLockedUntil time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PriceLockActive reports whether the order's snapshotted totals are still
// payable at the given instant.
func (o *Order) PriceLockActive(now time.Time) bool {
	return !now.After(o.PriceLockedUntil)
}

// Item is a child line of an order: a snapshot of product name and unit price
// taken at order creation, never re-read from the live product.
type Item struct {
	ID          string
	OrderID     string
	ProductID   string
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
	LineTotal   decimal.Decimal
}

// numberPrefix plus ten random charset characters form an order number like
// ORD-SWC-4K7Q2MZP1A.
const (
	numberPrefix  = "ORD-SWC-"
	numberLen     = 10
	numberCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewNumber generates a random human-readable order number. Uniqueness is
// enforced by the store; callers regenerate on collision.
func NewNumber() string {
	buf := make([]byte, numberLen)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	for i, b := range buf {
		buf[i] = numberCharset[int(b)%len(numberCharset)]
	}
	return numberPrefix + string(buf)
}

// CartLine is a cart item as read inside the checkout transaction.
type CartLine struct {
	ProductID string
	Quantity  int
}

// Snapshot is the product state read under row lock during checkout.
type Snapshot struct {
	Name        string
	Price       decimal.Decimal
	Stock       int
	IsPublished bool
}

// Tx is the set of operations available inside one atomic order transaction.
// Implementations scope every call to a single database transaction;
// ActiveCart, ProductsForUpdate, and GetForUpdate take row-level locks so
// concurrent checkouts, cancellations, and callbacks serialize instead of
// losing updates.
type Tx interface {
	// ActiveCart returns the user's active cart and its lines, locking the
	// cart row. Returns ErrCartNotFound when the user has no active cart.
	ActiveCart(ctx context.Context, userID string) (cartID string, lines []CartLine, err error)

	// ProductsForUpdate locks and returns the product rows for the given ids.
	// Missing ids are absent from the result rather than an error.
	ProductsForUpdate(ctx context.Context, ids []string) (map[string]Snapshot, error)

	// ReserveStock decrements available stock, failing with
	// InsufficientStockError instead of going negative.
	ReserveStock(ctx context.Context, productID string, qty int) error

	// ReleaseStock returns previously reserved stock.
	ReleaseStock(ctx context.Context, productID string, qty int) error

	// Insert persists the order and its items. Returns ErrOrderNumberTaken
	// when the order number collides, without aborting the transaction.
	Insert(ctx context.Context, o *Order, items []Item) error

	// GetForUpdate returns the user's order and items, locking the order row.
	GetForUpdate(ctx context.Context, id, userID string) (*Order, []Item, error)

	// SetStatus updates the order's fulfilment status.
	SetStatus(ctx context.Context, id string, status Status) error

	// DeactivateCart marks the cart inactive. Items are kept for audit.
	DeactivateCart(ctx context.Context, cartID string) error
}

// Store defines persistence operations for orders.
type Store interface {
	// InTx runs fn inside a single atomic transaction, committing on nil and
	// rolling back on error.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetForUser(ctx context.Context, id, userID string) (*Order, []Item, error)
	ListForUser(ctx context.Context, userID string) ([]Order, error)
	SetStatus(ctx context.Context, id string, status Status) error
}
