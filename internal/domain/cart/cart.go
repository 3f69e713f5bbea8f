package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/swiftcart/commerce-api/internal/money"
)

// Sentinel errors for cart operations.
var (
	ErrNotFound     = errors.New("cart not found")
	ErrItemNotFound = errors.New("cart item not found")
)

// Cart holds a user's mutable line items prior to checkout. Each user has at
// most one active cart; checkout deactivates it instead of deleting it so the
// audit history survives.
type Cart struct {
	ID        string
	UserID    string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is a single product line in a cart. Quantity is always >= 1; setting
// it to zero removes the line.
type Item struct {
	ID        string
	CartID    string
	ProductID string
	Quantity  int
}

// Line is an item joined with its live product data, used for cart views.
type Line struct {
	Item
	ProductName string
	UnitPrice   decimal.Decimal
}

// Total returns the quantized line total at the product's current price.
// This is a view value only; orders snapshot their own totals.
func (l Line) Total() decimal.Decimal {
	return money.Quantize(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
}

// View is the cart representation returned to callers: lines with current
// prices plus derived subtotal and item count.
type View struct {
	Cart     Cart
	Lines    []Line
	Subtotal decimal.Decimal
	Count    int
}

// Repository defines persistence operations for carts and their items.
// GetOrCreateActive must be atomic (create-if-absent), so two concurrent
// first touches of a user's cart resolve to the same row.
type Repository interface {
	GetActive(ctx context.Context, userID string) (*Cart, error)
	GetOrCreateActive(ctx context.Context, userID string) (*Cart, error)
	Lines(ctx context.Context, cartID string) ([]Line, error)
	GetItem(ctx context.Context, cartID, itemID string) (*Item, error)
	FindItemByProduct(ctx context.Context, cartID, productID string) (*Item, error)
	AddItem(ctx context.Context, item *Item) error
	SetItemQuantity(ctx context.Context, itemID string, quantity int) error
	RemoveItem(ctx context.Context, itemID string) error
	ClearItems(ctx context.Context, cartID string) error
}
