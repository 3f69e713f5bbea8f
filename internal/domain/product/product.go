package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. Price and Stock
// are live values owned by the catalog; order creation snapshots them and
// never reads them again for that order.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	IsPublished bool
	CreatedAt   time.Time
}

// Available reports whether the product can currently be sold.
func (p Product) Available() bool {
	return p.IsPublished && p.Stock > 0
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
}
