package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/swiftcart/commerce-api/internal/domain/product"
	"github.com/swiftcart/commerce-api/internal/money"
)

// InsufficientStockError indicates the requested quantity exceeds the
// product's currently available stock. The check here is advisory; the
// authoritative reservation happens at checkout.
type InsufficientStockError struct {
	ProductID string
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s, available quantity is %d", e.ProductID, e.Available)
}

// ProductUnavailableError indicates the product does not exist or is not
// published for sale.
type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is not available", e.ProductID)
}

// Service implements cart mutations with availability checks against the
// live catalog.
type Service struct {
	carts    Repository
	products product.Repository
}

// NewService creates a cart Service.
func NewService(carts Repository, products product.Repository) *Service {
	return &Service{
		carts:    carts,
		products: products,
	}
}

// Get returns the user's active cart view, creating an empty active cart if
// none exists yet.
func (s *Service) Get(ctx context.Context, userID string) (*View, error) {
	c, err := s.carts.GetOrCreateActive(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get or create cart")
	}
	return s.view(ctx, c)
}

// AddItem adds a product to the user's active cart or increases the quantity
// of an existing line. The product must be published and the resulting
// quantity must not exceed its available stock.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (*View, error) {
	if quantity < 1 {
		quantity = 1
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, &ProductUnavailableError{ProductID: productID}
		}
		return nil, errors.Wrapf(err, "get product %s", productID)
	}
	if !p.Available() {
		return nil, &ProductUnavailableError{ProductID: productID}
	}

	c, err := s.carts.GetOrCreateActive(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get or create cart")
	}

	existing, err := s.carts.FindItemByProduct(ctx, c.ID, productID)
	switch {
	case err == nil:
		next := existing.Quantity + quantity
		if next > p.Stock {
			return nil, &InsufficientStockError{ProductID: productID, Available: p.Stock}
		}
		if err := s.carts.SetItemQuantity(ctx, existing.ID, next); err != nil {
			return nil, errors.Wrap(err, "update cart item")
		}
	case errors.Is(err, ErrItemNotFound):
		if quantity > p.Stock {
			return nil, &InsufficientStockError{ProductID: productID, Available: p.Stock}
		}
		item := &Item{
			ID:        uuid.New().String(),
			CartID:    c.ID,
			ProductID: productID,
			Quantity:  quantity,
		}
		if err := s.carts.AddItem(ctx, item); err != nil {
			return nil, errors.Wrap(err, "add cart item")
		}
	default:
		return nil, errors.Wrap(err, "find cart item")
	}

	return s.view(ctx, c)
}

// UpdateItem sets the quantity of a cart line. A quantity of zero or less
// removes the line.
func (s *Service) UpdateItem(ctx context.Context, userID, itemID string, quantity int) (*View, error) {
	c, err := s.carts.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	item, err := s.carts.GetItem(ctx, c.ID, itemID)
	if err != nil {
		return nil, err
	}

	if quantity <= 0 {
		if err := s.carts.RemoveItem(ctx, item.ID); err != nil {
			return nil, errors.Wrap(err, "remove cart item")
		}
		return s.view(ctx, c)
	}

	p, err := s.products.GetByID(ctx, item.ProductID)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %s", item.ProductID)
	}
	if quantity > p.Stock {
		return nil, &InsufficientStockError{ProductID: item.ProductID, Available: p.Stock}
	}

	if err := s.carts.SetItemQuantity(ctx, item.ID, quantity); err != nil {
		return nil, errors.Wrap(err, "update cart item")
	}
	return s.view(ctx, c)
}

// RemoveItem deletes a single line from the user's active cart.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID string) (*View, error) {
	c, err := s.carts.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	item, err := s.carts.GetItem(ctx, c.ID, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.carts.RemoveItem(ctx, item.ID); err != nil {
		return nil, errors.Wrap(err, "remove cart item")
	}
	return s.view(ctx, c)
}

// Clear removes all lines from the user's active cart. The cart itself stays
// active.
func (s *Service) Clear(ctx context.Context, userID string) (*View, error) {
	c, err := s.carts.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.carts.ClearItems(ctx, c.ID); err != nil {
		return nil, errors.Wrap(err, "clear cart")
	}
	return s.view(ctx, c)
}

func (s *Service) view(ctx context.Context, c *Cart) (*View, error) {
	lines, err := s.carts.Lines(ctx, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart lines")
	}

	subtotal := decimal.Zero
	count := 0
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total())
		count += l.Quantity
	}

	return &View{
		Cart:     *c,
		Lines:    lines,
		Subtotal: money.Quantize(subtotal),
		Count:    count,
	}, nil
}
