package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swiftcart/commerce-api/internal/domain/cart"
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

const getActiveCartSQL = `SELECT id, user_id, is_active, created_at, updated_at
	FROM carts
	WHERE user_id = $1 AND is_active`

// insertCartSQL relies on the carts_user_active_idx partial unique index:
// concurrent first touches of a user's cart race to insert, the loser's row
// is discarded, and both resolve to the same active cart.
const insertCartSQL = `INSERT INTO carts (id, user_id, is_active)
	VALUES ($1, $2, TRUE)
	ON CONFLICT (user_id) WHERE is_active DO NOTHING`

const cartLinesSQL = `SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, p.name, p.price
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id
	WHERE ci.cart_id = $1
	ORDER BY ci.created_at, ci.id`

const getCartItemSQL = `SELECT id, cart_id, product_id, quantity
	FROM cart_items
	WHERE id = $1 AND cart_id = $2`

const findItemByProductSQL = `SELECT id, cart_id, product_id, quantity
	FROM cart_items
	WHERE cart_id = $1 AND product_id = $2`

// insertCartItemSQL folds a concurrent double-add of the same product into a
// quantity increment instead of failing on the (cart_id, product_id) unique
// constraint.
const insertCartItemSQL = `INSERT INTO cart_items (id, cart_id, product_id, quantity)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (cart_id, product_id)
	DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()`

const setItemQuantitySQL = `UPDATE cart_items
	SET quantity = $2, updated_at = now()
	WHERE id = $1`

const removeCartItemSQL = `DELETE FROM cart_items WHERE id = $1`

const clearCartItemsSQL = `DELETE FROM cart_items WHERE cart_id = $1`

// GetActive returns the user's active cart, or cart.ErrNotFound.
func (r *CartRepository) GetActive(ctx context.Context, userID string) (*cart.Cart, error) {
	return r.getActive(ctx, userID)
}

// GetOrCreateActive returns the user's active cart, creating one atomically
// if none exists.
func (r *CartRepository) GetOrCreateActive(ctx context.Context, userID string) (*cart.Cart, error) {
	c, err := r.getActive(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, cart.ErrNotFound) {
		return nil, err
	}

	if _, err := r.pool.Exec(ctx, insertCartSQL, uuid.New().String(), userID); err != nil {
		return nil, errors.Wrap(err, "create cart")
	}
	return r.getActive(ctx, userID)
}

func (r *CartRepository) getActive(ctx context.Context, userID string) (*cart.Cart, error) {
	var c cart.Cart
	err := r.pool.QueryRow(ctx, getActiveCartSQL, userID).Scan(
		&c.ID, &c.UserID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, errors.Wrap(err, "get active cart")
	}
	return &c, nil
}

// Lines returns the cart's items joined with live product name and price.
func (r *CartRepository) Lines(ctx context.Context, cartID string) ([]cart.Line, error) {
	rows, err := r.pool.Query(ctx, cartLinesSQL, cartID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart lines")
	}
	defer rows.Close()

	var lines []cart.Line
	for rows.Next() {
		var l cart.Line
		if err := rows.Scan(&l.ID, &l.CartID, &l.ProductID, &l.Quantity, &l.ProductName, &l.UnitPrice); err != nil {
			return nil, errors.Wrap(err, "scan cart line")
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate cart lines")
	}
	return lines, nil
}

// GetItem returns a single cart item scoped to the cart, or
// cart.ErrItemNotFound.
func (r *CartRepository) GetItem(ctx context.Context, cartID, itemID string) (*cart.Item, error) {
	return r.scanItem(r.pool.QueryRow(ctx, getCartItemSQL, itemID, cartID))
}

// FindItemByProduct returns the cart's line for a product, or
// cart.ErrItemNotFound.
func (r *CartRepository) FindItemByProduct(ctx context.Context, cartID, productID string) (*cart.Item, error) {
	return r.scanItem(r.pool.QueryRow(ctx, findItemByProductSQL, cartID, productID))
}

func (r *CartRepository) scanItem(row pgx.Row) (*cart.Item, error) {
	var it cart.Item
	err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrItemNotFound
		}
		return nil, errors.Wrap(err, "get cart item")
	}
	return &it, nil
}

// AddItem inserts a new line into the cart.
func (r *CartRepository) AddItem(ctx context.Context, item *cart.Item) error {
	_, err := r.pool.Exec(ctx, insertCartItemSQL, item.ID, item.CartID, item.ProductID, item.Quantity)
	if err != nil {
		return errors.Wrap(err, "insert cart item")
	}
	return nil
}

// SetItemQuantity updates a line's quantity.
func (r *CartRepository) SetItemQuantity(ctx context.Context, itemID string, quantity int) error {
	_, err := r.pool.Exec(ctx, setItemQuantitySQL, itemID, quantity)
	if err != nil {
		return errors.Wrap(err, "update cart item quantity")
	}
	return nil
}

// RemoveItem deletes a single line.
func (r *CartRepository) RemoveItem(ctx context.Context, itemID string) error {
	_, err := r.pool.Exec(ctx, removeCartItemSQL, itemID)
	if err != nil {
		return errors.Wrap(err, "remove cart item")
	}
	return nil
}

// ClearItems deletes every line in the cart.
func (r *CartRepository) ClearItems(ctx context.Context, cartID string) error {
	_, err := r.pool.Exec(ctx, clearCartItemsSQL, cartID)
	if err != nil {
		return errors.Wrap(err, "clear cart items")
	}
	return nil
}
