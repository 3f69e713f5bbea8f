package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swiftcart/commerce-api/internal/domain/order"
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL. Transactions run at
// repeatable read; product, cart, and order rows touched by a transaction are
// locked with FOR UPDATE so concurrent checkouts, cancellations, and payment
// confirmations serialize per row instead of losing updates.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `id, user_id, order_number, status, payment_status,
	shipping_address, shipping_city, shipping_state, shipping_country, shipping_postal_code, phone,
	subtotal, tax, shipping_fee, total_amount, price_locked_until, created_at, updated_at`

const activeCartForUpdateSQL = `SELECT id FROM carts
	WHERE user_id = $1 AND is_active
	FOR UPDATE`

const cartLinesForCheckoutSQL = `SELECT product_id, quantity
	FROM cart_items
	WHERE cart_id = $1
	ORDER BY product_id`

// productsForUpdateSQL orders by id so concurrent checkouts lock product rows
// in the same order and cannot deadlock each other.
const productsForUpdateSQL = `SELECT id, name, price, stock, is_published
	FROM products
	WHERE id = ANY($1)
	ORDER BY id
	FOR UPDATE`

const reserveStockSQL = `UPDATE products
	SET stock = stock - $2
	WHERE id = $1 AND stock >= $2`

const releaseStockSQL = `UPDATE products
	SET stock = stock + $2
	WHERE id = $1`

// insertOrderSQL absorbs order-number collisions with ON CONFLICT DO NOTHING
// so the enclosing transaction survives a regeneration retry.
const insertOrderSQL = `INSERT INTO orders (` + orderColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	ON CONFLICT (order_number) DO NOTHING`

const insertOrderItemSQL = `INSERT INTO order_items (id, order_id, product_id, product_name, unit_price, quantity, line_total)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

const getOrderForUserSQL = `SELECT ` + orderColumns + `
	FROM orders
	WHERE id = $1 AND user_id = $2`

const getOrderForUpdateSQL = getOrderForUserSQL + `
	FOR UPDATE`

const listOrdersForUserSQL = `SELECT ` + orderColumns + `
	FROM orders
	WHERE user_id = $1
	ORDER BY created_at DESC, id`

const orderItemsSQL = `SELECT id, order_id, product_id, product_name, unit_price, quantity, line_total
	FROM order_items
	WHERE order_id = $1
	ORDER BY product_id`

const setOrderStatusSQL = `UPDATE orders
	SET status = $2, updated_at = now()
	WHERE id = $1`

const deactivateCartSQL = `UPDATE carts
	SET is_active = FALSE, updated_at = now()
	WHERE id = $1`

// InTx runs fn inside one repeatable-read transaction, retrying on
// serialization failures.
func (s *OrderStore) InTx(ctx context.Context, fn func(tx order.Tx) error) error {
	return withTx(ctx, s.pool, pgx.RepeatableRead, func(tx pgx.Tx) error {
		return fn(&orderTx{tx: tx})
	})
}

// GetForUser returns the user's order with its items, or order.ErrNotFound.
func (s *OrderStore) GetForUser(ctx context.Context, id, userID string) (*order.Order, []order.Item, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, getOrderForUserSQL, id, userID))
	if err != nil {
		return nil, nil, err
	}
	items, err := queryItems(ctx, s.pool, id)
	if err != nil {
		return nil, nil, err
	}
	return o, items, nil
}

// ListForUser returns all of the user's orders, newest first.
func (s *OrderStore) ListForUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := s.pool.Query(ctx, listOrdersForUserSQL, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate orders")
	}
	return out, nil
}

// SetStatus updates an order's status outside any larger transaction (used
// for the passive expiry transition).
func (s *OrderStore) SetStatus(ctx context.Context, id string, status order.Status) error {
	return setStatus(ctx, s.pool, id, status)
}

// orderTx implements order.Tx over a single pgx transaction.
type orderTx struct {
	tx pgx.Tx
}

var _ order.Tx = (*orderTx)(nil)

func (t *orderTx) ActiveCart(ctx context.Context, userID string) (string, []order.CartLine, error) {
	var cartID string
	if err := t.tx.QueryRow(ctx, activeCartForUpdateSQL, userID).Scan(&cartID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, order.ErrCartNotFound
		}
		return "", nil, errors.Wrap(err, "lock active cart")
	}

	rows, err := t.tx.Query(ctx, cartLinesForCheckoutSQL, cartID)
	if err != nil {
		return "", nil, errors.Wrap(err, "read cart lines")
	}
	defer rows.Close()

	var lines []order.CartLine
	for rows.Next() {
		var l order.CartLine
		if err := rows.Scan(&l.ProductID, &l.Quantity); err != nil {
			return "", nil, errors.Wrap(err, "scan cart line")
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return "", nil, errors.Wrap(err, "iterate cart lines")
	}
	return cartID, lines, nil
}

func (t *orderTx) ProductsForUpdate(ctx context.Context, ids []string) (map[string]order.Snapshot, error) {
	rows, err := t.tx.Query(ctx, productsForUpdateSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "lock products")
	}
	defer rows.Close()

	snaps := make(map[string]order.Snapshot, len(ids))
	for rows.Next() {
		var (
			id   string
			snap order.Snapshot
		)
		if err := rows.Scan(&id, &snap.Name, &snap.Price, &snap.Stock, &snap.IsPublished); err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		snaps[id] = snap
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate products")
	}
	return snaps, nil
}

func (t *orderTx) ReserveStock(ctx context.Context, productID string, qty int) error {
	tag, err := t.tx.Exec(ctx, reserveStockSQL, productID, qty)
	if err != nil {
		return errors.Wrapf(err, "reserve stock for product %s", productID)
	}
	if tag.RowsAffected() == 0 {
		return &order.InsufficientStockError{ProductID: productID}
	}
	return nil
}

func (t *orderTx) ReleaseStock(ctx context.Context, productID string, qty int) error {
	if _, err := t.tx.Exec(ctx, releaseStockSQL, productID, qty); err != nil {
		return errors.Wrapf(err, "release stock for product %s", productID)
	}
	return nil
}

func (t *orderTx) Insert(ctx context.Context, o *order.Order, items []order.Item) error {
	tag, err := t.tx.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, o.OrderNumber, o.Status, o.PaymentStatus,
		o.Shipping.Address, o.Shipping.City, o.Shipping.State, o.Shipping.Country, o.Shipping.PostalCode, o.Shipping.Phone,
		o.Subtotal, o.Tax, o.ShippingFee, o.TotalAmount, o.PriceLockedUntil, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert order %q", o.ID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrOrderNumberTaken
	}

	for _, it := range items {
		_, err := t.tx.Exec(ctx, insertOrderItemSQL,
			it.ID, it.OrderID, it.ProductID, it.ProductName, it.UnitPrice, it.Quantity, it.LineTotal,
		)
		if err != nil {
			return errors.Wrapf(err, "insert order item for product %s", it.ProductID)
		}
	}
	return nil
}

func (t *orderTx) GetForUpdate(ctx context.Context, id, userID string) (*order.Order, []order.Item, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, getOrderForUpdateSQL, id, userID))
	if err != nil {
		return nil, nil, err
	}
	items, err := queryItems(ctx, t.tx, id)
	if err != nil {
		return nil, nil, err
	}
	return o, items, nil
}

func (t *orderTx) SetStatus(ctx context.Context, id string, status order.Status) error {
	return setStatus(ctx, t.tx, id, status)
}

func (t *orderTx) DeactivateCart(ctx context.Context, cartID string) error {
	if _, err := t.tx.Exec(ctx, deactivateCartSQL, cartID); err != nil {
		return errors.Wrapf(err, "deactivate cart %q", cartID)
	}
	return nil
}

func setStatus(ctx context.Context, q querier, id string, status order.Status) error {
	tag, err := q.Exec(ctx, setOrderStatusSQL, id, status)
	if err != nil {
		return errors.Wrapf(err, "set order %q status", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.OrderNumber, &o.Status, &o.PaymentStatus,
		&o.Shipping.Address, &o.Shipping.City, &o.Shipping.State, &o.Shipping.Country, &o.Shipping.PostalCode, &o.Shipping.Phone,
		&o.Subtotal, &o.Tax, &o.ShippingFee, &o.TotalAmount, &o.PriceLockedUntil, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan order")
	}
	return &o, nil
}

func queryItems(ctx context.Context, q querier, orderID string) ([]order.Item, error) {
	rows, err := q.Query(ctx, orderItemsSQL, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "list order items")
	}
	defer rows.Close()

	var items []order.Item
	for rows.Next() {
		var it order.Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.UnitPrice, &it.Quantity, &it.LineTotal); err != nil {
			return nil, errors.Wrap(err, "scan order item")
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate order items")
	}
	return items, nil
}
