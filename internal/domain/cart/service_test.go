package cart

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiftcart/commerce-api/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID map[string]*product.Product
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

type memCartRepo struct {
	products *mockProductRepo

	cart  *Cart
	items map[string]*Item
	seq   int
}

func (m *memCartRepo) GetActive(_ context.Context, userID string) (*Cart, error) {
	if m.cart == nil || m.cart.UserID != userID {
		return nil, ErrNotFound
	}
	return m.cart, nil
}

func (m *memCartRepo) GetOrCreateActive(_ context.Context, userID string) (*Cart, error) {
	if m.cart == nil {
		m.cart = &Cart{ID: "cart-1", UserID: userID, IsActive: true}
	}
	return m.cart, nil
}

func (m *memCartRepo) Lines(_ context.Context, cartID string) ([]Line, error) {
	var lines []Line
	for _, it := range m.items {
		if it.CartID != cartID {
			continue
		}
		p := m.products.byID[it.ProductID]
		lines = append(lines, Line{
			Item:        *it,
			ProductName: p.Name,
			UnitPrice:   p.Price,
		})
	}
	return lines, nil
}

func (m *memCartRepo) GetItem(_ context.Context, cartID, itemID string) (*Item, error) {
	it, ok := m.items[itemID]
	if !ok || it.CartID != cartID {
		return nil, ErrItemNotFound
	}
	return it, nil
}

func (m *memCartRepo) FindItemByProduct(_ context.Context, cartID, productID string) (*Item, error) {
	for _, it := range m.items {
		if it.CartID == cartID && it.ProductID == productID {
			return it, nil
		}
	}
	return nil, ErrItemNotFound
}

func (m *memCartRepo) AddItem(_ context.Context, item *Item) error {
	m.seq++
	m.items[item.ID] = item
	return nil
}

func (m *memCartRepo) SetItemQuantity(_ context.Context, itemID string, quantity int) error {
	m.items[itemID].Quantity = quantity
	return nil
}

func (m *memCartRepo) RemoveItem(_ context.Context, itemID string) error {
	delete(m.items, itemID)
	return nil
}

func (m *memCartRepo) ClearItems(_ context.Context, cartID string) error {
	for id, it := range m.items {
		if it.CartID == cartID {
			delete(m.items, id)
		}
	}
	return nil
}

// --- Helpers ---

func newTestService(products ...product.Product) (*Service, *memCartRepo) {
	byID := make(map[string]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	pr := &mockProductRepo{byID: byID}
	cr := &memCartRepo{products: pr, items: make(map[string]*Item)}
	return NewService(cr, pr), cr
}

func published(id, name, price string, stock int) product.Product {
	return product.Product{
		ID:          id,
		Name:        name,
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
		IsPublished: true,
	}
}

// --- Tests ---

func TestGet_CreatesEmptyCart(t *testing.T) {
	svc, repo := newTestService()

	v, err := svc.Get(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "cart-1", v.Cart.ID)
	assert.Empty(t, v.Lines)
	assert.Equal(t, 0, v.Count)
	assert.True(t, v.Subtotal.IsZero())
	require.NotNil(t, repo.cart)
}

func TestAddItem_NewLine(t *testing.T) {
	svc, _ := newTestService(published("p1", "Widget", "19.99", 10))

	v, err := svc.AddItem(context.Background(), "user-1", "p1", 2)
	require.NoError(t, err)

	require.Len(t, v.Lines, 1)
	assert.Equal(t, 2, v.Lines[0].Quantity)
	assert.Equal(t, "39.98", v.Subtotal.String())
	assert.Equal(t, 2, v.Count)
}

func TestAddItem_IncrementsExistingLine(t *testing.T) {
	svc, _ := newTestService(published("p1", "Widget", "10.00", 10))

	_, err := svc.AddItem(context.Background(), "user-1", "p1", 2)
	require.NoError(t, err)

	v, err := svc.AddItem(context.Background(), "user-1", "p1", 3)
	require.NoError(t, err)

	require.Len(t, v.Lines, 1)
	assert.Equal(t, 5, v.Lines[0].Quantity)
}

func TestAddItem_DefaultsQuantityToOne(t *testing.T) {
	svc, _ := newTestService(published("p1", "Widget", "10.00", 10))

	v, err := svc.AddItem(context.Background(), "user-1", "p1", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Count)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AddItem(context.Background(), "user-1", "ghost", 1)

	var puErr *ProductUnavailableError
	require.ErrorAs(t, err, &puErr)
	assert.Equal(t, "ghost", puErr.ProductID)
}

func TestAddItem_UnpublishedProduct(t *testing.T) {
	p := published("p1", "Widget", "10.00", 10)
	p.IsPublished = false
	svc, _ := newTestService(p)

	_, err := svc.AddItem(context.Background(), "user-1", "p1", 1)

	var puErr *ProductUnavailableError
	require.ErrorAs(t, err, &puErr)
}

func TestAddItem_ExceedsStock(t *testing.T) {
	svc, _ := newTestService(published("p1", "Widget", "10.00", 3))

	_, err := svc.AddItem(context.Background(), "user-1", "p1", 4)

	var isErr *InsufficientStockError
	require.ErrorAs(t, err, &isErr)
	assert.Equal(t, 3, isErr.Available)
}

func TestAddItem_IncrementExceedsStock(t *testing.T) {
	svc, _ := newTestService(published("p1", "Widget", "10.00", 3))

	_, err := svc.AddItem(context.Background(), "user-1", "p1", 2)
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), "user-1", "p1", 2)

	var isErr *InsufficientStockError
	require.ErrorAs(t, err, &isErr)
}

func TestUpdateItem_SetsQuantity(t *testing.T) {
	svc, _ := newTestService(published("p1", "Widget", "10.00", 10))

	v, err := svc.AddItem(context.Background(), "user-1", "p1", 1)
	require.NoError(t, err)
	itemID := v.Lines[0].ID

	v, err = svc.UpdateItem(context.Background(), "user-1", itemID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, v.Lines[0].Quantity)
}

func TestUpdateItem_ZeroRemovesLine(t *testing.T) {
	svc, _ := newTestService(published("p1", "Widget", "10.00", 10))

	v, err := svc.AddItem(context.Background(), "user-1", "p1", 2)
	require.NoError(t, err)
	itemID := v.Lines[0].ID

	v, err = svc.UpdateItem(context.Background(), "user-1", itemID, 0)
	require.NoError(t, err)
	assert.Empty(t, v.Lines)
}

func TestUpdateItem_UnknownItem(t *testing.T) {
	svc, _ := newTestService(published("p1", "Widget", "10.00", 10))

	_, err := svc.AddItem(context.Background(), "user-1", "p1", 1)
	require.NoError(t, err)

	_, err = svc.UpdateItem(context.Background(), "user-1", "missing", 2)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestUpdateItem_NoActiveCart(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.UpdateItem(context.Background(), "user-1", "item-1", 2)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveItem(t *testing.T) {
	svc, _ := newTestService(
		published("p1", "Widget", "10.00", 10),
		published("p2", "Gadget", "20.00", 10),
	)

	v, err := svc.AddItem(context.Background(), "user-1", "p1", 1)
	require.NoError(t, err)
	itemID := v.Lines[0].ID
	_, err = svc.AddItem(context.Background(), "user-1", "p2", 1)
	require.NoError(t, err)

	v, err = svc.RemoveItem(context.Background(), "user-1", itemID)
	require.NoError(t, err)
	require.Len(t, v.Lines, 1)
	assert.Equal(t, "p2", v.Lines[0].ProductID)
}

func TestClear(t *testing.T) {
	svc, _ := newTestService(published("p1", "Widget", "10.00", 10))

	_, err := svc.AddItem(context.Background(), "user-1", "p1", 3)
	require.NoError(t, err)

	v, err := svc.Clear(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, v.Lines)
	assert.True(t, v.Cart.IsActive)
}

func TestView_SubtotalQuantized(t *testing.T) {
	svc, _ := newTestService(
		published("p1", "Widget", "19.99", 10),
		published("p2", "Gadget", "0.05", 10),
	)

	_, err := svc.AddItem(context.Background(), "user-1", "p1", 3)
	require.NoError(t, err)
	v, err := svc.AddItem(context.Background(), "user-1", "p2", 3)
	require.NoError(t, err)

	assert.Equal(t, "60.12", v.Subtotal.String())
	assert.Equal(t, 6, v.Count)
}
