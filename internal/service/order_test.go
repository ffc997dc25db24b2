package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/teashop/internal/models"
	"github.com/Skotchmaster/teashop/internal/repo"
	"github.com/Skotchmaster/teashop/internal/transport"
	"github.com/Skotchmaster/teashop/pkg/events"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, topic, key string, ev events.Event) error {
	return m.Called(topic, key, ev.Type).Error(0)
}

func (m *mockPublisher) Close() error { return nil }

type mapCache struct {
	orders  map[uint]models.Order
	deleted []uint
}

func newMapCache() *mapCache { return &mapCache{orders: map[uint]models.Order{}} }

func (c *mapCache) Get(_ context.Context, id uint) (*models.Order, error) {
	o, ok := c.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (c *mapCache) Set(_ context.Context, o *models.Order) error {
	c.orders[o.ID] = *o
	return nil
}

func (c *mapCache) Delete(_ context.Context, id uint) error {
	delete(c.orders, id)
	c.deleted = append(c.deleted, id)
	return nil
}

func customer() transport.CustomerInfo {
	return transport.CustomerInfo{Name: "Lan Nguyen", Phone: "0901 234 567", Address: "12 Tea Street"}
}

func TestOrderService_CreateOrder_Stock(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	p := seedProduct(t, r, "Brown Sugar Milk Tea", "4.50", 5)
	variantID := p.Variants[0].ID

	pub := &mockPublisher{}
	pub.On("Publish", events.TopicOrders, mock.Anything, "order_created").Return(nil).Once()
	svc := &OrderService{Repo: r, Events: pub}

	_, err := svc.CreateOrder(ctx, transport.CreateOrderRequest{
		Items:        []transport.OrderItemInput{{ProductID: p.ID, VariantID: &variantID, Quantity: 6}},
		CustomerInfo: customer(),
	}, nil)
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), `Variant "S" only has 5 items in stock, but 6 were requested`)
	assert.Equal(t, 5, stockOf(t, r, variantID))

	order, err := svc.CreateOrder(ctx, transport.CreateOrderRequest{
		Items:        []transport.OrderItemInput{{ProductID: p.ID, VariantID: &variantID, Quantity: 3}},
		CustomerInfo: customer(),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stockOf(t, r, variantID))
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "0901234567", order.CustomerPhone)
	assert.Nil(t, order.UserID)
	assert.True(t, decimal.RequireFromString("13.50").Equal(order.TotalAmount), order.TotalAmount.String())
	require.Len(t, order.Items, 1)
	assert.Equal(t, "S", order.Items[0].VariantSize)
	assert.Equal(t, "Brown Sugar Milk Tea", order.Items[0].ProductName)

	pub.AssertExpectations(t)
}

func TestOrderService_CreateOrder_RepeatedVariantSharesStock(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	p := seedProduct(t, r, "Jasmine Green Tea", "3.00", 5)
	variantID := p.Variants[0].ID
	svc := &OrderService{Repo: r, Events: events.Noop{}}

	_, err := svc.CreateOrder(ctx, transport.CreateOrderRequest{
		Items: []transport.OrderItemInput{
			{ProductID: p.ID, VariantID: &variantID, Quantity: 3},
			{ProductID: p.ID, VariantID: &variantID, Quantity: 3},
		},
		CustomerInfo: customer(),
	}, nil)
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 5, stockOf(t, r, variantID))

	order, err := svc.CreateOrder(ctx, transport.CreateOrderRequest{
		Items: []transport.OrderItemInput{
			{ProductID: p.ID, VariantID: &variantID, Quantity: 2},
			{ProductID: p.ID, VariantID: &variantID, Quantity: 3},
		},
		CustomerInfo: customer(),
	}, nil)
	require.NoError(t, err)
	assert.Len(t, order.Items, 2)
	assert.Equal(t, 0, stockOf(t, r, variantID))
}

func TestOrderService_CreateOrder_UsesCatalogPrices(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	p := seedProduct(t, r, "Taro Milk Tea", "4.50", 10, 10)
	m := p.Variants[1].ID

	var req transport.CreateOrderRequest
	body := `{
		"items": [
			{"product_id": ` + jsonNum(p.ID) + `, "variant_id": ` + jsonNum(m) + `, "quantity": 2, "price": 0.01},
			{"product_id": ` + jsonNum(p.ID) + `, "quantity": 1, "price": 0.01}
		],
		"customer_info": {"name": "Minh", "phone": "09012345678"},
		"total_amount": 0.03
	}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	svc := &OrderService{Repo: r}
	order, err := svc.CreateOrder(ctx, req, nil)
	require.NoError(t, err)

	// (4.50 + 1) * 2 + 4.50
	assert.True(t, decimal.RequireFromString("15.50").Equal(order.TotalAmount), order.TotalAmount.String())
	assert.True(t, decimal.RequireFromString("5.50").Equal(order.Items[0].Price))
	assert.True(t, decimal.RequireFromString("4.50").Equal(order.Items[1].Price))
	assert.Equal(t, 8, stockOf(t, r, m))
}

func jsonNum(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestOrderService_CreateOrder_RollsBackOnLateFailure(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	first := seedProduct(t, r, "Oolong", "3.00", 10)
	second := seedProduct(t, r, "Matcha", "5.00", 1)

	svc := &OrderService{Repo: r}
	_, err := svc.CreateOrder(ctx, transport.CreateOrderRequest{
		Items: []transport.OrderItemInput{
			{ProductID: first.ID, VariantID: &first.Variants[0].ID, Quantity: 4},
			{ProductID: second.ID, VariantID: &second.Variants[0].ID, Quantity: 2},
		},
		CustomerInfo: customer(),
	}, nil)
	require.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, 10, stockOf(t, r, first.Variants[0].ID))
	assert.Equal(t, 1, stockOf(t, r, second.Variants[0].ID))

	page, err := svc.ListOrders(ctx, repo.OrderFilter{}, "", 0)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestOrderService_CreateOrder_Rejects(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	p := seedProduct(t, r, "Jasmine", "3.00", 10)
	other := seedProduct(t, r, "Peach", "3.00", 10)

	sold := seedProduct(t, r, "Sold Out Chips", "2.00")
	sold.InStock = false
	require.NoError(t, r.UpdateProduct(ctx, sold, nil, nil))

	svc := &OrderService{Repo: r}
	item := func(productID uint, variantID *uint, qty int) []transport.OrderItemInput {
		return []transport.OrderItemInput{{ProductID: productID, VariantID: variantID, Quantity: qty}}
	}

	tests := []struct {
		name    string
		req     transport.CreateOrderRequest
		wantMsg string
	}{
		{name: "short name", req: transport.CreateOrderRequest{Items: item(p.ID, nil, 1), CustomerInfo: transport.CustomerInfo{Name: "A", Phone: "0901234567"}}, wantMsg: "customer name"},
		{name: "bad phone", req: transport.CreateOrderRequest{Items: item(p.ID, nil, 1), CustomerInfo: transport.CustomerInfo{Name: "Lan", Phone: "12345"}}, wantMsg: "phone number"},
		{name: "bad email", req: transport.CreateOrderRequest{Items: item(p.ID, nil, 1), CustomerInfo: transport.CustomerInfo{Name: "Lan", Phone: "0901234567", Email: "lan@"}}, wantMsg: "invalid email"},
		{name: "no items", req: transport.CreateOrderRequest{CustomerInfo: customer()}, wantMsg: "at least one item"},
		{name: "zero quantity", req: transport.CreateOrderRequest{Items: item(p.ID, nil, 0), CustomerInfo: customer()}, wantMsg: "quantity must be > 0"},
		{name: "missing product id", req: transport.CreateOrderRequest{Items: item(0, nil, 1), CustomerInfo: customer()}, wantMsg: "product_id required"},
		{name: "unknown product", req: transport.CreateOrderRequest{Items: item(9999, nil, 1), CustomerInfo: customer()}, wantMsg: "Product with ID 9999 not found"},
		{name: "out of stock product", req: transport.CreateOrderRequest{Items: item(sold.ID, nil, 1), CustomerInfo: customer()}, wantMsg: `Product "Sold Out Chips" is out of stock`},
		{name: "unknown variant", req: transport.CreateOrderRequest{Items: item(p.ID, ptr(uint(9999)), 1), CustomerInfo: customer()}, wantMsg: "Variant with ID 9999 not found"},
		{name: "foreign variant", req: transport.CreateOrderRequest{Items: item(p.ID, &other.Variants[0].ID, 1), CustomerInfo: customer()}, wantMsg: "does not belong to product"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(ctx, tt.req, nil)
			require.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	assert.Equal(t, 10, stockOf(t, r, p.Variants[0].ID))
	assert.Equal(t, 10, stockOf(t, r, other.Variants[0].ID))
}

func TestOrderService_GetOrder_Access(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	p := seedProduct(t, r, "Jasmine", "3.00", 10)

	cache := newMapCache()
	svc := &OrderService{Repo: r, Cache: cache}
	owner := uint(7)

	guest, err := svc.CreateOrder(ctx, transport.CreateOrderRequest{Items: []transport.OrderItemInput{{ProductID: p.ID, Quantity: 1}}, CustomerInfo: customer()}, nil)
	require.NoError(t, err)
	mine, err := svc.CreateOrder(ctx, transport.CreateOrderRequest{Items: []transport.OrderItemInput{{ProductID: p.ID, Quantity: 1}}, CustomerInfo: customer()}, &owner)
	require.NoError(t, err)

	got, err := svc.GetOrder(ctx, guest.ID, Caller{})
	require.NoError(t, err)
	assert.Equal(t, guest.ID, got.ID)
	assert.Contains(t, cache.orders, guest.ID)

	_, err = svc.GetOrder(ctx, mine.ID, Caller{})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.GetOrder(ctx, mine.ID, Caller{UserID: 8, Role: string(models.RoleCustomer)})
	assert.ErrorIs(t, err, ErrNotFound)

	got, err = svc.GetOrder(ctx, mine.ID, Caller{UserID: owner, Role: string(models.RoleCustomer)})
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)
	_, err = svc.GetOrder(ctx, mine.ID, Caller{UserID: 1, Role: string(models.RoleAdmin)})
	require.NoError(t, err)

	_, err = svc.GetOrder(ctx, 424242, Caller{Role: string(models.RoleAdmin)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrderService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	p := seedProduct(t, r, "Jasmine", "3.00", 10)
	variantID := p.Variants[0].ID

	cache := newMapCache()
	pub := &mockPublisher{}
	pub.On("Publish", events.TopicOrders, mock.Anything, mock.Anything).Return(nil)
	svc := &OrderService{Repo: r, Cache: cache, Events: pub}
	admin := Caller{UserID: 1, Role: string(models.RoleAdmin)}

	newOrder := func(userID *uint) *models.Order {
		o, err := svc.CreateOrder(ctx, transport.CreateOrderRequest{
			Items:        []transport.OrderItemInput{{ProductID: p.ID, VariantID: &variantID, Quantity: 2}},
			CustomerInfo: customer(),
		}, userID)
		require.NoError(t, err)
		return o
	}

	t.Run("admin walks the happy path", func(t *testing.T) {
		o := newOrder(nil)
		_, err := svc.GetOrder(ctx, o.ID, admin)
		require.NoError(t, err)

		got, err := svc.UpdateStatus(ctx, o.ID, models.OrderStatusConfirmed, admin)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusConfirmed, got.Status)
		assert.Contains(t, cache.deleted, o.ID)

		got, err = svc.UpdateStatus(ctx, o.ID, models.OrderStatusCompleted, admin)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusCompleted, got.Status)

		_, err = svc.UpdateStatus(ctx, o.ID, models.OrderStatusCancelled, admin)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("cancel restocks", func(t *testing.T) {
		before := stockOf(t, r, variantID)
		o := newOrder(nil)
		assert.Equal(t, before-2, stockOf(t, r, variantID))

		_, err := svc.UpdateStatus(ctx, o.ID, models.OrderStatusCancelled, admin)
		require.NoError(t, err)
		assert.Equal(t, before, stockOf(t, r, variantID))

		_, err = svc.UpdateStatus(ctx, o.ID, models.OrderStatusPending, admin)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("unknown status", func(t *testing.T) {
		o := newOrder(nil)
		_, err := svc.UpdateStatus(ctx, o.ID, models.OrderStatus("shipped"), admin)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("missing order", func(t *testing.T) {
		_, err := svc.UpdateStatus(ctx, 99999, models.OrderStatusConfirmed, admin)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("owner may only cancel pending", func(t *testing.T) {
		userID := uint(42)
		owner := Caller{UserID: userID, Role: string(models.RoleCustomer)}

		o := newOrder(&userID)
		_, err := svc.UpdateStatus(ctx, o.ID, models.OrderStatusConfirmed, owner)
		assert.ErrorIs(t, err, ErrForbidden)

		_, err = svc.UpdateStatus(ctx, o.ID, models.OrderStatusCancelled, Caller{UserID: 43})
		assert.ErrorIs(t, err, ErrNotFound)

		got, err := svc.UpdateStatus(ctx, o.ID, models.OrderStatusCancelled, owner)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusCancelled, got.Status)

		confirmed := newOrder(&userID)
		_, err = svc.UpdateStatus(ctx, confirmed.ID, models.OrderStatusConfirmed, admin)
		require.NoError(t, err)
		_, err = svc.UpdateStatus(ctx, confirmed.ID, models.OrderStatusCancelled, owner)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("guest orders cannot be changed by guests", func(t *testing.T) {
		o := newOrder(nil)
		_, err := svc.UpdateStatus(ctx, o.ID, models.OrderStatusCancelled, Caller{})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestOrderService_ListOrders(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	p := seedProduct(t, r, "Jasmine", "3.00", 100)
	svc := &OrderService{Repo: r}

	alice, bob := uint(1), uint(2)
	for i := 0; i < 3; i++ {
		_, err := svc.CreateOrder(ctx, transport.CreateOrderRequest{Items: []transport.OrderItemInput{{ProductID: p.ID, Quantity: 1}}, CustomerInfo: customer()}, &alice)
		require.NoError(t, err)
	}
	_, err := svc.CreateOrder(ctx, transport.CreateOrderRequest{Items: []transport.OrderItemInput{{ProductID: p.ID, Quantity: 1}}, CustomerInfo: customer()}, &bob)
	require.NoError(t, err)

	page, err := svc.ListOrders(ctx, repo.OrderFilter{UserID: &alice}, "", 2)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)

	next, err := svc.ListOrders(ctx, repo.OrderFilter{UserID: &alice}, page.NextCursor, 2)
	require.NoError(t, err)
	assert.Len(t, next.Items, 1)
	assert.False(t, next.HasMore)

	all, err := svc.ListOrders(ctx, repo.OrderFilter{}, "", 0)
	require.NoError(t, err)
	assert.Len(t, all.Items, 4)

	pending := models.OrderStatusPending
	filtered, err := svc.ListOrders(ctx, repo.OrderFilter{Status: &pending}, "", 0)
	require.NoError(t, err)
	assert.Len(t, filtered.Items, 4)

	bad := models.OrderStatus("lost")
	_, err = svc.ListOrders(ctx, repo.OrderFilter{Status: &bad}, "", 0)
	assert.ErrorIs(t, err, ErrValidation)
}
