package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/marketgrid/storefront-backend-go/models"
)

func newProduct(stock int, status models.ProductStatus) *models.Product {
	return &models.Product{
		Name:     "Test Widget",
		Price:    1000,
		Stock:    stock,
		Currency: "USD",
		Status:   status,
		MinOrder: 1,
	}
}

func TestAdjustStockDecrease(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryProducts()
	p := newProduct(5, models.ProductActive)
	require.NoError(t, s.Insert(ctx, p))

	updated, err := s.AdjustStock(ctx, p.ID, 3, models.StockDecrease)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Stock)
	assert.Equal(t, models.ProductActive, updated.Status)
}

func TestAdjustStockInsufficient(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryProducts()
	p := newProduct(2, models.ProductActive)
	require.NoError(t, s.Insert(ctx, p))

	_, err := s.AdjustStock(ctx, p.ID, 3, models.StockDecrease)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// rejection must not mutate
	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)
}

func TestAdjustStockStatusTransitions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryProducts()
	p := newProduct(2, models.ProductActive)
	require.NoError(t, s.Insert(ctx, p))

	updated, err := s.AdjustStock(ctx, p.ID, 2, models.StockDecrease)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Stock)
	assert.Equal(t, models.ProductOutOfStock, updated.Status)

	updated, err = s.AdjustStock(ctx, p.ID, 4, models.StockIncrease)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Stock)
	assert.Equal(t, models.ProductActive, updated.Status)
}

func TestAdjustStockKeepsAdminStatuses(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryProducts()
	p := newProduct(1, models.ProductDiscontinued)
	require.NoError(t, s.Insert(ctx, p))

	updated, err := s.AdjustStock(ctx, p.ID, 1, models.StockDecrease)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Stock)
	assert.Equal(t, models.ProductDiscontinued, updated.Status)

	updated, err = s.AdjustStock(ctx, p.ID, 3, models.StockIncrease)
	require.NoError(t, err)
	assert.Equal(t, models.ProductDiscontinued, updated.Status)
}

func TestAdjustStockUnknownProduct(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryProducts()

	_, err := s.AdjustStock(ctx, primitive.NewObjectID(), 1, models.StockIncrease)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdjustStockConcurrentDecrements(t *testing.T) {
	// Two concurrent decrements of 3 against stock 5: exactly one may win.
	ctx := context.Background()
	s := NewMemoryProducts()
	p := newProduct(5, models.ProductActive)
	require.NoError(t, s.Insert(ctx, p))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.AdjustStock(ctx, p.ID, 3, models.StockDecrease)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, succeeded)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)
}

func TestOrderInsertDuplicateNumber(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryOrders()

	first := &models.Order{OrderNumber: "ORD2403070001", CustomerID: primitive.NewObjectID(), CreatedAt: time.Now()}
	require.NoError(t, s.Insert(ctx, first))

	dup := &models.Order{OrderNumber: "ORD2403070001", CustomerID: primitive.NewObjectID(), CreatedAt: time.Now()}
	assert.ErrorIs(t, s.Insert(ctx, dup), ErrDuplicate)
}

func TestOrderSetStatusConditional(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryOrders()

	o := &models.Order{
		OrderNumber: "ORD2403070002",
		CustomerID:  primitive.NewObjectID(),
		Status:      models.OrderPending,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, s.Insert(ctx, o))

	updated, err := s.SetStatus(ctx, o.ID, StatusChange{
		From: models.CancellableStatuses,
		To:   models.OrderCancelled,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, updated.Status)

	// second attempt no longer matches the From filter
	_, err = s.SetStatus(ctx, o.ID, StatusChange{
		From: models.CancellableStatuses,
		To:   models.OrderCancelled,
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOrderSetStatusStampsShippingFields(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryOrders()

	o := &models.Order{
		OrderNumber: "ORD2403070003",
		CustomerID:  primitive.NewObjectID(),
		Status:      models.OrderProcessing,
		Shipping:    models.ShippingInfo{Method: "standard", Status: "pending"},
		CreatedAt:   time.Now(),
	}
	require.NoError(t, s.Insert(ctx, o))

	updated, err := s.SetStatus(ctx, o.ID, StatusChange{
		From:           []models.OrderStatus{models.OrderProcessing},
		To:             models.OrderShipped,
		ShippingStatus: "shipped",
	})
	require.NoError(t, err)
	assert.Equal(t, "shipped", updated.Shipping.Status)

	delivered := time.Now()
	updated, err = s.SetStatus(ctx, o.ID, StatusChange{
		From:           []models.OrderStatus{models.OrderShipped},
		To:             models.OrderDelivered,
		ActualDelivery: &delivered,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Shipping.ActualDelivery)
	assert.WithinDuration(t, delivered, *updated.Shipping.ActualDelivery, time.Second)
}

func TestOrderListFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryOrders()
	customer := primitive.NewObjectID()
	other := primitive.NewObjectID()

	orders := []*models.Order{
		{OrderNumber: "ORD2403070010", CustomerID: customer, Status: models.OrderPending, Payment: models.PaymentInfo{Status: models.PaymentPending}, CreatedAt: time.Now()},
		{OrderNumber: "ORD2403070011", CustomerID: customer, Status: models.OrderCancelled, Payment: models.PaymentInfo{Status: models.PaymentPending}, CreatedAt: time.Now().Add(time.Second)},
		{OrderNumber: "ORD2403070012", CustomerID: other, Status: models.OrderPending, Payment: models.PaymentInfo{Status: models.PaymentPaid}, CreatedAt: time.Now().Add(2 * time.Second)},
	}
	for _, o := range orders {
		require.NoError(t, s.Insert(ctx, o))
	}

	got, total, err := s.List(ctx, OrderFilter{CustomerID: customer})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, got, 2)

	got, total, err = s.List(ctx, OrderFilter{CustomerID: customer, Status: models.OrderCancelled})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, "ORD2403070011", got[0].OrderNumber)

	got, total, err = s.List(ctx, OrderFilter{Search: "070012"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, other, got[0].CustomerID)
}

func TestRevenueExcludesCancelled(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryOrders()

	require.NoError(t, s.Insert(ctx, &models.Order{OrderNumber: "A1", Status: models.OrderPending, TotalAmount: 100, CreatedAt: time.Now()}))
	require.NoError(t, s.Insert(ctx, &models.Order{OrderNumber: "A2", Status: models.OrderDelivered, TotalAmount: 250, CreatedAt: time.Now()}))
	require.NoError(t, s.Insert(ctx, &models.Order{OrderNumber: "A3", Status: models.OrderCancelled, TotalAmount: 999, CreatedAt: time.Now()}))

	revenue, err := s.Revenue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 350.0, revenue)
}

func TestSettingsSingleton(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySettings()

	first, err := s.GetOrCreateDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SettingsID, first.ID)
	assert.Equal(t, "standard", first.DefaultShippingMethod)

	first.DefaultShippingCost = 42
	require.NoError(t, s.Update(ctx, first))

	second, err := s.GetOrCreateDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SettingsID, second.ID)
	assert.Equal(t, 42.0, second.DefaultShippingCost)
}

func TestUserStoreUniqueEmail(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryUsers()

	require.NoError(t, s.Insert(ctx, &models.User{Name: "A", Email: "a@example.com"}))
	err := s.Insert(ctx, &models.User{Name: "B", Email: "a@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)
}
