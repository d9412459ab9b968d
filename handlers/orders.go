package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/marketgrid/storefront-backend-go/middleware"
	"github.com/marketgrid/storefront-backend-go/models"
	"github.com/marketgrid/storefront-backend-go/store"
)

type OrderItemRequest struct {
	ProductID string  `json:"productId"`
	ID        string  `json:"id"` // accepted alias for productId
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
}

// catalogRef returns the catalog object id when the item references one.
// Items whose reference does not parse are ad-hoc client-supplied goods.
func (r OrderItemRequest) catalogRef() (primitive.ObjectID, bool) {
	ref := r.ProductID
	if ref == "" {
		ref = r.ID
	}
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

type CustomerInfoRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required"`
	Address   string `json:"address" validate:"required"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country" validate:"required"`
}

type ShippingRequest struct {
	Method string   `json:"method"`
	Cost   *float64 `json:"cost"`
}

type PaymentRequest struct {
	Method string `json:"method" validate:"required"`
}

type CreateOrderRequest struct {
	CustomerInfo CustomerInfoRequest `json:"customerInfo" validate:"required"`
	Items        []OrderItemRequest  `json:"items" validate:"required,min=1,dive"`
	Payment      PaymentRequest      `json:"payment" validate:"required"`
	Shipping     ShippingRequest     `json:"shipping"`
	Priority     string              `json:"priority"`
}

type reservedItem struct {
	productID primitive.ObjectID
	quantity  int
}

// CreateOrder validates the request, resolves catalog prices and
// availability, reserves stock with conditional atomic decrements, and only
// then persists the order. Any failure after a reservation releases what was
// already taken, so no order exists whose stock was never decremented.
func (h *Handler) CreateOrder(c echo.Context) error {
	var req CreateOrderRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return nil
	}

	userID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}

	method, known := models.NormalizePaymentMethod(req.Payment.Method)
	if !known {
		return domainError(c, "invalid_payment_method", "unknown payment method: "+req.Payment.Method)
	}

	ctx := c.Request().Context()
	shipping := h.resolveShipping(ctx, req.Shipping)

	// Resolve phase: authoritative price/availability per item, no mutation.
	items := make([]models.OrderItem, 0, len(req.Items))
	var toReserve []reservedItem
	for _, ir := range req.Items {
		id, catalog := ir.catalogRef()
		if !catalog {
			if h.Cfg.StrictItems {
				return domainError(c, "invalid_product", "item does not reference a catalog product")
			}
			if ir.Name == "" || ir.Price <= 0 {
				return domainError(c, "invalid_product", "ad-hoc items require a name and a positive price")
			}
			items = append(items, models.OrderItem{
				Name:      ir.Name,
				UnitPrice: ir.Price,
				Currency:  shipping.currency,
				Quantity:  ir.Quantity,
			})
			continue
		}

		product, err := h.Products.Get(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domainError(c, "invalid_product", "product not found: "+id.Hex())
			}
			if errors.Is(err, store.ErrUnavailable) {
				return h.degradedOrder(c, userID, req, method, shipping)
			}
			return storeError(c, err, "")
		}
		if product.Status != models.ProductActive {
			return domainError(c, "product_unavailable", product.Name+" is not available for purchase")
		}
		if product.Stock < ir.Quantity {
			middleware.StockRejections.Inc()
			return domainError(c, "insufficient_stock", "insufficient stock for "+product.Name)
		}
		minOrder := product.MinOrder
		if minOrder < 1 {
			minOrder = 1
		}
		if ir.Quantity < minOrder {
			return domainError(c, "minimum_order_not_met", product.Name+" has a higher minimum order quantity")
		}

		item := models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Currency:  product.Currency,
			Quantity:  ir.Quantity,
			SKU:       product.SKU,
		}
		if len(product.Images) > 0 {
			item.Image = product.Images[0]
		}
		if len(product.Specifications) > 0 {
			specs := make(map[string]string, len(product.Specifications))
			for k, v := range product.Specifications {
				specs[k] = v
			}
			item.Specifications = specs
		}
		items = append(items, item)
		toReserve = append(toReserve, reservedItem{productID: product.ID, quantity: ir.Quantity})
	}

	subtotal, tax, total := models.ComputeTotals(items, shipping.cost)

	// Reserve phase: conditional atomic decrements close the window between
	// the availability read above and the write here.
	var reserved []reservedItem
	for _, r := range toReserve {
		if _, err := h.Products.AdjustStock(ctx, r.productID, r.quantity, models.StockDecrease); err != nil {
			h.releaseReservations(reserved)
			switch {
			case errors.Is(err, store.ErrInsufficientStock):
				middleware.StockRejections.Inc()
				return domainError(c, "insufficient_stock", "stock changed while placing the order")
			case errors.Is(err, store.ErrUnavailable):
				return h.degradedOrder(c, userID, req, method, shipping)
			default:
				return storeError(c, err, "")
			}
		}
		reserved = append(reserved, r)
	}

	now := time.Now()
	order := &models.Order{
		CustomerID: userID,
		Customer:   customerSnapshot(req.CustomerInfo),
		Items:      items,
		Subtotal:   subtotal,
		Tax:        tax,
		Shipping: models.ShippingInfo{
			Method: shipping.method,
			Cost:   shipping.cost,
			Status: "pending",
		},
		Payment: models.PaymentInfo{
			Method:   method,
			Status:   models.PaymentPending,
			Amount:   total,
			Currency: shipping.currency,
		},
		TotalAmount: total,
		Status:      models.OrderPending,
		Notes:       []models.AdminNote{},
		Priority:    req.Priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// The 4-digit random suffix can collide within a day; retry with a
	// fresh number, the unique index is the arbiter.
	var insertErr error
	for attempt := 0; attempt < 3; attempt++ {
		order.OrderNumber = models.NewOrderNumber(h.Cfg.OrderNumberPrefix, now)
		insertErr = h.Orders.Insert(ctx, order)
		if !errors.Is(insertErr, store.ErrDuplicate) {
			break
		}
	}
	if insertErr != nil {
		h.releaseReservations(reserved)
		if errors.Is(insertErr, store.ErrUnavailable) {
			return h.degradedOrder(c, userID, req, method, shipping)
		}
		return storeError(c, insertErr, "")
	}

	// Commit side effects: counter bumps are best-effort, the order stands.
	for _, r := range reserved {
		if err := h.Products.IncOrderCounter(ctx, r.productID, 1); err != nil {
			log.WithError(err).WithField("product", r.productID.Hex()).Warn("failed to bump order counter")
		}
	}

	middleware.OrdersCreated.Inc()
	log.WithFields(log.Fields{
		"orderNumber": order.OrderNumber,
		"customer":    userID.Hex(),
		"total":       order.TotalAmount,
		"items":       len(order.Items),
	}).Info("order created")

	return c.JSON(http.StatusCreated, order)
}

type shippingSelection struct {
	method   string
	cost     float64
	currency string
}

// resolveShipping fills shipping method/cost from the settings singleton when
// the request omits them. Settings being unreachable is not fatal here.
func (h *Handler) resolveShipping(ctx context.Context, req ShippingRequest) shippingSelection {
	sel := shippingSelection{method: req.Method, currency: "USD"}
	if req.Cost != nil {
		sel.cost = *req.Cost
	}

	if sel.method != "" && req.Cost != nil {
		return sel
	}

	settings, err := h.Settings.GetOrCreateDefault(ctx)
	if err != nil {
		log.WithError(err).Warn("settings unavailable, using zero-cost shipping defaults")
		if sel.method == "" {
			sel.method = "standard"
		}
		return sel
	}

	if sel.method == "" {
		sel.method = settings.DefaultShippingMethod
	}
	if req.Cost == nil {
		sel.cost = settings.DefaultShippingCost
	}
	if settings.Currency != "" {
		sel.currency = settings.Currency
	}
	return sel
}

func (h *Handler) releaseReservations(reserved []reservedItem) {
	// fresh context: the request may already be failing/cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	for _, r := range reserved {
		if _, err := h.Products.AdjustStock(ctx, r.productID, r.quantity, models.StockIncrease); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"product":  r.productID.Hex(),
				"quantity": r.quantity,
			}).Error("failed to release stock reservation")
		}
	}
}

// degradedOrder handles datastore unavailability during order creation. The
// default is a typed 503 so the caller can retry; the legacy behavior of
// fabricating an unpersisted order is kept behind an explicit flag.
func (h *Handler) degradedOrder(c echo.Context, userID primitive.ObjectID, req CreateOrderRequest, method models.PaymentMethod, shipping shippingSelection) error {
	if !h.Cfg.MockOrderFallback {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error":   "service_unavailable",
			"message": "datastore unreachable, retry later",
		})
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, ir := range req.Items {
		items = append(items, models.OrderItem{
			Name:      ir.Name,
			UnitPrice: ir.Price,
			Currency:  shipping.currency,
			Quantity:  ir.Quantity,
		})
	}
	subtotal, tax, total := models.ComputeTotals(items, shipping.cost)

	now := time.Now()
	order := &models.Order{
		OrderNumber: models.NewOrderNumber(h.Cfg.OrderNumberPrefix, now),
		CustomerID:  userID,
		Customer:    customerSnapshot(req.CustomerInfo),
		Items:       items,
		Subtotal:    subtotal,
		Tax:         tax,
		Shipping:    models.ShippingInfo{Method: shipping.method, Cost: shipping.cost, Status: "pending"},
		Payment:     models.PaymentInfo{Method: method, Status: models.PaymentPending, Amount: total, Currency: shipping.currency},
		TotalAmount: total,
		Status:      models.OrderPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	log.WithField("orderNumber", order.OrderNumber).Warn("datastore unreachable, returning unpersisted mock order")
	return c.JSON(http.StatusCreated, order)
}

func customerSnapshot(ci CustomerInfoRequest) models.CustomerInfo {
	return models.CustomerInfo{
		FirstName: ci.FirstName,
		LastName:  ci.LastName,
		Email:     ci.Email,
		Phone:     ci.Phone,
		Address:   ci.Address,
		City:      ci.City,
		State:     ci.State,
		ZipCode:   ci.ZipCode,
		Country:   ci.Country,
	}
}

// ListOrders returns the caller's own orders, paginated.
func (h *Handler) ListOrders(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}

	f := orderFilterFromQuery(c)
	f.CustomerID = userID

	orders, total, err := h.Orders.List(c.Request().Context(), f)
	if err != nil {
		return storeError(c, err, "")
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"orders": orders,
		"total":  total,
		"page":   f.Page,
		"limit":  f.Limit,
	})
}

// ListAllOrders is the admin listing across all customers.
func (h *Handler) ListAllOrders(c echo.Context) error {
	f := orderFilterFromQuery(c)

	orders, total, err := h.Orders.List(c.Request().Context(), f)
	if err != nil {
		return storeError(c, err, "")
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"orders": orders,
		"total":  total,
		"page":   f.Page,
		"limit":  f.Limit,
	})
}

func orderFilterFromQuery(c echo.Context) store.OrderFilter {
	f := store.OrderFilter{
		Status:        models.OrderStatus(c.QueryParam("status")),
		PaymentStatus: models.PaymentStatus(c.QueryParam("paymentStatus")),
		Search:        c.QueryParam("search"),
		Page:          1,
		Limit:         20,
	}
	if p := c.QueryParam("page"); p != "" {
		if n, err := parsePositiveInt(p); err == nil {
			f.Page = n
		}
	}
	if l := c.QueryParam("limit"); l != "" {
		if n, err := parsePositiveInt(l); err == nil {
			f.Limit = n
		}
	}
	return f
}

// GetOrder fetches a single order by id; only the owning customer or an
// admin may read it.
func (h *Handler) GetOrder(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_id"})
	}

	order, err := h.Orders.Get(c.Request().Context(), id)
	if err != nil {
		return storeError(c, err, "order not found")
	}
	return h.respondOrder(c, order)
}

// GetOrderByNumber fetches a single order by its order number.
func (h *Handler) GetOrderByNumber(c echo.Context) error {
	order, err := h.Orders.GetByNumber(c.Request().Context(), c.Param("orderNumber"))
	if err != nil {
		return storeError(c, err, "order not found")
	}
	return h.respondOrder(c, order)
}

func (h *Handler) respondOrder(c echo.Context, order *models.Order) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}
	if order.CustomerID != userID && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, order)
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// CancelOrder is the customer self-service cancellation. Allowed only while
// the order is pending or confirmed; restores stock per catalog-backed item.
func (h *Handler) CancelOrder(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_id"})
	}

	userID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}

	var req CancelOrderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_request_body"})
	}

	ctx := c.Request().Context()
	order, err := h.Orders.Get(ctx, id)
	if err != nil {
		return storeError(c, err, "order not found")
	}
	if order.CustomerID != userID {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
	}

	updated, err := h.Orders.SetStatus(ctx, id, store.StatusChange{
		From:         models.CancellableStatuses,
		To:           models.OrderCancelled,
		CancelReason: req.Reason,
	})
	if err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			return domainError(c, "cannot_cancel_in_current_status",
				"order can only be cancelled while pending or confirmed")
		}
		return storeError(c, err, "order not found")
	}

	// Restore stock for every catalog-backed line item. Items whose product
	// was deleted since no-op; that is fine for a cancellation.
	for _, item := range updated.Items {
		if item.ProductID.IsZero() {
			continue
		}
		if _, err := h.Products.AdjustStock(ctx, item.ProductID, item.Quantity, models.StockIncrease); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				log.WithField("product", item.ProductID.Hex()).Debug("skipping stock restore for missing product")
				continue
			}
			log.WithError(err).WithField("product", item.ProductID.Hex()).Error("failed to restore stock on cancellation")
		}
	}

	middleware.OrdersCancelled.Inc()
	log.WithFields(log.Fields{
		"orderNumber": updated.OrderNumber,
		"customer":    userID.Hex(),
	}).Info("order cancelled")

	return c.JSON(http.StatusOK, orderProjection(updated))
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note"`
}

// UpdateOrderStatus is the admin transition endpoint. shipped also advances
// the embedded shipping substatus; delivered stamps actualDelivery.
func (h *Handler) UpdateOrderStatus(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_id"})
	}

	var req UpdateOrderStatusRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return nil
	}

	next := models.OrderStatus(req.Status)
	if !models.ValidOrderStatus(next) {
		return domainError(c, "invalid_status", "unknown order status: "+req.Status)
	}

	ctx := c.Request().Context()
	order, err := h.Orders.Get(ctx, id)
	if err != nil {
		return storeError(c, err, "order not found")
	}
	if !models.CanTransition(order.Status, next) {
		return domainError(c, "invalid_status_transition",
			string(order.Status)+" -> "+string(next)+" is not allowed")
	}

	change := store.StatusChange{From: []models.OrderStatus{order.Status}, To: next}
	switch next {
	case models.OrderShipped:
		change.ShippingStatus = "shipped"
	case models.OrderDelivered:
		now := time.Now()
		change.ActualDelivery = &now
	}
	if req.Note != "" {
		if adminID, ok := currentUser(c); ok {
			change.Note = &models.AdminNote{Note: req.Note, AdminID: adminID, CreatedAt: time.Now()}
		}
	}

	updated, err := h.Orders.SetStatus(ctx, id, change)
	if err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			return domainError(c, "invalid_status_transition", "order status changed concurrently")
		}
		return storeError(c, err, "order not found")
	}

	log.WithFields(log.Fields{
		"orderNumber": updated.OrderNumber,
		"status":      updated.Status,
	}).Info("order status updated")

	return c.JSON(http.StatusOK, orderProjection(updated))
}

type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"paymentStatus" validate:"required"`
	Note          string `json:"note"`
}

// UpdatePaymentStatus is the admin payment-state endpoint. Marking an order
// paid stamps a transaction id if none exists.
func (h *Handler) UpdatePaymentStatus(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_id"})
	}

	var req UpdatePaymentStatusRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return nil
	}

	status := models.PaymentStatus(req.PaymentStatus)
	if !models.ValidPaymentStatus(status) {
		return domainError(c, "invalid_payment_status", "unknown payment status: "+req.PaymentStatus)
	}

	ctx := c.Request().Context()
	order, err := h.Orders.Get(ctx, id)
	if err != nil {
		return storeError(c, err, "order not found")
	}

	transactionID := ""
	if status == models.PaymentPaid && order.Payment.TransactionID == "" {
		transactionID = uuid.NewString()
	}

	var note *models.AdminNote
	if req.Note != "" {
		if adminID, ok := currentUser(c); ok {
			note = &models.AdminNote{Note: req.Note, AdminID: adminID, CreatedAt: time.Now()}
		}
	}

	updated, err := h.Orders.SetPaymentStatus(ctx, id, status, transactionID, note)
	if err != nil {
		return storeError(c, err, "order not found")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":            updated.ID,
		"orderNumber":   updated.OrderNumber,
		"paymentStatus": updated.Payment.Status,
		"updatedAt":     updated.UpdatedAt,
	})
}

// orderProjection is the minimal response for mutation endpoints.
func orderProjection(o *models.Order) map[string]interface{} {
	return map[string]interface{}{
		"id":          o.ID,
		"orderNumber": o.OrderNumber,
		"status":      o.Status,
		"updatedAt":   o.UpdatedAt,
	}
}
