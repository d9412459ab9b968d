package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/marketgrid/storefront-backend-go/models"
)

// Dashboard returns the admin summary: entity counts, revenue over
// non-cancelled orders, and the low-stock list.
func (h *Handler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()

	products, err := h.Products.Count(ctx)
	if err != nil {
		return storeError(c, err, "")
	}
	orders, err := h.Orders.Count(ctx)
	if err != nil {
		return storeError(c, err, "")
	}
	users, err := h.Users.Count(ctx)
	if err != nil {
		return storeError(c, err, "")
	}
	revenue, err := h.Orders.Revenue(ctx)
	if err != nil {
		return storeError(c, err, "")
	}
	lowStock, err := h.Products.LowStock(ctx, h.Cfg.LowStockThreshold)
	if err != nil {
		return storeError(c, err, "")
	}
	if lowStock == nil {
		lowStock = []models.Product{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"products": products,
		"orders":   orders,
		"users":    users,
		"revenue":  revenue,
		"lowStock": lowStock,
	})
}

// GetSettings returns the settings singleton, creating the default document
// on first access.
func (h *Handler) GetSettings(c echo.Context) error {
	settings, err := h.Settings.GetOrCreateDefault(c.Request().Context())
	if err != nil {
		return storeError(c, err, "")
	}
	return c.JSON(http.StatusOK, settings)
}

type UpdateSettingsRequest struct {
	DefaultShippingMethod string  `json:"defaultShippingMethod" validate:"required"`
	DefaultShippingCost   float64 `json:"defaultShippingCost" validate:"gte=0"`
	FreeShippingThreshold float64 `json:"freeShippingThreshold" validate:"gte=0"`
	DiscountPercent       float64 `json:"discountPercent" validate:"gte=0,lte=100"`
	Currency              string  `json:"currency" validate:"required"`
}

// UpdateSettings replaces the settings singleton.
func (h *Handler) UpdateSettings(c echo.Context) error {
	var req UpdateSettingsRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return nil
	}

	settings := &models.Settings{
		DefaultShippingMethod: req.DefaultShippingMethod,
		DefaultShippingCost:   req.DefaultShippingCost,
		FreeShippingThreshold: req.FreeShippingThreshold,
		DiscountPercent:       req.DiscountPercent,
		Currency:              req.Currency,
	}
	if err := h.Settings.Update(c.Request().Context(), settings); err != nil {
		return storeError(c, err, "")
	}

	log.Info("settings updated")
	return c.JSON(http.StatusOK, settings)
}
