package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/marketgrid/storefront-backend-go/middleware"
	"github.com/marketgrid/storefront-backend-go/models"
	"github.com/marketgrid/storefront-backend-go/store"
)

// GetProduct fetches a catalog product and bumps its view counter.
func (h *Handler) GetProduct(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_id"})
	}

	ctx := c.Request().Context()
	product, err := h.Products.Get(ctx, id)
	if err != nil {
		return storeError(c, err, "product not found")
	}

	if err := h.Products.IncViews(ctx, id); err != nil {
		log.WithError(err).WithField("product", id.Hex()).Debug("failed to bump view counter")
	} else {
		product.Analytics.Views++
	}

	return c.JSON(http.StatusOK, product)
}

// ListProducts returns a paginated catalog listing.
func (h *Handler) ListProducts(c echo.Context) error {
	f := store.ProductFilter{
		Category: c.QueryParam("category"),
		Status:   models.ProductStatus(c.QueryParam("status")),
		Search:   c.QueryParam("search"),
		Page:     1,
		Limit:    20,
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

	products, total, err := h.Products.List(c.Request().Context(), f)
	if err != nil {
		return storeError(c, err, "")
	}
	if products == nil {
		products = []models.Product{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"products": products,
		"total":    total,
		"page":     f.Page,
		"limit":    f.Limit,
	})
}

type ProductRequest struct {
	Name           string            `json:"name" validate:"required"`
	Description    string            `json:"description"`
	Price          float64           `json:"price" validate:"gte=0"`
	Stock          int               `json:"stock" validate:"gte=0"`
	Category       string            `json:"category" validate:"required"`
	Packaging      string            `json:"packaging"`
	Currency       string            `json:"currency"`
	Status         string            `json:"status"`
	MinOrder       int               `json:"minOrder"`
	SKU            string            `json:"sku"`
	Images         []string          `json:"images"`
	Specifications map[string]string `json:"specifications"`
}

// CreateProduct is the admin catalog-entry endpoint.
func (h *Handler) CreateProduct(c echo.Context) error {
	var req ProductRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return nil
	}

	status := models.ProductStatus(req.Status)
	if status == "" {
		status = models.ProductActive
	}
	if req.Stock == 0 && status == models.ProductActive {
		status = models.ProductOutOfStock
	}
	minOrder := req.MinOrder
	if minOrder < 1 {
		minOrder = 1
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	now := time.Now()
	product := &models.Product{
		Name:           req.Name,
		Description:    req.Description,
		Price:          req.Price,
		Stock:          req.Stock,
		Category:       req.Category,
		Packaging:      req.Packaging,
		Currency:       currency,
		Status:         status,
		MinOrder:       minOrder,
		SKU:            req.SKU,
		Images:         req.Images,
		Specifications: req.Specifications,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if product.Images == nil {
		product.Images = []string{}
	}

	if err := h.Products.Insert(c.Request().Context(), product); err != nil {
		return storeError(c, err, "")
	}
	return c.JSON(http.StatusCreated, product)
}

// UpdateProduct replaces the editable fields of a catalog product.
func (h *Handler) UpdateProduct(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_id"})
	}

	var req ProductRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return nil
	}

	ctx := c.Request().Context()
	product, err := h.Products.Get(ctx, id)
	if err != nil {
		return storeError(c, err, "product not found")
	}

	product.Name = req.Name
	product.Description = req.Description
	product.Price = req.Price
	product.Category = req.Category
	product.Packaging = req.Packaging
	if req.Currency != "" {
		product.Currency = req.Currency
	}
	if req.Status != "" {
		product.Status = models.ProductStatus(req.Status)
	}
	if req.MinOrder >= 1 {
		product.MinOrder = req.MinOrder
	}
	product.SKU = req.SKU
	if req.Images != nil {
		product.Images = req.Images
	}
	if req.Specifications != nil {
		product.Specifications = req.Specifications
	}

	if err := h.Products.Update(ctx, product); err != nil {
		return storeError(c, err, "product not found")
	}
	return c.JSON(http.StatusOK, product)
}

// DeleteProduct hard-deletes a catalog entry. Normal retirement goes through
// the status field instead.
func (h *Handler) DeleteProduct(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_id"})
	}

	if err := h.Products.Delete(c.Request().Context(), id); err != nil {
		return storeError(c, err, "product not found")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "product deleted"})
}

type AdjustStockRequest struct {
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	Operation string `json:"operation" validate:"required,oneof=increase decrease"`
}

// AdjustStock is the admin stock-ledger endpoint.
func (h *Handler) AdjustStock(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_id"})
	}

	var req AdjustStockRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return nil
	}

	product, err := h.Products.AdjustStock(c.Request().Context(), id, req.Quantity, models.StockDirection(req.Operation))
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			middleware.StockRejections.Inc()
			return domainError(c, "insufficient_stock", "Insufficient stock")
		}
		return storeError(c, err, "product not found")
	}

	log.WithFields(log.Fields{
		"product":   id.Hex(),
		"operation": req.Operation,
		"quantity":  req.Quantity,
		"stock":     product.Stock,
	}).Info("stock adjusted")

	return c.JSON(http.StatusOK, product)
}

// UploadProductImage stores an uploaded image through the configured adapter
// chain and appends its URL to the product.
func (h *Handler) UploadProductImage(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_id"})
	}

	file, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing_image"})
	}

	ctx := c.Request().Context()
	product, err := h.Products.Get(ctx, id)
	if err != nil {
		return storeError(c, err, "product not found")
	}

	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal_error"})
	}
	defer src.Close()

	url, err := h.Images.Put(ctx, id.Hex()+"-"+file.Filename, src)
	if err != nil {
		log.WithError(err).Error("image upload failed on all adapters")
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "upload_failed"})
	}

	product.Images = append(product.Images, url)
	if err := h.Products.Update(ctx, product); err != nil {
		return storeError(c, err, "product not found")
	}
	return c.JSON(http.StatusOK, product)
}
