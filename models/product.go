package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ProductStatus string

const (
	ProductActive       ProductStatus = "active"
	ProductInactive     ProductStatus = "inactive"
	ProductOutOfStock   ProductStatus = "out_of_stock"
	ProductDiscontinued ProductStatus = "discontinued"
)

// ProductAnalytics tracks per-product counters maintained by the service.
type ProductAnalytics struct {
	Views  int64   `bson:"views" json:"views"`
	Orders int64   `bson:"orders" json:"orders"`
	Rating float64 `bson:"rating" json:"rating"`
}

type Product struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name           string             `bson:"name" json:"name"`
	Description    string             `bson:"description" json:"description"`
	Price          float64            `bson:"price" json:"price"`
	Stock          int                `bson:"stock" json:"stock"`
	Category       string             `bson:"category" json:"category"`
	Packaging      string             `bson:"packaging,omitempty" json:"packaging,omitempty"`
	Currency       string             `bson:"currency" json:"currency"`
	Status         ProductStatus      `bson:"status" json:"status"`
	MinOrder       int                `bson:"minOrder" json:"minOrder"`
	SKU            string             `bson:"sku,omitempty" json:"sku,omitempty"`
	Images         []string           `bson:"images" json:"images"`
	Specifications map[string]string  `bson:"specifications,omitempty" json:"specifications,omitempty"`
	Analytics      ProductAnalytics   `bson:"analytics" json:"analytics"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type StockDirection string

const (
	StockIncrease StockDirection = "increase"
	StockDecrease StockDirection = "decrease"
)

// StockStatusAfterAdjust returns the product status that should hold after a
// stock adjustment. Only the active <-> out_of_stock pair is touched;
// inactive and discontinued stay as the administrator set them.
func StockStatusAfterAdjust(prev ProductStatus, newStock int) ProductStatus {
	switch {
	case newStock == 0 && prev == ProductActive:
		return ProductOutOfStock
	case newStock > 0 && prev == ProductOutOfStock:
		return ProductActive
	default:
		return prev
	}
}
