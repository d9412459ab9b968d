package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/marketgrid/storefront-backend-go/models"
)

var (
	// ErrNotFound signals the referenced document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate signals a unique-index violation (email, orderNumber).
	ErrDuplicate = errors.New("duplicate key")
	// ErrInsufficientStock signals a conditional stock decrement did not match.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidTransition signals a conditional status update did not match
	// any of the expected current statuses.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnavailable signals the datastore could not be reached; callers may
	// retry or degrade.
	ErrUnavailable = errors.New("datastore unavailable")
)

// ProductFilter narrows and pages product listings.
type ProductFilter struct {
	Category string
	Status   models.ProductStatus
	Search   string
	Page     int
	Limit    int
}

// OrderFilter narrows and pages order listings. CustomerID zero means all
// customers (admin listing).
type OrderFilter struct {
	CustomerID    primitive.ObjectID
	Status        models.OrderStatus
	PaymentStatus models.PaymentStatus
	Search        string
	Page          int
	Limit         int
}

// StatusChange describes a conditional order status update. The update only
// applies while the order's current status is one of From; otherwise
// ErrInvalidTransition is returned and nothing is mutated.
type StatusChange struct {
	From           []models.OrderStatus
	To             models.OrderStatus
	ShippingStatus string
	ActualDelivery *time.Time
	CancelReason   string
	Note           *models.AdminNote
}

type ProductStore interface {
	Insert(ctx context.Context, p *models.Product) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	List(ctx context.Context, f ProductFilter) ([]models.Product, int64, error)
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id primitive.ObjectID) error

	// AdjustStock applies a conditional atomic stock adjustment and the
	// stock-driven status recompute, returning the updated product.
	// Decrease fails with ErrInsufficientStock when stock < quantity.
	AdjustStock(ctx context.Context, id primitive.ObjectID, quantity int, direction models.StockDirection) (*models.Product, error)

	IncOrderCounter(ctx context.Context, id primitive.ObjectID, by int64) error
	IncViews(ctx context.Context, id primitive.ObjectID) error

	Count(ctx context.Context) (int64, error)
	LowStock(ctx context.Context, threshold int) ([]models.Product, error)
}

type OrderStore interface {
	Insert(ctx context.Context, o *models.Order) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	List(ctx context.Context, f OrderFilter) ([]models.Order, int64, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, change StatusChange) (*models.Order, error)
	SetPaymentStatus(ctx context.Context, id primitive.ObjectID, status models.PaymentStatus, transactionID string, note *models.AdminNote) (*models.Order, error)

	Count(ctx context.Context) (int64, error)
	Revenue(ctx context.Context) (float64, error)
}

type UserStore interface {
	Insert(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
	Count(ctx context.Context) (int64, error)
}

type SettingsStore interface {
	GetOrCreateDefault(ctx context.Context) (*models.Settings, error)
	Update(ctx context.Context, s *models.Settings) error
}
