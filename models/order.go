package models

import (
	"fmt"
	"math/rand"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderReturned   OrderStatus = "returned"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentCreditCard     PaymentMethod = "credit_card"
	PaymentBankTransfer   PaymentMethod = "bank_transfer"
	PaymentDigitalWallet  PaymentMethod = "digital_wallet"
)

// paymentMethodAliases maps colloquial payment codes accepted on the wire to
// their canonical stored values.
var paymentMethodAliases = map[string]PaymentMethod{
	"cod":              PaymentCashOnDelivery,
	"cash_on_delivery": PaymentCashOnDelivery,
	"card":             PaymentCreditCard,
	"credit_card":      PaymentCreditCard,
	"bank":             PaymentBankTransfer,
	"bank_transfer":    PaymentBankTransfer,
	"wallet":           PaymentDigitalWallet,
	"digital_wallet":   PaymentDigitalWallet,
}

// NormalizePaymentMethod maps a wire payment code to its canonical value.
// The second return is false for unknown codes.
func NormalizePaymentMethod(method string) (PaymentMethod, bool) {
	m, ok := paymentMethodAliases[method]
	return m, ok
}

// OrderItem is an immutable snapshot of the purchased good, captured at order
// creation so later catalog edits do not affect historical orders. ProductID
// is zero for ad-hoc items that never existed in the catalog.
type OrderItem struct {
	ProductID      primitive.ObjectID `bson:"productId,omitempty" json:"productId,omitempty"`
	Name           string             `bson:"name" json:"name"`
	UnitPrice      float64            `bson:"unitPrice" json:"unitPrice"`
	Currency       string             `bson:"currency" json:"currency"`
	Quantity       int                `bson:"quantity" json:"quantity"`
	Image          string             `bson:"image,omitempty" json:"image,omitempty"`
	SKU            string             `bson:"sku,omitempty" json:"sku,omitempty"`
	Specifications map[string]string  `bson:"specifications,omitempty" json:"specifications,omitempty"`
}

// CustomerInfo is the contact/shipping snapshot embedded in an order,
// independent of later profile edits.
type CustomerInfo struct {
	FirstName string `bson:"firstName" json:"firstName"`
	LastName  string `bson:"lastName" json:"lastName"`
	Email     string `bson:"email" json:"email"`
	Phone     string `bson:"phone" json:"phone"`
	Address   string `bson:"address" json:"address"`
	City      string `bson:"city" json:"city"`
	State     string `bson:"state" json:"state"`
	ZipCode   string `bson:"zipCode" json:"zipCode"`
	Country   string `bson:"country" json:"country"`
}

type ShippingInfo struct {
	Method         string     `bson:"method" json:"method"`
	Cost           float64    `bson:"cost" json:"cost"`
	Status         string     `bson:"status" json:"status"`
	ActualDelivery *time.Time `bson:"actualDelivery,omitempty" json:"actualDelivery,omitempty"`
}

type PaymentInfo struct {
	Method        PaymentMethod `bson:"method" json:"method"`
	Status        PaymentStatus `bson:"status" json:"status"`
	Amount        float64       `bson:"amount" json:"amount"`
	Currency      string        `bson:"currency" json:"currency"`
	TransactionID string        `bson:"transactionId,omitempty" json:"transactionId,omitempty"`
}

// AdminNote is one entry in the append-only admin note log of an order.
type AdminNote struct {
	Note      string             `bson:"note" json:"note"`
	AdminID   primitive.ObjectID `bson:"adminId" json:"adminId"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type Order struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderNumber  string             `bson:"orderNumber" json:"orderNumber"`
	CustomerID   primitive.ObjectID `bson:"customerId" json:"customerId"`
	Customer     CustomerInfo       `bson:"customer" json:"customer"`
	Items        []OrderItem        `bson:"items" json:"items"`
	Subtotal     float64            `bson:"subtotal" json:"subtotal"`
	Tax          float64            `bson:"tax" json:"tax"`
	Shipping     ShippingInfo       `bson:"shipping" json:"shipping"`
	Payment      PaymentInfo        `bson:"payment" json:"payment"`
	TotalAmount  float64            `bson:"totalAmount" json:"totalAmount"`
	Status       OrderStatus        `bson:"status" json:"status"`
	Notes        []AdminNote        `bson:"notes" json:"notes"`
	Priority     string             `bson:"priority,omitempty" json:"priority,omitempty"`
	CancelReason string             `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NewOrderNumber generates a human-readable order number:
// prefix + YYMMDD + 4-digit random suffix. Uniqueness is enforced by the
// datastore index; callers retry with a fresh number on collision.
func NewOrderNumber(prefix string, now time.Time) string {
	return fmt.Sprintf("%s%s%04d", prefix, now.Format("060102"), rand.Intn(10000))
}

// ComputeTotals returns subtotal, tax and total for the given item snapshots
// and shipping cost. Tax is currently always zero.
func ComputeTotals(items []OrderItem, shippingCost float64) (subtotal, tax, total float64) {
	for _, it := range items {
		subtotal += it.UnitPrice * float64(it.Quantity)
	}
	tax = 0
	total = subtotal + tax + shippingCost
	return subtotal, tax, total
}

// orderTransitions is the forward-biased order lifecycle. delivered,
// cancelled and returned are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderConfirmed, OrderCancelled, OrderReturned},
	OrderConfirmed:  {OrderProcessing, OrderCancelled, OrderReturned},
	OrderProcessing: {OrderShipped, OrderReturned},
	OrderShipped:    {OrderDelivered, OrderReturned},
	OrderDelivered:  {},
	OrderCancelled:  {},
	OrderReturned:   {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CancellableStatuses are the only states a customer may cancel from.
var CancellableStatuses = []OrderStatus{OrderPending, OrderConfirmed}

// CanCancel reports whether a customer-initiated cancellation is allowed.
func CanCancel(status OrderStatus) bool {
	return status == OrderPending || status == OrderConfirmed
}

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s OrderStatus) bool {
	_, ok := orderTransitions[s]
	return ok
}

// ValidPaymentStatus reports whether s is a known payment status.
func ValidPaymentStatus(s PaymentStatus) bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}
