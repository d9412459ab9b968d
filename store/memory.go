package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/marketgrid/storefront-backend-go/models"
)

// MemoryProducts is an in-memory ProductStore with the same conditional
// semantics as the MongoDB implementation. Used by tests and local runs
// without a database.
type MemoryProducts struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]models.Product
}

func NewMemoryProducts() *MemoryProducts {
	return &MemoryProducts{products: map[primitive.ObjectID]models.Product{}}
}

func (s *MemoryProducts) Insert(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.products[p.ID] = cloneProduct(*p)
	return nil
}

func (s *MemoryProducts) Get(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	p = cloneProduct(p)
	return &p, nil
}

func (s *MemoryProducts) List(_ context.Context, f ProductFilter) ([]models.Product, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Product
	for _, p := range s.products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			continue
		}
		matched = append(matched, cloneProduct(p))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := int64(len(matched))
	return pageSlice(matched, f.Page, f.Limit), total, nil
}

func (s *MemoryProducts) Update(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[p.ID]; !ok {
		return ErrNotFound
	}
	p.UpdatedAt = time.Now()
	s.products[p.ID] = cloneProduct(*p)
	return nil
}

func (s *MemoryProducts) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *MemoryProducts) AdjustStock(_ context.Context, id primitive.ObjectID, quantity int, direction models.StockDirection) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	if direction == models.StockDecrease {
		if p.Stock < quantity {
			return nil, ErrInsufficientStock
		}
		p.Stock -= quantity
	} else {
		p.Stock += quantity
	}
	p.Status = models.StockStatusAfterAdjust(p.Status, p.Stock)
	p.UpdatedAt = time.Now()
	s.products[id] = p
	p = cloneProduct(p)
	return &p, nil
}

func (s *MemoryProducts) IncOrderCounter(_ context.Context, id primitive.ObjectID, by int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return ErrNotFound
	}
	p.Analytics.Orders += by
	s.products[id] = p
	return nil
}

func (s *MemoryProducts) IncViews(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return ErrNotFound
	}
	p.Analytics.Views++
	s.products[id] = p
	return nil
}

func (s *MemoryProducts) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.products)), nil
}

func (s *MemoryProducts) LowStock(_ context.Context, threshold int) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Product
	for _, p := range s.products {
		if p.Stock <= threshold && (p.Status == models.ProductActive || p.Status == models.ProductOutOfStock) {
			out = append(out, cloneProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stock < out[j].Stock })
	return out, nil
}

// MemoryOrders is an in-memory OrderStore.
type MemoryOrders struct {
	mu      sync.Mutex
	orders  map[primitive.ObjectID]models.Order
	numbers map[string]primitive.ObjectID
}

func NewMemoryOrders() *MemoryOrders {
	return &MemoryOrders{
		orders:  map[primitive.ObjectID]models.Order{},
		numbers: map[string]primitive.ObjectID{},
	}
}

func (s *MemoryOrders) Insert(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.numbers[o.OrderNumber]; exists {
		return ErrDuplicate
	}
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	s.orders[o.ID] = cloneOrder(*o)
	s.numbers[o.OrderNumber] = o.ID
	return nil
}

func (s *MemoryOrders) Get(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

func (s *MemoryOrders) GetByNumber(_ context.Context, orderNumber string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.numbers[orderNumber]
	if !ok {
		return nil, ErrNotFound
	}
	o := cloneOrder(s.orders[id])
	return &o, nil
}

func (s *MemoryOrders) List(_ context.Context, f OrderFilter) ([]models.Order, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []models.Order
	for _, o := range s.orders {
		if !f.CustomerID.IsZero() && o.CustomerID != f.CustomerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.PaymentStatus != "" && o.Payment.Status != f.PaymentStatus {
			continue
		}
		if f.Search != "" {
			needle := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(o.OrderNumber), needle) &&
				!strings.Contains(strings.ToLower(o.Customer.Email), needle) {
				continue
			}
		}
		matched = append(matched, cloneOrder(o))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := int64(len(matched))
	return pageSlice(matched, f.Page, f.Limit), total, nil
}

func (s *MemoryOrders) SetStatus(_ context.Context, id primitive.ObjectID, change StatusChange) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if len(change.From) > 0 {
		allowed := false
		for _, from := range change.From {
			if o.Status == from {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, ErrInvalidTransition
		}
	}

	o.Status = change.To
	o.UpdatedAt = time.Now()
	if change.ShippingStatus != "" {
		o.Shipping.Status = change.ShippingStatus
	}
	if change.ActualDelivery != nil {
		o.Shipping.ActualDelivery = change.ActualDelivery
	}
	if change.CancelReason != "" {
		o.CancelReason = change.CancelReason
	}
	if change.Note != nil {
		o.Notes = append(o.Notes, *change.Note)
	}
	s.orders[id] = cloneOrder(o)
	return &o, nil
}

func (s *MemoryOrders) SetPaymentStatus(_ context.Context, id primitive.ObjectID, status models.PaymentStatus, transactionID string, note *models.AdminNote) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o.Payment.Status = status
	if transactionID != "" {
		o.Payment.TransactionID = transactionID
	}
	if note != nil {
		o.Notes = append(o.Notes, *note)
	}
	o.UpdatedAt = time.Now()
	s.orders[id] = cloneOrder(o)
	return &o, nil
}

func (s *MemoryOrders) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.orders)), nil
}

func (s *MemoryOrders) Revenue(_ context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total float64
	for _, o := range s.orders {
		if o.Status != models.OrderCancelled {
			total += o.TotalAmount
		}
	}
	return total, nil
}

// MemoryUsers is an in-memory UserStore.
type MemoryUsers struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]models.User
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: map[primitive.ObjectID]models.User{}}
}

func (s *MemoryUsers) Insert(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	s.users[u.ID] = cloneUser(*u)
	return nil
}

func (s *MemoryUsers) Get(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u = cloneUser(u)
	return &u, nil
}

func (s *MemoryUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			u = cloneUser(u)
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryUsers) Update(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; !ok {
		return ErrNotFound
	}
	u.UpdatedAt = time.Now()
	s.users[u.ID] = cloneUser(*u)
	return nil
}

func (s *MemoryUsers) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}

// MemorySettings is an in-memory SettingsStore.
type MemorySettings struct {
	mu       sync.Mutex
	settings *models.Settings
}

func NewMemorySettings() *MemorySettings {
	return &MemorySettings{}
}

func (s *MemorySettings) GetOrCreateDefault(_ context.Context) (*models.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settings == nil {
		s.settings = models.DefaultSettings(time.Now())
	}
	out := *s.settings
	return &out, nil
}

func (s *MemorySettings) Update(_ context.Context, settings *models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings.ID = models.SettingsID
	settings.UpdatedAt = time.Now()
	out := *settings
	s.settings = &out
	return nil
}

func pageSlice[T any](items []T, page, limit int) []T {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return nil
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func cloneProduct(p models.Product) models.Product {
	p.Images = append([]string(nil), p.Images...)
	if p.Specifications != nil {
		specs := make(map[string]string, len(p.Specifications))
		for k, v := range p.Specifications {
			specs[k] = v
		}
		p.Specifications = specs
	}
	return p
}

func cloneOrder(o models.Order) models.Order {
	items := make([]models.OrderItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	o.Notes = append([]models.AdminNote(nil), o.Notes...)
	return o
}

func cloneUser(u models.User) models.User {
	u.Addresses = append([]models.Address(nil), u.Addresses...)
	if u.OTP != nil {
		otp := *u.OTP
		u.OTP = &otp
	}
	return u
}
