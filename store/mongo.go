package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marketgrid/storefront-backend-go/models"
)

// opTimeout bounds every datastore round trip independently of the caller's
// deadline.
const opTimeout = 15 * time.Second

func opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opTimeout)
}

// mapErr folds driver errors into the store taxonomy.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	case errors.Is(err, mongo.ErrClientDisconnected),
		mongo.IsTimeout(err),
		mongo.IsNetworkError(err):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return err
	}
}

func pageOptions(page, limit int) *options.FindOptions {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
}

// MongoProducts implements ProductStore on a MongoDB collection.
type MongoProducts struct {
	col *mongo.Collection
}

func NewMongoProducts(db *mongo.Database) *MongoProducts {
	return &MongoProducts{col: db.Collection("products")}
}

func (s *MongoProducts) Insert(ctx context.Context, p *models.Product) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, p)
	return mapErr(err)
}

func (s *MongoProducts) Get(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	var p models.Product
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (s *MongoProducts) List(ctx context.Context, f ProductFilter) ([]models.Product, int64, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Search != "" {
		filter["name"] = bson.M{"$regex": f.Search, "$options": "i"}
	}

	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, mapErr(err)
	}

	cursor, err := s.col.Find(ctx, filter, pageOptions(f.Page, f.Limit))
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, 0, mapErr(err)
	}
	return products, total, nil
}

func (s *MongoProducts) Update(ctx context.Context, p *models.Product) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	p.UpdatedAt = time.Now()
	res, err := s.col.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoProducts) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapErr(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustStock performs the stock adjustment as a single conditional atomic
// update: a decrease only matches while stock >= quantity, so two concurrent
// orders cannot both drain the same units. The stock-driven status recompute
// follows as a second write keyed off the pre-adjust status.
func (s *MongoProducts) AdjustStock(ctx context.Context, id primitive.ObjectID, quantity int, direction models.StockDirection) (*models.Product, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	filter := bson.M{"_id": id}
	delta := quantity
	if direction == models.StockDecrease {
		filter["stock"] = bson.M{"$gte": quantity}
		delta = -quantity
	}

	after := options.After
	var p models.Product
	err := s.col.FindOneAndUpdate(ctx, filter,
		bson.M{
			"$inc": bson.M{"stock": delta},
			"$set": bson.M{"updatedAt": time.Now()},
		},
		&options.FindOneAndUpdateOptions{ReturnDocument: &after},
	).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) && direction == models.StockDecrease {
			count, cerr := s.col.CountDocuments(ctx, bson.M{"_id": id})
			if cerr != nil {
				return nil, mapErr(cerr)
			}
			if count > 0 {
				return nil, ErrInsufficientStock
			}
			return nil, ErrNotFound
		}
		return nil, mapErr(err)
	}

	// p.Status still carries the pre-adjust value: $inc never touches it.
	if next := models.StockStatusAfterAdjust(p.Status, p.Stock); next != p.Status {
		if _, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": next}}); err != nil {
			return nil, mapErr(err)
		}
		p.Status = next
	}
	return &p, nil
}

func (s *MongoProducts) IncOrderCounter(ctx context.Context, id primitive.ObjectID, by int64) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"analytics.orders": by}})
	return mapErr(err)
}

func (s *MongoProducts) IncViews(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"analytics.views": 1}})
	return mapErr(err)
}

func (s *MongoProducts) Count(ctx context.Context) (int64, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	n, err := s.col.CountDocuments(ctx, bson.M{})
	return n, mapErr(err)
}

func (s *MongoProducts) LowStock(ctx context.Context, threshold int) ([]models.Product, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	cursor, err := s.col.Find(ctx,
		bson.M{"stock": bson.M{"$lte": threshold}, "status": bson.M{"$in": []models.ProductStatus{models.ProductActive, models.ProductOutOfStock}}},
		options.Find().SetSort(bson.D{{Key: "stock", Value: 1}}),
	)
	if err != nil {
		return nil, mapErr(err)
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, mapErr(err)
	}
	return products, nil
}

// MongoOrders implements OrderStore on a MongoDB collection.
type MongoOrders struct {
	col *mongo.Collection
}

func NewMongoOrders(db *mongo.Database) *MongoOrders {
	return &MongoOrders{col: db.Collection("orders")}
}

func (s *MongoOrders) Insert(ctx context.Context, o *models.Order) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, o)
	return mapErr(err)
}

func (s *MongoOrders) Get(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	var o models.Order
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		return nil, mapErr(err)
	}
	return &o, nil
}

func (s *MongoOrders) GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	var o models.Order
	if err := s.col.FindOne(ctx, bson.M{"orderNumber": orderNumber}).Decode(&o); err != nil {
		return nil, mapErr(err)
	}
	return &o, nil
}

func (s *MongoOrders) List(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	filter := bson.M{}
	if !f.CustomerID.IsZero() {
		filter["customerId"] = f.CustomerID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.PaymentStatus != "" {
		filter["payment.status"] = f.PaymentStatus
	}
	if f.Search != "" {
		filter["$or"] = []bson.M{
			{"orderNumber": bson.M{"$regex": f.Search, "$options": "i"}},
			{"customer.email": bson.M{"$regex": f.Search, "$options": "i"}},
		}
	}

	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, mapErr(err)
	}

	cursor, err := s.col.Find(ctx, filter, pageOptions(f.Page, f.Limit))
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, mapErr(err)
	}
	return orders, total, nil
}

// SetStatus applies a conditional status update: the filter matches only
// while the current status is one of change.From, so concurrent updates
// cannot both fire the same transition.
func (s *MongoOrders) SetStatus(ctx context.Context, id primitive.ObjectID, change StatusChange) (*models.Order, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	filter := bson.M{"_id": id}
	if len(change.From) > 0 {
		filter["status"] = bson.M{"$in": change.From}
	}

	set := bson.M{"status": change.To, "updatedAt": time.Now()}
	if change.ShippingStatus != "" {
		set["shipping.status"] = change.ShippingStatus
	}
	if change.ActualDelivery != nil {
		set["shipping.actualDelivery"] = change.ActualDelivery
	}
	if change.CancelReason != "" {
		set["cancelReason"] = change.CancelReason
	}
	update := bson.M{"$set": set}
	if change.Note != nil {
		update["$push"] = bson.M{"notes": change.Note}
	}

	after := options.After
	var o models.Order
	err := s.col.FindOneAndUpdate(ctx, filter, update,
		&options.FindOneAndUpdateOptions{ReturnDocument: &after}).Decode(&o)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			count, cerr := s.col.CountDocuments(ctx, bson.M{"_id": id})
			if cerr != nil {
				return nil, mapErr(cerr)
			}
			if count > 0 {
				return nil, ErrInvalidTransition
			}
			return nil, ErrNotFound
		}
		return nil, mapErr(err)
	}
	return &o, nil
}

func (s *MongoOrders) SetPaymentStatus(ctx context.Context, id primitive.ObjectID, status models.PaymentStatus, transactionID string, note *models.AdminNote) (*models.Order, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	set := bson.M{"payment.status": status, "updatedAt": time.Now()}
	if transactionID != "" {
		set["payment.transactionId"] = transactionID
	}
	update := bson.M{"$set": set}
	if note != nil {
		update["$push"] = bson.M{"notes": note}
	}

	after := options.After
	var o models.Order
	err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		&options.FindOneAndUpdateOptions{ReturnDocument: &after}).Decode(&o)
	if err != nil {
		return nil, mapErr(err)
	}
	return &o, nil
}

func (s *MongoOrders) Count(ctx context.Context) (int64, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	n, err := s.col.CountDocuments(ctx, bson.M{})
	return n, mapErr(err)
}

// Revenue sums totalAmount over all orders that were not cancelled.
func (s *MongoOrders) Revenue(ctx context.Context) (float64, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	cursor, err := s.col.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": bson.M{"$ne": models.OrderCancelled}}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$totalAmount"}}}},
	})
	if err != nil {
		return 0, mapErr(err)
	}
	defer cursor.Close(ctx)

	var result []struct {
		Total float64 `bson:"total"`
	}
	if err := cursor.All(ctx, &result); err != nil {
		return 0, mapErr(err)
	}
	if len(result) == 0 {
		return 0, nil
	}
	return result[0].Total, nil
}

// MongoUsers implements UserStore on a MongoDB collection.
type MongoUsers struct {
	col *mongo.Collection
}

func NewMongoUsers(db *mongo.Database) *MongoUsers {
	return &MongoUsers{col: db.Collection("users")}
}

func (s *MongoUsers) Insert(ctx context.Context, u *models.User) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, u)
	return mapErr(err)
}

func (s *MongoUsers) Get(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	var u models.User
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *MongoUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	var u models.User
	if err := s.col.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *MongoUsers) Update(ctx context.Context, u *models.User) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	u.UpdatedAt = time.Now()
	res, err := s.col.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoUsers) Count(ctx context.Context) (int64, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	n, err := s.col.CountDocuments(ctx, bson.M{})
	return n, mapErr(err)
}

// MongoSettings implements SettingsStore with a fixed singleton id.
type MongoSettings struct {
	col *mongo.Collection
}

func NewMongoSettings(db *mongo.Database) *MongoSettings {
	return &MongoSettings{col: db.Collection("settings")}
}

func (s *MongoSettings) GetOrCreateDefault(ctx context.Context) (*models.Settings, error) {
	ctx, cancel := opContext(ctx)
	defer cancel()

	var settings models.Settings
	err := s.col.FindOne(ctx, bson.M{"_id": models.SettingsID}).Decode(&settings)
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, mapErr(err)
	}

	def := models.DefaultSettings(time.Now())
	if _, err := s.col.InsertOne(ctx, def); err != nil {
		// lost the create race; the winner's document is authoritative
		if mongo.IsDuplicateKeyError(err) {
			if ferr := s.col.FindOne(ctx, bson.M{"_id": models.SettingsID}).Decode(&settings); ferr != nil {
				return nil, mapErr(ferr)
			}
			return &settings, nil
		}
		return nil, mapErr(err)
	}
	return def, nil
}

func (s *MongoSettings) Update(ctx context.Context, settings *models.Settings) error {
	ctx, cancel := opContext(ctx)
	defer cancel()

	settings.ID = models.SettingsID
	settings.UpdatedAt = time.Now()
	upsert := true
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": models.SettingsID}, settings,
		&options.ReplaceOptions{Upsert: &upsert})
	return mapErr(err)
}
