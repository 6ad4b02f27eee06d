package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ordersCollection = "orders"

// MongoOrderRepository stores orders as documents in MongoDB.
type MongoOrderRepository struct {
	collection *mongo.Collection
}

// ConnectMongoDB opens a client and returns the named database after a ping.
func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return client.Database(database), nil
}

// NewMongoOrderRepository creates a repository over the orders collection of db.
func NewMongoOrderRepository(db *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{collection: db.Collection(ordersCollection)}
}

// CreateIndexes creates the unique session index and the owner lookup index.
func (m *MongoOrderRepository) CreateIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "payment_session_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"payment_session_id": bson.M{"$gt": ""}}),
		},
		{
			Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}
	return nil
}

// Create inserts a new order document.
func (m *MongoOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	doc, err := toOrderDocument(order)
	if err != nil {
		return err
	}
	if _, err := m.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetByID retrieves a single order by its ID.
func (m *MongoOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return m.findOne(ctx, bson.M{"_id": id}, id)
}

// GetBySessionID retrieves the order correlated with a payment session.
func (m *MongoOrderRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("order for empty session: %w", ErrNotFound)
	}
	return m.findOne(ctx, bson.M{"payment_session_id": sessionID}, sessionID)
}

// MarkPaidIfPending uses FindOneAndUpdate filtered on the pending state, which the
// server applies atomically per document.
func (m *MongoOrderRepository) MarkPaidIfPending(ctx context.Context, sessionID string, confirmation models.PaymentConfirmation, paidAt time.Time) (*models.Order, bool, error) {
	filter := bson.M{"payment_session_id": sessionID, "payment_state": models.PaymentPending}
	update := bson.M{"$set": bson.M{
		"payment_state": models.PaymentPaid,
		"paid_at":       paidAt,
		"payment_confirmation": confirmationDocument{
			ExternalID: confirmation.ExternalID,
			Status:     confirmation.Status,
			PayerEmail: confirmation.PayerEmail,
		},
		"updated_at": paidAt,
	}}
	return m.transition(ctx, filter, update, func() (*models.Order, error) {
		return m.GetBySessionID(ctx, sessionID)
	})
}

// MarkDeliveredIfUndelivered uses FindOneAndUpdate filtered on the undelivered state.
func (m *MongoOrderRepository) MarkDeliveredIfUndelivered(ctx context.Context, id string, deliveredAt time.Time) (*models.Order, bool, error) {
	filter := bson.M{"_id": id, "delivery_state": models.DeliveryUndelivered}
	update := bson.M{"$set": bson.M{
		"delivery_state": models.DeliveryDelivered,
		"delivered_at":   deliveredAt,
		"updated_at":     deliveredAt,
	}}
	return m.transition(ctx, filter, update, func() (*models.Order, error) {
		return m.GetByID(ctx, id)
	})
}

// ListByOwner returns the owner's orders, newest first.
func (m *MongoOrderRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Order, error) {
	return m.find(ctx, bson.M{"owner_id": ownerID})
}

// ListAll returns every order, newest first.
func (m *MongoOrderRepository) ListAll(ctx context.Context) ([]models.Order, error) {
	return m.find(ctx, bson.M{})
}

// Delete removes an order document.
func (m *MongoOrderRepository) Delete(ctx context.Context, id string) error {
	res, err := m.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	return nil
}

func (m *MongoOrderRepository) transition(ctx context.Context, filter, update bson.M, current func() (*models.Order, error)) (*models.Order, bool, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc orderDocument
	err := m.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Either absent or already transitioned; the lookup tells which.
		order, lookupErr := current()
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		return order, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to update order: %w", err)
	}
	order, err := doc.toModel()
	if err != nil {
		return nil, false, err
	}
	return order, true, nil
}

func (m *MongoOrderRepository) findOne(ctx context.Context, filter bson.M, key string) (*models.Order, error) {
	var doc orderDocument
	err := m.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("order %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order %s: %w", key, err)
	}
	return doc.toModel()
}

func (m *MongoOrderRepository) find(ctx context.Context, filter bson.M) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []orderDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	orders := make([]models.Order, 0, len(docs))
	for i := range docs {
		order, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

// orderDocument is the BSON shape of an order. Money is stored as Decimal128.
type orderDocument struct {
	ID                  string               `bson:"_id"`
	OwnerID             string               `bson:"owner_id"`
	Items               []itemDocument       `bson:"items"`
	ShippingAddress     addressDocument      `bson:"shipping_address"`
	PaymentMethod       string               `bson:"payment_method"`
	ItemsTotal          primitive.Decimal128 `bson:"items_total"`
	TaxTotal            primitive.Decimal128 `bson:"tax_total"`
	ShippingTotal       primitive.Decimal128 `bson:"shipping_total"`
	GrandTotal          primitive.Decimal128 `bson:"grand_total"`
	PaymentSessionID    string               `bson:"payment_session_id,omitempty"`
	PaymentState        models.PaymentState  `bson:"payment_state"`
	PaidAt              *time.Time           `bson:"paid_at,omitempty"`
	PaymentConfirmation confirmationDocument `bson:"payment_confirmation"`
	DeliveryState       models.DeliveryState `bson:"delivery_state"`
	DeliveredAt         *time.Time           `bson:"delivered_at,omitempty"`
	CreatedAt           time.Time            `bson:"created_at"`
	UpdatedAt           time.Time            `bson:"updated_at"`
}

type itemDocument struct {
	ProductRef string               `bson:"product_ref"`
	Name       string               `bson:"name"`
	Quantity   int                  `bson:"quantity"`
	UnitPrice  primitive.Decimal128 `bson:"unit_price"`
	ImageRef   string               `bson:"image_ref,omitempty"`
}

type addressDocument struct {
	Street     string `bson:"street"`
	City       string `bson:"city"`
	PostalCode string `bson:"postal_code"`
	Country    string `bson:"country"`
}

type confirmationDocument struct {
	ExternalID string `bson:"external_id"`
	Status     string `bson:"status"`
	PayerEmail string `bson:"payer_email"`
}

func toOrderDocument(o *models.Order) (*orderDocument, error) {
	amounts := []decimal.Decimal{o.Amounts.ItemsTotal, o.Amounts.TaxTotal, o.Amounts.ShippingTotal, o.Amounts.GrandTotal}
	converted := make([]primitive.Decimal128, len(amounts))
	for i, d := range amounts {
		v, err := toDecimal128(d)
		if err != nil {
			return nil, err
		}
		converted[i] = v
	}

	items := make([]itemDocument, 0, len(o.Items))
	for _, it := range o.Items {
		price, err := toDecimal128(it.UnitPrice)
		if err != nil {
			return nil, err
		}
		items = append(items, itemDocument{
			ProductRef: it.ProductRef,
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  price,
			ImageRef:   it.ImageRef,
		})
	}

	return &orderDocument{
		ID:      o.ID,
		OwnerID: o.OwnerID,
		Items:   items,
		ShippingAddress: addressDocument{
			Street:     o.ShippingAddress.Street,
			City:       o.ShippingAddress.City,
			PostalCode: o.ShippingAddress.PostalCode,
			Country:    o.ShippingAddress.Country,
		},
		PaymentMethod:    o.PaymentMethod,
		ItemsTotal:       converted[0],
		TaxTotal:         converted[1],
		ShippingTotal:    converted[2],
		GrandTotal:       converted[3],
		PaymentSessionID: o.PaymentSessionID,
		PaymentState:     o.PaymentState,
		PaidAt:           o.PaidAt,
		PaymentConfirmation: confirmationDocument{
			ExternalID: o.PaymentConfirmation.ExternalID,
			Status:     o.PaymentConfirmation.Status,
			PayerEmail: o.PaymentConfirmation.PayerEmail,
		},
		DeliveryState: o.DeliveryState,
		DeliveredAt:   o.DeliveredAt,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}, nil
}

func (d *orderDocument) toModel() (*models.Order, error) {
	amounts := []primitive.Decimal128{d.ItemsTotal, d.TaxTotal, d.ShippingTotal, d.GrandTotal}
	parsed := make([]decimal.Decimal, len(amounts))
	for i, v := range amounts {
		p, err := fromDecimal128(v)
		if err != nil {
			return nil, err
		}
		parsed[i] = p
	}

	items := make([]models.OrderItem, 0, len(d.Items))
	for _, it := range d.Items {
		price, err := fromDecimal128(it.UnitPrice)
		if err != nil {
			return nil, err
		}
		items = append(items, models.OrderItem{
			ProductRef: it.ProductRef,
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  price,
			ImageRef:   it.ImageRef,
		})
	}

	return &models.Order{
		ID:      d.ID,
		OwnerID: d.OwnerID,
		Items:   items,
		ShippingAddress: models.ShippingAddress{
			Street:     d.ShippingAddress.Street,
			City:       d.ShippingAddress.City,
			PostalCode: d.ShippingAddress.PostalCode,
			Country:    d.ShippingAddress.Country,
		},
		PaymentMethod: d.PaymentMethod,
		Amounts: models.Amounts{
			ItemsTotal:    parsed[0],
			TaxTotal:      parsed[1],
			ShippingTotal: parsed[2],
			GrandTotal:    parsed[3],
		},
		PaymentSessionID: d.PaymentSessionID,
		PaymentState:     d.PaymentState,
		PaidAt:           d.PaidAt,
		PaymentConfirmation: models.PaymentConfirmation{
			ExternalID: d.PaymentConfirmation.ExternalID,
			Status:     d.PaymentConfirmation.Status,
			PayerEmail: d.PaymentConfirmation.PayerEmail,
		},
		DeliveryState: d.DeliveryState,
		DeliveredAt:   d.DeliveredAt,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("failed to encode amount %s: %w", d.String(), err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to decode amount %s: %w", v.String(), err)
	}
	return d, nil
}
