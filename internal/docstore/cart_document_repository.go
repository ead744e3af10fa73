package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/routemart/checkout-backend/internal/models"
)

// ErrCartNotFound is returned when no cart document matches the lookup.
var ErrCartNotFound = errors.New("cart document not found")

// CartDocumentStore is the interface the checkout services depend on.
// Backed by Mongo in production, by fakes in tests.
type CartDocumentStore interface {
	GetByDurableID(ctx context.Context, durableID string) (*models.CartDocument, error)
	FindByProviderCartID(ctx context.Context, providerCartID string) (*models.CartDocument, error)
	MintCart(ctx context.Context, providerCartID, ticketType, branchCode string) (*models.CartDocument, error)
	Update(ctx context.Context, durableID string, fields map[string]interface{}) error
	SetStatus(ctx context.Context, durableID string, status models.CartStatus) error
}

// CartDocumentRepository stores cart documents and the durable-id counter
// in MongoDB.
type CartDocumentRepository struct {
	client   *mongo.Client
	carts    *mongo.Collection
	counters *mongo.Collection
}

// NewCartDocumentRepository creates a repository over the given database.
func NewCartDocumentRepository(client *mongo.Client, db *mongo.Database) *CartDocumentRepository {
	return &CartDocumentRepository{
		client:   client,
		carts:    db.Collection("carts"),
		counters: db.Collection("counters"),
	}
}

// GetByDurableID loads one cart document by its durable id.
func (r *CartDocumentRepository) GetByDurableID(ctx context.Context, durableID string) (*models.CartDocument, error) {
	var doc models.CartDocument
	err := r.carts.FindOne(ctx, bson.M{"_id": durableID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart document: %w", err)
	}
	return &doc, nil
}

// FindByProviderCartID looks up the cart minted for a provider cart id.
func (r *CartDocumentRepository) FindByProviderCartID(ctx context.Context, providerCartID string) (*models.CartDocument, error) {
	var doc models.CartDocument
	err := r.carts.FindOne(ctx, bson.M{"provider_cart_id": providerCartID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to find cart by provider cart id: %w", err)
	}
	return &doc, nil
}

// MintCart creates a new cart document with a freshly minted durable id.
// The counter increment and the document insert run in one session
// transaction so at most one durable id is ever minted per provider cart
// id, even under concurrent requests.
func (r *CartDocumentRepository) MintCart(ctx context.Context, providerCartID, ticketType, branchCode string) (*models.CartDocument, error) {
	session, err := r.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		counterKey := fmt.Sprintf("cart_id_%s%s", ticketType, branchCode)

		var counter struct {
			Value int64 `bson:"value"`
		}
		opts := options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After)
		err := r.counters.FindOneAndUpdate(sc,
			bson.M{"_id": counterKey},
			bson.M{"$inc": bson.M{"value": 1}},
			opts,
		).Decode(&counter)
		if err != nil {
			return nil, fmt.Errorf("failed to increment cart counter: %w", err)
		}

		now := time.Now()
		doc := &models.CartDocument{
			DurableID:      fmt.Sprintf("%s%s%06d", ticketType, branchCode, counter.Value),
			ProviderCartID: providerCartID,
			Status:         models.CartStatusActive,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		if _, err := r.carts.InsertOne(sc, doc); err != nil {
			return nil, fmt.Errorf("failed to insert cart document: %w", err)
		}

		return doc, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*models.CartDocument), nil
}

// Update sets the given fields on a cart document.
func (r *CartDocumentRepository) Update(ctx context.Context, durableID string, fields map[string]interface{}) error {
	set := bson.M{"updated_at": time.Now()}
	for k, v := range fields {
		set[k] = v
	}

	result, err := r.carts.UpdateOne(ctx, bson.M{"_id": durableID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update cart document: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

// SetStatus updates the cart status, honoring the monotonic invariant: a
// cart already confirmed or paid is never moved back.
func (r *CartDocumentRepository) SetStatus(ctx context.Context, durableID string, status models.CartStatus) error {
	filter := bson.M{"_id": durableID}
	if status == models.CartStatusAwaitingPayment || status == models.CartStatusActive {
		filter["status"] = bson.M{"$nin": bson.A{models.CartStatusConfirmed, models.CartStatusPaid}}
	}

	_, err := r.carts.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now(),
	}})
	if err != nil {
		return fmt.Errorf("failed to set cart status: %w", err)
	}
	return nil
}

// CreateIndexes provisions the provider-cart-id lookup index.
func (r *CartDocumentRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "provider_cart_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := r.carts.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create cart indexes: %w", err)
	}
	return nil
}
