package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the application relies on. It is safe to
// call on every startup; Mongo treats identical index definitions as no-ops.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// One pending purchase request per (sender, listing). The partial filter
	// leaves plain chat messages and settled requests out of the constraint,
	// so a buyer can re-request after a decline.
	_, err := db.Collection("messages").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "sender", Value: 1}, {Key: "listing", Value: 1}},
		Options: options.Index().
			SetName("unique_pending_request").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"purchase.status": "pending"}),
	})
	if err != nil {
		return fmt.Errorf("failed to create pending request index: %w", err)
	}

	// Conversation fetches filter on participants + listing.
	_, err = db.Collection("messages").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "listing", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	// Keyword search over listings.
	_, err = db.Collection("listings").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "title", Value: "text"}, {Key: "description", Value: "text"}},
		Options: options.Index().SetName("listing_text"),
	})
	if err != nil {
		return fmt.Errorf("failed to create listing text index: %w", err)
	}

	// Category names are unique so concurrent seed runs cannot create
	// duplicates; the seeder retries the losing insert.
	_, err = db.Collection("categories").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetName("unique_category_name").SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create category name index: %w", err)
	}

	// Unique usernames and emails.
	_, err = db.Collection("users").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	return nil
}
