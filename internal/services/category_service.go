package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sadaltman/hackiiit-bsr/internal/db"
	"github.com/sadaltman/hackiiit-bsr/internal/models"
)

// ICategoryService provides the fixed category vocabulary listings are
// classified under.
type ICategoryService interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	SeedDefaults(ctx context.Context) error
}

const categoriesCollection = "categories"

// defaultCategories are upserted on startup so a fresh database is usable
// immediately.
var defaultCategories = []string{"Food", "Grocery items", "Devices", "Clothes", "Misc"}

type categoryService struct {
	db *mongo.Database
}

// NewCategoryService creates a new CategoryService.
func NewCategoryService(database *mongo.Database) ICategoryService {
	return &categoryService{db: database}
}

// ListCategories returns all categories sorted by name.
func (s *categoryService) ListCategories(ctx context.Context) ([]models.Category, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := s.db.Collection(categoriesCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch categories: %w", err)
	}
	defer cursor.Close(ctx)

	var categories []models.Category
	if err = cursor.All(ctx, &categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}
	return categories, nil
}

// SeedDefaults upserts the default category set. Idempotent, safe to run on
// every startup. Two instances starting at once can race the same upsert;
// the loser hits the unique name index and the retry finds the winner's
// document already in place.
func (s *categoryService) SeedDefaults(ctx context.Context) error {
	for _, name := range defaultCategories {
		err := db.Try(func() error {
			filter := bson.M{"name": name}
			update := bson.M{"$setOnInsert": bson.M{"_id": primitive.NewObjectID(), "name": name}}
			opts := options.Update().SetUpsert(true)
			_, err := s.db.Collection(categoriesCollection).UpdateOne(ctx, filter, update, opts)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to seed category %q: %w", name, err)
		}
	}
	return nil
}
