package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sadaltman/hackiiit-bsr/internal/apperrors"
	"github.com/sadaltman/hackiiit-bsr/internal/config"
	"github.com/sadaltman/hackiiit-bsr/internal/models"
)

// ListingSearchOptions carries the browse/search filters for listings.
type ListingSearchOptions struct {
	Keyword     string
	CategoryID  *primitive.ObjectID
	ListingType models.ListingType
	Page        int
	PageSize    int
}

// IListingService defines the interface for listing-related operations. It is
// the listing store of the purchase flow: MarkSold is the single conditional
// update that decides a sale.
type IListingService interface {
	CreateListing(ctx context.Context, userID primitive.ObjectID, title, description string, price float64, listingType models.ListingType, categoryID primitive.ObjectID) (*models.Listing, error)
	FindListingByID(ctx context.Context, listingID primitive.ObjectID) (*models.Listing, error)
	UpdateListing(ctx context.Context, listingID, userID primitive.ObjectID, updates map[string]interface{}) (*models.Listing, error)
	DeleteListing(ctx context.Context, listingID, userID primitive.ObjectID) error
	SearchListings(ctx context.Context, opts ListingSearchOptions) ([]models.Listing, int64, error)
	RecentListings(ctx context.Context, limit int) ([]models.Listing, error)
	FindListingsByOwner(ctx context.Context, userID primitive.ObjectID, status models.ListingStatus) ([]models.Listing, error)
	MarkSold(ctx context.Context, listingID, buyerID primitive.ObjectID) error
	SetImageKey(ctx context.Context, listingID, userID primitive.ObjectID, imageKey string) error
}

const listingsCollection = "listings"

// listingService implements IListingService.
type listingService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewListingService creates a new ListingService.
func NewListingService(db *mongo.Database, cfg *config.Config) IListingService {
	return &listingService{db: db, cfg: cfg}
}

// CreateListing creates a new active listing document.
func (s *listingService) CreateListing(ctx context.Context, userID primitive.ObjectID, title, description string, price float64, listingType models.ListingType, categoryID primitive.ObjectID) (*models.Listing, error) {
	if title == "" || description == "" {
		return nil, fmt.Errorf("%w: title and description are required", apperrors.ErrValidation)
	}
	if price < 0 {
		return nil, fmt.Errorf("%w: price must be a positive number", apperrors.ErrValidation)
	}
	if !models.ValidListingType(listingType) {
		return nil, fmt.Errorf("%w: invalid listing type %q", apperrors.ErrValidation, listingType)
	}

	now := time.Now().UTC()
	newListing := &models.Listing{
		ID:          primitive.NewObjectID(),
		UserID:      userID,
		Title:       title,
		Description: description,
		Price:       price,
		ListingType: listingType,
		CategoryID:  categoryID,
		Status:      models.ListingStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := s.db.Collection(listingsCollection).InsertOne(ctx, newListing); err != nil {
		return nil, fmt.Errorf("failed to insert new listing for user %s: %w", userID.Hex(), err)
	}
	return newListing, nil
}

// FindListingByID finds a listing by its ID. It does NOT check ownership.
func (s *listingService) FindListingByID(ctx context.Context, listingID primitive.ObjectID) (*models.Listing, error) {
	var listing models.Listing
	err := s.db.Collection(listingsCollection).FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: listing not found", apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("error finding listing by ID %s: %w", listingID.Hex(), err)
	}
	return &listing, nil
}

// UpdateListing updates mutable fields of a listing owned by the specified user.
// Status and buyer can never be changed this way; the purchase service owns those.
func (s *listingService) UpdateListing(ctx context.Context, listingID, userID primitive.ObjectID, updates map[string]interface{}) (*models.Listing, error) {
	allowedUpdates := bson.M{}
	for key, value := range updates {
		switch key {
		case "title", "description", "price", "listing_type", "category":
			allowedUpdates[key] = value
		default:
			return nil, fmt.Errorf("%w: field %q cannot be updated", apperrors.ErrValidation, key)
		}
	}
	if len(allowedUpdates) == 0 {
		return nil, fmt.Errorf("%w: no valid fields provided for update", apperrors.ErrValidation)
	}
	if price, ok := allowedUpdates["price"]; ok {
		if p, ok := price.(float64); ok && p < 0 {
			return nil, fmt.Errorf("%w: price must be a positive number", apperrors.ErrValidation)
		}
	}
	allowedUpdates["updated_at"] = time.Now().UTC()

	filter := bson.M{"_id": listingID, "user_id": userID}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updatedListing models.Listing
	err := s.db.Collection(listingsCollection).FindOneAndUpdate(ctx, filter, bson.M{"$set": allowedUpdates}, opts).Decode(&updatedListing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.explainMissing(ctx, listingID, userID)
		}
		return nil, fmt.Errorf("failed to update listing %s: %w", listingID.Hex(), err)
	}
	return &updatedListing, nil
}

// DeleteListing removes a listing owned by the specified user. Messages and
// purchase requests that reference it are left in place; readers must tolerate
// the orphans.
func (s *listingService) DeleteListing(ctx context.Context, listingID, userID primitive.ObjectID) error {
	result, err := s.db.Collection(listingsCollection).DeleteOne(ctx, bson.M{"_id": listingID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("db error deleting listing %s: %w", listingID.Hex(), err)
	}
	if result.DeletedCount == 0 {
		return s.explainMissing(ctx, listingID, userID)
	}
	return nil
}

// explainMissing distinguishes "no such listing" from "not yours" after a
// zero-match ownership-filtered write.
func (s *listingService) explainMissing(ctx context.Context, listingID, userID primitive.ObjectID) error {
	var listing models.Listing
	err := s.db.Collection(listingsCollection).FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: listing not found", apperrors.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("db error checking listing %s: %w", listingID.Hex(), err)
	}
	if listing.UserID != userID {
		return fmt.Errorf("%w: listing does not belong to user", apperrors.ErrForbidden)
	}
	return fmt.Errorf("%w: listing cannot be modified", apperrors.ErrConflict)
}

// SearchListings returns a page of non-inactive listings matching the filters,
// newest first, plus the total match count for pagination.
func (s *listingService) SearchListings(ctx context.Context, opts ListingSearchOptions) ([]models.Listing, int64, error) {
	collection := s.db.Collection(listingsCollection)

	filter := bson.M{"status": bson.M{"$ne": models.ListingStatusInactive}}
	if opts.Keyword != "" {
		filter["$or"] = bson.A{
			bson.M{"title": bson.M{"$regex": opts.Keyword, "$options": "i"}},
			bson.M{"description": bson.M{"$regex": opts.Keyword, "$options": "i"}},
		}
	}
	if opts.CategoryID != nil {
		filter["category"] = *opts.CategoryID
	}
	if opts.ListingType != "" {
		filter["listing_type"] = opts.ListingType
	}

	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}
	page := opts.Page
	if page <= 0 {
		page = 1
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(pageSize)).
		SetSkip(int64(pageSize * (page - 1)))

	cursor, err := collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute listing search query: %w", err)
	}
	defer cursor.Close(ctx)

	var results []models.Listing
	if err = cursor.All(ctx, &results); err != nil {
		return nil, 0, fmt.Errorf("failed to decode listing search results: %w", err)
	}
	return results, total, nil
}

// RecentListings returns the latest non-inactive listings for the landing page.
func (s *listingService) RecentListings(ctx context.Context, limit int) ([]models.Listing, error) {
	if limit <= 0 {
		limit = 6
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.db.Collection(listingsCollection).Find(ctx, bson.M{"status": bson.M{"$ne": models.ListingStatusInactive}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent listings: %w", err)
	}
	defer cursor.Close(ctx)

	var results []models.Listing
	if err = cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode recent listings: %w", err)
	}
	return results, nil
}

// FindListingsByOwner returns a user's listings filtered by status, newest first.
func (s *listingService) FindListingsByOwner(ctx context.Context, userID primitive.ObjectID, status models.ListingStatus) ([]models.Listing, error) {
	filter := bson.M{"user_id": userID}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(listingsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listings for user %s: %w", userID.Hex(), err)
	}
	defer cursor.Close(ctx)

	var results []models.Listing
	if err = cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode user listings: %w", err)
	}
	return results, nil
}

// MarkSold transitions a listing from active to sold (inactive + buyer set) as
// a single conditional update. When two approvals race on the same listing,
// exactly one matches the status filter; the other returns Conflict and has
// written nothing.
func (s *listingService) MarkSold(ctx context.Context, listingID, buyerID primitive.ObjectID) error {
	filter := bson.M{"_id": listingID, "status": models.ListingStatusActive}
	update := bson.M{"$set": bson.M{
		"status":     models.ListingStatusInactive,
		"buyer":      buyerID,
		"updated_at": time.Now().UTC(),
	}}

	result, err := s.db.Collection(listingsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error marking listing %s sold: %w", listingID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		var listing models.Listing
		checkErr := s.db.Collection(listingsCollection).FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
		if errors.Is(checkErr, mongo.ErrNoDocuments) {
			return fmt.Errorf("%w: listing not found", apperrors.ErrNotFound)
		}
		return fmt.Errorf("%w: listing is no longer available", apperrors.ErrConflict)
	}
	return nil
}

// SetImageKey stores the processed image key on a listing owned by the user.
func (s *listingService) SetImageKey(ctx context.Context, listingID, userID primitive.ObjectID, imageKey string) error {
	filter := bson.M{"_id": listingID, "user_id": userID}
	update := bson.M{"$set": bson.M{"image_key": imageKey, "updated_at": time.Now().UTC()}}
	result, err := s.db.Collection(listingsCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error setting image for listing %s: %w", listingID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return s.explainMissing(ctx, listingID, userID)
	}
	return nil
}
