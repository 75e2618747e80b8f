package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ListingType describes what the poster wants to do with the item.
type ListingType string

const (
	ListingTypeBuy  ListingType = "buy"
	ListingTypeSell ListingType = "sell"
	ListingTypeRent ListingType = "rent"
)

// ValidListingType reports whether t is one of the accepted listing types.
func ValidListingType(t ListingType) bool {
	switch t {
	case ListingTypeBuy, ListingTypeSell, ListingTypeRent:
		return true
	}
	return false
}

// ListingStatus is the lifecycle state of a listing.
type ListingStatus string

const (
	ListingStatusActive   ListingStatus = "active"
	ListingStatusPending  ListingStatus = "pending"
	ListingStatusInactive ListingStatus = "inactive"
)

// Listing represents an item posted for sale, purchase-wanted, or rent.
//
// Invariant: BuyerID is non-nil if and only if Status is inactive because of a
// completed sale, and the buyer is never the owner. Only the purchase service
// sets Status/BuyerID on a sale.
type Listing struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	UserID      primitive.ObjectID  `bson:"user_id" json:"user_id"`
	Title       string              `bson:"title" json:"title"`
	Description string              `bson:"description" json:"description"`
	Price       float64             `bson:"price" json:"price"`
	ListingType ListingType         `bson:"listing_type" json:"listing_type"`
	CategoryID  primitive.ObjectID  `bson:"category" json:"category"`
	ImageKey    string              `bson:"image_key,omitempty" json:"image_key,omitempty"` // S3 key of processed image
	Status      ListingStatus       `bson:"status" json:"status"`
	BuyerID     *primitive.ObjectID `bson:"buyer,omitempty" json:"buyer,omitempty"`
	CreatedAt   time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time           `bson:"updated_at" json:"updated_at"`
}
