package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PurchaseStatus is the lifecycle state of a purchase request.
type PurchaseStatus string

const (
	PurchaseStatusPending  PurchaseStatus = "pending"
	PurchaseStatusApproved PurchaseStatus = "approved"
	PurchaseStatusDeclined PurchaseStatus = "declined"
)

// PurchaseDetails is present only on purchase-request messages. A plain chat
// or notification message carries a nil Purchase, so the invalid combination
// "request flag without status" cannot be represented.
type PurchaseDetails struct {
	Price  float64        `bson:"price" json:"price"`
	Status PurchaseStatus `bson:"status" json:"status"`
}

// Message is a chat message between two users about a listing. A message with
// a non-nil Purchase sub-document is a buyer's offer to purchase.
type Message struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Content     string             `bson:"content" json:"content"`
	SenderID    primitive.ObjectID `bson:"sender" json:"sender"`
	RecipientID primitive.ObjectID `bson:"recipient" json:"recipient"`
	ListingID   primitive.ObjectID `bson:"listing" json:"listing"`
	Read        bool               `bson:"read" json:"read"`
	Purchase    *PurchaseDetails   `bson:"purchase,omitempty" json:"purchase,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// IsPurchaseRequest reports whether the message represents a purchase request.
func (m *Message) IsPurchaseRequest() bool {
	return m.Purchase != nil
}

// NewChatMessage builds a plain chat message.
func NewChatMessage(sender, recipient, listing primitive.ObjectID, content string) *Message {
	return &Message{
		ID:          primitive.NewObjectID(),
		Content:     content,
		SenderID:    sender,
		RecipientID: recipient,
		ListingID:   listing,
		CreatedAt:   time.Now().UTC(),
	}
}

// NewPurchaseRequest builds a pending purchase-request message.
func NewPurchaseRequest(sender, recipient, listing primitive.ObjectID, content string, price float64) *Message {
	m := NewChatMessage(sender, recipient, listing, content)
	m.Purchase = &PurchaseDetails{Price: price, Status: PurchaseStatusPending}
	return m
}
