package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Conversation is a derived grouping of messages by counterpart user and
// listing. It is recomputed from the message store on every fetch; nothing is
// persisted.
type Conversation struct {
	OtherUserID   primitive.ObjectID `json:"other_user_id"`
	OtherUsername string             `json:"other_username,omitempty"` // joined in at the API boundary
	ListingID     primitive.ObjectID `json:"listing_id"`
	ListingTitle  string             `json:"listing_title,omitempty"` // joined in at the API boundary
	LatestMessage *Message           `json:"latest_message"`
	UnreadCount   int                `json:"unread_count"`
}
