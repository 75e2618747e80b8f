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
	"github.com/sadaltman/hackiiit-bsr/internal/db"
	"github.com/sadaltman/hackiiit-bsr/internal/models"
)

// IMessageService is the message/request store plus the conversation
// aggregator. Request status transitions are conditional updates; the
// purchase service relies on them to fail closed under races.
type IMessageService interface {
	CreateMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
	FindPendingRequest(ctx context.Context, senderID, recipientID, listingID primitive.ObjectID) (*models.Message, error)
	SettleRequest(ctx context.Context, messageID primitive.ObjectID, to models.PurchaseStatus) error
	DeclineOtherPending(ctx context.Context, listingID, exceptSenderID primitive.ObjectID) ([]models.Message, error)
	ListConversations(ctx context.Context, userID primitive.ObjectID) ([]models.Conversation, error)
	GetThread(ctx context.Context, userID, otherUserID, listingID primitive.ObjectID) ([]models.Message, error)
	UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error)
	FindPendingRequestsByRecipient(ctx context.Context, recipientID primitive.ObjectID) ([]models.Message, error)
	FindRequestsBySender(ctx context.Context, senderID primitive.ObjectID) ([]models.Message, error)
}

const messagesCollection = "messages"

// messageService implements IMessageService.
type messageService struct {
	db *mongo.Database
}

// NewMessageService creates a new MessageService.
func NewMessageService(database *mongo.Database) IMessageService {
	return &messageService{db: database}
}

// CreateMessage inserts a message document. A duplicate-key error from the
// unique pending-request index means the sender already has a pending request
// on the listing and is reported as Conflict.
func (s *messageService) CreateMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if msg.Content == "" {
		return nil, fmt.Errorf("%w: message content is required", apperrors.ErrValidation)
	}
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	if _, err := s.db.Collection(messagesCollection).InsertOne(ctx, msg); err != nil {
		if db.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: you already have a pending purchase request for this listing", apperrors.ErrConflict)
		}
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}

// FindPendingRequest looks up the single pending purchase request a buyer has
// open towards a recipient for a listing.
func (s *messageService) FindPendingRequest(ctx context.Context, senderID, recipientID, listingID primitive.ObjectID) (*models.Message, error) {
	filter := bson.M{
		"sender":          senderID,
		"recipient":       recipientID,
		"listing":         listingID,
		"purchase.status": models.PurchaseStatusPending,
	}
	var msg models.Message
	err := s.db.Collection(messagesCollection).FindOne(ctx, filter).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: purchase request not found", apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("error finding purchase request: %w", err)
	}
	return &msg, nil
}

// SettleRequest flips a pending purchase request to approved or declined and
// marks it read. The pending filter makes the transition conditional: a
// request already settled by a concurrent decision matches zero documents and
// yields Conflict.
func (s *messageService) SettleRequest(ctx context.Context, messageID primitive.ObjectID, to models.PurchaseStatus) error {
	if to != models.PurchaseStatusApproved && to != models.PurchaseStatusDeclined {
		return fmt.Errorf("%w: purchase request can only move to approved or declined", apperrors.ErrValidation)
	}
	filter := bson.M{"_id": messageID, "purchase.status": models.PurchaseStatusPending}
	update := bson.M{"$set": bson.M{"purchase.status": to, "read": true}}

	result, err := s.db.Collection(messagesCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error settling purchase request %s: %w", messageID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: purchase request is no longer pending", apperrors.ErrConflict)
	}
	return nil
}

// DeclineOtherPending declines every pending request on a listing except the
// named buyer's and returns the requests that were affected so the caller can
// notify their senders.
func (s *messageService) DeclineOtherPending(ctx context.Context, listingID, exceptSenderID primitive.ObjectID) ([]models.Message, error) {
	filter := bson.M{
		"listing":         listingID,
		"purchase.status": models.PurchaseStatusPending,
		"sender":          bson.M{"$ne": exceptSenderID},
	}

	cursor, err := s.db.Collection(messagesCollection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find rival purchase requests: %w", err)
	}
	var rivals []models.Message
	if err = cursor.All(ctx, &rivals); err != nil {
		return nil, fmt.Errorf("failed to decode rival purchase requests: %w", err)
	}
	if len(rivals) == 0 {
		return nil, nil
	}

	update := bson.M{"$set": bson.M{"purchase.status": models.PurchaseStatusDeclined}}
	if _, err := s.db.Collection(messagesCollection).UpdateMany(ctx, filter, update); err != nil {
		return nil, fmt.Errorf("failed to decline rival purchase requests: %w", err)
	}
	return rivals, nil
}

// ListConversations groups all of a user's messages into per-counterparty,
// per-listing summaries, ordered by latest message (newest first). The result
// is recomputed from the store on every call; there is no materialized view.
// No pagination; acceptable for campus-scale conversation counts.
func (s *messageService) ListConversations(ctx context.Context, userID primitive.ObjectID) ([]models.Conversation, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender": userID},
		bson.M{"recipient": userID},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := s.db.Collection(messagesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages for user %s: %w", userID.Hex(), err)
	}
	defer cursor.Close(ctx)

	var msgs []models.Message
	if err = cursor.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	return GroupConversations(userID, msgs), nil
}

// GroupConversations builds conversation summaries from a newest-first message
// list. The first message seen per (counterpart, listing) key is that
// conversation's latest; unread counts consider only messages addressed to the
// viewer.
func GroupConversations(userID primitive.ObjectID, newestFirst []models.Message) []models.Conversation {
	conversations := []models.Conversation{}
	index := map[string]int{}

	for i := range newestFirst {
		msg := newestFirst[i]
		otherID := msg.SenderID
		if msg.SenderID == userID {
			otherID = msg.RecipientID
		}
		key := otherID.Hex() + "-" + msg.ListingID.Hex()

		at, seen := index[key]
		if !seen {
			conversations = append(conversations, models.Conversation{
				OtherUserID:   otherID,
				ListingID:     msg.ListingID,
				LatestMessage: &newestFirst[i],
			})
			at = len(conversations) - 1
			index[key] = at
		}
		if msg.RecipientID == userID && !msg.Read {
			conversations[at].UnreadCount++
		}
	}
	return conversations
}

// GetThread returns all messages between the two users about the listing,
// oldest first, and marks every unread message addressed to the caller as read
// in the same call (read-on-fetch, no separate acknowledgment step).
func (s *messageService) GetThread(ctx context.Context, userID, otherUserID, listingID primitive.ObjectID) ([]models.Message, error) {
	filter := bson.M{
		"$or": bson.A{
			bson.M{"sender": userID, "recipient": otherUserID},
			bson.M{"sender": otherUserID, "recipient": userID},
		},
		"listing": listingID,
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := s.db.Collection(messagesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch thread: %w", err)
	}
	defer cursor.Close(ctx)

	var msgs []models.Message
	if err = cursor.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode thread messages: %w", err)
	}

	readFilter := bson.M{
		"sender":    otherUserID,
		"recipient": userID,
		"listing":   listingID,
		"read":      false,
	}
	if _, err := s.db.Collection(messagesCollection).UpdateMany(ctx, readFilter, bson.M{"$set": bson.M{"read": true}}); err != nil {
		return nil, fmt.Errorf("failed to mark thread messages read: %w", err)
	}

	// Reflect the side effect in the returned slice so the caller sees the
	// post-fetch state.
	for i := range msgs {
		if msgs[i].RecipientID == userID {
			msgs[i].Read = true
		}
	}
	return msgs, nil
}

// UnreadCount returns the total number of unread messages addressed to the
// user. The client polls this on a fixed interval.
func (s *messageService) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	count, err := s.db.Collection(messagesCollection).CountDocuments(ctx, bson.M{"recipient": userID, "read": false})
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

// FindPendingRequestsByRecipient returns pending purchase requests addressed
// to a seller, newest first. Requests whose listing has since been deleted are
// included; the caller filters the orphans.
func (s *messageService) FindPendingRequestsByRecipient(ctx context.Context, recipientID primitive.ObjectID) ([]models.Message, error) {
	filter := bson.M{"recipient": recipientID, "purchase.status": models.PurchaseStatusPending}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(messagesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch incoming purchase requests: %w", err)
	}
	defer cursor.Close(ctx)

	var msgs []models.Message
	if err = cursor.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode incoming purchase requests: %w", err)
	}
	return msgs, nil
}

// FindRequestsBySender returns every purchase request a buyer has made, in any
// state, newest first.
func (s *messageService) FindRequestsBySender(ctx context.Context, senderID primitive.ObjectID) ([]models.Message, error) {
	filter := bson.M{"sender": senderID, "purchase": bson.M{"$ne": nil}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(messagesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch purchase requests by sender: %w", err)
	}
	defer cursor.Close(ctx)

	var msgs []models.Message
	if err = cursor.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode purchase requests by sender: %w", err)
	}
	return msgs, nil
}
