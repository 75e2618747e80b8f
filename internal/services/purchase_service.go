package services

import (
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sadaltman/hackiiit-bsr/internal/apperrors"
	"github.com/sadaltman/hackiiit-bsr/internal/models"
)

// IDecisionNotifier delivers out-of-band notifications (email) about purchase
// decisions. In-app notification is done by inserting messages; this is the
// extra channel and is strictly best-effort.
type IDecisionNotifier interface {
	EnqueueDecisionEmail(ctx context.Context, recipientID primitive.ObjectID, subject, body string) error
}

// IPurchaseService is the purchase negotiation engine. It owns every
// status/buyer mutation on listings and every request-status mutation on
// messages; nothing else in the codebase writes those fields.
type IPurchaseService interface {
	SubmitRequest(ctx context.Context, listingID, buyerID primitive.ObjectID, offeredPrice *float64) (*models.Message, error)
	ApproveRequest(ctx context.Context, listingID, buyerID, actingUserID primitive.ObjectID) error
	DeclineRequest(ctx context.Context, listingID, buyerID, actingUserID primitive.ObjectID) error
}

// purchaseService implements IPurchaseService over the two injected stores.
type purchaseService struct {
	listings IListingService
	messages IMessageService
	notifier IDecisionNotifier // may be nil
}

// NewPurchaseService creates a new PurchaseService. notifier may be nil when
// no email pipeline is configured.
func NewPurchaseService(listings IListingService, messages IMessageService, notifier IDecisionNotifier) IPurchaseService {
	return &purchaseService{listings: listings, messages: messages, notifier: notifier}
}

// SubmitRequest records a buyer's offer on an active listing as a pending
// purchase-request message addressed to the owner. The listing itself is not
// touched: it stays active so other buyers may request too.
func (s *purchaseService) SubmitRequest(ctx context.Context, listingID, buyerID primitive.ObjectID, offeredPrice *float64) (*models.Message, error) {
	listing, err := s.listings.FindListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.ListingStatusActive {
		return nil, fmt.Errorf("%w: this listing is no longer available", apperrors.ErrConflict)
	}
	if listing.UserID == buyerID {
		return nil, fmt.Errorf("%w: you cannot buy your own listing", apperrors.ErrForbidden)
	}

	price := listing.Price
	if offeredPrice != nil {
		if *offeredPrice < 0 {
			return nil, fmt.Errorf("%w: offered price must be a positive number", apperrors.ErrValidation)
		}
		price = *offeredPrice
	}

	content := fmt.Sprintf("I would like to buy your listing %q for $%.2f.", listing.Title, price)
	request := models.NewPurchaseRequest(buyerID, listing.UserID, listing.ID, content, price)

	// The unique pending-request index backstops the duplicate check, so two
	// racing submissions cannot both create a pending request.
	created, err := s.messages.CreateMessage(ctx, request)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ApproveRequest accepts the named buyer's pending request: the listing is
// sold to that buyer, every rival pending request is declined and its sender
// notified, and the winner gets a confirmation message.
//
// Write order makes the operation race-free without a transaction: the
// listing's active→inactive transition goes first and is conditional, so of
// two concurrent approvals exactly one proceeds past MarkSold. The loser
// returns Conflict having mutated nothing; its target request stays pending
// and is declined by the winner's rival sweep.
func (s *purchaseService) ApproveRequest(ctx context.Context, listingID, buyerID, actingUserID primitive.ObjectID) error {
	listing, err := s.listings.FindListingByID(ctx, listingID)
	if err != nil {
		return err
	}
	if listing.UserID != actingUserID {
		return fmt.Errorf("%w: not authorized to approve this purchase", apperrors.ErrForbidden)
	}

	request, err := s.messages.FindPendingRequest(ctx, buyerID, actingUserID, listingID)
	if err != nil {
		return err
	}

	if err := s.listings.MarkSold(ctx, listingID, buyerID); err != nil {
		return err
	}

	if err := s.messages.SettleRequest(ctx, request.ID, models.PurchaseStatusApproved); err != nil {
		return err
	}

	rivals, err := s.messages.DeclineOtherPending(ctx, listingID, buyerID)
	if err != nil {
		return err
	}
	for _, rival := range rivals {
		content := fmt.Sprintf("Your purchase request for %q has been declined as the item has been sold to another buyer.", listing.Title)
		notice := models.NewChatMessage(actingUserID, rival.SenderID, listingID, content)
		if _, err := s.messages.CreateMessage(ctx, notice); err != nil {
			return err
		}
		s.notify(ctx, rival.SenderID, "Purchase request declined", content)
	}

	content := fmt.Sprintf("Your purchase request for %q has been approved! Please contact the seller to arrange payment and delivery.", listing.Title)
	confirmation := models.NewChatMessage(actingUserID, buyerID, listingID, content)
	if _, err := s.messages.CreateMessage(ctx, confirmation); err != nil {
		return err
	}
	s.notify(ctx, buyerID, "Purchase request approved", content)

	return nil
}

// DeclineRequest rejects the named buyer's pending request and notifies them.
// The listing stays active and open to other buyers.
func (s *purchaseService) DeclineRequest(ctx context.Context, listingID, buyerID, actingUserID primitive.ObjectID) error {
	listing, err := s.listings.FindListingByID(ctx, listingID)
	if err != nil {
		return err
	}
	if listing.UserID != actingUserID {
		return fmt.Errorf("%w: not authorized to decline this purchase", apperrors.ErrForbidden)
	}

	request, err := s.messages.FindPendingRequest(ctx, buyerID, actingUserID, listingID)
	if err != nil {
		return err
	}

	if err := s.messages.SettleRequest(ctx, request.ID, models.PurchaseStatusDeclined); err != nil {
		return err
	}

	content := fmt.Sprintf("Your purchase request for %q has been declined by the seller.", listing.Title)
	notice := models.NewChatMessage(actingUserID, buyerID, listingID, content)
	if _, err := s.messages.CreateMessage(ctx, notice); err != nil {
		return err
	}
	s.notify(ctx, buyerID, "Purchase request declined", content)

	return nil
}

func (s *purchaseService) notify(ctx context.Context, recipientID primitive.ObjectID, subject, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.EnqueueDecisionEmail(ctx, recipientID, subject, body); err != nil {
		log.Printf("WARNING: failed to enqueue decision email for user %s: %v", recipientID.Hex(), err)
	}
}
