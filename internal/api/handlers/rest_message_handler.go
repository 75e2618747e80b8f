package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sadaltman/hackiiit-bsr/internal/apperrors"
	"github.com/sadaltman/hackiiit-bsr/internal/models"
	"github.com/sadaltman/hackiiit-bsr/internal/services"
)

// RestMessageHandler handles REST requests for messaging and conversations.
type RestMessageHandler struct {
	messageService services.IMessageService
	userService    services.IUserService
	listingService services.IListingService
}

// NewRestMessageHandler creates a new RestMessageHandler.
func NewRestMessageHandler(
	messageService services.IMessageService,
	userService services.IUserService,
	listingService services.IListingService,
) *RestMessageHandler {
	return &RestMessageHandler{
		messageService: messageService,
		userService:    userService,
		listingService: listingService,
	}
}

type sendMessageRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"`
	ListingID   string `json:"listing_id" binding:"required"`
	Content     string `json:"content" binding:"required"`
}

// SendMessage handles POST /v1/message, a plain chat message within a
// listing's conversation. Purchase requests go through /v1/listing/:id/buy.
func (h *RestMessageHandler) SendMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	recipientID, err := primitive.ObjectIDFromHex(req.RecipientID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipient_id format"})
		return
	}
	listingID, err := primitive.ObjectIDFromHex(req.ListingID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing_id format"})
		return
	}
	if recipientID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot message yourself"})
		return
	}

	// The recipient must exist; the listing may already be deleted and the
	// conversation still works.
	if _, err := h.userService.FindUserByID(c.Request.Context(), recipientID); err != nil {
		respondError(c, err)
		return
	}

	msg, err := h.messageService.CreateMessage(c.Request.Context(), models.NewChatMessage(userID, recipientID, listingID, req.Content))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// GetConversations handles GET /v1/message. Counterpart usernames and listing
// titles are joined here at the API boundary; messages store only IDs.
func (h *RestMessageHandler) GetConversations(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	conversations, err := h.messageService.ListConversations(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	otherIDs := make([]primitive.ObjectID, 0, len(conversations))
	seen := map[primitive.ObjectID]bool{}
	for _, conv := range conversations {
		if !seen[conv.OtherUserID] {
			seen[conv.OtherUserID] = true
			otherIDs = append(otherIDs, conv.OtherUserID)
		}
	}
	users, err := h.userService.FindUsersByIDs(ctx, otherIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	titles := map[primitive.ObjectID]string{}
	for i := range conversations {
		conv := &conversations[i]
		if user, found := users[conv.OtherUserID]; found {
			conv.OtherUsername = user.Username
		}
		if _, cached := titles[conv.ListingID]; !cached {
			listing, err := h.listingService.FindListingByID(ctx, conv.ListingID)
			switch {
			case err == nil:
				titles[conv.ListingID] = listing.Title
			case errors.Is(err, apperrors.ErrNotFound):
				// deleted listing, conversation survives without a title
				titles[conv.ListingID] = ""
			default:
				respondError(c, err)
				return
			}
		}
		conv.ListingTitle = titles[conv.ListingID]
	}

	c.JSON(http.StatusOK, gin.H{"data": conversations})
}

// GetThread handles GET /v1/message/:user_id/:listing_id. Fetching a thread
// marks its unread messages read; the next unread poll reflects that.
func (h *RestMessageHandler) GetThread(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	otherUserID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}
	listingID, ok := parseIDParam(c, "listing_id")
	if !ok {
		return
	}

	msgs, err := h.messageService.GetThread(c.Request.Context(), userID, otherUserID, listingID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": msgs})
}

// GetUnreadCount handles GET /v1/message/unread, the poll target for the
// navbar badge.
func (h *RestMessageHandler) GetUnreadCount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	count, err := h.messageService.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}
