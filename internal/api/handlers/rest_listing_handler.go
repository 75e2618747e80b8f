package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sadaltman/hackiiit-bsr/internal/apperrors"
	"github.com/sadaltman/hackiiit-bsr/internal/models"
	"github.com/sadaltman/hackiiit-bsr/internal/services"
	"github.com/sadaltman/hackiiit-bsr/internal/storage"
	"github.com/sadaltman/hackiiit-bsr/internal/tasks"
)

// RestListingHandler handles REST requests for listings, including the
// purchase endpoints nested under /v1/listing/:id.
type RestListingHandler struct {
	listingService  services.IListingService
	messageService  services.IMessageService
	purchaseService services.IPurchaseService
	storageService  storage.IS3Storage // nil when S3 is not configured
	taskClient      *asynq.Client      // nil in API-only deployments without Redis
}

// NewRestListingHandler creates a new RestListingHandler.
func NewRestListingHandler(
	listingService services.IListingService,
	messageService services.IMessageService,
	purchaseService services.IPurchaseService,
	storageService storage.IS3Storage,
	taskClient *asynq.Client,
) *RestListingHandler {
	return &RestListingHandler{
		listingService:  listingService,
		messageService:  messageService,
		purchaseService: purchaseService,
		storageService:  storageService,
		taskClient:      taskClient,
	}
}

type createListingRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description" binding:"required"`
	Price       float64 `json:"price"`
	ListingType string  `json:"listing_type" binding:"required"`
	CategoryID  string  `json:"category_id" binding:"required"`
}

// CreateListing handles POST /v1/listing
func (h *RestListingHandler) CreateListing(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	categoryID, err := primitive.ObjectIDFromHex(req.CategoryID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category_id format"})
		return
	}

	listing, err := h.listingService.CreateListing(c.Request.Context(), userID, req.Title, req.Description, req.Price, models.ListingType(req.ListingType), categoryID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, listing)
}

// GetListingByID handles GET /v1/listing/:id
func (h *RestListingHandler) GetListingByID(c *gin.Context) {
	listingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	listing, err := h.listingService.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// UpdateListing handles PUT /v1/listing/:id
func (h *RestListingHandler) UpdateListing(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	listingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	// category arrives as a hex string; the store wants an ObjectID
	if raw, ok := updates["category"]; ok {
		hex, isStr := raw.(string)
		if !isStr {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category format"})
			return
		}
		categoryID, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category format"})
			return
		}
		updates["category"] = categoryID
	}

	listing, err := h.listingService.UpdateListing(c.Request.Context(), listingID, userID, updates)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// DeleteListing handles DELETE /v1/listing/:id
func (h *RestListingHandler) DeleteListing(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	listingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.listingService.DeleteListing(c.Request.Context(), listingID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Listing deleted"})
}

// SearchListings handles GET /v1/listing/search
func (h *RestListingHandler) SearchListings(c *gin.Context) {
	opts := services.ListingSearchOptions{
		Keyword:     c.Query("q"),
		ListingType: models.ListingType(c.Query("type")),
	}
	if categoryHex := c.Query("category"); categoryHex != "" {
		categoryID, err := primitive.ObjectIDFromHex(categoryHex)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category format"})
			return
		}
		opts.CategoryID = &categoryID
	}
	opts.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	opts.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "10"))

	listings, total, err := h.listingService.SearchListings(c.Request.Context(), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": listings, "total": total})
}

// RecentListings handles GET /v1/listing/recent
func (h *RestListingHandler) RecentListings(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "6"))
	listings, err := h.listingService.RecentListings(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": listings})
}

// MyListings handles GET /v1/listing/mine, the seller/buyer dashboard. It
// returns the caller's own listings plus their incoming and outgoing purchase
// requests. Requests whose listing has been deleted are dropped rather than
// surfaced as broken entries.
func (h *RestListingHandler) MyListings(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	listings, err := h.listingService.FindListingsByOwner(ctx, userID, models.ListingStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}

	incoming, err := h.messageService.FindPendingRequestsByRecipient(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	outgoing, err := h.messageService.FindRequestsBySender(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"listings":          listings,
		"incoming_requests": h.withListings(c, incoming),
		"outgoing_requests": h.withListings(c, outgoing),
	})
}

// requestWithListing pairs a purchase request with its listing snapshot.
type requestWithListing struct {
	Request models.Message  `json:"request"`
	Listing *models.Listing `json:"listing"`
}

// withListings joins each request to its listing, silently skipping orphans.
func (h *RestListingHandler) withListings(c *gin.Context, requests []models.Message) []requestWithListing {
	out := []requestWithListing{}
	for _, req := range requests {
		listing, err := h.listingService.FindListingByID(c.Request.Context(), req.ListingID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			log.Printf("WARNING: failed to load listing %s for request %s: %v", req.ListingID.Hex(), req.ID.Hex(), err)
			continue
		}
		out = append(out, requestWithListing{Request: req, Listing: listing})
	}
	return out
}

type buyListingRequest struct {
	Price *float64 `json:"price"`
}

// BuyListing handles POST /v1/listing/:id/buy
func (h *RestListingHandler) BuyListing(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	listingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req buyListingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
			return
		}
	}

	request, err := h.purchaseService.SubmitRequest(c.Request.Context(), listingID, userID, req.Price)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, request)
}

// ApprovePurchase handles POST /v1/listing/:id/approve/:user_id
func (h *RestListingHandler) ApprovePurchase(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	listingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	buyerID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}

	if err := h.purchaseService.ApproveRequest(c.Request.Context(), listingID, buyerID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Purchase approved"})
}

// DeclinePurchase handles POST /v1/listing/:id/decline/:user_id
func (h *RestListingHandler) DeclinePurchase(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	listingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	buyerID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}

	if err := h.purchaseService.DeclineRequest(c.Request.Context(), listingID, buyerID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Purchase declined"})
}

type imageUploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// RequestImageUpload handles POST /v1/listing/:id/image. It returns a
// presigned S3 PUT URL; the client uploads directly and then confirms.
func (h *RestListingHandler) RequestImageUpload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	listingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if h.storageService == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Image uploads are not configured"})
		return
	}

	var req imageUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	// Ownership check before handing out upload credentials.
	listing, err := h.listingService.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, err)
		return
	}
	if listing.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "listing does not belong to user"})
		return
	}

	url, key, err := h.storageService.GeneratePresignedPutURL(c.Request.Context(), userID.Hex(), listingID.Hex(), req.Filename, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"upload_url": url, "key": key})
}

type imageConfirmRequest struct {
	Key string `json:"key" binding:"required"`
}

// ConfirmImageUpload handles POST /v1/listing/:id/image/confirm. The uploaded
// object is normalized in the background before the key lands on the listing.
func (h *RestListingHandler) ConfirmImageUpload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	listingID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if h.taskClient == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Image processing is not configured"})
		return
	}

	var req imageConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	listing, err := h.listingService.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, err)
		return
	}
	if listing.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "listing does not belong to user"})
		return
	}

	if err := tasks.EnqueueImageProcess(c.Request.Context(), h.taskClient, req.Key, listingID, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Image queued for processing"})
}
