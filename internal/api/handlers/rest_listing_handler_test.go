package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sadaltman/hackiiit-bsr/internal/api/middleware"
	"github.com/sadaltman/hackiiit-bsr/internal/apperrors"
	"github.com/sadaltman/hackiiit-bsr/internal/models"
	"github.com/sadaltman/hackiiit-bsr/internal/services"
)

func setupListingRouter(h *RestListingHandler, authedUser primitive.ObjectID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if !authedUser.IsZero() {
			c.Set(middleware.ContextKeyUserID, authedUser.Hex())
		}
	})
	r.POST("/v1/listing", h.CreateListing)
	r.GET("/v1/listing/search", h.SearchListings)
	r.GET("/v1/listing/mine", h.MyListings)
	r.GET("/v1/listing/:id", h.GetListingByID)
	r.POST("/v1/listing/:id/buy", h.BuyListing)
	r.POST("/v1/listing/:id/approve/:user_id", h.ApprovePurchase)
	r.POST("/v1/listing/:id/decline/:user_id", h.DeclinePurchase)
	return r
}

func TestCreateListing(t *testing.T) {
	userID := primitive.NewObjectID()
	categoryID := primitive.NewObjectID()
	mockListings := new(MockListingService)
	h := NewRestListingHandler(mockListings, new(MockMessageService), new(MockPurchaseService), nil, nil)
	router := setupListingRouter(h, userID)

	created := &models.Listing{ID: primitive.NewObjectID(), UserID: userID, Title: "Kettle", Status: models.ListingStatusActive}
	mockListings.On("CreateListing", mock.Anything, userID, "Kettle", "barely used", 25.0, models.ListingTypeSell, categoryID).
		Return(created, nil)

	body, _ := json.Marshal(gin.H{
		"title":        "Kettle",
		"description":  "barely used",
		"price":        25.0,
		"listing_type": "sell",
		"category_id":  categoryID.Hex(),
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/listing", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockListings.AssertExpectations(t)
}

func TestCreateListing_MissingFields(t *testing.T) {
	h := NewRestListingHandler(new(MockListingService), new(MockMessageService), new(MockPurchaseService), nil, nil)
	router := setupListingRouter(h, primitive.NewObjectID())

	body, _ := json.Marshal(gin.H{"title": "Kettle"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/listing", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetListingByID_NotFound(t *testing.T) {
	mockListings := new(MockListingService)
	h := NewRestListingHandler(mockListings, new(MockMessageService), new(MockPurchaseService), nil, nil)
	router := setupListingRouter(h, primitive.NilObjectID)

	listingID := primitive.NewObjectID()
	mockListings.On("FindListingByID", mock.Anything, listingID).
		Return(nil, fmt.Errorf("%w: listing not found", apperrors.ErrNotFound))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/listing/"+listingID.Hex(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetListingByID_BadID(t *testing.T) {
	h := NewRestListingHandler(new(MockListingService), new(MockMessageService), new(MockPurchaseService), nil, nil)
	router := setupListingRouter(h, primitive.NilObjectID)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/listing/not-an-id", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchListings(t *testing.T) {
	mockListings := new(MockListingService)
	h := NewRestListingHandler(mockListings, new(MockMessageService), new(MockPurchaseService), nil, nil)
	router := setupListingRouter(h, primitive.NilObjectID)

	mockListings.On("SearchListings", mock.Anything, services.ListingSearchOptions{
		Keyword: "kettle", ListingType: models.ListingTypeSell, Page: 2, PageSize: 5,
	}).Return([]models.Listing{{Title: "Kettle"}}, int64(11), nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/listing/search?q=kettle&type=sell&page=2&page_size=5", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data  []models.Listing `json:"data"`
		Total int64            `json:"total"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, int64(11), resp.Total)
	mockListings.AssertExpectations(t)
}

func TestBuyListing(t *testing.T) {
	userID := primitive.NewObjectID()
	listingID := primitive.NewObjectID()
	mockPurchase := new(MockPurchaseService)
	h := NewRestListingHandler(new(MockListingService), new(MockMessageService), mockPurchase, nil, nil)
	router := setupListingRouter(h, userID)

	request := &models.Message{ID: primitive.NewObjectID(), SenderID: userID, ListingID: listingID,
		Purchase: &models.PurchaseDetails{Price: 25, Status: models.PurchaseStatusPending}}
	mockPurchase.On("SubmitRequest", mock.Anything, listingID, userID, (*float64)(nil)).Return(request, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/listing/"+listingID.Hex()+"/buy", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockPurchase.AssertExpectations(t)
}

func TestBuyListing_Conflict(t *testing.T) {
	userID := primitive.NewObjectID()
	listingID := primitive.NewObjectID()
	mockPurchase := new(MockPurchaseService)
	h := NewRestListingHandler(new(MockListingService), new(MockMessageService), mockPurchase, nil, nil)
	router := setupListingRouter(h, userID)

	mockPurchase.On("SubmitRequest", mock.Anything, listingID, userID, (*float64)(nil)).
		Return(nil, fmt.Errorf("%w: you already have a pending purchase request for this listing", apperrors.ErrConflict))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/listing/"+listingID.Hex()+"/buy", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestApprovePurchase(t *testing.T) {
	owner := primitive.NewObjectID()
	buyer := primitive.NewObjectID()
	listingID := primitive.NewObjectID()
	mockPurchase := new(MockPurchaseService)
	h := NewRestListingHandler(new(MockListingService), new(MockMessageService), mockPurchase, nil, nil)
	router := setupListingRouter(h, owner)

	mockPurchase.On("ApproveRequest", mock.Anything, listingID, buyer, owner).Return(nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/listing/"+listingID.Hex()+"/approve/"+buyer.Hex(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockPurchase.AssertExpectations(t)
}

func TestApprovePurchase_RaceLoser(t *testing.T) {
	owner := primitive.NewObjectID()
	buyer := primitive.NewObjectID()
	listingID := primitive.NewObjectID()
	mockPurchase := new(MockPurchaseService)
	h := NewRestListingHandler(new(MockListingService), new(MockMessageService), mockPurchase, nil, nil)
	router := setupListingRouter(h, owner)

	mockPurchase.On("ApproveRequest", mock.Anything, listingID, buyer, owner).
		Return(fmt.Errorf("%w: listing is no longer available", apperrors.ErrConflict))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/listing/"+listingID.Hex()+"/approve/"+buyer.Hex(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeclinePurchase_Forbidden(t *testing.T) {
	actor := primitive.NewObjectID()
	buyer := primitive.NewObjectID()
	listingID := primitive.NewObjectID()
	mockPurchase := new(MockPurchaseService)
	h := NewRestListingHandler(new(MockListingService), new(MockMessageService), mockPurchase, nil, nil)
	router := setupListingRouter(h, actor)

	mockPurchase.On("DeclineRequest", mock.Anything, listingID, buyer, actor).
		Return(fmt.Errorf("%w: not authorized to decline this purchase", apperrors.ErrForbidden))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/listing/"+listingID.Hex()+"/decline/"+buyer.Hex(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMyListings_FiltersOrphanedRequests(t *testing.T) {
	userID := primitive.NewObjectID()
	liveListing := primitive.NewObjectID()
	deadListing := primitive.NewObjectID()
	mockListings := new(MockListingService)
	mockMessages := new(MockMessageService)
	h := NewRestListingHandler(mockListings, mockMessages, new(MockPurchaseService), nil, nil)
	router := setupListingRouter(h, userID)

	mockListings.On("FindListingsByOwner", mock.Anything, userID, models.ListingStatus("")).
		Return([]models.Listing{}, nil)
	mockMessages.On("FindPendingRequestsByRecipient", mock.Anything, userID).
		Return([]models.Message{
			{ID: primitive.NewObjectID(), ListingID: liveListing, Purchase: &models.PurchaseDetails{Status: models.PurchaseStatusPending}},
			{ID: primitive.NewObjectID(), ListingID: deadListing, Purchase: &models.PurchaseDetails{Status: models.PurchaseStatusPending}},
		}, nil)
	mockMessages.On("FindRequestsBySender", mock.Anything, userID).
		Return([]models.Message{}, nil)
	mockListings.On("FindListingByID", mock.Anything, liveListing).
		Return(&models.Listing{ID: liveListing, Title: "Kettle"}, nil)
	mockListings.On("FindListingByID", mock.Anything, deadListing).
		Return(nil, fmt.Errorf("%w: listing not found", apperrors.ErrNotFound))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/listing/mine", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Incoming []requestWithListing `json:"incoming_requests"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// The deleted listing's request is dropped, not returned broken.
	assert.Len(t, resp.Incoming, 1)
	assert.Equal(t, liveListing, resp.Incoming[0].Listing.ID)
}

func TestAuthenticatedEndpoint_NoIdentity(t *testing.T) {
	h := NewRestListingHandler(new(MockListingService), new(MockMessageService), new(MockPurchaseService), nil, nil)
	router := setupListingRouter(h, primitive.NilObjectID)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/listing/"+primitive.NewObjectID().Hex()+"/buy", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
