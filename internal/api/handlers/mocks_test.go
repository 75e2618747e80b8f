package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sadaltman/hackiiit-bsr/internal/models"
	"github.com/sadaltman/hackiiit-bsr/internal/services"
)

// MockListingService implements services.IListingService.
type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) CreateListing(ctx context.Context, userID primitive.ObjectID, title, description string, price float64, listingType models.ListingType, categoryID primitive.ObjectID) (*models.Listing, error) {
	args := m.Called(ctx, userID, title, description, price, listingType, categoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) FindListingByID(ctx context.Context, listingID primitive.ObjectID) (*models.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) UpdateListing(ctx context.Context, listingID, userID primitive.ObjectID, updates map[string]interface{}) (*models.Listing, error) {
	args := m.Called(ctx, listingID, userID, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) DeleteListing(ctx context.Context, listingID, userID primitive.ObjectID) error {
	args := m.Called(ctx, listingID, userID)
	return args.Error(0)
}

func (m *MockListingService) SearchListings(ctx context.Context, opts services.ListingSearchOptions) ([]models.Listing, int64, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Listing), args.Get(1).(int64), args.Error(2)
}

func (m *MockListingService) RecentListings(ctx context.Context, limit int) ([]models.Listing, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *MockListingService) FindListingsByOwner(ctx context.Context, userID primitive.ObjectID, status models.ListingStatus) ([]models.Listing, error) {
	args := m.Called(ctx, userID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *MockListingService) MarkSold(ctx context.Context, listingID, buyerID primitive.ObjectID) error {
	args := m.Called(ctx, listingID, buyerID)
	return args.Error(0)
}

func (m *MockListingService) SetImageKey(ctx context.Context, listingID, userID primitive.ObjectID, imageKey string) error {
	args := m.Called(ctx, listingID, userID, imageKey)
	return args.Error(0)
}

// MockMessageService implements services.IMessageService.
type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) CreateMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) FindPendingRequest(ctx context.Context, senderID, recipientID, listingID primitive.ObjectID) (*models.Message, error) {
	args := m.Called(ctx, senderID, recipientID, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) SettleRequest(ctx context.Context, messageID primitive.ObjectID, to models.PurchaseStatus) error {
	args := m.Called(ctx, messageID, to)
	return args.Error(0)
}

func (m *MockMessageService) DeclineOtherPending(ctx context.Context, listingID, exceptSenderID primitive.ObjectID) ([]models.Message, error) {
	args := m.Called(ctx, listingID, exceptSenderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockMessageService) ListConversations(ctx context.Context, userID primitive.ObjectID) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Conversation), args.Error(1)
}

func (m *MockMessageService) GetThread(ctx context.Context, userID, otherUserID, listingID primitive.ObjectID) ([]models.Message, error) {
	args := m.Called(ctx, userID, otherUserID, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockMessageService) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageService) FindPendingRequestsByRecipient(ctx context.Context, recipientID primitive.ObjectID) ([]models.Message, error) {
	args := m.Called(ctx, recipientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockMessageService) FindRequestsBySender(ctx context.Context, senderID primitive.ObjectID) ([]models.Message, error) {
	args := m.Called(ctx, senderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

// MockPurchaseService implements services.IPurchaseService.
type MockPurchaseService struct {
	mock.Mock
}

func (m *MockPurchaseService) SubmitRequest(ctx context.Context, listingID, buyerID primitive.ObjectID, offeredPrice *float64) (*models.Message, error) {
	args := m.Called(ctx, listingID, buyerID, offeredPrice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockPurchaseService) ApproveRequest(ctx context.Context, listingID, buyerID, actingUserID primitive.ObjectID) error {
	args := m.Called(ctx, listingID, buyerID, actingUserID)
	return args.Error(0)
}

func (m *MockPurchaseService) DeclineRequest(ctx context.Context, listingID, buyerID, actingUserID primitive.ObjectID) error {
	args := m.Called(ctx, listingID, buyerID, actingUserID)
	return args.Error(0)
}

// MockUserService implements services.IUserService.
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	args := m.Called(ctx, username, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*models.User), args.String(1), args.Error(2)
}

func (m *MockUserService) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) FindUsersByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[primitive.ObjectID]models.User), args.Error(1)
}

// MockCategoryService implements services.ICategoryService.
type MockCategoryService struct {
	mock.Mock
}

func (m *MockCategoryService) ListCategories(ctx context.Context) ([]models.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Category), args.Error(1)
}

func (m *MockCategoryService) SeedDefaults(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
