package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sadaltman/hackiiit-bsr/internal/apperrors"
	"github.com/sadaltman/hackiiit-bsr/internal/config"
	"github.com/sadaltman/hackiiit-bsr/internal/models"
	"github.com/sadaltman/hackiiit-bsr/internal/tasks"
)

// --- Mocks ---

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	args := m.Called(ctx, to, subject, rawMessage)
	return args.Error(0)
}

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

// --- Tests ---

func TestHandleEmailDeliveryTask_Success(t *testing.T) {
	mockSender := new(MockEmailSender)
	mockUsers := new(MockUserService)
	cfg := &config.Config{SmtpFromAddress: "noreply@marketplace.example.com"}
	p := tasks.NewTaskProcessor(cfg, mockSender, nil, nil, mockUsers)

	recipient := primitive.NewObjectID()
	mockUsers.On("FindUserByID", mock.Anything, recipient).
		Return(&models.User{ID: recipient, Email: "alice@students.iiit.ac.in"}, nil)
	mockSender.On("Send", mock.Anything, []string{"alice@students.iiit.ac.in"}, "Purchase request approved",
		mock.MatchedBy(func(raw []byte) bool {
			msg := string(raw)
			return strings.Contains(msg, "To: alice@students.iiit.ac.in") &&
				strings.Contains(msg, "Subject: Purchase request approved") &&
				strings.Contains(msg, "your offer was accepted")
		})).Return(nil)

	payload, _ := json.Marshal(tasks.EmailTaskPayload{
		RecipientID: recipient.Hex(),
		Subject:     "Purchase request approved",
		Body:        "your offer was accepted",
	})
	err := p.HandleEmailDeliveryTask(context.Background(), asynq.NewTask(tasks.TypeEmailDelivery, payload))
	assert.NoError(t, err)
	mockSender.AssertExpectations(t)
}

func TestHandleEmailDeliveryTask_RecipientGone(t *testing.T) {
	mockSender := new(MockEmailSender)
	mockUsers := new(MockUserService)
	p := tasks.NewTaskProcessor(&config.Config{}, mockSender, nil, nil, mockUsers)

	recipient := primitive.NewObjectID()
	mockUsers.On("FindUserByID", mock.Anything, recipient).
		Return(nil, apperrors.ErrNotFound)

	payload, _ := json.Marshal(tasks.EmailTaskPayload{RecipientID: recipient.Hex(), Subject: "s", Body: "b"})
	err := p.HandleEmailDeliveryTask(context.Background(), asynq.NewTask(tasks.TypeEmailDelivery, payload))

	// A deleted account must not leave the task retrying forever.
	assert.ErrorIs(t, err, asynq.SkipRetry)
	mockSender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEmailDeliveryTask_BadPayload(t *testing.T) {
	p := tasks.NewTaskProcessor(&config.Config{}, new(MockEmailSender), nil, nil, new(MockUserService))

	err := p.HandleEmailDeliveryTask(context.Background(), asynq.NewTask(tasks.TypeEmailDelivery, []byte("{not-json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleEmailDeliveryTask_SenderFailureRetries(t *testing.T) {
	mockSender := new(MockEmailSender)
	mockUsers := new(MockUserService)
	p := tasks.NewTaskProcessor(&config.Config{}, mockSender, nil, nil, mockUsers)

	recipient := primitive.NewObjectID()
	mockUsers.On("FindUserByID", mock.Anything, recipient).
		Return(&models.User{ID: recipient, Email: "bob@students.iiit.ac.in"}, nil)
	sendErr := errors.New("smtp error: connection refused")
	mockSender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(sendErr)

	payload, _ := json.Marshal(tasks.EmailTaskPayload{RecipientID: recipient.Hex(), Subject: "s", Body: "b"})
	err := p.HandleEmailDeliveryTask(context.Background(), asynq.NewTask(tasks.TypeEmailDelivery, payload))

	// Transient delivery errors propagate so asynq retries the task.
	assert.ErrorIs(t, err, sendErr)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}
