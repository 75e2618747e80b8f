package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sadaltman/hackiiit-bsr/internal/apperrors"
	"github.com/sadaltman/hackiiit-bsr/internal/auth"
	"github.com/sadaltman/hackiiit-bsr/internal/config"
	"github.com/sadaltman/hackiiit-bsr/internal/db"
	"github.com/sadaltman/hackiiit-bsr/internal/models"
)

// IUserService handles registration, login and profile lookups.
type IUserService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindUsersByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error)
}

const usersCollection = "users"

type userService struct {
	db     *mongo.Database
	config *config.Config
}

// NewUserService creates a new UserService.
func NewUserService(database *mongo.Database, cfg *config.Config) IUserService {
	return &userService{db: database, config: cfg}
}

// Register creates a new user account. Email domains are restricted to the
// configured campus domains when any are set.
func (s *userService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" {
		return nil, fmt.Errorf("%w: username is required", apperrors.ErrValidation)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", apperrors.ErrValidation)
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return nil, fmt.Errorf("%w: invalid email address", apperrors.ErrValidation)
	}
	if len(s.config.AllowedEmailDomains) > 0 {
		domain := email[at+1:]
		allowed := false
		for _, d := range s.config.AllowedEmailDomains {
			if domain == d {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, fmt.Errorf("%w: registration requires a campus email address", apperrors.ErrValidation)
		}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           primitive.NewObjectID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := s.db.Collection(usersCollection).InsertOne(ctx, user); err != nil {
		if db.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: username or email is already taken", apperrors.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login verifies credentials and returns the user along with a signed JWT.
// Unknown email and wrong password produce the same error so the endpoint
// does not leak which accounts exist.
func (s *userService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, "", fmt.Errorf("%w: invalid email or password", apperrors.ErrForbidden)
		}
		return nil, "", fmt.Errorf("error finding user: %w", err)
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, "", fmt.Errorf("%w: invalid email or password", apperrors.ErrForbidden)
	}

	token, err := auth.GenerateJWT(user.ID, s.config.JwtSecret, s.config.JwtTTL)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// FindUserByID fetches a single user.
func (s *userService) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: user not found", apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("error finding user %s: %w", id.Hex(), err)
	}
	return &user, nil
}

// FindUsersByIDs batch-fetches users keyed by ID. Missing IDs are simply
// absent from the map; the conversation handler uses this to join usernames.
func (s *userService) FindUsersByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	users := map[primitive.ObjectID]models.User{}
	if len(ids) == 0 {
		return users, nil
	}

	cursor, err := s.db.Collection(usersCollection).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	defer cursor.Close(ctx)

	var list []models.User
	if err = cursor.All(ctx, &list); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	for _, u := range list {
		users[u.ID] = u
	}
	return users, nil
}
