package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sadaltman/hackiiit-bsr/internal/api/middleware"
	"github.com/sadaltman/hackiiit-bsr/internal/apperrors"
)

// currentUserID extracts the authenticated user's ID set by AuthMiddleware.
// Aborts with 401 when missing or malformed.
func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	hex := c.GetString(middleware.ContextKeyUserID)
	if hex == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid user identity"})
		return primitive.NilObjectID, false
	}
	return id, true
}

// parseIDParam parses an ObjectID path parameter, responding 400 on failure.
func parseIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + " format"})
		return primitive.NilObjectID, false
	}
	return id, true
}

// respondError maps service errors onto HTTP statuses. Anything outside the
// known taxonomy is a 500 with a generic body; the detail goes to the Gin
// error log, not the client.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
