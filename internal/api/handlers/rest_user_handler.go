package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sadaltman/hackiiit-bsr/internal/services"
)

// RestUserHandler handles REST requests for user accounts.
type RestUserHandler struct {
	userService services.IUserService
}

// NewRestUserHandler creates a new RestUserHandler.
func NewRestUserHandler(userService services.IUserService) *RestUserHandler {
	return &RestUserHandler{userService: userService}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register handles POST /v1/user
func (h *RestUserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /v1/user/login
func (h *RestUserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	user, token, err := h.userService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// GetProfile handles GET /v1/user/:id
func (h *RestUserHandler) GetProfile(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	user, err := h.userService.FindUserByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	// The User model keeps the password hash out of JSON; nothing else is
	// sensitive here.
	c.JSON(http.StatusOK, user)
}
