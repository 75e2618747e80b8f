package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sadaltman/hackiiit-bsr/internal/services"
)

// RestCategoryHandler serves the category vocabulary.
type RestCategoryHandler struct {
	categoryService services.ICategoryService
}

// NewRestCategoryHandler creates a new RestCategoryHandler.
func NewRestCategoryHandler(categoryService services.ICategoryService) *RestCategoryHandler {
	return &RestCategoryHandler{categoryService: categoryService}
}

// ListCategories handles GET /v1/category
func (h *RestCategoryHandler) ListCategories(c *gin.Context) {
	categories, err := h.categoryService.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": categories})
}
