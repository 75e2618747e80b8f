package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sadaltman/hackiiit-bsr/internal/services"
)

// RestConfigHandler serves the public client configuration.
type RestConfigHandler struct {
	configService services.IConfigService
}

// NewRestConfigHandler creates a new RestConfigHandler.
func NewRestConfigHandler(configService services.IConfigService) *RestConfigHandler {
	return &RestConfigHandler{configService: configService}
}

// GetPublicConfig handles GET /v1/config
func (h *RestConfigHandler) GetPublicConfig(c *gin.Context) {
	cfg, err := h.configService.GetPublicConfig(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}
