package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/secure-ai-studio/backend/internal/services"
	"github.com/secure-ai-studio/backend/pkg/response"
)

type ProviderHandler struct {
	registry *services.ProviderRegistry
}

func NewProviderHandler(registry *services.ProviderRegistry) *ProviderHandler {
	return &ProviderHandler{registry: registry}
}

// List returns the provider catalog with compliance tiers and unit costs
// GET /api/providers
func (h *ProviderHandler) List(c *gin.Context) {
	response.Success(c, h.registry.List())
}
