package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/secure-ai-studio/backend/internal/services"
	"github.com/secure-ai-studio/backend/pkg/response"
)

type UsageHandler struct {
	usage *services.UsageService
}

func NewUsageHandler(usage *services.UsageService) *UsageHandler {
	return &UsageHandler{usage: usage}
}

// GetStats returns aggregated generation statistics
// GET /api/usage/stats
func (h *UsageHandler) GetStats(c *gin.Context) {
	stats, err := h.usage.GetStats(c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, stats)
}

// GetProviderBreakdown returns generation statistics grouped by provider
// GET /api/usage/providers
func (h *UsageHandler) GetProviderBreakdown(c *gin.Context) {
	breakdown, err := h.usage.GetProviderBreakdown(c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, breakdown)
}
