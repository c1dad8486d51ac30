package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/secure-ai-studio/backend/internal/services"
	"github.com/secure-ai-studio/backend/pkg/response"
)

type BudgetHandler struct {
	ledger *services.BudgetLedger
}

func NewBudgetHandler(ledger *services.BudgetLedger) *BudgetHandler {
	return &BudgetHandler{ledger: ledger}
}

// Status returns the current ledger snapshot
// GET /api/budget-status
func (h *BudgetHandler) Status(c *gin.Context) {
	response.Success(c, h.ledger.Status())
}

// Reset zeroes the ledger. Refused outside development mode.
// POST /api/reset-budget
func (h *BudgetHandler) Reset(c *gin.Context) {
	if err := h.ledger.Reset(); err != nil {
		if errors.Is(err, services.ErrResetForbidden) {
			response.Forbidden(c, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, h.ledger.Status())
}
