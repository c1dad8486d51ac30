package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/secure-ai-studio/backend/internal/services"
	"gorm.io/gorm"
)

// HealthHandler reports the health of the gateway's subsystems.
type HealthHandler struct {
	db      *gorm.DB
	ledger  *services.BudgetLedger
	tracker *services.JobTracker
}

func NewHealthHandler(db *gorm.DB, ledger *services.BudgetLedger, tracker *services.JobTracker) *HealthHandler {
	return &HealthHandler{db: db, ledger: ledger, tracker: tracker}
}

// CheckHealth returns the health status of all subsystems.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"

	// Database check
	dbStatus := "ok"
	if h.db == nil {
		dbStatus = "disabled"
	} else if sqlDB, err := h.db.DB(); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	}

	// A halted ledger refuses all reservations until restart.
	ledgerStatus := "ok"
	if h.ledger.Halted() {
		ledgerStatus = "halted"
		overall = "unhealthy"
	}

	c.JSON(200, gin.H{
		"status":  overall,
		"service": "secure-ai-studio",
		"components": gin.H{
			"database":    dbStatus,
			"ledger":      ledgerStatus,
			"active_jobs": h.tracker.ActiveCount(),
		},
	})
}
