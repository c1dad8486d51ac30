package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/secure-ai-studio/backend/internal/models"
	"github.com/secure-ai-studio/backend/internal/services"
	"gorm.io/gorm"
)

var startTime = time.Now()

// MetricsHandler exposes Prometheus-compatible text format metrics.
type MetricsHandler struct {
	db      *gorm.DB
	ledger  *services.BudgetLedger
	tracker *services.JobTracker
}

func NewMetricsHandler(db *gorm.DB, ledger *services.BudgetLedger, tracker *services.JobTracker) *MetricsHandler {
	return &MetricsHandler{db: db, ledger: ledger, tracker: tracker}
}

// Metrics returns Prometheus-compatible text format metrics.
func (h *MetricsHandler) Metrics(c *gin.Context) {
	var b strings.Builder

	// -- Runtime metrics --
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeGauge(&b, "studio_uptime_seconds", "Time since server start in seconds", float64(time.Since(startTime).Seconds()))
	writeGauge(&b, "studio_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
	writeGauge(&b, "studio_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))
	writeGauge(&b, "studio_memory_sys_bytes", "Total memory obtained from OS in bytes", float64(m.Sys))
	writeGauge(&b, "studio_gc_runs_total", "Total number of GC runs", float64(m.NumGC))

	// -- Database metrics --
	if h.db != nil {
		if sqlDB, err := h.db.DB(); err == nil {
			stats := sqlDB.Stats()
			writeGauge(&b, "studio_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
			writeGauge(&b, "studio_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
			writeGauge(&b, "studio_db_idle_connections", "Number of idle DB connections", float64(stats.Idle))
		}
	}

	// -- Budget metrics --
	status := h.ledger.Status()
	writeGauge(&b, "studio_budget_cap_cents", "Configured budget cap in cents", float64(status.CapCents))
	writeGauge(&b, "studio_budget_spent_cents", "Committed spend in cents", float64(status.SpentCents))
	writeGauge(&b, "studio_budget_reserved_cents", "Outstanding reservations in cents", float64(status.ReservedCents))
	warnVal := 0.0
	if status.WarnTriggered {
		warnVal = 1.0
	}
	writeGauge(&b, "studio_budget_warn_triggered", "Whether the warn threshold is crossed (1=yes, 0=no)", warnVal)
	haltedVal := 0.0
	if status.Halted {
		haltedVal = 1.0
	}
	writeGauge(&b, "studio_budget_halted", "Whether the ledger is halted (1=yes, 0=no)", haltedVal)

	// -- Job metrics --
	writeGauge(&b, "studio_jobs_active", "Number of live tracked jobs", float64(h.tracker.ActiveCount()))

	if h.db != nil {
		for _, state := range []string{models.JobStateSucceeded, models.JobStateFailed, models.JobStateExpired} {
			var count int64
			h.db.Model(&models.Job{}).Where("state = ?", state).Count(&count)
			writeGauge(&b, "studio_jobs_"+strings.ToLower(state)+"_total",
				"Total number of "+state+" jobs", float64(count))
		}

		// Generation calls (last 24h)
		since24h := time.Now().Add(-24 * time.Hour)
		var calls24h int64
		h.db.Model(&models.GenerationLog{}).Where("created_at >= ?", since24h).Count(&calls24h)
		writeGauge(&b, "studio_generation_calls_24h", "Provider calls in the last 24 hours", float64(calls24h))
	}

	c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n\n", name, value)
}
