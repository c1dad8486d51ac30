package services

import (
	"time"

	"github.com/secure-ai-studio/backend/internal/models"
	"github.com/secure-ai-studio/backend/pkg/logger"
	"gorm.io/gorm"
)

// UsageService tracks per-dispatch generation logs and aggregates them for
// reporting. With a nil db it degrades to a no-op recorder.
type UsageService struct {
	db *gorm.DB
}

func NewUsageService(db *gorm.DB) *UsageService {
	return &UsageService{db: db}
}

// Record saves a generation log entry asynchronously. The fallback flag
// marks dispatches where an outage forced an alternative provider.
func (s *UsageService) Record(jobID, provider, model, mediaType string, costCents int64, latency time.Duration, success, fallback bool) {
	if s.db == nil {
		return
	}
	entry := &models.GenerationLog{
		JobID:     jobID,
		Provider:  provider,
		Model:     model,
		MediaType: mediaType,
		CostCents: costCents,
		LatencyMs: latency.Milliseconds(),
		Success:   success,
		Fallback:  fallback,
	}
	go func() {
		if err := s.db.Create(entry).Error; err != nil {
			logger.Infof("[Usage] Failed to record generation log: %v", err)
		}
	}()
}

// UsageStats holds aggregated generation statistics.
type UsageStats struct {
	TotalDispatches int64   `json:"total_dispatches"`
	TotalCostCents  int64   `json:"total_cost_cents"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
	SuccessRate     float64 `json:"success_rate"`
	SuccessCount    int64   `json:"success_count"`
	FailureCount    int64   `json:"failure_count"`
	FallbackCount   int64   `json:"fallback_count"`
}

// GetStats returns aggregated generation statistics for the given date range.
func (s *UsageService) GetStats(startDate, endDate string) (*UsageStats, error) {
	if s.db == nil {
		return &UsageStats{}, nil
	}
	query := s.db.Model(&models.GenerationLog{})
	if startDate != "" {
		query = query.Where("created_at >= ?", startDate)
	}
	if endDate != "" {
		query = query.Where("created_at <= ?", endDate+" 23:59:59")
	}

	var stats UsageStats
	err := query.Select(
		"COUNT(*) as total_dispatches, " +
			"COALESCE(SUM(cost_cents), 0) as total_cost_cents, " +
			"COALESCE(AVG(latency_ms), 0) as avg_latency_ms, " +
			"COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0) as success_count, " +
			"COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0) as failure_count, " +
			"COALESCE(SUM(CASE WHEN fallback = 1 THEN 1 ELSE 0 END), 0) as fallback_count",
	).Scan(&stats).Error
	if err != nil {
		return nil, err
	}

	if stats.TotalDispatches > 0 {
		stats.SuccessRate = float64(stats.SuccessCount) / float64(stats.TotalDispatches) * 100
	}
	return &stats, nil
}

// ProviderUsage holds generation data grouped by provider and model.
type ProviderUsage struct {
	Provider       string  `json:"provider"`
	Model          string  `json:"model"`
	MediaType      string  `json:"media_type"`
	Dispatches     int     `json:"dispatches"`
	TotalCostCents int64   `json:"total_cost_cents"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	SuccessRate    float64 `json:"success_rate"`
}

// GetProviderBreakdown returns generation data grouped by provider and model.
func (s *UsageService) GetProviderBreakdown(startDate, endDate string) ([]ProviderUsage, error) {
	if s.db == nil {
		return []ProviderUsage{}, nil
	}
	query := s.db.Model(&models.GenerationLog{})
	if startDate != "" {
		query = query.Where("created_at >= ?", startDate)
	}
	if endDate != "" {
		query = query.Where("created_at <= ?", endDate+" 23:59:59")
	}

	var results []ProviderUsage
	err := query.Select(
		"provider, model, media_type, " +
			"COUNT(*) as dispatches, " +
			"COALESCE(SUM(cost_cents), 0) as total_cost_cents, " +
			"COALESCE(AVG(latency_ms), 0) as avg_latency_ms, " +
			"COALESCE(AVG(CASE WHEN success = 1 THEN 100.0 ELSE 0.0 END), 0) as success_rate",
	).Group("provider, model, media_type").Order("dispatches DESC").Scan(&results).Error
	if err != nil {
		return nil, err
	}

	if results == nil {
		results = []ProviderUsage{}
	}
	return results, nil
}

// CleanupBefore deletes generation logs older than the given time.
func (s *UsageService) CleanupBefore(before time.Time) (int64, error) {
	if s.db == nil {
		return 0, nil
	}
	result := s.db.Where("created_at < ?", before).Delete(&models.GenerationLog{})
	return result.RowsAffected, result.Error
}
