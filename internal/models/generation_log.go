package models

import "time"

// GenerationLog records one dispatched generation for usage reporting.
type GenerationLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	JobID      string    `gorm:"index;size:64" json:"job_id"`
	Provider   string    `gorm:"size:100;index" json:"provider"`
	Model      string    `gorm:"size:100" json:"model"`
	MediaType  string    `gorm:"size:20" json:"media_type"`
	CostCents  int64     `json:"cost_cents"`
	LatencyMs  int64     `json:"latency_ms"`
	Success    bool      `json:"success"`
	Fallback   bool      `json:"fallback"` // provider chosen via outage fallback
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (GenerationLog) TableName() string { return "generation_logs" }
