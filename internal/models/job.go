package models

import "time"

// Job states. DISPATCHED and POLLING are live; SUCCEEDED, FAILED and EXPIRED
// are terminal and never transition further.
const (
	JobStateDispatched = "DISPATCHED"
	JobStatePolling    = "POLLING"
	JobStateSucceeded  = "SUCCEEDED"
	JobStateFailed     = "FAILED"
	JobStateExpired    = "EXPIRED"
)

// Job represents one external generation call, created at dispatch time and
// mutated only by the job tracker. The budget reservation it carries is
// resolved exactly once when the job reaches a terminal state.
type Job struct {
	ID             uint       `gorm:"primaryKey" json:"-"`
	JobID          string     `gorm:"uniqueIndex;size:64;not null" json:"job_id"`
	RequestID      string     `gorm:"size:64;index" json:"request_id"`
	Prompt         string     `gorm:"type:text" json:"-"`
	MediaType      string     `gorm:"size:20" json:"media_type"`
	QualityTier    string     `gorm:"size:20" json:"quality_tier"`
	ProviderID     string     `gorm:"size:100;index" json:"provider_id"`
	ModelID        string     `gorm:"size:100" json:"model_id"`
	ProviderJobID  string     `gorm:"size:200" json:"provider_job_id"`
	State          string     `gorm:"size:20;index;default:DISPATCHED" json:"state"`
	ReservedCents  int64      `json:"reserved_cents"`
	RetryCount     int        `gorm:"default:0" json:"retry_count"`
	FailureReason  string     `gorm:"size:500" json:"failure_reason,omitempty"`
	ResultObjectID string     `gorm:"size:64" json:"result_object_id,omitempty"`
	ResultURL      string     `gorm:"size:1000" json:"result_url,omitempty"`
	TerminalAt     *time.Time `gorm:"index" json:"terminal_at,omitempty"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (Job) TableName() string { return "jobs" }

// Terminal reports whether the job has reached a state after which no
// further transitions occur.
func (j *Job) Terminal() bool {
	switch j.State {
	case JobStateSucceeded, JobStateFailed, JobStateExpired:
		return true
	}
	return false
}
