package models

import "time"

// ConsentRecord captures explicit, scoped consent from a subject. Scope is
// the media class the subject agreed to ("image", "video" or "media:all");
// PolicyVersion identifies the consent policy text the subject saw.
type ConsentRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SubjectID     string    `gorm:"index;size:100;not null" json:"subject_id"`
	Scope         string    `gorm:"size:50;not null" json:"scope"`
	PolicyVersion string    `gorm:"size:20;not null" json:"policy_version"`
	GrantedAt     time.Time `gorm:"not null" json:"granted_at"`
	CreatedAt     time.Time `json:"created_at"`
}

func (ConsentRecord) TableName() string { return "consent_records" }
