package models

import "time"

// StorageObject is a TTL-bound result held for retrieval through a
// pre-signed URL. Once ExpiresAt passes the object is unreachable no matter
// how often it was fetched before; DeletedAt records the sweep that removed it.
type StorageObject struct {
	ID         uint       `gorm:"primaryKey" json:"-"`
	ObjectID   string     `gorm:"uniqueIndex;size:64;not null" json:"object_id"`
	OwnerJobID string     `gorm:"index;size:64;not null" json:"owner_job_id"`
	ContentRef string     `gorm:"size:1000;not null" json:"content_ref"`
	ExpiresAt  time.Time  `gorm:"index;not null" json:"expires_at"`
	DeletedAt  *time.Time `gorm:"index" json:"deleted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (StorageObject) TableName() string { return "storage_objects" }
