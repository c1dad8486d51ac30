package models

import "time"

// BudgetState is the durable counter behind the budget ledger. A single row
// (ID=1) holds the authoritative spent amount so the cap invariant survives
// restarts.
type BudgetState struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CapCents   int64     `gorm:"not null" json:"cap_cents"`
	SpentCents int64     `gorm:"not null;default:0" json:"spent_cents"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BudgetReservation is a transient hold against the cap, created before
// dispatch and removed when the reservation is committed or released.
// Rows surviving a restart belong to jobs that were in flight and are
// restored into the ledger on startup.
type BudgetReservation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	JobID     string    `gorm:"uniqueIndex;size:64;not null" json:"job_id"`
	Cents     int64     `gorm:"not null" json:"cents"`
	CreatedAt time.Time `json:"created_at"`
}

func (BudgetState) TableName() string       { return "budget_states" }
func (BudgetReservation) TableName() string { return "budget_reservations" }
