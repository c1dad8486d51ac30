package services

import (
	"math"
	"sync"

	"github.com/secure-ai-studio/backend/internal/config"
	"github.com/secure-ai-studio/backend/internal/models"
	"github.com/secure-ai-studio/backend/pkg/logger"
	"gorm.io/gorm"
)

// BudgetLedger is the single serialized authority over spending. All
// mutations run under one mutex so no interleaving can violate
// spent + sum(reservations) <= cap.
//
// When constructed with a database the spent counter and open reservations
// are durable; reservations found at startup belong to jobs that were in
// flight before a restart and are restored as holds.
type BudgetLedger struct {
	mu           sync.Mutex
	capCents     int64
	spentCents   int64
	reservations map[string]int64
	warnCents    int64
	blockCents   int64
	production   bool
	halted       bool
	db           *gorm.DB
}

// BudgetStatus is a point-in-time snapshot of the ledger.
type BudgetStatus struct {
	SpentCents    int64 `json:"spent_cents"`
	CapCents      int64 `json:"cap_cents"`
	ReservedCents int64 `json:"reserved_cents"`
	WarnTriggered bool  `json:"warn_triggered"`
	Halted        bool  `json:"halted"`
}

// NewBudgetLedger creates a ledger for the given budget configuration.
// db may be nil, in which case the ledger is memory-only.
func NewBudgetLedger(db *gorm.DB, cfg *config.BudgetConfig, production bool) (*BudgetLedger, error) {
	l := &BudgetLedger{
		capCents:     cfg.CapCents,
		reservations: make(map[string]int64),
		warnCents:    int64(math.Floor(float64(cfg.CapCents) * cfg.WarnRatio)),
		blockCents:   int64(math.Floor(float64(cfg.CapCents) * cfg.BlockRatio)),
		production:   production,
		db:           db,
	}

	if db != nil {
		if err := l.restore(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// restore loads the durable counter and any reservations left over from
// jobs that were in flight at shutdown.
func (l *BudgetLedger) restore() error {
	var state models.BudgetState
	err := l.db.First(&state, 1).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		state = models.BudgetState{ID: 1, CapCents: l.capCents}
		if err := l.db.Create(&state).Error; err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		l.spentCents = state.SpentCents
	}

	var held []models.BudgetReservation
	if err := l.db.Find(&held).Error; err != nil {
		return err
	}
	for _, r := range held {
		l.reservations[r.JobID] = r.Cents
	}
	if len(held) > 0 {
		logger.Infof("[Budget] Restored %d in-flight reservations", len(held))
	}
	return nil
}

// Reserve places a hold of cents against the cap for the given job. It fails
// with BudgetExceededError when the hold would push total exposure past the
// block threshold.
func (l *BudgetLedger) Reserve(jobID string, cents int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.halted {
		return ErrLedgerHalted
	}
	if _, exists := l.reservations[jobID]; exists {
		return ErrDuplicateReservation
	}

	if l.spentCents+l.reservedLocked()+cents > l.blockCents {
		return &BudgetExceededError{
			RequestedCents: cents,
			AvailableCents: max64(0, l.blockCents-l.spentCents-l.reservedLocked()),
		}
	}

	l.reservations[jobID] = cents

	if l.db != nil {
		if err := l.db.Create(&models.BudgetReservation{JobID: jobID, Cents: cents}).Error; err != nil {
			delete(l.reservations, jobID)
			l.halt("persist reservation", err)
			return ErrLedgerHalted
		}
	}
	return nil
}

// Commit moves the job's reservation into spent permanently. Calling it a
// second time, or after Release, is a no-op.
func (l *BudgetLedger) Commit(jobID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cents, ok := l.reservations[jobID]
	if !ok {
		return
	}
	delete(l.reservations, jobID)
	l.spentCents += cents

	if l.db != nil {
		err := l.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.BudgetState{}).Where("id = ?", 1).
				Update("spent_cents", l.spentCents).Error; err != nil {
				return err
			}
			return tx.Where("job_id = ?", jobID).Delete(&models.BudgetReservation{}).Error
		})
		if err != nil {
			l.halt("persist commit", err)
		}
	}
}

// Release drops the job's reservation without touching spent. Releasing an
// unknown or already-resolved job is a no-op; in particular Release after
// Commit does not refund anything.
func (l *BudgetLedger) Release(jobID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.reservations[jobID]; !ok {
		return
	}
	delete(l.reservations, jobID)

	if l.db != nil {
		if err := l.db.Where("job_id = ?", jobID).Delete(&models.BudgetReservation{}).Error; err != nil {
			l.halt("persist release", err)
		}
	}
}

// Status returns a snapshot of the ledger.
func (l *BudgetLedger) Status() BudgetStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	reserved := l.reservedLocked()
	return BudgetStatus{
		SpentCents:    l.spentCents,
		CapCents:      l.capCents,
		ReservedCents: reserved,
		WarnTriggered: l.spentCents+reserved > l.warnCents,
		Halted:        l.halted,
	}
}

// Reset zeroes spending and drops all reservations. Only permitted outside
// production mode.
func (l *BudgetLedger) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.production {
		return ErrResetForbidden
	}

	l.spentCents = 0
	l.reservations = make(map[string]int64)
	l.halted = false

	if l.db != nil {
		err := l.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.BudgetState{}).Where("id = ?", 1).
				Update("spent_cents", 0).Error; err != nil {
				return err
			}
			return tx.Where("1 = 1").Delete(&models.BudgetReservation{}).Error
		})
		if err != nil {
			l.halt("persist reset", err)
			return ErrLedgerHalted
		}
	}
	return nil
}

// Halted reports whether the ledger stopped admitting reservations after a
// detected inconsistency.
func (l *BudgetLedger) Halted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.halted
}

func (l *BudgetLedger) reservedLocked() int64 {
	var total int64
	for _, c := range l.reservations {
		total += c
	}
	return total
}

func (l *BudgetLedger) halt(op string, err error) {
	l.halted = true
	logger.Error().Err(err).Str("op", op).Msg("[Budget] ledger halted, admissions stopped pending operator action")
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
