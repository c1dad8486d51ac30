package services

import (
	"errors"
	"sync"
	"testing"

	"github.com/secure-ai-studio/backend/internal/config"
)

func newTestLedger(t *testing.T, capCents int64) *BudgetLedger {
	t.Helper()
	l, err := NewBudgetLedger(nil, &config.BudgetConfig{
		CapCents:   capCents,
		WarnRatio:  0.92,
		BlockRatio: 0.99,
	}, false)
	if err != nil {
		t.Fatalf("NewBudgetLedger: %v", err)
	}
	return l
}

func TestBudgetLedger_ReserveCommitRelease(t *testing.T) {
	l := newTestLedger(t, 500)

	if err := l.Reserve("job-1", 100); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	st := l.Status()
	if st.ReservedCents != 100 || st.SpentCents != 0 {
		t.Errorf("after reserve: reserved=%d spent=%d", st.ReservedCents, st.SpentCents)
	}

	l.Commit("job-1")
	st = l.Status()
	if st.ReservedCents != 0 || st.SpentCents != 100 {
		t.Errorf("after commit: reserved=%d spent=%d", st.ReservedCents, st.SpentCents)
	}

	if err := l.Reserve("job-2", 50); err != nil {
		t.Fatalf("Reserve job-2: %v", err)
	}
	l.Release("job-2")
	st = l.Status()
	if st.ReservedCents != 0 || st.SpentCents != 100 {
		t.Errorf("after release: reserved=%d spent=%d", st.ReservedCents, st.SpentCents)
	}
}

func TestBudgetLedger_CommitIsIdempotent(t *testing.T) {
	l := newTestLedger(t, 500)

	if err := l.Reserve("job-1", 40); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	l.Commit("job-1")
	l.Commit("job-1")

	if st := l.Status(); st.SpentCents != 40 {
		t.Errorf("double commit charged twice: spent=%d", st.SpentCents)
	}
}

func TestBudgetLedger_ReleaseAfterCommitDoesNotRefund(t *testing.T) {
	l := newTestLedger(t, 500)

	if err := l.Reserve("job-1", 40); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	l.Commit("job-1")
	l.Release("job-1")

	if st := l.Status(); st.SpentCents != 40 {
		t.Errorf("release undid a commit: spent=%d", st.SpentCents)
	}
}

func TestBudgetLedger_BlockThresholdBoundary(t *testing.T) {
	// cap 500 with block ratio 0.99 rejects anything past 495 cents.
	l := newTestLedger(t, 500)

	if err := l.Reserve("job-1", 495); err != nil {
		t.Fatalf("reserving exactly the block threshold must succeed: %v", err)
	}
	l.Release("job-1")

	if err := l.Reserve("job-2", 496); err == nil {
		t.Fatal("reserving past the block threshold must fail")
	} else {
		var budgetErr *BudgetExceededError
		if !errors.As(err, &budgetErr) {
			t.Fatalf("want BudgetExceededError, got %T", err)
		}
		if budgetErr.AvailableCents != 495 {
			t.Errorf("AvailableCents = %d, want 495", budgetErr.AvailableCents)
		}
	}
}

func TestBudgetLedger_NearCapPremiumRejectedEconomyWarns(t *testing.T) {
	// With 450 cents already spent on a 500 cent cap, a 50 cent hold lands
	// past the block threshold while a 45 cent hold still fits and crosses
	// the warn threshold.
	l := newTestLedger(t, 500)
	if err := l.Reserve("spent", 450); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	l.Commit("spent")

	var budgetErr *BudgetExceededError
	if err := l.Reserve("premium", 50); !errors.As(err, &budgetErr) {
		t.Fatalf("50 cent hold at 450 spent must exceed the budget, got %v", err)
	}

	if err := l.Reserve("economy", 45); err != nil {
		t.Fatalf("45 cent hold must still be admitted: %v", err)
	}
	if st := l.Status(); !st.WarnTriggered {
		t.Error("warn threshold should be crossed at 495/500 exposure")
	}
}

func TestBudgetLedger_ConcurrentReservationsNeverOvercommit(t *testing.T) {
	// Two 300 cent holds cannot both fit under a 500 cent cap regardless of
	// interleaving.
	l := newTestLedger(t, 500)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, jobID := range []string{"job-a", "job-b"} {
		wg.Add(1)
		go func(i int, jobID string) {
			defer wg.Done()
			errs[i] = l.Reserve(jobID, 300)
		}(i, jobID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	if succeeded != 1 {
		t.Errorf("exactly one reservation must win, got %d", succeeded)
	}
	if st := l.Status(); st.ReservedCents != 300 {
		t.Errorf("reserved=%d, want 300", st.ReservedCents)
	}
}

func TestBudgetLedger_DuplicateJobIDRejected(t *testing.T) {
	l := newTestLedger(t, 500)

	if err := l.Reserve("job-1", 10); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := l.Reserve("job-1", 10); !errors.Is(err, ErrDuplicateReservation) {
		t.Errorf("duplicate job id should be refused, got %v", err)
	}

	// Refusing the duplicate must not poison the ledger for other jobs.
	if l.Halted() {
		t.Error("duplicate refusal must not halt the ledger")
	}
	if err := l.Reserve("job-2", 10); err != nil {
		t.Errorf("ledger should keep admitting after a duplicate refusal: %v", err)
	}
}

func TestBudgetLedger_ResetForbiddenInProduction(t *testing.T) {
	l, err := NewBudgetLedger(nil, &config.BudgetConfig{CapCents: 500, WarnRatio: 0.92, BlockRatio: 0.99}, true)
	if err != nil {
		t.Fatalf("NewBudgetLedger: %v", err)
	}

	if err := l.Reset(); !errors.Is(err, ErrResetForbidden) {
		t.Errorf("reset in production should be refused, got %v", err)
	}
}

func TestBudgetLedger_ResetClearsState(t *testing.T) {
	l := newTestLedger(t, 500)

	if err := l.Reserve("job-1", 100); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	l.Commit("job-1")
	if err := l.Reserve("job-2", 50); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	if err := l.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	st := l.Status()
	if st.SpentCents != 0 || st.ReservedCents != 0 || st.WarnTriggered {
		t.Errorf("reset left state behind: %+v", st)
	}
}
