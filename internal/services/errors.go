package services

import (
	"errors"
	"fmt"
)

// Validation failure reasons.
const (
	ValidationInjection = "INJECTION"
	ValidationSize      = "SIZE"
	ValidationEmpty     = "EMPTY"
	ValidationType      = "TYPE"
)

// Consent failure reasons.
const (
	ConsentMissing       = "MISSING"
	ConsentExpired       = "EXPIRED"
	ConsentScopeMismatch = "SCOPE_MISMATCH"
)

// ValidationError reports user-fixable prompt problems (HTTP 400).
type ValidationError struct {
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return "prompt rejected: " + e.Reason
	}
	return fmt.Sprintf("prompt rejected: %s (%s)", e.Reason, e.Detail)
}

// ConsentError reports a failed consent check (HTTP 400). No reservation is
// created when consent fails.
type ConsentError struct {
	Reason string
}

func (e *ConsentError) Error() string {
	return "consent check failed: " + e.Reason
}

// BudgetExceededError is returned when a reservation would push the ledger
// past the block threshold (HTTP 402). Not retryable until the cap changes.
type BudgetExceededError struct {
	RequestedCents int64
	AvailableCents int64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded: requested %d cents, %d available under block threshold",
		e.RequestedCents, e.AvailableCents)
}

// DispatchError wraps a transient provider dispatch failure. By the time the
// caller sees it the reservation has already been released, so resubmitting
// is safe.
type DispatchError struct {
	Provider string
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch to %s failed: %v", e.Provider, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// RetentionViolationError signals that a storage object was still reachable
// past its TTL. This is an internal invariant breach and must always be
// surfaced, never swallowed.
type RetentionViolationError struct {
	ObjectID string
}

func (e *RetentionViolationError) Error() string {
	return "retention violation: object " + e.ObjectID + " reachable past TTL"
}

var (
	// ErrNoProviderAvailable means no compliant provider/model matched the request.
	ErrNoProviderAvailable = errors.New("no provider available for request")

	// ErrLedgerHalted means the ledger detected a persistence inconsistency and
	// stopped admitting new reservations pending operator action.
	ErrLedgerHalted = errors.New("budget ledger halted: inconsistency detected")

	// ErrDuplicateReservation means a job id already holds an open reservation.
	// Job ids are generated per submission, so a duplicate is a caller bug.
	ErrDuplicateReservation = errors.New("reservation already exists for job id")

	// ErrJobNotFound is returned for unknown or purged job ids.
	ErrJobNotFound = errors.New("job not found")

	// ErrObjectNotFound covers missing, deleted and expired storage objects.
	// Expired objects deliberately look identical to missing ones.
	ErrObjectNotFound = errors.New("storage object not found")

	// ErrResetForbidden is returned when a budget reset is attempted in
	// production mode.
	ErrResetForbidden = errors.New("budget reset not permitted in production mode")
)
