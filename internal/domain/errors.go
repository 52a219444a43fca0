package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.
// All but ErrStoreUnavailable are terminal: report to the caller, never retry.

var (
	// Request validation
	ErrInvalidMerchant     = errors.New("merchant id is required")
	ErrInvalidAmount       = errors.New("amount must be a positive decimal")
	ErrInvalidEnvironment  = errors.New("environment must be sandbox or live")
	ErrInsufficientBalance = errors.New("requested amount exceeds available balance")

	// State machine
	ErrInvalidTransition = errors.New("settlement is not in the required status")
	ErrNotFound          = errors.New("settlement not found")

	// Infrastructure — the only retryable kind; a retry re-runs the whole
	// operation including the balance check, never resumes a partial write.
	ErrStoreUnavailable = errors.New("settlement store unavailable")
)
