package core

import "errors"

// Error kinds returned by auction operations. Callers match with errors.Is;
// call sites wrap these with context. Every rejected operation leaves state
// unchanged.
var (
	// ErrPhaseViolation indicates an operation invalid for the auction's
	// current phase, e.g. a bid after the auction ended.
	ErrPhaseViolation = errors.New("operation invalid for auction phase")

	// ErrPreconditionFailed indicates a violated invariant: duplicate active
	// bid, amount below quote, reserve not met, commitment mismatch.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrNotAuthorized indicates the caller lacks permission for the action.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrArithmeticFault indicates overflow or underflow in a price or
	// commission computation. Always fatal to the operation, never clamped.
	ErrArithmeticFault = errors.New("arithmetic overflow or underflow")

	// ErrPaused indicates the circuit breaker is engaged; all mutating
	// operations fail with this error regardless of phase.
	ErrPaused = errors.New("paused")

	// ErrSettlementFailed indicates the external transfer collaborator
	// reported failure; the resolution was rolled back and can be retried.
	ErrSettlementFailed = errors.New("settlement failed")
)
