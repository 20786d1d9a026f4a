package distribution

import "errors"

// Sentinel errors surfaced to callers of the queue manager.
var (
	// ErrAlreadyQueued means an unresolved work item already exists for
	// the subject. An idempotency guard; callers should treat it as
	// success.
	ErrAlreadyQueued = errors.New("distribution: subject already queued")

	// ErrNoEligibleCandidates means the hard coverage filter excluded
	// every active agent. The work item is failed with that reason.
	ErrNoEligibleCandidates = errors.New("distribution: no eligible candidates")
)
