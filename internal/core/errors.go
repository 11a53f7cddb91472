package core

import "errors"

// Failure taxonomy shared by every engine operation. Callers branch with
// errors.Is and render user-facing messages; none of these are used for
// control flow inside the engine.
var (
	// ErrNotFound marks a referenced account, transaction, purchase,
	// credit or cycle that does not exist or is not visible to the caller.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized marks a caller without accepted membership on the
	// project being operated on.
	ErrUnauthorized = errors.New("not a project member")

	// ErrInvariant marks a domain rule violation: a second open cycle, a
	// transfer onto itself, paying an already-reconciled installment.
	ErrInvariant = errors.New("invariant violation")
)
