package ledger

import "errors"

// Constraint and state-machine violations surfaced by the store. Business
// rules the schema cannot express (negative balance, over-margin) stay the
// caller's obligation per the account-ledger contract.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrGridNotFound    = errors.New("grid not found")

	// ErrGridExists signals a caller-chosen grid_id collision; exactly one of
	// two concurrent creates with the same id succeeds.
	ErrGridExists = errors.New("grid id already exists")

	// ErrGridStopped rejects pause/resume on a terminally stopped grid.
	ErrGridStopped = errors.New("grid is stopped")

	ErrPositionNotFound = errors.New("position not found")

	// ErrPositionNotOpen signals a second terminal transition attempt; the
	// losing side of a concurrent close race observes this.
	ErrPositionNotOpen = errors.New("position is not open")

	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderResolved rejects a second PENDING -> terminal transition.
	ErrOrderResolved = errors.New("order already resolved")

	ErrDecisionNotFound = errors.New("decision not found")

	// ErrDuplicateSnapshot signals a (symbol, timestamp) collision. Callers
	// treat it as "already recorded", not as a retryable failure.
	ErrDuplicateSnapshot = errors.New("market snapshot already recorded")
)
