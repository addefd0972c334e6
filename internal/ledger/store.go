package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the system-of-record contract consumed by the decision engine,
// the market-data ingester, the broker adapter and the reporting layer. All
// operations are short-lived transactions; cancellation belongs to the
// caller's context.
type Store interface {
	AccountStore
	GridStore
	PositionStore
	OrderStore
	DecisionLog
	MarketLog
	ReportViews

	Close() error
}

// AccountStore is the account ledger: reads plus atomic aggregate updates.
type AccountStore interface {
	// Seed idempotently installs the agent roster: inserts missing accounts
	// and resets capital/counters on existing ones without touching identity
	// metadata.
	Seed(ctx context.Context, accounts []SeedAccount) error

	GetAccount(ctx context.Context, id string) (Account, error)
	ListAccounts(ctx context.Context, activeOnly bool) ([]Account, error)

	// ApplyAccountDelta applies in-place arithmetic to balance, margin, PnL
	// and counters, recomputes total_pnl and touches updated_at; an all-zero
	// delta is a no-op. Callers must invoke it inside the same transaction as
	// the triggering mutation when one exists; the dedicated mutators on this
	// interface already do.
	ApplyAccountDelta(ctx context.Context, id string, delta AccountDelta) error

	SetAccountActive(ctx context.Context, id string, active bool) error
	SetTradingEnabled(ctx context.Context, id string, enabled bool) error

	// ResetAPICounters zeroes the hourly and/or daily rate counters; the
	// scheduler that owns the boundaries calls it on rollover.
	ResetAPICounters(ctx context.Context, id string, hour, day bool) error

	// DeleteAccount tears down an agent and cascades to all dependent rows.
	DeleteAccount(ctx context.Context, id string) error
}

// GridStore manages strategy-instance lifecycle.
type GridStore interface {
	// CreateGrid validates ranges and inserts an ACTIVE grid under the
	// caller-chosen id; a collision returns ErrGridExists.
	CreateGrid(ctx context.Context, grid Grid) (Grid, error)

	PauseGrid(ctx context.Context, gridID string) error
	ResumeGrid(ctx context.Context, gridID string) error

	// StopGrid sets STOPPED and stopped_at; returns the prior status so
	// callers can detect reapplication without treating it as an error.
	StopGrid(ctx context.Context, gridID string) (GridStatus, error)

	UpdateGridPerformance(ctx context.Context, gridID string, delta GridPerformanceDelta) error

	GetGrid(ctx context.Context, gridID string) (Grid, error)
	ListGrids(ctx context.Context, accountID string, status GridStatus) ([]Grid, error)

	// DeleteGrid removes the strategy row; dependent positions, trades and
	// orders keep their history with grid_id cleared.
	DeleteGrid(ctx context.Context, gridID string) error
}

// PositionStore manages the OPEN -> {CLOSED, LIQUIDATED} state machine.
type PositionStore interface {
	// OpenPosition inserts the OPEN row and reserves margin and the open
	// slot on the owner account in the same transaction.
	OpenPosition(ctx context.Context, pos Position) (Position, error)

	UpdatePositionMark(ctx context.Context, positionID int64, price, unrealizedPnL decimal.Decimal) error

	// ClosePosition performs the three-way atomic close: terminal status,
	// exactly one closed_trades row, and the owner account's realized PnL,
	// counters, margin and open-position adjustments. A concurrent second
	// close observes ErrPositionNotOpen.
	ClosePosition(ctx context.Context, positionID int64, req CloseRequest) (ClosedTrade, error)

	GetPosition(ctx context.Context, positionID int64) (Position, error)
	ListOpenPositions(ctx context.Context, accountID string) ([]Position, error)

	// ListClosedTrades reads the immutable audit trail, newest first.
	ListClosedTrades(ctx context.Context, accountID string, limit int) ([]ClosedTrade, error)
}

// OrderStore manages the PENDING -> terminal broker order machine.
type OrderStore interface {
	SubmitOrder(ctx context.Context, order Order) (Order, error)

	// ResolveOrder applies the single terminal transition; a second attempt
	// returns ErrOrderResolved.
	ResolveOrder(ctx context.Context, orderID int64, status OrderStatus, fill OrderFill) error

	GetOrder(ctx context.Context, orderID int64) (Order, error)
	ListOrders(ctx context.Context, accountID string, status OrderStatus) ([]Order, error)
}

// DecisionLog is the append-only agent decision trail.
type DecisionLog interface {
	AppendDecision(ctx context.Context, dec Decision) (Decision, error)

	// MarkDecisionExecuted is the only mutation: flips executed, stamps
	// executed_at and records a rejection reason when execution failed.
	MarkDecisionExecuted(ctx context.Context, decisionID int64, executed bool, rejectionReason string) error

	ListDecisions(ctx context.Context, accountID string, limit int) ([]Decision, error)
}

// MarketLog is the append-only price snapshot trail.
type MarketLog interface {
	// InsertMarketSnapshot appends one observation; a (symbol, timestamp)
	// duplicate returns ErrDuplicateSnapshot.
	InsertMarketSnapshot(ctx context.Context, snap MarketSnapshot) (MarketSnapshot, error)

	LatestSnapshot(ctx context.Context, symbol string) (MarketSnapshot, error)
	ListSnapshots(ctx context.Context, symbol string, since time.Time, limit int) ([]MarketSnapshot, error)
}

// ReportViews exposes the two derived read-only aggregations.
type ReportViews interface {
	GridPerformanceSummary(ctx context.Context) ([]GridPerformance, error)
	Leaderboard(ctx context.Context) ([]LeaderboardEntry, error)
}
