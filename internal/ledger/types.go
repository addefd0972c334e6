package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// GridStatus is the lifecycle state of a grid strategy instance.
type GridStatus string

const (
	GridStatusActive  GridStatus = "ACTIVE"
	GridStatusPaused  GridStatus = "PAUSED"
	GridStatusStopped GridStatus = "STOPPED"
)

// SpacingType selects how grid levels are distributed inside the price band.
type SpacingType string

const (
	SpacingArithmetic SpacingType = "arithmetic"
	SpacingGeometric  SpacingType = "geometric"
)

// PositionSide is the direction of a leveraged exposure.
type PositionSide string

const (
	SideLong  PositionSide = "LONG"
	SideShort PositionSide = "SHORT"
)

// PositionStatus tracks the single terminal transition of a position.
type PositionStatus string

const (
	PositionOpen       PositionStatus = "OPEN"
	PositionClosed     PositionStatus = "CLOSED"
	PositionLiquidated PositionStatus = "LIQUIDATED"
)

// OrderSide is the broker order direction.
type OrderSide string

const (
	OrderBuy  OrderSide = "BUY"
	OrderSell OrderSide = "SELL"
)

// OrderType is the broker order kind.
type OrderType string

const (
	OrderMarket     OrderType = "MARKET"
	OrderLimit      OrderType = "LIMIT"
	OrderStopLoss   OrderType = "STOP_LOSS"
	OrderTakeProfit OrderType = "TAKE_PROFIT"
)

// OrderStatus tracks PENDING to a single terminal state.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderFilled    OrderStatus = "FILLED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderRejected  OrderStatus = "REJECTED"
)

// DecisionAction is the action an agent chose, executed or not.
type DecisionAction string

const (
	ActionCreateGrid DecisionAction = "CREATE_GRID"
	ActionStopGrid   DecisionAction = "STOP_GRID"
	ActionAdjustGrid DecisionAction = "ADJUST_GRID"
	ActionHold       DecisionAction = "HOLD"
)

// Grid parameter bounds enforced at creation.
const (
	MinGridLevels = 5
	MaxGridLevels = 8
	MinLeverage   = 1
	MaxLeverage   = 5
)

// Account is one trading agent's capital state and lifetime statistics.
// total_pnl is maintained by the store as realized + unrealized; other
// aggregate consistency (counters vs. underlying rows) is the writer's
// obligation.
type Account struct {
	ID        string
	Provider  string
	ModelName string

	CurrentBalance decimal.Decimal
	InitialBalance decimal.Decimal
	MarginUsed     decimal.Decimal
	RealizedPnL    decimal.Decimal
	UnrealizedPnL  decimal.Decimal
	TotalPnL       decimal.Decimal

	TotalTrades   int
	WinningTrades int
	LosingTrades  int

	SharpeRatio   decimal.Decimal
	MaxDrawdown   decimal.Decimal
	OpenPositions int

	IsActive       bool
	TradingEnabled bool

	APICallsHour int
	APICallsDay  int

	LastDecisionAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SeedAccount is the identity and starting capital used by Seed.
type SeedAccount struct {
	ID             string
	Provider       string
	ModelName      string
	InitialBalance decimal.Decimal
}

// AccountDelta is an atomic adjustment applied to one account row. Delta
// fields translate to in-place SQL arithmetic so concurrent writers on the
// same account cannot lose updates. Pointer fields replace the stored value
// when non-nil.
type AccountDelta struct {
	BalanceDelta     decimal.Decimal
	MarginDelta      decimal.Decimal
	RealizedPnLDelta decimal.Decimal

	UnrealizedPnL *decimal.Decimal
	SharpeRatio   *decimal.Decimal
	MaxDrawdown   *decimal.Decimal

	TradesDelta        int
	WinsDelta          int
	LossesDelta        int
	OpenPositionsDelta int

	APICallsHourDelta int
	APICallsDayDelta  int

	TouchDecision bool
}

// IsZero reports whether applying the delta would change nothing.
func (d AccountDelta) IsZero() bool {
	return d.BalanceDelta.IsZero() && d.MarginDelta.IsZero() && d.RealizedPnLDelta.IsZero() &&
		d.UnrealizedPnL == nil && d.SharpeRatio == nil && d.MaxDrawdown == nil &&
		d.TradesDelta == 0 && d.WinsDelta == 0 && d.LossesDelta == 0 && d.OpenPositionsDelta == 0 &&
		d.APICallsHourDelta == 0 && d.APICallsDayDelta == 0 && !d.TouchDecision
}

// Grid is one strategy instance owned by exactly one account, scoped to one
// symbol. State is an opaque JSON blob owned by the decision engine; the
// ledger stores it byte-faithfully.
type Grid struct {
	ID        string
	AccountID string
	Symbol    string

	UpperLimit    decimal.Decimal
	LowerLimit    decimal.Decimal
	GridLevels    int
	Spacing       SpacingType
	Leverage      int
	InvestmentUSD decimal.Decimal
	StopLossPct   decimal.Decimal

	Status          GridStatus
	TotalCycles     int
	TotalProfitUSDT decimal.Decimal
	TotalFeesUSDT   decimal.Decimal
	State           []byte

	CreatedAt time.Time
	UpdatedAt time.Time
	StoppedAt *time.Time
}

// GridPerformanceDelta is a trailing performance update on a grid. Allowed in
// any status so fills already in flight when a grid stops still land.
type GridPerformanceDelta struct {
	CyclesDelta int
	ProfitDelta decimal.Decimal
	FeesDelta   decimal.Decimal
	State       []byte // replaces grid_state when non-nil
}

// Position is an open or terminated leveraged exposure. GridID survives as
// attribution only while the grid row exists; deleting the grid clears it
// without touching the position.
type Position struct {
	ID        int64
	AccountID string
	GridID    *string
	Symbol    string
	Side      PositionSide

	EntryPrice    decimal.Decimal
	CurrentPrice  decimal.Decimal
	Quantity      decimal.Decimal
	Leverage      int
	Margin        decimal.Decimal
	UnrealizedPnL decimal.Decimal

	LiquidationPrice *decimal.Decimal
	StopLossPrice    *decimal.Decimal
	TakeProfitPrice  *decimal.Decimal

	Status    PositionStatus
	BrokerRef string

	OpenedAt time.Time
	ClosedAt *time.Time
}

// CloseRequest carries the exit terms for ClosePosition.
type CloseRequest struct {
	ExitPrice  decimal.Decimal
	Fees       decimal.Decimal
	Reason     string
	Liquidated bool
}

// ClosedTrade is the immutable audit record produced exactly once per
// terminated position.
type ClosedTrade struct {
	ID        string
	AccountID string
	GridID    *string
	Symbol    string
	Side      PositionSide

	EntryPrice    decimal.Decimal
	ExitPrice     decimal.Decimal
	Quantity      decimal.Decimal
	Leverage      int
	RealizedPnL   decimal.Decimal
	PnLPercentage decimal.Decimal
	Fees          decimal.Decimal

	ExitReason      string
	OpenedAt        time.Time
	ClosedAt        time.Time
	DurationSeconds int64
}

// Decision is one logged agent decision, executed or not. RawResponse is the
// full model payload, stored byte-faithfully after envelope validation.
type Decision struct {
	ID        int64
	TraceID   string
	AccountID string
	Symbol    *string // nil for account-level decisions
	Action    DecisionAction

	Reasoning  string
	Confidence decimal.Decimal

	MarketPrice    decimal.Decimal
	AccountBalance decimal.Decimal

	Executed        bool
	ExecutedAt      *time.Time
	RejectionReason string
	RawResponse     []byte

	CreatedAt time.Time
}

// MarketSnapshot is one append-only price observation, unique per
// (symbol, timestamp).
type MarketSnapshot struct {
	ID        int64
	Symbol    string
	Price     decimal.Decimal
	Volume24h decimal.Decimal
	Timestamp time.Time
	Metadata  []byte
	CreatedAt time.Time
}

// Order is a broker order request/response record.
type Order struct {
	ID         int64
	AccountID  string
	GridID     *string
	PositionID *int64
	Symbol     string

	Side     OrderSide
	Type     OrderType
	Quantity decimal.Decimal
	Price    *decimal.Decimal

	Status         OrderStatus
	FilledQuantity decimal.Decimal
	AvgFillPrice   decimal.Decimal
	BrokerOrderID  string
	ErrorMessage   string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time
}

// OrderFill carries the resolution terms for ResolveOrder.
type OrderFill struct {
	FilledQuantity decimal.Decimal
	AvgFillPrice   decimal.Decimal
	BrokerOrderID  string
	ErrorMessage   string
}

// GridPerformance is one row of the grid_performance_summary view.
type GridPerformance struct {
	GridID    string
	AccountID string
	ModelName string
	Symbol    string
	Status    GridStatus

	GridLevels    int
	Leverage      int
	InvestmentUSD decimal.Decimal

	TotalCycles     int
	TotalProfitUSDT decimal.Decimal
	TotalFeesUSDT   decimal.Decimal
	ROIPercentage   decimal.Decimal

	CreatedAt       time.Time
	StoppedAt       *time.Time
	DurationSeconds int64
}

// LeaderboardEntry is one row of the llm_leaderboard view; active accounts
// ranked by balance, then total PnL.
type LeaderboardEntry struct {
	AccountID string
	Provider  string
	ModelName string

	CurrentBalance decimal.Decimal
	TotalPnL       decimal.Decimal
	ROIPercentage  decimal.Decimal
	WinRate        decimal.Decimal

	TotalTrades   int
	OpenPositions int
}
