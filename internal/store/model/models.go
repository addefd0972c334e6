package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LLMAccountModel maps the llm_accounts table: one row per trading agent.
// Soft-disabled via is_active, never deleted by normal operation; deleting a
// row cascades the agent's entire history.
type LLMAccountModel struct {
	ID        string `gorm:"column:id;primaryKey"`
	Provider  string `gorm:"column:provider"`
	ModelName string `gorm:"column:model_name"`

	CurrentBalance decimal.Decimal `gorm:"column:current_balance;type:DECIMAL(20,8)"`
	InitialBalance decimal.Decimal `gorm:"column:initial_balance;type:DECIMAL(20,8)"`
	MarginUsed     decimal.Decimal `gorm:"column:margin_used;type:DECIMAL(20,8)"`
	RealizedPnL    decimal.Decimal `gorm:"column:realized_pnl;type:DECIMAL(20,8)"`
	UnrealizedPnL  decimal.Decimal `gorm:"column:unrealized_pnl;type:DECIMAL(20,8)"`
	TotalPnL       decimal.Decimal `gorm:"column:total_pnl;type:DECIMAL(20,8)"`

	TotalTrades   int `gorm:"column:total_trades"`
	WinningTrades int `gorm:"column:winning_trades"`
	LosingTrades  int `gorm:"column:losing_trades"`

	SharpeRatio   decimal.Decimal `gorm:"column:sharpe_ratio;type:DECIMAL(10,4)"`
	MaxDrawdown   decimal.Decimal `gorm:"column:max_drawdown;type:DECIMAL(10,4)"`
	OpenPositions int             `gorm:"column:open_positions"`

	IsActive       bool `gorm:"column:is_active"`
	TradingEnabled bool `gorm:"column:trading_enabled"`

	APICallsHour int `gorm:"column:api_calls_hour"`
	APICallsDay  int `gorm:"column:api_calls_day"`

	LastDecisionAt *time.Time `gorm:"column:last_decision_at"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (LLMAccountModel) TableName() string { return "llm_accounts" }

// BeforeUpdate keeps updated_at fresh even when an update map forgets it.
func (m *LLMAccountModel) BeforeUpdate(tx *gorm.DB) error {
	tx.Statement.SetColumn("updated_at", time.Now())
	return nil
}

// GridModel maps the grids table. grid_id is caller-chosen and globally
// unique; the account reference cascades, children of the grid do not.
type GridModel struct {
	GridID    string `gorm:"column:grid_id;primaryKey"`
	AccountID string `gorm:"column:account_id;index"`
	Symbol    string `gorm:"column:symbol;index"`

	UpperLimit    decimal.Decimal `gorm:"column:upper_limit;type:DECIMAL(20,8)"`
	LowerLimit    decimal.Decimal `gorm:"column:lower_limit;type:DECIMAL(20,8)"`
	GridLevels    int             `gorm:"column:grid_levels"`
	SpacingType   string          `gorm:"column:spacing_type"`
	Leverage      int             `gorm:"column:leverage"`
	InvestmentUSD decimal.Decimal `gorm:"column:investment_usd;type:DECIMAL(20,8)"`
	StopLossPct   decimal.Decimal `gorm:"column:stop_loss_pct;type:DECIMAL(10,4)"`

	Status          string          `gorm:"column:status;index"`
	TotalCycles     int             `gorm:"column:total_cycles"`
	TotalProfitUSDT decimal.Decimal `gorm:"column:total_profit_usdt;type:DECIMAL(20,8)"`
	TotalFeesUSDT   decimal.Decimal `gorm:"column:total_fees_usdt;type:DECIMAL(20,8)"`
	GridState       datatypes.JSON  `gorm:"column:grid_state;type:TEXT"`

	CreatedAt time.Time  `gorm:"column:created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at"`
	StoppedAt *time.Time `gorm:"column:stopped_at"`

	Account *LLMAccountModel `gorm:"foreignKey:AccountID;references:ID;constraint:OnDelete:CASCADE"`

	// Declared from the parent side so the SET NULL constraints land on the
	// child tables: deleting a grid detaches its history without erasing it.
	Positions    []PositionModel    `gorm:"foreignKey:GridID;references:GridID;constraint:OnDelete:SET NULL"`
	ClosedTrades []ClosedTradeModel `gorm:"foreignKey:GridID;references:GridID;constraint:OnDelete:SET NULL"`
	Orders       []OrderModel       `gorm:"foreignKey:GridID;references:GridID;constraint:OnDelete:SET NULL"`
}

func (GridModel) TableName() string { return "grids" }

func (m *GridModel) BeforeUpdate(tx *gorm.DB) error {
	tx.Statement.SetColumn("updated_at", time.Now())
	return nil
}

// PositionModel maps the positions table. GridID is attribution only: the
// FK nulls it when the grid goes away, the position row survives.
type PositionModel struct {
	ID        int64   `gorm:"column:id;primaryKey;autoIncrement"`
	AccountID string  `gorm:"column:account_id;index"`
	GridID    *string `gorm:"column:grid_id;index"`
	Symbol    string  `gorm:"column:symbol;index"`
	Side      string  `gorm:"column:side"`

	EntryPrice    decimal.Decimal `gorm:"column:entry_price;type:DECIMAL(20,8)"`
	CurrentPrice  decimal.Decimal `gorm:"column:current_price;type:DECIMAL(20,8)"`
	Quantity      decimal.Decimal `gorm:"column:quantity;type:DECIMAL(20,8)"`
	Leverage      int             `gorm:"column:leverage"`
	MarginUsed    decimal.Decimal `gorm:"column:margin_used;type:DECIMAL(20,8)"`
	UnrealizedPnL decimal.Decimal `gorm:"column:unrealized_pnl;type:DECIMAL(20,8)"`

	LiquidationPrice *decimal.Decimal `gorm:"column:liquidation_price;type:DECIMAL(20,8)"`
	StopLossPrice    *decimal.Decimal `gorm:"column:stop_loss_price;type:DECIMAL(20,8)"`
	TakeProfitPrice  *decimal.Decimal `gorm:"column:take_profit_price;type:DECIMAL(20,8)"`

	Status    string `gorm:"column:status;index"`
	BrokerRef string `gorm:"column:broker_ref"`

	OpenedAt time.Time  `gorm:"column:opened_at"`
	ClosedAt *time.Time `gorm:"column:closed_at"`

	Account *LLMAccountModel `gorm:"foreignKey:AccountID;references:ID;constraint:OnDelete:CASCADE"`
}

func (PositionModel) TableName() string { return "positions" }

// ClosedTradeModel maps closed_trades: immutable, written exactly once when
// a position terminates.
type ClosedTradeModel struct {
	ID        string  `gorm:"column:id;primaryKey"`
	AccountID string  `gorm:"column:account_id;index"`
	GridID    *string `gorm:"column:grid_id;index"`
	Symbol    string  `gorm:"column:symbol;index"`
	Side      string  `gorm:"column:side"`

	EntryPrice    decimal.Decimal `gorm:"column:entry_price;type:DECIMAL(20,8)"`
	ExitPrice     decimal.Decimal `gorm:"column:exit_price;type:DECIMAL(20,8)"`
	Quantity      decimal.Decimal `gorm:"column:quantity;type:DECIMAL(20,8)"`
	Leverage      int             `gorm:"column:leverage"`
	RealizedPnL   decimal.Decimal `gorm:"column:realized_pnl;type:DECIMAL(20,8)"`
	PnLPercentage decimal.Decimal `gorm:"column:pnl_percentage;type:DECIMAL(10,4)"`
	Fees          decimal.Decimal `gorm:"column:fees;type:DECIMAL(20,8)"`

	ExitReason      string    `gorm:"column:exit_reason"`
	OpenedAt        time.Time `gorm:"column:opened_at"`
	ClosedAt        time.Time `gorm:"column:closed_at;index"`
	DurationSeconds int64     `gorm:"column:duration_seconds"`

	Account *LLMAccountModel `gorm:"foreignKey:AccountID;references:ID;constraint:OnDelete:CASCADE"`
}

func (ClosedTradeModel) TableName() string { return "closed_trades" }

// LLMDecisionModel maps llm_decisions: append-only, the only mutation is the
// executed flag plus its timestamp and rejection reason.
type LLMDecisionModel struct {
	ID        int64   `gorm:"column:id;primaryKey;autoIncrement"`
	TraceID   string  `gorm:"column:trace_id;index"`
	AccountID string  `gorm:"column:account_id;index"`
	Symbol    *string `gorm:"column:symbol"`
	Action    string  `gorm:"column:action"`

	Reasoning  string          `gorm:"column:reasoning;type:TEXT"`
	Confidence decimal.Decimal `gorm:"column:confidence;type:DECIMAL(10,4)"`

	MarketPrice    decimal.Decimal `gorm:"column:market_price;type:DECIMAL(20,8)"`
	AccountBalance decimal.Decimal `gorm:"column:account_balance;type:DECIMAL(20,8)"`

	Executed        bool           `gorm:"column:executed"`
	ExecutedAt      *time.Time     `gorm:"column:executed_at"`
	RejectionReason string         `gorm:"column:rejection_reason"`
	LLMResponse     datatypes.JSON `gorm:"column:llm_response;type:TEXT"`

	CreatedAt time.Time `gorm:"column:created_at;index"`

	Account *LLMAccountModel `gorm:"foreignKey:AccountID;references:ID;constraint:OnDelete:CASCADE"`
}

func (LLMDecisionModel) TableName() string { return "llm_decisions" }

// MarketDataModel maps market_data: append-only snapshots, at most one row
// per (symbol, timestamp).
type MarketDataModel struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Symbol    string          `gorm:"column:symbol;uniqueIndex:idx_market_symbol_ts,priority:1"`
	Timestamp time.Time       `gorm:"column:timestamp;uniqueIndex:idx_market_symbol_ts,priority:2"`
	Price     decimal.Decimal `gorm:"column:price;type:DECIMAL(20,8)"`
	Volume24h decimal.Decimal `gorm:"column:volume_24h;type:DECIMAL(20,8)"`
	Metadata  datatypes.JSON  `gorm:"column:metadata;type:TEXT"`
	CreatedAt time.Time       `gorm:"column:created_at"`
}

func (MarketDataModel) TableName() string { return "market_data" }

// OrderModel maps the orders table: broker request/response records, PENDING
// until a single terminal resolution.
type OrderModel struct {
	ID         int64   `gorm:"column:id;primaryKey;autoIncrement"`
	AccountID  string  `gorm:"column:account_id;index"`
	GridID     *string `gorm:"column:grid_id;index"`
	PositionID *int64  `gorm:"column:position_id;index"`
	Symbol     string  `gorm:"column:symbol;index"`

	Side      string           `gorm:"column:side"`
	OrderType string           `gorm:"column:order_type"`
	Quantity  decimal.Decimal  `gorm:"column:quantity;type:DECIMAL(20,8)"`
	Price     *decimal.Decimal `gorm:"column:price;type:DECIMAL(20,8)"`

	Status         string          `gorm:"column:status;index"`
	FilledQuantity decimal.Decimal `gorm:"column:filled_quantity;type:DECIMAL(20,8)"`
	AvgFillPrice   decimal.Decimal `gorm:"column:avg_fill_price;type:DECIMAL(20,8)"`
	BrokerOrderID  string          `gorm:"column:broker_order_id"`
	ErrorMessage   string          `gorm:"column:error_message"`

	CreatedAt  time.Time  `gorm:"column:created_at"`
	UpdatedAt  time.Time  `gorm:"column:updated_at"`
	ResolvedAt *time.Time `gorm:"column:resolved_at"`

	Account  *LLMAccountModel `gorm:"foreignKey:AccountID;references:ID;constraint:OnDelete:CASCADE"`
	Position *PositionModel   `gorm:"foreignKey:PositionID;references:ID;constraint:OnDelete:SET NULL"`
}

func (OrderModel) TableName() string { return "orders" }
