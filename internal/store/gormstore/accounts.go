package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gridledger/internal/ledger"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Seed installs the agent roster idempotently: new accounts are inserted,
// existing ones get balances and counters reset to their initial values while
// identity metadata (provider, model_name, created_at) is preserved.
func (s *Store) Seed(ctx context.Context, accounts []ledger.SeedAccount) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if len(accounts) == 0 {
		return nil
	}
	now := time.Now()
	models := make([]accountModel, 0, len(accounts))
	for _, acc := range accounts {
		id := strings.TrimSpace(acc.ID)
		if id == "" {
			return fmt.Errorf("seed account id cannot be empty")
		}
		if acc.InitialBalance.IsNegative() {
			return fmt.Errorf("seed account %s: initial balance must not be negative", id)
		}
		models = append(models, accountModel{
			ID:             id,
			Provider:       strings.TrimSpace(acc.Provider),
			ModelName:      strings.TrimSpace(acc.ModelName),
			CurrentBalance: ledger.RoundAmount(acc.InitialBalance),
			InitialBalance: ledger.RoundAmount(acc.InitialBalance),
			IsActive:       true,
			TradingEnabled: true,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	reset := clause.Assignments(map[string]interface{}{
		"initial_balance":  gorm.Expr("excluded.initial_balance"),
		"current_balance":  gorm.Expr("excluded.initial_balance"),
		"margin_used":      decimal.Zero,
		"realized_pnl":     decimal.Zero,
		"unrealized_pnl":   decimal.Zero,
		"total_pnl":        decimal.Zero,
		"total_trades":     0,
		"winning_trades":   0,
		"losing_trades":    0,
		"sharpe_ratio":     decimal.Zero,
		"max_drawdown":     decimal.Zero,
		"open_positions":   0,
		"is_active":        true,
		"trading_enabled":  true,
		"api_calls_hour":   0,
		"api_calls_day":    0,
		"last_decision_at": nil,
		"updated_at":       now,
	})
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: reset,
		}).
		Create(&models).Error
}

func (s *Store) GetAccount(ctx context.Context, id string) (ledger.Account, error) {
	if s == nil || s.db == nil {
		return ledger.Account{}, fmt.Errorf("gorm store not initialized")
	}
	var m accountModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Account{}, ledger.ErrAccountNotFound
		}
		return ledger.Account{}, err
	}
	return accountModelToRecord(m), nil
}

func (s *Store) ListAccounts(ctx context.Context, activeOnly bool) ([]ledger.Account, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	query := s.db.WithContext(ctx).Model(&accountModel{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var models []accountModel
	if err := query.Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]ledger.Account, 0, len(models))
	for _, m := range models {
		out = append(out, accountModelToRecord(m))
	}
	return out, nil
}

// ApplyAccountDelta applies in-place arithmetic on one account row. All
// adjustments land in a single UPDATE so concurrent writers on the same
// account cannot lose each other's increments; total_pnl is recomputed from
// the post-delta realized and unrealized components.
func (s *Store) ApplyAccountDelta(ctx context.Context, id string, delta ledger.AccountDelta) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	return applyAccountDelta(s.db.WithContext(ctx), id, delta)
}

func applyAccountDelta(tx *gorm.DB, id string, delta ledger.AccountDelta) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("account id is required")
	}
	if delta.IsZero() {
		return nil
	}
	now := time.Now()
	updates := map[string]interface{}{"updated_at": now}

	if !delta.BalanceDelta.IsZero() {
		updates["current_balance"] = addAmount("current_balance", delta.BalanceDelta)
	}
	if !delta.MarginDelta.IsZero() {
		updates["margin_used"] = addAmount("margin_used", delta.MarginDelta)
	}

	realizedExpr := "CAST(realized_pnl AS REAL)"
	realizedArgs := []interface{}{}
	if !delta.RealizedPnLDelta.IsZero() {
		updates["realized_pnl"] = addAmount("realized_pnl", delta.RealizedPnLDelta)
		realizedExpr += " + CAST(? AS REAL)"
		realizedArgs = append(realizedArgs, delta.RealizedPnLDelta)
	}
	unrealizedExpr := "CAST(unrealized_pnl AS REAL)"
	unrealizedArgs := []interface{}{}
	if delta.UnrealizedPnL != nil {
		updates["unrealized_pnl"] = ledger.RoundAmount(*delta.UnrealizedPnL)
		unrealizedExpr = "CAST(? AS REAL)"
		unrealizedArgs = append(unrealizedArgs, *delta.UnrealizedPnL)
	}
	// SQLite evaluates assignment expressions against the pre-update row, so
	// total_pnl repeats the component deltas instead of referencing them.
	totalArgs := append(append([]interface{}{}, realizedArgs...), unrealizedArgs...)
	updates["total_pnl"] = gorm.Expr(
		fmt.Sprintf("ROUND(%s + %s, %d)", realizedExpr, unrealizedExpr, ledger.AmountPlaces),
		totalArgs...,
	)

	if delta.SharpeRatio != nil {
		updates["sharpe_ratio"] = ledger.RoundPercent(*delta.SharpeRatio)
	}
	if delta.MaxDrawdown != nil {
		updates["max_drawdown"] = ledger.RoundPercent(*delta.MaxDrawdown)
	}
	if delta.TradesDelta != 0 {
		updates["total_trades"] = gorm.Expr("total_trades + ?", delta.TradesDelta)
	}
	if delta.WinsDelta != 0 {
		updates["winning_trades"] = gorm.Expr("winning_trades + ?", delta.WinsDelta)
	}
	if delta.LossesDelta != 0 {
		updates["losing_trades"] = gorm.Expr("losing_trades + ?", delta.LossesDelta)
	}
	if delta.OpenPositionsDelta != 0 {
		updates["open_positions"] = gorm.Expr("open_positions + ?", delta.OpenPositionsDelta)
	}
	if delta.APICallsHourDelta != 0 {
		updates["api_calls_hour"] = gorm.Expr("api_calls_hour + ?", delta.APICallsHourDelta)
	}
	if delta.APICallsDayDelta != 0 {
		updates["api_calls_day"] = gorm.Expr("api_calls_day + ?", delta.APICallsDayDelta)
	}
	if delta.TouchDecision {
		updates["last_decision_at"] = now
	}

	res := tx.Model(&accountModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func addAmount(column string, delta decimal.Decimal) interface{} {
	return gorm.Expr(
		fmt.Sprintf("ROUND(CAST(%s AS REAL) + CAST(? AS REAL), %d)", column, ledger.AmountPlaces),
		delta,
	)
}

func (s *Store) SetAccountActive(ctx context.Context, id string, active bool) error {
	return s.setAccountFlag(ctx, id, "is_active", active)
}

func (s *Store) SetTradingEnabled(ctx context.Context, id string, enabled bool) error {
	return s.setAccountFlag(ctx, id, "trading_enabled", enabled)
}

func (s *Store) setAccountFlag(ctx context.Context, id, column string, value bool) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	res := s.db.WithContext(ctx).Model(&accountModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			column:       value,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

// ResetAPICounters zeroes the selected rate counters on hour/day rollover.
func (s *Store) ResetAPICounters(ctx context.Context, id string, hour, day bool) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if !hour && !day {
		return nil
	}
	updates := map[string]interface{}{"updated_at": time.Now()}
	if hour {
		updates["api_calls_hour"] = 0
	}
	if day {
		updates["api_calls_day"] = 0
	}
	res := s.db.WithContext(ctx).Model(&accountModel{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

// DeleteAccount tears down one agent; grids, positions, trades, decisions
// and orders cascade with it.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&accountModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func accountModelToRecord(m accountModel) ledger.Account {
	return ledger.Account{
		ID:             m.ID,
		Provider:       m.Provider,
		ModelName:      m.ModelName,
		CurrentBalance: m.CurrentBalance,
		InitialBalance: m.InitialBalance,
		MarginUsed:     m.MarginUsed,
		RealizedPnL:    m.RealizedPnL,
		UnrealizedPnL:  m.UnrealizedPnL,
		TotalPnL:       m.TotalPnL,
		TotalTrades:    m.TotalTrades,
		WinningTrades:  m.WinningTrades,
		LosingTrades:   m.LosingTrades,
		SharpeRatio:    m.SharpeRatio,
		MaxDrawdown:    m.MaxDrawdown,
		OpenPositions:  m.OpenPositions,
		IsActive:       m.IsActive,
		TradingEnabled: m.TradingEnabled,
		APICallsHour:   m.APICallsHour,
		APICallsDay:    m.APICallsDay,
		LastDecisionAt: m.LastDecisionAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
