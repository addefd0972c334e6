package gormstore

import (
	"context"
	"fmt"
	"time"

	"gridledger/internal/ledger"

	"github.com/shopspring/decimal"
)

type gridPerfRow struct {
	GridID          string          `gorm:"column:grid_id"`
	AccountID       string          `gorm:"column:account_id"`
	ModelName       string          `gorm:"column:model_name"`
	Symbol          string          `gorm:"column:symbol"`
	Status          string          `gorm:"column:status"`
	GridLevels      int             `gorm:"column:grid_levels"`
	Leverage        int             `gorm:"column:leverage"`
	InvestmentUSD   decimal.Decimal `gorm:"column:investment_usd"`
	TotalCycles     int             `gorm:"column:total_cycles"`
	TotalProfitUSDT decimal.Decimal `gorm:"column:total_profit_usdt"`
	TotalFeesUSDT   decimal.Decimal `gorm:"column:total_fees_usdt"`
	ROIPercentage   decimal.Decimal `gorm:"column:roi_percentage"`
	CreatedAt       time.Time       `gorm:"column:created_at"`
	StoppedAt       *time.Time      `gorm:"column:stopped_at"`
}

type leaderboardRow struct {
	AccountID      string          `gorm:"column:account_id"`
	Provider       string          `gorm:"column:provider"`
	ModelName      string          `gorm:"column:model_name"`
	CurrentBalance decimal.Decimal `gorm:"column:current_balance"`
	TotalPnL       decimal.Decimal `gorm:"column:total_pnl"`
	ROIPercentage  decimal.Decimal `gorm:"column:roi_percentage"`
	WinRate        decimal.Decimal `gorm:"column:win_rate"`
	TotalTrades    int             `gorm:"column:total_trades"`
	OpenPositions  int             `gorm:"column:open_positions"`
}

// GridPerformanceSummary reads the grid_performance_summary view: every grid
// joined to its owner, ROI guarded against zero investment, newest first.
// Wall-clock runtime is derived here with a now fallback for running grids.
func (s *Store) GridPerformanceSummary(ctx context.Context) ([]ledger.GridPerformance, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	var rows []gridPerfRow
	err := s.db.WithContext(ctx).
		Raw(`SELECT * FROM grid_performance_summary ORDER BY created_at DESC, grid_id ASC`).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]ledger.GridPerformance, 0, len(rows))
	for _, r := range rows {
		end := now
		if r.StoppedAt != nil {
			end = *r.StoppedAt
		}
		out = append(out, ledger.GridPerformance{
			GridID:          r.GridID,
			AccountID:       r.AccountID,
			ModelName:       r.ModelName,
			Symbol:          r.Symbol,
			Status:          ledger.GridStatus(r.Status),
			GridLevels:      r.GridLevels,
			Leverage:        r.Leverage,
			InvestmentUSD:   r.InvestmentUSD,
			TotalCycles:     r.TotalCycles,
			TotalProfitUSDT: r.TotalProfitUSDT,
			TotalFeesUSDT:   r.TotalFeesUSDT,
			ROIPercentage:   ledger.RoundPercent(r.ROIPercentage),
			CreatedAt:       r.CreatedAt,
			StoppedAt:       r.StoppedAt,
			DurationSeconds: int64(end.Sub(r.CreatedAt).Seconds()),
		})
	}
	return out, nil
}

// Leaderboard reads llm_leaderboard: active accounts ranked by balance, then
// total PnL; win rate guarded against zero trades.
func (s *Store) Leaderboard(ctx context.Context) ([]ledger.LeaderboardEntry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	var rows []leaderboardRow
	err := s.db.WithContext(ctx).
		Raw(`SELECT * FROM llm_leaderboard
		     ORDER BY CAST(current_balance AS REAL) DESC, CAST(total_pnl AS REAL) DESC, account_id ASC`).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]ledger.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, ledger.LeaderboardEntry{
			AccountID:      r.AccountID,
			Provider:       r.Provider,
			ModelName:      r.ModelName,
			CurrentBalance: r.CurrentBalance,
			TotalPnL:       r.TotalPnL,
			ROIPercentage:  ledger.RoundPercent(r.ROIPercentage),
			WinRate:        ledger.RoundPercent(r.WinRate),
			TotalTrades:    r.TotalTrades,
			OpenPositions:  r.OpenPositions,
		})
	}
	return out, nil
}
