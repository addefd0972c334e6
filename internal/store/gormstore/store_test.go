package gormstore

import (
	"context"
	"path/filepath"
	"testing"

	"gridledger/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func defaultSeeds() []ledger.SeedAccount {
	balance := decimal.NewFromInt(10000)
	return []ledger.SeedAccount{
		{ID: "LLM-A", Provider: "openai", ModelName: "gpt-4o", InitialBalance: balance},
		{ID: "LLM-B", Provider: "anthropic", ModelName: "claude-sonnet", InitialBalance: balance},
		{ID: "LLM-C", Provider: "deepseek", ModelName: "deepseek-chat", InitialBalance: balance},
	}
}

func seedDefault(t *testing.T, s *Store) {
	t.Helper()
	require.NoError(t, s.Seed(context.Background(), defaultSeeds()))
}

func mustCreateGrid(t *testing.T, s *Store, id, accountID string) ledger.Grid {
	t.Helper()
	grid, err := s.CreateGrid(context.Background(), ledger.Grid{
		ID:            id,
		AccountID:     accountID,
		Symbol:        "BTCUSDT",
		UpperLimit:    decimal.NewFromInt(70000),
		LowerLimit:    decimal.NewFromInt(60000),
		GridLevels:    6,
		Spacing:       ledger.SpacingArithmetic,
		Leverage:      3,
		InvestmentUSD: decimal.NewFromInt(1000),
		StopLossPct:   decimal.NewFromFloat(5),
	})
	require.NoError(t, err)
	return grid
}

func mustOpenPosition(t *testing.T, s *Store, accountID string, gridID *string) ledger.Position {
	t.Helper()
	pos, err := s.OpenPosition(context.Background(), ledger.Position{
		AccountID:  accountID,
		GridID:     gridID,
		Symbol:     "BTCUSDT",
		Side:       ledger.SideLong,
		EntryPrice: decimal.NewFromInt(65000),
		Quantity:   decimal.NewFromFloat(0.1),
		Leverage:   3,
		Margin:     decimal.NewFromFloat(2166.66666667),
	})
	require.NoError(t, err)
	return pos
}

func TestSeedInitialState(t *testing.T) {
	s := newTestStore(t)
	seedDefault(t, s)

	accounts, err := s.ListAccounts(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, accounts, 3)

	for _, acc := range accounts {
		assert.True(t, acc.CurrentBalance.Equal(acc.InitialBalance), "%s balance", acc.ID)
		assert.True(t, acc.MarginUsed.IsZero())
		assert.True(t, acc.RealizedPnL.IsZero())
		assert.True(t, acc.UnrealizedPnL.IsZero())
		assert.True(t, acc.TotalPnL.IsZero())
		assert.Zero(t, acc.TotalTrades)
		assert.Zero(t, acc.WinningTrades)
		assert.Zero(t, acc.LosingTrades)
		assert.Zero(t, acc.OpenPositions)
		assert.True(t, acc.IsActive)
		assert.True(t, acc.TradingEnabled)
		assert.Nil(t, acc.LastDecisionAt)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedDefault(t, s)

	// Dirty up one account, then re-seed.
	require.NoError(t, s.ApplyAccountDelta(ctx, "LLM-A", ledger.AccountDelta{
		BalanceDelta:     decimal.NewFromInt(-500),
		RealizedPnLDelta: decimal.NewFromInt(-500),
		TradesDelta:      3,
		LossesDelta:      3,
		TouchDecision:    true,
	}))

	// A re-seed with different identity labels must reset capital but keep
	// the original identity metadata.
	reseed := defaultSeeds()
	reseed[0].Provider = "someone-else"
	require.NoError(t, s.Seed(ctx, reseed))

	acc, err := s.GetAccount(ctx, "LLM-A")
	require.NoError(t, err)
	assert.Equal(t, "openai", acc.Provider)
	assert.True(t, acc.CurrentBalance.Equal(decimal.NewFromInt(10000)), "got %s", acc.CurrentBalance)
	assert.True(t, acc.RealizedPnL.IsZero())
	assert.True(t, acc.TotalPnL.IsZero())
	assert.Zero(t, acc.TotalTrades)
	assert.Zero(t, acc.LosingTrades)
	assert.Nil(t, acc.LastDecisionAt)

	accounts, err := s.ListAccounts(ctx, false)
	require.NoError(t, err)
	assert.Len(t, accounts, 3)
}

func TestApplyAccountDelta(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedDefault(t, s)

	unrealized := decimal.NewFromInt(25)
	require.NoError(t, s.ApplyAccountDelta(ctx, "LLM-A", ledger.AccountDelta{
		BalanceDelta:      decimal.NewFromInt(100),
		MarginDelta:       decimal.NewFromInt(300),
		RealizedPnLDelta:  decimal.NewFromInt(100),
		UnrealizedPnL:     &unrealized,
		TradesDelta:       1,
		WinsDelta:         1,
		APICallsHourDelta: 1,
		APICallsDayDelta:  1,
		TouchDecision:     true,
	}))

	acc, err := s.GetAccount(ctx, "LLM-A")
	require.NoError(t, err)
	assert.True(t, acc.CurrentBalance.Equal(decimal.NewFromInt(10100)), "balance %s", acc.CurrentBalance)
	assert.True(t, acc.MarginUsed.Equal(decimal.NewFromInt(300)))
	assert.True(t, acc.RealizedPnL.Equal(decimal.NewFromInt(100)))
	assert.True(t, acc.UnrealizedPnL.Equal(unrealized))
	assert.True(t, acc.TotalPnL.Equal(decimal.NewFromInt(125)), "total %s", acc.TotalPnL)
	assert.Equal(t, 1, acc.TotalTrades)
	assert.Equal(t, 1, acc.WinningTrades)
	assert.Equal(t, 1, acc.APICallsHour)
	assert.Equal(t, 1, acc.APICallsDay)
	assert.NotNil(t, acc.LastDecisionAt)

	t.Run("unknown account", func(t *testing.T) {
		err := s.ApplyAccountDelta(ctx, "LLM-X", ledger.AccountDelta{TradesDelta: 1})
		assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
	})

	t.Run("hourly reset keeps the daily counter", func(t *testing.T) {
		require.NoError(t, s.ResetAPICounters(ctx, "LLM-A", true, false))
		acc, err := s.GetAccount(ctx, "LLM-A")
		require.NoError(t, err)
		assert.Zero(t, acc.APICallsHour)
		assert.Equal(t, 1, acc.APICallsDay)
	})

	t.Run("zero delta is a no-op", func(t *testing.T) {
		before, err := s.GetAccount(ctx, "LLM-B")
		require.NoError(t, err)
		require.NoError(t, s.ApplyAccountDelta(ctx, "LLM-B", ledger.AccountDelta{}))
		after, err := s.GetAccount(ctx, "LLM-B")
		require.NoError(t, err)
		assert.True(t, after.UpdatedAt.Equal(before.UpdatedAt))
	})
}

func TestOpenEnforcesForeignKeys(t *testing.T) {
	s := newTestStore(t)
	sqlDB, err := s.SQLDB()
	require.NoError(t, err)

	var fk int
	require.NoError(t, sqlDB.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestUpdatedAtTouch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedDefault(t, s)

	before, err := s.GetAccount(ctx, "LLM-A")
	require.NoError(t, err)

	require.NoError(t, s.SetTradingEnabled(ctx, "LLM-A", false))
	after, err := s.GetAccount(ctx, "LLM-A")
	require.NoError(t, err)
	assert.False(t, after.TradingEnabled)
	assert.False(t, after.UpdatedAt.Before(before.UpdatedAt))

	grid := mustCreateGrid(t, s, "touch-grid", "LLM-A")
	require.NoError(t, s.UpdateGridPerformance(ctx, grid.ID, ledger.GridPerformanceDelta{CyclesDelta: 1}))
	got, err := s.GetGrid(ctx, grid.ID)
	require.NoError(t, err)
	assert.False(t, got.UpdatedAt.Before(grid.UpdatedAt))
	assert.Equal(t, 1, got.TotalCycles)
}

func TestDeleteAccountCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedDefault(t, s)

	grid := mustCreateGrid(t, s, "cascade-grid", "LLM-A")
	pos := mustOpenPosition(t, s, "LLM-A", &grid.ID)
	_, err := s.ClosePosition(ctx, pos.ID, ledger.CloseRequest{
		ExitPrice: decimal.NewFromInt(66000),
		Fees:      decimal.NewFromInt(2),
		Reason:    "take_profit",
	})
	require.NoError(t, err)

	_, err = s.SubmitOrder(ctx, ledger.Order{
		AccountID: "LLM-A",
		GridID:    &grid.ID,
		Symbol:    "BTCUSDT",
		Side:      ledger.OrderBuy,
		Type:      ledger.OrderMarket,
		Quantity:  decimal.NewFromFloat(0.1),
	})
	require.NoError(t, err)

	_, err = s.AppendDecision(ctx, ledger.Decision{
		AccountID:  "LLM-A",
		Action:     ledger.ActionHold,
		Confidence: decimal.NewFromFloat(0.5),
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteAccount(ctx, "LLM-A"))

	_, err = s.GetAccount(ctx, "LLM-A")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	grids, err := s.ListGrids(ctx, "LLM-A", "")
	require.NoError(t, err)
	assert.Empty(t, grids)

	_, err = s.GetPosition(ctx, pos.ID)
	assert.ErrorIs(t, err, ledger.ErrPositionNotFound)

	trades, err := s.ListClosedTrades(ctx, "LLM-A", 10)
	require.NoError(t, err)
	assert.Empty(t, trades)

	orders, err := s.ListOrders(ctx, "LLM-A", "")
	require.NoError(t, err)
	assert.Empty(t, orders)

	decisions, err := s.ListDecisions(ctx, "LLM-A", 10)
	require.NoError(t, err)
	assert.Empty(t, decisions)
}

func TestDeleteGridDetachesChildren(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedDefault(t, s)

	grid := mustCreateGrid(t, s, "detach-grid", "LLM-B")
	pos := mustOpenPosition(t, s, "LLM-B", &grid.ID)

	order, err := s.SubmitOrder(ctx, ledger.Order{
		AccountID: "LLM-B",
		GridID:    &grid.ID,
		Symbol:    "BTCUSDT",
		Side:      ledger.OrderSell,
		Type:      ledger.OrderMarket,
		Quantity:  decimal.NewFromFloat(0.1),
	})
	require.NoError(t, err)

	trade, err := s.ClosePosition(ctx, pos.ID, ledger.CloseRequest{
		ExitPrice: decimal.NewFromInt(64000),
		Fees:      decimal.NewFromInt(1),
		Reason:    "grid_cycle",
	})
	require.NoError(t, err)
	require.NotNil(t, trade.GridID)

	require.NoError(t, s.DeleteGrid(ctx, grid.ID))

	gotPos, err := s.GetPosition(ctx, pos.ID)
	require.NoError(t, err)
	assert.Nil(t, gotPos.GridID)

	gotOrder, err := s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, gotOrder.GridID)

	trades, err := s.ListClosedTrades(ctx, "LLM-B", 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Nil(t, trades[0].GridID)
}
