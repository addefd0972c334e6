package gormstore

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"gridledger/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func TestOpenPositionReservesMargin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedDefault(t, s)

	pos := mustOpenPosition(t, s, "LLM-A", nil)
	assert.Equal(t, ledger.PositionOpen, pos.Status)
	assert.True(t, pos.CurrentPrice.Equal(pos.EntryPrice))
	assert.NotZero(t, pos.ID)

	acc, err := s.GetAccount(ctx, "LLM-A")
	require.NoError(t, err)
	assert.True(t, acc.MarginUsed.Equal(pos.Margin), "margin %s", acc.MarginUsed)
	assert.Equal(t, 1, acc.OpenPositions)
	// Balance moves only on close.
	assert.True(t, acc.CurrentBalance.Equal(acc.InitialBalance))

	t.Run("unknown owner", func(t *testing.T) {
		_, err := s.OpenPosition(ctx, ledger.Position{
			AccountID:  "LLM-X",
			Symbol:     "BTCUSDT",
			Side:       ledger.SideLong,
			EntryPrice: decimal.NewFromInt(65000),
			Quantity:   decimal.NewFromFloat(0.1),
			Leverage:   3,
			Margin:     decimal.NewFromInt(2000),
		})
		assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
	})

	t.Run("unknown grid rejected by schema", func(t *testing.T) {
		gridID := "no-such-grid"
		_, err := s.OpenPosition(ctx, ledger.Position{
			AccountID:  "LLM-A",
			GridID:     &gridID,
			Symbol:     "BTCUSDT",
			Side:       ledger.SideLong,
			EntryPrice: decimal.NewFromInt(65000),
			Quantity:   decimal.NewFromFloat(0.1),
			Leverage:   3,
			Margin:     decimal.NewFromInt(2000),
		})
		assert.Error(t, err)
	})
}

func TestUpdatePositionMark(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedDefault(t, s)
	pos := mustOpenPosition(t, s, "LLM-A", nil)

	require.NoError(t, s.UpdatePositionMark(ctx, pos.ID, decimal.NewFromInt(65500), decimal.NewFromInt(50)))
	got, err := s.GetPosition(ctx, pos.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentPrice.Equal(decimal.NewFromInt(65500)))
	assert.True(t, got.UnrealizedPnL.Equal(decimal.NewFromInt(50)))

	t.Run("terminal positions are frozen", func(t *testing.T) {
		_, err := s.ClosePosition(ctx, pos.ID, ledger.CloseRequest{
			ExitPrice: decimal.NewFromInt(65500),
			Reason:    "manual",
		})
		require.NoError(t, err)
		err = s.UpdatePositionMark(ctx, pos.ID, decimal.NewFromInt(66000), decimal.NewFromInt(100))
		assert.ErrorIs(t, err, ledger.ErrPositionNotOpen)
	})

	t.Run("unknown position", func(t *testing.T) {
		err := s.UpdatePositionMark(ctx, 9999, decimal.NewFromInt(66000), decimal.Zero)
		assert.ErrorIs(t, err, ledger.ErrPositionNotFound)
	})
}

func TestClosePositionSettlesAllThree(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedDefault(t, s)

	grid := mustCreateGrid(t, s, "close-grid", "LLM-A")
	pos := mustOpenPosition(t, s, "LLM-A", &grid.ID)

	// long 0.1 @ 65000 -> 66000, fees 2: pnl = 1000*0.1 - 2 = 98
	trade, err := s.ClosePosition(ctx, pos.ID, ledger.CloseRequest{
		ExitPrice: decimal.NewFromInt(66000),
		Fees:      decimal.NewFromInt(2),
		Reason:    "take_profit",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, trade.ID)
	assert.True(t, trade.RealizedPnL.Equal(decimal.NewFromInt(98)), "pnl %s", trade.RealizedPnL)
	// margin 6500/3, 98 on it is 4.5231%
	assert.True(t, trade.PnLPercentage.Equal(decimal.NewFromFloat(4.5231)), "pnl%% %s", trade.PnLPercentage)
	assert.Equal(t, "take_profit", trade.ExitReason)
	assert.GreaterOrEqual(t, trade.DurationSeconds, int64(0))

	got, err := s.GetPosition(ctx, pos.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.PositionClosed, got.Status)
	require.NotNil(t, got.ClosedAt)
	assert.True(t, got.UnrealizedPnL.IsZero())

	acc, err := s.GetAccount(ctx, "LLM-A")
	require.NoError(t, err)
	assert.True(t, acc.CurrentBalance.Equal(decimal.NewFromInt(10098)), "balance %s", acc.CurrentBalance)
	assert.True(t, acc.MarginUsed.IsZero(), "margin %s", acc.MarginUsed)
	assert.True(t, acc.RealizedPnL.Equal(decimal.NewFromInt(98)))
	assert.True(t, acc.TotalPnL.Equal(decimal.NewFromInt(98)))
	assert.Equal(t, 1, acc.TotalTrades)
	assert.Equal(t, 1, acc.WinningTrades)
	assert.Zero(t, acc.LosingTrades)
	assert.Zero(t, acc.OpenPositions)

	trades, err := s.ListClosedTrades(ctx, "LLM-A", 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, trade.ID, trades[0].ID)
}

func TestClosePositionLoss(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedDefault(t, s)
	pos := mustOpenPosition(t, s, "LLM-B", nil)

	// long 0.1 @ 65000 -> 64000, fees 1: pnl = -100 - 1 = -101
	trade, err := s.ClosePosition(ctx, pos.ID, ledger.CloseRequest{
		ExitPrice:  decimal.NewFromInt(64000),
		Fees:       decimal.NewFromInt(1),
		Reason:     "stop_loss",
		Liquidated: true,
	})
	require.NoError(t, err)
	assert.True(t, trade.RealizedPnL.Equal(decimal.NewFromInt(-101)), "pnl %s", trade.RealizedPnL)

	got, err := s.GetPosition(ctx, pos.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.PositionLiquidated, got.Status)

	acc, err := s.GetAccount(ctx, "LLM-B")
	require.NoError(t, err)
	assert.True(t, acc.CurrentBalance.Equal(decimal.NewFromInt(9899)), "balance %s", acc.CurrentBalance)
	assert.Equal(t, 1, acc.LosingTrades)
	assert.Zero(t, acc.WinningTrades)
}

func TestClosePositionIsExactlyOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedDefault(t, s)
	pos := mustOpenPosition(t, s, "LLM-A", nil)

	_, err := s.ClosePosition(ctx, pos.ID, ledger.CloseRequest{
		ExitPrice: decimal.NewFromInt(66000),
		Reason:    "grid_cycle",
	})
	require.NoError(t, err)

	_, err = s.ClosePosition(ctx, pos.ID, ledger.CloseRequest{
		ExitPrice: decimal.NewFromInt(67000),
		Reason:    "grid_cycle",
	})
	assert.ErrorIs(t, err, ledger.ErrPositionNotOpen)

	trades, err := s.ListClosedTrades(ctx, "LLM-A", 10)
	require.NoError(t, err)
	assert.Len(t, trades, 1)

	acc, err := s.GetAccount(ctx, "LLM-A")
	require.NoError(t, err)
	assert.Equal(t, 1, acc.TotalTrades)
}

func TestClosePositionConcurrent(t *testing.T) {
	s := newTestStore(t)
	seedDefault(t, s)
	pos := mustOpenPosition(t, s, "LLM-A", nil)

	var wins, losses atomic.Int32
	var eg errgroup.Group
	for i := 0; i < 2; i++ {
		eg.Go(func() error {
			_, err := s.ClosePosition(context.Background(), pos.ID, ledger.CloseRequest{
				ExitPrice: decimal.NewFromInt(66000),
				Reason:    "race",
			})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ledger.ErrPositionNotOpen):
				losses.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(1), losses.Load())

	trades, err := s.ListClosedTrades(context.Background(), "LLM-A", 10)
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

// A failure after the three writes must roll all of them back: the position
// stays open, no trade row lands and the account is untouched.
func TestClosePositionRollsBackAtomically(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedDefault(t, s)
	pos := mustOpenPosition(t, s, "LLM-A", nil)

	before, err := s.GetAccount(ctx, "LLM-A")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := closePositionTx(tx, pos.ID, ledger.CloseRequest{
			ExitPrice: decimal.NewFromInt(66000),
			Reason:    "induced",
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetPosition(ctx, pos.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.PositionOpen, got.Status)
	assert.Nil(t, got.ClosedAt)

	trades, err := s.ListClosedTrades(ctx, "LLM-A", 10)
	require.NoError(t, err)
	assert.Empty(t, trades)

	after, err := s.GetAccount(ctx, "LLM-A")
	require.NoError(t, err)
	assert.True(t, after.CurrentBalance.Equal(before.CurrentBalance))
	assert.True(t, after.MarginUsed.Equal(before.MarginUsed))
	assert.Equal(t, before.TotalTrades, after.TotalTrades)
	assert.Equal(t, before.OpenPositions, after.OpenPositions)
}

func TestClosePositionInputChecks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedDefault(t, s)
	pos := mustOpenPosition(t, s, "LLM-A", nil)

	_, err := s.ClosePosition(ctx, pos.ID, ledger.CloseRequest{ExitPrice: decimal.Zero})
	assert.Error(t, err)

	_, err = s.ClosePosition(ctx, pos.ID, ledger.CloseRequest{
		ExitPrice: decimal.NewFromInt(66000),
		Fees:      decimal.NewFromInt(-1),
	})
	assert.Error(t, err)

	_, err = s.ClosePosition(ctx, 9999, ledger.CloseRequest{ExitPrice: decimal.NewFromInt(66000)})
	assert.ErrorIs(t, err, ledger.ErrPositionNotFound)
}

func TestListOpenPositions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedDefault(t, s)

	p1 := mustOpenPosition(t, s, "LLM-A", nil)
	mustOpenPosition(t, s, "LLM-A", nil)
	mustOpenPosition(t, s, "LLM-B", nil)

	_, err := s.ClosePosition(ctx, p1.ID, ledger.CloseRequest{
		ExitPrice: decimal.NewFromInt(66000),
		Reason:    "manual",
	})
	require.NoError(t, err)

	open, err := s.ListOpenPositions(ctx, "LLM-A")
	require.NoError(t, err)
	assert.Len(t, open, 1)

	all, err := s.ListOpenPositions(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
