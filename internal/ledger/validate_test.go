package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validGrid() Grid {
	return Grid{
		ID:            "grid-1",
		AccountID:     "LLM-A",
		Symbol:        "BTCUSDT",
		UpperLimit:    decimal.NewFromInt(70000),
		LowerLimit:    decimal.NewFromInt(60000),
		GridLevels:    6,
		Spacing:       SpacingArithmetic,
		Leverage:      3,
		InvestmentUSD: decimal.NewFromInt(1000),
		StopLossPct:   decimal.NewFromFloat(5),
	}
}

func TestValidateGrid(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		g := validGrid()
		assert.NoError(t, ValidateGrid(&g))
	})

	t.Run("levels out of range", func(t *testing.T) {
		for _, levels := range []int{0, 4, 9, 100} {
			g := validGrid()
			g.GridLevels = levels
			assert.Error(t, ValidateGrid(&g), "levels=%d", levels)
		}
	})

	t.Run("leverage out of range", func(t *testing.T) {
		for _, lev := range []int{0, -1, 6, 25} {
			g := validGrid()
			g.Leverage = lev
			assert.Error(t, ValidateGrid(&g), "leverage=%d", lev)
		}
	})

	t.Run("band must be ordered", func(t *testing.T) {
		g := validGrid()
		g.UpperLimit, g.LowerLimit = g.LowerLimit, g.UpperLimit
		assert.Error(t, ValidateGrid(&g))

		g = validGrid()
		g.LowerLimit = g.UpperLimit
		assert.Error(t, ValidateGrid(&g))
	})

	t.Run("spacing enum", func(t *testing.T) {
		g := validGrid()
		g.Spacing = "fibonacci"
		assert.Error(t, ValidateGrid(&g))
	})

	t.Run("grid_state must be JSON", func(t *testing.T) {
		g := validGrid()
		g.State = []byte("not-json")
		assert.Error(t, ValidateGrid(&g))

		g.State = []byte(`{"next_level":3}`)
		assert.NoError(t, ValidateGrid(&g))
	})
}

func TestValidateDecision(t *testing.T) {
	base := func() Decision {
		return Decision{
			AccountID:  "LLM-A",
			Action:     ActionHold,
			Confidence: decimal.NewFromFloat(0.8),
		}
	}

	t.Run("valid", func(t *testing.T) {
		d := base()
		assert.NoError(t, ValidateDecision(&d))
	})

	t.Run("action enum", func(t *testing.T) {
		d := base()
		d.Action = "OPEN_LONG"
		assert.Error(t, ValidateDecision(&d))
	})

	t.Run("confidence range", func(t *testing.T) {
		d := base()
		d.Confidence = decimal.NewFromFloat(1.2)
		assert.Error(t, ValidateDecision(&d))

		d.Confidence = decimal.NewFromFloat(-0.1)
		assert.Error(t, ValidateDecision(&d))
	})

	t.Run("raw response schema", func(t *testing.T) {
		d := base()
		d.RawResponse = []byte(`{"action":"HOLD","confidence":0.8,"reasoning":"range-bound"}`)
		assert.NoError(t, ValidateDecision(&d))

		d.RawResponse = []byte(`{"action":"YOLO"}`)
		assert.Error(t, ValidateDecision(&d))

		d.RawResponse = []byte(`{"confidence":7}`)
		assert.Error(t, ValidateDecision(&d))

		d.RawResponse = []byte(`["not","an","object"]`)
		assert.Error(t, ValidateDecision(&d))
	})
}

func TestValidateOrder(t *testing.T) {
	base := func() Order {
		return Order{
			AccountID: "LLM-A",
			Symbol:    "ETHUSDT",
			Side:      OrderBuy,
			Type:      OrderMarket,
			Quantity:  decimal.NewFromFloat(0.5),
		}
	}

	t.Run("valid market order", func(t *testing.T) {
		o := base()
		assert.NoError(t, ValidateOrder(&o))
	})

	t.Run("limit order requires price", func(t *testing.T) {
		o := base()
		o.Type = OrderLimit
		assert.Error(t, ValidateOrder(&o))

		price := decimal.NewFromInt(3000)
		o.Price = &price
		assert.NoError(t, ValidateOrder(&o))
	})

	t.Run("bad enums", func(t *testing.T) {
		o := base()
		o.Side = "HOLD"
		assert.Error(t, ValidateOrder(&o))

		o = base()
		o.Type = "ICEBERG"
		assert.Error(t, ValidateOrder(&o))
	})
}

func TestRatioPercent(t *testing.T) {
	t.Run("zero denominator guards", func(t *testing.T) {
		got := RatioPercent(decimal.NewFromInt(50), decimal.Zero)
		assert.True(t, got.IsZero())
	})

	t.Run("roi example", func(t *testing.T) {
		got := RatioPercent(decimal.NewFromInt(50), decimal.NewFromInt(1000))
		assert.True(t, got.Equal(decimal.NewFromInt(5)), "got %s", got)
	})

	t.Run("win rate example", func(t *testing.T) {
		got := RatioPercent(decimal.NewFromInt(7), decimal.NewFromInt(10))
		assert.True(t, got.Equal(decimal.NewFromInt(70)), "got %s", got)
	})
}

func TestSignedPnL(t *testing.T) {
	entry := decimal.NewFromInt(100)
	exit := decimal.NewFromInt(110)
	qty := decimal.NewFromInt(2)
	fees := decimal.NewFromInt(1)

	long := SignedPnL(SideLong, entry, exit, qty, fees)
	require.True(t, long.Equal(decimal.NewFromInt(19)), "got %s", long)

	short := SignedPnL(SideShort, entry, exit, qty, fees)
	require.True(t, short.Equal(decimal.NewFromInt(-21)), "got %s", short)
}

func TestPnLPercent(t *testing.T) {
	// margin committed: 100*2/2 = 100, pnl 19 => 19%
	got := PnLPercent(decimal.NewFromInt(19), decimal.NewFromInt(100), decimal.NewFromInt(2), 2)
	assert.True(t, got.Equal(decimal.NewFromInt(19)), "got %s", got)

	assert.True(t, PnLPercent(decimal.NewFromInt(19), decimal.NewFromInt(100), decimal.NewFromInt(2), 0).IsZero())
}
