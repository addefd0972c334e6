package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// ValidateGrid checks the creation-time constraints: band ordering, level and
// leverage ranges, spacing enum, non-negative capital figures. It does not
// touch grid_state; opaque blobs go through ValidatePayload.
func ValidateGrid(g *Grid) error {
	if g == nil {
		return fmt.Errorf("grid is nil")
	}
	if strings.TrimSpace(g.ID) == "" {
		return fmt.Errorf("grid_id is required")
	}
	if strings.TrimSpace(g.AccountID) == "" {
		return fmt.Errorf("account_id is required")
	}
	if strings.TrimSpace(g.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if g.GridLevels < MinGridLevels || g.GridLevels > MaxGridLevels {
		return fmt.Errorf("grid_levels %d outside [%d,%d]", g.GridLevels, MinGridLevels, MaxGridLevels)
	}
	if g.Leverage < MinLeverage || g.Leverage > MaxLeverage {
		return fmt.Errorf("leverage %d outside [%d,%d]", g.Leverage, MinLeverage, MaxLeverage)
	}
	switch g.Spacing {
	case SpacingArithmetic, SpacingGeometric:
	default:
		return fmt.Errorf("spacing_type %q invalid", g.Spacing)
	}
	if !g.UpperLimit.GreaterThan(g.LowerLimit) {
		return fmt.Errorf("upper_limit %s must exceed lower_limit %s", g.UpperLimit, g.LowerLimit)
	}
	if g.LowerLimit.IsNegative() {
		return fmt.Errorf("lower_limit must not be negative")
	}
	if g.InvestmentUSD.IsNegative() {
		return fmt.Errorf("investment_usd must not be negative")
	}
	if g.StopLossPct.IsNegative() {
		return fmt.Errorf("stop_loss_pct must not be negative")
	}
	if err := ValidatePayload("grid_state", g.State); err != nil {
		return err
	}
	return nil
}

// ValidatePosition checks side, prices and sizing before an open.
func ValidatePosition(p *Position) error {
	if p == nil {
		return fmt.Errorf("position is nil")
	}
	if strings.TrimSpace(p.AccountID) == "" {
		return fmt.Errorf("account_id is required")
	}
	if strings.TrimSpace(p.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	switch p.Side {
	case SideLong, SideShort:
	default:
		return fmt.Errorf("side %q invalid", p.Side)
	}
	if !p.EntryPrice.IsPositive() {
		return fmt.Errorf("entry_price must be positive")
	}
	if !p.Quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive")
	}
	if p.Leverage < MinLeverage || p.Leverage > MaxLeverage {
		return fmt.Errorf("leverage %d outside [%d,%d]", p.Leverage, MinLeverage, MaxLeverage)
	}
	if p.Margin.IsNegative() {
		return fmt.Errorf("margin must not be negative")
	}
	return nil
}

// ValidateOrder checks the request-side fields of a broker order.
func ValidateOrder(o *Order) error {
	if o == nil {
		return fmt.Errorf("order is nil")
	}
	if strings.TrimSpace(o.AccountID) == "" {
		return fmt.Errorf("account_id is required")
	}
	if strings.TrimSpace(o.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	switch o.Side {
	case OrderBuy, OrderSell:
	default:
		return fmt.Errorf("side %q invalid", o.Side)
	}
	switch o.Type {
	case OrderMarket, OrderLimit, OrderStopLoss, OrderTakeProfit:
	default:
		return fmt.Errorf("order type %q invalid", o.Type)
	}
	if !o.Quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive")
	}
	if o.Type != OrderMarket && (o.Price == nil || !o.Price.IsPositive()) {
		return fmt.Errorf("%s order requires a positive price", o.Type)
	}
	return nil
}

// ValidateDecision checks the typed envelope of a decision record. The raw
// model payload is additionally checked against the response schema.
func ValidateDecision(d *Decision) error {
	if d == nil {
		return fmt.Errorf("decision is nil")
	}
	if strings.TrimSpace(d.AccountID) == "" {
		return fmt.Errorf("account_id is required")
	}
	switch d.Action {
	case ActionCreateGrid, ActionStopGrid, ActionAdjustGrid, ActionHold:
	default:
		return fmt.Errorf("action %q invalid", d.Action)
	}
	if d.Symbol != nil && strings.TrimSpace(*d.Symbol) == "" {
		return fmt.Errorf("symbol must be omitted or non-empty")
	}
	if d.Confidence.IsNegative() || d.Confidence.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("confidence %s outside [0,1]", d.Confidence)
	}
	if len(d.RawResponse) > 0 {
		if err := ValidateResponsePayload(d.RawResponse); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSnapshot checks a market-data row before append.
func ValidateSnapshot(s *MarketSnapshot) error {
	if s == nil {
		return fmt.Errorf("snapshot is nil")
	}
	if strings.TrimSpace(s.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if !s.Price.IsPositive() {
		return fmt.Errorf("price must be positive")
	}
	if s.Volume24h.IsNegative() {
		return fmt.Errorf("volume_24h must not be negative")
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return ValidatePayload("metadata", s.Metadata)
}

// ValidatePayload rejects bytes that are not well-formed JSON. The internal
// structure stays owned by the decision engine; the ledger only refuses to
// persist garbage it could not hand back as JSON.
func ValidatePayload(field string, raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("%s is not valid JSON", field)
	}
	return nil
}
