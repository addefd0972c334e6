package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gridledger/internal/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OpenPosition inserts the OPEN row and, in the same transaction, reserves
// margin and the open slot on the owner account.
func (s *Store) OpenPosition(ctx context.Context, pos ledger.Position) (ledger.Position, error) {
	if s == nil || s.db == nil {
		return ledger.Position{}, fmt.Errorf("gorm store not initialized")
	}
	pos.AccountID = strings.TrimSpace(pos.AccountID)
	pos.Symbol = strings.ToUpper(strings.TrimSpace(pos.Symbol))
	if err := ledger.ValidatePosition(&pos); err != nil {
		return ledger.Position{}, err
	}
	now := time.Now()
	pos.Status = ledger.PositionOpen
	if pos.OpenedAt.IsZero() {
		pos.OpenedAt = now
	}
	pos.ClosedAt = nil
	m := newPositionModel(pos)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			if isForeignKeyViolation(err) {
				return ledger.ErrAccountNotFound
			}
			return err
		}
		return applyAccountDelta(tx, pos.AccountID, ledger.AccountDelta{
			MarginDelta:        pos.Margin,
			OpenPositionsDelta: 1,
		})
	})
	if err != nil {
		return ledger.Position{}, err
	}
	return positionModelToRecord(m), nil
}

// UpdatePositionMark refreshes the mark price and unrealized PnL of an open
// position. Terminal positions are left untouched.
func (s *Store) UpdatePositionMark(ctx context.Context, positionID int64, price, unrealizedPnL decimal.Decimal) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if !price.IsPositive() {
		return fmt.Errorf("mark price must be positive")
	}
	res := s.db.WithContext(ctx).Model(&positionModel{}).
		Where("id = ? AND status = ?", positionID, string(ledger.PositionOpen)).
		Updates(map[string]interface{}{
			"current_price":  ledger.RoundAmount(price),
			"unrealized_pnl": ledger.RoundAmount(unrealizedPnL),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetPosition(ctx, positionID); err != nil {
			return err
		}
		return ledger.ErrPositionNotOpen
	}
	return nil
}

// ClosePosition is the single transactional boundary of the model: it flips
// the position to its terminal status, inserts exactly one closed_trades row
// and settles the owner account. Any failure rolls all three back; a
// concurrent second close observes ErrPositionNotOpen.
func (s *Store) ClosePosition(ctx context.Context, positionID int64, req ledger.CloseRequest) (ledger.ClosedTrade, error) {
	if s == nil || s.db == nil {
		return ledger.ClosedTrade{}, fmt.Errorf("gorm store not initialized")
	}
	if !req.ExitPrice.IsPositive() {
		return ledger.ClosedTrade{}, fmt.Errorf("exit price must be positive")
	}
	if req.Fees.IsNegative() {
		return ledger.ClosedTrade{}, fmt.Errorf("fees must not be negative")
	}
	var trade ledger.ClosedTrade
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		trade, err = closePositionTx(tx, positionID, req)
		return err
	})
	if err != nil {
		return ledger.ClosedTrade{}, err
	}
	return trade, nil
}

// closePositionTx is the transaction body of ClosePosition; it runs entirely
// inside the caller's tx so tests can exercise rollback of all three writes.
func closePositionTx(tx *gorm.DB, positionID int64, req ledger.CloseRequest) (ledger.ClosedTrade, error) {
	var pos positionModel
	if err := tx.Where("id = ?", positionID).First(&pos).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.ClosedTrade{}, ledger.ErrPositionNotFound
		}
		return ledger.ClosedTrade{}, err
	}

	terminal := ledger.PositionClosed
	if req.Liquidated {
		terminal = ledger.PositionLiquidated
	}
	now := time.Now()
	exit := ledger.RoundAmount(req.ExitPrice)

	// (a) terminal transition, guarded against a concurrent close.
	res := tx.Model(&positionModel{}).
		Where("id = ? AND status = ?", positionID, string(ledger.PositionOpen)).
		Updates(map[string]interface{}{
			"status":         string(terminal),
			"closed_at":      now,
			"current_price":  exit,
			"unrealized_pnl": decimal.Zero,
		})
	if res.Error != nil {
		return ledger.ClosedTrade{}, res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ClosedTrade{}, ledger.ErrPositionNotOpen
	}

	side := ledger.PositionSide(pos.Side)
	fees := ledger.RoundAmount(req.Fees)
	pnl := ledger.SignedPnL(side, pos.EntryPrice, exit, pos.Quantity, fees)
	pnlPct := ledger.PnLPercent(pnl, pos.EntryPrice, pos.Quantity, pos.Leverage)

	// (b) exactly one immutable trade record.
	tm := closedTradeModel{
		ID:              uuid.NewString(),
		AccountID:       pos.AccountID,
		GridID:          pos.GridID,
		Symbol:          pos.Symbol,
		Side:            pos.Side,
		EntryPrice:      pos.EntryPrice,
		ExitPrice:       exit,
		Quantity:        pos.Quantity,
		Leverage:        pos.Leverage,
		RealizedPnL:     pnl,
		PnLPercentage:   pnlPct,
		Fees:            fees,
		ExitReason:      strings.TrimSpace(req.Reason),
		OpenedAt:        pos.OpenedAt,
		ClosedAt:        now,
		DurationSeconds: int64(now.Sub(pos.OpenedAt).Seconds()),
	}
	if err := tx.Create(&tm).Error; err != nil {
		return ledger.ClosedTrade{}, err
	}

	// (c) settle the owner: release margin, credit PnL, move the counters.
	delta := ledger.AccountDelta{
		BalanceDelta:       pnl,
		MarginDelta:        pos.MarginUsed.Neg(),
		RealizedPnLDelta:   pnl,
		TradesDelta:        1,
		OpenPositionsDelta: -1,
	}
	switch pnl.Sign() {
	case 1:
		delta.WinsDelta = 1
	case -1:
		delta.LossesDelta = 1
	}
	if err := applyAccountDelta(tx, pos.AccountID, delta); err != nil {
		return ledger.ClosedTrade{}, err
	}

	return closedTradeModelToRecord(tm), nil
}

func (s *Store) GetPosition(ctx context.Context, positionID int64) (ledger.Position, error) {
	if s == nil || s.db == nil {
		return ledger.Position{}, fmt.Errorf("gorm store not initialized")
	}
	var m positionModel
	if err := s.db.WithContext(ctx).Where("id = ?", positionID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Position{}, ledger.ErrPositionNotFound
		}
		return ledger.Position{}, err
	}
	return positionModelToRecord(m), nil
}

func (s *Store) ListOpenPositions(ctx context.Context, accountID string) ([]ledger.Position, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	query := s.db.WithContext(ctx).Model(&positionModel{}).
		Where("status = ?", string(ledger.PositionOpen))
	if accountID = strings.TrimSpace(accountID); accountID != "" {
		query = query.Where("account_id = ?", accountID)
	}
	var models []positionModel
	if err := query.Order("opened_at DESC, id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]ledger.Position, 0, len(models))
	for _, m := range models {
		out = append(out, positionModelToRecord(m))
	}
	return out, nil
}

func newPositionModel(p ledger.Position) positionModel {
	return positionModel{
		ID:               p.ID,
		AccountID:        p.AccountID,
		GridID:           p.GridID,
		Symbol:           p.Symbol,
		Side:             string(p.Side),
		EntryPrice:       ledger.RoundAmount(p.EntryPrice),
		CurrentPrice:     ledger.RoundAmount(firstNonZero(p.CurrentPrice, p.EntryPrice)),
		Quantity:         ledger.RoundAmount(p.Quantity),
		Leverage:         p.Leverage,
		MarginUsed:       ledger.RoundAmount(p.Margin),
		UnrealizedPnL:    ledger.RoundAmount(p.UnrealizedPnL),
		LiquidationPrice: roundOptional(p.LiquidationPrice),
		StopLossPrice:    roundOptional(p.StopLossPrice),
		TakeProfitPrice:  roundOptional(p.TakeProfitPrice),
		Status:           string(p.Status),
		BrokerRef:        strings.TrimSpace(p.BrokerRef),
		OpenedAt:         p.OpenedAt,
		ClosedAt:         p.ClosedAt,
	}
}

func positionModelToRecord(m positionModel) ledger.Position {
	return ledger.Position{
		ID:               m.ID,
		AccountID:        m.AccountID,
		GridID:           m.GridID,
		Symbol:           m.Symbol,
		Side:             ledger.PositionSide(m.Side),
		EntryPrice:       m.EntryPrice,
		CurrentPrice:     m.CurrentPrice,
		Quantity:         m.Quantity,
		Leverage:         m.Leverage,
		Margin:           m.MarginUsed,
		UnrealizedPnL:    m.UnrealizedPnL,
		LiquidationPrice: m.LiquidationPrice,
		StopLossPrice:    m.StopLossPrice,
		TakeProfitPrice:  m.TakeProfitPrice,
		Status:           ledger.PositionStatus(m.Status),
		BrokerRef:        m.BrokerRef,
		OpenedAt:         m.OpenedAt,
		ClosedAt:         m.ClosedAt,
	}
}

func closedTradeModelToRecord(m closedTradeModel) ledger.ClosedTrade {
	return ledger.ClosedTrade{
		ID:              m.ID,
		AccountID:       m.AccountID,
		GridID:          m.GridID,
		Symbol:          m.Symbol,
		Side:            ledger.PositionSide(m.Side),
		EntryPrice:      m.EntryPrice,
		ExitPrice:       m.ExitPrice,
		Quantity:        m.Quantity,
		Leverage:        m.Leverage,
		RealizedPnL:     m.RealizedPnL,
		PnLPercentage:   m.PnLPercentage,
		Fees:            m.Fees,
		ExitReason:      m.ExitReason,
		OpenedAt:        m.OpenedAt,
		ClosedAt:        m.ClosedAt,
		DurationSeconds: m.DurationSeconds,
	}
}

func firstNonZero(v, fallback decimal.Decimal) decimal.Decimal {
	if v.IsZero() {
		return fallback
	}
	return v
}

func roundOptional(v *decimal.Decimal) *decimal.Decimal {
	if v == nil {
		return nil
	}
	r := ledger.RoundAmount(*v)
	return &r
}
