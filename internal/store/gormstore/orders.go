package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gridledger/internal/ledger"

	"gorm.io/gorm"
)

// SubmitOrder records a broker order request as PENDING.
func (s *Store) SubmitOrder(ctx context.Context, order ledger.Order) (ledger.Order, error) {
	if s == nil || s.db == nil {
		return ledger.Order{}, fmt.Errorf("gorm store not initialized")
	}
	order.AccountID = strings.TrimSpace(order.AccountID)
	order.Symbol = strings.ToUpper(strings.TrimSpace(order.Symbol))
	if err := ledger.ValidateOrder(&order); err != nil {
		return ledger.Order{}, err
	}
	now := time.Now()
	order.Status = ledger.OrderPending
	order.CreatedAt = now
	order.UpdatedAt = now
	order.ResolvedAt = nil
	m := newOrderModel(order)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isForeignKeyViolation(err) {
			return ledger.Order{}, ledger.ErrAccountNotFound
		}
		return ledger.Order{}, err
	}
	return orderModelToRecord(m), nil
}

// ResolveOrder applies the single PENDING -> {FILLED, CANCELLED, REJECTED}
// transition. A second attempt returns ErrOrderResolved.
func (s *Store) ResolveOrder(ctx context.Context, orderID int64, status ledger.OrderStatus, fill ledger.OrderFill) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	switch status {
	case ledger.OrderFilled, ledger.OrderCancelled, ledger.OrderRejected:
	default:
		return fmt.Errorf("order resolution status %q invalid", status)
	}
	if status == ledger.OrderFilled && !fill.FilledQuantity.IsPositive() {
		return fmt.Errorf("filled order requires a positive fill quantity")
	}
	now := time.Now()
	updates := map[string]interface{}{
		"status":          string(status),
		"filled_quantity": ledger.RoundAmount(fill.FilledQuantity),
		"avg_fill_price":  ledger.RoundAmount(fill.AvgFillPrice),
		"broker_order_id": strings.TrimSpace(fill.BrokerOrderID),
		"error_message":   strings.TrimSpace(fill.ErrorMessage),
		"resolved_at":     now,
		"updated_at":      now,
	}
	res := s.db.WithContext(ctx).Model(&orderModel{}).
		Where("id = ? AND status = ?", orderID, string(ledger.OrderPending)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var m orderModel
		if err := s.db.WithContext(ctx).Where("id = ?", orderID).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ledger.ErrOrderNotFound
			}
			return err
		}
		return ledger.ErrOrderResolved
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID int64) (ledger.Order, error) {
	if s == nil || s.db == nil {
		return ledger.Order{}, fmt.Errorf("gorm store not initialized")
	}
	var m orderModel
	if err := s.db.WithContext(ctx).Where("id = ?", orderID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Order{}, ledger.ErrOrderNotFound
		}
		return ledger.Order{}, err
	}
	return orderModelToRecord(m), nil
}

// ListOrders filters by owner and/or status; empty arguments match all.
func (s *Store) ListOrders(ctx context.Context, accountID string, status ledger.OrderStatus) ([]ledger.Order, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	query := s.db.WithContext(ctx).Model(&orderModel{})
	if accountID = strings.TrimSpace(accountID); accountID != "" {
		query = query.Where("account_id = ?", accountID)
	}
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	var models []orderModel
	if err := query.Order("created_at DESC, id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]ledger.Order, 0, len(models))
	for _, m := range models {
		out = append(out, orderModelToRecord(m))
	}
	return out, nil
}

// ListClosedTrades reads the audit trail, newest close first.
func (s *Store) ListClosedTrades(ctx context.Context, accountID string, limit int) ([]ledger.ClosedTrade, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := s.db.WithContext(ctx).Model(&closedTradeModel{})
	if accountID = strings.TrimSpace(accountID); accountID != "" {
		query = query.Where("account_id = ?", accountID)
	}
	var models []closedTradeModel
	if err := query.Order("closed_at DESC, id DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]ledger.ClosedTrade, 0, len(models))
	for _, m := range models {
		out = append(out, closedTradeModelToRecord(m))
	}
	return out, nil
}

func newOrderModel(o ledger.Order) orderModel {
	return orderModel{
		ID:             o.ID,
		AccountID:      o.AccountID,
		GridID:         o.GridID,
		PositionID:     o.PositionID,
		Symbol:         o.Symbol,
		Side:           string(o.Side),
		OrderType:      string(o.Type),
		Quantity:       ledger.RoundAmount(o.Quantity),
		Price:          roundOptional(o.Price),
		Status:         string(o.Status),
		FilledQuantity: ledger.RoundAmount(o.FilledQuantity),
		AvgFillPrice:   ledger.RoundAmount(o.AvgFillPrice),
		BrokerOrderID:  strings.TrimSpace(o.BrokerOrderID),
		ErrorMessage:   strings.TrimSpace(o.ErrorMessage),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
		ResolvedAt:     o.ResolvedAt,
	}
}

func orderModelToRecord(m orderModel) ledger.Order {
	return ledger.Order{
		ID:             m.ID,
		AccountID:      m.AccountID,
		GridID:         m.GridID,
		PositionID:     m.PositionID,
		Symbol:         m.Symbol,
		Side:           ledger.OrderSide(m.Side),
		Type:           ledger.OrderType(m.OrderType),
		Quantity:       m.Quantity,
		Price:          m.Price,
		Status:         ledger.OrderStatus(m.Status),
		FilledQuantity: m.FilledQuantity,
		AvgFillPrice:   m.AvgFillPrice,
		BrokerOrderID:  m.BrokerOrderID,
		ErrorMessage:   m.ErrorMessage,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		ResolvedAt:     m.ResolvedAt,
	}
}
