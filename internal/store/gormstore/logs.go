package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gridledger/internal/ledger"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AppendDecision logs one agent decision, executed or not. The raw model
// payload is schema-checked, then stored byte-faithfully.
func (s *Store) AppendDecision(ctx context.Context, dec ledger.Decision) (ledger.Decision, error) {
	if s == nil || s.db == nil {
		return ledger.Decision{}, fmt.Errorf("gorm store not initialized")
	}
	dec.AccountID = strings.TrimSpace(dec.AccountID)
	if err := ledger.ValidateDecision(&dec); err != nil {
		return ledger.Decision{}, err
	}
	if strings.TrimSpace(dec.TraceID) == "" {
		dec.TraceID = uuid.NewString()
	}
	if dec.CreatedAt.IsZero() {
		dec.CreatedAt = time.Now()
	}
	dec.Executed = false
	dec.ExecutedAt = nil
	m := newDecisionModel(dec)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isForeignKeyViolation(err) {
			return ledger.Decision{}, ledger.ErrAccountNotFound
		}
		return ledger.Decision{}, err
	}
	return decisionModelToRecord(m), nil
}

// MarkDecisionExecuted is the only mutation the decision log permits: it
// flips executed, stamps executed_at and records why execution was refused.
func (s *Store) MarkDecisionExecuted(ctx context.Context, decisionID int64, executed bool, rejectionReason string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	res := s.db.WithContext(ctx).Model(&decisionModel{}).
		Where("id = ?", decisionID).
		Updates(map[string]interface{}{
			"executed":         executed,
			"executed_at":      time.Now(),
			"rejection_reason": strings.TrimSpace(rejectionReason),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrDecisionNotFound
	}
	return nil
}

func (s *Store) ListDecisions(ctx context.Context, accountID string, limit int) ([]ledger.Decision, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := s.db.WithContext(ctx).Model(&decisionModel{})
	if accountID = strings.TrimSpace(accountID); accountID != "" {
		query = query.Where("account_id = ?", accountID)
	}
	var models []decisionModel
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]ledger.Decision, 0, len(models))
	for _, m := range models {
		out = append(out, decisionModelToRecord(m))
	}
	return out, nil
}

// InsertMarketSnapshot appends one price observation. A second row for the
// same (symbol, timestamp) returns ErrDuplicateSnapshot; callers treat it as
// already recorded.
func (s *Store) InsertMarketSnapshot(ctx context.Context, snap ledger.MarketSnapshot) (ledger.MarketSnapshot, error) {
	if s == nil || s.db == nil {
		return ledger.MarketSnapshot{}, fmt.Errorf("gorm store not initialized")
	}
	snap.Symbol = strings.ToUpper(strings.TrimSpace(snap.Symbol))
	if err := ledger.ValidateSnapshot(&snap); err != nil {
		return ledger.MarketSnapshot{}, err
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}
	m := newMarketDataModel(snap)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return ledger.MarketSnapshot{}, ledger.ErrDuplicateSnapshot
		}
		return ledger.MarketSnapshot{}, err
	}
	return marketDataModelToRecord(m), nil
}

func (s *Store) LatestSnapshot(ctx context.Context, symbol string) (ledger.MarketSnapshot, error) {
	if s == nil || s.db == nil {
		return ledger.MarketSnapshot{}, fmt.Errorf("gorm store not initialized")
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	var m marketDataModel
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("timestamp DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.MarketSnapshot{}, fmt.Errorf("no snapshots for %s", symbol)
		}
		return ledger.MarketSnapshot{}, err
	}
	return marketDataModelToRecord(m), nil
}

// ListSnapshots returns the observation window a decision engine reads,
// oldest first.
func (s *Store) ListSnapshots(ctx context.Context, symbol string, since time.Time, limit int) ([]ledger.MarketSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	query := s.db.WithContext(ctx).Model(&marketDataModel{}).Where("symbol = ?", symbol)
	if !since.IsZero() {
		query = query.Where("timestamp >= ?", since)
	}
	var models []marketDataModel
	if err := query.Order("timestamp ASC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]ledger.MarketSnapshot, 0, len(models))
	for _, m := range models {
		out = append(out, marketDataModelToRecord(m))
	}
	return out, nil
}

func newDecisionModel(d ledger.Decision) decisionModel {
	var symbol *string
	if d.Symbol != nil {
		sym := strings.ToUpper(strings.TrimSpace(*d.Symbol))
		symbol = &sym
	}
	var raw datatypes.JSON
	if len(d.RawResponse) > 0 {
		raw = datatypes.JSON(d.RawResponse)
	}
	return decisionModel{
		ID:              d.ID,
		TraceID:         d.TraceID,
		AccountID:       d.AccountID,
		Symbol:          symbol,
		Action:          string(d.Action),
		Reasoning:       d.Reasoning,
		Confidence:      ledger.RoundPercent(d.Confidence),
		MarketPrice:     ledger.RoundAmount(d.MarketPrice),
		AccountBalance:  ledger.RoundAmount(d.AccountBalance),
		Executed:        d.Executed,
		ExecutedAt:      d.ExecutedAt,
		RejectionReason: strings.TrimSpace(d.RejectionReason),
		LLMResponse:     raw,
		CreatedAt:       d.CreatedAt,
	}
}

func decisionModelToRecord(m decisionModel) ledger.Decision {
	return ledger.Decision{
		ID:              m.ID,
		TraceID:         m.TraceID,
		AccountID:       m.AccountID,
		Symbol:          m.Symbol,
		Action:          ledger.DecisionAction(m.Action),
		Reasoning:       m.Reasoning,
		Confidence:      m.Confidence,
		MarketPrice:     m.MarketPrice,
		AccountBalance:  m.AccountBalance,
		Executed:        m.Executed,
		ExecutedAt:      m.ExecutedAt,
		RejectionReason: m.RejectionReason,
		RawResponse:     []byte(m.LLMResponse),
		CreatedAt:       m.CreatedAt,
	}
}

func newMarketDataModel(s ledger.MarketSnapshot) marketDataModel {
	var meta datatypes.JSON
	if len(s.Metadata) > 0 {
		meta = datatypes.JSON(s.Metadata)
	}
	return marketDataModel{
		ID:        s.ID,
		Symbol:    s.Symbol,
		Timestamp: s.Timestamp.UTC(),
		Price:     ledger.RoundAmount(s.Price),
		Volume24h: ledger.RoundAmount(s.Volume24h),
		Metadata:  meta,
		CreatedAt: s.CreatedAt,
	}
}

func marketDataModelToRecord(m marketDataModel) ledger.MarketSnapshot {
	return ledger.MarketSnapshot{
		ID:        m.ID,
		Symbol:    m.Symbol,
		Price:     m.Price,
		Volume24h: m.Volume24h,
		Timestamp: m.Timestamp,
		Metadata:  []byte(m.Metadata),
		CreatedAt: m.CreatedAt,
	}
}
