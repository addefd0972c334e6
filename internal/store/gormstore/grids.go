package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gridledger/internal/ledger"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreateGrid validates the strategy parameters and inserts an ACTIVE grid
// under the caller-chosen id. A duplicate id returns ledger.ErrGridExists;
// a missing owner account returns ledger.ErrAccountNotFound.
func (s *Store) CreateGrid(ctx context.Context, grid ledger.Grid) (ledger.Grid, error) {
	if s == nil || s.db == nil {
		return ledger.Grid{}, fmt.Errorf("gorm store not initialized")
	}
	grid.ID = strings.TrimSpace(grid.ID)
	grid.AccountID = strings.TrimSpace(grid.AccountID)
	grid.Symbol = strings.ToUpper(strings.TrimSpace(grid.Symbol))
	if err := ledger.ValidateGrid(&grid); err != nil {
		return ledger.Grid{}, err
	}
	now := time.Now()
	grid.Status = ledger.GridStatusActive
	grid.CreatedAt = now
	grid.UpdatedAt = now
	grid.StoppedAt = nil
	m := newGridModel(grid)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		switch {
		case isUniqueViolation(err):
			return ledger.Grid{}, ledger.ErrGridExists
		case isForeignKeyViolation(err):
			return ledger.Grid{}, ledger.ErrAccountNotFound
		}
		return ledger.Grid{}, err
	}
	return gridModelToRecord(m), nil
}

// PauseGrid moves ACTIVE -> PAUSED. Pausing an already paused grid is a
// no-op; a stopped grid rejects with ErrGridStopped.
func (s *Store) PauseGrid(ctx context.Context, gridID string) error {
	return s.toggleGrid(ctx, gridID, ledger.GridStatusActive, ledger.GridStatusPaused)
}

// ResumeGrid moves PAUSED -> ACTIVE; the mirror of PauseGrid.
func (s *Store) ResumeGrid(ctx context.Context, gridID string) error {
	return s.toggleGrid(ctx, gridID, ledger.GridStatusPaused, ledger.GridStatusActive)
}

func (s *Store) toggleGrid(ctx context.Context, gridID string, from, to ledger.GridStatus) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	res := s.db.WithContext(ctx).Model(&gridModel{}).
		Where("grid_id = ? AND status = ?", gridID, string(from)).
		Updates(map[string]interface{}{
			"status":     string(to),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	grid, err := s.GetGrid(ctx, gridID)
	if err != nil {
		return err
	}
	if grid.Status == ledger.GridStatusStopped {
		return ledger.ErrGridStopped
	}
	// Already in the target state.
	return nil
}

// StopGrid terminates a grid, returning the status it held before the call
// so callers can tell a fresh stop from a reapplied one.
func (s *Store) StopGrid(ctx context.Context, gridID string) (ledger.GridStatus, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("gorm store not initialized")
	}
	var prior ledger.GridStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m gridModel
		if err := tx.Where("grid_id = ?", gridID).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ledger.ErrGridNotFound
			}
			return err
		}
		prior = ledger.GridStatus(m.Status)
		if prior == ledger.GridStatusStopped {
			return nil
		}
		now := time.Now()
		return tx.Model(&gridModel{}).
			Where("grid_id = ?", gridID).
			Updates(map[string]interface{}{
				"status":     string(ledger.GridStatusStopped),
				"stopped_at": now,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return "", err
	}
	return prior, nil
}

// UpdateGridPerformance lands trailing cycle/profit/fee increments and an
// optional grid_state replacement. Accepted in any status so fills already
// in flight when the grid stopped still count.
func (s *Store) UpdateGridPerformance(ctx context.Context, gridID string, delta ledger.GridPerformanceDelta) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if delta.State != nil {
		if err := ledger.ValidatePayload("grid_state", delta.State); err != nil {
			return err
		}
	}
	updates := map[string]interface{}{"updated_at": time.Now()}
	if delta.CyclesDelta != 0 {
		updates["total_cycles"] = gorm.Expr("total_cycles + ?", delta.CyclesDelta)
	}
	if !delta.ProfitDelta.IsZero() {
		updates["total_profit_usdt"] = addAmount("total_profit_usdt", delta.ProfitDelta)
	}
	if !delta.FeesDelta.IsZero() {
		updates["total_fees_usdt"] = addAmount("total_fees_usdt", delta.FeesDelta)
	}
	if delta.State != nil {
		updates["grid_state"] = datatypes.JSON(delta.State)
	}
	res := s.db.WithContext(ctx).Model(&gridModel{}).
		Where("grid_id = ?", gridID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrGridNotFound
	}
	return nil
}

func (s *Store) GetGrid(ctx context.Context, gridID string) (ledger.Grid, error) {
	if s == nil || s.db == nil {
		return ledger.Grid{}, fmt.Errorf("gorm store not initialized")
	}
	var m gridModel
	if err := s.db.WithContext(ctx).Where("grid_id = ?", gridID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.Grid{}, ledger.ErrGridNotFound
		}
		return ledger.Grid{}, err
	}
	return gridModelToRecord(m), nil
}

// ListGrids filters by owner and/or status; empty arguments match all.
func (s *Store) ListGrids(ctx context.Context, accountID string, status ledger.GridStatus) ([]ledger.Grid, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	query := s.db.WithContext(ctx).Model(&gridModel{})
	if accountID = strings.TrimSpace(accountID); accountID != "" {
		query = query.Where("account_id = ?", accountID)
	}
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	var models []gridModel
	if err := query.Order("created_at DESC, grid_id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]ledger.Grid, 0, len(models))
	for _, m := range models {
		out = append(out, gridModelToRecord(m))
	}
	return out, nil
}

// DeleteGrid removes the strategy row; positions, trades and orders keep
// their history with grid_id nulled by the schema.
func (s *Store) DeleteGrid(ctx context.Context, gridID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	res := s.db.WithContext(ctx).Where("grid_id = ?", gridID).Delete(&gridModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.ErrGridNotFound
	}
	return nil
}

func newGridModel(g ledger.Grid) gridModel {
	state := g.State
	if len(state) == 0 {
		state = []byte("{}")
	}
	return gridModel{
		GridID:          g.ID,
		AccountID:       g.AccountID,
		Symbol:          g.Symbol,
		UpperLimit:      ledger.RoundAmount(g.UpperLimit),
		LowerLimit:      ledger.RoundAmount(g.LowerLimit),
		GridLevels:      g.GridLevels,
		SpacingType:     string(g.Spacing),
		Leverage:        g.Leverage,
		InvestmentUSD:   ledger.RoundAmount(g.InvestmentUSD),
		StopLossPct:     ledger.RoundPercent(g.StopLossPct),
		Status:          string(g.Status),
		TotalCycles:     g.TotalCycles,
		TotalProfitUSDT: ledger.RoundAmount(g.TotalProfitUSDT),
		TotalFeesUSDT:   ledger.RoundAmount(g.TotalFeesUSDT),
		GridState:       datatypes.JSON(state),
		CreatedAt:       g.CreatedAt,
		UpdatedAt:       g.UpdatedAt,
		StoppedAt:       g.StoppedAt,
	}
}

func gridModelToRecord(m gridModel) ledger.Grid {
	return ledger.Grid{
		ID:              m.GridID,
		AccountID:       m.AccountID,
		Symbol:          m.Symbol,
		UpperLimit:      m.UpperLimit,
		LowerLimit:      m.LowerLimit,
		GridLevels:      m.GridLevels,
		Spacing:         ledger.SpacingType(m.SpacingType),
		Leverage:        m.Leverage,
		InvestmentUSD:   m.InvestmentUSD,
		StopLossPct:     m.StopLossPct,
		Status:          ledger.GridStatus(m.Status),
		TotalCycles:     m.TotalCycles,
		TotalProfitUSDT: m.TotalProfitUSDT,
		TotalFeesUSDT:   m.TotalFeesUSDT,
		State:           []byte(m.GridState),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		StoppedAt:       m.StoppedAt,
	}
}
