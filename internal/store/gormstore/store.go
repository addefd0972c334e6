package gormstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gridledger/internal/ledger"
	storemodel "gridledger/internal/store/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type accountModel = storemodel.LLMAccountModel
type gridModel = storemodel.GridModel
type positionModel = storemodel.PositionModel
type closedTradeModel = storemodel.ClosedTradeModel
type decisionModel = storemodel.LLMDecisionModel
type marketDataModel = storemodel.MarketDataModel
type orderModel = storemodel.OrderModel

// Store implements ledger.Store on Gorm + SQLite. Foreign keys are enforced
// (account cascade, grid SET NULL) and the two reporting views are installed
// at open time.
type Store struct {
	db *gorm.DB
}

var _ ledger.Store = (*Store)(nil)

// Open initializes the ledger database at path, migrating tables and views.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: database path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	// _txlock=immediate makes every transaction take the write lock up front,
	// so two concurrent close attempts serialize and the loser re-reads the
	// committed terminal state instead of failing on a snapshot upgrade.
	dsn := fmt.Sprintf("file:%s?_fk=1&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	models := []interface{}{
		&accountModel{},
		&gridModel{},
		&positionModel{},
		&closedTradeModel{},
		&decisionModel{},
		&marketDataModel{},
		&orderModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	if err := createViews(db); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little read parallelism while keeping writer contention
	// low. Writes serialize behind busy_timeout.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SQLDB exposes the underlying *sql.DB for shared connections.
func (s *Store) SQLDB() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	return s.db.DB()
}

func createViews(db *gorm.DB) error {
	stmts := []string{
		`DROP VIEW IF EXISTS grid_performance_summary`,
		`CREATE VIEW grid_performance_summary AS
		 SELECT g.grid_id, g.account_id, a.model_name, g.symbol, g.status,
		        g.grid_levels, g.leverage, g.investment_usd,
		        g.total_cycles, g.total_profit_usdt, g.total_fees_usdt,
		        CASE WHEN CAST(g.investment_usd AS REAL) = 0 THEN 0
		             ELSE CAST(g.total_profit_usdt AS REAL) / CAST(g.investment_usd AS REAL) * 100
		        END AS roi_percentage,
		        g.created_at, g.stopped_at
		 FROM grids g
		 JOIN llm_accounts a ON a.id = g.account_id
		 ORDER BY g.created_at DESC`,
		`DROP VIEW IF EXISTS llm_leaderboard`,
		`CREATE VIEW llm_leaderboard AS
		 SELECT a.id AS account_id, a.provider, a.model_name,
		        a.current_balance, a.total_pnl,
		        CASE WHEN CAST(a.initial_balance AS REAL) = 0 THEN 0
		             ELSE CAST(a.total_pnl AS REAL) / CAST(a.initial_balance AS REAL) * 100
		        END AS roi_percentage,
		        CASE WHEN a.total_trades = 0 THEN 0
		             ELSE CAST(a.winning_trades AS REAL) / a.total_trades * 100
		        END AS win_rate,
		        a.total_trades, a.open_positions
		 FROM llm_accounts a
		 WHERE a.is_active = 1
		 ORDER BY CAST(a.current_balance AS REAL) DESC, CAST(a.total_pnl AS REAL) DESC`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("creating views failed: %w", err)
		}
	}
	return nil
}

// isUniqueViolation matches SQLite unique-index failures regardless of the
// driver error type.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isForeignKeyViolation matches SQLite FK failures (missing parent row).
func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
