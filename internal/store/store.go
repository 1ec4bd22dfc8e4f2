package store

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"options-backtest-go/internal/config"
	"options-backtest-go/internal/models"
)

// RunStore persists backtest runs and their trades. The orchestrator writes
// each trade as it resolves, so a crash mid-run still leaves forensic state.
type RunStore interface {
	// CreateRun inserts a run record with status "running" and a snapshot
	// of the parameters it was started with.
	CreateRun(runID string, bt *config.Backtest) error
	// SaveTradeRecord persists one resolved trade for the run.
	SaveTradeRecord(record *models.TradeRecord) error
	// CompleteRun marks the run completed and writes its summary fields.
	CompleteRun(runID string, summary *models.BacktestRun) error
	// FailRun marks the run failed with an error message.
	FailRun(runID string, message string) error
}

// GormStore is a RunStore backed by a gorm database.
// It implements the RunStore interface.
type GormStore struct {
	db *gorm.DB
}

// ensure GormStore implements the interface
var _ RunStore = (*GormStore)(nil)

// NewGormStore creates a RunStore on top of an existing database handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// CreateRun implements RunStore.
func (s *GormStore) CreateRun(runID string, bt *config.Backtest) error {
	run := models.BacktestRun{
		RunID:         runID,
		Status:        models.RunStatusRunning,
		StartDate:     bt.StartDate,
		EndDate:       bt.EndDate,
		Symbols:       strings.Join(bt.Symbols, ","),
		Budget:        bt.Budget,
		StopLoss:      bt.StopLoss,
		ProfitTarget:  bt.ProfitTarget,
		RSIOversold:   bt.RSIOversold,
		RSIOverbought: bt.RSIOverbought,
		MinVIX:        bt.MinVIX,
		MaxHoldDays:   bt.MaxHoldDays,
	}
	if err := s.db.Create(&run).Error; err != nil {
		return fmt.Errorf("failed to create run record: %w", err)
	}
	return nil
}

// SaveTradeRecord implements RunStore.
func (s *GormStore) SaveTradeRecord(record *models.TradeRecord) error {
	if err := s.db.Create(record).Error; err != nil {
		return fmt.Errorf("failed to save trade record: %w", err)
	}
	return nil
}

// CompleteRun implements RunStore.
func (s *GormStore) CompleteRun(runID string, summary *models.BacktestRun) error {
	now := time.Now()
	updates := map[string]any{
		"status":        models.RunStatusCompleted,
		"total_trades":  summary.TotalTrades,
		"wins":          summary.Wins,
		"losses":        summary.Losses,
		"win_rate":      summary.WinRate,
		"avg_roi":       summary.AvgROI,
		"profit_factor": summary.ProfitFactor,
		"no_losses":     summary.NoLosses,
		"max_drawdown":  summary.MaxDrawdown,
		"completed_at":  &now,
	}
	return s.update(runID, updates)
}

// FailRun implements RunStore.
func (s *GormStore) FailRun(runID string, message string) error {
	now := time.Now()
	updates := map[string]any{
		"status":        models.RunStatusFailed,
		"error_message": message,
		"completed_at":  &now,
	}
	return s.update(runID, updates)
}

func (s *GormStore) update(runID string, updates map[string]any) error {
	res := s.db.Model(&models.BacktestRun{}).Where("run_id = ?", runID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update run %s: %w", runID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to update run %s: %w", runID, gorm.ErrRecordNotFound)
	}
	return nil
}
