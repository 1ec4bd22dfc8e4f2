package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"options-backtest-go/internal/config"
	"options-backtest-go/internal/models"
)

// setupTest creates an isolated in-memory database with the schema migrated.
func setupTest(t *testing.T) *GormStore {
	// Use a new, non-shared in-memory database for each test to ensure isolation.
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)

	err = db.AutoMigrate(&models.BacktestRun{}, &models.TradeRecord{})
	assert.NoError(t, err)

	return NewGormStore(db)
}

func testBacktestConfig() *config.Backtest {
	return &config.Backtest{
		StartDate:     "2023-01-02",
		EndDate:       "2023-06-30",
		Symbols:       []string{"AAPL", "MSFT"},
		Budget:        500,
		StopLoss:      0.45,
		ProfitTarget:  1.0,
		RSIOversold:   30,
		RSIOverbought: 70,
		MinVIX:        15,
		MaxHoldDays:   10,
	}
}

func TestCreateRun(t *testing.T) {
	// Arrange
	s := setupTest(t)

	// Act
	err := s.CreateRun("run-1", testBacktestConfig())

	// Assert
	assert.NoError(t, err)

	var run models.BacktestRun
	assert.NoError(t, s.db.First(&run, "run_id = ?", "run-1").Error)
	assert.Equal(t, models.RunStatusRunning, run.Status)
	assert.Equal(t, "AAPL,MSFT", run.Symbols)
	assert.Equal(t, 500.0, run.Budget)
	assert.Nil(t, run.CompletedAt)
}

func TestCreateRun_DuplicateID(t *testing.T) {
	// Arrange
	s := setupTest(t)
	assert.NoError(t, s.CreateRun("run-1", testBacktestConfig()))

	// Act
	err := s.CreateRun("run-1", testBacktestConfig())

	// Assert
	assert.Error(t, err)
}

func TestSaveTradeRecord(t *testing.T) {
	// Arrange
	s := setupTest(t)
	assert.NoError(t, s.CreateRun("run-1", testBacktestConfig()))

	record := &models.TradeRecord{
		RunID:        "run-1",
		Ticker:       "AAPL",
		OptionType:   "call",
		EntryDate:    "2023-02-01",
		Strike:       102,
		EntryPremium: 2.0,
		Contracts:    5,
		ExitDate:     "2023-02-03",
		ExitPremium:  4.5,
		ExitReason:   "target",
		PnL:          1250,
		ROI:          1.25,
	}

	// Act
	err := s.SaveTradeRecord(record)

	// Assert
	assert.NoError(t, err)

	var count int64
	s.db.Model(&models.TradeRecord{}).Where("run_id = ?", "run-1").Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestCompleteRun(t *testing.T) {
	// Arrange
	s := setupTest(t)
	assert.NoError(t, s.CreateRun("run-1", testBacktestConfig()))

	summary := &models.BacktestRun{
		TotalTrades:  4,
		Wins:         2,
		Losses:       2,
		WinRate:      50,
		AvgROI:       12.5,
		ProfitFactor: 4.0,
		MaxDrawdown:  -30,
	}

	// Act
	err := s.CompleteRun("run-1", summary)

	// Assert
	assert.NoError(t, err)

	var run models.BacktestRun
	assert.NoError(t, s.db.First(&run, "run_id = ?", "run-1").Error)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 4, run.TotalTrades)
	assert.Equal(t, 50.0, run.WinRate)
	assert.Equal(t, 4.0, run.ProfitFactor)
	assert.NotNil(t, run.CompletedAt)
}

func TestFailRun(t *testing.T) {
	// Arrange
	s := setupTest(t)
	assert.NoError(t, s.CreateRun("run-1", testBacktestConfig()))

	// Act
	err := s.FailRun("run-1", "aggregation exploded")

	// Assert
	assert.NoError(t, err)

	var run models.BacktestRun
	assert.NoError(t, s.db.First(&run, "run_id = ?", "run-1").Error)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, "aggregation exploded", run.ErrorMessage)
	assert.NotNil(t, run.CompletedAt)
}

func TestUpdate_MissingRun(t *testing.T) {
	// Arrange
	s := setupTest(t)

	// Act
	err := s.FailRun("no-such-run", "whatever")

	// Assert
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
