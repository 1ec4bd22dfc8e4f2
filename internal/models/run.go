package models

import (
	"time"

	"gorm.io/gorm"
)

// Run status values.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// BacktestRun represents a single backtest execution in the database.
// It is created with status "running" before scanning begins and updated
// exactly once when the run completes or fails.
type BacktestRun struct {
	gorm.Model
	RunID     string `gorm:"uniqueIndex;not null"`
	Status    string `gorm:"not null"`
	StartDate string
	EndDate   string

	// Config snapshot, kept for forensics when a run crashes mid-flight.
	Symbols       string
	Budget        float64
	StopLoss      float64
	ProfitTarget  float64
	RSIOversold   float64
	RSIOverbought float64
	MinVIX        float64
	MaxHoldDays   int

	// Summary, populated on completion.
	TotalTrades  int
	Wins         int
	Losses       int
	WinRate      float64
	AvgROI       float64
	ProfitFactor float64
	NoLosses     bool
	MaxDrawdown  float64

	CompletedAt  *time.Time
	ErrorMessage string
}
