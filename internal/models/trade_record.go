package models

import "gorm.io/gorm"

// TradeRecord represents one simulated option trade, persisted as soon as
// its simulation resolves so a crashed run still leaves partial results.
type TradeRecord struct {
	gorm.Model
	RunID      string `gorm:"index;not null"`
	Ticker     string `gorm:"not null"`
	OptionType string `gorm:"not null"` // "call" or "put"

	EntryDate    string
	Strike       float64
	Expiry       string
	EntryPremium float64
	Contracts    int
	RSI          float64
	VIX          float64
	StockPrice   float64
	IV           float64

	ExitDate    string
	ExitPremium float64
	ExitReason  string // "target", "stop" or "expiry"
	PnL         float64
	ROI         float64
	MaxDrawdown float64
}
