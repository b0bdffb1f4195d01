// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"chartlab/internal/analysis"
	"chartlab/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Candles
	SaveCandles(ctx context.Context, symbol string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol string, filter CandleFilter) ([]models.Candle, error)
	GetCandlesFreshness(ctx context.Context, symbol string) (time.Time, error)
	ListSymbols(ctx context.Context) ([]SymbolInfo, error)
	DeleteSymbol(ctx context.Context, symbol string) error

	// Analysis runs
	SaveReport(ctx context.Context, report *analysis.Report) error
	LatestReport(ctx context.Context, symbol string) (*analysis.Report, error)
	ListRuns(ctx context.Context, symbol string, limit int) ([]RunSummary, error)

	// Lifecycle
	Close() error
}

// CandleFilter bounds a candle query. Zero From/To leave that side open;
// Limit keeps the most recent candles.
type CandleFilter struct {
	From  int64
	To    int64
	Limit int
}

// SymbolInfo summarizes the stored candles of one symbol.
type SymbolInfo struct {
	Symbol  string `json:"symbol" yaml:"symbol"`
	Candles int    `json:"candles" yaml:"candles"`
	First   int64  `json:"first" yaml:"first"`
	Last    int64  `json:"last" yaml:"last"`
}

// RunSummary is a stored analysis run without its payload.
type RunSummary struct {
	RunID       string    `json:"run_id" yaml:"run_id"`
	Symbol      string    `json:"symbol" yaml:"symbol"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	Candles     int       `json:"candles" yaml:"candles"`
	Events      int       `json:"events" yaml:"events"`
	Annotations int       `json:"annotations" yaml:"annotations"`
}
