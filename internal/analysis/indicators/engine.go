// Package indicators provides technical indicator calculations with parallel processing.
package indicators

import (
	"context"
	"fmt"
	"sort"
	"sync"

	apperrors "chartlab/internal/errors"
	"chartlab/internal/models"
)

// Indicator defines the interface for single-series technical indicators.
type Indicator interface {
	Name() string
	Calculate(candles []models.Candle) ([]models.IndicatorPoint, error)
	Period() int
}

// MultiValueIndicator is implemented by indicators that also expose their
// auxiliary series (MACD signal, Bollinger middle/lower).
type MultiValueIndicator interface {
	Indicator
	CalculateMulti(candles []models.Candle) (map[string][]models.IndicatorPoint, error)
}

// IndicatorResult holds the result of an indicator calculation.
type IndicatorResult struct {
	Name   string
	Points []models.IndicatorPoint
	Error  error
}

// Engine provides parallel indicator calculation using a worker pool.
type Engine struct {
	workers    int
	indicators map[string]Indicator
	mu         sync.RWMutex
}

// NewEngine creates a new indicator engine with the specified number of workers.
func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		workers:    workers,
		indicators: make(map[string]Indicator),
	}
}

// RegisterIndicator registers an indicator under its Name().
func (e *Engine) RegisterIndicator(ind Indicator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.indicators[ind.Name()] = ind
}

// Register builds each named indicator with params and registers it.
func (e *Engine) Register(params Params, names ...string) error {
	for _, name := range names {
		ind, err := params.Lookup(name)
		if err != nil {
			return err
		}
		e.RegisterIndicator(ind)
	}
	return nil
}

// CalculateAll calculates all registered indicators in parallel. Indicators
// that fail are omitted from the result; a cancelled context returns its error.
func (e *Engine) CalculateAll(ctx context.Context, candles []models.Candle) (map[string][]models.IndicatorPoint, error) {
	e.mu.RLock()
	indicators := make([]Indicator, 0, len(e.indicators))
	for _, ind := range e.indicators {
		indicators = append(indicators, ind)
	}
	e.mu.RUnlock()

	return e.run(ctx, candles, indicators)
}

// CalculateSelected calculates only the specified indicators in parallel.
// Unknown names are ignored.
func (e *Engine) CalculateSelected(ctx context.Context, candles []models.Candle, names []string) (map[string][]models.IndicatorPoint, error) {
	e.mu.RLock()
	indicators := make([]Indicator, 0, len(names))
	for _, name := range names {
		if ind, ok := e.indicators[name]; ok {
			indicators = append(indicators, ind)
		}
	}
	e.mu.RUnlock()

	return e.run(ctx, candles, indicators)
}

// Calculate calculates a specific indicator by name.
func (e *Engine) Calculate(ctx context.Context, name string, candles []models.Candle) ([]models.IndicatorPoint, error) {
	e.mu.RLock()
	ind, ok := e.indicators[name]
	e.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("indicator %s: %w", name, apperrors.ErrUnknownIndicator)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return ind.Calculate(candles)
	}
}

// CalculateMulti calculates every series of a multi-value indicator by name.
func (e *Engine) CalculateMulti(ctx context.Context, name string, candles []models.Candle) (map[string][]models.IndicatorPoint, error) {
	e.mu.RLock()
	ind, ok := e.indicators[name]
	e.mu.RUnlock()

	multi, isMulti := ind.(MultiValueIndicator)
	if !ok || !isMulti {
		return nil, fmt.Errorf("multi-value indicator %s: %w", name, apperrors.ErrUnknownIndicator)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return multi.CalculateMulti(candles)
	}
}

// ListIndicators returns the sorted names of all registered indicators.
func (e *Engine) ListIndicators() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.indicators))
	for name := range e.indicators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) run(ctx context.Context, candles []models.Candle, indicators []Indicator) (map[string][]models.IndicatorPoint, error) {
	results := make(map[string][]models.IndicatorPoint, len(indicators))
	var mu sync.Mutex
	var wg sync.WaitGroup

	work := make(chan Indicator, len(indicators))
	for _, ind := range indicators {
		work <- ind
	}
	close(work)

	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ind := range work {
				select {
				case <-ctx.Done():
					return
				default:
				}
				values, err := ind.Calculate(candles)
				if err != nil {
					continue
				}
				mu.Lock()
				results[ind.Name()] = values
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
