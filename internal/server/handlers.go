package server

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"chartlab/internal/analysis/indicators"
	apperrors "chartlab/internal/errors"
	"chartlab/internal/models"
	"chartlab/internal/store"
)

type candlesRequest struct {
	Symbol string `param:"symbol" validate:"required,max=32"`
	From   int64  `query:"from" validate:"gte=0"`
	To     int64  `query:"to" validate:"gte=0"`
	Limit  int    `query:"limit" default:"500" validate:"gte=1,lte=20000"`
}

type indicatorRequest struct {
	Symbol string `param:"symbol" validate:"required,max=32"`
	Name   string `param:"name" validate:"required,max=32"`
	Period int    `query:"period" validate:"gte=0,lte=1000"`
	Limit  int    `query:"limit" default:"1000" validate:"gte=1,lte=20000"`
}

type analyzeRequest struct {
	Symbol            string          `json:"symbol" validate:"required,max=32"`
	Candles           []models.Candle `json:"candles"`
	Detectors         []string        `json:"detectors" validate:"max=32,dive,max=32"`
	IncludeIndicators bool            `json:"include_indicators"`
	Save              bool            `json:"save"`
	Limit             int             `json:"limit" default:"1000" validate:"gte=1,lte=20000"`
}

// IndicatorResponse is the payload of the indicator route.
type IndicatorResponse struct {
	Symbol    string                             `json:"symbol"`
	Indicator string                             `json:"indicator"`
	Points    []models.IndicatorPoint            `json:"points"`
	Series    map[string][]models.IndicatorPoint `json:"series,omitempty"`
}

func (s *Server) health(c echo.Context) error {
	return successResponse(c, map[string]string{"status": "ok"})
}

func (s *Server) symbols(c echo.Context) error {
	symbols, err := s.store.ListSymbols(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return successResponse(c, symbols)
}

func (s *Server) loadCandles(c echo.Context, symbol string, filter store.CandleFilter) ([]models.Candle, error) {
	candles, err := s.store.GetCandles(c.Request().Context(), symbol, filter)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, apperrors.ErrSymbolNotFound)
	}
	return candles, nil
}

func (s *Server) candles(c echo.Context) error {
	req := &candlesRequest{}
	if details := bindRequest(c, req); details != nil {
		return badRequestResponse(c, details)
	}
	candles, err := s.loadCandles(c, req.Symbol, store.CandleFilter{From: req.From, To: req.To, Limit: req.Limit})
	if err != nil {
		return errorResponse(c, err)
	}
	return successResponse(c, candles)
}

func (s *Server) indicator(c echo.Context) error {
	req := &indicatorRequest{}
	if details := bindRequest(c, req); details != nil {
		return badRequestResponse(c, details)
	}

	params := s.analyzer.Config().Params
	if req.Period > 0 {
		params = params.WithPeriod(req.Name, req.Period)
	}
	ind, err := params.Lookup(req.Name)
	if err != nil {
		return errorResponse(c, err)
	}

	candles, err := s.loadCandles(c, req.Symbol, store.CandleFilter{Limit: req.Limit})
	if err != nil {
		return errorResponse(c, err)
	}

	resp := IndicatorResponse{Symbol: req.Symbol, Indicator: ind.Name()}
	if resp.Points, err = ind.Calculate(candles); err != nil {
		return errorResponse(c, err)
	}
	if multi, ok := ind.(indicators.MultiValueIndicator); ok {
		if resp.Series, err = multi.CalculateMulti(candles); err != nil {
			return errorResponse(c, err)
		}
	}
	return successResponse(c, resp)
}

func (s *Server) latestReport(c echo.Context) error {
	symbol := c.Param("symbol")
	report, err := s.store.LatestReport(c.Request().Context(), symbol)
	if err != nil {
		return errorResponse(c, err)
	}
	return successResponse(c, report)
}

func (s *Server) analyze(c echo.Context) error {
	req := &analyzeRequest{}
	if details := bindRequest(c, req); details != nil {
		return badRequestResponse(c, details)
	}
	ctx := c.Request().Context()

	// Names are matched case-insensitively and repeats collapse.
	if _, err := s.analyzer.Detectors(req.Detectors...); err != nil {
		return errorResponse(c, err)
	}

	candles := req.Candles
	if len(candles) == 0 {
		var err error
		if candles, err = s.loadCandles(c, req.Symbol, store.CandleFilter{Limit: req.Limit}); err != nil {
			return errorResponse(c, err)
		}
	}
	if s.cfg.MaxCandles > 0 && len(candles) > s.cfg.MaxCandles {
		return badRequestResponse(c, []ErrorDetail{{
			Code:    "ERR_MAX",
			Field:   "Candles",
			Message: fmt.Sprintf("Candles must have at most %d items", s.cfg.MaxCandles),
		}})
	}

	report, err := s.analyzer.Analyze(ctx, req.Symbol, candles, req.Detectors...)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordRunFailure()
		}
		s.logger.Warn().Err(err).Str("symbol", req.Symbol).Msg("Analysis failed")
		return errorResponse(c, err)
	}
	if s.metrics != nil {
		s.metrics.RecordRun(req.Symbol, candles, report.Events)
	}

	if req.Save {
		if err := s.store.SaveReport(ctx, report); err != nil {
			return errorResponse(c, err)
		}
	}
	if !req.IncludeIndicators {
		report.Indicators = nil
	}
	return successResponse(c, report)
}
