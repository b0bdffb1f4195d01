package store

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	apperrors "chartlab/internal/errors"
	"chartlab/internal/models"
)

// DateLayout is the calendar-date form accepted in the time column.
const DateLayout = "2006-01-02"

// CSVRow is one line of a candle CSV file.
type CSVRow struct {
	Time   string  `csv:"time"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
}

// ParseTime accepts unix seconds or a YYYY-MM-DD date (midnight UTC).
func ParseTime(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ts, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return 0, apperrors.NewValidationError("time", s, "expected unix seconds or "+DateLayout)
	}
	return t.Unix(), nil
}

// ParseCSV reads candles from CSV with a time,open,high,low,close,volume
// header. Rows are sorted by time, later duplicates win, and the result is
// validated.
func ParseCSV(r io.Reader) ([]models.Candle, error) {
	var rows []*CSVRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}

	candles := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		ts, err := ParseTime(row.Time)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		candles = append(candles, models.Candle{
			Time:   ts,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		})
	}

	candles = models.SortCandles(candles)
	if err := models.ValidateSeries(candles); err != nil {
		return nil, err
	}
	return candles, nil
}

// ImportCSV parses r and stores the candles under symbol.
func ImportCSV(ctx context.Context, s DataStore, symbol string, r io.Reader) (int, error) {
	candles, err := ParseCSV(r)
	if err != nil {
		return 0, err
	}
	if err := s.SaveCandles(ctx, symbol, candles); err != nil {
		return 0, err
	}
	return len(candles), nil
}

// WriteCSV writes candles in the import format with unix-second times.
func WriteCSV(w io.Writer, candles []models.Candle) error {
	rows := make([]*CSVRow, 0, len(candles))
	for _, c := range candles {
		rows = append(rows, &CSVRow{
			Time:   strconv.FormatInt(c.Time, 10),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		})
	}
	return gocsv.Marshal(rows, w)
}
