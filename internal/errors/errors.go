// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInsufficientData = errors.New("insufficient data for calculation")
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrInvalidSeries    = errors.New("invalid candle series")
	ErrUnknownIndicator = errors.New("unknown indicator")
	ErrUnknownDetector  = errors.New("unknown detector")
	ErrTooManyDetectors = errors.New("too many detectors enabled")
	ErrSymbolNotFound   = errors.New("symbol not found")
	ErrDataNotFound     = errors.New("data not found")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrDatabaseError    = errors.New("database error")
	ErrInputValidation  = errors.New("input validation failed")
)

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets callers match validation failures with errors.Is(err, ErrInvalidSeries).
func (e *ValidationError) Unwrap() error {
	return ErrInvalidSeries
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// DataError represents a data-related error.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// DetectorError represents a failure inside a single detector run.
type DetectorError struct {
	Detector string
	Err      error
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("detector error [%s]: %v", e.Detector, e.Err)
}

func (e *DetectorError) Unwrap() error {
	return e.Err
}

// NewDetectorError creates a new DetectorError.
func NewDetectorError(detector string, err error) *DetectorError {
	return &DetectorError{
		Detector: detector,
		Err:      err,
	}
}

// IsNoSignal reports whether err only means the input was too short.
func IsNoSignal(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

// Is wraps errors.Is so callers need only one errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
