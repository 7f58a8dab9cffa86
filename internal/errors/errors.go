// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Standard sentinel errors
var (
	// ErrDataUnavailable means there is no calendar or no contract data at
	// all for the symbol and range. Run-fatal.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrExpiryNotFound means a DTE offset reaches past the available
	// calendar history.
	ErrExpiryNotFound = errors.New("expiry not found")
	// ErrStrikeNotResolvable means no candidate strike has data for the
	// target date, expiry and side.
	ErrStrikeNotResolvable = errors.New("strike not resolvable")
	// ErrPremiumMiss means neither the exact nor the tolerance lookup matched.
	ErrPremiumMiss = errors.New("premium miss")
	// ErrInvalidLegDefinition means a strategy failed validation.
	ErrInvalidLegDefinition = errors.New("invalid leg definition")

	ErrConfigInvalid = errors.New("invalid configuration")
	ErrDataNotFound  = errors.New("data not found")
	ErrDatabaseError = errors.New("database error")
	ErrBadDateFormat = errors.New("unrecognised date format")
)

// Kinds used for skip accounting.
const (
	KindDataUnavailable     = "data_unavailable"
	KindExpiryNotFound      = "expiry_not_found"
	KindStrikeNotResolvable = "strike_not_resolvable"
	KindPremiumMiss         = "premium_miss"
	KindInvalidLeg          = "invalid_leg_definition"
	KindCancelled           = "cancelled"
	KindInternal            = "internal"
)

// Kind classifies an error into one of the taxonomy kinds.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDataUnavailable):
		return KindDataUnavailable
	case errors.Is(err, ErrExpiryNotFound):
		return KindExpiryNotFound
	case errors.Is(err, ErrStrikeNotResolvable):
		return KindStrikeNotResolvable
	case errors.Is(err, ErrPremiumMiss):
		return KindPremiumMiss
	case errors.Is(err, ErrInvalidLegDefinition):
		return KindInvalidLeg
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	default:
		return KindInternal
	}
}

// ValidationError represents a validation error in a strategy definition.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidLegDefinition
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

// CycleError describes a failure local to one leg of one expiry cycle.
type CycleError struct {
	Expiry time.Time
	Leg    int
	Stage  string
	Err    error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle %s leg %d %s: %v", e.Expiry.Format("2006-01-02"), e.Leg, e.Stage, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}

// NewCycleError creates a new CycleError.
func NewCycleError(expiry time.Time, leg int, stage string, err error) *CycleError {
	return &CycleError{
		Expiry: expiry,
		Leg:    leg,
		Stage:  stage,
		Err:    err,
	}
}

// FormatError is returned when a data source matches none of the accepted
// date layouts.
type FormatError struct {
	Source  string
	Sample  string
	Layouts []string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: date %q matches none of %v", e.Source, e.Sample, e.Layouts)
}

func (e *FormatError) Unwrap() error {
	return ErrBadDateFormat
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
