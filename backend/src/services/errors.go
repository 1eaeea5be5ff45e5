package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/username/esopfolio/backend/src/models"
	"github.com/username/esopfolio/backend/src/parsers"
	"github.com/username/esopfolio/backend/src/processors"
)

var (
	ErrValidationFailed = errors.New("validation failed")
	ErrParsingFailed    = errors.New("failed to parse upload")
	ErrNoRecords        = errors.New("no grant records stored")
	ErrMixedRegions     = processors.ErrMixedRegions
	ErrUnknownFormat    = parsers.ErrUnknownFormat
)

// ValidationError carries every problem found in a rejected batch.
type ValidationError struct {
	Result models.ValidationResult
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: %d error(s)", ErrValidationFailed, len(e.Result.Errors))
	if len(e.Result.Errors) > 0 {
		msg += ": " + strings.Join(e.Result.Errors, "; ")
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// PriceResolutionError reports a ticker whose live price could not be found.
// It never fails a batch; the affected rows carry it as their error.
type PriceResolutionError struct {
	Ticker string
	Err    error
}

func (e *PriceResolutionError) Error() string {
	return fmt.Sprintf("price lookup failed for %s: %v", e.Ticker, e.Err)
}

func (e *PriceResolutionError) Unwrap() error {
	return e.Err
}
