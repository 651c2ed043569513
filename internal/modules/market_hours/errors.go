package market_hours

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a malformed market configuration.
	ErrValidation = errors.New("invalid market configuration")
	// ErrDataUnavailable is returned when an announced-date source has nothing usable for a year.
	ErrDataUnavailable = errors.New("announced dates unavailable")
	// ErrInconsistent means a date is still missing right after its year was materialized.
	ErrInconsistent = errors.New("calendar inconsistent after materialization")
	// ErrNotFound is returned by stores and cache reads that never compute.
	ErrNotFound = errors.New("day not found")
	// ErrUnknownMarket is returned when a market code or alias is not configured.
	ErrUnknownMarket = errors.New("unknown market")
)

// ValidationError describes the first problem found in a MarketConfig
type ValidationError struct {
	Market string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Market == "" {
		return fmt.Sprintf("invalid market configuration: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid market configuration %s: %s: %s", e.Market, e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any *ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// MarketError ties a failure to the market it happened in
type MarketError struct {
	Market string
	Err    error
}

func (e *MarketError) Error() string {
	return e.Market + ": " + e.Err.Error()
}

func (e *MarketError) Unwrap() error {
	return e.Err
}

// FailedMarkets returns the codes of the MarketErrors in err, including the ones
// joined with errors.Join, in the order they were reported
func FailedMarkets(err error) []string {
	if err == nil {
		return nil
	}
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}

	var codes []string
	for _, e := range errs {
		var mErr *MarketError
		if errors.As(e, &mErr) {
			codes = append(codes, mErr.Market)
		}
	}
	return codes
}
