package model

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownFeeTier        = errors.New("unknown fee tier")
	ErrVenueUnreachable      = errors.New("venue unreachable")
	ErrPoolNotFound          = errors.New("pool not found")
	ErrMalformedResponse     = errors.New("malformed venue response")
	ErrNoRouteFound          = errors.New("no route found")
	ErrApprovalFailed        = errors.New("approval failed")
	ErrPriceImpactExceeded   = errors.New("price impact too high")
	ErrNetworkMismatch       = errors.New("network mismatch")
	ErrUnsupportedChain      = errors.New("unsupported chain")
	ErrUnsupportedRouteShape = errors.New("unsupported route shape")
	ErrInvalidRequest        = errors.New("invalid trade request")
	ErrExecutionFailed       = errors.New("transaction execution failed")
	ErrInsufficientFunds     = errors.New("insufficient native balance")
)

// VenueError attaches the venue name to a quote failure.
type VenueError struct {
	Venue string
	Err   error
}

func (e *VenueError) Error() string {
	return fmt.Sprintf("%s: %v", e.Venue, e.Err)
}

func (e *VenueError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether a venue failure may succeed on retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrVenueUnreachable)
}
