package pricing

import "errors"

var (
	// ErrInvalidBillingPeriod is returned for zero-length or inverted periods.
	ErrInvalidBillingPeriod = errors.New("invalid billing period")

	ErrNegativeQuantity = errors.New("quantity must not be negative")
)
