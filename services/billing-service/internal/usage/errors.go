package usage

import (
	"errors"
	"fmt"

	billingtypes "github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/billingTypes"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNegativeConsumption needs an operator to correct the readings.
	ErrNegativeConsumption = errors.New("negative consumption")

	// ErrMissingReading means no reading pair brackets the billing period.
	ErrMissingReading = errors.New("meter readings missing for period")

	ErrDuplicateReading = errors.New("reading already recorded for this date")
	ErrInvalidReading   = errors.New("invalid meter reading")
	ErrUnsupportedUnit  = billingtypes.ErrUnsupportedUnit
)

type NegativeConsumptionError struct {
	MeterID uuid.UUID
	Start   decimal.Decimal
	End     decimal.Decimal
}

func (e *NegativeConsumptionError) Error() string {
	return fmt.Sprintf("negative consumption on meter %s: %s -> %s", e.MeterID, e.Start, e.End)
}

func (e *NegativeConsumptionError) Unwrap() error {
	return ErrNegativeConsumption
}
