package billing

import (
	"errors"
	"fmt"
	"time"

	billingtypes "github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/billingTypes"
)

// ErrNoApplicableTariff aborts invoice generation: some part of the period has no tariff.
var ErrNoApplicableTariff = errors.New("no applicable tariff")

type NoApplicableTariffError struct {
	ServiceType billingtypes.ServiceType
	From        time.Time
	To          time.Time
}

func (e *NoApplicableTariffError) Error() string {
	return fmt.Sprintf("no %s tariff covers %s to %s",
		e.ServiceType, e.From.Format(time.RFC3339), e.To.Format(time.RFC3339))
}

func (e *NoApplicableTariffError) Unwrap() error {
	return ErrNoApplicableTariff
}
