// services/billing-service/internal/usage/calculator.go
package usage

import (
	"fmt"
	"sort"
	"time"

	billingtypes "github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/billingTypes"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/property"
	"github.com/shopspring/decimal"
)

// Consumption is the metered quantity between two readings, in the
// service's billing unit.
type Consumption struct {
	Quantity decimal.Decimal
	Unit     billingtypes.Unit
	Start    MeterReading
	End      MeterReading
	Rollover bool // the counter wrapped between the two readings
}

// Calculate returns end - start for meter, converted to the billing unit.
//
// A decreasing counter is treated as a wrap when the meter declares a
// rollover modulus (modulus - start + end) and rejected otherwise.
// Zero consumption is valid.
func Calculate(meter property.Meter, start, end MeterReading) (Consumption, error) {
	if end.ReadingDate.Before(start.ReadingDate) {
		return Consumption{}, fmt.Errorf("%w: end reading precedes start reading", ErrInvalidReading)
	}
	if start.Value.IsNegative() || end.Value.IsNegative() {
		return Consumption{}, fmt.Errorf("%w: counter values must not be negative", ErrInvalidReading)
	}

	delta := end.Value.Sub(start.Value)
	rollover := false
	if delta.IsNegative() {
		mod := meter.RolloverModulus
		if mod == nil || !start.Value.LessThan(*mod) {
			return Consumption{}, &NegativeConsumptionError{MeterID: meter.ID, Start: start.Value, End: end.Value}
		}
		delta = mod.Sub(start.Value).Add(end.Value)
		rollover = true
	}

	unit := meter.ServiceType.BillingUnit()
	qty, err := billingtypes.Convert(delta, meter.Unit, unit)
	if err != nil {
		return Consumption{}, err
	}
	return Consumption{Quantity: qty, Unit: unit, Start: start, End: end, Rollover: rollover}, nil
}

// SelectBoundaryReadings picks the pair of readings that brackets [periodStart, periodEnd].
//
// The start reading is the most recent one on or before periodStart, or the
// earliest one inside the period when none precedes it. The end reading is the
// most recent one on or before periodEnd. Two distinct readings are required.
func SelectBoundaryReadings(readings []MeterReading, periodStart, periodEnd time.Time) (MeterReading, MeterReading, error) {
	sorted := make([]MeterReading, len(readings))
	copy(sorted, readings)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ReadingDate.Before(sorted[j].ReadingDate) })

	startIdx, endIdx := -1, -1
	for i, r := range sorted {
		if !r.ReadingDate.After(periodStart) {
			startIdx = i
		}
		if !r.ReadingDate.After(periodEnd) {
			endIdx = i
		}
	}
	if startIdx == -1 {
		for i, r := range sorted {
			if r.ReadingDate.After(periodStart) && !r.ReadingDate.After(periodEnd) {
				startIdx = i
				break
			}
		}
	}
	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return MeterReading{}, MeterReading{}, ErrMissingReading
	}
	return sorted[startIdx], sorted[endIdx], nil
}
