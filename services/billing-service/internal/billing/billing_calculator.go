// services/billing-service/internal/billing/billing_calculator.go
package billing

import (
	"context"
	"fmt"
	"sort"
	"time"

	billingtypes "github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/billingTypes"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/pricing"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/property"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tariff"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tenancy"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/usage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// quantityPlaces is the precision consumption is apportioned at across tariff slices.
	quantityPlaces  = 4
	unitPricePlaces = 4
)

// Line is one priced invoice line: one meter under one tariff for part of the period.
// Total is authoritative; UnitPrice is derived from it for display.
type Line struct {
	MeterID     uuid.UUID
	TariffID    uuid.UUID
	ServiceType billingtypes.ServiceType
	Description string
	Quantity    decimal.Decimal
	Unit        billingtypes.Unit
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
	Currency    string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// ReadingSource is the slice of the reading store the calculator needs.
type ReadingSource interface {
	ListReadingsForPeriod(ctx context.Context, scope tenancy.Scope, meterID uuid.UUID, from, to time.Time) ([]usage.MeterReading, error)
}

// TariffSource is the slice of the tariff store the calculator needs.
type TariffSource interface {
	ListTariffsOverlapping(ctx context.Context, service billingtypes.ServiceType, from, to time.Time) ([]tariff.Tariff, error)
}

// Calculator turns a meter's readings for a period into priced lines.
// It never writes; persistence is the caller's job.
type Calculator struct {
	readings ReadingSource
	tariffs  TariffSource
}

func NewCalculator(readings ReadingSource, tariffs TariffSource) *Calculator {
	return &Calculator{readings: readings, tariffs: tariffs}
}

// MeterLines prices the consumption of meter over [start, end).
//
// 1. pick the bracketing readings and compute consumption
// 2. cut the period at tariff validity boundaries
// 3. apportion consumption to each slice by elapsed time
// 4. price each slice with its tariff
func (c *Calculator) MeterLines(ctx context.Context, scope tenancy.Scope, meter property.Meter, start, end time.Time) ([]Line, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("%w: %s is not after %s", pricing.ErrInvalidBillingPeriod, end, start)
	}

	readings, err := c.readings.ListReadingsForPeriod(ctx, scope, meter.ID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch readings for meter %s: %w", meter.ID, err)
	}
	first, last, err := usage.SelectBoundaryReadings(readings, start, end)
	if err != nil {
		return nil, fmt.Errorf("meter %s: %w", meter.SerialNumber, err)
	}
	consumption, err := usage.Calculate(meter, first, last)
	if err != nil {
		return nil, fmt.Errorf("meter %s: %w", meter.SerialNumber, err)
	}

	tariffs, err := c.tariffs.ListTariffsOverlapping(ctx, meter.ServiceType, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tariffs for %s: %w", meter.ServiceType, err)
	}
	slices, err := PlanSlices(meter.ServiceType, tariffs, start, end)
	if err != nil {
		return nil, err
	}

	// items store quantities with quantityPlaces; price exactly what is stored
	measured := consumption.Quantity.Round(quantityPlaces)
	total := decimal.NewFromInt(int64(end.Sub(start)))
	remaining := measured
	lines := make([]Line, 0, len(slices))
	for i, s := range slices {
		share := decimal.NewFromInt(int64(s.End.Sub(s.Start)))

		qty := remaining
		if i < len(slices)-1 {
			// truncate so the last slice's remainder never goes negative
			qty = measured.Mul(share).Div(total).Truncate(quantityPlaces)
			remaining = remaining.Sub(qty)
		}

		cfg := s.Tariff.Configuration
		if len(slices) > 1 && !cfg.Fee().IsZero() {
			// fixed fees are periodic; a tariff only charges its share of the period
			cfg = tariff.WithFixedFee(cfg, cfg.Fee().Mul(share).Div(total))
		}

		charge, err := pricing.Resolve(cfg, qty, s.Start, s.End)
		if err != nil {
			return nil, fmt.Errorf("tariff %s: %w", s.Tariff.ID, err)
		}

		unitPrice := decimal.Zero
		if !qty.IsZero() {
			unitPrice = charge.Amount.Div(qty).Round(unitPricePlaces)
		}
		lines = append(lines, Line{
			MeterID:     meter.ID,
			TariffID:    s.Tariff.ID,
			ServiceType: meter.ServiceType,
			Description: describe(meter, s),
			Quantity:    qty,
			Unit:        consumption.Unit,
			UnitPrice:   unitPrice,
			Total:       charge.Amount,
			Currency:    charge.Currency,
			PeriodStart: s.Start,
			PeriodEnd:   s.End,
		})
	}
	return lines, nil
}

// Slice is the part of a billing period priced by a single tariff.
type Slice struct {
	Tariff tariff.Tariff
	Start  time.Time
	End    time.Time
}

// PlanSlices cuts [start, end) at every tariff validity boundary and assigns
// each piece the active tariff with the latest active_from. Adjacent pieces
// billed by the same tariff are merged. Any uncovered piece fails the plan.
func PlanSlices(service billingtypes.ServiceType, tariffs []tariff.Tariff, start, end time.Time) ([]Slice, error) {
	cuts := []time.Time{start, end}
	for _, t := range tariffs {
		if t.ActiveFrom.After(start) && t.ActiveFrom.Before(end) {
			cuts = append(cuts, t.ActiveFrom)
		}
		if t.ActiveUntil != nil && t.ActiveUntil.After(start) && t.ActiveUntil.Before(end) {
			cuts = append(cuts, *t.ActiveUntil)
		}
	}
	sort.Slice(cuts, func(i, j int) bool { return cuts[i].Before(cuts[j]) })

	var slices []Slice
	for i := 0; i+1 < len(cuts); i++ {
		from, to := cuts[i], cuts[i+1]
		if !to.After(from) {
			continue
		}
		chosen := pickTariff(tariffs, from)
		if chosen == nil {
			return nil, &NoApplicableTariffError{ServiceType: service, From: from, To: to}
		}
		if n := len(slices); n > 0 && slices[n-1].Tariff.ID == chosen.ID {
			slices[n-1].End = to
			continue
		}
		slices = append(slices, Slice{Tariff: *chosen, Start: from, End: to})
	}
	return slices, nil
}

// pickTariff returns the tariff active at ts that started most recently.
// Ties go to the lexically smaller id so plans are deterministic.
func pickTariff(tariffs []tariff.Tariff, ts time.Time) *tariff.Tariff {
	var best *tariff.Tariff
	for i := range tariffs {
		t := &tariffs[i]
		if !t.ActiveAt(ts) {
			continue
		}
		if best == nil || t.ActiveFrom.After(best.ActiveFrom) ||
			(t.ActiveFrom.Equal(best.ActiveFrom) && t.ID.String() < best.ID.String()) {
			best = t
		}
	}
	return best
}

func describe(meter property.Meter, s Slice) string {
	return fmt.Sprintf("%s meter %s, %s (%s to %s)",
		meter.ServiceType, meter.SerialNumber, s.Tariff.Name,
		s.Start.Format("2006-01-02"), s.End.Format("2006-01-02"))
}
