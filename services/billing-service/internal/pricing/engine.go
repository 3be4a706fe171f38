// services/billing-service/internal/pricing/engine.go
package pricing

import (
	"fmt"
	"time"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tariff"
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the currency minor-unit precision every charge is rounded to.
const MoneyPlaces = 2

// RoundMoney rounds half away from zero (half-up for the non-negative amounts billed here).
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// ZoneCharge is the share of a time-of-use charge attributed to one zone.
type ZoneCharge struct {
	ZoneID   string
	Rate     decimal.Decimal
	Duration time.Duration
	Quantity decimal.Decimal // apportioned, unrounded
	Amount   decimal.Decimal // unrounded
}

// Charge is the priced result of one configuration over one window.
type Charge struct {
	Currency string
	Amount   decimal.Decimal // rounded, includes FixedFee
	FixedFee decimal.Decimal
	Zones    []ZoneCharge
}

// Resolve prices quantity over [start, end) with whichever variant cfg is.
func Resolve(cfg tariff.Configuration, quantity decimal.Decimal, start, end time.Time) (Charge, error) {
	switch c := cfg.(type) {
	case tariff.FlatConfig:
		if !end.After(start) {
			return Charge{}, fmt.Errorf("%w: %s is not after %s", ErrInvalidBillingPeriod, end, start)
		}
		return ResolveFlat(c, quantity)
	case tariff.TimeOfUseConfig:
		return ResolveTimeOfUse(c, quantity, start, end)
	}
	return Charge{}, &tariff.ConfigurationError{Reason: fmt.Sprintf("unsupported configuration %T", cfg)}
}

// ResolveFlat computes round(quantity*rate + fixed_fee, 2).
func ResolveFlat(cfg tariff.FlatConfig, quantity decimal.Decimal) (Charge, error) {
	if quantity.IsNegative() {
		return Charge{}, ErrNegativeQuantity
	}
	if err := cfg.Validate(); err != nil {
		return Charge{}, err
	}
	fee := cfg.Fee()
	return Charge{
		Currency: cfg.Currency,
		Amount:   RoundMoney(quantity.Mul(cfg.Rate).Add(fee)),
		FixedFee: fee,
	}, nil
}

// ResolveTimeOfUse apportions quantity across zones by the share of
// [start, end) each zone occupies and prices every share at its zone rate.
//
// Days are walked in start's location so zone boundaries follow local wall
// clock time, including across DST changes. On Saturdays and Sundays a
// configured weekend_logic bills the whole day at its target zone.
func ResolveTimeOfUse(cfg tariff.TimeOfUseConfig, quantity decimal.Decimal, start, end time.Time) (Charge, error) {
	if !end.After(start) {
		return Charge{}, fmt.Errorf("%w: %s is not after %s", ErrInvalidBillingPeriod, end, start)
	}
	if quantity.IsNegative() {
		return Charge{}, ErrNegativeQuantity
	}
	if err := cfg.Validate(); err != nil {
		return Charge{}, err
	}
	segments, err := cfg.DailySegments()
	if err != nil {
		return Charge{}, err
	}
	weekendZone, hasWeekend, err := cfg.WeekendZone()
	if err != nil {
		return Charge{}, err
	}

	durations := make([]time.Duration, len(cfg.Zones))
	var covered time.Duration

	loc := start.Location()
	end = end.In(loc)
	for dayStart := midnight(start); dayStart.Before(end); {
		y, m, d := dayStart.Date()
		nextDay := time.Date(y, m, d+1, 0, 0, 0, 0, loc)

		if hasWeekend && isWeekend(dayStart.Weekday()) {
			dur := overlap(dayStart, nextDay, start, end)
			durations[weekendZone] += dur
			covered += dur
		} else {
			for _, seg := range segments {
				segStart := clockOn(y, m, d, seg.StartMin, loc)
				segEnd := clockOn(y, m, d, seg.EndMin, loc)
				dur := overlap(segStart, segEnd, start, end)
				durations[seg.Zone] += dur
				covered += dur
			}
		}
		dayStart = nextDay
	}

	total := end.Sub(start)
	if covered != total {
		return Charge{}, &tariff.ConfigurationError{
			Reason: fmt.Sprintf("zones cover %s of a %s period", covered, total),
		}
	}

	// amount = quantity * Σ(duration_z * rate_z) / total, one division at the end.
	totalNanos := decimal.NewFromInt(int64(total))
	weighted := decimal.Zero
	zones := make([]ZoneCharge, 0, len(cfg.Zones))
	for i, z := range cfg.Zones {
		if durations[i] == 0 {
			continue
		}
		nanos := decimal.NewFromInt(int64(durations[i]))
		weighted = weighted.Add(nanos.Mul(z.Rate))
		zq := quantity.Mul(nanos).Div(totalNanos)
		zones = append(zones, ZoneCharge{
			ZoneID:   z.ID,
			Rate:     z.Rate,
			Duration: durations[i],
			Quantity: zq,
			Amount:   quantity.Mul(nanos).Mul(z.Rate).Div(totalNanos),
		})
	}

	fee := cfg.Fee()
	amount := quantity.Mul(weighted).Div(totalNanos).Add(fee)
	return Charge{
		Currency: cfg.Currency,
		Amount:   RoundMoney(amount),
		FixedFee: fee,
		Zones:    zones,
	}, nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// clockOn is the given minute of day on a date; 1440 is the next midnight.
func clockOn(y int, m time.Month, d, minute int, loc *time.Location) time.Time {
	return time.Date(y, m, d, minute/60, minute%60, 0, 0, loc)
}

// overlap is the length of [aStart, aEnd) ∩ [bStart, bEnd).
func overlap(aStart, aEnd, bStart, bEnd time.Time) time.Duration {
	lo := aStart
	if bStart.After(lo) {
		lo = bStart
	}
	hi := aEnd
	if bEnd.Before(hi) {
		hi = bEnd
	}
	if !hi.After(lo) {
		return 0
	}
	return hi.Sub(lo)
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}
