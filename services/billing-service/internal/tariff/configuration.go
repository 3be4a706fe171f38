// services/billing-service/internal/tariff/configuration.go
package tariff

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind discriminates the configuration variants.
type Kind string

const (
	KindFlat      Kind = "flat"
	KindTimeOfUse Kind = "time_of_use"
)

// WeekendLogic redirects whole Saturdays and Sundays to a single zone.
type WeekendLogic string

const (
	WeekendApplyNightRate   WeekendLogic = "apply_night_rate"
	WeekendApplyDayRate     WeekendLogic = "apply_day_rate"
	WeekendApplyWeekendRate WeekendLogic = "apply_weekend_rate"
)

// ZoneID is the zone id the rule points at.
func (w WeekendLogic) ZoneID() (string, bool) {
	switch w {
	case WeekendApplyNightRate:
		return "night", true
	case WeekendApplyDayRate:
		return "day", true
	case WeekendApplyWeekendRate:
		return "weekend", true
	}
	return "", false
}

// Configuration is the tagged union of rate structures: FlatConfig or TimeOfUseConfig.
type Configuration interface {
	Kind() Kind
	CurrencyCode() string
	// Fee is the fixed fee, zero when absent.
	Fee() decimal.Decimal
	Validate() error
}

type FlatConfig struct {
	Currency string
	Rate     decimal.Decimal
	FixedFee *decimal.Decimal
}

func (FlatConfig) Kind() Kind { return KindFlat }

func (c FlatConfig) CurrencyCode() string { return c.Currency }

func (c FlatConfig) Fee() decimal.Decimal { return feeOrZero(c.FixedFee) }

func (c FlatConfig) Validate() error {
	if err := validateCurrency(c.Currency); err != nil {
		return err
	}
	if c.Rate.IsNegative() {
		return configErr("rate must not be negative")
	}
	return validateFee(c.FixedFee)
}

// Zone is a recurring daily window. An End earlier than Start wraps past midnight.
type Zone struct {
	ID    string
	Start string
	End   string
	Rate  decimal.Decimal
}

type TimeOfUseConfig struct {
	Currency     string
	Zones        []Zone
	WeekendLogic WeekendLogic
	FixedFee     *decimal.Decimal
}

func (TimeOfUseConfig) Kind() Kind { return KindTimeOfUse }

func (c TimeOfUseConfig) CurrencyCode() string { return c.Currency }

func (c TimeOfUseConfig) Fee() decimal.Decimal { return feeOrZero(c.FixedFee) }

func (c TimeOfUseConfig) Validate() error {
	if err := validateCurrency(c.Currency); err != nil {
		return err
	}
	if len(c.Zones) == 0 {
		return configErr("time_of_use requires at least one zone")
	}
	seen := make(map[string]bool, len(c.Zones))
	for _, z := range c.Zones {
		id := strings.ToLower(strings.TrimSpace(z.ID))
		if id == "" {
			return configErr("zone id is required")
		}
		if seen[id] {
			return configErr(fmt.Sprintf("duplicate zone %q", z.ID))
		}
		seen[id] = true
		if z.Rate.IsNegative() {
			return configErr(fmt.Sprintf("zone %q rate must not be negative", z.ID))
		}
	}
	if _, _, err := c.WeekendZone(); err != nil {
		return err
	}
	if _, err := c.DailySegments(); err != nil {
		return err
	}
	return validateFee(c.FixedFee)
}

// WeekendZone returns the index of the zone weekend days are billed at.
func (c TimeOfUseConfig) WeekendZone() (int, bool, error) {
	if c.WeekendLogic == "" {
		return -1, false, nil
	}
	id, ok := c.WeekendLogic.ZoneID()
	if !ok {
		return -1, false, configErr(fmt.Sprintf("unknown weekend_logic %q", c.WeekendLogic))
	}
	for i, z := range c.Zones {
		if strings.EqualFold(strings.TrimSpace(z.ID), id) {
			return i, true, nil
		}
	}
	return -1, false, configErr(fmt.Sprintf("weekend_logic %s references missing zone %q", c.WeekendLogic, id))
}

const minutesPerDay = 24 * 60

// Segment is the half-open minute-of-day window [StartMin, EndMin) billed at Zones[Zone].
type Segment struct {
	Zone     int
	StartMin int
	EndMin   int
}

// DailySegments partitions a weekday into zone windows, splitting zones that wrap
// midnight. The zones must cover the whole day without overlapping. With
// apply_weekend_rate the weekend zone only applies on weekends and is left out.
func (c TimeOfUseConfig) DailySegments() ([]Segment, error) {
	weekendOnly := -1
	if c.WeekendLogic == WeekendApplyWeekendRate {
		idx, _, err := c.WeekendZone()
		if err != nil {
			return nil, err
		}
		weekendOnly = idx
	}

	var segs []Segment
	for i, z := range c.Zones {
		start, err := parseClock(z.Start, false)
		if err != nil {
			return nil, configErr(fmt.Sprintf("zone %q start: %v", z.ID, err))
		}
		end, err := parseClock(z.End, true)
		if err != nil {
			return nil, configErr(fmt.Sprintf("zone %q end: %v", z.ID, err))
		}
		if start == end {
			return nil, configErr(fmt.Sprintf("zone %q has an empty window", z.ID))
		}
		if i == weekendOnly {
			continue
		}
		if end > start {
			segs = append(segs, Segment{Zone: i, StartMin: start, EndMin: end})
			continue
		}
		// wraps midnight
		segs = append(segs, Segment{Zone: i, StartMin: start, EndMin: minutesPerDay})
		if end > 0 {
			segs = append(segs, Segment{Zone: i, StartMin: 0, EndMin: end})
		}
	}
	if len(segs) == 0 {
		return nil, configErr("no zone applies on weekdays")
	}

	sort.Slice(segs, func(a, b int) bool { return segs[a].StartMin < segs[b].StartMin })
	cursor := 0
	for _, s := range segs {
		if s.StartMin < cursor {
			return nil, configErr(fmt.Sprintf("zone %q overlaps another zone", c.Zones[s.Zone].ID))
		}
		if s.StartMin > cursor {
			return nil, configErr(fmt.Sprintf("no zone covers %s", formatClock(cursor)))
		}
		cursor = s.EndMin
	}
	if cursor != minutesPerDay {
		return nil, configErr(fmt.Sprintf("no zone covers %s", formatClock(cursor)))
	}
	return segs, nil
}

// parseClock reads "HH:MM" into minutes after midnight. "24:00" is accepted as an end bound.
func parseClock(s string, allowEndOfDay bool) (int, error) {
	p := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(p) != 2 || len(p[0]) != 2 || len(p[1]) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(p[0])
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	m, err := strconv.Atoi(p[1])
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	if allowEndOfDay && h == 24 && m == 0 {
		return minutesPerDay, nil
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("out of range %q", s)
	}
	return h*60 + m, nil
}

func formatClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// WithFixedFee returns a copy of c carrying fee instead of its own fixed fee.
func WithFixedFee(c Configuration, fee decimal.Decimal) Configuration {
	switch cfg := c.(type) {
	case FlatConfig:
		cfg.FixedFee = &fee
		return cfg
	case TimeOfUseConfig:
		cfg.FixedFee = &fee
		return cfg
	}
	return c
}

func feeOrZero(fee *decimal.Decimal) decimal.Decimal {
	if fee == nil {
		return decimal.Zero
	}
	return *fee
}

func validateFee(fee *decimal.Decimal) error {
	if fee != nil && fee.IsNegative() {
		return configErr("fixed_fee must not be negative")
	}
	return nil
}

func validateCurrency(code string) error {
	if len(code) != 3 {
		return configErr("currency must be a three letter code")
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return configErr("currency must be a three letter code")
		}
	}
	return nil
}
