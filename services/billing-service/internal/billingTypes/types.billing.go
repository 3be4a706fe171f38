// services/billing-service/internal/billingTypes/types.billing.go
package billingtypes

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ServiceType is the utility a meter measures and a tariff prices.
type ServiceType string

const (
	ServiceElectricity ServiceType = "electricity"
	ServiceWater       ServiceType = "water"
	ServiceHeating     ServiceType = "heating"
	ServiceGas         ServiceType = "gas"
)

func (s ServiceType) Valid() bool {
	switch s {
	case ServiceElectricity, ServiceWater, ServiceHeating, ServiceGas:
		return true
	}
	return false
}

// BillingUnit is the unit invoice quantities for this service are expressed in.
func (s ServiceType) BillingUnit() Unit {
	switch s {
	case ServiceWater, ServiceGas:
		return UnitCubicMetre
	default:
		return UnitKWh
	}
}

// Unit is a measurement unit a meter can report in.
type Unit string

const (
	UnitWh         Unit = "Wh"
	UnitKWh        Unit = "kWh"
	UnitMWh        Unit = "MWh"
	UnitLitre      Unit = "l"
	UnitCubicMetre Unit = "m3"
)

var ErrUnsupportedUnit = errors.New("unsupported unit conversion")

type dimension int

const (
	energy dimension = iota + 1
	volume
)

// factor to the dimension's base unit (kWh for energy, m3 for volume).
var unitTable = map[Unit]struct {
	dim    dimension
	factor decimal.Decimal
}{
	UnitWh:         {energy, decimal.New(1, -3)},
	UnitKWh:        {energy, decimal.NewFromInt(1)},
	UnitMWh:        {energy, decimal.NewFromInt(1000)},
	UnitLitre:      {volume, decimal.New(1, -3)},
	UnitCubicMetre: {volume, decimal.NewFromInt(1)},
}

func (u Unit) Valid() bool {
	_, ok := unitTable[u]
	return ok
}

// Convert expresses q (measured in from) in the unit to.
func Convert(q decimal.Decimal, from, to Unit) (decimal.Decimal, error) {
	if from == to {
		return q, nil
	}
	f, ok := unitTable[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: unknown unit %q", ErrUnsupportedUnit, from)
	}
	t, ok := unitTable[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: unknown unit %q", ErrUnsupportedUnit, to)
	}
	if f.dim != t.dim {
		return decimal.Zero, fmt.Errorf("%w: %s to %s", ErrUnsupportedUnit, from, to)
	}
	return q.Mul(f.factor).Div(t.factor), nil
}
