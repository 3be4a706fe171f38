// services/billing-service/internal/property/property.go
package property

import (
	"context"
	"errors"
	"fmt"
	"time"

	billingtypes "github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/billingTypes"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tenancy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrRenterNotFound   = errors.New("renter not found")
	ErrPropertyNotFound = errors.New("property not found")
	ErrMeterNotFound    = errors.New("meter not found")
	ErrInvalidMeter     = errors.New("invalid meter")
)

// Property is a billable unit owned by a tenant organization.
type Property struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	BuildingID *uuid.UUID
	Name       string
	CreatedAt  time.Time
}

// Renter is the occupant billed for a property.
type Renter struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	PropertyID uuid.UUID
	Name       string
	CreatedAt  time.Time
}

// Meter is a cumulative counter installed at a property.
type Meter struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	PropertyID   uuid.UUID
	SerialNumber string
	ServiceType  billingtypes.ServiceType
	Unit         billingtypes.Unit
	// RolloverModulus is the value the counter wraps at. Nil means a
	// decreasing reading is an error rather than a wrap.
	RolloverModulus *decimal.Decimal
	CreatedAt       time.Time
}

func (m *Meter) Validate() error {
	if !m.ServiceType.Valid() {
		return fmt.Errorf("%w: unknown service type %q", ErrInvalidMeter, m.ServiceType)
	}
	if _, err := billingtypes.Convert(decimal.Zero, m.Unit, m.ServiceType.BillingUnit()); err != nil {
		return fmt.Errorf("%w: unit %q cannot measure %s", ErrInvalidMeter, m.Unit, m.ServiceType)
	}
	if m.RolloverModulus != nil && !m.RolloverModulus.IsPositive() {
		return fmt.Errorf("%w: rollover modulus must be positive", ErrInvalidMeter)
	}
	return nil
}

// Store is the persistence port for tenant-owned premises data. Every read
// takes a scope; rows outside it are reported as not found.
type Store interface {
	CreateProperty(ctx context.Context, p *Property) error
	CreateRenter(ctx context.Context, r *Renter) error
	CreateMeter(ctx context.Context, m *Meter) error
	GetRenter(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (*Renter, error)
	GetMeter(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (*Meter, error)
	ListMetersByProperty(ctx context.Context, scope tenancy.Scope, propertyID uuid.UUID) ([]Meter, error)
}
