// services/billing-service/internal/tariff/tariff_store.go
package tariff

import (
	"context"
	"time"

	billingtypes "github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/billingTypes"
	"github.com/google/uuid"
)

type ListFilter struct {
	ServiceType billingtypes.ServiceType // empty = any
	ProviderID  *uuid.UUID
	ActiveAt    *time.Time
	Limit       int
	Offset      int
}

// TariffStore is the persistence port for tariffs. GetTariff returns ErrTariffNotFound.
type TariffStore interface {
	CreateTariff(ctx context.Context, t *Tariff) error
	UpdateTariff(ctx context.Context, t *Tariff) error
	GetTariff(ctx context.Context, id uuid.UUID) (*Tariff, error)
	ListTariffs(ctx context.Context, filter ListFilter) ([]Tariff, error)
	// ListTariffsOverlapping returns tariffs of a service whose validity intersects [from, to).
	ListTariffsOverlapping(ctx context.Context, service billingtypes.ServiceType, from, to time.Time) ([]Tariff, error)
}
