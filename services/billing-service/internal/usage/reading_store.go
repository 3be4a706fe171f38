// services/billing-service/internal/usage/reading_store.go
package usage

import (
	"context"
	"time"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tenancy"
	"github.com/google/uuid"
)

// ReadingStore persists meter readings.
type ReadingStore interface {
	// CreateReading returns ErrDuplicateReading when the meter already has a reading on that date.
	CreateReading(ctx context.Context, r *MeterReading) error

	// ListReadingsForPeriod returns, oldest first, the latest reading on or
	// before from plus every reading in (from, to].
	ListReadingsForPeriod(ctx context.Context, scope tenancy.Scope, meterID uuid.UUID, from, to time.Time) ([]MeterReading, error)

	// LatestReadingBefore returns the newest reading strictly before at, or nil.
	LatestReadingBefore(ctx context.Context, scope tenancy.Scope, meterID uuid.UUID, at time.Time) (*MeterReading, error)
}
