package usage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MeterReading is one observation of a meter's cumulative counter.
type MeterReading struct {
	ID          uuid.UUID
	MeterID     uuid.UUID
	TenantID    uuid.UUID
	ReadingDate time.Time
	Value       decimal.Decimal
	EnteredBy   *uuid.UUID // operator who keyed it in
	CreatedAt   time.Time
}
