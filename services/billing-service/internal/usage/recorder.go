// services/billing-service/internal/usage/recorder.go
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/identity"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/policy"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/property"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tenancy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Recorder accepts meter readings entered by operators.
type Recorder struct {
	meters   property.Store
	readings ReadingStore
	logger   *zap.Logger
	clock    func() time.Time
}

func NewRecorder(meters property.Store, readings ReadingStore, logger *zap.Logger) *Recorder {
	return &Recorder{meters: meters, readings: readings, logger: logger, clock: time.Now}
}

// RecordReading stores a counter value for meterID at readingDate.
// The meter must be visible to p. A value below the previous reading is
// accepted only for meters that declare a rollover modulus.
func (r *Recorder) RecordReading(ctx context.Context, p identity.Principal, meterID uuid.UUID, readingDate time.Time, value decimal.Decimal) (*MeterReading, error) {
	if err := policy.Authorize(p, policy.RecordReading); err != nil {
		return nil, err
	}
	scope, err := tenancy.For(p)
	if err != nil {
		return nil, err
	}
	if readingDate.IsZero() {
		return nil, fmt.Errorf("%w: reading date is required", ErrInvalidReading)
	}
	if value.IsNegative() {
		return nil, fmt.Errorf("%w: value must not be negative", ErrInvalidReading)
	}

	meter, err := r.meters.GetMeter(ctx, scope, meterID)
	if err != nil {
		return nil, err
	}
	if meter.RolloverModulus != nil && !value.LessThan(*meter.RolloverModulus) {
		return nil, fmt.Errorf("%w: value exceeds the meter's rollover modulus", ErrInvalidReading)
	}

	prev, err := r.readings.LatestReadingBefore(ctx, scope, meterID, readingDate)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch previous reading: %w", err)
	}
	if prev != nil && value.LessThan(prev.Value) && meter.RolloverModulus == nil {
		return nil, &NegativeConsumptionError{MeterID: meterID, Start: prev.Value, End: value}
	}

	enteredBy := p.ID
	reading := &MeterReading{
		ID:          uuid.New(),
		MeterID:     meter.ID,
		TenantID:    meter.TenantID,
		ReadingDate: readingDate,
		Value:       value,
		EnteredBy:   &enteredBy,
		CreatedAt:   r.clock().UTC(),
	}
	if err := r.readings.CreateReading(ctx, reading); err != nil {
		return nil, fmt.Errorf("failed to save reading: %w", err)
	}

	r.logger.Info("meter reading recorded",
		zap.String("meter_id", meterID.String()),
		zap.String("tenant_id", meter.TenantID.String()),
		zap.String("principal_id", p.ID.String()),
		zap.Time("reading_date", readingDate))
	return reading, nil
}
