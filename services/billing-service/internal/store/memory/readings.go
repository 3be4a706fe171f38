// services/billing-service/internal/store/memory/readings.go
package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tenancy"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/usage"
	"github.com/google/uuid"
)

func (s *MemoryStore) CreateReading(ctx context.Context, r *usage.MeterReading) error {
	return s.write(ctx, func(d *dataset) error {
		rs := d.readings[r.MeterID]
		for _, existing := range rs {
			if existing.ReadingDate.Equal(r.ReadingDate) {
				return usage.ErrDuplicateReading
			}
		}
		rs = append(rs, *r)
		sort.Slice(rs, func(i, j int) bool { return rs[i].ReadingDate.Before(rs[j].ReadingDate) })
		d.readings[r.MeterID] = rs
		return nil
	})
}

func (s *MemoryStore) ListReadingsForPeriod(ctx context.Context, scope tenancy.Scope, meterID uuid.UUID, from, to time.Time) ([]usage.MeterReading, error) {
	var out []usage.MeterReading
	err := s.read(ctx, func(d *dataset) error {
		var anchor *usage.MeterReading
		for _, r := range d.readings[meterID] {
			if !scope.Allows(r.TenantID) {
				continue
			}
			switch {
			case !r.ReadingDate.After(from):
				anchor = &r
			case !r.ReadingDate.After(to):
				out = append(out, r)
			}
		}
		if anchor != nil {
			out = append([]usage.MeterReading{*anchor}, out...)
		}
		return nil
	})
	return out, err
}

func (s *MemoryStore) LatestReadingBefore(ctx context.Context, scope tenancy.Scope, meterID uuid.UUID, at time.Time) (*usage.MeterReading, error) {
	var out *usage.MeterReading
	err := s.read(ctx, func(d *dataset) error {
		for _, r := range d.readings[meterID] {
			if scope.Allows(r.TenantID) && r.ReadingDate.Before(at) {
				out = &r
			}
		}
		return nil
	})
	return out, err
}
