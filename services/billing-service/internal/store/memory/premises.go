// services/billing-service/internal/store/memory/premises.go
package memory

import (
	"context"
	"sort"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/property"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tenancy"
	"github.com/google/uuid"
)

func (s *MemoryStore) CreateProperty(ctx context.Context, p *property.Property) error {
	return s.write(ctx, func(d *dataset) error {
		d.properties[p.ID] = *p
		return nil
	})
}

func (s *MemoryStore) CreateRenter(ctx context.Context, r *property.Renter) error {
	return s.write(ctx, func(d *dataset) error {
		if p, ok := d.properties[r.PropertyID]; !ok || p.TenantID != r.TenantID {
			return property.ErrPropertyNotFound
		}
		d.renters[r.ID] = *r
		return nil
	})
}

func (s *MemoryStore) CreateMeter(ctx context.Context, m *property.Meter) error {
	return s.write(ctx, func(d *dataset) error {
		if p, ok := d.properties[m.PropertyID]; !ok || p.TenantID != m.TenantID {
			return property.ErrPropertyNotFound
		}
		d.meters[m.ID] = *m
		return nil
	})
}

func (s *MemoryStore) GetRenter(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (*property.Renter, error) {
	var out property.Renter
	err := s.read(ctx, func(d *dataset) error {
		r, ok := d.renters[id]
		if !ok || !scope.Allows(r.TenantID) {
			return property.ErrRenterNotFound
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MemoryStore) GetMeter(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (*property.Meter, error) {
	var out property.Meter
	err := s.read(ctx, func(d *dataset) error {
		m, ok := d.meters[id]
		if !ok || !scope.Allows(m.TenantID) {
			return property.ErrMeterNotFound
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MemoryStore) ListMetersByProperty(ctx context.Context, scope tenancy.Scope, propertyID uuid.UUID) ([]property.Meter, error) {
	var out []property.Meter
	err := s.read(ctx, func(d *dataset) error {
		for _, m := range d.meters {
			if m.PropertyID == propertyID && scope.Allows(m.TenantID) {
				out = append(out, m)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].SerialNumber < out[j].SerialNumber })
	return out, err
}
