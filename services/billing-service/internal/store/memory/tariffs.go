// services/billing-service/internal/store/memory/tariffs.go
package memory

import (
	"context"
	"sort"
	"time"

	billingtypes "github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/billingTypes"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tariff"
	"github.com/google/uuid"
)

func (s *MemoryStore) CreateTariff(ctx context.Context, t *tariff.Tariff) error {
	return s.write(ctx, func(d *dataset) error {
		d.tariffs[t.ID] = *t
		return nil
	})
}

func (s *MemoryStore) UpdateTariff(ctx context.Context, t *tariff.Tariff) error {
	return s.write(ctx, func(d *dataset) error {
		if _, ok := d.tariffs[t.ID]; !ok {
			return tariff.ErrTariffNotFound
		}
		d.tariffs[t.ID] = *t
		return nil
	})
}

func (s *MemoryStore) GetTariff(ctx context.Context, id uuid.UUID) (*tariff.Tariff, error) {
	var out tariff.Tariff
	err := s.read(ctx, func(d *dataset) error {
		t, ok := d.tariffs[id]
		if !ok {
			return tariff.ErrTariffNotFound
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MemoryStore) ListTariffs(ctx context.Context, f tariff.ListFilter) ([]tariff.Tariff, error) {
	var out []tariff.Tariff
	err := s.read(ctx, func(d *dataset) error {
		for _, t := range d.tariffs {
			if f.ServiceType != "" && t.ServiceType != f.ServiceType {
				continue
			}
			if f.ProviderID != nil && (t.ProviderID == nil || *t.ProviderID != *f.ProviderID) {
				continue
			}
			if f.ActiveAt != nil && !t.ActiveAt(*f.ActiveAt) {
				continue
			}
			out = append(out, t)
		}
		return nil
	})
	sortTariffs(out)
	return page(out, f.Limit, f.Offset), err
}

func (s *MemoryStore) ListTariffsOverlapping(ctx context.Context, service billingtypes.ServiceType, from, to time.Time) ([]tariff.Tariff, error) {
	var out []tariff.Tariff
	err := s.read(ctx, func(d *dataset) error {
		for _, t := range d.tariffs {
			if t.ServiceType == service && t.Overlaps(from, to) {
				out = append(out, t)
			}
		}
		return nil
	})
	sortTariffs(out)
	return out, err
}

func sortTariffs(ts []tariff.Tariff) {
	sort.Slice(ts, func(i, j int) bool {
		if !ts[i].ActiveFrom.Equal(ts[j].ActiveFrom) {
			return ts[i].ActiveFrom.Before(ts[j].ActiveFrom)
		}
		return ts[i].ID.String() < ts[j].ID.String()
	})
}
