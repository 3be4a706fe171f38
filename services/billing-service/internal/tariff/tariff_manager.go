// services/billing-service/internal/tariff/tariff_manager.go
package tariff

import (
	"context"
	"fmt"
	"time"

	billingtypes "github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/billingTypes"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/identity"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/policy"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Input carries the operator-supplied attributes of a tariff.
type Input struct {
	ProviderID    *uuid.UUID
	RemoteID      *string
	Name          string
	ServiceType   billingtypes.ServiceType
	Configuration Configuration
	ActiveFrom    time.Time
	ActiveUntil   *time.Time
}

// Manager maintains tariffs. Writes are reserved to superadmins because
// tariffs are shared across tenants.
type Manager struct {
	store  TariffStore
	logger *zap.Logger
	clock  func() time.Time
}

func NewManager(store TariffStore, logger *zap.Logger) *Manager {
	return &Manager{store: store, logger: logger, clock: time.Now}
}

func (m *Manager) CreateTariff(ctx context.Context, p identity.Principal, in Input) (*Tariff, error) {
	if err := policy.Authorize(p, policy.ManageTariffs); err != nil {
		return nil, err
	}
	now := m.clock().UTC()
	t := &Tariff{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
	in.apply(t)
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := m.store.CreateTariff(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to save tariff: %w", err)
	}
	m.logger.Info("tariff created",
		zap.String("tariff_id", t.ID.String()),
		zap.String("service_type", string(t.ServiceType)),
		zap.String("kind", string(t.Configuration.Kind())),
		zap.String("principal_id", p.ID.String()))
	return t, nil
}

// UpdateTariff edits a tariff in place. Issued invoice items keep their own
// copies of description, quantity and prices, so history is unaffected.
func (m *Manager) UpdateTariff(ctx context.Context, p identity.Principal, id uuid.UUID, in Input) (*Tariff, error) {
	if err := policy.Authorize(p, policy.ManageTariffs); err != nil {
		return nil, err
	}
	t, err := m.store.GetTariff(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(t)
	t.UpdatedAt = m.clock().UTC()
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := m.store.UpdateTariff(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update tariff: %w", err)
	}
	m.logger.Info("tariff updated",
		zap.String("tariff_id", t.ID.String()),
		zap.String("principal_id", p.ID.String()))
	return t, nil
}

func (m *Manager) GetTariff(ctx context.Context, p identity.Principal, id uuid.UUID) (*Tariff, error) {
	if err := policy.Authorize(p, policy.ViewTariffs); err != nil {
		return nil, err
	}
	return m.store.GetTariff(ctx, id)
}

func (m *Manager) ListTariffs(ctx context.Context, p identity.Principal, filter ListFilter) ([]Tariff, error) {
	if err := policy.Authorize(p, policy.ViewTariffs); err != nil {
		return nil, err
	}
	if filter.ServiceType != "" && !filter.ServiceType.Valid() {
		return nil, fmt.Errorf("%w: unknown service type %q", ErrInvalidTariff, filter.ServiceType)
	}
	return m.store.ListTariffs(ctx, filter)
}

func (in Input) apply(t *Tariff) {
	t.ProviderID = in.ProviderID
	t.RemoteID = SanitizeRemoteID(in.RemoteID)
	t.Name = in.Name
	t.ServiceType = in.ServiceType
	t.Configuration = in.Configuration
	t.ActiveFrom = in.ActiveFrom
	t.ActiveUntil = in.ActiveUntil
}
