package tariff

import (
	"context"
	"errors"
	"testing"
	"time"

	billingtypes "github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/billingTypes"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/identity"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/policy"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTariffValidity(t *testing.T) {
	until := day(2024, 3, 1)
	tr := Tariff{
		Name:          "Standard",
		ServiceType:   billingtypes.ServiceElectricity,
		Configuration: FlatConfig{Currency: "EUR", Rate: dec("0.2")},
		ActiveFrom:    day(2024, 1, 1),
		ActiveUntil:   &until,
	}
	if err := tr.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tr.ActiveAt(day(2024, 1, 1)) || !tr.ActiveAt(day(2024, 2, 29)) {
		t.Fatal("expected tariff active inside its window")
	}
	if tr.ActiveAt(until) {
		t.Fatal("active_until is exclusive")
	}
	if !tr.Overlaps(day(2024, 2, 15), day(2024, 3, 15)) {
		t.Fatal("expected overlap across active_until")
	}
	if tr.Overlaps(day(2024, 3, 1), day(2024, 4, 1)) {
		t.Fatal("period starting at active_until must not overlap")
	}

	backwards := day(2023, 12, 31)
	tr.ActiveUntil = &backwards
	if err := tr.Validate(); !errors.Is(err, ErrInvalidTariff) {
		t.Fatalf("expected ErrInvalidTariff, got %v", err)
	}
	same := tr.ActiveFrom
	tr.ActiveUntil = &same
	if err := tr.Validate(); !errors.Is(err, ErrInvalidTariff) {
		t.Fatalf("active_until equal to active_from must be rejected, got %v", err)
	}
}

func TestSanitizeRemoteID(t *testing.T) {
	str := func(s string) *string { return &s }
	tests := []struct {
		in   *string
		want *string
	}{
		{nil, nil},
		{str("ESO-2024.v1_a"), str("ESO-2024.v1_a")},
		{str("ab c/<script>"), str("abcscript")},
		{str("  ///  "), nil},
	}
	for _, tt := range tests {
		got := SanitizeRemoteID(tt.in)
		if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
			t.Errorf("SanitizeRemoteID(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// --- MOCKS ---

type MockTariffStore struct {
	Tariffs map[uuid.UUID]Tariff
}

func (m *MockTariffStore) CreateTariff(ctx context.Context, t *Tariff) error {
	m.Tariffs[t.ID] = *t
	return nil
}

func (m *MockTariffStore) UpdateTariff(ctx context.Context, t *Tariff) error {
	if _, ok := m.Tariffs[t.ID]; !ok {
		return ErrTariffNotFound
	}
	m.Tariffs[t.ID] = *t
	return nil
}

func (m *MockTariffStore) GetTariff(ctx context.Context, id uuid.UUID) (*Tariff, error) {
	t, ok := m.Tariffs[id]
	if !ok {
		return nil, ErrTariffNotFound
	}
	return &t, nil
}

func (m *MockTariffStore) ListTariffs(ctx context.Context, f ListFilter) ([]Tariff, error) {
	var out []Tariff
	for _, t := range m.Tariffs {
		out = append(out, t)
	}
	return out, nil
}

func (m *MockTariffStore) ListTariffsOverlapping(ctx context.Context, s billingtypes.ServiceType, from, to time.Time) ([]Tariff, error) {
	return nil, nil
}

func TestManager(t *testing.T) {
	store := &MockTariffStore{Tariffs: map[uuid.UUID]Tariff{}}
	m := NewManager(store, zap.NewNop())
	tenant := uuid.New()
	super := identity.Principal{ID: uuid.New(), Role: identity.RoleSuperadmin}
	admin := identity.Principal{ID: uuid.New(), Role: identity.RoleAdmin, TenantID: &tenant}
	remote := "ESO/2024#1"

	in := Input{
		Name:          "Night saver",
		RemoteID:      &remote,
		ServiceType:   billingtypes.ServiceElectricity,
		Configuration: FlatConfig{Currency: "EUR", Rate: dec("0.2")},
		ActiveFrom:    day(2024, 1, 1),
	}

	if _, err := m.CreateTariff(context.Background(), admin, in); !errors.Is(err, policy.ErrForbidden) {
		t.Fatalf("admin must not create tariffs, got %v", err)
	}

	created, err := m.CreateTariff(context.Background(), super, in)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.RemoteID == nil || *created.RemoteID != "ESO20241" {
		t.Fatalf("remote id not sanitized: %v", created.RemoteID)
	}

	got, err := m.GetTariff(context.Background(), admin, created.ID)
	if err != nil || got.Name != "Night saver" {
		t.Fatalf("admin should read tariffs: %v", err)
	}

	in.Configuration = FlatConfig{Currency: "EUR", Rate: dec("-1")}
	if _, err := m.UpdateTariff(context.Background(), super, created.ID, in); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
	if stored := store.Tariffs[created.ID]; !stored.Configuration.(FlatConfig).Rate.Equal(dec("0.2")) {
		t.Fatal("rejected update must not reach the store")
	}

	renterID := uuid.New()
	tenantUser := identity.Principal{ID: uuid.New(), Role: identity.RoleTenant, TenantID: &tenant, RenterID: &renterID}
	if _, err := m.ListTariffs(context.Background(), tenantUser, ListFilter{}); !errors.Is(err, policy.ErrForbidden) {
		t.Fatalf("tenant role must not list tariffs, got %v", err)
	}
}
