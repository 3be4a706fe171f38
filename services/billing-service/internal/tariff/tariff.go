// services/billing-service/internal/tariff/tariff.go
package tariff

import (
	"fmt"
	"strings"
	"time"

	billingtypes "github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/billingTypes"
	"github.com/google/uuid"
)

// Tariff is a priced rate structure valid over [ActiveFrom, ActiveUntil).
// Tariffs are shared reference data owned by a provider, not by a tenant.
type Tariff struct {
	ID            uuid.UUID
	ProviderID    *uuid.UUID // nil for manually entered tariffs
	RemoteID      *string
	Name          string
	ServiceType   billingtypes.ServiceType
	Configuration Configuration
	ActiveFrom    time.Time
	ActiveUntil   *time.Time // nil = open ended
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (t *Tariff) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTariff)
	}
	if !t.ServiceType.Valid() {
		return fmt.Errorf("%w: unknown service type %q", ErrInvalidTariff, t.ServiceType)
	}
	if t.ActiveFrom.IsZero() {
		return fmt.Errorf("%w: active_from is required", ErrInvalidTariff)
	}
	if t.ActiveUntil != nil && !t.ActiveUntil.After(t.ActiveFrom) {
		return fmt.Errorf("%w: active_until must be after active_from", ErrInvalidTariff)
	}
	if t.Configuration == nil {
		return configErr("configuration is required")
	}
	return t.Configuration.Validate()
}

// ActiveAt reports whether ts falls inside the validity window.
func (t *Tariff) ActiveAt(ts time.Time) bool {
	if ts.Before(t.ActiveFrom) {
		return false
	}
	return t.ActiveUntil == nil || ts.Before(*t.ActiveUntil)
}

// Overlaps reports whether the validity window intersects [from, to).
func (t *Tariff) Overlaps(from, to time.Time) bool {
	if !t.ActiveFrom.Before(to) {
		return false
	}
	return t.ActiveUntil == nil || t.ActiveUntil.After(from)
}

// SanitizeRemoteID keeps only letters, digits, '.', '-' and '_'.
// An identifier with nothing left is dropped.
func SanitizeRemoteID(id *string) *string {
	if id == nil {
		return nil
	}
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return -1
	}, *id)
	if clean == "" {
		return nil
	}
	return &clean
}
