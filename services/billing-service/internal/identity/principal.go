// services/billing-service/internal/identity/principal.go
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidPrincipal = errors.New("invalid principal")

// Role is the closed set of authorities a caller can hold.
type Role string

const (
	RoleSuperadmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleTenant     Role = "tenant"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleSuperadmin, RoleAdmin, RoleManager, RoleTenant:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidPrincipal, s)
}

// Principal is the authenticated caller, supplied by the surrounding application.
// TenantID is nil only for superadmins. RenterID binds a tenant-role caller to
// the renter it acts for and is ignored for staff roles.
type Principal struct {
	ID       uuid.UUID
	Role     Role
	TenantID *uuid.UUID
	RenterID *uuid.UUID
}

func (p Principal) IsSuperadmin() bool {
	return p.Role == RoleSuperadmin
}

// Validate rejects principals the rest of the system cannot scope.
func (p Principal) Validate() error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("%w: missing id", ErrInvalidPrincipal)
	}
	if _, err := ParseRole(string(p.Role)); err != nil {
		return err
	}
	if !p.IsSuperadmin() && (p.TenantID == nil || *p.TenantID == uuid.Nil) {
		return fmt.Errorf("%w: role %s requires a tenant", ErrInvalidPrincipal, p.Role)
	}
	if p.Role == RoleTenant && (p.RenterID == nil || *p.RenterID == uuid.Nil) {
		return fmt.Errorf("%w: role %s requires a renter", ErrInvalidPrincipal, p.Role)
	}
	return nil
}

// BoundRenter returns the only renter whose records the caller may see.
// ok is false for staff roles, which see the whole tenant.
func (p Principal) BoundRenter() (id uuid.UUID, ok bool) {
	if p.Role != RoleTenant || p.RenterID == nil {
		return uuid.Nil, false
	}
	return *p.RenterID, true
}
