// services/billing-service/internal/tenancy/scope.go
package tenancy

import (
	"fmt"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/identity"
	"github.com/google/uuid"
)

// Scope is the tenant boundary a query runs under. The zero value matches nothing.
type Scope struct {
	tenantID     uuid.UUID
	unrestricted bool
}

// For derives the scope of a principal: superadmins see every tenant,
// everyone else only their own.
func For(p identity.Principal) (Scope, error) {
	if err := p.Validate(); err != nil {
		return Scope{}, err
	}
	if p.IsSuperadmin() {
		return Scope{unrestricted: true}, nil
	}
	return Scope{tenantID: *p.TenantID}, nil
}

// Tenant scopes to a single tenant.
func Tenant(id uuid.UUID) Scope {
	return Scope{tenantID: id}
}

// System is the unrestricted scope used by internal callers.
func System() Scope {
	return Scope{unrestricted: true}
}

func (s Scope) Unrestricted() bool { return s.unrestricted }

// TenantID returns the tenant the scope is pinned to, if any.
func (s Scope) TenantID() (uuid.UUID, bool) {
	if s.unrestricted {
		return uuid.Nil, false
	}
	return s.tenantID, true
}

// Allows reports whether a row owned by tenantID is visible.
func (s Scope) Allows(tenantID uuid.UUID) bool {
	if s.unrestricted {
		return true
	}
	return s.tenantID != uuid.Nil && s.tenantID == tenantID
}

func (s Scope) String() string {
	if s.unrestricted {
		return "scope(all)"
	}
	return fmt.Sprintf("scope(%s)", s.tenantID)
}

// Filter is any query builder accepting `?`-placeholder predicates.
type Filter interface {
	Where(clause string, args ...any)
}

// Apply attaches the tenant predicate on column to q. Unrestricted scopes add nothing.
func (s Scope) Apply(q Filter, column string) {
	if s.unrestricted {
		return
	}
	q.Where(column+" = ?", s.tenantID)
}

// ScopeToTenant is the single composable predicate every tenant-owned query goes through.
func ScopeToTenant(q Filter, p identity.Principal, column string) error {
	s, err := For(p)
	if err != nil {
		return err
	}
	s.Apply(q, column)
	return nil
}
