// services/billing-service/internal/policy/role_policy.go
package policy

import (
	"errors"
	"fmt"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/identity"
	"github.com/google/uuid"
)

var ErrForbidden = errors.New("operation not permitted")

// Action is a billing operation subject to authorization.
type Action string

const (
	ViewInvoice     Action = "invoice.view"
	GenerateInvoice Action = "invoice.generate"
	UpdateInvoice   Action = "invoice.update"
	DeleteInvoice   Action = "invoice.delete"
	FinalizeInvoice Action = "invoice.finalize"
	MarkInvoicePaid Action = "invoice.mark_paid"
	ViewTariffs     Action = "tariff.view"
	ManageTariffs   Action = "tariff.manage"
	RecordReading   Action = "reading.record"
)

var staff = []identity.Role{identity.RoleSuperadmin, identity.RoleAdmin, identity.RoleManager}

// matrix is the SINGLE SOURCE OF TRUTH for who may do what.
// Anything not listed is denied.
var matrix = map[Action][]identity.Role{
	ViewInvoice:     {identity.RoleSuperadmin, identity.RoleAdmin, identity.RoleManager, identity.RoleTenant},
	GenerateInvoice: staff,
	UpdateInvoice:   staff,
	DeleteInvoice:   staff,
	FinalizeInvoice: staff,
	MarkInvoicePaid: staff,
	ViewTariffs:     staff,
	ManageTariffs:   {identity.RoleSuperadmin},
	RecordReading:   staff,
}

// Authorize checks the role half of an operation. Tenant ownership of the
// target record is checked separately by AuthorizeTenant once it is loaded.
func Authorize(p identity.Principal, action Action) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	}
	for _, r := range matrix[action] {
		if r == p.Role {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s cannot perform %s", ErrForbidden, p.Role, action)
}

// AuthorizeTenant requires the principal to belong to tenantID unless it is a superadmin.
func AuthorizeTenant(p identity.Principal, tenantID uuid.UUID) error {
	if p.IsSuperadmin() {
		return nil
	}
	if p.TenantID == nil || *p.TenantID != tenantID {
		return fmt.Errorf("%w: tenant mismatch", ErrForbidden)
	}
	return nil
}
