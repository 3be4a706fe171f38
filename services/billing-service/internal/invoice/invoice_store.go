// services/billing-service/internal/invoice/invoice_store.go

package invoice

import (
	"context"
	"time"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tenancy"
	"github.com/google/uuid"
)

// ListFilter narrows invoice listings. Zero fields match everything.
type ListFilter struct {
	Status   InvoiceStatus
	RenterID *uuid.UUID
	// PeriodFrom/PeriodTo select invoices whose billing period intersects the window.
	PeriodFrom *time.Time
	PeriodTo   *time.Time
	Limit      int
	Offset     int
}

// InvoiceStore handles persistence operations for invoices.
// Placed in the invoice package to avoid import cycles between store and invoice.
//
// Reads take a scope and report rows outside it as ErrInvoiceNotFound.
// Writes are conditional on status at the storage layer, not just here.
type InvoiceStore interface {
	// CreateInvoice persists header and items atomically.
	CreateInvoice(ctx context.Context, inv *Invoice) error

	GetInvoiceByID(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (*Invoice, error)

	// GetInvoiceForUpdate loads the invoice with its items and locks it for the
	// surrounding transaction. Tenant checks are the caller's job.
	GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindInvoiceForPeriod returns nil, nil when the renter has no invoice for the period.
	FindInvoiceForPeriod(ctx context.Context, scope tenancy.Scope, renterID uuid.UUID, start, end time.Time) (*Invoice, error)

	ListInvoices(ctx context.Context, scope tenancy.Scope, filter ListFilter) ([]Invoice, error)
	CountInvoices(ctx context.Context, scope tenancy.Scope, filter ListFilter) (int, error)

	// UpdateDraftInvoice rewrites period, total and items WHERE status = 'DRAFT'.
	// It returns ErrInvoiceAlreadyFinalized when the row has left DRAFT.
	UpdateDraftInvoice(ctx context.Context, inv *Invoice) error

	DeleteDraftInvoice(ctx context.Context, id uuid.UUID) error

	// FinalizeInvoice performs DRAFT -> FINALIZED as a compare-and-swap.
	FinalizeInvoice(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkInvoicePaid performs FINALIZED -> PAID as a compare-and-swap.
	MarkInvoicePaid(ctx context.Context, id uuid.UUID, at time.Time) error
}

// TransactionManager abstracts the database transaction.
// Stores called with the ctx handed to fn join the transaction.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
