// services/billing-service/internal/invoice/invoice_reader.go

package invoice

import (
	"context"
	"fmt"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/identity"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/policy"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tenancy"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Page is one slice of a listing plus the size of the whole result.
type Page struct {
	Invoices []Invoice
	Total    int
	Limit    int
	Offset   int
}

// InvoiceReader serves tenant-scoped reads. Invoices of other tenants are
// reported as not found, never as forbidden. Tenant-role callers only see
// the invoices of the renter they are bound to.
type InvoiceReader struct {
	invoices InvoiceStore
}

func NewInvoiceReader(store InvoiceStore) *InvoiceReader {
	return &InvoiceReader{invoices: store}
}

func (r *InvoiceReader) GetInvoice(ctx context.Context, p identity.Principal, id uuid.UUID) (*Invoice, error) {
	scope, err := readScope(p)
	if err != nil {
		return nil, err
	}
	inv, err := r.invoices.GetInvoiceByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if renterID, ok := p.BoundRenter(); ok && inv.RenterID != renterID {
		return nil, fmt.Errorf("%w: %s", ErrInvoiceNotFound, id)
	}
	return inv, nil
}

// ListInvoices returns one page and the total count under the same filter.
func (r *InvoiceReader) ListInvoices(ctx context.Context, p identity.Principal, filter ListFilter) (*Page, error) {
	scope, err := readScope(p)
	if err != nil {
		return nil, err
	}
	if renterID, ok := p.BoundRenter(); ok {
		filter.RenterID = &renterID
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInvoice, filter.Status)
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultPageSize
	case filter.Limit > maxPageSize:
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	page := &Page{Limit: filter.Limit, Offset: filter.Offset}
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		invoices, err := r.invoices.ListInvoices(gCtx, scope, filter)
		if err != nil {
			return fmt.Errorf("failed to list invoices: %w", err)
		}
		page.Invoices = invoices
		return nil
	})
	g.Go(func() error {
		total, err := r.invoices.CountInvoices(gCtx, scope, filter)
		if err != nil {
			return fmt.Errorf("failed to count invoices: %w", err)
		}
		page.Total = total
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return page, nil
}

func readScope(p identity.Principal) (tenancy.Scope, error) {
	if err := policy.Authorize(p, policy.ViewInvoice); err != nil {
		return tenancy.Scope{}, err
	}
	return tenancy.For(p)
}
