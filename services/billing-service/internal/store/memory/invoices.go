// services/billing-service/internal/store/memory/invoices.go
package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/invoice"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tenancy"
	"github.com/google/uuid"
)

func (s *MemoryStore) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	return s.write(ctx, func(d *dataset) error {
		for _, existing := range d.invoices {
			if existing.RenterID == inv.RenterID &&
				existing.PeriodStart.Equal(inv.PeriodStart) && existing.PeriodEnd.Equal(inv.PeriodEnd) {
				return invoice.ErrDuplicateInvoice
			}
		}
		stored := copyInvoice(*inv)
		stored.ItemCount = len(stored.Items)
		d.invoices[inv.ID] = stored
		return nil
	})
}

func (s *MemoryStore) GetInvoiceByID(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (*invoice.Invoice, error) {
	var out invoice.Invoice
	err := s.read(ctx, func(d *dataset) error {
		inv, ok := d.invoices[id]
		if !ok || !scope.Allows(inv.TenantID) {
			return invoice.ErrInvoiceNotFound
		}
		out = copyInvoice(inv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MemoryStore) GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	return s.GetInvoiceByID(ctx, tenancy.System(), id)
}

func (s *MemoryStore) FindInvoiceForPeriod(ctx context.Context, scope tenancy.Scope, renterID uuid.UUID, start, end time.Time) (*invoice.Invoice, error) {
	var out *invoice.Invoice
	err := s.read(ctx, func(d *dataset) error {
		for _, inv := range d.invoices {
			if inv.RenterID == renterID && scope.Allows(inv.TenantID) &&
				inv.PeriodStart.Equal(start) && inv.PeriodEnd.Equal(end) {
				cp := copyInvoice(inv)
				out = &cp
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (s *MemoryStore) ListInvoices(ctx context.Context, scope tenancy.Scope, f invoice.ListFilter) ([]invoice.Invoice, error) {
	var out []invoice.Invoice
	err := s.read(ctx, func(d *dataset) error {
		out = filterInvoices(d, scope, f)
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PeriodStart.Equal(out[j].PeriodStart) {
			return out[i].PeriodStart.After(out[j].PeriodStart)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	out = page(out, f.Limit, f.Offset)
	for i := range out {
		out[i].Items = nil
	}
	return out, err
}

func (s *MemoryStore) CountInvoices(ctx context.Context, scope tenancy.Scope, f invoice.ListFilter) (int, error) {
	var n int
	err := s.read(ctx, func(d *dataset) error {
		n = len(filterInvoices(d, scope, f))
		return nil
	})
	return n, err
}

func filterInvoices(d *dataset, scope tenancy.Scope, f invoice.ListFilter) []invoice.Invoice {
	var out []invoice.Invoice
	for _, inv := range d.invoices {
		if !scope.Allows(inv.TenantID) {
			continue
		}
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		if f.RenterID != nil && inv.RenterID != *f.RenterID {
			continue
		}
		if f.PeriodFrom != nil && !inv.PeriodEnd.After(*f.PeriodFrom) {
			continue
		}
		if f.PeriodTo != nil && !inv.PeriodStart.Before(*f.PeriodTo) {
			continue
		}
		out = append(out, inv)
	}
	return out
}

// UpdateDraftInvoice enforces immutability itself: a non-DRAFT row is never touched.
func (s *MemoryStore) UpdateDraftInvoice(ctx context.Context, inv *invoice.Invoice) error {
	return s.write(ctx, func(d *dataset) error {
		cur, ok := d.invoices[inv.ID]
		if !ok {
			return invoice.ErrInvoiceNotFound
		}
		if cur.Status != invoice.InvoiceDraft {
			return invoice.ErrInvoiceAlreadyFinalized
		}
		cur.PeriodStart = inv.PeriodStart
		cur.PeriodEnd = inv.PeriodEnd
		cur.TotalAmount = inv.TotalAmount
		cur.UpdatedAt = inv.UpdatedAt
		if inv.Items != nil {
			cur.Items = append([]invoice.InvoiceItem(nil), inv.Items...)
			cur.ItemCount = len(cur.Items)
		}
		d.invoices[inv.ID] = cur
		return nil
	})
}

func (s *MemoryStore) DeleteDraftInvoice(ctx context.Context, id uuid.UUID) error {
	return s.write(ctx, func(d *dataset) error {
		cur, ok := d.invoices[id]
		if !ok {
			return invoice.ErrInvoiceNotFound
		}
		if cur.Status != invoice.InvoiceDraft {
			return invoice.ErrInvoiceAlreadyFinalized
		}
		delete(d.invoices, id)
		return nil
	})
}

func (s *MemoryStore) FinalizeInvoice(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.write(ctx, func(d *dataset) error {
		cur, ok := d.invoices[id]
		if !ok {
			return invoice.ErrInvoiceNotFound
		}
		if cur.Status != invoice.InvoiceDraft {
			return invoice.ErrInvoiceAlreadyFinalized
		}
		cur.Status = invoice.InvoiceFinalized
		cur.FinalizedAt = &at
		cur.UpdatedAt = at
		d.invoices[id] = cur
		return nil
	})
}

func (s *MemoryStore) MarkInvoicePaid(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.write(ctx, func(d *dataset) error {
		cur, ok := d.invoices[id]
		if !ok {
			return invoice.ErrInvoiceNotFound
		}
		if cur.Status != invoice.InvoiceFinalized {
			return invoice.ErrInvalidTransition
		}
		cur.Status = invoice.InvoicePaid
		cur.PaidAt = &at
		cur.UpdatedAt = at
		d.invoices[id] = cur
		return nil
	})
}
