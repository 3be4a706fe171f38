// services/billing-service/internal/invoice/invoice_editor.go

package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/audit"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/identity"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/policy"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/pricing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoicePatch holds the fields an operator may change on a DRAFT invoice.
// Nil fields are left alone. The total is never set directly: it is always
// the sum of the items.
type InvoicePatch struct {
	PeriodStart *time.Time
	PeriodEnd   *time.Time
	Items       *[]InvoiceItem
}

func (p InvoicePatch) empty() bool {
	return p.PeriodStart == nil && p.PeriodEnd == nil && p.Items == nil
}

// InvoiceEditor applies manual corrections to drafts.
type InvoiceEditor struct {
	invoices InvoiceStore
	tx       TransactionManager
	logger   *zap.Logger
	opts     options
}

func NewInvoiceEditor(store InvoiceStore, tx TransactionManager, logger *zap.Logger, opts ...Option) *InvoiceEditor {
	return &InvoiceEditor{invoices: store, tx: tx, logger: logger, opts: buildOptions(opts)}
}

// UpdateDraft applies patch to a DRAFT invoice. Anything past DRAFT fails with
// ErrInvoiceAlreadyFinalized and is left untouched.
func (e *InvoiceEditor) UpdateDraft(ctx context.Context, p identity.Principal, id uuid.UUID, patch InvoicePatch) (*Invoice, error) {
	if err := policy.Authorize(p, policy.UpdateInvoice); err != nil {
		return nil, err
	}
	if patch.empty() {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInvoice)
	}

	var updated *Invoice
	err := e.tx.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := e.invoices.GetInvoiceForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if err := policy.AuthorizeTenant(p, inv.TenantID); err != nil {
			return err
		}
		if err := inv.Editable(); err != nil {
			return err
		}
		if err := applyPatch(inv, patch); err != nil {
			return err
		}
		inv.UpdatedAt = e.opts.clock().UTC()
		// the store re-checks status; a concurrent finalize wins over this write
		if err := e.invoices.UpdateDraftInvoice(txCtx, inv); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.opts.auditor.Record(ctx, audit.Event{
		ActorID:  &p.ID,
		TenantID: &updated.TenantID,
		Action:   audit.ActionInvoiceUpdate,
		TargetID: &updated.ID,
		Outcome:  audit.OutcomeSuccess,
	})
	e.logger.Info("draft invoice updated", zap.String("invoice_id", id.String()))
	return updated, nil
}

func applyPatch(inv *Invoice, patch InvoicePatch) error {
	if patch.PeriodStart != nil {
		inv.PeriodStart = *patch.PeriodStart
	}
	if patch.PeriodEnd != nil {
		inv.PeriodEnd = *patch.PeriodEnd
	}
	if !inv.PeriodStart.Before(inv.PeriodEnd) {
		return fmt.Errorf("%w: start must be before end", pricing.ErrInvalidBillingPeriod)
	}

	if patch.Items == nil {
		return nil
	}
	items := make([]InvoiceItem, len(*patch.Items))
	for i, it := range *patch.Items {
		if err := checkItem(it); err != nil {
			return fmt.Errorf("%w: item %d %v", ErrInvalidInvoice, i, err)
		}
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.InvoiceID = inv.ID
		items[i] = it
	}
	inv.Items = items
	inv.ItemCount = len(items)
	inv.TotalAmount = SumItems(items)
	return nil
}

// checkItem requires total to match quantity x unit price within the rounding
// of a 4 place unit price and a 2 place total. Zero quantity items are flat
// charges and must carry a zero unit price.
func checkItem(it InvoiceItem) error {
	if it.Description == "" {
		return errors.New("has no description")
	}
	if it.Quantity.IsNegative() || it.Total.IsNegative() || it.UnitPrice.IsNegative() {
		return errors.New("has a negative amount")
	}
	if it.Quantity.IsZero() {
		if !it.UnitPrice.IsZero() {
			return errors.New("has a unit price but no quantity")
		}
		return nil
	}
	tolerance := it.Quantity.Mul(unitPriceSlack).Add(totalSlack)
	if it.Quantity.Mul(it.UnitPrice).Sub(it.Total).Abs().GreaterThan(tolerance) {
		return fmt.Errorf("total %s does not match %s x %s", it.Total, it.Quantity, it.UnitPrice)
	}
	return nil
}

var (
	unitPriceSlack = decimal.New(5, -5)
	totalSlack     = decimal.New(5, -3)
)

// DeleteDraft removes a DRAFT invoice and its items.
func (e *InvoiceEditor) DeleteDraft(ctx context.Context, p identity.Principal, id uuid.UUID) error {
	if err := policy.Authorize(p, policy.DeleteInvoice); err != nil {
		return err
	}
	var tenantID uuid.UUID
	err := e.tx.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := e.invoices.GetInvoiceForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if err := policy.AuthorizeTenant(p, inv.TenantID); err != nil {
			return err
		}
		if err := inv.Editable(); err != nil {
			return err
		}
		tenantID = inv.TenantID
		return e.invoices.DeleteDraftInvoice(txCtx, id)
	})
	if err != nil {
		return err
	}
	e.opts.auditor.Record(ctx, audit.Event{
		ActorID:  &p.ID,
		TenantID: &tenantID,
		Action:   audit.ActionInvoiceDelete,
		TargetID: &id,
		Outcome:  audit.OutcomeSuccess,
	})
	e.logger.Info("draft invoice deleted", zap.String("invoice_id", id.String()))
	return nil
}
