//services/billing-service/internal/invoice/invoice_finalizer.go

package invoice

import (
	"context"
	"errors"
	"fmt"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/audit"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/identity"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/policy"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/ratelimit"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InvoiceFinalizer drives the DRAFT -> FINALIZED -> PAID transitions.
type InvoiceFinalizer struct {
	invoices InvoiceStore
	tx       TransactionManager
	logger   *zap.Logger
	opts     options
}

func NewInvoiceFinalizer(store InvoiceStore, tx TransactionManager, logger *zap.Logger, opts ...Option) *InvoiceFinalizer {
	return &InvoiceFinalizer{
		invoices: store,
		tx:       tx,
		logger:   logger,
		opts:     buildOptions(opts),
	}
}

// FinalizeInvoice transitions an invoice from DRAFT -> FINALIZED.
//
// Checks run in this order: role, rate limit, tenant, state, integrity.
// The write itself is a compare-and-swap on status, so of two concurrent
// calls exactly one wins and the other sees ErrInvoiceAlreadyFinalized.
func (f *InvoiceFinalizer) FinalizeInvoice(ctx context.Context, p identity.Principal, invoiceID uuid.UUID) (*Invoice, error) {
	ev := audit.Event{
		ActorID:  &p.ID,
		TenantID: p.TenantID,
		Action:   audit.ActionInvoiceFinalize,
		TargetID: &invoiceID,
	}

	// 1. Role check. A tenant-role principal never finalizes, whatever the invoice looks like.
	if err := policy.Authorize(p, policy.FinalizeInvoice); err != nil {
		f.finish(ctx, ev, nil, err)
		return nil, err
	}

	// 2. Throttle per principal, independent of the state machine's own idempotence
	if err := f.opts.limiter.Allow(ctx, "finalize:"+p.ID.String()); err != nil {
		f.finish(ctx, ev, nil, err)
		return nil, err
	}

	ev.Outcome = audit.OutcomeAttempt
	f.opts.auditor.Record(ctx, ev)

	var finalized *Invoice
	err := f.tx.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := f.invoices.GetInvoiceForUpdate(txCtx, invoiceID)
		if err != nil {
			return err
		}
		// 3. Tenant check, repeated here independently of any caller-side filtering
		if err := policy.AuthorizeTenant(p, inv.TenantID); err != nil {
			return err
		}
		// 4. State validation (the gatekeeper)
		if err := checkTransition(inv.Status, InvoiceFinalized); err != nil {
			return err
		}
		// 5. Integrity validation
		if err := ValidateForFinalization(inv); err != nil {
			return err
		}
		// 6. Atomic state transition (UPDATE ... WHERE status = 'DRAFT')
		now := f.opts.clock().UTC()
		if err := f.invoices.FinalizeInvoice(txCtx, invoiceID, now); err != nil {
			return err
		}
		inv.Status = InvoiceFinalized
		inv.FinalizedAt = &now
		inv.UpdatedAt = now
		finalized = inv
		return nil
	})
	f.finish(ctx, ev, finalized, err)
	if err != nil {
		return nil, err
	}

	publish(ctx, f.opts, f.logger, EventInvoiceFinalized, finalized)
	return finalized, nil
}

// finish writes the outcome audit record and metric for a finalize call.
func (f *InvoiceFinalizer) finish(ctx context.Context, ev audit.Event, inv *Invoice, err error) {
	outcome := finalizeOutcome(err)
	ev.Outcome = outcome
	if inv != nil {
		ev.TenantID = &inv.TenantID
	}
	if err != nil {
		ev.Metadata = map[string]any{"reason": err.Error()}
		var vErr *FinalizationValidationError
		if errors.As(err, &vErr) {
			ev.Metadata["failed_checks"] = vErr.Reasons()
		}
	}
	f.opts.auditor.Record(ctx, ev)
	f.opts.metrics.FinalizeAttempt(string(outcome))

	if err != nil {
		f.logger.Info("invoice finalize rejected",
			zap.String("invoice_id", ev.TargetID.String()),
			zap.String("principal_id", ev.ActorID.String()),
			zap.String("outcome", string(outcome)),
			zap.Error(err))
		return
	}
	f.logger.Info("invoice finalized",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("tenant_id", inv.TenantID.String()),
		zap.String("principal_id", ev.ActorID.String()))
}

func finalizeOutcome(err error) audit.Outcome {
	switch {
	case err == nil:
		return audit.OutcomeSuccess
	case errors.Is(err, policy.ErrForbidden):
		return audit.OutcomeDenied
	case errors.Is(err, ratelimit.ErrRateLimited):
		return audit.OutcomeRateLimited
	case errors.Is(err, ErrFinalizationValidation):
		return audit.OutcomeValidationFailed
	case errors.Is(err, ErrInvoiceAlreadyFinalized), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrInvoiceNotFound):
		return audit.OutcomeRejected
	default:
		return audit.OutcomeError
	}
}

//-------------------------------!!After Payment Phase !!-----------------------------------

// MarkPaid records that a FINALIZED invoice has been paid. Collecting the
// payment happens elsewhere; this only moves the state machine.
func (f *InvoiceFinalizer) MarkPaid(ctx context.Context, p identity.Principal, invoiceID uuid.UUID) (*Invoice, error) {
	if err := policy.Authorize(p, policy.MarkInvoicePaid); err != nil {
		return nil, err
	}

	var paid *Invoice
	err := f.tx.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := f.invoices.GetInvoiceForUpdate(txCtx, invoiceID)
		if err != nil {
			return err
		}
		if err := policy.AuthorizeTenant(p, inv.TenantID); err != nil {
			return err
		}
		if err := checkTransition(inv.Status, InvoicePaid); err != nil {
			return err
		}
		now := f.opts.clock().UTC()
		if err := f.invoices.MarkInvoicePaid(txCtx, invoiceID, now); err != nil {
			return fmt.Errorf("failed to mark invoice paid: %w", err)
		}
		inv.Status = InvoicePaid
		inv.PaidAt = &now
		inv.UpdatedAt = now
		paid = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.opts.auditor.Record(ctx, audit.Event{
		ActorID:  &p.ID,
		TenantID: &paid.TenantID,
		Action:   audit.ActionInvoiceMarkPaid,
		TargetID: &paid.ID,
		Outcome:  audit.OutcomeSuccess,
	})
	publish(ctx, f.opts, f.logger, EventInvoicePaid, paid)
	f.logger.Info("invoice marked paid",
		zap.String("invoice_id", paid.ID.String()),
		zap.String("tenant_id", paid.TenantID.String()))
	return paid, nil
}
