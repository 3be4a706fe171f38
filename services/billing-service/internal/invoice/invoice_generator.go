// services/billing-service/internal/invoice/invoice_generator.go

package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/audit"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/billing"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/identity"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/policy"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/pricing"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/property"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tariff"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tenancy"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// meterWorkers bounds concurrent per-meter pricing for one invoice.
const meterWorkers = 4

// PremisesSource resolves a renter to the meters billed to them.
type PremisesSource interface {
	GetRenter(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (*property.Renter, error)
	ListMetersByProperty(ctx context.Context, scope tenancy.Scope, propertyID uuid.UUID) ([]property.Meter, error)
}

// LineCalculator prices one meter for a period.
type LineCalculator interface {
	MeterLines(ctx context.Context, scope tenancy.Scope, meter property.Meter, start, end time.Time) ([]billing.Line, error)
}

// InvoiceGenerator builds DRAFT invoices from meter readings and tariffs.
type InvoiceGenerator struct {
	premises PremisesSource
	calc     LineCalculator
	invoices InvoiceStore
	tx       TransactionManager
	// currency is used for invoices without items
	currency string
	logger   *zap.Logger
	opts     options
	flight   singleflight.Group
}

func NewInvoiceGenerator(
	premises PremisesSource,
	calc LineCalculator,
	invoices InvoiceStore,
	tx TransactionManager,
	currency string,
	logger *zap.Logger,
	opts ...Option,
) *InvoiceGenerator {
	return &InvoiceGenerator{
		premises: premises,
		calc:     calc,
		invoices: invoices,
		tx:       tx,
		currency: currency,
		logger:   logger,
		opts:     buildOptions(opts),
	}
}

// GenerateInvoice produces the DRAFT invoice of a renter for [start, end).
//
// Either the invoice and all its items are stored, or nothing is. An existing
// DRAFT for the same renter and period is replaced in the same transaction;
// an existing FINALIZED or PAID one fails with ErrInvoiceAlreadyFinalized.
// Concurrent calls for the same renter and period share one computation.
func (g *InvoiceGenerator) GenerateInvoice(ctx context.Context, p identity.Principal, renterID uuid.UUID, start, end time.Time) (*Invoice, error) {
	began := g.opts.clock()
	inv, err := g.generate(ctx, p, renterID, start, end)
	g.opts.metrics.InvoiceGenerated(generationOutcome(err), g.opts.clock().Sub(began))
	if err != nil {
		g.logger.Warn("invoice generation failed",
			zap.String("renter_id", renterID.String()),
			zap.String("principal_id", p.ID.String()),
			zap.Error(err))
		return nil, err
	}
	return inv, nil
}

func (g *InvoiceGenerator) generate(ctx context.Context, p identity.Principal, renterID uuid.UUID, start, end time.Time) (*Invoice, error) {
	if err := policy.Authorize(p, policy.GenerateInvoice); err != nil {
		return nil, err
	}
	scope, err := tenancy.For(p)
	if err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start %s is not before end %s", pricing.ErrInvalidBillingPeriod, start, end)
	}

	// the scope is part of the key so a caller never receives another tenant's result
	key := fmt.Sprintf("%s|%s|%d|%d", scope, renterID, start.UnixNano(), end.UnixNano())
	// the shared computation must outlive any single caller giving up
	flightCtx := context.WithoutCancel(ctx)
	ch := g.flight.DoChan(key, func() (interface{}, error) {
		return g.build(flightCtx, scope, renterID, start, end)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	inv := res.Val.(*Invoice)

	// every caller gets its own audit record, even when the work was shared
	g.opts.auditor.Record(ctx, audit.Event{
		ActorID:  &p.ID,
		TenantID: &inv.TenantID,
		Action:   audit.ActionInvoiceGenerate,
		TargetID: &inv.ID,
		Outcome:  audit.OutcomeSuccess,
		Metadata: map[string]any{"items": len(inv.Items), "total": inv.TotalAmount.StringFixed(2), "shared": res.Shared},
	})
	return inv, nil
}

func (g *InvoiceGenerator) build(ctx context.Context, scope tenancy.Scope, renterID uuid.UUID, start, end time.Time) (*Invoice, error) {
	// 1. Resolve the renter and the meters of the property they occupy
	renter, err := g.premises.GetRenter(ctx, scope, renterID)
	if err != nil {
		return nil, err
	}
	meters, err := g.premises.ListMetersByProperty(ctx, scope, renter.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch meters: %w", err)
	}

	// 2. Price every meter. Any failure aborts the whole invoice.
	perMeter := make([][]billing.Line, len(meters))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(meterWorkers)
	for i := range meters {
		eg.Go(func() error {
			lines, err := g.calc.MeterLines(egCtx, scope, meters[i], start, end)
			if err != nil {
				return err
			}
			perMeter[i] = lines
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// 3. Assemble the header and items
	now := g.opts.clock().UTC()
	inv := &Invoice{
		ID:          uuid.New(),
		TenantID:    renter.TenantID,
		RenterID:    renter.ID,
		PeriodStart: start,
		PeriodEnd:   end,
		Currency:    g.currency,
		Status:      InvoiceDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, lines := range perMeter {
		for _, l := range lines {
			if len(inv.Items) == 0 {
				inv.Currency = l.Currency
			} else if l.Currency != inv.Currency {
				return nil, fmt.Errorf("%w: %s and %s on one invoice", tariff.ErrCurrencyMismatch, inv.Currency, l.Currency)
			}
			meterID, tariffID := l.MeterID, l.TariffID
			inv.Items = append(inv.Items, InvoiceItem{
				ID:          uuid.New(),
				InvoiceID:   inv.ID,
				MeterID:     &meterID,
				TariffID:    &tariffID,
				Description: l.Description,
				Quantity:    l.Quantity,
				Unit:        l.Unit,
				UnitPrice:   l.UnitPrice,
				Total:       l.Total,
			})
		}
	}
	inv.TotalAmount = SumItems(inv.Items)
	inv.ItemCount = len(inv.Items)

	// 4. Persist atomically, replacing a previous draft for the same period
	err = g.tx.RunInTx(ctx, func(txCtx context.Context) error {
		existing, err := g.invoices.FindInvoiceForPeriod(txCtx, scope, renter.ID, start, end)
		if err != nil {
			return fmt.Errorf("failed to look up existing invoice: %w", err)
		}
		if existing != nil {
			if err := existing.Editable(); err != nil {
				return err
			}
			if err := g.invoices.DeleteDraftInvoice(txCtx, existing.ID); err != nil {
				return fmt.Errorf("failed to replace draft %s: %w", existing.ID, err)
			}
		}
		if err := g.invoices.CreateInvoice(txCtx, inv); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, g.opts, g.logger, EventInvoiceGenerated, inv)
	g.logger.Info("invoice generated",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("tenant_id", inv.TenantID.String()),
		zap.String("renter_id", inv.RenterID.String()),
		zap.Int("items", len(inv.Items)),
		zap.String("total", inv.TotalAmount.StringFixed(2)))
	return inv, nil
}

// FindExisting returns the renter's invoice for exactly [start, end), or nil.
func (g *InvoiceGenerator) FindExisting(ctx context.Context, p identity.Principal, renterID uuid.UUID, start, end time.Time) (*Invoice, error) {
	if err := policy.Authorize(p, policy.ViewInvoice); err != nil {
		return nil, err
	}
	scope, err := tenancy.For(p)
	if err != nil {
		return nil, err
	}
	return g.invoices.FindInvoiceForPeriod(ctx, scope, renterID, start, end)
}

func generationOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, billing.ErrNoApplicableTariff):
		return "no_tariff"
	case errors.Is(err, ErrInvoiceAlreadyFinalized):
		return "already_finalized"
	case errors.Is(err, policy.ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}
