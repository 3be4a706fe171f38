// services/billing-service/internal/invoice/options.go

package invoice

import (
	"context"
	"time"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/audit"
	"go.uber.org/zap"
)

// EventPublisher is satisfied by the shared kafka and rabbitmq publishers.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

// Auditor records security relevant outcomes. It must not fail the operation.
type Auditor interface {
	Record(ctx context.Context, ev audit.Event)
}

// Metrics receives operation outcomes.
type Metrics interface {
	InvoiceGenerated(outcome string, took time.Duration)
	FinalizeAttempt(outcome string)
}

// Limiter throttles callers. Allow returns a *ratelimit.LimitError when the key is over budget.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

type options struct {
	publisher EventPublisher
	auditor   Auditor
	metrics   Metrics
	limiter   Limiter
	clock     func() time.Time
}

type Option func(*options)

func WithPublisher(p EventPublisher) Option { return func(o *options) { o.publisher = p } }
func WithAuditor(a Auditor) Option          { return func(o *options) { o.auditor = a } }
func WithMetrics(m Metrics) Option          { return func(o *options) { o.metrics = m } }
func WithLimiter(l Limiter) Option          { return func(o *options) { o.limiter = l } }
func WithClock(c func() time.Time) Option   { return func(o *options) { o.clock = c } }

func buildOptions(opts []Option) options {
	o := options{
		publisher: nopPublisher{},
		auditor:   nopAuditor{},
		metrics:   nopMetrics{},
		limiter:   nopLimiter{},
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, interface{}) error { return nil }

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, audit.Event) {}

type nopMetrics struct{}

func (nopMetrics) InvoiceGenerated(string, time.Duration) {}
func (nopMetrics) FinalizeAttempt(string)                 {}

type nopLimiter struct{}

func (nopLimiter) Allow(context.Context, string) error { return nil }

// Lifecycle event types.
const (
	EventInvoiceGenerated = "invoice.generated"
	EventInvoiceFinalized = "invoice.finalized"
	EventInvoicePaid      = "invoice.paid"
)

// LifecycleEvent is the payload published after a committed transition.
type LifecycleEvent struct {
	Type        string    `json:"type"`
	InvoiceID   string    `json:"invoice_id"`
	TenantID    string    `json:"tenant_id"`
	RenterID    string    `json:"renter_id"`
	Status      string    `json:"status"`
	TotalAmount string    `json:"total_amount"`
	Currency    string    `json:"currency"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func newLifecycleEvent(eventType string, inv *Invoice, at time.Time) LifecycleEvent {
	return LifecycleEvent{
		Type:        eventType,
		InvoiceID:   inv.ID.String(),
		TenantID:    inv.TenantID.String(),
		RenterID:    inv.RenterID.String(),
		Status:      string(inv.Status),
		TotalAmount: inv.TotalAmount.StringFixed(2),
		Currency:    inv.Currency,
		OccurredAt:  at,
	}
}

// publish is best effort: the transition is already committed.
func publish(ctx context.Context, o options, logger *zap.Logger, eventType string, inv *Invoice) {
	ev := newLifecycleEvent(eventType, inv, o.clock().UTC())
	if err := o.publisher.Publish(ctx, inv.ID.String(), ev); err != nil {
		logger.Warn("failed to publish invoice event",
			zap.String("event", eventType),
			zap.String("invoice_id", inv.ID.String()),
			zap.Error(err))
	}
}
