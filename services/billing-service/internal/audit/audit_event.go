// services/billing-service/internal/audit/audit_event.go
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event is an immutable record of a billing action.
// It answers: who did what, to which invoice, in which tenant, and how it ended.
type Event struct {
	ID        uuid.UUID
	ActorID   *uuid.UUID // nil for system actions
	TenantID  *uuid.UUID
	Action    string
	TargetID  *uuid.UUID
	Outcome   Outcome
	Metadata  map[string]any
	CreatedAt time.Time
}

const (
	ActionInvoiceGenerate = "INVOICE_GENERATE"
	ActionInvoiceFinalize = "INVOICE_FINALIZE"
	ActionInvoiceMarkPaid = "INVOICE_MARK_PAID"
	ActionInvoiceUpdate   = "INVOICE_UPDATE"
	ActionInvoiceDelete   = "INVOICE_DELETE"
)

type Outcome string

const (
	OutcomeAttempt          Outcome = "attempt"
	OutcomeSuccess          Outcome = "success"
	OutcomeDenied           Outcome = "denied"
	OutcomeRateLimited      Outcome = "rate_limited"
	OutcomeValidationFailed Outcome = "validation_failed"
	OutcomeRejected         Outcome = "rejected"
	OutcomeError            Outcome = "error"
)

// Store is write only. Audit rows are never updated or deleted by the application.
type Store interface {
	Append(ctx context.Context, event *Event) error
}

// Recorder writes every event to the log and, when a store is configured, to the database.
// Failures to persist are logged and never surface to the caller.
type Recorder struct {
	store  Store
	logger *zap.Logger
	clock  func() time.Time
}

// NewRecorder accepts a nil store for log-only auditing.
func NewRecorder(store Store, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, logger: logger.Named("audit"), clock: time.Now}
}

func (r *Recorder) Record(ctx context.Context, ev Event) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = r.clock().UTC()
	}

	fields := []zap.Field{
		zap.String("audit_id", ev.ID.String()),
		zap.String("action", ev.Action),
		zap.String("outcome", string(ev.Outcome)),
		optionalID("principal_id", ev.ActorID),
		optionalID("tenant_id", ev.TenantID),
		optionalID("invoice_id", ev.TargetID),
	}
	if len(ev.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", ev.Metadata))
	}
	r.logger.Info("audit", fields...)

	if r.store == nil {
		return
	}
	if err := r.store.Append(ctx, &ev); err != nil {
		r.logger.Warn("failed to persist audit event", zap.String("audit_id", ev.ID.String()), zap.Error(err))
	}
}

func optionalID(key string, id *uuid.UUID) zap.Field {
	if id == nil {
		return zap.Skip()
	}
	return zap.String(key, id.String())
}
