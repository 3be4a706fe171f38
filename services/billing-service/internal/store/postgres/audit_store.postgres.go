package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/audit"
)

// PostgresAuditStore appends to audit_events. Rows are never updated.
type PostgresAuditStore struct {
	db *sql.DB
}

func NewPostgresAuditStore(db *sql.DB) *PostgresAuditStore {
	return &PostgresAuditStore{db: db}
}

func (store *PostgresAuditStore) Append(ctx context.Context, e *audit.Event) error {
	metadata := []byte("{}")
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode audit metadata: %w", err)
		}
		metadata = b
	}
	query := `
		INSERT INTO audit_events (id, actor_id, tenant_id, action, target_id, outcome, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := conn(ctx, store.db).ExecContext(ctx, query,
		e.ID, e.ActorID, e.TenantID, e.Action, e.TargetID, string(e.Outcome), metadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}
