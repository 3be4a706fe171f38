//services/billing-service/internal/store/postgres/invoice_store.postgres.go

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/invoice"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tenancy"
	"github.com/google/uuid"
)

type PostgresInvoiceStore struct {
	db *sql.DB
}

func NewPostgresInvoiceStore(db *sql.DB) *PostgresInvoiceStore {
	return &PostgresInvoiceStore{db: db}
}

const invoiceColumns = `id, tenant_id, renter_id, period_start, period_end, total_amount, currency, status, finalized_at, paid_at, created_at, updated_at`

// CreateInvoice inserts the header and its items in one transaction.
func (store *PostgresInvoiceStore) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	return inTx(ctx, store.db, func(q querier) error {
		headerQuery := `
			INSERT INTO invoices (` + invoiceColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
		_, err := q.ExecContext(ctx, headerQuery,
			inv.ID,
			inv.TenantID,
			inv.RenterID,
			inv.PeriodStart,
			inv.PeriodEnd,
			inv.TotalAmount,
			inv.Currency,
			inv.Status,
			inv.FinalizedAt,
			inv.PaidAt,
			inv.CreatedAt,
			inv.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return invoice.ErrDuplicateInvoice
			}
			return fmt.Errorf("failed to insert invoice header: %w", err)
		}
		return insertItems(ctx, q, inv.ID, inv.Items)
	})
}

func insertItems(ctx context.Context, q querier, invoiceID uuid.UUID, items []invoice.InvoiceItem) error {
	if len(items) == 0 {
		return nil
	}
	lineQuery := `
		INSERT INTO invoice_items (id, invoice_id, position, meter_id, tariff_id, description, quantity, unit, unit_price, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	// We use the prepared statement for efficiency in loops
	stmt, err := q.PrepareContext(ctx, lineQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare item statement: %w", err)
	}
	defer stmt.Close()

	for i, it := range items {
		_, err = stmt.ExecContext(ctx,
			it.ID,
			invoiceID,
			i,
			it.MeterID,
			it.TariffID,
			it.Description,
			it.Quantity,
			it.Unit,
			it.UnitPrice,
			it.Total,
		)
		if err != nil {
			if isImmutable(err) {
				return invoice.ErrInvoiceAlreadyFinalized
			}
			return fmt.Errorf("failed to insert invoice item: %w", err)
		}
	}
	return nil
}

func (store *PostgresInvoiceStore) GetInvoiceByID(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (*invoice.Invoice, error) {
	q := newSelect(`SELECT ` + invoiceColumns + ` FROM invoices`)
	q.Where("id = ?", id)
	scope.Apply(q, "tenant_id")
	return store.fetchOne(ctx, q)
}

// GetInvoiceForUpdate row-locks the invoice until the surrounding transaction ends.
func (store *PostgresInvoiceStore) GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	q := newSelect(`SELECT ` + invoiceColumns + ` FROM invoices`)
	q.Where("id = ?", id)
	q.Tail("FOR UPDATE")
	return store.fetchOne(ctx, q)
}

func (store *PostgresInvoiceStore) FindInvoiceForPeriod(ctx context.Context, scope tenancy.Scope, renterID uuid.UUID, start, end time.Time) (*invoice.Invoice, error) {
	q := newSelect(`SELECT ` + invoiceColumns + ` FROM invoices`)
	q.Where("renter_id = ?", renterID)
	q.Where("period_start = ? AND period_end = ?", start, end)
	scope.Apply(q, "tenant_id")
	inv, err := store.fetchOne(ctx, q)
	if errors.Is(err, invoice.ErrInvoiceNotFound) {
		return nil, nil
	}
	return inv, err
}

// fetchOne loads a header and its items.
func (store *PostgresInvoiceStore) fetchOne(ctx context.Context, q *selectQuery) (*invoice.Invoice, error) {
	db := conn(ctx, store.db)
	inv, err := scanInvoice(db.QueryRowContext(ctx, q.SQL(), q.Args()...), false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, invoice.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoice header: %w", err)
	}

	itemsQuery := `
		SELECT id, invoice_id, meter_id, tariff_id, description, quantity, unit, unit_price, total
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY position`
	rows, err := db.QueryContext(ctx, itemsQuery, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoice items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it       invoice.InvoiceItem
			meterID  uuid.NullUUID
			tariffID uuid.NullUUID
		)
		if err := rows.Scan(&it.ID, &it.InvoiceID, &meterID, &tariffID, &it.Description,
			&it.Quantity, &it.Unit, &it.UnitPrice, &it.Total); err != nil {
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}
		if meterID.Valid {
			it.MeterID = &meterID.UUID
		}
		if tariffID.Valid {
			it.TariffID = &tariffID.UUID
		}
		inv.Items = append(inv.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	inv.ItemCount = len(inv.Items)
	return inv, nil
}

func (store *PostgresInvoiceStore) ListInvoices(ctx context.Context, scope tenancy.Scope, f invoice.ListFilter) ([]invoice.Invoice, error) {
	q := newSelect(`SELECT ` + invoiceColumns + `,
		(SELECT count(*) FROM invoice_items it WHERE it.invoice_id = invoices.id) AS item_count
		FROM invoices`)
	applyInvoiceFilter(q, scope, f)
	q.Tail("ORDER BY period_start DESC, id")
	if f.Limit > 0 {
		q.Tail("LIMIT ?", f.Limit)
	}
	if f.Offset > 0 {
		q.Tail("OFFSET ?", f.Offset)
	}

	rows, err := conn(ctx, store.db).QueryContext(ctx, q.SQL(), q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var out []invoice.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows, true)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func (store *PostgresInvoiceStore) CountInvoices(ctx context.Context, scope tenancy.Scope, f invoice.ListFilter) (int, error) {
	q := newSelect(`SELECT count(*) FROM invoices`)
	applyInvoiceFilter(q, scope, f)
	var n int
	if err := conn(ctx, store.db).QueryRowContext(ctx, q.SQL(), q.Args()...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	return n, nil
}

func applyInvoiceFilter(q *selectQuery, scope tenancy.Scope, f invoice.ListFilter) {
	scope.Apply(q, "tenant_id")
	if f.Status != "" {
		q.Where("status = ?", f.Status)
	}
	if f.RenterID != nil {
		q.Where("renter_id = ?", *f.RenterID)
	}
	if f.PeriodFrom != nil {
		q.Where("period_end > ?", *f.PeriodFrom)
	}
	if f.PeriodTo != nil {
		q.Where("period_start < ?", *f.PeriodTo)
	}
}

func scanInvoice(s scanner, withCount bool) (*invoice.Invoice, error) {
	var (
		inv                 invoice.Invoice
		finalizedAt, paidAt sql.NullTime
	)
	dest := []any{
		&inv.ID,
		&inv.TenantID,
		&inv.RenterID,
		&inv.PeriodStart,
		&inv.PeriodEnd,
		&inv.TotalAmount,
		&inv.Currency,
		&inv.Status,
		&finalizedAt,
		&paidAt,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	}
	if withCount {
		dest = append(dest, &inv.ItemCount)
	}
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	if finalizedAt.Valid {
		inv.FinalizedAt = &finalizedAt.Time
	}
	if paidAt.Valid {
		inv.PaidAt = &paidAt.Time
	}
	return &inv, nil
}

// UpdateDraftInvoice rewrites a DRAFT. Items are replaced only when inv.Items is non-nil.
func (store *PostgresInvoiceStore) UpdateDraftInvoice(ctx context.Context, inv *invoice.Invoice) error {
	return inTx(ctx, store.db, func(q querier) error {
		query := `
			UPDATE invoices
			SET period_start = $2, period_end = $3, total_amount = $4, updated_at = $5
			WHERE id = $1 AND status = 'DRAFT'`
		res, err := q.ExecContext(ctx, query, inv.ID, inv.PeriodStart, inv.PeriodEnd, inv.TotalAmount, inv.UpdatedAt)
		if err != nil {
			return mapWriteError(err, "failed to update invoice")
		}
		if err := store.afterCAS(ctx, q, res, inv.ID, invoice.ErrInvoiceAlreadyFinalized); err != nil {
			return err
		}
		if inv.Items == nil {
			return nil
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, inv.ID); err != nil {
			return mapWriteError(err, "failed to clear invoice items")
		}
		return insertItems(ctx, q, inv.ID, inv.Items)
	})
}

// DeleteDraftInvoice removes a DRAFT; items go with it through ON DELETE CASCADE.
func (store *PostgresInvoiceStore) DeleteDraftInvoice(ctx context.Context, id uuid.UUID) error {
	q := conn(ctx, store.db)
	res, err := q.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1 AND status = 'DRAFT'`, id)
	if err != nil {
		return mapWriteError(err, "failed to delete invoice")
	}
	return store.afterCAS(ctx, q, res, id, invoice.ErrInvoiceAlreadyFinalized)
}

// FinalizeInvoice only moves a DRAFT. This prevents double finalization at the DB level.
func (store *PostgresInvoiceStore) FinalizeInvoice(ctx context.Context, id uuid.UUID, at time.Time) error {
	q := conn(ctx, store.db)
	query := `
		UPDATE invoices
		SET status = 'FINALIZED', finalized_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'DRAFT'`
	res, err := q.ExecContext(ctx, query, id, at)
	if err != nil {
		return mapWriteError(err, "failed to finalize invoice")
	}
	return store.afterCAS(ctx, q, res, id, invoice.ErrInvoiceAlreadyFinalized)
}

// MarkInvoicePaid only moves a FINALIZED invoice, so a DRAFT or an already PAID one is never paid.
func (store *PostgresInvoiceStore) MarkInvoicePaid(ctx context.Context, id uuid.UUID, at time.Time) error {
	q := conn(ctx, store.db)
	query := `
		UPDATE invoices
		SET status = 'PAID', paid_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'FINALIZED'`
	res, err := q.ExecContext(ctx, query, id, at)
	if err != nil {
		return mapWriteError(err, "failed to mark invoice as paid")
	}
	return store.afterCAS(ctx, q, res, id, invoice.ErrInvalidTransition)
}

// afterCAS turns "0 rows" into the right error: either the invoice does not
// exist, or it exists in a state the write was not allowed from.
func (store *PostgresInvoiceStore) afterCAS(ctx context.Context, q querier, res sql.Result, id uuid.UUID, wrongState error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}
	var status string
	if err := q.QueryRowContext(ctx, `SELECT status FROM invoices WHERE id = $1`, id).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return invoice.ErrInvoiceNotFound
		}
		return fmt.Errorf("failed to read invoice status: %w", err)
	}
	return wrongState
}

func mapWriteError(err error, msg string) error {
	if isImmutable(err) {
		return invoice.ErrInvoiceAlreadyFinalized
	}
	return fmt.Errorf("%s: %w", msg, err)
}
