package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tenancy"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/usage"
	"github.com/google/uuid"
)

type PostgresReadingStore struct {
	db *sql.DB
}

func NewPostgresReadingStore(db *sql.DB) *PostgresReadingStore {
	return &PostgresReadingStore{db: db}
}

const readingColumns = `id, meter_id, tenant_id, reading_date, value, entered_by, created_at`

func (store *PostgresReadingStore) CreateReading(ctx context.Context, r *usage.MeterReading) error {
	_, err := conn(ctx, store.db).ExecContext(ctx,
		`INSERT INTO meter_readings (`+readingColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.MeterID, r.TenantID, r.ReadingDate, r.Value, r.EnteredBy, r.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return usage.ErrDuplicateReading
		}
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

// ListReadingsForPeriod unions the anchor reading (latest on or before from)
// with the readings inside (from, to].
func (store *PostgresReadingStore) ListReadingsForPeriod(ctx context.Context, scope tenancy.Scope, meterID uuid.UUID, from, to time.Time) ([]usage.MeterReading, error) {
	anchor := newSelect(`SELECT ` + readingColumns + ` FROM meter_readings`)
	anchor.Where("meter_id = ?", meterID)
	anchor.Where("reading_date <= ?", from)
	scope.Apply(anchor, "tenant_id")
	anchor.Tail("ORDER BY reading_date DESC LIMIT 1")

	inside := newSelect(`SELECT ` + readingColumns + ` FROM meter_readings`)
	inside.Where("meter_id = ?", meterID)
	inside.Where("reading_date > ? AND reading_date <= ?", from, to)
	scope.Apply(inside, "tenant_id")
	inside.Tail("ORDER BY reading_date")

	first, err := store.query(ctx, anchor)
	if err != nil {
		return nil, err
	}
	rest, err := store.query(ctx, inside)
	if err != nil {
		return nil, err
	}
	return append(first, rest...), nil
}

func (store *PostgresReadingStore) LatestReadingBefore(ctx context.Context, scope tenancy.Scope, meterID uuid.UUID, at time.Time) (*usage.MeterReading, error) {
	q := newSelect(`SELECT ` + readingColumns + ` FROM meter_readings`)
	q.Where("meter_id = ?", meterID)
	q.Where("reading_date < ?", at)
	scope.Apply(q, "tenant_id")
	q.Tail("ORDER BY reading_date DESC LIMIT 1")

	r, err := scanReading(conn(ctx, store.db).QueryRowContext(ctx, q.SQL(), q.Args()...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch previous reading: %w", err)
	}
	return r, nil
}

func (store *PostgresReadingStore) query(ctx context.Context, q *selectQuery) ([]usage.MeterReading, error) {
	rows, err := conn(ctx, store.db).QueryContext(ctx, q.SQL(), q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var out []usage.MeterReading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanReading(s scanner) (*usage.MeterReading, error) {
	var (
		r         usage.MeterReading
		enteredBy uuid.NullUUID
	)
	if err := s.Scan(&r.ID, &r.MeterID, &r.TenantID, &r.ReadingDate, &r.Value, &enteredBy, &r.CreatedAt); err != nil {
		return nil, err
	}
	if enteredBy.Valid {
		r.EnteredBy = &enteredBy.UUID
	}
	return &r, nil
}
