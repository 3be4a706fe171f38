package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	billingtypes "github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/billingTypes"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tariff"
	"github.com/google/uuid"
)

type PostgresTariffStore struct {
	db *sql.DB
}

func NewPostgresTariffStore(db *sql.DB) *PostgresTariffStore {
	return &PostgresTariffStore{db: db}
}

const tariffColumns = `id, provider_id, remote_id, name, service_type, configuration, active_from, active_until, created_at, updated_at`

func (store *PostgresTariffStore) CreateTariff(ctx context.Context, t *tariff.Tariff) error {
	cfg, err := tariff.MarshalConfiguration(t.Configuration)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO tariffs (` + tariffColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = conn(ctx, store.db).ExecContext(ctx, query,
		t.ID, t.ProviderID, t.RemoteID, t.Name, t.ServiceType, cfg,
		t.ActiveFrom, t.ActiveUntil, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tariff: %w", err)
	}
	return nil
}

func (store *PostgresTariffStore) UpdateTariff(ctx context.Context, t *tariff.Tariff) error {
	cfg, err := tariff.MarshalConfiguration(t.Configuration)
	if err != nil {
		return err
	}
	query := `
		UPDATE tariffs
		SET provider_id = $2, remote_id = $3, name = $4, service_type = $5, configuration = $6,
		    active_from = $7, active_until = $8, updated_at = $9
		WHERE id = $1`
	res, err := conn(ctx, store.db).ExecContext(ctx, query,
		t.ID, t.ProviderID, t.RemoteID, t.Name, t.ServiceType, cfg,
		t.ActiveFrom, t.ActiveUntil, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update tariff: %w", err)
	}
	return expectOne(res, tariff.ErrTariffNotFound)
}

func (store *PostgresTariffStore) GetTariff(ctx context.Context, id uuid.UUID) (*tariff.Tariff, error) {
	row := conn(ctx, store.db).QueryRowContext(ctx, `SELECT `+tariffColumns+` FROM tariffs WHERE id = $1`, id)
	t, err := scanTariff(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tariff.ErrTariffNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tariff: %w", err)
	}
	return t, nil
}

func (store *PostgresTariffStore) ListTariffs(ctx context.Context, f tariff.ListFilter) ([]tariff.Tariff, error) {
	q := newSelect(`SELECT ` + tariffColumns + ` FROM tariffs`)
	if f.ServiceType != "" {
		q.Where("service_type = ?", f.ServiceType)
	}
	if f.ProviderID != nil {
		q.Where("provider_id = ?", *f.ProviderID)
	}
	if f.ActiveAt != nil {
		q.Where("active_from <= ? AND (active_until IS NULL OR active_until > ?)", *f.ActiveAt, *f.ActiveAt)
	}
	q.Tail("ORDER BY active_from, id")
	if f.Limit > 0 {
		q.Tail("LIMIT ?", f.Limit)
	}
	if f.Offset > 0 {
		q.Tail("OFFSET ?", f.Offset)
	}
	return store.query(ctx, q)
}

func (store *PostgresTariffStore) ListTariffsOverlapping(ctx context.Context, service billingtypes.ServiceType, from, to time.Time) ([]tariff.Tariff, error) {
	q := newSelect(`SELECT ` + tariffColumns + ` FROM tariffs`)
	q.Where("service_type = ?", service)
	q.Where("active_from < ?", to)
	q.Where("(active_until IS NULL OR active_until > ?)", from)
	q.Tail("ORDER BY active_from, id")
	return store.query(ctx, q)
}

func (store *PostgresTariffStore) query(ctx context.Context, q *selectQuery) ([]tariff.Tariff, error) {
	rows, err := conn(ctx, store.db).QueryContext(ctx, q.SQL(), q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tariffs: %w", err)
	}
	defer rows.Close()

	var out []tariff.Tariff
	for rows.Next() {
		t, err := scanTariff(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tariff: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTariff(s scanner) (*tariff.Tariff, error) {
	var (
		t           tariff.Tariff
		providerID  uuid.NullUUID
		remoteID    sql.NullString
		cfg         []byte
		activeUntil sql.NullTime
	)
	err := s.Scan(&t.ID, &providerID, &remoteID, &t.Name, &t.ServiceType, &cfg,
		&t.ActiveFrom, &activeUntil, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if providerID.Valid {
		t.ProviderID = &providerID.UUID
	}
	if remoteID.Valid {
		t.RemoteID = &remoteID.String
	}
	if activeUntil.Valid {
		t.ActiveUntil = &activeUntil.Time
	}
	t.Configuration, err = tariff.ParseConfiguration(cfg)
	if err != nil {
		return nil, fmt.Errorf("stored configuration of tariff %s: %w", t.ID, err)
	}
	return &t, nil
}

// expectOne maps "no row affected" to notFound.
func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
