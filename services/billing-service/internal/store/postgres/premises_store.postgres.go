package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/property"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tenancy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PostgresPremisesStore persists properties, renters and meters.
type PostgresPremisesStore struct {
	db *sql.DB
}

func NewPostgresPremisesStore(db *sql.DB) *PostgresPremisesStore {
	return &PostgresPremisesStore{db: db}
}

func (store *PostgresPremisesStore) CreateProperty(ctx context.Context, p *property.Property) error {
	_, err := conn(ctx, store.db).ExecContext(ctx,
		`INSERT INTO properties (id, tenant_id, building_id, name, created_at) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.TenantID, p.BuildingID, p.Name, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert property: %w", err)
	}
	return nil
}

// CreateRenter inserts only when the property belongs to the renter's tenant.
func (store *PostgresPremisesStore) CreateRenter(ctx context.Context, r *property.Renter) error {
	query := `
		INSERT INTO renters (id, tenant_id, property_id, name, created_at)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (SELECT 1 FROM properties WHERE id = $3 AND tenant_id = $2)`
	res, err := conn(ctx, store.db).ExecContext(ctx, query, r.ID, r.TenantID, r.PropertyID, r.Name, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert renter: %w", err)
	}
	return expectOne(res, property.ErrPropertyNotFound)
}

func (store *PostgresPremisesStore) CreateMeter(ctx context.Context, m *property.Meter) error {
	query := `
		INSERT INTO meters (id, tenant_id, property_id, serial_number, service_type, unit, rollover_modulus, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8
		WHERE EXISTS (SELECT 1 FROM properties WHERE id = $3 AND tenant_id = $2)`
	res, err := conn(ctx, store.db).ExecContext(ctx, query,
		m.ID, m.TenantID, m.PropertyID, m.SerialNumber, m.ServiceType, m.Unit, m.RolloverModulus, m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: serial %s already installed at property", property.ErrInvalidMeter, m.SerialNumber)
		}
		return fmt.Errorf("failed to insert meter: %w", err)
	}
	return expectOne(res, property.ErrPropertyNotFound)
}

func (store *PostgresPremisesStore) GetRenter(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (*property.Renter, error) {
	q := newSelect(`SELECT id, tenant_id, property_id, name, created_at FROM renters`)
	q.Where("id = ?", id)
	scope.Apply(q, "tenant_id")

	var r property.Renter
	err := conn(ctx, store.db).QueryRowContext(ctx, q.SQL(), q.Args()...).
		Scan(&r.ID, &r.TenantID, &r.PropertyID, &r.Name, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, property.ErrRenterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch renter: %w", err)
	}
	return &r, nil
}

const meterColumns = `id, tenant_id, property_id, serial_number, service_type, unit, rollover_modulus, created_at`

func (store *PostgresPremisesStore) GetMeter(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (*property.Meter, error) {
	q := newSelect(`SELECT ` + meterColumns + ` FROM meters`)
	q.Where("id = ?", id)
	scope.Apply(q, "tenant_id")

	m, err := scanMeter(conn(ctx, store.db).QueryRowContext(ctx, q.SQL(), q.Args()...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, property.ErrMeterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch meter: %w", err)
	}
	return m, nil
}

func (store *PostgresPremisesStore) ListMetersByProperty(ctx context.Context, scope tenancy.Scope, propertyID uuid.UUID) ([]property.Meter, error) {
	q := newSelect(`SELECT ` + meterColumns + ` FROM meters`)
	q.Where("property_id = ?", propertyID)
	scope.Apply(q, "tenant_id")
	q.Tail("ORDER BY serial_number")

	rows, err := conn(ctx, store.db).QueryContext(ctx, q.SQL(), q.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query meters: %w", err)
	}
	defer rows.Close()

	var out []property.Meter
	for rows.Next() {
		m, err := scanMeter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meter: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanMeter(s scanner) (*property.Meter, error) {
	var (
		m       property.Meter
		modulus decimal.NullDecimal
	)
	if err := s.Scan(&m.ID, &m.TenantID, &m.PropertyID, &m.SerialNumber, &m.ServiceType, &m.Unit, &modulus, &m.CreatedAt); err != nil {
		return nil, err
	}
	if modulus.Valid {
		m.RolloverModulus = &modulus.Decimal
	}
	return &m, nil
}
