package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/audit"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/config"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/invoice"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/property"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/store/memory"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/store/postgres"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tariff"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/usage"
	"go.uber.org/zap"
)

// backend is the set of stores one storage driver provides.
type backend struct {
	premises property.Store
	readings usage.ReadingStore
	tariffs  tariff.TariffStore
	invoices invoice.InvoiceStore
	tx       invoice.TransactionManager
	audit    audit.Store
	close    func() error
}

func openBackend(ctx context.Context, cfg *config.BillingConfig, logger *zap.Logger) (*backend, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory storage, data is lost on exit")
		s := memory.NewMemoryStore()
		b := &backend{premises: s, readings: s, tariffs: s, invoices: s, tx: s, close: func() error { return nil }}
		if cfg.Audit.Persist {
			b.audit = s
		}
		return b, nil

	case config.DriverPostgres:
		db, err := openDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b := &backend{
			premises: postgres.NewPostgresPremisesStore(db),
			readings: postgres.NewPostgresReadingStore(db),
			tariffs:  postgres.NewPostgresTariffStore(db),
			invoices: postgres.NewPostgresInvoiceStore(db),
			tx:       postgres.NewTxManager(db),
			close:    db.Close,
		}
		if cfg.Audit.Persist {
			b.audit = postgres.NewPostgresAuditStore(db)
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

func openDB(ctx context.Context, cfg *config.BillingConfig) (*sql.DB, error) {
	db, err := postgres.Open(ctx, cfg.GetDBURL(), cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
