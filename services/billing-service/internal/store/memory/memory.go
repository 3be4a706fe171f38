// services/billing-service/internal/store/memory/memory.go
package memory

import (
	"context"
	"sync"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/audit"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/invoice"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/property"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tariff"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/usage"
	"github.com/google/uuid"
)

// MemoryStore implements every billing store port in process. It backs the
// development server and the service level tests.
//
// Transactions are serialised: RunInTx holds txMu for its whole duration and
// restores a snapshot when fn fails. Reads and writes outside a transaction take
// txMu too, so a rollback can never discard them and nobody observes rows that
// are later rolled back.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data dataset
}

type dataset struct {
	tariffs    map[uuid.UUID]tariff.Tariff
	properties map[uuid.UUID]property.Property
	renters    map[uuid.UUID]property.Renter
	meters     map[uuid.UUID]property.Meter
	readings   map[uuid.UUID][]usage.MeterReading // by meter, oldest first
	invoices   map[uuid.UUID]invoice.Invoice
	audit      []audit.Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: dataset{
		tariffs:    make(map[uuid.UUID]tariff.Tariff),
		properties: make(map[uuid.UUID]property.Property),
		renters:    make(map[uuid.UUID]property.Renter),
		meters:     make(map[uuid.UUID]property.Meter),
		readings:   make(map[uuid.UUID][]usage.MeterReading),
		invoices:   make(map[uuid.UUID]invoice.Invoice),
	}}
}

type txKey struct{}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(bool)
	return ok
}

// RunInTx runs fn atomically with respect to every other writer.
func (s *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		} else if err != nil {
			s.restore(snapshot)
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, true))
}

func (s *MemoryStore) restore(d dataset) {
	s.mu.Lock()
	s.data = d
	s.mu.Unlock()
}

// write runs fn under the write lock, joining the caller's transaction if there is one.
func (s *MemoryStore) write(ctx context.Context, fn func(d *dataset) error) error {
	// Check if the context is canceled or timed out
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.data)
}

// read sees only committed data unless ctx belongs to a transaction.
func (s *MemoryStore) read(ctx context.Context, fn func(d *dataset) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&s.data)
}

func (d dataset) clone() dataset {
	c := dataset{
		tariffs:    make(map[uuid.UUID]tariff.Tariff, len(d.tariffs)),
		properties: make(map[uuid.UUID]property.Property, len(d.properties)),
		renters:    make(map[uuid.UUID]property.Renter, len(d.renters)),
		meters:     make(map[uuid.UUID]property.Meter, len(d.meters)),
		readings:   make(map[uuid.UUID][]usage.MeterReading, len(d.readings)),
		invoices:   make(map[uuid.UUID]invoice.Invoice, len(d.invoices)),
		audit:      append([]audit.Event(nil), d.audit...),
	}
	for k, v := range d.tariffs {
		c.tariffs[k] = v
	}
	for k, v := range d.properties {
		c.properties[k] = v
	}
	for k, v := range d.renters {
		c.renters[k] = v
	}
	for k, v := range d.meters {
		c.meters[k] = v
	}
	for k, v := range d.readings {
		c.readings[k] = append([]usage.MeterReading(nil), v...)
	}
	for k, v := range d.invoices {
		c.invoices[k] = copyInvoice(v)
	}
	return c
}

func copyInvoice(inv invoice.Invoice) invoice.Invoice {
	inv.Items = append([]invoice.InvoiceItem(nil), inv.Items...)
	return inv
}

// page applies offset and limit; a non-positive limit returns everything after offset.
func page[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// Append implements audit.Store.
func (s *MemoryStore) Append(ctx context.Context, ev *audit.Event) error {
	return s.write(ctx, func(d *dataset) error {
		d.audit = append(d.audit, *ev)
		return nil
	})
}

// AuditEvents returns a copy of the audit trail, oldest first.
func (s *MemoryStore) AuditEvents() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event(nil), s.data.audit...)
}
