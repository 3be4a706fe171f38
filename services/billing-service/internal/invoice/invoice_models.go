// services/billing-service/internal/invoice/invoice_models.go

package invoice

import (
	"time"

	billingtypes "github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/billingTypes"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "DRAFT"
	InvoiceFinalized InvoiceStatus = "FINALIZED"
	InvoicePaid      InvoiceStatus = "PAID"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceFinalized, InvoicePaid:
		return true
	}
	return false
}

// Invoice is the bill issued to a renter for one billing period.
// Only a DRAFT invoice may change; FINALIZED and PAID are frozen apart from the status itself.
type Invoice struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	RenterID    uuid.UUID
	PeriodStart time.Time
	PeriodEnd   time.Time
	TotalAmount decimal.Decimal
	Currency    string
	Status      InvoiceStatus
	FinalizedAt *time.Time
	PaidAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Items []InvoiceItem
	// ItemCount is filled by list queries, which do not load Items.
	ItemCount int
}

// InvoiceItem is a priced line. It copies everything it shows so later
// tariff edits never change an issued invoice; TariffID is kept for reference only.
type InvoiceItem struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	MeterID     *uuid.UUID
	TariffID    *uuid.UUID
	Description string
	Quantity    decimal.Decimal
	Unit        billingtypes.Unit
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
}

// SumItems is the total an invoice with these items must carry.
func SumItems(items []InvoiceItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Total)
	}
	return total
}

// NumItems prefers the loaded items and falls back to the list count.
func (inv *Invoice) NumItems() int {
	if len(inv.Items) > 0 {
		return len(inv.Items)
	}
	return inv.ItemCount
}
