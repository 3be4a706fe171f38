package httpapi

import (
	"encoding/json"
	"time"

	billingtypes "github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/billingTypes"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/invoice"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tariff"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/usage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type invoiceResponse struct {
	ID          uuid.UUID      `json:"id"`
	TenantID    uuid.UUID      `json:"tenant_id"`
	RenterID    uuid.UUID      `json:"renter_id"`
	PeriodStart time.Time      `json:"period_start"`
	PeriodEnd   time.Time      `json:"period_end"`
	TotalAmount string         `json:"total_amount"`
	Currency    string         `json:"currency"`
	Status      string         `json:"status"`
	FinalizedAt *time.Time     `json:"finalized_at,omitempty"`
	PaidAt      *time.Time     `json:"paid_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	ItemCount   int            `json:"item_count"`
	Items       []itemResponse `json:"items,omitempty"`
}

type itemResponse struct {
	ID          uuid.UUID  `json:"id"`
	MeterID     *uuid.UUID `json:"meter_id,omitempty"`
	TariffID    *uuid.UUID `json:"tariff_id,omitempty"`
	Description string     `json:"description"`
	Quantity    string     `json:"quantity"`
	Unit        string     `json:"unit"`
	UnitPrice   string     `json:"unit_price"`
	Total       string     `json:"total"`
}

func toInvoiceResponse(inv *invoice.Invoice) invoiceResponse {
	out := invoiceResponse{
		ID:          inv.ID,
		TenantID:    inv.TenantID,
		RenterID:    inv.RenterID,
		PeriodStart: inv.PeriodStart,
		PeriodEnd:   inv.PeriodEnd,
		TotalAmount: inv.TotalAmount.StringFixed(2),
		Currency:    inv.Currency,
		Status:      string(inv.Status),
		FinalizedAt: inv.FinalizedAt,
		PaidAt:      inv.PaidAt,
		CreatedAt:   inv.CreatedAt,
		UpdatedAt:   inv.UpdatedAt,
		ItemCount:   inv.NumItems(),
	}
	for _, it := range inv.Items {
		out.Items = append(out.Items, itemResponse{
			ID:          it.ID,
			MeterID:     it.MeterID,
			TariffID:    it.TariffID,
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			Unit:        string(it.Unit),
			UnitPrice:   it.UnitPrice.String(),
			Total:       it.Total.StringFixed(2),
		})
	}
	return out
}

type invoicePage struct {
	Invoices []invoiceResponse `json:"invoices"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

type generateRequest struct {
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

// patchRequest has no total: the total always follows the items.
type patchRequest struct {
	PeriodStart *string             `json:"period_start"`
	PeriodEnd   *string             `json:"period_end"`
	Items       *[]itemPatchRequest `json:"items"`
}

type itemPatchRequest struct {
	MeterID     *uuid.UUID      `json:"meter_id"`
	TariffID    *uuid.UUID      `json:"tariff_id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

func (it itemPatchRequest) toItem() invoice.InvoiceItem {
	return invoice.InvoiceItem{
		MeterID:     it.MeterID,
		TariffID:    it.TariffID,
		Description: it.Description,
		Quantity:    it.Quantity,
		Unit:        billingtypes.Unit(it.Unit),
		UnitPrice:   it.UnitPrice,
		Total:       it.Total,
	}
}

type tariffRequest struct {
	ProviderID    *uuid.UUID      `json:"provider_id"`
	RemoteID      *string         `json:"remote_id"`
	Name          string          `json:"name"`
	ServiceType   string          `json:"service_type"`
	Configuration json.RawMessage `json:"configuration"`
	ActiveFrom    string          `json:"active_from"`
	ActiveUntil   *string         `json:"active_until"`
}

type tariffResponse struct {
	ID            uuid.UUID       `json:"id"`
	ProviderID    *uuid.UUID      `json:"provider_id,omitempty"`
	RemoteID      *string         `json:"remote_id,omitempty"`
	Name          string          `json:"name"`
	ServiceType   string          `json:"service_type"`
	Configuration json.RawMessage `json:"configuration"`
	ActiveFrom    time.Time       `json:"active_from"`
	ActiveUntil   *time.Time      `json:"active_until,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func toTariffResponse(t *tariff.Tariff) (tariffResponse, error) {
	cfg, err := tariff.MarshalConfiguration(t.Configuration)
	if err != nil {
		return tariffResponse{}, err
	}
	return tariffResponse{
		ID:            t.ID,
		ProviderID:    t.ProviderID,
		RemoteID:      t.RemoteID,
		Name:          t.Name,
		ServiceType:   string(t.ServiceType),
		Configuration: cfg,
		ActiveFrom:    t.ActiveFrom,
		ActiveUntil:   t.ActiveUntil,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}, nil
}

type readingRequest struct {
	ReadingDate string          `json:"reading_date"`
	Value       decimal.Decimal `json:"value"`
}

type readingResponse struct {
	ID          uuid.UUID  `json:"id"`
	MeterID     uuid.UUID  `json:"meter_id"`
	ReadingDate time.Time  `json:"reading_date"`
	Value       string     `json:"value"`
	EnteredBy   *uuid.UUID `json:"entered_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toReadingResponse(r *usage.MeterReading) readingResponse {
	return readingResponse{
		ID:          r.ID,
		MeterID:     r.MeterID,
		ReadingDate: r.ReadingDate,
		Value:       r.Value.String(),
		EnteredBy:   r.EnteredBy,
		CreatedAt:   r.CreatedAt,
	}
}
