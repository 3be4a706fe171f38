package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/billing"
	billingtypes "github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/billingTypes"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/identity"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/invoice"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/metrics"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/property"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/ratelimit"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/store/memory"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tariff"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/usage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type apiFixture struct {
	store    *memory.MemoryStore
	handler  http.Handler
	tenantID uuid.UUID
	renter   property.Renter
	meter    property.Meter
}

func newAPIFixture(t *testing.T, finalizeLimit int) *apiFixture {
	t.Helper()
	ctx := context.Background()
	s := memory.NewMemoryStore()
	f := &apiFixture{store: s, tenantID: uuid.New()}

	prop := property.Property{ID: uuid.New(), TenantID: f.tenantID, Name: "Flat 2"}
	require.NoError(t, s.CreateProperty(ctx, &prop))
	f.renter = property.Renter{ID: uuid.New(), TenantID: f.tenantID, PropertyID: prop.ID, Name: "A. Renter"}
	require.NoError(t, s.CreateRenter(ctx, &f.renter))
	f.meter = property.Meter{
		ID:           uuid.New(),
		TenantID:     f.tenantID,
		PropertyID:   prop.ID,
		SerialNumber: "EM-42",
		ServiceType:  billingtypes.ServiceElectricity,
		Unit:         billingtypes.UnitKWh,
	}
	require.NoError(t, s.CreateMeter(ctx, &f.meter))
	require.NoError(t, s.CreateTariff(ctx, &tariff.Tariff{
		ID:            uuid.New(),
		Name:          "Household",
		ServiceType:   billingtypes.ServiceElectricity,
		Configuration: tariff.FlatConfig{Currency: "EUR", Rate: decimal.RequireFromString("0.25")},
		ActiveFrom:    time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	reg := prometheus.NewRegistry()
	opts := []invoice.Option{
		invoice.WithMetrics(metrics.New(reg)),
		invoice.WithLimiter(ratelimit.NewMemoryLimiter(ratelimit.Policy{Limit: finalizeLimit, Window: time.Hour})),
	}
	logger := zap.NewNop()
	f.handler = NewRouter(Services{
		Generator:   invoice.NewInvoiceGenerator(s, billing.NewCalculator(s, s), s, s, "EUR", logger, opts...),
		Finalizer:   invoice.NewInvoiceFinalizer(s, s, logger, opts...),
		Editor:      invoice.NewInvoiceEditor(s, s, logger, opts...),
		Reader:      invoice.NewInvoiceReader(s),
		Tariffs:     tariff.NewManager(s, logger),
		Readings:    usage.NewRecorder(s, s, logger),
		Metrics:     metrics.Handler(reg),
		MetricsPath: "/metrics",
	}, logger)
	return f
}

func (f *apiFixture) staff(role identity.Role) http.Header {
	h := http.Header{}
	h.Set(headerPrincipalID, uuid.NewString())
	h.Set(headerPrincipalRole, string(role))
	h.Set(headerTenantID, f.tenantID.String())
	if role == identity.RoleTenant {
		h.Set(headerRenterID, f.renter.ID.String())
	}
	return h
}

func superadmin() http.Header {
	h := http.Header{}
	h.Set(headerPrincipalID, uuid.NewString())
	h.Set(headerPrincipalRole, string(identity.RoleSuperadmin))
	return h
}

func (f *apiFixture) do(t *testing.T, method, path string, h http.Header, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range h {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (f *apiFixture) recordReadings(t *testing.T, admin http.Header) {
	t.Helper()
	for _, r := range []readingRequest{
		{ReadingDate: "2024-01-01", Value: decimal.NewFromInt(1000)},
		{ReadingDate: "2024-02-01", Value: decimal.NewFromInt(1400)},
	} {
		rec := f.do(t, http.MethodPost, "/v1/meters/"+f.meter.ID.String()+"/readings", admin, r)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
}

func (f *apiFixture) generate(t *testing.T, h http.Header) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, http.MethodPost, "/v1/renters/"+f.renter.ID.String()+"/invoices", h,
		generateRequest{PeriodStart: "2024-01-01", PeriodEnd: "2024-02-01"})
}

func TestInvoiceLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t, 10)
	admin := f.staff(identity.RoleAdmin)
	f.recordReadings(t, admin)

	rec := f.generate(t, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inv := decodeBody[invoiceResponse](t, rec)
	assert.Equal(t, "DRAFT", inv.Status)
	assert.Equal(t, "100.00", inv.TotalAmount)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "400", inv.Items[0].Quantity)

	rec = f.do(t, http.MethodPost, "/v1/invoices/"+inv.ID.String()+"/finalize", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "FINALIZED", decodeBody[invoiceResponse](t, rec).Status)

	newEnd := "2024-02-02"
	rec = f.do(t, http.MethodPatch, "/v1/invoices/"+inv.ID.String(), admin, patchRequest{PeriodEnd: &newEnd})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "FailedPrecondition", decodeBody[errorBody](t, rec).Error.Code)

	rec = f.do(t, http.MethodPost, "/v1/invoices/"+inv.ID.String()+"/pay", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := decodeBody[invoiceResponse](t, rec)
	assert.Equal(t, "PAID", paid.Status)
	assert.NotNil(t, paid.PaidAt)

	rec = f.do(t, http.MethodGet, "/v1/invoices?status=PAID", f.staff(identity.RoleTenant), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[invoicePage](t, rec)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Invoices, 1)
	assert.Equal(t, inv.ID, page.Invoices[0].ID)
}

func TestEditAndDeleteDraft(t *testing.T) {
	f := newAPIFixture(t, 10)
	admin := f.staff(identity.RoleAdmin)
	f.recordReadings(t, admin)

	inv := decodeBody[invoiceResponse](t, f.generate(t, admin))

	items := []itemPatchRequest{
		{Description: "Electricity", Quantity: decimal.NewFromInt(400), Unit: "kWh", UnitPrice: decimal.RequireFromString("0.25"), Total: decimal.NewFromInt(100)},
		{Description: "Late fee", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(5), Total: decimal.NewFromInt(5)},
	}
	rec := f.do(t, http.MethodPatch, "/v1/invoices/"+inv.ID.String(), admin, patchRequest{Items: &items})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[invoiceResponse](t, rec)
	assert.Equal(t, "105.00", updated.TotalAmount)
	assert.Equal(t, 2, updated.ItemCount)

	inconsistent := []itemPatchRequest{
		{Description: "Electricity", Quantity: decimal.NewFromInt(400), Unit: "kWh", UnitPrice: decimal.RequireFromString("0.25"), Total: decimal.RequireFromString("999.99")},
	}
	rec = f.do(t, http.MethodPatch, "/v1/invoices/"+inv.ID.String(), admin, patchRequest{Items: &inconsistent})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	end := "2023-12-01"
	rec = f.do(t, http.MethodPatch, "/v1/invoices/"+inv.ID.String(), admin, patchRequest{PeriodEnd: &end})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodDelete, "/v1/invoices/"+inv.ID.String(), admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/invoices/"+inv.ID.String(), admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorResponses(t *testing.T) {
	f := newAPIFixture(t, 1)
	admin := f.staff(identity.RoleAdmin)

	// an empty zero-total draft fails the finalize checks
	draft := &invoice.Invoice{
		ID:          uuid.New(),
		TenantID:    f.tenantID,
		RenterID:    f.renter.ID,
		PeriodStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		TotalAmount: decimal.Zero,
		Currency:    "EUR",
		Status:      invoice.InvoiceDraft,
	}
	require.NoError(t, f.store.CreateInvoice(context.Background(), draft))
	path := "/v1/invoices/" + draft.ID.String()

	t.Run("missing principal", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, path, http.Header{}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("other tenant sees not found", func(t *testing.T) {
		other := f.staff(identity.RoleAdmin)
		other.Set(headerTenantID, uuid.NewString())
		rec := f.do(t, http.MethodGet, path, other, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "resource not found", decodeBody[errorBody](t, rec).Error.Message)
	})

	t.Run("tenant role cannot finalize", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, path+"/finalize", f.staff(identity.RoleTenant), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("failed checks are listed", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, path+"/finalize", admin, nil)
		require.Equal(t, http.StatusConflict, rec.Code)
		body := decodeBody[errorBody](t, rec)
		assert.Contains(t, body.Error.Reasons, "no_items")
		assert.Contains(t, body.Error.Reasons, "non_positive_total")
	})

	t.Run("throttled caller gets retry after", func(t *testing.T) {
		h := f.staff(identity.RoleAdmin)
		f.do(t, http.MethodPost, path+"/finalize", h, nil)
		rec := f.do(t, http.MethodPost, path+"/finalize", h, nil)
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		assert.Positive(t, decodeBody[errorBody](t, rec).Error.RetryAfterSeconds)
	})

	t.Run("malformed id", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/v1/invoices/not-a-uuid", admin, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing tariff", func(t *testing.T) {
		m := property.Meter{
			ID:           uuid.New(),
			TenantID:     f.tenantID,
			PropertyID:   f.renter.PropertyID,
			SerialNumber: "WM-1",
			ServiceType:  billingtypes.ServiceWater,
			Unit:         billingtypes.UnitCubicMetre,
		}
		require.NoError(t, f.store.CreateMeter(context.Background(), &m))
		rec := f.do(t, http.MethodPost, "/v1/renters/"+f.renter.ID.String()+"/invoices", admin,
			generateRequest{PeriodStart: "2024-03-01", PeriodEnd: "2024-04-01"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestTariffRoutes(t *testing.T) {
	f := newAPIFixture(t, 10)
	root := superadmin()

	body := map[string]any{
		"name":         "Night saver",
		"service_type": "electricity",
		"active_from":  "2024-01-01",
		"configuration": json.RawMessage(`{"type":"time_of_use","currency":"EUR","zones":[
			{"id":"day","start":"06:00","end":"22:00","rate":0.30},
			{"id":"night","start":"22:00","end":"06:00","rate":0.15}]}`),
	}
	rec := f.do(t, http.MethodPost, "/v1/tariffs", root, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[tariffResponse](t, rec)
	assert.Equal(t, "Night saver", created.Name)
	assert.Contains(t, string(created.Configuration), "time_of_use")

	rec = f.do(t, http.MethodGet, "/v1/tariffs/"+created.ID.String(), f.staff(identity.RoleManager), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/tariffs", f.staff(identity.RoleAdmin), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	body["configuration"] = json.RawMessage(`{"type":"flat","currency":"EUR"}`)
	rec = f.do(t, http.MethodPut, "/v1/tariffs/"+created.ID.String(), root, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid tariff", decodeBody[errorBody](t, rec).Error.Message)

	rec = f.do(t, http.MethodGet, "/v1/tariffs?service_type=electricity&active_at=2024-06-01", root, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[map[string][]tariffResponse](t, rec)
	assert.Len(t, list["tariffs"], 2)
}

func TestRecordReadingRejectsDuplicates(t *testing.T) {
	f := newAPIFixture(t, 10)
	admin := f.staff(identity.RoleAdmin)
	f.recordReadings(t, admin)

	rec := f.do(t, http.MethodPost, "/v1/meters/"+f.meter.ID.String()+"/readings", admin,
		readingRequest{ReadingDate: "2024-02-01", Value: decimal.NewFromInt(1500)})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/meters/"+f.meter.ID.String()+"/readings", admin,
		readingRequest{ReadingDate: "yesterday", Value: decimal.NewFromInt(1500)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newAPIFixture(t, 10)
	admin := f.staff(identity.RoleAdmin)
	f.recordReadings(t, admin)
	require.Equal(t, http.StatusCreated, f.generate(t, admin).Code)

	rec := f.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "billing_invoices_generated_total"))
}
