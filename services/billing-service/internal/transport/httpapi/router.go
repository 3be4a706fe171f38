package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/identity"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/invoice"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tariff"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/usage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type InvoiceGenerator interface {
	GenerateInvoice(ctx context.Context, p identity.Principal, renterID uuid.UUID, start, end time.Time) (*invoice.Invoice, error)
}

type InvoiceFinalizer interface {
	FinalizeInvoice(ctx context.Context, p identity.Principal, id uuid.UUID) (*invoice.Invoice, error)
	MarkPaid(ctx context.Context, p identity.Principal, id uuid.UUID) (*invoice.Invoice, error)
}

type InvoiceEditor interface {
	UpdateDraft(ctx context.Context, p identity.Principal, id uuid.UUID, patch invoice.InvoicePatch) (*invoice.Invoice, error)
	DeleteDraft(ctx context.Context, p identity.Principal, id uuid.UUID) error
}

type InvoiceReader interface {
	GetInvoice(ctx context.Context, p identity.Principal, id uuid.UUID) (*invoice.Invoice, error)
	ListInvoices(ctx context.Context, p identity.Principal, filter invoice.ListFilter) (*invoice.Page, error)
}

type TariffManager interface {
	CreateTariff(ctx context.Context, p identity.Principal, in tariff.Input) (*tariff.Tariff, error)
	UpdateTariff(ctx context.Context, p identity.Principal, id uuid.UUID, in tariff.Input) (*tariff.Tariff, error)
	GetTariff(ctx context.Context, p identity.Principal, id uuid.UUID) (*tariff.Tariff, error)
	ListTariffs(ctx context.Context, p identity.Principal, filter tariff.ListFilter) ([]tariff.Tariff, error)
}

type ReadingRecorder interface {
	RecordReading(ctx context.Context, p identity.Principal, meterID uuid.UUID, readingDate time.Time, value decimal.Decimal) (*usage.MeterReading, error)
}

// Services bundles what the API fronts. Metrics may be nil.
type Services struct {
	Generator InvoiceGenerator
	Finalizer InvoiceFinalizer
	Editor    InvoiceEditor
	Reader    InvoiceReader
	Tariffs   TariffManager
	Readings  ReadingRecorder

	Metrics     http.Handler
	MetricsPath string
	// Location interprets date-only inputs such as "2024-01-01".
	Location *time.Location
}

// Router uses the standard library http.ServeMux with method patterns.
type Router struct {
	mux    *http.ServeMux
	svc    Services
	logger *zap.Logger
}

func NewRouter(svc Services, logger *zap.Logger) *Router {
	if svc.Location == nil {
		svc.Location = time.UTC
	}
	r := &Router{mux: http.NewServeMux(), svc: svc, logger: logger}

	r.mux.HandleFunc("POST /v1/renters/{renterID}/invoices", r.generateInvoice)
	r.mux.HandleFunc("GET /v1/invoices", r.listInvoices)
	r.mux.HandleFunc("GET /v1/invoices/{id}", r.getInvoice)
	r.mux.HandleFunc("PATCH /v1/invoices/{id}", r.updateInvoice)
	r.mux.HandleFunc("DELETE /v1/invoices/{id}", r.deleteInvoice)
	r.mux.HandleFunc("POST /v1/invoices/{id}/finalize", r.finalizeInvoice)
	r.mux.HandleFunc("POST /v1/invoices/{id}/pay", r.payInvoice)

	r.mux.HandleFunc("POST /v1/tariffs", r.createTariff)
	r.mux.HandleFunc("PUT /v1/tariffs/{id}", r.updateTariff)
	r.mux.HandleFunc("GET /v1/tariffs", r.listTariffs)
	r.mux.HandleFunc("GET /v1/tariffs/{id}", r.getTariff)

	r.mux.HandleFunc("POST /v1/meters/{meterID}/readings", r.recordReading)

	r.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if svc.Metrics != nil {
		path := svc.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.mux.Handle("GET "+path, svc.Metrics)
	}
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("panic serving request", zap.Any("panic", p), zap.String("path", req.URL.Path))
			writeJSON(rec, http.StatusInternalServerError, errorBody{Error: errorDetail{Code: "Internal", Message: "internal error"}})
		}
		r.logger.Debug("request",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	}()
	r.mux.ServeHTTP(rec, req)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
