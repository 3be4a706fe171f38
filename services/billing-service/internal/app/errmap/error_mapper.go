package errmap

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/billing"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/identity"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/invoice"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/policy"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/pricing"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/property"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/ratelimit"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tariff"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/usage"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Domain errors carry ids, values and sometimes column-level detail. Callers
// only ever see the fixed messages below; the full error goes to the log.

type rule struct {
	targets []error
	code    codes.Code
	message string
}

var rules = []rule{
	{[]error{identity.ErrInvalidPrincipal}, codes.Unauthenticated, "invalid principal"},
	{[]error{policy.ErrForbidden}, codes.PermissionDenied, "operation not permitted"},
	{[]error{ratelimit.ErrRateLimited}, codes.ResourceExhausted, "too many requests, retry later"},
	{[]error{
		invoice.ErrInvoiceNotFound,
		property.ErrRenterNotFound,
		property.ErrPropertyNotFound,
		property.ErrMeterNotFound,
		tariff.ErrTariffNotFound,
	}, codes.NotFound, "resource not found"},
	{[]error{invoice.ErrInvoiceAlreadyFinalized}, codes.FailedPrecondition, "invoice is already finalized"},
	{[]error{invoice.ErrInvalidTransition}, codes.FailedPrecondition, "invoice status does not allow this operation"},
	{[]error{invoice.ErrFinalizationValidation}, codes.FailedPrecondition, "invoice cannot be finalized"},
	{[]error{billing.ErrNoApplicableTariff}, codes.FailedPrecondition, "no tariff covers the billing period"},
	{[]error{tariff.ErrCurrencyMismatch}, codes.FailedPrecondition, "tariffs on one invoice use different currencies"},
	{[]error{usage.ErrNegativeConsumption}, codes.FailedPrecondition, "meter readings show negative consumption"},
	{[]error{usage.ErrMissingReading}, codes.FailedPrecondition, "meter readings missing for the billing period"},
	{[]error{usage.ErrDuplicateReading, invoice.ErrDuplicateInvoice}, codes.AlreadyExists, "record already exists"},
	{[]error{tariff.ErrInvalidConfiguration, tariff.ErrInvalidTariff}, codes.InvalidArgument, "invalid tariff"},
	{[]error{pricing.ErrInvalidBillingPeriod}, codes.InvalidArgument, "invalid billing period"},
	{[]error{usage.ErrInvalidReading, usage.ErrUnsupportedUnit, property.ErrInvalidMeter}, codes.InvalidArgument, "invalid meter reading"},
	{[]error{invoice.ErrInvalidInvoice}, codes.InvalidArgument, "invalid invoice"},
	{[]error{context.DeadlineExceeded}, codes.DeadlineExceeded, "request timed out"},
	{[]error{context.Canceled}, codes.Canceled, "request canceled"},
}

// Map flattens any error into a transport-safe status.
func Map(err error) *status.Status {
	if err == nil {
		return nil
	}
	for _, r := range rules {
		for _, target := range r.targets {
			if stdErrors.Is(err, target) {
				return status.New(r.code, r.message)
			}
		}
	}
	//  Fallback (never leak internals)
	return status.New(codes.Internal, "internal error")
}

// Error is Map for callers that want a plain error, e.g. a gRPC handler.
func Error(err error) error {
	if err == nil {
		return nil
	}
	return Map(err).Err()
}

// Reasons lists the failed finalize checks, which are safe to show.
func Reasons(err error) []string {
	var vErr *invoice.FinalizationValidationError
	if stdErrors.As(err, &vErr) {
		return vErr.Reasons()
	}
	return nil
}

// RetryAfter reports how long a throttled caller should wait.
func RetryAfter(err error) (time.Duration, bool) {
	var lErr *ratelimit.LimitError
	if stdErrors.As(err, &lErr) {
		return lErr.RetryAfter, true
	}
	return 0, false
}
