// services/billing-service/internal/invoice/state.go

package invoice

import (
	"fmt"
	"strings"
)

// transitions lists the only forward moves. PAID is terminal.
var transitions = map[InvoiceStatus]InvoiceStatus{
	InvoiceDraft:     InvoiceFinalized,
	InvoiceFinalized: InvoicePaid,
}

func CanTransition(from, to InvoiceStatus) bool {
	next, ok := transitions[from]
	return ok && next == to
}

// checkTransition maps a refused move onto the error callers expect:
// a finalize of anything past DRAFT is ErrInvoiceAlreadyFinalized.
func checkTransition(from, to InvoiceStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	if to == InvoiceFinalized && (from == InvoiceFinalized || from == InvoicePaid) {
		return ErrInvoiceAlreadyFinalized
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Editable reports whether any field other than status may change.
func (inv *Invoice) Editable() error {
	if inv.Status != InvoiceDraft {
		return ErrInvoiceAlreadyFinalized
	}
	return nil
}

// FinalizationFailure names one failed precondition. The values are safe to show to users.
type FinalizationFailure string

const (
	FailureNoItems          FinalizationFailure = "no_items"
	FailureNonPositiveTotal FinalizationFailure = "non_positive_total"
	FailureInvalidPeriod    FinalizationFailure = "invalid_billing_period"
	FailureTotalMismatch    FinalizationFailure = "total_mismatch"
)

type FinalizationValidationError struct {
	Failures []FinalizationFailure
}

func (e *FinalizationValidationError) Error() string {
	return "invoice cannot be finalized: " + strings.Join(e.Reasons(), ", ")
}

func (e *FinalizationValidationError) Unwrap() error {
	return ErrFinalizationValidation
}

// Reasons returns the failed checks as plain strings.
func (e *FinalizationValidationError) Reasons() []string {
	out := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = string(f)
	}
	return out
}

// ValidateForFinalization reports every failed precondition at once.
func ValidateForFinalization(inv *Invoice) error {
	var failures []FinalizationFailure
	if inv.NumItems() == 0 {
		failures = append(failures, FailureNoItems)
	}
	if !inv.TotalAmount.IsPositive() {
		failures = append(failures, FailureNonPositiveTotal)
	}
	if !inv.PeriodStart.Before(inv.PeriodEnd) {
		failures = append(failures, FailureInvalidPeriod)
	}
	if len(inv.Items) > 0 && !inv.TotalAmount.Equal(SumItems(inv.Items)) {
		failures = append(failures, FailureTotalMismatch)
	}
	if len(failures) > 0 {
		return &FinalizationValidationError{Failures: failures}
	}
	return nil
}
