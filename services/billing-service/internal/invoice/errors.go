//services/billing-service/internal/invoice/errors.go

package invoice

import "errors"

var (
	// ErrInvoiceNotFound is also what callers outside the invoice's tenant get.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrInvoiceAlreadyFinalized guards every mutation of a FINALIZED or PAID invoice,
	// including a second finalize.
	ErrInvoiceAlreadyFinalized = errors.New("invoice is already finalized")

	// ErrInvalidTransition protects the state machine: DRAFT -> FINALIZED -> PAID only.
	ErrInvalidTransition = errors.New("invalid invoice status transition")

	ErrFinalizationValidation = errors.New("invoice failed finalization checks")

	ErrInvalidInvoice = errors.New("invalid invoice")

	// ErrDuplicateInvoice means another invoice already exists for the renter and period.
	ErrDuplicateInvoice = errors.New("invoice already exists for this period")
)
