//services/billing-service/internal/invoice/invoice_finalizer_test.go

package invoice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/audit"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/identity"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/policy"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/ratelimit"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tenancy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- MOCKS ---

// MockFinalizerStore keeps a single invoice in memory and applies the same
// status conditions the SQL store puts in its WHERE clauses.
type MockFinalizerStore struct {
	Invoice     *Invoice
	FetchErr    error
	FinalizeErr error
	Finalizes   int
}

func (m *MockFinalizerStore) GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	if m.Invoice == nil || m.Invoice.ID != id {
		return nil, ErrInvoiceNotFound
	}
	cp := *m.Invoice
	return &cp, nil
}

func (m *MockFinalizerStore) FinalizeInvoice(ctx context.Context, id uuid.UUID, at time.Time) error {
	if m.FinalizeErr != nil {
		return m.FinalizeErr
	}
	// Simulate the SQL constraint: "WHERE status = 'DRAFT'"
	if m.Invoice.Status != InvoiceDraft {
		return ErrInvoiceAlreadyFinalized
	}
	m.Finalizes++
	m.Invoice.Status = InvoiceFinalized
	m.Invoice.FinalizedAt = &at
	return nil
}

func (m *MockFinalizerStore) MarkInvoicePaid(ctx context.Context, id uuid.UUID, at time.Time) error {
	if m.Invoice.Status != InvoiceFinalized {
		return ErrInvalidTransition
	}
	m.Invoice.Status = InvoicePaid
	m.Invoice.PaidAt = &at
	return nil
}

// Unused methods for this specific test, but required by interface
func (m *MockFinalizerStore) CreateInvoice(ctx context.Context, inv *Invoice) error { return nil }
func (m *MockFinalizerStore) GetInvoiceByID(ctx context.Context, s tenancy.Scope, id uuid.UUID) (*Invoice, error) {
	return nil, nil
}
func (m *MockFinalizerStore) FindInvoiceForPeriod(ctx context.Context, s tenancy.Scope, r uuid.UUID, a, b time.Time) (*Invoice, error) {
	return nil, nil
}
func (m *MockFinalizerStore) ListInvoices(ctx context.Context, s tenancy.Scope, f ListFilter) ([]Invoice, error) {
	return nil, nil
}
func (m *MockFinalizerStore) CountInvoices(ctx context.Context, s tenancy.Scope, f ListFilter) (int, error) {
	return 0, nil
}
func (m *MockFinalizerStore) UpdateDraftInvoice(ctx context.Context, inv *Invoice) error {
	return nil
}
func (m *MockFinalizerStore) DeleteDraftInvoice(ctx context.Context, id uuid.UUID) error {
	return nil
}

type MockTxManager struct{}

func (MockTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type MockLimiter struct{ Err error }

func (m MockLimiter) Allow(ctx context.Context, key string) error { return m.Err }

type MockAuditor struct{ Events []audit.Event }

func (m *MockAuditor) Record(ctx context.Context, ev audit.Event) { m.Events = append(m.Events, ev) }

func (m *MockAuditor) Outcomes() []audit.Outcome {
	out := make([]audit.Outcome, len(m.Events))
	for i, ev := range m.Events {
		out[i] = ev.Outcome
	}
	return out
}

type MockMetrics struct{ Finalize []string }

func (m *MockMetrics) InvoiceGenerated(outcome string, took time.Duration) {}
func (m *MockMetrics) FinalizeAttempt(outcome string)                      { m.Finalize = append(m.Finalize, outcome) }

type MockPublisher struct{ Keys []string }

func (m *MockPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	m.Keys = append(m.Keys, key)
	return nil
}

// --- HELPERS ---

func staff(role identity.Role, tenantID uuid.UUID) identity.Principal {
	return identity.Principal{ID: uuid.New(), Role: role, TenantID: &tenantID}
}

func draftInvoice(id, tenantID uuid.UUID) *Invoice {
	return &Invoice{
		ID:          id,
		TenantID:    tenantID,
		RenterID:    uuid.New(),
		PeriodStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		TotalAmount: decimal.RequireFromString("100.00"),
		Currency:    "EUR",
		Status:      InvoiceDraft,
		Items:       []InvoiceItem{{ID: uuid.New(), Description: "electricity", Total: decimal.RequireFromString("100.00")}},
	}
}

// --- TESTS ---

func TestFinalizeInvoice(t *testing.T) {
	testID := uuid.New()
	tenantID := uuid.New()
	otherTenant := uuid.New()
	fixedNow := time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		principal     identity.Principal
		initialState  func() *Invoice // What's in the DB before we start?
		limiterErr    error
		expectedError error         // What error do we expect?
		verifyStatus  InvoiceStatus // What should the status be after?
		outcome       audit.Outcome
	}{
		{
			name:         "Happy Path: Draft -> Finalized",
			principal:    staff(identity.RoleAdmin, tenantID),
			initialState: func() *Invoice { return draftInvoice(testID, tenantID) },
			verifyStatus: InvoiceFinalized,
			outcome:      audit.OutcomeSuccess,
		},
		{
			name:         "Manager may finalize",
			principal:    staff(identity.RoleManager, tenantID),
			initialState: func() *Invoice { return draftInvoice(testID, tenantID) },
			verifyStatus: InvoiceFinalized,
			outcome:      audit.OutcomeSuccess,
		},
		{
			name:         "Superadmin crosses tenants",
			principal:    identity.Principal{ID: uuid.New(), Role: identity.RoleSuperadmin},
			initialState: func() *Invoice { return draftInvoice(testID, tenantID) },
			verifyStatus: InvoiceFinalized,
			outcome:      audit.OutcomeSuccess,
		},
		{
			name:      "Idempotency: Already Finalized -> Error",
			principal: staff(identity.RoleAdmin, tenantID),
			initialState: func() *Invoice {
				inv := draftInvoice(testID, tenantID)
				inv.Status = InvoiceFinalized
				return inv
			},
			expectedError: ErrInvoiceAlreadyFinalized,
			verifyStatus:  InvoiceFinalized,
			outcome:       audit.OutcomeRejected,
		},
		{
			name:      "Paid invoice cannot be finalized again",
			principal: staff(identity.RoleAdmin, tenantID),
			initialState: func() *Invoice {
				inv := draftInvoice(testID, tenantID)
				inv.Status = InvoicePaid
				return inv
			},
			expectedError: ErrInvoiceAlreadyFinalized,
			verifyStatus:  InvoicePaid,
			outcome:       audit.OutcomeRejected,
		},
		{
			name:          "Tenant role is always refused",
			principal:     staff(identity.RoleTenant, tenantID),
			initialState:  func() *Invoice { return draftInvoice(testID, tenantID) },
			expectedError: policy.ErrForbidden,
			verifyStatus:  InvoiceDraft,
			outcome:       audit.OutcomeDenied,
		},
		{
			name:          "Admin of another tenant is refused",
			principal:     staff(identity.RoleAdmin, otherTenant),
			initialState:  func() *Invoice { return draftInvoice(testID, tenantID) },
			expectedError: policy.ErrForbidden,
			verifyStatus:  InvoiceDraft,
			outcome:       audit.OutcomeDenied,
		},
		{
			name:          "Rate limited",
			principal:     staff(identity.RoleAdmin, tenantID),
			initialState:  func() *Invoice { return draftInvoice(testID, tenantID) },
			limiterErr:    &ratelimit.LimitError{Key: "finalize", RetryAfter: time.Second},
			expectedError: ratelimit.ErrRateLimited,
			verifyStatus:  InvoiceDraft,
			outcome:       audit.OutcomeRateLimited,
		},
		{
			name:      "Integrity Check: No Items",
			principal: staff(identity.RoleAdmin, tenantID),
			initialState: func() *Invoice {
				inv := draftInvoice(testID, tenantID)
				inv.Items = nil
				inv.TotalAmount = decimal.Zero
				return inv
			},
			expectedError: ErrFinalizationValidation,
			verifyStatus:  InvoiceDraft, // Should NOT change
			outcome:       audit.OutcomeValidationFailed,
		},
		{
			name:      "Integrity Check: Total Differs From Items",
			principal: staff(identity.RoleAdmin, tenantID),
			initialState: func() *Invoice {
				inv := draftInvoice(testID, tenantID)
				inv.TotalAmount = decimal.RequireFromString("999.99")
				return inv
			},
			expectedError: ErrFinalizationValidation,
			verifyStatus:  InvoiceDraft,
			outcome:       audit.OutcomeValidationFailed,
		},
		{
			name:          "Not Found: Invoice Does Not Exist",
			principal:     staff(identity.RoleAdmin, tenantID),
			initialState:  func() *Invoice { return nil },
			expectedError: ErrInvoiceNotFound,
			outcome:       audit.OutcomeRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 1. Setup
			store := &MockFinalizerStore{Invoice: tt.initialState()}
			auditor := &MockAuditor{}
			metrics := &MockMetrics{}
			publisher := &MockPublisher{}
			finalizer := NewInvoiceFinalizer(store, MockTxManager{}, zap.NewNop(),
				WithLimiter(MockLimiter{Err: tt.limiterErr}),
				WithAuditor(auditor),
				WithMetrics(metrics),
				WithPublisher(publisher),
				WithClock(func() time.Time { return fixedNow }))

			// 2. Execute
			inv, err := finalizer.FinalizeInvoice(context.Background(), tt.principal, testID)

			// 3. Verify Error
			if tt.expectedError != nil {
				if !errors.Is(err, tt.expectedError) {
					t.Fatalf("Expected error '%v', got '%v'", tt.expectedError, err)
				}
				if len(publisher.Keys) != 0 {
					t.Errorf("no event may be published on failure")
				}
			} else {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				if inv.FinalizedAt == nil || !inv.FinalizedAt.Equal(fixedNow) {
					t.Errorf("finalized_at not set from the clock: %v", inv.FinalizedAt)
				}
				if len(publisher.Keys) != 1 || publisher.Keys[0] != testID.String() {
					t.Errorf("expected one event keyed by invoice id, got %v", publisher.Keys)
				}
			}

			// 4. Verify Final State (Immutability Check)
			if store.Invoice != nil && store.Invoice.Status != tt.verifyStatus {
				t.Errorf("Status mismatch. Expected %s, got %s", tt.verifyStatus, store.Invoice.Status)
			}

			// 5. Verify the audit trail: the last record is the outcome
			outcomes := auditor.Outcomes()
			if len(outcomes) == 0 || outcomes[len(outcomes)-1] != tt.outcome {
				t.Errorf("expected final audit outcome %s, got %v", tt.outcome, outcomes)
			}
			if len(metrics.Finalize) != 1 || metrics.Finalize[0] != string(tt.outcome) {
				t.Errorf("expected one finalize metric %s, got %v", tt.outcome, metrics.Finalize)
			}
		})
	}
}

func TestFinalizeTwiceKeepsFirstTimestamp(t *testing.T) {
	id, tenantID := uuid.New(), uuid.New()
	store := &MockFinalizerStore{Invoice: draftInvoice(id, tenantID)}
	now := time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC)
	finalizer := NewInvoiceFinalizer(store, MockTxManager{}, zap.NewNop(), WithClock(func() time.Time { return now }))
	admin := staff(identity.RoleAdmin, tenantID)

	if _, err := finalizer.FinalizeInvoice(context.Background(), admin, id); err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	now = now.Add(time.Hour)
	if _, err := finalizer.FinalizeInvoice(context.Background(), admin, id); !errors.Is(err, ErrInvoiceAlreadyFinalized) {
		t.Fatalf("second finalize: expected ErrInvoiceAlreadyFinalized, got %v", err)
	}
	if store.Finalizes != 1 || !store.Invoice.FinalizedAt.Equal(now.Add(-time.Hour)) {
		t.Fatalf("finalized_at changed by second call: %v", store.Invoice.FinalizedAt)
	}
}

func TestValidationErrorCarriesAllFailures(t *testing.T) {
	inv := &Invoice{
		PeriodStart: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		TotalAmount: decimal.Zero,
	}
	err := ValidateForFinalization(inv)

	var vErr *FinalizationValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected FinalizationValidationError, got %v", err)
	}
	want := []FinalizationFailure{FailureNoItems, FailureNonPositiveTotal, FailureInvalidPeriod}
	if len(vErr.Failures) != len(want) {
		t.Fatalf("expected %v, got %v", want, vErr.Failures)
	}
	for i := range want {
		if vErr.Failures[i] != want[i] {
			t.Errorf("failure %d: expected %s, got %s", i, want[i], vErr.Failures[i])
		}
	}
}

func TestMarkPaid(t *testing.T) {
	tenantID := uuid.New()
	tests := []struct {
		name    string
		status  InvoiceStatus
		wantErr error
		want    InvoiceStatus
	}{
		{name: "Finalized -> Paid", status: InvoiceFinalized, want: InvoicePaid},
		{name: "Draft cannot skip finalization", status: InvoiceDraft, wantErr: ErrInvalidTransition, want: InvoiceDraft},
		{name: "Paid is terminal", status: InvoicePaid, wantErr: ErrInvalidTransition, want: InvoicePaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := uuid.New()
			inv := draftInvoice(id, tenantID)
			inv.Status = tt.status
			store := &MockFinalizerStore{Invoice: inv}
			finalizer := NewInvoiceFinalizer(store, MockTxManager{}, zap.NewNop())

			_, err := finalizer.MarkPaid(context.Background(), staff(identity.RoleManager, tenantID), id)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if store.Invoice.Status != tt.want {
				t.Fatalf("expected status %s, got %s", tt.want, store.Invoice.Status)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	allowed := map[[2]InvoiceStatus]bool{
		{InvoiceDraft, InvoiceFinalized}: true,
		{InvoiceFinalized, InvoicePaid}:  true,
	}
	all := []InvoiceStatus{InvoiceDraft, InvoiceFinalized, InvoicePaid}
	for _, from := range all {
		for _, to := range all {
			if got := CanTransition(from, to); got != allowed[[2]InvoiceStatus{from, to}] {
				t.Errorf("CanTransition(%s, %s) = %v", from, to, got)
			}
		}
	}
}

func TestTotalMismatchIsReported(t *testing.T) {
	inv := draftInvoice(uuid.New(), uuid.New())
	inv.TotalAmount = decimal.RequireFromString("99.99")

	err := ValidateForFinalization(inv)
	var vErr *FinalizationValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected FinalizationValidationError, got %v", err)
	}
	if len(vErr.Failures) != 1 || vErr.Failures[0] != FailureTotalMismatch {
		t.Fatalf("expected only %s, got %v", FailureTotalMismatch, vErr.Failures)
	}
}
