//services/billing-service/internal/billing/billing_calculator_test.go

package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	billingtypes "github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/billingTypes"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/property"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tariff"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tenancy"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/usage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- MOCK STORES ---

type MockReadingSource struct {
	Readings []usage.MeterReading
	Err      error
}

func (m *MockReadingSource) ListReadingsForPeriod(ctx context.Context, scope tenancy.Scope, meterID uuid.UUID, from, to time.Time) ([]usage.MeterReading, error) {
	return m.Readings, m.Err
}

type MockTariffSource struct {
	Tariffs []tariff.Tariff
}

func (m *MockTariffSource) ListTariffsOverlapping(ctx context.Context, s billingtypes.ServiceType, from, to time.Time) ([]tariff.Tariff, error) {
	var out []tariff.Tariff
	for _, t := range m.Tariffs {
		if t.ServiceType == s && t.Overlaps(from, to) {
			out = append(out, t)
		}
	}
	return out, nil
}

// --- HELPERS ---

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func jan(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

func flat(name string, rate string, from time.Time, until *time.Time) tariff.Tariff {
	return tariff.Tariff{
		ID:            uuid.New(),
		Name:          name,
		ServiceType:   billingtypes.ServiceElectricity,
		Configuration: tariff.FlatConfig{Currency: "EUR", Rate: dec(rate)},
		ActiveFrom:    from,
		ActiveUntil:   until,
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func readings(start, end string) []usage.MeterReading {
	return []usage.MeterReading{
		{ID: uuid.New(), ReadingDate: jan(1), Value: dec(start)},
		{ID: uuid.New(), ReadingDate: jan(31), Value: dec(end)},
	}
}

var meter = property.Meter{
	ID:           uuid.New(),
	SerialNumber: "EM-001",
	ServiceType:  billingtypes.ServiceElectricity,
	Unit:         billingtypes.UnitKWh,
}

// --- TESTS ---

func TestMeterLines(t *testing.T) {
	dec1 := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)

	type wantLine struct {
		qty   string
		total string
	}
	tests := []struct {
		name     string
		tariffs  []tariff.Tariff
		readings []usage.MeterReading
		want     []wantLine
		wantErr  error
	}{
		{
			name:     "single flat tariff",
			tariffs:  []tariff.Tariff{flat("Standard", "0.20", dec1, nil)},
			readings: readings("100", "300"),
			want:     []wantLine{{"200", "40.00"}},
		},
		{
			name: "tariff change mid period splits the line",
			tariffs: []tariff.Tariff{
				flat("Old", "0.20", dec1, timePtr(jan(16))),
				flat("New", "0.30", jan(16), nil),
			},
			readings: readings("0", "300"),
			want:     []wantLine{{"150", "30.00"}, {"150", "45.00"}},
		},
		{
			name: "later tariff supersedes an open ended one",
			tariffs: []tariff.Tariff{
				flat("Base", "0.20", dec1, nil),
				flat("Promo", "0.10", jan(11), nil),
			},
			readings: readings("0", "300"),
			want:     []wantLine{{"100", "20.00"}, {"200", "20.00"}},
		},
		{
			name: "remainder goes to the last slice",
			tariffs: []tariff.Tariff{
				flat("A", "1", dec1, timePtr(jan(11))),
				flat("B", "1", jan(11), timePtr(jan(21))),
				flat("C", "1", jan(21), nil),
			},
			readings: readings("0", "100"),
			want:     []wantLine{{"33.3333", "33.33"}, {"33.3333", "33.33"}, {"33.3334", "33.33"}},
		},
		{
			name:     "zero consumption still produces a line",
			tariffs:  []tariff.Tariff{flat("Standard", "0.20", dec1, nil)},
			readings: readings("500", "500"),
			want:     []wantLine{{"0", "0"}},
		},
		{
			name: "gap between tariffs",
			tariffs: []tariff.Tariff{
				flat("A", "0.20", dec1, timePtr(jan(11))),
				flat("B", "0.20", jan(21), nil),
			},
			readings: readings("0", "100"),
			wantErr:  ErrNoApplicableTariff,
		},
		{
			name:     "no tariff at all",
			readings: readings("0", "100"),
			wantErr:  ErrNoApplicableTariff,
		},
		{
			name:     "missing readings",
			tariffs:  []tariff.Tariff{flat("Standard", "0.20", dec1, nil)},
			readings: readings("0", "100")[:1],
			wantErr:  usage.ErrMissingReading,
		},
		{
			name:     "negative consumption",
			tariffs:  []tariff.Tariff{flat("Standard", "0.20", dec1, nil)},
			readings: readings("100", "50"),
			wantErr:  usage.ErrNegativeConsumption,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := NewCalculator(&MockReadingSource{Readings: tt.readings}, &MockTariffSource{Tariffs: tt.tariffs})
			lines, err := calc.MeterLines(context.Background(), tenancy.System(), meter, jan(1), jan(31))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(lines) != len(tt.want) {
				t.Fatalf("expected %d lines, got %d", len(tt.want), len(lines))
			}
			sum := decimal.Zero
			for i, w := range tt.want {
				if !lines[i].Quantity.Equal(dec(w.qty)) {
					t.Errorf("line %d: expected quantity %s, got %s", i, w.qty, lines[i].Quantity)
				}
				if !lines[i].Total.Equal(dec(w.total)) {
					t.Errorf("line %d: expected total %s, got %s", i, w.total, lines[i].Total)
				}
				if lines[i].Unit != billingtypes.UnitKWh || lines[i].Currency != "EUR" {
					t.Errorf("line %d: unexpected unit/currency %s/%s", i, lines[i].Unit, lines[i].Currency)
				}
				sum = sum.Add(lines[i].Quantity)
			}
			measured := tt.readings[len(tt.readings)-1].Value.Sub(tt.readings[0].Value)
			if !sum.Equal(measured) {
				t.Errorf("line quantities sum to %s, measured %s", sum, measured)
			}
		})
	}
}

func TestNoApplicableTariffNamesTheGap(t *testing.T) {
	dec1 := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	_, err := PlanSlices(billingtypes.ServiceElectricity, []tariff.Tariff{
		flat("A", "0.20", dec1, timePtr(jan(11))),
		flat("B", "0.20", jan(21), nil),
	}, jan(1), jan(31))

	var gapErr *NoApplicableTariffError
	if !errors.As(err, &gapErr) {
		t.Fatalf("expected NoApplicableTariffError, got %v", err)
	}
	if !gapErr.From.Equal(jan(11)) || !gapErr.To.Equal(jan(21)) {
		t.Fatalf("expected gap 11..21, got %s..%s", gapErr.From, gapErr.To)
	}
}

func TestFixedFeeIsProratedAcrossSlices(t *testing.T) {
	dec1 := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	fee := dec("10")
	a := flat("A", "0", dec1, timePtr(jan(16)))
	a.Configuration = tariff.FlatConfig{Currency: "EUR", Rate: dec("0"), FixedFee: &fee}
	b := flat("B", "0", jan(16), nil)
	b.Configuration = tariff.FlatConfig{Currency: "EUR", Rate: dec("0"), FixedFee: &fee}

	calc := NewCalculator(&MockReadingSource{Readings: readings("0", "10")}, &MockTariffSource{Tariffs: []tariff.Tariff{a, b}})
	lines, err := calc.MeterLines(context.Background(), tenancy.System(), meter, jan(1), jan(31))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, l := range lines {
		if !l.Total.Equal(dec("5")) {
			t.Errorf("expected half the fee per slice, got %s", l.Total)
		}
	}
}

func TestUnitPriceIsDerived(t *testing.T) {
	dec1 := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	calc := NewCalculator(&MockReadingSource{Readings: readings("0", "3")}, &MockTariffSource{Tariffs: []tariff.Tariff{flat("A", "0.3333", dec1, nil)}})
	lines, err := calc.MeterLines(context.Background(), tenancy.System(), meter, jan(1), jan(31))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// total 3 * 0.3333 = 0.9999 -> 1.00; unit price 1.00 / 3 = 0.3333
	if !lines[0].Total.Equal(dec("1")) || !lines[0].UnitPrice.Equal(dec("0.3333")) {
		t.Fatalf("unexpected total/unit price %s/%s", lines[0].Total, lines[0].UnitPrice)
	}
}

func TestQuantitiesKeepStoredPrecision(t *testing.T) {
	dec1 := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	calc := NewCalculator(&MockReadingSource{Readings: readings("100.123456", "200.987654")}, &MockTariffSource{Tariffs: []tariff.Tariff{
		flat("Old", "0.20", dec1, timePtr(jan(16))),
		flat("New", "0.30", jan(16), nil),
	}})
	lines, err := calc.MeterLines(context.Background(), tenancy.System(), meter, jan(1), jan(31))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	sum := decimal.Zero
	for i, l := range lines {
		if !l.Quantity.Equal(l.Quantity.Round(quantityPlaces)) {
			t.Errorf("line %d: quantity %s has more than %d places", i, l.Quantity, quantityPlaces)
		}
		sum = sum.Add(l.Quantity)
	}
	// 100.864198 measured, stored as 100.8642
	if !sum.Equal(dec("100.8642")) {
		t.Errorf("line quantities sum to %s, want 100.8642", sum)
	}
}
