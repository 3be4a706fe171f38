package tariff

import (
	"errors"
	"testing"
)

func TestDailySegments(t *testing.T) {
	tests := []struct {
		name     string
		cfg      TimeOfUseConfig
		segments int
		wantErr  bool
	}{
		{
			name: "day and wrapping night",
			cfg: TimeOfUseConfig{Currency: "EUR", Zones: []Zone{
				{ID: "day", Start: "07:00", End: "23:00", Rate: dec("0.2")},
				{ID: "night", Start: "23:00", End: "07:00", Rate: dec("0.1")},
			}},
			segments: 3,
		},
		{
			name: "single all day zone using 24:00",
			cfg: TimeOfUseConfig{Currency: "EUR", Zones: []Zone{
				{ID: "all", Start: "00:00", End: "24:00", Rate: dec("0.2")},
			}},
			segments: 1,
		},
		{
			name: "wrap ending exactly at midnight",
			cfg: TimeOfUseConfig{Currency: "EUR", Zones: []Zone{
				{ID: "day", Start: "00:00", End: "22:00", Rate: dec("0.2")},
				{ID: "late", Start: "22:00", End: "00:00", Rate: dec("0.1")},
			}},
			segments: 2,
		},
		{
			name: "weekend only zone is excluded from weekdays",
			cfg: TimeOfUseConfig{Currency: "EUR", WeekendLogic: WeekendApplyWeekendRate, Zones: []Zone{
				{ID: "day", Start: "06:00", End: "22:00", Rate: dec("0.2")},
				{ID: "night", Start: "22:00", End: "06:00", Rate: dec("0.1")},
				{ID: "weekend", Start: "00:00", End: "24:00", Rate: dec("0.05")},
			}},
			segments: 3,
		},
		{
			name: "gap between zones",
			cfg: TimeOfUseConfig{Currency: "EUR", Zones: []Zone{
				{ID: "day", Start: "07:00", End: "22:00", Rate: dec("0.2")},
				{ID: "night", Start: "23:00", End: "07:00", Rate: dec("0.1")},
			}},
			wantErr: true,
		},
		{
			name: "overlapping zones",
			cfg: TimeOfUseConfig{Currency: "EUR", Zones: []Zone{
				{ID: "day", Start: "07:00", End: "23:30", Rate: dec("0.2")},
				{ID: "night", Start: "23:00", End: "07:00", Rate: dec("0.1")},
			}},
			wantErr: true,
		},
		{
			name: "empty window",
			cfg: TimeOfUseConfig{Currency: "EUR", Zones: []Zone{
				{ID: "day", Start: "07:00", End: "07:00", Rate: dec("0.2")},
			}},
			wantErr: true,
		},
		{
			name: "malformed clock",
			cfg: TimeOfUseConfig{Currency: "EUR", Zones: []Zone{
				{ID: "day", Start: "7:00", End: "24:00", Rate: dec("0.2")},
			}},
			wantErr: true,
		},
		{
			name: "24:00 is not a start",
			cfg: TimeOfUseConfig{Currency: "EUR", Zones: []Zone{
				{ID: "day", Start: "24:00", End: "23:00", Rate: dec("0.2")},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs, err := tt.cfg.DailySegments()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfiguration) {
					t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(segs) != tt.segments {
				t.Fatalf("expected %d segments, got %d (%v)", tt.segments, len(segs), segs)
			}
			if segs[0].StartMin != 0 || segs[len(segs)-1].EndMin != minutesPerDay {
				t.Fatalf("segments do not span the day: %v", segs)
			}
		})
	}
}

func TestDuplicateZoneIDs(t *testing.T) {
	cfg := TimeOfUseConfig{Currency: "EUR", Zones: []Zone{
		{ID: "day", Start: "00:00", End: "12:00", Rate: dec("0.2")},
		{ID: "DAY", Start: "12:00", End: "24:00", Rate: dec("0.2")},
	}}
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected duplicate zone rejection, got %v", err)
	}
}
