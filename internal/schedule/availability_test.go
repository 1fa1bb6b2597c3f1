package schedule

import (
	"testing"
	"time"

	"github.com/fairwaylabs/clubhouse/internal/domain"
)

func slot(day, start string, bay int64, service string) domain.Slot {
	return domain.Slot{Day: day, StartTime: start, BayID: bay, ServiceName: service}
}

func TestIsAvailable(t *testing.T) {
	existing := []domain.Session{
		{BookingID: 1, Day: "2026-09-01", StartTime: "10:00", BayID: 3},
		{BookingID: 2, Day: "2026-09-01", StartTime: "11:00", BayID: 4},
	}

	tests := []struct {
		name     string
		proposed domain.Slot
		want     bool
	}{
		{"same bay same time", slot("2026-09-01", "10:00", 3, "Sim Bay 30 min"), false},
		{"same bay other time", slot("2026-09-01", "10:30", 3, "Sim Bay 30 min"), true},
		{"other bay same time", slot("2026-09-01", "10:00", 5, "Sim Bay 30 min"), true},
		{"same time other day", slot("2026-09-02", "10:00", 3, "Sim Bay 30 min"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAvailable(tt.proposed, existing); got != tt.want {
				t.Errorf("IsAvailable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasLocalConflict(t *testing.T) {
	held := []domain.Slot{
		slot("2026-09-01", "10:00", 3, "Sim Bay 1 hr"),
	}

	tests := []struct {
		name     string
		proposed domain.Slot
		want     bool
	}{
		{"exact match", slot("2026-09-01", "10:00", 3, "Sim Bay 30 min"), true},
		// the held hour-long slot occupies its successor bucket too
		{"tail of spanning hold", slot("2026-09-01", "11:00", 3, "Sim Bay 30 min"), true},
		{"clear of the span", slot("2026-09-01", "11:30", 3, "Sim Bay 30 min"), false},
		{"other bay", slot("2026-09-01", "10:00", 4, "Sim Bay 30 min"), false},
		// a proposed spanning slot whose tail lands on the hold
		{"head of spanning proposal", slot("2026-09-01", "09:00", 3, "Sim Bay 1 hr"), true},
		{"short proposal before hold", slot("2026-09-01", "09:30", 3, "Sim Bay 30 min"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasLocalConflict(tt.proposed, held, HeuristicDuration); got != tt.want {
				t.Errorf("HasLocalConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHeuristicDuration(t *testing.T) {
	if d := HeuristicDuration("Sim Bay 1 hr"); d != time.Hour {
		t.Errorf("1 hr service = %v, want 1h", d)
	}
	if d := HeuristicDuration("Sim Bay"); d != DefaultSlotDuration {
		t.Errorf("default service = %v, want %v", d, DefaultSlotDuration)
	}
}

func TestCatalogDurationPrefersExplicitAttribute(t *testing.T) {
	resolve := CatalogDuration([]domain.Service{
		{ID: 1, Name: "Lesson", DurationMin: 45},
		{ID: 2, Name: "Sim Bay 1 hr"}, // no attribute, heuristic applies
	})

	if d := resolve("Lesson"); d != 45*time.Minute {
		t.Errorf("explicit duration = %v, want 45m", d)
	}
	if d := resolve("Sim Bay 1 hr"); d != time.Hour {
		t.Errorf("heuristic fallback = %v, want 1h", d)
	}
	if d := resolve("Unknown"); d != DefaultSlotDuration {
		t.Errorf("unknown service = %v, want default", d)
	}
}
