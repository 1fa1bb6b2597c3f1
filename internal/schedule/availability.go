// Package schedule decides whether a proposed slot can be booked. The
// booking grid is discretized: availability against the remote calendar
// is an exact start-time match per bay, not interval arithmetic.
package schedule

import (
	"strings"
	"time"

	"github.com/fairwaylabs/clubhouse/internal/domain"
)

// DefaultSlotDuration is the grid step for services without a better
// answer from the catalog.
const DefaultSlotDuration = 30 * time.Minute

// DurationResolver maps a service name to its slot duration. Callers
// supply one so duration policy stays out of the checker.
type DurationResolver func(serviceName string) time.Duration

// HeuristicDuration is a migration shim for catalogs that carry no
// duration attribute: a service whose name mentions an hour runs 60
// minutes, everything else takes the default grid step. New callers
// should prefer CatalogDuration.
func HeuristicDuration(serviceName string) time.Duration {
	name := strings.ToLower(serviceName)
	if strings.Contains(name, "1 hr") || strings.Contains(name, "1hr") || strings.Contains(name, "60 min") {
		return time.Hour
	}
	return DefaultSlotDuration
}

// CatalogDuration resolves durations from the service catalog's explicit
// attribute, falling back to the heuristic for entries that omit it.
func CatalogDuration(services []domain.Service) DurationResolver {
	byName := make(map[string]time.Duration, len(services))
	for _, s := range services {
		if s.DurationMin > 0 {
			byName[s.Name] = time.Duration(s.DurationMin) * time.Minute
		}
	}
	return func(serviceName string) time.Duration {
		if d, ok := byName[serviceName]; ok {
			return d
		}
		return HeuristicDuration(serviceName)
	}
}

// IsAvailable reports whether the proposed slot is free on the remote
// calendar: taken iff an existing session on the same bay starts at
// exactly the same time on the same day.
func IsAvailable(proposed domain.Slot, existing []domain.Session) bool {
	for _, s := range existing {
		if s.BayID == proposed.BayID && s.Day == proposed.Day && s.StartTime == proposed.StartTime {
			return false
		}
	}
	return true
}

// HasLocalConflict checks the proposed slot against the not-yet-submitted
// selections already in the basket. Beyond the exact-time check it also
// rejects the duration-shifted successor bucket in both directions, so a
// spanning reservation cannot be double-booked against its own tail.
func HasLocalConflict(proposed domain.Slot, held []domain.Slot, resolve DurationResolver) bool {
	if resolve == nil {
		resolve = HeuristicDuration
	}
	propStart, ok := minutesOfDay(proposed.StartTime)
	if !ok {
		return false
	}
	for _, h := range held {
		if h.BayID != proposed.BayID || h.Day != proposed.Day {
			continue
		}
		if h.StartTime == proposed.StartTime {
			return true
		}
		heldStart, ok := minutesOfDay(h.StartTime)
		if !ok {
			continue
		}
		if heldStart+int(resolve(h.ServiceName).Minutes()) == propStart {
			return true
		}
		if propStart+int(resolve(proposed.ServiceName).Minutes()) == heldStart {
			return true
		}
	}
	return false
}

func minutesOfDay(hhmm string) (int, bool) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
