package domain

import (
	"fmt"
	"strings"
	"time"
)

// Slot is a discretized bookable unit of bay-time.
type Slot struct {
	Day         string `json:"day"`        // YYYY-MM-DD
	StartTime   string `json:"start_time"` // HH:MM, 24h
	BayID       int64  `json:"bay_id"`
	BayName     string `json:"bay_name"`
	ServiceID   int64  `json:"service_id"`
	ServiceName string `json:"service_name"`
}

// Key identifies a slot within a day's grid.
func (s Slot) Key() string {
	return fmt.Sprintf("%s|%d|%s", s.Day, s.BayID, s.StartTime)
}

func (s Slot) String() string {
	return fmt.Sprintf("%s %s bay %s", s.Day, s.StartTime, s.BayName)
}

// Session is an existing reservation on the remote booking calendar.
type Session struct {
	BookingID   int64  `json:"booking_id"`
	Day         string `json:"day"`
	StartTime   string `json:"start_time"`
	BayID       int64  `json:"bay_id"`
	ServiceName string `json:"service_name"`
	MemberID    string `json:"member_id,omitempty"`
}

// GuestRef is a guest attached to a booking. BookingID associates the
// invite with the reservation that spent the pass.
type GuestRef struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	BookingID int64  `json:"booking_id,omitempty"`
}

// GuestPassUsage splits a booking's guest count into free and charged passes.
type GuestPassUsage struct {
	Free    int `json:"free"`
	Charged int `json:"charged"`
}

// SplitGuestPasses computes how many of guestCount passes are covered by
// the remaining free allowance and how many must be charged.
func SplitGuestPasses(guestCount, allowance, usedThisPeriod int) GuestPassUsage {
	remaining := allowance - usedThisPeriod
	if remaining < 0 {
		remaining = 0
	}
	free := guestCount
	if free > remaining {
		free = remaining
	}
	return GuestPassUsage{Free: free, Charged: guestCount - free}
}

// Booking is a confirmed reservation. The ID is assigned by the remote
// calendar; bookings are never partially updated, only created or canceled.
type Booking struct {
	ID           int64          `json:"id"`
	Day          string         `json:"day"`
	StartTime    string         `json:"start_time"`
	ServiceName  string         `json:"service_name"`
	LocationName string         `json:"location_name"`
	BayName      string         `json:"bay_name"`
	Guests       []GuestRef     `json:"guests,omitempty"`
	PassUsage    GuestPassUsage `json:"guest_pass_usage"`
	CreatedAt    time.Time      `json:"created_at"`
}

// BookingRequest is a basket of slots, booked independently, plus the
// guests invited along.
type BookingRequest struct {
	Slots  []Slot     `json:"slots"`
	Guests []GuestRef `json:"guests,omitempty"`
}

func (r *BookingRequest) Validate() error {
	if len(r.Slots) == 0 {
		return fmt.Errorf("at least one slot is required")
	}
	seen := make(map[string]bool, len(r.Slots))
	for _, s := range r.Slots {
		if s.Day == "" || s.StartTime == "" || s.BayID == 0 || s.ServiceID == 0 {
			return fmt.Errorf("slot %q is missing day, time, bay or service", s.Key())
		}
		if _, err := time.Parse("2006-01-02", s.Day); err != nil {
			return fmt.Errorf("slot day %q must be YYYY-MM-DD", s.Day)
		}
		if _, err := time.Parse("15:04", s.StartTime); err != nil {
			return fmt.Errorf("slot time %q must be HH:MM", s.StartTime)
		}
		if seen[s.Key()] {
			return fmt.Errorf("duplicate slot %q in request", s.Key())
		}
		seen[s.Key()] = true
	}
	for _, g := range r.Guests {
		if strings.TrimSpace(g.Name) == "" || strings.TrimSpace(g.Email) == "" {
			return fmt.Errorf("guests require a name and an email")
		}
	}
	return nil
}

// BookingResult reports what actually happened: reservations are made
// one by one, so success can be partial.
type BookingResult struct {
	Booked        []Booking      `json:"booked"`
	Failed        []SlotFailure  `json:"failed,omitempty"`
	PassUsage     GuestPassUsage `json:"guest_pass_usage"`
	ReferralCodes []string       `json:"referral_codes,omitempty"`
}
