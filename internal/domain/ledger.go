package domain

import "time"

// GuestLedger is the per-member record of guest-pass usage, referral
// codes and guest-to-booking associations. It is derived state: rebuilt
// from the member store's profile fields on every read and written back
// whole. Guests and GuestBookingIDs are parallel sequences; position i
// in both refers to the same invite event.
type GuestLedger struct {
	// Period tags PassesUsed with the billing month it counts against
	// (YYYY-MM). A ledger carrying a stale period is rolled over before
	// the next mutation.
	Period          string     `json:"period,omitempty"`
	PassesUsed      int        `json:"guest_passes_used"`
	ReferralCodes   []string   `json:"referral_codes,omitempty"`
	GuestBookingIDs []int64    `json:"guest_booking_ids,omitempty"`
	Guests          []GuestRef `json:"guests,omitempty"`
}

// Aligned reports whether the parallel sequences are index-aligned.
func (l *GuestLedger) Aligned() bool {
	return len(l.Guests) == len(l.GuestBookingIDs)
}

// Rollover resets the pass counter when the ledger's period is not the
// current one. Referral codes and guest history survive the rollover.
func (l *GuestLedger) Rollover(now time.Time) {
	period := now.Format("2006-01")
	if l.Period != period {
		l.Period = period
		l.PassesUsed = 0
	}
}

// RecordGuestInvites appends each guest and one bookingID entry per
// guest, keeping the sequences aligned, and spends one pass per guest.
func (l *GuestLedger) RecordGuestInvites(guests []GuestRef, bookingID int64) {
	for _, g := range guests {
		g.BookingID = bookingID
		l.Guests = append(l.Guests, g)
		l.GuestBookingIDs = append(l.GuestBookingIDs, bookingID)
	}
	l.PassesUsed += len(guests)
}

// RemoveBooking drops every position whose booking id matches, returning
// the freed passes to the counter (floored at zero). Unknown ids are a
// no-op.
func (l *GuestLedger) RemoveBooking(bookingID int64) int {
	removed := 0
	guests := l.Guests[:0]
	ids := l.GuestBookingIDs[:0]
	for i, id := range l.GuestBookingIDs {
		if id == bookingID {
			removed++
			continue
		}
		ids = append(ids, id)
		guests = append(guests, l.Guests[i])
	}
	l.Guests = guests
	l.GuestBookingIDs = ids
	l.PassesUsed -= removed
	if l.PassesUsed < 0 {
		l.PassesUsed = 0
	}
	return removed
}

// AddReferralCode inserts with set semantics; returns false on duplicate.
func (l *GuestLedger) AddReferralCode(code string) bool {
	for _, c := range l.ReferralCodes {
		if c == code {
			return false
		}
	}
	l.ReferralCodes = append(l.ReferralCodes, code)
	return true
}

// HasReferralCode checks membership in the referral-code set.
func (l *GuestLedger) HasReferralCode(code string) bool {
	for _, c := range l.ReferralCodes {
		if c == code {
			return true
		}
	}
	return false
}

// GuestsForBooking returns the guests invited on the given booking.
func (l *GuestLedger) GuestsForBooking(bookingID int64) []GuestRef {
	var out []GuestRef
	for i, id := range l.GuestBookingIDs {
		if id == bookingID && i < len(l.Guests) {
			out = append(out, l.Guests[i])
		}
	}
	return out
}

// Clone returns a deep copy.
func (l *GuestLedger) Clone() *GuestLedger {
	c := &GuestLedger{
		Period:     l.Period,
		PassesUsed: l.PassesUsed,
	}
	c.ReferralCodes = append(c.ReferralCodes, l.ReferralCodes...)
	c.GuestBookingIDs = append(c.GuestBookingIDs, l.GuestBookingIDs...)
	c.Guests = append(c.Guests, l.Guests...)
	return c
}
