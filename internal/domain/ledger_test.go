package domain

import (
	"testing"
	"time"
)

func TestRecordThenRemoveKeepsAlignment(t *testing.T) {
	l := &GuestLedger{}

	l.RecordGuestInvites([]GuestRef{
		{Name: "Ann", Email: "ann@example.com"},
		{Name: "Bo", Email: "bo@example.com"},
	}, 100)
	l.RecordGuestInvites([]GuestRef{
		{Name: "Cy", Email: "cy@example.com"},
	}, 200)

	if !l.Aligned() {
		t.Fatalf("misaligned after invites: %d guests, %d ids", len(l.Guests), len(l.GuestBookingIDs))
	}
	if l.PassesUsed != 3 {
		t.Errorf("passes used = %d, want 3", l.PassesUsed)
	}

	removed := l.RemoveBooking(100)
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if !l.Aligned() {
		t.Fatalf("misaligned after removal: %d guests, %d ids", len(l.Guests), len(l.GuestBookingIDs))
	}
	if l.PassesUsed != 1 {
		t.Errorf("passes used = %d, want 1", l.PassesUsed)
	}
	if len(l.Guests) != 1 || l.Guests[0].Email != "cy@example.com" {
		t.Errorf("wrong survivor: %+v", l.Guests)
	}
}

func TestRemoveBookingNoMatchIsNoOp(t *testing.T) {
	l := &GuestLedger{}
	l.RecordGuestInvites([]GuestRef{{Name: "Ann", Email: "ann@example.com"}}, 7)
	before := l.Clone()

	if removed := l.RemoveBooking(999); removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
	if l.PassesUsed != before.PassesUsed || len(l.Guests) != len(before.Guests) {
		t.Errorf("ledger changed by no-match removal: %+v", l)
	}
}

func TestRemoveBookingFloorsPassCounter(t *testing.T) {
	// a ledger whose counter was already reset by a period rollover
	l := &GuestLedger{
		PassesUsed:      0,
		GuestBookingIDs: []int64{5},
		Guests:          []GuestRef{{Name: "Ann", Email: "ann@example.com"}},
	}
	l.RemoveBooking(5)
	if l.PassesUsed != 0 {
		t.Errorf("passes used = %d, want floor at 0", l.PassesUsed)
	}
}

func TestAddReferralCodeDeduplicates(t *testing.T) {
	l := &GuestLedger{}
	if !l.AddReferralCode("AA11BB22") {
		t.Error("first insert should report true")
	}
	if l.AddReferralCode("AA11BB22") {
		t.Error("duplicate insert should report false")
	}
	if len(l.ReferralCodes) != 1 {
		t.Errorf("codes = %v, want one", l.ReferralCodes)
	}
	if !l.HasReferralCode("AA11BB22") || l.HasReferralCode("XX00XX00") {
		t.Error("membership check wrong")
	}
}

func TestSplitGuestPasses(t *testing.T) {
	tests := []struct {
		name                        string
		guests, allowance, used     int
		wantFree, wantCharged       int
	}{
		{"allowance partly spent", 2, 2, 1, 1, 1},
		{"allowance untouched", 2, 2, 0, 2, 0},
		{"allowance exhausted", 3, 2, 2, 0, 3},
		{"counter past allowance", 1, 2, 5, 0, 1},
		{"no guests", 0, 2, 1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitGuestPasses(tt.guests, tt.allowance, tt.used)
			if got.Free != tt.wantFree || got.Charged != tt.wantCharged {
				t.Errorf("got free=%d charged=%d, want free=%d charged=%d",
					got.Free, got.Charged, tt.wantFree, tt.wantCharged)
			}
		})
	}
}

func TestRolloverResetsStalePeriod(t *testing.T) {
	now := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)

	l := &GuestLedger{Period: "2026-07", PassesUsed: 2, ReferralCodes: []string{"KEEP1234"}}
	l.Rollover(now)
	if l.PassesUsed != 0 || l.Period != "2026-08" {
		t.Errorf("stale period not reset: %+v", l)
	}
	if len(l.ReferralCodes) != 1 {
		t.Error("referral codes must survive rollover")
	}

	l.PassesUsed = 1
	l.Rollover(now)
	if l.PassesUsed != 1 {
		t.Error("current-period rollover must not reset the counter")
	}
}
