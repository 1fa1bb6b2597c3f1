// Package ledger encodes the guest ledger into the member store's
// free-text profile fields and back.
//
// Two layouts exist in the wild. The legacy layout spread the ledger
// across four unrelated free-text fields, one per logical value, which
// made index alignment between the guest list and the booking-id list a
// matter of luck under partial writes. The current layout is a single
// versioned JSON envelope in one field; the legacy fields are still
// read for migration and blanked on the next write.
package ledger

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/fairwaylabs/clubhouse/internal/domain"
)

// Profile field names on the member store. These are ordinary free-text
// custom fields; the store attaches no meaning to them.
const (
	EnvelopeField = "goals"

	LegacyPassesField     = "occupation"
	LegacyReferralsField  = "employer"
	LegacyBookingIDsField = "referred_by"
	LegacyGuestsField     = "medical_notes"
)

const envelopePrefix = "guestledger:v2:"

// FieldWrite is one independent profile-field update. The member store
// has no multi-field atomic write; each entry stands alone.
type FieldWrite struct {
	Field string
	Value string
}

// Decode rebuilds a ledger from profile fields. Every field decodes
// independently: a malformed one falls back to its zero value and is
// reported as a *domain.DecodeAnomaly without aborting the rest.
func Decode(fields map[string]string) (*domain.GuestLedger, []error) {
	var anomalies []error

	if raw, ok := fields[EnvelopeField]; ok && strings.HasPrefix(raw, envelopePrefix) {
		var l domain.GuestLedger
		if err := json.Unmarshal([]byte(strings.TrimPrefix(raw, envelopePrefix)), &l); err != nil {
			anomalies = append(anomalies, &domain.DecodeAnomaly{Field: EnvelopeField, Err: err})
		} else {
			anomalies = append(anomalies, repairAlignment(&l)...)
			return &l, anomalies
		}
	}

	l := &domain.GuestLedger{}

	if raw := strings.TrimSpace(fields[LegacyPassesField]); raw != "" {
		if n, err := strconv.Atoi(raw); err != nil {
			anomalies = append(anomalies, &domain.DecodeAnomaly{Field: LegacyPassesField, Err: err})
		} else if n > 0 {
			l.PassesUsed = n
		}
	}

	if raw := strings.TrimSpace(fields[LegacyReferralsField]); raw != "" {
		var codes []string
		if err := json.Unmarshal([]byte(raw), &codes); err != nil {
			anomalies = append(anomalies, &domain.DecodeAnomaly{Field: LegacyReferralsField, Err: err})
		} else {
			for _, c := range codes {
				l.AddReferralCode(c)
			}
		}
	}

	if raw := strings.TrimSpace(fields[LegacyBookingIDsField]); raw != "" {
		var ids []int64
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			anomalies = append(anomalies, &domain.DecodeAnomaly{Field: LegacyBookingIDsField, Err: err})
		} else {
			l.GuestBookingIDs = ids
		}
	}

	if raw := strings.TrimSpace(fields[LegacyGuestsField]); raw != "" {
		var guests []domain.GuestRef
		if err := json.Unmarshal([]byte(raw), &guests); err != nil {
			anomalies = append(anomalies, &domain.DecodeAnomaly{Field: LegacyGuestsField, Err: err})
		} else {
			l.Guests = guests
		}
	}

	anomalies = append(anomalies, repairAlignment(l)...)
	return l, anomalies
}

// Encode serializes the whole ledger into the versioned envelope and
// blanks the legacy fields so stale copies cannot be re-read later.
// Each write is an independent unit.
func Encode(l *domain.GuestLedger) []FieldWrite {
	payload, _ := json.Marshal(l)
	return []FieldWrite{
		{Field: EnvelopeField, Value: envelopePrefix + string(payload)},
		{Field: LegacyPassesField, Value: ""},
		{Field: LegacyReferralsField, Value: ""},
		{Field: LegacyBookingIDsField, Value: ""},
		{Field: LegacyGuestsField, Value: ""},
	}
}

// repairAlignment truncates the longer of the parallel sequences when a
// partially written legacy ledger left them out of step. The tail that
// cannot be paired with its counterpart is unusable either way.
func repairAlignment(l *domain.GuestLedger) []error {
	if l.Aligned() {
		return nil
	}
	n := len(l.Guests)
	if len(l.GuestBookingIDs) < n {
		n = len(l.GuestBookingIDs)
	}
	anomaly := &domain.DecodeAnomaly{
		Field: LegacyGuestsField,
		Err:   errMisaligned(len(l.Guests), len(l.GuestBookingIDs)),
	}
	l.Guests = l.Guests[:n]
	l.GuestBookingIDs = l.GuestBookingIDs[:n]
	return []error{anomaly}
}

type errMisalignedT struct{ guests, ids int }

func errMisaligned(guests, ids int) error { return &errMisalignedT{guests, ids} }

func (e *errMisalignedT) Error() string {
	return "guest list and booking-id list lengths differ (" +
		strconv.Itoa(e.guests) + " vs " + strconv.Itoa(e.ids) + "), truncated to shorter"
}
