package ledger

import (
	"errors"
	"reflect"
	"testing"

	"github.com/fairwaylabs/clubhouse/internal/domain"
)

func fieldsFromWrites(writes []FieldWrite) map[string]string {
	m := make(map[string]string, len(writes))
	for _, w := range writes {
		m[w.Field] = w.Value
	}
	return m
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := &domain.GuestLedger{
		Period:          "2026-08",
		PassesUsed:      3,
		ReferralCodes:   []string{"AB12CD34", "EF56GH78"},
		GuestBookingIDs: []int64{101, 101, 204},
		Guests: []domain.GuestRef{
			{Name: "Ann Lee", Email: "ann@example.com", BookingID: 101},
			{Name: "Bo Chen", Email: "bo@example.com", BookingID: 101},
			{Name: "Cy Dale", Email: "cy@example.com", Phone: "+15550001111", BookingID: 204},
		},
	}

	decoded, anomalies := Decode(fieldsFromWrites(Encode(original)))
	if len(anomalies) != 0 {
		t.Fatalf("unexpected anomalies: %v", anomalies)
	}
	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", original, decoded)
	}
}

func TestEncodeBlanksLegacyFields(t *testing.T) {
	writes := Encode(&domain.GuestLedger{PassesUsed: 1})
	got := fieldsFromWrites(writes)
	for _, f := range []string{LegacyPassesField, LegacyReferralsField, LegacyBookingIDsField, LegacyGuestsField} {
		if v, ok := got[f]; !ok || v != "" {
			t.Errorf("legacy field %q not blanked, got %q", f, v)
		}
	}
	if got[EnvelopeField] == "" {
		t.Error("envelope field missing from writes")
	}
}

func TestDecodeLegacyFields(t *testing.T) {
	fields := map[string]string{
		LegacyPassesField:     "2",
		LegacyReferralsField:  `["ZZ99YY88","ZZ99YY88","QQ11WW22"]`,
		LegacyBookingIDsField: `[55,77]`,
		LegacyGuestsField:     `[{"name":"Di Eng","email":"di@example.com"},{"name":"Ed Fox","email":"ed@example.com"}]`,
	}

	l, anomalies := Decode(fields)
	if len(anomalies) != 0 {
		t.Fatalf("unexpected anomalies: %v", anomalies)
	}
	if l.PassesUsed != 2 {
		t.Errorf("passes used = %d, want 2", l.PassesUsed)
	}
	// duplicates in the stored array collapse under set semantics
	if len(l.ReferralCodes) != 2 {
		t.Errorf("referral codes = %v, want 2 unique", l.ReferralCodes)
	}
	if !l.Aligned() || len(l.Guests) != 2 {
		t.Errorf("guests/ids misaligned: %d vs %d", len(l.Guests), len(l.GuestBookingIDs))
	}
}

func TestDecodeMalformedFieldIsIsolated(t *testing.T) {
	fields := map[string]string{
		LegacyPassesField:     "not-a-number",
		LegacyReferralsField:  `["OK12OK34"]`,
		LegacyBookingIDsField: `[9]`,
		LegacyGuestsField:     `[{"name":"Gia Ho","email":"gia@example.com"}]`,
	}

	l, anomalies := Decode(fields)
	if len(anomalies) != 1 {
		t.Fatalf("anomalies = %v, want exactly one", anomalies)
	}
	var da *domain.DecodeAnomaly
	if !errors.As(anomalies[0], &da) || da.Field != LegacyPassesField {
		t.Fatalf("anomaly = %v, want DecodeAnomaly on %q", anomalies[0], LegacyPassesField)
	}
	if l.PassesUsed != 0 {
		t.Errorf("passes used = %d, want zero-value fallback", l.PassesUsed)
	}
	if len(l.ReferralCodes) != 1 || len(l.Guests) != 1 || len(l.GuestBookingIDs) != 1 {
		t.Errorf("other fields should decode despite the bad one: %+v", l)
	}
}

func TestDecodeCorruptEnvelopeFallsBackToLegacy(t *testing.T) {
	fields := map[string]string{
		EnvelopeField:     "guestledger:v2:{broken",
		LegacyPassesField: "4",
	}

	l, anomalies := Decode(fields)
	if len(anomalies) != 1 {
		t.Fatalf("anomalies = %v, want one for the envelope", anomalies)
	}
	if l.PassesUsed != 4 {
		t.Errorf("legacy fallback passes = %d, want 4", l.PassesUsed)
	}
}

func TestDecodeRepairsMisalignedLegacyData(t *testing.T) {
	fields := map[string]string{
		LegacyBookingIDsField: `[1,2,3]`,
		LegacyGuestsField:     `[{"name":"Hal Ito","email":"hal@example.com"}]`,
	}

	l, anomalies := Decode(fields)
	if len(anomalies) == 0 {
		t.Fatal("expected a misalignment anomaly")
	}
	if !l.Aligned() {
		t.Fatalf("ledger still misaligned: %d vs %d", len(l.Guests), len(l.GuestBookingIDs))
	}
	if len(l.Guests) != 1 {
		t.Errorf("want truncation to the shorter sequence, got %d", len(l.Guests))
	}
}

func TestDecodeEmptyProfile(t *testing.T) {
	l, anomalies := Decode(map[string]string{})
	if len(anomalies) != 0 {
		t.Fatalf("unexpected anomalies: %v", anomalies)
	}
	if l.PassesUsed != 0 || len(l.Guests) != 0 || len(l.ReferralCodes) != 0 {
		t.Errorf("want zero ledger, got %+v", l)
	}
}
