package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAuth means the session token is missing or expired; the caller
	// must log in again.
	ErrAuth = errors.New("authentication required")

	// ErrNoActiveMembership is terminal for the booking flow.
	ErrNoActiveMembership = errors.New("no active membership")

	// ErrNotFound covers lookups against the remote systems.
	ErrNotFound = errors.New("not found")

	// ErrSlotUnavailable is returned before any reservation is attempted
	// when the requested slot is already taken.
	ErrSlotUnavailable = errors.New("slot unavailable")
)

// RemoteError wraps a failure talking to an external collaborator.
// It is surfaced to the caller and retryable by user action only.
type RemoteError struct {
	Service string // gymmaster, gatekeeper, stripe, twilio, mailer
	Status  int    // HTTP status when available
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Service, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// IsRemote reports whether err originates from an external collaborator.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// SlotFailure records one slot that could not be reserved.
type SlotFailure struct {
	Slot   Slot   `json:"slot"`
	Reason string `json:"reason"`
}

// PartialBookingError reports a booking loop where some slots were
// reserved and others were not. The booked set is real and must not be
// discarded by callers.
type PartialBookingError struct {
	Booked []Booking
	Failed []SlotFailure
}

func (e *PartialBookingError) Error() string {
	reasons := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		reasons = append(reasons, fmt.Sprintf("%s: %s", f.Slot.Key(), f.Reason))
	}
	return fmt.Sprintf("booked %d of %d slots; failed: %s",
		len(e.Booked), len(e.Booked)+len(e.Failed), strings.Join(reasons, "; "))
}

// DecodeAnomaly records a ledger field that failed to parse and was
// replaced by its zero value. It is logged, never fatal.
type DecodeAnomaly struct {
	Field string
	Err   error
}

func (e *DecodeAnomaly) Error() string {
	return fmt.Sprintf("ledger field %q unreadable, using zero value: %v", e.Field, e.Err)
}

func (e *DecodeAnomaly) Unwrap() error { return e.Err }
