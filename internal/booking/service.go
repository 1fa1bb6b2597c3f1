// Package booking coordinates reservations against the remote calendar
// with guest-ledger accounting, referral issuance, billing and
// notifications. There is no distributed transaction anywhere in this
// flow: each reservation call is its own unit, the ledger write is
// best-effort read-modify-write behind a per-member writer lock, and
// notification or billing failures never roll a booking back.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fairwaylabs/clubhouse/internal/domain"
	"github.com/fairwaylabs/clubhouse/internal/gymmaster"
	"github.com/fairwaylabs/clubhouse/internal/ledger"
	"github.com/fairwaylabs/clubhouse/internal/notify"
	"github.com/fairwaylabs/clubhouse/internal/payments"
	"github.com/fairwaylabs/clubhouse/internal/referral"
	"github.com/fairwaylabs/clubhouse/internal/schedule"
	"github.com/fairwaylabs/clubhouse/pkg/config"
	"github.com/fairwaylabs/clubhouse/pkg/events"
	"github.com/fairwaylabs/clubhouse/pkg/logger"
)

// MemberStore is the slice of the member SaaS the orchestrator needs.
type MemberStore interface {
	Profile(ctx context.Context, token string) (*domain.Member, map[string]string, error)
	UpdateProfileField(ctx context.Context, token, field, value string) error
	Memberships(ctx context.Context, token string) ([]domain.Membership, error)
	Sessions(ctx context.Context, token, day string, serviceID int64) ([]domain.Session, error)
	CreateReservation(ctx context.Context, req gymmaster.ReservationRequest) (int64, error)
	CancelReservation(ctx context.Context, token string, bookingID int64) error
}

// AccessCodes issues the code a guest uses to open their invite.
type AccessCodes interface {
	IssueCode(ctx context.Context, email string) (string, error)
}

// Identity is the authenticated caller, resolved from the session JWT.
// No session state lives in package scope; every operation takes one.
type Identity struct {
	MemberID    string
	MemberToken string
	Email       string
	Name        string
}

type Service struct {
	store      MemberStore
	codes      AccessCodes
	notifier   notify.Notifier
	charger    payments.Charger
	bus        events.Publisher
	club       config.ClubConfig
	resolveFor func(ctx context.Context) schedule.DurationResolver
	locks      memberLocks
	now        func() time.Time
}

// NewService wires the orchestrator. resolveFor is invoked once per
// booking request under the request's context; nil falls back to the
// name heuristic.
func NewService(
	store MemberStore,
	codes AccessCodes,
	notifier notify.Notifier,
	charger payments.Charger,
	bus events.Publisher,
	club config.ClubConfig,
	resolveFor func(ctx context.Context) schedule.DurationResolver,
) *Service {
	if resolveFor == nil {
		resolveFor = func(context.Context) schedule.DurationResolver { return schedule.HeuristicDuration }
	}
	return &Service{
		store:      store,
		codes:      codes,
		notifier:   notifier,
		charger:    charger,
		bus:        bus,
		club:       club,
		resolveFor: resolveFor,
		now:        time.Now,
	}
}

// BookSlots reserves each requested slot independently, then records
// guest invites on the ledger and fires notifications. Partial success
// is a real outcome: the booked set is returned alongside a
// *domain.PartialBookingError, never discarded.
func (s *Service) BookSlots(ctx context.Context, ident Identity, req *domain.BookingRequest) (*domain.BookingResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	membership, err := s.activeMembership(ctx, ident)
	if err != nil {
		return nil, err
	}

	result := &domain.BookingResult{}
	var held []domain.Slot
	sessionsByDay := make(map[string][]domain.Session)
	resolve := s.resolveFor(ctx)

	for _, slot := range req.Slots {
		existing, ok := sessionsByDay[slot.Day]
		if !ok {
			existing, err = s.store.Sessions(ctx, ident.MemberToken, slot.Day, 0)
			if err != nil {
				result.Failed = append(result.Failed, domain.SlotFailure{Slot: slot, Reason: err.Error()})
				continue
			}
			sessionsByDay[slot.Day] = existing
		}

		if !schedule.IsAvailable(slot, existing) || schedule.HasLocalConflict(slot, held, resolve) {
			result.Failed = append(result.Failed, domain.SlotFailure{Slot: slot, Reason: domain.ErrSlotUnavailable.Error()})
			continue
		}

		id, err := s.store.CreateReservation(ctx, gymmaster.ReservationRequest{
			Token:        ident.MemberToken,
			ServiceID:    slot.ServiceID,
			ResourceID:   slot.BayID,
			MembershipID: membership.ID,
			Day:          slot.Day,
			StartTime:    slot.StartTime,
		})
		if err != nil {
			result.Failed = append(result.Failed, domain.SlotFailure{Slot: slot, Reason: err.Error()})
			continue
		}

		held = append(held, slot)
		result.Booked = append(result.Booked, domain.Booking{
			ID:           id,
			Day:          slot.Day,
			StartTime:    slot.StartTime,
			ServiceName:  slot.ServiceName,
			LocationName: s.club.Name,
			BayName:      slot.BayName,
			CreatedAt:    s.now(),
		})
	}

	if len(result.Booked) == 0 {
		return result, fmt.Errorf("%w: none of the requested slots could be booked", domain.ErrSlotUnavailable)
	}

	if len(req.Guests) > 0 {
		s.recordGuests(ctx, ident, req.Guests, result)
	}

	s.confirm(ctx, ident, result)

	event := events.BookingCreatedEvent{
		MemberID:    ident.MemberID,
		BookingIDs:  bookedIDs(result.Booked),
		ServiceName: result.Booked[0].ServiceName,
		Day:         result.Booked[0].Day,
		GuestCount:  len(req.Guests),
		CreatedAt:   s.now(),
	}
	s.publish(ctx, events.BookingCreated, event)

	if len(result.Failed) > 0 {
		s.publish(ctx, events.BookingPartial, events.BookingPartialEvent{
			MemberID:    ident.MemberID,
			BookedIDs:   bookedIDs(result.Booked),
			FailedSlots: failedKeys(result.Failed),
			OccurredAt:  s.now(),
		})
		return result, &domain.PartialBookingError{Booked: result.Booked, Failed: result.Failed}
	}
	return result, nil
}

// CancelBooking cancels the remote reservation first; the ledger is
// touched only after the remote side confirmed. A cancellation with no
// matching ledger entries leaves the ledger untouched and succeeds.
func (s *Service) CancelBooking(ctx context.Context, ident Identity, bookingID int64) error {
	if err := s.store.CancelReservation(ctx, ident.MemberToken, bookingID); err != nil {
		return err
	}

	unlock := s.locks.lock(ident.MemberID)
	defer unlock()

	_, fields, err := s.store.Profile(ctx, ident.MemberToken)
	if err != nil {
		// reservation is gone either way; the ledger catches up on the
		// next successful read-modify-write
		logger.ErrorContext(ctx, "Ledger load failed after cancellation", "error", err, "booking_id", bookingID)
		return nil
	}

	l, anomalies := ledger.Decode(fields)
	s.logAnomalies(ctx, ident, anomalies)

	removed := l.RemoveBooking(bookingID)
	if removed > 0 {
		s.persistLedger(ctx, ident, l)
	}

	s.publish(ctx, events.BookingCanceled, events.BookingCanceledEvent{
		MemberID:    ident.MemberID,
		BookingID:   bookingID,
		GuestsFreed: removed,
		CanceledAt:  s.now(),
	})
	return nil
}

// Ledger returns the caller's decoded guest ledger, adjusted to the
// current period so a stale stored counter does not hide a reset
// allowance. The adjusted view is not written back; persistence still
// happens only on mutation.
func (s *Service) Ledger(ctx context.Context, ident Identity) (*domain.GuestLedger, error) {
	_, fields, err := s.store.Profile(ctx, ident.MemberToken)
	if err != nil {
		return nil, err
	}
	l, anomalies := ledger.Decode(fields)
	s.logAnomalies(ctx, ident, anomalies)
	l.Rollover(s.now())
	return l, nil
}

// DaySessions exposes the day's calendar snapshot for the availability grid.
func (s *Service) DaySessions(ctx context.Context, ident Identity, day string, serviceID int64) ([]domain.Session, error) {
	return s.store.Sessions(ctx, ident.MemberToken, day, serviceID)
}

// MemberSessions lists the caller's own reservations for a day.
func (s *Service) MemberSessions(ctx context.Context, ident Identity, day string) ([]domain.Session, error) {
	all, err := s.store.Sessions(ctx, ident.MemberToken, day, 0)
	if err != nil {
		return nil, err
	}
	var mine []domain.Session
	for _, sess := range all {
		if sess.MemberID == ident.MemberID {
			mine = append(mine, sess)
		}
	}
	return mine, nil
}

func (s *Service) activeMembership(ctx context.Context, ident Identity) (*domain.Membership, error) {
	ms, err := s.store.Memberships(ctx, ident.MemberToken)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range ms {
		if ms[i].ActiveOn(now) {
			return &ms[i], nil
		}
	}
	return nil, domain.ErrNoActiveMembership
}

// recordGuests runs the ledger read-modify-write behind the member's
// writer lock, then bills charged passes and sends invites. Everything
// in here is best-effort relative to the already-made reservations.
func (s *Service) recordGuests(ctx context.Context, ident Identity, guests []domain.GuestRef, result *domain.BookingResult) {
	unlock := s.locks.lock(ident.MemberID)
	defer unlock()

	hostName := ident.Name
	l := &domain.GuestLedger{}

	member, fields, err := s.store.Profile(ctx, ident.MemberToken)
	if err != nil {
		// fall back to a zero ledger; the persist below will fail and be
		// logged, but guests still get their invites
		logger.ErrorContext(ctx, "Profile load failed, guest accounting degraded", "error", err)
	} else {
		var anomalies []error
		l, anomalies = ledger.Decode(fields)
		s.logAnomalies(ctx, ident, anomalies)
		if hostName == "" {
			hostName = member.FirstName + " " + member.LastName
		}
	}

	l.Rollover(s.now())
	usage := domain.SplitGuestPasses(len(guests), s.club.GuestPassAllowance, l.PassesUsed)

	codes := make([]string, len(guests))
	for i := range guests {
		codes[i] = referral.NewCode()
		l.AddReferralCode(codes[i])
	}

	anchor := result.Booked[0].ID
	l.RecordGuestInvites(guests, anchor)
	s.persistLedger(ctx, ident, l)

	result.PassUsage = usage
	result.ReferralCodes = codes
	result.Booked[0].Guests = l.GuestsForBooking(anchor)
	result.Booked[0].PassUsage = usage

	if usage.Charged > 0 && s.charger != nil {
		paymentID, err := s.charger.ChargeGuestPasses(ctx, ident.MemberID, ident.Email, usage.Charged)
		if err != nil {
			logger.ErrorContext(ctx, "Guest pass charge failed", "error", err, "passes", usage.Charged)
			s.publish(ctx, events.GuestPassChargeFailed, events.GuestPassChargedEvent{
				MemberID: ident.MemberID, Passes: usage.Charged,
				AmountCents: int64(usage.Charged) * s.club.GuestPassPriceCents,
			})
		} else {
			s.publish(ctx, events.GuestPassCharged, events.GuestPassChargedEvent{
				MemberID: ident.MemberID, Passes: usage.Charged,
				AmountCents: int64(usage.Charged) * s.club.GuestPassPriceCents,
				PaymentID:   paymentID,
			})
		}
	}

	for i, g := range guests {
		accessCode := ""
		if s.codes != nil {
			accessCode, err = s.codes.IssueCode(ctx, g.Email)
			if err != nil {
				logger.ErrorContext(ctx, "Guest access code issue failed", "error", err, "guest", g.Email)
			}
		}

		inv := notify.GuestInvite{
			GuestName:    g.Name,
			GuestEmail:   g.Email,
			GuestPhone:   g.Phone,
			HostName:     hostName,
			ReferralCode: codes[i],
			AccessCode:   accessCode,
			Link:         fmt.Sprintf("%s/invite?code=%s", s.club.BaseURL, codes[i]),
			Day:          result.Booked[0].Day,
			StartTime:    result.Booked[0].StartTime,
		}
		if err := s.notifier.SendGuestInvite(ctx, inv); err != nil {
			logger.ErrorContext(ctx, "Guest invite notification failed", "error", err, "guest", g.Email)
		}

		s.publish(ctx, events.GuestInvited, events.GuestInvitedEvent{
			MemberID:     ident.MemberID,
			GuestEmail:   g.Email,
			ReferralCode: codes[i],
			BookingID:    anchor,
			InvitedAt:    s.now(),
		})
	}
}

func (s *Service) confirm(ctx context.Context, ident Identity, result *domain.BookingResult) {
	sum := notify.BookingSummary{
		MemberName:  ident.Name,
		MemberEmail: ident.Email,
		Bookings:    result.Booked,
		PassUsage:   result.PassUsage,
	}
	if err := s.notifier.SendBookingConfirmation(ctx, sum); err != nil {
		logger.ErrorContext(ctx, "Booking confirmation failed", "error", err, "member_id", ident.MemberID)
	}
}

// persistLedger writes the encoded ledger field by field. The store has
// no multi-field transaction; a failed field is logged and the rest are
// still written.
func (s *Service) persistLedger(ctx context.Context, ident Identity, l *domain.GuestLedger) {
	for _, w := range ledger.Encode(l) {
		if err := s.store.UpdateProfileField(ctx, ident.MemberToken, w.Field, w.Value); err != nil {
			logger.ErrorContext(ctx, "Ledger field write failed", "error", err, "field", w.Field, "member_id", ident.MemberID)
		}
	}
}

func (s *Service) logAnomalies(ctx context.Context, ident Identity, anomalies []error) {
	for _, a := range anomalies {
		var da *domain.DecodeAnomaly
		if errors.As(a, &da) {
			logger.WarnContext(ctx, "Ledger decode anomaly", "field", da.Field, "error", da.Err, "member_id", ident.MemberID)
		} else {
			logger.WarnContext(ctx, "Ledger decode anomaly", "error", a, "member_id", ident.MemberID)
		}
	}
}

func (s *Service) publish(ctx context.Context, subject string, data interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, subject, data); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event", "error", err, "subject", subject)
	}
}

func bookedIDs(bs []domain.Booking) []int64 {
	ids := make([]int64, len(bs))
	for i, b := range bs {
		ids[i] = b.ID
	}
	return ids
}

func failedKeys(fs []domain.SlotFailure) []string {
	keys := make([]string, len(fs))
	for i, f := range fs {
		keys[i] = f.Slot.Key()
	}
	return keys
}

// memberLocks serializes ledger mutations per member: the store only
// offers last-write-wins field updates, so two writers in one process
// must queue. Writers in other processes remain a known gap.
type memberLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (l *memberLocks) lock(memberID string) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*sync.Mutex)
	}
	mu, ok := l.m[memberID]
	if !ok {
		mu = &sync.Mutex{}
		l.m[memberID] = mu
	}
	l.mu.Unlock()

	mu.Lock()
	return mu.Unlock
}
