package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairwaylabs/clubhouse/internal/booking"
	"github.com/fairwaylabs/clubhouse/internal/domain"
	"github.com/fairwaylabs/clubhouse/internal/gymmaster"
	mw "github.com/fairwaylabs/clubhouse/internal/http/middleware"
	"github.com/fairwaylabs/clubhouse/internal/notify"
	"github.com/fairwaylabs/clubhouse/internal/repo/postgres"
	"github.com/fairwaylabs/clubhouse/pkg/auth"
	"github.com/fairwaylabs/clubhouse/pkg/config"
)

const testSecret = "test-secret"

type stubStore struct {
	fields       map[string]string
	memberships  []domain.Membership
	sessions     []domain.Session
	nextID       int64
	reserveErrOn map[string]error
	reserved     []gymmaster.ReservationRequest
	canceled     []int64
}

func (s *stubStore) Profile(ctx context.Context, token string) (*domain.Member, map[string]string, error) {
	return &domain.Member{ID: "m1", Email: "kay@example.com", FirstName: "Kay"}, s.fields, nil
}

func (s *stubStore) UpdateProfileField(ctx context.Context, token, field, value string) error {
	if s.fields == nil {
		s.fields = map[string]string{}
	}
	s.fields[field] = value
	return nil
}

func (s *stubStore) Memberships(ctx context.Context, token string) ([]domain.Membership, error) {
	return s.memberships, nil
}

func (s *stubStore) Sessions(ctx context.Context, token, day string, serviceID int64) ([]domain.Session, error) {
	return s.sessions, nil
}

func (s *stubStore) CreateReservation(ctx context.Context, req gymmaster.ReservationRequest) (int64, error) {
	key := req.Day + "|" + req.StartTime
	if err := s.reserveErrOn[key]; err != nil {
		return 0, err
	}
	s.nextID++
	s.reserved = append(s.reserved, req)
	return s.nextID, nil
}

func (s *stubStore) CancelReservation(ctx context.Context, token string, bookingID int64) error {
	s.canceled = append(s.canceled, bookingID)
	return nil
}

type stubNotifier struct{}

func (stubNotifier) SendGuestInvite(ctx context.Context, inv notify.GuestInvite) error    { return nil }
func (stubNotifier) SendBookingConfirmation(ctx context.Context, s notify.BookingSummary) error {
	return nil
}

type stubCharger struct{}

func (stubCharger) ChargeGuestPasses(ctx context.Context, memberID, email string, passes int) (string, error) {
	return "pi_test", nil
}

type stubCodes struct{}

func (stubCodes) IssueCode(ctx context.Context, email string) (string, error) {
	return "123456", nil
}

type fakeIdempotencyRepo struct {
	stored  map[string]*domain.BookingResult
	lookups int
}

func (f *fakeIdempotencyRepo) Lookup(ctx context.Context, key string) (*domain.BookingResult, error) {
	f.lookups++
	return f.stored[key], nil
}

func (f *fakeIdempotencyRepo) Store(ctx context.Context, key string, result *domain.BookingResult) error {
	if f.stored == nil {
		f.stored = map[string]*domain.BookingResult{}
	}
	if _, ok := f.stored[key]; !ok {
		f.stored[key] = result
	}
	return nil
}

func (f *fakeIdempotencyRepo) CleanupExpired(ctx context.Context) (int64, error) { return 0, nil }

func testRouter(t *testing.T, store *stubStore) http.Handler {
	return testRouterIdem(t, store, nil)
}

func testRouterIdem(t *testing.T, store *stubStore, idem postgres.IdempotencyRepo) http.Handler {
	t.Helper()
	svc := booking.NewService(store, stubCodes{}, stubNotifier{}, stubCharger{}, nil,
		config.ClubConfig{Name: "Fairway", BaseURL: "https://club.test", GuestPassAllowance: 2}, nil)
	h := NewBookingsHandler(svc, idem)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireSession(testSecret))
		r.Mount("/bookings", h.Routes())
	})
	return r
}

func memberToken(t *testing.T) string {
	t.Helper()
	tok, err := auth.NewSessionToken("m1", "remote-token", "kay@example.com", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("mint session token: %v", err)
	}
	return tok
}

func activeMembership() []domain.Membership {
	return []domain.Membership{{ID: 1, Name: "All Access", StartDate: "2020-01-01"}}
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateBookingRequiresSession(t *testing.T) {
	router := testRouter(t, &stubStore{memberships: activeMembership()})

	rec := doJSON(t, router, http.MethodPost, "/bookings/", "", domain.BookingRequest{})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCreateBookingSuccess(t *testing.T) {
	store := &stubStore{memberships: activeMembership()}
	router := testRouter(t, store)

	req := domain.BookingRequest{Slots: []domain.Slot{
		{Day: "2026-09-01", StartTime: "10:00", BayID: 4, BayName: "Bay 4", ServiceID: 7, ServiceName: "Sim Golf"},
	}}
	rec := doJSON(t, router, http.MethodPost, "/bookings/", memberToken(t), req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var result domain.BookingResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Booked) != 1 || len(result.Failed) != 0 {
		t.Fatalf("expected 1 booked, 0 failed, got %d/%d", len(result.Booked), len(result.Failed))
	}
	if len(store.reserved) != 1 {
		t.Fatalf("expected one remote reservation, got %d", len(store.reserved))
	}
}

func TestCreateBookingPartialFailureReturnsMultiStatus(t *testing.T) {
	store := &stubStore{
		memberships: activeMembership(),
		reserveErrOn: map[string]error{
			"2026-09-01|11:00": &domain.RemoteError{Service: "gymmaster", Status: 503},
		},
	}
	router := testRouter(t, store)

	req := domain.BookingRequest{Slots: []domain.Slot{
		{Day: "2026-09-01", StartTime: "10:00", BayID: 4, BayName: "Bay 4", ServiceID: 7, ServiceName: "Sim Golf"},
		{Day: "2026-09-01", StartTime: "11:00", BayID: 5, BayName: "Bay 5", ServiceID: 7, ServiceName: "Sim Golf"},
	}}
	rec := doJSON(t, router, http.MethodPost, "/bookings/", memberToken(t), req)
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d: %s", rec.Code, rec.Body.String())
	}

	var result domain.BookingResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Booked) != 1 || len(result.Failed) != 1 {
		t.Fatalf("expected 1 booked and 1 failed, got %d/%d", len(result.Booked), len(result.Failed))
	}
}

func TestCreateBookingAllFailedConflict(t *testing.T) {
	store := &stubStore{
		memberships: activeMembership(),
		sessions: []domain.Session{
			{BookingID: 99, Day: "2026-09-01", StartTime: "10:00", BayID: 4},
		},
	}
	router := testRouter(t, store)

	req := domain.BookingRequest{Slots: []domain.Slot{
		{Day: "2026-09-01", StartTime: "10:00", BayID: 4, BayName: "Bay 4", ServiceID: 7, ServiceName: "Sim Golf"},
	}}
	rec := doJSON(t, router, http.MethodPost, "/bookings/", memberToken(t), req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.reserved) != 0 {
		t.Fatalf("occupied slot must not reach the remote calendar")
	}
}

func TestCreateBookingWithoutMembershipForbidden(t *testing.T) {
	store := &stubStore{memberships: []domain.Membership{
		{ID: 1, Name: "Lapsed", StartDate: "2020-01-01", EndDate: "2021-01-01"},
	}}
	router := testRouter(t, store)

	req := domain.BookingRequest{Slots: []domain.Slot{
		{Day: "2026-09-01", StartTime: "10:00", BayID: 4, ServiceID: 7},
	}}
	rec := doJSON(t, router, http.MethodPost, "/bookings/", memberToken(t), req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCancelBooking(t *testing.T) {
	store := &stubStore{memberships: activeMembership()}
	router := testRouter(t, store)

	rec := doJSON(t, router, http.MethodDelete, "/bookings/42", memberToken(t), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.canceled) != 1 || store.canceled[0] != 42 {
		t.Fatalf("expected remote cancel of 42, got %v", store.canceled)
	}
}

func doJSONKey(t *testing.T, router http.Handler, method, path, token, idemKey string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idemKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateBookingIdempotentReplay(t *testing.T) {
	store := &stubStore{memberships: activeMembership()}
	repo := &fakeIdempotencyRepo{}
	router := testRouterIdem(t, store, repo)
	token := memberToken(t)

	req := domain.BookingRequest{Slots: []domain.Slot{
		{Day: "2026-09-01", StartTime: "10:00", BayID: 4, BayName: "Bay 4", ServiceID: 7, ServiceName: "Sim Golf"},
	}}
	first := doJSONKey(t, router, http.MethodPost, "/bookings/", token, "key-1", req)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
	}
	if len(store.reserved) != 1 {
		t.Fatalf("expected one remote reservation, got %d", len(store.reserved))
	}

	second := doJSONKey(t, router, http.MethodPost, "/bookings/", token, "key-1", req)
	if second.Code != http.StatusCreated {
		t.Fatalf("replay: expected 201, got %d: %s", second.Code, second.Body.String())
	}
	if len(store.reserved) != 1 {
		t.Fatalf("retry with the same key must not book again, got %d reservations", len(store.reserved))
	}
	if repo.lookups != 2 {
		t.Errorf("lookups = %d, want one per request", repo.lookups)
	}

	var a, b domain.BookingResult
	if err := json.Unmarshal(first.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode first: %v", err)
	}
	if err := json.Unmarshal(second.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if len(b.Booked) != 1 || b.Booked[0].ID != a.Booked[0].ID {
		t.Errorf("replay body = %+v, want the stored result %+v", b, a)
	}
}

func TestCreateBookingIdempotentReplayKeepsPartialStatus(t *testing.T) {
	store := &stubStore{
		memberships: activeMembership(),
		reserveErrOn: map[string]error{
			"2026-09-01|11:00": &domain.RemoteError{Service: "gymmaster", Status: 503},
		},
	}
	repo := &fakeIdempotencyRepo{}
	router := testRouterIdem(t, store, repo)
	token := memberToken(t)

	req := domain.BookingRequest{Slots: []domain.Slot{
		{Day: "2026-09-01", StartTime: "10:00", BayID: 4, BayName: "Bay 4", ServiceID: 7, ServiceName: "Sim Golf"},
		{Day: "2026-09-01", StartTime: "11:00", BayID: 5, BayName: "Bay 5", ServiceID: 7, ServiceName: "Sim Golf"},
	}}
	first := doJSONKey(t, router, http.MethodPost, "/bookings/", token, "key-2", req)
	if first.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d: %s", first.Code, first.Body.String())
	}

	second := doJSONKey(t, router, http.MethodPost, "/bookings/", token, "key-2", req)
	if second.Code != http.StatusMultiStatus {
		t.Fatalf("replay: expected 207, got %d: %s", second.Code, second.Body.String())
	}
	if len(store.reserved) != 1 {
		t.Fatalf("retry must not re-reserve, got %d reservations", len(store.reserved))
	}
}

func TestCreateBookingEmptyResultNotStored(t *testing.T) {
	store := &stubStore{
		memberships: activeMembership(),
		sessions: []domain.Session{
			{BookingID: 99, Day: "2026-09-01", StartTime: "10:00", BayID: 4},
		},
	}
	repo := &fakeIdempotencyRepo{}
	router := testRouterIdem(t, store, repo)
	token := memberToken(t)

	req := domain.BookingRequest{Slots: []domain.Slot{
		{Day: "2026-09-01", StartTime: "10:00", BayID: 4, BayName: "Bay 4", ServiceID: 7, ServiceName: "Sim Golf"},
	}}
	first := doJSONKey(t, router, http.MethodPost, "/bookings/", token, "key-3", req)
	if first.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", first.Code, first.Body.String())
	}
	if len(repo.stored) != 0 {
		t.Fatalf("a result with no bookings must not be stored, got %+v", repo.stored)
	}

	// the slot frees up; the same key may book now
	store.sessions = nil
	second := doJSONKey(t, router, http.MethodPost, "/bookings/", token, "key-3", req)
	if second.Code != http.StatusCreated {
		t.Fatalf("expected 201 after the slot freed, got %d: %s", second.Code, second.Body.String())
	}
	if len(store.reserved) != 1 {
		t.Fatalf("expected the retry to book, got %d reservations", len(store.reserved))
	}
}

func TestAvailabilityRejectsBadDay(t *testing.T) {
	router := testRouter(t, &stubStore{memberships: activeMembership()})

	rec := doJSON(t, router, http.MethodGet, "/bookings/availability?day=tomorrow", memberToken(t), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
