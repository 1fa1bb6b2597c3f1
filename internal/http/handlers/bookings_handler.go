package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairwaylabs/clubhouse/internal/booking"
	"github.com/fairwaylabs/clubhouse/internal/domain"
	mw "github.com/fairwaylabs/clubhouse/internal/http/middleware"
	"github.com/fairwaylabs/clubhouse/internal/http/response"
	"github.com/fairwaylabs/clubhouse/internal/repo/postgres"
	"github.com/fairwaylabs/clubhouse/pkg/logger"
)

type BookingsHandler struct {
	bookings    *booking.Service
	idempotency postgres.IdempotencyRepo
}

// NewBookingsHandler wires the orchestrator; idempotency may be nil in
// tests, retried POSTs then book twice.
func NewBookingsHandler(svc *booking.Service, idem postgres.IdempotencyRepo) *BookingsHandler {
	return &BookingsHandler{bookings: svc, idempotency: idem}
}

func (h *BookingsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/availability", h.availability)
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Delete("/{id}", h.cancel)
	return r
}

func identity(r *http.Request) booking.Identity {
	c := mw.Claims(r)
	if c == nil {
		return booking.Identity{}
	}
	return booking.Identity{
		MemberID:    c.MemberID,
		MemberToken: c.MemberToken,
		Email:       c.Email,
	}
}

func (h *BookingsHandler) availability(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("day")
	if _, err := time.Parse("2006-01-02", day); err != nil {
		response.BadRequest(w, "day must be YYYY-MM-DD")
		return
	}
	serviceID, _ := strconv.ParseInt(r.URL.Query().Get("service_id"), 10, 64)

	sessions, err := h.bookings.DaySessions(r.Context(), identity(r), day, serviceID)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"day":      day,
		"sessions": sessions,
	})
}

func (h *BookingsHandler) list(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("day")
	if day == "" {
		day = time.Now().Format("2006-01-02")
	}
	sessions, err := h.bookings.MemberSessions(r.Context(), identity(r), day)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"day":      day,
		"bookings": sessions,
	})
}

func (h *BookingsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req domain.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" && h.idempotency != nil {
		if prior, err := h.idempotency.Lookup(r.Context(), idemKey); err != nil {
			logger.ErrorContext(r.Context(), "Idempotency lookup failed", "error", err)
		} else if prior != nil {
			// replay with the original status so retries are indistinguishable
			status := http.StatusCreated
			if len(prior.Failed) > 0 {
				status = http.StatusMultiStatus
			}
			response.WriteJSON(w, status, prior)
			return
		}
	}

	result, err := h.bookings.BookSlots(r.Context(), identity(r), &req)

	var pbe *domain.PartialBookingError
	switch {
	case err == nil:
		h.storeIdempotent(r, idemKey, result)
		response.WriteJSON(w, http.StatusCreated, result)
	case errors.As(err, &pbe):
		// partial success is a result, not a plain failure
		h.storeIdempotent(r, idemKey, result)
		response.WriteJSON(w, http.StatusMultiStatus, result)
	case errors.Is(err, domain.ErrSlotUnavailable):
		response.WriteErrorWithDetails(w, http.StatusConflict,
			"none of the requested slots could be booked", response.CodeSlotUnavailable, result.Failed)
	default:
		writeBookingError(w, err)
	}
}

func (h *BookingsHandler) storeIdempotent(r *http.Request, key string, result *domain.BookingResult) {
	if key == "" || h.idempotency == nil || result == nil || len(result.Booked) == 0 {
		return
	}
	if err := h.idempotency.Store(r.Context(), key, result); err != nil {
		logger.ErrorContext(r.Context(), "Idempotency store failed", "error", err)
	}
}

func (h *BookingsHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, "invalid booking id")
		return
	}

	if err := h.bookings.CancelBooking(r.Context(), identity(r), id); err != nil {
		writeBookingError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}

func writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAuth):
		response.Unauthorized(w, "session expired, please log in")
	case errors.Is(err, domain.ErrNoActiveMembership):
		response.WriteError(w, http.StatusForbidden, "an active membership is required to book", response.CodeNoMembership)
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, "not found")
	case domain.IsRemote(err):
		response.RemoteUnavailable(w, "a club service is unavailable, please retry")
	default:
		response.BadRequest(w, err.Error())
	}
}
