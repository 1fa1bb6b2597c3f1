package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairwaylabs/clubhouse/internal/domain"
	mw "github.com/fairwaylabs/clubhouse/internal/http/middleware"
	"github.com/fairwaylabs/clubhouse/internal/http/response"
	"github.com/fairwaylabs/clubhouse/pkg/events"
	"github.com/fairwaylabs/clubhouse/pkg/logger"
)

// DoorAccess is the slice of the gatekeeper client the handler needs.
type DoorAccess interface {
	ListDoors(ctx context.Context) ([]domain.Door, error)
	CheckIn(ctx context.Context, doorID int64, memberRef string) error
}

type DoorsHandler struct {
	doors DoorAccess
	bus   events.Publisher
}

func NewDoorsHandler(doors DoorAccess, bus events.Publisher) *DoorsHandler {
	return &DoorsHandler{doors: doors, bus: bus}
}

func (h *DoorsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/{id}/checkin", h.CheckIn)
	return r
}

func (h *DoorsHandler) list(w http.ResponseWriter, r *http.Request) {
	doors, err := h.doors.ListDoors(r.Context())
	if err != nil {
		response.RemoteUnavailable(w, "door service unavailable, please retry")
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{"doors": doors})
}

// CheckIn is routed for both member and guest sessions; the mount site
// decides which middleware guards it.
func (h *DoorsHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, "invalid door id")
		return
	}

	// the SaaS only wants a stable reference for its audit log; guests
	// check in under their invite email
	claims := mw.Claims(r)
	if claims == nil {
		response.Unauthorized(w, "session required")
		return
	}
	memberRef := claims.MemberID
	if claims.Role == "guest" {
		memberRef = "guest:" + claims.Email
	}

	if err := h.doors.CheckIn(r.Context(), id, memberRef); err != nil {
		response.RemoteUnavailable(w, "door service unavailable, please retry")
		return
	}

	if h.bus != nil {
		if err := h.bus.Publish(r.Context(), events.DoorCheckIn, events.DoorCheckInEvent{
			MemberID:  memberRef,
			DoorID:    id,
			CheckedAt: time.Now(),
		}); err != nil {
			logger.ErrorContext(r.Context(), "Failed to publish door check-in event", "error", err)
		}
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "checked_in"})
}
