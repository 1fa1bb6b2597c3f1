package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairwaylabs/clubhouse/internal/booking"
	"github.com/fairwaylabs/clubhouse/internal/domain"
	"github.com/fairwaylabs/clubhouse/internal/guestaccess"
	"github.com/fairwaylabs/clubhouse/internal/http/response"
	"github.com/fairwaylabs/clubhouse/internal/referral"
	"github.com/fairwaylabs/clubhouse/internal/utils"
)

// AccessVerifier exchanges an access code for a guest session token.
type AccessVerifier interface {
	VerifyCode(ctx context.Context, email, code string) (string, error)
}

// ReferralValidator checks a referral code against recorded member codes.
type ReferralValidator interface {
	Validate(ctx context.Context, code string) (bool, error)
}

// GuestsHandler covers the guest-facing surface: the member's ledger
// view, access code verification, and referral code validation.
type GuestsHandler struct {
	bookings  *booking.Service
	access    AccessVerifier
	referrals ReferralValidator
}

func NewGuestsHandler(bookings *booking.Service, access AccessVerifier, referrals ReferralValidator) *GuestsHandler {
	return &GuestsHandler{bookings: bookings, access: access, referrals: referrals}
}

// Ledger returns the calling member's decoded guest ledger.
func (h *GuestsHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	l, err := h.bookings.Ledger(r.Context(), identity(r))
	if err != nil {
		writeBookingError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, l)
}

// Verify exchanges a guest's email + access code for a short-lived
// guest session token.
func (h *GuestsHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}
	if !utils.IsValidEmail(in.Email) || in.Code == "" {
		response.BadRequest(w, "email and code are required")
		return
	}

	token, err := h.access.VerifyCode(r.Context(), in.Email, in.Code)
	if err != nil {
		switch {
		case errors.Is(err, guestaccess.ErrTooManyAttempts):
			response.WriteError(w, http.StatusTooManyRequests, err.Error(), response.CodeTooManyAttempts)
		case errors.Is(err, guestaccess.ErrInvalidCode):
			response.WriteError(w, http.StatusUnauthorized, err.Error(), response.CodeInvalidAccessCode)
		default:
			response.InternalError(w, "verification failed")
		}
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

// ValidateReferral reports whether a referral code belongs to any member.
func (h *GuestsHandler) ValidateReferral(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		response.BadRequest(w, "code is required")
		return
	}

	valid, err := h.referrals.Validate(r.Context(), code)
	if err != nil {
		if domain.IsRemote(err) {
			response.RemoteUnavailable(w, "member service unavailable, please retry")
			return
		}
		response.InternalError(w, "validation failed")
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"code":  referral.Normalize(code),
		"valid": valid,
	})
}
