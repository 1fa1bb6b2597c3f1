package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fairwaylabs/clubhouse/internal/domain"
	"github.com/fairwaylabs/clubhouse/internal/http/response"
	"github.com/fairwaylabs/clubhouse/internal/members"
)

type AuthHandler struct {
	members *members.Service
}

func NewAuthHandler(svc *members.Service) *AuthHandler {
	return &AuthHandler{members: svc}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/signup", h.signup)
	r.Post("/login", h.login)
	return r
}

func (h *AuthHandler) signup(w http.ResponseWriter, r *http.Request) {
	var in members.SignupInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}

	res, err := h.members.Signup(r.Context(), in)
	if err != nil {
		if domain.IsRemote(err) {
			response.RemoteUnavailable(w, "member service unavailable, please retry")
			return
		}
		response.BadRequest(w, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusCreated, res)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid json")
		return
	}
	if in.Email == "" || in.Password == "" {
		response.BadRequest(w, "email and password are required")
		return
	}

	res, err := h.members.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		if errors.Is(err, domain.ErrAuth) {
			response.Unauthorized(w, "invalid email or password")
			return
		}
		if domain.IsRemote(err) {
			response.RemoteUnavailable(w, "member service unavailable, please retry")
			return
		}
		response.InternalError(w, "login failed")
		return
	}
	response.WriteJSON(w, http.StatusOK, res)
}
