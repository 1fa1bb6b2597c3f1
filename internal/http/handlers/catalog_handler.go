package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fairwaylabs/clubhouse/internal/catalog"
	"github.com/fairwaylabs/clubhouse/internal/http/response"
)

// CatalogHandler exposes the cached clubs/services/bays tree so clients
// can build the booking picker without hitting the member store.
type CatalogHandler struct {
	cache *catalog.Cache
}

func NewCatalogHandler(cache *catalog.Cache) *CatalogHandler {
	return &CatalogHandler{cache: cache}
}

func (h *CatalogHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/clubs", h.clubs)
	r.Get("/clubs/{id}/services", h.services)
	r.Get("/services/{id}/bays", h.bays)
	return r
}

func (h *CatalogHandler) clubs(w http.ResponseWriter, r *http.Request) {
	clubs, err := h.cache.Clubs(r.Context())
	if err != nil {
		writeBookingError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{"clubs": clubs})
}

func (h *CatalogHandler) services(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "invalid club id")
		return
	}
	services, err := h.cache.Services(r.Context(), id)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{"services": services})
}

func (h *CatalogHandler) bays(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "invalid service id")
		return
	}
	bays, err := h.cache.Bays(r.Context(), id)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{"bays": bays})
}
