package query

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"BasketCore/internal/observability"
)

// Handler exposes the query service over HTTP/JSON.
type Handler struct {
	service *QueryService
	metrics *observability.Metrics
}

func NewHandler(service *QueryService, metrics *observability.Metrics) *Handler {
	return &Handler{service: service, metrics: metrics}
}

// Register mounts the query routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/baskets/{id}", h.handleBasketState)
	mux.HandleFunc("GET /v1/baskets/{id}/positions", h.handlePositions)
	mux.HandleFunc("GET /v1/baskets/{id}/events", h.handleEvents)
	mux.HandleFunc("GET /v1/integrity", h.handleIntegrity)
}

func (h *Handler) handleBasketState(w http.ResponseWriter, r *http.Request) {
	h.count("basket_state")

	basketID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, "basket_state", http.StatusBadRequest, "invalid basket id")
		return
	}

	state, err := h.service.GetBasketState(r.Context(), basketID)
	if err != nil {
		h.writeError(w, "basket_state", http.StatusInternalServerError, err.Error())
		return
	}
	if state == nil {
		h.writeError(w, "basket_state", http.StatusNotFound, "basket not found")
		return
	}

	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handlePositions(w http.ResponseWriter, r *http.Request) {
	h.count("positions")

	basketID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, "positions", http.StatusBadRequest, "invalid basket id")
		return
	}

	positions, asOf, err := h.service.GetPositions(r.Context(), basketID)
	if err != nil {
		h.writeError(w, "positions", http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"basket_id":      basketID.String(),
		"positions":      positions,
		"as_of_sequence": asOf,
	})
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	h.count("events")

	basketID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, "events", http.StatusBadRequest, "invalid basket id")
		return
	}

	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 1000 {
			h.writeError(w, "events", http.StatusBadRequest, "limit must be in [1, 1000]")
			return
		}
		limit = n
	}

	var before *int64
	if s := r.URL.Query().Get("before"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			h.writeError(w, "events", http.StatusBadRequest, "invalid before cursor")
			return
		}
		before = &n
	}

	events, err := h.service.GetEvents(r.Context(), basketID, limit, before)
	if err != nil {
		h.writeError(w, "events", http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"basket_id": basketID.String(),
		"events":    events,
	})
}

func (h *Handler) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	h.count("integrity")

	report, err := h.service.VerifyIntegrity(r.Context())
	if err != nil {
		h.writeError(w, "integrity", http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) count(endpoint string) {
	if h.metrics != nil {
		h.metrics.QueryRequests.WithLabelValues(endpoint).Inc()
	}
}

func (h *Handler) writeError(w http.ResponseWriter, endpoint string, status int, msg string) {
	if h.metrics != nil && status >= 500 {
		h.metrics.QueryErrors.WithLabelValues(endpoint).Inc()
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
