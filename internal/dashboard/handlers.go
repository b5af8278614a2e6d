package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/signalsfoundry/schoolbus-tracker/internal/logging"
	"github.com/signalsfoundry/schoolbus-tracker/kb"
	"github.com/signalsfoundry/schoolbus-tracker/model"
)

// RecentAlertLimit is how many alerts the dashboard panel shows.
const RecentAlertLimit = 5

// Handler serves dashboard data from the store.
type Handler struct {
	store *kb.KnowledgeBase
	log   logging.Logger
}

// NewHandler creates a handler over store.
func NewHandler(store *kb.KnowledgeBase, log logging.Logger) *Handler {
	if log == nil {
		log = logging.Noop()
	}
	return &Handler{store: store, log: log}
}

// BusesResponse is the JSON body for GET /api/buses.
type BusesResponse struct {
	Buses []model.Bus `json:"buses"`
	Count int         `json:"count"`
	Query string      `json:"query,omitempty"`
	AsOf  time.Time   `json:"asOf"`
}

// StudentsResponse is the JSON body for GET /api/students.
type StudentsResponse struct {
	Students []model.Student `json:"students"`
	Count    int             `json:"count"`
}

// AlertsResponse is the JSON body for the alert listings.
type AlertsResponse struct {
	Alerts []model.Alert `json:"alerts"`
	Unread int           `json:"unread"`
}

// ErrorResponse is the JSON error response structure.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ListBuses handles GET /api/buses, filtering by the q query parameter.
func (h *Handler) ListBuses(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	buses := h.store.FilterBuses(query)
	if buses == nil {
		buses = []model.Bus{}
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, BusesResponse{
		Buses: buses,
		Count: len(buses),
		Query: query,
		AsOf:  time.Now().UTC(),
	})
}

// GetBus handles GET /api/buses/{id}.
func (h *Handler) GetBus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	bus, err := h.store.GetBus(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bus)
}

// ListStudents handles GET /api/students.
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students := h.store.ListStudents()
	if students == nil {
		students = []model.Student{}
	}
	writeJSON(w, http.StatusOK, StudentsResponse{Students: students, Count: len(students)})
}

// ListAlerts handles GET /api/alerts.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	h.writeAlerts(w, h.store.ListAlerts())
}

// RecentAlerts handles GET /api/alerts/recent.
func (h *Handler) RecentAlerts(w http.ResponseWriter, r *http.Request) {
	h.writeAlerts(w, h.store.RecentAlerts(RecentAlertLimit))
}

func (h *Handler) writeAlerts(w http.ResponseWriter, alerts []model.Alert) {
	if alerts == nil {
		alerts = []model.Alert{}
	}
	writeJSON(w, http.StatusOK, AlertsResponse{Alerts: alerts, Unread: h.store.UnreadAlerts()})
}

// MarkAlertRead handles POST /api/alerts/{id}/read.
func (h *Handler) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	id, ok := h.alertID(w, r)
	if !ok {
		return
	}
	if err := h.store.MarkAlertRead(id); err != nil {
		h.writeError(w, r, err)
		return
	}
	requestLog(r, h.log).Info(r.Context(), "alert marked read", logging.Int("alert_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// DismissAlert handles DELETE /api/alerts/{id}.
func (h *Handler) DismissAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := h.alertID(w, r)
	if !ok {
		return
	}
	if err := h.store.DismissAlert(id); err != nil {
		h.writeError(w, r, err)
		return
	}
	requestLog(r, h.log).Info(r.Context(), "alert dismissed", logging.Int("alert_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// GetStats handles GET /api/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Stats())
}

func (h *Handler) alertID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "alert id must be an integer",
			Details: map[string]interface{}{"id": raw},
		})
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, kb.ErrBusNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "Bus not found",
			Details: map[string]interface{}{"id": chi.URLParam(r, "id")},
		})
	case errors.Is(err, kb.ErrAlertNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "Alert not found",
			Details: map[string]interface{}{"id": chi.URLParam(r, "id")},
		})
	default:
		requestLog(r, h.log).Error(r.Context(), "request failed", logging.Err(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "Internal error",
			Details: map[string]interface{}{"internal": err.Error()},
		})
	}
}

func requestLog(r *http.Request, fallback logging.Logger) logging.Logger {
	if l := logging.LoggerFromContext(r.Context()); l != nil {
		return l
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
