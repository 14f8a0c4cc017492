package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dhowcruise/booking-platform/internal/model"
	"github.com/dhowcruise/booking-platform/internal/service"
	"github.com/dhowcruise/booking-platform/pkg/logger"
)

// BookingHandler handles bookings, the admin calendar and customers.
type BookingHandler struct {
	bookings *service.BookingService
	loc      *time.Location
	logger   *logger.Logger
}

// NewBookingHandler creates a new booking handler. loc picks the default
// calendar month.
func NewBookingHandler(bookings *service.BookingService, loc *time.Location, log *logger.Logger) *BookingHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &BookingHandler{bookings: bookings, loc: loc, logger: log.Module("http.booking")}
}

// Create handles POST /api/v1/bookings
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBookingRequest
	if !decode(w, r, &req) {
		return
	}
	b, err := h.bookings.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, b)
}

// Calendar handles GET /api/v1/admin/bookings/calendar?year=&month=
// Without parameters it shows the current month.
func (h *BookingHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	now := time.Now().In(h.loc)
	year, month := now.Year(), int(now.Month())
	if v := r.URL.Query().Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "year must be a number")
			return
		}
		year = n
	}
	if v := r.URL.Query().Get("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "month must be a number")
			return
		}
		month = n
	}

	cal, err := h.bookings.Month(r.Context(), year, month)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, cal)
}

// List handles GET /api/v1/admin/bookings?from=&to=&status=
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bookings, err := h.bookings.List(r.Context(), q.Get("from"), q.Get("to"), model.BookingStatus(q.Get("status")))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"bookings": bookings, "total": len(bookings)})
}

// Get handles GET /api/v1/admin/bookings/{id}
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.bookings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, b)
}

// Reschedule handles PUT /api/v1/admin/bookings/{id}/date
func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req model.RescheduleRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.bookings.Reschedule(r.Context(), chi.URLParam(r, "id"), req.Date)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// UpdateStatus handles PUT /api/v1/admin/bookings/{id}/status
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateBookingStatusRequest
	if !decode(w, r, &req) {
		return
	}
	b, err := h.bookings.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, b)
}

// Delete handles DELETE /api/v1/admin/bookings/{id}
func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.bookings.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Customers handles GET /api/v1/admin/customers
func (h *BookingHandler) Customers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.bookings.Customers(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if customers == nil {
		customers = []model.Customer{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"customers": customers, "total": len(customers)})
}
