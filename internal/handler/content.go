package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dhowcruise/booking-platform/internal/model"
	"github.com/dhowcruise/booking-platform/internal/service"
	"github.com/dhowcruise/booking-platform/pkg/logger"
)

// ContentHandler handles discounts, inquiries, settings and analytics.
type ContentHandler struct {
	discounts *service.DiscountService
	inquiries *service.InquiryService
	settings  *service.SettingsService
	analytics *service.AnalyticsService
	logger    *logger.Logger
}

// NewContentHandler creates a new content handler.
func NewContentHandler(
	discounts *service.DiscountService,
	inquiries *service.InquiryService,
	settings *service.SettingsService,
	analytics *service.AnalyticsService,
	log *logger.Logger,
) *ContentHandler {
	return &ContentHandler{
		discounts: discounts,
		inquiries: inquiries,
		settings:  settings,
		analytics: analytics,
		logger:    log.Module("http.content"),
	}
}

// ListDiscounts handles GET /api/v1/admin/discounts
func (h *ContentHandler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	discounts, err := h.discounts.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if discounts == nil {
		discounts = []model.Discount{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"discounts": discounts})
}

// GetDiscount handles GET /api/v1/admin/discounts/{id}
func (h *ContentHandler) GetDiscount(w http.ResponseWriter, r *http.Request) {
	d, err := h.discounts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, d)
}

// CreateDiscount handles POST /api/v1/admin/discounts
func (h *ContentHandler) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	var in model.DiscountInput
	if !decode(w, r, &in) {
		return
	}
	d, err := h.discounts.Create(r.Context(), &in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, d)
}

// UpdateDiscount handles PUT /api/v1/admin/discounts/{id}
func (h *ContentHandler) UpdateDiscount(w http.ResponseWriter, r *http.Request) {
	var in model.DiscountInput
	if !decode(w, r, &in) {
		return
	}
	d, err := h.discounts.Update(r.Context(), chi.URLParam(r, "id"), &in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, d)
}

// ToggleDiscount handles POST /api/v1/admin/discounts/{id}/toggle
func (h *ContentHandler) ToggleDiscount(w http.ResponseWriter, r *http.Request) {
	d, err := h.discounts.Toggle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, d)
}

// DeleteDiscount handles DELETE /api/v1/admin/discounts/{id}
func (h *ContentHandler) DeleteDiscount(w http.ResponseWriter, r *http.Request) {
	if err := h.discounts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ValidateDiscount handles POST /api/v1/discounts/validate
func (h *ContentHandler) ValidateDiscount(w http.ResponseWriter, r *http.Request) {
	var req model.ValidateDiscountRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.discounts.Validate(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// CreateInquiry handles POST /api/v1/inquiries
func (h *ContentHandler) CreateInquiry(w http.ResponseWriter, r *http.Request) {
	var in model.InquiryInput
	if !decode(w, r, &in) {
		return
	}
	q, err := h.inquiries.Create(r.Context(), &in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, q)
}

// ListInquiries handles GET /api/v1/admin/inquiries?status=
func (h *ContentHandler) ListInquiries(w http.ResponseWriter, r *http.Request) {
	inquiries, err := h.inquiries.List(r.Context(), model.InquiryStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if inquiries == nil {
		inquiries = []model.Inquiry{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"inquiries": inquiries})
}

// UpdateInquiryStatus handles PUT /api/v1/admin/inquiries/{id}/status
func (h *ContentHandler) UpdateInquiryStatus(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateInquiryStatusRequest
	if !decode(w, r, &req) {
		return
	}
	q, err := h.inquiries.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, q)
}

// DeleteInquiry handles DELETE /api/v1/admin/inquiries/{id}
func (h *ContentHandler) DeleteInquiry(w http.ResponseWriter, r *http.Request) {
	if err := h.inquiries.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PublicSettings handles GET /api/v1/settings
func (h *ContentHandler) PublicSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Map(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, settings)
}

// ListSettings handles GET /api/v1/admin/settings
func (h *ContentHandler) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if settings == nil {
		settings = []model.Setting{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"settings": settings})
}

// PutSetting handles PUT /api/v1/admin/settings/{key}
func (h *ContentHandler) PutSetting(w http.ResponseWriter, r *http.Request) {
	var in model.SettingInput
	if !decode(w, r, &in) {
		return
	}
	st, err := h.settings.Put(r.Context(), chi.URLParam(r, "key"), in.Value)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}

// DeleteSetting handles DELETE /api/v1/admin/settings/{key}
func (h *ContentHandler) DeleteSetting(w http.ResponseWriter, r *http.Request) {
	if err := h.settings.Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordPageView handles POST /api/v1/analytics/pageview
func (h *ContentHandler) RecordPageView(w http.ResponseWriter, r *http.Request) {
	var in model.PageViewInput
	if !decode(w, r, &in) {
		return
	}
	if err := h.analytics.RecordPageView(r.Context(), &in, r.UserAgent()); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Analytics handles GET /api/v1/admin/analytics?from=&to=
func (h *ContentHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sum, err := h.analytics.Summary(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sum)
}
