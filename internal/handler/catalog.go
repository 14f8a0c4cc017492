package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dhowcruise/booking-platform/internal/model"
	"github.com/dhowcruise/booking-platform/internal/service"
	"github.com/dhowcruise/booking-platform/pkg/logger"
)

// CatalogHandler handles tours and reviews.
type CatalogHandler struct {
	tours   *service.TourService
	reviews *service.ReviewService
	logger  *logger.Logger
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(tours *service.TourService, reviews *service.ReviewService, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{tours: tours, reviews: reviews, logger: log.Module("http.catalog")}
}

func (h *CatalogHandler) listTours(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	tours, err := h.tours.List(r.Context(), activeOnly)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if tours == nil {
		tours = []model.Tour{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"tours": tours})
}

// PublicTours handles GET /api/v1/tours
func (h *CatalogHandler) PublicTours(w http.ResponseWriter, r *http.Request) {
	h.listTours(w, r, true)
}

// TourBySlug handles GET /api/v1/tours/{slug}
func (h *CatalogHandler) TourBySlug(w http.ResponseWriter, r *http.Request) {
	t, err := h.tours.BySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, t)
}

// AdminTours handles GET /api/v1/admin/tours
func (h *CatalogHandler) AdminTours(w http.ResponseWriter, r *http.Request) {
	h.listTours(w, r, boolParam(r, "active", false))
}

// GetTour handles GET /api/v1/admin/tours/{id}
func (h *CatalogHandler) GetTour(w http.ResponseWriter, r *http.Request) {
	t, err := h.tours.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, t)
}

// CreateTour handles POST /api/v1/admin/tours
func (h *CatalogHandler) CreateTour(w http.ResponseWriter, r *http.Request) {
	var in model.TourInput
	if !decode(w, r, &in) {
		return
	}
	t, err := h.tours.Create(r.Context(), &in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, t)
}

// UpdateTour handles PUT /api/v1/admin/tours/{id}
func (h *CatalogHandler) UpdateTour(w http.ResponseWriter, r *http.Request) {
	var in model.TourInput
	if !decode(w, r, &in) {
		return
	}
	t, err := h.tours.Update(r.Context(), chi.URLParam(r, "id"), &in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, t)
}

// DeleteTour handles DELETE /api/v1/admin/tours/{id}
func (h *CatalogHandler) DeleteTour(w http.ResponseWriter, r *http.Request) {
	if err := h.tours.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) listReviews(w http.ResponseWriter, r *http.Request, publishedOnly bool) {
	reviews, err := h.reviews.List(r.Context(), publishedOnly)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	summary, err := h.reviews.Summary(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if reviews == nil {
		reviews = []model.Review{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"reviews": reviews, "summary": summary})
}

// PublicReviews handles GET /api/v1/reviews
func (h *CatalogHandler) PublicReviews(w http.ResponseWriter, r *http.Request) {
	h.listReviews(w, r, true)
}

// AdminReviews handles GET /api/v1/admin/reviews
func (h *CatalogHandler) AdminReviews(w http.ResponseWriter, r *http.Request) {
	h.listReviews(w, r, boolParam(r, "published", false))
}

// SubmitReview handles POST /api/v1/reviews
func (h *CatalogHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var in model.ReviewInput
	if !decode(w, r, &in) {
		return
	}
	review, err := h.reviews.Submit(r.Context(), &in)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, review)
}

type publishRequest struct {
	Published *bool `json:"published" validate:"required"`
}

// PublishReview handles PUT /api/v1/admin/reviews/{id}/published
func (h *CatalogHandler) PublishReview(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if !decode(w, r, &req) {
		return
	}
	review, err := h.reviews.SetPublished(r.Context(), chi.URLParam(r, "id"), *req.Published)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, review)
}

// DeleteReview handles DELETE /api/v1/admin/reviews/{id}
func (h *CatalogHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	if err := h.reviews.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
