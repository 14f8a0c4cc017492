package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dhowcruise/booking-platform/internal/model"
	"github.com/dhowcruise/booking-platform/pkg/logger"
)

// TourService manages the tour catalog.
type TourService struct {
	repo   TourRepository
	logger *logger.Logger
}

// NewTourService creates a new tour service.
func NewTourService(repo TourRepository, log *logger.Logger) *TourService {
	return &TourService{repo: repo, logger: log.Module("tours")}
}

// List returns tours in display order, optionally only active ones.
func (s *TourService) List(ctx context.Context, activeOnly bool) ([]model.Tour, error) {
	tours, err := s.repo.ListTours(ctx, activeOnly)
	if err != nil {
		return nil, storeErr(err, "list tours")
	}
	return tours, nil
}

// BySlug returns an active tour for the public site.
func (s *TourService) BySlug(ctx context.Context, slug string) (*model.Tour, error) {
	t, err := s.repo.GetTourBySlug(ctx, slug)
	if err != nil {
		return nil, storeErr(err, "tour")
	}
	if !t.Active {
		return nil, fmt.Errorf("tour %w", ErrNotFound)
	}
	return t, nil
}

// Get returns any tour by id.
func (s *TourService) Get(ctx context.Context, id string) (*model.Tour, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("tour %w", ErrNotFound)
	}
	t, err := s.repo.GetTour(ctx, id)
	if err != nil {
		return nil, storeErr(err, "tour")
	}
	return t, nil
}

func tourFromInput(id string, in *model.TourInput) *model.Tour {
	return &model.Tour{
		ID:            id,
		Slug:          strings.ToLower(strings.TrimSpace(in.Slug)),
		Name:          strings.TrimSpace(in.Name),
		Summary:       in.Summary,
		Description:   in.Description,
		Duration:      in.Duration,
		DepartureTime: in.DepartureTime,
		PriceAdult:    in.PriceAdult,
		PriceChild:    in.PriceChild,
		Capacity:      in.Capacity,
		Images:        in.Images,
		Features:      in.Features,
		Active:        in.Active,
		SortOrder:     in.SortOrder,
	}
}

// Create adds a tour.
func (s *TourService) Create(ctx context.Context, in *model.TourInput) (*model.Tour, error) {
	t := tourFromInput(uuid.Must(uuid.NewV7()).String(), in)
	if err := s.repo.CreateTour(ctx, t); err != nil {
		return nil, storeErr(err, "tour "+t.Slug)
	}
	s.logger.Info("tour created", zap.String("tour_id", t.ID), zap.String("slug", t.Slug))
	return t, nil
}

// Update replaces a tour.
func (s *TourService) Update(ctx context.Context, id string, in *model.TourInput) (*model.Tour, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	t := tourFromInput(id, in)
	if err := s.repo.UpdateTour(ctx, t); err != nil {
		return nil, storeErr(err, "tour "+t.Slug)
	}
	return t, nil
}

// Delete removes a tour that has no bookings.
func (s *TourService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("tour %w", ErrNotFound)
	}
	if err := s.repo.DeleteTour(ctx, id); err != nil {
		return storeErr(err, "tour")
	}
	s.logger.Info("tour deleted", zap.String("tour_id", id))
	return nil
}

// ReviewService manages guest reviews.
type ReviewService struct {
	repo   ReviewRepository
	logger *logger.Logger
}

// NewReviewService creates a new review service.
func NewReviewService(repo ReviewRepository, log *logger.Logger) *ReviewService {
	return &ReviewService{repo: repo, logger: log.Module("reviews")}
}

// Submit stores a visitor review for moderation.
func (s *ReviewService) Submit(ctx context.Context, in *model.ReviewInput) (*model.Review, error) {
	r := &model.Review{
		ID:         uuid.Must(uuid.NewV7()).String(),
		TourID:     in.TourID,
		AuthorName: strings.TrimSpace(in.AuthorName),
		Country:    strings.TrimSpace(in.Country),
		Rating:     in.Rating,
		Comment:    strings.TrimSpace(in.Comment),
	}
	if err := s.repo.CreateReview(ctx, r); err != nil {
		return nil, storeErr(err, "review")
	}
	return r, nil
}

// List returns reviews, optionally only published ones.
func (s *ReviewService) List(ctx context.Context, publishedOnly bool) ([]model.Review, error) {
	reviews, err := s.repo.ListReviews(ctx, publishedOnly)
	if err != nil {
		return nil, storeErr(err, "list reviews")
	}
	return reviews, nil
}

// SetPublished publishes or hides a review.
func (s *ReviewService) SetPublished(ctx context.Context, id string, published bool) (*model.Review, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("review %w", ErrNotFound)
	}
	r, err := s.repo.SetReviewPublished(ctx, id, published)
	if err != nil {
		return nil, storeErr(err, "review")
	}
	return r, nil
}

// Delete removes a review.
func (s *ReviewService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("review %w", ErrNotFound)
	}
	return storeErr(s.repo.DeleteReview(ctx, id), "review")
}

// Summary returns the published rating average.
func (s *ReviewService) Summary(ctx context.Context) (model.ReviewSummary, error) {
	sum, err := s.repo.ReviewSummary(ctx)
	if err != nil {
		return sum, storeErr(err, "review summary")
	}
	return sum, nil
}
