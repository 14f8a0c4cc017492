package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dhowcruise/booking-platform/internal/model"
	"github.com/dhowcruise/booking-platform/internal/store"
	"github.com/dhowcruise/booking-platform/pkg/logger"
)

// DiscountService manages promo codes.
type DiscountService struct {
	repo   DiscountRepository
	now    func() time.Time
	logger *logger.Logger
}

// NewDiscountService creates a new discount service.
func NewDiscountService(repo DiscountRepository, log *logger.Logger) *DiscountService {
	return &DiscountService{repo: repo, now: time.Now, logger: log.Module("discount")}
}

func (s *DiscountService) withState(d *model.Discount) *model.Discount {
	d.State = d.StateAt(s.now())
	return d
}

// List returns every discount with its current state.
func (s *DiscountService) List(ctx context.Context) ([]model.Discount, error) {
	discounts, err := s.repo.ListDiscounts(ctx)
	if err != nil {
		return nil, storeErr(err, "list discounts")
	}
	for i := range discounts {
		s.withState(&discounts[i])
	}
	return discounts, nil
}

// Get returns a discount.
func (s *DiscountService) Get(ctx context.Context, id string) (*model.Discount, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("discount %w", ErrNotFound)
	}
	d, err := s.repo.GetDiscount(ctx, id)
	if err != nil {
		return nil, storeErr(err, "discount")
	}
	return s.withState(d), nil
}

func discountFromInput(id string, in *model.DiscountInput) (*model.Discount, error) {
	if in.Type == model.DiscountPercentage && in.Value > 100 {
		return nil, invalid("percentage cannot exceed 100")
	}
	if in.ValidFrom != nil && in.ValidUntil != nil && in.ValidUntil.Before(*in.ValidFrom) {
		return nil, invalid("valid_until is before valid_from")
	}
	return &model.Discount{
		ID:          id,
		Code:        strings.ToUpper(strings.TrimSpace(in.Code)),
		Description: in.Description,
		Type:        in.Type,
		Value:       in.Value,
		MinAmount:   in.MinAmount,
		MaxUses:     in.MaxUses,
		ValidFrom:   in.ValidFrom,
		ValidUntil:  in.ValidUntil,
		Active:      in.Active,
	}, nil
}

// Create adds a discount. Codes are stored upper-case.
func (s *DiscountService) Create(ctx context.Context, in *model.DiscountInput) (*model.Discount, error) {
	d, err := discountFromInput(uuid.Must(uuid.NewV7()).String(), in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateDiscount(ctx, d); err != nil {
		return nil, storeErr(err, "discount "+d.Code)
	}
	s.logger.Info("discount created", zap.String("discount_id", d.ID), zap.String("code", d.Code))
	return s.withState(d), nil
}

// Update replaces a discount's settings. Its usage count is kept.
func (s *DiscountService) Update(ctx context.Context, id string, in *model.DiscountInput) (*model.Discount, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	d, err := discountFromInput(id, in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateDiscount(ctx, d); err != nil {
		return nil, storeErr(err, "discount "+d.Code)
	}
	return s.withState(d), nil
}

// Toggle flips the active flag and returns the discount with its new state.
func (s *DiscountService) Toggle(ctx context.Context, id string) (*model.Discount, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	d, err := s.repo.SetDiscountActive(ctx, id, !current.Active)
	if err != nil {
		return nil, storeErr(err, "discount")
	}
	s.withState(d)
	s.logger.Info("discount toggled",
		zap.String("discount_id", id),
		zap.Bool("active", d.Active),
		zap.String("state", d.State),
	)
	return d, nil
}

// Delete removes a discount.
func (s *DiscountService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("discount %w", ErrNotFound)
	}
	if err := s.repo.DeleteDiscount(ctx, id); err != nil {
		return storeErr(err, "discount")
	}
	return nil
}

// Validate checks a code against a subtotal without using it.
func (s *DiscountService) Validate(ctx context.Context, req *model.ValidateDiscountRequest) (*model.ValidateDiscountResponse, error) {
	d, err := s.repo.GetDiscountByCode(ctx, strings.TrimSpace(req.Code))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown code", ErrDiscountInvalid)
	}
	if err != nil {
		return nil, storeErr(err, "discount")
	}
	amount, err := applyDiscount(d, req.Subtotal, s.now())
	if err != nil {
		return nil, err
	}
	return &model.ValidateDiscountResponse{
		Code:     d.Code,
		Type:     string(d.Type),
		Value:    d.Value,
		Discount: amount,
		Total:    roundMoney(req.Subtotal - amount),
	}, nil
}

// applyDiscount returns the amount d takes off subtotal at now, or
// ErrDiscountInvalid with the reason it does not apply.
func applyDiscount(d *model.Discount, subtotal float64, now time.Time) (float64, error) {
	switch d.StateAt(now) {
	case model.DiscountStateInactive:
		return 0, fmt.Errorf("%w: code is not active", ErrDiscountInvalid)
	case model.DiscountStateExpired:
		return 0, fmt.Errorf("%w: code has expired", ErrDiscountInvalid)
	case model.DiscountStateScheduled:
		return 0, fmt.Errorf("%w: code is not valid yet", ErrDiscountInvalid)
	case model.DiscountStateExhausted:
		return 0, fmt.Errorf("%w: code has been used up", ErrDiscountInvalid)
	}
	if subtotal < d.MinAmount {
		return 0, fmt.Errorf("%w: minimum order is %.2f", ErrDiscountInvalid, d.MinAmount)
	}
	return d.Amount(subtotal), nil
}
