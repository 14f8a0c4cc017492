package model

import (
	"math"
	"time"
)

// DiscountType selects how a discount's value is applied.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Discount badge states shown in the admin list.
const (
	DiscountStateActive    = "active"
	DiscountStateInactive  = "inactive"
	DiscountStateExpired   = "expired"
	DiscountStateScheduled = "scheduled"
	DiscountStateExhausted = "exhausted"
)

// Discount is a promo code.
type Discount struct {
	ID          string       `json:"id"`
	Code        string       `json:"code"`
	Description string       `json:"description,omitempty"`
	Type        DiscountType `json:"type"`
	Value       float64      `json:"value"`
	MinAmount   float64      `json:"min_amount,omitempty"`
	MaxUses     int          `json:"max_uses,omitempty"`
	UsedCount   int          `json:"used_count"`
	ValidFrom   *time.Time   `json:"valid_from,omitempty"`
	ValidUntil  *time.Time   `json:"valid_until,omitempty"`
	Active      bool         `json:"active"`
	State       string       `json:"state"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// StateAt derives the status badge of the discount at now.
func (d *Discount) StateAt(now time.Time) string {
	switch {
	case !d.Active:
		return DiscountStateInactive
	case d.ValidUntil != nil && now.After(*d.ValidUntil):
		return DiscountStateExpired
	case d.ValidFrom != nil && now.Before(*d.ValidFrom):
		return DiscountStateScheduled
	case d.MaxUses > 0 && d.UsedCount >= d.MaxUses:
		return DiscountStateExhausted
	}
	return DiscountStateActive
}

// Amount returns the discount applied to subtotal, never more than subtotal,
// rounded to two decimals.
func (d *Discount) Amount(subtotal float64) float64 {
	var amount float64
	switch d.Type {
	case DiscountPercentage:
		amount = subtotal * d.Value / 100
	case DiscountFixed:
		amount = d.Value
	}
	if amount > subtotal {
		amount = subtotal
	}
	if amount < 0 {
		amount = 0
	}
	return math.Round(amount*100) / 100
}

// DiscountInput creates or replaces a discount.
type DiscountInput struct {
	Code        string       `json:"code" validate:"required,min=2,max=64,alphanum"`
	Description string       `json:"description" validate:"max=500"`
	Type        DiscountType `json:"type" validate:"required,oneof=percentage fixed"`
	Value       float64      `json:"value" validate:"gt=0"`
	MinAmount   float64      `json:"min_amount" validate:"min=0"`
	MaxUses     int          `json:"max_uses" validate:"min=0"`
	ValidFrom   *time.Time   `json:"valid_from"`
	ValidUntil  *time.Time   `json:"valid_until"`
	Active      bool         `json:"active"`
}

// ValidateDiscountRequest checks a code against a subtotal.
type ValidateDiscountRequest struct {
	Code     string  `json:"code" validate:"required,max=64"`
	Subtotal float64 `json:"subtotal" validate:"min=0"`
}

// ValidateDiscountResponse is the outcome of a discount check.
type ValidateDiscountResponse struct {
	Code     string  `json:"code"`
	Type     string  `json:"type"`
	Value    float64 `json:"value"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`
}
