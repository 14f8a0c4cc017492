package model

import (
	"time"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// BookingStatus is the state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Valid reports whether s is a known booking status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled:
		return true
	}
	return false
}

// Booking is a customer's reservation of a tour on a date.
type Booking struct {
	ID             string        `json:"id"`
	TourID         string        `json:"tour_id"`
	TourName       string        `json:"tour_name"`
	Date           string        `json:"date"`
	StartTime      string        `json:"start_time,omitempty"`
	Adults         int           `json:"adults"`
	Children       int           `json:"children"`
	Infants        int           `json:"infants"`
	TotalPrice     float64       `json:"total_price"`
	Currency       string        `json:"currency"`
	CustomerName   string        `json:"customer_name"`
	CustomerEmail  string        `json:"customer_email"`
	CustomerPhone  string        `json:"customer_phone"`
	Notes          string        `json:"notes,omitempty"`
	DiscountCode   string        `json:"discount_code,omitempty"`
	DiscountAmount float64       `json:"discount_amount,omitempty"`
	Status         BookingStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Guests is the number of seats the booking occupies. Infants ride free and
// do not take a seat.
func (b *Booking) Guests() int {
	return b.Adults + b.Children
}

// CreateBookingRequest is submitted by the public booking form.
type CreateBookingRequest struct {
	TourID        string `json:"tour_id" validate:"required"`
	Date          string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime     string `json:"start_time" validate:"omitempty,datetime=15:04"`
	Adults        int    `json:"adults" validate:"min=0,max=500"`
	Children      int    `json:"children" validate:"min=0,max=500"`
	Infants       int    `json:"infants" validate:"min=0,max=500"`
	CustomerName  string `json:"customer_name" validate:"required,max=128"`
	CustomerEmail string `json:"customer_email" validate:"required,email,max=256"`
	CustomerPhone string `json:"customer_phone" validate:"required,max=32"`
	Notes         string `json:"notes" validate:"max=2000"`
	DiscountCode  string `json:"discount_code" validate:"max=64"`
}

// RescheduleRequest moves a booking to another date.
type RescheduleRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// UpdateBookingStatusRequest changes a booking's status.
type UpdateBookingStatusRequest struct {
	Status BookingStatus `json:"status" validate:"required,oneof=pending confirmed cancelled"`
}

// RescheduleResponse reports whether a reschedule changed anything.
type RescheduleResponse struct {
	Booking *Booking `json:"booking"`
	Changed bool     `json:"changed"`
}

// BookingFilter narrows booking listings.
type BookingFilter struct {
	From   time.Time
	To     time.Time
	Status BookingStatus
	TourID string
}

// CalendarDay is one cell of the month grid.
type CalendarDay struct {
	Date     string    `json:"date"`
	InMonth  bool      `json:"in_month"`
	IsToday  bool      `json:"is_today"`
	Bookings []Booking `json:"bookings"`
}

// CalendarMonth is a month grid of whole weeks, Sunday first.
type CalendarMonth struct {
	Year  int             `json:"year"`
	Month int             `json:"month"`
	Weeks [][]CalendarDay `json:"weeks"`
	Total int             `json:"total"`
}

// Customer aggregates bookings by customer email.
type Customer struct {
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Bookings      int       `json:"bookings"`
	TotalSpent    float64   `json:"total_spent"`
	FirstBooking  time.Time `json:"first_booking"`
	LastBooking   time.Time `json:"last_booking"`
	LastTourName  string    `json:"last_tour_name,omitempty"`
	CancelledOnly bool      `json:"cancelled_only,omitempty"`
}
