package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dhowcruise/booking-platform/internal/feed"
	"github.com/dhowcruise/booking-platform/internal/model"
	"github.com/dhowcruise/booking-platform/internal/store"
	"github.com/dhowcruise/booking-platform/pkg/logger"
	"github.com/dhowcruise/booking-platform/pkg/metrics"
)

// BookingService handles bookings and the admin calendar.
type BookingService struct {
	bookings  BookingRepository
	tours     TourRepository
	discounts DiscountRepository
	pub       publisher
	loc       *time.Location
	currency  string
	now       func() time.Time
	logger    *logger.Logger
}

// NewBookingService creates a new booking service. Dates are interpreted in
// loc, the business time zone.
func NewBookingService(
	bookings BookingRepository,
	tours TourRepository,
	discounts DiscountRepository,
	changes feed.Feed,
	loc *time.Location,
	currency string,
	log *logger.Logger,
) *BookingService {
	if loc == nil {
		loc = time.UTC
	}
	log = log.Module("booking")
	return &BookingService{
		bookings:  bookings,
		tours:     tours,
		discounts: discounts,
		pub:       publisher{feed: changes, logger: log},
		loc:       loc,
		currency:  currency,
		now:       time.Now,
		logger:    log,
	}
}

func (s *BookingService) today() string {
	return s.now().In(s.loc).Format(model.DateLayout)
}

// Create books a tour for a customer. The price is computed from the tour
// and an optional discount code, whose usage is counted.
func (s *BookingService) Create(ctx context.Context, req *model.CreateBookingRequest) (*model.Booking, error) {
	if _, err := time.Parse(model.DateLayout, req.Date); err != nil {
		return nil, invalid("date must be YYYY-MM-DD")
	}
	if req.Date < s.today() {
		return nil, invalid("date is in the past")
	}
	if _, err := uuid.Parse(req.TourID); err != nil {
		return nil, invalid("unknown tour")
	}

	tour, err := s.tours.GetTour(ctx, req.TourID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !tour.Active) {
		return nil, invalid("unknown tour")
	}
	if err != nil {
		return nil, storeErr(err, "tour")
	}

	b := &model.Booking{
		ID:            uuid.Must(uuid.NewV7()).String(),
		TourID:        tour.ID,
		TourName:      tour.Name,
		Date:          req.Date,
		StartTime:     req.StartTime,
		Adults:        req.Adults,
		Children:      req.Children,
		Infants:       req.Infants,
		Currency:      s.currency,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		Notes:         strings.TrimSpace(req.Notes),
		Status:        model.BookingPending,
	}
	if b.StartTime == "" {
		b.StartTime = tour.DepartureTime
	}
	if b.Guests() < 1 {
		return nil, invalid("at least one adult or child is required")
	}
	if b.Guests() > tour.Capacity {
		return nil, invalid("%s takes at most %d guests", tour.Name, tour.Capacity)
	}

	subtotal := roundMoney(float64(b.Adults)*tour.PriceAdult + float64(b.Children)*tour.PriceChild)
	b.TotalPrice = subtotal

	var discountID string
	if code := strings.TrimSpace(req.DiscountCode); code != "" {
		d, err := s.discounts.GetDiscountByCode(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown code", ErrDiscountInvalid)
		}
		if err != nil {
			return nil, storeErr(err, "discount")
		}
		amount, err := applyDiscount(d, subtotal, s.now())
		if err != nil {
			return nil, err
		}
		discountID = d.ID
		b.DiscountCode = d.Code
		b.DiscountAmount = amount
		b.TotalPrice = roundMoney(subtotal - amount)
	}

	if err := s.bookings.CreateBooking(ctx, b, discountID); err != nil {
		if errors.Is(err, store.ErrConflict) && discountID != "" {
			return nil, fmt.Errorf("%w: code has been used up", ErrDiscountInvalid)
		}
		return nil, storeErr(err, "booking")
	}
	s.pub.publish(ctx, feed.TableBookings, feed.OpInsert, b.ID, "", b)
	metrics.BookingsTotal.WithLabelValues(string(b.Status)).Inc()

	s.logger.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("tour_id", b.TourID),
		zap.String("date", b.Date),
		zap.Int("guests", b.Guests()),
		zap.Float64("total", b.TotalPrice),
	)
	return b, nil
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// Month builds the calendar grid for a month: whole weeks starting on
// Sunday, each day carrying its bookings ordered by start time.
func (s *BookingService) Month(ctx context.Context, year, month int) (*model.CalendarMonth, error) {
	if month < 1 || month > 12 || year < 2000 || year > 2200 {
		return nil, invalid("no such month %d-%d", year, month)
	}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	start := first.AddDate(0, 0, -int(first.Weekday()))
	end := last.AddDate(0, 0, 6-int(last.Weekday()))

	bookings, err := s.bookings.ListBookings(ctx, model.BookingFilter{From: start, To: end.AddDate(0, 0, 1)})
	if err != nil {
		return nil, storeErr(err, "list bookings")
	}
	byDay := make(map[string][]model.Booking)
	for _, b := range bookings {
		byDay[b.Date] = append(byDay[b.Date], b)
	}

	cal := &model.CalendarMonth{Year: year, Month: month}
	today := s.today()
	for day := start; !day.After(end); {
		week := make([]model.CalendarDay, 0, 7)
		for i := 0; i < 7; i++ {
			key := day.Format(model.DateLayout)
			cell := model.CalendarDay{
				Date:     key,
				InMonth:  day.Month() == first.Month(),
				IsToday:  key == today,
				Bookings: sortByStart(byDay[key]),
			}
			if cell.InMonth {
				cal.Total += len(cell.Bookings)
			}
			week = append(week, cell)
			day = day.AddDate(0, 0, 1)
		}
		cal.Weeks = append(cal.Weeks, week)
	}
	return cal, nil
}

func sortByStart(bookings []model.Booking) []model.Booking {
	if bookings == nil {
		return []model.Booking{}
	}
	sort.SliceStable(bookings, func(i, j int) bool {
		if bookings[i].StartTime != bookings[j].StartTime {
			return bookings[i].StartTime < bookings[j].StartTime
		}
		return bookings[i].CreatedAt.Before(bookings[j].CreatedAt)
	})
	return bookings
}

// List returns bookings between from and to (inclusive, YYYY-MM-DD, either
// may be empty) with an optional status.
func (s *BookingService) List(ctx context.Context, from, to string, status model.BookingStatus) ([]model.Booking, error) {
	var f model.BookingFilter
	if from != "" {
		d, err := time.Parse(model.DateLayout, from)
		if err != nil {
			return nil, invalid("from must be YYYY-MM-DD")
		}
		f.From = d
	}
	if to != "" {
		d, err := time.Parse(model.DateLayout, to)
		if err != nil {
			return nil, invalid("to must be YYYY-MM-DD")
		}
		f.To = d.AddDate(0, 0, 1)
	}
	if status != "" {
		if !status.Valid() {
			return nil, invalid("unknown status %q", status)
		}
		f.Status = status
	}
	bookings, err := s.bookings.ListBookings(ctx, f)
	if err != nil {
		return nil, storeErr(err, "list bookings")
	}
	return bookings, nil
}

// Get returns a booking.
func (s *BookingService) Get(ctx context.Context, id string) (*model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("booking %w", ErrNotFound)
	}
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, storeErr(err, "booking")
	}
	return b, nil
}

// Reschedule moves a booking to date. Moving it to the date it already has
// writes nothing. There is no capacity or overlap check.
func (s *BookingService) Reschedule(ctx context.Context, id, date string) (*model.RescheduleResponse, error) {
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return nil, invalid("date must be YYYY-MM-DD")
	}
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Date == date {
		return &model.RescheduleResponse{Booking: b, Changed: false}, nil
	}
	if b.Status == model.BookingCancelled {
		return nil, fmt.Errorf("%w: cancelled bookings cannot be rescheduled", ErrConflict)
	}

	updated, err := s.bookings.UpdateBookingDate(ctx, id, date)
	if err != nil {
		return nil, storeErr(err, "booking")
	}
	s.pub.publish(ctx, feed.TableBookings, feed.OpUpdate, updated.ID, "", updated)

	s.logger.Info("booking rescheduled",
		zap.String("booking_id", id),
		zap.String("from", b.Date),
		zap.String("to", date),
	)
	return &model.RescheduleResponse{Booking: updated, Changed: true}, nil
}

// UpdateStatus confirms, cancels or reopens a booking.
func (s *BookingService) UpdateStatus(ctx context.Context, id string, status model.BookingStatus) (*model.Booking, error) {
	if !status.Valid() {
		return nil, invalid("unknown status %q", status)
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	b, err := s.bookings.UpdateBookingStatus(ctx, id, status)
	if err != nil {
		return nil, storeErr(err, "booking")
	}
	s.pub.publish(ctx, feed.TableBookings, feed.OpUpdate, b.ID, "", b)
	metrics.BookingsTotal.WithLabelValues(string(status)).Inc()

	s.logger.Info("booking status changed", zap.String("booking_id", id), zap.String("status", string(status)))
	return b, nil
}

// Delete removes a booking.
func (s *BookingService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("booking %w", ErrNotFound)
	}
	if err := s.bookings.DeleteBooking(ctx, id); err != nil {
		return storeErr(err, "booking")
	}
	s.pub.publish(ctx, feed.TableBookings, feed.OpDelete, id, "", nil)
	return nil
}

// Customers aggregates bookings by customer email.
func (s *BookingService) Customers(ctx context.Context) ([]model.Customer, error) {
	customers, err := s.bookings.ListCustomers(ctx)
	if err != nil {
		return nil, storeErr(err, "list customers")
	}
	return customers, nil
}
