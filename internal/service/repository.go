package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dhowcruise/booking-platform/internal/feed"
	"github.com/dhowcruise/booking-platform/internal/model"
	"github.com/dhowcruise/booking-platform/pkg/logger"
	"github.com/dhowcruise/booking-platform/pkg/metrics"
)

// ConversationRepository stores conversations and their messages.
type ConversationRepository interface {
	CreateConversation(ctx context.Context, c *model.Conversation) error
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	FindOpenConversation(ctx context.Context, visitorID string) (*model.Conversation, error)
	UpdateVisitorDetails(ctx context.Context, id string, d model.VisitorDetails) (*model.Conversation, error)
	SetConversationStatus(ctx context.Context, id string, status model.ConversationStatus) (*model.Conversation, error)
	SetAgent(ctx context.Context, id string, a model.AgentAssignment) (*model.Conversation, error)
	ListConversationSummaries(ctx context.Context, statuses []model.ConversationStatus) ([]model.ConversationSummary, error)

	InsertMessage(ctx context.Context, m *model.Message) (bool, error)
	ListMessages(ctx context.Context, conversationID string, after time.Time, limit int) ([]model.Message, error)
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error)
}

// TourRepository stores the tour catalog.
type TourRepository interface {
	ListTours(ctx context.Context, activeOnly bool) ([]model.Tour, error)
	GetTour(ctx context.Context, id string) (*model.Tour, error)
	GetTourBySlug(ctx context.Context, slug string) (*model.Tour, error)
	CreateTour(ctx context.Context, t *model.Tour) error
	UpdateTour(ctx context.Context, t *model.Tour) error
	DeleteTour(ctx context.Context, id string) error
}

// DiscountRepository stores promo codes.
type DiscountRepository interface {
	ListDiscounts(ctx context.Context) ([]model.Discount, error)
	GetDiscount(ctx context.Context, id string) (*model.Discount, error)
	GetDiscountByCode(ctx context.Context, code string) (*model.Discount, error)
	CreateDiscount(ctx context.Context, d *model.Discount) error
	UpdateDiscount(ctx context.Context, d *model.Discount) error
	SetDiscountActive(ctx context.Context, id string, active bool) (*model.Discount, error)
	DeleteDiscount(ctx context.Context, id string) error
}

// BookingRepository stores bookings.
type BookingRepository interface {
	CreateBooking(ctx context.Context, b *model.Booking, discountID string) error
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error)
	UpdateBookingDate(ctx context.Context, id, date string) (*model.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, status model.BookingStatus) (*model.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	ListCustomers(ctx context.Context) ([]model.Customer, error)
}

// ReviewRepository stores reviews.
type ReviewRepository interface {
	ListReviews(ctx context.Context, publishedOnly bool) ([]model.Review, error)
	CreateReview(ctx context.Context, r *model.Review) error
	SetReviewPublished(ctx context.Context, id string, published bool) (*model.Review, error)
	DeleteReview(ctx context.Context, id string) error
	ReviewSummary(ctx context.Context) (model.ReviewSummary, error)
}

// InquiryRepository stores contact-form and chat leads.
type InquiryRepository interface {
	ListInquiries(ctx context.Context, status model.InquiryStatus) ([]model.Inquiry, error)
	CreateInquiry(ctx context.Context, q *model.Inquiry) error
	UpdateInquiryStatus(ctx context.Context, id string, status model.InquiryStatus) (*model.Inquiry, error)
	DeleteInquiry(ctx context.Context, id string) error
}

// SettingRepository stores site content settings.
type SettingRepository interface {
	ListSettings(ctx context.Context) ([]model.Setting, error)
	UpsertSetting(ctx context.Context, key string, value any) (*model.Setting, error)
	DeleteSetting(ctx context.Context, key string) error
}

// AnalyticsRepository records page views and reports aggregates.
type AnalyticsRepository interface {
	InsertPageView(ctx context.Context, v *model.PageView) error
	PageViewTotals(ctx context.Context, from, to time.Time) (views, visitors int64, err error)
	PageViewsPerDay(ctx context.Context, from, to time.Time, loc *time.Location) ([]model.DayCount, error)
	TopPages(ctx context.Context, from, to time.Time, limit int) ([]model.PathCount, error)
	CountBookingsByStatus(ctx context.Context, from, to time.Time) (map[string]int64, float64, error)
	CountConversationsByStatus(ctx context.Context, from, to time.Time) (map[string]int64, error)
}

// publisher announces committed row changes. A failed publish is logged
// and counted but never fails the write that caused it.
type publisher struct {
	feed   feed.Feed
	logger *logger.Logger
}

func (p publisher) publish(ctx context.Context, table string, op feed.Op, id, conversationID string, record any) {
	if p.feed == nil {
		return
	}
	ev, err := feed.NewChangeEvent(table, op, id, conversationID, record)
	if err == nil {
		err = p.feed.Publish(ctx, ev)
	}
	if err != nil {
		metrics.FeedPublishFailures.WithLabelValues(table).Inc()
		p.logger.Warn("failed to publish change",
			zap.String("table", table),
			zap.String("op", string(op)),
			zap.String("id", id),
			zap.Error(err),
		)
	}
}

func (p publisher) conversation(ctx context.Context, op feed.Op, c *model.Conversation) {
	p.publish(ctx, feed.TableConversations, op, c.ID, c.ID, c)
}

func (p publisher) message(ctx context.Context, m *model.Message) {
	p.publish(ctx, feed.TableMessages, feed.OpInsert, m.ID, m.ConversationID, m)
}
