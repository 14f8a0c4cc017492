package service

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dhowcruise/booking-platform/internal/model"
	"github.com/dhowcruise/booking-platform/pkg/logger"
)

// InquiryService manages contact-form submissions and chat leads.
type InquiryService struct {
	repo   InquiryRepository
	logger *logger.Logger
}

// NewInquiryService creates a new inquiry service.
func NewInquiryService(repo InquiryRepository, log *logger.Logger) *InquiryService {
	return &InquiryService{repo: repo, logger: log.Module("inquiries")}
}

// Create stores a contact-form submission.
func (s *InquiryService) Create(ctx context.Context, in *model.InquiryInput) (*model.Inquiry, error) {
	q := &model.Inquiry{
		ID:      uuid.Must(uuid.NewV7()).String(),
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Phone:   strings.TrimSpace(in.Phone),
		Subject: strings.TrimSpace(in.Subject),
		Message: strings.TrimSpace(in.Message),
		Source:  model.InquirySourceContact,
		Status:  model.InquiryNew,
	}
	if err := s.repo.CreateInquiry(ctx, q); err != nil {
		return nil, storeErr(err, "inquiry")
	}
	return q, nil
}

// List returns inquiries, optionally of one status.
func (s *InquiryService) List(ctx context.Context, status model.InquiryStatus) ([]model.Inquiry, error) {
	switch status {
	case "", model.InquiryNew, model.InquiryContacted, model.InquiryClosed:
	default:
		return nil, invalid("unknown status %q", status)
	}
	inquiries, err := s.repo.ListInquiries(ctx, status)
	if err != nil {
		return nil, storeErr(err, "list inquiries")
	}
	return inquiries, nil
}

// UpdateStatus records follow-up progress.
func (s *InquiryService) UpdateStatus(ctx context.Context, id string, status model.InquiryStatus) (*model.Inquiry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("inquiry %w", ErrNotFound)
	}
	q, err := s.repo.UpdateInquiryStatus(ctx, id, status)
	if err != nil {
		return nil, storeErr(err, "inquiry")
	}
	return q, nil
}

// Delete removes an inquiry.
func (s *InquiryService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("inquiry %w", ErrNotFound)
	}
	return storeErr(s.repo.DeleteInquiry(ctx, id), "inquiry")
}

var settingKey = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,63}$`)

// SettingsService manages site content settings.
type SettingsService struct {
	repo   SettingRepository
	logger *logger.Logger
}

// NewSettingsService creates a new settings service.
func NewSettingsService(repo SettingRepository, log *logger.Logger) *SettingsService {
	return &SettingsService{repo: repo, logger: log.Module("settings")}
}

// List returns every setting.
func (s *SettingsService) List(ctx context.Context) ([]model.Setting, error) {
	settings, err := s.repo.ListSettings(ctx)
	if err != nil {
		return nil, storeErr(err, "list settings")
	}
	return settings, nil
}

// Map returns settings keyed by name, the shape the public site reads.
func (s *SettingsService) Map(ctx context.Context) (map[string]any, error) {
	settings, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(settings))
	for _, st := range settings {
		out[st.Key] = st.Value
	}
	return out, nil
}

// Put stores value under key.
func (s *SettingsService) Put(ctx context.Context, key string, value any) (*model.Setting, error) {
	if !settingKey.MatchString(key) {
		return nil, invalid("setting key must be lower-case letters, digits, '.', '_' or '-'")
	}
	if value == nil {
		return nil, invalid("setting value is required")
	}
	st, err := s.repo.UpsertSetting(ctx, key, value)
	if err != nil {
		return nil, storeErr(err, "setting "+key)
	}
	return st, nil
}

// Delete removes a setting.
func (s *SettingsService) Delete(ctx context.Context, key string) error {
	return storeErr(s.repo.DeleteSetting(ctx, key), "setting "+key)
}

const (
	defaultAnalyticsDays = 30
	maxAnalyticsDays     = 366
	topPagesLimit        = 10
)

// AnalyticsService records page views and summarizes site activity.
type AnalyticsService struct {
	repo   AnalyticsRepository
	loc    *time.Location
	now    func() time.Time
	logger *logger.Logger
}

// NewAnalyticsService creates a new analytics service. Days are counted in
// loc.
func NewAnalyticsService(repo AnalyticsRepository, loc *time.Location, log *logger.Logger) *AnalyticsService {
	if loc == nil {
		loc = time.UTC
	}
	return &AnalyticsService{repo: repo, loc: loc, now: time.Now, logger: log.Module("analytics")}
}

// RecordPageView stores a page view.
func (s *AnalyticsService) RecordPageView(ctx context.Context, in *model.PageViewInput, userAgent string) error {
	if len(userAgent) > 512 {
		userAgent = userAgent[:512]
	}
	v := &model.PageView{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Path:      in.Path,
		Referrer:  in.Referrer,
		VisitorID: in.VisitorID,
		UserAgent: userAgent,
	}
	return storeErr(s.repo.InsertPageView(ctx, v), "page view")
}

// Summary aggregates activity between from and to, inclusive dates in the
// business time zone. Empty bounds default to the last 30 days.
func (s *AnalyticsService) Summary(ctx context.Context, from, to string) (*model.AnalyticsSummary, error) {
	today := s.now().In(s.loc)
	end := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, s.loc)
	if to != "" {
		d, err := time.ParseInLocation(model.DateLayout, to, s.loc)
		if err != nil {
			return nil, invalid("to must be YYYY-MM-DD")
		}
		end = d
	}
	start := end.AddDate(0, 0, -(defaultAnalyticsDays - 1))
	if from != "" {
		d, err := time.ParseInLocation(model.DateLayout, from, s.loc)
		if err != nil {
			return nil, invalid("from must be YYYY-MM-DD")
		}
		start = d
	}
	if end.Before(start) {
		return nil, invalid("from is after to")
	}
	if end.After(start.AddDate(0, 0, maxAnalyticsDays-1)) {
		return nil, invalid("range is longer than %d days", maxAnalyticsDays)
	}
	until := end.AddDate(0, 0, 1)

	sum := &model.AnalyticsSummary{
		From: start.Format(model.DateLayout),
		To:   end.Format(model.DateLayout),
	}
	var perDay []model.DayCount

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sum.TotalViews, sum.UniqueVisitors, err = s.repo.PageViewTotals(gctx, start, until)
		return err
	})
	g.Go(func() error {
		var err error
		perDay, err = s.repo.PageViewsPerDay(gctx, start, until, s.loc)
		return err
	})
	g.Go(func() error {
		var err error
		sum.TopPages, err = s.repo.TopPages(gctx, start, until, topPagesLimit)
		return err
	})
	g.Go(func() error {
		var err error
		sum.BookingsByStatus, sum.Revenue, err = s.repo.CountBookingsByStatus(gctx, start, until)
		return err
	})
	g.Go(func() error {
		var err error
		sum.ConversationsByStatus, err = s.repo.CountConversationsByStatus(gctx, start, until)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storeErr(err, "analytics")
	}

	sum.ViewsPerDay = fillDays(start, end, perDay)
	return sum, nil
}

// fillDays returns one entry per day from start to end, zero where counts
// has none.
func fillDays(start, end time.Time, counts []model.DayCount) []model.DayCount {
	byDay := make(map[string]int64, len(counts))
	for _, c := range counts {
		byDay[c.Day] += c.Count
	}
	var out []model.DayCount
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(model.DateLayout)
		out = append(out, model.DayCount{Day: key, Count: byDay[key]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}
