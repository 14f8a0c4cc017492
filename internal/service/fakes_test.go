package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dhowcruise/booking-platform/internal/bot"
	"github.com/dhowcruise/booking-platform/internal/model"
	"github.com/dhowcruise/booking-platform/internal/store"
)

// memRepo is an in-memory stand-in for the Postgres store.
type memRepo struct {
	mu            sync.Mutex
	clock         time.Time
	conversations map[string]*model.Conversation
	messages      []model.Message
	inquiries     []model.Inquiry
	tours         map[string]*model.Tour
	discounts     map[string]*model.Discount
	bookings      map[string]*model.Booking

	updates     int
	dateUpdates int
}

func newMemRepo() *memRepo {
	return &memRepo{
		clock:         time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		conversations: make(map[string]*model.Conversation),
		tours:         make(map[string]*model.Tour),
		discounts:     make(map[string]*model.Discount),
		bookings:      make(map[string]*model.Booking),
	}
}

// tick returns a strictly increasing timestamp.
func (r *memRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *memRepo) CreateConversation(_ context.Context, c *model.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.CreatedAt = r.tick()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	r.conversations[c.ID] = &cp
	return nil
}

func (r *memRepo) GetConversation(_ context.Context, id string) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memRepo) FindOpenConversation(_ context.Context, visitorID string) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *model.Conversation
	for _, c := range r.conversations {
		if c.VisitorID == visitorID && c.Status != model.StatusClosed {
			if found == nil || c.CreatedAt.After(found.CreatedAt) {
				found = c
			}
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

// update applies fn to the stored conversation under the lock and returns
// a copy of the result.
func (r *memRepo) update(id string, fn func(*model.Conversation)) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r.updates++
	fn(c)
	c.UpdatedAt = r.tick()
	cp := *c
	return &cp, nil
}

func (r *memRepo) UpdateVisitorDetails(_ context.Context, id string, d model.VisitorDetails) (*model.Conversation, error) {
	return r.update(id, func(c *model.Conversation) { c.ApplyVisitorDetails(d) })
}

func (r *memRepo) SetConversationStatus(_ context.Context, id string, status model.ConversationStatus) (*model.Conversation, error) {
	return r.update(id, func(c *model.Conversation) { c.ApplyStatus(status) })
}

func (r *memRepo) SetAgent(_ context.Context, id string, a model.AgentAssignment) (*model.Conversation, error) {
	return r.update(id, func(c *model.Conversation) { c.ApplyAgent(a) })
}

func (r *memRepo) ListConversationSummaries(_ context.Context, statuses []model.ConversationStatus) ([]model.ConversationSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ConversationSummary
	for _, c := range r.conversations {
		for _, st := range statuses {
			if c.Status == st {
				out = append(out, model.ConversationSummary{Conversation: *c})
			}
		}
	}
	return out, nil
}

func (r *memRepo) InsertMessage(_ context.Context, m *model.Message) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.messages {
		if existing.ID == m.ID {
			*m = existing
			return false, nil
		}
	}
	m.CreatedAt = r.tick()
	r.messages = append(r.messages, *m)
	return true, nil
}

func (r *memRepo) ListMessages(_ context.Context, conversationID string, after time.Time, limit int) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Message{}
	for _, m := range r.messages {
		if m.ConversationID == conversationID && m.CreatedAt.After(after) {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) RecentMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	all, _ := r.ListMessages(ctx, conversationID, time.Time{}, 0)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (r *memRepo) messagesOf(conversationID string) []model.Message {
	out, _ := r.ListMessages(context.Background(), conversationID, time.Time{}, 0)
	return out
}

func (r *memRepo) CreateInquiry(_ context.Context, q *model.Inquiry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q.CreatedAt = r.tick()
	r.inquiries = append(r.inquiries, *q)
	return nil
}

func (r *memRepo) ListTours(_ context.Context, activeOnly bool) ([]model.Tour, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Tour
	for _, t := range r.tours {
		if !activeOnly || t.Active {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (r *memRepo) GetTour(_ context.Context, id string) (*model.Tour, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tours[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memRepo) GetTourBySlug(_ context.Context, slug string) (*model.Tour, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tours {
		if t.Slug == slug {
			cp := *t
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *memRepo) CreateTour(_ context.Context, t *model.Tour) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tours {
		if existing.Slug == t.Slug {
			return store.ErrConflict
		}
	}
	cp := *t
	r.tours[t.ID] = &cp
	return nil
}

func (r *memRepo) UpdateTour(_ context.Context, t *model.Tour) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tours[t.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *t
	r.tours[t.ID] = &cp
	return nil
}

func (r *memRepo) DeleteTour(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tours[id]; !ok {
		return store.ErrNotFound
	}
	for _, b := range r.bookings {
		if b.TourID == id {
			return store.ErrReference
		}
	}
	delete(r.tours, id)
	return nil
}

func (r *memRepo) ListDiscounts(context.Context) ([]model.Discount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Discount
	for _, d := range r.discounts {
		out = append(out, *d)
	}
	return out, nil
}

func (r *memRepo) GetDiscount(_ context.Context, id string) (*model.Discount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.discounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *memRepo) GetDiscountByCode(_ context.Context, code string) (*model.Discount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.discounts {
		if strings.EqualFold(d.Code, code) {
			cp := *d
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *memRepo) CreateDiscount(_ context.Context, d *model.Discount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.discounts[d.ID] = &cp
	return nil
}

func (r *memRepo) UpdateDiscount(_ context.Context, d *model.Discount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.discounts[d.ID]
	if !ok {
		return store.ErrNotFound
	}
	d.UsedCount = existing.UsedCount
	cp := *d
	r.discounts[d.ID] = &cp
	return nil
}

func (r *memRepo) SetDiscountActive(_ context.Context, id string, active bool) (*model.Discount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.discounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	d.Active = active
	cp := *d
	return &cp, nil
}

func (r *memRepo) DeleteDiscount(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.discounts[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.discounts, id)
	return nil
}

func (r *memRepo) CreateBooking(_ context.Context, b *model.Booking, discountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if discountID != "" {
		d := r.discounts[discountID]
		if d.MaxUses > 0 && d.UsedCount >= d.MaxUses {
			return store.ErrConflict
		}
		d.UsedCount++
	}
	b.CreatedAt = r.tick()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	r.bookings[b.ID] = &cp
	return nil
}

func (r *memRepo) GetBooking(_ context.Context, id string) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *memRepo) ListBookings(_ context.Context, f model.BookingFilter) ([]model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Booking
	for _, b := range r.bookings {
		d, _ := time.Parse(model.DateLayout, b.Date)
		if !f.From.IsZero() && d.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !d.Before(f.To) {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (r *memRepo) UpdateBookingDate(_ context.Context, id, date string) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r.dateUpdates++
	b.Date = date
	b.UpdatedAt = r.tick()
	cp := *b
	return &cp, nil
}

func (r *memRepo) UpdateBookingStatus(_ context.Context, id string, status model.BookingStatus) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	b.Status = status
	cp := *b
	return &cp, nil
}

func (r *memRepo) DeleteBooking(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.bookings, id)
	return nil
}

func (r *memRepo) ListCustomers(context.Context) ([]model.Customer, error) {
	return nil, nil
}

// scriptedBot records what it was asked and answers with a fixed reply.
type scriptedBot struct {
	mu    sync.Mutex
	calls []string
	hist  [][]model.Message
}

func (b *scriptedBot) Welcome() bot.Reply {
	return bot.Reply{Content: "Welcome aboard!", QuickReplies: []string{bot.QuickTours}, Source: bot.SourceWelcome}
}

func (b *scriptedBot) Reply(_ context.Context, _ *model.Conversation, history []model.Message, text string) bot.Reply {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, text)
	b.hist = append(b.hist, history)
	return bot.Reply{Content: "bot: " + text, Source: bot.SourceRules}
}

func (b *scriptedBot) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

// countingNotifier counts alerts.
type countingNotifier struct {
	mu    sync.Mutex
	convs []string
}

func (n *countingNotifier) Name() string { return "test" }

func (n *countingNotifier) NotifyHumanRequested(_ context.Context, conv *model.Conversation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.convs = append(n.convs, conv.ID)
	return nil
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.convs)
}
