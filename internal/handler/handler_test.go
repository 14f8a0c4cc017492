package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dhowcruise/booking-platform/internal/bot"
	"github.com/dhowcruise/booking-platform/internal/feed"
	"github.com/dhowcruise/booking-platform/internal/middleware"
	"github.com/dhowcruise/booking-platform/internal/model"
	"github.com/dhowcruise/booking-platform/internal/og"
	"github.com/dhowcruise/booking-platform/internal/presence"
	"github.com/dhowcruise/booking-platform/internal/service"
	"github.com/dhowcruise/booking-platform/internal/store"
	"github.com/dhowcruise/booking-platform/internal/ws"
	"github.com/dhowcruise/booking-platform/pkg/logger"
)

const testSecret = "handler-secret"

// chatRepo keeps conversations and messages in memory.
type chatRepo struct {
	mu            sync.Mutex
	clock         time.Time
	conversations map[string]*model.Conversation
	messages      []model.Message
}

func newChatRepo() *chatRepo {
	return &chatRepo{
		clock:         time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		conversations: map[string]*model.Conversation{},
	}
}

func (r *chatRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *chatRepo) CreateConversation(_ context.Context, c *model.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.CreatedAt = r.tick()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	r.conversations[c.ID] = &cp
	return nil
}

func (r *chatRepo) GetConversation(_ context.Context, id string) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *chatRepo) FindOpenConversation(_ context.Context, visitorID string) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conversations {
		if c.VisitorID == visitorID && c.Status != model.StatusClosed {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

// update applies fn to the stored conversation under the lock and returns
// a copy of the result.
func (r *chatRepo) update(id string, fn func(*model.Conversation)) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	fn(c)
	c.UpdatedAt = r.tick()
	cp := *c
	return &cp, nil
}

func (r *chatRepo) UpdateVisitorDetails(_ context.Context, id string, d model.VisitorDetails) (*model.Conversation, error) {
	return r.update(id, func(c *model.Conversation) { c.ApplyVisitorDetails(d) })
}

func (r *chatRepo) SetConversationStatus(_ context.Context, id string, status model.ConversationStatus) (*model.Conversation, error) {
	return r.update(id, func(c *model.Conversation) { c.ApplyStatus(status) })
}

func (r *chatRepo) SetAgent(_ context.Context, id string, a model.AgentAssignment) (*model.Conversation, error) {
	return r.update(id, func(c *model.Conversation) { c.ApplyAgent(a) })
}

func (r *chatRepo) ListConversationSummaries(_ context.Context, statuses []model.ConversationStatus) ([]model.ConversationSummary, error) {
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

func (r *chatRepo) InsertMessage(_ context.Context, m *model.Message) (bool, error) {
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

func (r *chatRepo) ListMessages(_ context.Context, conversationID string, after time.Time, _ int) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Message{}
	for _, m := range r.messages {
		if m.ConversationID == conversationID && m.CreatedAt.After(after) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *chatRepo) RecentMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	all, _ := r.ListMessages(ctx, conversationID, time.Time{}, 0)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (r *chatRepo) CreateInquiry(_ context.Context, q *model.Inquiry) error {
	q.CreatedAt = time.Now()
	return nil
}

type echoBot struct{}

func (echoBot) Welcome() bot.Reply { return bot.Reply{Content: "Marhaba! How can we help?"} }

func (echoBot) Reply(_ context.Context, _ *model.Conversation, _ []model.Message, text string) bot.Reply {
	return bot.Reply{Content: "you said " + text}
}

type testServer struct {
	handler http.Handler
	repo    *chatRepo
	changes *feed.Memory
}

func newTestServer(t *testing.T, checks map[string]Check) *testServer {
	t.Helper()
	log := logger.NewNop()
	repo := newChatRepo()
	changes := feed.NewMemory()
	tracker := presence.NewMemory(time.Minute)

	chat := service.NewChatService(repo, changes, echoBot{}, tracker, nil, 10, log)
	agents := service.NewAgentService(repo, changes, log)
	pres := service.NewPresenceService(tracker, log)
	dubai := time.FixedZone("GST", 4*3600)

	previewer := og.New(og.Config{
		SiteName:     "Dubai Dhow Cruises",
		BaseURL:      "https://dhow.example",
		DefaultImage: "/og-image.jpg",
	}, nil, log)

	h := NewRouter(RouterConfig{
		Health:    NewHealthHandler(checks),
		Chat:      NewChatHandler(chat, log),
		Agents:    NewAgentHandler(agents, pres, log),
		Bookings:  NewBookingHandler(service.NewBookingService(nil, nil, nil, changes, dubai, "AED", log), dubai, log),
		Catalog:   NewCatalogHandler(service.NewTourService(nil, log), service.NewReviewService(nil, log), log),
		Content:   NewContentHandler(service.NewDiscountService(nil, log), service.NewInquiryService(nil, log), service.NewSettingsService(nil, log), service.NewAnalyticsService(nil, dubai, log), log),
		Functions: NewFunctionHandler(agents, nil, previewer, log),

		Hub:    ws.NewHub(log),
		Tokens: middleware.NewTokenValidator(testSecret, "admin"),

		AllowedOrigins: []string{"https://dhow.example"},
		RateRequests:   1000,
		RateWindow:     time.Minute,
		Logger:         log,
	})
	return &testServer{handler: h, repo: repo, changes: changes}
}

func (s *testServer) do(t *testing.T, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, subject, role string) string {
	t.Helper()
	claims := middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Name:             "Omar",
		Role:             role,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + s
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, map[string]Check{
		"db": func(context.Context) error { return nil },
	})
	if rec := srv.do(t, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}
	if rec := srv.do(t, http.MethodGet, "/ready", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("ready = %d: %s", rec.Code, rec.Body)
	}

	srv = newTestServer(t, map[string]Check{
		"db":   func(context.Context) error { return nil },
		"nats": func(context.Context) error { return errors.New("not connected") },
	})
	rec := srv.do(t, http.MethodGet, "/ready", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready = %d, want 503", rec.Code)
	}
	var body struct {
		Failed map[string]string `json:"failed"`
	}
	decodeBody(t, rec, &body)
	if body.Failed["nats"] != "not connected" || len(body.Failed) != 1 {
		t.Errorf("failed = %v", body.Failed)
	}
}

func TestAdminRoutesRequireAdminToken(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name   string
		auth   string
		status int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"visitor role", token(t, "u-1", "authenticated"), http.StatusForbidden},
		{"admin", token(t, "agent-1", "admin"), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := map[string]string{}
			if tt.auth != "" {
				h["Authorization"] = tt.auth
			}
			rec := srv.do(t, http.MethodGet, "/api/v1/admin/presence", "", h)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
		})
	}
}

func TestPresenceToggle(t *testing.T) {
	srv := newTestServer(t, nil)
	admin := map[string]string{"Authorization": token(t, "agent-1", "admin")}

	online := func() bool {
		rec := srv.do(t, http.MethodGet, "/api/v1/chat/agents/online", "", nil)
		var body map[string]bool
		decodeBody(t, rec, &body)
		return body["online"]
	}
	if online() {
		t.Fatal("nobody should be online yet")
	}

	if rec := srv.do(t, http.MethodPut, "/api/v1/admin/presence", `{}`, admin); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing online flag = %d, want 400", rec.Code)
	}
	if rec := srv.do(t, http.MethodPut, "/api/v1/admin/presence", `{"online":true}`, admin); rec.Code != http.StatusOK {
		t.Fatalf("set online = %d: %s", rec.Code, rec.Body)
	}
	if !online() {
		t.Fatal("agent should be online")
	}
	srv.do(t, http.MethodPut, "/api/v1/admin/presence", `{"online":false}`, admin)
	if online() {
		t.Fatal("agent should be offline")
	}
}

func TestChatFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	visitor := map[string]string{"X-Visitor-ID": "visitor-1"}

	rec := srv.do(t, http.MethodPost, "/api/v1/chat/conversations", `{"current_page":"/tours"}`, visitor)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start = %d: %s", rec.Code, rec.Body)
	}
	var started model.StartConversationResponse
	decodeBody(t, rec, &started)
	if len(started.Messages) != 1 || started.Messages[0].SenderType != model.SenderBot {
		t.Fatalf("want one welcome message, got %+v", started.Messages)
	}
	id := started.Conversation.ID

	rec = srv.do(t, http.MethodPost, "/api/v1/chat/conversations", `{}`, visitor)
	if rec.Code != http.StatusOK {
		t.Fatalf("resume = %d, want 200", rec.Code)
	}

	msgID := "0190c2a4-6f1e-7c3b-9a55-2f0e8d1b4a77"
	send := fmt.Sprintf(`{"id":%q,"content":"What time is dinner?"}`, msgID)
	rec = srv.do(t, http.MethodPost, "/api/v1/chat/conversations/"+id+"/messages", send, visitor)
	if rec.Code != http.StatusCreated {
		t.Fatalf("send = %d: %s", rec.Code, rec.Body)
	}
	var sent model.SendMessageResponse
	decodeBody(t, rec, &sent)
	if sent.Reply == nil || sent.Reply.Content != "you said What time is dinner?" {
		t.Fatalf("reply = %+v", sent.Reply)
	}

	rec = srv.do(t, http.MethodPost, "/api/v1/chat/conversations/"+id+"/messages", send, visitor)
	if rec.Code != http.StatusOK {
		t.Fatalf("resend = %d, want 200", rec.Code)
	}

	rec = srv.do(t, http.MethodGet, "/api/v1/chat/conversations/"+id+"/messages", "", visitor)
	var list model.ListMessagesResponse
	decodeBody(t, rec, &list)
	if len(list.Messages) != 3 {
		t.Fatalf("messages = %d, want welcome + visitor + reply", len(list.Messages))
	}

	other := map[string]string{"X-Visitor-ID": "visitor-2"}
	if rec := srv.do(t, http.MethodGet, "/api/v1/chat/conversations/"+id, "", other); rec.Code != http.StatusForbidden {
		t.Errorf("other visitor = %d, want 403", rec.Code)
	}
	if rec := srv.do(t, http.MethodGet, "/api/v1/chat/conversations/"+id, "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("no visitor = %d, want 400", rec.Code)
	}
	if rec := srv.do(t, http.MethodPost, "/api/v1/chat/conversations/"+id+"/messages", `{"content":""}`, visitor); rec.Code != http.StatusBadRequest {
		t.Errorf("empty content = %d, want 400", rec.Code)
	}
}

func TestAgentTakeover(t *testing.T) {
	srv := newTestServer(t, nil)
	visitor := map[string]string{"X-Visitor-ID": "visitor-1"}
	admin := map[string]string{"Authorization": token(t, "agent-1", "admin")}

	rec := srv.do(t, http.MethodPost, "/api/v1/chat/conversations", `{}`, visitor)
	var started model.StartConversationResponse
	decodeBody(t, rec, &started)
	base := "/api/v1/admin/conversations/" + started.Conversation.ID

	if rec := srv.do(t, http.MethodPost, base+"/join", "", admin); rec.Code != http.StatusOK {
		t.Fatalf("join = %d: %s", rec.Code, rec.Body)
	}
	if rec := srv.do(t, http.MethodPost, base+"/messages", `{"content":"Hi, this is Omar"}`, admin); rec.Code != http.StatusCreated {
		t.Fatalf("agent send = %d: %s", rec.Code, rec.Body)
	}

	rec = srv.do(t, http.MethodPost, "/api/v1/chat/conversations/"+started.Conversation.ID+"/messages", `{"content":"Thanks!"}`, visitor)
	var sent model.SendMessageResponse
	decodeBody(t, rec, &sent)
	if sent.Reply != nil {
		t.Fatalf("bot replied while an agent is connected: %+v", sent.Reply)
	}

	if rec := srv.do(t, http.MethodPost, base+"/close", "", admin); rec.Code != http.StatusOK {
		t.Fatalf("close = %d", rec.Code)
	}
	rec = srv.do(t, http.MethodPost, "/api/v1/chat/conversations/"+started.Conversation.ID+"/messages", `{"content":"Hello?"}`, visitor)
	if rec.Code != http.StatusConflict {
		t.Fatalf("send after close = %d, want 409", rec.Code)
	}

	if rec := srv.do(t, http.MethodGet, "/api/v1/admin/conversations/0190c2a4-0000-7000-8000-000000000000", "", admin); rec.Code != http.StatusNotFound {
		t.Errorf("unknown conversation = %d, want 404", rec.Code)
	}
}

func TestNotifyAgentRequestWithoutChannels(t *testing.T) {
	srv := newTestServer(t, nil)
	admin := map[string]string{"Authorization": token(t, "agent-1", "admin")}

	rec := srv.do(t, http.MethodPost, "/api/v1/admin/functions/notify-agent-request", `{}`, admin)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing id = %d, want 400", rec.Code)
	}

	rec = srv.do(t, http.MethodPost, "/api/v1/chat/conversations", `{}`, map[string]string{"X-Visitor-ID": "v"})
	var started model.StartConversationResponse
	decodeBody(t, rec, &started)

	rec = srv.do(t, http.MethodPost, "/api/v1/admin/functions/notify-agent-request",
		fmt.Sprintf(`{"conversation_id":%q}`, started.Conversation.ID), admin)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("notify = %d, want 503", rec.Code)
	}
}

func TestPreview(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		path  string
		title string
		url   string
	}{
		{"/tours/sunset-cruise", "Sunset Dhow Cruise", "https://dhow.example/tours/sunset-cruise"},
		{"/about/", "About Us | Dubai Dhow Cruises", "https://dhow.example/about"},
		{"/nowhere", "Dubai Dhow Cruises | Dinner Cruises on Dubai Creek &amp; Marina", "https://dhow.example/nowhere"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := srv.do(t, http.MethodGet, "/og?path="+tt.path, "", nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("content type = %q", ct)
			}
			body := rec.Body.String()
			if !strings.Contains(body, `<meta property="og:title" content="`+tt.title+`">`) {
				t.Errorf("missing title %q in\n%s", tt.title, body)
			}
			if !strings.Contains(body, `<link rel="canonical" href="`+tt.url+`">`) {
				t.Errorf("missing canonical %q", tt.url)
			}
		})
	}
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("tour %w", service.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: bad date", service.ErrInvalidInput), http.StatusBadRequest},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrConflict, http.StatusConflict},
		{service.ErrConversationClosed, http.StatusConflict},
		{fmt.Errorf("%w: expired", service.ErrDiscountInvalid), http.StatusUnprocessableEntity},
		{&middleware.ValidationError{Message: "validation failed", Fields: map[string]string{"name": "required"}}, http.StatusBadRequest},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			writeServiceError(rec, req, logger.NewNop(), tt.err)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			var body errorBody
			decodeBody(t, rec, &body)
			if tt.want == http.StatusInternalServerError && body.Error != "internal error" {
				t.Errorf("internal error leaked: %q", body.Error)
			}
		})
	}
}
