package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dhowcruise/booking-platform/internal/feed"
	"github.com/dhowcruise/booking-platform/internal/model"
	"github.com/dhowcruise/booking-platform/internal/presence"
	"github.com/dhowcruise/booking-platform/pkg/logger"
)

type chatFixture struct {
	repo     *memRepo
	feed     *feed.Memory
	bot      *scriptedBot
	tracker  *presence.Memory
	notifier *countingNotifier
	chat     *ChatService
	agents   *AgentService
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	f := &chatFixture{
		repo:     newMemRepo(),
		feed:     feed.NewMemory(),
		bot:      &scriptedBot{},
		tracker:  presence.NewMemory(time.Minute),
		notifier: &countingNotifier{},
	}
	log := logger.NewNop()
	f.chat = NewChatService(f.repo, f.feed, f.bot, f.tracker, f.notifier, 10, log)
	f.agents = NewAgentService(f.repo, f.feed, log)
	return f
}

func (f *chatFixture) start(t *testing.T, visitor string) *model.Conversation {
	t.Helper()
	resp, err := f.chat.Start(context.Background(), &model.StartConversationRequest{VisitorID: visitor, CurrentPage: "/"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return resp.Conversation
}

func TestStartCreatesConversationWithWelcome(t *testing.T) {
	f := newChatFixture(t)

	resp, err := f.chat.Start(context.Background(), &model.StartConversationRequest{VisitorID: "v1", CurrentPage: "/tours"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if resp.Resumed {
		t.Error("first start should not be a resume")
	}
	if resp.Conversation.Status != model.StatusActive {
		t.Errorf("status = %q, want active", resp.Conversation.Status)
	}
	if len(resp.Messages) != 1 || resp.Messages[0].SenderType != model.SenderBot {
		t.Fatalf("messages = %+v, want one bot welcome", resp.Messages)
	}
	if resp.Messages[0].Metadata[model.MetaBotSource] == nil {
		t.Error("welcome should carry its bot source")
	}
}

func TestStartResumesOpenConversation(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	first := f.start(t, "v1")

	resp, err := f.chat.Start(ctx, &model.StartConversationRequest{VisitorID: "v1", CurrentPage: "/gallery", Name: "Ana"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !resp.Resumed || resp.Conversation.ID != first.ID {
		t.Fatalf("resume returned %s (resumed=%v), want %s", resp.Conversation.ID, resp.Resumed, first.ID)
	}
	if resp.Conversation.CurrentPage != "/gallery" || resp.Conversation.VisitorName != "Ana" {
		t.Errorf("resume did not record page and name: %+v", resp.Conversation)
	}
	if len(resp.Messages) != 1 {
		t.Errorf("resume returned %d messages, want the welcome only", len(resp.Messages))
	}

	// Nothing changed, nothing written.
	before := f.repo.updates
	if _, err := f.chat.Start(ctx, &model.StartConversationRequest{VisitorID: "v1", CurrentPage: "/gallery"}); err != nil {
		t.Fatal(err)
	}
	if f.repo.updates != before {
		t.Error("unchanged resume should not update the conversation")
	}
}

func TestStartAfterCloseOpensNewConversation(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	first := f.start(t, "v1")
	if _, err := f.agents.Close(ctx, first.ID, Agent{ID: "a1"}); err != nil {
		t.Fatal(err)
	}
	second := f.start(t, "v1")
	if second.ID == first.ID {
		t.Fatal("closed conversation should not be resumed")
	}
}

func TestSendVisitorMessageGetsBotReply(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	conv := f.start(t, "v1")

	resp, err := f.chat.SendVisitorMessage(ctx, conv.ID, "v1", &model.SendMessageRequest{Content: "  how much?  "})
	if err != nil {
		t.Fatalf("SendVisitorMessage() error = %v", err)
	}
	if resp.Message.Content != "how much?" {
		t.Errorf("content = %q, want trimmed", resp.Message.Content)
	}
	if resp.Reply == nil || resp.Reply.Content != "bot: how much?" {
		t.Fatalf("reply = %+v", resp.Reply)
	}
	// The bot sees history without the message it is answering.
	if h := f.bot.hist[0]; len(h) != 1 || h[0].SenderType != model.SenderBot {
		t.Errorf("history = %+v, want only the welcome", h)
	}
}

func TestSendVisitorMessageDuplicateID(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	conv := f.start(t, "v1")
	id := uuid.NewString()

	if _, err := f.chat.SendVisitorMessage(ctx, conv.ID, "v1", &model.SendMessageRequest{ID: id, Content: "hello"}); err != nil {
		t.Fatal(err)
	}
	resp, err := f.chat.SendVisitorMessage(ctx, conv.ID, "v1", &model.SendMessageRequest{ID: id, Content: "hello"})
	if err != nil {
		t.Fatalf("resend error = %v", err)
	}
	if !resp.Duplicate || resp.Reply != nil {
		t.Errorf("resend = %+v, want duplicate without reply", resp)
	}
	if n := f.bot.callCount(); n != 1 {
		t.Errorf("bot called %d times, want 1", n)
	}
	if n := len(f.repo.messagesOf(conv.ID)); n != 3 {
		t.Errorf("stored %d messages, want welcome, visitor and reply", n)
	}

	other := f.start(t, "v2")
	_, err = f.chat.SendVisitorMessage(ctx, other.ID, "v2", &model.SendMessageRequest{ID: id, Content: "hello"})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("reused id in another conversation: err = %v, want ErrConflict", err)
	}
}

func TestAgentConnectedSilencesBot(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	conv := f.start(t, "v1")

	if _, err := f.agents.Join(ctx, conv.ID, Agent{ID: "a1", Name: "Sara"}); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	resp, err := f.chat.SendVisitorMessage(ctx, conv.ID, "v1", &model.SendMessageRequest{Content: "are you there?"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Reply != nil {
		t.Errorf("bot replied while an agent was connected: %+v", resp.Reply)
	}
	if f.bot.callCount() != 0 {
		t.Error("bot should not be consulted")
	}

	if _, err := f.agents.Leave(ctx, conv.ID, Agent{ID: "a1"}); err != nil {
		t.Fatal(err)
	}
	resp, err = f.chat.SendVisitorMessage(ctx, conv.ID, "v1", &model.SendMessageRequest{Content: "tours?"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Reply == nil {
		t.Error("bot should answer again after the agent left")
	}
}

func TestSendToClosedConversation(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	conv := f.start(t, "v1")
	if _, err := f.agents.Close(ctx, conv.ID, Agent{ID: "a1"}); err != nil {
		t.Fatal(err)
	}

	_, err := f.chat.SendVisitorMessage(ctx, conv.ID, "v1", &model.SendMessageRequest{Content: "hi"})
	if !errors.Is(err, ErrConversationClosed) {
		t.Errorf("visitor send: err = %v, want ErrConversationClosed", err)
	}
	_, err = f.agents.Send(ctx, conv.ID, Agent{ID: "a1"}, &model.SendMessageRequest{Content: "hi"})
	if !errors.Is(err, ErrConversationClosed) {
		t.Errorf("agent send: err = %v, want ErrConversationClosed", err)
	}
	if _, err := f.agents.Close(ctx, conv.ID, Agent{ID: "a1"}); err != nil {
		t.Errorf("second close: err = %v, want nil", err)
	}
}

func TestVisitorOwnership(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	conv := f.start(t, "v1")

	if _, err := f.chat.ListMessages(ctx, conv.ID, "intruder", time.Time{}); !errors.Is(err, ErrForbidden) {
		t.Errorf("foreign visitor: err = %v, want ErrForbidden", err)
	}
	if _, err := f.chat.ListMessages(ctx, "not-a-uuid", "v1", time.Time{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("bad id: err = %v, want ErrNotFound", err)
	}
	if _, err := f.chat.ListMessages(ctx, uuid.NewString(), "v1", time.Time{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: err = %v, want ErrNotFound", err)
	}
}

func TestRequestHuman(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	conv := f.start(t, "v1")

	got, err := f.chat.RequestHuman(ctx, conv.ID, "v1")
	if err != nil {
		t.Fatalf("RequestHuman() error = %v", err)
	}
	if got.Status != model.StatusWaitingAgent {
		t.Errorf("status = %q, want waiting_agent", got.Status)
	}
	f.chat.Wait()
	if n := f.notifier.count(); n != 1 {
		t.Errorf("notified %d times, want 1", n)
	}

	msgs := f.repo.messagesOf(conv.ID)
	last := msgs[len(msgs)-1]
	if last.Metadata[model.MetaEvent] != EventHumanRequested {
		t.Errorf("last message metadata = %v", last.Metadata)
	}
	if last.Metadata[model.MetaShowLeadForm] != true {
		t.Error("with nobody online the lead form should be offered")
	}

	// Asking again while waiting changes nothing.
	if _, err := f.chat.RequestHuman(ctx, conv.ID, "v1"); err != nil {
		t.Fatal(err)
	}
	f.chat.Wait()
	if n := f.notifier.count(); n != 1 {
		t.Errorf("repeat request notified again (%d)", n)
	}
	if n := len(f.repo.messagesOf(conv.ID)); n != len(msgs) {
		t.Errorf("repeat request posted a message")
	}

	// Waiting conversations are not answered by the bot.
	resp, err := f.chat.SendVisitorMessage(ctx, conv.ID, "v1", &model.SendMessageRequest{Content: "hello?"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Reply != nil {
		t.Error("bot answered a conversation waiting for an agent")
	}
}

func TestRequestHumanWithAgentOnline(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	_ = f.tracker.SetOnline(ctx, "a1", true)
	conv := f.start(t, "v1")

	if _, err := f.chat.RequestHuman(ctx, conv.ID, "v1"); err != nil {
		t.Fatal(err)
	}
	f.chat.Wait()
	msgs := f.repo.messagesOf(conv.ID)
	if _, ok := msgs[len(msgs)-1].Metadata[model.MetaShowLeadForm]; ok {
		t.Error("lead form offered although an agent is online")
	}
}

func TestSubmitLead(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	conv := f.start(t, "v1")

	q, err := f.chat.SubmitLead(ctx, conv.ID, "v1", &model.LeadRequest{Name: "Omar Haddad", Email: "omar@example.com", Message: "Friday for 6"})
	if err != nil {
		t.Fatalf("SubmitLead() error = %v", err)
	}
	if q.Source != model.InquirySourceChat || q.ConversationID != conv.ID {
		t.Errorf("inquiry = %+v", q)
	}
	stored, _ := f.repo.GetConversation(ctx, conv.ID)
	if stored.VisitorEmail != "omar@example.com" {
		t.Errorf("conversation email = %q", stored.VisitorEmail)
	}
	msgs := f.repo.messagesOf(conv.ID)
	if msgs[len(msgs)-1].Metadata[model.MetaEvent] != EventLeadCaptured {
		t.Error("lead acknowledgement not posted")
	}
}

func TestAgentTakeover(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	conv := f.start(t, "v1")

	if _, err := f.agents.Join(ctx, conv.ID, Agent{ID: "a1", Name: "Sara"}); err != nil {
		t.Fatal(err)
	}
	count := len(f.repo.messagesOf(conv.ID))
	if _, err := f.agents.Join(ctx, conv.ID, Agent{ID: "a1", Name: "Sara"}); err != nil {
		t.Fatal(err)
	}
	if len(f.repo.messagesOf(conv.ID)) != count {
		t.Error("rejoining posted another notice")
	}

	if _, err := f.agents.Leave(ctx, conv.ID, Agent{ID: "a2"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("leave by another agent: err = %v, want ErrForbidden", err)
	}

	resp, err := f.agents.Send(ctx, conv.ID, Agent{ID: "a2", Name: "Ali"}, &model.SendMessageRequest{Content: "I can help"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if resp.Message.SenderType != model.SenderAgent || resp.Message.Metadata["agent_name"] != "Ali" {
		t.Errorf("message = %+v", resp.Message)
	}
	held, _ := f.agents.Get(ctx, conv.ID)
	if held.AgentID != "a2" || !held.IsAgentConnected {
		t.Errorf("conversation held by %q, want a2", held.AgentID)
	}
}

func TestAgentListDefaults(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	open := f.start(t, "v1")
	closed := f.start(t, "v2")
	if _, err := f.agents.Close(ctx, closed.ID, Agent{ID: "a1"}); err != nil {
		t.Fatal(err)
	}

	resp, err := f.agents.List(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Conversations[0].ID != open.ID {
		t.Errorf("List() = %+v, want only the open conversation", resp.Conversations)
	}
	if _, err := f.agents.List(ctx, []model.ConversationStatus{"archived"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown status: err = %v, want ErrInvalidInput", err)
	}
}

func TestVisitorSubscriptionSeesOwnConversationOnly(t *testing.T) {
	f := newChatFixture(t)
	conv := f.start(t, "v1")
	other := f.start(t, "v2")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := f.chat.Subscribe(ctx, conv.ID, "v1")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if _, err := f.chat.SendVisitorMessage(context.Background(), other.ID, "v2", &model.SendMessageRequest{Content: "hi"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.chat.SendVisitorMessage(context.Background(), conv.ID, "v1", &model.SendMessageRequest{Content: "hi"}); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.ConversationID != conv.ID {
			t.Errorf("received event for %s", ev.ConversationID)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

// interleavedRepo runs between once, right after the first conversation
// read, so a concurrent writer lands between the service's read and write.
type interleavedRepo struct {
	*memRepo
	once    sync.Once
	between func()
}

func (r *interleavedRepo) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	c, err := r.memRepo.GetConversation(ctx, id)
	if err == nil {
		r.once.Do(r.between)
	}
	return c, err
}

func (r *interleavedRepo) FindOpenConversation(ctx context.Context, visitorID string) (*model.Conversation, error) {
	c, err := r.memRepo.FindOpenConversation(ctx, visitorID)
	if err == nil {
		r.once.Do(r.between)
	}
	return c, err
}

func TestVisitorWritesKeepConcurrentTakeover(t *testing.T) {
	cases := []struct {
		name  string
		write func(ctx context.Context, chat *ChatService, conv *model.Conversation) error
	}{
		{"lead", func(ctx context.Context, chat *ChatService, conv *model.Conversation) error {
			_, err := chat.SubmitLead(ctx, conv.ID, "v1", &model.LeadRequest{Name: "Omar", Email: "omar@example.com"})
			return err
		}},
		{"resume", func(ctx context.Context, chat *ChatService, conv *model.Conversation) error {
			_, err := chat.Start(ctx, &model.StartConversationRequest{VisitorID: "v1", CurrentPage: "/tours", Name: "Omar"})
			return err
		}},
		{"human request", func(ctx context.Context, chat *ChatService, conv *model.Conversation) error {
			_, err := chat.RequestHuman(ctx, conv.ID, "v1")
			return err
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newChatFixture(t)
			ctx := context.Background()
			conv := f.start(t, "v1")

			repo := &interleavedRepo{memRepo: f.repo}
			repo.between = func() {
				if _, err := f.agents.Join(ctx, conv.ID, Agent{ID: "a1", Name: "Sara"}); err != nil {
					t.Errorf("Join() error = %v", err)
				}
			}
			chat := NewChatService(repo, f.feed, f.bot, f.tracker, f.notifier, 10, logger.NewNop())

			if err := tc.write(ctx, chat, conv); err != nil {
				t.Fatalf("write error = %v", err)
			}
			chat.Wait()

			stored, _ := f.repo.GetConversation(ctx, conv.ID)
			if !stored.IsAgentConnected || stored.AgentID != "a1" || stored.Status != model.StatusActive {
				t.Fatalf("after %s: connected=%v agent=%q status=%s, want a1 holding an active chat",
					tc.name, stored.IsAgentConnected, stored.AgentID, stored.Status)
			}

			resp, err := f.chat.SendVisitorMessage(ctx, conv.ID, "v1", &model.SendMessageRequest{Content: "hello?"})
			if err != nil {
				t.Fatal(err)
			}
			if resp.Reply != nil || f.bot.callCount() != 0 {
				t.Error("bot answered a conversation an agent holds")
			}
		})
	}
}

func TestDuplicateIDFromAnotherSender(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	conv := f.start(t, "v1")
	welcome := f.repo.messagesOf(conv.ID)[0]

	_, err := f.chat.SendVisitorMessage(ctx, conv.ID, "v1", &model.SendMessageRequest{ID: welcome.ID, Content: "hi"})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("visitor reusing the bot's id: err = %v, want ErrConflict", err)
	}
	_, err = f.agents.Send(ctx, conv.ID, Agent{ID: "a1"}, &model.SendMessageRequest{ID: welcome.ID, Content: "hi"})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("agent reusing the bot's id: err = %v, want ErrConflict", err)
	}

	sent, err := f.agents.Send(ctx, conv.ID, Agent{ID: "a1"}, &model.SendMessageRequest{Content: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	again, err := f.agents.Send(ctx, conv.ID, Agent{ID: "a1"}, &model.SendMessageRequest{ID: sent.Message.ID, Content: "hello"})
	if err != nil || !again.Duplicate {
		t.Errorf("agent resend = %+v, %v; want duplicate", again, err)
	}
}
