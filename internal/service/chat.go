package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/dhowcruise/booking-platform/internal/bot"
	"github.com/dhowcruise/booking-platform/internal/feed"
	"github.com/dhowcruise/booking-platform/internal/model"
	"github.com/dhowcruise/booking-platform/internal/notify"
	"github.com/dhowcruise/booking-platform/internal/presence"
	"github.com/dhowcruise/booking-platform/internal/store"
	"github.com/dhowcruise/booking-platform/pkg/logger"
	"github.com/dhowcruise/booking-platform/pkg/metrics"
	"github.com/dhowcruise/booking-platform/pkg/tracing"
)

// Conversation events recorded in message metadata.
const (
	EventHumanRequested = "human_requested"
	EventLeadCaptured   = "lead_captured"
	EventAgentJoined    = "agent_joined"
	EventAgentLeft      = "agent_left"
	EventClosed         = "closed"
)

const notifyTimeout = 30 * time.Second

// Replier produces bot messages.
type Replier interface {
	Welcome() bot.Reply
	Reply(ctx context.Context, conv *model.Conversation, history []model.Message, text string) bot.Reply
}

// ChatRepository is what the visitor chat needs from storage.
type ChatRepository interface {
	ConversationRepository
	CreateInquiry(ctx context.Context, q *model.Inquiry) error
}

// ChatService handles the visitor side of live chat.
type ChatService struct {
	repo         ChatRepository
	feed         feed.Feed
	pub          publisher
	bot          Replier
	presence     presence.Tracker
	notifier     notify.Notifier
	historyLimit int
	logger       *logger.Logger

	// notifications run in the background; wg lets shutdown wait for them.
	wg sync.WaitGroup
}

// NewChatService creates a new chat service.
func NewChatService(
	repo ChatRepository,
	changes feed.Feed,
	replier Replier,
	tracker presence.Tracker,
	notifier notify.Notifier,
	historyLimit int,
	log *logger.Logger,
) *ChatService {
	if historyLimit <= 0 {
		historyLimit = 20
	}
	log = log.Module("chat")
	return &ChatService{
		repo:         repo,
		feed:         changes,
		pub:          publisher{feed: changes, logger: log},
		bot:          replier,
		presence:     tracker,
		notifier:     notifier,
		historyLimit: historyLimit,
		logger:       log,
	}
}

// Start resumes the visitor's open conversation or creates a new one with
// a welcome message.
func (s *ChatService) Start(ctx context.Context, req *model.StartConversationRequest) (*model.StartConversationResponse, error) {
	conv, err := s.repo.FindOpenConversation(ctx, req.VisitorID)
	if err == nil {
		return s.resume(ctx, conv, req)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, storeErr(err, "find conversation")
	}

	conv = &model.Conversation{
		ID:           uuid.Must(uuid.NewV7()).String(),
		VisitorID:    req.VisitorID,
		VisitorName:  strings.TrimSpace(req.Name),
		VisitorEmail: strings.TrimSpace(req.Email),
		VisitorPhone: strings.TrimSpace(req.Phone),
		Status:       model.StatusActive,
		CurrentPage:  req.CurrentPage,
	}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		return nil, storeErr(err, "create conversation")
	}
	s.pub.conversation(ctx, feed.OpInsert, conv)
	metrics.ConversationsTotal.WithLabelValues("created").Inc()

	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("visitor_id", conv.VisitorID),
		zap.String("page", conv.CurrentPage),
	)

	welcome, err := s.postBot(ctx, conv.ID, s.bot.Welcome())
	if err != nil {
		return nil, err
	}
	return &model.StartConversationResponse{
		Conversation: conv,
		Messages:     []model.Message{*welcome},
	}, nil
}

func (s *ChatService) resume(ctx context.Context, conv *model.Conversation, req *model.StartConversationRequest) (*model.StartConversationResponse, error) {
	details := model.VisitorDetails{
		Name:        strings.TrimSpace(req.Name),
		Email:       strings.TrimSpace(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
		CurrentPage: strings.TrimSpace(req.CurrentPage),
	}
	if conv.ApplyVisitorDetails(details) {
		updated, err := s.repo.UpdateVisitorDetails(ctx, conv.ID, details)
		if err != nil {
			return nil, storeErr(err, "update conversation")
		}
		conv = updated
		s.pub.conversation(ctx, feed.OpUpdate, conv)
	}

	messages, err := s.repo.ListMessages(ctx, conv.ID, time.Time{}, 0)
	if err != nil {
		return nil, storeErr(err, "list messages")
	}
	metrics.ConversationsTotal.WithLabelValues("resumed").Inc()

	s.logger.Debug("conversation resumed",
		zap.String("conversation_id", conv.ID),
		zap.Int("messages", len(messages)),
	)
	return &model.StartConversationResponse{
		Conversation: conv,
		Messages:     messages,
		Resumed:      true,
	}, nil
}

// Conversation returns the visitor's conversation.
func (s *ChatService) Conversation(ctx context.Context, conversationID, visitorID string) (*model.Conversation, error) {
	return s.owned(ctx, conversationID, visitorID)
}

// owned loads a conversation and checks that visitorID started it.
func (s *ChatService) owned(ctx context.Context, conversationID, visitorID string) (*model.Conversation, error) {
	if _, err := uuid.Parse(conversationID); err != nil {
		return nil, fmt.Errorf("conversation %w", ErrNotFound)
	}
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, storeErr(err, "conversation")
	}
	if visitorID == "" || conv.VisitorID != visitorID {
		return nil, fmt.Errorf("%w: conversation belongs to another visitor", ErrForbidden)
	}
	return conv, nil
}

// ListMessages returns the conversation's messages created after after.
func (s *ChatService) ListMessages(ctx context.Context, conversationID, visitorID string, after time.Time) (*model.ListMessagesResponse, error) {
	if _, err := s.owned(ctx, conversationID, visitorID); err != nil {
		return nil, err
	}
	messages, err := s.repo.ListMessages(ctx, conversationID, after, 0)
	if err != nil {
		return nil, storeErr(err, "list messages")
	}
	return &model.ListMessagesResponse{Messages: messages}, nil
}

// SendVisitorMessage stores a visitor message and, unless an agent has the
// conversation or one was requested, answers it with the bot. Resending a
// message id returns the stored row without a second bot reply.
func (s *ChatService) SendVisitorMessage(ctx context.Context, conversationID, visitorID string, req *model.SendMessageRequest) (*model.SendMessageResponse, error) {
	conv, err := s.owned(ctx, conversationID, visitorID)
	if err != nil {
		return nil, err
	}
	if conv.Status == model.StatusClosed {
		return nil, ErrConversationClosed
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, invalid("message is empty")
	}

	msg := &model.Message{
		ID:             req.ID,
		ConversationID: conv.ID,
		SenderType:     model.SenderVisitor,
		SenderID:       visitorID,
		Content:        content,
	}
	if msg.ID == "" {
		msg.ID = uuid.Must(uuid.NewV7()).String()
	}

	inserted, err := s.repo.InsertMessage(ctx, msg)
	if err != nil {
		return nil, storeErr(err, "insert message")
	}
	if !inserted {
		if !sameSender(msg, conv.ID, model.SenderVisitor) {
			return nil, fmt.Errorf("%w: message id already used", ErrConflict)
		}
		return &model.SendMessageResponse{Message: msg, Duplicate: true}, nil
	}
	s.pub.message(ctx, msg)
	metrics.MessagesTotal.WithLabelValues(string(model.SenderVisitor)).Inc()

	if !botAnswers(conv) {
		return &model.SendMessageResponse{Message: msg}, nil
	}

	history, err := s.repo.RecentMessages(ctx, conv.ID, s.historyLimit+1)
	if err != nil {
		return nil, storeErr(err, "load history")
	}
	history = without(history, msg.ID)

	ctx, span := tracing.Tracer("chat").Start(ctx, "chat.BotReply")
	span.SetAttributes(attribute.String("conversation.id", conv.ID), attribute.Int("history", len(history)))
	reply := s.bot.Reply(ctx, conv, history, content)
	span.End()

	// An agent may have joined while the bot was thinking.
	if latest, err := s.repo.GetConversation(ctx, conv.ID); err == nil && !botAnswers(latest) {
		s.logger.Debug("dropping bot reply, agent took over", zap.String("conversation_id", conv.ID))
		return &model.SendMessageResponse{Message: msg}, nil
	}

	botMsg, err := s.postBot(ctx, conv.ID, reply)
	if err != nil {
		return nil, err
	}
	return &model.SendMessageResponse{Message: msg, Reply: botMsg}, nil
}

// sameSender reports whether a stored message with a reused id was written
// by the same kind of sender in the same conversation.
func sameSender(stored *model.Message, conversationID string, sender model.SenderType) bool {
	return stored.ConversationID == conversationID && stored.SenderType == sender
}

func botAnswers(c *model.Conversation) bool {
	return !c.IsAgentConnected && c.Status == model.StatusActive
}

func without(messages []model.Message, id string) []model.Message {
	out := messages[:0:0]
	for _, m := range messages {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

// RequestHuman moves the conversation to the agent queue and alerts admins.
// Repeating the request while waiting changes nothing.
func (s *ChatService) RequestHuman(ctx context.Context, conversationID, visitorID string) (*model.Conversation, error) {
	conv, err := s.owned(ctx, conversationID, visitorID)
	if err != nil {
		return nil, err
	}
	switch {
	case conv.Status == model.StatusClosed:
		return nil, ErrConversationClosed
	case conv.Status == model.StatusWaitingAgent, conv.IsAgentConnected:
		return conv, nil
	}

	conv, err = s.repo.SetConversationStatus(ctx, conv.ID, model.StatusWaitingAgent)
	if err != nil {
		return nil, storeErr(err, "update conversation")
	}
	s.pub.conversation(ctx, feed.OpUpdate, conv)
	switch {
	case conv.Status == model.StatusClosed:
		return nil, ErrConversationClosed
	case conv.IsAgentConnected:
		// An agent joined in the meantime.
		return conv, nil
	}
	metrics.HumanRequestsTotal.Inc()

	online, err := s.AgentsAvailable(ctx)
	if err != nil {
		s.logger.Warn("presence check failed", zap.Error(err))
	}
	notice := bot.Reply{
		Content: "I've let our team know. An agent will join this chat shortly.",
		Source:  bot.SourceRules,
	}
	if !online {
		notice.Content = "Our team is away right now, but they've been notified and will reply here as soon as possible. " +
			"You can also leave your details so we can get back to you."
		notice.ShowLeadForm = true
	}
	if _, err := s.postBotEvent(ctx, conv.ID, notice, EventHumanRequested); err != nil {
		return nil, err
	}

	s.logger.Info("human agent requested",
		zap.String("conversation_id", conv.ID),
		zap.Bool("agents_online", online),
	)
	s.notifyAdmins(ctx, conv)
	return conv, nil
}

func (s *ChatService) notifyAdmins(ctx context.Context, conv *model.Conversation) {
	if s.notifier == nil {
		return
	}
	snapshot := *conv
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyHumanRequested(ctx, &snapshot); err != nil {
			s.logger.Warn("admin notification incomplete",
				zap.String("conversation_id", snapshot.ID),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until background notifications finish.
func (s *ChatService) Wait() {
	s.wg.Wait()
}

// SubmitLead records the visitor's contact details on the conversation and
// files them as an inquiry.
func (s *ChatService) SubmitLead(ctx context.Context, conversationID, visitorID string, req *model.LeadRequest) (*model.Inquiry, error) {
	conv, err := s.owned(ctx, conversationID, visitorID)
	if err != nil {
		return nil, err
	}

	conv, err = s.repo.UpdateVisitorDetails(ctx, conv.ID, model.VisitorDetails{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
		Phone: strings.TrimSpace(req.Phone),
	})
	if err != nil {
		return nil, storeErr(err, "update conversation")
	}
	s.pub.conversation(ctx, feed.OpUpdate, conv)

	inquiry := &model.Inquiry{
		ID:             uuid.Must(uuid.NewV7()).String(),
		Name:           conv.VisitorName,
		Email:          conv.VisitorEmail,
		Phone:          conv.VisitorPhone,
		Subject:        "Live chat lead",
		Message:        strings.TrimSpace(req.Message),
		Source:         model.InquirySourceChat,
		ConversationID: conv.ID,
		Status:         model.InquiryNew,
	}
	if err := s.repo.CreateInquiry(ctx, inquiry); err != nil {
		return nil, storeErr(err, "create inquiry")
	}

	ack := bot.Reply{
		Content: fmt.Sprintf("Thanks, %s! We've got your details and will be in touch at %s.", firstName(conv.VisitorName), conv.VisitorEmail),
		Source:  bot.SourceRules,
	}
	if _, err := s.postBotEvent(ctx, conv.ID, ack, EventLeadCaptured); err != nil {
		return nil, err
	}

	s.logger.Info("lead captured",
		zap.String("conversation_id", conv.ID),
		zap.String("inquiry_id", inquiry.ID),
	)
	return inquiry, nil
}

func firstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return "there"
}

// AgentsAvailable reports whether any agent is online.
func (s *ChatService) AgentsAvailable(ctx context.Context) (bool, error) {
	if s.presence == nil {
		return false, nil
	}
	return presence.AnyOnline(ctx, s.presence)
}

// Subscribe streams changes to the visitor's conversation and its messages
// until ctx is done.
func (s *ChatService) Subscribe(ctx context.Context, conversationID, visitorID string) (<-chan feed.ChangeEvent, error) {
	if _, err := s.owned(ctx, conversationID, visitorID); err != nil {
		return nil, err
	}
	return s.feed.Subscribe(ctx, feed.VisitorFilter(conversationID))
}

func (s *ChatService) postBot(ctx context.Context, conversationID string, reply bot.Reply) (*model.Message, error) {
	return s.postBotEvent(ctx, conversationID, reply, "")
}

// postBotEvent stores a bot message, tagging it with event when set.
func (s *ChatService) postBotEvent(ctx context.Context, conversationID string, reply bot.Reply, event string) (*model.Message, error) {
	return postBotMessage(ctx, s.repo, s.pub, conversationID, reply, event)
}

func postBotMessage(ctx context.Context, repo ConversationRepository, pub publisher, conversationID string, reply bot.Reply, event string) (*model.Message, error) {
	msg := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		SenderType:     model.SenderBot,
		Content:        reply.Content,
		Metadata:       reply.Metadata(),
	}
	if event != "" {
		msg.Metadata[model.MetaEvent] = event
	}
	if _, err := repo.InsertMessage(ctx, msg); err != nil {
		return nil, storeErr(err, "insert bot message")
	}
	pub.message(ctx, msg)
	metrics.MessagesTotal.WithLabelValues(string(model.SenderBot)).Inc()
	return msg, nil
}
