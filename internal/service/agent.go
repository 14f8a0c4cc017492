package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dhowcruise/booking-platform/internal/bot"
	"github.com/dhowcruise/booking-platform/internal/feed"
	"github.com/dhowcruise/booking-platform/internal/model"
	"github.com/dhowcruise/booking-platform/pkg/logger"
	"github.com/dhowcruise/booking-platform/pkg/metrics"
)

// Agent identifies a staff member acting on a conversation.
type Agent struct {
	ID   string
	Name string
}

func (a Agent) displayName() string {
	if a.Name != "" {
		return a.Name
	}
	return "An agent"
}

// AgentService handles the admin side of live chat.
type AgentService struct {
	repo   ConversationRepository
	pub    publisher
	logger *logger.Logger
}

// NewAgentService creates a new agent service.
func NewAgentService(repo ConversationRepository, changes feed.Feed, log *logger.Logger) *AgentService {
	log = log.Module("agent")
	return &AgentService{
		repo:   repo,
		pub:    publisher{feed: changes, logger: log},
		logger: log,
	}
}

// List returns conversations in statuses, waiting ones first. Without
// statuses it lists active and waiting conversations.
func (s *AgentService) List(ctx context.Context, statuses []model.ConversationStatus) (*model.ListConversationsResponse, error) {
	if len(statuses) == 0 {
		statuses = []model.ConversationStatus{model.StatusActive, model.StatusWaitingAgent}
	}
	for _, st := range statuses {
		if !st.Valid() {
			return nil, invalid("unknown status %q", st)
		}
	}
	convs, err := s.repo.ListConversationSummaries(ctx, statuses)
	if err != nil {
		return nil, storeErr(err, "list conversations")
	}
	if convs == nil {
		convs = []model.ConversationSummary{}
	}
	return &model.ListConversationsResponse{Conversations: convs, Total: len(convs)}, nil
}

// Get returns a conversation.
func (s *AgentService) Get(ctx context.Context, conversationID string) (*model.Conversation, error) {
	if _, err := uuid.Parse(conversationID); err != nil {
		return nil, fmt.Errorf("conversation %w", ErrNotFound)
	}
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, storeErr(err, "conversation")
	}
	return conv, nil
}

// Messages returns a conversation's messages created after after.
func (s *AgentService) Messages(ctx context.Context, conversationID string, after time.Time) (*model.ListMessagesResponse, error) {
	if _, err := s.Get(ctx, conversationID); err != nil {
		return nil, err
	}
	messages, err := s.repo.ListMessages(ctx, conversationID, after, 0)
	if err != nil {
		return nil, storeErr(err, "list messages")
	}
	return &model.ListMessagesResponse{Messages: messages}, nil
}

// Join connects agent to the conversation, silencing the bot. Rejoining is
// a no-op; joining a conversation held by another agent takes it over.
func (s *AgentService) Join(ctx context.Context, conversationID string, agent Agent) (*model.Conversation, error) {
	conv, err := s.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return s.join(ctx, conv, agent)
}

func (s *AgentService) join(ctx context.Context, conv *model.Conversation, agent Agent) (*model.Conversation, error) {
	if conv.Status == model.StatusClosed {
		return nil, ErrConversationClosed
	}
	if conv.IsAgentConnected && conv.AgentID == agent.ID {
		return conv, nil
	}

	previous := conv.AgentID
	conv, err := s.repo.SetAgent(ctx, conv.ID, model.AgentAssignment{Connected: true, AgentID: agent.ID, AgentName: agent.Name})
	if err != nil {
		return nil, storeErr(err, "update conversation")
	}
	s.pub.conversation(ctx, feed.OpUpdate, conv)
	if conv.Status == model.StatusClosed {
		return nil, ErrConversationClosed
	}

	notice := bot.Reply{Content: fmt.Sprintf("%s has joined the chat.", agent.displayName()), Source: bot.SourceRules}
	if _, err := postBotMessage(ctx, s.repo, s.pub, conv.ID, notice, EventAgentJoined); err != nil {
		return nil, err
	}

	s.logger.Info("agent joined",
		zap.String("conversation_id", conv.ID),
		zap.String("agent_id", agent.ID),
		zap.String("previous_agent_id", previous),
	)
	return conv, nil
}

// Leave hands the conversation back to the bot.
func (s *AgentService) Leave(ctx context.Context, conversationID string, agent Agent) (*model.Conversation, error) {
	conv, err := s.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsAgentConnected {
		return conv, nil
	}
	if conv.AgentID != agent.ID {
		return nil, fmt.Errorf("%w: conversation is held by another agent", ErrForbidden)
	}

	conv, err = s.repo.SetAgent(ctx, conv.ID, model.AgentAssignment{})
	if err != nil {
		return nil, storeErr(err, "update conversation")
	}
	s.pub.conversation(ctx, feed.OpUpdate, conv)

	notice := bot.Reply{
		Content:      fmt.Sprintf("%s has left the chat. I'm here if you need anything else.", agent.displayName()),
		QuickReplies: []string{bot.QuickTours, bot.QuickHuman},
		Source:       bot.SourceRules,
	}
	if _, err := postBotMessage(ctx, s.repo, s.pub, conv.ID, notice, EventAgentLeft); err != nil {
		return nil, err
	}

	s.logger.Info("agent left", zap.String("conversation_id", conv.ID), zap.String("agent_id", agent.ID))
	return conv, nil
}

// Send stores an agent message, joining the conversation first if the
// agent is not connected to it.
func (s *AgentService) Send(ctx context.Context, conversationID string, agent Agent, req *model.SendMessageRequest) (*model.SendMessageResponse, error) {
	conv, err := s.Get(ctx, conversationID)
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
	if !conv.IsAgentConnected || conv.AgentID != agent.ID {
		if _, err := s.join(ctx, conv, agent); err != nil {
			return nil, err
		}
	}

	msg := &model.Message{
		ID:             req.ID,
		ConversationID: conv.ID,
		SenderType:     model.SenderAgent,
		SenderID:       agent.ID,
		Content:        content,
	}
	if agent.Name != "" {
		msg.Metadata = map[string]any{"agent_name": agent.Name}
	}
	if msg.ID == "" {
		msg.ID = uuid.Must(uuid.NewV7()).String()
	}

	inserted, err := s.repo.InsertMessage(ctx, msg)
	if err != nil {
		return nil, storeErr(err, "insert message")
	}
	if !inserted {
		if !sameSender(msg, conv.ID, model.SenderAgent) {
			return nil, fmt.Errorf("%w: message id already used", ErrConflict)
		}
		return &model.SendMessageResponse{Message: msg, Duplicate: true}, nil
	}
	s.pub.message(ctx, msg)
	metrics.MessagesTotal.WithLabelValues(string(model.SenderAgent)).Inc()

	return &model.SendMessageResponse{Message: msg}, nil
}

// Close ends the conversation. Closing twice is a no-op.
func (s *AgentService) Close(ctx context.Context, conversationID string, agent Agent) (*model.Conversation, error) {
	conv, err := s.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Status == model.StatusClosed {
		return conv, nil
	}

	notice := bot.Reply{
		Content: "This conversation has been closed. Thanks for chatting with us! Start a new chat any time.",
		Source:  bot.SourceRules,
	}
	if _, err := postBotMessage(ctx, s.repo, s.pub, conv.ID, notice, EventClosed); err != nil {
		return nil, err
	}

	conv, err = s.repo.SetConversationStatus(ctx, conv.ID, model.StatusClosed)
	if err != nil {
		return nil, storeErr(err, "update conversation")
	}
	s.pub.conversation(ctx, feed.OpUpdate, conv)
	metrics.ConversationsTotal.WithLabelValues("closed").Inc()

	s.logger.Info("conversation closed", zap.String("conversation_id", conv.ID), zap.String("agent_id", agent.ID))
	return conv, nil
}
