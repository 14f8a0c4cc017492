// Package bot answers visitor chat messages. Known intents get canned
// answers built from the tour catalog; anything else goes to an optional
// LLM, and when that is missing or fails the visitor is offered the lead
// form.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/dhowcruise/booking-platform/internal/llm"
	"github.com/dhowcruise/booking-platform/internal/model"
	"github.com/dhowcruise/booking-platform/pkg/logger"
	"github.com/dhowcruise/booking-platform/pkg/metrics"
	"github.com/dhowcruise/booking-platform/pkg/tracing"
)

// Reply sources.
const (
	SourceWelcome  = "welcome"
	SourceRules    = "rules"
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

// Quick reply labels shown under bot messages.
const (
	QuickTours   = "Show me the cruises"
	QuickPrices  = "How much does it cost?"
	QuickBook    = "I want to book"
	QuickHuman   = "Talk to a person"
	QuickWhere   = "Where do you depart from?"
	QuickContact = "How can I contact you?"
)

// Reply is one bot answer.
type Reply struct {
	Content      string
	QuickReplies []string
	ShowLeadForm bool
	OfferHuman   bool
	Source       string
}

// Metadata renders the reply's widget hints as message metadata.
func (r Reply) Metadata() map[string]any {
	meta := map[string]any{model.MetaBotSource: r.Source}
	if len(r.QuickReplies) > 0 {
		meta[model.MetaQuickReplies] = r.QuickReplies
	}
	if r.ShowLeadForm {
		meta[model.MetaShowLeadForm] = true
	}
	if r.OfferHuman {
		meta[model.MetaOfferHuman] = true
	}
	return meta
}

// Catalog lists the tours the bot talks about.
type Catalog interface {
	ListTours(ctx context.Context, activeOnly bool) ([]model.Tour, error)
}

// Config tunes the bot.
type Config struct {
	SiteName     string
	Currency     string
	Model        string
	Timeout      time.Duration
	HistoryLimit int
}

// Bot produces replies to visitor messages.
type Bot struct {
	cfg     Config
	catalog Catalog
	llm     llm.Client
	logger  *logger.Logger
}

// New creates a bot. client may be nil, in which case unmatched messages
// get the fallback reply.
func New(cfg Config, catalog Catalog, client llm.Client, log *logger.Logger) *Bot {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.Currency == "" {
		cfg.Currency = "AED"
	}
	return &Bot{cfg: cfg, catalog: catalog, llm: client, logger: log.Module("bot")}
}

// Welcome is the first message of every new conversation.
func (b *Bot) Welcome() Reply {
	return Reply{
		Content: fmt.Sprintf("Marhaba! Welcome to %s. I can help with cruise options, prices and bookings. "+
			"What would you like to know?", b.siteName()),
		QuickReplies: []string{QuickTours, QuickPrices, QuickBook, QuickHuman},
		Source:       SourceWelcome,
	}
}

// Reply answers text, the latest visitor message. history holds the earlier
// messages of the conversation in chronological order.
func (b *Bot) Reply(ctx context.Context, conv *model.Conversation, history []model.Message, text string) Reply {
	ctx, span := tracing.Tracer("bot").Start(ctx, "bot.Reply")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", conv.ID))

	start := time.Now()
	reply, ok := b.answerRule(ctx, detect(text))
	if !ok {
		reply = b.answerLLM(ctx, history, text)
	}

	span.SetAttributes(attribute.String("bot.source", reply.Source))
	if reply.Source == SourceFallback && b.llm != nil {
		span.SetStatus(codes.Error, "llm fallback")
	}
	metrics.RecordBotReply(reply.Source, time.Since(start).Seconds())
	return reply
}

func (b *Bot) answerRule(ctx context.Context, in intent) (Reply, bool) {
	switch in {
	case intentHuman:
		return Reply{
			Content:      "Of course. I can ask one of our team to join this chat. Tap below and someone will be with you shortly.",
			OfferHuman:   true,
			QuickReplies: []string{QuickHuman},
			Source:       SourceRules,
		}, true
	case intentBooking:
		return Reply{
			Content: "You can book any cruise online: pick a tour, choose your date and number of guests, and you'll get a confirmation by email. " +
				"Would you like us to help you book? Leave your details and we'll get back to you.",
			ShowLeadForm: true,
			QuickReplies: []string{QuickTours, QuickPrices},
			Source:       SourceRules,
		}, true
	case intentPricing:
		return Reply{
			Content:      b.priceList(ctx),
			QuickReplies: []string{QuickBook, QuickTours},
			Source:       SourceRules,
		}, true
	case intentTours:
		return Reply{
			Content:      b.tourList(ctx),
			QuickReplies: []string{QuickPrices, QuickBook},
			Source:       SourceRules,
		}, true
	case intentLocation:
		return Reply{
			Content: "Our dinner cruises board at Dubai Creek (near the Al Seef heritage district) and Dubai Marina. " +
				"The exact pier is in your booking confirmation, and hotel pickup can be arranged on request.",
			QuickReplies: []string{QuickTours, QuickBook},
			Source:       SourceRules,
		}, true
	case intentHours:
		return Reply{
			Content:      b.scheduleText(ctx),
			QuickReplies: []string{QuickBook, QuickPrices},
			Source:       SourceRules,
		}, true
	case intentContact:
		return Reply{
			Content:      "You can reach us right here in the chat, or leave your details and our team will call or email you back.",
			ShowLeadForm: true,
			QuickReplies: []string{QuickHuman},
			Source:       SourceRules,
		}, true
	case intentThanks:
		return Reply{
			Content:      "You're welcome! Is there anything else I can help you with?",
			QuickReplies: []string{QuickTours, QuickBook},
			Source:       SourceRules,
		}, true
	case intentGreeting:
		return Reply{
			Content:      "Hello! How can I help you plan your cruise today?",
			QuickReplies: []string{QuickTours, QuickPrices, QuickWhere, QuickContact},
			Source:       SourceRules,
		}, true
	}
	return Reply{}, false
}

func (b *Bot) fallback() Reply {
	return Reply{
		Content: "I'm not sure I have the answer to that. Leave your name and email and our team will get back to you, " +
			"or ask to talk to a person.",
		ShowLeadForm: true,
		OfferHuman:   true,
		QuickReplies: []string{QuickHuman, QuickTours},
		Source:       SourceFallback,
	}
}

func (b *Bot) answerLLM(ctx context.Context, history []model.Message, text string) Reply {
	if b.llm == nil {
		return b.fallback()
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	resp, err := b.llm.Complete(ctx, &llm.CompletionRequest{
		Model:       b.cfg.Model,
		System:      b.systemPrompt(ctx),
		Messages:    b.transcript(history, text),
		MaxTokens:   400,
		Temperature: 0.3,
	})
	if err != nil {
		b.logger.Warn("llm reply failed",
			zap.String("provider", b.llm.Name()),
			zap.Error(err),
		)
		return b.fallback()
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return b.fallback()
	}

	b.logger.Debug("llm reply",
		zap.String("provider", b.llm.Name()),
		zap.String("model", resp.Model),
		zap.Int("tokens_in", resp.TokensIn),
		zap.Int("tokens_out", resp.TokensOut),
		zap.Int64("latency_ms", resp.LatencyMs),
	)
	return Reply{
		Content:      content,
		QuickReplies: []string{QuickBook, QuickHuman},
		Source:       SourceLLM,
	}
}

// transcript converts the tail of history plus text into alternating
// user/assistant turns that start with the visitor.
func (b *Bot) transcript(history []model.Message, text string) []llm.ChatMessage {
	if len(history) > b.cfg.HistoryLimit {
		history = history[len(history)-b.cfg.HistoryLimit:]
	}

	var out []llm.ChatMessage
	push := func(role, content string) {
		if content == "" {
			return
		}
		if len(out) == 0 && role != llm.RoleUser {
			return
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content += "\n" + content
			return
		}
		out = append(out, llm.ChatMessage{Role: role, Content: content})
	}
	for _, m := range history {
		role := llm.RoleAssistant
		if m.SenderType == model.SenderVisitor {
			role = llm.RoleUser
		}
		push(role, m.Content)
	}
	push(llm.RoleUser, text)
	return out
}

func (b *Bot) systemPrompt(ctx context.Context) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are the friendly chat assistant of %s, a dhow and yacht cruise operator in Dubai. ", b.siteName())
	sb.WriteString("Answer in two or three short sentences. Only state prices and times listed below. ")
	sb.WriteString("If you cannot answer, suggest leaving contact details or talking to a person.\n\nCruises:\n")

	tours, err := b.catalog.ListTours(ctx, true)
	if err != nil {
		b.logger.Warn("load catalog for prompt", zap.Error(err))
	}
	for _, t := range tours {
		fmt.Fprintf(&sb, "- %s: %s adult, %s child", t.Name, b.money(t.PriceAdult), b.money(t.PriceChild))
		if t.Duration != "" {
			fmt.Fprintf(&sb, ", %s", t.Duration)
		}
		if t.DepartureTime != "" {
			fmt.Fprintf(&sb, ", departs %s", t.DepartureTime)
		}
		if t.Summary != "" {
			fmt.Fprintf(&sb, ". %s", t.Summary)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (b *Bot) activeTours(ctx context.Context) []model.Tour {
	tours, err := b.catalog.ListTours(ctx, true)
	if err != nil {
		b.logger.Warn("load catalog", zap.Error(err))
		return nil
	}
	return tours
}

func (b *Bot) priceList(ctx context.Context) string {
	tours := b.activeTours(ctx)
	if len(tours) == 0 {
		return "Prices depend on the cruise and the date. Leave your details and we'll send you a quote."
	}
	var sb strings.Builder
	sb.WriteString("Here are our current prices per person:\n")
	for _, t := range tours {
		fmt.Fprintf(&sb, "• %s: %s adults", t.Name, b.money(t.PriceAdult))
		if t.PriceChild > 0 {
			fmt.Fprintf(&sb, ", %s children", b.money(t.PriceChild))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Infants under 3 cruise free.")
	return sb.String()
}

func (b *Bot) tourList(ctx context.Context) string {
	tours := b.activeTours(ctx)
	if len(tours) == 0 {
		return "We run dinner cruises on Dubai Creek and Dubai Marina as well as private yacht charters."
	}
	names := make([]string, len(tours))
	for i, t := range tours {
		names[i] = t.Name
	}
	return "We offer: " + strings.Join(names, ", ") + ". Which one would you like to know more about?"
}

func (b *Bot) scheduleText(ctx context.Context) string {
	var parts []string
	for _, t := range b.activeTours(ctx) {
		if t.DepartureTime == "" {
			continue
		}
		s := fmt.Sprintf("%s departs at %s", t.Name, t.DepartureTime)
		if t.Duration != "" {
			s += " (" + t.Duration + ")"
		}
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return "Cruises run every day of the week. Boarding usually starts 30 minutes before departure."
	}
	return "Cruises run every day. " + strings.Join(parts, "; ") + ". Boarding starts 30 minutes before departure."
}

func (b *Bot) money(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%s %d", b.cfg.Currency, int64(v))
	}
	return fmt.Sprintf("%s %.2f", b.cfg.Currency, v)
}

func (b *Bot) siteName() string {
	if b.cfg.SiteName == "" {
		return "our cruises"
	}
	return b.cfg.SiteName
}
