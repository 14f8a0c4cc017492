// Package notify alerts admins when a visitor asks for a human agent.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/dhowcruise/booking-platform/internal/model"
	"github.com/dhowcruise/booking-platform/pkg/logger"
	"github.com/dhowcruise/booking-platform/pkg/metrics"
)

// Notifier delivers admin alerts over one channel.
type Notifier interface {
	// Name identifies the channel in logs and metrics.
	Name() string
	// NotifyHumanRequested tells admins that conv is waiting for an agent.
	NotifyHumanRequested(ctx context.Context, conv *model.Conversation) error
}

// Multi fans an alert out to every channel. A failing channel does not stop
// the others; their errors are joined.
type Multi struct {
	channels []Notifier
	logger   *logger.Logger
}

// NewMulti combines channels. Nil channels are skipped.
func NewMulti(log *logger.Logger, channels ...Notifier) *Multi {
	m := &Multi{logger: log.Module("notify")}
	for _, c := range channels {
		if c != nil {
			m.channels = append(m.channels, c)
		}
	}
	return m
}

// Name implements Notifier.
func (m *Multi) Name() string { return "multi" }

// Channels returns the number of configured channels.
func (m *Multi) Channels() int { return len(m.channels) }

// NotifyHumanRequested implements Notifier.
func (m *Multi) NotifyHumanRequested(ctx context.Context, conv *model.Conversation) error {
	if len(m.channels) == 0 {
		m.logger.Warn("no notification channel configured", zap.String("conversation_id", conv.ID))
		return nil
	}

	var errs []error
	for _, c := range m.channels {
		if err := c.NotifyHumanRequested(ctx, conv); err != nil {
			metrics.NotificationsTotal.WithLabelValues(c.Name(), "error").Inc()
			m.logger.Error("notification failed",
				zap.String("channel", c.Name()),
				zap.String("conversation_id", conv.ID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
			continue
		}
		metrics.NotificationsTotal.WithLabelValues(c.Name(), "sent").Inc()
	}
	return errors.Join(errs...)
}

// alert is the channel-independent content of a human request.
type alert struct {
	Subject string
	Lines   []string
	Link    string
}

func humanRequestAlert(conv *model.Conversation, adminURL string) alert {
	who := conv.VisitorName
	if who == "" {
		who = "A visitor"
	}
	a := alert{Subject: fmt.Sprintf("Live chat: %s is waiting for an agent", who)}

	a.Lines = append(a.Lines, fmt.Sprintf("%s asked to talk to a person.", who))
	if conv.VisitorEmail != "" {
		a.Lines = append(a.Lines, "Email: "+conv.VisitorEmail)
	}
	if conv.VisitorPhone != "" {
		a.Lines = append(a.Lines, "Phone: "+conv.VisitorPhone)
	}
	if conv.CurrentPage != "" {
		a.Lines = append(a.Lines, "Page: "+conv.CurrentPage)
	}
	a.Lines = append(a.Lines, "Conversation: "+conv.ID)

	if adminURL != "" {
		a.Link = conversationLink(adminURL, conv.ID)
	}
	return a
}

func conversationLink(adminURL, id string) string {
	u, err := url.Parse(adminURL)
	if err != nil {
		return adminURL
	}
	q := u.Query()
	q.Set("conversation", id)
	u.RawQuery = q.Encode()
	return u.String()
}

func (a alert) text() string {
	body := strings.Join(a.Lines, "\n")
	if a.Link != "" {
		body += "\n\nOpen the chat dashboard: " + a.Link
	}
	return body
}
