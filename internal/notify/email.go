package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/dhowcruise/booking-platform/internal/model"
)

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
	AdminURL string
}

// Email sends alerts through an SMTP relay.
type Email struct {
	cfg  EmailConfig
	send func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

// NewEmail returns an email channel, or nil when SMTP or recipients are not
// configured.
func NewEmail(cfg EmailConfig) *Email {
	if cfg.Host == "" || len(cfg.To) == 0 {
		return nil
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Email{cfg: cfg, send: sendMail, now: time.Now}
}

// Name implements Notifier.
func (e *Email) Name() string { return "email" }

// NotifyHumanRequested implements Notifier.
func (e *Email) NotifyHumanRequested(ctx context.Context, conv *model.Conversation) error {
	a := humanRequestAlert(conv, e.cfg.AdminURL)
	return e.deliver(ctx, a.Subject, a.text())
}

func (e *Email) deliver(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(subject, "\r\n") {
		return errors.New("subject contains a line break")
	}

	var auth smtp.Auth
	if e.cfg.User != "" {
		auth = smtp.PlainAuth("", e.cfg.User, e.cfg.Password, e.cfg.Host)
	}
	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	if err := e.send(ctx, addr, auth, e.cfg.From, e.cfg.To, e.message(subject, body)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (e *Email) message(subject, body string) []byte {
	var sb strings.Builder
	sb.WriteString("From: " + e.cfg.From + "\r\n")
	sb.WriteString("To: " + strings.Join(e.cfg.To, ", ") + "\r\n")
	sb.WriteString("Subject: " + subject + "\r\n")
	sb.WriteString("Date: " + e.now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	sb.WriteString("\r\n")
	return []byte(sb.String())
}

// sendMail does what smtp.SendMail does over a connection that gives up
// when ctx is done.
func sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("server does not support AUTH")
		}
		if err := c.Auth(a); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
