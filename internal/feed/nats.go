package feed

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/dhowcruise/booking-platform/pkg/logger"
)

// StreamName is the JetStream stream that retains row changes.
const StreamName = "ROW_CHANGES"

// NATSConfig holds NATS connection configuration.
type NATSConfig struct {
	URL      string
	CAFile   string
	CertFile string
	KeyFile  string
	Token    string
}

// NATS is a Feed backed by a NATS connection. Events are persisted to
// JetStream and fanned out to subscribers through core subscriptions, so
// every instance of the API sees every change.
type NATS struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *logger.Logger
}

// Connect establishes a connection to the NATS server. The connection
// reconnects forever with a fixed wait.
func Connect(ctx context.Context, cfg NATSConfig, log *logger.Logger) (*NATS, error) {
	log = log.Module("feed.nats")

	opts := []nats.Option{
		nats.Name("dhow-booking-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.ReconnectBufSize(8 * 1024 * 1024),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			log.Error("NATS error", zap.String("subject", subject), zap.Error(err))
		}),
	}

	if cfg.CAFile != "" && cfg.CertFile != "" && cfg.KeyFile != "" {
		tlsConfig, err := createTLSConfig(cfg.CAFile, cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsConfig))
	}

	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &NATS{conn: nc, js: js, logger: log}, nil
}

// EnsureStream creates the row change stream if it does not exist.
func (n *NATS) EnsureStream(ctx context.Context) error {
	if _, err := n.js.Stream(ctx, StreamName); err == nil {
		return nil
	} else if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err := n.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{AllFilter},
		Retention:   jetstream.LimitsPolicy,
		Discard:     jetstream.DiscardOld,
		MaxAge:      7 * 24 * time.Hour,
		MaxBytes:    1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Row change notifications for realtime clients",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	n.logger.Info("created JetStream stream", zap.String("stream", StreamName))
	return nil
}

// Publish stores ev in JetStream, which also delivers it to core
// subscribers of the subject.
func (n *NATS) Publish(ctx context.Context, ev ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	if _, err := n.js.Publish(ctx, ev.Subject(), data); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

// Subscribe opens a core subscription on filter until ctx is done.
func (n *NATS) Subscribe(ctx context.Context, filter string) (<-chan ChangeEvent, error) {
	s := newSubscription(filter)

	sub, err := n.conn.Subscribe(filter, func(msg *nats.Msg) {
		var ev ChangeEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			n.logger.Warn("dropping malformed change event",
				zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		if meta, err := msg.Metadata(); err == nil {
			ev.Sequence = meta.Sequence.Stream
		}
		if !s.deliver(ev) {
			n.logger.Debug("subscriber lagging, change event dropped",
				zap.String("filter", filter), zap.String("subject", msg.Subject))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", filter, err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			n.logger.Warn("failed to unsubscribe", zap.String("filter", filter), zap.Error(err))
		}
		s.close()
	}()

	return s.ch, nil
}

// Close drains and closes the connection.
func (n *NATS) Close() {
	if n.conn != nil {
		if err := n.conn.Drain(); err != nil {
			n.conn.Close()
		}
	}
}

// IsConnected returns true if connected to NATS.
func (n *NATS) IsConnected() bool {
	return n.conn != nil && n.conn.IsConnected()
}

func createTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client cert: %w", err)
	}

	return &tls.Config{
		RootCAs:      caCertPool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
