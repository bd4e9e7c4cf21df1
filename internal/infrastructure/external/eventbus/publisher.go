package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/garyjia/f07-workflow/internal/application/port"
	"github.com/garyjia/f07-workflow/internal/domain/event"
)

// DefaultSubjectPrefix roots every subject the publisher writes to
const DefaultSubjectPrefix = "f07"

// Config holds NATS connection settings
type Config struct {
	URL           string
	Name          string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// msgPublisher is the part of *nats.Conn the publisher writes through
type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// Publisher mirrors domain events onto NATS subjects for downstream consumers
type Publisher struct {
	conn   msgPublisher
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

// Connect dials NATS and returns a publisher that owns the connection
func Connect(cfg Config, logger *zap.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	if cfg.Name == "" {
		cfg.Name = "f07-workflow"
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	logger.Info("Connected to NATS", zap.String("url", nc.ConnectedUrl()))
	p := NewPublisher(nc, cfg.SubjectPrefix, logger)
	p.nc = nc
	return p, nil
}

// NewPublisher creates a publisher on an existing connection
func NewPublisher(conn msgPublisher, prefix string, logger *zap.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Publisher{conn: conn, prefix: strings.TrimSuffix(prefix, "."), logger: logger}
}

// Subject returns the subject an event is published on.
// Notifications fan out by template kind, everything else by event type.
func (p *Publisher) Subject(evt *event.Event) string {
	if evt.Type == event.TypeNotificationRequested {
		kind := strings.ToLower(evt.GetPayloadString(event.KeyTemplate))
		if kind == "" {
			kind = "unknown"
		}
		return fmt.Sprintf("%s.notifications.%s", p.prefix, kind)
	}
	return fmt.Sprintf("%s.%s", p.prefix, evt.Type)
}

// Publish writes evt as JSON. The event id is sent as Nats-Msg-Id so
// JetStream consumers can drop redeliveries.
func (p *Publisher) Publish(ctx context.Context, evt *event.Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := nats.NewMsg(p.Subject(evt))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, evt.ID)
	if evt.CorrelationID != "" {
		msg.Header.Set("Correlation-Id", evt.CorrelationID)
	}

	if err := p.conn.PublishMsg(msg); err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("subject", msg.Subject),
			zap.String("event_id", evt.ID),
			zap.Error(err))
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Event published",
		zap.String("subject", msg.Subject),
		zap.String("event_id", evt.ID),
		zap.Int64("request_id", evt.RequestID))
	return nil
}

// Close drains the owned connection, if any
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}

var _ port.EventPublisher = (*Publisher)(nil)
