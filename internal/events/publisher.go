// Package events broadcasts content lifecycle events on a RabbitMQ topic exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/uptube/content-ingestion-go/internal/service"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Config describes the broker and topology.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Config struct {
	Host           string
	User           string
	Password       string
	VHost          string
	Exchange       string
	Queue          string
	BindingKey     string
	Port           int
	ConfirmTimeout time.Duration
}

// URL returns the AMQP connection string.
func (c Config) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.VHost)
}

// Publisher sends each lifecycle event to the exchange with the event type
// as routing key and waits for the broker to confirm it.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	confirms chan amqp.Confirmation
	cfg      Config
	logger   *zap.Logger
	mu       sync.Mutex
}

// NewPublisher connects to the broker and declares the exchange and the
// audit queue bound to it.
func NewPublisher(cfg Config, logger *zap.Logger) (*Publisher, error) {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 5 * time.Second
	}
	if cfg.BindingKey == "" {
		cfg.BindingKey = "content.#"
	}

	p := &Publisher{cfg: cfg, logger: logger.Named("events")}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.cfg.URL())
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	fail := func(format string, err error) error {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf(format, err)
	}

	if err := ch.Confirm(false); err != nil {
		return fail("failed to enable publisher confirms: %w", err)
	}

	if err := ch.ExchangeDeclare(p.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fail("failed to declare exchange: %w", err)
	}

	if p.cfg.Queue != "" {
		_, err = ch.QueueDeclare(p.cfg.Queue, true, false, false, false, amqp.Table{
			"x-message-ttl": int32(7 * 24 * time.Hour / time.Millisecond),
		})
		if err != nil {
			return fail("failed to declare queue: %w", err)
		}
		if err := ch.QueueBind(p.cfg.Queue, p.cfg.BindingKey, p.cfg.Exchange, false, nil); err != nil {
			return fail("failed to bind queue: %w", err)
		}
	}

	p.conn = conn
	p.channel = ch
	p.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	p.logger.Info("connected to RabbitMQ",
		zap.String("exchange", p.cfg.Exchange),
		zap.String("queue", p.cfg.Queue),
	)
	return nil
}

// Publish implements service.EventPublisher.
func (p *Publisher) Publish(ctx context.Context, event service.LifecycleEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Confirms arrive in publish order on one channel, so publishes are serialized.
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil {
		return fmt.Errorf("channel is not initialized")
	}

	err = p.channel.PublishWithContext(ctx, p.cfg.Exchange, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		MessageId:    uuid.NewString(),
		Type:         event.Type,
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	timer := time.NewTimer(p.cfg.ConfirmTimeout)
	defer timer.Stop()

	select {
	case confirm, ok := <-p.confirms:
		if !ok {
			return fmt.Errorf("channel closed before confirmation")
		}
		if !confirm.Ack {
			return fmt.Errorf("message was not acknowledged by broker")
		}
	case <-timer.C:
		return fmt.Errorf("timeout waiting for publish confirmation")
	case <-ctx.Done():
		return ctx.Err()
	}

	p.logger.Debug("published lifecycle event",
		zap.String("type", event.Type),
		zap.String("content_id", event.ContentID.String()),
	)
	return nil
}

// Healthy reports whether the connection and channel are open.
func (p *Publisher) Healthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil && !p.conn.IsClosed() && p.channel != nil && !p.channel.IsClosed()
}

// Close closes the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			errs = append(errs, err)
		}
		p.channel = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, err)
		}
		p.conn = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing publisher: %v", errs)
	}
	return nil
}
