/**
 * @description
 * This package provides a producer for publishing transfer lifecycle events
 * to RabbitMQ. Downstream monitoring consumes these events; delivery is
 * best-effort and must never block the transfer pipeline, so a no-op
 * fallback producer is used when RabbitMQ is unavailable at startup.
 *
 * @dependencies
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// StageEvent describes one transfer lifecycle transition.
type StageEvent struct {
	EventID    string    `json:"event_id"`
	TransferID string    `json:"transfer_id"`
	Stage      string    `json:"stage"`
	Wallet     string    `json:"wallet,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher is the interface implemented by types that can publish events.
type Publisher interface {
	PublishStageEvent(ctx context.Context, event StageEvent) error
	Close()
}

// EventProducer holds the RabbitMQ connection and channel for publishing
// stage events.
type EventProducer struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	logger   *slog.Logger
}

// FallbackProducer is a minimal no-op publisher used when RabbitMQ is
// unavailable at startup.
type FallbackProducer struct {
	Logger *slog.Logger
}

func (p *FallbackProducer) PublishStageEvent(ctx context.Context, event StageEvent) error {
	p.Logger.Warn("stage event publish skipped", "mode", "fallback", "transfer_id", event.TransferID, "stage", event.Stage)
	return nil
}

func (p *FallbackProducer) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer creates and returns a new EventProducer publishing to the
// given durable topic exchange.
func NewEventProducer(amqpURL, exchange string, logger *slog.Logger) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	// Bounded dial timeout so startup does not hang indefinitely.
	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &EventProducer{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

// PublishStageEvent sends a stage event with routing key signer.<stage>.
func (p *EventProducer) PublishStageEvent(ctx context.Context, event StageEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("stage event marshal failed", "transfer_id", event.TransferID, "err", err)
		return err
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		"signer."+event.Stage,
		false,
		false,
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
	if err != nil {
		p.logger.Warn("stage event publish failed; reopening channel", "stage", event.Stage, "err", err)
		// One-shot retry: reopen channel and try again.
		if p.conn != nil {
			if ch, chErr := p.conn.Channel(); chErr == nil {
				p.channel = ch
				if exErr := p.channel.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); exErr == nil {
					err = p.channel.PublishWithContext(ctx, p.exchange, "signer."+event.Stage, false, false, amqp091.Publishing{
						ContentType: "application/json",
						Timestamp:   time.Now(),
						Body:        body,
					})
				}
			}
		}
	}
	return err
}

// Close gracefully closes the channel and connection to RabbitMQ.
func (p *EventProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
