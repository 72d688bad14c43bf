// Package events publishes catalog sync notifications to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

//go:generate mockgen -destination=mocks/mock_events.go -package=mocks -source=events.go Notifier

// SyncedEvent is published after a run replaced the stored catalog
type SyncedEvent struct {
	RunID      string    `json:"runId"`
	Stored     int       `json:"stored"`
	Dropped    int       `json:"dropped"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Notifier delivers sync notifications
type Notifier interface {
	NotifySynced(ctx context.Context, event SyncedEvent) error
}

// channel is the part of *amqp.Channel the publisher uses
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// dialFunc opens a connection and a channel with the exchange declared
type dialFunc func(url, exchange string) (brokerLink, error)

type brokerLink struct {
	conn    *amqp.Connection
	channel channel
}

// AMQPPublisher publishes SyncedEvent messages to a topic exchange. The
// connection is opened on first use and reopened after a failed publish.
type AMQPPublisher struct {
	url        string
	exchange   string
	routingKey string
	dial       dialFunc

	mu      sync.Mutex
	current *brokerLink
}

// NewAMQPPublisher creates a publisher for the given broker and exchange
func NewAMQPPublisher(url, exchange, routingKey string) (*AMQPPublisher, error) {
	if url == "" {
		return nil, errors.New("amqp url is required")
	}
	if exchange == "" || routingKey == "" {
		return nil, errors.New("exchange and routing key are required")
	}
	return &AMQPPublisher{
		url:        url,
		exchange:   exchange,
		routingKey: routingKey,
		dial:       dialExchange,
	}, nil
}

func dialExchange(url, exchange string) (brokerLink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return brokerLink{}, fmt.Errorf("failed to dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return brokerLink{}, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return brokerLink{}, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return brokerLink{conn: conn, channel: ch}, nil
}

// NotifySynced implements Notifier
func (p *AMQPPublisher) NotifySynced(ctx context.Context, event SyncedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode sync event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		c, err := p.dial(p.url, p.exchange)
		if err != nil {
			return err
		}
		p.current = &c
	}

	err = p.current.channel.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.FinishedAt.UTC(),
		MessageId:    event.RunID,
		Body:         body,
	})
	if err != nil {
		p.closeLocked()
		return fmt.Errorf("failed to publish sync event: %w", err)
	}

	slog.Debug("Published sync event", "run_id", event.RunID, "exchange", p.exchange, "routing_key", p.routingKey)
	return nil
}

// Close closes the broker connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

func (p *AMQPPublisher) closeLocked() {
	if p.current == nil {
		return
	}
	_ = p.current.channel.Close()
	if p.current.conn != nil {
		_ = p.current.conn.Close()
	}
	p.current = nil
}
