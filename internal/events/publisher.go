// Package events publishes domain events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueUserSignedUp receives one message per successful sign-up.
const QueueUserSignedUp = "user.signed_up"

// UserSignedUp is published after a user row is committed.
type UserSignedUp struct {
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher emits domain events. Failures are returned for logging only.
type Publisher interface {
	PublishUserSignedUp(ctx context.Context, event UserSignedUp) error
	Close() error
}

const publishTimeout = 5 * time.Second

// New returns an asynchronous AMQP publisher, or a no-op one when url is empty.
func New(url string, logger *log.Logger) Publisher {
	if url == "" {
		return Noop{}
	}
	return NewAsync(NewAMQPPublisher(url, logger), logger)
}

// Noop drops every event.
type Noop struct{}

func (Noop) PublishUserSignedUp(context.Context, UserSignedUp) error { return nil }
func (Noop) Close() error                                            { return nil }

// AMQPPublisher keeps one connection and channel, dialled lazily and
// re-dialled after a failure.
type AMQPPublisher struct {
	url    string
	logger *log.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPPublisher creates a publisher for url. No connection is made until
// the first publish.
func NewAMQPPublisher(url string, logger *log.Logger) *AMQPPublisher {
	return &AMQPPublisher{url: url, logger: logger}
}

// channel returns an open channel with the queue declared. Callers hold p.mu.
func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(publishTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		QueueUserSignedUp, // name
		true,              // durable
		false,             // autoDelete
		false,             // exclusive
		false,             // noWait
		nil,               // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// PublishUserSignedUp sends event as a persistent JSON message.
func (p *AMQPPublisher) PublishUserSignedUp(ctx context.Context, event UserSignedUp) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx,
		"",                // default exchange
		QueueUserSignedUp, // routing key = queue name
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		p.reset()
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	p.logger.Debugj(log.JSON{"event": "publish", "queue": QueueUserSignedUp, "user_id": event.UserID})
	return nil
}

// Close closes the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

// Async publishes from background goroutines so callers never wait on the
// broker. Close waits for in-flight publications before closing next.
type Async struct {
	next    Publisher
	logger  *log.Logger
	pending sync.WaitGroup
}

// NewAsync wraps next.
func NewAsync(next Publisher, logger *log.Logger) *Async {
	return &Async{next: next, logger: logger}
}

// PublishUserSignedUp hands event to a goroutine and returns nil.
func (a *Async) PublishUserSignedUp(ctx context.Context, event UserSignedUp) error {
	a.pending.Add(1)
	go func() {
		defer a.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := a.next.PublishUserSignedUp(ctx, event); err != nil {
			a.logger.Warnj(log.JSON{"event": "publish", "outcome": "failure", "queue": QueueUserSignedUp, "user_id": event.UserID, "error": err.Error()})
		}
	}()
	return nil
}

// Close drains pending publications and closes next.
func (a *Async) Close() error {
	a.pending.Wait()
	return a.next.Close()
}
