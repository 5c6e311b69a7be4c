// Package amqp carries change events over a RabbitMQ topic exchange so that
// several processes writing to one store see each other's changes.
package amqp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"sakinah/internal/log"
	"sakinah/internal/remote"
)

// DefaultExchange is used when no exchange name is configured.
const DefaultExchange = "sakinah.changes"

const (
	publishTimeout = 5 * time.Second
	dialAttempts   = 5
)

// Broker publishes change events and opens one private queue per
// subscription.
type Broker struct {
	conn         *amqp091.Connection
	exchangeName string
	logger       *log.Logger

	pubMu   sync.Mutex
	channel *amqp091.Channel
}

var _ remote.Broker = (*Broker)(nil)

func NewBroker(ctx context.Context, url, exchangeName string, logger *log.Logger) (*Broker, error) {
	if exchangeName == "" {
		exchangeName = DefaultExchange
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentAMQP)

	conn, err := dial(ctx, url, logger)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	b := &Broker{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		logger:       logger,
	}

	if err := b.setup(); err != nil {
		b.Close()
		return nil, fmt.Errorf("setup exchange: %w", err)
	}

	return b, nil
}

func dial(ctx context.Context, url string, logger *log.Logger) (*amqp091.Connection, error) {
	var lastErr error
	for attempt := 0; attempt < dialAttempts; attempt++ {
		conn, err := amqp091.Dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		wait := exponentialBackoff(attempt)
		logger.WarnContext(ctx, "AMQP dial failed, retrying", "attempt", attempt+1, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dial AMQP: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("dial AMQP: %w", lastErr)
}

// exponentialBackoff doubles from one second and caps at thirty.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return 30 * time.Second
	}
	d := time.Second << attempt
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

func (b *Broker) setup() error {
	err := b.channel.ExchangeDeclare(
		b.exchangeName, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	return nil
}

// Publish sends ev to every subscriber of (owner, ev.Table).
func (b *Broker) Publish(ctx context.Context, owner string, ev remote.Event) error {
	if owner == "" {
		return remote.ErrNoOwner
	}
	body, err := NewChangeMessage(owner, ev).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	b.pubMu.Lock()
	err = b.channel.PublishWithContext(
		ctx,
		b.exchangeName,              // exchange
		RoutingKey(owner, ev.Table), // routing key
		false,                       // mandatory
		false,                       // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	b.pubMu.Unlock()
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	b.logger.DebugContext(ctx, "Published change",
		log.FieldOwner, owner,
		log.FieldTable, string(ev.Table),
		log.FieldEventKind, string(ev.Kind))
	return nil
}

// Subscribe declares an exclusive auto-delete queue bound to the owner's
// routing key and delivers decoded events to h until Unsubscribe.
func (b *Broker) Subscribe(ctx context.Context, owner string, table remote.Table, h remote.Handler) (remote.Subscription, error) {
	if owner == "" {
		return nil, remote.ErrNoOwner
	}
	if !remote.ValidTable(table) {
		return nil, remote.ErrUnknownTable
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		"",    // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	key := RoutingKey(owner, table)
	if err := ch.QueueBind(q.Name, key, b.exchangeName, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	deliveries, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		false,  // auto-ack (we want manual ack)
		true,   // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("start consuming: %w", err)
	}

	sub := &subscription{channel: ch, done: make(chan struct{})}
	go b.consume(owner, table, deliveries, h, sub.done)

	b.logger.InfoContext(ctx, "Subscribed to changes", log.FieldOwner, owner, log.FieldTable, string(table), "queue", q.Name)
	return sub, nil
}

func (b *Broker) consume(owner string, table remote.Table, deliveries <-chan amqp091.Delivery, h remote.Handler, done chan struct{}) {
	defer close(done)
	for delivery := range deliveries {
		msg, err := ChangeMessageFromJSON(delivery.Body)
		if err != nil {
			b.logger.Error("Failed to decode change message", "error", err)
			delivery.Nack(false, false) // reject and don't requeue
			continue
		}
		if msg.Owner != owner || msg.Event.Table != table {
			delivery.Ack(false)
			continue
		}
		h(msg.Event)
		delivery.Ack(false)
	}
}

func (b *Broker) Close() error {
	if b.channel != nil {
		b.channel.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

type subscription struct {
	channel *amqp091.Channel
	done    chan struct{}
	once    sync.Once
	err     error
}

// Unsubscribe closes the channel, which deletes the queue, and waits for the
// consumer goroutine to finish.
func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		s.err = s.channel.Close()
		<-s.done
	})
	return s.err
}
