// Package eventbus fans out cache-invalidation events to sibling
// snowcap processes sharing a redis-backed reader cache, over RabbitMQ
// (spec §4.5's distributed-cache corollary, SPEC_FULL.md "DOMAIN STACK").
// A single-process run never needs this: the in-memory cache is
// invalidated in-process directly. It only matters once the shared
// redis cache is configured.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/snowcapio/snowcap/internal/logging"
)

const invalidationExchange = "snowcap.cache.invalidation"

// InvalidationEvent announces that every cache entry for (SessionID,
// Role) is now stale and must be dropped by whoever receives it.
type InvalidationEvent struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
}

// Publisher sends invalidation events. Consumer code (a long-lived
// snowcap daemon, not the one-shot CLI) subscribes to the same
// exchange to drop its local mirror of the shared cache.
type Publisher interface {
	PublishInvalidation(ctx context.Context, evt InvalidationEvent) error
	Close() error
}

// RabbitMQConnection mirrors the teacher's connection-hub shape
// (mredis.RedisConnection, libRabbitmq.RabbitMQConnection): dial lazily,
// hold the channel, expose a health check.
type RabbitMQConnection struct {
	URL    string
	Logger logging.Logger

	conn    *amqp.Connection
	channel *amqp.Channel
}

func (c *RabbitMQConnection) connect() (*amqp.Channel, error) {
	if c.channel != nil {
		return c.channel, nil
	}

	c.Logger.Info("connecting to rabbitmq for cache-invalidation fanout")

	conn, err := amqp.Dial(c.URL)
	if err != nil {
		return nil, fmt.Errorf("eventbus: dialing rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("eventbus: opening channel: %w", err)
	}

	if err := ch.ExchangeDeclare(invalidationExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()

		return nil, fmt.Errorf("eventbus: declaring fanout exchange: %w", err)
	}

	c.conn = conn
	c.channel = ch

	return ch, nil
}

func (c *RabbitMQConnection) HealthCheck() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

// RabbitMQPublisher publishes InvalidationEvents to the fanout
// exchange every subscribing process listens on.
type RabbitMQPublisher struct {
	conn *RabbitMQConnection
}

func NewRabbitMQPublisher(conn *RabbitMQConnection) *RabbitMQPublisher {
	return &RabbitMQPublisher{conn: conn}
}

func (p *RabbitMQPublisher) PublishInvalidation(ctx context.Context, evt InvalidationEvent) error {
	ch, err := p.conn.connect()
	if err != nil {
		return err
	}

	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("eventbus: marshaling invalidation event: %w", err)
	}

	p.conn.Logger.Infof("publishing cache invalidation for session=%s role=%s", evt.SessionID, evt.Role)

	err = ch.PublishWithContext(ctx, invalidationExchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("eventbus: publishing invalidation event: %w", err)
	}

	return nil
}

func (p *RabbitMQPublisher) Close() error {
	if p.conn.channel != nil {
		_ = p.conn.channel.Close()
	}

	if p.conn.conn != nil {
		return p.conn.conn.Close()
	}

	return nil
}

// NoopPublisher is used when no eventbus is configured: single-process
// runs invalidate their in-memory cache directly and have no sibling to
// notify.
type NoopPublisher struct{}

func (NoopPublisher) PublishInvalidation(context.Context, InvalidationEvent) error { return nil }
func (NoopPublisher) Close() error                                                { return nil }
