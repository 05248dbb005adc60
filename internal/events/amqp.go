// Package events carries reconciliation findings over RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"sn-go/internal/sn"
)

// routingPrefix scopes finding routing keys, e.g. "finding.orphan_asset".
const routingPrefix = "finding."

// Topology names the exchange and queue findings travel through.
type Topology struct {
	Exchange string
	Queue    string
}

func (t Topology) withDefaults() Topology {
	if t.Exchange == "" {
		t.Exchange = "sn.findings"
	}
	if t.Queue == "" {
		t.Queue = "sn.findings.resolve"
	}
	return t
}

// declare sets up a durable topic exchange with one durable queue bound to
// every finding kind.
func (t Topology) declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(t.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring exchange %s: %w", t.Exchange, err)
	}
	if _, err := ch.QueueDeclare(t.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring queue %s: %w", t.Queue, err)
	}
	if err := ch.QueueBind(t.Queue, routingPrefix+"#", t.Exchange, false, nil); err != nil {
		return fmt.Errorf("binding queue %s: %w", t.Queue, err)
	}
	return nil
}

func dial(url string, top Topology) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("error establishing connection with rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("error opening channel for rabbitmq: %w", err)
	}
	if err := top.declare(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

// Encode serializes a finding as a persistent JSON message.
func Encode(f sn.Finding) (amqp.Publishing, error) {
	body, err := json.Marshal(f)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encoding finding: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    f.DetectedAt,
		Type:         string(f.Kind),
		Body:         body,
	}, nil
}

// Decode parses a message body produced by Encode.
func Decode(body []byte) (sn.Finding, error) {
	var f sn.Finding
	if err := json.Unmarshal(body, &f); err != nil {
		return sn.Finding{}, fmt.Errorf("decoding finding: %w", err)
	}
	if f.Kind == "" {
		return sn.Finding{}, errors.New("decoding finding: missing kind")
	}
	return f, nil
}

// AMQPSink publishes findings to a RabbitMQ topic exchange.
type AMQPSink struct {
	conn *amqp.Connection
	top  Topology

	mu sync.Mutex // amqp channels are not safe for concurrent publishing
	ch *amqp.Channel
}

// DialAMQPSink connects to url and declares the finding topology.
func DialAMQPSink(url string, top Topology) (*AMQPSink, error) {
	top = top.withDefaults()
	conn, ch, err := dial(url, top)
	if err != nil {
		return nil, err
	}
	return &AMQPSink{conn: conn, ch: ch, top: top}, nil
}

func (s *AMQPSink) Report(ctx context.Context, f sn.Finding) error {
	msg, err := Encode(f)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ch.PublishWithContext(ctx, s.top.Exchange, routingPrefix+string(f.Kind), false, false, msg); err != nil {
		return fmt.Errorf("publishing finding: %w", err)
	}
	return nil
}

func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ch.Close()
	return s.conn.Close()
}

var _ sn.FindingSink = (*AMQPSink)(nil)

// Resolver repairs a single finding. SNService implements it.
type Resolver interface {
	ResolveFinding(ctx context.Context, f sn.Finding) error
}

// Consumer feeds queued findings to a Resolver one at a time.
//
// A resolved finding is acknowledged. A transient failure is requeued after
// a short pause. Anything else, including an undecodable message, is
// rejected without requeue so that a poison message cannot loop forever.
type Consumer struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	top      Topology
	resolver Resolver
	logger   sn.Logger
	backoff  time.Duration
}

// DialConsumer connects to url and declares the finding topology.
func DialConsumer(url string, top Topology, resolver Resolver, logger sn.Logger) (*Consumer, error) {
	top = top.withDefaults()
	conn, ch, err := dial(url, top)
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("setting prefetch: %w", err)
	}
	return newConsumer(resolver, logger, conn, ch, top), nil
}

func newConsumer(resolver Resolver, logger sn.Logger, conn *amqp.Connection, ch *amqp.Channel, top Topology) *Consumer {
	if logger == nil {
		logger = sn.NewNopLogger()
	}
	return &Consumer{conn: conn, ch: ch, top: top, resolver: resolver, logger: logger, backoff: time.Second}
}

// Run consumes until ctx is done or the broker closes the delivery channel.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(c.top.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consuming queue %s: %w", c.top.Queue, err)
	}
	c.logger.Info("consuming findings", "queue", c.top.Queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed by broker")
			}
			c.handle(ctx, d)
		}
	}
}

// handle resolves one delivery and settles it.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	f, err := Decode(d.Body)
	if err != nil {
		c.logger.Error("dropping malformed finding", "error", err)
		d.Reject(false)
		return
	}

	err = c.resolver.ResolveFinding(ctx, f)
	switch {
	case err == nil:
		c.logger.Debug("finding resolved", "kind", string(f.Kind), "owner_id", f.OwnerID)
		d.Ack(false)
	case sn.IsTransient(err):
		c.logger.Warn("finding resolution failed, requeueing", "kind", string(f.Kind), "error", err)
		select {
		case <-ctx.Done():
		case <-time.After(c.backoff):
		}
		d.Nack(false, true)
	default:
		c.logger.Error("finding cannot be resolved", "kind", string(f.Kind), "owner_id", f.OwnerID, "error", err)
		d.Reject(false)
	}
}

func (c *Consumer) Close() error {
	c.ch.Close()
	return c.conn.Close()
}
