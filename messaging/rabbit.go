package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"github.com/arbiterhq/arbiter/registry"
)

// RabbitConfig configures the RabbitMQ-backed broker.
type RabbitConfig struct {
	// URL is the AMQP connection URL
	URL string

	// QueuePrefix namespaces the declared queues; one durable queue is
	// declared per subscribed component (prefix + component name)
	QueuePrefix string
}

// RabbitBroker carries processing messages over RabbitMQ. Each subscribed
// component gets a durable queue named after it; messages are published to
// the default exchange with the target component's queue as routing key.
type RabbitBroker struct {
	connection AMQPConnection
	channel    AMQPChannel
	config     RabbitConfig
	log        *logrus.Entry

	mu        sync.Mutex
	consumers map[string]struct{}
	closed    bool
	wg        sync.WaitGroup
	done      chan struct{}
}

// NewRabbitBroker connects to RabbitMQ using the real AMQP dialer.
func NewRabbitBroker(config RabbitConfig, log *logrus.Entry) (*RabbitBroker, error) {
	return NewRabbitBrokerWithDialer(config, &RealAMQPDialer{}, log)
}

// NewRabbitBrokerWithDialer connects using an injected dialer, allowing
// tests to substitute mocks.
func NewRabbitBrokerWithDialer(config RabbitConfig, dialer AMQPDialer, log *logrus.Entry) (*RabbitBroker, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	conn, err := dialer.Dial(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if config.QueuePrefix == "" {
		config.QueuePrefix = "arbiter."
	}

	return &RabbitBroker{
		connection: conn,
		channel:    ch,
		config:     config,
		log:        log.WithField("component", "rabbit-broker"),
		consumers:  make(map[string]struct{}),
		done:       make(chan struct{}),
	}, nil
}

func (b *RabbitBroker) queueName(component string) string {
	return b.config.QueuePrefix + component
}

// Publish serializes the message to JSON and publishes it to its target's
// queue. Messages without a target are dropped with a debug log.
func (b *RabbitBroker) Publish(ctx context.Context, msg *ProcessingMessage) error {
	if msg.Target == nil {
		b.log.WithField("message_id", msg.MessageID).Debug("Dropping message without target")
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	queue := b.queueName(msg.Target.ComponentName)

	// Declare the queue as durable so it survives server restarts.
	if _, err := b.channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	err = b.channel.Publish(
		"",    // exchange (default)
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: msg.ParentMessageID,
			MessageId:     msg.MessageID,
			Body:          body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	b.log.WithFields(logrus.Fields{
		"message_id": msg.MessageID,
		"type":       msg.Type,
		"queue":      queue,
	}).Debug("Published message")
	return nil
}

// Subscribe declares the component's durable queue and starts a consumer
// goroutine dispatching deliveries to the handler.
func (b *RabbitBroker) Subscribe(id registry.ModuleIdentifier, handler Handler) error {
	queue := b.queueName(id.ComponentName)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("broker is closed")
	}
	if _, ok := b.consumers[queue]; ok {
		b.mu.Unlock()
		return fmt.Errorf("component %q already has a consumer", id.ComponentName)
	}
	b.consumers[queue] = struct{}{}
	b.mu.Unlock()

	if _, err := b.channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	deliveries, err := b.channel.Consume(queue, id.InstanceID, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume from queue %s: %w", queue, err)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-b.done:
				return
			case delivery, ok := <-deliveries:
				if !ok {
					return
				}
				msg, err := ParseMessage(delivery.Body)
				if err != nil {
					b.log.WithError(err).Warn("Failed to parse delivery")
					continue
				}
				handler(msg)
			}
		}
	}()

	b.log.WithField("queue", queue).Info("Subscribed consumer")
	return nil
}

// Close shuts down consumers, the channel and the connection.
func (b *RabbitBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	close(b.done)

	if b.channel != nil {
		b.channel.Close()
	}
	if b.connection != nil {
		b.connection.Close()
	}
	b.wg.Wait()
	return nil
}
