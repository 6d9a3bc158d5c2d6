package messaging

import (
	"github.com/streadway/amqp"
)

// MockAMQPConnection is a mock implementation of AMQPConnection for testing.
type MockAMQPConnection struct {
	// MockChannel is the channel to return from Channel()
	MockChannel AMQPChannel
	// Errors to return from operations
	ChannelErr error
	CloseErr   error
	// Track function calls
	ChannelCalled bool
	CloseCalled   bool
}

// Channel returns the mock channel.
func (m *MockAMQPConnection) Channel() (AMQPChannel, error) {
	m.ChannelCalled = true
	if m.ChannelErr != nil {
		return nil, m.ChannelErr
	}
	return m.MockChannel, nil
}

// Close mocks closing the connection.
func (m *MockAMQPConnection) Close() error {
	m.CloseCalled = true
	return m.CloseErr
}

// MockAMQPChannel is a mock implementation of AMQPChannel for testing.
type MockAMQPChannel struct {
	// PublishedMessages stores all published messages for verification
	PublishedMessages []amqp.Publishing
	// PublishedKeys stores routing keys for published messages
	PublishedKeys []string
	// Deliveries is returned from Consume when set
	Deliveries chan amqp.Delivery
	// Errors to return from operations
	QueueDeclareErr error
	PublishErr      error
	ConsumeErr      error
	CloseErr        error
	// Track function calls
	QueueDeclareCalled bool
	PublishCalled      bool
	ConsumeCalled      bool
	CloseCalled        bool
	// Store last call parameters
	LastQueueName string
	LastExchange  string
	LastKey       string
}

// QueueDeclare mocks declaring a queue.
func (m *MockAMQPChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	m.QueueDeclareCalled = true
	m.LastQueueName = name
	if m.QueueDeclareErr != nil {
		return amqp.Queue{}, m.QueueDeclareErr
	}
	return amqp.Queue{Name: name}, nil
}

// Publish mocks publishing a message.
func (m *MockAMQPChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	m.PublishCalled = true
	m.LastExchange = exchange
	m.LastKey = key
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.PublishedMessages = append(m.PublishedMessages, msg)
	m.PublishedKeys = append(m.PublishedKeys, key)
	return nil
}

// Consume mocks consuming from a queue.
func (m *MockAMQPChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	m.ConsumeCalled = true
	m.LastQueueName = queue
	if m.ConsumeErr != nil {
		return nil, m.ConsumeErr
	}
	if m.Deliveries == nil {
		m.Deliveries = make(chan amqp.Delivery)
	}
	return m.Deliveries, nil
}

// Close mocks closing the channel.
func (m *MockAMQPChannel) Close() error {
	m.CloseCalled = true
	return m.CloseErr
}

// MockAMQPDialer returns a predefined connection or error.
type MockAMQPDialer struct {
	MockConnection AMQPConnection
	DialErr        error
	DialCalled     bool
	LastURL        string
}

// Dial returns the mock connection.
func (m *MockAMQPDialer) Dial(url string) (AMQPConnection, error) {
	m.DialCalled = true
	m.LastURL = url
	if m.DialErr != nil {
		return nil, m.DialErr
	}
	return m.MockConnection, nil
}
