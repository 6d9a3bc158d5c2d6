package messaging

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/arbiterhq/arbiter/registry"
)

// MemoryBroker is an in-process broker used by tests and single-process
// deployments. Delivery is asynchronous: each handler runs in its own
// goroutine so a slow subscriber never blocks the publisher.
type MemoryBroker struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	closed   bool
	wg       sync.WaitGroup
	log      *logrus.Entry
}

// NewMemoryBroker creates an in-process broker.
func NewMemoryBroker(log *logrus.Entry) *MemoryBroker {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &MemoryBroker{
		handlers: make(map[string][]Handler),
		log:      log.WithField("component", "memory-broker"),
	}
}

// Subscribe registers a handler for the identifier's component name.
func (b *MemoryBroker) Subscribe(id registry.ModuleIdentifier, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("broker is closed")
	}
	b.handlers[id.ComponentName] = append(b.handlers[id.ComponentName], handler)
	return nil
}

// Publish delivers the message to all handlers subscribed for its target
// component. Messages without a target are logged and dropped; routing
// requires an address.
func (b *MemoryBroker) Publish(ctx context.Context, msg *ProcessingMessage) error {
	if msg.Target == nil {
		b.log.WithFields(logrus.Fields{
			"message_id": msg.MessageID,
			"type":       msg.Type,
		}).Debug("Dropping message without target")
		return nil
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("broker is closed")
	}
	handlers := make([]Handler, len(b.handlers[msg.Target.ComponentName]))
	copy(handlers, b.handlers[msg.Target.ComponentName])
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.WithFields(logrus.Fields{
			"message_id": msg.MessageID,
			"target":     msg.Target.ComponentName,
		}).Debug("No subscribers for target")
		return nil
	}

	for _, handler := range handlers {
		h := handler
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			h(msg)
		}()
	}
	return nil
}

// Close stops accepting messages and waits for in-flight deliveries.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
