package messaging

import (
	"context"
	"fmt"
	"sync"

	"github.com/arbiterhq/arbiter/registry"
)

// Handler processes a delivered message. Handlers must not block for long;
// delivery is at-least-once and fire-and-forget from the publisher's view.
type Handler func(msg *ProcessingMessage)

// Broker moves processing messages between modules. Publishing is
// fire-and-forget unless the message sets RequiresResponse, in which case the
// caller awaits a reply correlated by ParentMessageID (see ReplyRouter).
type Broker interface {
	// Publish delivers the message to the subscribers of its target.
	Publish(ctx context.Context, msg *ProcessingMessage) error

	// Subscribe registers a handler for messages targeting the given
	// module identifier's component.
	Subscribe(id registry.ModuleIdentifier, handler Handler) error

	// Close releases broker resources.
	Close() error
}

// ReplyRouter correlates replies to outstanding requests by
// ParentMessageID. One router subscribes once for its owning module and fans
// replies out to waiting callers.
type ReplyRouter struct {
	mu      sync.Mutex
	waiting map[string]chan *ProcessingMessage
}

// NewReplyRouter creates a router and subscribes it on the broker under the
// given identifier.
func NewReplyRouter(broker Broker, self registry.ModuleIdentifier) (*ReplyRouter, error) {
	r := &ReplyRouter{
		waiting: make(map[string]chan *ProcessingMessage),
	}
	if err := broker.Subscribe(self, r.route); err != nil {
		return nil, fmt.Errorf("failed to subscribe reply router: %w", err)
	}
	return r, nil
}

func (r *ReplyRouter) route(msg *ProcessingMessage) {
	if msg.ParentMessageID == "" {
		return
	}
	r.mu.Lock()
	ch, ok := r.waiting[msg.ParentMessageID]
	if ok {
		delete(r.waiting, msg.ParentMessageID)
	}
	r.mu.Unlock()

	if ok {
		ch <- msg
	}
}

// Await blocks until a reply to the given request message ID arrives or the
// context is done.
func (r *ReplyRouter) Await(ctx context.Context, requestID string) (*ProcessingMessage, error) {
	ch := make(chan *ProcessingMessage, 1)

	r.mu.Lock()
	r.waiting[requestID] = ch
	r.mu.Unlock()

	select {
	case msg := <-ch:
		return msg, nil
	case <-ctx.Done():
		r.mu.Lock()
		delete(r.waiting, requestID)
		r.mu.Unlock()
		return nil, fmt.Errorf("awaiting reply to %s: %w", requestID, ctx.Err())
	}
}
