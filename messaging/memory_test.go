package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBroker_PublishSubscribe(t *testing.T) {
	broker := NewMemoryBroker(nil)
	defer broker.Close()

	tracker := testIdentifier("tracker")
	received := make(chan *ProcessingMessage, 1)
	require.NoError(t, broker.Subscribe(tracker, func(msg *ProcessingMessage) {
		received <- msg
	}))

	msg := NewMessage(testIdentifier("pipeline"), MessageTypeStatusUpdate).WithTarget(tracker)
	require.NoError(t, broker.Publish(context.Background(), msg))

	select {
	case got := <-received:
		assert.Equal(t, msg.MessageID, got.MessageID)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestMemoryBroker_NoTargetIsDropped(t *testing.T) {
	broker := NewMemoryBroker(nil)
	defer broker.Close()

	msg := NewMessage(testIdentifier("pipeline"), MessageTypeInfo)
	assert.NoError(t, broker.Publish(context.Background(), msg))
}

func TestMemoryBroker_NoSubscribers(t *testing.T) {
	broker := NewMemoryBroker(nil)
	defer broker.Close()

	msg := NewMessage(testIdentifier("pipeline"), MessageTypeInfo).WithTarget(testIdentifier("nobody"))
	assert.NoError(t, broker.Publish(context.Background(), msg))
}

func TestMemoryBroker_ClosedRejectsPublish(t *testing.T) {
	broker := NewMemoryBroker(nil)
	require.NoError(t, broker.Close())

	msg := NewMessage(testIdentifier("pipeline"), MessageTypeInfo).WithTarget(testIdentifier("tracker"))
	assert.Error(t, broker.Publish(context.Background(), msg))
	assert.Error(t, broker.Subscribe(testIdentifier("tracker"), func(*ProcessingMessage) {}))
}

func TestReplyRouter_AwaitCorrelatedReply(t *testing.T) {
	broker := NewMemoryBroker(nil)
	defer broker.Close()

	requester := testIdentifier("pipeline")
	responder := testIdentifier("validator")

	router, err := NewReplyRouter(broker, requester)
	require.NoError(t, err)

	// Responder echoes a decision back to whoever asked.
	require.NoError(t, broker.Subscribe(responder, func(msg *ProcessingMessage) {
		reply := msg.Reply(responder, MessageTypeDecision)
		_ = broker.Publish(context.Background(), reply)
	}))

	request := NewMessage(requester, MessageTypeRecommendation).WithTarget(responder)
	request.RequiresResponse = true
	require.NoError(t, broker.Publish(context.Background(), request))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reply, err := router.Await(ctx, request.MessageID)
	require.NoError(t, err)
	assert.Equal(t, request.MessageID, reply.ParentMessageID)
	assert.Equal(t, MessageTypeDecision, reply.Type)
}

func TestReplyRouter_AwaitTimeout(t *testing.T) {
	broker := NewMemoryBroker(nil)
	defer broker.Close()

	router, err := NewReplyRouter(broker, testIdentifier("pipeline"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = router.Await(ctx, "never-answered")
	assert.Error(t, err)
}
