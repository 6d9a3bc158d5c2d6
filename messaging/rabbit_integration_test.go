//go:build integration

package messaging

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRabbitMQContainer starts a RabbitMQ container for testing.
func setupRabbitMQContainer(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.13-management-alpine",
		ExposedPorts: []string{"5672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": "guest",
			"RABBITMQ_DEFAULT_PASS": "guest",
		},
		WaitingFor: wait.ForLog("Server startup complete").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Failed to start RabbitMQ container")

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5672")
	require.NoError(t, err)

	url := fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return url, cleanup
}

func TestRabbitBroker_Integration_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	url, cleanup := setupRabbitMQContainer(t)
	defer cleanup()

	broker, err := NewRabbitBroker(RabbitConfig{URL: url, QueuePrefix: "it."}, nil)
	require.NoError(t, err)
	defer broker.Close()

	tracker := testIdentifier("tracker")
	received := make(chan *ProcessingMessage, 1)
	require.NoError(t, broker.Subscribe(tracker, func(msg *ProcessingMessage) {
		received <- msg
	}))

	msg := NewMessage(testIdentifier("pipeline"), MessageTypeDecision).WithTarget(tracker)
	require.NoError(t, msg.SetContent(DecisionPayload{PipelineID: "p1", ItemID: "i1", Score: 0.9}))
	require.NoError(t, broker.Publish(context.Background(), msg))

	select {
	case got := <-received:
		assert.Equal(t, msg.MessageID, got.MessageID)
		payload, err := got.GetDecisionPayload()
		require.NoError(t, err)
		assert.Equal(t, "i1", payload.ItemID)
	case <-time.After(10 * time.Second):
		t.Fatal("message not delivered through RabbitMQ")
	}
}
