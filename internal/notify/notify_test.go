package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/greenlane/marketdesk/internal/config"
	"github.com/greenlane/marketdesk/internal/entity"
	"github.com/greenlane/marketdesk/internal/messaging"
)

type capturingClient struct {
	topic string
	key   []byte
	value []byte
	err   error
}

func (c *capturingClient) Publish(_ context.Context, topic string, key, value []byte) error {
	c.topic, c.key, c.value = topic, key, value
	return c.err
}

func (c *capturingClient) Consume(context.Context, messaging.Handler) error { return nil }

func (c *capturingClient) Topics() []string { return nil }

func testConfig() config.Config {
	var cfg config.Config
	cfg.Messaging.Kafka.NotificationsTopic = "test.notifications"
	return cfg
}

func TestApprovalResultPublishes(t *testing.T) {
	client := &capturingClient{}
	d := NewDispatcher(client, testConfig(), zap.NewNop())

	d.ApprovalResult(context.Background(), Notification{
		UserID:     42,
		EntityType: entity.TypeVendor,
		EntityName: "Green Acres",
		NewStatus:  "approved",
	})

	assert.Equal(t, "test.notifications", client.topic)
	assert.Equal(t, "user-42", string(client.key))

	var got Notification
	require.NoError(t, json.Unmarshal(client.value, &got))
	assert.Equal(t, int64(42), got.UserID)
	assert.Equal(t, "approved", got.NewStatus)
	assert.Empty(t, got.Reason)
}

func TestApprovalResultSwallowsPublishErrors(t *testing.T) {
	client := &capturingClient{err: errors.New("broker down")}
	d := NewDispatcher(client, testConfig(), zap.NewNop())

	// Must not panic or propagate; delivery is best effort.
	d.ApprovalResult(context.Background(), Notification{UserID: 1})
}
