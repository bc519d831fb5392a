package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/greenlane/marketdesk/internal/config"
	"github.com/greenlane/marketdesk/internal/entity"
	"github.com/greenlane/marketdesk/internal/messaging"
)

// Notification carries an approval-result message for one user account.
// Reason explains rejections; it is optional otherwise.
type Notification struct {
	UserID     int64             `json:"user_id"`
	EntityType entity.EntityType `json:"entity_type"`
	EntityName string            `json:"entity_name"`
	NewStatus  string            `json:"new_status"`
	Reason     string            `json:"reason,omitempty"`
}

// Dispatcher delivers notifications asynchronously. Delivery is best
// effort: failures are logged and swallowed, never escalated to the
// business operation that triggered them.
type Dispatcher interface {
	ApprovalResult(ctx context.Context, n Notification)
}

// Module provides the dispatcher to Fx.
var Module = fx.Provide(NewDispatcher)

// NewDispatcher wires a bus-backed dispatcher.
func NewDispatcher(client messaging.Client, cfg config.Config, logger *zap.Logger) Dispatcher {
	return &busDispatcher{
		client: client,
		topic:  cfg.Messaging.Kafka.NotificationsTopic,
		logger: logger,
	}
}

type busDispatcher struct {
	client messaging.Client
	topic  string
	logger *zap.Logger
}

func (d *busDispatcher) ApprovalResult(ctx context.Context, n Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		d.logger.Error("marshal notification", zap.Error(err))
		return
	}
	key := []byte(fmt.Sprintf("user-%d", n.UserID))
	if err := d.client.Publish(ctx, d.topic, key, payload); err != nil {
		d.logger.Warn("notification dispatch failed",
			zap.Int64("user_id", n.UserID),
			zap.String("entity_type", string(n.EntityType)),
			zap.Error(err),
		)
	}
}
