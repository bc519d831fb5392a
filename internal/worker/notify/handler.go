package notify

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/greenlane/marketdesk/internal/config"
	"github.com/greenlane/marketdesk/internal/messaging"
	"github.com/greenlane/marketdesk/internal/notify"
	"github.com/greenlane/marketdesk/internal/worker"
)

var workerTracer = otel.Tracer("github.com/greenlane/marketdesk/worker/notify")

// Module registers the approval-notification delivery handler.
var Module = fx.Module("worker_notify",
	fx.Provide(
		fx.Annotate(
			NewDeliveryHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewDeliveryHandler consumes queued approval notifications and hands
// them to the delivery channel. Delivery here is a structured log; a
// mail or push integration would slot in at the same point.
func NewDeliveryHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.notify.deliver", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var n notify.Notification
		if err := json.Unmarshal(msg.Value, &n); err != nil {
			logger.Error("failed to decode notification", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		logger.Info("approval notification delivered",
			zap.Int64("user_id", n.UserID),
			zap.String("entity_type", string(n.EntityType)),
			zap.String("entity_name", n.EntityName),
			zap.String("new_status", n.NewStatus),
		)

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.NotificationsTopic,
		Handler: handler,
	}
}
