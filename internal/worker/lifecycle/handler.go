package lifecycle

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
	"github.com/greenlane/marketdesk/internal/worker"
)

var workerTracer = otel.Tracer("github.com/greenlane/marketdesk/worker/lifecycle")

// Module registers the lifecycle event handler.
var Module = fx.Module("worker_lifecycle",
	fx.Provide(
		fx.Annotate(
			NewLifecycleHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// event is the common envelope every publisher on the lifecycle topic
// shares. Publisher-specific fields (order totals, market names) ride
// along untyped.
type event struct {
	ID     int64  `json:"id"`
	Action string `json:"action"`
}

// NewLifecycleHandler sets up a handler that records lifecycle events
// emitted by the entity services.
func NewLifecycleHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.lifecycle.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var ev event
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			logger.Error("failed to decode lifecycle event", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		logger.Info("lifecycle event processed",
			zap.Int64("id", ev.ID),
			zap.String("action", ev.Action),
			zap.ByteString("key", msg.Key),
		)

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.LifecycleTopic,
		Handler: handler,
	}
}
