package audit

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/greenlane/marketdesk/internal/database"
	"github.com/greenlane/marketdesk/internal/entity"
)

var tracer = otel.Tracer("github.com/greenlane/marketdesk/audit")

var writeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "marketdesk_audit_write_failures_total",
	Help: "Audit log writes that failed after the primary mutation committed.",
}, []string{"entity_type"})

var adminActions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "marketdesk_admin_actions_total",
	Help: "Administrative mutations recorded, by entity type.",
}, []string{"entity_type"})

// Recorder appends administrative actions to the audit log. The core only
// writes entries; read paths belong to reporting.
type Recorder interface {
	// Log appends one entry, participating in any ambient transaction.
	Log(ctx context.Context, e *entity.AuditLog) error
	// BestEffort appends one entry outside any transaction. Failures are
	// surfaced through the error log and a counter, never to the caller:
	// the primary mutation has already committed.
	BestEffort(ctx context.Context, e *entity.AuditLog)
}

// Trail is the bun-backed Recorder.
type Trail struct {
	db     database.TxRunner
	logger *zap.Logger
}

// Module provides the audit trail to Fx.
var Module = fx.Provide(
	NewTrail,
	func(t *Trail) Recorder { return t },
)

// NewTrail constructs a Trail writing through the shared connections.
func NewTrail(conns *database.Connections, logger *zap.Logger) *Trail {
	return &Trail{db: conns, logger: logger}
}

// Log appends one audit entry. When ctx carries a transaction the write
// joins it, so composite operations commit the entry atomically with the
// primary mutation.
func (t *Trail) Log(ctx context.Context, e *entity.AuditLog) error {
	if e == nil {
		return errors.New("nil audit entry")
	}
	ctx, span := tracer.Start(ctx, "AuditTrail.Log", trace.WithAttributes(
		attribute.String("audit.action", e.Action),
		attribute.String("audit.entity_type", string(e.EntityType)),
	))
	defer span.End()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if _, err := t.db.DB(ctx).NewInsert().Model(e).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	adminActions.WithLabelValues(string(e.EntityType)).Inc()
	return nil
}

// BestEffort appends one audit entry after the primary mutation has
// committed. A failure here must not fail the operation, but it is never
// dropped silently.
func (t *Trail) BestEffort(ctx context.Context, e *entity.AuditLog) {
	if err := t.Log(ctx, e); err != nil {
		writeFailures.WithLabelValues(string(e.EntityType)).Inc()
		if t.logger != nil {
			t.logger.Error("audit write failed after commit",
				zap.String("action", e.Action),
				zap.String("entity_type", string(e.EntityType)),
				zap.Int64("entity_id", e.EntityID),
				zap.Error(err),
			)
		}
	}
}
