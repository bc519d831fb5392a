package verification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/greenlane/marketdesk/internal/actor"
	"github.com/greenlane/marketdesk/internal/audit"
	"github.com/greenlane/marketdesk/internal/database"
	"github.com/greenlane/marketdesk/internal/entity"
	"github.com/greenlane/marketdesk/internal/notify"
	"github.com/greenlane/marketdesk/pkg/errorbank"
)

var tracer = otel.Tracer("github.com/greenlane/marketdesk/verification")

// Subject is a verifiable entity: currently vendors and buyers.
type Subject interface {
	Type() entity.EntityType
	EntityID() int64
	DisplayName() string
	Meta() *entity.AdminMeta
	State() *entity.Verification
}

// UserDirectory resolves the active user accounts linked to a subject, so
// transition effects can notify them.
type UserDirectory interface {
	ActiveUsersFor(ctx context.Context, entityType entity.EntityType, entityID int64) ([]*entity.User, error)
}

// Machine governs the pending/approved/rejected cycle shared by vendors
// and buyers. Any state may move to any other; a reason is mandatory when
// rejecting or when revoking an approval.
type Machine struct {
	tx         database.TxRunner
	recorder   audit.Recorder
	users      UserDirectory
	dispatcher notify.Dispatcher
	logger     *zap.Logger
}

// Module provides the verification machine to Fx.
var Module = fx.Provide(
	func(conns *database.Connections, recorder audit.Recorder, users UserDirectory, dispatcher notify.Dispatcher, logger *zap.Logger) *Machine {
		return NewMachine(conns, recorder, users, dispatcher, logger)
	},
)

// NewMachine constructs the shared verification machine.
func NewMachine(tx database.TxRunner, recorder audit.Recorder, users UserDirectory, dispatcher notify.Dispatcher, logger *zap.Logger) *Machine {
	return &Machine{
		tx:         tx,
		recorder:   recorder,
		users:      users,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// auditAction maps the target state to the recorded action name.
func auditAction(entityType entity.EntityType, target entity.VerificationStatus) string {
	switch target {
	case entity.VerificationApproved:
		return fmt.Sprintf("%s_verified", entityType)
	case entity.VerificationRejected:
		return fmt.Sprintf("%s_verification_revoked", entityType)
	default:
		return fmt.Sprintf("%s_status_reset", entityType)
	}
}

// Transition moves subject to the target state. The persist callback and
// the audit entry execute inside one transaction: validation failures leave
// no partial state. Notification dispatch runs after commit and is best
// effort.
func (m *Machine) Transition(ctx context.Context, subject Subject, target entity.VerificationStatus, act actor.Actor, reason string, persist func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "VerificationMachine.Transition", trace.WithAttributes(
		attribute.String("verification.entity_type", string(subject.Type())),
		attribute.Int64("verification.entity_id", subject.EntityID()),
		attribute.String("verification.target", string(target)),
	))
	defer span.End()

	if !target.Valid() {
		return errorbank.BadRequest(fmt.Sprintf("invalid verification status %q", target))
	}

	state := subject.State()
	meta := subject.Meta()
	old := state.VerificationStatus

	if meta.IsDeleted {
		return errorbank.Conflict("cannot update deleted entity")
	}

	needsReason := target == entity.VerificationRejected ||
		(old == entity.VerificationApproved && target != entity.VerificationApproved)
	if needsReason && strings.TrimSpace(reason) == "" {
		return errorbank.BadRequest("reason required")
	}

	linked, err := m.users.ActiveUsersFor(ctx, subject.Type(), subject.EntityID())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user lookup failed")
		return errorbank.Internal("failed to resolve linked users", errorbank.WithCause(err))
	}

	now := time.Now().UTC()
	previousNotes := meta.AdminNotes

	state.VerificationStatus = target
	if target == entity.VerificationApproved {
		state.VerificationDate = &now
	} else {
		state.VerificationDate = nil
	}
	meta.StatusUpdatedBy = &act.ID
	meta.StatusUpdatedAt = &now
	// AdminNotes is replaced wholesale; prior notes survive only in the
	// audit metadata below.
	meta.AdminNotes = reason
	meta.UpdatedAt = now
	meta.UpdatedBy = &act.ID

	entry := &entity.AuditLog{
		ActorID:    act.ID,
		ActorRole:  act.Role,
		Action:     auditAction(subject.Type(), target),
		EntityType: subject.Type(),
		EntityID:   subject.EntityID(),
		Description: fmt.Sprintf("%s %q verification changed from %s to %s",
			subject.Type(), subject.DisplayName(), old, target),
		Reason:   reason,
		Severity: entity.SeverityHigh,
		Impact:   entity.ImpactSignificant,
		Metadata: map[string]any{
			"old_status":     string(old),
			"new_status":     string(target),
			"active_users":   len(linked),
			"previous_notes": previousNotes,
		},
		CreatedAt: now,
	}

	err = m.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := persist(txCtx); err != nil {
			return err
		}
		return m.recorder.Log(txCtx, entry)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition failed")
		return err
	}

	for _, u := range linked {
		m.dispatcher.ApprovalResult(ctx, notify.Notification{
			UserID:     u.ID,
			EntityType: subject.Type(),
			EntityName: subject.DisplayName(),
			NewStatus:  string(target),
			Reason:     reason,
		})
	}

	return nil
}
