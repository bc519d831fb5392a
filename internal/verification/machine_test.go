package verification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/greenlane/marketdesk/internal/actor"
	"github.com/greenlane/marketdesk/internal/entity"
	"github.com/greenlane/marketdesk/internal/notify"
	"github.com/greenlane/marketdesk/pkg/errorbank"
)

type stubTx struct{}

func (stubTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (stubTx) DB(ctx context.Context) bun.IDB { return nil }

type stubRecorder struct {
	entries []*entity.AuditLog
}

func (r *stubRecorder) Log(_ context.Context, e *entity.AuditLog) error {
	r.entries = append(r.entries, e)
	return nil
}

func (r *stubRecorder) BestEffort(ctx context.Context, e *entity.AuditLog) {
	_ = r.Log(ctx, e)
}

type stubDirectory struct {
	users []*entity.User
	err   error
}

func (d *stubDirectory) ActiveUsersFor(context.Context, entity.EntityType, int64) ([]*entity.User, error) {
	return d.users, d.err
}

type stubDispatcher struct {
	sent []notify.Notification
}

func (d *stubDispatcher) ApprovalResult(_ context.Context, n notify.Notification) {
	d.sent = append(d.sent, n)
}

func newTestMachine(dir *stubDirectory, rec *stubRecorder, disp *stubDispatcher) *Machine {
	return NewMachine(stubTx{}, rec, dir, disp, zap.NewNop())
}

func pendingVendor() *entity.Vendor {
	return &entity.Vendor{
		ID:           10,
		BusinessName: "Green Acres",
		Verification: entity.Verification{VerificationStatus: entity.VerificationPending},
		AdminMeta:    entity.AdminMeta{IsActive: true},
	}
}

func TestTransitionApprove(t *testing.T) {
	rec := &stubRecorder{}
	disp := &stubDispatcher{}
	dir := &stubDirectory{users: []*entity.User{{ID: 1}, {ID: 2}}}
	m := newTestMachine(dir, rec, disp)

	v := pendingVendor()
	v.AdminNotes = "awaiting docs"
	act := actor.Actor{ID: 99, Role: "admin"}

	persisted := false
	err := m.Transition(context.Background(), v, entity.VerificationApproved, act, "docs verified", func(context.Context) error {
		persisted = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, persisted)

	assert.Equal(t, entity.VerificationApproved, v.VerificationStatus)
	require.NotNil(t, v.VerificationDate)
	assert.Equal(t, "docs verified", v.AdminNotes)

	require.Len(t, rec.entries, 1)
	entry := rec.entries[0]
	assert.Equal(t, "vendor_verified", entry.Action)
	assert.Equal(t, entity.TypeVendor, entry.EntityType)
	assert.Equal(t, "awaiting docs", entry.Metadata["previous_notes"])
	assert.Equal(t, "pending", entry.Metadata["old_status"])
	assert.Equal(t, "approved", entry.Metadata["new_status"])

	require.Len(t, disp.sent, 2)
	assert.Equal(t, int64(1), disp.sent[0].UserID)
	assert.Equal(t, "approved", disp.sent[0].NewStatus)
}

func TestTransitionReasonRules(t *testing.T) {
	t.Run("rejecting requires a reason", func(t *testing.T) {
		m := newTestMachine(&stubDirectory{}, &stubRecorder{}, &stubDispatcher{})
		v := pendingVendor()

		err := m.Transition(context.Background(), v, entity.VerificationRejected, actor.Actor{ID: 1}, "  ", func(context.Context) error { return nil })

		var appErr *errorbank.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, errorbank.KindBadRequest, appErr.Kind())
		assert.Equal(t, entity.VerificationPending, v.VerificationStatus, "state untouched on validation failure")
	})

	t.Run("leaving approved requires a reason", func(t *testing.T) {
		m := newTestMachine(&stubDirectory{}, &stubRecorder{}, &stubDispatcher{})
		v := pendingVendor()
		v.VerificationStatus = entity.VerificationApproved

		err := m.Transition(context.Background(), v, entity.VerificationPending, actor.Actor{ID: 1}, "", func(context.Context) error { return nil })

		var appErr *errorbank.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, errorbank.KindBadRequest, appErr.Kind())
	})

	t.Run("approving needs no reason", func(t *testing.T) {
		m := newTestMachine(&stubDirectory{}, &stubRecorder{}, &stubDispatcher{})
		v := pendingVendor()

		err := m.Transition(context.Background(), v, entity.VerificationApproved, actor.Actor{ID: 1}, "", func(context.Context) error { return nil })
		require.NoError(t, err)
	})
}

func TestTransitionClearsVerificationDate(t *testing.T) {
	rec := &stubRecorder{}
	m := newTestMachine(&stubDirectory{}, rec, &stubDispatcher{})
	v := pendingVendor()
	v.VerificationStatus = entity.VerificationApproved
	now := v.CreatedAt
	v.VerificationDate = &now

	err := m.Transition(context.Background(), v, entity.VerificationRejected, actor.Actor{ID: 1}, "license revoked", func(context.Context) error { return nil })
	require.NoError(t, err)

	assert.Equal(t, entity.VerificationRejected, v.VerificationStatus)
	assert.Nil(t, v.VerificationDate, "verification date exists only while approved")
	assert.Equal(t, "vendor_verification_revoked", rec.entries[0].Action)
}

func TestTransitionDeletedSubject(t *testing.T) {
	m := newTestMachine(&stubDirectory{}, &stubRecorder{}, &stubDispatcher{})
	v := pendingVendor()
	v.IsDeleted = true

	err := m.Transition(context.Background(), v, entity.VerificationApproved, actor.Actor{ID: 1}, "", func(context.Context) error { return nil })

	var appErr *errorbank.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errorbank.KindConflict, appErr.Kind())
}

func TestTransitionPersistFailureSkipsNotifications(t *testing.T) {
	disp := &stubDispatcher{}
	m := newTestMachine(&stubDirectory{users: []*entity.User{{ID: 1}}}, &stubRecorder{}, disp)
	v := pendingVendor()

	boom := errors.New("write failed")
	err := m.Transition(context.Background(), v, entity.VerificationApproved, actor.Actor{ID: 1}, "", func(context.Context) error { return boom })

	require.ErrorIs(t, err, boom)
	assert.Empty(t, disp.sent)
}

func TestTransitionInvalidTarget(t *testing.T) {
	m := newTestMachine(&stubDirectory{}, &stubRecorder{}, &stubDispatcher{})
	err := m.Transition(context.Background(), pendingVendor(), entity.VerificationStatus("unknown"), actor.Actor{ID: 1}, "", func(context.Context) error { return nil })

	var appErr *errorbank.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errorbank.KindBadRequest, appErr.Kind())
}
