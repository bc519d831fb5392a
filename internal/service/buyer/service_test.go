package buyer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenlane/marketdesk/internal/entity"
)

type fakeStaff struct {
	users   []*entity.User
	updated []*entity.User
}

func (f *fakeStaff) Update(_ context.Context, u *entity.User) error {
	f.updated = append(f.updated, u)
	return nil
}

func (f *fakeStaff) LinkedTo(context.Context, entity.EntityType, int64) ([]*entity.User, error) {
	return f.users, nil
}

func TestCascadeDeleteSoftDeletesStaff(t *testing.T) {
	staff := &fakeStaff{users: []*entity.User{
		{ID: 1, Role: entity.RoleBuyerStaff, AdminMeta: entity.AdminMeta{IsActive: true}},
		{ID: 2, Role: entity.RoleBuyerStaff, AdminMeta: entity.AdminMeta{IsActive: false}},
	}}
	svc := &Service{users: staff}

	now := time.Now().UTC()
	touched, err := svc.cascadeDelete(context.Background(), 20, 5, now)
	require.NoError(t, err)

	assert.Equal(t, 2, touched, "inactive accounts are still soft-deleted")
	for _, u := range staff.updated {
		assert.True(t, u.IsDeleted)
		assert.False(t, u.IsActive)
		require.NotNil(t, u.DeletedAt)
	}
}

func TestCascadeStatusOnlyFlipsActivation(t *testing.T) {
	staff := &fakeStaff{users: []*entity.User{
		{ID: 1, Role: entity.RoleBuyerStaff, AdminMeta: entity.AdminMeta{IsActive: true}},
	}}
	svc := &Service{users: staff}

	touched, err := svc.cascadeStatus(context.Background(), 20, false, 5, time.Now().UTC())
	require.NoError(t, err)

	assert.Equal(t, 1, touched)
	assert.False(t, staff.updated[0].IsActive)
	assert.False(t, staff.updated[0].IsDeleted, "deactivation never deletes accounts")
}
