package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenlane/marketdesk/internal/entity"
)

func TestCompare(t *testing.T) {
	var changes []FieldChange
	changes = Compare(changes, "name", "old", "new")
	changes = Compare(changes, "city", "same", "same")
	changes = Compare(changes, "address", "", "1 Main St")

	require.Len(t, changes, 2)
	assert.Equal(t, "name", changes[0].Field)
	assert.Equal(t, "address", changes[1].Field)
}

func TestDescribe(t *testing.T) {
	changes := []FieldChange{
		{Field: "name", Old: "A", New: "B"},
		{Field: "city", Old: "X", New: "Y"},
	}
	assert.Equal(t, "name changed from 'A' to 'B'; city changed from 'X' to 'Y'", Describe(changes))
}

func TestMetadata(t *testing.T) {
	changes := []FieldChange{{Field: "name"}, {Field: "city"}}
	meta := Metadata(changes)
	assert.Equal(t, []string{"name", "city"}, meta["changed_fields"])
}

func TestMarkDeleted(t *testing.T) {
	now := time.Now().UTC()
	m := &entity.AdminMeta{IsActive: true}

	MarkDeleted(m, 7, now)

	assert.True(t, m.IsDeleted)
	assert.False(t, m.IsActive, "deleted entity must also be inactive")
	require.NotNil(t, m.DeletedAt)
	assert.Equal(t, now, *m.DeletedAt)
	require.NotNil(t, m.DeletedBy)
	assert.Equal(t, int64(7), *m.DeletedBy)
}

func TestMarkDeactivated(t *testing.T) {
	now := time.Now().UTC()

	t.Run("records reason and status stamp", func(t *testing.T) {
		m := &entity.AdminMeta{IsActive: true}
		MarkDeactivated(m, 3, "license expired", now)

		assert.False(t, m.IsActive)
		assert.False(t, m.IsDeleted)
		assert.Equal(t, "license expired", m.AdminNotes)
		require.NotNil(t, m.StatusUpdatedBy)
		assert.Equal(t, int64(3), *m.StatusUpdatedBy)
	})

	t.Run("empty reason keeps existing notes", func(t *testing.T) {
		m := &entity.AdminMeta{IsActive: true, AdminNotes: "prior"}
		MarkDeactivated(m, 3, "", now)
		assert.Equal(t, "prior", m.AdminNotes)
	})
}

func TestMarkReactivated(t *testing.T) {
	now := time.Now().UTC()
	m := &entity.AdminMeta{IsDeleted: true}

	MarkReactivated(m, 5, now)

	assert.True(t, m.IsActive)
	assert.True(t, m.IsDeleted, "reactivation never clears the deleted flag")
}

func TestTouch(t *testing.T) {
	now := time.Now().UTC()
	m := &entity.AdminMeta{}
	Touch(m, 9, now)

	require.NotNil(t, m.UpdatedBy)
	assert.Equal(t, int64(9), *m.UpdatedBy)
	assert.Equal(t, now, m.UpdatedAt)
}
