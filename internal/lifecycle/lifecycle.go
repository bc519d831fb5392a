package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/greenlane/marketdesk/internal/entity"
)

// FieldChange records one watched field moving from an old to a new value.
type FieldChange struct {
	Field string
	Old   string
	New   string
}

// Compare appends a change when the value actually differs.
func Compare(changes []FieldChange, field, oldVal, newVal string) []FieldChange {
	if oldVal == newVal {
		return changes
	}
	return append(changes, FieldChange{Field: field, Old: oldVal, New: newVal})
}

// Describe renders the audit description for a non-empty change set.
func Describe(changes []FieldChange) string {
	parts := make([]string, 0, len(changes))
	for _, ch := range changes {
		parts = append(parts, fmt.Sprintf("%s changed from '%s' to '%s'", ch.Field, ch.Old, ch.New))
	}
	return strings.Join(parts, "; ")
}

// Metadata renders the change set as audit metadata.
func Metadata(changes []FieldChange) map[string]any {
	fields := make([]string, 0, len(changes))
	for _, ch := range changes {
		fields = append(fields, ch.Field)
	}
	return map[string]any{"changed_fields": fields}
}

// Touch stamps an update by the given actor.
func Touch(m *entity.AdminMeta, actorID int64, now time.Time) {
	m.UpdatedBy = &actorID
	m.UpdatedAt = now
}

// MarkDeleted applies the soft-delete field set. A deleted entity is always
// inactive.
func MarkDeleted(m *entity.AdminMeta, actorID int64, now time.Time) {
	m.IsDeleted = true
	m.IsActive = false
	m.DeletedAt = &now
	m.DeletedBy = &actorID
	m.UpdatedAt = now
	m.UpdatedBy = &actorID
}

// MarkDeactivated suspends the entity without deleting it.
func MarkDeactivated(m *entity.AdminMeta, actorID int64, reason string, now time.Time) {
	m.IsActive = false
	m.StatusUpdatedBy = &actorID
	m.StatusUpdatedAt = &now
	if reason != "" {
		m.AdminNotes = reason
	}
	m.UpdatedAt = now
	m.UpdatedBy = &actorID
}

// MarkReactivated flips the entity back to active. It never touches
// IsDeleted: reactivating a soft-deleted entity is not supported.
func MarkReactivated(m *entity.AdminMeta, actorID int64, now time.Time) {
	m.IsActive = true
	m.StatusUpdatedBy = &actorID
	m.StatusUpdatedAt = &now
	m.UpdatedAt = now
	m.UpdatedBy = &actorID
}
