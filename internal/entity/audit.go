package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// AuditSeverity grades how consequential an administrative action was.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// AuditImpact grades the blast radius of an administrative action.
type AuditImpact string

const (
	ImpactMinor       AuditImpact = "minor"
	ImpactModerate    AuditImpact = "moderate"
	ImpactSignificant AuditImpact = "significant"
)

// AuditLog is one immutable record of an administrative action. Entries are
// write-once; application logic never updates or deletes them.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs"`

	ID          int64          `bun:",pk,autoincrement" json:"id"`
	ActorID     int64          `bun:"actor_id,notnull" json:"actor_id"`
	ActorRole   string         `bun:"actor_role,notnull" json:"actor_role"`
	Action      string         `bun:"action,notnull" json:"action"`
	EntityType  EntityType     `bun:"entity_type,notnull" json:"entity_type"`
	EntityID    int64          `bun:"entity_id,notnull" json:"entity_id"`
	Description string         `bun:"description" json:"description"`
	Reason      string         `bun:"reason" json:"reason,omitempty"`
	Severity    AuditSeverity  `bun:"severity,notnull" json:"severity"`
	Impact      AuditImpact    `bun:"impact,notnull" json:"impact"`
	Metadata    map[string]any `bun:"metadata,type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time      `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
}
