package models

import "time"

// Audit actions recorded by this core. The list is open-ended; these are the
// ones the portal itself writes.
const (
	AuditActionTransition         = "transition"
	AuditActionTransitionRejected = "transition_rejected"
	AuditActionResponseSaved      = "response_saved"
	AuditActionPaymentRecorded    = "payment_recorded"
	AuditActionAnnualReset        = "annual_reset"
	AuditActionCreated            = "created"
	AuditActionUpdated            = "updated"
	AuditActionDeactivated        = "deactivated"
	AuditActionDeleted            = "deleted"
	AuditActionAutomationRun      = "automation_run"
)

// Entity types that appear in the audit log.
const (
	EntityApplication = "application"
	EntitySection     = "section"
	EntityQuestion    = "question"
	EntityAutomation  = "email_automation"
	EntitySystem      = "system"
)

// AuditLogEntry is an append-only record of a state-changing action. Entries
// are written in the same transaction as the mutation they describe and are
// never updated or deleted afterwards. ActorID is nil for system actions
// (scheduler, annual reset).
type AuditLogEntry struct {
	ID         int64          `json:"id"`
	EntityType string         `json:"entityType"`
	EntityID   int64          `json:"entityId"`
	Action     string         `json:"action"`
	ActorID    *int64         `json:"actorId,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	IPAddress  string         `json:"ipAddress,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`

	// Category and Severity are derived at read time from static lookup
	// tables, never stored, so the classification can change without
	// migrating history.
	Category string `json:"category,omitempty"`
	Severity string `json:"severity,omitempty"`
}
