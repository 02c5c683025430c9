package dto

import "time"

// AuditQueryRequest filters the audit log listing.
type AuditQueryRequest struct {
	EntityType string     `form:"entityType"`
	Action     string     `form:"action"`
	ActorID    *int64     `form:"actorId"`
	From       *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To         *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit      int        `form:"limit"`
	Offset     int        `form:"offset"`
}
