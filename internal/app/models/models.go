package models

// RoleType defines the user role type
type RoleType string

const (
	RoleFamily     RoleType = "FAMILY"
	RoleAdmin      RoleType = "ADMIN"
	RoleSuperAdmin RoleType = "SUPERADMIN"
)

// Status is the top-level lifecycle status of an application.
type Status string

const (
	StatusApplicant Status = "APPLICANT"
	StatusCamper    Status = "CAMPER"
	StatusInactive  Status = "INACTIVE"
)

// SubStatus refines Status. Which sub-statuses are valid under which status
// is enforced by the lifecycle package; the two are always read and written
// together as a pair.
type SubStatus string

const (
	SubStatusNotStarted  SubStatus = "NOT_STARTED"
	SubStatusIncomplete  SubStatus = "INCOMPLETE"
	SubStatusComplete    SubStatus = "COMPLETE"
	SubStatusUnderReview SubStatus = "UNDER_REVIEW"
	SubStatusWaitlist    SubStatus = "WAITLIST"
	SubStatusWithdrawn   SubStatus = "WITHDRAWN"
	SubStatusDeferred    SubStatus = "DEFERRED"
	SubStatusRejected    SubStatus = "REJECTED"
	SubStatusDeactivated SubStatus = "DEACTIVATED"
)

// TriggerType distinguishes event-driven from clock-driven automations.
type TriggerType string

const (
	TriggerTypeEvent     TriggerType = "EVENT"
	TriggerTypeScheduled TriggerType = "SCHEDULED"
)

// DeliveryStatus is the outcome recorded for a single notification job.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "PENDING"
	DeliverySent    DeliveryStatus = "SENT"
	DeliveryFailed  DeliveryStatus = "FAILED"
)
