package models

import "time"

// Application is one camper registration attempt. Status and SubStatus are
// only ever changed through the lifecycle state machine; the milestone
// timestamps record the first time each sub-status was reached and are never
// overwritten on re-entry.
type Application struct {
	ID                   int64     `json:"id"`
	UserID               int64     `json:"userId"`
	Status               Status    `json:"status"`
	SubStatus            SubStatus `json:"subStatus"`
	CompletionPercentage int       `json:"completionPercentage"`
	IsReturning          bool      `json:"isReturning"`
	HasPaid              bool      `json:"hasPaid"`

	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	UnderReviewAt      *time.Time `json:"underReviewAt,omitempty"`
	PromotedToCamperAt *time.Time `json:"promotedToCamperAt,omitempty"`
	WaitlistedAt       *time.Time `json:"waitlistedAt,omitempty"`
	DeferredAt         *time.Time `json:"deferredAt,omitempty"`
	WithdrawnAt        *time.Time `json:"withdrawnAt,omitempty"`
	RejectedAt         *time.Time `json:"rejectedAt,omitempty"`
	PaidAt             *time.Time `json:"paidAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ApplicationWithOwner pairs an application with its owning user, the
// projection audience filters are evaluated against.
type ApplicationWithOwner struct {
	Application *Application `json:"application"`
	Owner       *User        `json:"owner"`
}
