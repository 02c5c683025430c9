package models

import "time"

// User is the account behind an application. Authentication itself is
// delegated to the identity provider; this record only carries the profile
// fields the portal needs for audit attribution and audience filtering.
type User struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"externalId"` // subject issued by the identity provider
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	RoleType   RoleType  `json:"roleType"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
}

// FullName returns the display name used in notification variables.
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
