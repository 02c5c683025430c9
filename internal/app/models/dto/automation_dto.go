package dto

import (
	"github.com/tallpines/campreg/internal/app/audience"
	"github.com/tallpines/campreg/internal/app/models"
)

// AutomationRequest creates or updates an email automation.
type AutomationRequest struct {
	Name           string          `json:"name" binding:"required"`
	TemplateKey    string          `json:"templateKey" binding:"required"`
	TriggerType    string          `json:"triggerType" binding:"required" example:"EVENT"`
	TriggerEvent   *string         `json:"triggerEvent"`
	ScheduleDay    *int            `json:"scheduleDay"`
	ScheduleHour   *int            `json:"scheduleHour"`
	AudienceFilter audience.Filter `json:"audienceFilter"`
	IsActive       bool            `json:"isActive"`
}

// ToModel maps the request onto the persistence model.
func (r *AutomationRequest) ToModel() *models.EmailAutomation {
	return &models.EmailAutomation{
		Name:           r.Name,
		TemplateKey:    r.TemplateKey,
		TriggerType:    models.TriggerType(r.TriggerType),
		TriggerEvent:   r.TriggerEvent,
		ScheduleDay:    r.ScheduleDay,
		ScheduleHour:   r.ScheduleHour,
		AudienceFilter: r.AudienceFilter,
		IsActive:       r.IsActive,
	}
}

// RunAutomationRequest triggers a manual automation run.
type RunAutomationRequest struct {
	Force bool `json:"force"`
}

// RunAutomationResponse reports the outcome of a manual run.
type RunAutomationResponse struct {
	Sent int `json:"sent"`
}
