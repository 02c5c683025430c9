package models

import (
	"time"

	"github.com/tallpines/campreg/internal/app/audience"
)

// EmailAutomation binds a notification template to a trigger. Event-triggered
// automations fire when a lifecycle transition emits the matching event name;
// scheduled ones fire when the scheduler tick matches ScheduleDay and
// ScheduleHour. LastSentAt is only meaningful for scheduled automations and
// is the sole gate that keeps a rule from firing more than once per period.
type EmailAutomation struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	TemplateKey    string          `json:"templateKey"`
	TriggerType    TriggerType     `json:"triggerType"`
	TriggerEvent   *string         `json:"triggerEvent,omitempty"`
	ScheduleDay    *int            `json:"scheduleDay,omitempty"`  // 0 (Sunday) .. 6 (Saturday)
	ScheduleHour   *int            `json:"scheduleHour,omitempty"` // 0 .. 23
	AudienceFilter audience.Filter `json:"audienceFilter"`
	IsActive       bool            `json:"isActive"`
	LastSentAt     *time.Time      `json:"lastSentAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// DeliveryLogEntry records the outcome of one render-and-send job. The dedup
// key is unique per (automation, recipient, application, day) so a retried
// transition cannot enqueue the same notification twice.
type DeliveryLogEntry struct {
	ID            int64          `json:"id"`
	AutomationID  int64          `json:"automationId"`
	ApplicationID *int64         `json:"applicationId,omitempty"`
	JobID         string         `json:"jobId"`
	Recipient     string         `json:"recipient"`
	TemplateKey   string         `json:"templateKey"`
	Status        DeliveryStatus `json:"status"`
	Error         *string        `json:"error,omitempty"`
	DedupKey      string         `json:"-"`
	CreatedAt     time.Time      `json:"createdAt"`
}
