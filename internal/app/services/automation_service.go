package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tallpines/campreg/internal/app/lifecycle"
	"github.com/tallpines/campreg/internal/app/models"
	"github.com/tallpines/campreg/internal/pkg/apperrors"
	"github.com/tallpines/campreg/internal/pkg/logger"
)

// AutomationService manages email automation configuration. Every rule is
// validated on save; dispatch trusts stored rules completely, so nothing
// invalid may get past this layer.
type AutomationService struct {
	automations AutomationStore
	logger      zerolog.Logger
}

// NewAutomationService creates a new automation service
func NewAutomationService(automations AutomationStore) *AutomationService {
	return &AutomationService{
		automations: automations,
		logger:      logger.With("automation_service"),
	}
}

// Create validates and persists a new automation. The audit entry commits
// with the row; the store fills in its entity id.
func (s *AutomationService) Create(ctx context.Context, a *models.EmailAutomation, actor Actor) error {
	if err := validateAutomation(a); err != nil {
		return err
	}
	return s.automations.Create(ctx, a, configChangeEntry(a, models.AuditActionCreated, actor))
}

// Update validates and persists changes to an automation. last_sent_at is
// never touched through this path.
func (s *AutomationService) Update(ctx context.Context, a *models.EmailAutomation, actor Actor) error {
	if err := validateAutomation(a); err != nil {
		return err
	}
	return s.automations.Update(ctx, a, configChangeEntry(a, models.AuditActionUpdated, actor))
}

// GetByID returns one automation.
func (s *AutomationService) GetByID(ctx context.Context, id int64) (*models.EmailAutomation, error) {
	return s.automations.GetByID(ctx, id)
}

// List returns all automations.
func (s *AutomationService) List(ctx context.Context) ([]*models.EmailAutomation, error) {
	return s.automations.List(ctx)
}

// Delete removes an automation and its trigger binding entirely.
func (s *AutomationService) Delete(ctx context.Context, id int64, actor Actor) error {
	a, err := s.automations.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.automations.Delete(ctx, id, configChangeEntry(a, models.AuditActionDeleted, actor))
}

func configChangeEntry(a *models.EmailAutomation, action string, actor Actor) *models.AuditLogEntry {
	return newAuditEntry(models.EntityAutomation, a.ID, action, actor,
		map[string]any{"name": a.Name, "triggerType": string(a.TriggerType)})
}

func validateAutomation(a *models.EmailAutomation) error {
	if a.Name == "" {
		return apperrors.NewConfigurationError("automation name is required")
	}
	if a.TemplateKey == "" {
		return apperrors.NewConfigurationError("template key is required")
	}

	switch a.TriggerType {
	case models.TriggerTypeEvent:
		if a.TriggerEvent == nil || *a.TriggerEvent == "" {
			return apperrors.NewConfigurationError("event-triggered automation requires a trigger event")
		}
		if !knownEvent(*a.TriggerEvent) {
			return apperrors.NewConfigurationError(fmt.Sprintf("unknown trigger event %q", *a.TriggerEvent))
		}
		if a.ScheduleDay != nil || a.ScheduleHour != nil {
			return apperrors.NewConfigurationError("event-triggered automation must not carry a schedule")
		}
	case models.TriggerTypeScheduled:
		if a.TriggerEvent != nil {
			return apperrors.NewConfigurationError("scheduled automation must not carry a trigger event")
		}
		if a.ScheduleDay == nil || *a.ScheduleDay < 0 || *a.ScheduleDay > 6 {
			return apperrors.NewConfigurationError("schedule day must be between 0 (Sunday) and 6 (Saturday)")
		}
		if a.ScheduleHour == nil || *a.ScheduleHour < 0 || *a.ScheduleHour > 23 {
			return apperrors.NewConfigurationError("schedule hour must be between 0 and 23")
		}
	default:
		return apperrors.NewConfigurationError(fmt.Sprintf("unknown trigger type %q", a.TriggerType))
	}

	if err := a.AudienceFilter.Validate(); err != nil {
		return apperrors.NewConfigurationError("invalid audience filter: " + err.Error())
	}
	return nil
}

func knownEvent(name string) bool {
	for _, event := range lifecycle.KnownEvents() {
		if event == name {
			return true
		}
	}
	return false
}
