package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tallpines/campreg/internal/app/audience"
	"github.com/tallpines/campreg/internal/app/lifecycle"
	"github.com/tallpines/campreg/internal/app/models"
	"github.com/tallpines/campreg/internal/pkg/apperrors"
	"github.com/tallpines/campreg/internal/pkg/logger"
	"github.com/tallpines/campreg/internal/pkg/mailer"
)

// NotificationService matches lifecycle events and scheduler ticks against
// the configured email automations and hands render jobs to the dispatcher.
// Per-recipient failures are recorded in the delivery log and never
// propagated: a broken template must not block a transition or a scheduled
// batch.
type NotificationService struct {
	automations AutomationStore
	deliveries  DeliveryStore
	apps        ApplicationStore
	users       UserStore
	audit       AuditStore
	dispatcher  mailer.Dispatcher
	logger      zerolog.Logger
	now         func() time.Time
}

// NewNotificationService creates a new notification service
func NewNotificationService(
	automations AutomationStore,
	deliveries DeliveryStore,
	apps ApplicationStore,
	users UserStore,
	audit AuditStore,
	dispatcher mailer.Dispatcher,
) *NotificationService {
	return &NotificationService{
		automations: automations,
		deliveries:  deliveries,
		apps:        apps,
		users:       users,
		audit:       audit,
		dispatcher:  dispatcher,
		logger:      logger.With("notification_service"),
		now:         time.Now,
	}
}

// OnEvent runs every active event-triggered automation bound to the event's
// name. An automation with an empty audience filter notifies the application
// owner; otherwise the owner is notified only when they match the filter.
func (s *NotificationService) OnEvent(ctx context.Context, event lifecycle.Event) error {
	rules, err := s.automations.ListActiveByEvent(ctx, event.Name)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		return nil
	}

	app, err := s.apps.GetByID(ctx, event.ApplicationID)
	if err != nil {
		return err
	}
	owner, err := s.users.GetByID(ctx, app.UserID)
	if err != nil {
		return err
	}

	target := projectTarget(owner, app)
	appID := app.ID
	for _, rule := range rules {
		if !rule.AudienceFilter.IsEmpty() && !rule.AudienceFilter.Matches(target) {
			continue
		}
		s.dispatch(ctx, rule, owner.Email, &appID, templateVariables(owner, app, event.Name), dedupDay(event.OccurredAt))
	}
	return nil
}

// OnTick runs the scheduled automations due at the given wall-clock time. The
// per-recipient dedup key makes retried batches safe, so last_sent_at is
// claimed only after the batch was handed to the dispatcher.
func (s *NotificationService) OnTick(ctx context.Context, now time.Time) error {
	day := int(now.Weekday())
	hour := now.Hour()
	periodStart := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())

	due, err := s.automations.ListDueScheduled(ctx, day, hour, periodStart)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	rows, err := s.apps.ListWithOwners(ctx)
	if err != nil {
		return err
	}

	for _, rule := range due {
		sent := s.dispatchToAudience(ctx, rule, rows, dedupDay(now))

		claimed, err := s.automations.ClaimScheduledRun(ctx, rule.ID, periodStart, now)
		if err != nil {
			s.logger.Error().Err(err).Int64("automationId", rule.ID).Msg("Failed to claim scheduled run")
			continue
		}
		s.logger.Info().
			Int64("automationId", rule.ID).
			Str("name", rule.Name).
			Int("sent", sent).
			Bool("claimed", claimed).
			Msg("Scheduled automation run finished")
	}
	return nil
}

// RunNow runs one automation immediately against its full audience. A
// scheduled automation that already fired in its current period is refused
// unless forced.
func (s *NotificationService) RunNow(ctx context.Context, automationID int64, force bool, actor Actor) (int, error) {
	rule, err := s.automations.GetByID(ctx, automationID)
	if err != nil {
		return 0, err
	}

	now := s.now()
	if rule.TriggerType == models.TriggerTypeScheduled && !force {
		if rule.LastSentAt != nil && !rule.LastSentAt.Before(periodStartFor(rule, now)) {
			return 0, apperrors.ErrAlreadySentThisPeriod
		}
	}

	rows, err := s.apps.ListWithOwners(ctx)
	if err != nil {
		return 0, err
	}

	// A forced run gets a fresh dedup scope so it is not swallowed by the
	// day's earlier deliveries.
	scope := dedupDay(now)
	if force {
		scope = now.UTC().Format(time.RFC3339)
	}
	sent := s.dispatchToAudience(ctx, rule, rows, scope)

	if rule.TriggerType == models.TriggerTypeScheduled {
		if err := s.automations.SetLastSent(ctx, rule.ID, now); err != nil {
			s.logger.Error().Err(err).Int64("automationId", rule.ID).Msg("Failed to stamp manual run")
		}
	}

	entry := newAuditEntry(models.EntityAutomation, rule.ID, models.AuditActionAutomationRun,
		actor, map[string]any{"sent": sent, "forced": force})
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Error().Err(err).Int64("automationId", rule.ID).Msg("Failed to audit manual run")
	}
	return sent, nil
}

// Deliveries returns the recent delivery log for one automation.
func (s *NotificationService) Deliveries(ctx context.Context, automationID int64, limit int) ([]*models.DeliveryLogEntry, error) {
	if _, err := s.automations.GetByID(ctx, automationID); err != nil {
		return nil, err
	}
	return s.deliveries.ListByAutomation(ctx, automationID, limit)
}

func (s *NotificationService) dispatchToAudience(ctx context.Context, rule *models.EmailAutomation, rows []models.ApplicationWithOwner, scope string) int {
	sent := 0
	for _, row := range rows {
		if rule.AudienceFilter.IsEmpty() {
			// The default audience is everyone still in the flow. Reaching
			// withdrawn or rejected families takes an explicit filter.
			if row.Application.Status == models.StatusInactive {
				continue
			}
		} else if !rule.AudienceFilter.Matches(projectTarget(row.Owner, row.Application)) {
			continue
		}
		appID := row.Application.ID
		if s.dispatch(ctx, rule, row.Owner.Email, &appID, templateVariables(row.Owner, row.Application, ""), scope) {
			sent++
		}
	}
	return sent
}

// dispatch claims the dedup key, hands the job to the dispatcher and records
// the outcome. It reports whether a job was actually handed over.
func (s *NotificationService) dispatch(ctx context.Context, rule *models.EmailAutomation, recipient string, applicationID *int64, vars map[string]string, scope string) bool {
	var appPart int64
	if applicationID != nil {
		appPart = *applicationID
	}
	entry := &models.DeliveryLogEntry{
		AutomationID:  rule.ID,
		ApplicationID: applicationID,
		JobID:         uuid.NewString(),
		Recipient:     recipient,
		TemplateKey:   rule.TemplateKey,
		Status:        models.DeliveryPending,
		DedupKey:      fmt.Sprintf("%d:%s:%d:%s", rule.ID, strings.ToLower(recipient), appPart, scope),
	}

	claimed, err := s.deliveries.Claim(ctx, entry)
	if err != nil {
		s.logger.Error().Err(err).
			Int64("automationId", rule.ID).
			Str("recipient", recipient).
			Msg("Failed to claim delivery")
		return false
	}
	if !claimed {
		s.logger.Debug().
			Int64("automationId", rule.ID).
			Str("recipient", recipient).
			Msg("Duplicate delivery suppressed")
		return false
	}

	job := mailer.Job{
		ID:          entry.JobID,
		TemplateKey: rule.TemplateKey,
		Recipient:   recipient,
		Variables:   vars,
	}
	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		msg := err.Error()
		if updateErr := s.deliveries.UpdateOutcome(ctx, entry.ID, models.DeliveryFailed, &msg); updateErr != nil {
			s.logger.Error().Err(updateErr).Str("jobId", entry.JobID).Msg("Failed to record delivery failure")
		}
		s.logger.Error().Err(err).
			Int64("automationId", rule.ID).
			Str("recipient", recipient).
			Str("templateKey", rule.TemplateKey).
			Msg("Notification dispatch failed")
		return false
	}

	if err := s.deliveries.UpdateOutcome(ctx, entry.ID, models.DeliverySent, nil); err != nil {
		s.logger.Error().Err(err).Str("jobId", entry.JobID).Msg("Failed to record delivery outcome")
	}
	return true
}

// projectTarget flattens a user and their application into the projection
// audience filters evaluate against.
func projectTarget(owner *models.User, app *models.Application) audience.Target {
	return audience.Target{
		UserRole:             string(owner.RoleType),
		UserEmail:            owner.Email,
		ApplicationStatus:    string(app.Status),
		ApplicationSubStatus: string(app.SubStatus),
		IsReturning:          app.IsReturning,
		HasPaid:              app.HasPaid,
		CompletionPercentage: app.CompletionPercentage,
	}
}

func templateVariables(owner *models.User, app *models.Application, event string) map[string]string {
	vars := map[string]string{
		"first_name":            owner.FirstName,
		"last_name":             owner.LastName,
		"email":                 owner.Email,
		"status":                string(app.Status),
		"sub_status":            string(app.SubStatus),
		"completion_percentage": strconv.Itoa(app.CompletionPercentage),
	}
	if event != "" {
		vars["event"] = event
	}
	return vars
}

// dedupDay is the calendar-day component of the dedup key.
func dedupDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// periodStartFor returns the most recent scheduled occurrence at or before
// now, the start of the automation's current period.
func periodStartFor(rule *models.EmailAutomation, now time.Time) time.Time {
	if rule.ScheduleDay == nil || rule.ScheduleHour == nil {
		return now
	}
	t := time.Date(now.Year(), now.Month(), now.Day(), *rule.ScheduleHour, 0, 0, 0, now.Location())
	daysBack := (int(now.Weekday()) - *rule.ScheduleDay + 7) % 7
	t = t.AddDate(0, 0, -daysBack)
	if t.After(now) {
		t = t.AddDate(0, 0, -7)
	}
	return t
}
