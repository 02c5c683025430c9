package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tallpines/campreg/internal/app/completion"
	"github.com/tallpines/campreg/internal/app/lifecycle"
	"github.com/tallpines/campreg/internal/app/models"
	"github.com/tallpines/campreg/internal/pkg/apperrors"
	"github.com/tallpines/campreg/internal/pkg/logger"
)

// ApplicationService orchestrates the application lifecycle: transitions,
// response autosave with completion recomputation, reactivation, payment and
// the annual reset. All state changes flow through the lifecycle state
// machine and land in the audit trail.
type ApplicationService struct {
	apps      ApplicationStore
	sections  SectionStore
	responses ResponseStore
	audit     AuditStore
	notifier  Notifier
	logger    zerolog.Logger
	now       func() time.Time
}

// NewApplicationService creates a new application service
func NewApplicationService(
	apps ApplicationStore,
	sections SectionStore,
	responses ResponseStore,
	audit AuditStore,
	notifier Notifier,
) *ApplicationService {
	return &ApplicationService{
		apps:      apps,
		sections:  sections,
		responses: responses,
		audit:     audit,
		notifier:  notifier,
		logger:    logger.With("application_service"),
		now:       time.Now,
	}
}

// GetByID returns one application.
func (s *ApplicationService) GetByID(ctx context.Context, id int64) (*models.Application, error) {
	return s.apps.GetByID(ctx, id)
}

// List returns applications, optionally filtered by status.
func (s *ApplicationService) List(ctx context.Context, status *models.Status) ([]*models.Application, error) {
	return s.apps.List(ctx, status)
}

// EnsureForUser returns the user's application, creating it in the initial
// applicant/not_started state on first access.
func (s *ApplicationService) EnsureForUser(ctx context.Context, userID int64) (*models.Application, error) {
	app, err := s.apps.GetByUserID(ctx, userID)
	if err == nil {
		return app, nil
	}
	if !errors.Is(err, apperrors.ErrApplicationNotFound) {
		return nil, err
	}

	app = &models.Application{
		UserID:    userID,
		Status:    models.StatusApplicant,
		SubStatus: models.SubStatusNotStarted,
	}
	// The store fills in the entry's entity id once the row exists and
	// commits both together.
	entry := newAuditEntry(models.EntityApplication, 0, models.AuditActionCreated,
		Actor{UserID: &userID}, nil)
	if err := s.apps.Create(ctx, app, entry); err != nil {
		return nil, err
	}
	return app, nil
}

// Progress recomputes the completion breakdown for an application without
// persisting anything.
func (s *ApplicationService) Progress(ctx context.Context, applicationID int64) (*models.Application, *completion.Result, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.computeCompletion(ctx, app)
	if err != nil {
		return nil, nil, err
	}
	return app, &result, nil
}

// Responses returns the full answer rows for one application.
func (s *ApplicationService) Responses(ctx context.Context, applicationID int64) ([]*models.Response, error) {
	return s.responses.ListByApplication(ctx, applicationID)
}

func (s *ApplicationService) computeCompletion(ctx context.Context, app *models.Application) (completion.Result, error) {
	sections, err := s.sections.ListActive(ctx)
	if err != nil {
		return completion.Result{}, err
	}
	answers, err := s.responses.MapByApplication(ctx, app.ID)
	if err != nil {
		return completion.Result{}, err
	}
	return completion.Compute(app.Status, sections, answers), nil
}

// SaveResponse persists one answer, recomputes completion and auto-advances
// the fill-in sub-status when the percentage crosses a boundary. The answer
// is saved even when the subsequent transition loses a concurrent race; the
// caller re-reads and retries.
func (s *ApplicationService) SaveResponse(
	ctx context.Context,
	applicationID, questionID int64,
	value string,
	fileID *int64,
	actor Actor,
) (*models.Application, *completion.Result, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, nil, err
	}
	question, err := s.sections.GetQuestionByID(ctx, questionID)
	if err != nil {
		return nil, nil, err
	}
	if !question.IsActive {
		return nil, nil, apperrors.NewBadRequestError("question is no longer active")
	}

	resp := &models.Response{
		ApplicationID: applicationID,
		QuestionID:    questionID,
		Value:         value,
		FileID:        fileID,
	}
	if actor.UserID != nil {
		resp.UpdatedByID = *actor.UserID
	}
	// The answer value stays out of the audit trail; only the fact of the
	// save is recorded. The entry commits with the answer.
	entry := newAuditEntry(models.EntityApplication, applicationID, models.AuditActionResponseSaved,
		actor, map[string]any{"questionId": questionID, "answered": resp.Answered()})
	if err := s.responses.Upsert(ctx, resp, entry); err != nil {
		return nil, nil, err
	}

	result, err := s.computeCompletion(ctx, app)
	if err != nil {
		return nil, nil, err
	}
	if err := s.apps.UpdateCompletion(ctx, applicationID, result.Percentage); err != nil {
		return nil, nil, err
	}
	app.CompletionPercentage = result.Percentage

	current := lifecycle.StateOf(app)
	target := fillTarget(current, result.Percentage)
	if target != current {
		app, err = s.applyTransition(ctx, app, target, actor)
		if err != nil {
			return nil, nil, err
		}
	}
	return app, &result, nil
}

// fillTarget maps a completion percentage to the fill-in sub-status an
// application should sit in. States outside the fill-in phases are left
// alone.
func fillTarget(current lifecycle.State, percentage int) lifecycle.State {
	switch current {
	case lifecycle.ApplicantNotStarted, lifecycle.ApplicantIncomplete, lifecycle.ApplicantComplete:
		switch {
		case percentage == 100:
			return lifecycle.ApplicantComplete
		case percentage > 0:
			return lifecycle.ApplicantIncomplete
		case current == lifecycle.ApplicantComplete:
			// Answers were cleared out from under a completed form.
			return lifecycle.ApplicantIncomplete
		}
	case lifecycle.CamperIncomplete, lifecycle.CamperComplete:
		if percentage == 100 {
			return lifecycle.CamperComplete
		}
		return lifecycle.CamperIncomplete
	}
	return current
}

// Transition applies an explicitly requested state change. An unreachable
// target leaves the application untouched and still lands in the audit trail
// as a rejected attempt.
func (s *ApplicationService) Transition(ctx context.Context, applicationID int64, target lifecycle.State, actor Actor) (*models.Application, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	return s.applyTransition(ctx, app, target, actor)
}

func (s *ApplicationService) applyTransition(ctx context.Context, app *models.Application, target lifecycle.State, actor Actor) (*models.Application, error) {
	current := lifecycle.StateOf(app)
	plan, err := lifecycle.PlanTransition(current, target)
	if err != nil {
		rejected := newAuditEntry(models.EntityApplication, app.ID, models.AuditActionTransitionRejected,
			actor, map[string]any{"from": current.String(), "to": target.String()})
		if auditErr := s.audit.Record(ctx, rejected); auditErr != nil {
			s.logger.Error().Err(auditErr).Int64("applicationId", app.ID).Msg("Failed to audit rejected transition")
		}
		return nil, err
	}

	at := s.now()
	entry := newAuditEntry(models.EntityApplication, app.ID, models.AuditActionTransition,
		actor, map[string]any{"from": plan.From.String(), "to": plan.To.String(), "noop": plan.NoOp})
	if err := s.apps.TransitionState(ctx, app.ID, current, plan.To, plan.Milestone, at, entry); err != nil {
		return nil, err
	}

	fresh, err := s.apps.GetByID(ctx, app.ID)
	if err != nil {
		return nil, err
	}

	if !plan.NoOp && s.notifier != nil {
		event := lifecycle.Event{
			Name:          plan.Event,
			ApplicationID: app.ID,
			From:          plan.From,
			To:            plan.To,
			ActorID:       actor.UserID,
			OccurredAt:    at,
		}
		if err := s.notifier.OnEvent(ctx, event); err != nil {
			s.logger.Error().Err(err).
				Int64("applicationId", app.ID).
				Str("event", plan.Event).
				Msg("Failed to dispatch lifecycle event notifications")
		}
	}
	return fresh, nil
}

// Reactivate moves an inactive application back into the applicant flow. The
// landing state is recomputed from the current answers rather than restored
// from before deactivation.
func (s *ApplicationService) Reactivate(ctx context.Context, applicationID int64, actor Actor) (*models.Application, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.StatusInactive {
		return nil, apperrors.NewCustomError(apperrors.ErrInvalidTransition,
			"only inactive applications can be reactivated")
	}

	result, err := s.computeCompletion(ctx, app)
	if err != nil {
		return nil, err
	}
	if err := s.apps.UpdateCompletion(ctx, applicationID, result.Percentage); err != nil {
		return nil, err
	}
	app.CompletionPercentage = result.Percentage

	target := lifecycle.ReactivationTarget(result.Percentage, app.UnderReviewAt != nil)
	return s.applyTransition(ctx, app, target, actor)
}

// RecordPayment marks the application as paid once the payment processor
// confirms. Repeat confirmations are ignored: has_paid is already true and
// paid_at is never overwritten.
func (s *ApplicationService) RecordPayment(ctx context.Context, applicationID int64, actor Actor) (*models.Application, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.HasPaid {
		return app, nil
	}

	at := s.now()
	entry := newAuditEntry(models.EntityApplication, applicationID, models.AuditActionPaymentRecorded, actor, nil)
	if err := s.apps.SetPaid(ctx, applicationID, at, entry); err != nil {
		return nil, err
	}

	fresh, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		state := lifecycle.StateOf(fresh)
		event := lifecycle.Event{
			Name:          lifecycle.EventPaid,
			ApplicationID: applicationID,
			From:          state,
			To:            state,
			ActorID:       actor.UserID,
			OccurredAt:    at,
		}
		if err := s.notifier.OnEvent(ctx, event); err != nil {
			s.logger.Error().Err(err).Int64("applicationId", applicationID).Msg("Failed to dispatch payment notifications")
		}
	}
	return fresh, nil
}

// AnnualResetSummary reports what an annual reset touched.
type AnnualResetSummary struct {
	ResponsesCleared     int64 `json:"responsesCleared"`
	ApplicationsReopened int   `json:"applicationsReopened"`
}

// AnnualReset clears every answer to a reset_annually question and recomputes
// completion for all active applications, reopening those that fall below
// 100%. Reset transitions do not emit notification events; the camp announces
// the new season through a scheduled automation instead.
func (s *ApplicationService) AnnualReset(ctx context.Context, actor Actor) (*AnnualResetSummary, error) {
	cleared, err := s.responses.ClearResetAnnually(ctx)
	if err != nil {
		return nil, err
	}

	sections, err := s.sections.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	apps, err := s.apps.List(ctx, nil)
	if err != nil {
		return nil, err
	}

	summary := &AnnualResetSummary{ResponsesCleared: cleared}
	for _, app := range apps {
		if app.Status == models.StatusInactive {
			continue
		}
		answers, err := s.responses.MapByApplication(ctx, app.ID)
		if err != nil {
			return nil, err
		}
		result := completion.Compute(app.Status, sections, answers)
		if err := s.apps.UpdateCompletion(ctx, app.ID, result.Percentage); err != nil {
			return nil, err
		}
		app.CompletionPercentage = result.Percentage

		current := lifecycle.StateOf(app)
		target := fillTarget(current, result.Percentage)
		if target == current || !lifecycle.CanTransition(current, target) {
			continue
		}
		plan, err := lifecycle.PlanTransition(current, target)
		if err != nil {
			continue
		}
		entry := newAuditEntry(models.EntityApplication, app.ID, models.AuditActionTransition,
			actor, map[string]any{"from": current.String(), "to": target.String(), "trigger": "annual_reset"})
		if err := s.apps.TransitionState(ctx, app.ID, current, plan.To, plan.Milestone, s.now(), entry); err != nil {
			s.logger.Error().Err(err).Int64("applicationId", app.ID).Msg("Failed to reopen application during annual reset")
			continue
		}
		summary.ApplicationsReopened++
	}

	entry := newAuditEntry(models.EntitySystem, 0, models.AuditActionAnnualReset, actor,
		map[string]any{"responsesCleared": summary.ResponsesCleared, "applicationsReopened": summary.ApplicationsReopened})
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Error().Err(err).Msg("Failed to audit annual reset")
	}

	s.logger.Info().
		Int64("responsesCleared", summary.ResponsesCleared).
		Int("applicationsReopened", summary.ApplicationsReopened).
		Msg("Annual reset completed")
	return summary, nil
}
