package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallpines/campreg/internal/app/lifecycle"
	"github.com/tallpines/campreg/internal/app/models"
	"github.com/tallpines/campreg/internal/pkg/apperrors"
)

var testTime = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

type appFixture struct {
	apps      *fakeApplicationStore
	sections  *fakeSectionStore
	responses *fakeResponseStore
	audit     *fakeAuditStore
	notifier  *fakeNotifier
	svc       *ApplicationService
}

func newAppFixture() *appFixture {
	audit := &fakeAuditStore{}
	f := &appFixture{
		apps:      newFakeApplicationStore(audit),
		sections:  newFakeSectionStore(audit),
		responses: newFakeResponseStore(audit),
		audit:     audit,
		notifier:  &fakeNotifier{},
	}
	f.svc = NewApplicationService(f.apps, f.sections, f.responses, f.audit, f.notifier)
	f.svc.now = func() time.Time { return testTime }
	return f
}

func (f *appFixture) addApp(state lifecycle.State, percentage int) *models.Application {
	return f.apps.add(&models.Application{
		UserID:               1,
		Status:               state.Status,
		SubStatus:            state.SubStatus,
		CompletionPercentage: percentage,
	})
}

func TestTransitionAppliesMilestoneAndEmitsEvent(t *testing.T) {
	f := newAppFixture()
	app := f.addApp(lifecycle.ApplicantComplete, 100)
	actorID := int64(42)

	updated, err := f.svc.Transition(context.Background(), app.ID, lifecycle.ApplicantUnderReview, Actor{UserID: &actorID})
	require.NoError(t, err)

	assert.Equal(t, models.StatusApplicant, updated.Status)
	assert.Equal(t, models.SubStatusUnderReview, updated.SubStatus)
	require.NotNil(t, updated.UnderReviewAt)
	assert.Equal(t, testTime, *updated.UnderReviewAt)

	transitions := f.audit.byAction(models.AuditActionTransition)
	require.Len(t, transitions, 1)
	entry := transitions[0]
	assert.Equal(t, models.AuditActionTransition, entry.Action)
	assert.Equal(t, "APPLICANT.COMPLETE", entry.Details["from"])
	assert.Equal(t, "APPLICANT.UNDER_REVIEW", entry.Details["to"])
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, actorID, *entry.ActorID)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, lifecycle.EventUnderReview, f.notifier.events[0].Name)
	assert.Equal(t, app.ID, f.notifier.events[0].ApplicationID)
}

func TestTransitionUnreachableTargetRejected(t *testing.T) {
	f := newAppFixture()
	app := f.addApp(lifecycle.ApplicantNotStarted, 0)

	_, err := f.svc.Transition(context.Background(), app.ID, lifecycle.ApplicantUnderReview, SystemActor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))

	unchanged, err := f.apps.GetByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubStatusNotStarted, unchanged.SubStatus)

	rejected := f.audit.byAction(models.AuditActionTransitionRejected)
	require.Len(t, rejected, 1)
	assert.Equal(t, "APPLICANT.NOT_STARTED", rejected[0].Details["from"])
	assert.Equal(t, "APPLICANT.UNDER_REVIEW", rejected[0].Details["to"])

	assert.Empty(t, f.notifier.events)
	assert.Empty(t, f.audit.byAction(models.AuditActionTransition))
}

func TestTransitionNoOpAuditedWithoutEvent(t *testing.T) {
	f := newAppFixture()
	app := f.addApp(lifecycle.ApplicantComplete, 100)

	updated, err := f.svc.Transition(context.Background(), app.ID, lifecycle.ApplicantComplete, SystemActor)
	require.NoError(t, err)
	assert.Equal(t, models.SubStatusComplete, updated.SubStatus)
	assert.Nil(t, updated.CompletedAt)

	noops := f.audit.byAction(models.AuditActionTransition)
	require.Len(t, noops, 1)
	assert.Equal(t, true, noops[0].Details["noop"])
	assert.Empty(t, f.notifier.events)
}

func TestTransitionMilestoneNotOverwrittenOnReentry(t *testing.T) {
	f := newAppFixture()
	firstCompleted := testTime.Add(-48 * time.Hour)
	app := f.addApp(lifecycle.ApplicantIncomplete, 80)
	f.apps.apps[app.ID].CompletedAt = &firstCompleted

	updated, err := f.svc.Transition(context.Background(), app.ID, lifecycle.ApplicantComplete, SystemActor)
	require.NoError(t, err)
	require.NotNil(t, updated.CompletedAt)
	assert.Equal(t, firstCompleted, *updated.CompletedAt)
}

func TestSaveResponseAdvancesToComplete(t *testing.T) {
	f := newAppFixture()
	section := f.sections.addSection(&models.Section{Name: "Basics"})
	question := f.sections.addQuestion(section, &models.Question{
		Prompt: "Camper name", QuestionType: models.QuestionTypeText, Required: true,
	})
	app := f.addApp(lifecycle.ApplicantNotStarted, 0)
	actorID := int64(1)

	updated, result, err := f.svc.SaveResponse(context.Background(), app.ID, question.ID, "Robin", nil, Actor{UserID: &actorID})
	require.NoError(t, err)

	assert.Equal(t, 100, result.Percentage)
	assert.Equal(t, 100, updated.CompletionPercentage)
	assert.Equal(t, models.SubStatusComplete, updated.SubStatus)
	require.NotNil(t, updated.CompletedAt)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, lifecycle.EventCompleted, f.notifier.events[0].Name)

	saved := f.audit.byAction(models.AuditActionResponseSaved)
	require.Len(t, saved, 1)
	assert.Equal(t, true, saved[0].Details["answered"])
	assert.NotContains(t, saved[0].Details, "value")
}

func TestSaveResponseReopensCompletedApplication(t *testing.T) {
	f := newAppFixture()
	section := f.sections.addSection(&models.Section{Name: "Basics"})
	q1 := f.sections.addQuestion(section, &models.Question{
		Prompt: "Name", QuestionType: models.QuestionTypeText, Required: true,
	})
	q2 := f.sections.addQuestion(section, &models.Question{
		Prompt: "Allergies", QuestionType: models.QuestionTypeTextarea, Required: true,
	})
	app := f.addApp(lifecycle.ApplicantComplete, 100)
	f.responses.set(app.ID, q1.ID, "Robin")
	f.responses.set(app.ID, q2.ID, "none")

	updated, result, err := f.svc.SaveResponse(context.Background(), app.ID, q2.ID, "", nil, SystemActor)
	require.NoError(t, err)

	assert.Equal(t, 50, result.Percentage)
	assert.Equal(t, models.SubStatusIncomplete, updated.SubStatus)
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, lifecycle.EventReopened, f.notifier.events[0].Name)
}

func TestSaveResponseRejectsInactiveQuestion(t *testing.T) {
	f := newAppFixture()
	section := f.sections.addSection(&models.Section{Name: "Basics"})
	question := f.sections.addQuestion(section, &models.Question{
		Prompt: "Old question", QuestionType: models.QuestionTypeText,
	})
	question.IsActive = false
	app := f.addApp(lifecycle.ApplicantIncomplete, 0)

	_, _, err := f.svc.SaveResponse(context.Background(), app.ID, question.ID, "answer", nil, SystemActor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrBadRequest))
}

func TestReactivateLandsOnRecomputedState(t *testing.T) {
	tests := []struct {
		name         string
		everReviewed bool
		answered     bool
		want         lifecycle.State
	}{
		{"reviewed and fully answered resumes incomplete", true, true, lifecycle.ApplicantIncomplete},
		{"never reviewed and fully answered is complete again", false, true, lifecycle.ApplicantComplete},
		{"nothing answered starts over", false, false, lifecycle.ApplicantNotStarted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAppFixture()
			section := f.sections.addSection(&models.Section{Name: "Basics"})
			question := f.sections.addQuestion(section, &models.Question{
				Prompt: "Name", QuestionType: models.QuestionTypeText, Required: true,
			})
			app := f.addApp(lifecycle.InactiveWithdrawn, 0)
			if tt.everReviewed {
				reviewed := testTime.Add(-time.Hour)
				f.apps.apps[app.ID].UnderReviewAt = &reviewed
			}
			if tt.answered {
				f.responses.set(app.ID, question.ID, "Robin")
			}

			updated, err := f.svc.Reactivate(context.Background(), app.ID, SystemActor)
			require.NoError(t, err)
			assert.Equal(t, tt.want, lifecycle.StateOf(updated))

			require.Len(t, f.notifier.events, 1)
			assert.Equal(t, lifecycle.EventReactivated, f.notifier.events[0].Name)
		})
	}
}

func TestReactivateRequiresInactiveApplication(t *testing.T) {
	f := newAppFixture()
	app := f.addApp(lifecycle.ApplicantComplete, 100)

	_, err := f.svc.Reactivate(context.Background(), app.ID, SystemActor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))
}

func TestRecordPaymentIsIdempotent(t *testing.T) {
	f := newAppFixture()
	app := f.addApp(lifecycle.CamperIncomplete, 40)

	first, err := f.svc.RecordPayment(context.Background(), app.ID, SystemActor)
	require.NoError(t, err)
	assert.True(t, first.HasPaid)
	require.NotNil(t, first.PaidAt)
	assert.Equal(t, testTime, *first.PaidAt)
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, lifecycle.EventPaid, f.notifier.events[0].Name)

	second, err := f.svc.RecordPayment(context.Background(), app.ID, SystemActor)
	require.NoError(t, err)
	assert.Equal(t, *first.PaidAt, *second.PaidAt)
	assert.Len(t, f.notifier.events, 1)
	assert.Len(t, f.audit.byAction(models.AuditActionPaymentRecorded), 1)
}

func TestAnnualResetClearsAndReopens(t *testing.T) {
	f := newAppFixture()
	section := f.sections.addSection(&models.Section{Name: "Forms"})
	annual := f.sections.addQuestion(section, &models.Question{
		Prompt: "Health form", QuestionType: models.QuestionTypeFile, Required: true, ResetAnnually: true,
	})
	keeper := f.sections.addQuestion(section, &models.Question{
		Prompt: "Camper name", QuestionType: models.QuestionTypeText, Required: true,
	})
	f.responses.annualQuestions[annual.ID] = true

	camper := f.addApp(lifecycle.CamperComplete, 100)
	f.responses.set(camper.ID, annual.ID, "[file]")
	f.responses.set(camper.ID, keeper.ID, "Robin")

	inactive := f.addApp(lifecycle.InactiveWithdrawn, 100)

	summary, err := f.svc.AnnualReset(context.Background(), SystemActor)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.ResponsesCleared)
	assert.Equal(t, 1, summary.ApplicationsReopened)

	reopened, err := f.apps.GetByID(context.Background(), camper.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubStatusIncomplete, reopened.SubStatus)
	assert.Equal(t, 50, reopened.CompletionPercentage)

	untouched, err := f.apps.GetByID(context.Background(), inactive.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInactive, untouched.Status)

	assert.Empty(t, f.notifier.events)
	require.Len(t, f.audit.byAction(models.AuditActionAnnualReset), 1)
}

func TestEnsureForUserCreatesOnce(t *testing.T) {
	f := newAppFixture()

	first, err := f.svc.EnsureForUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApplicant, first.Status)
	assert.Equal(t, models.SubStatusNotStarted, first.SubStatus)

	second, err := f.svc.EnsureForUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	created := f.audit.byAction(models.AuditActionCreated)
	require.Len(t, created, 1)
	assert.Equal(t, first.ID, created[0].EntityID)
}

func TestTransitionLosesRaceToConcurrentWriter(t *testing.T) {
	f := newAppFixture()
	app := f.addApp(lifecycle.ApplicantUnderReview, 100)
	winnerID, loserID := int64(7), int64(8)

	// The competing admin's waitlist decision commits between this request's
	// read and its compare-and-set.
	f.apps.beforeTransition = func() {
		f.apps.beforeTransition = nil
		winner := newAuditEntry(models.EntityApplication, app.ID, models.AuditActionTransition,
			Actor{UserID: &winnerID},
			map[string]any{"from": lifecycle.ApplicantUnderReview.String(), "to": lifecycle.ApplicantWaitlist.String()})
		require.NoError(t, f.apps.TransitionState(context.Background(), app.ID,
			lifecycle.ApplicantUnderReview, lifecycle.ApplicantWaitlist,
			lifecycle.MilestoneWaitlisted, testTime, winner))
	}

	_, err := f.svc.Transition(context.Background(), app.ID, lifecycle.CamperIncomplete, Actor{UserID: &loserID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConcurrentModification))

	final, err := f.apps.GetByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.ApplicantWaitlist, lifecycle.StateOf(final))

	// Only the winning decision is in the trail; the loser left no entry and
	// no event.
	transitions := f.audit.byAction(models.AuditActionTransition)
	require.Len(t, transitions, 1)
	require.NotNil(t, transitions[0].ActorID)
	assert.Equal(t, winnerID, *transitions[0].ActorID)
	assert.Empty(t, f.notifier.events)
}
