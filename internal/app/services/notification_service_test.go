package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallpines/campreg/internal/app/audience"
	"github.com/tallpines/campreg/internal/app/lifecycle"
	"github.com/tallpines/campreg/internal/app/models"
	"github.com/tallpines/campreg/internal/pkg/apperrors"
)

type notifFixture struct {
	automations *fakeAutomationStore
	deliveries  *fakeDeliveryStore
	apps        *fakeApplicationStore
	users       *fakeUserStore
	audit       *fakeAuditStore
	dispatcher  *fakeDispatcher
	svc         *NotificationService
}

func newNotifFixture() *notifFixture {
	audit := &fakeAuditStore{}
	f := &notifFixture{
		automations: newFakeAutomationStore(audit),
		deliveries:  newFakeDeliveryStore(),
		apps:        newFakeApplicationStore(audit),
		users:       newFakeUserStore(),
		audit:       audit,
		dispatcher:  &fakeDispatcher{},
	}
	f.svc = NewNotificationService(f.automations, f.deliveries, f.apps, f.users, f.audit, f.dispatcher)
	f.svc.now = func() time.Time { return testTime }
	return f
}

func (f *notifFixture) addFamily(email string, state lifecycle.State, returning bool) (*models.User, *models.Application) {
	user := f.users.add(&models.User{
		Email: email, FirstName: "Jamie", LastName: "Doe",
		RoleType: models.RoleFamily, IsActive: true,
	})
	app := f.apps.add(&models.Application{
		UserID:      user.ID,
		Status:      state.Status,
		SubStatus:   state.SubStatus,
		IsReturning: returning,
	})
	f.apps.owners[user.ID] = user
	return user, app
}

func eventRule(event string, filter audience.Filter) *models.EmailAutomation {
	e := event
	return &models.EmailAutomation{
		Name:           "on " + event,
		TemplateKey:    "tmpl-" + event,
		TriggerType:    models.TriggerTypeEvent,
		TriggerEvent:   &e,
		AudienceFilter: filter,
		IsActive:       true,
	}
}

func scheduledRule(day, hour int, filter audience.Filter) *models.EmailAutomation {
	return &models.EmailAutomation{
		Name:           "weekly reminder",
		TemplateKey:    "tmpl-reminder",
		TriggerType:    models.TriggerTypeScheduled,
		ScheduleDay:    &day,
		ScheduleHour:   &hour,
		AudienceFilter: filter,
		IsActive:       true,
	}
}

func completedEvent(app *models.Application) lifecycle.Event {
	return lifecycle.Event{
		Name:          lifecycle.EventCompleted,
		ApplicationID: app.ID,
		From:          lifecycle.ApplicantIncomplete,
		To:            lifecycle.ApplicantComplete,
		OccurredAt:    testTime,
	}
}

func TestOnEventNotifiesOwner(t *testing.T) {
	f := newNotifFixture()
	owner, app := f.addFamily("family@example.com", lifecycle.ApplicantComplete, false)
	f.automations.add(eventRule(lifecycle.EventCompleted, audience.Filter{}))

	err := f.svc.OnEvent(context.Background(), completedEvent(app))
	require.NoError(t, err)

	require.Len(t, f.dispatcher.jobs, 1)
	job := f.dispatcher.jobs[0]
	assert.Equal(t, owner.Email, job.Recipient)
	assert.Equal(t, "tmpl-"+lifecycle.EventCompleted, job.TemplateKey)
	assert.Equal(t, lifecycle.EventCompleted, job.Variables["event"])
	assert.Equal(t, "Jamie", job.Variables["first_name"])

	require.Len(t, f.deliveries.entries, 1)
	assert.Equal(t, models.DeliverySent, f.deliveries.entries[0].Status)
}

func TestOnEventRespectsAudienceFilter(t *testing.T) {
	f := newNotifFixture()
	_, app := f.addFamily("new@example.com", lifecycle.ApplicantComplete, false)
	returningOnly := audience.Filter{Conditions: []audience.Condition{
		{Field: audience.FieldAppIsReturning, Op: audience.OpIsTrue},
	}}
	f.automations.add(eventRule(lifecycle.EventCompleted, returningOnly))

	require.NoError(t, f.svc.OnEvent(context.Background(), completedEvent(app)))
	assert.Empty(t, f.dispatcher.jobs)

	_, returning := f.addFamily("returning@example.com", lifecycle.ApplicantComplete, true)
	require.NoError(t, f.svc.OnEvent(context.Background(), completedEvent(returning)))
	require.Len(t, f.dispatcher.jobs, 1)
	assert.Equal(t, "returning@example.com", f.dispatcher.jobs[0].Recipient)
}

func TestOnEventDuplicateSuppressed(t *testing.T) {
	f := newNotifFixture()
	_, app := f.addFamily("family@example.com", lifecycle.ApplicantComplete, false)
	f.automations.add(eventRule(lifecycle.EventCompleted, audience.Filter{}))

	require.NoError(t, f.svc.OnEvent(context.Background(), completedEvent(app)))
	require.NoError(t, f.svc.OnEvent(context.Background(), completedEvent(app)))

	assert.Len(t, f.dispatcher.jobs, 1)
	assert.Len(t, f.deliveries.entries, 1)
}

func TestOnEventDispatchFailureRecorded(t *testing.T) {
	f := newNotifFixture()
	owner, app := f.addFamily("family@example.com", lifecycle.ApplicantComplete, false)
	f.automations.add(eventRule(lifecycle.EventCompleted, audience.Filter{}))
	f.dispatcher.failFor = map[string]error{owner.Email: errors.New("smtp: connection refused")}

	err := f.svc.OnEvent(context.Background(), completedEvent(app))
	require.NoError(t, err)

	assert.Empty(t, f.dispatcher.jobs)
	require.Len(t, f.deliveries.entries, 1)
	entry := f.deliveries.entries[0]
	assert.Equal(t, models.DeliveryFailed, entry.Status)
	require.NotNil(t, entry.Error)
	assert.Contains(t, *entry.Error, "connection refused")
}

func TestOnTickRunsDueAutomationOncePerPeriod(t *testing.T) {
	f := newNotifFixture()
	f.addFamily("one@example.com", lifecycle.ApplicantIncomplete, false)
	f.addFamily("two@example.com", lifecycle.CamperIncomplete, true)
	rule := f.automations.add(scheduledRule(int(testTime.Weekday()), testTime.Hour(), audience.Filter{}))

	require.NoError(t, f.svc.OnTick(context.Background(), testTime))
	assert.Len(t, f.dispatcher.jobs, 2)

	stamped, err := f.automations.GetByID(context.Background(), rule.ID)
	require.NoError(t, err)
	require.NotNil(t, stamped.LastSentAt)
	assert.Equal(t, testTime, *stamped.LastSentAt)

	// A later tick in the same period finds nothing due.
	require.NoError(t, f.svc.OnTick(context.Background(), testTime.Add(10*time.Minute)))
	assert.Len(t, f.dispatcher.jobs, 2)
}

func TestOnTickFilterSelectsAudience(t *testing.T) {
	f := newNotifFixture()
	f.addFamily("applicant@example.com", lifecycle.ApplicantIncomplete, false)
	f.addFamily("camper@example.com", lifecycle.CamperIncomplete, false)
	campersOnly := audience.Filter{Conditions: []audience.Condition{
		{Field: audience.FieldAppStatus, Op: audience.OpEq, Value: "CAMPER"},
	}}
	f.automations.add(scheduledRule(int(testTime.Weekday()), testTime.Hour(), campersOnly))

	require.NoError(t, f.svc.OnTick(context.Background(), testTime))
	require.Len(t, f.dispatcher.jobs, 1)
	assert.Equal(t, "camper@example.com", f.dispatcher.jobs[0].Recipient)
}

func TestOnTickDefaultAudienceSkipsInactive(t *testing.T) {
	f := newNotifFixture()
	f.addFamily("active@example.com", lifecycle.ApplicantIncomplete, false)
	f.addFamily("gone@example.com", lifecycle.InactiveWithdrawn, false)
	f.automations.add(scheduledRule(int(testTime.Weekday()), testTime.Hour(), audience.Filter{}))

	require.NoError(t, f.svc.OnTick(context.Background(), testTime))
	require.Len(t, f.dispatcher.jobs, 1)
	assert.Equal(t, "active@example.com", f.dispatcher.jobs[0].Recipient)
}

func TestOnTickSkipsMismatchedSlot(t *testing.T) {
	f := newNotifFixture()
	f.addFamily("one@example.com", lifecycle.ApplicantIncomplete, false)
	f.automations.add(scheduledRule(int(testTime.Weekday()), (testTime.Hour()+1)%24, audience.Filter{}))

	require.NoError(t, f.svc.OnTick(context.Background(), testTime))
	assert.Empty(t, f.dispatcher.jobs)
}

func TestRunNowGatesOnCurrentPeriod(t *testing.T) {
	f := newNotifFixture()
	f.addFamily("family@example.com", lifecycle.ApplicantIncomplete, false)
	rule := f.automations.add(scheduledRule(int(testTime.Weekday()), testTime.Hour()-1, audience.Filter{}))
	alreadySent := testTime.Add(-30 * time.Minute)
	f.automations.automations[rule.ID].LastSentAt = &alreadySent

	_, err := f.svc.RunNow(context.Background(), rule.ID, false, SystemActor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAlreadySentThisPeriod))
	assert.Empty(t, f.dispatcher.jobs)

	sent, err := f.svc.RunNow(context.Background(), rule.ID, true, SystemActor)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Len(t, f.dispatcher.jobs, 1)

	stamped, err := f.automations.GetByID(context.Background(), rule.ID)
	require.NoError(t, err)
	assert.Equal(t, testTime, *stamped.LastSentAt)

	runs := f.audit.byAction(models.AuditActionAutomationRun)
	require.Len(t, runs, 1)
	assert.Equal(t, true, runs[0].Details["forced"])
}

func TestRunNowEventAutomationIsNotGated(t *testing.T) {
	f := newNotifFixture()
	f.addFamily("family@example.com", lifecycle.ApplicantComplete, false)
	rule := f.automations.add(eventRule(lifecycle.EventCompleted, audience.Filter{}))

	sent, err := f.svc.RunNow(context.Background(), rule.ID, false, SystemActor)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestDeliveriesRequiresExistingAutomation(t *testing.T) {
	f := newNotifFixture()
	_, err := f.svc.Deliveries(context.Background(), 99, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAutomationNotFound))
}
