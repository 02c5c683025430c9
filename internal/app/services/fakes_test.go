package services

import (
	"context"
	"time"

	"github.com/tallpines/campreg/internal/app/lifecycle"
	"github.com/tallpines/campreg/internal/app/models"
	"github.com/tallpines/campreg/internal/app/repositories"
	"github.com/tallpines/campreg/internal/pkg/apperrors"
	"github.com/tallpines/campreg/internal/pkg/mailer"
)

// In-memory store fakes. They mirror the repository semantics closely enough
// for the orchestration logic under test, including the compare-and-set
// transition and the dedup-key claim. Audit entries passed into mutating
// methods land in the shared audit fake, like the repositories committing
// them in the same transaction.

type fakeApplicationStore struct {
	apps   map[int64]*models.Application
	owners map[int64]*models.User
	nextID int64
	audit  *fakeAuditStore

	// beforeTransition, when set, runs inside TransitionState ahead of the
	// compare, so a test can interleave a competing writer.
	beforeTransition func()
}

func newFakeApplicationStore(audit *fakeAuditStore) *fakeApplicationStore {
	return &fakeApplicationStore{
		apps:   make(map[int64]*models.Application),
		owners: make(map[int64]*models.User),
		audit:  audit,
	}
}

func (f *fakeApplicationStore) add(app *models.Application) *models.Application {
	f.nextID++
	app.ID = f.nextID
	f.apps[app.ID] = app
	return app
}

func (f *fakeApplicationStore) Create(_ context.Context, app *models.Application, entry *models.AuditLogEntry) error {
	app.CreatedAt = time.Now()
	app.UpdatedAt = app.CreatedAt
	f.add(app)
	if entry != nil {
		entry.EntityID = app.ID
	}
	f.audit.commit(entry)
	return nil
}

func (f *fakeApplicationStore) GetByID(_ context.Context, id int64) (*models.Application, error) {
	app, ok := f.apps[id]
	if !ok {
		return nil, apperrors.ErrApplicationNotFound
	}
	c := *app
	return &c, nil
}

func (f *fakeApplicationStore) GetByUserID(_ context.Context, userID int64) (*models.Application, error) {
	for _, app := range f.apps {
		if app.UserID == userID {
			c := *app
			return &c, nil
		}
	}
	return nil, apperrors.ErrApplicationNotFound
}

func (f *fakeApplicationStore) List(_ context.Context, status *models.Status) ([]*models.Application, error) {
	var result []*models.Application
	for id := int64(1); id <= f.nextID; id++ {
		app, ok := f.apps[id]
		if !ok || (status != nil && app.Status != *status) {
			continue
		}
		c := *app
		result = append(result, &c)
	}
	return result, nil
}

func (f *fakeApplicationStore) ListWithOwners(_ context.Context) ([]models.ApplicationWithOwner, error) {
	var result []models.ApplicationWithOwner
	for id := int64(1); id <= f.nextID; id++ {
		app, ok := f.apps[id]
		if !ok {
			continue
		}
		owner, ok := f.owners[app.UserID]
		if !ok {
			continue
		}
		a := *app
		u := *owner
		result = append(result, models.ApplicationWithOwner{Application: &a, Owner: &u})
	}
	return result, nil
}

func (f *fakeApplicationStore) UpdateCompletion(_ context.Context, id int64, percentage int) error {
	app, ok := f.apps[id]
	if !ok {
		return apperrors.ErrApplicationNotFound
	}
	app.CompletionPercentage = percentage
	return nil
}

func (f *fakeApplicationStore) TransitionState(_ context.Context, id int64, expected, target lifecycle.State, milestone lifecycle.Milestone, at time.Time, entry *models.AuditLogEntry) error {
	if f.beforeTransition != nil {
		f.beforeTransition()
	}
	app, ok := f.apps[id]
	if !ok {
		return apperrors.ErrApplicationNotFound
	}
	if lifecycle.StateOf(app) != expected {
		return apperrors.ErrConcurrentModification
	}
	app.Status = target.Status
	app.SubStatus = target.SubStatus
	app.UpdatedAt = at
	stampMilestone(app, milestone, at)
	f.audit.commit(entry)
	return nil
}

func (f *fakeApplicationStore) SetPaid(_ context.Context, id int64, at time.Time, entry *models.AuditLogEntry) error {
	app, ok := f.apps[id]
	if !ok {
		return apperrors.ErrApplicationNotFound
	}
	app.HasPaid = true
	if app.PaidAt == nil {
		t := at
		app.PaidAt = &t
	}
	f.audit.commit(entry)
	return nil
}

func stampMilestone(app *models.Application, milestone lifecycle.Milestone, at time.Time) {
	set := func(field **time.Time) {
		if *field == nil {
			t := at
			*field = &t
		}
	}
	switch milestone {
	case lifecycle.MilestoneCompleted:
		set(&app.CompletedAt)
	case lifecycle.MilestoneUnderReview:
		set(&app.UnderReviewAt)
	case lifecycle.MilestonePromoted:
		set(&app.PromotedToCamperAt)
	case lifecycle.MilestoneWaitlisted:
		set(&app.WaitlistedAt)
	case lifecycle.MilestoneDeferred:
		set(&app.DeferredAt)
	case lifecycle.MilestoneWithdrawn:
		set(&app.WithdrawnAt)
	case lifecycle.MilestoneRejected:
		set(&app.RejectedAt)
	case lifecycle.MilestonePaid:
		set(&app.PaidAt)
	}
}

type fakeSectionStore struct {
	sections  map[int64]*models.Section
	questions map[int64]*models.Question
	nextID    int64
	audit     *fakeAuditStore
}

func newFakeSectionStore(audit *fakeAuditStore) *fakeSectionStore {
	return &fakeSectionStore{
		sections:  make(map[int64]*models.Section),
		questions: make(map[int64]*models.Question),
		audit:     audit,
	}
}

func (f *fakeSectionStore) addSection(s *models.Section) *models.Section {
	f.nextID++
	s.ID = f.nextID
	s.IsActive = true
	f.sections[s.ID] = s
	return s
}

func (f *fakeSectionStore) addQuestion(s *models.Section, q *models.Question) *models.Question {
	f.nextID++
	q.ID = f.nextID
	q.SectionID = s.ID
	q.IsActive = true
	s.Questions = append(s.Questions, q)
	f.questions[q.ID] = q
	return q
}

func (f *fakeSectionStore) ListActive(_ context.Context) ([]*models.Section, error) {
	var result []*models.Section
	for id := int64(1); id <= f.nextID; id++ {
		if s, ok := f.sections[id]; ok && s.IsActive {
			result = append(result, s)
		}
	}
	return result, nil
}

func (f *fakeSectionStore) GetSectionByID(_ context.Context, id int64) (*models.Section, error) {
	s, ok := f.sections[id]
	if !ok {
		return nil, apperrors.ErrSectionNotFound
	}
	return s, nil
}

func (f *fakeSectionStore) CreateSection(_ context.Context, s *models.Section, entry *models.AuditLogEntry) error {
	f.addSection(s)
	if entry != nil {
		entry.EntityID = s.ID
	}
	f.audit.commit(entry)
	return nil
}

func (f *fakeSectionStore) UpdateSection(_ context.Context, s *models.Section, entry *models.AuditLogEntry) error {
	if _, ok := f.sections[s.ID]; !ok {
		return apperrors.ErrSectionNotFound
	}
	f.sections[s.ID] = s
	f.audit.commit(entry)
	return nil
}

func (f *fakeSectionStore) DeactivateSection(_ context.Context, id int64, entry *models.AuditLogEntry) error {
	s, ok := f.sections[id]
	if !ok {
		return apperrors.ErrSectionNotFound
	}
	s.IsActive = false
	for _, q := range s.Questions {
		q.IsActive = false
	}
	f.audit.commit(entry)
	return nil
}

func (f *fakeSectionStore) GetQuestionByID(_ context.Context, id int64) (*models.Question, error) {
	q, ok := f.questions[id]
	if !ok {
		return nil, apperrors.ErrQuestionNotFound
	}
	return q, nil
}

func (f *fakeSectionStore) CreateQuestion(_ context.Context, q *models.Question, entry *models.AuditLogEntry) error {
	s, ok := f.sections[q.SectionID]
	if !ok {
		return apperrors.ErrSectionNotFound
	}
	f.addQuestion(s, q)
	if entry != nil {
		entry.EntityID = q.ID
	}
	f.audit.commit(entry)
	return nil
}

func (f *fakeSectionStore) UpdateQuestion(_ context.Context, q *models.Question, entry *models.AuditLogEntry) error {
	if _, ok := f.questions[q.ID]; !ok {
		return apperrors.ErrQuestionNotFound
	}
	f.questions[q.ID] = q
	f.audit.commit(entry)
	return nil
}

func (f *fakeSectionStore) DeactivateQuestion(_ context.Context, id int64, entry *models.AuditLogEntry) error {
	q, ok := f.questions[id]
	if !ok {
		return apperrors.ErrQuestionNotFound
	}
	q.IsActive = false
	f.audit.commit(entry)
	return nil
}

type fakeResponseStore struct {
	answers         map[int64]map[int64]string
	annualQuestions map[int64]bool
	nextID          int64
	audit           *fakeAuditStore
}

func newFakeResponseStore(audit *fakeAuditStore) *fakeResponseStore {
	return &fakeResponseStore{
		answers:         make(map[int64]map[int64]string),
		annualQuestions: make(map[int64]bool),
		audit:           audit,
	}
}

func (f *fakeResponseStore) set(applicationID, questionID int64, value string) {
	if f.answers[applicationID] == nil {
		f.answers[applicationID] = make(map[int64]string)
	}
	f.answers[applicationID][questionID] = value
}

func (f *fakeResponseStore) Upsert(_ context.Context, resp *models.Response, entry *models.AuditLogEntry) error {
	f.nextID++
	resp.ID = f.nextID
	resp.UpdatedAt = time.Now()
	value := resp.Value
	if value == "" && resp.FileID != nil {
		value = "[file]"
	}
	f.set(resp.ApplicationID, resp.QuestionID, value)
	f.audit.commit(entry)
	return nil
}

func (f *fakeResponseStore) MapByApplication(_ context.Context, applicationID int64) (map[int64]string, error) {
	result := make(map[int64]string)
	for questionID, value := range f.answers[applicationID] {
		if value != "" {
			result[questionID] = value
		}
	}
	return result, nil
}

func (f *fakeResponseStore) ListByApplication(_ context.Context, applicationID int64) ([]*models.Response, error) {
	var result []*models.Response
	for questionID, value := range f.answers[applicationID] {
		result = append(result, &models.Response{
			ApplicationID: applicationID,
			QuestionID:    questionID,
			Value:         value,
		})
	}
	return result, nil
}

func (f *fakeResponseStore) ClearResetAnnually(_ context.Context) (int64, error) {
	var cleared int64
	for _, answers := range f.answers {
		for questionID := range answers {
			if f.annualQuestions[questionID] {
				delete(answers, questionID)
				cleared++
			}
		}
	}
	return cleared, nil
}

type fakeUserStore struct {
	users  map[int64]*models.User
	nextID int64
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[int64]*models.User)}
}

func (f *fakeUserStore) add(u *models.User) *models.User {
	f.nextID++
	u.ID = f.nextID
	f.users[u.ID] = u
	return u
}

func (f *fakeUserStore) Create(_ context.Context, u *models.User) error {
	f.add(u)
	return nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (f *fakeUserStore) GetByExternalID(_ context.Context, externalID string) (*models.User, error) {
	for _, u := range f.users {
		if u.ExternalID == externalID {
			return u, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (f *fakeUserStore) List(_ context.Context, role *models.RoleType) ([]*models.User, error) {
	var result []*models.User
	for id := int64(1); id <= f.nextID; id++ {
		if u, ok := f.users[id]; ok && (role == nil || u.RoleType == *role) {
			result = append(result, u)
		}
	}
	return result, nil
}

type fakeAuditStore struct {
	entries []*models.AuditLogEntry
}

func (f *fakeAuditStore) Record(_ context.Context, entry *models.AuditLogEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

// commit is what the mutating store fakes call for entries that ride along
// with a state change.
func (f *fakeAuditStore) commit(entry *models.AuditLogEntry) {
	if entry != nil {
		f.entries = append(f.entries, entry)
	}
}

func (f *fakeAuditStore) Query(_ context.Context, q repositories.AuditQuery) ([]*models.AuditLogEntry, error) {
	var result []*models.AuditLogEntry
	for _, entry := range f.entries {
		if q.EntityType != "" && entry.EntityType != q.EntityType {
			continue
		}
		if q.Action != "" && entry.Action != q.Action {
			continue
		}
		result = append(result, entry)
	}
	return result, nil
}

func (f *fakeAuditStore) byAction(action string) []*models.AuditLogEntry {
	var result []*models.AuditLogEntry
	for _, entry := range f.entries {
		if entry.Action == action {
			result = append(result, entry)
		}
	}
	return result
}

type fakeAutomationStore struct {
	automations map[int64]*models.EmailAutomation
	nextID      int64
	audit       *fakeAuditStore
}

func newFakeAutomationStore(audit *fakeAuditStore) *fakeAutomationStore {
	return &fakeAutomationStore{
		automations: make(map[int64]*models.EmailAutomation),
		audit:       audit,
	}
}

func (f *fakeAutomationStore) add(a *models.EmailAutomation) *models.EmailAutomation {
	f.nextID++
	a.ID = f.nextID
	f.automations[a.ID] = a
	return a
}

func (f *fakeAutomationStore) Create(_ context.Context, a *models.EmailAutomation, entry *models.AuditLogEntry) error {
	f.add(a)
	if entry != nil {
		entry.EntityID = a.ID
	}
	f.audit.commit(entry)
	return nil
}

func (f *fakeAutomationStore) Update(_ context.Context, a *models.EmailAutomation, entry *models.AuditLogEntry) error {
	if _, ok := f.automations[a.ID]; !ok {
		return apperrors.ErrAutomationNotFound
	}
	f.automations[a.ID] = a
	f.audit.commit(entry)
	return nil
}

func (f *fakeAutomationStore) GetByID(_ context.Context, id int64) (*models.EmailAutomation, error) {
	a, ok := f.automations[id]
	if !ok {
		return nil, apperrors.ErrAutomationNotFound
	}
	c := *a
	return &c, nil
}

func (f *fakeAutomationStore) List(_ context.Context) ([]*models.EmailAutomation, error) {
	var result []*models.EmailAutomation
	for id := int64(1); id <= f.nextID; id++ {
		if a, ok := f.automations[id]; ok {
			result = append(result, a)
		}
	}
	return result, nil
}

func (f *fakeAutomationStore) Delete(_ context.Context, id int64, entry *models.AuditLogEntry) error {
	if _, ok := f.automations[id]; !ok {
		return apperrors.ErrAutomationNotFound
	}
	delete(f.automations, id)
	f.audit.commit(entry)
	return nil
}

func (f *fakeAutomationStore) ListActiveByEvent(_ context.Context, event string) ([]*models.EmailAutomation, error) {
	var result []*models.EmailAutomation
	for id := int64(1); id <= f.nextID; id++ {
		a, ok := f.automations[id]
		if !ok || !a.IsActive || a.TriggerType != models.TriggerTypeEvent {
			continue
		}
		if a.TriggerEvent != nil && *a.TriggerEvent == event {
			result = append(result, a)
		}
	}
	return result, nil
}

func (f *fakeAutomationStore) ListDueScheduled(_ context.Context, day, hour int, periodStart time.Time) ([]*models.EmailAutomation, error) {
	var result []*models.EmailAutomation
	for id := int64(1); id <= f.nextID; id++ {
		a, ok := f.automations[id]
		if !ok || !a.IsActive || a.TriggerType != models.TriggerTypeScheduled {
			continue
		}
		if a.ScheduleDay == nil || a.ScheduleHour == nil || *a.ScheduleDay != day || *a.ScheduleHour != hour {
			continue
		}
		if a.LastSentAt != nil && !a.LastSentAt.Before(periodStart) {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

func (f *fakeAutomationStore) ClaimScheduledRun(_ context.Context, id int64, periodStart, at time.Time) (bool, error) {
	a, ok := f.automations[id]
	if !ok || !a.IsActive {
		return false, nil
	}
	if a.LastSentAt != nil && !a.LastSentAt.Before(periodStart) {
		return false, nil
	}
	t := at
	a.LastSentAt = &t
	return true, nil
}

func (f *fakeAutomationStore) SetLastSent(_ context.Context, id int64, at time.Time) error {
	a, ok := f.automations[id]
	if !ok {
		return apperrors.ErrAutomationNotFound
	}
	t := at
	a.LastSentAt = &t
	return nil
}

type fakeDeliveryStore struct {
	entries []*models.DeliveryLogEntry
	claimed map[string]bool
	nextID  int64
}

func newFakeDeliveryStore() *fakeDeliveryStore {
	return &fakeDeliveryStore{claimed: make(map[string]bool)}
}

func (f *fakeDeliveryStore) Claim(_ context.Context, entry *models.DeliveryLogEntry) (bool, error) {
	if f.claimed[entry.DedupKey] {
		return false, nil
	}
	f.claimed[entry.DedupKey] = true
	f.nextID++
	entry.ID = f.nextID
	entry.CreatedAt = time.Now()
	f.entries = append(f.entries, entry)
	return true, nil
}

func (f *fakeDeliveryStore) UpdateOutcome(_ context.Context, id int64, status models.DeliveryStatus, sendErr *string) error {
	for _, entry := range f.entries {
		if entry.ID == id {
			entry.Status = status
			entry.Error = sendErr
			return nil
		}
	}
	return apperrors.ErrResourceNotFound
}

func (f *fakeDeliveryStore) ListByAutomation(_ context.Context, automationID int64, _ int) ([]*models.DeliveryLogEntry, error) {
	var result []*models.DeliveryLogEntry
	for _, entry := range f.entries {
		if entry.AutomationID == automationID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type fakeDispatcher struct {
	jobs    []mailer.Job
	failFor map[string]error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, job mailer.Job) error {
	if err, ok := f.failFor[job.Recipient]; ok {
		return err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeNotifier struct {
	events []lifecycle.Event
}

func (f *fakeNotifier) OnEvent(_ context.Context, event lifecycle.Event) error {
	f.events = append(f.events, event)
	return nil
}
