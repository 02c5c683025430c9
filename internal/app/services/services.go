// Package services contains the business logic layer. Services orchestrate
// the pure lifecycle/completion/audience packages over the persistence layer
// and are the only callers of the state-changing repository methods.
//
// Services depend on the narrow store interfaces below rather than on the
// concrete repositories, so tests can substitute in-memory fakes.
package services

import (
	"context"
	"time"

	"github.com/tallpines/campreg/internal/app/lifecycle"
	"github.com/tallpines/campreg/internal/app/models"
	"github.com/tallpines/campreg/internal/app/repositories"
)

// Actor identifies who performed a state-changing action, plus the request
// metadata recorded in the audit trail. The zero value is the system actor
// (scheduler ticks, annual reset).
type Actor struct {
	UserID    *int64
	IPAddress string
	UserAgent string
}

// SystemActor is the actor recorded for actions no user initiated.
var SystemActor = Actor{}

// ApplicationStore is the persistence surface the application service needs.
// Methods that take an audit entry commit it together with the mutation.
type ApplicationStore interface {
	Create(ctx context.Context, app *models.Application, entry *models.AuditLogEntry) error
	GetByID(ctx context.Context, id int64) (*models.Application, error)
	GetByUserID(ctx context.Context, userID int64) (*models.Application, error)
	List(ctx context.Context, status *models.Status) ([]*models.Application, error)
	ListWithOwners(ctx context.Context) ([]models.ApplicationWithOwner, error)
	UpdateCompletion(ctx context.Context, id int64, percentage int) error
	TransitionState(ctx context.Context, id int64, expected, target lifecycle.State,
		milestone lifecycle.Milestone, at time.Time, entry *models.AuditLogEntry) error
	SetPaid(ctx context.Context, id int64, at time.Time, entry *models.AuditLogEntry) error
}

// SectionStore is the persistence surface for form configuration.
type SectionStore interface {
	ListActive(ctx context.Context) ([]*models.Section, error)
	GetSectionByID(ctx context.Context, id int64) (*models.Section, error)
	CreateSection(ctx context.Context, s *models.Section, entry *models.AuditLogEntry) error
	UpdateSection(ctx context.Context, s *models.Section, entry *models.AuditLogEntry) error
	DeactivateSection(ctx context.Context, id int64, entry *models.AuditLogEntry) error
	GetQuestionByID(ctx context.Context, id int64) (*models.Question, error)
	CreateQuestion(ctx context.Context, q *models.Question, entry *models.AuditLogEntry) error
	UpdateQuestion(ctx context.Context, q *models.Question, entry *models.AuditLogEntry) error
	DeactivateQuestion(ctx context.Context, id int64, entry *models.AuditLogEntry) error
}

// ResponseStore is the persistence surface for form answers.
type ResponseStore interface {
	Upsert(ctx context.Context, resp *models.Response, entry *models.AuditLogEntry) error
	MapByApplication(ctx context.Context, applicationID int64) (map[int64]string, error)
	ListByApplication(ctx context.Context, applicationID int64) ([]*models.Response, error)
	ClearResetAnnually(ctx context.Context) (int64, error)
}

// UserStore is the persistence surface for user profiles.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)
	List(ctx context.Context, role *models.RoleType) ([]*models.User, error)
}

// AuditStore is the audit trail as services see it. Record is reserved for
// entries with no accompanying mutation (rejected attempts, run summaries);
// an entry that must commit atomically with a state change rides through the
// mutating store method instead.
type AuditStore interface {
	Record(ctx context.Context, entry *models.AuditLogEntry) error
	Query(ctx context.Context, f repositories.AuditQuery) ([]*models.AuditLogEntry, error)
}

// AutomationStore is the persistence surface for email automations.
type AutomationStore interface {
	Create(ctx context.Context, a *models.EmailAutomation, entry *models.AuditLogEntry) error
	Update(ctx context.Context, a *models.EmailAutomation, entry *models.AuditLogEntry) error
	GetByID(ctx context.Context, id int64) (*models.EmailAutomation, error)
	List(ctx context.Context) ([]*models.EmailAutomation, error)
	Delete(ctx context.Context, id int64, entry *models.AuditLogEntry) error
	ListActiveByEvent(ctx context.Context, event string) ([]*models.EmailAutomation, error)
	ListDueScheduled(ctx context.Context, day, hour int, periodStart time.Time) ([]*models.EmailAutomation, error)
	ClaimScheduledRun(ctx context.Context, id int64, periodStart, at time.Time) (bool, error)
	SetLastSent(ctx context.Context, id int64, at time.Time) error
}

// DeliveryStore records per-recipient notification outcomes.
type DeliveryStore interface {
	Claim(ctx context.Context, entry *models.DeliveryLogEntry) (bool, error)
	UpdateOutcome(ctx context.Context, id int64, status models.DeliveryStatus, sendErr *string) error
	ListByAutomation(ctx context.Context, automationID int64, limit int) ([]*models.DeliveryLogEntry, error)
}

// Notifier receives lifecycle events after the transition commits. It is
// called outside the transaction; a failing notifier never rolls back a
// transition.
type Notifier interface {
	OnEvent(ctx context.Context, event lifecycle.Event) error
}

// Compile-time checks that the repositories satisfy the store interfaces.
var (
	_ ApplicationStore = (*repositories.ApplicationRepository)(nil)
	_ SectionStore     = (*repositories.SectionRepository)(nil)
	_ ResponseStore    = (*repositories.ResponseRepository)(nil)
	_ UserStore        = (*repositories.UserRepository)(nil)
	_ AuditStore       = (*repositories.AuditLogRepository)(nil)
	_ AutomationStore  = (*repositories.AutomationRepository)(nil)
	_ DeliveryStore    = (*repositories.DeliveryLogRepository)(nil)
)

// newAuditEntry builds an audit entry stamped with the actor's identity and
// request metadata.
func newAuditEntry(entityType string, entityID int64, action string, actor Actor, details map[string]any) *models.AuditLogEntry {
	return &models.AuditLogEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorID:    actor.UserID,
		Details:    details,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
	}
}
