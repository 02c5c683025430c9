package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tallpines/campreg/internal/db"
)

// Querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx. Methods
// that must run inside a caller-controlled transaction accept it instead of
// the pool.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories holds all the repository instances
type Repositories struct {
	UserRepository        *UserRepository
	ApplicationRepository *ApplicationRepository
	SectionRepository     *SectionRepository
	ResponseRepository    *ResponseRepository
	AuditLogRepository    *AuditLogRepository
	AutomationRepository  *AutomationRepository
	DeliveryLogRepository *DeliveryLogRepository
}

// NewRepositories initializes all repositories. Repositories whose writes
// must commit together with an audit entry receive the transaction-capable
// database handle; read-mostly ones get the bare pool.
func NewRepositories(database *db.PostgresDB) *Repositories {
	auditRepo := NewAuditLogRepository(database.Pool)
	return &Repositories{
		UserRepository:        NewUserRepository(database.Pool),
		ApplicationRepository: NewApplicationRepository(database, auditRepo),
		SectionRepository:     NewSectionRepository(database, auditRepo),
		ResponseRepository:    NewResponseRepository(database, auditRepo),
		AuditLogRepository:    auditRepo,
		AutomationRepository:  NewAutomationRepository(database, auditRepo),
		DeliveryLogRepository: NewDeliveryLogRepository(database.Pool),
	}
}
