package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tallpines/campreg/internal/app/models"
	"github.com/tallpines/campreg/internal/app/repositories"
	"github.com/tallpines/campreg/internal/pkg/logger"
)

// Audit categories and severities. These are derived at read time, never
// stored, so reclassifying an action does not require migrating history.
const (
	CategoryLifecycle     = "lifecycle"
	CategoryConfiguration = "configuration"
	CategoryNotifications = "notifications"
	CategoryOperations    = "operations"
	CategoryGeneral       = "general"

	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
)

var categoryByEntity = map[string]string{
	models.EntityApplication: CategoryLifecycle,
	models.EntitySection:     CategoryConfiguration,
	models.EntityQuestion:    CategoryConfiguration,
	models.EntityAutomation:  CategoryNotifications,
	models.EntitySystem:      CategoryOperations,
}

var severityByAction = map[string]string{
	models.AuditActionTransition:         SeverityInfo,
	models.AuditActionTransitionRejected: SeverityWarning,
	models.AuditActionResponseSaved:      SeverityInfo,
	models.AuditActionPaymentRecorded:    SeverityInfo,
	models.AuditActionAnnualReset:        SeverityWarning,
	models.AuditActionCreated:            SeverityInfo,
	models.AuditActionUpdated:            SeverityInfo,
	models.AuditActionDeactivated:        SeverityWarning,
	models.AuditActionDeleted:            SeverityWarning,
	models.AuditActionAutomationRun:      SeverityInfo,
}

// Categorize fills in the derived Category and Severity fields of an entry.
func Categorize(entry *models.AuditLogEntry) {
	entry.Category = categoryByEntity[entry.EntityType]
	if entry.Category == "" {
		entry.Category = CategoryGeneral
	}
	entry.Severity = severityByAction[entry.Action]
	if entry.Severity == "" {
		entry.Severity = SeverityInfo
	}
}

// AuditService is the read side of the audit trail plus the best-effort write
// path for entries that need not commit atomically with a mutation.
type AuditService struct {
	store  AuditStore
	logger zerolog.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{
		store:  store,
		logger: logger.With("audit_service"),
	}
}

// Record writes one entry outside any transaction.
func (s *AuditService) Record(ctx context.Context, entry *models.AuditLogEntry) error {
	return s.store.Record(ctx, entry)
}

// Query returns matching entries, newest first, with the derived category and
// severity filled in.
func (s *AuditService) Query(ctx context.Context, f repositories.AuditQuery) ([]*models.AuditLogEntry, error) {
	entries, err := s.store.Query(ctx, f)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		Categorize(entry)
	}
	return entries, nil
}
