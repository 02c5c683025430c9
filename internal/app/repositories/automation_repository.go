package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tallpines/campreg/internal/app/audience"
	"github.com/tallpines/campreg/internal/app/models"
	"github.com/tallpines/campreg/internal/db"
	"github.com/tallpines/campreg/internal/pkg/apperrors"
)

// AutomationRepository persists email automations. ClaimScheduledRun is the
// only code path that advances last_sent_at during scheduled dispatch, and it
// is a single atomic UPDATE so concurrent scheduler instances cannot both
// claim the same period. Configuration changes commit together with their
// audit entry.
type AutomationRepository struct {
	db        *db.PostgresDB
	auditRepo *AuditLogRepository
}

// NewAutomationRepository creates a new automation repository
func NewAutomationRepository(database *db.PostgresDB, auditRepo *AuditLogRepository) *AutomationRepository {
	return &AutomationRepository{db: database, auditRepo: auditRepo}
}

const automationColumns = `
	id, name, template_key, trigger_type, trigger_event, schedule_day,
	schedule_hour, audience_filter, is_active, last_sent_at, created_at, updated_at`

func scanAutomation(row pgx.Row) (*models.EmailAutomation, error) {
	var a models.EmailAutomation
	var filterRaw []byte
	err := row.Scan(
		&a.ID, &a.Name, &a.TemplateKey, &a.TriggerType, &a.TriggerEvent,
		&a.ScheduleDay, &a.ScheduleHour, &filterRaw, &a.IsActive,
		&a.LastSentAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrAutomationNotFound
		}
		return nil, fmt.Errorf("error scanning automation: %w", err)
	}
	if len(filterRaw) > 0 {
		if err := json.Unmarshal(filterRaw, &a.AudienceFilter); err != nil {
			return nil, fmt.Errorf("error decoding audience filter: %w", err)
		}
	}
	return &a, nil
}

func encodeFilter(f audience.Filter) ([]byte, error) {
	payload, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("error encoding audience filter: %w", err)
	}
	return payload, nil
}

// Create creates a new automation. The audit entry commits with the row; its
// entity id is filled in once the row exists.
func (r *AutomationRepository) Create(ctx context.Context, a *models.EmailAutomation, entry *models.AuditLogEntry) error {
	filterRaw, err := encodeFilter(a.AudienceFilter)
	if err != nil {
		return err
	}
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		query := `
			INSERT INTO email_automations (name, template_key, trigger_type, trigger_event,
			                               schedule_day, schedule_hour, audience_filter, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRow(ctx, query,
			a.Name, a.TemplateKey, a.TriggerType, a.TriggerEvent,
			a.ScheduleDay, a.ScheduleHour, filterRaw, a.IsActive,
		).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return fmt.Errorf("error creating automation: %w", err)
		}

		if entry != nil {
			entry.EntityID = a.ID
			if err := r.auditRepo.Insert(ctx, tx, entry); err != nil {
				return fmt.Errorf("error recording audit entry: %w", err)
			}
		}
		return nil
	})
}

// Update updates an existing automation. last_sent_at is deliberately not
// touched here. The audit entry commits with the change.
func (r *AutomationRepository) Update(ctx context.Context, a *models.EmailAutomation, entry *models.AuditLogEntry) error {
	filterRaw, err := encodeFilter(a.AudienceFilter)
	if err != nil {
		return err
	}
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		cmdTag, err := tx.Exec(ctx, `
			UPDATE email_automations
			SET name = $1, template_key = $2, trigger_type = $3, trigger_event = $4,
			    schedule_day = $5, schedule_hour = $6, audience_filter = $7,
			    is_active = $8, updated_at = now()
			WHERE id = $9`,
			a.Name, a.TemplateKey, a.TriggerType, a.TriggerEvent,
			a.ScheduleDay, a.ScheduleHour, filterRaw, a.IsActive, a.ID)
		if err != nil {
			return fmt.Errorf("error updating automation: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return apperrors.ErrAutomationNotFound
		}

		if entry != nil {
			if err := r.auditRepo.Insert(ctx, tx, entry); err != nil {
				return fmt.Errorf("error recording audit entry: %w", err)
			}
		}
		return nil
	})
}

// GetByID retrieves an automation by ID
func (r *AutomationRepository) GetByID(ctx context.Context, id int64) (*models.EmailAutomation, error) {
	return scanAutomation(r.db.Pool.QueryRow(ctx,
		`SELECT`+automationColumns+` FROM email_automations WHERE id = $1`, id))
}

// List retrieves all automations
func (r *AutomationRepository) List(ctx context.Context) ([]*models.EmailAutomation, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT`+automationColumns+` FROM email_automations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAutomations(rows)
}

// ListActiveByEvent returns the active event-triggered automations bound to
// one lifecycle event.
func (r *AutomationRepository) ListActiveByEvent(ctx context.Context, event string) ([]*models.EmailAutomation, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT`+automationColumns+`
		FROM email_automations
		WHERE is_active AND trigger_type = $1 AND trigger_event = $2
		ORDER BY id`,
		models.TriggerTypeEvent, event)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAutomations(rows)
}

// ListDueScheduled returns active scheduled automations whose day/hour match
// and whose last_sent_at predates the current period.
func (r *AutomationRepository) ListDueScheduled(ctx context.Context, day, hour int, periodStart time.Time) ([]*models.EmailAutomation, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT`+automationColumns+`
		FROM email_automations
		WHERE is_active AND trigger_type = $1
		  AND schedule_day = $2 AND schedule_hour = $3
		  AND (last_sent_at IS NULL OR last_sent_at < $4)
		ORDER BY id`,
		models.TriggerTypeScheduled, day, hour, periodStart)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAutomations(rows)
}

func collectAutomations(rows pgx.Rows) ([]*models.EmailAutomation, error) {
	var automations []*models.EmailAutomation
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, err
		}
		automations = append(automations, a)
	}
	return automations, rows.Err()
}

// ClaimScheduledRun advances last_sent_at for one scheduling period in a
// single compare-and-set. It returns false when another instance already
// claimed the period (or the rule was deactivated meanwhile).
func (r *AutomationRepository) ClaimScheduledRun(ctx context.Context, id int64, periodStart, at time.Time) (bool, error) {
	cmdTag, err := r.db.Pool.Exec(ctx, `
		UPDATE email_automations
		SET last_sent_at = $1
		WHERE id = $2 AND is_active
		  AND (last_sent_at IS NULL OR last_sent_at < $3)`,
		at, id, periodStart)
	if err != nil {
		return false, fmt.Errorf("error claiming scheduled run: %w", err)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// SetLastSent unconditionally stamps last_sent_at; used by forced manual
// runs.
func (r *AutomationRepository) SetLastSent(ctx context.Context, id int64, at time.Time) error {
	cmdTag, err := r.db.Pool.Exec(ctx,
		`UPDATE email_automations SET last_sent_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("error stamping last_sent_at: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrAutomationNotFound
	}
	return nil
}

// Delete removes an automation entirely, together with its deletion audit
// entry.
func (r *AutomationRepository) Delete(ctx context.Context, id int64, entry *models.AuditLogEntry) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		cmdTag, err := tx.Exec(ctx, `DELETE FROM email_automations WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("error deleting automation: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return apperrors.ErrAutomationNotFound
		}

		if entry != nil {
			if err := r.auditRepo.Insert(ctx, tx, entry); err != nil {
				return fmt.Errorf("error recording audit entry: %w", err)
			}
		}
		return nil
	})
}
