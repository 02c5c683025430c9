package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tallpines/campreg/internal/app/lifecycle"
	"github.com/tallpines/campreg/internal/app/models"
	"github.com/tallpines/campreg/internal/db"
	"github.com/tallpines/campreg/internal/pkg/apperrors"
)

const applicationColumns = `
	id, user_id, status, sub_status, completion_percentage, is_returning, has_paid,
	completed_at, under_review_at, promoted_to_camper_at, waitlisted_at,
	deferred_at, withdrawn_at, rejected_at, paid_at, created_at, updated_at`

// milestoneColumns whitelists the columns the state machine may stamp. The
// column name is interpolated into SQL, so it must come from this table and
// nowhere else.
var milestoneColumns = map[lifecycle.Milestone]string{
	lifecycle.MilestoneCompleted:   "completed_at",
	lifecycle.MilestoneUnderReview: "under_review_at",
	lifecycle.MilestonePromoted:    "promoted_to_camper_at",
	lifecycle.MilestoneWaitlisted:  "waitlisted_at",
	lifecycle.MilestoneDeferred:    "deferred_at",
	lifecycle.MilestoneWithdrawn:   "withdrawn_at",
	lifecycle.MilestoneRejected:    "rejected_at",
	lifecycle.MilestonePaid:        "paid_at",
}

// ApplicationRepository handles database operations for applications. The
// state-changing methods write the audit entry in the same transaction as the
// mutation, so either both commit or neither does.
type ApplicationRepository struct {
	db        *db.PostgresDB
	auditRepo *AuditLogRepository
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(database *db.PostgresDB, auditRepo *AuditLogRepository) *ApplicationRepository {
	return &ApplicationRepository{
		db:        database,
		auditRepo: auditRepo,
	}
}

func scanApplication(row pgx.Row) (*models.Application, error) {
	var app models.Application
	err := row.Scan(
		&app.ID, &app.UserID, &app.Status, &app.SubStatus,
		&app.CompletionPercentage, &app.IsReturning, &app.HasPaid,
		&app.CompletedAt, &app.UnderReviewAt, &app.PromotedToCamperAt,
		&app.WaitlistedAt, &app.DeferredAt, &app.WithdrawnAt, &app.RejectedAt,
		&app.PaidAt, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("error scanning application: %w", err)
	}
	return &app, nil
}

// Create inserts a new application in the initial applicant/not_started state.
// The creation audit entry commits with the row; its entity id is filled in
// once the row exists.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application, entry *models.AuditLogEntry) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		query := `
			INSERT INTO applications (user_id, status, sub_status, completion_percentage, is_returning)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRow(ctx, query,
			app.UserID, app.Status, app.SubStatus, app.CompletionPercentage, app.IsReturning,
		).Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt)
		if err != nil {
			return fmt.Errorf("error creating application: %w", err)
		}

		if entry != nil {
			entry.EntityID = app.ID
			if err := r.auditRepo.Insert(ctx, tx, entry); err != nil {
				return fmt.Errorf("error recording audit entry: %w", err)
			}
		}
		return nil
	})
}

// GetByID retrieves an application by ID
func (r *ApplicationRepository) GetByID(ctx context.Context, id int64) (*models.Application, error) {
	query := `SELECT` + applicationColumns + ` FROM applications WHERE id = $1`
	return scanApplication(r.db.Pool.QueryRow(ctx, query, id))
}

// GetByUserID retrieves the application owned by a user.
func (r *ApplicationRepository) GetByUserID(ctx context.Context, userID int64) (*models.Application, error) {
	query := `SELECT` + applicationColumns + ` FROM applications WHERE user_id = $1`
	return scanApplication(r.db.Pool.QueryRow(ctx, query, userID))
}

// List retrieves applications, optionally filtered by status.
func (r *ApplicationRepository) List(ctx context.Context, status *models.Status) ([]*models.Application, error) {
	query := `SELECT` + applicationColumns + ` FROM applications`
	var args []any
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY id`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// ListWithOwners returns every application joined with its owning user. This
// is the projection scheduled automations evaluate their audience filter
// against.
func (r *ApplicationRepository) ListWithOwners(ctx context.Context) ([]models.ApplicationWithOwner, error) {
	query := `
		SELECT a.id, a.user_id, a.status, a.sub_status, a.completion_percentage,
		       a.is_returning, a.has_paid,
		       a.completed_at, a.under_review_at, a.promoted_to_camper_at,
		       a.waitlisted_at, a.deferred_at, a.withdrawn_at, a.rejected_at,
		       a.paid_at, a.created_at, a.updated_at,
		       u.id, u.external_id, u.email, u.first_name, u.last_name,
		       u.role_type, u.is_active, u.created_at
		FROM applications a
		JOIN users u ON u.id = a.user_id
		WHERE u.is_active
		ORDER BY a.id
	`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.ApplicationWithOwner
	for rows.Next() {
		var app models.Application
		var user models.User
		err := rows.Scan(
			&app.ID, &app.UserID, &app.Status, &app.SubStatus,
			&app.CompletionPercentage, &app.IsReturning, &app.HasPaid,
			&app.CompletedAt, &app.UnderReviewAt, &app.PromotedToCamperAt,
			&app.WaitlistedAt, &app.DeferredAt, &app.WithdrawnAt, &app.RejectedAt,
			&app.PaidAt, &app.CreatedAt, &app.UpdatedAt,
			&user.ID, &user.ExternalID, &user.Email, &user.FirstName,
			&user.LastName, &user.RoleType, &user.IsActive, &user.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, models.ApplicationWithOwner{Application: &app, Owner: &user})
	}
	return result, rows.Err()
}

// UpdateCompletion stores a freshly computed completion percentage.
func (r *ApplicationRepository) UpdateCompletion(ctx context.Context, id int64, percentage int) error {
	cmdTag, err := r.db.Pool.Exec(ctx, `
		UPDATE applications SET completion_percentage = $1, updated_at = now() WHERE id = $2`,
		percentage, id)
	if err != nil {
		return fmt.Errorf("error updating completion: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrApplicationNotFound
	}
	return nil
}

// TransitionState applies a planned lifecycle transition as a single
// compare-and-set against the expected current state, stamping the milestone
// column iff it is still unset, and writes the audit entry in the same
// transaction. A zero-row update means another writer got there first:
// the caller sees ErrConcurrentModification and must re-read.
func (r *ApplicationRepository) TransitionState(
	ctx context.Context,
	id int64,
	expected, target lifecycle.State,
	milestone lifecycle.Milestone,
	at time.Time,
	entry *models.AuditLogEntry,
) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		query := `
			UPDATE applications
			SET status = $1, sub_status = $2, updated_at = now()
			WHERE id = $3 AND status = $4 AND sub_status = $5`
		args := []any{target.Status, target.SubStatus, id, expected.Status, expected.SubStatus}

		if col, ok := milestoneColumns[milestone]; ok && milestone != lifecycle.MilestoneNone {
			query = fmt.Sprintf(`
				UPDATE applications
				SET status = $1, sub_status = $2, updated_at = now(),
				    %s = COALESCE(%s, $6)
				WHERE id = $3 AND status = $4 AND sub_status = $5`, col, col)
			args = append(args, at)
		}

		cmdTag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("error applying transition: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS(SELECT 1 FROM applications WHERE id = $1)`, id).Scan(&exists); err != nil {
				return fmt.Errorf("error checking application existence: %w", err)
			}
			if !exists {
				return apperrors.ErrApplicationNotFound
			}
			return apperrors.ErrConcurrentModification
		}

		if entry != nil {
			if err := r.auditRepo.Insert(ctx, tx, entry); err != nil {
				return fmt.Errorf("error recording audit entry: %w", err)
			}
		}
		return nil
	})
}

// SetPaid records the payment-processor confirmation. paid_at is a milestone:
// set once, never overwritten. The audit entry commits with the flag.
func (r *ApplicationRepository) SetPaid(ctx context.Context, id int64, at time.Time, entry *models.AuditLogEntry) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		cmdTag, err := tx.Exec(ctx, `
			UPDATE applications
			SET has_paid = true, paid_at = COALESCE(paid_at, $1), updated_at = now()
			WHERE id = $2`, at, id)
		if err != nil {
			return fmt.Errorf("error recording payment: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return apperrors.ErrApplicationNotFound
		}

		if entry != nil {
			if err := r.auditRepo.Insert(ctx, tx, entry); err != nil {
				return fmt.Errorf("error recording audit entry: %w", err)
			}
		}
		return nil
	})
}
