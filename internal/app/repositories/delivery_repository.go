package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tallpines/campreg/internal/app/models"
)

// DeliveryLogRepository records per-recipient notification outcomes. The
// dedup key column carries a unique index; Claim relies on it to make
// enqueue-once semantics a database guarantee rather than an in-memory one.
type DeliveryLogRepository struct {
	db *pgxpool.Pool
}

// NewDeliveryLogRepository creates a new delivery log repository
func NewDeliveryLogRepository(db *pgxpool.Pool) *DeliveryLogRepository {
	return &DeliveryLogRepository{db: db}
}

// Claim inserts the entry if its dedup key is unseen and reports whether this
// caller won the claim. A false return means the same (automation, recipient,
// application, day) job was already enqueued, e.g. by a retried transition.
func (r *DeliveryLogRepository) Claim(ctx context.Context, entry *models.DeliveryLogEntry) (bool, error) {
	query := `
		INSERT INTO delivery_log (automation_id, application_id, job_id, recipient, template_key, status, dedup_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (dedup_key) DO NOTHING
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		entry.AutomationID, entry.ApplicationID, entry.JobID, entry.Recipient,
		entry.TemplateKey, entry.Status, entry.DedupKey,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("error claiming delivery: %w", err)
	}
	return true, nil
}

// UpdateOutcome records the final status of a claimed job.
func (r *DeliveryLogRepository) UpdateOutcome(ctx context.Context, id int64, status models.DeliveryStatus, sendErr *string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE delivery_log SET status = $1, error = $2 WHERE id = $3`,
		status, sendErr, id)
	if err != nil {
		return fmt.Errorf("error updating delivery outcome: %w", err)
	}
	return nil
}

// ListByAutomation returns the most recent deliveries for one automation,
// newest first. This is the admin's view into silent notification failures.
func (r *DeliveryLogRepository) ListByAutomation(ctx context.Context, automationID int64, limit int) ([]*models.DeliveryLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, automation_id, application_id, job_id, recipient, template_key, status, error, dedup_key, created_at
		FROM delivery_log
		WHERE automation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, automationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.DeliveryLogEntry
	for rows.Next() {
		var e models.DeliveryLogEntry
		if err := rows.Scan(
			&e.ID, &e.AutomationID, &e.ApplicationID, &e.JobID, &e.Recipient,
			&e.TemplateKey, &e.Status, &e.Error, &e.DedupKey, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
