package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tallpines/campreg/internal/app/models"
	"github.com/tallpines/campreg/internal/db"
)

// ResponseRepository stores the current answer per (application, question)
// pair. The pair is unique; Upsert overwrites in place.
type ResponseRepository struct {
	db        *db.PostgresDB
	auditRepo *AuditLogRepository
}

// NewResponseRepository creates a new response repository
func NewResponseRepository(database *db.PostgresDB, auditRepo *AuditLogRepository) *ResponseRepository {
	return &ResponseRepository{db: database, auditRepo: auditRepo}
}

// Upsert saves an answer, replacing any previous one for the same question.
// The audit entry commits in the same transaction as the answer.
func (r *ResponseRepository) Upsert(ctx context.Context, resp *models.Response, entry *models.AuditLogEntry) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		query := `
			INSERT INTO responses (application_id, question_id, value, file_id, updated_by, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (application_id, question_id)
			DO UPDATE SET value = EXCLUDED.value, file_id = EXCLUDED.file_id,
			              updated_by = EXCLUDED.updated_by, updated_at = now()
			RETURNING id, updated_at
		`
		err := tx.QueryRow(ctx, query,
			resp.ApplicationID, resp.QuestionID, resp.Value, resp.FileID, resp.UpdatedByID,
		).Scan(&resp.ID, &resp.UpdatedAt)
		if err != nil {
			return fmt.Errorf("error saving response: %w", err)
		}

		if entry != nil {
			if err := r.auditRepo.Insert(ctx, tx, entry); err != nil {
				return fmt.Errorf("error recording audit entry: %w", err)
			}
		}
		return nil
	})
}

// MapByApplication returns question id -> current answer value for one
// application. File-only answers surface as a marker value so the completion
// engine counts them as answered; conditional rules compare against text
// answers, which file uploads never govern.
func (r *ResponseRepository) MapByApplication(ctx context.Context, applicationID int64) (map[int64]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT question_id, value, file_id
		FROM responses
		WHERE application_id = $1`, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64]string)
	for rows.Next() {
		var questionID int64
		var value string
		var fileID *int64
		if err := rows.Scan(&questionID, &value, &fileID); err != nil {
			return nil, err
		}
		if value == "" && fileID != nil {
			value = "[file]"
		}
		if value != "" {
			result[questionID] = value
		}
	}
	return result, rows.Err()
}

// ListByApplication returns the full response rows for one application.
func (r *ResponseRepository) ListByApplication(ctx context.Context, applicationID int64) ([]*models.Response, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, application_id, question_id, value, file_id, updated_by, updated_at
		FROM responses
		WHERE application_id = $1
		ORDER BY question_id`, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []*models.Response
	for rows.Next() {
		var resp models.Response
		if err := rows.Scan(
			&resp.ID, &resp.ApplicationID, &resp.QuestionID, &resp.Value,
			&resp.FileID, &resp.UpdatedByID, &resp.UpdatedAt,
		); err != nil {
			return nil, err
		}
		responses = append(responses, &resp)
	}
	return responses, rows.Err()
}

// ClearResetAnnually deletes every answer to a reset_annually question, for
// all applications, as part of the annual reset. Returns the number of
// answers cleared.
func (r *ResponseRepository) ClearResetAnnually(ctx context.Context) (int64, error) {
	cmdTag, err := r.db.Pool.Exec(ctx, `
		DELETE FROM responses r
		USING questions q
		WHERE q.id = r.question_id AND q.reset_annually`)
	if err != nil {
		return 0, fmt.Errorf("error clearing annual responses: %w", err)
	}
	return cmdTag.RowsAffected(), nil
}
