package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tallpines/campreg/internal/app/models"
	"github.com/tallpines/campreg/internal/db"
	"github.com/tallpines/campreg/internal/pkg/apperrors"
)

// SectionRepository handles the section/question form configuration. The
// completion engine reads it through ListActive; the admin form builder uses
// the CRUD methods, each of which commits its audit entry with the change.
type SectionRepository struct {
	db        *db.PostgresDB
	auditRepo *AuditLogRepository
}

// NewSectionRepository creates a new section repository
func NewSectionRepository(database *db.PostgresDB, auditRepo *AuditLogRepository) *SectionRepository {
	return &SectionRepository{db: database, auditRepo: auditRepo}
}

const sectionColumns = `
	id, name, position, required_status, visible_before_acceptance,
	score_calculation_type, is_active, created_at`

const questionColumns = `
	id, section_id, prompt, question_type, required, reset_annually,
	show_if_question_id, show_if_answer, position, is_active`

func scanSection(row pgx.Row) (*models.Section, error) {
	var s models.Section
	err := row.Scan(
		&s.ID, &s.Name, &s.Position, &s.RequiredStatus,
		&s.VisibleBeforeAcceptance, &s.ScoreCalculationType, &s.IsActive,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrSectionNotFound
		}
		return nil, fmt.Errorf("error scanning section: %w", err)
	}
	return &s, nil
}

func scanQuestion(row pgx.Row) (*models.Question, error) {
	var q models.Question
	err := row.Scan(
		&q.ID, &q.SectionID, &q.Prompt, &q.QuestionType, &q.Required,
		&q.ResetAnnually, &q.ShowIfQuestionID, &q.ShowIfAnswer, &q.Position,
		&q.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrQuestionNotFound
		}
		return nil, fmt.Errorf("error scanning question: %w", err)
	}
	return &q, nil
}

// insertAudit writes the entry inside the caller's transaction; nil entries
// are skipped.
func (r *SectionRepository) insertAudit(ctx context.Context, tx pgx.Tx, entry *models.AuditLogEntry) error {
	if entry == nil {
		return nil
	}
	if err := r.auditRepo.Insert(ctx, tx, entry); err != nil {
		return fmt.Errorf("error recording audit entry: %w", err)
	}
	return nil
}

// ListActive returns all active sections in display order, each with its
// questions attached (active and inactive; the completion engine filters).
func (r *SectionRepository) ListActive(ctx context.Context) ([]*models.Section, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT`+sectionColumns+` FROM sections WHERE is_active ORDER BY position, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []*models.Section
	byID := make(map[int64]*models.Section)
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		sections = append(sections, s)
		byID[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	qRows, err := r.db.Pool.Query(ctx,
		`SELECT`+questionColumns+` FROM questions ORDER BY section_id, position, id`)
	if err != nil {
		return nil, err
	}
	defer qRows.Close()

	for qRows.Next() {
		q, err := scanQuestion(qRows)
		if err != nil {
			return nil, err
		}
		if s, ok := byID[q.SectionID]; ok {
			s.Questions = append(s.Questions, q)
		}
	}
	return sections, qRows.Err()
}

// GetSectionByID retrieves one section with its questions.
func (r *SectionRepository) GetSectionByID(ctx context.Context, id int64) (*models.Section, error) {
	s, err := scanSection(r.db.Pool.QueryRow(ctx,
		`SELECT`+sectionColumns+` FROM sections WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Pool.Query(ctx,
		`SELECT`+questionColumns+` FROM questions WHERE section_id = $1 ORDER BY position, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		s.Questions = append(s.Questions, q)
	}
	return s, rows.Err()
}

// CreateSection creates a new section. The audit entry commits with the row;
// its entity id is filled in once the row exists.
func (r *SectionRepository) CreateSection(ctx context.Context, s *models.Section, entry *models.AuditLogEntry) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		query := `
			INSERT INTO sections (name, position, required_status, visible_before_acceptance, score_calculation_type, is_active)
			VALUES ($1, $2, $3, $4, $5, true)
			RETURNING id, created_at
		`
		err := tx.QueryRow(ctx, query,
			s.Name, s.Position, s.RequiredStatus, s.VisibleBeforeAcceptance, s.ScoreCalculationType,
		).Scan(&s.ID, &s.CreatedAt)
		if err != nil {
			return fmt.Errorf("error creating section: %w", err)
		}
		s.IsActive = true

		if entry != nil {
			entry.EntityID = s.ID
		}
		return r.insertAudit(ctx, tx, entry)
	})
}

// UpdateSection updates an existing section together with its audit entry.
func (r *SectionRepository) UpdateSection(ctx context.Context, s *models.Section, entry *models.AuditLogEntry) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		cmdTag, err := tx.Exec(ctx, `
			UPDATE sections
			SET name = $1, position = $2, required_status = $3,
			    visible_before_acceptance = $4, score_calculation_type = $5
			WHERE id = $6`,
			s.Name, s.Position, s.RequiredStatus, s.VisibleBeforeAcceptance,
			s.ScoreCalculationType, s.ID)
		if err != nil {
			return fmt.Errorf("error updating section: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return apperrors.ErrSectionNotFound
		}
		return r.insertAudit(ctx, tx, entry)
	})
}

// DeactivateSection retires a section and cascades to its questions in one
// transaction, so the completion engine never sees a half-retired section.
func (r *SectionRepository) DeactivateSection(ctx context.Context, id int64, entry *models.AuditLogEntry) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		cmdTag, err := tx.Exec(ctx, `UPDATE sections SET is_active = false WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("error deactivating section: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return apperrors.ErrSectionNotFound
		}

		if _, err := tx.Exec(ctx, `UPDATE questions SET is_active = false WHERE section_id = $1`, id); err != nil {
			return fmt.Errorf("error deactivating section questions: %w", err)
		}
		return r.insertAudit(ctx, tx, entry)
	})
}

// GetQuestionByID retrieves a question by ID
func (r *SectionRepository) GetQuestionByID(ctx context.Context, id int64) (*models.Question, error) {
	return scanQuestion(r.db.Pool.QueryRow(ctx,
		`SELECT`+questionColumns+` FROM questions WHERE id = $1`, id))
}

// CreateQuestion creates a new question in a section. The audit entry commits
// with the row; its entity id is filled in once the row exists.
func (r *SectionRepository) CreateQuestion(ctx context.Context, q *models.Question, entry *models.AuditLogEntry) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		query := `
			INSERT INTO questions (section_id, prompt, question_type, required, reset_annually,
			                       show_if_question_id, show_if_answer, position, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true)
			RETURNING id
		`
		err := tx.QueryRow(ctx, query,
			q.SectionID, q.Prompt, q.QuestionType, q.Required, q.ResetAnnually,
			q.ShowIfQuestionID, q.ShowIfAnswer, q.Position,
		).Scan(&q.ID)
		if err != nil {
			return fmt.Errorf("error creating question: %w", err)
		}
		q.IsActive = true

		if entry != nil {
			entry.EntityID = q.ID
		}
		return r.insertAudit(ctx, tx, entry)
	})
}

// UpdateQuestion updates an existing question together with its audit entry.
func (r *SectionRepository) UpdateQuestion(ctx context.Context, q *models.Question, entry *models.AuditLogEntry) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		cmdTag, err := tx.Exec(ctx, `
			UPDATE questions
			SET prompt = $1, question_type = $2, required = $3, reset_annually = $4,
			    show_if_question_id = $5, show_if_answer = $6, position = $7
			WHERE id = $8`,
			q.Prompt, q.QuestionType, q.Required, q.ResetAnnually,
			q.ShowIfQuestionID, q.ShowIfAnswer, q.Position, q.ID)
		if err != nil {
			return fmt.Errorf("error updating question: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return apperrors.ErrQuestionNotFound
		}
		return r.insertAudit(ctx, tx, entry)
	})
}

// DeactivateQuestion retires a single question together with its audit entry.
func (r *SectionRepository) DeactivateQuestion(ctx context.Context, id int64, entry *models.AuditLogEntry) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		cmdTag, err := tx.Exec(ctx, `UPDATE questions SET is_active = false WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("error deactivating question: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return apperrors.ErrQuestionNotFound
		}
		return r.insertAudit(ctx, tx, entry)
	})
}
