package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tallpines/campreg/internal/app/models"
	"github.com/tallpines/campreg/internal/pkg/apperrors"
	"github.com/tallpines/campreg/internal/pkg/logger"
)

var validQuestionTypes = map[models.QuestionType]bool{
	models.QuestionTypeText:     true,
	models.QuestionTypeTextarea: true,
	models.QuestionTypeSelect:   true,
	models.QuestionTypeCheckbox: true,
	models.QuestionTypeDate:     true,
	models.QuestionTypeFile:     true,
}

// SectionService manages the form configuration the completion engine reads.
// Deactivation is the only removal: sections and questions with historical
// responses are never deleted.
type SectionService struct {
	sections SectionStore
	logger   zerolog.Logger
}

// NewSectionService creates a new section service
func NewSectionService(sections SectionStore) *SectionService {
	return &SectionService{
		sections: sections,
		logger:   logger.With("section_service"),
	}
}

// ListActive returns all active sections with their questions.
func (s *SectionService) ListActive(ctx context.Context) ([]*models.Section, error) {
	return s.sections.ListActive(ctx)
}

// GetSectionByID returns one section with its questions.
func (s *SectionService) GetSectionByID(ctx context.Context, id int64) (*models.Section, error) {
	return s.sections.GetSectionByID(ctx, id)
}

// CreateSection validates and persists a new section. The audit entry commits
// with the row; the store fills in its entity id.
func (s *SectionService) CreateSection(ctx context.Context, section *models.Section, actor Actor) error {
	if err := validateSection(section); err != nil {
		return err
	}
	entry := formChangeEntry(models.EntitySection, 0, models.AuditActionCreated, section.Name, actor)
	return s.sections.CreateSection(ctx, section, entry)
}

// UpdateSection validates and persists changes to a section.
func (s *SectionService) UpdateSection(ctx context.Context, section *models.Section, actor Actor) error {
	if err := validateSection(section); err != nil {
		return err
	}
	entry := formChangeEntry(models.EntitySection, section.ID, models.AuditActionUpdated, section.Name, actor)
	return s.sections.UpdateSection(ctx, section, entry)
}

// DeactivateSection retires a section and every question in it.
func (s *SectionService) DeactivateSection(ctx context.Context, id int64, actor Actor) error {
	section, err := s.sections.GetSectionByID(ctx, id)
	if err != nil {
		return err
	}
	entry := formChangeEntry(models.EntitySection, id, models.AuditActionDeactivated, section.Name, actor)
	return s.sections.DeactivateSection(ctx, id, entry)
}

// CreateQuestion validates and persists a new question.
func (s *SectionService) CreateQuestion(ctx context.Context, q *models.Question, actor Actor) error {
	if err := s.validateQuestion(ctx, q); err != nil {
		return err
	}
	if _, err := s.sections.GetSectionByID(ctx, q.SectionID); err != nil {
		return err
	}
	entry := formChangeEntry(models.EntityQuestion, 0, models.AuditActionCreated, q.Prompt, actor)
	return s.sections.CreateQuestion(ctx, q, entry)
}

// UpdateQuestion validates and persists changes to a question.
func (s *SectionService) UpdateQuestion(ctx context.Context, q *models.Question, actor Actor) error {
	if err := s.validateQuestion(ctx, q); err != nil {
		return err
	}
	entry := formChangeEntry(models.EntityQuestion, q.ID, models.AuditActionUpdated, q.Prompt, actor)
	return s.sections.UpdateQuestion(ctx, q, entry)
}

// DeactivateQuestion retires one question.
func (s *SectionService) DeactivateQuestion(ctx context.Context, id int64, actor Actor) error {
	q, err := s.sections.GetQuestionByID(ctx, id)
	if err != nil {
		return err
	}
	entry := formChangeEntry(models.EntityQuestion, id, models.AuditActionDeactivated, q.Prompt, actor)
	return s.sections.DeactivateQuestion(ctx, id, entry)
}

func formChangeEntry(entityType string, entityID int64, action, name string, actor Actor) *models.AuditLogEntry {
	return newAuditEntry(entityType, entityID, action, actor, map[string]any{"name": name})
}

func validateSection(section *models.Section) error {
	if section.Name == "" {
		return apperrors.NewBadRequestError("section name is required")
	}
	if section.RequiredStatus != nil {
		switch *section.RequiredStatus {
		case models.StatusApplicant, models.StatusCamper:
		default:
			return apperrors.NewBadRequestError(
				fmt.Sprintf("required status must be %s or %s", models.StatusApplicant, models.StatusCamper))
		}
	}
	return nil
}

// validateQuestion checks the question's shape including its conditional
// visibility rule. A rule pointing at a missing question is refused here; a
// rule that later becomes cyclic is tolerated and simply renders the chain
// permanently inapplicable.
func (s *SectionService) validateQuestion(ctx context.Context, q *models.Question) error {
	if q.Prompt == "" {
		return apperrors.NewBadRequestError("question prompt is required")
	}
	if !validQuestionTypes[q.QuestionType] {
		return apperrors.NewBadRequestError(fmt.Sprintf("unknown question type %q", q.QuestionType))
	}

	if (q.ShowIfQuestionID == nil) != (q.ShowIfAnswer == nil) {
		return apperrors.NewBadRequestError("show-if question and answer must be set together")
	}
	if q.ShowIfQuestionID != nil {
		if *q.ShowIfAnswer == "" {
			return apperrors.NewBadRequestError("show-if answer must not be empty")
		}
		if q.ID != 0 && *q.ShowIfQuestionID == q.ID {
			return apperrors.NewBadRequestError("question cannot govern its own visibility")
		}
		if _, err := s.sections.GetQuestionByID(ctx, *q.ShowIfQuestionID); err != nil {
			return apperrors.NewBadRequestError("show-if question does not exist")
		}
	}
	return nil
}
