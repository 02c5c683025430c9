package seed

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/tallpines/campreg/internal/app/models"
	"github.com/tallpines/campreg/internal/app/repositories"
	"github.com/tallpines/campreg/internal/db"
	"github.com/tallpines/campreg/internal/pkg/apperrors"
)

// CreateDefaultData seeds the registrar account and the default application
// form when the database is empty. Running it again is a no-op.
func CreateDefaultData(ctx context.Context, database *db.PostgresDB, lgr zerolog.Logger) error {
	userRepo := repositories.NewUserRepository(database.Pool)
	sectionRepo := repositories.NewSectionRepository(database, repositories.NewAuditLogRepository(database.Pool))

	var finalErr error

	if err := seedRegistrar(ctx, userRepo, lgr); err != nil {
		finalErr = errors.Join(finalErr, err)
	}
	if err := seedDefaultForm(ctx, sectionRepo, lgr); err != nil {
		finalErr = errors.Join(finalErr, err)
	}
	return finalErr
}

// seedRegistrar creates the bootstrap super-admin profile. The identity
// provider owns the credentials; this row only maps its subject to a local
// role.
func seedRegistrar(ctx context.Context, userRepo *repositories.UserRepository, lgr zerolog.Logger) error {
	const registrarEmail = "registrar@tallpines.example"

	_, err := userRepo.GetByEmail(ctx, registrarEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperrors.ErrUserNotFound) {
		lgr.Error().Err(err).Msg("Error checking for registrar account")
		return err
	}

	registrar := &models.User{
		ExternalID: "seed-registrar",
		Email:      registrarEmail,
		FirstName:  "Camp",
		LastName:   "Registrar",
		RoleType:   models.RoleSuperAdmin,
		IsActive:   true,
	}
	if err := userRepo.Create(ctx, registrar); err != nil {
		lgr.Error().Err(err).Msg("Error creating registrar account")
		return err
	}
	lgr.Info().Str("email", registrarEmail).Msg("Seeded registrar account")
	return nil
}

// seedDefaultForm creates the starter sections every camp season needs.
func seedDefaultForm(ctx context.Context, sectionRepo *repositories.SectionRepository, lgr zerolog.Logger) error {
	existing, err := sectionRepo.ListActive(ctx)
	if err != nil {
		lgr.Error().Err(err).Msg("Error checking for existing sections")
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	camper := models.StatusCamper
	sections := []struct {
		section   models.Section
		questions []models.Question
	}{
		{
			section: models.Section{Name: "Camper Details", Position: 1, VisibleBeforeAcceptance: true},
			questions: []models.Question{
				{Prompt: "Camper's full name", QuestionType: models.QuestionTypeText, Required: true, Position: 1},
				{Prompt: "Date of birth", QuestionType: models.QuestionTypeDate, Required: true, Position: 2},
				{Prompt: "Has the camper attended before?", QuestionType: models.QuestionTypeCheckbox, Required: true, Position: 3},
			},
		},
		{
			section: models.Section{Name: "Health Forms", Position: 2, RequiredStatus: &camper, VisibleBeforeAcceptance: false},
			questions: []models.Question{
				{Prompt: "Current physician's report", QuestionType: models.QuestionTypeFile, Required: true, ResetAnnually: true, Position: 1},
				{Prompt: "Any allergies we should know about?", QuestionType: models.QuestionTypeCheckbox, Required: true, ResetAnnually: true, Position: 2},
			},
		},
	}

	var allergyQuestion *models.Question
	for i := range sections {
		s := &sections[i].section
		// Seeded rows carry no audit entry; there is no actor behind them.
		if err := sectionRepo.CreateSection(ctx, s, nil); err != nil {
			lgr.Error().Err(err).Str("section", s.Name).Msg("Error creating default section")
			return err
		}
		for j := range sections[i].questions {
			q := &sections[i].questions[j]
			q.SectionID = s.ID
			if err := sectionRepo.CreateQuestion(ctx, q, nil); err != nil {
				lgr.Error().Err(err).Str("prompt", q.Prompt).Msg("Error creating default question")
				return err
			}
			if q.Prompt == "Any allergies we should know about?" {
				allergyQuestion = q
			}
		}
	}

	// The allergy detail question only shows when allergies were reported.
	if allergyQuestion != nil {
		yes := "true"
		detail := &models.Question{
			SectionID:        allergyQuestion.SectionID,
			Prompt:           "List the camper's allergies",
			QuestionType:     models.QuestionTypeText,
			Required:         true,
			ResetAnnually:    true,
			ShowIfQuestionID: &allergyQuestion.ID,
			ShowIfAnswer:     &yes,
			Position:         3,
		}
		if err := sectionRepo.CreateQuestion(ctx, detail, nil); err != nil {
			lgr.Error().Err(err).Str("prompt", detail.Prompt).Msg("Error creating default question")
			return err
		}
	}

	lgr.Info().Int("sections", len(sections)).Msg("Seeded default application form")
	return nil
}
