package dto

import "github.com/tallpines/campreg/internal/app/models"

// SectionRequest creates or updates a form section.
type SectionRequest struct {
	Name                    string  `json:"name" binding:"required"`
	Position                int     `json:"position"`
	RequiredStatus          *string `json:"requiredStatus" example:"CAMPER"`
	VisibleBeforeAcceptance bool    `json:"visibleBeforeAcceptance"`
	ScoreCalculationType    *string `json:"scoreCalculationType"`
}

// ToModel maps the request onto the persistence model.
func (r *SectionRequest) ToModel() *models.Section {
	s := &models.Section{
		Name:                    r.Name,
		Position:                r.Position,
		VisibleBeforeAcceptance: r.VisibleBeforeAcceptance,
		ScoreCalculationType:    r.ScoreCalculationType,
	}
	if r.RequiredStatus != nil {
		status := models.Status(*r.RequiredStatus)
		s.RequiredStatus = &status
	}
	return s
}

// QuestionRequest creates or updates a question within a section.
type QuestionRequest struct {
	SectionID        int64   `json:"sectionId"`
	Prompt           string  `json:"prompt" binding:"required"`
	QuestionType     string  `json:"questionType" binding:"required" example:"TEXT"`
	Required         bool    `json:"required"`
	ResetAnnually    bool    `json:"resetAnnually"`
	ShowIfQuestionID *int64  `json:"showIfQuestionId"`
	ShowIfAnswer     *string `json:"showIfAnswer"`
	Position         int     `json:"position"`
}

// ToModel maps the request onto the persistence model.
func (r *QuestionRequest) ToModel() *models.Question {
	return &models.Question{
		SectionID:        r.SectionID,
		Prompt:           r.Prompt,
		QuestionType:     models.QuestionType(r.QuestionType),
		Required:         r.Required,
		ResetAnnually:    r.ResetAnnually,
		ShowIfQuestionID: r.ShowIfQuestionID,
		ShowIfAnswer:     r.ShowIfAnswer,
		Position:         r.Position,
	}
}
