package models

import "time"

// Section groups questions on the application form. RequiredStatus scopes the
// section to applicants or campers; nil means it applies to both. Sections
// exclusively own their questions: deactivating a section deactivates every
// question in it.
type Section struct {
	ID                      int64       `json:"id"`
	Name                    string      `json:"name"`
	Position                int         `json:"position"`
	RequiredStatus          *Status     `json:"requiredStatus,omitempty"`
	VisibleBeforeAcceptance bool        `json:"visibleBeforeAcceptance"`
	ScoreCalculationType    *string     `json:"scoreCalculationType,omitempty"`
	IsActive                bool        `json:"isActive"`
	Questions               []*Question `json:"questions,omitempty"`
	CreatedAt               time.Time   `json:"createdAt"`
}

// AppliesTo reports whether the section counts toward completion for an
// application in the given status.
func (s *Section) AppliesTo(status Status) bool {
	return s.RequiredStatus == nil || *s.RequiredStatus == status
}

// QuestionType enumerates the supported answer widgets. The completion engine
// only cares whether an answer is present, but the admin form builder
// validates against this list.
type QuestionType string

const (
	QuestionTypeText     QuestionType = "TEXT"
	QuestionTypeTextarea QuestionType = "TEXTAREA"
	QuestionTypeSelect   QuestionType = "SELECT"
	QuestionTypeCheckbox QuestionType = "CHECKBOX"
	QuestionTypeDate     QuestionType = "DATE"
	QuestionTypeFile     QuestionType = "FILE"
)

// Question belongs to exactly one section. A question with a ShowIf rule is
// only applicable when the governing question's current answer equals
// ShowIfAnswer; applicability is transitive through chains of rules.
type Question struct {
	ID               int64        `json:"id"`
	SectionID        int64        `json:"sectionId"`
	Prompt           string       `json:"prompt"`
	QuestionType     QuestionType `json:"questionType"`
	Required         bool         `json:"required"`
	ResetAnnually    bool         `json:"resetAnnually"`
	ShowIfQuestionID *int64       `json:"showIfQuestionId,omitempty"`
	ShowIfAnswer     *string      `json:"showIfAnswer,omitempty"`
	Position         int          `json:"position"`
	IsActive         bool         `json:"isActive"`
}
