package dto

import (
	"github.com/tallpines/campreg/internal/app/completion"
	"github.com/tallpines/campreg/internal/app/models"
)

// TransitionRequest asks for a lifecycle state change.
type TransitionRequest struct {
	Status    string `json:"status" binding:"required" example:"APPLICANT"`
	SubStatus string `json:"subStatus" binding:"required" example:"UNDER_REVIEW"`
}

// SaveResponseRequest saves one answer for the caller's application.
type SaveResponseRequest struct {
	QuestionID int64  `json:"questionId" binding:"required"`
	Value      string `json:"value"`
	FileID     *int64 `json:"fileId"`
}

// ApplicationResponse pairs an application with its completion breakdown.
type ApplicationResponse struct {
	Application *models.Application `json:"application"`
	Completion  *completion.Result  `json:"completion,omitempty"`
}
