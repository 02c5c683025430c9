package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tallpines/campreg/internal/app/models/dto"
	"github.com/tallpines/campreg/internal/app/services"
	"github.com/tallpines/campreg/internal/middleware"
)

// SectionController handles form section and question configuration.
type SectionController struct {
	sectionService *services.SectionService
}

// NewSectionController creates a new SectionController
func NewSectionController(sectionService *services.SectionService) *SectionController {
	return &SectionController{
		sectionService: sectionService,
	}
}

// ListSections lists active sections with their questions
// @Summary List sections
// @Description Lists the active form sections with their questions in display order
// @Tags sections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]models.Section} "Sections retrieved successfully"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /sections [get]
func (c *SectionController) ListSections(ctx *gin.Context) {
	sections, err := c.sectionService.ListActive(ctx)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data:      sections,
		Timestamp: time.Now(),
	})
}

// GetSection retrieves one section by ID
// @Summary Get section by ID
// @Description Retrieves a specific section with its questions
// @Tags sections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Section ID"
// @Success 200 {object} dto.APIResponse{data=models.Section} "Section retrieved successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid section ID"
// @Failure 404 {object} dto.ErrorResponse "Section not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /sections/{id} [get]
func (c *SectionController) GetSection(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id", "Section ID")
	if !ok {
		return
	}

	section, err := c.sectionService.GetSectionByID(ctx, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data:      section,
		Timestamp: time.Now(),
	})
}

// CreateSection creates a new form section
// @Summary Create a section
// @Description Creates a new form section
// @Tags sections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.SectionRequest true "Section information"
// @Success 201 {object} dto.APIResponse{data=models.Section} "Section created successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 403 {object} dto.ErrorResponse "Forbidden - User does not have permission"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /sections [post]
func (c *SectionController) CreateSection(ctx *gin.Context) {
	var req dto.SectionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid section data")
		errorDetail = errorDetail.WithDetails(err.Error())
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	section := req.ToModel()
	if err := c.sectionService.CreateSection(ctx, section, actorFrom(ctx)); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.APIResponse{
		Data:      section,
		Timestamp: time.Now(),
	})
}

// UpdateSection updates an existing section
// @Summary Update a section
// @Description Updates an existing form section
// @Tags sections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Section ID"
// @Param request body dto.SectionRequest true "Section information"
// @Success 200 {object} dto.APIResponse{data=models.Section} "Section updated successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 404 {object} dto.ErrorResponse "Section not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /sections/{id} [put]
func (c *SectionController) UpdateSection(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id", "Section ID")
	if !ok {
		return
	}

	var req dto.SectionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid section data")
		errorDetail = errorDetail.WithDetails(err.Error())
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	section := req.ToModel()
	section.ID = id
	if err := c.sectionService.UpdateSection(ctx, section, actorFrom(ctx)); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data:      section,
		Timestamp: time.Now(),
	})
}

// DeactivateSection retires a section and its questions
// @Summary Deactivate a section
// @Description Retires a section and all of its questions; saved answers are preserved
// @Tags sections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Section ID"
// @Success 200 {object} dto.APIResponse "Section deactivated successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid section ID"
// @Failure 404 {object} dto.ErrorResponse "Section not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /sections/{id} [delete]
func (c *SectionController) DeactivateSection(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id", "Section ID")
	if !ok {
		return
	}

	if err := c.sectionService.DeactivateSection(ctx, id, actorFrom(ctx)); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Message:   "Section deactivated successfully",
		Timestamp: time.Now(),
	})
}

// CreateQuestion adds a question to a section
// @Summary Create a question
// @Description Adds a question to a section
// @Tags sections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Section ID"
// @Param request body dto.QuestionRequest true "Question information"
// @Success 201 {object} dto.APIResponse{data=models.Question} "Question created successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 404 {object} dto.ErrorResponse "Section not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /sections/{id}/questions [post]
func (c *SectionController) CreateQuestion(ctx *gin.Context) {
	sectionID, ok := parseIDParam(ctx, "id", "Section ID")
	if !ok {
		return
	}

	var req dto.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid question data")
		errorDetail = errorDetail.WithDetails(err.Error())
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	question := req.ToModel()
	question.SectionID = sectionID
	if err := c.sectionService.CreateQuestion(ctx, question, actorFrom(ctx)); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.APIResponse{
		Data:      question,
		Timestamp: time.Now(),
	})
}

// UpdateQuestion updates an existing question
// @Summary Update a question
// @Description Updates an existing question
// @Tags sections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Section ID"
// @Param questionId path int true "Question ID"
// @Param request body dto.QuestionRequest true "Question information"
// @Success 200 {object} dto.APIResponse{data=models.Question} "Question updated successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 404 {object} dto.ErrorResponse "Question not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /sections/{id}/questions/{questionId} [put]
func (c *SectionController) UpdateQuestion(ctx *gin.Context) {
	sectionID, ok := parseIDParam(ctx, "id", "Section ID")
	if !ok {
		return
	}
	questionID, ok := parseIDParam(ctx, "questionId", "Question ID")
	if !ok {
		return
	}

	var req dto.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid question data")
		errorDetail = errorDetail.WithDetails(err.Error())
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	question := req.ToModel()
	question.ID = questionID
	question.SectionID = sectionID
	if err := c.sectionService.UpdateQuestion(ctx, question, actorFrom(ctx)); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data:      question,
		Timestamp: time.Now(),
	})
}

// DeactivateQuestion retires a question
// @Summary Deactivate a question
// @Description Retires a question; saved answers are preserved
// @Tags sections
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Section ID"
// @Param questionId path int true "Question ID"
// @Success 200 {object} dto.APIResponse "Question deactivated successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid question ID"
// @Failure 404 {object} dto.ErrorResponse "Question not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /sections/{id}/questions/{questionId} [delete]
func (c *SectionController) DeactivateQuestion(ctx *gin.Context) {
	if _, ok := parseIDParam(ctx, "id", "Section ID"); !ok {
		return
	}
	questionID, ok := parseIDParam(ctx, "questionId", "Question ID")
	if !ok {
		return
	}

	if err := c.sectionService.DeactivateQuestion(ctx, questionID, actorFrom(ctx)); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Message:   "Question deactivated successfully",
		Timestamp: time.Now(),
	})
}
