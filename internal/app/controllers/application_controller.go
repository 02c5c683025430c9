package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tallpines/campreg/internal/app/lifecycle"
	"github.com/tallpines/campreg/internal/app/models"
	"github.com/tallpines/campreg/internal/app/models/dto"
	"github.com/tallpines/campreg/internal/app/services"
	"github.com/tallpines/campreg/internal/middleware"
)

// ApplicationController handles family-facing application endpoints and the
// administrative lifecycle operations.
type ApplicationController struct {
	applicationService *services.ApplicationService
}

// NewApplicationController creates a new ApplicationController
func NewApplicationController(applicationService *services.ApplicationService) *ApplicationController {
	return &ApplicationController{
		applicationService: applicationService,
	}
}

// GetMyApplication returns the caller's application, creating it on first access
// @Summary Get my application
// @Description Returns the caller's application with its completion breakdown, creating it in the initial state on first access
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ApplicationResponse} "Application retrieved successfully"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /applications/me [get]
func (c *ApplicationController) GetMyApplication(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		abortMissingIdentity(ctx)
		return
	}

	app, err := c.applicationService.EnsureForUser(ctx, userID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	app, result, err := c.applicationService.Progress(ctx, app.ID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data:      dto.ApplicationResponse{Application: app, Completion: result},
		Timestamp: time.Now(),
	})
}

// SaveMyResponse saves one answer on the caller's application
// @Summary Save an answer
// @Description Saves one answer on the caller's application, recomputes completion and auto-advances the fill-in sub-status
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.SaveResponseRequest true "Answer to save"
// @Success 200 {object} dto.APIResponse{data=dto.ApplicationResponse} "Answer saved successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 404 {object} dto.ErrorResponse "Question not found"
// @Failure 409 {object} dto.ErrorResponse "Application was modified concurrently"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /applications/me/responses [put]
func (c *ApplicationController) SaveMyResponse(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		abortMissingIdentity(ctx)
		return
	}

	var req dto.SaveResponseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid response data")
		errorDetail = errorDetail.WithDetails(err.Error())
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	app, err := c.applicationService.EnsureForUser(ctx, userID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	app, result, err := c.applicationService.SaveResponse(ctx, app.ID, req.QuestionID, req.Value, req.FileID, actorFrom(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data:      dto.ApplicationResponse{Application: app, Completion: result},
		Timestamp: time.Now(),
	})
}

// WithdrawMyApplication withdraws the caller's application
// @Summary Withdraw my application
// @Description Moves the caller's application to the withdrawn state
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=models.Application} "Application withdrawn successfully"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 422 {object} dto.ErrorResponse "Transition not allowed from current state"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /applications/me/withdraw [post]
func (c *ApplicationController) WithdrawMyApplication(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		abortMissingIdentity(ctx)
		return
	}

	app, err := c.applicationService.EnsureForUser(ctx, userID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	app, err = c.applicationService.Transition(ctx, app.ID, lifecycle.InactiveWithdrawn, actorFrom(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data:      app,
		Timestamp: time.Now(),
	})
}

// ListApplications lists applications for administrators
// @Summary List applications
// @Description Lists all applications, optionally filtered by status
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status (APPLICANT, CAMPER, INACTIVE)"
// @Success 200 {object} dto.APIResponse{data=[]models.Application} "Applications retrieved successfully"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 403 {object} dto.ErrorResponse "Forbidden - User does not have permission"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /applications [get]
func (c *ApplicationController) ListApplications(ctx *gin.Context) {
	var status *models.Status
	if raw := ctx.Query("status"); raw != "" {
		s := models.Status(raw)
		status = &s
	}

	apps, err := c.applicationService.List(ctx, status)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data:      apps,
		Timestamp: time.Now(),
	})
}

// GetApplication returns one application with its completion breakdown
// @Summary Get application by ID
// @Description Returns one application with its completion breakdown
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Success 200 {object} dto.APIResponse{data=dto.ApplicationResponse} "Application retrieved successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid application ID"
// @Failure 404 {object} dto.ErrorResponse "Application not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /applications/{id} [get]
func (c *ApplicationController) GetApplication(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id", "Application ID")
	if !ok {
		return
	}

	app, result, err := c.applicationService.Progress(ctx, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data:      dto.ApplicationResponse{Application: app, Completion: result},
		Timestamp: time.Now(),
	})
}

// GetApplicationResponses lists the saved answers for one application
// @Summary Get application responses
// @Description Lists the saved answers for one application
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Success 200 {object} dto.APIResponse{data=[]models.Response} "Responses retrieved successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid application ID"
// @Failure 404 {object} dto.ErrorResponse "Application not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /applications/{id}/responses [get]
func (c *ApplicationController) GetApplicationResponses(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id", "Application ID")
	if !ok {
		return
	}

	if _, err := c.applicationService.GetByID(ctx, id); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	responses, err := c.applicationService.Responses(ctx, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data:      responses,
		Timestamp: time.Now(),
	})
}

// TransitionApplication applies an explicit lifecycle transition
// @Summary Transition an application
// @Description Applies an explicitly requested lifecycle state change
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Param request body dto.TransitionRequest true "Target state"
// @Success 200 {object} dto.APIResponse{data=models.Application} "Application transitioned successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid request data"
// @Failure 404 {object} dto.ErrorResponse "Application not found"
// @Failure 409 {object} dto.ErrorResponse "Application was modified concurrently"
// @Failure 422 {object} dto.ErrorResponse "Transition not allowed from current state"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /applications/{id}/transition [post]
func (c *ApplicationController) TransitionApplication(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id", "Application ID")
	if !ok {
		return
	}

	var req dto.TransitionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid transition data")
		errorDetail = errorDetail.WithDetails(err.Error())
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	target := lifecycle.State{
		Status:    models.Status(req.Status),
		SubStatus: models.SubStatus(req.SubStatus),
	}
	if !lifecycle.Valid(target) {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Unknown lifecycle state")
		errorDetail = errorDetail.WithDetails("status and subStatus must form a known state pair")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	app, err := c.applicationService.Transition(ctx, id, target, actorFrom(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data:      app,
		Timestamp: time.Now(),
	})
}

// ReactivateApplication moves an inactive application back into the applicant flow
// @Summary Reactivate an application
// @Description Moves an inactive application back into the applicant flow, landing on a state recomputed from the current answers
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Success 200 {object} dto.APIResponse{data=models.Application} "Application reactivated successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid application ID"
// @Failure 404 {object} dto.ErrorResponse "Application not found"
// @Failure 422 {object} dto.ErrorResponse "Application is not inactive"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /applications/{id}/reactivate [post]
func (c *ApplicationController) ReactivateApplication(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id", "Application ID")
	if !ok {
		return
	}

	app, err := c.applicationService.Reactivate(ctx, id, actorFrom(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data:      app,
		Timestamp: time.Now(),
	})
}

// RecordPayment marks an application as paid
// @Summary Record a payment
// @Description Marks the application as paid after the payment processor confirms; repeat confirmations are ignored
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Application ID"
// @Success 200 {object} dto.APIResponse{data=models.Application} "Payment recorded successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid application ID"
// @Failure 404 {object} dto.ErrorResponse "Application not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /applications/{id}/payment [post]
func (c *ApplicationController) RecordPayment(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id", "Application ID")
	if !ok {
		return
	}

	app, err := c.applicationService.RecordPayment(ctx, id, actorFrom(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data:      app,
		Timestamp: time.Now(),
	})
}

// AnnualReset clears annually-reset answers and reopens affected applications
// @Summary Run the annual reset
// @Description Clears every answer to an annually-reset question and reopens applications that fall below full completion
// @Tags applications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=services.AnnualResetSummary} "Annual reset completed"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 403 {object} dto.ErrorResponse "Forbidden - User does not have permission"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /admin/annual-reset [post]
func (c *ApplicationController) AnnualReset(ctx *gin.Context) {
	summary, err := c.applicationService.AnnualReset(ctx, actorFrom(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data:      summary,
		Timestamp: time.Now(),
	})
}
