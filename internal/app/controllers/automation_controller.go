package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tallpines/campreg/internal/app/models/dto"
	"github.com/tallpines/campreg/internal/app/services"
	"github.com/tallpines/campreg/internal/middleware"
)

// AutomationController handles email automation configuration, manual runs
// and delivery history.
type AutomationController struct {
	automationService   *services.AutomationService
	notificationService *services.NotificationService
}

// NewAutomationController creates a new AutomationController
func NewAutomationController(
	automationService *services.AutomationService,
	notificationService *services.NotificationService,
) *AutomationController {
	return &AutomationController{
		automationService:   automationService,
		notificationService: notificationService,
	}
}

// ListAutomations lists all email automations
// @Summary List automations
// @Description Lists all configured email automations
// @Tags automations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]models.EmailAutomation} "Automations retrieved successfully"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 403 {object} dto.ErrorResponse "Forbidden - User does not have permission"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /automations [get]
func (c *AutomationController) ListAutomations(ctx *gin.Context) {
	automations, err := c.automationService.List(ctx)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data:      automations,
		Timestamp: time.Now(),
	})
}

// GetAutomation retrieves one automation by ID
// @Summary Get automation by ID
// @Description Retrieves a specific email automation
// @Tags automations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Automation ID"
// @Success 200 {object} dto.APIResponse{data=models.EmailAutomation} "Automation retrieved successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid automation ID"
// @Failure 404 {object} dto.ErrorResponse "Automation not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /automations/{id} [get]
func (c *AutomationController) GetAutomation(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id", "Automation ID")
	if !ok {
		return
	}

	automation, err := c.automationService.GetByID(ctx, id)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data:      automation,
		Timestamp: time.Now(),
	})
}

// CreateAutomation creates a new email automation
// @Summary Create an automation
// @Description Creates a new email automation after validating its trigger and audience filter
// @Tags automations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.AutomationRequest true "Automation configuration"
// @Success 201 {object} dto.APIResponse{data=models.EmailAutomation} "Automation created successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid automation configuration"
// @Failure 403 {object} dto.ErrorResponse "Forbidden - User does not have permission"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /automations [post]
func (c *AutomationController) CreateAutomation(ctx *gin.Context) {
	var req dto.AutomationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid automation data")
		errorDetail = errorDetail.WithDetails(err.Error())
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	automation := req.ToModel()
	if err := c.automationService.Create(ctx, automation, actorFrom(ctx)); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.APIResponse{
		Data:      automation,
		Timestamp: time.Now(),
	})
}

// UpdateAutomation updates an existing automation
// @Summary Update an automation
// @Description Updates an existing email automation after validating its trigger and audience filter
// @Tags automations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Automation ID"
// @Param request body dto.AutomationRequest true "Automation configuration"
// @Success 200 {object} dto.APIResponse{data=models.EmailAutomation} "Automation updated successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid automation configuration"
// @Failure 404 {object} dto.ErrorResponse "Automation not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /automations/{id} [put]
func (c *AutomationController) UpdateAutomation(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id", "Automation ID")
	if !ok {
		return
	}

	var req dto.AutomationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid automation data")
		errorDetail = errorDetail.WithDetails(err.Error())
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	automation := req.ToModel()
	automation.ID = id
	if err := c.automationService.Update(ctx, automation, actorFrom(ctx)); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data:      automation,
		Timestamp: time.Now(),
	})
}

// DeleteAutomation removes an automation
// @Summary Delete an automation
// @Description Removes an email automation; its delivery history is preserved
// @Tags automations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Automation ID"
// @Success 200 {object} dto.APIResponse "Automation deleted successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid automation ID"
// @Failure 404 {object} dto.ErrorResponse "Automation not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /automations/{id} [delete]
func (c *AutomationController) DeleteAutomation(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id", "Automation ID")
	if !ok {
		return
	}

	if err := c.automationService.Delete(ctx, id, actorFrom(ctx)); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Message:   "Automation deleted successfully",
		Timestamp: time.Now(),
	})
}

// RunAutomation triggers a manual automation run
// @Summary Run an automation now
// @Description Runs an automation immediately. Scheduled automations that already ran this period are rejected unless force is set
// @Tags automations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Automation ID"
// @Param request body dto.RunAutomationRequest false "Run options"
// @Success 200 {object} dto.APIResponse{data=dto.RunAutomationResponse} "Automation run completed"
// @Failure 400 {object} dto.ErrorResponse "Invalid automation ID"
// @Failure 404 {object} dto.ErrorResponse "Automation not found"
// @Failure 409 {object} dto.ErrorResponse "Automation already sent this period"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /automations/{id}/run [post]
func (c *AutomationController) RunAutomation(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id", "Automation ID")
	if !ok {
		return
	}

	// The body is optional; an empty body means a normal, non-forced run.
	var req dto.RunAutomationRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid run options")
			errorDetail = errorDetail.WithDetails(err.Error())
			ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
			return
		}
	}

	sent, err := c.notificationService.RunNow(ctx, id, req.Force, actorFrom(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data:      dto.RunAutomationResponse{Sent: sent},
		Timestamp: time.Now(),
	})
}

// GetDeliveries lists the delivery history for one automation
// @Summary Get delivery history
// @Description Lists the most recent delivery log entries for one automation
// @Tags automations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Automation ID"
// @Param limit query int false "Maximum entries to return"
// @Success 200 {object} dto.APIResponse{data=[]models.DeliveryLogEntry} "Deliveries retrieved successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid automation ID"
// @Failure 404 {object} dto.ErrorResponse "Automation not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /automations/{id}/deliveries [get]
func (c *AutomationController) GetDeliveries(ctx *gin.Context) {
	id, ok := parseIDParam(ctx, "id", "Automation ID")
	if !ok {
		return
	}

	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid limit")
			errorDetail = errorDetail.WithDetails("limit must be a non-negative number")
			ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
			return
		}
		limit = parsed
	}

	deliveries, err := c.notificationService.Deliveries(ctx, id, limit)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data:      deliveries,
		Timestamp: time.Now(),
	})
}
