package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tallpines/campreg/internal/app/models/dto"
	"github.com/tallpines/campreg/internal/app/repositories"
	"github.com/tallpines/campreg/internal/app/services"
	"github.com/tallpines/campreg/internal/middleware"
)

// AuditController exposes the read side of the audit trail.
type AuditController struct {
	auditService *services.AuditService
}

// NewAuditController creates a new AuditController
func NewAuditController(auditService *services.AuditService) *AuditController {
	return &AuditController{
		auditService: auditService,
	}
}

// QueryAuditLog lists audit entries matching the given filters
// @Summary Query the audit log
// @Description Lists audit entries newest first, filtered by entity type, action, actor and time range
// @Tags audit
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param entityType query string false "Filter by entity type"
// @Param action query string false "Filter by action"
// @Param actorId query int false "Filter by acting user ID"
// @Param from query string false "Earliest entry timestamp (RFC 3339)"
// @Param to query string false "Latest entry timestamp (RFC 3339)"
// @Param limit query int false "Maximum entries to return"
// @Param offset query int false "Entries to skip"
// @Success 200 {object} dto.APIResponse{data=[]models.AuditLogEntry} "Audit entries retrieved successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid query parameters"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized - Invalid or missing token"
// @Failure 403 {object} dto.ErrorResponse "Forbidden - User does not have permission"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /audit [get]
func (c *AuditController) QueryAuditLog(ctx *gin.Context) {
	var req dto.AuditQueryRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid audit query")
		errorDetail = errorDetail.WithDetails(err.Error())
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return
	}

	entries, err := c.auditService.Query(ctx, repositories.AuditQuery{
		EntityType: req.EntityType,
		Action:     req.Action,
		ActorID:    req.ActorID,
		From:       req.From,
		To:         req.To,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.APIResponse{
		Data:      entries,
		Timestamp: time.Now(),
	})
}
