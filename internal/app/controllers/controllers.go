package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tallpines/campreg/internal/app/models/dto"
	"github.com/tallpines/campreg/internal/app/services"
	"github.com/tallpines/campreg/internal/middleware"
)

// parseIDParam reads a numeric path parameter and writes the 400 response
// itself when the value is not a number.
func parseIDParam(ctx *gin.Context, name, label string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, "Invalid "+label)
		errorDetail = errorDetail.WithDetails(label + " must be a valid number")
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(errorDetail))
		return 0, false
	}
	return id, true
}

// currentUserID returns the authenticated user's local ID set by JWTAuth.
func currentUserID(ctx *gin.Context) (int64, bool) {
	value, exists := ctx.Get(middleware.ContextUserID)
	if !exists {
		return 0, false
	}
	id, ok := value.(int64)
	return id, ok
}

// actorFrom captures who performed the request for the audit trail.
func actorFrom(ctx *gin.Context) services.Actor {
	actor := services.Actor{
		IPAddress: ctx.ClientIP(),
		UserAgent: ctx.Request.UserAgent(),
	}
	if id, ok := currentUserID(ctx); ok {
		actor.UserID = &id
	}
	return actor
}

func abortMissingIdentity(ctx *gin.Context) {
	errorDetail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required")
	ctx.JSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
}
