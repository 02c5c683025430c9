package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tallpines/campreg/internal/app/models/dto"
	"github.com/tallpines/campreg/internal/pkg/apperrors"
)

// HandleAPIError maps domain errors onto HTTP responses. Controllers funnel
// every service error through here so the taxonomy stays in one place.
func HandleAPIError(c *gin.Context, err error) {
	message := ""
	var customErr *apperrors.CustomError
	if errors.As(err, &customErr) {
		message = customErr.Message
	}

	respond := func(status int, code dto.ErrorCode, fallback string) {
		if message == "" {
			message = fallback
		}
		detail := dto.NewErrorDetail(code, message)
		if customErr != nil && customErr.Details != nil {
			detail = detail.WithDetails(customErr.Details)
		}
		c.JSON(status, dto.APIResponse{Error: detail, Timestamp: time.Now()})
	}

	switch {
	case errors.Is(err, apperrors.ErrInvalidTransition):
		respond(http.StatusUnprocessableEntity, dto.ErrorCodeInvalidTransition,
			"Transition not allowed from current state")
	case errors.Is(err, apperrors.ErrConcurrentModification):
		respond(http.StatusConflict, dto.ErrorCodeConcurrentModification,
			"Application was modified concurrently, re-read and retry")
	case errors.Is(err, apperrors.ErrConfigurationInvalid):
		respond(http.StatusBadRequest, dto.ErrorCodeConfigurationInvalid,
			"Automation configuration invalid")
	case errors.Is(err, apperrors.ErrAlreadySentThisPeriod):
		respond(http.StatusConflict, dto.ErrorCodeAlreadySentThisPeriod,
			"Automation already sent this period")
	case errors.Is(err, apperrors.ErrApplicationNotFound),
		errors.Is(err, apperrors.ErrUserNotFound),
		errors.Is(err, apperrors.ErrSectionNotFound),
		errors.Is(err, apperrors.ErrQuestionNotFound),
		errors.Is(err, apperrors.ErrAutomationNotFound),
		errors.Is(err, apperrors.ErrResourceNotFound):
		respond(http.StatusNotFound, dto.ErrorCodeResourceNotFound, "Resource not found")
	case errors.Is(err, apperrors.ErrResourceAlreadyExists):
		respond(http.StatusConflict, dto.ErrorCodeResourceAlreadyExists, "Resource already exists")
	case errors.Is(err, apperrors.ErrPermissionDenied):
		respond(http.StatusForbidden, dto.ErrorCodeForbidden, "Permission denied")
	case errors.Is(err, apperrors.ErrTokenExpired):
		respond(http.StatusUnauthorized, dto.ErrorCodeExpiredToken, "Token expired")
	case errors.Is(err, apperrors.ErrTokenInvalid), errors.Is(err, apperrors.ErrInvalidFormat):
		respond(http.StatusUnauthorized, dto.ErrorCodeInvalidToken, "Invalid token")
	case errors.Is(err, apperrors.ErrValidationFailed), errors.Is(err, apperrors.ErrBadRequest):
		respond(http.StatusBadRequest, dto.ErrorCodeValidationFailed, "Validation failed")
	default:
		respond(http.StatusInternalServerError, dto.ErrorCodeInternalServer, "Internal server error")
	}
}
