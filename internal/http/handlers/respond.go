package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/ems/internal/access"
	"github.com/geocoder89/ems/internal/domain/department"
	"github.com/geocoder89/ems/internal/domain/employee"
	"github.com/geocoder89/ems/internal/service"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get("request_id")

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

func RespondUnauthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondForbidden(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusForbidden, code, message, nil)
}

// RespondDomainError maps service and domain sentinels onto the error
// envelope. Unknown errors are logged and reported as 500.
func RespondDomainError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, employee.ErrManagerNotFound):
		RespondNotFound(ctx, "Manager not found")
	case errors.Is(err, employee.ErrNotFound):
		RespondNotFound(ctx, "Employee not found")
	case errors.Is(err, department.ErrNotFound):
		RespondNotFound(ctx, "Department not found")
	case employee.IsValidationError(err):
		RespondError(ctx, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, employee.ErrInvalidReference):
		RespondError(ctx, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, employee.ErrEmailTaken):
		RespondConflict(ctx, "email_taken", "Email is already in use")
	case errors.Is(err, department.ErrNameTaken):
		RespondConflict(ctx, "name_taken", "Department name is already in use")
	case errors.Is(err, access.ErrForbidden):
		RespondForbidden(ctx, "forbidden", "You are not allowed to perform this operation")
	case errors.Is(err, service.ErrThrottled):
		RespondError(ctx, http.StatusTooManyRequests, "rate_limited", "Account temporarily locked after too many failed login attempts", nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		RespondUnauthorized(ctx, "invalid_credentials", "Invalid email or password")
	case errors.Is(err, service.ErrAccountInactive):
		RespondForbidden(ctx, "account_inactive", "Account is inactive")
	case errors.Is(err, service.ErrUnauthenticated):
		RespondUnauthorized(ctx, "unauthorized", "Authentication required")
	case errors.Is(err, service.ErrAlreadyInitialized):
		RespondError(ctx, http.StatusBadRequest, "already_initialized", "System is already initialized", nil)
	default:
		slog.ErrorContext(ctx.Request.Context(), "request failed",
			"request_id", requestIDFrom(ctx),
			"route", ctx.FullPath(),
			"err", err,
		)
		RespondInternal(ctx, "Something went wrong")
	}
}

// pathID parses a positive int64 path parameter, responding 400 otherwise.
func pathID(ctx *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		RespondBadRequest(ctx, "Invalid "+name, gin.H{"param": name})
		return 0, false
	}
	return id, true
}

func optionalQueryID(ctx *gin.Context, name string) (*int64, bool) {
	raw := ctx.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		RespondBadRequest(ctx, "Invalid "+name, gin.H{"query": name})
		return nil, false
	}
	return &id, true
}
