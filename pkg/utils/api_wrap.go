package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type APIResponse struct {
	Status    string      `json:"status"`
	Code      int         `json:"code"`
	Message   string      `json:"message,omitempty"`
	ErrorCode string      `json:"error_code,omitempty"`
	TraceID   string      `json:"trace_id,omitempty"`
	Issues    []Issue     `json:"issues,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func traceIDOf(c *gin.Context) string {
	return c.GetString("trace_id")
}

func RespondSuccess(c *gin.Context, data interface{}, message string) {
	RespondWithStatus(c, http.StatusOK, data, message)
}

func RespondWithStatus(c *gin.Context, code int, data interface{}, message string) {
	c.JSON(code, APIResponse{
		Status:  "success",
		Code:    code,
		Message: message,
		TraceID: traceIDOf(c),
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, message string) {
	c.JSON(code, APIResponse{
		Status:  "error",
		Code:    code,
		Message: message,
		TraceID: traceIDOf(c),
	})
}

// StatusFor maps a service error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRange),
		errors.Is(err, ErrTooManyDays),
		errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrTaskNotFound),
		errors.Is(err, ErrJourneyNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrIdempotencyConflict),
		errors.Is(err, ErrTaskNotCancelable):
		return http.StatusConflict
	case errors.Is(err, ErrTooManyActiveTasks):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrPlanValidation),
		errors.Is(err, ErrDayRetries):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrLLM):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func HandleServiceError(c *gin.Context, err error) {
	status := StatusFor(err)
	message := err.Error()
	traceID := traceIDOf(c)
	var failure *PlanFailure
	if errors.As(err, &failure) && failure.TraceID != "" {
		traceID = failure.TraceID
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("unhandled service error",
			zap.String("trace_id", traceID),
			zap.Error(err))
		message = "Internal server error"
	}

	c.JSON(status, APIResponse{
		Status:    "error",
		Code:      status,
		Message:   message,
		ErrorCode: ErrorCode(err),
		TraceID:   traceID,
		Issues:    IssuesOf(err),
	})
}
