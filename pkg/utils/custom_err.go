package utils

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidRange     = errors.New("invalid date range")
	ErrTooManyDays      = errors.New("too many days")
	ErrPoiNotFound      = errors.New("poi not found")
	ErrPoiAlreadyUsed   = errors.New("poi already used")
	ErrDayMismatch      = errors.New("day mismatch")
	ErrSubTripNotFound  = errors.New("sub trip not found")
	ErrInvalidPolicy    = errors.New("invalid adjust policy")
	ErrInvalidSlot      = errors.New("invalid slot")
	ErrInvalidTime      = errors.New("invalid time")
	ErrUnknownTool      = errors.New("unknown tool")
	ErrPlanValidation   = errors.New("plan validation failed")
	ErrMaxStepsExceeded = errors.New("tool loop exceeded max steps")
	ErrNoProgress       = errors.New("tool loop made no progress")
	ErrDayRetries       = errors.New("day retries exhausted")
	ErrLLM              = errors.New("language model error")

	ErrIdempotencyConflict = errors.New("idempotency key reused with a different payload")
	ErrTooManyActiveTasks  = errors.New("too many active tasks")
	ErrQueueFull           = errors.New("task queue full")
	ErrTaskNotFound        = errors.New("task not found")
	ErrTaskNotCancelable   = errors.New("task not cancelable")
	ErrTaskRestarted       = errors.New("process restarted while the task was running")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrJourneyNotFound     = errors.New("journey not found")

	ErrDatabaseError = errors.New("database error")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidRange, "invalid_range"},
	{ErrTooManyDays, "too_many_days"},
	{ErrInvalidInput, "invalid_input"},
	{ErrPoiNotFound, "poi_not_found"},
	{ErrPoiAlreadyUsed, "poi_already_used"},
	{ErrDayMismatch, "day_mismatch"},
	{ErrSubTripNotFound, "sub_trip_not_found"},
	{ErrInvalidPolicy, "invalid_policy"},
	{ErrInvalidSlot, "invalid_slot"},
	{ErrInvalidTime, "invalid_time"},
	{ErrUnknownTool, "unknown_tool"},
	{ErrPlanValidation, "plan_validation_failed"},
	{ErrMaxStepsExceeded, "max_steps_exceeded"},
	{ErrNoProgress, "no_progress"},
	{ErrLLM, "llm_error"},
	{ErrDayRetries, "day_retries_exhausted"},
	{ErrIdempotencyConflict, "idempotency_conflict"},
	{ErrTooManyActiveTasks, "too_many_active_tasks"},
	{ErrQueueFull, "queue_full"},
	{ErrTaskNotFound, "task_not_found"},
	{ErrTaskNotCancelable, "task_not_cancelable"},
	{ErrTaskRestarted, "restart"},
	{ErrUnauthorized, "unauthorized"},
	{ErrJourneyNotFound, "journey_not_found"},
	{ErrDatabaseError, "database_error"},
}

// ErrorCode returns the stable machine code for err, "internal_error" if none matches.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal_error"
}

// Issue is one structural problem found in a plan or a day.
type Issue struct {
	Code       string `json:"code"`
	DayIndex   int    `json:"day_index"`
	OrderIndex *int   `json:"order_index,omitempty"`
	Message    string `json:"message"`
}

func (i Issue) String() string {
	if i.OrderIndex != nil {
		return fmt.Sprintf("day %d #%d %s: %s", i.DayIndex, *i.OrderIndex, i.Code, i.Message)
	}
	return fmt.Sprintf("day %d %s: %s", i.DayIndex, i.Code, i.Message)
}

func joinIssues(issues []Issue) string {
	parts := make([]string, 0, len(issues))
	for _, is := range issues {
		parts = append(parts, is.String())
	}
	return strings.Join(parts, "; ")
}

type PlanValidationError struct {
	Issues []Issue
}

func (e *PlanValidationError) Error() string {
	return fmt.Sprintf("plan validation failed (%d issues): %s", len(e.Issues), joinIssues(e.Issues))
}

func (e *PlanValidationError) Unwrap() error { return ErrPlanValidation }

// DayGenerationError is returned by the deep planner when a day could not be produced
// and fallback is disabled.
type DayGenerationError struct {
	DayIndex int
	Attempts int
	Issues   []Issue
	Err      error
}

func (e *DayGenerationError) Error() string {
	msg := fmt.Sprintf("day %d failed after %d attempts: %v", e.DayIndex, e.Attempts, e.Err)
	if len(e.Issues) > 0 {
		msg += " (last issues: " + joinIssues(e.Issues) + ")"
	}
	return msg
}

func (e *DayGenerationError) Unwrap() []error { return []error{ErrDayRetries, e.Err} }

// IssuesOf extracts the issue list carried by err, if any.
func IssuesOf(err error) []Issue {
	var pv *PlanValidationError
	if errors.As(err, &pv) {
		return pv.Issues
	}
	var dg *DayGenerationError
	if errors.As(err, &dg) {
		return dg.Issues
	}
	return nil
}

// PlanFailure is the error returned by the orchestrator; it carries the trace id and failing stage.
type PlanFailure struct {
	TraceID string
	Stage   string
	Err     error
}

func (e *PlanFailure) Error() string {
	return fmt.Sprintf("plan %s failed at %s: %v", e.TraceID, e.Stage, e.Err)
}

func (e *PlanFailure) Unwrap() error { return e.Err }
