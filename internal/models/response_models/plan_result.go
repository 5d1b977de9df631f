package response_models

import (
	"time"

	"vivuplanner/pkg/utils"
)

type PlanMetrics struct {
	Mode             string         `json:"mode"`
	Seed             int64          `json:"seed"`
	CandidateCount   int            `json:"candidate_count"`
	SourceCounts     map[string]int `json:"source_counts,omitempty"`
	Generated        int            `json:"generated"`
	Placeholders     int            `json:"placeholders"`
	FallbackToFast   bool           `json:"fallback_to_fast"`
	FallbackReason   string         `json:"fallback_reason,omitempty"`
	DayAttempts      []int          `json:"day_attempts,omitempty"`
	LLMCalls         int            `json:"llm_calls,omitempty"`
	ToolCalls        int            `json:"tool_calls,omitempty"`
	PromptTokens     int            `json:"prompt_tokens,omitempty"`
	CompletionTokens int            `json:"completion_tokens,omitempty"`
	MemoryHits       int            `json:"memory_hits,omitempty"`
}

type StageTrace struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Detail    string `json:"detail,omitempty"`
}

type SavedTrip struct {
	JourneyID string   `json:"journey_id"`
	DayIDs    []string `json:"day_ids"`
}

type PlanResult struct {
	TraceID string       `json:"trace_id"`
	Trip    *PlanTrip    `json:"trip"`
	Metrics PlanMetrics  `json:"metrics"`
	Trace   []StageTrace `json:"trace,omitempty"`
	Saved   *SavedTrip   `json:"saved,omitempty"`
}

type TaskError struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Issues  []utils.Issue `json:"issues,omitempty"`
}

type TaskView struct {
	TaskID     string      `json:"task_id"`
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Result     *PlanResult `json:"result,omitempty"`
	Error      *TaskError  `json:"error,omitempty"`
}

type SubmitResponse struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	Replayed bool   `json:"replayed"`
}
