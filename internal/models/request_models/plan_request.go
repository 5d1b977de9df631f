package request_models

import (
	"encoding/json"
	"strings"
)

const (
	ModeFast = "fast"
	ModeDeep = "deep"

	SeedModeFast = "fast"
)

var DefaultInterests = []string{"sight", "food"}

type Preferences struct {
	Interests []string `json:"interests,omitempty"`
	Pace      string   `json:"pace,omitempty"`
	Budget    string   `json:"budget,omitempty"`
}

// PlanRequest is the planner input. Dates are calendar days formatted YYYY-MM-DD.
type PlanRequest struct {
	UserID      string      `json:"user_id,omitempty"`
	Destination string      `json:"destination"`
	StartDate   string      `json:"start_date"`
	EndDate     string      `json:"end_date"`
	Mode        string      `json:"mode,omitempty"`
	Save        bool        `json:"save,omitempty"`
	Preferences Preferences `json:"preferences"`
	People      int         `json:"people,omitempty"`
	Seed        *int64      `json:"seed,omitempty"`
	Async       bool        `json:"async,omitempty"`
	RequestID   string      `json:"request_id,omitempty"`
	SeedMode    string      `json:"seed_mode,omitempty"`
	TraceID     string      `json:"trace_id,omitempty"`
}

func (r PlanRequest) IsFast() bool {
	return r.Mode == "" || strings.EqualFold(r.Mode, ModeFast)
}

// CanonicalPayload is the stable idempotency form of the request: the trace id is dropped.
func (r PlanRequest) CanonicalPayload() ([]byte, error) {
	r.TraceID = ""
	return json.Marshal(r)
}
