package response_models

// JourneyDetailResponse is a saved journey read back as a trip.
type JourneyDetailResponse struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Mode            string   `json:"mode"`
	TraceID         string   `json:"trace_id,omitempty"`
	CreatedAt       int64    `json:"created_at"`
	TotalActivities int      `json:"total_activities"`
	DayIDs          []string `json:"day_ids"`
	Trip            PlanTrip `json:"trip"`
}
