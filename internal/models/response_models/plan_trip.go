package response_models

import "fmt"

type PoiKey struct {
	Provider   string `json:"provider"`
	ProviderID string `json:"provider_id"`
}

func (k PoiKey) String() string {
	return fmt.Sprintf("%s:%s", k.Provider, k.ProviderID)
}

type CandidatePoi struct {
	Provider   string            `json:"provider"`
	ProviderID string            `json:"provider_id"`
	Name       string            `json:"name"`
	Category   string            `json:"category"`
	Address    string            `json:"address,omitempty"`
	Rating     float64           `json:"rating"`
	Lat        float64           `json:"lat"`
	Lng        float64           `json:"lng"`
	DistanceM  float64           `json:"distance_m"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (c CandidatePoi) Key() PoiKey {
	return PoiKey{Provider: c.Provider, ProviderID: c.ProviderID}
}

func (c CandidatePoi) Source() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata["source"]
}

type SubTripMetadata struct {
	Slot            string        `json:"slot"`
	DurationMinutes int           `json:"duration_minutes"`
	Note            string        `json:"note,omitempty"`
	Poi             *CandidatePoi `json:"poi,omitempty"`
}

type SubTrip struct {
	OrderIndex   int             `json:"order_index"`
	Activity     string          `json:"activity"`
	Poi          *PoiKey         `json:"poi,omitempty"`
	LocationName string          `json:"location_name,omitempty"`
	Transport    string          `json:"transport,omitempty"`
	StartTime    string          `json:"start_time,omitempty"`
	EndTime      string          `json:"end_time,omitempty"`
	Metadata     SubTripMetadata `json:"metadata"`
}

type DayCard struct {
	DayIndex int       `json:"day_index"`
	Date     string    `json:"date"`
	SubTrips []SubTrip `json:"sub_trips"`
}

type PlanTrip struct {
	Destination string    `json:"destination"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	DayCount    int       `json:"day_count"`
	DayCards    []DayCard `json:"day_cards"`
}
