package response_models

type POI struct {
	ID          string   `json:"id"`
	Provider    string   `json:"provider"`
	ProviderID  string   `json:"provider_id"`
	Name        string   `json:"name"`
	Destination string   `json:"destination"`
	Category    string   `json:"category"`
	Address     string   `json:"address,omitempty"`
	Rating      float64  `json:"rating"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Tags        []string `json:"tags,omitempty"`
}
