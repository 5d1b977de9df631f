package db_models

import "github.com/lib/pq"

// POI is a known point of interest, keyed by its upstream provider identity.
type POI struct {
	BaseModel
	Provider    string `gorm:"uniqueIndex:idx_poi_provider_key;size:64"`
	ProviderID  string `gorm:"uniqueIndex:idx_poi_provider_key;size:128"`
	Name        string
	Destination string `gorm:"index"`
	Category    string `gorm:"index"`
	Address     string
	Rating      float64
	Latitude    float64
	Longitude   float64
	Status      string
	Tags        pq.StringArray `gorm:"type:text[]"`
}
