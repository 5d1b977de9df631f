package db_models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type JourneyActivity struct {
	BaseModel
	JourneyDayID  uuid.UUID `gorm:"type:uuid;index"`
	OrderIndex    int
	Activity      string
	PoiProvider   string
	PoiProviderID string
	LocationName  string
	Transport     string
	StartTime     string `gorm:"size:5"`
	EndTime       string `gorm:"size:5"`
	Metadata      datatypes.JSON
}
