package db_models

import (
	"github.com/google/uuid"
)

// Journey is a persisted trip produced by the planner.
type Journey struct {
	BaseModel
	UserID      string `gorm:"index"`
	Title       string
	Destination string
	StartDate   string `gorm:"size:10"`
	EndDate     string `gorm:"size:10"`
	DayCount    int
	Mode        string
	TraceID     string

	Days []JourneyDay `gorm:"constraint:OnDelete:CASCADE"`
}

type JourneyDay struct {
	BaseModel
	JourneyID uuid.UUID `gorm:"type:uuid;index"`
	DayIndex  int
	Date      string `gorm:"size:10"`

	Activities []JourneyActivity `gorm:"constraint:OnDelete:CASCADE"`
}
