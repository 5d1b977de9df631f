package db_models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// MemorySnippet is a free-text preference note scoped to a user, trip or session.
type MemorySnippet struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    string    `gorm:"index"`
	TripID    string    `gorm:"index"`
	SessionID string
	Kind      string
	Text      string
	Tags      pq.StringArray `gorm:"type:text[]"`
	Metadata  datatypes.JSONMap
	Embedding pgvector.Vector `gorm:"type:vector"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
}
