package repositories

import (
	"context"
	"strings"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"vivuplanner/internal/models/db_models"
)

type MemoryScope struct {
	UserID    string
	TripID    string
	SessionID string
}

type ScoredSnippet struct {
	db_models.MemorySnippet
	Similarity float64
}

type MemoryRepository interface {
	Insert(ctx context.Context, snippet *db_models.MemorySnippet) error
	SearchByVector(ctx context.Context, vector pgvector.Vector, scope MemoryScope, k int, minSimilarity float64) ([]ScoredSnippet, error)
}

type memoryRepository struct {
	db *gorm.DB
}

func NewMemoryRepository(db *gorm.DB) MemoryRepository {
	return &memoryRepository{db: db}
}

func (m *memoryRepository) Insert(ctx context.Context, snippet *db_models.MemorySnippet) error {
	return m.db.WithContext(ctx).Create(snippet).Error
}

func (m *memoryRepository) SearchByVector(ctx context.Context, vector pgvector.Vector, scope MemoryScope, k int, minSimilarity float64) ([]ScoredSnippet, error) {
	var (
		conds = []string{"user_id = ?"}
		args  = []interface{}{vector, scope.UserID}
	)
	if scope.TripID != "" {
		conds = append(conds, "trip_id = ?")
		args = append(args, scope.TripID)
	}
	if scope.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, scope.SessionID)
	}
	args = append(args, minSimilarity, k)

	// cosine distance: closer to 0 is better
	query := `
        SELECT * FROM (
            SELECT *, (1 - (embedding <=> ?)) AS similarity
            FROM memory_snippets
            WHERE ` + strings.Join(conds, " AND ") + `
        ) scored
        WHERE similarity > ?
        ORDER BY similarity DESC
        LIMIT ?
    `

	var results []ScoredSnippet
	if err := m.db.WithContext(ctx).Raw(query, args...).Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
