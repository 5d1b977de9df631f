package services

import (
	"context"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vivuplanner/internal/models/db_models"
	"vivuplanner/internal/repositories"
	"vivuplanner/pkg/utils"
)

type recordingMemoryRepo struct {
	inserted []*db_models.MemorySnippet
	rows     []repositories.ScoredSnippet
	scope    repositories.MemoryScope
	minSim   float64
	dim      int
}

func (r *recordingMemoryRepo) Insert(_ context.Context, s *db_models.MemorySnippet) error {
	r.inserted = append(r.inserted, s)
	return nil
}

func (r *recordingMemoryRepo) SearchByVector(_ context.Context, v pgvector.Vector, scope repositories.MemoryScope, _ int, minSimilarity float64) ([]repositories.ScoredSnippet, error) {
	r.scope, r.minSim, r.dim = scope, minSimilarity, len(v.Slice())
	return r.rows, nil
}

func TestMemoryService_Write(t *testing.T) {
	repo := &recordingMemoryRepo{}
	svc := NewMemoryService(repo, utils.HashEmbedder{Dim: 16})

	err := svc.Write(context.Background(), "  likes night markets  ", MemoryMeta{
		UserID: "user-1",
		Kind:   "preference",
		Tags:   []string{"food"},
		Attrs:  map[string]interface{}{"pace": "relaxed"},
	})
	require.NoError(t, err)
	require.Len(t, repo.inserted, 1)
	s := repo.inserted[0]
	assert.Equal(t, "likes night markets", s.Text)
	assert.Equal(t, "user-1", s.UserID)
	assert.Len(t, s.Embedding.Slice(), 16)
	assert.Equal(t, "relaxed", s.Metadata["pace"])

	assert.Error(t, svc.Write(context.Background(), "   ", MemoryMeta{UserID: "user-1"}))
	assert.Error(t, svc.Write(context.Background(), "text", MemoryMeta{}))
}

func TestMemoryService_Search(t *testing.T) {
	repo := &recordingMemoryRepo{rows: []repositories.ScoredSnippet{{
		MemorySnippet: db_models.MemorySnippet{Text: "likes museums", Kind: "preference", Tags: []string{"sight"}},
		Similarity:    0.91,
	}}}
	svc := NewMemoryService(repo, utils.HashEmbedder{Dim: 8})

	hits, err := svc.Search(context.Background(), "museums", repositories.MemoryScope{UserID: "user-1"}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "likes museums", hits[0].Text)
	assert.Equal(t, []string{"sight"}, hits[0].Tags)
	assert.InDelta(t, 0.91, hits[0].Similarity, 1e-9)
	assert.Equal(t, "user-1", repo.scope.UserID)
	assert.InDelta(t, 0.3, repo.minSim, 1e-9)
	assert.Equal(t, 8, repo.dim)

	none, err := svc.Search(context.Background(), "museums", repositories.MemoryScope{}, 3)
	require.NoError(t, err)
	assert.Nil(t, none)
}
