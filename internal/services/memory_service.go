package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"vivuplanner/internal/models/db_models"
	"vivuplanner/internal/repositories"
	"vivuplanner/pkg/utils"
)

type MemoryMeta struct {
	UserID    string
	TripID    string
	SessionID string
	Kind      string
	Tags      []string
	Attrs     map[string]interface{}
}

type MemoryHit struct {
	Text       string
	Kind       string
	Tags       []string
	Attrs      map[string]interface{}
	Similarity float64
}

// SemanticMemoryInterface stores free-text preference snippets. Callers treat it as best-effort.
type SemanticMemoryInterface interface {
	Write(ctx context.Context, text string, meta MemoryMeta) error
	Search(ctx context.Context, query string, scope repositories.MemoryScope, k int) ([]MemoryHit, error)
}

type MemoryService struct {
	repo          repositories.MemoryRepository
	embedder      utils.Embedder
	minSimilarity float64
}

func NewMemoryService(repo repositories.MemoryRepository, embedder utils.Embedder) SemanticMemoryInterface {
	return &MemoryService{repo: repo, embedder: embedder, minSimilarity: 0.3}
}

func (m *MemoryService) Write(ctx context.Context, text string, meta MemoryMeta) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("empty memory text")
	}
	if meta.UserID == "" {
		return errors.New("memory requires a user scope")
	}
	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	return m.repo.Insert(ctx, &db_models.MemorySnippet{
		ID:        uuid.New(),
		UserID:    meta.UserID,
		TripID:    meta.TripID,
		SessionID: meta.SessionID,
		Kind:      meta.Kind,
		Text:      text,
		Tags:      pq.StringArray(meta.Tags),
		Metadata:  meta.Attrs,
		Embedding: pgvector.NewVector(vec),
	})
}

func (m *MemoryService) Search(ctx context.Context, query string, scope repositories.MemoryScope, k int) ([]MemoryHit, error) {
	if scope.UserID == "" || k <= 0 {
		return nil, nil
	}
	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := m.repo.SearchByVector(ctx, pgvector.NewVector(vec), scope, k, m.minSimilarity)
	if err != nil {
		return nil, err
	}
	hits := make([]MemoryHit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, MemoryHit{
			Text:       r.Text,
			Kind:       r.Kind,
			Tags:       []string(r.Tags),
			Attrs:      r.Metadata,
			Similarity: r.Similarity,
		})
	}
	return hits, nil
}
