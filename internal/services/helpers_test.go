package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"vivuplanner/internal/config"
	"vivuplanner/internal/infra"
	"vivuplanner/internal/models/request_models"
	resp "vivuplanner/internal/models/response_models"
	"vivuplanner/internal/repositories"
	"vivuplanner/pkg/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, infra.Migrate(db, false))
	return db
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Deep.MaxSteps = 6
	cfg.LLM.Timeout = 0
	return cfg
}

func seed(v int64) *int64 { return &v }

func testvilleRequest(mode string) request_models.PlanRequest {
	return request_models.PlanRequest{
		UserID:      "user-1",
		Destination: "Testville",
		StartDate:   "2025-06-01",
		EndDate:     "2025-06-02",
		Mode:        mode,
		Seed:        seed(7),
		Preferences: request_models.Preferences{Interests: []string{"sight", "food"}},
	}
}

func mustInput(t *testing.T, req request_models.PlanRequest) PlanInput {
	t.Helper()
	in, err := NormalizeRequest(req, 14)
	require.NoError(t, err)
	return in
}

func candidate(id, name, category string, rating, lat, lng float64) resp.CandidatePoi {
	return resp.CandidatePoi{
		Provider:   "test",
		ProviderID: id,
		Name:       name,
		Category:   category,
		Rating:     rating,
		Lat:        lat,
		Lng:        lng,
		Metadata:   map[string]string{"source": SourceStore},
	}
}

func testvillePool() *CandidatePool {
	cands := []resp.CandidatePoi{
		candidate("s1", "Old Fort", "sight", 4.9, 10.001, 106.001),
		candidate("s2", "River Museum", "sight", 4.7, 10.002, 106.002),
		candidate("s3", "Clock Tower", "sight", 4.5, 10.003, 106.001),
		candidate("s4", "Sculpture Park", "sight", 4.3, 10.004, 106.003),
		candidate("f1", "Noodle House", "food", 4.8, 10.001, 106.002),
		candidate("f2", "Market Stalls", "food", 4.6, 10.002, 106.004),
		candidate("f3", "Bakery Corner", "food", 4.4, 10.003, 106.003),
		candidate("f4", "Night Grill", "food", 4.2, 10.005, 106.001),
	}
	ranked := RankCandidates(cands)
	return &CandidatePool{
		Center:       GeocodeResult{Point: GeoPoint{Lat: 10, Lng: 106}, Provenance: GeoFallback},
		Candidates:   ranked,
		SourceCounts: map[string]int{SourceStore: len(ranked)},
	}
}

// staticPool serves a fixed candidate pool.
type staticPool struct {
	pool  *CandidatePool
	err   error
	mu    sync.Mutex
	calls int
}

func (s *staticPool) Build(_ context.Context, _ PlanInput, limit int) (*CandidatePool, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := *s.pool
	out.Candidates = append([]resp.CandidatePoi(nil), s.pool.Candidates...)
	if limit > 0 && len(out.Candidates) > limit {
		out.Candidates = out.Candidates[:limit]
	}
	return &out, nil
}

func newTestFastPlanner(t *testing.T, pool CandidatePoolServiceInterface) *FastPlanner {
	t.Helper()
	fp, err := NewFastPlanner(pool, testConfig().Planner)
	require.NoError(t, err)
	return fp
}

// scriptedChat answers each chat call through respond; call numbers start at 1.
type scriptedChat struct {
	mu       sync.Mutex
	calls    int
	requests []utils.ChatRequest
	respond  func(call int, req utils.ChatRequest) (*utils.ChatResponse, error)
}

func (s *scriptedChat) Chat(_ context.Context, req utils.ChatRequest) (*utils.ChatResponse, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.respond(n, req)
}

func (s *scriptedChat) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var dayIndexPattern = regexp.MustCompile(`day index (\d+)`)

func dayOf(req utils.ChatRequest) int {
	for _, m := range req.Messages {
		if m.Role != utils.RoleUser {
			continue
		}
		if match := dayIndexPattern.FindStringSubmatch(m.Content); match != nil {
			n, _ := strconv.Atoi(match[1])
			return n
		}
	}
	return -1
}

// candidateRefs lists the refs under "Candidates:" in the day prompt.
func candidateRefs(req utils.ChatRequest) []string {
	for _, m := range req.Messages {
		if m.Role != utils.RoleUser {
			continue
		}
		_, after, ok := strings.Cut(m.Content, "\nCandidates:\n")
		if !ok {
			continue
		}
		var refs []string
		for _, line := range strings.Split(after, "\n") {
			if !strings.HasPrefix(line, "- ") {
				break
			}
			ref, _, _ := strings.Cut(strings.TrimPrefix(line, "- "), " | ")
			refs = append(refs, ref)
		}
		return refs
	}
	return nil
}

func addCall(id string, day int, slot, ref string, duration int) utils.ToolCall {
	return utils.ToolCall{
		ID:        id,
		Name:      "add_sub_trip",
		Arguments: fmt.Sprintf(`{"day":%d,"slot":%q,"poi_ref":%q,"duration":%d}`, day, slot, ref, duration),
	}
}

// goodModel fills the day with the first two available candidates in one round.
func goodModel(_ int, req utils.ChatRequest) (*utils.ChatResponse, error) {
	day := dayOf(req)
	refs := candidateRefs(req)
	if len(refs) < 2 {
		return &utils.ChatResponse{Content: "not enough candidates"}, nil
	}
	return &utils.ChatResponse{
		ToolCalls: []utils.ToolCall{
			addCall("c1", day, SlotMorning, refs[0], 120),
			addCall("c2", day, SlotAfternoon, refs[1], 120),
			{ID: "c3", Name: "validate_day", Arguments: fmt.Sprintf(`{"day":%d}`, day)},
		},
		Usage: utils.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
	}, nil
}

// fakeMemory records writes and serves fixed hits.
type fakeMemory struct {
	mu        sync.Mutex
	hits      []MemoryHit
	searchErr error
	writeErr  error
	writes    []MemoryMeta
	texts     []string
}

func (f *fakeMemory) Write(_ context.Context, text string, meta MemoryMeta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, meta)
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeMemory) Search(_ context.Context, _ string, _ repositories.MemoryScope, _ int) ([]MemoryHit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}
