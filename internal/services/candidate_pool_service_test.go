package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"vivuplanner/internal/models/db_models"
	"vivuplanner/internal/models/request_models"
	resp "vivuplanner/internal/models/response_models"
	"vivuplanner/internal/repositories"
	mem "vivuplanner/pkg/memcache"
	"vivuplanner/pkg/utils"
)

type fakeProvider struct {
	mu          sync.Mutex
	point       GeoPoint
	found       bool
	forwardErr  error
	forwardHits int
	byCategory  map[string][]resp.CandidatePoi
	searchErr   error
	searchHits  int
}

func (f *fakeProvider) Forward(_ context.Context, _ string) (GeoPoint, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forwardHits++
	return f.point, f.found, f.forwardErr
}

func (f *fakeProvider) SearchCategory(_ context.Context, _ GeoPoint, category string, limit int) ([]resp.CandidatePoi, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchHits++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := f.byCategory[category]
	if len(out) > limit {
		out = out[:limit]
	}
	return append([]resp.CandidatePoi(nil), out...), nil
}

func TestGeocodeService_Resolve(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{point: GeoPoint{Lat: 1.5, Lng: 2.5}, found: true}
	geo := NewGeocodeService(mem.NewTTLCache(), provider, time.Hour, zaptest.NewLogger(t))

	known, err := geo.Resolve(ctx, "  Ha Noi ")
	require.NoError(t, err)
	assert.Equal(t, GeoExact, known.Provenance)
	assert.InDelta(t, 21.0285, known.Point.Lat, 1e-6)
	assert.Zero(t, provider.forwardHits)

	first, err := geo.Resolve(ctx, "Testville")
	require.NoError(t, err)
	assert.Equal(t, GeocodeResult{Point: GeoPoint{Lat: 1.5, Lng: 2.5}, Provenance: GeoProvider}, first)

	second, err := geo.Resolve(ctx, "testville")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.forwardHits, "second lookup is served from cache")

	_, err = geo.Resolve(ctx, "   ")
	assert.ErrorIs(t, err, utils.ErrInvalidInput)
}

func TestGeocodeService_FallbackIsStable(t *testing.T) {
	ctx := context.Background()
	failing := &fakeProvider{forwardErr: errors.New("timeout")}
	a := NewGeocodeService(mem.NewTTLCache(), failing, time.Hour, zaptest.NewLogger(t))
	b := NewGeocodeService(mem.NewTTLCache(), nil, time.Hour, zaptest.NewLogger(t))

	ra, err := a.Resolve(ctx, "Nowhere Springs")
	require.NoError(t, err)
	rb, err := b.Resolve(ctx, "nowhere springs")
	require.NoError(t, err)

	assert.Equal(t, GeoFallback, ra.Provenance)
	assert.Equal(t, ra, rb)
	assert.GreaterOrEqual(t, ra.Point.Lat, -60.0)
	assert.LessOrEqual(t, ra.Point.Lat, 60.0)
}

func TestNearbyService_StoreThenExternal(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewPOIRepository(newTestDB(t))
	require.NoError(t, repo.UpsertMany(ctx, []db_models.POI{
		{Provider: "test", ProviderID: "f1", Name: "Noodle House", Destination: "Testville", Category: "food", Rating: 4.8, Latitude: 10.001, Longitude: 106.002},
		{Provider: "test", ProviderID: "far", Name: "Far Diner", Destination: "Elsewhere", Category: "food", Rating: 5, Latitude: 12, Longitude: 108},
	}))
	provider := &fakeProvider{byCategory: map[string][]resp.CandidatePoi{
		"food": {
			{Provider: "test", ProviderID: "f1", Name: "Noodle House", Category: "food", Rating: 4.8, Lat: 10.001, Lng: 106.002},
			{Provider: "mapbox", ProviderID: "m1", Name: "Harbour Cafe", Category: "food", Rating: 4.1, Lat: 10.01, Lng: 106.01},
		},
	}}
	cache := mem.NewTTLCache()
	nearby := NewNearbyService(repo, provider, cache, 5000, time.Hour, zaptest.NewLogger(t))
	center := GeoPoint{Lat: 10, Lng: 106}

	got, err := nearby.Nearby(ctx, center, "food", 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "f1", got[0].ProviderID)
	assert.Equal(t, SourceStore, got[0].Source())
	assert.Equal(t, "m1", got[1].ProviderID)
	assert.Equal(t, SourceExternal, got[1].Source())

	persisted, err := repo.ListInBox(ctx, repositories.BoundingBox{MinLat: 9.9, MaxLat: 10.1, MinLng: 105.9, MaxLng: 106.1}, "food", 10)
	require.NoError(t, err)
	assert.Len(t, persisted, 2)

	again, err := nearby.Nearby(ctx, center, "food", 3)
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.Equal(t, SourceCache, again[0].Source())
	assert.Equal(t, 1, provider.searchHits)
}

func TestNearbyService_ExternalFailureWithNothingStored(t *testing.T) {
	repo := repositories.NewPOIRepository(newTestDB(t))
	boom := errors.New("rate limited")
	nearby := NewNearbyService(repo, &fakeProvider{searchErr: boom}, mem.NewTTLCache(), 5000, time.Hour, zaptest.NewLogger(t))

	_, err := nearby.Nearby(context.Background(), GeoPoint{Lat: 10, Lng: 106}, "sight", 5)
	assert.ErrorIs(t, err, boom)
}

type fakeNearby struct {
	byCategory map[string][]resp.CandidatePoi
	failFor    string
}

func (f fakeNearby) Nearby(_ context.Context, _ GeoPoint, category string, _ int) ([]resp.CandidatePoi, error) {
	if category == f.failFor {
		return nil, errors.New("provider down")
	}
	return f.byCategory[category], nil
}

func TestCandidatePoolService_Build(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewPOIRepository(newTestDB(t))
	require.NoError(t, repo.UpsertMany(ctx, []db_models.POI{
		{Provider: "test", ProviderID: "k1", Name: "Town Hall", Destination: "Testville", Category: "sight", Rating: 4.0, Latitude: 10.0, Longitude: 106.0},
	}))
	nearby := fakeNearby{
		byCategory: map[string][]resp.CandidatePoi{
			"sight": {candidate("s1", "Old Fort", "sight", 4.9, 10.001, 106.001), candidate("k1", "Town Hall", "sight", 4.0, 10, 106)},
			"food":  {candidate("f1", "Noodle House", "food", 4.8, 10.001, 106.002)},
		},
		failFor: "nightlife",
	}
	geo := NewGeocodeService(mem.NewTTLCache(), &fakeProvider{point: GeoPoint{Lat: 10, Lng: 106}, found: true}, time.Hour, zaptest.NewLogger(t))
	svc := NewCandidatePoolService(geo, nearby, repo, 5, zaptest.NewLogger(t))

	req := testvilleRequest(request_models.ModeFast)
	req.Preferences.Interests = []string{"sight", "food", "nightlife"}
	in := mustInput(t, req)

	pool, err := svc.Build(ctx, in, 0)
	require.NoError(t, err)
	assert.Equal(t, GeoProvider, pool.Center.Provenance)

	ids := make([]string, 0, len(pool.Candidates))
	for _, c := range pool.Candidates {
		ids = append(ids, c.ProviderID)
	}
	assert.Equal(t, []string{"s1", "f1", "k1"}, ids)
	assert.Equal(t, SourceKnown, pool.Candidates[2].Source(), "known row wins the duplicate")
	assert.Equal(t, map[string]int{SourceKnown: 1, SourceStore: 2}, pool.SourceCounts)

	capped, err := svc.Build(ctx, in, 2)
	require.NoError(t, err)
	assert.Len(t, capped.Candidates, 2)
}

func TestRankCandidates_TieBreaks(t *testing.T) {
	in := []resp.CandidatePoi{
		{Provider: "b", ProviderID: "2", Name: "Same", Rating: 4},
		{Provider: "a", ProviderID: "9", Name: "Same", Rating: 4},
		{Provider: "a", ProviderID: "1", Name: "Same", Rating: 4},
		{Provider: "z", ProviderID: "0", Name: "Alpha", Rating: 4},
		{Provider: "a", ProviderID: "1", Name: "Duplicate", Rating: 5},
		{Provider: "q", ProviderID: "q", Name: "Top", Rating: 4.5},
	}
	out := RankCandidates(in)
	keys := make([]string, 0, len(out))
	for _, c := range out {
		keys = append(keys, c.Key().String())
	}
	assert.Equal(t, []string{"q:q", "z:0", "a:1", "a:9", "b:2"}, keys)
}
