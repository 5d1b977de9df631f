package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vivuplanner/internal/config"
	"vivuplanner/internal/models/request_models"
	resp "vivuplanner/internal/models/response_models"
	"vivuplanner/pkg/utils"
)

func TestFastPlanner_TestvilleScenario(t *testing.T) {
	pool := &staticPool{pool: testvillePool()}
	fp := newTestFastPlanner(t, pool)
	in := mustInput(t, testvilleRequest(request_models.ModeFast))

	plan, err := fp.Plan(context.Background(), in)
	require.NoError(t, err)

	trip := plan.Trip
	assert.Equal(t, 2, trip.DayCount)
	require.Len(t, trip.DayCards, 2)
	assert.Equal(t, 0, trip.DayCards[0].DayIndex)
	assert.Equal(t, "2025-06-01", trip.DayCards[0].Date)
	assert.Equal(t, 1, trip.DayCards[1].DayIndex)
	assert.Equal(t, "2025-06-02", trip.DayCards[1].Date)

	for _, card := range trip.DayCards {
		require.NotEmpty(t, card.SubTrips)
		for i, st := range card.SubTrips {
			assert.Equal(t, i, st.OrderIndex)
			assert.NotEmpty(t, st.StartTime)
			assert.NotEmpty(t, st.EndTime)
		}
	}
	assert.Empty(t, ValidatePlan(in, trip))

	assert.Equal(t, int64(7), plan.Metrics.Seed)
	assert.Equal(t, 8, plan.Metrics.CandidateCount)
	assert.Equal(t, 8, plan.Metrics.Generated)
	assert.Zero(t, plan.Metrics.Placeholders)
}

func TestFastPlanner_IsDeterministic(t *testing.T) {
	fp := newTestFastPlanner(t, &staticPool{pool: testvillePool()})
	in := mustInput(t, testvilleRequest(request_models.ModeFast))

	first, err := fp.Plan(context.Background(), in)
	require.NoError(t, err)
	second, err := fp.Plan(context.Background(), in)
	require.NoError(t, err)

	a, err := json.Marshal(first.Trip)
	require.NoError(t, err)
	b, err := json.Marshal(second.Trip)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestFastPlanner_SeedNeverChangesCandidateOrder(t *testing.T) {
	fp := newTestFastPlanner(t, &staticPool{pool: testvillePool()})
	pool := testvillePool()

	for _, s := range []int64{1, 2, 3, 99} {
		req := testvilleRequest(request_models.ModeFast)
		req.Seed = seed(s)
		plan := fp.PlanWithPool(mustInput(t, req), pool)
		assert.Equal(t, testvillePool().Candidates, plan.Pool.Candidates)
		assert.Empty(t, ValidatePlan(mustInput(t, req), plan.Trip))
	}
}

func TestFastPlanner_NoPoiUsedTwice(t *testing.T) {
	fp := newTestFastPlanner(t, &staticPool{pool: testvillePool()})
	req := testvilleRequest(request_models.ModeFast)
	req.EndDate = "2025-06-05"

	plan, err := fp.Plan(context.Background(), mustInput(t, req))
	require.NoError(t, err)

	seen := map[resp.PoiKey]bool{}
	for _, card := range plan.Trip.DayCards {
		for _, st := range card.SubTrips {
			if st.Poi == nil {
				continue
			}
			assert.False(t, seen[*st.Poi], "poi %s reused", st.Poi)
			seen[*st.Poi] = true
		}
	}
	// 5 days at one per slot is 10 slots over 8 candidates.
	assert.Equal(t, 2, plan.Metrics.Placeholders)
}

func TestFastPlanner_PlaceholdersWhenPoolRunsDry(t *testing.T) {
	pool := &CandidatePool{
		Center:     GeocodeResult{Point: GeoPoint{Lat: 10, Lng: 106}},
		Candidates: []resp.CandidatePoi{candidate("s1", "Old Fort", "sight", 4.9, 10.001, 106.001)},
	}
	fp := newTestFastPlanner(t, &staticPool{pool: pool})
	req := testvilleRequest(request_models.ModeFast)
	req.EndDate = req.StartDate

	plan, err := fp.Plan(context.Background(), mustInput(t, req))
	require.NoError(t, err)

	card := plan.Trip.DayCards[0]
	require.Len(t, card.SubTrips, 4)
	assert.NotNil(t, card.SubTrips[0].Poi)
	for _, st := range card.SubTrips[1:] {
		assert.Nil(t, st.Poi)
		assert.Equal(t, freeExplorationLabel, st.Activity)
		assert.NotEmpty(t, st.Metadata.Note)
	}
	assert.Equal(t, 3, plan.Metrics.Placeholders)
	assert.Empty(t, ValidatePlan(mustInput(t, req), plan.Trip))
}

func TestFastPlanner_PrefersCategoryChange(t *testing.T) {
	fp := newTestFastPlanner(t, &staticPool{pool: testvillePool()})
	plan := fp.PlanWithPool(mustInput(t, testvilleRequest(request_models.ModeFast)), testvillePool())

	for _, card := range plan.Trip.DayCards {
		for i := 1; i < len(card.SubTrips); i++ {
			prev, cur := card.SubTrips[i-1].Metadata.Poi, card.SubTrips[i].Metadata.Poi
			require.NotNil(t, prev)
			require.NotNil(t, cur)
			assert.NotEqual(t, prev.Category, cur.Category)
		}
	}
}

func TestFastPlanner_RejectsBadRanges(t *testing.T) {
	fp := newTestFastPlanner(t, &staticPool{pool: testvillePool()})

	in := mustInput(t, testvilleRequest(request_models.ModeFast))
	in.DayCount = 0
	_, err := fp.Plan(context.Background(), in)
	assert.ErrorIs(t, err, utils.ErrInvalidRange)

	in.DayCount = 15
	_, err = fp.Plan(context.Background(), in)
	assert.ErrorIs(t, err, utils.ErrTooManyDays)
}

func TestFastPlanner_PoolFailurePropagates(t *testing.T) {
	boom := errors.New("geocoder down")
	fp := newTestFastPlanner(t, &staticPool{err: boom})

	_, err := fp.Plan(context.Background(), mustInput(t, testvilleRequest(request_models.ModeFast)))
	assert.ErrorIs(t, err, boom)
}

func TestNewFastPlanner_RejectsInvertedWindow(t *testing.T) {
	cfg := config.Default().Planner
	cfg.DayStart, cfg.DayEnd = "18:00", "09:00"
	_, err := NewFastPlanner(&staticPool{pool: testvillePool()}, cfg)
	assert.ErrorIs(t, err, utils.ErrInvalidTime)
}

func TestNormalizeRequest(t *testing.T) {
	req := testvilleRequest("")
	req.Preferences.Interests = []string{" Food ", "food", "", "SIGHT"}
	in, err := NormalizeRequest(req, 14)
	require.NoError(t, err)
	assert.Equal(t, request_models.ModeFast, in.Request.Mode)
	assert.Equal(t, []string{"food", "sight"}, in.Interests)
	assert.False(t, in.InterestsDefaulted)
	assert.Equal(t, 2, in.DayCount)

	req.Preferences.Interests = nil
	in, err = NormalizeRequest(req, 14)
	require.NoError(t, err)
	assert.Equal(t, request_models.DefaultInterests, in.Interests)
	assert.True(t, in.InterestsDefaulted)

	bad := testvilleRequest(request_models.ModeFast)
	bad.EndDate = "2025-05-30"
	_, err = NormalizeRequest(bad, 14)
	assert.ErrorIs(t, err, utils.ErrInvalidRange)

	bad = testvilleRequest("turbo")
	_, err = NormalizeRequest(bad, 14)
	assert.ErrorIs(t, err, utils.ErrInvalidInput)

	bad = testvilleRequest(request_models.ModeFast)
	bad.EndDate = "2025-07-30"
	_, err = NormalizeRequest(bad, 14)
	assert.ErrorIs(t, err, utils.ErrTooManyDays)
}
