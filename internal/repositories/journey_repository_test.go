package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	resp "vivuplanner/internal/models/response_models"
)

func TestJourneyRepository_SaveTripRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewJourneyRepository(newTestDB(t))

	trip := &resp.PlanTrip{
		Destination: "Hanoi",
		StartDate:   "2025-06-01",
		EndDate:     "2025-06-02",
		DayCount:    2,
		DayCards: []resp.DayCard{
			{DayIndex: 0, Date: "2025-06-01", SubTrips: []resp.SubTrip{
				{OrderIndex: 0, Activity: "Visit temple", Poi: &resp.PoiKey{Provider: "osm", ProviderID: "1"}, StartTime: "09:00", EndTime: "11:00",
					Metadata: resp.SubTripMetadata{Slot: "morning", DurationMinutes: 120}},
				{OrderIndex: 1, Activity: "Lunch", StartTime: "12:00", EndTime: "13:00",
					Metadata: resp.SubTripMetadata{Slot: "afternoon", DurationMinutes: 60}},
			}},
			{DayIndex: 1, Date: "2025-06-02"},
		},
	}

	saved, err := repo.SaveTrip(ctx, SaveTripInput{UserID: "u1", Mode: "fast", TraceID: "trace", Trip: trip})
	require.NoError(t, err)
	require.NotEmpty(t, saved.JourneyID)
	assert.Len(t, saved.DayIDs, 2)

	j, err := repo.GetDetailsOfJourneyById(ctx, saved.JourneyID)
	require.NoError(t, err)
	require.NotNil(t, j)
	assert.Equal(t, "Hanoi", j.Destination)
	require.Len(t, j.Days, 2)
	require.Len(t, j.Days[0].Activities, 2)
	assert.Equal(t, "osm", j.Days[0].Activities[0].PoiProvider)
	assert.Equal(t, 1, j.Days[0].Activities[1].OrderIndex)
	assert.Empty(t, j.Days[1].Activities)
}

func TestJourneyRepository_MissingJourney(t *testing.T) {
	repo := NewJourneyRepository(newTestDB(t))
	j, err := repo.GetDetailsOfJourneyById(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Nil(t, j)
}
