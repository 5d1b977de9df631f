package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vivuplanner/internal/models/db_models"
)

func TestPOIRepository_UpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	repo := NewPOIRepository(newTestDB(t))

	require.NoError(t, repo.UpsertMany(ctx, []db_models.POI{
		{Provider: "osm", ProviderID: "1", Name: "Old Quarter", Destination: "Hanoi", Category: "sight", Rating: 4.5, Latitude: 21.03, Longitude: 105.85},
		{Provider: "osm", ProviderID: "2", Name: "Pho Bat Dan", Destination: "Hanoi", Category: "food", Rating: 4.7, Latitude: 21.034, Longitude: 105.846},
		{Provider: "osm", ProviderID: "3", Name: "Far Away", Destination: "Hue", Category: "sight", Rating: 4.9, Latitude: 16.46, Longitude: 107.59},
	}))

	// refresh keeps one row per key
	require.NoError(t, repo.UpsertMany(ctx, []db_models.POI{
		{Provider: "osm", ProviderID: "1", Name: "Old Quarter", Destination: "Hanoi", Category: "sight", Rating: 4.8, Latitude: 21.03, Longitude: 105.85},
	}))

	byDest, err := repo.ListByDestination(ctx, " hanoi ", 0)
	require.NoError(t, err)
	require.Len(t, byDest, 2)
	assert.Equal(t, "Old Quarter", byDest[0].Name)
	assert.InDelta(t, 4.8, byDest[0].Rating, 1e-9)

	inBox, err := repo.ListInBox(ctx, BoundingBox{MinLat: 21.0, MaxLat: 21.1, MinLng: 105.8, MaxLng: 105.9}, "food", 10)
	require.NoError(t, err)
	require.Len(t, inBox, 1)
	assert.Equal(t, "2", inBox[0].ProviderID)
}
