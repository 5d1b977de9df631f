package mem

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func TestTTLCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestRedisCache_JSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedisCache(client, "geo:")
	require.NoError(t, SetJSON(ctx, c, "hanoi", point{Lat: 21.02, Lng: 105.84}, time.Hour))
	assert.True(t, srv.Exists("geo:hanoi"))

	var p point
	ok, err := GetJSON(ctx, c, "hanoi", &p)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 21.02, p.Lat, 1e-9)

	srv.FastForward(2 * time.Hour)
	ok, err = GetJSON(ctx, c, "hanoi", &p)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetJSON_CorruptValueIsMiss(t *testing.T) {
	ctx := context.Background()
	c := NewTTLCache()
	require.NoError(t, c.Set(ctx, "bad", []byte("{not json"), time.Minute))

	var p point
	ok, err := GetJSON(ctx, c, "bad", &p)
	require.NoError(t, err)
	assert.False(t, ok)
}
