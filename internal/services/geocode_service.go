package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	mem "vivuplanner/pkg/memcache"
	"vivuplanner/pkg/utils"
)

const (
	GeoExact    = "exact"
	GeoProvider = "provider"
	GeoFallback = "fallback"
)

type GeocodeResult struct {
	Point      GeoPoint `json:"point"`
	Provenance string   `json:"provenance"`
}

type GeocodeServiceInterface interface {
	Resolve(ctx context.Context, destination string) (GeocodeResult, error)
}

// knownPlaces resolves well-known destinations without any lookup.
var knownPlaces = map[string]GeoPoint{
	"hanoi":            {Lat: 21.0285, Lng: 105.8542},
	"ha noi":           {Lat: 21.0285, Lng: 105.8542},
	"ho chi minh city": {Lat: 10.7769, Lng: 106.7009},
	"saigon":           {Lat: 10.7769, Lng: 106.7009},
	"da nang":          {Lat: 16.0544, Lng: 108.2022},
	"hoi an":           {Lat: 15.8801, Lng: 108.3380},
	"hue":              {Lat: 16.4637, Lng: 107.5909},
	"nha trang":        {Lat: 12.2388, Lng: 109.1967},
	"da lat":           {Lat: 11.9404, Lng: 108.4583},
	"sa pa":            {Lat: 22.3364, Lng: 103.8438},
	"ha long":          {Lat: 20.9101, Lng: 107.1839},
	"phu quoc":         {Lat: 10.2899, Lng: 103.9840},
}

type GeocodeService struct {
	cache    mem.Cache
	provider PlaceProvider
	ttl      time.Duration
	log      *zap.Logger
}

// NewGeocodeService builds the resolver; provider may be nil.
func NewGeocodeService(cache mem.Cache, provider PlaceProvider, ttl time.Duration, log *zap.Logger) GeocodeServiceInterface {
	return &GeocodeService{cache: cache, provider: provider, ttl: ttl, log: log}
}

func (g *GeocodeService) Resolve(ctx context.Context, destination string) (GeocodeResult, error) {
	key := normalizePlace(destination)
	if key == "" {
		return GeocodeResult{}, fmt.Errorf("%w: destination is required", utils.ErrInvalidInput)
	}

	if p, ok := knownPlaces[key]; ok {
		return GeocodeResult{Point: p, Provenance: GeoExact}, nil
	}

	cacheKey := "geocode:" + key
	var cached GeocodeResult
	if ok, err := mem.GetJSON(ctx, g.cache, cacheKey, &cached); err != nil {
		g.log.Warn("geocode cache read failed", zap.String("destination", key), zap.Error(err))
	} else if ok {
		return cached, nil
	}

	result := GeocodeResult{Point: fallbackPoint(key), Provenance: GeoFallback}
	if g.provider != nil {
		p, found, err := g.provider.Forward(ctx, destination)
		switch {
		case err != nil:
			g.log.Warn("geocode provider failed, using fallback", zap.String("destination", key), zap.Error(err))
		case found:
			result = GeocodeResult{Point: p, Provenance: GeoProvider}
		}
	}

	if err := mem.SetJSON(ctx, g.cache, cacheKey, result, g.ttl); err != nil {
		g.log.Warn("geocode cache write failed", zap.String("destination", key), zap.Error(err))
	}
	return result, nil
}

// fallbackPoint derives a stable coordinate from the destination name.
func fallbackPoint(key string) GeoPoint {
	return GeoPoint{
		Lat: -60 + 120*utils.UnitFraction("lat:"+key),
		Lng: -180 + 360*utils.UnitFraction("lng:"+key),
	}
}
