package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"vivuplanner/internal/models/db_models"
	resp "vivuplanner/internal/models/response_models"
	"vivuplanner/internal/repositories"
	mem "vivuplanner/pkg/memcache"
)

const (
	SourceCache    = "cache"
	SourceStore    = "store"
	SourceExternal = "external"
	SourceKnown    = "known"
)

type NearbyServiceInterface interface {
	Nearby(ctx context.Context, near GeoPoint, category string, limit int) ([]resp.CandidatePoi, error)
}

type NearbyService struct {
	poiRepo  repositories.POIRepository
	provider PlaceProvider
	cache    mem.Cache
	radiusM  float64
	ttl      time.Duration
	log      *zap.Logger
}

// NewNearbyService looks up cache, then store, then the external provider (may be nil).
func NewNearbyService(poiRepo repositories.POIRepository, provider PlaceProvider, cache mem.Cache, radiusM int, ttl time.Duration, log *zap.Logger) NearbyServiceInterface {
	if radiusM <= 0 {
		radiusM = 5000
	}
	return &NearbyService{
		poiRepo:  poiRepo,
		provider: provider,
		cache:    cache,
		radiusM:  float64(radiusM),
		ttl:      ttl,
		log:      log,
	}
}

func (n *NearbyService) Nearby(ctx context.Context, near GeoPoint, category string, limit int) ([]resp.CandidatePoi, error) {
	if limit <= 0 {
		limit = 10
	}
	cacheKey := fmt.Sprintf("nearby:%.4f:%.4f:%s:%d", near.Lat, near.Lng, category, limit)

	var cached []resp.CandidatePoi
	if ok, err := mem.GetJSON(ctx, n.cache, cacheKey, &cached); err != nil {
		n.log.Warn("nearby cache read failed", zap.Error(err))
	} else if ok {
		for i := range cached {
			cached[i].Metadata = withSource(cached[i].Metadata, SourceCache)
		}
		return cached, nil
	}

	var (
		out     []resp.CandidatePoi
		seen    = map[resp.PoiKey]struct{}{}
		lastErr error
	)

	minLat, maxLat, minLng, maxLng := boxAround(near, n.radiusM)
	stored, err := n.poiRepo.ListInBox(ctx, repositories.BoundingBox{
		MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng,
	}, category, limit*2)
	if err != nil {
		n.log.Warn("nearby store lookup failed", zap.String("category", category), zap.Error(err))
		lastErr = err
	}
	for _, p := range stored {
		c := candidateFromPOI(p, near, SourceStore)
		if c.DistanceM > n.radiusM {
			continue
		}
		seen[c.Key()] = struct{}{}
		out = append(out, c)
	}

	if len(out) < limit && n.provider != nil {
		ext, err := n.provider.SearchCategory(ctx, near, category, limit)
		if err != nil {
			n.log.Warn("nearby external lookup failed", zap.String("category", category), zap.Error(err))
			lastErr = err
		}
		var fresh []db_models.POI
		for _, c := range ext {
			if _, dup := seen[c.Key()]; dup {
				continue
			}
			seen[c.Key()] = struct{}{}
			c.Metadata = withSource(c.Metadata, SourceExternal)
			out = append(out, c)
			fresh = append(fresh, poiFromCandidate(c))
		}
		if err := n.poiRepo.UpsertMany(ctx, fresh); err != nil {
			n.log.Warn("persist external pois failed", zap.Error(err))
		}
	}

	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].DistanceM < out[j].DistanceM
	})
	if len(out) > limit {
		out = out[:limit]
	}

	if len(out) > 0 {
		if err := mem.SetJSON(ctx, n.cache, cacheKey, out, n.ttl); err != nil {
			n.log.Warn("nearby cache write failed", zap.Error(err))
		}
	}
	return out, nil
}

func withSource(meta map[string]string, source string) map[string]string {
	out := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out["source"] = source
	return out
}

func candidateFromPOI(p db_models.POI, near GeoPoint, source string) resp.CandidatePoi {
	point := GeoPoint{Lat: p.Latitude, Lng: p.Longitude}
	return resp.CandidatePoi{
		Provider:   p.Provider,
		ProviderID: p.ProviderID,
		Name:       p.Name,
		Category:   p.Category,
		Address:    p.Address,
		Rating:     p.Rating,
		Lat:        p.Latitude,
		Lng:        p.Longitude,
		DistanceM:  HaversineMeters(near, point),
		Metadata:   map[string]string{"source": source},
	}
}

func poiFromCandidate(c resp.CandidatePoi) db_models.POI {
	return db_models.POI{
		Provider:   c.Provider,
		ProviderID: c.ProviderID,
		Name:       c.Name,
		Category:   c.Category,
		Address:    c.Address,
		Rating:     c.Rating,
		Latitude:   c.Lat,
		Longitude:  c.Lng,
		Status:     "active",
	}
}
