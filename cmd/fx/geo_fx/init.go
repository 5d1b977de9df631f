package geo_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"vivuplanner/internal/config"
	"vivuplanner/internal/repositories"
	"vivuplanner/internal/services"
	mem "vivuplanner/pkg/memcache"
)

var Module = fx.Provide(
	providePlaceProvider, provideGeocode, provideNearby, provideCandidatePool)

func providePlaceProvider(cfg config.Config, log *zap.Logger) (services.PlaceProvider, error) {
	if cfg.Mapbox.AccessToken == "" {
		log.Warn("MAPBOX_ACCESS_TOKEN not set, geocoding and nearby search use local data only")
		return nil, nil
	}
	client, err := services.NewMapboxClient(cfg.Mapbox.AccessToken, cfg.Mapbox.Timeout)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func provideGeocode(cache mem.Cache, provider services.PlaceProvider, cfg config.Config, log *zap.Logger) services.GeocodeServiceInterface {
	return services.NewGeocodeService(cache, provider, cfg.Mapbox.CacheTTL, log.Named("geocode"))
}

func provideNearby(poiRepo repositories.POIRepository, provider services.PlaceProvider, cache mem.Cache, cfg config.Config, log *zap.Logger) services.NearbyServiceInterface {
	return services.NewNearbyService(poiRepo, provider, cache, cfg.Planner.SearchRadiusM, cfg.Redis.TTL, log.Named("nearby"))
}

func provideCandidatePool(
	geocode services.GeocodeServiceInterface,
	nearby services.NearbyServiceInterface,
	poiRepo repositories.POIRepository,
	cfg config.Config,
	log *zap.Logger,
) services.CandidatePoolServiceInterface {
	return services.NewCandidatePoolService(geocode, nearby, poiRepo, cfg.Planner.PerInterestLimit, log.Named("pool"))
}
