package poisfx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"vivuplanner/internal/repositories"
	"vivuplanner/internal/services"
)

var Module = fx.Provide(
	providePoisRepo, providePoisService)

func providePoisRepo(db *gorm.DB) repositories.POIRepository {
	return repositories.NewPOIRepository(db)
}

func providePoisService(poiRepo repositories.POIRepository, log *zap.Logger) services.POIServiceInterface {
	return services.NewPOIService(poiRepo, log.Named("pois"))
}
