package memory_fx

import (
	"go.uber.org/fx"
	"gorm.io/gorm"
	"vivuplanner/internal/repositories"
	"vivuplanner/internal/services"
	"vivuplanner/pkg/utils"
)

var Module = fx.Provide(
	provideMemoryRepo, provideMemoryService)

func provideMemoryRepo(db *gorm.DB) repositories.MemoryRepository {
	return repositories.NewMemoryRepository(db)
}

func provideMemoryService(repo repositories.MemoryRepository, embedder utils.Embedder) services.SemanticMemoryInterface {
	return services.NewMemoryService(repo, embedder)
}
