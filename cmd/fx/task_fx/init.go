package task_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"vivuplanner/internal/config"
	"vivuplanner/internal/repositories"
	"vivuplanner/internal/services"
	"vivuplanner/internal/telemetry"
)

var Module = fx.Provide(
	provideTaskRepo, provideWorkerPool, provideTaskService)

func provideTaskRepo(db *gorm.DB) repositories.TaskRepository {
	return repositories.NewTaskRepository(db)
}

// provideWorkerPool starts workers after recovery and drains them on shutdown.
func provideWorkerPool(
	lc fx.Lifecycle,
	repo repositories.TaskRepository,
	orchestrator services.PlanOrchestratorInterface,
	cfg config.Config,
	metrics *telemetry.Metrics,
	log *zap.Logger,
) *services.TaskWorkerPool {
	pool := services.NewTaskWorkerPool(repo, orchestrator, cfg.Tasks, metrics, log.Named("tasks"))
	lc.Append(fx.Hook{
		OnStart: pool.Start,
		OnStop:  pool.Stop,
	})
	return pool
}

func provideTaskService(
	repo repositories.TaskRepository,
	pool *services.TaskWorkerPool,
	cfg config.Config,
	metrics *telemetry.Metrics,
	log *zap.Logger,
) services.TaskServiceInterface {
	return services.NewTaskService(repo, pool, cfg, metrics, log.Named("tasks"))
}
