package planner_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"vivuplanner/internal/config"
	"vivuplanner/internal/services"
	"vivuplanner/internal/telemetry"
	"vivuplanner/pkg/utils"
)

var Module = fx.Provide(
	provideFastPlanner,
	provideDeepPlanner,
	services.NewPlanValidator,
	provideOrchestrator)

func provideFastPlanner(pool services.CandidatePoolServiceInterface, cfg config.Config) (services.FastPlannerInterface, error) {
	return services.NewFastPlanner(pool, cfg.Planner)
}

func provideDeepPlanner(
	chat utils.ChatClient,
	pool services.CandidatePoolServiceInterface,
	fast services.FastPlannerInterface,
	memory services.SemanticMemoryInterface,
	cfg config.Config,
	metrics *telemetry.Metrics,
	log *zap.Logger,
) (services.DeepPlannerInterface, error) {
	return services.NewDeepPlanner(chat, services.NewDefaultToolRegistry(), pool, fast, memory, cfg, metrics, log.Named("deep"))
}

func provideOrchestrator(
	fast services.FastPlannerInterface,
	deep services.DeepPlannerInterface,
	validator services.PlanValidatorInterface,
	journeys services.JourneyServiceInterface,
	cfg config.Config,
	metrics *telemetry.Metrics,
	log *zap.Logger,
) services.PlanOrchestratorInterface {
	return services.NewPlanOrchestrator(fast, deep, validator, journeys, cfg.Planner.MaxDays, metrics, log.Named("orchestrator"))
}
