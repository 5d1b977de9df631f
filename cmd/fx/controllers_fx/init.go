package controllers_fx

import (
	"go.uber.org/fx"
	"vivuplanner/internal/api/controllers"
)

var Module = fx.Options(
	fx.Provide(controllers.NewPlanController),
	fx.Provide(controllers.NewTaskController),
	fx.Provide(controllers.NewJourneyController),
	fx.Provide(controllers.NewPOIsController))
