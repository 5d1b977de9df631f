package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"vivuplanner/cmd/fx/config_fx"
	"vivuplanner/cmd/fx/controllers_fx"
	"vivuplanner/cmd/fx/db_fx"
	"vivuplanner/cmd/fx/geo_fx"
	"vivuplanner/cmd/fx/journey_fx"
	"vivuplanner/cmd/fx/llm_fx"
	"vivuplanner/cmd/fx/memcache_fx"
	"vivuplanner/cmd/fx/memory_fx"
	"vivuplanner/cmd/fx/planner_fx"
	poisfx "vivuplanner/cmd/fx/pois_fx"
	"vivuplanner/cmd/fx/task_fx"
	"vivuplanner/internal/api/controllers"
	"vivuplanner/internal/config"
	"vivuplanner/internal/telemetry"
	"vivuplanner/pkg/middleware"
)

func main() {
	app := fx.New(
		config_fx.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		db_fx.Module,
		memcache_fx.Module,
		llm_fx.Module,
		poisfx.Module,
		geo_fx.Module,
		journey_fx.Module,
		memory_fx.Module,
		planner_fx.Module,
		task_fx.Module,
		controllers_fx.Module,

		fx.Provide(ProvideRouter),
		fx.Invoke(StartServer),
	)

	app.Run()
}

func StartServer(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: engine,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("starting HTTP server", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("HTTP server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type routerParams struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Metrics *telemetry.Metrics

	Plans    *controllers.PlanController
	Tasks    *controllers.TaskController
	Journeys *controllers.JourneyController
	Pois     *controllers.POIsController
}

func ProvideRouter(p routerParams) (*gin.Engine, error) {
	if p.Config.JWT.Secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if p.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.TraceIDMiddleware())
	r.Use(middleware.RequestLogger(p.Log.Named("http")))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(p.Metrics.Handler()))

	RegisterRoutes(r, []byte(p.Config.JWT.Secret), p)
	return r, nil
}

func RegisterRoutes(r *gin.Engine, secret []byte, p routerParams) {
	auth := r.Group("/", middleware.JWTAuthMiddleware(secret))

	auth.POST("/plans", p.Plans.CreatePlanHandler)

	tasks := auth.Group("/tasks")
	tasks.GET("/:taskId", p.Tasks.GetTaskHandler)
	tasks.POST("/:taskId/cancel", p.Tasks.CancelTaskHandler)

	auth.GET("/journeys/:journeyId", p.Journeys.GetDetailsInfoOfJourneyById)
	auth.GET("/pois", p.Pois.GetPoisByDestination)
}
