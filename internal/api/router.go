package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/qs3c/repo_scan_server/config"
	"github.com/qs3c/repo_scan_server/internal/api/handler"
	"github.com/qs3c/repo_scan_server/internal/api/middleware"
)

type Router struct {
	analysisHandler  *handler.AnalysisHandler
	projectHandler   *handler.ProjectHandler
	rulesHandler     *handler.RulesHandler
	websocketHandler *handler.WebSocketHandler
	healthHandler    *handler.HealthHandler
	cfg              *config.Config
	log              *zap.Logger
}

func NewRouter(
	analysisHandler *handler.AnalysisHandler,
	projectHandler *handler.ProjectHandler,
	rulesHandler *handler.RulesHandler,
	websocketHandler *handler.WebSocketHandler,
	healthHandler *handler.HealthHandler,
	cfg *config.Config,
	log *zap.Logger,
) *Router {
	return &Router{
		analysisHandler:  analysisHandler,
		projectHandler:   projectHandler,
		rulesHandler:     rulesHandler,
		websocketHandler: websocketHandler,
		healthHandler:    healthHandler,
		cfg:              cfg,
		log:              log,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(r.log))
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/health", r.healthHandler.Check)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api/v1")
	{
		// browsers cannot set headers on the upgrade request; job ids are random
		api.GET("/ws", r.websocketHandler.Handle)

		authenticated := api.Group("")
		authenticated.Use(middleware.APIKey(r.cfg.Auth.APIKeyHashes))
		{
			analyses := authenticated.Group("/analyses")
			{
				analyses.POST("", r.analysisHandler.Submit)
				analyses.GET("/jobs/:id", r.analysisHandler.GetJob)
			}

			projects := authenticated.Group("/projects")
			{
				projects.GET("/:id", r.projectHandler.Get)
				projects.GET("/:id/log-statements", r.projectHandler.ListLogStatements)
				projects.GET("/:id/findings", r.projectHandler.ListFindings)
				projects.PATCH("/:id/findings/:findingId", r.projectHandler.UpdateFinding)
			}

			authenticated.GET("/rules", r.rulesHandler.List)
		}
	}

	return engine
}
