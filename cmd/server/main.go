package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/repo_scan_server/config"
	"github.com/qs3c/repo_scan_server/internal/api"
	"github.com/qs3c/repo_scan_server/internal/api/handler"
	"github.com/qs3c/repo_scan_server/internal/database"
	"github.com/qs3c/repo_scan_server/internal/pkg/cron"
	"github.com/qs3c/repo_scan_server/internal/pkg/logger"
	"github.com/qs3c/repo_scan_server/internal/pkg/oss"
	"github.com/qs3c/repo_scan_server/internal/pkg/pubsub"
	"github.com/qs3c/repo_scan_server/internal/pkg/queue"
	"github.com/qs3c/repo_scan_server/internal/pkg/ws"
	"github.com/qs3c/repo_scan_server/internal/repository"
	"github.com/qs3c/repo_scan_server/internal/service"
	"github.com/qs3c/repo_scan_server/internal/worker"
)

const (
	shutdownTimeout = 10 * time.Second
	drainTimeout    = 30 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logr, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logr.Sync()

	db, err := database.Open(&cfg.Database)
	if err != nil {
		logr.Fatal("failed to open database", zap.Error(err))
	}
	logr.Info("database connected", zap.String("driver", cfg.Database.Driver))

	stores, err := oss.OpenStores(&cfg.Storage, logr)
	if err != nil {
		logr.Fatal("failed to open report storage", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobRepo := repository.NewJobRepository(db)
	projectRepo := repository.NewProjectRepository(db)

	hub := ws.NewHub(logr)
	pipeline := worker.NewPipeline(cfg, jobRepo, projectRepo, stores.Primary, hub, logr)

	var (
		dispatcher service.Dispatcher
		pool       *worker.Pool
	)
	switch cfg.Queue.Mode {
	case "redis":
		rdb, err := database.NewRedis(&cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		dispatcher = queue.NewQueue(rdb, cfg.Queue.AnalysisQueue, cfg.Queue.MaxLength)

		// progress from standalone workers arrives over pub/sub
		go func() {
			err := pubsub.NewSubscriber(rdb).Subscribe(ctx, func(msg *pubsub.ProgressMessage) {
				if err := hub.PublishProgress(ctx, msg); err != nil {
					logr.Warn("failed to forward progress", zap.String("job_id", msg.JobID), zap.Error(err))
				}
			})
			if err != nil && ctx.Err() == nil {
				logr.Error("progress subscription ended", zap.Error(err))
			}
		}()
		logr.Info("jobs dispatched to redis", zap.String("queue", cfg.Queue.AnalysisQueue))
	default:
		pool = worker.NewPool(pipeline.Processor, cfg.Queue.MaxWorkers, cfg.Queue.Buffer, logr)
		pool.Start()
		dispatcher = pool
	}

	if stores.Remote != nil {
		go worker.NewReuploader(projectRepo, stores.Local, stores.Remote, logr).Start(ctx)
	}

	cronService := cron.NewService(pipeline.Workspace, jobRepo, projectRepo, stores.Primary, cfg.Cleanup, logr)
	cronService.Start()
	defer cronService.Stop()

	jobService := service.NewJobService(jobRepo, dispatcher, logr)
	projectService := service.NewProjectService(projectRepo, logr)

	router := api.NewRouter(
		handler.NewAnalysisHandler(jobService, logr),
		handler.NewProjectHandler(projectService, logr),
		handler.NewRulesHandler(pipeline.Classifier),
		handler.NewWebSocketHandler(hub, jobService, cfg.CORS.AllowedOrigins, logr),
		handler.NewHealthHandler(jobService, hub, logr),
		cfg,
		logr,
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router.Setup(),
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("queue_mode", cfg.Queue.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown incomplete", zap.Error(err))
	}

	if pool != nil {
		pool.Stop(drainTimeout)
	}
	logr.Info("server stopped")
}
