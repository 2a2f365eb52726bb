package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/qs3c/repo_scan_server/config"
	"github.com/qs3c/repo_scan_server/internal/database"
	"github.com/qs3c/repo_scan_server/internal/pkg/logger"
	"github.com/qs3c/repo_scan_server/internal/pkg/oss"
	"github.com/qs3c/repo_scan_server/internal/pkg/pubsub"
	"github.com/qs3c/repo_scan_server/internal/pkg/queue"
	"github.com/qs3c/repo_scan_server/internal/repository"
	"github.com/qs3c/repo_scan_server/internal/worker"
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

	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}

	stores, err := oss.OpenStores(&cfg.Storage, logr)
	if err != nil {
		logr.Fatal("failed to open report storage", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobRepo := repository.NewJobRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	pipeline := worker.NewPipeline(cfg, jobRepo, projectRepo, stores.Primary, pubsub.NewPublisher(rdb), logr)

	if stores.Remote != nil {
		go worker.NewReuploader(projectRepo, stores.Local, stores.Remote, logr).Start(ctx)
	}

	jobQueue := queue.NewQueue(rdb, cfg.Queue.AnalysisQueue, cfg.Queue.MaxLength)

	logr.Info("worker started",
		zap.String("queue", cfg.Queue.AnalysisQueue),
		zap.Int("workers", cfg.Queue.MaxWorkers))

	// returns once ctx is canceled and in-flight jobs have finished
	worker.Consume(ctx, jobQueue, pipeline.Processor, cfg.Queue.MaxWorkers, logr)

	logr.Info("worker shutdown complete")
}
