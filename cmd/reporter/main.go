package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awssqs "github.com/aws/aws-sdk-go/service/sqs"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/DwayneJengSage/Bridge-Reporter/internal/handler"
	"github.com/DwayneJengSage/Bridge-Reporter/internal/repository"
	"github.com/DwayneJengSage/Bridge-Reporter/internal/service"
	"github.com/DwayneJengSage/Bridge-Reporter/pkg/bridge"
	"github.com/DwayneJengSage/Bridge-Reporter/pkg/cache"
	"github.com/DwayneJengSage/Bridge-Reporter/pkg/config"
	"github.com/DwayneJengSage/Bridge-Reporter/pkg/database"
	"github.com/DwayneJengSage/Bridge-Reporter/pkg/jobs"
	"github.com/DwayneJengSage/Bridge-Reporter/pkg/logger"
	"github.com/DwayneJengSage/Bridge-Reporter/pkg/sqs"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to the properties file (default ./"+config.DefaultConfigFile+")")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("reporter failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()
	ops := handler.NewOpsHandler(metrics)

	sess, err := sqs.NewSession(cfg.Queue.Region)
	if err != nil {
		return err
	}
	queue := sqs.NewHelper(awssqs.New(sess), cfg.Queue)

	bridgeClient := bridge.NewClient(cfg.Bridge)
	if err := bridgeClient.SignIn(ctx); err != nil {
		// The client signs in again lazily on its first call.
		logr.Warn("initial bridge sign-in failed", zap.Error(err))
	}

	var cacheRepo service.CacheRepository
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		cacheRepo = repository.NewCacheRepository(client, logger.Named(logr, "cache"))
		ops.AddCheck("redis", func(ctx context.Context) error { return client.Ping(ctx).Err() })
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Redis.StudyCacheTTL, logger.Named(logr, "cache"), cfg.Redis.Enabled)

	var db *sqlx.DB
	if cfg.Archive.Enabled {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()
		ops.AddCheck("postgres", db.PingContext)
	}

	publisher := service.NewReportPublisher(bridgeClient, archiveFor(db), logger.Named(logr, "publisher"))
	directory := service.NewStudyDirectory(bridgeClient, cacheSvc, cfg.Redis.StudyCacheTTL, logger.Named(logr, "studies"))
	callback := service.NewRequestCallback(service.RequestCallbackConfig{
		Registry:         service.NewDefaultGeneratorRegistry(bridgeClient, bridgeClient),
		Studies:          directory,
		Publisher:        publisher,
		Metrics:          metrics,
		StudyConcurrency: cfg.Worker.StudyConcurrency,
		Logger:           logger.Named(logr, "callback"),
	})

	worker := service.NewPollWorker(queue, callback, service.PollWorkerConfig{
		MaxMessages: cfg.Queue.MaxMessages,
		SleepTime:   cfg.Queue.SleepTime,
		Metrics:     metrics,
		Logger:      logger.Named(logr, "poller"),
	})
	pool := jobs.NewPool("report-requests", worker.HandleJob, jobs.PoolConfig{
		Workers:    cfg.Worker.Count,
		BufferSize: cfg.Worker.BufferSize,
		Logger:     logger.Named(logr, "pool"),
	})
	worker.SetPool(pool)

	heartbeat := service.NewHeartbeat(cfg.Heartbeat.Interval, logger.Named(logr, "heartbeat"))
	if err := heartbeat.Start(); err != nil {
		return err
	}
	defer heartbeat.Stop()

	var srv *http.Server
	if cfg.Ops.Enabled {
		if cfg.Env == config.EnvProduction {
			gin.SetMode(gin.ReleaseMode)
		}
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Ops.Port),
			Handler:           handler.NewOpsRouter(ops, metrics, logger.Named(logr, "ops")),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logr.Sugar().Infow("ops server starting", "addr", srv.Addr, "env", cfg.Env)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logr.Error("ops server failed", zap.Error(err))
			}
		}()
	}

	pool.Start(ctx)
	ops.SetPolling(true)
	logr.Sugar().Infow("bridge reporter started",
		"queue", cfg.Queue.URL, "workers", cfg.Worker.Count, "study_concurrency", cfg.Worker.StudyConcurrency)

	runErr := worker.Run(ctx)
	ops.SetPolling(false)

	logr.Info("draining in-flight report requests")
	pool.Stop()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logr.Warn("ops server shutdown", zap.Error(err))
		}
	}
	logr.Info("bridge reporter stopped")
	return runErr
}

// archiveFor keeps a disabled archive a nil interface.
func archiveFor(db *sqlx.DB) service.ReportArchive {
	if db == nil {
		return nil
	}
	return repository.NewReportRepository(db)
}
