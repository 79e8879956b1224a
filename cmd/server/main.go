package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ogurasousui/employer-onboarding/internal/adapters/http/handler"
	"github.com/ogurasousui/employer-onboarding/internal/adapters/identity/auth0"
	"github.com/ogurasousui/employer-onboarding/internal/adapters/messaging/amqp"
	"github.com/ogurasousui/employer-onboarding/internal/adapters/repository/postgres"
	"github.com/ogurasousui/employer-onboarding/internal/core/employer"
	"github.com/ogurasousui/employer-onboarding/internal/platform/cache"
	"github.com/ogurasousui/employer-onboarding/internal/platform/config"
	pg "github.com/ogurasousui/employer-onboarding/internal/platform/db/postgres"
	"github.com/ogurasousui/employer-onboarding/internal/platform/logger"
	"github.com/ogurasousui/employer-onboarding/internal/platform/metrics"
	"github.com/ogurasousui/employer-onboarding/internal/platform/otel"
	"github.com/ogurasousui/employer-onboarding/internal/platform/server"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to load .env: %v", err)
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.Log.Env,
		Level:       cfg.Log.Level,
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     version,
	})
	defer func() { _ = logger.Sync() }()
	lg := logger.L()

	shutdownTracing, err := otel.Setup(ctx, cfg.Telemetry, version)
	if err != nil {
		lg.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			lg.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	dbPool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		lg.Fatal("failed to initialize database pool", zap.Error(err))
	}
	defer dbPool.Close()

	tokenCache, err := cache.New(cfg.Cache)
	if err != nil {
		lg.Fatal("failed to initialize cache", zap.Error(err))
	}
	defer func() { _ = tokenCache.Close() }()

	m := metrics.New()
	opts := []employer.Option{
		employer.WithTransactionManager(pg.NewTransactionManager(dbPool)),
		employer.WithRecorder(m),
		employer.WithLogger(logger.Named("employer")),
		employer.WithCompensation(cfg.Identity.Compensate),
	}

	if cfg.Messaging.Enabled {
		publisher, err := amqp.Dial(cfg.Messaging)
		if err != nil {
			lg.Fatal("failed to connect message broker", zap.Error(err))
		}
		defer func() { _ = publisher.Close() }()
		opts = append(opts, employer.WithPublisher(publisher))
	}

	provider := auth0.New(cfg.Identity, tokenCache)
	svc := employer.NewService(
		postgres.NewUnitOfWorkFactory(dbPool),
		postgres.NewEmployerRepository(dbPool),
		provider,
		opts...,
	)

	h, err := handler.New(svc, cfg.Auth,
		handler.WithMetrics(m),
		handler.WithHealthCheck(func(ctx context.Context) error {
			return pg.PingWithTimeout(ctx, dbPool, cfg.Server.ReadTimeout)
		}),
	)
	if err != nil {
		lg.Fatal("failed to initialize HTTP handler", zap.Error(err))
	}

	httpServer := server.NewHTTP(cfg.Server, h.Routes())
	grpcServer := server.New(cfg.Server.GRPCAddr, dbPool, cfg.Server.HealthInterval, logger.Named("grpc"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("HTTP server listening", zap.String("addr", cfg.Server.HTTPAddr))
		return httpServer.Run(gctx)
	})
	g.Go(func() error {
		lg.Info("gRPC health server listening", zap.String("addr", cfg.Server.GRPCAddr))
		return grpcServer.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		lg.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	lg.Info("server stopped")
}
