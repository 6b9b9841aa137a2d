package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/emotrace/emotrace-backend/api/routes"
	"github.com/emotrace/emotrace-backend/internal/auth"
	"github.com/emotrace/emotrace-backend/internal/collections"
	"github.com/emotrace/emotrace-backend/internal/extraction"
	"github.com/emotrace/emotrace-backend/internal/media"
	"github.com/emotrace/emotrace-backend/internal/records"
	"github.com/emotrace/emotrace-backend/internal/upload"
	"github.com/emotrace/emotrace-backend/internal/users"
	"github.com/emotrace/emotrace-backend/pkg/auth/session"
	"github.com/emotrace/emotrace-backend/pkg/config"
	"github.com/emotrace/emotrace-backend/pkg/db"
	"github.com/emotrace/emotrace-backend/pkg/inference"
	"github.com/emotrace/emotrace-backend/pkg/logger"
	"github.com/emotrace/emotrace-backend/pkg/metrics"
	"github.com/emotrace/emotrace-backend/pkg/migrate"
	"github.com/emotrace/emotrace-backend/pkg/pubsub"
	"github.com/emotrace/emotrace-backend/pkg/redis"
	"github.com/emotrace/emotrace-backend/pkg/storage/cloudinary"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		requireResource(ctx, logg, "dev migrations", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	requireResource(ctx, logg, "session manager", err)

	storageClient, err := cloudinary.NewClient(ctx, cfg.Storage, logg)
	requireResource(ctx, logg, "object storage", err)

	inferenceClient, err := inference.NewClient(cfg.AI, redisClient, redisClient.AIProbeKey(), logg)
	requireResource(ctx, logg, "inference client", err)

	registry := prometheus.NewRegistry()
	pipelineMetrics := metrics.NewPipelineMetrics(registry)

	extractor := extraction.NewExtractor(cfg.Upload, logg)

	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)
	mediaRepo := media.NewRepository(gormDB)
	recordsRepo := records.NewRepository(gormDB)
	collectionsRepo := collections.NewRepository(gormDB)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	requireResource(ctx, logg, "auth service", err)

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	requireResource(ctx, logg, "register service", err)

	collectionsService, err := collections.NewService(collections.ServiceParams{
		Repo:    collectionsRepo,
		Records: recordsRepo,
		DB:      dbClient,
	})
	requireResource(ctx, logg, "collections service", err)

	mediaParams := media.ServiceParams{
		Repo:        mediaRepo,
		Collections: collectionsRepo,
		Records:     recordsRepo,
		Assigner:    collectionsService,
		Storage:     storageClient,
		Inference:   inferenceClient,
		Fetcher:     extractor,
		AIConfig:    cfg.AI,
		Metrics:     pipelineMetrics,
		Logger:      logg,
	}
	if cfg.GCP.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		requireResource(ctx, logg, "pubsub", err)
		defer pubsubClient.Close()
		if pub := media.NewEventPublisher(pubsubClient.MediaDeletionPublisher()); pub != nil {
			mediaParams.Publisher = pub
		}
	} else {
		logg.Warn(ctx, "gcp project id not set, media deletes destroy bytes synchronously")
	}

	mediaService, err := media.NewService(mediaParams)
	requireResource(ctx, logg, "media service", err)

	uploadService, err := upload.NewService(upload.ServiceParams{
		Storage:      storageClient,
		Inference:    inferenceClient,
		Extractor:    extractor,
		MediaRepo:    mediaRepo,
		RecordsRepo:  recordsRepo,
		Collections:  collectionsRepo,
		Users:        usersRepo,
		UploadConfig: cfg.Upload,
		AIConfig:     cfg.AI,
		Metrics:      pipelineMetrics,
		Logger:       logg,
	})
	requireResource(ctx, logg, "upload service", err)

	recordsService, err := records.NewService(records.ServiceParams{
		Repo:       recordsRepo,
		Membership: collectionsRepo,
	})
	requireResource(ctx, logg, "records service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	runCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(runCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			Storage:        storageClient,
			SessionChecker: sessionManager,
			AuthService:    authService,
			Register:       registerService,
			Upload:         uploadService,
			Media:          mediaService,
			Records:        recordsService,
			Collections:    collectionsService,
			AIProbe:        inferenceClient,
			Metrics:        registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(runCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
