package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/emotrace/emotrace-backend/internal/media/consumer"
	"github.com/emotrace/emotrace-backend/pkg/config"
	"github.com/emotrace/emotrace-backend/pkg/logger"
	"github.com/emotrace/emotrace-backend/pkg/pubsub"
	"github.com/emotrace/emotrace-backend/pkg/storage/cloudinary"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "media-cleanup-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "media-cleanup-worker"

	logg = logger.New(logger.Options{
		ServiceName: "media-cleanup-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	storageClient, err := cloudinary.NewClient(ctx, cfg.Storage, logg)
	requireResource(ctx, logg, "object storage", err)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	deletionConsumer, err := consumer.NewDeletionConsumer(
		storageClient,
		pubsubClient.MediaDeletionSubscription(),
		cfg.Cleanup,
		logg,
	)
	requireResource(ctx, logg, "media deletion consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"env":         cfg.App.Env,
	})
	logg.Info(runCtx, "media cleanup worker ready")

	if err := deletionConsumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "media cleanup worker stopped unexpectedly", err)
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
