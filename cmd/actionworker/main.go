package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"imagebot/internal/adapter/repo"
	"imagebot/internal/chat"
	"imagebot/internal/infra"
	"imagebot/internal/queue/rabbitmq"
	"imagebot/internal/secrets"
	"imagebot/internal/storage"
	"imagebot/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "actionworker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	secretStore := secrets.NewCached(secrets.NewEnvProvider(), cfg.SecretCacheTTL)

	presignSecret, err := secretStore.Get(ctx, cfg.PresignSecretRef)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve presign secret")
	}
	signer, err := storage.NewURLSigner(presignSecret, cfg.StorageBaseURL, cfg.CDNBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure url signer")
	}
	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	poster, err := chat.NewClient(chat.ClientOptions{
		BaseURL:     cfg.ChatAPIBaseURL,
		BotTokenRef: cfg.ChatBotTokenRef,
		Secrets:     secretStore,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure chat client")
	}

	genQueue, err := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.GenerationQueue)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect generation queue")
	}
	defer genQueue.Close()

	action := worker.NewAction(
		repo.NewRequestRepository(dbpool),
		repo.NewImageRepository(dbpool),
		store,
		signer,
		poster,
		genQueue,
		logger,
	)

	consumer, err := rabbitmq.NewConsumer(cfg.AMQPURL, cfg.ActionQueue, rabbitmq.ConsumerOptions{
		Concurrency: cfg.ActionConcurrency,
		MaxRetries:  cfg.QueueMaxRetries,
		RetryDelay:  cfg.QueueRetryDelay,
		JobTimeout:  cfg.JobTimeout,
		IsPermanent: worker.IsPermanent,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect queue")
	}
	defer consumer.Close()

	if err := consumer.Run(ctx, action.Handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
	}
	logger.Info().Msg("actionworker stopped")
}
