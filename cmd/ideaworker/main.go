package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"imagebot/internal/chat"
	"imagebot/internal/infra"
	"imagebot/internal/providers/ideation"
	"imagebot/internal/queue/rabbitmq"
	"imagebot/internal/secrets"
	"imagebot/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "ideaworker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secretStore := secrets.NewCached(secrets.NewEnvProvider(), cfg.SecretCacheTTL)

	responder, err := ideation.NewGeminiResponder(ideation.GeminiOptions{
		APIKeyRef: cfg.GeminiAPIKeyRef,
		Model:     cfg.GeminiModel,
		BaseURL:   cfg.GeminiBaseURL,
		Secrets:   secretStore,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure ideation provider")
	}

	poster, err := chat.NewClient(chat.ClientOptions{
		BaseURL:     cfg.ChatAPIBaseURL,
		BotTokenRef: cfg.ChatBotTokenRef,
		Secrets:     secretStore,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure chat client")
	}

	svc := worker.NewIdeation(responder, poster, logger)

	consumer, err := rabbitmq.NewConsumer(cfg.AMQPURL, cfg.IdeationQueue, rabbitmq.ConsumerOptions{
		Concurrency: cfg.IdeationConcurrency,
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

	if err := consumer.Run(ctx, svc.Handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
	}
	logger.Info().Msg("ideaworker stopped")
}
