package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"imagebot/internal/chat"
	"imagebot/internal/adapter/repo"
	"imagebot/internal/gateway"
	"imagebot/internal/infra"
	"imagebot/internal/queue/rabbitmq"
	"imagebot/internal/secrets"
	"imagebot/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "gateway")

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	secretStore := secrets.NewCached(secrets.NewEnvProvider(), cfg.SecretCacheTTL)

	signingSecret, err := secretStore.Get(ctx, cfg.ChatSigningSecretRef)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve signing secret")
	}
	verifier, err := chat.NewVerifier(signingSecret, chat.DefaultTolerance)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure verifier")
	}

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

	genQueue, err := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.GenerationQueue)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect generation queue")
	}
	defer genQueue.Close()
	actionQueue, err := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.ActionQueue)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect action queue")
	}
	defer actionQueue.Close()
	ideaQueue, err := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.IdeationQueue)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect ideation queue")
	}
	defer ideaQueue.Close()

	app := &gateway.App{
		Verifier:         verifier,
		Requests:         repo.NewRequestRepository(dbpool),
		Images:           repo.NewImageRepository(dbpool),
		Store:            store,
		Signer:           signer,
		GenQueue:         genQueue,
		ActionQueue:      actionQueue,
		IdeaQueue:        ideaQueue,
		AllowedChannelID: cfg.AllowedChannelID,
		Log:              logger,
	}

	server := infra.NewHTTPServer(cfg, gateway.NewRouter(app, cfg.RateLimitPerMin))

	go func() {
		logger.Info().Msgf("gateway listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("gateway stopped")
}
