package main

import (
	"chat-relay/auth"
	grpcserver "chat-relay/infrastructure/grpc/server"
	httpserver "chat-relay/infrastructure/http/server"
	"chat-relay/observability"
	"chat-relay/projection"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"chat-relay/storage"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until a termination signal.
// Returning instead of exiting lets the deferred cleanups run.
func run() error {
	// A missing .env file is fine, the environment may already be set
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blobs, err := storage.NewDiskBlobStore(log, config.MediaDir, config.MediaURLPrefix, config.MaxImageBytes)
	if err != nil {
		return fmt.Errorf("media store: %w", err)
	}

	metrics := observability.NewMetrics()
	issuer := auth.NewTokenIssuer(config.JWTSecret, config.AuthTokenDuration)
	users := repositories.NewUserRepository(db)
	messages := repositories.NewMessageRepository(db, log)

	// Sessions never survive a restart, the registry starts empty
	registry := runtime.NewRegistry(log, metrics)
	summaries := projection.NewSummaryBuilder(messages, users, config.SummaryConcurrency)
	coordinator := runtime.NewCoordinator(log, messages, summaries, blobs, users, registry, metrics)
	chat := services.NewChatService(coordinator, runtime.NewTypingRelay(log, registry, metrics), registry)
	accounts := services.NewAuthService(log, users, issuer)

	server := httpserver.NewServer(log, chat, accounts, issuer, metrics, httpserver.Options{
		MediaDir:             config.MediaDir,
		MediaURLPrefix:       config.MediaURLPrefix,
		HistoryMarksRead:     config.HistoryMarksRead,
		ConnectionBufferSize: config.ConnectionBufferSize,
		WriteTimeout:         config.WriteTimeout,
		PongTimeout:          config.PongTimeout,
		MaxFrameBytes:        config.MaxFrameBytes,
		MaxImageBytes:        config.MaxImageBytes,
		InboundFrameRate:     config.InboundFrameRate,
		InboundFrameBurst:    config.InboundFrameBurst,
		KnownImageRef:        blobs.IsReference,
	})

	health := grpcserver.NewHealthServer(log, fmt.Sprintf("%s:%d", config.Host, config.HealthPort))
	api := workers.NewHTTPServerWorker(log, fmt.Sprintf("%s:%d", config.Host, config.Port), server.Router())
	api.OnListening = func(net.Addr) { health.SetServing(true) }

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervisor := workers.NewSupervisor(log, config.RestartInterval)
	supervisor.Add(api, health, workers.NewTelemetryWorker(log, metrics, config.TelemetryInterval))
	supervisor.Run(ctx)

	registry.Reset()
	log.Info("Program stopped cleanly")
	return nil
}
