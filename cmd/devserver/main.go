package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	domainchat "studenthelper/internal/domain/chat"
	domainuser "studenthelper/internal/domain/user"
	"studenthelper/internal/infra/broker/kafka"
	"studenthelper/internal/infra/config"
	mongodb "studenthelper/internal/infra/db/mongo"
	ginserver "studenthelper/internal/infra/http/gin"
	"studenthelper/internal/infra/obs"
	"studenthelper/internal/infra/security"
	"studenthelper/internal/infra/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	stores, cleanup, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("storage init failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	events, closeEvents := buildEvents(cfg, logger)
	defer closeEvents()

	tokens := security.JWTManager{Secret: []byte(cfg.JWTSecret), TTL: cfg.TokenTTL}
	handlers := ginserver.Handlers{
		Auth: &ginserver.AuthHandler{
			Users:  stores.users,
			Hasher: security.BcryptHasher{},
			Tokens: tokens,
			Logger: logger,
		},
		Message: &ginserver.MessageHandler{
			Store:  stores.messages,
			Users:  stores.users,
			Events: events,
			Logger: logger,
		},
		AuthMiddleware: ginserver.Authenticator{Tokens: tokens}.Middleware(),
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: stores.ready,
	}, handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", stores.kind)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type storeSet struct {
	kind     string
	users    domainuser.Repository
	messages domainchat.MessageStore
	ready    func() error
}

// buildStores picks MongoDB when MONGO_URI is set and falls back to the
// in-memory stores otherwise.
func buildStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (storeSet, func(), error) {
	if cfg.MongoURI == "" {
		return storeSet{
			kind:     "memory",
			users:    memory.NewUserRepository(),
			messages: memory.NewMessageStore(),
			ready:    func() error { return nil },
		}, func() {}, nil
	}

	client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return storeSet{}, nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer closeCancel()
		_ = client.Close(closeCtx)
		return storeSet{}, nil, err
	}

	messages := mongodb.NewMessageStore(client)
	cleanup := func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := client.Close(closeCtx); err != nil {
			logger.Error("mongo close failed", "error", err)
		}
	}
	return storeSet{
		kind:     "mongo",
		users:    mongodb.NewUserRepository(client, messages),
		messages: messages,
		ready: func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		},
	}, cleanup, nil
}

// buildEvents wires the Kafka producer when brokers are configured. A nil
// MessageEvents is safe to call, so the handler needs no special case.
func buildEvents(cfg config.Config, logger *slog.Logger) (*kafka.MessageEvents, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, func() {}
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
	if err != nil {
		logger.Warn("kafka unavailable, events disabled", "error", err)
		return nil, func() {}
	}
	events := &kafka.MessageEvents{
		Producer:    producer,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Logger:      logger,
	}
	return events, func() {
		if err := producer.Close(); err != nil {
			logger.Error("kafka close failed", "error", err)
		}
	}
}
