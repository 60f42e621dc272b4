package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/ragbot/internal/api"
	"github.com/example/ragbot/internal/biz/repo"
	"github.com/example/ragbot/internal/biz/usecase"
	"github.com/example/ragbot/internal/conf"
	"github.com/example/ragbot/internal/data"
	"github.com/example/ragbot/internal/service"
)

// messageStore is what every store backend must provide
type messageStore interface {
	repo.MessageRepo
	repo.ChangeFeedRepo
	io.Closer
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := conf.LoadFromEnv()
	if cfg.Bot.BotUserID == "" {
		log.Fatal("BOT_USER_ID is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer store.Close()

	var engine repo.EngineRepo
	if cfg.Engine.APIKey == "" {
		log.Println("[Engine] No API key set, using mock engine")
		engine = data.NewMockEngine()
	} else {
		engine = data.NewOpenAIEngine(cfg.Engine.APIKey, cfg.Engine.BaseURL, cfg.Engine.Model,
			store, cfg.Bot.HelpChannelID)
	}

	cache := data.NewResponseCache()

	classifier := usecase.NewClassifier(cfg.Bot.InvocationPhrase, cfg.Bot.BotUserID)
	lock := usecase.NewLock(store)
	responder := usecase.NewResponder(store, cfg.Bot.BotUserID)
	answering := usecase.NewAnswering(cache, engine,
		time.Duration(cfg.Cache.TTLSeconds)*time.Second,
		time.Duration(cfg.Bot.GenerationTimeout)*time.Second)
	seen := usecase.NewSeenSet(cfg.Bot.SeenSetCapacity)

	coordinator := service.NewCoordinator(store, classifier, lock, responder, answering, seen,
		cfg.Bot.HelpChannelID, cfg.Bot.MaxContext, cfg.Bot.Workers)

	sweeper := service.NewSweeper(lock, cfg.Bot.HelpChannelID,
		time.Duration(cfg.Bot.StalenessSeconds)*time.Second,
		time.Duration(cfg.Bot.SweepIntervalSec)*time.Second)

	apiServer := api.NewServer(answering, cache, cfg.API.Port)

	if err := coordinator.Start(ctx); err != nil {
		log.Fatalf("Failed to start coordinator: %v", err)
	}
	sweeper.Start(ctx)

	go func() {
		if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API server error: %v", err)
		}
	}()

	fmt.Println("Bot service started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down...")
	cancel()
	coordinator.Stop()
	sweeper.Stop()
	if err := apiServer.Stop(); err != nil {
		log.Printf("API shutdown error: %v", err)
	}
}

func newStore(ctx context.Context, cfg *conf.Config) (messageStore, error) {
	switch cfg.Store.Backend {
	case "firestore":
		if cfg.Store.FirestoreProject == "" {
			return nil, fmt.Errorf("RAGBOT_FIRESTORE_PROJECT is required for the firestore backend")
		}
		log.Printf("[Store] Using Firestore (project=%s)", cfg.Store.FirestoreProject)
		return data.NewFirestoreStore(ctx, cfg.Store.FirestoreProject)
	case "memory":
		log.Println("[Store] Using in-memory store")
		return nopCloser{data.NewMemoryStore()}, nil
	default:
		log.Printf("[Store] Using SQLite (%s)", cfg.Store.SQLitePath)
		return data.NewSQLiteStore(cfg.Store.SQLitePath)
	}
}

type nopCloser struct {
	*data.MemoryStore
}

func (nopCloser) Close() error { return nil }
