package bootstrap

import (
	"context"
	"log"

	"concept-review-be/internal/config"
	"concept-review-be/internal/controller"
	"concept-review-be/internal/handler"
	"concept-review-be/internal/pkg/logger"
	"concept-review-be/internal/repository/memory"
	"concept-review-be/internal/repository/unitofwork"
	"concept-review-be/internal/service"
	"concept-review-be/internal/websocket"
	"concept-review-be/pkg/realtime"
	"concept-review-be/pkg/review/fetcher"
	"concept-review-be/pkg/review/session"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ReviewController controller.IReviewController

	// Background Services (Exposed for main.go to run)
	ThresholdTrigger service.IThresholdTriggerService
	SessionService   service.ISessionService
	ReviewStore      service.IReviewStoreService

	// WebSockets
	WebSocketHandler *handler.WebSocketHandler
	WebSocketHub     *websocket.Hub

	Bus    realtime.Bus
	Logger logger.ILogger

	rdb *redis.Client
}

func SessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		Fetch: fetcher.Config{
			Debounce:        cfg.Review.FetchDebounce,
			LoadingFallback: cfg.Review.LoadingFallback,
			DefaultImageURL: cfg.Review.DefaultImageURL,
			DefaultTitle:    cfg.Review.DefaultTitle,
			DefaultPrompt:   cfg.Review.DefaultPrompt,
		},
		CompletionDelay: cfg.Review.CompletionDelay,
		CountdownTick:   cfg.Review.CountdownTick,
		SafetyTimeout:   cfg.Review.SafetyTimeout,
	}
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	sessionLogger := logger.NewIsolatedLogger(cfg.App.SessionLogFilePath)

	// 2. Change Bus
	bus, err := realtime.NewBus(realtime.Options{
		Driver:   cfg.Realtime.Driver,
		Prefix:   cfg.Realtime.Prefix,
		NatsURL:  cfg.App.NatsURL,
		RedisURL: cfg.App.RedisURL,
	}, sysLogger)
	if err != nil {
		log.Printf("[WARN] Realtime driver %q unavailable: %v. Falling back to in-process bus", cfg.Realtime.Driver, err)
		bus = realtime.NewGoChannelBus(cfg.Realtime.Prefix, sysLogger)
	}
	log.Printf("[INFO] Using realtime driver: %s", cfg.Realtime.Driver)

	// 3. Redis for websocket fan-out across instances
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. WebSocket hub runs standalone", err)
		rdb.Close()
		rdb = nil
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/websocket.log")
	wsHub := websocket.NewHub(rdb, wsLogger)

	// 4. Services
	reviewStore := service.NewReviewStoreService(uowFactory, bus, sysLogger)
	thresholdTrigger := service.NewThresholdTriggerService(reviewStore, bus, sysLogger)
	sessionRepo := memory.NewSessionRepository(cfg.Review.SessionIdleTTL)
	sessionService := service.NewSessionService(
		reviewStore,
		bus,
		sessionRepo,
		wsHub,
		SessionConfig(cfg),
		cfg.Review.UseTestData,
		sessionLogger,
	)

	// 5. Controllers
	reviewController := controller.NewReviewController(sessionService)
	wsHandler := handler.NewWebSocketHandler(wsHub, wsLogger)

	return &Container{
		ReviewController: reviewController,
		ThresholdTrigger: thresholdTrigger,
		SessionService:   sessionService,
		ReviewStore:      reviewStore,
		WebSocketHandler: wsHandler,
		WebSocketHub:     wsHub,
		Bus:              bus,
		Logger:           sysLogger,
		rdb:              rdb,
	}
}

// Close releases everything NewContainer opened. Live sessions go first so
// their subscriptions are gone before the bus closes.
func (c *Container) Close() {
	c.SessionService.Shutdown()
	c.ThresholdTrigger.Stop()
	if err := c.Bus.Close(); err != nil {
		log.Printf("[WARN] Closing realtime bus: %v", err)
	}
	if c.rdb != nil {
		c.rdb.Close()
	}
	c.Logger.Sync()
}
