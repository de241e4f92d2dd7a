package bootstrap

import (
	"concept-review-be/internal/config"
	"concept-review-be/internal/pkg/logger"
	"concept-review-be/internal/repository/unitofwork"
	"concept-review-be/internal/service"
	"concept-review-be/pkg/database"
	"concept-review-be/pkg/realtime"
)

// NewToolStore wires the review store for command line tools. Writes reach
// running servers only when the realtime driver is shared (nats or redis).
func NewToolStore(cfg *config.Config) (service.IReviewStoreService, func(), error) {
	db, err := database.Open(cfg.Database.Driver, cfg.Database.Connection, database.PoolConfig{MaxOpenConns: 5, MaxIdleConns: 1})
	if err != nil {
		return nil, nil, err
	}

	log := logger.NewNopLogger()
	bus, err := realtime.NewBus(realtime.Options{
		Driver:   cfg.Realtime.Driver,
		Prefix:   cfg.Realtime.Prefix,
		NatsURL:  cfg.App.NatsURL,
		RedisURL: cfg.App.RedisURL,
	}, log)
	if err != nil {
		return nil, nil, err
	}

	store := service.NewReviewStoreService(unitofwork.NewRepositoryFactory(db), bus, log)
	cleanup := func() {
		bus.Close()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	return store, cleanup, nil
}
