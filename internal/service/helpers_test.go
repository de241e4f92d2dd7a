package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"concept-review-be/internal/entity"
	"concept-review-be/internal/pkg/logger"
	"concept-review-be/internal/repository/unitofwork"
	"concept-review-be/pkg/database"
	"concept-review-be/pkg/events"
	"concept-review-be/pkg/realtime"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.NewSQLiteDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestStore(t *testing.T) (IReviewStoreService, *realtime.GoChannelBus) {
	t.Helper()
	bus := realtime.NewGoChannelBus("test", logger.NewNopLogger())
	t.Cleanup(func() { bus.Close() })
	store := NewReviewStoreService(unitofwork.NewRepositoryFactory(newTestDB(t)), bus, logger.NewNopLogger())
	return store, bus
}

// seedItem creates a ready work item with n active concepts.
func seedItem(t *testing.T, store IReviewStoreService, key string, n int) []*entity.Concept {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateWorkItem(ctx, &entity.WorkItem{
		Key:              key,
		Title:            "Water bottle",
		OriginalImageURL: "/img/original.png",
		Prompt:           "studio shot",
		Status:           entity.ProcessingCompleted,
		Ready:            true,
	}))
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("/img/%s-%d.png", key, i)
	}
	concepts, err := store.ReplaceConcepts(ctx, key, urls)
	require.NoError(t, err)
	return concepts
}

type recorder struct {
	mu      sync.Mutex
	changes []events.Change
}

func record(t *testing.T, bus realtime.Bus, table events.Table) *recorder {
	t.Helper()
	r := &recorder{}
	unsub, err := bus.Subscribe(context.Background(), realtime.Subscription{Table: table}, func(c events.Change) {
		r.mu.Lock()
		r.changes = append(r.changes, c)
		r.mu.Unlock()
	})
	require.NoError(t, err)
	t.Cleanup(unsub)
	return r
}

func (r *recorder) all() []events.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Change(nil), r.changes...)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}
