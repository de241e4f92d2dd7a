package service

import (
	"context"
	"testing"
	"time"

	"concept-review-be/internal/entity"
	"concept-review-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTrigger(t *testing.T) (IReviewStoreService, IThresholdTriggerService) {
	t.Helper()
	store, bus := newTestStore(t)
	trigger := NewThresholdTriggerService(store, bus, logger.NewNopLogger())
	require.NoError(t, trigger.Start(context.Background()))
	t.Cleanup(trigger.Stop)
	return store, trigger
}

func TestThresholdTwoLikesClosesItem(t *testing.T) {
	store, _ := startTrigger(t)
	ctx := context.Background()
	concepts := seedItem(t, store, "T0001", 3)

	require.NoError(t, store.IncrementCounter(ctx, concepts[1].Id, entity.VoteLike))
	time.Sleep(30 * time.Millisecond)
	item, err := store.GetWorkItem(ctx, "T0001")
	require.NoError(t, err)
	assert.True(t, item.Ready)
	assert.False(t, item.HasWinner())

	require.NoError(t, store.IncrementCounter(ctx, concepts[1].Id, entity.VoteLike))
	require.Eventually(t, func() bool {
		item, err := store.GetWorkItem(ctx, "T0001")
		return err == nil && !item.Ready && item.HasWinner()
	}, 2*time.Second, 10*time.Millisecond)

	item, err = store.GetWorkItem(ctx, "T0001")
	require.NoError(t, err)
	assert.Equal(t, concepts[1].Id, *item.WinningConceptId)
}

func TestThresholdHeartKeepsFirstWinner(t *testing.T) {
	store, _ := startTrigger(t)
	ctx := context.Background()
	concepts := seedItem(t, store, "T0002", 2)

	claimed, err := store.SetWinnerIfUnset(ctx, "T0002", concepts[0].Id)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, store.IncrementCounter(ctx, concepts[1].Id, entity.VoteLove))
	require.Eventually(t, func() bool {
		item, err := store.GetWorkItem(ctx, "T0002")
		return err == nil && !item.Ready
	}, 2*time.Second, 10*time.Millisecond)

	item, err := store.GetWorkItem(ctx, "T0002")
	require.NoError(t, err)
	assert.Equal(t, concepts[0].Id, *item.WinningConceptId)
}

func TestThresholdIgnoresRetiredConcepts(t *testing.T) {
	store, _ := startTrigger(t)
	ctx := context.Background()
	old := seedItem(t, store, "T0003", 1)
	_, err := store.ReplaceConcepts(ctx, "T0003", []string{"/n.png"})
	require.NoError(t, err)

	require.NoError(t, store.IncrementCounter(ctx, old[0].Id, entity.VoteLove))
	time.Sleep(50 * time.Millisecond)

	item, err := store.GetWorkItem(ctx, "T0003")
	require.NoError(t, err)
	assert.True(t, item.Ready)
	assert.False(t, item.HasWinner())
}

func TestThresholdStopUnsubscribes(t *testing.T) {
	store, trigger := startTrigger(t)
	ctx := context.Background()
	concepts := seedItem(t, store, "T0004", 1)

	trigger.Stop()
	trigger.Stop()
	// Unsubscribing is asynchronous on the in-process bus.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, store.IncrementCounter(ctx, concepts[0].Id, entity.VoteLove))
	time.Sleep(50 * time.Millisecond)

	item, err := store.GetWorkItem(ctx, "T0004")
	require.NoError(t, err)
	assert.True(t, item.Ready)
}
