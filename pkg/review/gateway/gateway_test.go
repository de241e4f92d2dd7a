package gateway

import (
	"context"
	"errors"
	"testing"

	"concept-review-be/internal/entity"
	"concept-review-be/internal/pkg/logger"
	"concept-review-be/pkg/review"
	"concept-review-be/pkg/review/reviewtest"
	"concept-review-be/pkg/review/votes"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Gateway, *reviewtest.Store, uuid.UUID, []uuid.UUID) {
	t.Helper()
	store := reviewtest.NewStore()
	ids := store.AddWorkItem("B0TEST", 3)
	userId := uuid.New()
	g := New(store, reviewtest.NewIdentity(userId), logger.NewNopLogger())
	return g, store, userId, ids
}

func TestSaveIncrementsCounter(t *testing.T) {
	g, store, userId, ids := setup(t)
	ctx := context.Background()

	require.NoError(t, g.Save(ctx, "B0TEST", ids[0], entity.VoteLike))

	kind, ok := store.HasVote(userId, ids[0])
	assert.True(t, ok)
	assert.Equal(t, entity.VoteLike, kind)
	assert.Equal(t, 1, store.Concept(ids[0]).Up)
	assert.Nil(t, store.WorkItem("B0TEST").WinningConceptId)
	assert.Equal(t, 0, store.CompletionCount())
}

func TestSaveLoveRecordsCompletionAndWinner(t *testing.T) {
	g, store, _, ids := setup(t)
	ctx := context.Background()

	require.NoError(t, g.Save(ctx, "B0TEST", ids[1], entity.VoteLove))

	assert.Equal(t, 1, store.Concept(ids[1]).Hearts)
	assert.Equal(t, 1, store.CompletionCount())
	require.NotNil(t, store.WorkItem("B0TEST").WinningConceptId)
	assert.Equal(t, ids[1], *store.WorkItem("B0TEST").WinningConceptId)
}

func TestFirstLoveWins(t *testing.T) {
	store := reviewtest.NewStore()
	ids := store.AddWorkItem("B0TEST", 2)
	ctx := context.Background()

	first := New(store, reviewtest.NewIdentity(uuid.New()), logger.NewNopLogger())
	second := New(store, reviewtest.NewIdentity(uuid.New()), logger.NewNopLogger())

	require.NoError(t, first.Save(ctx, "B0TEST", ids[0], entity.VoteLove))
	require.NoError(t, second.Save(ctx, "B0TEST", ids[1], entity.VoteLove))

	assert.Equal(t, ids[0], *store.WorkItem("B0TEST").WinningConceptId)
	assert.Equal(t, 2, store.CompletionCount())
}

func TestSwitchRoundTripRestoresCounters(t *testing.T) {
	g, store, _, ids := setup(t)
	ctx := context.Background()

	require.NoError(t, g.Save(ctx, "B0TEST", ids[0], entity.VoteLike))
	before := *store.Concept(ids[0])

	require.NoError(t, g.Switch(ctx, "B0TEST", ids[0], entity.VoteDislike, entity.VoteLike))
	mid := store.Concept(ids[0])
	assert.Equal(t, 0, mid.Up)
	assert.Equal(t, 1, mid.Down)

	require.NoError(t, g.Switch(ctx, "B0TEST", ids[0], entity.VoteLike, entity.VoteDislike))
	after := store.Concept(ids[0])
	assert.Equal(t, before.Up, after.Up)
	assert.Equal(t, before.Down, after.Down)
	assert.Equal(t, before.Hearts, after.Hearts)
}

func TestRemoveWithoutVoteIsNoop(t *testing.T) {
	g, store, _, ids := setup(t)

	err := g.Remove(context.Background(), "B0TEST", ids[0], entity.VoteLike)

	assert.NoError(t, err)
	assert.Equal(t, 0, store.Calls(reviewtest.OpDecrement))
	assert.Equal(t, 0, store.Concept(ids[0]).Up)
}

func TestRemoveDecrementsPriorKind(t *testing.T) {
	g, store, userId, ids := setup(t)
	ctx := context.Background()
	require.NoError(t, g.Save(ctx, "B0TEST", ids[2], entity.VoteDislike))

	require.NoError(t, g.Remove(ctx, "B0TEST", ids[2], entity.VoteDislike))

	_, ok := store.HasVote(userId, ids[2])
	assert.False(t, ok)
	assert.Equal(t, 0, store.Concept(ids[2]).Down)
}

func TestCountersNeverGoNegative(t *testing.T) {
	g, store, _, ids := setup(t)
	ctx := context.Background()

	// A switch away from a kind that has no row only counts the new kind.
	require.NoError(t, g.Switch(ctx, "B0TEST", ids[0], entity.VoteLike, entity.VoteDislike))

	c := store.Concept(ids[0])
	assert.Equal(t, 0, c.Down)
	assert.Equal(t, 1, c.Up)
	assert.Equal(t, 0, store.Calls(reviewtest.OpDecrement))

	require.NoError(t, store.DecrementCounter(ctx, ids[1], entity.VoteLike))
	assert.Equal(t, 0, store.Concept(ids[1]).Up)
}

func TestSaveOverSameKindCountsOnce(t *testing.T) {
	g, store, userId, ids := setup(t)
	ctx := context.Background()

	require.NoError(t, g.Save(ctx, "B0TEST", ids[0], entity.VoteLike))
	require.NoError(t, g.Save(ctx, "B0TEST", ids[0], entity.VoteLike))

	kind, ok := store.HasVote(userId, ids[0])
	require.True(t, ok)
	assert.Equal(t, entity.VoteLike, kind)
	assert.Equal(t, 1, store.Concept(ids[0]).Up)
	assert.Equal(t, 1, store.Calls(reviewtest.OpIncrement))
}

func TestSaveOverOtherKindMovesCount(t *testing.T) {
	g, store, _, ids := setup(t)
	ctx := context.Background()

	require.NoError(t, g.Save(ctx, "B0TEST", ids[0], entity.VoteDislike))
	require.NoError(t, g.Save(ctx, "B0TEST", ids[0], entity.VoteLike))

	c := store.Concept(ids[0])
	assert.Equal(t, 1, c.Up)
	assert.Equal(t, 0, c.Down)
}

func TestSwitchFollowsStoredKind(t *testing.T) {
	g, store, _, ids := setup(t)
	ctx := context.Background()
	require.NoError(t, g.Save(ctx, "B0TEST", ids[0], entity.VoteLove))

	// The caller believes the row holds a like; the store says love.
	require.NoError(t, g.Switch(ctx, "B0TEST", ids[0], entity.VoteDislike, entity.VoteLike))

	c := store.Concept(ids[0])
	assert.Equal(t, 0, c.Hearts)
	assert.Equal(t, 0, c.Up)
	assert.Equal(t, 1, c.Down)
}

func TestAuthRequired(t *testing.T) {
	store := reviewtest.NewStore()
	ids := store.AddWorkItem("B0TEST", 1)
	g := New(store, reviewtest.NewIdentity(uuid.Nil), logger.NewNopLogger())

	err := g.Save(context.Background(), "B0TEST", ids[0], entity.VoteLike)

	assert.True(t, errors.Is(err, review.ErrAuthRequired))
	assert.Equal(t, 0, store.Calls(reviewtest.OpUpsertVote))
}

func TestPersistFailedOnFirstWrite(t *testing.T) {
	g, store, _, ids := setup(t)
	store.Fail(reviewtest.OpUpsertVote, nil)

	err := g.Save(context.Background(), "B0TEST", ids[0], entity.VoteLike)

	assert.True(t, errors.Is(err, review.ErrPersistFailed))
	assert.True(t, errors.Is(err, reviewtest.ErrInjected))
	assert.Equal(t, 0, store.Concept(ids[0]).Up)
}

func TestPartialAggregateIsNotSurfaced(t *testing.T) {
	g, store, userId, ids := setup(t)
	store.Fail(reviewtest.OpIncrement, nil)

	err := g.Save(context.Background(), "B0TEST", ids[0], entity.VoteLike)

	assert.NoError(t, err)
	_, ok := store.HasVote(userId, ids[0])
	assert.True(t, ok)
	assert.Equal(t, 0, store.Concept(ids[0]).Up)
}

func TestPersistDispatchesByOp(t *testing.T) {
	g, store, userId, ids := setup(t)
	ctx := context.Background()
	local := votes.New()
	local.Reset(ids)

	require.NoError(t, g.Persist(ctx, "B0TEST", local.Toggle(ids[0], entity.VoteLike)))
	require.NoError(t, g.Persist(ctx, "B0TEST", local.Toggle(ids[0], entity.VoteDislike)))
	kind, _ := store.HasVote(userId, ids[0])
	assert.Equal(t, entity.VoteDislike, kind)

	require.NoError(t, g.Persist(ctx, "B0TEST", local.Toggle(ids[0], entity.VoteDislike)))
	_, ok := store.HasVote(userId, ids[0])
	assert.False(t, ok)
	c := store.Concept(ids[0])
	assert.Equal(t, 0, c.Up)
	assert.Equal(t, 0, c.Down)
}

func TestExistingAndRecordCompletion(t *testing.T) {
	g, _, _, ids := setup(t)
	ctx := context.Background()
	require.NoError(t, g.Save(ctx, "B0TEST", ids[0], entity.VoteLike))

	existing, err := g.Existing(ctx, "B0TEST")
	require.NoError(t, err)
	assert.Equal(t, entity.VotedImages{ids[0]: entity.VoteLike}, existing)

	created, err := g.RecordCompletion(ctx, "B0TEST")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = g.RecordCompletion(ctx, "B0TEST")
	require.NoError(t, err)
	assert.False(t, created, "duplicate completion is a no-op")
}
