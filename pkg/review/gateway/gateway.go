// Package gateway is the only path from a review session to vote persistence.
//
// Every operation is a sequence of independent writes (ledger row, aggregate
// counter, optional completion record and winner). Only a failure of the first
// write is reported; later failures leave aggregates drifting, which realtime
// reconciliation tolerates because it re-reads authoritative counters.
package gateway

import (
	"context"
	"time"

	"concept-review-be/internal/entity"
	"concept-review-be/internal/pkg/logger"
	"concept-review-be/pkg/review"
	"concept-review-be/pkg/review/votes"

	"github.com/google/uuid"
)

const module = "VoteGateway"

type Gateway struct {
	store    review.Store
	identity review.Identity
	logger   logger.ILogger
	now      func() time.Time
}

func New(store review.Store, identity review.Identity, log logger.ILogger) *Gateway {
	return &Gateway{
		store:    store,
		identity: identity,
		logger:   log,
		now:      time.Now,
	}
}

func (g *Gateway) user(ctx context.Context, op string) (uuid.UUID, error) {
	if g.identity == nil {
		return uuid.Nil, review.NewError(review.ErrAuthRequired, op, nil)
	}
	userId, err := g.identity.CurrentUser(ctx)
	if err != nil || userId == uuid.Nil {
		return uuid.Nil, review.NewError(review.ErrAuthRequired, op, err)
	}
	return userId, nil
}

// Persist dispatches an optimistic mutation to save, remove or switch.
func (g *Gateway) Persist(ctx context.Context, key string, m votes.Mutation) error {
	switch m.Op() {
	case votes.OpSave:
		return g.Save(ctx, key, m.ConceptId, *m.Next)
	case votes.OpRemove:
		return g.Remove(ctx, key, m.ConceptId, *m.Prev)
	case votes.OpSwitch:
		return g.Switch(ctx, key, m.ConceptId, *m.Next, *m.Prev)
	}
	return nil
}

// Save records a first vote. If a row already existed, counters move from
// the kind it held instead of being incremented twice. A love vote also ends the item for this reviewer
// and claims the winner slot if it is still free.
func (g *Gateway) Save(ctx context.Context, key string, conceptId uuid.UUID, kind entity.VoteKind) error {
	const op = "gateway.save"
	if !kind.Valid() {
		return review.NewError(review.ErrInvalidVoteKind, op, nil)
	}
	userId, err := g.user(ctx, op)
	if err != nil {
		return err
	}

	previous, err := g.store.UpsertVote(ctx, &entity.Vote{
		UserId:      userId,
		ConceptId:   conceptId,
		WorkItemKey: key,
		Kind:        kind,
		CreatedAt:   g.now(),
	})
	if err != nil {
		return review.NewError(review.ErrPersistFailed, op, err)
	}
	g.retally(ctx, op, conceptId, previous, kind)

	if kind == entity.VoteLove {
		g.claimLove(ctx, op, userId, key, conceptId)
	}
	return nil
}

// Remove deletes the vote and decrements the counter for the kind that existed.
// Removing a vote that is not there changes nothing.
func (g *Gateway) Remove(ctx context.Context, key string, conceptId uuid.UUID, prevKind entity.VoteKind) error {
	const op = "gateway.remove"
	if !prevKind.Valid() {
		return review.NewError(review.ErrInvalidVoteKind, op, nil)
	}
	userId, err := g.user(ctx, op)
	if err != nil {
		return err
	}

	deleted, err := g.store.DeleteVote(ctx, userId, conceptId)
	if err != nil {
		return review.NewError(review.ErrPersistFailed, op, err)
	}
	if !deleted {
		g.logger.Debug(module, "Remove found no vote row", map[string]interface{}{"concept_id": conceptId, "item_key": key})
		return nil
	}

	if err := g.store.DecrementCounter(ctx, conceptId, prevKind); err != nil {
		g.partial(op, conceptId, "decrement", err)
	}
	return nil
}

// Switch replaces oldKind with newKind: upsert, decrement old, increment new.
// The decrement follows the kind the row actually held. The writes are not atomic.
func (g *Gateway) Switch(ctx context.Context, key string, conceptId uuid.UUID, newKind, oldKind entity.VoteKind) error {
	const op = "gateway.switch"
	if !newKind.Valid() || !oldKind.Valid() {
		return review.NewError(review.ErrInvalidVoteKind, op, nil)
	}
	if newKind == oldKind {
		return nil
	}
	userId, err := g.user(ctx, op)
	if err != nil {
		return err
	}

	previous, err := g.store.UpsertVote(ctx, &entity.Vote{
		UserId:      userId,
		ConceptId:   conceptId,
		WorkItemKey: key,
		Kind:        newKind,
		CreatedAt:   g.now(),
	})
	if err != nil {
		return review.NewError(review.ErrPersistFailed, op, err)
	}
	g.retally(ctx, op, conceptId, previous, newKind)

	if newKind == entity.VoteLove {
		g.claimLove(ctx, op, userId, key, conceptId)
	}
	return nil
}

// RecordCompletion marks the item finished for the reviewer. Duplicates are no-ops.
func (g *Gateway) RecordCompletion(ctx context.Context, key string) (bool, error) {
	const op = "gateway.complete"
	userId, err := g.user(ctx, op)
	if err != nil {
		return false, err
	}
	created, err := g.store.UpsertCompletion(ctx, &entity.CompletionRecord{
		UserId:      userId,
		WorkItemKey: key,
		CompletedAt: g.now(),
	})
	if err != nil {
		return false, review.NewError(review.ErrPersistFailed, op, err)
	}
	return created, nil
}

// Existing loads the reviewer's persisted votes for the item.
func (g *Gateway) Existing(ctx context.Context, key string) (entity.VotedImages, error) {
	const op = "gateway.existing"
	userId, err := g.user(ctx, op)
	if err != nil {
		return nil, err
	}
	rows, err := g.store.ListVotes(ctx, userId, key)
	if err != nil {
		return nil, review.NewError(review.ErrFetchFailed, op, err)
	}
	out := make(entity.VotedImages, len(rows))
	for _, v := range rows {
		if v.Kind.Valid() {
			out[v.ConceptId] = v.Kind
		}
	}
	return out, nil
}

// retally moves one count from the kind the ledger row held to next.
func (g *Gateway) retally(ctx context.Context, op string, conceptId uuid.UUID, previous, next entity.VoteKind) {
	if previous == next {
		g.logger.Debug(module, "Vote row already held this kind", map[string]interface{}{"op": op, "concept_id": conceptId, "kind": next})
		return
	}
	if previous.Valid() {
		if err := g.store.DecrementCounter(ctx, conceptId, previous); err != nil {
			g.partial(op, conceptId, "decrement", err)
		}
	}
	if err := g.store.IncrementCounter(ctx, conceptId, next); err != nil {
		g.partial(op, conceptId, "increment", err)
	}
}

func (g *Gateway) claimLove(ctx context.Context, op string, userId uuid.UUID, key string, conceptId uuid.UUID) {
	if _, err := g.store.UpsertCompletion(ctx, &entity.CompletionRecord{
		UserId:      userId,
		WorkItemKey: key,
		CompletedAt: g.now(),
	}); err != nil {
		g.partial(op, conceptId, "completion", err)
	}

	claimed, err := g.store.SetWinnerIfUnset(ctx, key, conceptId)
	if err != nil {
		g.partial(op, conceptId, "winner", err)
		return
	}
	if claimed {
		g.logger.Info(module, "Winner assigned by love vote", map[string]interface{}{"item_key": key, "concept_id": conceptId})
	}
}

func (g *Gateway) partial(op string, conceptId uuid.UUID, step string, err error) {
	g.logger.Warn(module, review.ErrPartialAggregate.Error(), map[string]interface{}{
		"op":         op,
		"step":       step,
		"concept_id": conceptId,
		"error":      err.Error(),
	})
}
