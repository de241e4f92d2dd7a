// Package session drives one reviewer's voting session for one work item at a
// time: loading, voting with optimistic updates, regeneration and completion.
//
// All state lives behind a single mutex. Guards are set before any I/O starts
// and every asynchronous result (fetch, persistence, realtime signal, timer)
// carries the mount epoch it was issued for; results from an older epoch are
// dropped on arrival.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"concept-review-be/internal/entity"
	"concept-review-be/internal/pkg/logger"
	"concept-review-be/pkg/events"
	"concept-review-be/pkg/review"
	"concept-review-be/pkg/review/fetcher"
	"concept-review-be/pkg/review/gateway"
	"concept-review-be/pkg/review/reconciler"
	"concept-review-be/pkg/review/votes"

	"github.com/google/uuid"
)

const module = "SessionController"

var ErrClosed = errors.New("session controller closed")

type Config struct {
	Fetch fetcher.Config
	// CompletionDelay is how long Finished is displayed before the completion callback fires.
	CompletionDelay time.Duration
	CountdownTick   time.Duration
	// SafetyTimeout forces Regenerating back to Voting when no finish signal arrives.
	SafetyTimeout time.Duration
}

type Deps struct {
	Store    review.Store
	Identity review.Identity
	Changes  review.ChangeSource
	Logger   logger.ILogger
}

type Callbacks struct {
	OnChange    func(Snapshot)
	OnCompleted func(key string)
}

type Controller struct {
	store    review.Store
	identity review.Identity
	changes  review.ChangeSource
	logger   logger.ILogger
	cfg      Config
	cb       Callbacks
	votes    *votes.Store
	gateway  *gateway.Gateway

	ctx    context.Context
	cancel context.CancelFunc
	dirty  chan struct{}

	mu         sync.Mutex
	closed     bool
	epoch      uint64
	key        string
	testData   bool
	userId     uuid.UUID
	state      State
	err        error
	fetch      *fetcher.Controller
	recon      *reconciler.Reconciler
	original   *fetcher.Artifact
	concepts   []*entity.Concept
	prompt     string
	winner     *uuid.UUID
	completed  bool
	refetching bool
	countdown  int
	// inflight holds the tail of each concept's persistence chain.
	inflight map[uuid.UUID]chan struct{}

	safetyTimer     *time.Timer
	completionTimer *time.Timer
	stopCountdown   chan struct{}
}

func New(deps Deps, cfg Config, cb Callbacks) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	log := deps.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	c := &Controller{
		store:    deps.Store,
		identity: deps.Identity,
		changes:  deps.Changes,
		logger:   log,
		cfg:      cfg,
		cb:       cb,
		votes:    votes.New(),
		gateway:  gateway.New(deps.Store, deps.Identity, log),
		ctx:      ctx,
		cancel:   cancel,
		dirty:    make(chan struct{}, 1),
		state:    StateLoading,
		inflight: make(map[uuid.UUID]chan struct{}),
	}
	go c.notifier()
	return c
}

// Mount starts a session for key, tearing down whatever was mounted before.
func (c *Controller) Mount(ctx context.Context, key string, useTestData bool) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return review.NewError(review.ErrInvalidKey, "mount", nil)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	stale := c.teardownLocked()
	c.epoch++
	ep := c.epoch
	c.key = key
	c.testData = useTestData
	c.userId = uuid.Nil
	c.state = StateLoading
	c.err = nil
	c.original = nil
	c.concepts = nil
	c.prompt = ""
	c.winner = nil
	c.completed = false
	c.refetching = false
	c.countdown = 0
	c.fetch = fetcher.New(c.store, c.cfg.Fetch, c.logger)
	f := c.fetch
	c.votes.Reset(nil)
	c.notifyLocked()
	c.mu.Unlock()

	if stale != nil {
		stale.Close()
	}

	c.logger.Info(module, "Session mounted", map[string]interface{}{"item_key": key, "test_data": useTestData})

	if !useTestData {
		if err := c.resolveUser(ctx, ep, false); err != nil {
			return err
		}
	}
	return c.load(ctx, ep, f, key, useTestData, false)
}

// Retry re-enters Loading from Error. In any other state it does nothing.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateError {
		c.mu.Unlock()
		return nil
	}
	ep := c.epoch
	f := c.fetch
	key := c.key
	testData := c.testData
	needUser := !testData && c.userId == uuid.Nil
	c.state = StateLoading
	c.err = nil
	c.notifyLocked()
	c.mu.Unlock()

	if needUser {
		if err := c.resolveUser(ctx, ep, true); err != nil {
			return err
		}
	}
	return c.load(ctx, ep, f, key, testData, true)
}

// SetVote applies toggle semantics locally, persists the change and rolls it
// back if persistence fails. Writes for the same concept reach the store in
// the order the toggles were applied.
func (c *Controller) SetVote(ctx context.Context, conceptId uuid.UUID, kind entity.VoteKind) error {
	const op = "set_vote"
	if !kind.Valid() {
		return review.NewError(review.ErrInvalidVoteKind, op, nil)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if err := c.acceptingVotesLocked(op); err != nil {
		c.mu.Unlock()
		return err
	}
	if !c.votes.Knows(conceptId) {
		c.mu.Unlock()
		return review.NewError(review.ErrUnknownConcept, op, nil)
	}
	m := c.votes.Toggle(conceptId, kind)
	ep := c.epoch
	key := c.key
	testData := c.testData
	c.notifyLocked()
	if testData {
		c.afterVoteLocked(ep, m)
		c.mu.Unlock()
		return nil
	}
	prev := c.inflight[conceptId]
	done := make(chan struct{})
	c.inflight[conceptId] = done
	c.mu.Unlock()

	if prev != nil {
		<-prev
	}
	err := c.gateway.Persist(ctx, key, m)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[conceptId] == done {
		delete(c.inflight, conceptId)
	}
	close(done)
	if ep != c.epoch {
		return err
	}
	if err != nil {
		c.votes.Revert(m)
		c.notifyLocked()
		c.logger.Warn(module, "Vote rolled back", map[string]interface{}{
			"item_key":   key,
			"concept_id": conceptId,
			"op":         m.Op().String(),
			"error":      err.Error(),
		})
		return err
	}
	c.afterVoteLocked(ep, m)
	return nil
}

// EditPrompt stores a new prompt for the work item.
func (c *Controller) EditPrompt(ctx context.Context, prompt string) error {
	const op = "edit_prompt"
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return review.NewError(review.ErrInvalidPrompt, op, nil)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateLoading || c.state == StateError {
		c.mu.Unlock()
		return review.NewError(review.ErrNotVoting, op, nil)
	}
	ep := c.epoch
	key := c.key
	if c.testData {
		c.prompt = prompt
		c.notifyLocked()
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.store.UpdatePrompt(ctx, key, prompt); err != nil {
		return review.NewError(review.ErrPersistFailed, op, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ep == c.epoch {
		c.prompt = prompt
		c.notifyLocked()
	}
	return nil
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) Key() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

// Close unsubscribes, clears every timer and stops notifications. It is final.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.epoch++
	stale := c.teardownLocked()
	c.mu.Unlock()

	if stale != nil {
		stale.Close()
	}
	c.cancel()
}

func (c *Controller) resolveUser(ctx context.Context, ep uint64, refresh bool) error {
	const op = "identity"
	var (
		userId uuid.UUID
		err    error
	)
	if c.identity == nil {
		err = review.NewError(review.ErrAuthRequired, op, nil)
	} else {
		if refresh {
			if rerr := c.identity.Refresh(ctx); rerr != nil {
				c.logger.Debug(module, "Identity refresh failed", map[string]interface{}{"error": rerr.Error()})
			}
		}
		userId, err = c.identity.CurrentUser(ctx)
		if err == nil && userId == uuid.Nil {
			err = review.NewError(review.ErrAuthRequired, op, nil)
		} else if err != nil && !errors.Is(err, review.ErrAuthRequired) {
			err = review.NewError(review.ErrAuthRequired, op, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ep != c.epoch {
		return nil
	}
	if err != nil {
		c.failLocked(err)
		return err
	}
	c.userId = userId
	return nil
}

// load runs one fetch for epoch ep and applies its result if ep is still current.
// force bypasses the fetch debounce and keeps votes on concepts that survive.
func (c *Controller) load(ctx context.Context, ep uint64, f *fetcher.Controller, key string, testData, force bool) error {
	var (
		res *fetcher.Result
		err error
	)
	if force {
		res, err = f.Refetch(ctx, key, testData)
	} else {
		res, err = f.Fetch(ctx, key, testData)
	}
	if errors.Is(err, review.ErrFetchSkipped) {
		// The fetch already running applies its own result.
		c.mu.Lock()
		if ep == c.epoch {
			c.refetching = false
		}
		c.mu.Unlock()
		return nil
	}

	var existing entity.VotedImages
	if err == nil && !testData {
		var exErr error
		existing, exErr = c.gateway.Existing(ctx, key)
		if exErr != nil {
			c.logger.Warn(module, "Could not load existing votes", map[string]interface{}{"item_key": key, "error": exErr.Error()})
		}
	}

	c.mu.Lock()
	if ep != c.epoch || res != nil && res.Key != c.key {
		c.mu.Unlock()
		c.logger.Debug(module, "Discarding stale fetch result", map[string]interface{}{"item_key": key})
		return nil
	}
	c.refetching = false
	if err != nil {
		c.failLocked(err)
		c.mu.Unlock()
		return err
	}

	c.applyLocked(ep, res, existing, force)
	var recon *reconciler.Reconciler
	if c.recon == nil && !testData && c.changes != nil {
		recon = reconciler.New(c.changes, reconciler.Scope{Key: key, UserId: c.userId}, func(s reconciler.Signal) {
			c.handleSignal(ep, s)
		}, c.logger)
		c.recon = recon
	}
	if c.recon != nil {
		c.recon.Observe(events.WorkItemRowFrom(res.WorkItem))
	}
	c.mu.Unlock()

	if recon != nil {
		if err := recon.Start(c.ctx); err != nil {
			// Voting still works without realtime; only remote signals are lost.
			c.logger.Warn(module, "Realtime subscription failed", map[string]interface{}{"item_key": key, "error": err.Error()})
		}
	}
	return nil
}

func (c *Controller) applyLocked(ep uint64, res *fetcher.Result, existing entity.VotedImages, keepVotes bool) {
	item := res.WorkItem
	original := res.Original
	c.original = &original
	c.concepts = res.Concepts
	c.prompt = item.Prompt
	if item.WinningConceptId != nil {
		winner := *item.WinningConceptId
		c.winner = &winner
	}
	c.err = nil

	ids := make([]uuid.UUID, len(res.Concepts))
	for i, concept := range res.Concepts {
		ids[i] = concept.Id
	}
	if keepVotes {
		c.votes.Retain(ids)
	} else {
		c.votes.Reset(ids)
	}
	if existing != nil {
		c.votes.Seed(existing)
	}

	switch {
	case c.state == StateFinished:
	case item.Regenerating:
		c.state = StateRegenerating
		c.armSafetyLocked(ep)
	default:
		c.state = StateVoting
		c.stopSafetyLocked()
	}
	c.notifyLocked()

	if c.state == StateVoting && c.votes.AllVoted() {
		c.finishLocked(ep, "all_voted", !c.testData)
	}
}

func (c *Controller) failLocked(err error) {
	c.state = StateError
	c.err = err
	c.notifyLocked()
	c.logger.Warn(module, "Session error", map[string]interface{}{"item_key": c.key, "code": review.Code(err), "error": err.Error()})
}

func (c *Controller) acceptingVotesLocked(op string) error {
	switch c.state {
	case StateVoting:
		return nil
	case StateRegenerating:
		return review.NewError(review.ErrRegenerating, op, nil)
	case StateFinished:
		return review.NewError(review.ErrSessionFinished, op, nil)
	}
	return review.NewError(review.ErrNotVoting, op, nil)
}

// afterVoteLocked checks the two local completion rules once a vote has stuck.
func (c *Controller) afterVoteLocked(ep uint64, m votes.Mutation) {
	if c.state != StateVoting {
		return
	}
	if m.Next != nil && *m.Next == entity.VoteLove {
		// The gateway already wrote the completion record for a love vote.
		c.finishLocked(ep, "love", false)
		return
	}
	if c.votes.AllVoted() {
		c.finishLocked(ep, "all_voted", !c.testData)
	}
}

func (c *Controller) handleSignal(ep uint64, s reconciler.Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ep != c.epoch || c.closed || s.Key != c.key {
		return
	}

	switch s.Kind {
	case reconciler.RegenerationStarted:
		if c.state != StateVoting {
			return
		}
		c.state = StateRegenerating
		c.armSafetyLocked(ep)
		c.notifyLocked()
		c.logger.Info(module, "Regeneration started", map[string]interface{}{"item_key": c.key})

	case reconciler.RegenerationFinished:
		if c.state != StateVoting && c.state != StateRegenerating {
			return
		}
		if c.refetching {
			return
		}
		c.refetching = true
		c.stopSafetyLocked()
		f := c.fetch
		key := c.key
		testData := c.testData
		go func() {
			if err := c.load(c.ctx, ep, f, key, testData, true); err != nil {
				c.logger.Warn(module, "Refetch after regeneration failed", map[string]interface{}{"error": err.Error()})
			}
		}()

	case reconciler.WinnerDecided:
		if s.ConceptId == nil || c.winner != nil {
			return
		}
		winner := *s.ConceptId
		c.winner = &winner
		c.notifyLocked()

	case reconciler.SessionFinished:
		if s.ConceptId != nil && c.winner == nil {
			winner := *s.ConceptId
			c.winner = &winner
		}
		c.finishLocked(ep, s.Reason, false)
	}
}

// finishLocked is the single completion latch: the first caller per mount
// moves to Finished and schedules the callback; later callers do nothing.
func (c *Controller) finishLocked(ep uint64, reason string, record bool) {
	if c.completed {
		return
	}
	c.completed = true
	c.state = StateFinished
	c.stopSafetyLocked()
	c.countdown = c.ticksLocked()
	c.notifyLocked()

	c.logger.Info(module, "Session finished", map[string]interface{}{"item_key": c.key, "reason": reason})

	c.completionTimer = time.AfterFunc(c.cfg.CompletionDelay, func() {
		c.fireCompleted(ep)
	})
	c.startCountdownLocked(ep)

	if record {
		key := c.key
		go func() {
			if _, err := c.gateway.RecordCompletion(c.ctx, key); err != nil {
				c.logger.Warn(module, "Completion record failed", map[string]interface{}{"item_key": key, "error": err.Error()})
			}
		}()
	}
}

func (c *Controller) fireCompleted(ep uint64) {
	c.mu.Lock()
	if ep != c.epoch || c.closed {
		c.mu.Unlock()
		return
	}
	c.countdown = 0
	c.stopCountdownLocked()
	c.completionTimer = nil
	key := c.key
	onCompleted := c.cb.OnCompleted
	c.notifyLocked()
	c.mu.Unlock()

	if onCompleted != nil {
		onCompleted(key)
	}
}

func (c *Controller) ticksLocked() int {
	if c.cfg.CountdownTick <= 0 {
		return 0
	}
	ticks := int(c.cfg.CompletionDelay / c.cfg.CountdownTick)
	if c.cfg.CompletionDelay%c.cfg.CountdownTick != 0 {
		ticks++
	}
	return ticks
}

func (c *Controller) startCountdownLocked(ep uint64) {
	if c.cfg.CountdownTick <= 0 || c.countdown == 0 {
		return
	}
	stop := make(chan struct{})
	c.stopCountdown = stop
	ticker := time.NewTicker(c.cfg.CountdownTick)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.mu.Lock()
				if ep != c.epoch || c.countdown == 0 {
					c.mu.Unlock()
					return
				}
				c.countdown--
				c.notifyLocked()
				c.mu.Unlock()
			}
		}
	}()
}

func (c *Controller) stopCountdownLocked() {
	if c.stopCountdown != nil {
		close(c.stopCountdown)
		c.stopCountdown = nil
	}
}

func (c *Controller) armSafetyLocked(ep uint64) {
	c.stopSafetyLocked()
	if c.cfg.SafetyTimeout <= 0 {
		return
	}
	c.safetyTimer = time.AfterFunc(c.cfg.SafetyTimeout, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if ep != c.epoch || c.state != StateRegenerating {
			return
		}
		c.safetyTimer = nil
		c.state = StateVoting
		c.notifyLocked()
		c.logger.Warn(module, "Regeneration timed out, resuming voting", map[string]interface{}{"item_key": c.key})
	})
}

func (c *Controller) stopSafetyLocked() {
	if c.safetyTimer != nil {
		c.safetyTimer.Stop()
		c.safetyTimer = nil
	}
}

// teardownLocked clears timers and hands back the reconciler, which the
// caller closes after releasing the lock.
func (c *Controller) teardownLocked() *reconciler.Reconciler {
	c.stopSafetyLocked()
	c.stopCountdownLocked()
	if c.completionTimer != nil {
		c.completionTimer.Stop()
		c.completionTimer = nil
	}
	recon := c.recon
	c.recon = nil
	return recon
}

func (c *Controller) notifyLocked() {
	select {
	case c.dirty <- struct{}{}:
	default:
	}
}

// notifier delivers the latest snapshot outside the lock. Bursts of changes
// coalesce into one delivery.
func (c *Controller) notifier() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.dirty:
			if c.cb.OnChange != nil {
				c.cb.OnChange(c.Snapshot())
			}
		}
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		WorkItemKey:   c.key,
		State:         c.state,
		VotedImages:   c.votes.Snapshot(),
		PromptText:    c.prompt,
		Countdown:     c.countdown,
		TestData:      c.testData,
		ConceptImages: make([]ConceptImage, 0, len(c.concepts)),
	}
	if c.original != nil {
		original := *c.original
		snap.OriginalImage = &original
	}
	for _, concept := range c.concepts {
		snap.ConceptImages = append(snap.ConceptImages, ConceptImage{
			Id:       concept.Id,
			ImageURL: concept.ImageURL,
			Up:       concept.Up,
			Down:     concept.Down,
			Hearts:   concept.Hearts,
		})
	}
	if c.winner != nil {
		winner := *c.winner
		snap.Winner = &winner
	}
	if c.err != nil {
		snap.Error = c.err.Error()
		snap.ErrorCode = review.Code(c.err)
	}
	return snap
}
