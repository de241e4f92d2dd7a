// Package reconciler turns realtime row changes for one work item into
// session signals. Every rule only compares the row it was handed with the
// previous one, so duplicates and any interleaving across streams are safe;
// collapsing the completion signals into one callback is the session's job.
package reconciler

import (
	"context"
	"fmt"
	"sync"

	"concept-review-be/internal/entity"
	"concept-review-be/internal/pkg/logger"
	"concept-review-be/pkg/events"
	"concept-review-be/pkg/realtime"
	"concept-review-be/pkg/review"

	"github.com/google/uuid"
)

const module = "RealtimeReconciler"

type SignalKind int

const (
	RegenerationStarted SignalKind = iota + 1
	RegenerationFinished
	WinnerDecided
	SessionFinished
)

func (k SignalKind) String() string {
	switch k {
	case RegenerationStarted:
		return "regeneration_started"
	case RegenerationFinished:
		return "regeneration_finished"
	case WinnerDecided:
		return "winner_decided"
	case SessionFinished:
		return "session_finished"
	}
	return "unknown"
}

// Reasons carried by SessionFinished.
const (
	ReasonWinner     = "winner_assigned"
	ReasonClosed     = "item_closed"
	ReasonThreshold  = "threshold_crossed"
	ReasonCompletion = "completion_recorded"
)

type Signal struct {
	Kind      SignalKind
	Key       string
	Reason    string
	ConceptId *uuid.UUID
}

type Scope struct {
	Key    string
	UserId uuid.UUID
}

type Reconciler struct {
	source review.ChangeSource
	scope  Scope
	emit   func(Signal)
	logger logger.ILogger

	mu     sync.Mutex
	last   *events.WorkItemRow
	unsubs []realtime.Unsubscribe
	closed bool
}

func New(source review.ChangeSource, scope Scope, emit func(Signal), log logger.ILogger) *Reconciler {
	return &Reconciler{
		source: source,
		scope:  scope,
		emit:   emit,
		logger: log,
	}
}

// Observe sets the baseline work item row used when an update carries no old row.
func (r *Reconciler) Observe(row *events.WorkItemRow) {
	if row == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *row
	r.last = &copied
}

// Start opens the four subscriptions. ctx bounds their lifetime.
func (r *Reconciler) Start(ctx context.Context) error {
	subs := []struct {
		sub     realtime.Subscription
		handler realtime.Handler
	}{
		{
			sub: realtime.Subscription{
				Table:  events.TableWorkItems,
				Filter: realtime.Filter{Column: "item_key", Value: r.scope.Key},
				Kinds:  []events.Kind{events.Update},
			},
			handler: r.onWorkItem,
		},
		{
			sub: realtime.Subscription{
				Table:  events.TableConcepts,
				Filter: realtime.Filter{Column: "work_item_key", Value: r.scope.Key},
				Kinds:  []events.Kind{events.Update},
			},
			handler: r.onConcept,
		},
		{
			sub: realtime.Subscription{
				Table:  events.TableVotes,
				Filter: realtime.Filter{Column: "kind", Value: string(entity.VoteLove)},
				Kinds:  []events.Kind{events.Insert, events.Update},
			},
			handler: r.onVote,
		},
		{
			sub: realtime.Subscription{
				Table:  events.TableCompletions,
				Filter: realtime.Filter{Column: "user_id", Value: r.scope.UserId.String()},
				Kinds:  []events.Kind{events.Insert},
			},
			handler: r.onCompletion,
		},
	}

	for _, s := range subs {
		unsub, err := r.source.Subscribe(ctx, s.sub, s.handler)
		if err != nil {
			r.Close()
			return fmt.Errorf("failed to subscribe to %s: %w", s.sub.Table, err)
		}
		if !r.track(unsub) {
			return nil
		}
	}

	r.logger.Debug(module, "Subscribed", map[string]interface{}{"item_key": r.scope.Key})
	return nil
}

// track keeps unsub for Close, or runs it right away when already closed.
func (r *Reconciler) track(unsub realtime.Unsubscribe) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		unsub()
		return false
	}
	r.unsubs = append(r.unsubs, unsub)
	r.mu.Unlock()
	return true
}

func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	unsubs := r.unsubs
	r.unsubs = nil
	r.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

func (r *Reconciler) active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed
}

func (r *Reconciler) signal(s Signal) {
	if !r.active() {
		return
	}
	s.Key = r.scope.Key
	r.logger.Debug(module, "Signal", map[string]interface{}{"item_key": s.Key, "kind": s.Kind.String(), "reason": s.Reason})
	r.emit(s)
}

func (r *Reconciler) onWorkItem(c events.Change) {
	change, ok := c.(events.WorkItemChange)
	if !ok || change.New == nil {
		return
	}

	r.mu.Lock()
	prev := change.Old
	if prev == nil {
		prev = r.last
	}
	if prev == nil {
		prev = &events.WorkItemRow{Key: change.New.Key}
	}
	next := *change.New
	r.last = &next
	r.mu.Unlock()

	switch {
	case !prev.Regenerating && next.Regenerating:
		r.signal(Signal{Kind: RegenerationStarted})
	case prev.Regenerating && !next.Regenerating:
		r.signal(Signal{Kind: RegenerationFinished})
	}

	if prev.WinningConceptId == nil && next.WinningConceptId != nil {
		r.signal(Signal{Kind: SessionFinished, Reason: ReasonWinner, ConceptId: next.WinningConceptId})
	} else if prev.Ready && !next.Ready && next.WinningConceptId != nil {
		r.signal(Signal{Kind: SessionFinished, Reason: ReasonClosed, ConceptId: next.WinningConceptId})
	}
}

func (r *Reconciler) onConcept(c events.Change) {
	change, ok := c.(events.ConceptChange)
	if !ok || change.New == nil {
		return
	}
	// Retired concepts keep their counters; only live ones decide the item.
	if change.New.Status != string(entity.ConceptActive) {
		return
	}
	if change.New.Hearts >= 1 || change.New.Up >= 2 {
		id := change.New.Id
		r.signal(Signal{Kind: SessionFinished, Reason: ReasonThreshold, ConceptId: &id})
	}
}

// onVote reports love votes on this item from any reviewer. The winner itself
// is assigned by the store, which the work item stream then reports.
func (r *Reconciler) onVote(c events.Change) {
	change, ok := c.(events.VoteChange)
	if !ok || change.New == nil {
		return
	}
	if change.New.WorkItemKey != r.scope.Key || change.New.Kind != string(entity.VoteLove) {
		return
	}
	id := change.New.ConceptId
	r.signal(Signal{Kind: WinnerDecided, ConceptId: &id})
}

func (r *Reconciler) onCompletion(c events.Change) {
	change, ok := c.(events.CompletionChange)
	if !ok || change.New == nil {
		return
	}
	if change.New.WorkItemKey != r.scope.Key || change.New.UserId != r.scope.UserId {
		return
	}
	r.signal(Signal{Kind: SessionFinished, Reason: ReasonCompletion})
}
