package service

import (
	"context"
	"sync"

	"concept-review-be/internal/entity"
	"concept-review-be/internal/pkg/logger"
	"concept-review-be/pkg/events"
	"concept-review-be/pkg/realtime"
	"concept-review-be/pkg/review"
)

// IThresholdTriggerService closes a work item once a concept's aggregates decide it:
// one heart or two likes. It assigns the winner (first one wins) and clears
// the ready flag so every open session moves on.
type IThresholdTriggerService interface {
	Start(ctx context.Context) error
	Stop()
}

type thresholdTriggerService struct {
	store   IReviewStoreService
	changes review.ChangeSource
	logger  logger.ILogger

	mu    sync.Mutex
	unsub realtime.Unsubscribe
}

func NewThresholdTriggerService(
	store IReviewStoreService,
	changes review.ChangeSource,
	log logger.ILogger,
) IThresholdTriggerService {
	return &thresholdTriggerService{
		store:   store,
		changes: changes,
		logger:  log,
	}
}

func (t *thresholdTriggerService) Start(ctx context.Context) error {
	unsub, err := t.changes.Subscribe(ctx, realtime.Subscription{
		Table: events.TableConcepts,
		Kinds: []events.Kind{events.Update},
	}, func(c events.Change) {
		t.handle(ctx, c)
	})
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.unsub = unsub
	t.mu.Unlock()
	t.logger.Info("ThresholdTrigger", "Listening for concept updates", nil)
	return nil
}

func (t *thresholdTriggerService) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unsub != nil {
		t.unsub()
		t.unsub = nil
	}
}

func (t *thresholdTriggerService) handle(ctx context.Context, c events.Change) {
	change, ok := c.(events.ConceptChange)
	if !ok || change.New == nil {
		return
	}
	row := change.New
	concept := &entity.Concept{Up: row.Up, Hearts: row.Hearts, Status: entity.ConceptStatus(row.Status)}
	if !concept.IsActive() || !concept.CrossedThreshold() {
		return
	}

	details := map[string]interface{}{"item_key": row.WorkItemKey, "concept_id": row.Id}

	claimed, err := t.store.SetWinnerIfUnset(ctx, row.WorkItemKey, row.Id)
	if err != nil {
		details["error"] = err.Error()
		t.logger.Error("ThresholdTrigger", "Failed to assign winner", details)
		return
	}
	if claimed {
		t.logger.Info("ThresholdTrigger", "Winner assigned by threshold", details)
	}

	item, err := t.store.GetWorkItem(ctx, row.WorkItemKey)
	if err != nil || item == nil || !item.Ready {
		return
	}
	if err := t.store.SetReady(ctx, row.WorkItemKey, false); err != nil {
		details["error"] = err.Error()
		t.logger.Error("ThresholdTrigger", "Failed to close work item", details)
		return
	}
	t.logger.Info("ThresholdTrigger", "Work item closed", details)
}
