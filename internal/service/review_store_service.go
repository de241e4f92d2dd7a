package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"concept-review-be/internal/entity"
	"concept-review-be/internal/pkg/logger"
	"concept-review-be/internal/repository/specification"
	"concept-review-be/internal/repository/unitofwork"
	"concept-review-be/pkg/events"
	"concept-review-be/pkg/realtime"
	"concept-review-be/pkg/review"

	"github.com/google/uuid"
)

var (
	ErrWorkItemNotFound = errors.New("work item not found")
	ErrConceptNotFound  = errors.New("concept not found")
)

// IReviewStoreService is the durable review store. Every committed write is
// published to the change bus as a typed row change.
type IReviewStoreService interface {
	review.Store

	// Pipeline operations, driven by the generation pipeline rather than reviewers.
	SetRegenerating(ctx context.Context, key string, regenerating bool) error
	SetReady(ctx context.Context, key string, ready bool) error
	ReplaceConcepts(ctx context.Context, key string, imageURLs []string) ([]*entity.Concept, error)
	RequestRepair(ctx context.Context, conceptId uuid.UUID) error

	CountCompletions(ctx context.Context, userId uuid.UUID) (int64, error)
}

type reviewStoreService struct {
	uowFactory unitofwork.RepositoryFactory
	publisher  realtime.Publisher
	logger     logger.ILogger
}

func NewReviewStoreService(
	uowFactory unitofwork.RepositoryFactory,
	publisher realtime.Publisher,
	log logger.ILogger,
) IReviewStoreService {
	return &reviewStoreService{
		uowFactory: uowFactory,
		publisher:  publisher,
		logger:     log,
	}
}

// publish runs after commit. A lost event only delays reconciliation, so it never fails the write.
func (s *reviewStoreService) publish(ctx context.Context, changes ...events.Change) {
	if s.publisher == nil {
		return
	}
	for _, c := range changes {
		if err := s.publisher.Publish(ctx, c); err != nil {
			s.logger.Warn("ReviewStore", "Failed to publish change", map[string]interface{}{
				"table": c.Table(),
				"kind":  c.Kind(),
				"error": err.Error(),
			})
		}
	}
}

func (s *reviewStoreService) GetWorkItem(ctx context.Context, key string) (*entity.WorkItem, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.WorkItemRepository().FindOne(ctx, specification.ByWorkItemKey{Key: key})
}

func (s *reviewStoreService) CreateWorkItem(ctx context.Context, item *entity.WorkItem) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.WorkItemRepository().Create(ctx, item); err != nil {
		return err
	}
	s.publish(ctx, events.WorkItemChange{Type: events.Insert, New: events.WorkItemRowFrom(item), At: time.Now()})
	return nil
}

func (s *reviewStoreService) UpdatePrompt(ctx context.Context, key, prompt string) error {
	return s.updateWorkItem(ctx, key, map[string]interface{}{"prompt": prompt})
}

func (s *reviewStoreService) SetRegenerating(ctx context.Context, key string, regenerating bool) error {
	status := entity.ProcessingCompleted
	if regenerating {
		status = entity.ProcessingRunning
	}
	return s.updateWorkItem(ctx, key, map[string]interface{}{
		"regenerating": regenerating,
		"status":       string(status),
	})
}

func (s *reviewStoreService) SetReady(ctx context.Context, key string, ready bool) error {
	return s.updateWorkItem(ctx, key, map[string]interface{}{"ready": ready})
}

// updateWorkItem reads the row before and after the update so the change carries both sides.
func (s *reviewStoreService) updateWorkItem(ctx context.Context, key string, fields map[string]interface{}) error {
	var change events.WorkItemChange
	err := unitofwork.InTransaction(ctx, s.uowFactory, func(uow unitofwork.UnitOfWork) error {
		repo := uow.WorkItemRepository()
		old, err := repo.FindOne(ctx, specification.ByWorkItemKey{Key: key})
		if err != nil {
			return err
		}
		if old == nil {
			return fmt.Errorf("%w: %s", ErrWorkItemNotFound, key)
		}
		if err := repo.UpdateFields(ctx, key, fields); err != nil {
			return err
		}
		updated, err := repo.FindOne(ctx, specification.ByWorkItemKey{Key: key})
		if err != nil {
			return err
		}
		change = events.WorkItemChange{
			Type: events.Update,
			Old:  events.WorkItemRowFrom(old),
			New:  events.WorkItemRowFrom(updated),
			At:   time.Now(),
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, change)
	return nil
}

func (s *reviewStoreService) ListActiveConcepts(ctx context.Context, key string) ([]*entity.Concept, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.ConceptRepository().FindAll(ctx,
		specification.InWorkItem{Key: key},
		specification.ActiveConcepts{},
	)
}

func (s *reviewStoreService) GetConcept(ctx context.Context, id uuid.UUID) (*entity.Concept, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.ConceptRepository().FindOne(ctx, specification.ByID{ID: id})
}

// ReplaceConcepts retires the item's active concepts and inserts a fresh set.
func (s *reviewStoreService) ReplaceConcepts(ctx context.Context, key string, imageURLs []string) ([]*entity.Concept, error) {
	var (
		created []*entity.Concept
		changes []events.Change
	)
	err := unitofwork.InTransaction(ctx, s.uowFactory, func(uow unitofwork.UnitOfWork) error {
		item, err := uow.WorkItemRepository().FindOne(ctx, specification.ByWorkItemKey{Key: key})
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("%w: %s", ErrWorkItemNotFound, key)
		}

		repo := uow.ConceptRepository()
		retired, err := repo.FindAll(ctx, specification.InWorkItem{Key: key}, specification.ActiveConcepts{})
		if err != nil {
			return err
		}
		if err := repo.DeactivateByWorkItem(ctx, key); err != nil {
			return err
		}

		now := time.Now()
		for i, url := range imageURLs {
			created = append(created, &entity.Concept{
				Id:          uuid.New(),
				WorkItemKey: key,
				ImageURL:    url,
				Status:      entity.ConceptActive,
				// Spread creation times so listing order follows input order.
				CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
			})
		}
		if err := repo.CreateBulk(ctx, created); err != nil {
			return err
		}

		for _, old := range retired {
			next := *old
			next.Status = entity.ConceptInactive
			changes = append(changes, events.ConceptChange{
				Type: events.Update,
				Old:  events.ConceptRowFrom(old),
				New:  events.ConceptRowFrom(&next),
				At:   now,
			})
		}
		for _, c := range created {
			changes = append(changes, events.ConceptChange{Type: events.Insert, New: events.ConceptRowFrom(c), At: now})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, changes...)
	return created, nil
}

func (s *reviewStoreService) RequestRepair(ctx context.Context, conceptId uuid.UUID) error {
	var change events.ConceptChange
	err := unitofwork.InTransaction(ctx, s.uowFactory, func(uow unitofwork.UnitOfWork) error {
		repo := uow.ConceptRepository()
		old, err := repo.FindOne(ctx, specification.ByID{ID: conceptId})
		if err != nil {
			return err
		}
		if old == nil {
			return fmt.Errorf("%w: %s", ErrConceptNotFound, conceptId)
		}
		if err := repo.UpdateFields(ctx, conceptId, map[string]interface{}{"repair_requested": true}); err != nil {
			return err
		}
		next := *old
		next.RepairRequested = true
		change = events.ConceptChange{Type: events.Update, Old: events.ConceptRowFrom(old), New: events.ConceptRowFrom(&next), At: time.Now()}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, change)
	return nil
}

func (s *reviewStoreService) ListVotes(ctx context.Context, userId uuid.UUID, key string) ([]*entity.Vote, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.VoteRepository().FindAll(ctx,
		specification.ByUserID{UserID: userId},
		specification.InWorkItem{Key: key},
	)
}

func (s *reviewStoreService) UpsertVote(ctx context.Context, vote *entity.Vote) (entity.VoteKind, error) {
	var (
		change   events.VoteChange
		previous entity.VoteKind
	)
	err := unitofwork.InTransaction(ctx, s.uowFactory, func(uow unitofwork.UnitOfWork) error {
		repo := uow.VoteRepository()
		old, err := repo.FindOne(ctx,
			specification.ByUserID{UserID: vote.UserId},
			specification.ByConceptID{ConceptID: vote.ConceptId},
		)
		if err != nil {
			return err
		}
		if err := repo.Upsert(ctx, vote); err != nil {
			return err
		}
		change = events.VoteChange{Type: events.Insert, New: events.VoteRowFrom(vote), At: time.Now()}
		if old != nil {
			change.Type = events.Update
			change.Old = events.VoteRowFrom(old)
			previous = old.Kind
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	s.publish(ctx, change)
	return previous, nil
}

func (s *reviewStoreService) DeleteVote(ctx context.Context, userId, conceptId uuid.UUID) (bool, error) {
	var old *entity.Vote
	err := unitofwork.InTransaction(ctx, s.uowFactory, func(uow unitofwork.UnitOfWork) error {
		repo := uow.VoteRepository()
		var err error
		old, err = repo.FindOne(ctx,
			specification.ByUserID{UserID: userId},
			specification.ByConceptID{ConceptID: conceptId},
		)
		if err != nil || old == nil {
			return err
		}
		affected, err := repo.Delete(ctx, userId, conceptId)
		if err != nil {
			return err
		}
		if affected == 0 {
			old = nil
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if old == nil {
		return false, nil
	}
	s.publish(ctx, events.VoteChange{Type: events.Delete, Old: events.VoteRowFrom(old), At: time.Now()})
	return true, nil
}

func (s *reviewStoreService) IncrementCounter(ctx context.Context, conceptId uuid.UUID, kind entity.VoteKind) error {
	return s.adjustCounter(ctx, conceptId, kind, 1)
}

func (s *reviewStoreService) DecrementCounter(ctx context.Context, conceptId uuid.UUID, kind entity.VoteKind) error {
	return s.adjustCounter(ctx, conceptId, kind, -1)
}

func (s *reviewStoreService) adjustCounter(ctx context.Context, conceptId uuid.UUID, kind entity.VoteKind, delta int) error {
	if !kind.Valid() {
		return review.ErrInvalidVoteKind
	}
	var change events.ConceptChange
	err := unitofwork.InTransaction(ctx, s.uowFactory, func(uow unitofwork.UnitOfWork) error {
		repo := uow.ConceptRepository()
		old, err := repo.FindOne(ctx, specification.ByID{ID: conceptId})
		if err != nil {
			return err
		}
		if old == nil {
			return fmt.Errorf("%w: %s", ErrConceptNotFound, conceptId)
		}
		if err := repo.AdjustCounter(ctx, conceptId, kind, delta); err != nil {
			return err
		}
		updated, err := repo.FindOne(ctx, specification.ByID{ID: conceptId})
		if err != nil {
			return err
		}
		change = events.ConceptChange{Type: events.Update, Old: events.ConceptRowFrom(old), New: events.ConceptRowFrom(updated), At: time.Now()}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, change)
	return nil
}

func (s *reviewStoreService) UpsertCompletion(ctx context.Context, record *entity.CompletionRecord) (bool, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	created, err := uow.CompletionRecordRepository().Upsert(ctx, record)
	if err != nil {
		return false, err
	}
	if created {
		s.publish(ctx, events.CompletionChange{Type: events.Insert, New: events.CompletionRowFrom(record), At: time.Now()})
	}
	return created, nil
}

func (s *reviewStoreService) SetWinnerIfUnset(ctx context.Context, key string, conceptId uuid.UUID) (bool, error) {
	var (
		claimed bool
		change  events.WorkItemChange
	)
	err := unitofwork.InTransaction(ctx, s.uowFactory, func(uow unitofwork.UnitOfWork) error {
		repo := uow.WorkItemRepository()
		old, err := repo.FindOne(ctx, specification.ByWorkItemKey{Key: key})
		if err != nil {
			return err
		}
		if old == nil {
			return fmt.Errorf("%w: %s", ErrWorkItemNotFound, key)
		}
		claimed, err = repo.SetWinnerIfUnset(ctx, key, conceptId)
		if err != nil || !claimed {
			return err
		}
		updated, err := repo.FindOne(ctx, specification.ByWorkItemKey{Key: key})
		if err != nil {
			return err
		}
		change = events.WorkItemChange{Type: events.Update, Old: events.WorkItemRowFrom(old), New: events.WorkItemRowFrom(updated), At: time.Now()}
		return nil
	})
	if err != nil {
		return false, err
	}
	if claimed {
		s.publish(ctx, change)
	}
	return claimed, nil
}

func (s *reviewStoreService) CountCompletions(ctx context.Context, userId uuid.UUID) (int64, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.CompletionRecordRepository().Count(ctx, specification.ByUserID{UserID: userId})
}
