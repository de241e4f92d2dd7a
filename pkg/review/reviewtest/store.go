// Package reviewtest provides in-memory collaborators for review session tests.
package reviewtest

import (
	"context"
	"errors"
	"sync"
	"time"

	"concept-review-be/internal/entity"
	"concept-review-be/pkg/events"
	"concept-review-be/pkg/realtime"
	"concept-review-be/pkg/review"

	"github.com/google/uuid"
)

var ErrInjected = errors.New("injected failure")

// Operation names accepted by Store.Fail.
const (
	OpGetWorkItem     = "GetWorkItem"
	OpCreateWorkItem  = "CreateWorkItem"
	OpUpdatePrompt    = "UpdatePrompt"
	OpListConcepts    = "ListActiveConcepts"
	OpListVotes       = "ListVotes"
	OpUpsertVote      = "UpsertVote"
	OpDeleteVote      = "DeleteVote"
	OpIncrement       = "IncrementCounter"
	OpDecrement       = "DecrementCounter"
	OpUpsertComplete  = "UpsertCompletion"
	OpSetWinnerIfNone = "SetWinnerIfUnset"
)

type voteKey struct {
	user    uuid.UUID
	concept uuid.UUID
}

type completionKey struct {
	user uuid.UUID
	key  string
}

// Store is a review.Store kept in maps. When a publisher is attached, every
// write publishes the matching change event, like the real store service.
type Store struct {
	mu          sync.Mutex
	items       map[string]*entity.WorkItem
	concepts    map[uuid.UUID]*entity.Concept
	votes       map[voteKey]*entity.Vote
	completions map[completionKey]*entity.CompletionRecord
	failures    map[string]error
	calls       map[string]int
	holds       map[string]chan struct{}
	readDelay   time.Duration
	publisher   realtime.Publisher
}

var _ review.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		items:       make(map[string]*entity.WorkItem),
		concepts:    make(map[uuid.UUID]*entity.Concept),
		votes:       make(map[voteKey]*entity.Vote),
		completions: make(map[completionKey]*entity.CompletionRecord),
		failures:    make(map[string]error),
		calls:       make(map[string]int),
		holds:       make(map[string]chan struct{}),
	}
}

func (s *Store) WithPublisher(p realtime.Publisher) *Store {
	s.publisher = p
	return s
}

// WithReadDelay slows GetWorkItem down so overlapping fetches can be observed.
func (s *Store) WithReadDelay(d time.Duration) *Store {
	s.mu.Lock()
	s.readDelay = d
	s.mu.Unlock()
	return s
}

// Fail makes op return err until Recover is called.
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	s.failures[op] = err
}

func (s *Store) Recover(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, op)
}

// Hold parks the next call to op until release is called. The held call has
// already been counted by Calls, so tests can wait for it to be in flight.
func (s *Store) Hold(op string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.holds[op] = gate
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Calls returns how many times op was invoked, failed calls included.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// AddWorkItem seeds an item with ready concepts and returns the concept ids.
func (s *Store) AddWorkItem(key string, conceptCount int) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = &entity.WorkItem{
		Key:              key,
		Title:            "Item " + key,
		OriginalImageURL: "https://cdn.example.com/" + key + "/original.png",
		Prompt:           "initial prompt",
		Status:           entity.ProcessingCompleted,
		Ready:            true,
		CreatedAt:        time.Now(),
	}
	ids := make([]uuid.UUID, conceptCount)
	for i := range ids {
		id := uuid.New()
		ids[i] = id
		s.concepts[id] = &entity.Concept{
			Id:          id,
			WorkItemKey: key,
			ImageURL:    "https://cdn.example.com/" + key + "/" + id.String() + ".png",
			Status:      entity.ConceptActive,
			CreatedAt:   time.Now().Add(time.Duration(i) * time.Millisecond),
		}
	}
	return ids
}

func (s *Store) WorkItem(key string) *entity.WorkItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	if !ok {
		return nil
	}
	copied := *item
	return &copied
}

func (s *Store) Concept(id uuid.UUID) *entity.Concept {
	s.mu.Lock()
	defer s.mu.Unlock()
	concept, ok := s.concepts[id]
	if !ok {
		return nil
	}
	copied := *concept
	return &copied
}

func (s *Store) HasVote(userId, conceptId uuid.UUID) (entity.VoteKind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.votes[voteKey{userId, conceptId}]
	if !ok {
		return "", false
	}
	return v.Kind, true
}

func (s *Store) CompletionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completions)
}

// UpdateWorkItem mutates an item the way the external pipeline would and
// publishes the change.
func (s *Store) UpdateWorkItem(ctx context.Context, key string, fn func(*entity.WorkItem)) {
	s.mu.Lock()
	item, ok := s.items[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	old := events.WorkItemRowFrom(item)
	fn(item)
	change := events.WorkItemChange{Type: events.Update, Old: old, New: events.WorkItemRowFrom(item), At: time.Now()}
	s.mu.Unlock()
	s.publish(ctx, change)
}

// ReplaceConcepts deactivates the item's concepts and adds count new ones.
func (s *Store) ReplaceConcepts(key string, count int) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.concepts {
		if c.WorkItemKey == key {
			c.Status = entity.ConceptInactive
		}
	}
	ids := make([]uuid.UUID, count)
	for i := range ids {
		id := uuid.New()
		ids[i] = id
		s.concepts[id] = &entity.Concept{Id: id, WorkItemKey: key, Status: entity.ConceptActive, CreatedAt: time.Now()}
	}
	return ids
}

func (s *Store) enter(op string) error {
	s.mu.Lock()
	s.calls[op]++
	gate := s.holds[op]
	delete(s.holds, op)
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[op]
}

func (s *Store) publish(ctx context.Context, c events.Change) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(ctx, c)
}

func (s *Store) GetWorkItem(ctx context.Context, key string) (*entity.WorkItem, error) {
	if err := s.enter(OpGetWorkItem); err != nil {
		return nil, err
	}
	s.mu.Lock()
	delay := s.readDelay
	s.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.WorkItem(key), nil
}

func (s *Store) CreateWorkItem(ctx context.Context, item *entity.WorkItem) error {
	if err := s.enter(OpCreateWorkItem); err != nil {
		return err
	}
	s.mu.Lock()
	if _, ok := s.items[item.Key]; ok {
		s.mu.Unlock()
		return errors.New("duplicate key")
	}
	copied := *item
	s.items[item.Key] = &copied
	s.mu.Unlock()
	s.publish(ctx, events.WorkItemChange{Type: events.Insert, New: events.WorkItemRowFrom(&copied), At: time.Now()})
	return nil
}

func (s *Store) UpdatePrompt(ctx context.Context, key, prompt string) error {
	if err := s.enter(OpUpdatePrompt); err != nil {
		return err
	}
	s.UpdateWorkItem(ctx, key, func(w *entity.WorkItem) { w.Prompt = prompt })
	return nil
}

func (s *Store) ListActiveConcepts(ctx context.Context, key string) ([]*entity.Concept, error) {
	if err := s.enter(OpListConcepts); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Concept
	for _, c := range s.concepts {
		if c.WorkItemKey == key && c.IsActive() {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *Store) GetConcept(ctx context.Context, id uuid.UUID) (*entity.Concept, error) {
	return s.Concept(id), nil
}

func (s *Store) ListVotes(ctx context.Context, userId uuid.UUID, key string) ([]*entity.Vote, error) {
	if err := s.enter(OpListVotes); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Vote
	for k, v := range s.votes {
		if k.user == userId && v.WorkItemKey == key {
			copied := *v
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *Store) UpsertVote(ctx context.Context, vote *entity.Vote) (entity.VoteKind, error) {
	if err := s.enter(OpUpsertVote); err != nil {
		return "", err
	}
	s.mu.Lock()
	k := voteKey{vote.UserId, vote.ConceptId}
	prev, existed := s.votes[k]
	copied := *vote
	s.votes[k] = &copied
	change := events.VoteChange{Type: events.Insert, New: events.VoteRowFrom(&copied), At: time.Now()}
	var previous entity.VoteKind
	if existed {
		change.Type = events.Update
		change.Old = events.VoteRowFrom(prev)
		previous = prev.Kind
	}
	s.mu.Unlock()
	s.publish(ctx, change)
	return previous, nil
}

func (s *Store) DeleteVote(ctx context.Context, userId, conceptId uuid.UUID) (bool, error) {
	if err := s.enter(OpDeleteVote); err != nil {
		return false, err
	}
	s.mu.Lock()
	k := voteKey{userId, conceptId}
	prev, ok := s.votes[k]
	delete(s.votes, k)
	s.mu.Unlock()
	if ok {
		s.publish(ctx, events.VoteChange{Type: events.Delete, Old: events.VoteRowFrom(prev), At: time.Now()})
	}
	return ok, nil
}

func (s *Store) IncrementCounter(ctx context.Context, conceptId uuid.UUID, kind entity.VoteKind) error {
	if err := s.enter(OpIncrement); err != nil {
		return err
	}
	return s.adjust(ctx, conceptId, kind, 1)
}

func (s *Store) DecrementCounter(ctx context.Context, conceptId uuid.UUID, kind entity.VoteKind) error {
	if err := s.enter(OpDecrement); err != nil {
		return err
	}
	return s.adjust(ctx, conceptId, kind, -1)
}

func (s *Store) adjust(ctx context.Context, conceptId uuid.UUID, kind entity.VoteKind, delta int) error {
	s.mu.Lock()
	c, ok := s.concepts[conceptId]
	if !ok {
		s.mu.Unlock()
		return errors.New("concept not found")
	}
	old := events.ConceptRowFrom(c)
	var counter *int
	switch kind {
	case entity.VoteLike:
		counter = &c.Up
	case entity.VoteDislike:
		counter = &c.Down
	case entity.VoteLove:
		counter = &c.Hearts
	default:
		s.mu.Unlock()
		return errors.New("invalid vote kind")
	}
	*counter += delta
	if *counter < 0 {
		*counter = 0
	}
	change := events.ConceptChange{Type: events.Update, Old: old, New: events.ConceptRowFrom(c), At: time.Now()}
	s.mu.Unlock()
	s.publish(ctx, change)
	return nil
}

func (s *Store) UpsertCompletion(ctx context.Context, record *entity.CompletionRecord) (bool, error) {
	if err := s.enter(OpUpsertComplete); err != nil {
		return false, err
	}
	s.mu.Lock()
	k := completionKey{record.UserId, record.WorkItemKey}
	if _, ok := s.completions[k]; ok {
		s.mu.Unlock()
		return false, nil
	}
	copied := *record
	s.completions[k] = &copied
	s.mu.Unlock()
	s.publish(ctx, events.CompletionChange{Type: events.Insert, New: events.CompletionRowFrom(&copied), At: time.Now()})
	return true, nil
}

func (s *Store) SetWinnerIfUnset(ctx context.Context, key string, conceptId uuid.UUID) (bool, error) {
	if err := s.enter(OpSetWinnerIfNone); err != nil {
		return false, err
	}
	s.mu.Lock()
	item, ok := s.items[key]
	if !ok || item.WinningConceptId != nil {
		s.mu.Unlock()
		return false, nil
	}
	old := events.WorkItemRowFrom(item)
	id := conceptId
	item.WinningConceptId = &id
	change := events.WorkItemChange{Type: events.Update, Old: old, New: events.WorkItemRowFrom(item), At: time.Now()}
	s.mu.Unlock()
	s.publish(ctx, change)
	return true, nil
}
