// Package votes keeps the reviewer's local vote map for one work item and
// applies changes optimistically, ahead of persistence.
package votes

import (
	"sync"

	"concept-review-be/internal/entity"

	"github.com/google/uuid"
)

type Op int

const (
	OpNone Op = iota
	OpSave
	OpRemove
	OpSwitch
)

func (o Op) String() string {
	switch o {
	case OpSave:
		return "save"
	case OpRemove:
		return "remove"
	case OpSwitch:
		return "switch"
	}
	return "none"
}

// Mutation records one entry change. Prev and Next are nil when the entry is absent.
type Mutation struct {
	ConceptId uuid.UUID
	Prev      *entity.VoteKind
	Next      *entity.VoteKind
}

func (m Mutation) Op() Op {
	switch {
	case m.Prev == nil && m.Next == nil:
		return OpNone
	case m.Prev == nil:
		return OpSave
	case m.Next == nil:
		return OpRemove
	case *m.Prev == *m.Next:
		return OpNone
	}
	return OpSwitch
}

// Inverse undoes m when applied.
func (m Mutation) Inverse() Mutation {
	return Mutation{ConceptId: m.ConceptId, Prev: m.Next, Next: m.Prev}
}

type Store struct {
	mu       sync.Mutex
	voted    entity.VotedImages
	concepts map[uuid.UUID]struct{}
}

func New() *Store {
	return &Store{
		voted:    make(entity.VotedImages),
		concepts: make(map[uuid.UUID]struct{}),
	}
}

// Reset starts over for a new work item with the given votable concepts.
func (s *Store) Reset(conceptIds []uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voted = make(entity.VotedImages)
	s.concepts = toSet(conceptIds)
}

// Retain swaps the votable set and drops votes for concepts that are gone.
func (s *Store) Retain(conceptIds []uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.concepts = toSet(conceptIds)
	for id := range s.voted {
		if _, ok := s.concepts[id]; !ok {
			delete(s.voted, id)
		}
	}
}

// Seed loads votes already persisted for this reviewer.
func (s *Store) Seed(existing entity.VotedImages) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, kind := range existing {
		if _, ok := s.concepts[id]; ok {
			s.voted[id] = kind
		}
	}
}

func (s *Store) Knows(conceptId uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.concepts[conceptId]
	return ok
}

// Toggle applies setVote semantics: the same kind twice retracts, anything else sets or switches.
func (s *Store) Toggle(conceptId uuid.UUID, kind entity.VoteKind) Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := Mutation{ConceptId: conceptId, Prev: s.current(conceptId)}
	if m.Prev == nil || *m.Prev != kind {
		k := kind
		m.Next = &k
	}
	s.apply(m)
	return m
}

// Set records kind without toggle semantics.
func (s *Store) Set(conceptId uuid.UUID, kind entity.VoteKind) Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := kind
	m := Mutation{ConceptId: conceptId, Prev: s.current(conceptId), Next: &k}
	s.apply(m)
	return m
}

func (s *Store) Clear(conceptId uuid.UUID) Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := Mutation{ConceptId: conceptId, Prev: s.current(conceptId)}
	s.apply(m)
	return m
}

// Revert undoes m, but only while the entry still holds what m wrote;
// a later mutation on the same concept wins over the rollback.
func (s *Store) Revert(m Mutation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !sameKind(s.current(m.ConceptId), m.Next) {
		return false
	}
	s.apply(m.Inverse())
	return true
}

func (s *Store) Get(conceptId uuid.UUID) (entity.VoteKind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind, ok := s.voted[conceptId]
	return kind, ok
}

func (s *Store) Snapshot() entity.VotedImages {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voted.Clone()
}

// AllVoted is true when every votable concept has an entry. An empty set is never all-voted.
func (s *Store) AllVoted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.concepts) == 0 {
		return false
	}
	for id := range s.concepts {
		if _, ok := s.voted[id]; !ok {
			return false
		}
	}
	return true
}

func (s *Store) current(conceptId uuid.UUID) *entity.VoteKind {
	kind, ok := s.voted[conceptId]
	if !ok {
		return nil
	}
	return &kind
}

func (s *Store) apply(m Mutation) {
	if m.Next == nil {
		delete(s.voted, m.ConceptId)
		return
	}
	s.voted[m.ConceptId] = *m.Next
}

func sameKind(a, b *entity.VoteKind) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func toSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
