// Package review holds the collaborators the review session core depends on
// and the error taxonomy it surfaces. The components themselves live in the
// votes, gateway, fetcher, reconciler and session subpackages.
package review

import (
	"context"

	"concept-review-be/internal/entity"
	"concept-review-be/pkg/realtime"

	"github.com/google/uuid"
)

// Identity provides the signed-in reviewer. Implementations return
// ErrAuthRequired when there is no usable session.
type Identity interface {
	CurrentUser(ctx context.Context) (uuid.UUID, error)
	Session(ctx context.Context) (*AuthSession, error)
	Refresh(ctx context.Context) error
}

type AuthSession struct {
	UserId uuid.UUID
	Token  string
}

// Store is the durable backend. Implementations must clamp counters at zero
// and treat a duplicate completion upsert as a no-op.
type Store interface {
	GetWorkItem(ctx context.Context, key string) (*entity.WorkItem, error)
	CreateWorkItem(ctx context.Context, item *entity.WorkItem) error
	UpdatePrompt(ctx context.Context, key, prompt string) error
	ListActiveConcepts(ctx context.Context, key string) ([]*entity.Concept, error)
	GetConcept(ctx context.Context, id uuid.UUID) (*entity.Concept, error)

	ListVotes(ctx context.Context, userId uuid.UUID, key string) ([]*entity.Vote, error)
	// UpsertVote returns the kind the row held before, or "" if it was new.
	UpsertVote(ctx context.Context, vote *entity.Vote) (previous entity.VoteKind, err error)
	// DeleteVote reports whether a row was removed.
	DeleteVote(ctx context.Context, userId, conceptId uuid.UUID) (bool, error)
	IncrementCounter(ctx context.Context, conceptId uuid.UUID, kind entity.VoteKind) error
	DecrementCounter(ctx context.Context, conceptId uuid.UUID, kind entity.VoteKind) error

	UpsertCompletion(ctx context.Context, record *entity.CompletionRecord) (created bool, err error)
	SetWinnerIfUnset(ctx context.Context, key string, conceptId uuid.UUID) (bool, error)
}

// ChangeSource is the realtime side of the backend.
type ChangeSource interface {
	Subscribe(ctx context.Context, sub realtime.Subscription, handler realtime.Handler) (realtime.Unsubscribe, error)
}
