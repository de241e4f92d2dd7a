package reviewtest

import (
	"context"
	"sync"

	"concept-review-be/pkg/review"

	"github.com/google/uuid"
)

// Identity is a review.Identity with a fixed user. A nil user means signed out.
type Identity struct {
	mu        sync.Mutex
	userId    uuid.UUID
	refreshes int
}

var _ review.Identity = (*Identity)(nil)

func NewIdentity(userId uuid.UUID) *Identity {
	return &Identity{userId: userId}
}

func (i *Identity) SignIn(userId uuid.UUID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.userId = userId
}

func (i *Identity) SignOut() {
	i.SignIn(uuid.Nil)
}

func (i *Identity) Refreshes() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.refreshes
}

func (i *Identity) CurrentUser(ctx context.Context) (uuid.UUID, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.userId == uuid.Nil {
		return uuid.Nil, review.ErrAuthRequired
	}
	return i.userId, nil
}

func (i *Identity) Session(ctx context.Context) (*review.AuthSession, error) {
	userId, err := i.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return &review.AuthSession{UserId: userId, Token: "test-token"}, nil
}

func (i *Identity) Refresh(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.refreshes++
	return nil
}
