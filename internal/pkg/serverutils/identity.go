package serverutils

import (
	"context"
	"sync"

	"concept-review-be/pkg/review"

	"github.com/google/uuid"
)

// TokenIdentity resolves the reviewer from the bearer token of the latest
// request that touched the session. Tokens are re-validated on every call so
// an expired token surfaces as review.ErrAuthRequired.
type TokenIdentity struct {
	mu    sync.RWMutex
	token string
}

func NewTokenIdentity(token string) *TokenIdentity {
	return &TokenIdentity{token: token}
}

func (i *TokenIdentity) SetToken(token string) {
	if token == "" {
		return
	}
	i.mu.Lock()
	i.token = token
	i.mu.Unlock()
}

func (i *TokenIdentity) current() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.token
}

func (i *TokenIdentity) CurrentUser(ctx context.Context) (uuid.UUID, error) {
	userId, err := ParseUserToken(i.current())
	if err != nil {
		return uuid.Nil, review.NewError(review.ErrAuthRequired, "identity.current_user", err)
	}
	return userId, nil
}

func (i *TokenIdentity) Session(ctx context.Context) (*review.AuthSession, error) {
	token := i.current()
	userId, err := ParseUserToken(token)
	if err != nil {
		return nil, review.NewError(review.ErrAuthRequired, "identity.session", err)
	}
	return &review.AuthSession{UserId: userId, Token: token}, nil
}

// Refresh cannot mint tokens; it only reports whether the held token is still usable.
func (i *TokenIdentity) Refresh(ctx context.Context) error {
	if _, err := ParseUserToken(i.current()); err != nil {
		return review.NewError(review.ErrAuthRequired, "identity.refresh", err)
	}
	return nil
}
