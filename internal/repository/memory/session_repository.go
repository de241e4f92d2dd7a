package memory

import (
	"time"

	"concept-review-be/pkg/review/session"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// TokenHolder receives the bearer token of every request that touches a session.
type TokenHolder interface {
	SetToken(token string)
}

// SessionEntry is one live session: the controller and the identity it resolves users through.
type SessionEntry struct {
	UserId     uuid.UUID
	Controller *session.Controller
	Tokens     TokenHolder
}

// SessionRepository keeps live session controllers per (user, work item).
// Idle entries expire after the TTL and are closed on eviction.
type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	c := cache.New(ttl, ttl/3)
	c.OnEvicted(func(_ string, v interface{}) {
		if entry, ok := v.(*SessionEntry); ok {
			entry.Controller.Close()
		}
	})
	return &SessionRepository{
		cache: c,
	}
}

func SessionKey(userId uuid.UUID, itemKey string) string {
	return userId.String() + ":" + itemKey
}

// Add stores entry only if the slot is free. Otherwise it returns the live
// entry and false; the caller owns the entry it tried to add.
func (r *SessionRepository) Add(itemKey string, entry *SessionEntry) (*SessionEntry, bool) {
	id := SessionKey(entry.UserId, itemKey)
	for {
		if err := r.cache.Add(id, entry, cache.DefaultExpiration); err == nil {
			return entry, true
		}
		if x, found := r.cache.Get(id); found {
			return x.(*SessionEntry), false
		}
		// Expired or deleted between Add and Get.
	}
}

// Get returns the entry and extends its idle TTL.
func (r *SessionRepository) Get(userId uuid.UUID, itemKey string) (*SessionEntry, bool) {
	id := SessionKey(userId, itemKey)
	if x, found := r.cache.Get(id); found {
		r.cache.Set(id, x, cache.DefaultExpiration)
		return x.(*SessionEntry), true
	}
	return nil, false
}

// Delete removes the entry and closes its controller.
func (r *SessionRepository) Delete(userId uuid.UUID, itemKey string) {
	r.cache.Delete(SessionKey(userId, itemKey))
}

func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}

// Flush closes every live controller.
func (r *SessionRepository) Flush() {
	for id := range r.cache.Items() {
		r.cache.Delete(id)
	}
}
