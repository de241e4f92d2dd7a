package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type VoteKind string

const (
	VoteLike    VoteKind = "like"
	VoteDislike VoteKind = "dislike"
	VoteLove    VoteKind = "love"
)

func ParseVoteKind(s string) (VoteKind, error) {
	k := VoteKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown vote kind %q", s)
	}
	return k, nil
}

func (k VoteKind) Valid() bool {
	switch k {
	case VoteLike, VoteDislike, VoteLove:
		return true
	}
	return false
}

// CounterColumn names the concept aggregate a vote of this kind feeds.
func (k VoteKind) CounterColumn() string {
	switch k {
	case VoteLike:
		return "up"
	case VoteDislike:
		return "down"
	case VoteLove:
		return "hearts"
	}
	return ""
}

// Vote is the replaceable singleton for one (user, concept) pair.
type Vote struct {
	UserId      uuid.UUID
	ConceptId   uuid.UUID
	WorkItemKey string
	Kind        VoteKind
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// VotedImages is the client's local belief about its own votes for the current WorkItem.
type VotedImages map[uuid.UUID]VoteKind

func (v VotedImages) Clone() VotedImages {
	out := make(VotedImages, len(v))
	for k, kind := range v {
		out[k] = kind
	}
	return out
}
