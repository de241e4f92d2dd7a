package entity

import (
	"time"

	"github.com/google/uuid"
)

type ConceptStatus string

const (
	ConceptActive   ConceptStatus = "active"
	ConceptInactive ConceptStatus = "inactive"
)

// Concept is one generated candidate competing for approval.
// Counters only move through clamped increments and decrements.
type Concept struct {
	Id              uuid.UUID
	WorkItemKey     string
	ImageURL        string
	Up              int
	Down            int
	Hearts          int
	Status          ConceptStatus
	RepairRequested bool
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}

func (c *Concept) IsActive() bool {
	return c.Status == ConceptActive
}

// Counter returns the aggregate matching the vote kind.
func (c *Concept) Counter(kind VoteKind) int {
	switch kind {
	case VoteLike:
		return c.Up
	case VoteDislike:
		return c.Down
	case VoteLove:
		return c.Hearts
	}
	return 0
}

// CrossedThreshold reports whether the aggregates alone decide the item.
func (c *Concept) CrossedThreshold() bool {
	return c.Hearts >= 1 || c.Up >= 2
}
